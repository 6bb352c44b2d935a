package rest

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	cerr "github.com/poec-forensics/console/cmd/poec/errors"
	apierr "github.com/poec-forensics/console/pkg/api/types/errors"
)

type MessageFor map[StatusCodeRange]string

// ServiceError is an error response of the analysis service.
type ServiceError struct {
	StatusCode int

	// Message is the server message: "detail" of the error body, or the body itself.
	Message string
}

func (se *ServiceError) Error() string {
	if se.Message == "" {
		return fmt.Sprintf("status code = %d", se.StatusCode)
	}
	return fmt.Sprintf("%s (status code = %d)", se.Message, se.StatusCode)
}

// Detail is the message for users.
func (se *ServiceError) Detail() string {
	if se.Message == "" {
		return "Unknown server error"
	}
	return se.Message
}

// unmarshal http response which has json content.
//
// args:
//   - resp: http response to be processed.
//   - v: value which response should be.
//   - messageFor: title of error message for HTTP status code range.
//
// return:
//
//	error if...
//	- can not read response body
//	- response body is not shaped of v
//	- status code is in 4xx or 5xx. It is a CUIError caused by *ServiceError.
func unmarshalJsonResponse[T any](resp *http.Response, v *T, messageFor MessageFor) error {
	scr := StatusCodeRangeOf(resp)
	if scr <= Status2xx {
		if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
			message := fmt.Sprintf("unexpected error: %s (status code = %d)", err.Error(), resp.StatusCode)
			return cerr.NewCuiError(message, cerr.WithCause(err))
		}
		return nil
	}
	return errorResponse(resp, scr, messageFor)
}

func unmarshalResponseDiscardingPayload(resp *http.Response, messageFor MessageFor) error {
	scr := StatusCodeRangeOf(resp)
	if scr <= Status2xx {
		io.Copy(io.Discard, resp.Body)
		return nil
	}
	return errorResponse(resp, scr, messageFor)
}

func errorResponse(resp *http.Response, scr StatusCodeRange, messageFor MessageFor) error {
	message, ok := messageFor[scr]
	if !ok {
		message = fmt.Sprintf("%s (status code = %d)", scr, resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return cerr.NewCuiError(
			fmt.Sprintf(
				"%s\ncannot read server message: %s",
				message, err.Error(),
			),
			cerr.WithCause(&ServiceError{StatusCode: resp.StatusCode}),
		)
	}

	detail := parseErrorMessage(body)
	cause := &ServiceError{StatusCode: resp.StatusCode, Message: detail}
	if detail == "" {
		return cerr.NewCuiError(message, cerr.WithCause(cause))
	}
	return cerr.NewCuiError(
		message,
		cerr.WithCause(cause),
		cerr.WithMessage(detail),
	)
}

func jsonUnmarshal[T any](buf []byte) (*T, error) {
	ret := new(T)
	if err := json.Unmarshal(buf, ret); err != nil {
		return nil, err
	}
	return ret, nil
}

// parseErrorMessage extracts the server message.
//
// It tries "detail" (the service's error body), "message", then the raw body.
func parseErrorMessage(body []byte) string {
	if eresp, err := jsonUnmarshal[apierr.ErrorMessage](body); err == nil {
		return eresp.Detail
	}

	if msg, err := jsonUnmarshal[struct {
		Message *string `json:"message"`
	}](body); err == nil && msg.Message != nil {
		return *msg.Message
	}

	return string(body)
}
