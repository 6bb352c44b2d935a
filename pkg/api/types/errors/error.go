package errors

import (
	"encoding/json"
	"fmt"
)

// ErrorMessage is the body of error responses from the analysis service.
//
//	{"detail": "Missing required columns: ..."}
//
// detail is usually a string, but validation errors of the service come
// as a structured value. Such detail is kept as its JSON text.
type ErrorMessage struct {
	Detail string `json:"detail"`
}

func (em *ErrorMessage) UnmarshalJSON(b []byte) error {
	f := new(struct {
		Detail *json.RawMessage `json:"detail"`
	})
	if err := json.Unmarshal(b, f); err != nil {
		return err
	}
	if f.Detail == nil {
		return fmt.Errorf(`required field missing: "detail"`)
	}

	var s string
	if err := json.Unmarshal(*f.Detail, &s); err == nil {
		em.Detail = s
		return nil
	}
	em.Detail = string(*f.Detail)
	return nil
}

func (em ErrorMessage) Error() string {
	return em.Detail
}
