package rest

import (
	"context"
	"fmt"
	"net/http"
	"net/url"

	apicontexts "github.com/poec-forensics/console/pkg/api/types/contexts"
)

func (c *client) GetContexts(ctx context.Context) (apicontexts.Profiles, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.apipath("api", "v1", "context"), nil)
	if err != nil {
		return apicontexts.Profiles{}, err
	}
	resp, err := c.do(req)
	if err != nil {
		return apicontexts.Profiles{}, err
	}
	defer resp.Body.Close()

	var profiles apicontexts.Profiles
	if err := unmarshalJsonResponse(
		resp, &profiles,
		MessageFor{
			Status5xx: fmt.Sprintf("server error (status code = %d)", resp.StatusCode),
		},
	); err != nil {
		return apicontexts.Profiles{}, err
	}
	return profiles, nil
}

func (c *client) SwitchContext(ctx context.Context, contextId string) (apicontexts.Switched, error) {
	u := c.apipath("api", "v1", "context") + "?" + url.Values{"context_id": {contextId}}.Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u, nil)
	if err != nil {
		return apicontexts.Switched{}, err
	}
	resp, err := c.do(req)
	if err != nil {
		return apicontexts.Switched{}, err
	}
	defer resp.Body.Close()

	var switched apicontexts.Switched
	if err := unmarshalJsonResponse(
		resp, &switched,
		MessageFor{
			Status4xx: fmt.Sprintf("context %s is not available", contextId),
			Status5xx: fmt.Sprintf("server error (status code = %d)", resp.StatusCode),
		},
	); err != nil {
		return apicontexts.Switched{}, err
	}
	return switched, nil
}
