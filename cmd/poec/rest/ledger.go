package rest

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"

	cerr "github.com/poec-forensics/console/cmd/poec/errors"
	apiproof "github.com/poec-forensics/console/pkg/api/types/proof"
	"github.com/poec-forensics/console/pkg/proof"
)

var ErrArchiveNotFound = errors.New("archive is not found")

func (c *client) Anchor(ctx context.Context, anchoring apiproof.AnchorRequest) (apiproof.AnchorResponse, error) {
	body, err := json.Marshal(anchoring)
	if err != nil {
		return apiproof.AnchorResponse{}, err
	}
	req, err := http.NewRequestWithContext(
		ctx, http.MethodPost, c.apipath("api", "v1", "anchor"), bytes.NewReader(body),
	)
	if err != nil {
		return apiproof.AnchorResponse{}, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.do(req)
	if err != nil {
		return apiproof.AnchorResponse{}, err
	}
	defer resp.Body.Close()

	var anchored apiproof.AnchorResponse
	if err := unmarshalJsonResponse(
		resp, &anchored,
		MessageFor{
			Status4xx: "anchoring is rejected",
			Status5xx: fmt.Sprintf("blockchain error (status code = %d)", resp.StatusCode),
		},
	); err != nil {
		return apiproof.AnchorResponse{}, err
	}
	return anchored, nil
}

func (c *client) Verify(ctx context.Context, resultHash string) (apiproof.Verification, error) {
	req, err := http.NewRequestWithContext(
		ctx, http.MethodGet, c.apipath("api", "v1", "verify", url.PathEscape(resultHash)), nil,
	)
	if err != nil {
		return apiproof.Verification{}, err
	}
	resp, err := c.do(req)
	if err != nil {
		return apiproof.Verification{}, err
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return apiproof.Verification{}, cerr.NewCuiError(
			"record not found on blockchain",
			cerr.WithCause(fmt.Errorf("%w: %s", proof.ErrVerifyMiss, resultHash)),
		)
	}

	var verification apiproof.Verification
	if err := unmarshalJsonResponse(
		resp, &verification,
		MessageFor{
			Status4xx: fmt.Sprintf("cannot verify %s", resultHash),
			Status5xx: fmt.Sprintf("blockchain error (status code = %d)", resp.StatusCode),
		},
	); err != nil {
		return apiproof.Verification{}, err
	}
	return verification, nil
}

func (c *client) Archive(ctx context.Context, cid string) (apiproof.Archive, error) {
	req, err := http.NewRequestWithContext(
		ctx, http.MethodGet, c.apipath("api", "v1", "ipfs", url.PathEscape(cid)), nil,
	)
	if err != nil {
		return apiproof.Archive{}, err
	}
	resp, err := c.do(req)
	if err != nil {
		return apiproof.Archive{}, err
	}
	defer resp.Body.Close()

	var archive apiproof.Archive
	if err := unmarshalJsonResponse(
		resp, &archive,
		MessageFor{
			Status4xx: fmt.Sprintf("archive %s is not found", cid),
			Status5xx: fmt.Sprintf("server error (status code = %d)", resp.StatusCode),
		},
	); err != nil {
		if resp.StatusCode == http.StatusNotFound {
			return apiproof.Archive{}, fmt.Errorf("%w: %w", ErrArchiveNotFound, err)
		}
		return apiproof.Archive{}, err
	}
	return archive, nil
}

func (c *client) LedgerStatus(ctx context.Context) (apiproof.LedgerStatus, error) {
	req, err := http.NewRequestWithContext(
		ctx, http.MethodGet, c.apipath("api", "v1", "anchor", "status"), nil,
	)
	if err != nil {
		return apiproof.LedgerStatus{}, err
	}
	resp, err := c.do(req)
	if err != nil {
		return apiproof.LedgerStatus{}, err
	}
	defer resp.Body.Close()

	var status apiproof.LedgerStatus
	if err := unmarshalJsonResponse(
		resp, &status,
		MessageFor{
			Status5xx: fmt.Sprintf("server error (status code = %d)", resp.StatusCode),
		},
	); err != nil {
		return apiproof.LedgerStatus{}, err
	}
	return status, nil
}
