package rest

import (
	"context"
	"fmt"
	"io"
	"mime"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"net/url"
	"strconv"

	apianalysis "github.com/poec-forensics/console/pkg/api/types/analysis"
	apiledger "github.com/poec-forensics/console/pkg/api/types/ledger"
	"github.com/poec-forensics/console/pkg/schema"
)

func (c *client) Ping(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.api+"/", nil)
	if err != nil {
		return err
	}
	resp, err := c.do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	return unmarshalResponseDiscardingPayload(resp, MessageFor{})
}

func (c *client) Ingest(ctx context.Context, src schema.Source) (apianalysis.Ingested, error) {
	pr, pw := io.Pipe()
	mw := multipart.NewWriter(pw)

	go func() {
		pw.CloseWithError(writeForm(mw, src))
	}()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.apipath("api", "v1", "ingest"), pr)
	if err != nil {
		pr.Close()
		return apianalysis.Ingested{}, err
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())

	resp, err := c.do(req)
	if err != nil {
		return apianalysis.Ingested{}, err
	}
	defer resp.Body.Close()

	var ingested apianalysis.Ingested
	if err := unmarshalJsonResponse(
		resp, &ingested,
		MessageFor{
			Status4xx: fmt.Sprintf("ledger %s is rejected", src.Name()),
			Status5xx: fmt.Sprintf("server error (status code = %d)", resp.StatusCode),
		},
	); err != nil {
		return apianalysis.Ingested{}, err
	}
	return ingested, nil
}

func writeForm(mw *multipart.Writer, src schema.Source) error {
	rc, err := src.Open()
	if err != nil {
		return err
	}
	defer rc.Close()

	h := textproto.MIMEHeader{}
	h.Set("Content-Disposition", mime.FormatMediaType(
		"form-data", map[string]string{"name": "file", "filename": src.Name()},
	))
	h.Set("Content-Type", "text/csv")
	part, err := mw.CreatePart(h)
	if err != nil {
		return err
	}
	if _, err := io.Copy(part, rc); err != nil {
		return err
	}
	return mw.Close()
}

func (c *client) Analyze(ctx context.Context) (apianalysis.Result, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.apipath("api", "v1", "analyze"), nil)
	if err != nil {
		return apianalysis.Result{}, err
	}
	resp, err := c.do(req)
	if err != nil {
		return apianalysis.Result{}, err
	}
	defer resp.Body.Close()

	var result apianalysis.Result
	if err := unmarshalJsonResponse(
		resp, &result,
		MessageFor{
			Status4xx: "analysis is rejected",
			Status5xx: fmt.Sprintf("server error (status code = %d)", resp.StatusCode),
		},
	); err != nil {
		return apianalysis.Result{}, err
	}
	return result, nil
}

func (c *client) Transactions(ctx context.Context, limit int) ([]apiledger.Transaction, error) {
	u := c.apipath("api", "v1", "transactions")
	if 0 < limit {
		u += "?" + url.Values{"limit": {strconv.Itoa(limit)}}.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, err
	}
	resp, err := c.do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	txs := []apiledger.Transaction{}
	if err := unmarshalJsonResponse(
		resp, &txs,
		MessageFor{
			Status4xx: "cannot fetch ledger",
			Status5xx: fmt.Sprintf("server error (status code = %d)", resp.StatusCode),
		},
	); err != nil {
		return nil, err
	}
	return txs, nil
}
