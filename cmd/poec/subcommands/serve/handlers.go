package serve

import (
	"errors"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/poec-forensics/console/pkg/api/types/analysis"
	apiproof "github.com/poec-forensics/console/pkg/api/types/proof"
	"github.com/poec-forensics/console/pkg/echoutil"
	"github.com/poec-forensics/console/pkg/journal"
	"github.com/poec-forensics/console/pkg/liveness"
	"github.com/poec-forensics/console/pkg/pipeline"
	"github.com/poec-forensics/console/pkg/proof"
	"github.com/poec-forensics/console/pkg/schema"
)

// Health is a response of the health endpoint.
type Health struct {
	State     string     `json:"state"`
	Attempts  int        `json:"attempts"`
	LastCheck *time.Time `json:"last_check,omitempty"`
	LastError string     `json:"last_error,omitempty"`
}

func composeHealth(s liveness.Status) Health {
	h := Health{State: s.State.String(), Attempts: s.Attempts}
	if !s.LastCheck.IsZero() {
		h.LastCheck = &s.LastCheck
	}
	if s.LastError != nil {
		h.LastError = s.LastError.Error()
	}
	return h
}

// HealthHandler reports liveness of the analysis service.
//
// It responds 200 when the service is online, and 503 otherwise.
func HealthHandler(m *liveness.Monitor) echo.HandlerFunc {
	return func(c echo.Context) error {
		s := m.Status()
		if s.State != liveness.Online {
			return c.JSON(http.StatusServiceUnavailable, composeHealth(s))
		}
		return c.JSON(http.StatusOK, composeHealth(s))
	}
}

// ResetHealthHandler puts the monitor back to checking.
//
// The service is probed again by the next round of Watch.
func ResetHealthHandler(m *liveness.Monitor) echo.HandlerFunc {
	return func(c echo.Context) error {
		m.Reset()
		return c.JSON(http.StatusAccepted, composeHealth(m.Status()))
	}
}

// Record is a response of the verification endpoint.
type Record struct {
	Verification apiproof.Verification `json:"verification"`
	Archive      *apiproof.Archive     `json:"archive,omitempty"`
	ArchiveError string                `json:"archive_error,omitempty"`
}

// VerifyHandler looks up the result hash in the path parameter.
func VerifyHandler(p *proof.Client, param string) echo.HandlerFunc {
	return func(c echo.Context) error {
		rec, err := p.Lookup(c.Request().Context(), c.Param(param))
		if errors.Is(err, proof.ErrVerifyMiss) {
			return echo.NewHTTPError(http.StatusNotFound, err.Error())
		} else if err != nil {
			return echo.NewHTTPError(http.StatusBadGateway, err.Error()).SetInternal(err)
		}

		resp := Record{Verification: rec.Verification, Archive: rec.Archive}
		if rec.ArchiveError != nil {
			resp.ArchiveError = rec.ArchiveError.Error()
		}
		return c.JSON(http.StatusOK, resp)
	}
}

// Session is a session in responses.
type Session struct {
	SessionId string                   `json:"session_id"`
	Source    string                   `json:"source"`
	StartedAt time.Time                `json:"started_at"`
	Stage     string                   `json:"stage"`
	Triplet   *apiproof.Triplet        `json:"triplet,omitempty"`
	Anomalies []analysis.Anomaly       `json:"anomalies,omitempty"`
	Log       []string                 `json:"log,omitempty"`
	Anchor    *apiproof.AnchorResponse `json:"anchor,omitempty"`
	Error     string                   `json:"error,omitempty"`

	// AnchorError is set when the session is complete but not anchored.
	AnchorError string `json:"anchor_error,omitempty"`
}

func composeSession(s pipeline.Session) Session {
	ret := Session{
		SessionId: s.Id,
		Source:    s.Source,
		StartedAt: s.StartedAt,
		Stage:     s.Stage.String(),
		Triplet:   s.Triplet,
		Anomalies: s.Anomalies(),
	}
	for _, e := range s.Log {
		ret.Log = append(ret.Log, e.String())
	}
	if s.Anchor != nil {
		ret.Anchor = &s.Anchor.Response
	}
	if s.Err != nil {
		ret.Error = s.Err.Error()
	}
	if s.AnchorError != nil {
		ret.AnchorError = s.AnchorError.Error()
	}
	return ret
}

func composeEntry(e journal.Entry) Session {
	ret := Session{
		SessionId: e.SessionId,
		Source:    e.Source,
		StartedAt: e.StartedAt,
		Stage:     e.Stage,
		Error:     e.Error,
	}
	if e.Triplet.Complete() {
		t := e.Triplet
		ret.Triplet = &t
	}
	if e.Result != nil {
		ret.Anomalies = e.Result.Anomalies
	}
	if a := e.Anchor; a != nil {
		ret.Anchor = &apiproof.AnchorResponse{
			Status: a.Status, BlockNumber: a.BlockNumber, TransactionHash: a.TransactionHash,
		}
	}
	return ret
}

// ListSessionsHandler lists sessions in the journal, latest first.
//
// Query "limit" is the max count, 20 by default.
func ListSessionsHandler(j *journal.Journal) echo.HandlerFunc {
	return func(c echo.Context) error {
		limit := 20
		if q := c.QueryParam("limit"); q != "" {
			l, err := strconv.Atoi(q)
			if err != nil || l <= 0 {
				return echo.NewHTTPError(http.StatusBadRequest, "limit should be a positive integer")
			}
			limit = l
		}

		entries, err := j.List(c.Request().Context(), limit)
		if err != nil {
			return echo.NewHTTPError(http.StatusInternalServerError).SetInternal(err)
		}
		resp := make([]Session, 0, len(entries))
		for _, e := range entries {
			resp = append(resp, composeEntry(e))
		}
		return c.JSON(http.StatusOK, resp)
	}
}

// maxUpload is the limit of ledger files uploaded.
const maxUpload = 256 << 20

// AnalyzeHandler runs the pipeline over a ledger file uploaded in the form field "file".
//
// It responds the session when it is complete. Statuses for failures are:
//
//   - 400: no file is uploaded
//   - 409: another analysis is in flight
//   - 422: the file does not satisfy the ledger schema
//   - 502: ingestion or analysis has failed in the service
//   - 503: the service is not online
func AnalyzeHandler(o *pipeline.Orchestrator) echo.HandlerFunc {
	return func(c echo.Context) error {
		fh, err := c.FormFile("file")
		if err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, "no ledger file is uploaded in \"file\"")
		}
		f, err := fh.Open()
		if err != nil {
			return echo.NewHTTPError(http.StatusBadRequest).SetInternal(err)
		}
		defer f.Close()
		content, err := io.ReadAll(io.LimitReader(f, maxUpload+1))
		if err != nil {
			return echo.NewHTTPError(http.StatusBadRequest).SetInternal(err)
		}
		if maxUpload < len(content) {
			return echo.NewHTTPError(http.StatusRequestEntityTooLarge)
		}

		s, err := o.Run(c.Request().Context(), schema.Bytes(fh.Filename, content))
		switch {
		case err == nil:
			return c.JSON(http.StatusOK, composeSession(s))
		case errors.Is(err, pipeline.ErrRunInFlight):
			return echo.NewHTTPError(http.StatusConflict, err.Error())
		case errors.Is(err, pipeline.ErrServiceUnavailable):
			return echo.NewHTTPError(http.StatusServiceUnavailable, err.Error())
		case errors.Is(err, schema.ErrSchemaInvalid):
			return echo.NewHTTPError(http.StatusUnprocessableEntity, err.Error())
		case errors.Is(err, pipeline.ErrIngestFailure), errors.Is(err, pipeline.ErrAnalysisFailure):
			return c.JSON(http.StatusBadGateway, composeSession(s))
		default:
			return echo.NewHTTPError(http.StatusInternalServerError).SetInternal(err)
		}
	}
}

// ProxyHandler passes requests under prefix to the analysis service.
func ProxyHandler(client *http.Client, backend *url.URL, prefix string) echo.HandlerFunc {
	return func(c echo.Context) error {
		return echoutil.Proxy(c, client, backend, prefix)
	}
}
