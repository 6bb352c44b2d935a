package proof

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/log"
	types "github.com/poec-forensics/console/pkg/api/types/proof"
)

var (
	// ErrAnchorFailure is returned when the ledger rejects an anchoring.
	//
	// It can be retried by the user.
	ErrAnchorFailure = errors.New("anchor failed")

	// ErrVerifyMiss is returned when the hash is not anchored.
	ErrVerifyMiss = errors.New("record not found on ledger")
)

// Ledger is the proof ledger endpoints of the analysis service.
//
// Verify should return an error wrapping ErrVerifyMiss when the service says
// the hash is unknown.
type Ledger interface {
	Anchor(ctx context.Context, req types.AnchorRequest) (types.AnchorResponse, error)
	Verify(ctx context.Context, resultHash string) (types.Verification, error)
	Archive(ctx context.Context, cid string) (types.Archive, error)
	LedgerStatus(ctx context.Context) (types.LedgerStatus, error)
}

// Outcome of anchoring.
type Outcome struct {
	Triplet  types.Triplet
	Response types.AnchorResponse

	// Verification made just after anchoring. nil when it failed.
	Verification *types.Verification

	// Error of the verification after anchoring. It does not fail anchoring.
	VerifyError error
}

// Collision tells the result hash has been anchored before.
//
// This is a successful outcome.
func (o Outcome) Collision() bool {
	return o.Response.Status == types.StatusAlreadyAnchored
}

// Verified tells the verification after anchoring found the record.
func (o Outcome) Verified() bool {
	return o.Verification != nil && o.Verification.Verified
}

// Result labels of anchoring, passed to observers.
const (
	ResultAnchored        = "anchored"
	ResultAlreadyAnchored = "already_anchored"
	ResultFailed          = "failed"
)

type Client struct {
	ledger   Ledger
	logger   *log.Logger
	observer func(result string)
}

type Option func(*Client) *Client

func WithLogger(l *log.Logger) Option {
	return func(c *Client) *Client {
		c.logger = l
		return c
	}
}

// WithObserver sets a function called with the result of each anchoring.
func WithObserver(f func(result string)) Option {
	return func(c *Client) *Client {
		c.observer = f
		return c
	}
}

func New(ledger Ledger, options ...Option) *Client {
	c := &Client{
		ledger:   ledger,
		logger:   log.New(io.Discard),
		observer: func(string) {},
	}
	for _, o := range options {
		c = o(c)
	}
	return c
}

// Anchor commits the triplet to the ledger, and then verifies it.
//
// Anchoring is idempotent. When the result hash is already anchored,
// the service reports it and this method succeeds without retry.
//
// Args
//
// - ctx
//
// - t: triplet to be anchored. It should be Complete.
//
// - cid: content id of the archived analysis result. Optional.
//
// Returns
//
// - Outcome: the response of the ledger and the verification.
//
// - error: wrapping ErrAnchorFailure when the ledger rejects it.
// Failure of the following verification is not an error, see Outcome.VerifyError.
func (c *Client) Anchor(ctx context.Context, t types.Triplet, cid string) (Outcome, error) {
	out := Outcome{Triplet: t}
	if !t.Complete() {
		c.observer(ResultFailed)
		return out, fmt.Errorf("%w: incomplete hash triplet", ErrAnchorFailure)
	}

	resp, err := c.ledger.Anchor(ctx, types.AnchorRequest{Triplet: t, IpfsCid: cid})
	if err != nil {
		c.observer(ResultFailed)
		if errors.Is(err, ErrAnchorFailure) {
			return out, err
		}
		return out, fmt.Errorf("%w: %w", ErrAnchorFailure, err)
	}
	out.Response = resp

	if out.Collision() {
		c.observer(ResultAlreadyAnchored)
		c.logger.Info("result hash is already anchored", "result_hash", t.ResultHash)
	} else {
		c.observer(ResultAnchored)
		c.logger.Info("anchored", "result_hash", t.ResultHash, "block", resp.BlockNumber)
	}

	v, err := c.Verify(ctx, t.ResultHash)
	if err != nil {
		c.logger.Warn("verification after anchoring failed", "result_hash", t.ResultHash, "error", err)
		out.VerifyError = err
		return out, nil
	}
	out.Verification = &v
	return out, nil
}

// Verify looks up the ledger record of the result hash.
//
// Returns an error wrapping ErrVerifyMiss when the hash is not anchored.
func (c *Client) Verify(ctx context.Context, resultHash string) (types.Verification, error) {
	resultHash = strings.TrimSpace(resultHash)
	if resultHash == "" {
		return types.Verification{}, fmt.Errorf("%w: empty hash", ErrVerifyMiss)
	}

	v, err := c.ledger.Verify(ctx, resultHash)
	if err != nil {
		return types.Verification{}, err
	}
	if !v.Verified {
		return v, fmt.Errorf("%w: %s", ErrVerifyMiss, resultHash)
	}
	return v, nil
}

// Record is a result of the public verification lookup.
type Record struct {
	Verification types.Verification

	// Archived analysis result. nil when it has no archive or fetching failed.
	Archive *types.Archive

	// Error on fetching archive. It does not fail the lookup.
	ArchiveError error
}

// Lookup verifies the hash and fetches its archived summary.
//
// This needs no analysis session. Only the hash matters.
func (c *Client) Lookup(ctx context.Context, hash string) (Record, error) {
	v, err := c.Verify(ctx, hash)
	if err != nil {
		return Record{}, err
	}
	rec := Record{Verification: v}
	if v.IpfsCid == "" {
		return rec, nil
	}

	a, err := c.ledger.Archive(ctx, v.IpfsCid)
	if err != nil {
		c.logger.Warn("failed to fetch archive", "cid", v.IpfsCid, "error", err)
		rec.ArchiveError = err
		return rec, nil
	}
	rec.Archive = &a
	return rec, nil
}

// Status reports the connectivity of the service to the ledger.
func (c *Client) Status(ctx context.Context) (types.LedgerStatus, error) {
	return c.ledger.LedgerStatus(ctx)
}
