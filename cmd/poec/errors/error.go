package errors

import (
	"errors"
	"fmt"
	"strings"

	"github.com/poec-forensics/console/pkg/liveness"
	"github.com/poec-forensics/console/pkg/pipeline"
	"github.com/poec-forensics/console/pkg/proof"
	"github.com/poec-forensics/console/pkg/schema"
)

type Verbose interface {
	Verbose() string
}

// CUIError is an error to be shown to users of the console.
type CUIError interface {
	error
	Verbose
}

type cuierror struct {
	summary     string
	verbose     string
	printDetail func(summary string) (string, error)
	base        error
}

func (ce *cuierror) Unwrap() error {
	return ce.base
}

func (ce *cuierror) Error() string {
	if ce.printDetail == nil {
		return ce.summary
	}
	message, err := ce.printDetail(ce.summary)
	if err != nil {
		message = fmt.Sprintf(
			"%s\n(building detailed message causes error: %s)",
			ce.summary, err.Error(),
		)
	}
	return message
}

func (ce *cuierror) Verbose() string {
	message := []string{ce.Error()}
	if ce.verbose != "" {
		message = append(message, " ("+ce.verbose+") ")
	}

	switch base := ce.base.(type) {
	case nil:
	case Verbose:
		message = append(message, "caused by: ", base.Verbose())
	default:
		message = append(message, "caused by: ", base.Error())
	}
	return strings.Join(message, "\n")
}

type CuiErrorOption func(cerr *cuierror) *cuierror

func NewCuiError(summary string, options ...CuiErrorOption) CUIError {
	err := &cuierror{summary: summary}
	for _, o := range options {
		err = o(err)
	}
	return err
}

func WithVerbose(verbose string) CuiErrorOption {
	return func(cerr *cuierror) *cuierror {
		cerr.verbose = verbose
		return cerr
	}
}

func WithDetail(printer func(summary string) (string, error)) CuiErrorOption {
	return func(cerr *cuierror) *cuierror {
		cerr.printDetail = printer
		return cerr
	}
}

// WithMessage appends lines to the summary.
func WithMessage(lines ...string) CuiErrorOption {
	return WithDetail(func(summary string) (string, error) {
		return strings.Join(append([]string{summary}, lines...), "\n"), nil
	})
}

func WithCause(err error) CuiErrorOption {
	return func(cerr *cuierror) *cuierror {
		cerr.base = err
		return cerr
	}
}

// hints for errors of the core, in order of precedence.
var hints = []struct {
	err     error
	summary string
	hint    string
}{
	{schema.ErrSchemaInvalid, "CSV format error", "Required columns are source_entity, target_entity, amount and timestamp (or their synonyms)."},
	{pipeline.ErrServiceUnavailable, "analysis service is not online", "Check the service with `poec status --wait`."},
	{pipeline.ErrRunInFlight, "another analysis is in progress", "Wait for it to be settled."},
	{pipeline.ErrIngestFailure, "ingest failed", ""},
	{pipeline.ErrAnalysisFailure, "analysis failed", ""},
	{pipeline.ErrNotComplete, "no completed analysis to be anchored", "Run `poec analyze` first."},
	{proof.ErrAnchorFailure, "anchor failed", "You can retry with `poec anchor`."},
	{proof.ErrVerifyMiss, "record not found on blockchain", ""},
	{liveness.ErrRunning, "liveness monitor is busy", ""},
}

// Explain wraps err as a CUIError, summarizing well-known causes.
//
// CUIErrors and nil are returned as they are.
func Explain(err error) error {
	if err == nil {
		return nil
	}
	if _, ok := err.(CUIError); ok {
		return err
	}
	for _, h := range hints {
		if !errors.Is(err, h.err) {
			continue
		}
		lines := []string{err.Error()}
		if h.hint != "" {
			lines = append(lines, h.hint)
		}
		return NewCuiError(h.summary, WithCause(err), WithMessage(lines...))
	}
	return err
}
