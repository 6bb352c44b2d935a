package pipeline

import (
	"fmt"
	"slices"
	"time"

	"github.com/poec-forensics/console/pkg/api/types/analysis"
	"github.com/poec-forensics/console/pkg/api/types/ledger"
	types "github.com/poec-forensics/console/pkg/api/types/proof"
	"github.com/poec-forensics/console/pkg/proof"
)

type Stage int

const (
	Idle Stage = iota
	Validating
	Ingesting
	Analyzing
	FetchingLedger
	Anchoring
	Complete
	Failed
)

func (s Stage) String() string {
	switch s {
	case Idle:
		return "idle"
	case Validating:
		return "validating"
	case Ingesting:
		return "ingesting"
	case Analyzing:
		return "analyzing"
	case FetchingLedger:
		return "fetching-ledger"
	case Anchoring:
		return "anchoring"
	case Complete:
		return "complete"
	case Failed:
		return "failed"
	default:
		return "unknown"
	}
}

// Active tells a session in the stage is in flight.
func (s Stage) Active() bool {
	switch s {
	case Validating, Ingesting, Analyzing, FetchingLedger, Anchoring:
		return true
	default:
		return false
	}
}

type Level string

const (
	Info     Level = "INFO"
	Warn     Level = "WARN"
	Critical Level = "CRITICAL"
)

// Entry is a line of session log.
type Entry struct {
	At      time.Time
	Level   Level
	Message string
}

func (e Entry) String() string {
	if e.Level == Critical {
		return fmt.Sprintf("[%s] CRITICAL: %s", e.At.Format(time.TimeOnly), e.Message)
	}
	return fmt.Sprintf("[%s] %s", e.At.Format(time.TimeOnly), e.Message)
}

// Session is a run of the pipeline.
//
// Session is a value. Orchestrator replaces it as a whole on every change,
// so a Session obtained once never changes.
type Session struct {
	Id        string
	Source    string
	StartedAt time.Time
	Stage     Stage

	// Log is appended in order of stage transitions.
	Log []Entry

	Batch  *analysis.Ingested
	Result *analysis.Result

	// Triplet is set when analysis has been succeeded.
	Triplet *types.Triplet

	// Ledger is the raw ledger. It can be empty when fetching failed.
	Ledger      []ledger.Transaction
	LedgerError error

	Anchor      *proof.Outcome
	AnchorError error

	// Err is the cause of failure. nil unless Stage is Failed.
	Err error
}

func (s Session) clone() Session {
	s.Log = slices.Clip(s.Log)
	return s
}

func (s Session) Anomalies() []analysis.Anomaly {
	if s.Result == nil {
		return nil
	}
	return s.Result.Anomalies
}

// Degraded tells the analysis is complete but the ledger view is not available.
func (s Session) Degraded() bool {
	return s.LedgerError != nil
}

// Anchored tells the triplet of the session is on the ledger.
func (s Session) Anchored() bool {
	return s.Anchor != nil
}
