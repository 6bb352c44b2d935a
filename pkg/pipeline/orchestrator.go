// Package pipeline runs an analysis: validate, ingest, analyze, fetch ledger,
// and optionally anchor the result.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"
	"github.com/poec-forensics/console/pkg/api/types/analysis"
	"github.com/poec-forensics/console/pkg/api/types/ledger"
	types "github.com/poec-forensics/console/pkg/api/types/proof"
	"github.com/poec-forensics/console/pkg/proof"
	"github.com/poec-forensics/console/pkg/schema"
	"k8s.io/utils/clock"
)

const (
	DefaultAnchorDelay = 1 * time.Second
	DefaultLedgerLimit = 1000
)

var (
	ErrRunInFlight        = errors.New("an analysis is in progress")
	ErrServiceUnavailable = errors.New("analysis service is not online")
	ErrIngestFailure      = errors.New("ingest failed")
	ErrAnalysisFailure    = errors.New("analysis failed")
	ErrLedgerFetchFailure = errors.New("failed to fetch ledger")
	ErrNotComplete        = errors.New("no completed analysis")

	// ErrSuperseded is returned by a run whose session has been replaced.
	// Its results are discarded.
	ErrSuperseded = errors.New("session is superseded")
)

// Service is the analysis endpoints.
type Service interface {
	// Ingest uploads a ledger file.
	Ingest(ctx context.Context, src schema.Source) (analysis.Ingested, error)

	// Analyze runs detection over the last ingested ledger.
	Analyze(ctx context.Context) (analysis.Result, error)

	// Transactions returns raw ledger rows, up to limit.
	Transactions(ctx context.Context, limit int) ([]ledger.Transaction, error)
}

// Anchorer commits hash triplets to the proof ledger. *proof.Client is an Anchorer.
type Anchorer interface {
	Anchor(ctx context.Context, t types.Triplet, cid string) (proof.Outcome, error)
}

// Gate admits runs. *liveness.Monitor is a Gate.
type Gate interface {
	Online() bool
}

// StageObserver is notified when a stage is over.
//
// err is nil when the stage has been succeeded.
type StageObserver func(stage Stage, elapsed time.Duration, err error)

// Recorder keeps sessions which have been settled.
type Recorder interface {
	Record(Session) error
}

type Orchestrator struct {
	service     Service
	anchorer    Anchorer
	gate        Gate
	clock       clock.Clock
	logger      *log.Logger
	observer    StageObserver
	recorder    Recorder
	autoAnchor  bool
	anchorDelay time.Duration
	ledgerLimit int

	mu          sync.Mutex
	current     *Session
	cancel      context.CancelFunc
	subscribers map[int]chan Session
	nextSubId   int
}

type Option func(*Orchestrator) *Orchestrator

func WithClock(c clock.Clock) Option {
	return func(o *Orchestrator) *Orchestrator {
		o.clock = c
		return o
	}
}

func WithLogger(l *log.Logger) Option {
	return func(o *Orchestrator) *Orchestrator {
		o.logger = l
		return o
	}
}

// WithGate makes runs start only when the gate is online.
func WithGate(g Gate) Option {
	return func(o *Orchestrator) *Orchestrator {
		o.gate = g
		return o
	}
}

// WithAutoAnchor makes complete runs anchored after delay.
func WithAutoAnchor(delay time.Duration) Option {
	return func(o *Orchestrator) *Orchestrator {
		o.autoAnchor = true
		o.anchorDelay = delay
		return o
	}
}

// WithLedgerLimit sets page size of the raw ledger fetched.
func WithLedgerLimit(n int) Option {
	return func(o *Orchestrator) *Orchestrator {
		o.ledgerLimit = n
		return o
	}
}

func WithObserver(ob StageObserver) Option {
	return func(o *Orchestrator) *Orchestrator {
		o.observer = ob
		return o
	}
}

func WithRecorder(r Recorder) Option {
	return func(o *Orchestrator) *Orchestrator {
		o.recorder = r
		return o
	}
}

func New(service Service, anchorer Anchorer, options ...Option) *Orchestrator {
	o := &Orchestrator{
		service:     service,
		anchorer:    anchorer,
		clock:       clock.RealClock{},
		logger:      log.New(io.Discard),
		observer:    func(Stage, time.Duration, error) {},
		anchorDelay: DefaultAnchorDelay,
		ledgerLimit: DefaultLedgerLimit,
		subscribers: map[int]chan Session{},
	}
	for _, opt := range options {
		o = opt(o)
	}
	if o.ledgerLimit < 1 {
		o.ledgerLimit = DefaultLedgerLimit
	}
	return o
}

// Current returns the latest session. When no run has been started, it returns a session in Idle.
func (o *Orchestrator) Current() Session {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.current == nil {
		return Session{Stage: Idle}
	}
	return *o.current
}

// begin creates a new session, and makes it current.
func (o *Orchestrator) begin(ctx context.Context, src schema.Source) (context.Context, Session, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.current != nil && o.current.Stage.Active() {
		return ctx, Session{}, ErrRunInFlight
	}

	now := o.clock.Now()
	s := Session{
		Id:        uuid.NewString(),
		Source:    src.Name(),
		StartedAt: now,
		Stage:     Validating,
		Log: []Entry{
			{At: now, Level: Info, Message: fmt.Sprintf("Verified: %s", src.Name())},
			{At: now, Level: Info, Message: "Initializing Neural Pipeline..."},
		},
	}
	ctx, cancel := context.WithCancel(ctx)
	if o.cancel != nil {
		o.cancel()
	}
	o.current = &s
	o.cancel = cancel
	o.notifyLocked(s)
	return ctx, s, nil
}

// release cancels the context of the run, if it is still current.
func (o *Orchestrator) release(id string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.current != nil && o.current.Id == id && o.cancel != nil {
		o.cancel()
		o.cancel = nil
	}
}

// update changes the session if it is still current.
//
// When fn returns error, the session is left as it is and the error is returned.
func (o *Orchestrator) update(id string, fn func(*Session) error) (Session, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.current == nil || o.current.Id != id {
		return Session{}, ErrSuperseded
	}
	s := o.current.clone()
	if err := fn(&s); err != nil {
		return *o.current, err
	}
	o.current = &s
	o.notifyLocked(s)
	return s, nil
}

func (o *Orchestrator) entry(level Level, message string) Entry {
	return Entry{At: o.clock.Now(), Level: level, Message: message}
}

// advance moves the session to the stage, logging messages.
func (o *Orchestrator) advance(id string, stage Stage, messages ...string) (Session, error) {
	return o.update(id, func(s *Session) error {
		s.Stage = stage
		for _, m := range messages {
			s.Log = append(s.Log, o.entry(Info, m))
		}
		return nil
	})
}

// fail makes the run failed. It returns cause wrapped with kind.
func (o *Orchestrator) fail(id string, kind error, message string, cause error) (Session, error) {
	err := fmt.Errorf("%w: %w", kind, cause)
	s, uerr := o.update(id, func(s *Session) error {
		s.Stage = Failed
		s.Err = err
		s.Log = append(s.Log, o.entry(Critical, message))
		return nil
	})
	if uerr != nil {
		return s, uerr
	}
	o.logger.Error("analysis failed", "session", id, "error", err)
	o.record(s)
	return s, err
}

func (o *Orchestrator) record(s Session) {
	if o.recorder == nil {
		return
	}
	if err := o.recorder.Record(s); err != nil {
		o.logger.Warn("failed to record session", "session", s.Id, "error", err)
	}
}

// observe runs a stage and reports it to the observer.
func observe[T any](o *Orchestrator, stage Stage, f func() (T, error)) (T, error) {
	begin := o.clock.Now()
	v, err := f()
	o.observer(stage, o.clock.Since(begin), err)
	return v, err
}

// Run executes the pipeline for the ledger file, and blocks until it is settled.
//
// The file is validated before anything is sent. When it is invalid,
// no session is started and an error wrapping schema.ErrSchemaInvalid is returned.
//
// Only one run can be in flight. Otherwise it returns ErrRunInFlight.
// When a Gate is set and it is not online, it returns ErrServiceUnavailable.
//
// Ingest and analysis failures are terminal: the session gets Failed and
// the error wraps ErrIngestFailure or ErrAnalysisFailure.
// Failure of fetching the ledger is not. The session gets Complete with
// LedgerError.
//
// With auto-anchoring, a complete session is anchored after the delay.
// Anchoring failure does not fail the run. See Session.AnchorError.
//
// Returns
//
// - Session: the session at last.
//
// - error
func (o *Orchestrator) Run(ctx context.Context, src schema.Source) (Session, error) {
	if o.gate != nil && !o.gate.Online() {
		return Session{}, ErrServiceUnavailable
	}
	if err := schema.Validate(src).Err(); err != nil {
		return Session{}, err
	}

	ctx, sess, err := o.begin(ctx, src)
	if err != nil {
		return Session{}, err
	}
	id := sess.Id
	defer o.release(id)
	logger := o.logger.With("session", id)
	logger.Info("analysis started", "source", src.Name())

	// ingest
	if _, err := o.advance(id, Ingesting, "Ingesting structured data..."); err != nil {
		return sess, err
	}
	batch, err := observe(o, Ingesting, func() (analysis.Ingested, error) {
		b, err := o.service.Ingest(ctx, src)
		if err == nil && b.BatchId == "" {
			err = errors.New("no batch id is issued")
		}
		return b, err
	})
	if err != nil {
		return o.fail(id, ErrIngestFailure, fmt.Sprintf("Ingest Failed: %s", detailOf(err)), err)
	}
	if _, err := o.update(id, func(s *Session) error {
		s.Batch = &batch
		s.Log = append(s.Log, o.entry(Info, "Data vectorized. Generating topology..."))
		return nil
	}); err != nil {
		return sess, err
	}
	logger.Info("ingested", "batch", batch.BatchId, "records", batch.RecordCount)

	// analyze
	if _, err := o.advance(id, Analyzing, "Executing GNN Inference (PoEC v1.0)..."); err != nil {
		return sess, err
	}
	result, err := observe(o, Analyzing, func() (analysis.Result, error) {
		r, err := o.service.Analyze(ctx)
		if err != nil {
			return r, err
		}
		if !tripletOf(r).Complete() {
			return r, errors.New("hash triplet is incomplete")
		}
		return r, nil
	})
	if err != nil {
		return o.fail(id, ErrAnalysisFailure, fmt.Sprintf("Analysis failed: %s", detailOf(err)), err)
	}
	triplet := tripletOf(result)
	if _, err := o.update(id, func(s *Session) error {
		s.Result = &result
		s.Triplet = &triplet
		return nil
	}); err != nil {
		return sess, err
	}

	// fetch ledger
	if _, err := o.advance(id, FetchingLedger, "Acquiring forensic ledger..."); err != nil {
		return sess, err
	}
	txs, lerr := observe(o, FetchingLedger, func() ([]ledger.Transaction, error) {
		return o.service.Transactions(ctx, o.ledgerLimit)
	})
	sess, err = o.update(id, func(s *Session) error {
		if lerr != nil {
			s.LedgerError = fmt.Errorf("%w: %w", ErrLedgerFetchFailure, lerr)
			s.Log = append(s.Log, o.entry(Warn, fmt.Sprintf("Forensic ledger unavailable: %s", detailOf(lerr))))
		} else {
			s.Ledger = txs
		}
		s.Stage = Complete
		s.Log = append(s.Log, o.entry(Info, fmt.Sprintf("Cycle complete. %d anomalies detected.", len(result.Anomalies))))
		return nil
	})
	if err != nil {
		return sess, err
	}
	if lerr != nil {
		logger.Warn("failed to fetch ledger", "error", lerr)
	}
	logger.Info("analysis complete", "anomalies", len(result.Anomalies), "result_hash", triplet.ResultHash)
	o.record(sess)

	if !o.autoAnchor || o.anchorer == nil {
		return sess, nil
	}
	if !o.sleep(ctx, o.anchorDelay) {
		logger.Info("auto anchoring is cancelled")
		return o.Current(), nil
	}
	anchored, err := o.anchor(ctx, id)
	if err != nil && anchored.AnchorError != nil && errors.Is(err, anchored.AnchorError) {
		// the run is complete. the failure stays on the session.
		return anchored, nil
	}
	return anchored, err
}

// Anchor anchors the triplet of the current session.
//
// The session should be Complete. Otherwise, it returns ErrNotComplete.
// Anchoring a session which has been anchored is not an error:
// the ledger reports collision and the outcome says so.
func (o *Orchestrator) Anchor(ctx context.Context) (Session, error) {
	if o.anchorer == nil {
		return o.Current(), fmt.Errorf("%w: no proof ledger", ErrNotComplete)
	}
	return o.anchor(ctx, o.Current().Id)
}

func (o *Orchestrator) anchor(ctx context.Context, id string) (Session, error) {
	sess, err := o.update(id, func(s *Session) error {
		if s.Stage != Complete || s.Triplet == nil {
			return fmt.Errorf("%w: session is %s", ErrNotComplete, s.Stage)
		}
		s.Stage = Anchoring
		s.Log = append(s.Log, o.entry(Info, "Syncing with Ethereum Mainnet..."))
		return nil
	})
	if err != nil {
		if errors.Is(err, ErrSuperseded) {
			return o.Current(), fmt.Errorf("%w: %w", ErrNotComplete, err)
		}
		return sess, err
	}

	cid := ""
	if sess.Result != nil {
		cid = sess.Result.IpfsCid
	}
	out, aerr := observe(o, Anchoring, func() (proof.Outcome, error) {
		return o.anchorer.Anchor(ctx, *sess.Triplet, cid)
	})

	sess, err = o.update(id, func(s *Session) error {
		s.Stage = Complete
		if aerr != nil {
			s.AnchorError = aerr
			s.Log = append(s.Log, o.entry(Critical, fmt.Sprintf("Anchor Failed: %s", detailOf(aerr))))
			return nil
		}
		s.Anchor = &out
		s.AnchorError = nil
		if out.Collision() {
			s.Log = append(s.Log, o.entry(Info, "Hash collision: Evidence already on-chain."))
		} else {
			s.Log = append(s.Log, o.entry(Info, fmt.Sprintf("Anchored: Block %d", out.Response.BlockNumber)))
		}
		if out.Verified() {
			s.Log = append(s.Log, o.entry(Info, fmt.Sprintf("Verified on-chain: %s", out.Verification.OnChainHash)))
		} else if out.VerifyError != nil {
			s.Log = append(s.Log, o.entry(Warn, fmt.Sprintf("Verification pending: %s", detailOf(out.VerifyError))))
		}
		return nil
	})
	if err != nil {
		return sess, err
	}
	o.record(sess)
	if aerr != nil {
		o.logger.Error("anchoring failed", "session", id, "error", aerr)
		return sess, aerr
	}
	return sess, nil
}

// Reset discards the current session.
//
// A run in flight is cancelled, and its results are discarded.
func (o *Orchestrator) Reset() {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.cancel != nil {
		o.cancel()
		o.cancel = nil
	}
	o.current = nil
	o.notifyLocked(Session{Stage: Idle})
}

func (o *Orchestrator) sleep(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}
	timer := o.clock.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C():
		return true
	}
}

// Subscribe returns a channel receiving the session on every change.
//
// Slow subscribers miss intermediate changes, but always get the latest one.
// Call the returned function to unsubscribe. The channel is closed then.
func (o *Orchestrator) Subscribe() (<-chan Session, func()) {
	ch := make(chan Session, 1)

	o.mu.Lock()
	id := o.nextSubId
	o.nextSubId += 1
	o.subscribers[id] = ch
	o.mu.Unlock()

	once := sync.Once{}
	return ch, func() {
		once.Do(func() {
			o.mu.Lock()
			defer o.mu.Unlock()
			delete(o.subscribers, id)
			close(ch)
		})
	}
}

func (o *Orchestrator) notifyLocked(s Session) {
	for _, ch := range o.subscribers {
		select {
		case ch <- s:
			continue
		default:
		}
		select {
		case <-ch:
		default:
		}
		select {
		case ch <- s:
		default:
		}
	}
}

func tripletOf(r analysis.Result) types.Triplet {
	return types.Triplet{
		DataHash:   r.Snapshot.DataHash,
		ModelHash:  r.ModelHash,
		ResultHash: r.ResultsHash,
	}
}

// detailOf returns the message for users.
func detailOf(err error) string {
	if err == nil {
		return ""
	}
	var d interface{ Detail() string }
	if errors.As(err, &d) {
		if m := d.Detail(); m != "" {
			return m
		}
	}
	if m := err.Error(); m != "" {
		return m
	}
	return "Unknown server error"
}
