package common

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/charmbracelet/log"
	"github.com/poec-forensics/console/pkg/journal"
	"github.com/poec-forensics/console/pkg/liveness"
	"github.com/poec-forensics/console/pkg/metrics"
	"github.com/poec-forensics/console/pkg/pipeline"
	"github.com/poec-forensics/console/pkg/proof"
	"k8s.io/utils/clock"
)

// Core is the session orchestrator wired to the analysis service.
type Core struct {
	Monitor      *liveness.Monitor
	Proof        *proof.Client
	Orchestrator *pipeline.Orchestrator

	// Journal records sessions. nil when disabled.
	Journal *journal.Journal
}

type coreOption struct {
	clock      clock.Clock
	metrics    *metrics.Metrics
	noJournal  bool
	autoAnchor *bool
}

type CoreOption func(*coreOption) *coreOption

func WithClock(c clock.Clock) CoreOption {
	return func(co *coreOption) *coreOption {
		co.clock = c
		return co
	}
}

// WithMetrics makes the core report its activity.
func WithMetrics(m *metrics.Metrics) CoreOption {
	return func(co *coreOption) *coreOption {
		co.metrics = m
		return co
	}
}

// WithoutJournal disables the session journal.
func WithoutJournal() CoreOption {
	return func(co *coreOption) *coreOption {
		co.noJournal = true
		return co
	}
}

// WithAutoAnchor overrides autoAnchor of the profile.
func WithAutoAnchor(enabled bool) CoreOption {
	return func(co *coreOption) *coreOption {
		co.autoAnchor = &enabled
		return co
	}
}

// NewCore builds the core for the console.
//
// Close the core after use.
func NewCore(console Console, logger *log.Logger, options ...CoreOption) (*Core, error) {
	co := &coreOption{clock: clock.RealClock{}}
	for _, o := range options {
		co = o(co)
	}

	probe := console.Profile.Probe
	policy, err := probe.Policy(liveness.DefaultInterval)
	if err != nil {
		return nil, err
	}
	monitorOptions := []liveness.Option{
		liveness.WithClock(co.clock),
		liveness.WithPolicy(policy),
		liveness.WithLogger(logger.WithPrefix(logger.GetPrefix() + " liveness")),
	}
	if 0 < probe.Timeout {
		monitorOptions = append(monitorOptions, liveness.WithTimeout(probe.Timeout))
	}
	if 0 < probe.Attempts {
		monitorOptions = append(monitorOptions, liveness.WithMaxAttempts(probe.Attempts))
	}

	proofOptions := []proof.Option{
		proof.WithLogger(logger.WithPrefix(logger.GetPrefix() + " proof")),
	}
	pipelineOptions := []pipeline.Option{
		pipeline.WithClock(co.clock),
		pipeline.WithLogger(logger.WithPrefix(logger.GetPrefix() + " pipeline")),
		pipeline.WithLedgerLimit(console.Profile.LedgerLimit),
	}
	if m := co.metrics; m != nil {
		monitorOptions = append(monitorOptions, liveness.WithObserver(m.ObserveProbe))
		proofOptions = append(proofOptions, proof.WithObserver(m.ObserveAnchor))
		pipelineOptions = append(pipelineOptions, pipeline.WithObserver(m.ObserveStage))
	}

	autoAnchor := console.Profile.AutoAnchor
	if co.autoAnchor != nil {
		autoAnchor = *co.autoAnchor
	}
	if autoAnchor {
		pipelineOptions = append(pipelineOptions, pipeline.WithAutoAnchor(pipeline.DefaultAnchorDelay))
	}

	core := &Core{}
	if !co.noJournal && console.JournalPath != "" {
		j, err := OpenJournal(console.JournalPath)
		if err != nil {
			return nil, err
		}
		core.Journal = j
		pipelineOptions = append(pipelineOptions, pipeline.WithRecorder(j))
	}

	core.Monitor = liveness.New(console.Client, monitorOptions...)
	core.Proof = proof.New(console.Client, proofOptions...)
	core.Orchestrator = pipeline.New(
		console.Client, core.Proof,
		append(pipelineOptions, pipeline.WithGate(core.Monitor))...,
	)
	return core, nil
}

func (c *Core) Close() error {
	if c.Journal == nil {
		return nil
	}
	return c.Journal.Close()
}

// OpenJournal opens the journal at path, creating its directory.
func OpenJournal(path string) (*journal.Journal, error) {
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), os.FileMode(0700)); err != nil {
			return nil, fmt.Errorf("cannot create directory for journal: %w", err)
		}
	}
	j, err := journal.Open(path)
	if err != nil {
		return nil, fmt.Errorf("%w: journal at %s", err, path)
	}
	return j, nil
}
