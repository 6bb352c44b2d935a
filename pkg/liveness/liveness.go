// Package liveness watches whether the analysis service is reachable.
//
// Monitor probes the service root on a bounded backoff.
// It is "checking" until the service answers ("online") or the attempt
// budget is exhausted ("offline"). Both are terminal until Reset.
package liveness

import (
	"context"
	"errors"
	"io"
	"sync"
	"sync/atomic"
	"time"

	"github.com/charmbracelet/log"
	"github.com/poec-forensics/console/pkg/loop"
	"github.com/poec-forensics/console/pkg/utils/retry"
	"k8s.io/utils/clock"
)

const (
	DefaultTimeout     = 5 * time.Second
	DefaultInterval    = 5 * time.Second
	DefaultMaxAttempts = 20
)

var ErrRunning = errors.New("liveness monitor is already running")

type State int

const (
	Checking State = iota
	Online
	Offline
)

func (s State) String() string {
	switch s {
	case Checking:
		return "checking"
	case Online:
		return "online"
	case Offline:
		return "offline"
	default:
		return "unknown"
	}
}

// Status is a snapshot of Monitor.
type Status struct {
	State State

	// Attempts is count of consecutive failed probes.
	Attempts int

	// LastCheck is when the last probe has been finished. Zero before the first probe.
	LastCheck time.Time

	// LastError is the cause of the last failed probe.
	LastError error
}

// Prober checks reachability of the service once.
type Prober interface {
	Ping(ctx context.Context) error
}

type ProberFunc func(ctx context.Context) error

func (f ProberFunc) Ping(ctx context.Context) error {
	return f(ctx)
}

// ProbeObserver is notified of each probe result.
type ProbeObserver func(ok bool, elapsed time.Duration)

type Monitor struct {
	prober      Prober
	clock       clock.Clock
	timeout     time.Duration
	policy      retry.Policy
	maxAttempts int
	logger      *log.Logger
	observer    ProbeObserver

	running atomic.Bool

	mu          sync.Mutex
	status      Status
	subscribers map[int]chan Status
	nextSubId   int
}

type Option func(*Monitor) *Monitor

func WithClock(c clock.Clock) Option {
	return func(m *Monitor) *Monitor {
		m.clock = c
		return m
	}
}

// WithTimeout sets the hard timeout of each probe.
func WithTimeout(d time.Duration) Option {
	return func(m *Monitor) *Monitor {
		m.timeout = d
		return m
	}
}

// WithPolicy sets the interval between probes.
func WithPolicy(p retry.Policy) Option {
	return func(m *Monitor) *Monitor {
		m.policy = p
		return m
	}
}

// WithMaxAttempts sets the ceiling of failed probes before going offline.
func WithMaxAttempts(n int) Option {
	return func(m *Monitor) *Monitor {
		m.maxAttempts = n
		return m
	}
}

func WithLogger(l *log.Logger) Option {
	return func(m *Monitor) *Monitor {
		m.logger = l
		return m
	}
}

func WithObserver(o ProbeObserver) Option {
	return func(m *Monitor) *Monitor {
		m.observer = o
		return m
	}
}

// New creates a Monitor in "checking" state. It does not probe until Probe, Run or Start is called.
func New(prober Prober, options ...Option) *Monitor {
	m := &Monitor{
		prober:      prober,
		clock:       clock.RealClock{},
		timeout:     DefaultTimeout,
		policy:      retry.Static(DefaultInterval),
		maxAttempts: DefaultMaxAttempts,
		logger:      log.New(io.Discard),
		observer:    func(bool, time.Duration) {},
		subscribers: map[int]chan Status{},
	}
	for _, o := range options {
		m = o(m)
	}
	if m.maxAttempts < 1 {
		m.maxAttempts = 1
	}
	return m
}

func (m *Monitor) Status() Status {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.status
}

// Online tells the last known state is online.
func (m *Monitor) Online() bool {
	return m.Status().State == Online
}

// Probe checks the service once, and updates the state.
//
// When the monitor is not "checking", it does not probe and returns the current status.
//
// Network errors, non-success responses and timeouts are all failures.
// When ctx is done during the probe, the result is discarded.
func (m *Monitor) Probe(ctx context.Context) Status {
	if s := m.Status(); s.State != Checking {
		return s
	}

	pctx, cancel := context.WithTimeout(ctx, m.timeout)
	defer cancel()

	begin := m.clock.Now()
	err := m.prober.Ping(pctx)
	m.observer(err == nil, m.clock.Since(begin))

	if err != nil && ctx.Err() != nil {
		return m.Status()
	}

	m.mu.Lock()
	if m.status.State != Checking {
		// reset or settled by others meanwhile
		s := m.status
		m.mu.Unlock()
		return s
	}
	m.status.LastCheck = m.clock.Now()
	if err == nil {
		m.status.State = Online
		m.status.LastError = nil
	} else {
		m.status.Attempts += 1
		m.status.LastError = err
		if m.maxAttempts <= m.status.Attempts {
			m.status.State = Offline
		}
	}
	s := m.status
	m.mu.Unlock()

	switch s.State {
	case Online:
		m.logger.Info("service is online")
	case Checking:
		m.logger.Warn("service ping failed", "attempt", s.Attempts, "of", m.maxAttempts, "error", err)
	case Offline:
		m.logger.Warn("service ping failed", "attempt", s.Attempts, "of", m.maxAttempts, "error", err)
		m.logger.Error("service is offline. give up probing")
	}
	m.notify(s)
	return s
}

// Run probes repeatedly until the monitor gets online or offline, and blocks meanwhile.
//
// It returns the settled status.
// When ctx is done before settled, it returns ctx.Err() with the last status.
func (m *Monitor) Run(ctx context.Context) (Status, error) {
	if !m.running.CompareAndSwap(false, true) {
		return m.Status(), ErrRunning
	}
	defer m.running.Store(false)

	return loop.Start(
		ctx, m.Status(),
		func(ctx context.Context, _ Status) (Status, loop.Next) {
			s := m.Probe(ctx)
			if s.State != Checking {
				return s, loop.Break(nil)
			}
			return s, loop.Continue(m.policy(s.Attempts))
		},
		loop.WithClock(m.clock),
	)
}

// Start runs Run in background. Cancel the handle to stop probing.
func (m *Monitor) Start(ctx context.Context) *loop.Handle[Status] {
	return loop.Go(ctx, Status{}, func(ctx context.Context, _ Status) (Status, loop.Next) {
		s, err := m.Run(ctx)
		return s, loop.Break(err)
	})
}

// Recheck pings the online service once more.
//
// While the service answers, the monitor stays online.
// Otherwise the monitor gets back to "checking" with the failure counted,
// and Run should be called to settle it.
// A monitor not online is left as it is: leaving "offline" needs Reset.
func (m *Monitor) Recheck(ctx context.Context) Status {
	if s := m.Status(); s.State != Online {
		return s
	}

	pctx, cancel := context.WithTimeout(ctx, m.timeout)
	defer cancel()

	begin := m.clock.Now()
	err := m.prober.Ping(pctx)
	m.observer(err == nil, m.clock.Since(begin))

	if err != nil && ctx.Err() != nil {
		return m.Status()
	}

	m.mu.Lock()
	if m.status.State != Online {
		s := m.status
		m.mu.Unlock()
		return s
	}
	m.status.LastCheck = m.clock.Now()
	if err != nil {
		m.status.State = Checking
		m.status.Attempts = 1
		m.status.LastError = err
		if m.maxAttempts <= m.status.Attempts {
			m.status.State = Offline
		}
	}
	s := m.status
	m.mu.Unlock()

	if err == nil {
		return s
	}
	m.logger.Warn("service ping failed", "attempt", s.Attempts, "of", m.maxAttempts, "error", err)
	if s.State == Offline {
		m.logger.Error("service is offline. give up probing")
	}
	m.notify(s)
	return s
}

// Reset puts the monitor back to "checking" with no failed attempts.
func (m *Monitor) Reset() {
	m.mu.Lock()
	m.status = Status{State: Checking}
	s := m.status
	m.mu.Unlock()

	m.logger.Info("liveness is reset")
	m.notify(s)
}

// Subscribe returns a channel receiving status on every change.
//
// Slow subscribers miss intermediate changes, but always get the latest one.
// Call the returned function to unsubscribe. The channel is closed then.
func (m *Monitor) Subscribe() (<-chan Status, func()) {
	ch := make(chan Status, 1)

	m.mu.Lock()
	id := m.nextSubId
	m.nextSubId += 1
	m.subscribers[id] = ch
	m.mu.Unlock()

	once := sync.Once{}
	return ch, func() {
		once.Do(func() {
			m.mu.Lock()
			defer m.mu.Unlock()
			delete(m.subscribers, id)
			close(ch)
		})
	}
}

func (m *Monitor) notify(s Status) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, ch := range m.subscribers {
		select {
		case ch <- s:
			continue
		default:
		}
		// drop the stale one
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
