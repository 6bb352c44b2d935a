package watch

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/charmbracelet/log"
	"github.com/poec-forensics/console/cmd/poec/subcommands/common"
	"github.com/poec-forensics/console/pkg/liveness"
	"github.com/poec-forensics/console/pkg/pipeline"
	"github.com/poec-forensics/console/pkg/schema"
	"github.com/poec-forensics/console/pkg/utils/filewatch"
	"github.com/youta-t/flarc"
)

type Flags struct {
	Pattern string        `flag:"pattern" alias:"p" metavar:"GLOB" help:"file names to be analysed"`
	Settle  time.Duration `flag:"settle" metavar:"DURATION" help:"files are analysed after they stay unchanged for DURATION"`
	Count   int           `flag:"count" alias:"n" metavar:"N" help:"exit after N files are analysed. 0 means forever."`
	Anchor  bool          `flag:"anchor" alias:"a" help:"anchor results of complete analyses"`
}

const ARG_DIR = "DIR"

// Option is for tests.
type Option struct {
	watching func()
}

// WithWatching sets a callback called when watching has started.
func WithWatching(f func()) func(*Option) *Option {
	return func(o *Option) *Option {
		o.watching = f
		return o
	}
}

func New(options ...func(*Option) *Option) (flarc.Command, error) {
	return flarc.NewCommand(
		"Analyse ledger files dropped into a directory.",
		Flags{Pattern: "*.csv", Settle: 2 * time.Second},
		flarc.Args{
			{Name: ARG_DIR, Required: true, Help: "directory to be watched."},
		},
		common.NewTask(Task(options...)),
		flarc.WithDescription(`
Watch a directory, and analyse ledger files created or written in it one by one.

A file is picked up when it has been unchanged for --settle. Files arriving
during an analysis wait for it. Failures are logged, and watching goes on.

When the service goes offline, the next file waits for the service to get back,
probing on the backoff of the profile.
`),
	)
}

func Task(options ...func(*Option) *Option) common.Task[Flags] {
	opt := &Option{watching: func() {}}
	for _, o := range options {
		opt = o(opt)
	}
	return func(
		ctx context.Context,
		logger *log.Logger,
		console common.Console,
		cl flarc.Commandline[Flags],
		_ []any,
	) error {
		return watch(ctx, logger, console, cl, opt)
	}
}

func watch(
	ctx context.Context,
	logger *log.Logger,
	console common.Console,
	cl flarc.Commandline[Flags],
	opt *Option,
) error {
	flags := cl.Flags()
	if _, err := filepath.Match(flags.Pattern, ""); err != nil {
		return errors.Join(flarc.ErrUsage, fmt.Errorf("--pattern: %w", err))
	}
	if flags.Count < 0 {
		return errors.Join(flarc.ErrUsage, errors.New("--count should be 0 or positive"))
	}
	dir := cl.Args()[ARG_DIR][0]
	if s, err := os.Stat(dir); err != nil {
		return err
	} else if !s.IsDir() {
		return errors.Join(flarc.ErrUsage, fmt.Errorf("%s is not a directory", dir))
	}

	core, err := common.NewCore(console, logger, common.WithAutoAnchor(false))
	if err != nil {
		return err
	}
	defer core.Close()

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	arrivals, err := filewatch.Arrivals(ctx, dir, flags.Settle, func(p string) bool {
		ok, _ := filepath.Match(flags.Pattern, filepath.Base(p))
		return ok
	})
	if err != nil {
		return fmt.Errorf("cannot watch %s: %w", dir, err)
	}
	logger.Info("watching", "dir", dir, "pattern", flags.Pattern)
	opt.watching()

	w := cl.Stdout()
	done := 0
	for path := range arrivals {
		if !online(ctx, core.Monitor, logger) {
			if ctx.Err() != nil {
				break
			}
			fmt.Fprintf(w, "%s: skipped (%s)\n", path, pipeline.ErrServiceUnavailable)
			continue
		}

		session, err := core.Orchestrator.Run(ctx, schema.File(path))
		if err == nil && flags.Anchor {
			session, err = core.Orchestrator.Anchor(ctx)
		}
		switch {
		case errors.Is(err, context.Canceled) && ctx.Err() != nil:
			return nil
		case err != nil:
			fmt.Fprintf(w, "%s: %s\n", path, err)
			if !errors.Is(err, schema.ErrSchemaInvalid) {
				// the service may have gone. probe again for the next file.
				core.Monitor.Reset()
			}
		default:
			fmt.Fprintf(
				w, "%s: session %s, %d anomalies, result hash %s\n",
				path, session.Id, len(session.Anomalies()), session.Triplet.ResultHash,
			)
		}

		done += 1
		if 0 < flags.Count && flags.Count <= done {
			break
		}
	}
	return nil
}

// online brings the monitor online, waiting for the service when it has gone offline.
func online(ctx context.Context, m *liveness.Monitor, logger *log.Logger) bool {
	if m.Online() {
		return true
	}
	if m.Status().State == liveness.Offline {
		m.Reset()
	}
	s, err := m.Run(ctx)
	if err != nil {
		logger.Warn("liveness probing is interrupted", "error", err)
		return false
	}
	return s.State == liveness.Online
}
