package analyze

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	pb "github.com/cheggaaa/pb/v3"
	"github.com/charmbracelet/log"
	"github.com/poec-forensics/console/cmd/poec/subcommands/common"
	"github.com/poec-forensics/console/cmd/poec/subcommands/internal/render"
	"github.com/poec-forensics/console/pkg/api/types/analysis"
	"github.com/poec-forensics/console/pkg/liveness"
	"github.com/poec-forensics/console/pkg/pipeline"
	"github.com/poec-forensics/console/pkg/schema"
	"github.com/youta-t/flarc"
)

type Flags struct {
	Anchor        bool   `flag:"anchor" alias:"a" help:"anchor the result to the proof ledger when the analysis is complete"`
	Context       string `flag:"context" alias:"c" metavar:"CONTEXT_ID" help:"switch the economic context before the analysis"`
	MinConfidence string `flag:"min-confidence" metavar:"all|low|medium|high" help:"show anomalies with this confidence or stronger"`
	Wait          bool   `flag:"wait" alias:"w" help:"wait for the service to get online before the analysis"`
}

const ARG_FILE = "FILE"

// Option is for tests.
type Option struct {
	progress io.Writer
	core     []common.CoreOption
}

func WithProgressOut(w io.Writer) func(*Option) *Option {
	return func(o *Option) *Option {
		o.progress = w
		return o
	}
}

func WithCoreOptions(co ...common.CoreOption) func(*Option) *Option {
	return func(o *Option) *Option {
		o.core = append(o.core, co...)
		return o
	}
}

func New(options ...func(*Option) *Option) (flarc.Command, error) {
	return flarc.NewCommand(
		"Analyse a ledger file.",
		Flags{MinConfidence: "all"},
		flarc.Args{
			{
				Name: ARG_FILE, Required: true,
				Help: "CSV file of transactions, with source, target, amount and timestamp columns.",
			},
		},
		common.NewTask(Task(options...)),
		flarc.WithDescription(`
Upload a ledger file to the analysis service and detect anomalies in it.

The file is validated locally before upload. Column names are matched
case-insensitively, and well-known synonyms (sender, receiver, value, date, ...)
are accepted.

The session is recorded in the journal. With --anchor, or autoAnchor in the profile,
the hash triplet of the result is committed to the proof ledger.
`),
	)
}

const uploadTemplate pb.ProgressBarTemplate = `{{with string . "prefix"}}{{.}} {{end}}{{counters . }} {{bar . }} {{percent . }} {{speed . }}`

// progressSource reports reading the source with a bar.
type progressSource struct {
	schema.Source
	bar *pb.ProgressBar
}

func (p progressSource) Open() (io.ReadCloser, error) {
	r, err := p.Source.Open()
	if err != nil {
		return nil, err
	}
	// the source is read more than once: validation, then upload.
	p.bar.SetCurrent(0)
	return p.bar.NewProxyReader(r), nil
}

func Task(options ...func(*Option) *Option) common.Task[Flags] {
	return func(
		ctx context.Context,
		logger *log.Logger,
		console common.Console,
		cl flarc.Commandline[Flags],
		_ []any,
	) error {
		opt := &Option{progress: cl.Stderr()}
		for _, o := range options {
			opt = o(opt)
		}
		flags := cl.Flags()

		minConfidence, ok := analysis.ParseConfidence(flags.MinConfidence)
		if !ok {
			return errors.Join(
				flarc.ErrUsage,
				fmt.Errorf("--min-confidence: unknown tier %q", flags.MinConfidence),
			)
		}

		path := cl.Args()[ARG_FILE][0]
		stat, err := os.Stat(path)
		if err != nil {
			return err
		}

		coreOptions := opt.core
		if flags.Anchor {
			// anchored explicitly below, without delay.
			coreOptions = append([]common.CoreOption{common.WithAutoAnchor(false)}, coreOptions...)
		}
		core, err := common.NewCore(console, logger, coreOptions...)
		if err != nil {
			return err
		}
		defer core.Close()

		if err := awake(ctx, core.Monitor, flags.Wait); err != nil {
			return err
		}

		if flags.Context != "" {
			sw, err := console.Client.SwitchContext(ctx, flags.Context)
			if err != nil {
				return err
			}
			logger.Info("context is switched", "context", flags.Context, "message", sw.Message)
		}

		bar := pb.New64(stat.Size()).SetTemplate(uploadTemplate)
		bar.Set(pb.Bytes, true)
		bar.Set("prefix", path)
		bar.SetWriter(opt.progress)
		bar.Start()

		w := cl.Stdout()
		printed := 0
		updates, unsubscribe := core.Orchestrator.Subscribe()
		drained := make(chan struct{})
		go func() {
			defer close(drained)
			for s := range updates {
				if len(s.Log) < printed {
					// another session
					printed = 0
				}
				render.Log(w, s.Log[printed:])
				printed = len(s.Log)
			}
		}()

		session, err := core.Orchestrator.Run(ctx, progressSource{Source: schema.File(path), bar: bar})
		bar.Finish()
		if err == nil && flags.Anchor {
			anchored, aerr := core.Orchestrator.Anchor(ctx)
			if aerr == nil || anchored.AnchorError != nil {
				session = anchored
			} else {
				err = aerr
			}
		}
		unsubscribe()
		<-drained
		if printed <= len(session.Log) {
			render.Log(w, session.Log[printed:])
		}

		if err != nil {
			return err
		}

		fmt.Fprintln(w)
		fmt.Fprintf(w, "session: %s\n", session.Id)
		if session.Batch != nil {
			fmt.Fprintf(w, "records: %d (batch %s)\n", session.Batch.RecordCount, session.Batch.BatchId)
		}
		if t := session.Triplet; t != nil {
			fmt.Fprintf(w, "data hash:   %s\n", t.DataHash)
			fmt.Fprintf(w, "model hash:  %s\n", t.ModelHash)
			fmt.Fprintf(w, "result hash: %s\n", t.ResultHash)
		}
		if session.Degraded() {
			fmt.Fprintf(w, "ledger view is unavailable: %s\n", session.LedgerError)
		} else {
			fmt.Fprintf(w, "ledger: %d transactions\n", len(session.Ledger))
		}
		fmt.Fprintln(w)
		render.Anomalies(w, analysis.FilterByConfidence(session.Anomalies(), minConfidence))

		if session.Anchor != nil {
			fmt.Fprintln(w)
			render.Outcome(w, *session.Anchor)
		}
		if session.AnchorError != nil {
			return session.AnchorError
		}
		return nil
	}
}

// awake makes the monitor settled.
func awake(ctx context.Context, m *liveness.Monitor, wait bool) error {
	var s liveness.Status
	if wait {
		st, err := m.Run(ctx)
		if err != nil {
			return err
		}
		s = st
	} else {
		s = m.Probe(ctx)
	}
	if s.State != liveness.Online {
		if s.LastError != nil {
			return fmt.Errorf("%w: %w", pipeline.ErrServiceUnavailable, s.LastError)
		}
		return pipeline.ErrServiceUnavailable
	}
	return nil
}
