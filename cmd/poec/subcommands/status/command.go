package status

import (
	"context"
	"fmt"
	"io"

	pb "github.com/cheggaaa/pb/v3"
	"github.com/charmbracelet/log"
	"github.com/poec-forensics/console/cmd/poec/subcommands/common"
	apicontexts "github.com/poec-forensics/console/pkg/api/types/contexts"
	apiproof "github.com/poec-forensics/console/pkg/api/types/proof"
	"github.com/poec-forensics/console/pkg/liveness"
	"github.com/poec-forensics/console/pkg/pipeline"
	"github.com/youta-t/flarc"
	"golang.org/x/sync/errgroup"
)

type Flags struct {
	Wait bool `flag:"wait" alias:"w" help:"keep probing until the service is online or the attempts run out"`
}

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
		"Show the analysis service and its ledger connectivity.",
		Flags{},
		flarc.Args{},
		common.NewTask(Task(options...)),
		flarc.WithDescription(`
Show whether the analysis service is online, its active economic context,
and the connectivity of the service to the blockchain ledger.

With --wait, it keeps probing on the backoff of the profile ("probe" settings)
until the service gets online, showing a wake-up progress bar.
`),
	)
}

const wakeTemplate pb.ProgressBarTemplate = `{{with string . "prefix"}}{{.}} {{end}}{{bar . }} {{percent . }}`

// WakeProgress is progress of waking up the service, in percent.
//
// It grows with failed attempts and stalls at 95 until the service gets online.
func WakeProgress(s liveness.Status, maxAttempts int) int64 {
	if s.State == liveness.Online {
		return 100
	}
	if maxAttempts < 1 {
		maxAttempts = 1
	}
	p := int64(s.Attempts) * 95 / int64(maxAttempts)
	return min(p, 95)
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

		core, err := common.NewCore(console, logger, append([]common.CoreOption{common.WithoutJournal()}, opt.core...)...)
		if err != nil {
			return err
		}
		defer core.Close()

		var status liveness.Status
		if cl.Flags().Wait {
			status, err = wait(ctx, core.Monitor, console.Profile.Probe.Attempts, opt.progress)
			if err != nil {
				return err
			}
		} else {
			status = core.Monitor.Probe(ctx)
		}

		w := cl.Stdout()
		fmt.Fprintf(w, "service: %s (%s)\n", console.Profile.ApiRoot, status.State)
		if status.State != liveness.Online {
			if status.LastError != nil {
				fmt.Fprintf(w, "         %s\n", status.LastError)
			}
			return fmt.Errorf("%w: %s", pipeline.ErrServiceUnavailable, console.Profile.ApiRoot)
		}

		var contexts apicontexts.Profiles
		var ledger apiproof.LedgerStatus
		eg, gctx := errgroup.WithContext(ctx)
		eg.Go(func() error {
			c, err := console.Client.GetContexts(gctx)
			contexts = c
			return err
		})
		eg.Go(func() error {
			s, err := core.Proof.Status(gctx)
			ledger = s
			return err
		})
		if err := eg.Wait(); err != nil {
			return err
		}

		active := contexts.Active.ContextId
		if name := contexts.Available[active]; name != "" {
			active = fmt.Sprintf("%s (%s)", active, name)
		}
		fmt.Fprintf(w, "context: %s\n", active)
		fmt.Fprintf(w, "ledger:  %s", ledger.Status)
		if ledger.Network != "" {
			fmt.Fprintf(w, " on %s", ledger.Network)
		}
		fmt.Fprintln(w)
		if ledger.WalletAddress != "" {
			fmt.Fprintf(w, "  wallet:   %s (%.4f ETH)\n", ledger.WalletAddress, ledger.BalanceEth)
		}
		if ledger.ContractAddress != "" {
			fmt.Fprintf(w, "  contract: %s\n", ledger.ContractAddress)
		}
		return nil
	}
}

func wait(ctx context.Context, m *liveness.Monitor, attempts int, progress io.Writer) (liveness.Status, error) {
	if attempts < 1 {
		attempts = liveness.DefaultMaxAttempts
	}

	bar := wakeTemplate.New(100)
	bar.SetWriter(progress)
	bar.Set("prefix", "waking up the service:")
	bar.Start()
	defer bar.Finish()

	updates, unsubscribe := m.Subscribe()
	drained := make(chan struct{})
	go func() {
		defer close(drained)
		for s := range updates {
			bar.SetCurrent(WakeProgress(s, attempts))
		}
	}()

	status, err := m.Run(ctx)
	unsubscribe()
	<-drained
	bar.SetCurrent(WakeProgress(status, attempts))
	return status, err
}
