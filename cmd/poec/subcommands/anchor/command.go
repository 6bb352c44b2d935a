package anchor

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/charmbracelet/log"
	"github.com/poec-forensics/console/cmd/poec/subcommands/common"
	"github.com/poec-forensics/console/cmd/poec/subcommands/internal/render"
	"github.com/poec-forensics/console/pkg/journal"
	"github.com/poec-forensics/console/pkg/pipeline"
	"github.com/youta-t/flarc"
)

const ARG_SESSION_ID = "SESSION_ID"

func New() (flarc.Command, error) {
	return flarc.NewCommand(
		"Anchor an analysis result to the proof ledger.",
		struct{}{},
		flarc.Args{
			{
				Name: ARG_SESSION_ID, Required: false,
				Help: "session to be anchored. The latest complete session by default.",
			},
		},
		common.NewTask(Task),
		flarc.WithDescription(`
Commit the hash triplet (data, model and result hashes) of an analysis session
in the journal to the proof ledger, and verify it.

Anchoring a result which is already on the ledger is not an error.
It is reported as "already anchored".
`),
	)
}

func Task(
	ctx context.Context,
	logger *log.Logger,
	console common.Console,
	cl flarc.Commandline[struct{}],
	_ []any,
) error {
	core, err := common.NewCore(console, logger)
	if err != nil {
		return err
	}
	defer core.Close()
	if core.Journal == nil {
		return fmt.Errorf("%w: journal is disabled", pipeline.ErrNotComplete)
	}

	var entry journal.Entry
	if ids := cl.Args()[ARG_SESSION_ID]; 0 < len(ids) {
		entry, err = core.Journal.Get(ctx, ids[0])
	} else {
		entry, err = core.Journal.LastComplete(ctx)
	}
	if errors.Is(err, journal.ErrNotFound) {
		return fmt.Errorf("%w: %w", pipeline.ErrNotComplete, err)
	} else if err != nil {
		return err
	}
	if entry.Stage != pipeline.Complete.String() || !entry.Triplet.Complete() {
		return fmt.Errorf("%w: session %s is %s", pipeline.ErrNotComplete, entry.SessionId, entry.Stage)
	}

	out, err := core.Proof.Anchor(ctx, entry.Triplet, entry.IpfsCid)
	if err != nil {
		return err
	}
	if err := core.Journal.RecordAnchor(ctx, out, time.Now()); err != nil {
		logger.Warn("failed to record anchoring", "session", entry.SessionId, "error", err)
	}

	fmt.Fprintf(cl.Stdout(), "session: %s\n", entry.SessionId)
	render.Outcome(cl.Stdout(), out)
	return nil
}
