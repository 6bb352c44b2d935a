package sessions

import (
	"context"
	"errors"
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/charmbracelet/log"
	"github.com/poec-forensics/console/cmd/poec/subcommands/common"
	"github.com/poec-forensics/console/pkg/journal"
	"github.com/youta-t/flarc"
)

type Flags struct {
	Limit int `flag:"limit" alias:"l" metavar:"N" help:"show up to N sessions, latest first"`
}

func New() (flarc.Command, error) {
	return flarc.NewCommand(
		"List analysis sessions in the journal.",
		Flags{Limit: 20},
		flarc.Args{},
		common.NewTask(Task),
		flarc.WithDescription(`
List analysis sessions recorded in the journal, latest first.

The ANCHOR column shows the block where the result hash is anchored,
"(already)" for a result which was on the ledger before, or "-".
`),
	)
}

func Task(
	ctx context.Context,
	_ *log.Logger,
	console common.Console,
	cl flarc.Commandline[Flags],
	_ []any,
) error {
	limit := cl.Flags().Limit
	if limit <= 0 {
		return errors.Join(flarc.ErrUsage, errors.New("--limit should be positive"))
	}

	j, err := common.OpenJournal(console.JournalPath)
	if err != nil {
		return err
	}
	defer j.Close()

	entries, err := j.List(ctx, limit)
	if err != nil {
		return err
	}

	tw := tabwriter.NewWriter(cl.Stdout(), 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "SESSION\tSTARTED\tSTAGE\tSOURCE\tANOMALIES\tANCHOR")
	for _, e := range entries {
		fmt.Fprintf(
			tw, "%s\t%s\t%s\t%s\t%d\t%s\n",
			e.SessionId, e.StartedAt.Local().Format(time.DateTime), e.Stage, e.Source, e.Anomalies, anchorOf(e),
		)
	}
	return tw.Flush()
}

func anchorOf(e journal.Entry) string {
	switch a := e.Anchor; {
	case a == nil:
		return "-"
	case a.Collision():
		return "(already)"
	default:
		return fmt.Sprintf("block %d", a.BlockNumber)
	}
}
