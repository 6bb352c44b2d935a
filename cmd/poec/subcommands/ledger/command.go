package ledger

import (
	"context"
	"errors"
	"fmt"
	"text/tabwriter"

	"github.com/charmbracelet/log"
	"github.com/poec-forensics/console/cmd/poec/subcommands/common"
	apiledger "github.com/poec-forensics/console/pkg/api/types/ledger"
	"github.com/poec-forensics/console/pkg/pipeline"
	"github.com/youta-t/flarc"
)

type Flags struct {
	Limit int `flag:"limit" alias:"l" metavar:"N" help:"fetch up to N transactions. 0 is the limit of the profile."`
}

const ARG_TERM = "TERM"

func New() (flarc.Command, error) {
	return flarc.NewCommand(
		"Search the forensic ledger.",
		Flags{},
		flarc.Args{
			{
				Name: ARG_TERM, Required: false,
				Help: "text to be searched in sources, targets and transaction ids. Case-insensitive.",
			},
		},
		common.NewTask(Task),
		flarc.WithDescription(`
Show raw transactions of the ledger last analysed by the service.

With TERM, transactions whose source, target or id contains TERM are shown.
`),
	)
}

func Task(
	ctx context.Context,
	logger *log.Logger,
	console common.Console,
	cl flarc.Commandline[Flags],
	_ []any,
) error {
	limit := cl.Flags().Limit
	if limit < 0 {
		return errors.Join(flarc.ErrUsage, errors.New("--limit should be 0 or positive"))
	}
	if limit == 0 {
		limit = console.Profile.LedgerLimit
	}
	if limit == 0 {
		limit = pipeline.DefaultLedgerLimit
	}

	term := ""
	if t := cl.Args()[ARG_TERM]; 0 < len(t) {
		term = t[0]
	}

	txs, err := console.Client.Transactions(ctx, limit)
	if err != nil {
		return fmt.Errorf("%w: %w", pipeline.ErrLedgerFetchFailure, err)
	}
	found := apiledger.Search(txs, term)
	logger.Debug("ledger is searched", "term", term, "fetched", len(txs), "found", len(found))

	tw := tabwriter.NewWriter(cl.Stdout(), 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tSOURCE\tTARGET\tAMOUNT\tTIMESTAMP\tTYPE")
	for _, tx := range found {
		fmt.Fprintf(
			tw, "%s\t%s\t%s\t%.2f\t%s\t%s\n",
			tx.TransactionId, tx.Source, tx.Target, tx.Amount, tx.Timestamp, tx.Type,
		)
	}
	if err := tw.Flush(); err != nil {
		return err
	}
	fmt.Fprintf(cl.Stderr(), "%d of %d transactions\n", len(found), len(txs))
	return nil
}
