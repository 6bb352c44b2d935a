package verify

import (
	"context"
	"fmt"

	"github.com/charmbracelet/log"
	"github.com/poec-forensics/console/cmd/poec/subcommands/common"
	"github.com/poec-forensics/console/cmd/poec/subcommands/internal/render"
	"github.com/poec-forensics/console/pkg/proof"
	"github.com/youta-t/flarc"
)

const ARG_HASH = "RESULT_HASH"

func New() (flarc.Command, error) {
	return flarc.NewCommand(
		"Look up an anchored result hash on the proof ledger.",
		struct{}{},
		flarc.Args{
			{Name: ARG_HASH, Required: true, Help: "result hash of an analysis."},
		},
		common.NewTask(Task),
		flarc.WithDescription(`
Verify that a result hash is recorded on the proof ledger, and show the archived
summary of the analysis when it has been archived.

This needs no session. Anyone who has a result hash can verify it.
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
	hash := cl.Args()[ARG_HASH][0]
	client := proof.New(console.Client, proof.WithLogger(logger))

	rec, err := client.Lookup(ctx, hash)
	if err != nil {
		return err
	}

	w := cl.Stdout()
	v := rec.Verification
	fmt.Fprintf(w, "verified:  %t\n", v.Verified)
	fmt.Fprintf(w, "on chain:  %s\n", v.OnChainHash)
	fmt.Fprintf(w, "timestamp: %s\n", render.Timestamp(v.Timestamp))
	if v.IpfsCid != "" {
		fmt.Fprintf(w, "archive:   %s\n", v.IpfsCid)
	}

	switch {
	case rec.Archive != nil:
		a := rec.Archive
		fmt.Fprintln(w)
		if a.Summary != nil {
			fmt.Fprintf(w, "transactions: %d (volume %.2f)\n", a.Summary.TotalTxs, a.Summary.TotalVolume)
		}
		fmt.Fprintf(w, "anomalies:    %d\n", a.AnomalyCount())
		if a.ModelHash != "" {
			fmt.Fprintf(w, "model hash:   %s\n", a.ModelHash)
		}
		if a.Snapshot != nil {
			fmt.Fprintf(w, "period:       %s - %s\n", a.Snapshot.StartDate, a.Snapshot.EndDate)
		}
	case rec.ArchiveError != nil:
		fmt.Fprintf(w, "\narchive is unavailable: %s\n", rec.ArchiveError)
	}
	return nil
}
