// Package render writes what poec knows in the shape for terminals.
package render

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/poec-forensics/console/pkg/api/types/analysis"
	"github.com/poec-forensics/console/pkg/pipeline"
	"github.com/poec-forensics/console/pkg/proof"
)

// Log writes session log entries, one for each line.
func Log(w io.Writer, entries []pipeline.Entry) {
	for _, e := range entries {
		fmt.Fprintln(w, e.String())
	}
}

// Anomalies writes anomalies, one for each line with its entities indented.
func Anomalies(w io.Writer, anomalies []analysis.Anomaly) {
	if len(anomalies) == 0 {
		fmt.Fprintln(w, "no anomalies.")
		return
	}
	for _, a := range anomalies {
		fmt.Fprintf(
			w, "%-6s %.2f  %s  %s\n",
			a.Confidence, a.Severity, a.AnomalyId, a.AnomalyType,
		)
		if a.Description != "" {
			fmt.Fprintf(w, "    %s\n", a.Description)
		}
		if 0 < len(a.EntitiesInvolved) {
			fmt.Fprintf(w, "    entities: %s\n", strings.Join(a.EntitiesInvolved, ", "))
		}
	}
}

// Outcome writes the result of anchoring.
func Outcome(w io.Writer, out proof.Outcome) {
	if out.Collision() {
		fmt.Fprintf(w, "already anchored: %s\n", out.Triplet.ResultHash)
	} else {
		fmt.Fprintf(w, "anchored: %s\n", out.Triplet.ResultHash)
	}
	if out.Response.BlockNumber != 0 {
		fmt.Fprintf(w, "  block:       %d\n", out.Response.BlockNumber)
	}
	if out.Response.TransactionHash != "" {
		fmt.Fprintf(w, "  transaction: %s\n", out.Response.TransactionHash)
	}
	switch {
	case out.Verified():
		fmt.Fprintf(w, "  verified:    %s\n", out.Verification.OnChainHash)
	case out.VerifyError != nil:
		fmt.Fprintf(w, "  verified:    pending (%s)\n", out.VerifyError)
	}
}

// Timestamp formats unix seconds of the ledger. Zero is "-".
func Timestamp(unix int64) string {
	if unix == 0 {
		return "-"
	}
	return time.Unix(unix, 0).UTC().Format(time.RFC3339)
}
