package testutils

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/poec-forensics/console/pkg/api/types/analysis"
	types "github.com/poec-forensics/console/pkg/api/types/proof"
	"github.com/poec-forensics/console/pkg/journal"
	"github.com/poec-forensics/console/pkg/pipeline"
)

// Complete returns a session whose analysis has been complete.
//
// The result has anomalies over entities A, B and C, and its graph is A -> B -> C.
func Complete(id string, at time.Time, resultHash string) pipeline.Session {
	triplet := types.Triplet{DataHash: "h1", ModelHash: "h2", ResultHash: resultHash}
	return pipeline.Session{
		Id:        id,
		Source:    "ledger.csv",
		StartedAt: at,
		Stage:     pipeline.Complete,
		Log: []pipeline.Entry{
			{At: at, Level: pipeline.Info, Message: "Initializing Neural Pipeline..."},
			{At: at.Add(3 * time.Second), Level: pipeline.Info, Message: "Cycle complete. 2 anomalies detected."},
		},
		Batch: &analysis.Ingested{BatchId: "b-" + id, RecordCount: 2},
		Result: &analysis.Result{
			Snapshot:    analysis.Snapshot{DataHash: "h1", NodeCount: 3, EdgeCount: 2},
			ModelHash:   "h2",
			ResultsHash: resultHash,
			Anomalies: []analysis.Anomaly{
				{
					AnomalyId: "an-1", AnomalyType: "circular_flow", Severity: 0.9,
					EntitiesInvolved: []string{"A", "B"}, Confidence: analysis.High,
				},
				{
					AnomalyId: "an-2", AnomalyType: "burst", Severity: 0.3,
					EntitiesInvolved: []string{"C"}, Confidence: analysis.Low,
				},
			},
			GraphData: analysis.GraphData{Elements: []analysis.Element{
				{Data: analysis.ElementData{Id: "A", Label: "Alice"}},
				{Data: analysis.ElementData{Id: "B", Label: "Bob"}},
				{Data: analysis.ElementData{Id: "C", Label: "Carol"}},
				{Data: analysis.ElementData{Id: "e1", Source: "A", Target: "B", GnnScore: 0.9}},
				{Data: analysis.ElementData{Id: "e2", Source: "B", Target: "C", GnnScore: 0.2}},
			}},
			IpfsCid: "cid-" + id,
		},
		Triplet: &triplet,
	}
}

// Failed returns a session failed in ingestion.
func Failed(id string, at time.Time) pipeline.Session {
	return pipeline.Session{
		Id:        id,
		Source:    "broken.csv",
		StartedAt: at,
		Stage:     pipeline.Failed,
		Log: []pipeline.Entry{
			{At: at, Level: pipeline.Info, Message: "Initializing Neural Pipeline..."},
			{At: at.Add(time.Second), Level: pipeline.Critical, Message: "Ingest Failed: bad gateway"},
		},
		Err: pipeline.ErrIngestFailure,
	}
}

// Seed creates a journal file in a temporary directory with the sessions.
//
// Returns the path to the journal.
func Seed(t *testing.T, sessions ...pipeline.Session) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "journal.db")
	j, err := journal.Open(path)
	if err != nil {
		t.Fatal(err)
	}
	defer j.Close()
	for _, s := range sessions {
		if err := j.Record(s); err != nil {
			t.Fatal(err)
		}
	}
	return path
}
