package journal_test

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/poec-forensics/console/pkg/api/types/analysis"
	types "github.com/poec-forensics/console/pkg/api/types/proof"
	"github.com/poec-forensics/console/pkg/journal"
	"github.com/poec-forensics/console/pkg/pipeline"
	"github.com/poec-forensics/console/pkg/proof"
	"github.com/poec-forensics/console/pkg/utils/try"
)

func tempJournal(t *testing.T) *journal.Journal {
	t.Helper()
	j, err := journal.Open(filepath.Join(t.TempDir(), "journal.db"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { j.Close() })
	return j
}

var t0 = time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)

func completeSession(id string, at time.Time, resultHash string) pipeline.Session {
	triplet := types.Triplet{DataHash: "h1", ModelHash: "h2", ResultHash: resultHash}
	return pipeline.Session{
		Id:        id,
		Source:    "ledger.csv",
		StartedAt: at,
		Stage:     pipeline.Complete,
		Log: []pipeline.Entry{
			{At: at, Level: pipeline.Info, Message: "Initializing Neural Pipeline..."},
			{At: at.Add(3 * time.Second), Level: pipeline.Info, Message: "Cycle complete. 1 anomalies detected."},
		},
		Batch: &analysis.Ingested{BatchId: "b-" + id},
		Result: &analysis.Result{
			Snapshot:    analysis.Snapshot{DataHash: "h1"},
			ModelHash:   "h2",
			ResultsHash: resultHash,
			Anomalies:   []analysis.Anomaly{{AnomalyId: "an-1", EntitiesInvolved: []string{"A", "B"}}},
			GraphData: analysis.GraphData{Elements: []analysis.Element{
				{Data: analysis.ElementData{Id: "A"}},
			}},
			IpfsCid: "cid-" + id,
		},
		Triplet: &triplet,
	}
}

func TestRecord(t *testing.T) {
	ctx := context.Background()

	t.Run("recorded session can be read", func(t *testing.T) {
		j := tempJournal(t)
		sess := completeSession("s1", t0, "h3")
		if err := j.Record(sess); err != nil {
			t.Fatal(err)
		}

		e := try.To(j.Get(ctx, "s1")).OrFatal(t)
		if e.Stage != "complete" || e.BatchId != "b-s1" || e.IpfsCid != "cid-s1" || e.Anomalies != 1 {
			t.Errorf("unexpected entry: %+v", e)
		}
		if e.Triplet != *sess.Triplet {
			t.Errorf("unexpected triplet: %+v", e.Triplet)
		}
		if !e.StartedAt.Equal(t0) || !e.UpdatedAt.Equal(t0.Add(3*time.Second)) {
			t.Errorf("unexpected times: %s, %s", e.StartedAt, e.UpdatedAt)
		}
		if e.Result == nil || !e.Result.Anomalies[0].Equal(sess.Result.Anomalies[0]) {
			t.Errorf("unexpected result: %+v", e.Result)
		}
		if e.Anchor != nil {
			t.Errorf("not anchored, but: %+v", e.Anchor)
		}
	})

	t.Run("failed session is recorded with its error", func(t *testing.T) {
		j := tempJournal(t)
		sess := pipeline.Session{
			Id: "s1", Source: "ledger.csv", StartedAt: t0, Stage: pipeline.Failed,
			Err: errors.New("ingest failed: bad column"),
		}
		if err := j.Record(sess); err != nil {
			t.Fatal(err)
		}
		e := try.To(j.Get(ctx, "s1")).OrFatal(t)
		if e.Stage != "failed" || e.Error != "ingest failed: bad column" || e.Result != nil {
			t.Errorf("unexpected entry: %+v", e)
		}
		if _, err := j.LastComplete(ctx); !errors.Is(err, journal.ErrNotFound) {
			t.Errorf("unexpected error: %v", err)
		}
	})

	t.Run("recording again overwrites the session", func(t *testing.T) {
		j := tempJournal(t)
		sess := completeSession("s1", t0, "h3")
		try.To(struct{}{}, j.Record(sess)).OrFatal(t)

		sess.Anchor = &proof.Outcome{
			Triplet:      *sess.Triplet,
			Response:     types.AnchorResponse{Status: types.StatusAnchored, BlockNumber: 42, TransactionHash: "0xt"},
			Verification: &types.Verification{Verified: true, OnChainHash: "0xt"},
		}
		try.To(struct{}{}, j.Record(sess)).OrFatal(t)

		list := try.To(j.List(ctx, 10)).OrFatal(t)
		if len(list) != 1 {
			t.Fatalf("unexpected entries: %d", len(list))
		}
		a := list[0].Anchor
		if a == nil || a.BlockNumber != 42 || !a.Verified || a.Collision() {
			t.Errorf("unexpected anchor: %+v", a)
		}
	})

	t.Run("collision does not overwrite the block", func(t *testing.T) {
		j := tempJournal(t)
		sess := completeSession("s1", t0, "h3")
		sess.Anchor = &proof.Outcome{
			Triplet:  *sess.Triplet,
			Response: types.AnchorResponse{Status: types.StatusAnchored, BlockNumber: 42},
		}
		try.To(struct{}{}, j.Record(sess)).OrFatal(t)

		collision := proof.Outcome{
			Triplet:      *sess.Triplet,
			Response:     types.AnchorResponse{Status: types.StatusAlreadyAnchored},
			Verification: &types.Verification{Verified: true, OnChainHash: "0xt"},
		}
		if err := j.RecordAnchor(ctx, collision, t0.Add(time.Hour)); err != nil {
			t.Fatal(err)
		}

		e := try.To(j.Get(ctx, "s1")).OrFatal(t)
		if e.Anchor == nil || e.Anchor.BlockNumber != 42 || e.Anchor.Collision() {
			t.Errorf("first anchoring is lost: %+v", e.Anchor)
		}
		if !e.Anchor.Verified || e.Anchor.OnChainHash != "0xt" {
			t.Errorf("verification is not recorded: %+v", e.Anchor)
		}
	})
}

func TestLastComplete(t *testing.T) {
	ctx := context.Background()
	j := tempJournal(t)

	for _, s := range []pipeline.Session{
		completeSession("older", t0, "h3"),
		completeSession("newer", t0.Add(500*time.Millisecond), "h4"),
		{Id: "failed", Source: "x.csv", StartedAt: t0.Add(time.Hour), Stage: pipeline.Failed},
	} {
		try.To(struct{}{}, j.Record(s)).OrFatal(t)
	}

	e := try.To(j.LastComplete(ctx)).OrFatal(t)
	if e.SessionId != "newer" {
		t.Errorf("unexpected session: %s", e.SessionId)
	}

	list := try.To(j.List(ctx, 2)).OrFatal(t)
	if len(list) != 2 || list[0].SessionId != "failed" || list[1].SessionId != "newer" {
		t.Errorf("unexpected list: %+v", list)
	}

	if _, err := j.Get(ctx, "nothing"); !errors.Is(err, journal.ErrNotFound) {
		t.Errorf("unexpected error: %v", err)
	}
}
