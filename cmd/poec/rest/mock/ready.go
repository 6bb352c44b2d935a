package mock

import (
	"context"
	"testing"

	apianalysis "github.com/poec-forensics/console/pkg/api/types/analysis"
	apicontexts "github.com/poec-forensics/console/pkg/api/types/contexts"
	apiledger "github.com/poec-forensics/console/pkg/api/types/ledger"
	apiproof "github.com/poec-forensics/console/pkg/api/types/proof"
	"github.com/poec-forensics/console/pkg/schema"
)

// Result is the analysis result which clients from Ready return.
var Result = apianalysis.Result{
	Snapshot: apianalysis.Snapshot{
		SnapshotId: "snap-1", NodeCount: 3, EdgeCount: 2, DataHash: "h1",
	},
	ModelHash:   "h2",
	ResultsHash: "h3",
	IpfsCid:     "QmCid",
	Anomalies: []apianalysis.Anomaly{
		{
			AnomalyId: "an-1", AnomalyType: "circular_flow", Severity: 0.92,
			EntitiesInvolved: []string{"A", "B"}, Description: "funds return to the origin",
			Confidence: apianalysis.High,
		},
		{
			AnomalyId: "an-2", AnomalyType: "burst", Severity: 0.31,
			EntitiesInvolved: []string{"C"}, Description: "many small transfers",
			Confidence: apianalysis.Low,
		},
	},
	GraphData: apianalysis.GraphData{
		Elements: []apianalysis.Element{
			{Data: apianalysis.ElementData{Id: "A", Label: "A"}},
			{Data: apianalysis.ElementData{Id: "B", Label: "B"}},
			{Data: apianalysis.ElementData{Id: "C", Label: "C"}},
			{Data: apianalysis.ElementData{Id: "A-B", Source: "A", Target: "B", GnnScore: 0.9, Amount: 100}},
			{Data: apianalysis.ElementData{Id: "B-C", Source: "B", Target: "C", GnnScore: 0.1, Amount: 5}},
		},
	},
}

// Ledger is the raw ledger which clients from Ready return.
var Ledger = []apiledger.Transaction{
	{TransactionId: "tx-1", Source: "A", Target: "B", Amount: 100, Timestamp: "2024-01-01", Type: "wire"},
	{TransactionId: "tx-2", Source: "B", Target: "C", Amount: 5, Timestamp: "2024-01-02", Type: "card"},
}

// Ready returns a client of a healthy service.
//
// Anchoring confirms at block 42, and every anchored hash can be verified.
func Ready(t *testing.T) *MockClient {
	m := New(t)
	m.Impl.Ping = func(context.Context) error { return nil }
	m.Impl.GetContexts = func(context.Context) (apicontexts.Profiles, error) {
		return apicontexts.Profiles{
			Active:    apicontexts.Active{ContextId: "retail"},
			Available: map[string]string{"retail": "Retail banking", "crypto": "Crypto exchange"},
		}, nil
	}
	m.Impl.SwitchContext = func(_ context.Context, id string) (apicontexts.Switched, error) {
		return apicontexts.Switched{Message: "switched to " + id}, nil
	}
	m.Impl.Ingest = func(context.Context, schema.Source) (apianalysis.Ingested, error) {
		return apianalysis.Ingested{BatchId: "batch-1", RecordCount: 2, ContentHash: "h1"}, nil
	}
	m.Impl.Analyze = func(context.Context) (apianalysis.Result, error) {
		return Result, nil
	}
	m.Impl.Transactions = func(context.Context, int) ([]apiledger.Transaction, error) {
		return Ledger, nil
	}
	m.Impl.Anchor = func(context.Context, apiproof.AnchorRequest) (apiproof.AnchorResponse, error) {
		return apiproof.AnchorResponse{
			Status: apiproof.StatusConfirmed, BlockNumber: 42, TransactionHash: "0xtx",
		}, nil
	}
	m.Impl.Verify = func(_ context.Context, hash string) (apiproof.Verification, error) {
		return apiproof.Verification{
			Verified: true, Timestamp: 1714557600, IpfsCid: "QmCid", OnChainHash: "0x" + hash,
		}, nil
	}
	m.Impl.Archive = func(context.Context, string) (apiproof.Archive, error) {
		return apiproof.Archive{
			Summary:     &apiproof.ArchiveSummary{TotalTxs: 2, TotalVolume: 105},
			Metrics:     &apiproof.ArchiveMetrics{AnomaliesCount: 2},
			ModelHash:   "h2",
			ResultsHash: "h3",
		}, nil
	}
	m.Impl.LedgerStatus = func(context.Context) (apiproof.LedgerStatus, error) {
		return apiproof.LedgerStatus{Status: "connected", Network: "sepolia"}, nil
	}
	return m
}
