package proof

import "github.com/poec-forensics/console/pkg/api/types/analysis"

// Triplet is the integrity fingerprint of an analysis:
// hashes of input data, detection model and detection result.
type Triplet struct {
	DataHash   string `json:"data_hash"`
	ModelHash  string `json:"model_hash"`
	ResultHash string `json:"result_hash"`
}

// Complete tells all of three hashes are given.
func (t Triplet) Complete() bool {
	return t.DataHash != "" && t.ModelHash != "" && t.ResultHash != ""
}

// AnchorRequest is a request body to commit a triplet to the ledger.
type AnchorRequest struct {
	Triplet
	IpfsCid string `json:"ipfs_cid,omitempty"`
}

// Status values of AnchorResponse.
//
// Services report a fresh record as "anchored" or "confirmed".
// Any success status other than StatusAlreadyAnchored means a new record.
const (
	StatusAnchored        = "anchored"
	StatusConfirmed       = "confirmed"
	StatusAlreadyAnchored = "already_anchored"
)

type AnchorResponse struct {
	Status          string `json:"status"`
	BlockNumber     uint64 `json:"block_number,omitempty"`
	TransactionHash string `json:"transaction_hash,omitempty"`
	Message         string `json:"message,omitempty"`
}

// Verification is a record of the ledger for a result hash.
type Verification struct {
	Verified    bool   `json:"verified"`
	Timestamp   int64  `json:"timestamp,omitempty"`
	IpfsCid     string `json:"ipfs_cid,omitempty"`
	OnChainHash string `json:"on_chain_hash,omitempty"`
}

// LedgerStatus is the connectivity of the service to the ledger.
type LedgerStatus struct {
	Status          string  `json:"status"`
	Network         string  `json:"network"`
	WalletAddress   string  `json:"wallet_address,omitempty"`
	ContractAddress string  `json:"contract_address,omitempty"`
	BalanceEth      float64 `json:"balance_eth,omitempty"`
}

func (s LedgerStatus) Connected() bool {
	return s.Status == "connected"
}

// Archive is the analysis result archived with the content id.
type Archive struct {
	Summary     *ArchiveSummary    `json:"summary,omitempty"`
	Metrics     *ArchiveMetrics    `json:"metrics,omitempty"`
	ModelHash   string             `json:"model_hash,omitempty"`
	ResultsHash string             `json:"results_hash,omitempty"`
	Snapshot    *analysis.Snapshot `json:"snapshot,omitempty"`
	Anomalies   []analysis.Anomaly `json:"anomalies,omitempty"`
	Timestamp   int64              `json:"timestamp,omitempty"`
}

type ArchiveSummary struct {
	TotalTxs    int     `json:"total_txs"`
	TotalVolume float64 `json:"total_volume"`
}

type ArchiveMetrics struct {
	AnomaliesCount int `json:"anomalies_count"`
}

// AnomalyCount returns metrics.anomalies_count, or count of archived anomalies.
func (a Archive) AnomalyCount() int {
	if a.Metrics != nil {
		return a.Metrics.AnomaliesCount
	}
	return len(a.Anomalies)
}
