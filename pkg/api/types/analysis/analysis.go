package analysis

import (
	"slices"
	"strings"
)

// Confidence tier of anomaly.
type Confidence string

const (
	Low    Confidence = "Low"
	Medium Confidence = "Medium"
	High   Confidence = "High"
)

func (c Confidence) rank() int {
	switch c {
	case High:
		return 3
	case Medium:
		return 2
	case Low:
		return 1
	default:
		return 0
	}
}

// AtLeast tells c is same or stronger than min.
//
// Unknown tiers are the weakest.
func (c Confidence) AtLeast(min Confidence) bool {
	return min.rank() <= c.rank()
}

// ParseConfidence parses a confidence tier case-insensitively.
//
// "all" and empty string mean "no minimum" and return Low.
func ParseConfidence(s string) (Confidence, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "all", "low":
		return Low, true
	case "medium":
		return Medium, true
	case "high":
		return High, true
	default:
		return "", false
	}
}

// Anomaly is a finding of the detection pipeline.
type Anomaly struct {
	AnomalyId        string         `json:"anomaly_id"`
	AnomalyType      string         `json:"anomaly_type"`
	Severity         float64        `json:"severity"`
	EntitiesInvolved []string       `json:"entities_involved"`
	Description      string         `json:"description"`
	EvidenceData     map[string]any `json:"evidence_data,omitempty"`
	Confidence       Confidence     `json:"confidence"`
	DetectionMethod  string         `json:"detection_method,omitempty"`
	Explanation      map[string]any `json:"explanation_metadata,omitempty"`
}

func (a Anomaly) Equal(o Anomaly) bool {
	return a.AnomalyId == o.AnomalyId &&
		a.AnomalyType == o.AnomalyType &&
		a.Severity == o.Severity &&
		slices.Equal(a.EntitiesInvolved, o.EntitiesInvolved) &&
		a.Description == o.Description &&
		a.Confidence == o.Confidence &&
		a.DetectionMethod == o.DetectionMethod
}

// FilterByConfidence returns anomalies whose confidence is min or stronger.
func FilterByConfidence(anomalies []Anomaly, min Confidence) []Anomaly {
	ret := make([]Anomaly, 0, len(anomalies))
	for _, a := range anomalies {
		if a.Confidence.AtLeast(min) {
			ret = append(ret, a)
		}
	}
	return ret
}

// Snapshot describes the transaction graph analyzed.
//
// Dates are kept as they are sent, because the service does not send timezone.
type Snapshot struct {
	SnapshotId string `json:"snapshot_id"`
	StartDate  string `json:"start_date"`
	EndDate    string `json:"end_date"`
	NodeCount  int    `json:"node_count"`
	EdgeCount  int    `json:"edge_count"`
	DataHash   string `json:"data_hash"`
}

// Ingested is a response of ingestion.
type Ingested struct {
	BatchId     string `json:"batch_id"`
	RecordCount int    `json:"record_count"`
	ContentHash string `json:"content_hash"`
	Message     string `json:"message"`
}

// Result is a response of analysis.
type Result struct {
	Snapshot    Snapshot  `json:"snapshot"`
	Anomalies   []Anomaly `json:"anomalies"`
	ResultsHash string    `json:"results_hash"`
	ModelHash   string    `json:"model_hash"`
	GraphData   GraphData `json:"graph_data"`
	IpfsCid     string    `json:"ipfs_cid,omitempty"`
}

// GraphData is the transaction graph, in the shape of diagramming libraries.
type GraphData struct {
	Elements []Element `json:"elements"`
}

type Element struct {
	Data ElementData `json:"data"`
}

// ElementData is a node (id, label) or an edge (with source and target).
type ElementData struct {
	Id     string `json:"id"`
	Label  string `json:"label,omitempty"`
	Source string `json:"source,omitempty"`
	Target string `json:"target,omitempty"`

	GnnScore float64  `json:"gnn_score,omitempty"`
	Amount   float64  `json:"amount,omitempty"`
	Types    []string `json:"types,omitempty"`
	Dates    []string `json:"dates,omitempty"`
}

func (e ElementData) IsEdge() bool {
	return e.Source != "" && e.Target != ""
}
