package analysis_test

import (
	"testing"

	"github.com/poec-forensics/console/pkg/api/types/analysis"
	"github.com/poec-forensics/console/pkg/cmp"
)

func TestFilterByConfidence(t *testing.T) {
	anomalies := []analysis.Anomaly{
		{AnomalyId: "a-low", Confidence: analysis.Low},
		{AnomalyId: "a-medium", Confidence: analysis.Medium},
		{AnomalyId: "a-high", Confidence: analysis.High},
		{AnomalyId: "a-unknown", Confidence: "Unsure"},
	}

	theory := func(min string, expected []string) func(*testing.T) {
		return func(t *testing.T) {
			c, ok := analysis.ParseConfidence(min)
			if !ok {
				t.Fatalf("cannot parse %q", min)
			}
			actual := []string{}
			for _, a := range analysis.FilterByConfidence(anomalies, c) {
				actual = append(actual, a.AnomalyId)
			}
			if !cmp.SliceEq(actual, expected) {
				t.Errorf("unmatch: (actual, expected) = (%v, %v)", actual, expected)
			}
		}
	}

	t.Run("All keeps every known tier", theory("All", []string{"a-low", "a-medium", "a-high"}))
	t.Run("Medium keeps Medium and High", theory("medium", []string{"a-medium", "a-high"}))
	t.Run("High keeps High only", theory("HIGH", []string{"a-high"}))

	if _, ok := analysis.ParseConfidence("very"); ok {
		t.Error("unknown tier is parsed")
	}
}
