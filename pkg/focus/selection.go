package focus

import (
	"strings"

	"github.com/poec-forensics/console/pkg/api/types/analysis"
)

type Trigger int

const (
	// nothing is selected
	Cleared Trigger = iota

	// an anomaly is focused
	ByAnomaly

	// a node is selected
	ByNode

	// an edge is selected
	ByEdge
)

func (t Trigger) String() string {
	switch t {
	case Cleared:
		return "cleared"
	case ByAnomaly:
		return "anomaly"
	case ByNode:
		return "node"
	case ByEdge:
		return "edge"
	default:
		return "unknown"
	}
}

// Selection is what the analyst is looking at.
//
// It is a value. Every focus or select makes a new one.
type Selection struct {
	Trigger Trigger

	// Anomaly focused. Set when Trigger is ByAnomaly.
	Anomaly analysis.Anomaly

	// Id of node or edge selected. Set when Trigger is ByNode or ByEdge.
	ElementId string
}

func Nothing() Selection {
	return Selection{Trigger: Cleared}
}

func OnAnomaly(a analysis.Anomaly) Selection {
	return Selection{Trigger: ByAnomaly, Anomaly: a}
}

func OnNode(id string) Selection {
	return Selection{Trigger: ByNode, ElementId: id}
}

func OnEdge(id string) Selection {
	return Selection{Trigger: ByEdge, ElementId: id}
}

// Entities returns trimmed, non-empty entity ids of the focused anomaly.
func (s Selection) Entities() []string {
	if s.Trigger != ByAnomaly {
		return nil
	}
	ret := []string{}
	for _, e := range s.Anomaly.EntitiesInvolved {
		if e = strings.TrimSpace(e); e != "" {
			ret = append(ret, e)
		}
	}
	return ret
}
