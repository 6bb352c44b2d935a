package contexts

import "sort"

// Active is the economic-context profile in use by the service.
type Active struct {
	ContextId string `json:"context_id"`
	Name      string `json:"name,omitempty"`
}

// Profiles is a response of GET /api/v1/context.
type Profiles struct {
	Active    Active            `json:"active"`
	Available map[string]string `json:"available"`
}

// Ids returns sorted ids of available profiles.
func (p Profiles) Ids() []string {
	ids := make([]string, 0, len(p.Available))
	for id := range p.Available {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Has tells id is one of available profiles.
func (p Profiles) Has(id string) bool {
	_, ok := p.Available[id]
	return ok
}

type Switched struct {
	Message string `json:"message"`
}
