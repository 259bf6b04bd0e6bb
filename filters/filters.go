package filters

import (
	v1 "github.com/flanksource/gid-seminars/api/v1"
)

// Chain applies exclusions first and keywords second, the order renderers
// expect after the window query.
type Chain struct {
	Exclusions *ExclusionFilter
	Keywords   *KeywordFilter
}

func (c Chain) Apply(events []v1.Event) []v1.Event {
	if c.Exclusions != nil {
		events, _ = c.Exclusions.Filter(events)
	}
	if c.Keywords != nil {
		events, _ = c.Keywords.Filter(events)
	}
	return events
}
