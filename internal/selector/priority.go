package selector

type prioritySelector struct{}

// NewPrioritySelector returns a selector preferring the candidate with
// the smallest static priority value.
func NewPrioritySelector() Selector {
	return &prioritySelector{}
}

func (p *prioritySelector) SelectExit(candidates []Candidate) (int64, bool) {
	if len(candidates) == 0 {
		return 0, false
	}

	chosen := candidates[0]
	for _, c := range candidates[1:] {
		if c.Priority < chosen.Priority ||
			(c.Priority == chosen.Priority && c.NodeID < chosen.NodeID) {
			chosen = c
		}
	}

	return chosen.NodeID, true
}
