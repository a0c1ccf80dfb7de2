package selector

type roundRobinSelector struct{}

// NewRoundRobinSelector returns a selector preferring the candidate
// least recently chosen as a failover target in its group. A candidate
// never chosen sorts before any candidate with a selection timestamp.
func NewRoundRobinSelector() Selector {
	return &roundRobinSelector{}
}

func (r *roundRobinSelector) SelectExit(candidates []Candidate) (int64, bool) {
	if len(candidates) == 0 {
		return 0, false
	}

	chosen := candidates[0]
	for _, c := range candidates[1:] {
		if selectedEarlier(c, chosen) {
			chosen = c
		}
	}

	return chosen.NodeID, true
}

func selectedEarlier(a, b Candidate) bool {
	switch {
	case a.LastSelected == nil && b.LastSelected == nil:
		return a.NodeID < b.NodeID
	case a.LastSelected == nil:
		return true
	case b.LastSelected == nil:
		return false
	case !a.LastSelected.Equal(*b.LastSelected):
		return a.LastSelected.Before(*b.LastSelected)
	default:
		return a.NodeID < b.NodeID
	}
}
