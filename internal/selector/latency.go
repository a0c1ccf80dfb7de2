package selector

type latencySelector struct{}

// NewLatencySelector returns a selector preferring the candidate with
// the smallest measured latency. Candidates without a measurement are
// considered only when no candidate has one.
func NewLatencySelector() Selector {
	return &latencySelector{}
}

func (l *latencySelector) SelectExit(candidates []Candidate) (int64, bool) {
	if len(candidates) == 0 {
		return 0, false
	}

	chosen := candidates[0]
	for _, c := range candidates[1:] {
		if latencyLess(c, chosen) {
			chosen = c
		}
	}

	return chosen.NodeID, true
}

// latencyLess orders measured latencies ascending, unmeasured after all
// measured, ties by smallest node id.
func latencyLess(a, b Candidate) bool {
	switch {
	case a.LatencyMs == nil && b.LatencyMs == nil:
		return a.NodeID < b.NodeID
	case a.LatencyMs == nil:
		return false
	case b.LatencyMs == nil:
		return true
	case *a.LatencyMs != *b.LatencyMs:
		return *a.LatencyMs < *b.LatencyMs
	default:
		return a.NodeID < b.NodeID
	}
}
