package trace

// TraceSummary aggregates statistics from a SimulationTrace.
type TraceSummary struct {
	TotalDecisions    int
	PolicyMatches     int
	FallbackDecisions int
	TransitDecisions  int
	Failures          int
	RuleDistribution  map[string]int // rule name → count of packets it routed
	TotalDrops        int
	DropsByReason     map[string]int
}

// Summarize computes aggregate statistics from a SimulationTrace.
// Safe for nil or empty traces (returns zero-value fields).
func Summarize(st *SimulationTrace) *TraceSummary {
	summary := &TraceSummary{
		RuleDistribution: make(map[string]int),
		DropsByReason:    make(map[string]int),
	}
	if st == nil {
		return summary
	}

	summary.TotalDecisions = len(st.Routings)
	for _, r := range st.Routings {
		switch {
		case r.Err != "":
			summary.Failures++
		case r.Rule != "":
			summary.PolicyMatches++
			summary.RuleDistribution[r.Rule]++
		case r.Fallback:
			summary.FallbackDecisions++
		}
		if r.Transit {
			summary.TransitDecisions++
		}
	}

	summary.TotalDrops = len(st.Drops)
	for _, d := range st.Drops {
		summary.DropsByReason[d.Reason]++
	}

	return summary
}
