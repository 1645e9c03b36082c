package trace

// TraceLevel controls the verbosity of decision tracing.
type TraceLevel string

const (
	// TraceLevelNone disables tracing (zero overhead).
	TraceLevelNone TraceLevel = "none"
	// TraceLevelDecisions captures every routing decision.
	TraceLevelDecisions TraceLevel = "decisions"
	// TraceLevelAll captures routing decisions and packet drops.
	TraceLevelAll TraceLevel = "all"
)

// validTraceLevels maps accepted trace level strings.
var validTraceLevels = map[TraceLevel]bool{
	TraceLevelNone:      true,
	TraceLevelDecisions: true,
	TraceLevelAll:       true,
	"":                  true, // empty defaults to none
}

// IsValidTraceLevel returns true if the given level string is a recognized trace level.
func IsValidTraceLevel(level string) bool {
	return validTraceLevels[TraceLevel(level)]
}

// TraceConfig controls trace collection behavior.
type TraceConfig struct {
	Level TraceLevel
	// MaxRecords caps each record slice; 0 means unbounded.
	// Records past the cap are counted in Overflow but not stored.
	MaxRecords int
}

// SimulationTrace collects decision records during a simulation run.
type SimulationTrace struct {
	Config   TraceConfig
	Routings []RoutingRecord
	Drops    []DropRecord
	Overflow int
}

// NewSimulationTrace creates a SimulationTrace ready for recording.
func NewSimulationTrace(config TraceConfig) *SimulationTrace {
	return &SimulationTrace{
		Config:   config,
		Routings: make([]RoutingRecord, 0),
		Drops:    make([]DropRecord, 0),
	}
}

// RecordsDecisions reports whether routing decisions should be recorded.
func (st *SimulationTrace) RecordsDecisions() bool {
	return st != nil && (st.Config.Level == TraceLevelDecisions || st.Config.Level == TraceLevelAll)
}

// RecordsDrops reports whether drops should be recorded.
func (st *SimulationTrace) RecordsDrops() bool {
	return st != nil && st.Config.Level == TraceLevelAll
}

// RecordRouting appends a routing decision record.
func (st *SimulationTrace) RecordRouting(record RoutingRecord) {
	if st.full(len(st.Routings)) {
		st.Overflow++
		return
	}
	st.Routings = append(st.Routings, record)
}

// RecordDrop appends a drop record.
func (st *SimulationTrace) RecordDrop(record DropRecord) {
	if st.full(len(st.Drops)) {
		st.Overflow++
		return
	}
	st.Drops = append(st.Drops, record)
}

func (st *SimulationTrace) full(n int) bool {
	return st.Config.MaxRecords > 0 && n >= st.Config.MaxRecords
}
