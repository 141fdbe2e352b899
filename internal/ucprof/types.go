package ucprof

import "fmt"

// EventType tags a trace record or event as a function entry or exit.
type EventType string

const (
	Open  EventType = "O"
	Close EventType = "C"
)

// InterruptContext is the context id recorded for code running in interrupt
// handlers.
const InterruptContext uint32 = 0

// IsInterrupt reports whether ctx denotes an interrupt context.
func IsInterrupt(ctx uint32) bool {
	return ctx == InterruptContext
}

// ContextLabel returns the display label of an execution context.
func ContextLabel(ctx uint32) string {
	if IsInterrupt(ctx) {
		return "interrupts"
	}
	return fmt.Sprintf("%08x", ctx)
}

// Symbol represents a single entry of the firmware symbol table
type Symbol struct {
	Address uint32
	Kind    byte
	Name    string
	File    string
	Line    uint32
}

// Packet is one raw record of the binary trace stream.
type Packet struct {
	Type       EventType
	CycleCount uint32
	Address    uint32
	Context    uint32
}

// Event is a packet resolved against the symbol table and the clock.
type Event struct {
	Timestamp float64 // seconds since the first packet
	Type      EventType
	File      string
	Line      uint32
	Name      string
	Context   uint32
}

// ContextCount is the number of packets recorded for one context
type ContextCount struct {
	Context uint32
	Count   int
}

// Ranking orders thread contexts by packet volume (descending).
type Ranking struct {
	Contexts   []ContextCount
	Interrupts int // packets recorded in interrupt context, never ranked
}

// TraceData holds everything parsed from one symbol file and trace file pair
type TraceData struct {
	SymbolsPath string
	TracePath   string
	Symbols     *SymbolTable
	Packets     []Packet
	Ranking     Ranking
	Events      []Event
}

// TimeRange returns the timestamps of the first and last event of all
// contexts. Every exported context shares this range.
func (td *TraceData) TimeRange() (start, end float64) {
	if len(td.Events) == 0 {
		return 0, 0
	}
	return td.Events[0].Timestamp, td.Events[len(td.Events)-1].Timestamp
}

// ContextEvents returns the events recorded for a single context.
func (td *TraceData) ContextEvents(ctx uint32) []Event {
	return FilterContext(td.Events, ctx)
}

// FilterContext returns the events of events that belong to ctx, in order.
func FilterContext(events []Event, ctx uint32) []Event {
	var out []Event
	for _, ev := range events {
		if ev.Context == ctx {
			out = append(out, ev)
		}
	}
	return out
}
