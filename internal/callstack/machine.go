package callstack

import (
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/lukasnee/ucprof/internal/ucprof"
)

type state int

const (
	stateNormal   state = iota // stack mirrors the recorded calls
	stateOverflow              // OVERFLOW! is open, stack is empty
)

// machine is the repair state machine. Transitions:
//
//	normal,   open                -> emit open, push                          -> normal
//	overflow, open                -> close OVERFLOW!, emit open, push         -> normal
//	any,      close, empty stack  -> discard                                  -> unchanged
//	normal,   close, top matches  -> pop, emit close                          -> normal
//	normal,   close, top differs  -> close stack at previous time,
//	                                 open OVERFLOW! at current time, discard  -> overflow
//
// In the overflow state the stack is always empty, so a close can only take
// the discard transition.
type machine struct {
	state         state
	stack         []int
	out           []StackEvent
	frames        []Frame
	overflowFrame int
	prevAt        float64 // timestamp of the previous input event
	lastAt        float64 // timestamp of the last input event
	recoveries    int
	discarded     int
	log           logrus.Ext1FieldLogger
}

func newMachine(frames []Frame, log logrus.Ext1FieldLogger) *machine {
	return &machine{
		frames:        frames,
		overflowFrame: len(frames) - 1,
		log:           log,
	}
}

func (m *machine) step(idx int, ev StackEvent) {
	if idx == 0 {
		m.prevAt = ev.At
	}
	switch ev.Type {
	case ucprof.Open:
		m.onOpen(idx, ev)
	case ucprof.Close:
		m.onClose(idx, ev)
	}
	m.prevAt = ev.At
	m.lastAt = ev.At
}

func (m *machine) onOpen(idx int, ev StackEvent) {
	if m.state == stateOverflow {
		m.emit(idx, StackEvent{Type: ucprof.Close, At: ev.At, Frame: m.overflowFrame})
		m.state = stateNormal
	}
	m.emit(idx, ev)
	m.stack = append(m.stack, ev.Frame)
}

func (m *machine) onClose(idx int, ev StackEvent) {
	if len(m.stack) == 0 {
		m.discarded++
		m.log.Tracef("%8d|%.9f|~%s: call stack is empty - skipping", idx, ev.At, m.frames[ev.Frame].Name)
		return
	}

	top := m.stack[len(m.stack)-1]
	if top == ev.Frame {
		m.stack = m.stack[:len(m.stack)-1]
		m.emit(idx, ev)
		return
	}

	m.log.Warnf("Call stack inconsistent on event %d: tried to close '%s' instead of '%s'",
		idx, m.frames[ev.Frame].Name, m.frames[top].Name)
	m.unwind(idx, m.prevAt)
	m.emit(idx, StackEvent{Type: ucprof.Open, At: ev.At, Frame: m.overflowFrame})
	m.state = stateOverflow
	m.recoveries++
}

// unwind closes every open frame, innermost first, at time at.
func (m *machine) unwind(idx int, at float64) {
	for len(m.stack) > 0 {
		frame := m.stack[len(m.stack)-1]
		m.stack = m.stack[:len(m.stack)-1]
		m.emit(idx, StackEvent{Type: ucprof.Close, At: at, Frame: frame})
	}
}

// finish balances the output at end of stream.
func (m *machine) finish() {
	m.unwind(-1, m.lastAt)
	if m.state == stateOverflow {
		m.emit(-1, StackEvent{Type: ucprof.Close, At: m.lastAt, Frame: m.overflowFrame})
		m.state = stateNormal
	}
}

func (m *machine) emit(idx int, ev StackEvent) {
	m.out = append(m.out, ev)
	depth := len(m.stack)
	prefix := ""
	if ev.Type == ucprof.Close {
		prefix = "~"
	}
	m.log.Tracef("%8d|%.9f|%s%s%s", idx, ev.At, strings.Repeat("  ", depth), prefix, m.frames[ev.Frame].Name)
}
