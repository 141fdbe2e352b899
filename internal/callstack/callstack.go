// Package callstack rebuilds a strictly nested call tree from the open and
// close events of one execution context.
//
// Hardware traces lose records when the target's buffer overruns, so the
// recorded sequence is not guaranteed to nest. Reconstruct repairs it: when a
// close event does not match the innermost open frame, every open frame is
// closed and a synthetic OVERFLOW! frame covers the interval until the next
// open event. The output is always balanced.
package callstack

import (
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/lukasnee/ucprof/internal/ucprof"
)

// OverflowFrameName labels the synthetic frame spanning a recovered gap.
const OverflowFrameName = "OVERFLOW!"

// Frame is a deduplicated (file, line, name) identity.
type Frame struct {
	Name string
	File string
	Line uint32
	Col  int
}

// StackEvent is a repaired event referring to a frame by index.
type StackEvent struct {
	Type  ucprof.EventType
	At    float64
	Frame int
}

// Result is the outcome of one reconstruction.
type Result struct {
	Events        []StackEvent
	Frames        []Frame
	OverflowFrame int // index of the OVERFLOW! frame in Frames
	Recoveries    int // desynchronizations repaired with an overflow frame
	Discarded     int // close events dropped because the stack was empty
}

type frameKey struct {
	file string
	line uint32
	name string
}

// Trim drops what a trace captured mid-call starts with: first the close
// events with no prior open, then the samples at exactly 0.0 left by the first
// normalized packet. Each rule runs once, in that order; a close uncovered by
// the second pass stays and is discarded later by the reconstruction.
func Trim(events []ucprof.Event) []ucprof.Event {
	for len(events) > 0 && events[0].Type == ucprof.Close {
		events = events[1:]
	}
	for len(events) > 0 && events[0].Timestamp == 0.0 {
		events = events[1:]
	}
	return events
}

// BuildFrames deduplicates events on (file, line, name) in first-seen order
// and appends the overflow frame. It returns the frame table and the frame
// index of every event.
func BuildFrames(events []ucprof.Event) ([]Frame, []int) {
	cache := make(map[frameKey]int)
	var frames []Frame
	indices := make([]int, len(events))
	for i, ev := range events {
		key := frameKey{file: ev.File, line: ev.Line, name: ev.Name}
		idx, ok := cache[key]
		if !ok {
			idx = len(frames)
			cache[key] = idx
			frames = append(frames, Frame{Name: ev.Name, File: ev.File, Line: ev.Line, Col: 1})
		}
		indices[i] = idx
	}
	frames = append(frames, Frame{Name: OverflowFrameName, Col: 1})
	return frames, indices
}

// Reconstruct turns the events of one context into a balanced StackEvent
// sequence and its frame table. Events of other contexts must be filtered
// out beforehand.
func Reconstruct(events []ucprof.Event, log logrus.Ext1FieldLogger) Result {
	if log == nil {
		log = logrus.StandardLogger()
	}
	events = Trim(events)
	frames, indices := BuildFrames(events)

	m := newMachine(frames, log)
	for i, ev := range events {
		m.step(i, StackEvent{Type: ev.Type, At: ev.Timestamp, Frame: indices[i]})
	}
	m.finish()

	return Result{
		Events:        m.out,
		Frames:        frames,
		OverflowFrame: m.overflowFrame,
		Recoveries:    m.recoveries,
		Discarded:     m.discarded,
	}
}

// Validate checks that events form a balanced sequence: every close matches
// the innermost open frame and nothing is left open.
func Validate(events []StackEvent) error {
	var stack []int
	for i, ev := range events {
		switch ev.Type {
		case ucprof.Open:
			stack = append(stack, ev.Frame)
		case ucprof.Close:
			if len(stack) == 0 {
				return fmt.Errorf("event %d closes frame %d with an empty stack", i, ev.Frame)
			}
			if top := stack[len(stack)-1]; top != ev.Frame {
				return fmt.Errorf("event %d closes frame %d but frame %d is open", i, ev.Frame, top)
			}
			stack = stack[:len(stack)-1]
		default:
			return fmt.Errorf("event %d has unknown type %q", i, ev.Type)
		}
	}
	if len(stack) > 0 {
		return fmt.Errorf("%d frames left open", len(stack))
	}
	return nil
}
