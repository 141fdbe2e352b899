package analyzer

import (
	"fmt"
	"sort"
	"strings"

	"github.com/lukasnee/ucprof/internal/callstack"
	"github.com/lukasnee/ucprof/internal/ucprof"
)

// Hotspot represents a function and the time spent in it
type Hotspot struct {
	Function   string
	SourceFile string
	LineNumber uint32
	TotalTime  float64 // inclusive time, recursion counted once
	SelfTime   float64 // time not spent in callees
	CallCount  int
	Percentage float64 // share of the profile duration, of TotalTime or SelfTime depending on the query
}

// frameTimes accumulates per-frame timings over a balanced event sequence.
type frameTimes struct {
	total []float64
	self  []float64
	calls []int
}

type openFrame struct {
	frame    int
	openedAt float64
	children float64
}

func measure(res callstack.Result) frameTimes {
	ft := frameTimes{
		total: make([]float64, len(res.Frames)),
		self:  make([]float64, len(res.Frames)),
		calls: make([]int, len(res.Frames)),
	}
	active := make([]int, len(res.Frames))
	var stack []openFrame

	for _, ev := range res.Events {
		switch ev.Type {
		case ucprof.Open:
			stack = append(stack, openFrame{frame: ev.Frame, openedAt: ev.At})
			active[ev.Frame]++
			ft.calls[ev.Frame]++
		case ucprof.Close:
			if len(stack) == 0 {
				continue
			}
			top := stack[len(stack)-1]
			stack = stack[:len(stack)-1]
			active[top.frame]--

			duration := ev.At - top.openedAt
			ft.self[top.frame] += duration - top.children
			// Only the outermost activation of a recursive function counts.
			if active[top.frame] == 0 {
				ft.total[top.frame] += duration
			}
			if len(stack) > 0 {
				stack[len(stack)-1].children += duration
			}
		}
	}
	return ft
}

// Duration returns the time between the first and the last stack event.
func Duration(res callstack.Result) float64 {
	if len(res.Events) == 0 {
		return 0
	}
	return res.Events[len(res.Events)-1].At - res.Events[0].At
}

func rank(res callstack.Result, topN int, byTime func(ft frameTimes, i int) float64) []Hotspot {
	ft := measure(res)
	duration := Duration(res)

	hotspots := make([]Hotspot, 0, len(res.Frames))
	for i, fr := range res.Frames {
		if i == res.OverflowFrame || ft.calls[i] == 0 {
			continue
		}
		hs := Hotspot{
			Function:   fr.Name,
			SourceFile: fr.File,
			LineNumber: fr.Line,
			TotalTime:  ft.total[i],
			SelfTime:   ft.self[i],
			CallCount:  ft.calls[i],
		}
		if duration > 0 {
			hs.Percentage = byTime(ft, i) / duration * 100.0
		}
		hotspots = append(hotspots, hs)
	}

	sort.SliceStable(hotspots, func(i, j int) bool {
		return hotspots[i].Percentage > hotspots[j].Percentage
	})

	if topN > 0 && topN < len(hotspots) {
		return hotspots[:topN]
	}
	return hotspots
}

// FindHotspots returns functions sorted by inclusive time (descending).
func FindHotspots(res callstack.Result, topN int) []Hotspot {
	return rank(res, topN, func(ft frameTimes, i int) float64 { return ft.total[i] })
}

// FindBottomFunctions returns functions sorted by self time (descending).
// These are where the CPU time is actually spent.
func FindBottomFunctions(res callstack.Result, topN int) []Hotspot {
	return rank(res, topN, func(ft frameTimes, i int) float64 { return ft.self[i] })
}

// StackAt returns the frames open at time t, outermost first.
func StackAt(res callstack.Result, t float64) []callstack.Frame {
	var stack []int
	for _, ev := range res.Events {
		if ev.At > t {
			break
		}
		switch ev.Type {
		case ucprof.Open:
			stack = append(stack, ev.Frame)
		case ucprof.Close:
			if len(stack) > 0 {
				stack = stack[:len(stack)-1]
			}
		}
	}
	frames := make([]callstack.Frame, len(stack))
	for i, idx := range stack {
		frames[i] = res.Frames[idx]
	}
	return frames
}

// FormatHotspot returns a human-readable string representation of a hotspot
func FormatHotspot(hs Hotspot, rank int) string {
	var sb strings.Builder

	sb.WriteString(fmt.Sprintf("#%d: %s\n", rank, hs.Function))
	sb.WriteString(fmt.Sprintf("    Total: %.9f seconds\n", hs.TotalTime))
	sb.WriteString(fmt.Sprintf("    Self: %.9f seconds\n", hs.SelfTime))
	sb.WriteString(fmt.Sprintf("    Share: %.2f%%\n", hs.Percentage))
	sb.WriteString(fmt.Sprintf("    Calls: %d\n", hs.CallCount))

	if hs.SourceFile != "" {
		sb.WriteString(fmt.Sprintf("    Source: %s:%d\n", hs.SourceFile, hs.LineNumber))
	}

	return sb.String()
}
