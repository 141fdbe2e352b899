package analyzer

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lukasnee/ucprof/internal/callstack"
	"github.com/lukasnee/ucprof/internal/ucprof"
)

func ev(typ ucprof.EventType, at float64, frame int) callstack.StackEvent {
	return callstack.StackEvent{Type: typ, At: at, Frame: frame}
}

// main [0,10] calls work [2,6] which calls leaf [3,4]; main calls work again [7,9].
func nestedResult() callstack.Result {
	return callstack.Result{
		Events: []callstack.StackEvent{
			ev(ucprof.Open, 0, 0),
			ev(ucprof.Open, 2, 1),
			ev(ucprof.Open, 3, 2),
			ev(ucprof.Close, 4, 2),
			ev(ucprof.Close, 6, 1),
			ev(ucprof.Open, 7, 1),
			ev(ucprof.Close, 9, 1),
			ev(ucprof.Close, 10, 0),
		},
		Frames: []callstack.Frame{
			{Name: "main", File: "main.c", Line: 1, Col: 1},
			{Name: "work", File: "work.c", Line: 2, Col: 1},
			{Name: "leaf", File: "leaf.c", Line: 3, Col: 1},
			{Name: callstack.OverflowFrameName, Col: 1},
		},
		OverflowFrame: 3,
	}
}

func byName(hs []Hotspot) map[string]Hotspot {
	m := make(map[string]Hotspot)
	for _, h := range hs {
		m[h.Function] = h
	}
	return m
}

func TestFindHotspots(t *testing.T) {
	hs := FindHotspots(nestedResult(), 0)
	require.Len(t, hs, 3)
	assert.Equal(t, "main", hs[0].Function)

	m := byName(hs)
	assert.InDelta(t, 10.0, m["main"].TotalTime, 1e-9)
	assert.InDelta(t, 6.0, m["work"].TotalTime, 1e-9)
	assert.InDelta(t, 1.0, m["leaf"].TotalTime, 1e-9)
	assert.Equal(t, 2, m["work"].CallCount)
	assert.InDelta(t, 60.0, m["work"].Percentage, 1e-9)
}

func TestFindBottomFunctions(t *testing.T) {
	hs := FindBottomFunctions(nestedResult(), 2)
	require.Len(t, hs, 2)
	assert.Equal(t, "work", hs[0].Function)
	assert.InDelta(t, 5.0, hs[0].SelfTime, 1e-9)
	assert.Equal(t, "main", hs[1].Function)
	assert.InDelta(t, 4.0, hs[1].SelfTime, 1e-9)
}

func TestHotspotsCountRecursionOnce(t *testing.T) {
	res := callstack.Result{
		Events: []callstack.StackEvent{
			ev(ucprof.Open, 0, 0),
			ev(ucprof.Open, 1, 0),
			ev(ucprof.Close, 3, 0),
			ev(ucprof.Close, 4, 0),
		},
		Frames:        []callstack.Frame{{Name: "fib"}, {Name: callstack.OverflowFrameName}},
		OverflowFrame: 1,
	}
	hs := FindHotspots(res, 0)
	require.Len(t, hs, 1)
	assert.InDelta(t, 4.0, hs[0].TotalTime, 1e-9)
	assert.InDelta(t, 4.0, hs[0].SelfTime, 1e-9)
	assert.Equal(t, 2, hs[0].CallCount)
}

func TestComputeStatistics(t *testing.T) {
	stats := ComputeStatistics(nestedResult())
	assert.InDelta(t, 10.0, stats.TotalTime, 1e-9)
	assert.Equal(t, 4, stats.TotalCalls)
	assert.Equal(t, 3, stats.UniqueFunctions)
	assert.Equal(t, 3, stats.MaxStackDepth)
	assert.InDelta(t, 2.0, stats.AverageStackDepth, 1e-9)
	assert.Zero(t, stats.Recoveries)
}

func TestStatisticsOverflowTime(t *testing.T) {
	res := callstack.Reconstruct([]ucprof.Event{
		{Timestamp: 1, Type: ucprof.Open, Name: "A"},
		{Timestamp: 2, Type: ucprof.Open, Name: "B"},
		{Timestamp: 3, Type: ucprof.Close, Name: "A"},
		{Timestamp: 5, Type: ucprof.Open, Name: "C"},
		{Timestamp: 6, Type: ucprof.Close, Name: "C"},
	}, nil)

	stats := ComputeStatistics(res)
	assert.Equal(t, 1, stats.Recoveries)
	assert.InDelta(t, 2.0, stats.OverflowTime, 1e-9)

	issues := DetectPerformanceIssues(res)
	var categories []string
	for _, is := range issues {
		categories = append(categories, is.Category)
	}
	assert.Contains(t, categories, "Trace Loss")
}

func TestStackAt(t *testing.T) {
	res := nestedResult()
	names := func(frames []callstack.Frame) []string {
		var out []string
		for _, f := range frames {
			out = append(out, f.Name)
		}
		return out
	}
	assert.Equal(t, []string{"main", "work", "leaf"}, names(StackAt(res, 3.5)))
	assert.Equal(t, []string{"main"}, names(StackAt(res, 6.5)))
	assert.Empty(t, StackAt(res, -1))
	assert.Empty(t, StackAt(res, 11))
}

func TestFormatHotspot(t *testing.T) {
	s := FormatHotspot(Hotspot{Function: "work", SourceFile: "work.c", LineNumber: 2, CallCount: 3}, 1)
	assert.Contains(t, s, "#1: work")
	assert.Contains(t, s, "Source: work.c:2")
	assert.Contains(t, s, "Calls: 3")
}
