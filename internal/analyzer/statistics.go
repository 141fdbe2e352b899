package analyzer

import (
	"fmt"
	"sort"

	"github.com/lukasnee/ucprof/internal/callstack"
	"github.com/lukasnee/ucprof/internal/ucprof"
)

// ProfileStatistics summarizes one reconstructed context
type ProfileStatistics struct {
	TotalTime         float64
	TotalCalls        int
	TotalFrames       int
	UniqueFunctions   int
	AverageStackDepth float64 // depth at each function entry
	MaxStackDepth     int
	Recoveries        int
	OverflowTime      float64 // time covered by OVERFLOW! frames
	DiscardedCloses   int
}

// ComputeStatistics calculates statistics for a reconstructed context
func ComputeStatistics(res callstack.Result) ProfileStatistics {
	stats := ProfileStatistics{
		TotalTime:       Duration(res),
		TotalFrames:     len(res.Frames),
		Recoveries:      res.Recoveries,
		DiscardedCloses: res.Discarded,
	}

	depth := 0
	totalDepth := 0
	used := make(map[int]bool)
	var overflowOpenedAt float64

	for _, ev := range res.Events {
		switch ev.Type {
		case ucprof.Open:
			depth++
			if ev.Frame == res.OverflowFrame {
				overflowOpenedAt = ev.At
				continue
			}
			stats.TotalCalls++
			totalDepth += depth
			used[ev.Frame] = true
			if depth > stats.MaxStackDepth {
				stats.MaxStackDepth = depth
			}
		case ucprof.Close:
			depth--
			if ev.Frame == res.OverflowFrame {
				stats.OverflowTime += ev.At - overflowOpenedAt
			}
		}
	}

	stats.UniqueFunctions = len(used)
	if stats.TotalCalls > 0 {
		stats.AverageStackDepth = float64(totalDepth) / float64(stats.TotalCalls)
	}
	return stats
}

// PerformanceIssue is a finding of the heuristic analysis
type PerformanceIssue struct {
	Severity    string // "Critical", "High", "Medium", "Low"
	Category    string // e.g. "CPU Hotspot", "Trace Loss"
	Description string
	Function    string
	Impact      float64 // % of total time
}

// DetectPerformanceIssues identifies potential performance problems and
// trace quality problems of one context.
func DetectPerformanceIssues(res callstack.Result) []PerformanceIssue {
	issues := []PerformanceIssue{}
	stats := ComputeStatistics(res)

	if stats.MaxStackDepth > 50 {
		issues = append(issues, PerformanceIssue{
			Severity:    "High",
			Category:    "Deep Call Stack",
			Description: fmt.Sprintf("Maximum stack depth of %d frames detected. Check stack size and recursion.", stats.MaxStackDepth),
		})
	}

	if stats.Recoveries > 0 {
		share := 0.0
		if stats.TotalTime > 0 {
			share = stats.OverflowTime / stats.TotalTime * 100.0
		}
		severity := "Medium"
		if share > 10.0 {
			severity = "High"
		}
		issues = append(issues, PerformanceIssue{
			Severity: severity,
			Category: "Trace Loss",
			Description: fmt.Sprintf("%d call stack recoveries, %.2f%% of the time is unattributed. Enlarge the trace buffer or lower the trace rate.",
				stats.Recoveries, share),
			Impact: share,
		})
	}

	for _, hs := range FindBottomFunctions(res, 10) {
		if hs.Percentage > 20.0 {
			issues = append(issues, PerformanceIssue{
				Severity:    "Critical",
				Category:    "CPU Hotspot",
				Description: fmt.Sprintf("Function spends %.2f%% of the time in its own code", hs.Percentage),
				Function:    hs.Function,
				Impact:      hs.Percentage,
			})
		} else if hs.Percentage > 10.0 {
			issues = append(issues, PerformanceIssue{
				Severity:    "High",
				Category:    "CPU Hotspot",
				Description: fmt.Sprintf("Function spends %.2f%% of the time in its own code", hs.Percentage),
				Function:    hs.Function,
				Impact:      hs.Percentage,
			})
		}
	}

	if stats.TotalCalls > 0 {
		for _, hs := range FindHotspots(res, 0) {
			share := float64(hs.CallCount) / float64(stats.TotalCalls) * 100.0
			if share > 50.0 {
				issues = append(issues, PerformanceIssue{
					Severity:    "Low",
					Category:    "Frequent Call",
					Description: fmt.Sprintf("Function accounts for %.2f%% of all calls - instrumentation overhead may dominate", share),
					Function:    hs.Function,
				})
			}
		}
	}

	sort.SliceStable(issues, func(i, j int) bool {
		return issues[i].Impact > issues[j].Impact
	})

	return issues
}
