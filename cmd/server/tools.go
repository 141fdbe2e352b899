package main

import (
	"context"
	"fmt"
	"math"
	"strconv"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cast"

	"github.com/lukasnee/ucprof/internal/analyzer"
	"github.com/lukasnee/ucprof/internal/callstack"
	"github.com/lukasnee/ucprof/internal/config"
	"github.com/lukasnee/ucprof/internal/fold"
	"github.com/lukasnee/ucprof/internal/speedscope"
	"github.com/lukasnee/ucprof/internal/ucprof"
)

const ruler = "═══════════════════════════════════════════════════\n\n"

// loadedTrace is a trace held in the server cache with the call stacks
// reconstructed so far.
type loadedTrace struct {
	data    *ucprof.TraceData
	results map[uint32]callstack.Result
}

// toolSet implements the MCP tools over a cache of loaded traces.
type toolSet struct {
	mu     sync.Mutex
	traces map[string]*loadedTrace
	log    logrus.Ext1FieldLogger
}

func newToolSet(log logrus.Ext1FieldLogger) *toolSet {
	return &toolSet{
		traces: make(map[string]*loadedTrace),
		log:    log,
	}
}

func (t *toolSet) lookup(request mcp.CallToolRequest) (*loadedTrace, error) {
	id, err := request.RequireString("trace_id")
	if err != nil {
		return nil, err
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	lt, ok := t.traces[id]
	if !ok {
		return nil, fmt.Errorf("trace %s not loaded. Use load_trace tool first", id)
	}
	return lt, nil
}

// reconstruct returns the cached call stack of the requested context.
func (t *toolSet) reconstruct(request mcp.CallToolRequest) (*loadedTrace, uint32, callstack.Result, error) {
	lt, err := t.lookup(request)
	if err != nil {
		return nil, 0, callstack.Result{}, err
	}
	raw, err := request.RequireString("context")
	if err != nil {
		return nil, 0, callstack.Result{}, err
	}
	ctx, err := parseContext(raw)
	if err != nil {
		return nil, 0, callstack.Result{}, err
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	if res, ok := lt.results[ctx]; ok {
		return lt, ctx, res, nil
	}
	res, ok := fold.Reconstruct(lt.data, ctx, t.log)
	if !ok {
		return nil, 0, callstack.Result{}, fmt.Errorf("no events for context %s", ucprof.ContextLabel(ctx))
	}
	lt.results[ctx] = res
	return lt, ctx, res, nil
}

func parseContext(s string) (uint32, error) {
	s = strings.TrimPrefix(strings.ToLower(strings.TrimSpace(s)), "0x")
	v, err := strconv.ParseUint(s, 16, 32)
	if err != nil {
		return 0, fmt.Errorf("invalid context %q: %w", s, err)
	}
	return uint32(v), nil
}

func (t *toolSet) loadTrace(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	symbolsPath, err := request.RequireString("symbols_path")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	tracePath, err := request.RequireString("trace_path")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	opts := config.Default()
	opts.SymbolsPath, opts.TracePath = symbolsPath, tracePath
	clockHz := request.GetFloat("clk_freq", float64(opts.ClockHz))
	if clockHz <= 0 || clockHz != math.Trunc(clockHz) {
		return mcp.NewToolResultError(fmt.Sprintf("Invalid clk_freq: %v (must be a positive whole number of Hz)", clockHz)), nil
	}
	opts.ClockHz = uint64(clockHz)
	if opts.FirmwareBase, err = cast.ToUint32E(request.GetString("fw_base", fmt.Sprint(opts.FirmwareBase))); err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Invalid fw_base: %v", err)), nil
	}
	if opts.FirmwareSize, err = cast.ToUint32E(request.GetString("fw_size", fmt.Sprint(opts.FirmwareSize))); err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Invalid fw_size: %v", err)), nil
	}
	args := request.GetArguments()
	if _, ok := args["begin"]; ok {
		begin := request.GetFloat("begin", 0)
		opts.Begin = &begin
	}
	if _, ok := args["end"]; ok {
		end := request.GetFloat("end", 0)
		opts.End = &end
	}

	td, err := fold.Load(opts, t.log)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to load trace: %v", err)), nil
	}

	id := uuid.NewString()
	t.mu.Lock()
	t.traces[id] = &loadedTrace{data: td, results: make(map[uint32]callstack.Result)}
	t.mu.Unlock()

	start, end := td.TimeRange()
	var low, high uint32
	if syms := td.Symbols.Symbols(); len(syms) > 0 {
		low, high = syms[0].Address, syms[len(syms)-1].Address
	}
	result := fmt.Sprintf(`Trace loaded successfully!

Trace ID: %s
Trace: %s
Symbols: %d (0x%08x - 0x%08x)
Packets: %d
Events: %d
Threads: %d
Interrupt packets: %d
Time range: %.9f - %.9f seconds

Use other tools with this trace_id to analyze the trace.
`,
		id,
		tracePath,
		td.Symbols.Len(), low, high,
		len(td.Packets),
		len(td.Events),
		len(td.Ranking.Contexts),
		td.Ranking.Interrupts,
		start, end,
	)
	return mcp.NewToolResultText(result), nil
}

func (t *toolSet) rankContexts(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	lt, err := t.lookup(request)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	topN := int(request.GetFloat("top_n", 10))

	ranking := lt.data.Ranking
	var sb strings.Builder
	sb.WriteString("🧵 THREADS BY EVENT VOLUME\n")
	sb.WriteString(ruler)
	if len(ranking.Contexts) == 0 {
		sb.WriteString("No thread events found.\n")
	}
	for i, cc := range ranking.Top(topN) {
		sb.WriteString(fmt.Sprintf("%d. %s  %d packets\n", i, ucprof.ContextLabel(cc.Context), cc.Count))
	}
	sb.WriteString(fmt.Sprintf("\nInterrupt packets (not ranked): %d\n", ranking.Interrupts))
	return mcp.NewToolResultText(sb.String()), nil
}

func (t *toolSet) exportContext(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	outputPath, err := request.RequireString("output_path")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	lt, c, res, err := t.reconstruct(request)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	start, end := lt.data.TimeRange()
	doc := speedscope.Export(start, end, res, ucprof.ContextLabel(c))
	if doc == nil {
		return mcp.NewToolResultError("Nothing to export"), nil
	}
	if err := speedscope.WriteFile(outputPath, doc); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("Exported rank %d context %s: %d events and %d frames to %s\n",
		lt.data.Ranking.Rank(c), ucprof.ContextLabel(c), len(res.Events), len(res.Frames), outputPath)), nil
}

func (t *toolSet) findHotspots(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return t.hotspotReport(request, "🔥 TOP HOTSPOTS (Inclusive Time)\n", analyzer.FindHotspots)
}

func (t *toolSet) findBottomFunctions(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return t.hotspotReport(request, "🎯 SELF TIME (Where Actual CPU Work Happens)\n", analyzer.FindBottomFunctions)
}

func (t *toolSet) hotspotReport(request mcp.CallToolRequest, title string, find func(callstack.Result, int) []analyzer.Hotspot) (*mcp.CallToolResult, error) {
	_, _, res, err := t.reconstruct(request)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	topN := int(request.GetFloat("top_n", 10))

	var sb strings.Builder
	sb.WriteString(title)
	sb.WriteString(ruler)
	hotspots := find(res, topN)
	if len(hotspots) == 0 {
		sb.WriteString("No functions found.\n")
	}
	for i, hs := range hotspots {
		sb.WriteString(analyzer.FormatHotspot(hs, i+1))
		sb.WriteString("\n")
	}
	return mcp.NewToolResultText(sb.String()), nil
}

func (t *toolSet) getStatistics(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	lt, c, res, err := t.reconstruct(request)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	stats := analyzer.ComputeStatistics(res)

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("📊 THREAD %s STATISTICS\n", ucprof.ContextLabel(c)))
	sb.WriteString(ruler)
	sb.WriteString(fmt.Sprintf("Rank: %d\n", lt.data.Ranking.Rank(c)))
	sb.WriteString(fmt.Sprintf("Duration: %.9f seconds\n", stats.TotalTime))
	sb.WriteString(fmt.Sprintf("Calls: %d\n", stats.TotalCalls))
	sb.WriteString(fmt.Sprintf("Unique Functions: %d\n\n", stats.UniqueFunctions))
	sb.WriteString("Call Stack Depth:\n")
	sb.WriteString(fmt.Sprintf("  Average: %.2f frames\n", stats.AverageStackDepth))
	sb.WriteString(fmt.Sprintf("  Maximum: %d frames\n\n", stats.MaxStackDepth))
	sb.WriteString("Trace Quality:\n")
	sb.WriteString(fmt.Sprintf("  Recoveries: %d\n", stats.Recoveries))
	sb.WriteString(fmt.Sprintf("  Unattributed time: %.9f seconds\n", stats.OverflowTime))
	sb.WriteString(fmt.Sprintf("  Discarded closes: %d\n", stats.DiscardedCloses))
	return mcp.NewToolResultText(sb.String()), nil
}

func (t *toolSet) detectIssues(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	_, _, res, err := t.reconstruct(request)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	issues := analyzer.DetectPerformanceIssues(res)

	var sb strings.Builder
	sb.WriteString("⚠️  AUTOMATED PERFORMANCE ISSUE DETECTION\n")
	sb.WriteString(ruler)
	if len(issues) == 0 {
		sb.WriteString("✅ No significant performance issues detected!\n")
		return mcp.NewToolResultText(sb.String()), nil
	}

	counts := make(map[string]int)
	for i, issue := range issues {
		counts[issue.Severity]++
		sb.WriteString(fmt.Sprintf("%d. [%s] [%s] %s\n", i+1, issue.Severity, issue.Category, issue.Description))
		if issue.Function != "" {
			sb.WriteString(fmt.Sprintf("   Function: %s\n", issue.Function))
		}
		if issue.Impact > 0 {
			sb.WriteString(fmt.Sprintf("   Impact: %.2f%% of total time\n", issue.Impact))
		}
		sb.WriteString("\n")
	}

	sb.WriteString("📊 SUMMARY:\n")
	for _, sev := range []string{"Critical", "High", "Medium", "Low"} {
		sb.WriteString(fmt.Sprintf("   %s: %d\n", sev, counts[sev]))
	}
	return mcp.NewToolResultText(sb.String()), nil
}

func (t *toolSet) viewCallstack(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	at, err := request.RequireFloat("at")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	_, c, res, err := t.reconstruct(request)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	frames := analyzer.StackAt(res, at)

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("📞 THREAD %s CALLSTACK AT %.9f s\n", ucprof.ContextLabel(c), at))
	sb.WriteString(ruler)
	if len(frames) == 0 {
		sb.WriteString("No function is active at this time.\n")
	}
	for depth, fr := range frames {
		sb.WriteString(fmt.Sprintf("%s%s", strings.Repeat("  ", depth), fr.Name))
		if fr.File != "" {
			sb.WriteString(fmt.Sprintf("  (%s:%d)", fr.File, fr.Line))
		}
		sb.WriteString("\n")
	}
	return mcp.NewToolResultText(sb.String()), nil
}
