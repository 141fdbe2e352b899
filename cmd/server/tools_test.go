package main

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lukasnee/ucprof/internal/ucprof"
)

const thread = uint32(0x2000a1b0)

func call(args map[string]any) mcp.CallToolRequest {
	return mcp.CallToolRequest{Params: mcp.CallToolParams{Arguments: args}}
}

func text(t *testing.T, res *mcp.CallToolResult) string {
	t.Helper()
	require.NotNil(t, res)
	require.NotEmpty(t, res.Content)
	tc, ok := res.Content[0].(mcp.TextContent)
	require.True(t, ok)
	return tc.Text
}

// loadSample loads a small desynchronized trace and returns its id.
func loadSample(t *testing.T, tools *toolSet) (string, string) {
	t.Helper()
	dir := t.TempDir()
	symPath := filepath.Join(dir, "fw.nm")
	require.NoError(t, os.WriteFile(symPath, []byte("90000100 T main\tmain.c:10\n90000200 T work\twork.c:20\n"), 0644))

	var buf []byte
	for _, p := range []ucprof.Packet{
		{Type: ucprof.Open, CycleCount: 0, Address: 0x90000200, Context: ucprof.InterruptContext},
		{Type: ucprof.Open, CycleCount: 100, Address: 0x90000100, Context: thread},
		{Type: ucprof.Open, CycleCount: 200, Address: 0x90000200, Context: thread},
		{Type: ucprof.Close, CycleCount: 300, Address: 0x90000200, Context: thread},
		{Type: ucprof.Open, CycleCount: 400, Address: 0x90000200, Context: thread},
		{Type: ucprof.Close, CycleCount: 500, Address: 0x90000100, Context: thread},
	} {
		buf = ucprof.EncodePacket(buf, p)
	}
	tracePath := filepath.Join(dir, "trace.bin")
	require.NoError(t, os.WriteFile(tracePath, buf, 0644))

	res, err := tools.loadTrace(context.Background(), call(map[string]any{
		"symbols_path": symPath,
		"trace_path":   tracePath,
		"clk_freq":     1000.0,
		"fw_base":      "0x90000000",
	}))
	require.NoError(t, err)
	require.False(t, res.IsError, text(t, res))
	assert.Contains(t, text(t, res), "Interrupt packets: 1")
	assert.Contains(t, text(t, res), "Symbols: 2 (0x90000100 - 0x90000200)")

	require.Len(t, tools.traces, 1)
	for id := range tools.traces {
		return id, dir
	}
	return "", dir
}

func newTestTools() *toolSet {
	log, _ := test.NewNullLogger()
	return newToolSet(log)
}

func TestLoadTraceMissingFile(t *testing.T) {
	tools := newTestTools()
	res, err := tools.loadTrace(context.Background(), call(map[string]any{
		"symbols_path": "/nonexistent/fw.nm",
		"trace_path":   "/nonexistent/trace.bin",
	}))
	require.NoError(t, err)
	assert.True(t, res.IsError)
}

func TestUnknownTrace(t *testing.T) {
	tools := newTestTools()
	res, err := tools.rankContexts(context.Background(), call(map[string]any{"trace_id": "nope"}))
	require.NoError(t, err)
	assert.True(t, res.IsError)
	assert.Contains(t, text(t, res), "load_trace")
}

func TestRankContexts(t *testing.T) {
	tools := newTestTools()
	id, _ := loadSample(t, tools)

	res, err := tools.rankContexts(context.Background(), call(map[string]any{"trace_id": id}))
	require.NoError(t, err)
	out := text(t, res)
	assert.Contains(t, out, "0. 2000a1b0  5 packets")
	assert.Contains(t, out, "Interrupt packets (not ranked): 1")
}

func TestStatisticsReportRecovery(t *testing.T) {
	tools := newTestTools()
	id, _ := loadSample(t, tools)

	res, err := tools.getStatistics(context.Background(), call(map[string]any{"trace_id": id, "context": "2000a1b0"}))
	require.NoError(t, err)
	require.False(t, res.IsError, text(t, res))
	assert.Contains(t, text(t, res), "Recoveries: 1")

	res, err = tools.detectIssues(context.Background(), call(map[string]any{"trace_id": id, "context": "0x2000A1B0"}))
	require.NoError(t, err)
	assert.Contains(t, text(t, res), "Trace Loss")
}

func TestHotspotsAndCallstack(t *testing.T) {
	tools := newTestTools()
	id, _ := loadSample(t, tools)

	res, err := tools.findHotspots(context.Background(), call(map[string]any{"trace_id": id, "context": "2000a1b0", "top_n": 1.0}))
	require.NoError(t, err)
	assert.Contains(t, text(t, res), "#1: main")
	assert.NotContains(t, text(t, res), "#2:")

	res, err = tools.findBottomFunctions(context.Background(), call(map[string]any{"trace_id": id, "context": "2000a1b0"}))
	require.NoError(t, err)
	assert.Contains(t, text(t, res), "work")

	res, err = tools.viewCallstack(context.Background(), call(map[string]any{"trace_id": id, "context": "2000a1b0", "at": 0.25}))
	require.NoError(t, err)
	assert.Contains(t, text(t, res), "main  (main.c:10)\n  work  (work.c:20)")
}

func TestExportContext(t *testing.T) {
	tools := newTestTools()
	id, dir := loadSample(t, tools)
	out := filepath.Join(dir, "thread.json")

	res, err := tools.exportContext(context.Background(), call(map[string]any{
		"trace_id":    id,
		"context":     "2000a1b0",
		"output_path": out,
	}))
	require.NoError(t, err)
	require.False(t, res.IsError, text(t, res))
	assert.FileExists(t, out)

	res, err = tools.exportContext(context.Background(), call(map[string]any{
		"trace_id":    id,
		"context":     "12345678",
		"output_path": out,
	}))
	require.NoError(t, err)
	assert.True(t, res.IsError)
}

func TestLoadTraceRejectsClockFrequency(t *testing.T) {
	for _, clk := range []float64{0, -480000000, 1000.5} {
		tools := newTestTools()
		res, err := tools.loadTrace(context.Background(), call(map[string]any{
			"symbols_path": "fw.nm",
			"trace_path":   "trace.bin",
			"clk_freq":     clk,
		}))
		require.NoError(t, err)
		assert.True(t, res.IsError, "clk_freq %v", clk)
		assert.Contains(t, text(t, res), "Invalid clk_freq")
		assert.Empty(t, tools.traces)
	}
}

func TestReportsCarryRank(t *testing.T) {
	tools := newTestTools()
	id, dir := loadSample(t, tools)

	res, err := tools.getStatistics(context.Background(), call(map[string]any{"trace_id": id, "context": "2000a1b0"}))
	require.NoError(t, err)
	assert.Contains(t, text(t, res), "Rank: 0\n")

	res, err = tools.exportContext(context.Background(), call(map[string]any{
		"trace_id":    id,
		"context":     "2000a1b0",
		"output_path": filepath.Join(dir, "ranked.json"),
	}))
	require.NoError(t, err)
	assert.Contains(t, text(t, res), "Exported rank 0 context 2000a1b0")
}
