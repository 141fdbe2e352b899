package main

import (
	"log"
	"os"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/lukasnee/ucprof/internal/logging"
)

func main() {
	// stdout carries the MCP protocol, diagnostics go to stderr.
	tools := newToolSet(logging.New(os.Stderr, 0, true))

	s := server.NewMCPServer(
		"ucprof-trace",
		"1.0.0",
		server.WithLogging(),
	)
	registerTools(s, tools)

	if err := server.ServeStdio(s); err != nil {
		log.Fatalf("Server error: %v", err)
	}
}

func registerTools(s *server.MCPServer, t *toolSet) {
	// Tool 1: Load Trace
	s.AddTool(mcp.NewTool("load_trace",
		mcp.WithDescription("Load a ucprof binary trace together with the firmware symbols. Returns a trace_id used by every other tool."),
		mcp.WithString("symbols_path",
			mcp.Required(),
			mcp.Description("Path to the nm -l output or the firmware ELF"),
		),
		mcp.WithString("trace_path",
			mcp.Required(),
			mcp.Description("Path to the binary trace record"),
		),
		mcp.WithNumber("clk_freq",
			mcp.Description("Cycle counter frequency in Hz (default: 480000000)"),
		),
		mcp.WithString("fw_base",
			mcp.Description("Firmware base address, e.g. 0x90000000"),
		),
		mcp.WithString("fw_size",
			mcp.Description("Firmware size in bytes, e.g. 0x800000"),
		),
		mcp.WithNumber("begin",
			mcp.Description("Ignore events before this time in seconds"),
		),
		mcp.WithNumber("end",
			mcp.Description("Ignore events after this time in seconds"),
		),
	), t.loadTrace)

	// Tool 2: Rank Contexts
	s.AddTool(mcp.NewTool("rank_contexts",
		mcp.WithDescription("List the traced threads ordered by number of recorded events. Interrupt volume is reported separately."),
		mcp.WithString("trace_id",
			mcp.Required(),
			mcp.Description("Id returned by load_trace"),
		),
		mcp.WithNumber("top_n",
			mcp.Description("Number of contexts to list (default: 10)"),
		),
	), t.rankContexts)

	// Tool 3: Export Context
	s.AddTool(mcp.NewTool("export_context",
		mcp.WithDescription("Write the reconstructed call stack of one thread as a speedscope JSON file."),
		mcp.WithString("trace_id",
			mcp.Required(),
			mcp.Description("Id returned by load_trace"),
		),
		mcp.WithString("context",
			mcp.Required(),
			mcp.Description("Context id in hex as listed by rank_contexts"),
		),
		mcp.WithString("output_path",
			mcp.Required(),
			mcp.Description("Path of the JSON file to write"),
		),
	), t.exportContext)

	// Tool 4: Find Hotspots
	s.AddTool(contextTool("find_hotspots",
		"Find the functions with the highest inclusive time in one thread.", true), t.findHotspots)

	// Tool 5: Find Bottom Functions
	s.AddTool(contextTool("find_bottom_functions",
		"Find the functions with the highest self time in one thread - where the CPU work actually happens.", true), t.findBottomFunctions)

	// Tool 6: Get Statistics
	s.AddTool(contextTool("get_statistics",
		"Statistics of one thread: duration, calls, stack depth and trace loss.", false), t.getStatistics)

	// Tool 7: Detect Performance Issues
	s.AddTool(contextTool("detect_performance_issues",
		"Detect hotspots, deep stacks and trace loss in one thread using heuristics.", false), t.detectIssues)

	// Tool 8: View Callstack
	s.AddTool(mcp.NewTool("view_callstack",
		mcp.WithDescription("Show the call stack of one thread at a point in time."),
		mcp.WithString("trace_id",
			mcp.Required(),
			mcp.Description("Id returned by load_trace"),
		),
		mcp.WithString("context",
			mcp.Required(),
			mcp.Description("Context id in hex as listed by rank_contexts"),
		),
		mcp.WithNumber("at",
			mcp.Required(),
			mcp.Description("Time in seconds"),
		),
	), t.viewCallstack)
}

// contextTool declares a tool that analyzes a single context of a loaded trace.
func contextTool(name, description string, withTopN bool) mcp.Tool {
	opts := []mcp.ToolOption{
		mcp.WithDescription(description),
		mcp.WithString("trace_id",
			mcp.Required(),
			mcp.Description("Id returned by load_trace"),
		),
		mcp.WithString("context",
			mcp.Required(),
			mcp.Description("Context id in hex as listed by rank_contexts"),
		),
	}
	if withTopN {
		opts = append(opts, mcp.WithNumber("top_n",
			mcp.Description("Number of functions to return (default: 10)"),
		))
	}
	return mcp.NewTool(name, opts...)
}
