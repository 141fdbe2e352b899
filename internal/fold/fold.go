// Package fold runs the complete trace-to-flamegraph pipeline: it loads the
// inputs, ranks the execution contexts and exports the call stacks of the
// busiest ones.
package fold

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/sirupsen/logrus"

	"github.com/lukasnee/ucprof/internal/callstack"
	"github.com/lukasnee/ucprof/internal/config"
	"github.com/lukasnee/ucprof/internal/speedscope"
	"github.com/lukasnee/ucprof/internal/ucprof"
)

// Load reads the inputs named in opts.
func Load(opts config.Options, log logrus.Ext1FieldLogger) (*ucprof.TraceData, error) {
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	bo := opts.BuildOptions()
	bo.Log = log
	td, err := ucprof.ReadTrace(opts.SymbolsPath, opts.TracePath, float64(opts.ClockHz), bo)
	if err != nil {
		return nil, err
	}
	log.Debugf("\n%s", ucprof.FormatRanking(td.Ranking))
	return td, nil
}

// Reconstruct rebuilds the call stack of one context. ok is false when the
// context has no events inside the selected window.
func Reconstruct(td *ucprof.TraceData, ctx uint32, log logrus.Ext1FieldLogger) (res callstack.Result, ok bool) {
	events := td.ContextEvents(ctx)
	if len(events) == 0 {
		log.Infof("No events for context %s", ucprof.ContextLabel(ctx))
		return callstack.Result{}, false
	}
	res = callstack.Reconstruct(events, log.WithField("context", ucprof.ContextLabel(ctx)))
	if len(res.Events) == 0 {
		log.Infof("No complete calls for context %s", ucprof.ContextLabel(ctx))
		return res, false
	}
	if res.Recoveries > 0 {
		log.Warnf("Context %s: %d call stack recoveries", ucprof.ContextLabel(ctx), res.Recoveries)
	}
	return res, true
}

// Export builds the speedscope document of ctx, or nil when the context has
// nothing to show. All contexts share the time range of the whole trace.
func Export(td *ucprof.TraceData, ctx uint32, log logrus.Ext1FieldLogger) *speedscope.File {
	res, ok := Reconstruct(td, ctx, log)
	if !ok {
		return nil
	}
	if err := callstack.Validate(res.Events); err != nil {
		log.Errorf("Context %s: reconstructed stack is not balanced: %v", ucprof.ContextLabel(ctx), err)
	}
	start, end := td.TimeRange()
	return speedscope.Export(start, end, res, ucprof.ContextLabel(ctx))
}

// Run exports the top contexts of the trace to outDir and returns the paths
// written.
func Run(opts config.Options, log logrus.Ext1FieldLogger) ([]string, error) {
	td, err := Load(opts, log)
	if err != nil {
		return nil, err
	}

	outDir := opts.OutDir
	if outDir == "" {
		outDir = "."
	}
	if err := os.MkdirAll(outDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create output directory: %w", err)
	}

	var written []string
	for rank, cc := range td.Ranking.Top(opts.Top) {
		doc := Export(td, cc.Context, log)
		if doc == nil {
			continue
		}
		path := filepath.Join(outDir, speedscope.OutputName(opts.TracePath, rank))
		if err := speedscope.WriteFile(path, doc); err != nil {
			return written, err
		}
		log.Infof("Exported to %s", path)
		written = append(written, path)
	}
	return written, nil
}
