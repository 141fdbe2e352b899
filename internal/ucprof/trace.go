package ucprof

import (
	"errors"
	"fmt"

	"github.com/sirupsen/logrus"
)

// ErrMissingInput is returned when the symbol or trace path is not given.
var ErrMissingInput = errors.New("both the symbol file and the trace file are required")

// ReadTrace reads a symbol file and a trace file, ranks the recorded
// contexts and builds the event stream of the whole trace.
func ReadTrace(symbolsPath, tracePath string, clockHz float64, opts BuildOptions) (*TraceData, error) {
	if symbolsPath == "" || tracePath == "" {
		return nil, ErrMissingInput
	}
	log := opts.Log
	if log == nil {
		log = logrus.StandardLogger()
		opts.Log = log
	}

	table, err := ReadSymbolsFile(symbolsPath, log)
	if err != nil {
		return nil, err
	}
	log.Infof("Symbols parsed: %d", table.Len())

	packets, err := ReadPacketsFile(tracePath, log)
	if err != nil {
		return nil, err
	}
	log.Infof("Packets parsed: %d", len(packets))

	td := &TraceData{
		SymbolsPath: symbolsPath,
		TracePath:   tracePath,
		Symbols:     table,
		Packets:     packets,
		Ranking:     RankContexts(packets),
	}
	td.Events, _ = BuildEvents(table, NewNormalizer(clockHz), packets, opts)
	return td, nil
}

// FormatRanking renders the context,count table printed at debug verbosity.
func FormatRanking(r Ranking) string {
	s := "context,count\n"
	if r.Interrupts > 0 {
		s += fmt.Sprintf("%s,%d\n", ContextLabel(InterruptContext), r.Interrupts)
	}
	for _, cc := range r.Contexts {
		s += fmt.Sprintf("%s,%d\n", ContextLabel(cc.Context), cc.Count)
	}
	return s
}
