// ucprof folds a function entry/exit trace recorded on a microcontroller into
// per-thread speedscope profiles.
package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/lukasnee/ucprof/internal/config"
	"github.com/lukasnee/ucprof/internal/fold"
	"github.com/lukasnee/ucprof/internal/logging"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	opts := config.Default()
	var (
		configPath string
		begin, end float64
	)

	cmd := &cobra.Command{
		Use:   "ucprof [flags] <symbols> <trace>",
		Short: "Tool for processing a ucprof binary record",
		Long: `ucprof converts a binary function entry/exit record into speedscope
profiles, one per traced thread.

<symbols> is the output of "nm -l -n" for the firmware, or the firmware ELF.
<trace> is the raw record captured from the ucprof RTT channel.

Examples:
  ucprof fw.nm trace.bin                   # export the 10 busiest threads
  ucprof --begin 1.5 --end 2 fw.elf trace.bin
  ucprof --top 1 -v 2 --no-color fw.nm trace.bin`,
		Args:          cobra.ExactArgs(2),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			flags := cmd.Flags()
			if configPath != "" {
				file, err := config.ReadFile(configPath)
				if err != nil {
					return err
				}
				if err := file.Apply(&opts, flags.Changed); err != nil {
					return err
				}
			}
			if flags.Changed(config.KeyBegin) {
				opts.Begin = &begin
			}
			if flags.Changed(config.KeyEnd) {
				opts.End = &end
			}
			opts.SymbolsPath, opts.TracePath = args[0], args[1]

			log := logging.New(os.Stderr, opts.Verbosity, opts.NoColor)
			if err := opts.Validate(); err != nil {
				log.Error(err)
				return err
			}
			_, err := fold.Run(opts, log)
			return err
		},
	}

	f := cmd.Flags()
	f.StringVar(&configPath, "config", "", "YAML file with default option values")
	f.Float64Var(&begin, config.KeyBegin, 0, "Timestamp from in seconds")
	f.Float64Var(&end, config.KeyEnd, 0, "Timestamp to in seconds")
	f.Uint64Var(&opts.ClockHz, config.KeyClockFreq, opts.ClockHz, "Clock frequency used for timestamps")
	f.IntVarP(&opts.Verbosity, config.KeyVerbosity, "v", opts.Verbosity, "Verbosity level (0 info, 1 debug, 2 trace)")
	f.Uint32Var(&opts.FirmwareBase, config.KeyFwBase, opts.FirmwareBase, "Firmware base address")
	f.Uint32Var(&opts.FirmwareSize, config.KeyFwSize, opts.FirmwareSize, "Firmware size in bytes")
	f.BoolVar(&opts.NoColor, config.KeyNoColor, opts.NoColor, "Disable colored output")
	f.IntVar(&opts.Top, config.KeyTop, opts.Top, "Process only the top most eventful threads")
	f.StringVar(&opts.OutDir, config.KeyOutDir, opts.OutDir, "Directory the profiles are written to")
	f.SetNormalizeFunc(dashedFlags)

	return cmd
}

// dashedFlags accepts --clk_freq style spellings for --clk-freq.
func dashedFlags(_ *pflag.FlagSet, name string) pflag.NormalizedName {
	return pflag.NormalizedName(strings.ReplaceAll(name, "_", "-"))
}
