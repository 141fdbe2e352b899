// Package config holds the run options of ucprof and reads them from an
// optional YAML file.
package config

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cast"
	"gopkg.in/yaml.v3"

	"github.com/lukasnee/ucprof/internal/ucprof"
)

var errUnknownKey = errors.New("unknown key")

// Options controls one fold run.
type Options struct {
	SymbolsPath  string
	TracePath    string
	Begin        *float64 // seconds
	End          *float64 // seconds
	ClockHz      uint64
	FirmwareBase uint32
	FirmwareSize uint32
	Verbosity    int
	NoColor      bool
	Top          int
	OutDir       string
}

// Default returns the options of the reference target.
func Default() Options {
	return Options{
		ClockHz:      ucprof.DefaultClockHz,
		FirmwareBase: ucprof.DefaultFirmwareBase,
		FirmwareSize: ucprof.DefaultFirmwareSize,
		Top:          10,
		OutDir:       ".",
	}
}

// Keys accepted in a config file. They match the long flag names.
const (
	KeyBegin     = "begin"
	KeyEnd       = "end"
	KeyClockFreq = "clk-freq"
	KeyFwBase    = "fw-base"
	KeyFwSize    = "fw-size"
	KeyVerbosity = "verbosity"
	KeyNoColor   = "no-color"
	KeyTop       = "top"
	KeyOutDir    = "out-dir"
)

// File is the raw content of a config file. Values are loosely typed so that
// addresses may be written as "0x90000000" as well as plain integers.
type File map[string]any

// ReadFile decodes the YAML config file at path.
func ReadFile(path string) (File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}
	var f File
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("config: parse %s: %w", path, err)
	}
	return f, nil
}

// Apply copies the values present in f into opts. skip reports keys that
// were set explicitly on the command line and must not be overridden.
func (f File) Apply(opts *Options, skip func(key string) bool) error {
	for key, raw := range f {
		if skip != nil && skip(key) {
			continue
		}
		if err := apply(opts, key, raw); err != nil {
			return fmt.Errorf("config: %s: %w", key, err)
		}
	}
	return nil
}

func apply(opts *Options, key string, raw any) error {
	var err error
	switch key {
	case KeyBegin:
		var v float64
		if v, err = cast.ToFloat64E(raw); err == nil {
			opts.Begin = &v
		}
	case KeyEnd:
		var v float64
		if v, err = cast.ToFloat64E(raw); err == nil {
			opts.End = &v
		}
	case KeyClockFreq:
		opts.ClockHz, err = cast.ToUint64E(raw)
	case KeyFwBase:
		opts.FirmwareBase, err = cast.ToUint32E(raw)
	case KeyFwSize:
		opts.FirmwareSize, err = cast.ToUint32E(raw)
	case KeyVerbosity:
		opts.Verbosity, err = cast.ToIntE(raw)
	case KeyNoColor:
		opts.NoColor, err = cast.ToBoolE(raw)
	case KeyTop:
		opts.Top, err = cast.ToIntE(raw)
	case KeyOutDir:
		opts.OutDir, err = cast.ToStringE(raw)
	default:
		return errUnknownKey
	}
	return err
}

// Validate reports options that make a run impossible.
func (o Options) Validate() error {
	if o.SymbolsPath == "" || o.TracePath == "" {
		return ucprof.ErrMissingInput
	}
	if o.ClockHz == 0 {
		return errors.New("clock frequency must be positive")
	}
	if o.Begin != nil && o.End != nil && *o.End < *o.Begin {
		return fmt.Errorf("end %.9f is before begin %.9f", *o.End, *o.Begin)
	}
	return nil
}

// BuildOptions returns the event builder settings of o.
func (o Options) BuildOptions() ucprof.BuildOptions {
	return ucprof.BuildOptions{
		FirmwareBase: o.FirmwareBase,
		FirmwareSize: o.FirmwareSize,
		Begin:        o.Begin,
		End:          o.End,
	}
}
