// Package logging configures the leveled console diagnostics of ucprof.
package logging

import (
	"bytes"
	"fmt"
	"io"
	"sort"

	"github.com/fatih/color"
	"github.com/sirupsen/logrus"
)

// LevelForVerbosity maps the -v count to a log level.
func LevelForVerbosity(verbosity int) logrus.Level {
	switch {
	case verbosity <= 0:
		return logrus.InfoLevel
	case verbosity == 1:
		return logrus.DebugLevel
	default:
		return logrus.TraceLevel
	}
}

// New returns a logger writing to out with the "X|" level prefix.
func New(out io.Writer, verbosity int, noColor bool) *logrus.Logger {
	l := logrus.New()
	l.SetOutput(out)
	l.SetFormatter(NewFormatter(noColor))
	l.SetLevel(LevelForVerbosity(verbosity))
	return l
}

// Formatter prints entries as "<L>| message key=value...", colored by level.
type Formatter struct {
	colors map[logrus.Level]*color.Color
}

// NewFormatter returns a formatter. With noColor set no escape codes are
// written, regardless of the terminal.
func NewFormatter(noColor bool) *Formatter {
	colors := map[logrus.Level]*color.Color{
		logrus.PanicLevel: color.New(color.FgRed),
		logrus.FatalLevel: color.New(color.FgRed),
		logrus.ErrorLevel: color.New(color.FgRed),
		logrus.WarnLevel:  color.New(color.FgYellow),
		logrus.InfoLevel:  color.New(color.Reset),
		logrus.DebugLevel: color.New(color.FgMagenta),
		logrus.TraceLevel: color.New(color.FgCyan),
	}
	for _, c := range colors {
		if noColor {
			c.DisableColor()
		} else {
			c.EnableColor()
		}
	}
	return &Formatter{colors: colors}
}

func levelLetter(l logrus.Level) string {
	switch l {
	case logrus.PanicLevel, logrus.FatalLevel, logrus.ErrorLevel:
		return "E"
	case logrus.WarnLevel:
		return "W"
	case logrus.InfoLevel:
		return "I"
	case logrus.DebugLevel:
		return "D"
	default:
		return "T"
	}
}

// Format implements logrus.Formatter.
func (f *Formatter) Format(entry *logrus.Entry) ([]byte, error) {
	var b bytes.Buffer
	b.WriteString(levelLetter(entry.Level))
	b.WriteString("| ")
	b.WriteString(entry.Message)

	keys := make([]string, 0, len(entry.Data))
	for k := range entry.Data {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		fmt.Fprintf(&b, " %s=%v", k, entry.Data[k])
	}

	line := b.String()
	if c, ok := f.colors[entry.Level]; ok {
		line = c.Sprint(line)
	}
	return []byte(line + "\n"), nil
}
