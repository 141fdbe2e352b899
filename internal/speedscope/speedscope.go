// Package speedscope writes reconstructed call stacks in the evented
// profile format read by https://www.speedscope.app.
package speedscope

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/lukasnee/ucprof/internal/callstack"
)

const (
	SchemaURL = "https://www.speedscope.app/file-format-schema.json"
	Exporter  = "ucprof"

	profileTypeEvented = "evented"
	valueUnitSeconds   = "seconds"
)

type (
	File struct {
		Schema             string    `json:"$schema"`
		Profiles           []Profile `json:"profiles"`
		Shared             Shared    `json:"shared"`
		ActiveProfileIndex int       `json:"activeProfileIndex"`
		Exporter           string    `json:"exporter"`
		Name               string    `json:"name"`
	}

	Profile struct {
		Type       string  `json:"type"`
		Name       string  `json:"name"`
		Unit       string  `json:"unit"`
		StartValue float64 `json:"startValue"`
		EndValue   float64 `json:"endValue"`
		Events     []Event `json:"events"`
	}

	Event struct {
		Type  string  `json:"type"`
		At    float64 `json:"at"`
		Frame int     `json:"frame"`
	}

	Shared struct {
		Frames []Frame `json:"frames"`
	}

	Frame struct {
		Name string `json:"name"`
		File string `json:"file"`
		Line uint32 `json:"line"`
		Col  int    `json:"col"`
	}
)

// Export builds the document of one context. start and end bound the
// visible time range. It returns nil when there is nothing to show.
func Export(start, end float64, res callstack.Result, label string) *File {
	if len(res.Events) == 0 {
		return nil
	}

	events := make([]Event, len(res.Events))
	for i, ev := range res.Events {
		events[i] = Event{Type: string(ev.Type), At: ev.At, Frame: ev.Frame}
	}
	frames := make([]Frame, len(res.Frames))
	for i, fr := range res.Frames {
		frames[i] = Frame{Name: fr.Name, File: fr.File, Line: fr.Line, Col: fr.Col}
	}

	return &File{
		Schema: SchemaURL,
		Profiles: []Profile{{
			Type:       profileTypeEvented,
			Name:       label,
			Unit:       valueUnitSeconds,
			StartValue: start,
			EndValue:   end,
			Events:     events,
		}},
		Shared:   Shared{Frames: frames},
		Exporter: Exporter,
		Name:     label,
	}
}

// OutputName returns the file name of the document exported for the context
// at rank in the ranking of tracePath: "<trace stem>_<rank>.json".
func OutputName(tracePath string, rank int) string {
	stem, _, _ := strings.Cut(filepath.Base(tracePath), ".")
	return fmt.Sprintf("%s_%d.json", stem, rank)
}

// WriteFile writes f as indented JSON to path.
func WriteFile(path string, f *File) error {
	out, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("speedscope: create %s: %w", path, err)
	}
	defer out.Close()

	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	if err := enc.Encode(f); err != nil {
		return fmt.Errorf("speedscope: encode %s: %w", path, err)
	}
	return nil
}
