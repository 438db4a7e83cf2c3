package mailmerge

import (
	"encoding/json"
	"fmt"
	"os"
	"time"
)

// ManifestName is the file a run writes into its output directory when
// Options.Manifest is set.
const ManifestName = "manifest.json"

// Manifest records what a run produced.
type Manifest struct {
	RunID     string            `json:"run_id,omitempty"`
	Template  string            `json:"template,omitempty"`
	Format    string            `json:"format"`
	Generated time.Time         `json:"generated"`
	Mapping   Mapping           `json:"mapping"`
	Written   int               `json:"written"`
	Outputs   []Output          `json:"outputs"`
	Failed    []ManifestFailure `json:"failed,omitempty"`
}

// ManifestFailure is the serialized form of a RowError.
type ManifestFailure struct {
	Row    int    `json:"row"`
	Column string `json:"column,omitempty"`
	Error  string `json:"error"`
}

func newManifest(opts Options, res *Result) *Manifest {
	m := &Manifest{
		RunID:     res.RunID,
		Template:  opts.TemplateName,
		Format:    opts.Encoder.Extension(),
		Generated: time.Now().UTC(),
		Mapping:   opts.Mapping,
		Written:   res.Written,
		Outputs:   res.Outputs,
	}
	if m.Outputs == nil {
		m.Outputs = []Output{}
	}
	for _, f := range res.Failed {
		m.Failed = append(m.Failed, ManifestFailure{Row: f.Row, Column: f.Column, Error: f.Err.Error()})
	}
	return m
}

func (m *Manifest) writeFile(path string) error {
	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal manifest: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write manifest %s: %w", path, err)
	}
	return nil
}

// ReadManifest loads a manifest written by a previous run.
func ReadManifest(path string) (*Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read manifest %s: %w", path, err)
	}
	var m Manifest
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("failed to parse manifest %s: %w", path, err)
	}
	return &m, nil
}
