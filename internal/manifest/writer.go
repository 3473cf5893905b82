package manifest

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/AnyUserName/imgconv-cli/internal/hasher"
	"github.com/AnyUserName/imgconv-cli/internal/pipeline"
)

// New creates an empty manifest with defaults.
func New(runID, format string) *Manifest {
	return &Manifest{
		Version:     SupportedManifestVersion,
		GeneratedAt: time.Now().UTC().Format(time.RFC3339),
		RunID:       runID,
		Format:      format,
		BasePath:    "./",
	}
}

// FromResults builds a manifest with one entry per result.
func FromResults(runID, format string, results []pipeline.Result) *Manifest {
	m := New(runID, format)
	m.Entries = make([]Entry, 0, len(results))
	for _, r := range results {
		e := Entry{Source: r.SourceName, SourceSize: r.SourceSize}
		if r.OK() {
			e.Status = StatusOK
			e.Output = r.OutputName
			e.Width = r.Width
			e.Height = r.Height
			e.Size = int64(len(r.Data))
			e.Hash = hasher.ContentHash(r.Data, 16)
		} else {
			e.Status = StatusFailed
			e.ErrorKind = r.Kind().String()
			e.Error = r.Err.Error()
		}
		m.Entries = append(m.Entries, e)
	}
	m.ComputeStats()
	return m
}

// ComputeStats recalculates aggregate statistics from entries.
func (m *Manifest) ComputeStats() {
	var s Stats
	for _, e := range m.Entries {
		s.TotalInputBytes += e.SourceSize
		if e.Status == StatusOK {
			s.Succeeded++
			s.TotalOutputBytes += e.Size
		} else {
			s.Failed++
		}
	}
	m.Stats = s
}

// WriteJSON serializes the manifest to a JSON file.
func WriteJSON(m *Manifest, path string) error {
	m.ComputeStats()

	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return err
	}
	data = append(data, '\n')
	return os.WriteFile(path, data, 0o644)
}

// ReadJSON loads a manifest from path.
func ReadJSON(path string) (*Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read manifest: %w", err)
	}
	var m Manifest
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("parse manifest: %w", err)
	}
	return &m, nil
}
