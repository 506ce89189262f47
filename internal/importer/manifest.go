package importer

import (
	"encoding/json"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
)

// ManifestEntry represents one written clip in the output manifest.
type ManifestEntry struct {
	Source  string `json:"source"`
	Clip    string `json:"clip"`
	File    string `json:"file"`
	Preview string `json:"preview,omitempty"`
	Start   int    `json:"start"`
	End     int    `json:"end"`
	Bones   int    `json:"bones"`
}

// Manifest lists every clip of one run.
type Manifest struct {
	RunID   string          `json:"run_id"`
	Created time.Time       `json:"created"`
	FPS     float64         `json:"fps"`
	Failed  []string        `json:"failed,omitempty"`
	Clips   []ManifestEntry `json:"clips"`
}

// NewManifest collects the outputs of results under a fresh run id.
// File paths are stored relative to outputDir when possible.
func NewManifest(outputDir string, fps float64, results []Result) Manifest {
	m := Manifest{
		RunID:   uuid.New().String(),
		Created: time.Now().UTC(),
		FPS:     fps,
		Clips:   []ManifestEntry{},
	}
	for _, r := range results {
		if r.Err != nil {
			m.Failed = append(m.Failed, r.Path)
			continue
		}
		for _, o := range r.Clips {
			m.Clips = append(m.Clips, ManifestEntry{
				Source:  r.Path,
				Clip:    o.Name,
				File:    rel(outputDir, o.File),
				Preview: rel(outputDir, o.Preview),
				Start:   o.Start,
				End:     o.End,
				Bones:   o.Bones,
			})
		}
	}
	return m
}

func rel(base, path string) string {
	if path == "" {
		return ""
	}
	if r, err := filepath.Rel(base, path); err == nil {
		return filepath.ToSlash(r)
	}
	return path
}

// WriteManifest writes m as JSON to path.
func WriteManifest(path string, m Manifest) error {
	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}
