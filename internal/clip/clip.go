// Package clip stores retargeted curves as named animation clips.
package clip

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/golang/snappy"

	"ska-importer/internal/mathutil"
	"ska-importer/internal/retarget"
)

// CompressedExt marks a snappy-compressed clip file.
const CompressedExt = ".sz"

// RotationKey is a (w, x, y, z) rotation at a frame.
type RotationKey struct {
	Frame int        `json:"frame"`
	Value [4]float64 `json:"wxyz"`
}

// TranslationKey is a local-space translation at a frame.
type TranslationKey struct {
	Frame int        `json:"frame"`
	Value [3]float64 `json:"xyz"`
}

// Bone is the curve set of one skeleton bone.
type Bone struct {
	Name         string           `json:"name"`
	Index        int              `json:"ska_index"`
	Rotations    []RotationKey    `json:"rotations,omitempty"`
	Translations []TranslationKey `json:"translations,omitempty"`
}

// Clip is a named animation attached to a skeleton.
type Clip struct {
	Name    string  `json:"name"`
	Source  string  `json:"source"`
	FPS     float64 `json:"fps"`
	Start   int     `json:"start"`
	End     int     `json:"end"`
	Mapping string  `json:"mapping"`
	Bones   []Bone  `json:"bones"`
}

// Seconds converts a timeline frame to seconds from the clip start.
func (c *Clip) Seconds(frame int) float64 {
	if c.FPS <= 0 {
		return 0
	}
	return float64(frame-retarget.FrameOffset) / c.FPS
}

// Frames returns the number of frames between Start and End inclusive.
func (c *Clip) Frames() int {
	if c.End < c.Start {
		return 0
	}
	return c.End - c.Start + 1
}

// FromResult builds a clip from retargeted curves. Bones without samples
// are left out. When the result has no shared frame range, the clip range
// spans the frames actually sampled.
func FromResult(name, source string, fps float64, res *retarget.Result) *Clip {
	c := &Clip{
		Name:    name,
		Source:  source,
		FPS:     fps,
		Start:   res.Range.Start,
		End:     res.Range.End,
		Mapping: res.Mapping.String(),
	}

	lo, hi := 0, -1
	see := func(f int) {
		if hi < lo {
			lo, hi = f, f
			return
		}
		lo, hi = min(lo, f), max(hi, f)
	}

	for i := range res.Bones {
		rb := &res.Bones[i]
		if rb.Empty() {
			continue
		}
		b := Bone{Name: rb.Bone, Index: rb.Index}
		for _, k := range rb.Rotations {
			b.Rotations = append(b.Rotations, RotationKey{Frame: k.Frame, Value: mathutil.WXYZ(k.Value)})
			see(k.Frame)
		}
		for _, k := range rb.Translations {
			b.Translations = append(b.Translations, TranslationKey{Frame: k.Frame, Value: [3]float64(k.Value)})
			see(k.Frame)
		}
		c.Bones = append(c.Bones, b)
	}

	if res.Range.Empty() {
		c.Start, c.End = lo, hi
		if hi < lo {
			c.Start, c.End = retarget.FrameOffset, retarget.FrameOffset-1
		}
	}
	return c
}

// Write stores c as JSON at path, snappy-compressed when path ends in .sz.
func Write(path string, c *Clip) error {
	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return fmt.Errorf("clip: encode %s: %w", c.Name, err)
	}
	if compressed(path) {
		data = snappy.Encode(nil, data)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("clip: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("clip: write %s: %w", path, err)
	}
	return nil
}

// Read loads a clip written by Write.
func Read(path string) (*Clip, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("clip: read %s: %w", path, err)
	}
	if compressed(path) {
		if data, err = snappy.Decode(nil, data); err != nil {
			return nil, fmt.Errorf("clip: decompress %s: %w", path, err)
		}
	}
	var c Clip
	if err := json.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("clip: parse %s: %w", path, err)
	}
	return &c, nil
}

func compressed(path string) bool {
	return strings.EqualFold(filepath.Ext(path), CompressedExt)
}
