package skeleton

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"ska-importer/internal/mathutil"
)

var validate = validator.New()

// File is the on-disk skeleton description.
type File struct {
	Bones []BoneSpec `yaml:"bones" json:"bones" validate:"required,min=1,unique=Name,dive"`
}

// BoneSpec describes one bone. Rotation is w, x, y, z; Euler is XYZ in
// degrees. At most one of them may be given; neither means identity.
type BoneSpec struct {
	Name        string    `yaml:"name" json:"name" validate:"required"`
	ID          *int      `yaml:"id,omitempty" json:"id,omitempty" validate:"omitempty,min=0,max=65535"`
	Parent      string    `yaml:"parent,omitempty" json:"parent,omitempty"`
	Translation []float64 `yaml:"translation,omitempty" json:"translation,omitempty" validate:"omitempty,len=3"`
	Rotation    []float64 `yaml:"rotation,omitempty" json:"rotation,omitempty" validate:"omitempty,len=4,excluded_with=Euler"`
	Euler       []float64 `yaml:"euler,omitempty" json:"euler,omitempty" validate:"omitempty,len=3"`
}

// Load reads a YAML or JSON skeleton description and builds a Skeleton.
func Load(path string) (*Skeleton, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("skeleton: read %s: %w", path, err)
	}
	s, err := Decode(data, filepath.Ext(path))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return s, nil
}

// Decode parses a skeleton description. ext selects the format
// (".yaml", ".yml" or ".json").
func Decode(data []byte, ext string) (*Skeleton, error) {
	var f File
	switch strings.ToLower(ext) {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, &f); err != nil {
			return nil, fmt.Errorf("skeleton: parse yaml: %w", err)
		}
	case ".json":
		if err := json.Unmarshal(data, &f); err != nil {
			return nil, fmt.Errorf("skeleton: parse json: %w", err)
		}
	default:
		return nil, newErr("unsupported description format %q", ext)
	}
	return f.Build()
}

// Build validates the description and resolves parent names.
func (f *File) Build() (*Skeleton, error) {
	if err := validate.Struct(f); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			v := verrs[0]
			return nil, newErr("invalid %s: failed %q", v.Namespace(), v.Tag())
		}
		return nil, fmt.Errorf("skeleton: %w", err)
	}

	index := make(map[string]int, len(f.Bones))
	for i, b := range f.Bones {
		index[b.Name] = i
	}

	bones := make([]Bone, len(f.Bones))
	for i, spec := range f.Bones {
		b := Root(spec.Name)
		if spec.ID != nil {
			b.ID, b.HasID = *spec.ID, true
		}
		if spec.Parent != "" {
			p, ok := index[spec.Parent]
			if !ok {
				return nil, newErr("bone %q: unknown parent %q", spec.Name, spec.Parent)
			}
			b.Parent = p
		}
		if len(spec.Translation) == 3 {
			b.Rest.Translation = mgl64.Vec3{spec.Translation[0], spec.Translation[1], spec.Translation[2]}
		}
		switch {
		case len(spec.Rotation) == 4:
			q := mathutil.QuatFromWXYZ([4]float64(spec.Rotation))
			if q.Len() == 0 {
				return nil, newErr("bone %q: zero rotation", spec.Name)
			}
			b.Rest.Rotation = q.Normalize()
		case len(spec.Euler) == 3:
			b.Rest.Rotation = mathutil.EulerToQuat(
				mgl64.DegToRad(spec.Euler[0]),
				mgl64.DegToRad(spec.Euler[1]),
				mgl64.DegToRad(spec.Euler[2]),
			)
		}
		bones[i] = b
	}

	return New(bones)
}
