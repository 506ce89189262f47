package retarget

import (
	"github.com/go-gl/mathgl/mgl64"

	"ska-importer/internal/skeleton"
)

// FrameOffset is added to a time slot to get its timeline frame.
const FrameOffset = 1

// RotationKey is one rotation sample; Value is a (w, x, y, z) quaternion.
type RotationKey struct {
	Frame int
	Value mgl64.Quat
}

// TranslationKey is one local-space translation sample.
type TranslationKey struct {
	Frame int
	Value mgl64.Vec3
}

// BoneCurves holds the sparse output curves of one mapped bone.
// Both slices are strictly increasing in Frame.
type BoneCurves struct {
	Index        int    // SKA bone index
	Bone         string // skeleton bone name
	Skeleton     int    // skeleton bone index
	Rotations    []RotationKey
	Translations []TranslationKey
}

// Empty reports whether the bone produced no samples at all.
func (c *BoneCurves) Empty() bool {
	return len(c.Rotations) == 0 && len(c.Translations) == 0
}

// FrameRange is an inclusive frame interval; End < Start means empty.
type FrameRange struct {
	Start int
	End   int
}

func (r FrameRange) Empty() bool { return r.End < r.Start }

// Len returns the number of frames in the range.
func (r FrameRange) Len() int {
	if r.Empty() {
		return 0
	}
	return r.End - r.Start + 1
}

// NoticeKind classifies a non-fatal retargeting diagnostic.
type NoticeKind int

const (
	// NoticeUnmapped: an SKA bone had no skeleton bone and was skipped.
	NoticeUnmapped NoticeKind = iota
	// NoticeMappingFallback: no bone carried an explicit ID, positional
	// mapping was used.
	NoticeMappingFallback
)

func (k NoticeKind) String() string {
	switch k {
	case NoticeUnmapped:
		return "unmapped"
	case NoticeMappingFallback:
		return "mapping-fallback"
	}
	return "unknown"
}

// Notice is a non-fatal diagnostic. Bone is the SKA bone index or -1.
type Notice struct {
	Bone    int
	Kind    NoticeKind
	Message string
}

// Result is the retargeted animation for one skeleton.
type Result struct {
	Bones   []BoneCurves
	Range   FrameRange
	Mapping skeleton.MappingMode
	Notices []Notice
}

// Skipped returns the number of SKA bones with no skeleton bone.
func (r *Result) Skipped() int {
	n := 0
	for _, nt := range r.Notices {
		if nt.Kind == NoticeUnmapped {
			n++
		}
	}
	return n
}

// SampleCounts returns the total rotation and translation samples.
func (r *Result) SampleCounts() (rotations, translations int) {
	for i := range r.Bones {
		rotations += len(r.Bones[i].Rotations)
		translations += len(r.Bones[i].Translations)
	}
	return rotations, translations
}
