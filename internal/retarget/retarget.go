package retarget

import (
	"fmt"

	"github.com/go-gl/mathgl/mgl64"

	"ska-importer/internal/mathutil"
	"ska-importer/internal/ska"
	"ska-importer/internal/skeleton"
)

// Retarget converts a decoded animation into local-space curves for skel.
// The sample domain is the grid's time slots.
func Retarget(anim *ska.Animation, skel *skeleton.Skeleton) *Result {
	return RetargetTracks(anim.Tracks, anim.Header.SlotCount(), skel)
}

// RetargetTracks converts bone tracks into curves. slotCount is the number of
// time slots shared by all tracks; when it is 0 or less each bone falls back
// to one past the highest slot present in its own track. skel is only read.
func RetargetTracks(tracks []ska.BoneTrack, slotCount int, skel *skeleton.Skeleton) *Result {
	boneMap, mode := skel.BoneMap()

	res := &Result{
		Mapping: mode,
		Range:   FrameRange{Start: FrameOffset, End: FrameOffset + slotCount - 1},
	}
	if mode == skeleton.MapPositional && len(tracks) > 0 {
		res.Notices = append(res.Notices, Notice{
			Bone:    -1,
			Kind:    NoticeMappingFallback,
			Message: "no explicit bone ids found, falling back to bone list order",
		})
	}

	for i := range tracks {
		tr := &tracks[i]
		bi, ok := boneMap[tr.Bone]
		if !ok {
			res.Notices = append(res.Notices, Notice{
				Bone:    tr.Bone,
				Kind:    NoticeUnmapped,
				Message: fmt.Sprintf("skipping SKA bone index %d: no matching skeleton bone", tr.Bone),
			})
			continue
		}
		res.Bones = append(res.Bones, retargetBone(tr, slotCount, skel, bi))
	}
	return res
}

// restFrame caches the rest-pose matrices of one skeleton bone.
type restFrame struct {
	parentRest mgl64.Mat4
	restInv    mgl64.Mat4
	localRot   mgl64.Quat // rest rotation relative to the parent's rest
}

func newRestFrame(skel *skeleton.Skeleton, i int) restFrame {
	rest := skel.Rest(i)
	f := restFrame{
		parentRest: skel.ParentRest(i),
		restInv:    mathutil.SafeInverse(rest),
	}
	if skel.Bone(i).Parent >= 0 {
		f.localRot = mathutil.ToQuat(mathutil.SafeInverse(f.parentRest).Mul4(rest))
	} else {
		f.localRot = mathutil.ToQuat(rest)
	}
	return f
}

// rotation maps a sampled (x, y, z, w) quaternion to the rotation that takes
// the local rest rotation onto it.
func (f *restFrame) rotation(q [4]float64) mgl64.Quat {
	return mathutil.RotationDifference(f.localRot, mathutil.QuatFromXYZW(q))
}

// translation returns the translation part of rest⁻¹ · (parentRest · T).
func (f *restFrame) translation(t [3]float64) mgl64.Vec3 {
	m := f.restInv.Mul4(f.parentRest.Mul4(mgl64.Translate3D(t[0], t[1], t[2])))
	return mathutil.Translation(m)
}

func retargetBone(tr *ska.BoneTrack, slotCount int, skel *skeleton.Skeleton, bi int) BoneCurves {
	out := BoneCurves{
		Index:    tr.Bone,
		Bone:     skel.Bone(bi).Name,
		Skeleton: bi,
	}

	slots := slotCount
	if slots <= 0 {
		for i := range tr.Entries {
			if s := tr.Entries[i].Slot; s+1 > slots {
				slots = s + 1
			}
		}
	}
	if slots <= 0 {
		return out
	}

	bySlot := make([]*ska.TrackEntry, slots)
	for i := range tr.Entries {
		e := &tr.Entries[i]
		if e.Slot >= 0 && e.Slot < slots {
			bySlot[e.Slot] = e
		}
	}

	frame := newRestFrame(skel, bi)
	var (
		lastRot   mgl64.Quat
		lastTrans mgl64.Vec3
		haveRot   bool
		haveTrans bool
	)

	// Slots without an entry hold the last known value.
	for s := 0; s < slots; s++ {
		if e := bySlot[s]; e != nil {
			if e.Channels.Has(ska.ChannelRotation) {
				lastRot, haveRot = frame.rotation(e.Quat), true
			}
			if e.Channels.Has(ska.ChannelTranslation) {
				lastTrans, haveTrans = frame.translation(e.Translation), true
			}
		}

		f := s + FrameOffset
		if haveRot {
			out.Rotations = append(out.Rotations, RotationKey{Frame: f, Value: lastRot})
		}
		if haveTrans {
			out.Translations = append(out.Translations, TranslationKey{Frame: f, Value: lastTrans})
		}
	}
	return out
}
