package ska

import (
	"encoding/binary"
	"fmt"
	"math"
	"os"
	"sort"
)

// Parse reads an SKA file and decodes it.
func Parse(filepath string) (*Animation, error) {
	raw, err := os.ReadFile(filepath)
	if err != nil {
		return nil, fmt.Errorf("ska: read %s: %w", filepath, err)
	}
	anim, err := Decode(raw)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", filepath, err)
	}
	return anim, nil
}

// Decode parses an SKA buffer. Only undersized buffers are fatal; sparse
// grids, out-of-range indices and degenerate quaternions are not.
func Decode(data []byte) (*Animation, error) {
	if len(data) < HeaderSize {
		return nil, &SizeError{Required: HeaderSize, Actual: int64(len(data))}
	}

	r := &reader{data: data}
	var h Header
	h.Magic = r.readU32()
	h.Flags = r.readU32()
	h.BoneCount = r.readU16()
	h.TimeCount = r.readU16()
	h.KeyframeCount = r.readU32()
	for i := range h.Scale {
		h.Scale[i] = r.readF32()
	}

	layout := h.Layout()
	if layout.Total > int64(len(data)) {
		return nil, &SizeError{Required: layout.Total, Actual: int64(len(data))}
	}

	anim := &Animation{Header: h}

	r.seek(layout.Times)
	anim.Times = make([]float32, h.TimeCount)
	for i := range anim.Times {
		anim.Times[i] = r.readF32()
	}

	r.seek(layout.Keyframes)
	anim.Keyframes = make([]Keyframe, h.KeyframeCount)
	for i := range anim.Keyframes {
		anim.Keyframes[i] = r.readKeyframe(i, &h, anim.Times)
	}

	r.seek(layout.Grid)
	slots, bones := h.SlotCount(), int(h.BoneCount)
	anim.Grid = KeyOffsetGrid{
		slots:     slots,
		bones:     bones,
		keyframes: len(anim.Keyframes),
		cells:     make([]uint16, slots*bones),
	}
	for i := range anim.Grid.cells {
		anim.Grid.cells[i] = r.readU16()
	}

	if r.err != nil {
		return nil, r.err
	}

	anim.Tracks = buildTracks(&anim.Grid, anim.Keyframes)
	return anim, nil
}

// buildTracks scans each bone column of the grid and sorts the resolved
// entries by (time ascending, absent last; slot ascending).
func buildTracks(g *KeyOffsetGrid, keys []Keyframe) []BoneTrack {
	tracks := make([]BoneTrack, g.bones)
	for b := range tracks {
		tracks[b].Bone = b
	}

	for s := 0; s < g.slots; s++ {
		for b := 0; b < g.bones; b++ {
			ki, ok := g.Resolve(s, b)
			if !ok {
				continue
			}
			k := &keys[ki]
			tracks[b].Entries = append(tracks[b].Entries, TrackEntry{
				Slot:        s,
				Time:        k.Time,
				HasTime:     k.HasTime,
				Quat:        k.Quat,
				Translation: k.Translation,
				Channels:    ChannelAll,
			})
		}
	}

	for b := range tracks {
		SortEntries(tracks[b].Entries)
	}
	return tracks
}

// SortEntries orders track entries by resolved time with unresolved (or NaN)
// times last, tie-broken by slot.
func SortEntries(entries []TrackEntry) {
	sort.SliceStable(entries, func(i, j int) bool {
		a, b := &entries[i], &entries[j]
		ak, bk := sortable(a), sortable(b)
		switch {
		case ak && !bk:
			return true
		case !ak && bk:
			return false
		case ak && bk && a.Time != b.Time:
			return a.Time < b.Time
		}
		return a.Slot < b.Slot
	})
}

func sortable(e *TrackEntry) bool {
	return e.HasTime && !math.IsNaN(e.Time)
}

// Normalize scales q to unit length unless it is degenerate, in which case it
// is returned unchanged.
func Normalize(q [4]float64) [4]float64 {
	sq := q[0]*q[0] + q[1]*q[1] + q[2]*q[2] + q[3]*q[3]
	if sq <= degenerateQuat {
		return q
	}
	l := math.Sqrt(sq)
	return [4]float64{q[0] / l, q[1] / l, q[2] / l, q[3] / l}
}

type reader struct {
	data []byte
	off  int64
	err  error
}

func (r *reader) seek(off int64) { r.off = off }

// need reports whether n more bytes are available, recording a sticky
// error otherwise.
func (r *reader) need(n int64) bool {
	if r.err != nil {
		return false
	}
	if r.off+n > int64(len(r.data)) {
		r.err = &SizeError{Required: r.off + n, Actual: int64(len(r.data))}
		return false
	}
	return true
}

func (r *reader) readU16() uint16 {
	if !r.need(2) {
		return 0
	}
	v := binary.BigEndian.Uint16(r.data[r.off:])
	r.off += 2
	return v
}

func (r *reader) readI16() int16 {
	return int16(r.readU16())
}

func (r *reader) readU32() uint32 {
	if !r.need(4) {
		return 0
	}
	v := binary.BigEndian.Uint32(r.data[r.off:])
	r.off += 4
	return v
}

func (r *reader) readF32() float32 {
	return math.Float32frombits(r.readU32())
}

// readKeyframe decodes one 16-byte keyframe:
// time index u16, quaternion x y z w i16, translation x y z i16.
func (r *reader) readKeyframe(index int, h *Header, times []float32) Keyframe {
	k := Keyframe{Index: index}
	k.TimeIndex = r.readU16()

	var q [4]float64
	for i := range q {
		q[i] = float64(r.readI16()) / quatScale
	}
	k.Quat = Normalize(q)

	for i := range k.Translation {
		k.Translation[i] = float64(r.readI16()) * float64(h.Scale[i])
	}

	if int(k.TimeIndex) < len(times) {
		k.Time = float64(times[k.TimeIndex])
		k.HasTime = true
	}
	return k
}
