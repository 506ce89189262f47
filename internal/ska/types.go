package ska

import "fmt"

// HeaderSize is the fixed size of the SKA header in bytes.
const HeaderSize = 0x1C

// keyframeSize is the on-disk stride of one pooled keyframe.
const keyframeSize = 16

// NoKey marks a grid cell with no sample for that bone at that time slot.
const NoKey = 0xFFFF

// quatScale converts raw int16 quaternion components to [-1, 1].
const quatScale = 32767.0

// degenerateQuat is the squared-length threshold below which a decoded
// quaternion is left unnormalized.
const degenerateQuat = 1e-12

// Header holds the fixed 28-byte SKA header.
type Header struct {
	Magic         uint32
	Flags         uint32 // unused downstream
	BoneCount     uint16
	TimeCount     uint16
	KeyframeCount uint32
	Scale         [3]float32 // per-axis translation quantization
}

// MagicString renders the magic tag the way tools usually print it.
func (h Header) MagicString() string {
	return fmt.Sprintf("0x%08x", h.Magic)
}

// SlotCount returns the number of rows in the key offset grid.
func (h Header) SlotCount() int {
	if h.TimeCount == 0 {
		return 0
	}
	return int(h.TimeCount) - 1
}

// Layout holds absolute section offsets computed from a header.
// All values are 64-bit so keyframe_count×16 cannot overflow.
type Layout struct {
	Keyframes int64
	Times     int64
	Grid      int64
	Total     int64
}

// Layout computes where each section starts and the total required size.
//
//	[Header]         0x1C bytes
//	[Keyframes]      KeyframeCount * 16
//	[Times]          TimeCount * 4
//	[KeyOffsetGrid]  (TimeCount - 1) * BoneCount * 2
func (h Header) Layout() Layout {
	var l Layout
	l.Keyframes = HeaderSize
	l.Times = l.Keyframes + int64(h.KeyframeCount)*keyframeSize
	l.Grid = l.Times + int64(h.TimeCount)*4
	l.Total = l.Grid + int64(h.SlotCount())*int64(h.BoneCount)*2
	return l
}

// Keyframe is one pooled sample. Keyframes are addressed by absolute index
// and are not ordered in time.
type Keyframe struct {
	Index       int
	TimeIndex   uint16
	Time        float64 // valid only when HasTime
	HasTime     bool
	Quat        [4]float64 // x, y, z, w
	Translation [3]float64
}

// KeyOffsetGrid is the (TimeCount-1) × BoneCount table of keyframe pool
// indices. Decoding goes through Resolve; Raw is for diagnostics.
type KeyOffsetGrid struct {
	slots     int
	bones     int
	keyframes int
	cells     []uint16 // row-major: slot*bones + bone
}

// Slots returns the number of time slots (grid rows).
func (g *KeyOffsetGrid) Slots() int { return g.slots }

// Bones returns the number of bone columns.
func (g *KeyOffsetGrid) Bones() int { return g.bones }

// Raw returns the stored cell value without validation.
func (g *KeyOffsetGrid) Raw(slot, bone int) uint16 {
	return g.cells[slot*g.bones+bone]
}

// Resolve returns the keyframe pool index stored at (slot, bone).
// ok is false for the NoKey sentinel, for indices past the keyframe pool
// and for coordinates outside the grid.
func (g *KeyOffsetGrid) Resolve(slot, bone int) (int, bool) {
	if slot < 0 || slot >= g.slots || bone < 0 || bone >= g.bones {
		return 0, false
	}
	v := g.cells[slot*g.bones+bone]
	if v == NoKey || int(v) >= g.keyframes {
		return 0, false
	}
	return int(v), true
}

// Channels marks which transform components a track entry supplies.
type Channels uint8

const (
	ChannelRotation Channels = 1 << iota
	ChannelTranslation

	ChannelAll = ChannelRotation | ChannelTranslation
)

func (c Channels) Has(ch Channels) bool { return c&ch == ch }

// TrackEntry is one resolved sample of a bone track.
type TrackEntry struct {
	Slot        int
	Time        float64 // valid only when HasTime
	HasTime     bool
	Quat        [4]float64 // x, y, z, w
	Translation [3]float64
	Channels    Channels
}

// BoneTrack is the time-ordered list of samples for one SKA bone index.
type BoneTrack struct {
	Bone    int
	Entries []TrackEntry
}

// Animation is a fully decoded SKA file.
type Animation struct {
	Header    Header
	Times     []float32
	Keyframes []Keyframe
	Grid      KeyOffsetGrid
	Tracks    []BoneTrack // len == Header.BoneCount
}

// SampleCount returns the total number of track entries over all bones.
func (a *Animation) SampleCount() int {
	n := 0
	for i := range a.Tracks {
		n += len(a.Tracks[i].Entries)
	}
	return n
}
