// Package skatest builds SKA buffers in memory for tests.
package skatest

import (
	"bytes"
	"encoding/binary"
	"os"
	"testing"
)

// NoKey is the empty grid cell sentinel.
const NoKey = 0xFFFF

// Identity is the raw (x, y, z, w) encoding of the identity rotation.
var Identity = [4]int16{0, 0, 0, 32767}

// Key is one raw pooled keyframe.
type Key struct {
	TimeIndex uint16
	Quat      [4]int16 // x, y, z, w
	Trans     [3]int16
}

// File is a raw SKA file. The header counts are derived from the slices;
// Grid must have len(Times)-1 rows of Bones cells.
type File struct {
	Magic uint32
	Flags uint32
	Bones int
	Scale [3]float32
	Times []float32
	Keys  []Key
	Grid  [][]uint16 // [slot][bone]
}

// Bytes encodes f big-endian.
func (f File) Bytes() []byte {
	var buf bytes.Buffer
	w := func(v any) { binary.Write(&buf, binary.BigEndian, v) }

	w(f.Magic)
	w(f.Flags)
	w(uint16(f.Bones))
	w(uint16(len(f.Times)))
	w(uint32(len(f.Keys)))
	w(f.Scale)
	for _, k := range f.Keys {
		w(k.TimeIndex)
		w(k.Quat)
		w(k.Trans)
	}
	w(f.Times)
	for _, row := range f.Grid {
		w(row)
	}
	return buf.Bytes()
}

// Write stores f at path.
func (f File) Write(t testing.TB, path string) {
	t.Helper()
	if err := os.WriteFile(path, f.Bytes(), 0644); err != nil {
		t.Fatal(err)
	}
}

// EndToEnd is one bone, two time values and a single keyframe at t=0.5
// with identity rotation and translation (10, 0, 0).
func EndToEnd() File {
	return File{
		Magic: 0x534B4231,
		Bones: 1,
		Scale: [3]float32{1, 1, 1},
		Times: []float32{0.0, 0.5},
		Keys:  []Key{{TimeIndex: 1, Quat: Identity, Trans: [3]int16{10, 0, 0}}},
		Grid:  [][]uint16{{0}},
	}
}

// Sparse returns a file with the given number of bones and time values in
// which only slot 0 of every bone is populated, each bone pointing at its
// own keyframe.
func Sparse(bones, times int) File {
	f := File{Bones: bones, Scale: [3]float32{1, 1, 1}}
	for i := 0; i < times; i++ {
		f.Times = append(f.Times, float32(i)/30)
	}
	for b := 0; b < bones; b++ {
		f.Keys = append(f.Keys, Key{TimeIndex: 0, Quat: Identity, Trans: [3]int16{int16(b), 0, 0}})
	}
	for s := 0; s < times-1; s++ {
		row := make([]uint16, bones)
		for b := range row {
			row[b] = NoKey
			if s == 0 {
				row[b] = uint16(b)
			}
		}
		f.Grid = append(f.Grid, row)
	}
	return f
}
