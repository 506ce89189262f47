package clip

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/golang/snappy"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ska-importer/internal/retarget"
	"ska-importer/internal/skeleton"
)

func sampleResult() *retarget.Result {
	return &retarget.Result{
		Range:   retarget.FrameRange{Start: 1, End: 2},
		Mapping: skeleton.MapExplicit,
		Bones: []retarget.BoneCurves{
			{
				Index: 0,
				Bone:  "hips",
				Rotations: []retarget.RotationKey{
					{Frame: 1, Value: mgl64.Quat{W: 1}},
					{Frame: 2, Value: mgl64.Quat{W: 0, V: mgl64.Vec3{1, 0, 0}}},
				},
				Translations: []retarget.TranslationKey{{Frame: 2, Value: mgl64.Vec3{1, 2, 3}}},
			},
			{Index: 4, Bone: "idle"},
		},
	}
}

func TestFromResult(t *testing.T) {
	c := FromResult("walk_from_ska", "walk.ska", 30, sampleResult())

	assert.Equal(t, 1, c.Start)
	assert.Equal(t, 2, c.End)
	assert.Equal(t, 2, c.Frames())
	assert.Equal(t, "explicit", c.Mapping)

	require.Len(t, c.Bones, 1, "bones without samples are omitted")
	b := c.Bones[0]
	assert.Equal(t, [4]float64{1, 0, 0, 0}, b.Rotations[0].Value)
	assert.Equal(t, [4]float64{0, 1, 0, 0}, b.Rotations[1].Value)
	assert.Equal(t, [3]float64{1, 2, 3}, b.Translations[0].Value)

	assert.InDelta(t, 1.0/30, c.Seconds(2), 1e-12)
	assert.Equal(t, 0.0, c.Seconds(1))
}

func TestFromResultEmptyRangeUsesSamples(t *testing.T) {
	res := &retarget.Result{
		Range: retarget.FrameRange{Start: 1, End: 0},
		Bones: []retarget.BoneCurves{{
			Bone:      "a",
			Rotations: []retarget.RotationKey{{Frame: 4, Value: mgl64.QuatIdent()}, {Frame: 6, Value: mgl64.QuatIdent()}},
		}},
	}
	c := FromResult("x", "x.ska", 24, res)
	assert.Equal(t, 4, c.Start)
	assert.Equal(t, 6, c.End)

	empty := FromResult("y", "y.ska", 24, &retarget.Result{Range: retarget.FrameRange{Start: 1, End: 0}})
	assert.Equal(t, 0, empty.Frames())
	assert.Empty(t, empty.Bones)
}

func TestWriteRead(t *testing.T) {
	dir := t.TempDir()
	c := FromResult("walk_from_ska", "walk.ska", 30, sampleResult())

	for _, name := range []string{"plain.json", "packed.json.sz"} {
		t.Run(name, func(t *testing.T) {
			path := filepath.Join(dir, "clips", name)
			require.NoError(t, Write(path, c))

			got, err := Read(path)
			require.NoError(t, err)
			assert.Equal(t, c, got)
		})
	}

	raw, err := os.ReadFile(filepath.Join(dir, "clips", "packed.json.sz"))
	require.NoError(t, err)
	_, err = snappy.DecodedLen(raw)
	assert.NoError(t, err)
	assert.NotEqual(t, byte('{'), raw[0])
}

func TestReadErrors(t *testing.T) {
	dir := t.TempDir()

	_, err := Read(filepath.Join(dir, "missing.json"))
	assert.ErrorIs(t, err, os.ErrNotExist)

	bad := filepath.Join(dir, "bad.sz")
	require.NoError(t, os.WriteFile(bad, []byte{0xff, 0xff, 0xff, 0xff, 0xff, 0xff}, 0644))
	_, err = Read(bad)
	assert.ErrorContains(t, err, "decompress")

	notJSON := filepath.Join(dir, "bad.json")
	require.NoError(t, os.WriteFile(notJSON, []byte("nope"), 0644))
	_, err = Read(notJSON)
	assert.ErrorContains(t, err, "parse")
}
