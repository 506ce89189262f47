package importer

import (
	"bytes"
	"encoding/json"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ska-importer/internal/clip"
	"ska-importer/internal/metrics"
	"ska-importer/internal/preview"
	"ska-importer/internal/retarget"
	"ska-importer/internal/ska"
	"ska-importer/internal/ska/skatest"
	"ska-importer/internal/skeleton"
)

const rigYAML = `
bones:
  - name: root
`

type fixture struct {
	dir    string
	out    string
	cfg    Config
	logBuf *bytes.Buffer
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	dir := t.TempDir()
	rig := filepath.Join(dir, "rig.yaml")
	require.NoError(t, os.WriteFile(rig, []byte(rigYAML), 0644))

	var buf bytes.Buffer
	f := &fixture{dir: dir, out: filepath.Join(dir, "out"), logBuf: &buf}
	require.NoError(t, os.MkdirAll(f.out, 0755))
	f.cfg = Config{
		OutputDir: f.out,
		FPS:       30,
		Workers:   2,
		Skeletons: &Selector{Default: rig, Resolver: skeleton.NewCache()},
		Loaders:   &Registry{},
		Metrics:   metrics.NewBatch(),
		Logger:    slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug})),
	}
	return f
}

func TestRunEndToEnd(t *testing.T) {
	f := newFixture(t)
	in := filepath.Join(f.dir, "Walk.ska")
	skatest.EndToEnd().Write(t, in)

	results := Run(f.cfg, []string{in})
	require.Len(t, results, 1)
	r := results[0]
	require.NoError(t, r.Err)
	assert.Equal(t, "ska", r.Kind)
	require.Len(t, r.Clips, 1)
	assert.Equal(t, "Walk_from_ska", r.Clips[0].Name)
	assert.Equal(t, 1, r.Clips[0].Start)
	assert.Equal(t, 1, r.Clips[0].End)
	assert.NoError(t, Errors(results))

	c, err := clip.Read(filepath.Join(f.out, "Walk_from_ska.json"))
	require.NoError(t, err)
	require.Len(t, c.Bones, 1)
	assert.Equal(t, "root", c.Bones[0].Name)
	assert.InDeltaSlice(t, []float64{10, 0, 0}, c.Bones[0].Translations[0].Value[:], 1e-9)
	assert.InDelta(t, 1.0, c.Bones[0].Rotations[0].Value[0], 1e-9)

	// Positional mapping is reported.
	require.Len(t, r.Notices, 1)
	assert.Equal(t, retarget.NoticeMappingFallback, r.Notices[0].Kind)
	assert.Contains(t, f.logBuf.String(), "falling back to bone list order")

	assert.Equal(t, 1.0, testutil.ToFloat64(f.cfg.Metrics.FilesTotal.WithLabelValues("ska", "ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(f.cfg.Metrics.SamplesTotal.WithLabelValues("rotation")))
}

func TestRunFailuresDoNotStopBatch(t *testing.T) {
	f := newFixture(t)
	good := filepath.Join(f.dir, "good.ska")
	skatest.EndToEnd().Write(t, good)
	short := filepath.Join(f.dir, "short.ska")
	require.NoError(t, os.WriteFile(short, make([]byte, 10), 0644))
	anm := filepath.Join(f.dir, "idle.anm")
	require.NoError(t, os.WriteFile(anm, []byte("x"), 0644))

	results := Run(f.cfg, []string{short, good, anm})
	require.Len(t, results, 3)

	assert.ErrorIs(t, results[0].Err, ska.ErrTooSmall)
	assert.NoError(t, results[1].Err)
	assert.ErrorContains(t, results[2].Err, "no loader registered for .anm")

	err := Errors(results)
	require.Error(t, err)
	assert.ErrorIs(t, err, ska.ErrTooSmall)
	assert.Contains(t, err.Error(), "idle.anm")

	assert.Equal(t, 2.0, testutil.ToFloat64(f.cfg.Metrics.FilesTotal.WithLabelValues("ska", "ok"))+
		testutil.ToFloat64(f.cfg.Metrics.FilesTotal.WithLabelValues("ska", "error")))
}

func TestRunAltLoader(t *testing.T) {
	f := newFixture(t)
	var gotFPS float64
	f.cfg.FPS = 24
	f.cfg.Loaders.Register("ANM", LoaderFunc(func(path string, skel *skeleton.Skeleton, fps float64) ([]Named, error) {
		gotFPS = fps
		curves := &retarget.Result{
			Range: retarget.FrameRange{Start: 1, End: 1},
			Bones: []retarget.BoneCurves{{Bone: skel.Bone(0).Name, Rotations: []retarget.RotationKey{{Frame: 1, Value: mgl64.QuatIdent()}}}},
		}
		return []Named{{Name: "Idle_loop", Curves: curves}, {Name: "take_001", Curves: curves}}, nil
	}))
	f.cfg.Loaders.Register(".bad", LoaderFunc(func(string, *skeleton.Skeleton, float64) ([]Named, error) {
		return nil, errors.New("corrupt")
	}))

	in := filepath.Join(f.dir, "idle.anm")
	bad := filepath.Join(f.dir, "x.bad")
	for _, p := range []string{in, bad} {
		require.NoError(t, os.WriteFile(p, []byte("x"), 0644))
	}

	results := Run(f.cfg, []string{in, bad})
	require.NoError(t, results[0].Err)
	assert.Equal(t, 24.0, gotFPS)
	require.Len(t, results[0].Clips, 2)
	assert.Equal(t, "Idle_loop", results[0].Clips[0].Name, "stem prefix is case-insensitive")
	assert.Equal(t, "idle_anm", results[0].Clips[1].Name)
	assert.FileExists(t, filepath.Join(f.out, "idle_anm.json"))

	assert.ErrorContains(t, results[1].Err, "corrupt")
}

func identCurves(skel *skeleton.Skeleton, end int) *retarget.Result {
	var keys []retarget.RotationKey
	for f := 1; f <= end; f++ {
		keys = append(keys, retarget.RotationKey{Frame: f, Value: mgl64.QuatIdent()})
	}
	return &retarget.Result{
		Range: retarget.FrameRange{Start: 1, End: end},
		Bones: []retarget.BoneCurves{{Bone: skel.Bone(0).Name, Rotations: keys}},
	}
}

func TestRunAltLoaderMissingCurves(t *testing.T) {
	f := newFixture(t)
	f.cfg.Loaders.Register(".anm", LoaderFunc(func(string, *skeleton.Skeleton, float64) ([]Named, error) {
		return []Named{{Name: "idle"}}, nil
	}))

	bad := filepath.Join(f.dir, "idle.anm")
	require.NoError(t, os.WriteFile(bad, []byte("x"), 0644))
	good := filepath.Join(f.dir, "walk.ska")
	skatest.EndToEnd().Write(t, good)

	var results []Result
	require.NotPanics(t, func() { results = Run(f.cfg, []string{bad, good}) })
	require.Len(t, results, 2)
	assert.ErrorContains(t, results[0].Err, "without curves")
	assert.Empty(t, results[0].Clips)
	assert.NoFileExists(t, filepath.Join(f.out, "idle.json"))
	require.NoError(t, results[1].Err)
	assert.FileExists(t, filepath.Join(f.out, "walk_from_ska.json"))
}

func TestRunAltLoaderRepeatedNames(t *testing.T) {
	f := newFixture(t)
	f.cfg.Loaders.Register(".anm", LoaderFunc(func(_ string, skel *skeleton.Skeleton, _ float64) ([]Named, error) {
		return []Named{
			{Name: "take_a", Curves: identCurves(skel, 1)},
			{Name: "take_b", Curves: identCurves(skel, 3)},
			{Name: "IDLE_anm", Curves: identCurves(skel, 2)},
		}, nil
	}))
	in := filepath.Join(f.dir, "idle.anm")
	require.NoError(t, os.WriteFile(in, []byte("x"), 0644))

	results := Run(f.cfg, []string{in})
	require.NoError(t, results[0].Err)
	require.Len(t, results[0].Clips, 3)
	assert.Equal(t, "idle_anm", results[0].Clips[0].Name)
	assert.Equal(t, "idle_anm_1", results[0].Clips[1].Name)
	assert.Equal(t, "IDLE_anm_2", results[0].Clips[2].Name)

	first, err := clip.Read(filepath.Join(f.out, "idle_anm.json"))
	require.NoError(t, err)
	second, err := clip.Read(filepath.Join(f.out, "idle_anm_1.json"))
	require.NoError(t, err)
	assert.Equal(t, 1, first.End)
	assert.Equal(t, 3, second.End)
}

func TestRunSameStemInTwoDirectories(t *testing.T) {
	f := newFixture(t)
	var inputs []string
	for _, sub := range []string{"a", "b"} {
		p := filepath.Join(f.dir, sub, "walk.ska")
		require.NoError(t, os.MkdirAll(filepath.Dir(p), 0755))
		skatest.EndToEnd().Write(t, p)
		inputs = append(inputs, p)
	}
	inputs = append(inputs, inputs[0])

	results := Run(f.cfg, inputs)
	require.Len(t, results, 3)
	require.NoError(t, results[0].Err)
	assert.ErrorContains(t, results[1].Err, `clip "walk_from_ska" is already produced by `+inputs[0])
	assert.Error(t, results[2].Err, "a path listed twice is imported once")

	m := NewManifest(f.out, 30, results)
	require.Len(t, m.Clips, 1)
	assert.Equal(t, filepath.Join(f.dir, "a", "walk.ska"), m.Clips[0].Source)
	assert.Equal(t, 1.0, testutil.ToFloat64(f.cfg.Metrics.FilesTotal.WithLabelValues("ska", "ok")))
	assert.Equal(t, 2.0, testutil.ToFloat64(f.cfg.Metrics.FilesTotal.WithLabelValues("ska", "error")))
}

func TestRunAltLoaderNameTakenBySKA(t *testing.T) {
	f := newFixture(t)
	f.cfg.Workers = 1
	f.cfg.Loaders.Register(".anm", LoaderFunc(func(_ string, skel *skeleton.Skeleton, _ float64) ([]Named, error) {
		return []Named{{Name: "walk_from_ska", Curves: identCurves(skel, 1)}}, nil
	}))
	anm := filepath.Join(f.dir, "walk.anm")
	require.NoError(t, os.WriteFile(anm, []byte("x"), 0644))
	skaPath := filepath.Join(f.dir, "walk.ska")
	skatest.EndToEnd().Write(t, skaPath)

	results := Run(f.cfg, []string{anm, skaPath})
	assert.ErrorContains(t, results[0].Err, "already produced by "+skaPath)
	assert.NoError(t, results[1].Err)
}

func TestRunCompressedWithPreview(t *testing.T) {
	f := newFixture(t)
	f.cfg.Compress = true
	f.cfg.Preview = &preview.Options{Width: 64, Height: 32, Supersample: 2}
	f.cfg.PreviewFormat = "tga"

	in := filepath.Join(f.dir, "run.ska")
	skatest.Sparse(1, 4).Write(t, in)

	results := Run(f.cfg, []string{in})
	require.NoError(t, results[0].Err)
	o := results[0].Clips[0]
	assert.Equal(t, filepath.Join(f.out, "run_from_ska.json.sz"), o.File)
	assert.Equal(t, filepath.Join(f.out, "run_from_ska.tga"), o.Preview)
	assert.FileExists(t, o.Preview)

	c, err := clip.Read(o.File)
	require.NoError(t, err)
	assert.Equal(t, 3, c.Frames())
}

func TestSelector(t *testing.T) {
	dir := t.TempDir()
	human := filepath.Join(dir, "human.yaml")
	wolf := filepath.Join(dir, "wolf.yaml")
	require.NoError(t, os.WriteFile(human, []byte(rigYAML), 0644))
	require.NoError(t, os.WriteFile(wolf, []byte("bones:\n  - name: snout\n"), 0644))

	s := &Selector{
		Default:  human,
		Rules:    []Rule{{Match: "wolf_*", Path: wolf}},
		Resolver: skeleton.NewCache(),
	}

	p, err := s.Path("WOLF_run")
	require.NoError(t, err)
	assert.Equal(t, wolf, p)

	sk, err := s.Select("walk")
	require.NoError(t, err)
	assert.Equal(t, "root", sk.Bone(0).Name)

	_, err = (&Selector{Rules: []Rule{{Match: "[", Path: wolf}}}).Path("x")
	assert.Error(t, err)
	_, err = (&Selector{}).Path("x")
	assert.ErrorContains(t, err, "no skeleton configured")
	_, err = (*Selector)(nil).Select("x")
	assert.Error(t, err)
}

func TestDiscover(t *testing.T) {
	dir := t.TempDir()
	for _, p := range []string{"b.SKA", "a.ska", "sub/c.anm", "sub/notes.txt"} {
		full := filepath.Join(dir, p)
		require.NoError(t, os.MkdirAll(filepath.Dir(full), 0755))
		require.NoError(t, os.WriteFile(full, nil, 0644))
	}

	got, err := Discover(dir, []string{".ska", "anm"})
	require.NoError(t, err)
	assert.Equal(t, []string{
		filepath.Join(dir, "a.ska"),
		filepath.Join(dir, "b.SKA"),
		filepath.Join(dir, "sub", "c.anm"),
	}, got)

	_, err = Discover(filepath.Join(dir, "missing"), []string{".ska"})
	assert.Error(t, err)

	assert.Equal(t, "b", Stem("/x/b.SKA"))
}

func TestManifest(t *testing.T) {
	f := newFixture(t)
	in := filepath.Join(f.dir, "walk.ska")
	skatest.EndToEnd().Write(t, in)
	missing := filepath.Join(f.dir, "gone.ska")

	results := Run(f.cfg, []string{in, missing})
	m := NewManifest(f.out, 30, results)
	assert.Len(t, m.RunID, 36)
	assert.Equal(t, []string{missing}, m.Failed)
	require.Len(t, m.Clips, 1)
	assert.Equal(t, "walk_from_ska.json", m.Clips[0].File)
	assert.Equal(t, 1, m.Clips[0].Bones)

	path := filepath.Join(f.out, "manifest.json")
	require.NoError(t, WriteManifest(path, m))
	data, err := os.ReadFile(path)
	require.NoError(t, err)

	var back Manifest
	require.NoError(t, json.Unmarshal(data, &back))
	assert.Equal(t, m.RunID, back.RunID)
	assert.Equal(t, m.Clips, back.Clips)

	other := NewManifest(f.out, 30, results)
	assert.NotEqual(t, m.RunID, other.RunID)
}

func TestRegistryLookup(t *testing.T) {
	var r *Registry
	_, ok := r.Lookup(".anm")
	assert.False(t, ok)

	r = &Registry{}
	r.Register("anm", LoaderFunc(func(string, *skeleton.Skeleton, float64) ([]Named, error) { return nil, nil }))
	_, ok = r.Lookup(".ANM")
	assert.True(t, ok)
}
