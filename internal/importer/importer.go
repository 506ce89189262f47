// Package importer runs batch imports of animation files onto skeletons.
package importer

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"ska-importer/internal/clip"
	"ska-importer/internal/metrics"
	"ska-importer/internal/preview"
	"ska-importer/internal/retarget"
	"ska-importer/internal/ska"
)

// SKAExt is the extension handled by the built-in SKA path.
const SKAExt = ".ska"

// Config holds all shared resources for a batch run.
type Config struct {
	OutputDir string
	FPS       float64
	Workers   int
	Compress  bool
	Skeletons *Selector
	Loaders   *Registry

	// Preview is nil when no preview images are written.
	Preview       *preview.Options
	PreviewFormat string

	Metrics  *metrics.Batch
	Logger   *slog.Logger
	Progress time.Duration
}

// Output describes one written clip.
type Output struct {
	Name    string
	File    string
	Preview string
	Start   int
	End     int
	Bones   int
}

// Result holds the outcome of importing one input file.
type Result struct {
	Path    string
	Kind    string
	Clips   []Output
	Notices []retarget.Notice
	Err     error
}

// Run imports all paths using a worker pool. A failing file never stops
// the others; its error is kept in its Result. Clip names are unique across
// the run: when two inputs would produce the same clip, the later one fails.
func Run(cfg Config, paths []string) []Result {
	if cfg.Workers <= 0 {
		cfg.Workers = 1
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	if cfg.Progress <= 0 {
		cfg.Progress = 2 * time.Second
	}

	total := len(paths)
	results := make([]Result, total)
	var processed atomic.Int64

	// SKA clip names are known up front, so duplicates are settled in input order.
	claims := newOutputClaims(paths)
	queued := make([]int, 0, total)
	for i, p := range paths {
		if strings.EqualFold(filepath.Ext(p), SKAExt) {
			if err := claims.claim(i, []string{skaClipName(p)}); err != nil {
				results[i] = Result{Path: p, Kind: "ska", Err: fmt.Errorf("%s: %w", p, err)}
				cfg.Logger.Error("import failed", "file", filepath.Base(p), "err", err)
				if cfg.Metrics != nil {
					cfg.Metrics.RecordFile("ska", false, 0)
				}
				processed.Add(1)
				continue
			}
		}
		queued = append(queued, i)
	}

	start := time.Now()

	// Progress reporter
	done := make(chan struct{})
	go func() {
		ticker := time.NewTicker(cfg.Progress)
		defer ticker.Stop()
		for {
			select {
			case <-done:
				return
			case <-ticker.C:
				p := processed.Load()
				if p > 0 {
					rate := float64(p) / time.Since(start).Seconds()
					cfg.Logger.Info("progress", "done", p, "total", total, "files_per_sec", fmt.Sprintf("%.1f", rate))
				}
			}
		}
	}()

	// Worker pool
	work := make(chan int, cfg.Workers*2)
	var wg sync.WaitGroup

	for w := 0; w < cfg.Workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for idx := range work {
				t0 := time.Now()
				results[idx] = processFile(cfg, claims, idx)
				if cfg.Metrics != nil {
					cfg.Metrics.RecordFile(results[idx].Kind, results[idx].Err == nil, time.Since(t0))
				}
				processed.Add(1)
			}
		}()
	}

	for _, i := range queued {
		work <- i
	}
	close(work)

	wg.Wait()
	close(done)

	return results
}

// Errors joins the errors of all failed results, or returns nil.
func Errors(results []Result) error {
	var errs []error
	for _, r := range results {
		if r.Err != nil {
			errs = append(errs, r.Err)
		}
	}
	return errors.Join(errs...)
}

func skaClipName(path string) string {
	return Stem(path) + "_from_ska"
}

func processFile(cfg Config, claims *outputClaims, idx int) Result {
	path := claims.paths[idx]
	ext := strings.ToLower(filepath.Ext(path))
	stem := Stem(path)
	res := Result{Path: path, Kind: strings.TrimPrefix(ext, ".")}
	log := cfg.Logger.With("file", filepath.Base(path))

	fail := func(err error) Result {
		res.Err = err
		log.Error("import failed", "err", err)
		return res
	}

	var loader AltLoader
	if ext != SKAExt {
		l, ok := cfg.Loaders.Lookup(ext)
		if !ok {
			return fail(fmt.Errorf("%s: no loader registered for %s", path, ext))
		}
		loader = l
	}

	skel, err := cfg.Skeletons.Select(stem)
	if err != nil {
		return fail(fmt.Errorf("%s: %w", path, err))
	}

	var anims []Named
	if loader == nil {
		anim, err := ska.Parse(path)
		if err != nil {
			return fail(err)
		}
		log.Debug("decoded", "magic", anim.Header.MagicString(), "bones", anim.Header.BoneCount,
			"times", anim.Header.TimeCount, "keyframes", anim.Header.KeyframeCount)
		anims = []Named{{Name: skaClipName(path), Curves: retarget.Retarget(anim, skel)}}
	} else {
		anims, err = loader.Load(path, skel, cfg.FPS)
		if err != nil {
			return fail(fmt.Errorf("%s: %w", path, err))
		}
		uniqueNames(anims, stem, res.Kind)
	}

	names := make([]string, len(anims))
	for i, a := range anims {
		if a.Curves == nil {
			return fail(fmt.Errorf("%s: loader returned %q without curves", path, a.Name))
		}
		names[i] = a.Name
	}
	if err := claims.claim(idx, names); err != nil {
		return fail(fmt.Errorf("%s: %w", path, err))
	}

	for _, a := range anims {
		for _, n := range a.Curves.Notices {
			switch n.Kind {
			case retarget.NoticeUnmapped:
				log.Warn(n.Message, "ska_bone", n.Bone)
			default:
				log.Info(n.Message, "mapping", a.Curves.Mapping.String())
			}
		}
		res.Notices = append(res.Notices, a.Curves.Notices...)

		out, err := writeClip(cfg, path, a)
		if err != nil {
			return fail(fmt.Errorf("%s: %w", path, err))
		}
		res.Clips = append(res.Clips, out)

		if cfg.Metrics != nil {
			rot, trans := a.Curves.SampleCounts()
			cfg.Metrics.RecordClip(rot, trans, a.Curves.Skipped())
		}
		log.Debug("clip written", "clip", out.Name, "start", out.Start, "end", out.End, "bones", out.Bones)
	}
	return res
}

func writeClip(cfg Config, source string, a Named) (Output, error) {
	c := clip.FromResult(a.Name, filepath.Base(source), cfg.FPS, a.Curves)

	name := a.Name + ".json"
	if cfg.Compress {
		name += clip.CompressedExt
	}
	out := Output{
		Name:  a.Name,
		File:  filepath.Join(cfg.OutputDir, name),
		Start: c.Start,
		End:   c.End,
		Bones: len(c.Bones),
	}
	if err := clip.Write(out.File, c); err != nil {
		return out, err
	}

	if cfg.Preview == nil {
		return out, nil
	}
	img := preview.Render(c, *cfg.Preview)
	out.Preview = filepath.Join(cfg.OutputDir, a.Name+preview.Ext(cfg.PreviewFormat))
	f, err := os.Create(out.Preview)
	if err != nil {
		return out, err
	}
	defer f.Close()
	if err := preview.Encode(f, img, cfg.PreviewFormat); err != nil {
		return out, err
	}
	return out, f.Close()
}
