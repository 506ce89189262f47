package main

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"ska-importer/internal/config"
	"ska-importer/internal/importer"
	"ska-importer/internal/metrics"
	"ska-importer/internal/preview"
	"ska-importer/internal/retarget"
	"ska-importer/internal/skeleton"
)

func main() {
	if err := run(os.Args[1:], os.Stdout, os.Stderr); err != nil {
		if !errors.Is(err, errFailed) {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		}
		os.Exit(1)
	}
}

var errFailed = errors.New("some files failed")

func run(args []string, stdout, stderr io.Writer) error {
	fs := flag.NewFlagSet("skaimport", flag.ContinueOnError)
	fs.SetOutput(stderr)
	configFile := fs.String("config", "", "Path to a JSON or YAML config file")
	inputDir := fs.String("input", "", "Directory to scan for animation files")
	outputDir := fs.String("output", "", "Output directory (default: <input>/clips)")
	skel := fs.String("skeleton", "", "Default skeleton description (YAML or JSON)")
	fps := fs.Float64("fps", 0, "Scene frame rate 1-240 (default: 30)")
	workers := fs.Int("workers", 0, "Number of worker goroutines (default: NumCPU)")
	compress := fs.Bool("compress", false, "Write snappy-compressed clips (.json.sz)")
	withPreview := fs.Bool("preview", false, "Write a curve preview image per clip")
	format := fs.String("format", "", "Preview format: webp or tga (default: webp)")
	metricsFile := fs.String("metrics", "", "Write prometheus metrics to this textfile")
	verbose := fs.Bool("v", false, "Verbose (debug) logging")

	if err := fs.Parse(args); err != nil {
		return err
	}

	level := slog.LevelInfo
	if *verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(stderr, &slog.HandlerOptions{Level: level}))

	// Load config
	var cfg config.Config
	if *configFile != "" {
		var err error
		cfg, err = config.Load(*configFile)
		if err != nil {
			return err
		}
	}

	// CLI flags override config file
	cfg.Resolve(config.Flags{
		InputDir:  *inputDir,
		OutputDir: *outputDir,
		Skeleton:  *skel,
		FPS:       *fps,
		Workers:   *workers,
		Compress:  *compress,
		Preview:   *withPreview,
		Format:    *format,
		Metrics:   *metricsFile,
	})
	if cfg.OutputDir == "" {
		return errors.New("no output directory: use -output, -input or a config file")
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	paths, err := collect(cfg, fs.Args())
	if err != nil {
		return err
	}
	if len(paths) == 0 {
		fmt.Fprintln(stdout, "No animation files to import.")
		return nil
	}

	if err := os.MkdirAll(cfg.OutputDir, 0755); err != nil {
		return err
	}

	rules := make([]importer.Rule, len(cfg.Skeletons))
	for i, r := range cfg.Skeletons {
		rules[i] = importer.Rule{Match: r.Match, Path: r.Path}
	}
	batch := metrics.NewBatch()
	icfg := importer.Config{
		OutputDir: cfg.OutputDir,
		FPS:       cfg.FPS,
		Workers:   cfg.Workers,
		Compress:  cfg.Compress,
		Skeletons: &importer.Selector{
			Default:  cfg.Skeleton,
			Rules:    rules,
			Resolver: skeleton.NewCache(),
		},
		Loaders:       &importer.Registry{},
		PreviewFormat: cfg.PreviewFormat,
		Metrics:       batch,
		Logger:        logger,
	}
	if cfg.Preview {
		icfg.Preview = &preview.Options{
			Width:       cfg.PreviewWidth,
			Height:      cfg.PreviewHeight,
			Supersample: cfg.Supersample,
		}
	}

	fmt.Fprintln(stdout, "SKA animation import")
	fmt.Fprintf(stdout, "Files: %d, Workers: %d, FPS: %g\n", len(paths), cfg.Workers, cfg.FPS)
	fmt.Fprintf(stdout, "Output: %s\n", cfg.OutputDir)
	fmt.Fprintln(stdout, "------------------------------------------------------------")

	start := time.Now()
	results := importer.Run(icfg, paths)
	elapsed := time.Since(start)

	fmt.Fprintln(stdout, "------------------------------------------------------------")
	fmt.Fprintf(stdout, "Done in %.1fs\n", elapsed.Seconds())

	// Count results
	success, clips, skipped := 0, 0, 0
	var failed []importer.Result
	for _, r := range results {
		if r.Err != nil {
			failed = append(failed, r)
			continue
		}
		success++
		clips += len(r.Clips)
		for _, n := range r.Notices {
			if n.Kind == retarget.NoticeUnmapped {
				skipped++
			}
		}
	}
	fmt.Fprintf(stdout, "Imported: %d/%d files, %d clips, %d bones skipped\n", success, len(paths), clips, skipped)

	if len(failed) > 0 {
		fmt.Fprintf(stdout, "\nFailed (%d):\n", len(failed))
		for _, r := range failed {
			fmt.Fprintf(stdout, "  %v\n", r.Err)
		}
	}

	manifestPath := filepath.Join(cfg.OutputDir, "manifest.json")
	if err := importer.WriteManifest(manifestPath, importer.NewManifest(cfg.OutputDir, cfg.FPS, results)); err != nil {
		logger.Warn("manifest write failed", "err", err)
	} else {
		fmt.Fprintf(stdout, "Manifest: %s\n", manifestPath)
	}

	if cfg.MetricsFile != "" {
		if err := batch.WriteTextfile(cfg.MetricsFile); err != nil {
			logger.Warn("metrics write failed", "err", err)
		}
	}

	if importer.Errors(results) != nil {
		return errFailed
	}
	return nil
}

// collect returns the input directory's files followed by the command-line
// arguments; directory arguments are scanned as well.
func collect(cfg config.Config, args []string) ([]string, error) {
	var paths []string
	if cfg.InputDir != "" {
		found, err := importer.Discover(cfg.InputDir, cfg.Extensions)
		if err != nil {
			return nil, fmt.Errorf("scan %s: %w", cfg.InputDir, err)
		}
		paths = append(paths, found...)
	}
	for _, a := range args {
		info, err := os.Stat(a)
		if err != nil {
			return nil, err
		}
		if !info.IsDir() {
			paths = append(paths, a)
			continue
		}
		found, err := importer.Discover(a, cfg.Extensions)
		if err != nil {
			return nil, fmt.Errorf("scan %s: %w", a, err)
		}
		paths = append(paths, found...)
	}
	return paths, nil
}
