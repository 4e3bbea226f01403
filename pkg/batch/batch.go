// Package batch renders a whole catalog to disk, writes the manifest and
// packs everything into a ZIP archive.
package batch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"slices"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
	"github.com/james-see/neonhorizon/pkg/catalog"
	"github.com/james-see/neonhorizon/pkg/encoder"
	"github.com/james-see/neonhorizon/pkg/generator"
	"golang.org/x/sync/errgroup"
)

// Options configures a batch run
type Options struct {
	Catalog   *catalog.Catalog
	Generator *generator.Generator
	Writer    *encoder.MIDIWriter

	OutputDir    string
	ManifestPath string // empty skips the manifest
	ArchivePath  string // empty skips the archive
	Author       string
	Workers      int

	// ProgressEvery logs progress after this many pieces; 0 means 200
	ProgressEvery int

	Logger *slog.Logger

	// WriteFile replaces os.WriteFile, mainly for tests
	WriteFile func(name string, data []byte, perm os.FileMode) error
}

// Failure records a piece that could not be produced
type Failure struct {
	Filename string
	Params   generator.ParameterSet
	Err      error
}

func (f Failure) Error() string {
	return fmt.Sprintf("%s: %v", f.Filename, f.Err)
}

// Entry is one successfully written piece
type Entry struct {
	Filename string
	Path     string
	Params   generator.ParameterSet
	Report   encoder.Report
}

// Result summarizes a run
type Result struct {
	RunID    string
	Entries  []Entry // enumeration order
	Failures []Failure
	Clamped  int // pieces where at least one onset delta was clamped
	Manifest string
	Archive  string
}

// Written returns the number of pieces written
func (r *Result) Written() int {
	return len(r.Entries)
}

func (o *Options) defaults() error {
	if o.Catalog == nil {
		o.Catalog = catalog.Default()
	}
	if o.Generator == nil {
		o.Generator = generator.Default()
	}
	if o.Logger == nil {
		o.Logger = slog.Default()
	}
	if o.Writer == nil {
		o.Writer = encoder.NewMIDIWriter(o.Generator.Theory(), o.Logger)
	}
	if o.Workers <= 0 {
		o.Workers = runtime.NumCPU()
	}
	if o.ProgressEvery <= 0 {
		o.ProgressEvery = 200
	}
	if o.WriteFile == nil {
		o.WriteFile = os.WriteFile
	}
	if o.OutputDir == "" {
		return errors.New("output directory is required")
	}
	if err := o.Catalog.Validate(); err != nil {
		return fmt.Errorf("invalid catalog: %w", err)
	}
	return nil
}

// Run generates every piece of the catalog. A piece that fails is logged,
// recorded in Result.Failures and skipped. Manifest and archive errors end
// the run. Cancelling ctx stops scheduling new pieces.
func Run(ctx context.Context, opts Options) (*Result, error) {
	if err := opts.defaults(); err != nil {
		return nil, err
	}
	log := opts.Logger

	// Directory errors end the run; only per-piece errors are isolated
	if err := os.MkdirAll(opts.OutputDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create output directory: %w", err)
	}

	res := &Result{RunID: uuid.NewString()}
	sets := opts.Catalog.Enumerate()
	log.Info("starting batch", "run_id", res.RunID, "pieces", len(sets), "workers", opts.Workers, "output", opts.OutputDir)

	entries := make([]*Entry, len(sets))
	var (
		mu       sync.Mutex
		failures []failureAt
		done     atomic.Int64
	)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(opts.Workers)

	for i, params := range sets {
		if gctx.Err() != nil {
			break
		}
		i, params := i, params
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}

			entry, err := renderOne(opts, params)
			if err != nil {
				log.Error("piece failed", "file", catalog.Filename(params), "error", err)
				mu.Lock()
				failures = append(failures, failureAt{i, Failure{Filename: catalog.Filename(params), Params: params, Err: err}})
				mu.Unlock()
			} else {
				entries[i] = entry
				if n := entry.Report.Total(); n > 0 {
					log.Debug("delta clamps in piece", "file", entry.Filename, "clamps", n)
				}
			}

			if n := done.Add(1); n%int64(opts.ProgressEvery) == 0 {
				log.Info("progress", "done", n, "total", len(sets))
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return res, err
	}
	if err := ctx.Err(); err != nil {
		return res, err
	}

	for _, e := range entries {
		if e == nil {
			continue
		}
		res.Entries = append(res.Entries, *e)
		if e.Report.Total() > 0 {
			res.Clamped++
		}
	}
	slices.SortFunc(failures, func(a, b failureAt) int { return a.index - b.index })
	for _, f := range failures {
		res.Failures = append(res.Failures, f.Failure)
	}

	log.Info("pieces rendered", "written", res.Written(), "failed", len(res.Failures))
	if res.Clamped > 0 {
		log.Warn("onset deltas were clamped to zero", "pieces", res.Clamped)
	}

	if opts.ManifestPath != "" {
		if err := WriteManifest(opts.ManifestPath, res.Entries, opts.Author); err != nil {
			return res, err
		}
		res.Manifest = opts.ManifestPath
	}

	if opts.ArchivePath != "" {
		if err := WriteArchive(opts.ArchivePath, res.Manifest, res.Entries, res.RunID); err != nil {
			return res, err
		}
		res.Archive = opts.ArchivePath
		log.Info("archive written", "path", opts.ArchivePath)
	}

	return res, nil
}

func renderOne(opts Options, params generator.ParameterSet) (*Entry, error) {
	piece, err := opts.Generator.Generate(params)
	if err != nil {
		return nil, err
	}
	data, report, err := opts.Writer.Write(piece)
	if err != nil {
		return nil, err
	}

	name := catalog.Filename(params)
	path := filepath.Join(opts.OutputDir, name)
	if err := opts.WriteFile(path, data, 0644); err != nil {
		return nil, fmt.Errorf("failed to write %s: %w", name, err)
	}

	return &Entry{Filename: name, Path: path, Params: params, Report: report}, nil
}

type failureAt struct {
	index int
	Failure
}
