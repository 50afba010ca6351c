// Package pipeline runs the harvester stages over many inputs with a
// bounded worker pool. Every input is processed end to end on its own;
// a failing input is logged and counted and the run continues.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"sync/atomic"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/c360studio/krawl/export"
	"github.com/c360studio/krawl/graph"
	"github.com/c360studio/krawl/manifest"
	"github.com/c360studio/krawl/metrics"
	"github.com/c360studio/krawl/permalink"
	"github.com/c360studio/krawl/rdf"
	"github.com/c360studio/krawl/storage"
	"github.com/c360studio/krawl/wikibase"
)

// ErrSkipped marks an input that needed no work.
var ErrSkipped = errors.New("skipped")

// Source labels of the manifest metrics.
const (
	SourceGitHub      = "github"
	SourceWikifactory = "wikifactory"
	SourceFile        = "file"
)

// Reconciler pushes a graph to the knowledge base.
type Reconciler interface {
	Reconcile(ctx context.Context, g *rdf.Graph) (*wikibase.Result, error)
}

// Deps are the collaborators of a Pipeline. Only the ones a stage uses
// need to be set.
type Deps struct {
	Layout     *storage.Layout
	Normalizer *manifest.Normalizer
	Resolver   *permalink.Resolver
	Builder    *rdf.Builder
	Reconciler Reconciler
	Publisher  *graph.Publisher

	// BrowseURL turns a remote id into a link printed after push.
	BrowseURL func(id string) string
}

// Summary counts the outcome of one run.
type Summary struct {
	RunID     string
	Processed int
	Skipped   int
	Failed    int
}

// Pipeline wires the stages together.
type Pipeline struct {
	deps    Deps
	workers int
	out     io.Writer
	outMu   sync.Mutex
	logger  *slog.Logger
}

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithWorkers sets the pool size.
func WithWorkers(n int) Option {
	return func(p *Pipeline) {
		if n > 0 {
			p.workers = n
		}
	}
}

// WithOutput sets where browse URLs are printed.
func WithOutput(w io.Writer) Option {
	return func(p *Pipeline) {
		p.out = w
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(p *Pipeline) {
		p.logger = logger
	}
}

// New creates a pipeline.
func New(deps Deps, opts ...Option) *Pipeline {
	p := &Pipeline{
		deps:    deps,
		workers: 4,
		out:     os.Stdout,
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// pool runs units on at most workers goroutines and tallies their results.
type pool struct {
	g      *errgroup.Group
	ctx    context.Context
	stage  string
	runID  string
	logger *slog.Logger

	processed atomic.Int64
	skipped   atomic.Int64
	failed    atomic.Int64
}

func (p *Pipeline) newPool(ctx context.Context, stage string) *pool {
	g := &errgroup.Group{}
	g.SetLimit(p.workers)
	runID := uuid.New().String()
	return &pool{
		g:      g,
		ctx:    ctx,
		stage:  stage,
		runID:  runID,
		logger: p.logger.With("stage", stage, "run_id", runID),
	}
}

// submit blocks while the pool is full. Unit errors never cancel the run.
func (w *pool) submit(unit string, fn func(ctx context.Context) error) {
	w.g.Go(func() error {
		if w.ctx.Err() != nil {
			return nil
		}
		err := fn(w.ctx)
		switch {
		case err == nil:
			w.processed.Add(1)
		case errors.Is(err, ErrSkipped):
			w.skipped.Add(1)
			w.logger.Debug("Skipped", "unit", unit)
		default:
			w.failed.Add(1)
			metrics.RecordError(w.stage, errorType(err))
			w.logger.Error("Unit failed", "unit", unit, "error", err)
		}
		return nil
	})
}

func (w *pool) wait() (Summary, error) {
	_ = w.g.Wait()
	s := Summary{
		RunID:     w.runID,
		Processed: int(w.processed.Load()),
		Skipped:   int(w.skipped.Load()),
		Failed:    int(w.failed.Load()),
	}
	w.logger.Info("Run finished", "processed", s.Processed, "skipped", s.Skipped, "failed", s.Failed)
	return s, w.ctx.Err()
}

func errorType(err error) string {
	var (
		parseErr   *manifest.ParseError
		validErr   *manifest.ValidationError
		creatorErr *manifest.MissingCreatorError
		reconErr   *wikibase.ReconcileTransportError
	)
	switch {
	case errors.As(err, &parseErr):
		return "parse"
	case errors.As(err, &validErr):
		return "validation"
	case errors.As(err, &creatorErr):
		return "missing_creator"
	case errors.Is(err, wikibase.ErrRetryBudgetExhausted):
		return "repair_budget"
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return "cancelled"
	case errors.As(err, &reconErr):
		return "reconcile_transport"
	}
	return "other"
}

// Each runs fn for every path on the worker pool.
func (p *Pipeline) Each(ctx context.Context, stage string, paths []string, fn func(ctx context.Context, path string) error) (Summary, error) {
	w := p.newPool(ctx, stage)
	for _, path := range paths {
		if ctx.Err() != nil {
			break
		}
		w.submit(path, func(ctx context.Context) error {
			return fn(ctx, path)
		})
	}
	return w.wait()
}

// ExpandInputs resolves paths and doublestar patterns ("**" included) into
// a sorted list of files. A plain path must exist.
func ExpandInputs(patterns []string) ([]string, error) {
	seen := make(map[string]struct{})
	var out []string
	add := func(path string) {
		if _, ok := seen[path]; !ok {
			seen[path] = struct{}{}
			out = append(out, path)
		}
	}

	for _, pattern := range patterns {
		pattern = filepath.Clean(pattern)
		if !hasMeta(pattern) {
			info, err := os.Stat(pattern)
			if err != nil {
				return nil, fmt.Errorf("input %s: %w", pattern, err)
			}
			if !info.IsDir() {
				add(pattern)
			}
			continue
		}
		matches, err := doublestar.FilepathGlob(pattern, doublestar.WithFilesOnly())
		if err != nil {
			return nil, fmt.Errorf("pattern %s: %w", pattern, err)
		}
		for _, m := range matches {
			add(m)
		}
	}
	sort.Strings(out)
	return out, nil
}

func hasMeta(pattern string) bool {
	for _, c := range pattern {
		switch c {
		case '*', '?', '[', '{':
			return true
		}
	}
	return false
}

// NormalizeFile parses a raw OKH manifest and writes normalized.toml next
// to it. The format comes from the file extension unless given.
func (p *Pipeline) NormalizeFile(_ context.Context, path string, format manifest.Format) (string, error) {
	if format == "" {
		f, err := manifest.ParseFormat(filepath.Ext(path))
		if err != nil {
			return "", err
		}
		format = f
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	doc, err := manifest.Parse(data, format)
	if err != nil {
		metrics.RecordManifest(SourceFile, metrics.StatusFailed)
		return "", err
	}
	m, err := p.normalizeOKH(manifest.SetVersion(doc))
	if err != nil {
		metrics.RecordManifest(SourceFile, metrics.StatusFailed)
		return "", err
	}
	out, err := storage.SaveNormalized(filepath.Dir(path), m)
	if err != nil {
		return "", err
	}
	metrics.RecordManifest(SourceFile, metrics.StatusOK)
	return out, nil
}

func (p *Pipeline) normalizeOKH(doc map[string]any) (*manifest.Manifest, error) {
	m, err := p.deps.Normalizer.NormalizeOKH(doc)
	if err != nil {
		return nil, err
	}
	if err := manifest.Validate(m); err != nil {
		return nil, err
	}
	return m, nil
}

// ExportRDF builds the graph of a normalized manifest and writes it next
// to the manifest as rdf.<ext>.
func (p *Pipeline) ExportRDF(ctx context.Context, path string, format export.Format) (string, error) {
	info, ok := export.GetFormatInfo(format)
	if !ok {
		return "", fmt.Errorf("unsupported format: %s", format)
	}
	g, err := p.build(path)
	if err != nil {
		return "", err
	}
	text, err := export.NewRDFExporter(g).Export(format)
	if err != nil {
		return "", err
	}
	out, err := storage.SaveRDF(filepath.Dir(path), info.Extension, []byte(text))
	if err != nil {
		return "", err
	}
	p.publish(ctx, g, nil)
	return out, nil
}

func (p *Pipeline) build(path string) (*rdf.Graph, error) {
	m, err := storage.LoadNormalized(path)
	if err != nil {
		return nil, err
	}
	return p.deps.Builder.Build(m)
}

// Push builds the graph of a normalized manifest, reconciles it and
// prints the browse URL of every pushed module. Entity failures are
// joined into the returned error.
func (p *Pipeline) Push(ctx context.Context, path string) (*wikibase.Result, error) {
	g, err := p.build(path)
	if err != nil {
		return nil, err
	}
	res, err := p.deps.Reconciler.Reconcile(ctx, g)
	if err != nil {
		return res, err
	}
	for _, module := range res.Modules {
		id, ok := res.IDs[module]
		if !ok {
			continue
		}
		url := id
		if p.deps.BrowseURL != nil {
			url = p.deps.BrowseURL(id)
		}
		p.outMu.Lock()
		fmt.Fprintln(p.out, url)
		p.outMu.Unlock()
	}
	p.publish(ctx, g, res.IDs)
	return res, res.Err()
}

func (p *Pipeline) publish(ctx context.Context, g *rdf.Graph, remote map[string]string) {
	if p.deps.Publisher == nil {
		return
	}
	if _, err := p.deps.Publisher.Publish(ctx, g, remote); err != nil {
		p.logger.Warn("Failed to publish graph", "base", g.Base, "error", err)
	}
}

// Watch pushes every normalized manifest that appears or changes below
// dir until ctx is done.
func (p *Pipeline) Watch(ctx context.Context, dir string, w *Watcher) (Summary, error) {
	if err := w.Start(ctx); err != nil {
		return Summary{}, err
	}
	defer w.Stop()

	pl := p.newPool(ctx, "watch")
	p.logger.Info("Watching for manifests", "dir", dir)
	for path := range w.Events() {
		pl.submit(path, func(ctx context.Context) error {
			_, err := p.Push(ctx, path)
			return err
		})
	}
	s, err := pl.wait()
	if errors.Is(err, context.Canceled) {
		err = nil
	}
	return s, err
}
