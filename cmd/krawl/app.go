package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/c360studio/krawl/config"
	"github.com/c360studio/krawl/graph"
	"github.com/c360studio/krawl/ledger"
	"github.com/c360studio/krawl/licenses"
	"github.com/c360studio/krawl/manifest"
	"github.com/c360studio/krawl/metrics"
	"github.com/c360studio/krawl/permalink"
	"github.com/c360studio/krawl/pipeline"
	"github.com/c360studio/krawl/rdf"
	"github.com/c360studio/krawl/source/github"
	"github.com/c360studio/krawl/source/wikifactory"
	"github.com/c360studio/krawl/storage"
	"github.com/c360studio/krawl/transport"
	"github.com/c360studio/krawl/vocabulary/okh"
	"github.com/c360studio/krawl/wikibase"
)

// App wires configuration into the pipeline collaborators. Network
// collaborators are created by the commands that need them.
type App struct {
	cfg    *config.Config
	logger *slog.Logger
	out    io.Writer

	vocab   *okh.Map
	deps    pipeline.Deps
	natsCon *nats.Conn
	ledger  *ledger.Ledger
	metrics *http.Server
}

// loadConfig applies the layered config and the --workdir flag.
func loadConfig(flags *globalFlags, logger *slog.Logger) (*config.Config, error) {
	var opts []config.LoaderOption
	if flags.configPath != "" {
		opts = append(opts, config.WithConfigFile(flags.configPath))
	}
	if flags.workDir != "" {
		opts = append(opts, config.WithEnv(overrideEnv(config.EnvWorkDir, flags.workDir)))
	}
	cfg, err := config.NewLoader(logger, opts...).Load()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	abs, err := filepath.Abs(cfg.WorkDir)
	if err != nil {
		return nil, fmt.Errorf("resolve workdir: %w", err)
	}
	cfg.WorkDir = abs
	return cfg, nil
}

// NewApp creates the offline part of the application: vocabulary, storage
// layout and graph builder.
func NewApp(cfg *config.Config, logger *slog.Logger, out io.Writer) (*App, error) {
	vocab, err := okh.Load()
	if err != nil {
		return nil, fmt.Errorf("load vocabulary: %w", err)
	}
	a := &App{
		cfg:    cfg,
		logger: logger,
		out:    out,
		vocab:  vocab,
		deps: pipeline.Deps{
			Layout:  storage.New(cfg.WorkDir),
			Builder: rdf.NewBuilder(vocab),
		},
	}
	return a, nil
}

// Pipeline returns a pipeline over the collaborators set up so far.
func (a *App) Pipeline() *pipeline.Pipeline {
	return pipeline.New(a.deps,
		pipeline.WithWorkers(a.cfg.Wikibase.PoolSize),
		pipeline.WithOutput(a.out),
		pipeline.WithLogger(a.logger))
}

// StartMetrics serves /metrics when metrics.addr is set.
func (a *App) StartMetrics() {
	if a.cfg.Metrics.Addr == "" {
		return
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", metrics.Handler())
	a.metrics = &http.Server{Addr: a.cfg.Metrics.Addr, Handler: mux, ReadHeaderTimeout: 10 * time.Second}
	go func() {
		if err := a.metrics.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			a.logger.Error("Metrics server failed", "addr", a.cfg.Metrics.Addr, "error", err)
		}
	}()
	a.logger.Info("Serving metrics", "addr", a.cfg.Metrics.Addr)
}

// UseNormalizer fetches the license lists and sets up the normalizer.
func (a *App) UseNormalizer(ctx context.Context) error {
	client := transport.New(transport.WithLogger(a.logger))
	catalog, err := licenses.Fetch(ctx, client, a.cfg.Licenses.SPDXURL, a.cfg.Licenses.BlacklistURL, a.logger)
	if err != nil {
		return fmt.Errorf("fetch licenses: %w", err)
	}
	a.deps.Normalizer = manifest.NewNormalizer(catalog, manifest.WithLogger(a.logger))
	return nil
}

// GitHub returns the GitHub client and sets up the permalink resolver.
func (a *App) GitHub() *github.Client {
	opts := []transport.Option{
		transport.WithLogger(a.logger),
		transport.WithHTTPClient(transport.NewHTTPClient(a.cfg.Wikibase.PoolSize, a.cfg.Wikibase.Timeout, nil)),
	}
	if a.cfg.GitHub.Token != "" {
		opts = append(opts, transport.WithBearerToken(a.cfg.GitHub.Token))
	}
	client := transport.New(opts...)
	a.deps.Resolver = permalink.NewResolver(client,
		permalink.WithRawHost(a.cfg.GitHub.RawHost),
		permalink.WithLogger(a.logger))
	return github.NewClient(client, github.WithAPIURL(a.cfg.GitHub.APIURL), github.WithLogger(a.logger))
}

// Wikifactory returns the Wikifactory GraphQL client.
func (a *App) Wikifactory() *wikifactory.Client {
	client := transport.New(
		transport.WithLogger(a.logger),
		transport.WithUserAgent(a.cfg.Wikifactory.UserAgent))
	return wikifactory.NewClient(client,
		wikifactory.WithURL(a.cfg.Wikifactory.URL),
		wikifactory.WithBatchSize(a.cfg.Wikifactory.BatchSize),
		wikifactory.WithMaxPages(a.cfg.Wikifactory.MaxPages),
		wikifactory.WithFrom(a.cfg.Wikifactory.From),
		wikifactory.WithLogger(a.logger))
}

// Ledger opens the dedup ledger in the work directory.
func (a *App) Ledger() (*ledger.Ledger, error) {
	if a.ledger != nil {
		return a.ledger, nil
	}
	db, err := ledger.Open(a.cfg.LedgerPath())
	if err != nil {
		return nil, err
	}
	a.ledger = db
	return db, nil
}

// UseWikibase logs in once and sets up the reconciler. The session is not
// refreshed; a run that outlives it has to be restarted.
func (a *App) UseWikibase(ctx context.Context) error {
	wb := a.cfg.Wikibase
	jar, err := wikibase.NewCookieJar()
	if err != nil {
		return err
	}
	opts := []transport.Option{
		transport.WithHTTPClient(transport.NewHTTPClient(wb.PoolSize, wb.Timeout, jar)),
		transport.WithRetryConfig(transport.SocketRetries(wb.SocketRetries)),
		transport.WithLogger(a.logger),
	}
	if wb.AccessToken != "" {
		opts = append(opts, transport.WithBearerToken(wb.AccessToken))
	}
	client := wikibase.NewClient(wb.Host, transport.New(opts...), wikibase.WithClientLogger(a.logger))
	if err := client.Authenticate(ctx, wb.User, wb.Password); err != nil {
		return fmt.Errorf("wikibase login: %w", err)
	}

	a.deps.Reconciler = wikibase.NewReconciler(client, wb.ReconcileProperty,
		wikibase.WithMaxSchemaRepairs(wb.MaxSchemaRepairs),
		wikibase.WithLogger(a.logger))
	a.deps.BrowseURL = client.BrowseURL
	return nil
}

// UsePublisher connects to NATS when nats.url is set.
func (a *App) UsePublisher() error {
	if a.cfg.NATS.URL == "" {
		return nil
	}
	nc, js, err := graph.Connect(a.cfg.NATS.URL, a.logger)
	if err != nil {
		return err
	}
	a.natsCon = nc
	a.deps.Publisher = graph.NewPublisher(js, a.vocab,
		graph.WithSubject(a.cfg.NATS.Subject),
		graph.WithLogger(a.logger))
	return nil
}

// Close releases connections and stops the metrics server.
func (a *App) Close() error {
	var errs []error
	if a.ledger != nil {
		errs = append(errs, a.ledger.Close())
	}
	if a.natsCon != nil {
		errs = append(errs, a.natsCon.Drain())
	}
	if a.metrics != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		errs = append(errs, a.metrics.Shutdown(ctx))
	}
	return errors.Join(errs...)
}

// overrideEnv wraps the process environment with one fixed variable.
func overrideEnv(key, value string) func(string) string {
	return func(k string) string {
		if k == key {
			return value
		}
		return os.Getenv(k)
	}
}
