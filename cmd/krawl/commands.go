package main

import (
	"context"
	"fmt"
	"log/slog"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/c360studio/krawl/export"
	"github.com/c360studio/krawl/manifest"
	"github.com/c360studio/krawl/pipeline"
	"github.com/c360studio/krawl/storage"
)

// runApp loads the configuration, builds the App and runs fn until it
// returns or the process is interrupted.
func runApp(cmd *cobra.Command, flags *globalFlags, fn func(ctx context.Context, app *App) error) error {
	logger := slog.Default()
	cfg, err := loadConfig(flags, logger)
	if err != nil {
		return err
	}

	app, err := NewApp(cfg, logger, cmd.OutOrStdout())
	if err != nil {
		return err
	}
	defer func() {
		if err := app.Close(); err != nil {
			logger.Warn("Shutdown incomplete", "error", err)
		}
	}()
	app.StartMetrics()

	// Setup signal handling
	ctx, cancel := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	logger.Debug("Krawl ready", "version", Version, "workdir", cfg.WorkDir)
	return fn(ctx, app)
}

// inputs expands the arguments, or the default pattern below the work
// directory when there are none.
func inputs(app *App, args []string, defaultPattern string) ([]string, error) {
	if len(args) == 0 {
		args = []string{filepath.Join(app.cfg.WorkDir, "**", defaultPattern)}
	}
	paths, err := pipeline.ExpandInputs(args)
	if err != nil {
		return nil, err
	}
	if len(paths) == 0 {
		return nil, fmt.Errorf("no input files match %s", strings.Join(args, " "))
	}
	return paths, nil
}

func logSummary(app *App, stage string, s pipeline.Summary) {
	app.logger.Info("Finished "+stage,
		"run_id", s.RunID,
		"processed", s.Processed,
		"skipped", s.Skipped,
		"failed", s.Failed)
}

func githubCmd(flags *globalFlags) *cobra.Command {
	var extensions []string

	cmd := &cobra.Command{
		Use:   "github",
		Short: "Crawl GitHub for OKH manifests and normalize new ones",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runApp(cmd, flags, func(ctx context.Context, app *App) error {
				exts := extensions
				if len(exts) == 0 {
					exts = app.cfg.GitHub.Extensions
				}
				formats := make([]manifest.Format, 0, len(exts))
				for _, ext := range exts {
					f, err := manifest.ParseFormat(ext)
					if err != nil {
						return err
					}
					formats = append(formats, f)
				}

				if err := app.UseNormalizer(ctx); err != nil {
					return err
				}
				if app.cfg.GitHub.Token == "" {
					app.logger.Warn("No GitHub token set, code search needs one", "env", "KRAWLER_GITHUB_KEY")
				}
				src := app.GitHub()
				db, err := app.Ledger()
				if err != nil {
					return err
				}
				s, err := app.Pipeline().CrawlGitHub(ctx, src, db, formats)
				logSummary(app, "github crawl", s)
				return err
			})
		},
	}
	cmd.Flags().StringSliceVar(&extensions, "ext", nil, "Manifest formats to search (toml,yml,json)")
	return cmd
}

func wikifactoryCmd(flags *globalFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "wikifactory",
		Short: "Crawl Wikifactory projects",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "fetch",
		Short: "Fetch all projects and store them as record.json",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runApp(cmd, flags, func(ctx context.Context, app *App) error {
				s, err := app.Pipeline().FetchWikifactory(ctx, app.Wikifactory())
				logSummary(app, "wikifactory fetch", s)
				return err
			})
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "convert [FILES...]",
		Short: "Normalize stored record.json files",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runApp(cmd, flags, func(ctx context.Context, app *App) error {
				paths, err := inputs(app, args, storage.RecordFile)
				if err != nil {
					return err
				}
				if err := app.UseNormalizer(ctx); err != nil {
					return err
				}
				p := app.Pipeline()
				s, err := p.Each(ctx, "convert", paths, func(ctx context.Context, path string) error {
					_, err := p.ConvertRecord(ctx, path)
					return err
				})
				logSummary(app, "wikifactory convert", s)
				return err
			})
		},
	})

	return cmd
}

func normalizeCmd(flags *globalFlags) *cobra.Command {
	var format string

	cmd := &cobra.Command{
		Use:   "normalize FILES...",
		Short: "Normalize raw OKH manifests into normalized.toml",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var f manifest.Format
			if format != "" {
				parsed, err := manifest.ParseFormat(format)
				if err != nil {
					return err
				}
				f = parsed
			}
			return runApp(cmd, flags, func(ctx context.Context, app *App) error {
				paths, err := inputs(app, args, "")
				if err != nil {
					return err
				}
				if err := app.UseNormalizer(ctx); err != nil {
					return err
				}
				p := app.Pipeline()
				s, err := p.Each(ctx, "normalize", paths, func(ctx context.Context, path string) error {
					_, err := p.NormalizeFile(ctx, path, f)
					return err
				})
				logSummary(app, "normalize", s)
				return err
			})
		},
	}
	cmd.Flags().StringVar(&format, "format", "", "Input format (toml, yml, json); defaults to the file extension")
	return cmd
}

func rdfCmd(flags *globalFlags) *cobra.Command {
	var format string

	cmd := &cobra.Command{
		Use:   "rdf [FILES...]",
		Short: "Serialize normalized manifests as RDF",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runApp(cmd, flags, func(ctx context.Context, app *App) error {
				if format == "" {
					format = app.cfg.Export.Format
				}
				f, err := export.ParseFormat(format)
				if err != nil {
					return err
				}
				paths, err := inputs(app, args, storage.NormalizedFile)
				if err != nil {
					return err
				}
				if err := app.UsePublisher(); err != nil {
					return err
				}
				p := app.Pipeline()
				s, err := p.Each(ctx, "rdf", paths, func(ctx context.Context, path string) error {
					_, err := p.ExportRDF(ctx, path, f)
					return err
				})
				logSummary(app, "rdf export", s)
				return err
			})
		},
	}
	cmd.Flags().StringVarP(&format, "format", "f", "", "Output format (turtle, ntriples, jsonld)")
	return cmd
}

func pushCmd(flags *globalFlags) *cobra.Command {
	var watchDir string

	cmd := &cobra.Command{
		Use:   "push [FILES_OR_GLOBS...]",
		Short: "Reconcile normalized manifests into Wikibase",
		Long: `Push builds the graph of every normalized manifest and reconciles its
entities into the configured Wikibase. The browse URL of each pushed
module is printed on stdout.

With --watch, new or changed normalized.toml files below the directory
are pushed as they appear.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runApp(cmd, flags, func(ctx context.Context, app *App) error {
				var paths []string
				if watchDir == "" {
					var err error
					if paths, err = inputs(app, args, storage.NormalizedFile); err != nil {
						return err
					}
				}
				if err := app.UseWikibase(ctx); err != nil {
					return err
				}
				if err := app.UsePublisher(); err != nil {
					return err
				}
				p := app.Pipeline()

				if watchDir != "" {
					w, err := pipeline.NewWatcher(watchDir, storage.NormalizedFile, app.cfg.Watch.Debounce, app.logger)
					if err != nil {
						return err
					}
					s, err := p.Watch(ctx, watchDir, w)
					logSummary(app, "watch", s)
					return err
				}

				s, err := p.Each(ctx, "push", paths, func(ctx context.Context, path string) error {
					_, err := p.Push(ctx, path)
					return err
				})
				logSummary(app, "push", s)
				return err
			})
		},
	}
	cmd.Flags().StringVar(&watchDir, "watch", "", "Watch a directory and push manifests as they change")
	return cmd
}
