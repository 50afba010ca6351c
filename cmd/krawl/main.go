// Package main provides the krawl binary entry point.
// Krawl harvests Open Know-How manifests from GitHub and Wikifactory,
// normalizes them, converts them to RDF and pushes them to a Wikibase.
package main

import (
	"fmt"
	"log/slog"
	"os"
	"runtime"
	"strings"

	"github.com/spf13/cobra"
)

const (
	Version   = "0.1.0"
	BuildTime = "dev"
	appName   = "krawl"
)

func main() {
	// Add panic recovery
	defer func() {
		if r := recover(); r != nil {
			buf := make([]byte, 4096)
			n := runtime.Stack(buf, false)
			_, _ = fmt.Fprintf(os.Stderr, "PANIC: %v\nStack trace:\n%s\n", r, string(buf[:n]))
			os.Exit(2)
		}
	}()

	if err := rootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// globalFlags are the persistent flags shared by all commands.
type globalFlags struct {
	configPath string
	workDir    string
	logLevel   string
}

func rootCmd() *cobra.Command {
	flags := &globalFlags{}

	cmd := &cobra.Command{
		Use:   appName,
		Short: "Open Know-How manifest harvester",
		Long: `Krawl harvests Open Know-How (OKH) hardware manifests.

Stages:
- github / wikifactory: crawl the sources and store raw manifests
- normalize / wikifactory convert: map raw records to normalized.toml
- rdf: serialize normalized manifests as Turtle, N-Triples or JSON-LD
- push: reconcile the manifest graph into a Wikibase instance

Files are kept below the work directory; GitHub crawls are deduplicated
through a SQLite ledger in the same place.`,
		SilenceUsage: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			slog.SetDefault(newLogger(flags.logLevel))
		},
	}

	cmd.PersistentFlags().StringVarP(&flags.configPath, "config", "c", "", "Config file path (YAML)")
	cmd.PersistentFlags().StringVarP(&flags.workDir, "workdir", "w", "", "Work directory (overrides config and KRAWLER_WORKDIR)")
	cmd.PersistentFlags().StringVar(&flags.logLevel, "log-level", "info", "Log level (debug, info, warn, error)")

	cmd.AddCommand(
		githubCmd(flags),
		wikifactoryCmd(flags),
		normalizeCmd(flags),
		rdfCmd(flags),
		pushCmd(flags),
		&cobra.Command{
			Use:   "version",
			Short: "Print version information",
			Run: func(cmd *cobra.Command, args []string) {
				fmt.Fprintf(cmd.OutOrStdout(), "%s version %s (build: %s)\n", appName, Version, BuildTime)
			},
		},
	)

	return cmd
}

func newLogger(logLevel string) *slog.Logger {
	level := slog.LevelInfo
	switch strings.ToLower(logLevel) {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}
