// Package main provides the ldpatch binary entry point.
// ldpatch applies JSON Patch operations to linked-data documents after
// projecting them into a deterministic, frame-shaped tree.
package main

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"runtime"
	"strings"

	"github.com/c360studio/ldpatch/config"
	"github.com/c360studio/ldpatch/jsonld"
	"github.com/c360studio/ldpatch/ldpatch"
	"github.com/c360studio/ldpatch/patch"
	"github.com/spf13/cobra"
)

const (
	Version   = "0.1.0"
	BuildTime = "dev"
	appName   = "ldpatch"
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

// cli carries state shared by every subcommand.
type cli struct {
	configPath string
	logLevel   string

	logger *slog.Logger
	cfg    *config.Config
}

func rootCmd() *cobra.Command {
	c := &cli{}

	cmd := &cobra.Command{
		Use:   appName,
		Short: "Patch linked-data documents through deterministic projections",
		Long: `ldpatch canonicalizes a JSON-LD document, reshapes it with a frame and
applies JSON Patch operations to the result.

Because the projection depends only on the document's meaning, positional
patch paths stay stable when the input lists statements in a different order.

Commands:
- apply, diff and project work on local files (JSON or YAML)
- watch prints a patch every time a document changes
- serve exposes the same operations over NATS`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return c.setup(cmd.ErrOrStderr())
		},
	}

	cmd.PersistentFlags().StringVarP(&c.configPath, "config", "c", "", "Config file path (YAML)")
	cmd.PersistentFlags().StringVar(&c.logLevel, "log-level", "warn", "Log level (debug, info, warn, error)")

	cmd.AddCommand(
		c.applyCmd(),
		c.diffCmd(),
		c.projectCmd(),
		c.watchCmd(),
		c.serveCmd(),
		contextsCmd(),
		versionCmd(),
	)

	return cmd
}

// setup configures logging and loads layered configuration.
func (c *cli) setup(stderr io.Writer) error {
	c.logger = newLogger(stderr, c.logLevel)
	slog.SetDefault(c.logger)

	cfg, err := config.NewLoader(c.logger).Load(c.configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	c.cfg = cfg
	return nil
}

func newLogger(w io.Writer, logLevel string) *slog.Logger {
	level := slog.LevelInfo
	switch strings.ToLower(logLevel) {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	}
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level}))
}

// newPatcher builds a Patcher from the loaded configuration, registering
// preloaded contexts with the processor's document loader.
func (c *cli) newPatcher() (*ldpatch.Patcher, error) {
	policy, err := c.cfg.UnwrapPolicy()
	if err != nil {
		return nil, err
	}

	processor := jsonld.NewProcessor(jsonld.WithLogger(c.logger))
	if len(c.cfg.JSONLD.Preload) > 0 {
		docs, err := config.LoadPreloadedContexts(c.cfg, c.baseDir())
		if err != nil {
			return nil, err
		}
		if err := processor.Use(jsonld.CapabilityDocumentLoader, jsonld.NewPreloadedLoader(docs, nil)); err != nil {
			return nil, err
		}
		c.logger.Debug("Registered preloaded contexts", "count", len(docs))
	}

	return ldpatch.New(
		ldpatch.WithShaper(processor),
		ldpatch.WithEngine(patch.NewEngine(c.cfg.EngineOptions()...)),
		ldpatch.WithUnwrapPolicy(policy),
		ldpatch.WithLogger(c.logger),
	), nil
}

// baseDir resolves preload paths that did not come from a config file.
func (c *cli) baseDir() string {
	if wd, err := os.Getwd(); err == nil {
		return wd
	}
	return "."
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "%s version %s (build: %s)\n", appName, Version, BuildTime)
		},
	}
}
