// Command helps is the CLI for the translation helps resolver.
// It assembles book packages, loads articles, extracts alignments and
// serves the REST API.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/alecthomas/kong"

	"github.com/FocuswithJustin/JuniperHelps/core/errors"
	"github.com/FocuswithJustin/JuniperHelps/internal/bookpkg"
	"github.com/FocuswithJustin/JuniperHelps/internal/config"
	"github.com/FocuswithJustin/JuniperHelps/internal/dcs"
	"github.com/FocuswithJustin/JuniperHelps/internal/logging"
	"github.com/FocuswithJustin/JuniperHelps/internal/manifest"
	"github.com/FocuswithJustin/JuniperHelps/internal/resolver"
	"github.com/FocuswithJustin/JuniperHelps/internal/service"
	"github.com/FocuswithJustin/JuniperHelps/internal/store"
)

const version = "0.1.0"

// Globals are flags shared by every command.
type Globals struct {
	Config    string `name:"config" short:"c" help:"Config file path (default ~/.config/helps/config.toml)" type:"path"`
	LogLevel  string `name:"log-level" help:"Override logging.level (debug, info, warn, error)"`
	LogFormat string `name:"log-format" help:"Override logging.format (json, text)"`
	Token     string `name:"token" help:"Content service token (overrides HELPS_TOKEN)"`
	Language  string `name:"language" short:"l" help:"Override the configured language"`
	Org       string `name:"org" short:"o" help:"Override the configured organization"`

	out io.Writer
}

// CLI defines the command-line interface for helps.
type CLI struct {
	Globals

	Books     BooksCmd     `cmd:"" help:"List books available in the literal text"`
	Package   PackageCmd   `cmd:"" help:"Assemble the resource package for a book"`
	Text      TextCmd      `cmd:"" help:"Print the scripture text of a book"`
	Notes     NotesCmd     `cmd:"" help:"Print translation notes for a book"`
	Links     LinksCmd     `cmd:"" help:"Print translation word links for a book"`
	Questions QuestionsCmd `cmd:"" help:"Print translation questions for a book"`
	Word      WordCmd      `cmd:"" help:"Load a translation word article"`
	Academy   AcademyCmd   `cmd:"" help:"Load a translation academy article"`
	Passage   PassageCmd   `cmd:"" help:"Collect every help for a passage"`
	Align     AlignCmd     `cmd:"" help:"Extract word alignment for one verse"`
	Serve     ServeCmd     `cmd:"" help:"Start the REST API server"`
	Cache     CacheGroup   `cmd:"" help:"Inspect and prune the snapshot store"`
	ConfigCmd ConfigGroup  `cmd:"" name:"config" help:"Configuration file helpers"`
	Version   VersionCmd   `cmd:"" help:"Print version information"`
}

// app is the wired pipeline for one command invocation.
type app struct {
	cfg      *config.Config
	logger   *slog.Logger
	store    *store.Store
	pipeline *service.Pipeline
}

func (a *app) Close() {
	if a.store != nil {
		a.store.Close()
	}
}

// loadConfig reads the configuration and applies flag overrides.
func (g *Globals) loadConfig() (*config.Config, error) {
	cfg, _, _, err := config.Load(g.Config)
	if err != nil {
		return nil, err
	}
	if g.LogLevel != "" {
		cfg.Logging.Level = strings.ToLower(g.LogLevel)
	}
	if g.LogFormat != "" {
		cfg.Logging.Format = strings.ToLower(g.LogFormat)
	}
	if g.Token != "" {
		cfg.Content.Token = g.Token
	}
	if g.Language != "" {
		cfg.Language = g.Language
	}
	if g.Org != "" {
		cfg.Organization = g.Org
	}
	return cfg, cfg.Validate()
}

// open loads configuration, sets up logging and wires the pipeline.
func (g *Globals) open(ctx context.Context, observer bookpkg.Observer) (*app, error) {
	cfg, err := g.loadConfig()
	if err != nil {
		return nil, err
	}
	return wire(ctx, cfg, initLogging(cfg), observer)
}

func initLogging(cfg *config.Config) *slog.Logger {
	logging.InitLoggerWithWriter(logging.ParseLevel(cfg.Logging.Level), logging.ParseFormat(cfg.Logging.Format), os.Stderr)
	return logging.GetLogger()
}

// wire builds the content client, the optional snapshot store and the
// pipeline. observer may be nil.
func wire(ctx context.Context, cfg *config.Config, logger *slog.Logger, observer bookpkg.Observer) (*app, error) {
	client := dcs.NewClient(
		dcs.WithBaseURL(cfg.Content.BaseURL, cfg.Content.RawBaseURL),
		dcs.WithToken(cfg.Content.Token),
		dcs.WithUserAgent(cfg.Content.UserAgent),
		dcs.WithTimeout(cfg.Timeout()),
		dcs.WithLogger(logger),
	)

	a := &app{cfg: cfg, logger: logger}
	opts := service.Options{
		Language:     cfg.Language,
		Organization: cfg.Organization,
		Stage:        cfg.Content.Stage,
		Transport:    resolver.Transport(cfg.Content.Transport),
		Retry:        cfg.RetryConfig(),
		PackageTTL:   cfg.PackageTTL(),
		ResourceTTL:  cfg.OnDemandTTL(),
		Observer:     observer,
		Logger:       logger,
	}
	if cfg.Content.ManifestParser == "yaml" {
		opts.ManifestParser = manifest.NewYAMLParser()
	}
	if cfg.Cache.StorePath != "" {
		st, err := openSnapshots(ctx, cfg.Cache.StorePath, logger)
		if err != nil {
			return nil, err
		}
		a.store = st
		opts.Snapshots = st
	}
	a.pipeline = service.Build(client, opts)
	return a, nil
}

func openSnapshots(ctx context.Context, path string, logger *slog.Logger) (*store.Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, errors.NewIO("create directory", filepath.Dir(path), err)
	}
	return store.Open(ctx, path, store.WithLogger(logger))
}

func (g *Globals) writer() io.Writer {
	if g.out == nil {
		return os.Stdout
	}
	return g.out
}

func (g *Globals) printf(format string, args ...any) {
	fmt.Fprintf(g.writer(), format, args...)
}

func short(digest string) string {
	if len(digest) > 12 {
		return digest[:12]
	}
	return digest
}

func (g *Globals) printJSON(v any) error {
	enc := json.NewEncoder(g.writer())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func main() {
	var cli CLI
	ctx := kong.Parse(&cli,
		kong.Name("helps"),
		kong.Description("Translation helps - resolve, assemble and serve translation resources"),
		kong.UsageOnError(),
		kong.ConfigureHelp(kong.HelpOptions{
			Compact: true,
		}),
	)
	err := ctx.Run(&cli.Globals)
	ctx.FatalIfErrorf(err)
}
