package service

import (
	"log/slog"
	"time"

	"github.com/FocuswithJustin/JuniperHelps/internal/bookpkg"
	"github.com/FocuswithJustin/JuniperHelps/internal/cache"
	"github.com/FocuswithJustin/JuniperHelps/internal/dcs"
	"github.com/FocuswithJustin/JuniperHelps/internal/manifest"
	"github.com/FocuswithJustin/JuniperHelps/internal/ondemand"
	"github.com/FocuswithJustin/JuniperHelps/internal/resolver"
	"github.com/FocuswithJustin/JuniperHelps/internal/retry"
)

// Options configures the pipeline built by Build.
type Options struct {
	Language     string
	Organization string
	Stage        string
	Transport    resolver.Transport
	Retry        retry.Config // zero value uses retry.DefaultConfig
	// ManifestParser overrides the default line parser, e.g. with
	// manifest.NewYAMLParser().
	ManifestParser manifest.Parser

	PackageTTL    time.Duration // 0 uses bookpkg.DefaultTTL
	ResourceTTL   time.Duration // 0 uses ondemand.DefaultTTL
	RepositoryTTL time.Duration // 0 uses the resolver default
	ManifestTTL   time.Duration // 0 uses the manifest loader default

	Snapshots bookpkg.Snapshots
	Observer  bookpkg.Observer
	Logger    *slog.Logger
}

// Pipeline holds the components Build wires together so callers such as the
// HTTP server can reach the assembler directly.
type Pipeline struct {
	Service   *Service
	Assembler *bookpkg.Assembler
	Loader    *ondemand.Loader
	Resolver  *resolver.RepositoryResolver
	Fetcher   *resolver.Fetcher
	Manifests *manifest.Loader
}

// Build wires a content service client into a complete Service.
func Build(client *dcs.Client, opts Options) *Pipeline {
	logger := opts.Logger
	if opts.Retry.MaxAttempts == 0 && opts.Retry.BaseDelay == 0 && opts.Retry.MaxRateLimitRetries == 0 {
		opts.Retry = retry.DefaultConfig()
	}

	repoOpts := []resolver.RepositoryOption{
		resolver.WithStage(opts.Stage),
		resolver.WithRepositoryRetry(opts.Retry),
		resolver.WithRepositoryLogger(logger),
	}
	if opts.RepositoryTTL > 0 {
		repoOpts = append(repoOpts, resolver.WithRepositoryCache(cache.New[string, dcs.Repository](opts.RepositoryTTL)))
	}
	repos := resolver.NewRepositoryResolver(client, repoOpts...)

	fetcher := resolver.NewFetcher(client,
		resolver.WithTransport(opts.Transport),
		resolver.WithRetry(opts.Retry),
		resolver.WithFetcherLogger(logger),
	)

	manifestOpts := []manifest.LoaderOption{manifest.WithLogger(logger), manifest.WithParser(opts.ManifestParser)}
	if opts.ManifestTTL > 0 {
		manifestOpts = append(manifestOpts, manifest.WithCache(cache.New[string, manifest.Manifest](opts.ManifestTTL)))
	}
	manifests := manifest.NewLoader(fetcher, manifestOpts...)

	asmOpts := []bookpkg.Option{
		bookpkg.WithLogger(logger),
		bookpkg.WithObserver(opts.Observer),
	}
	if opts.PackageTTL > 0 {
		asmOpts = append(asmOpts, bookpkg.WithCache(cache.New[string, *bookpkg.Package](opts.PackageTTL)))
	}
	if opts.Snapshots != nil {
		asmOpts = append(asmOpts, bookpkg.WithSnapshots(opts.Snapshots))
	}
	assembler := bookpkg.NewAssembler(repos, manifests, resolver.NewLocator(fetcher, logger), fetcher, asmOpts...)

	loaderOpts := []ondemand.Option{ondemand.WithLogger(logger)}
	if opts.ResourceTTL > 0 {
		loaderOpts = append(loaderOpts, ondemand.WithCache(cache.New[string, *ondemand.Resource](opts.ResourceTTL)))
	}
	loader := ondemand.NewLoader(repos, fetcher, loaderOpts...)

	svc := New(opts.Language, opts.Organization, Deps{
		Assembler: assembler,
		Loader:    loader,
		Resolver:  repos,
		Manifests: manifests,
		Logger:    logger,
	})
	return &Pipeline{
		Service:   svc,
		Assembler: assembler,
		Loader:    loader,
		Resolver:  repos,
		Fetcher:   fetcher,
		Manifests: manifests,
	}
}
