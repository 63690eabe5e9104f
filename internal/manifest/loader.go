package manifest

import (
	"context"
	"log/slog"
	"strings"

	"github.com/FocuswithJustin/JuniperHelps/core/errors"
	"github.com/FocuswithJustin/JuniperHelps/internal/cache"
	"github.com/FocuswithJustin/JuniperHelps/internal/dcs"
	"github.com/FocuswithJustin/JuniperHelps/internal/fallback"
	"github.com/FocuswithJustin/JuniperHelps/internal/logging"
)

// Filenames are the manifest names tried, in order.
var Filenames = []string{"manifest.yaml", "manifest.yml", "Manifest.yaml"}

// Fetcher retrieves file content from a repository.
type Fetcher interface {
	Fetch(ctx context.Context, repo dcs.Repository, path string) (string, error)
}

// Loader fetches and caches repository manifests.
type Loader struct {
	fetcher Fetcher
	parser  Parser
	cache   *cache.TTLCache[string, Manifest]
	logger  *slog.Logger
}

// LoaderOption configures a Loader.
type LoaderOption func(*Loader)

// WithParser substitutes the manifest parser.
func WithParser(p Parser) LoaderOption {
	return func(l *Loader) {
		if p != nil {
			l.parser = p
		}
	}
}

// WithCache injects the manifest cache.
func WithCache(c *cache.TTLCache[string, Manifest]) LoaderOption {
	return func(l *Loader) {
		if c != nil {
			l.cache = c
		}
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) LoaderOption {
	return func(l *Loader) {
		l.logger = logger
	}
}

// NewLoader creates a Loader. Manifests are cached for the life of the
// process unless a cache with a TTL is injected.
func NewLoader(fetcher Fetcher, opts ...LoaderOption) *Loader {
	l := &Loader{
		fetcher: fetcher,
		parser:  NewLineParser(),
		cache:   cache.New[string, Manifest](cache.NoExpiry),
	}
	for _, opt := range opts {
		opt(l)
	}
	l.logger = logging.Component(l.logger, "manifest")
	return l
}

// Load returns the manifest of repo. A repository without any manifest
// variant yields a *NotFoundError. Content that fails to parse is logged and
// the partial manifest is returned.
func (l *Loader) Load(ctx context.Context, repo dcs.Repository) (Manifest, error) {
	key := strings.ToLower(repo.FullName)
	if m, ok := l.cache.Get(key); ok {
		return m, nil
	}

	content, filename, err := fallback.First(ctx, "manifest", Filenames,
		func(ctx context.Context, name string) (string, error) {
			return l.fetcher.Fetch(ctx, repo, name)
		},
		fallback.WithFailureHook(func(candidate string, err error) {
			logging.CandidateFailed(l.logger, "manifest", candidate, err, "repository", repo.FullName)
		}))
	if err != nil {
		if errors.IsNotFound(err) {
			return Manifest{}, &errors.NotFoundError{Resource: "manifest", ID: repo.FullName, Err: err}
		}
		return Manifest{}, err
	}

	m, perr := l.parser.Parse([]byte(content))
	if perr != nil {
		l.logger.Warn("manifest parsed partially",
			"repository", repo.FullName,
			"filename", filename,
			"projects", len(m.Projects),
			"error", perr,
		)
	}
	m.Filename = filename

	l.cache.Set(key, m)
	return m, nil
}
