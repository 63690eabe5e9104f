package resolver

import (
	"context"
	"log/slog"

	"github.com/FocuswithJustin/JuniperHelps/core/errors"
	"github.com/FocuswithJustin/JuniperHelps/internal/dcs"
	"github.com/FocuswithJustin/JuniperHelps/internal/fallback"
	"github.com/FocuswithJustin/JuniperHelps/internal/logging"
	"github.com/FocuswithJustin/JuniperHelps/internal/manifest"
	"github.com/FocuswithJustin/JuniperHelps/internal/resource"
)

// Prober checks whether a file exists.
type Prober interface {
	Exists(ctx context.Context, repo dcs.Repository, path string) (bool, error)
}

// Locator maps a book code to a file path inside a repository.
type Locator struct {
	prober Prober
	logger *slog.Logger
}

// NewLocator creates a Locator that probes filename candidates with prober.
func NewLocator(prober Prober, logger *slog.Logger) *Locator {
	return &Locator{prober: prober, logger: logging.Component(logger, "locator")}
}

// Locate returns the path of book in repo. A manifest project matching the
// book is authoritative and returned without probing. Otherwise the
// filename candidates of cfg are probed in order.
func (l *Locator) Locate(ctx context.Context, repo dcs.Repository, m manifest.Manifest, book string, cfg resource.Config) (string, error) {
	if p, ok := m.FindProject(book); ok {
		return p.Path, nil
	}

	candidates := cfg.Candidates(book, languageOf(repo))
	path, _, err := fallback.First(ctx, "filename", candidates,
		func(ctx context.Context, name string) (string, error) {
			ok, err := l.prober.Exists(ctx, repo, name)
			if err != nil {
				return "", err
			}
			if !ok {
				return "", errors.NewNotFound("file", name)
			}
			return name, nil
		},
		fallback.WithFailureHook(func(candidate string, err error) {
			l.logger.Debug("filename candidate missing",
				"repository", repo.FullName,
				"book", book,
				"candidate", candidate,
				"error", err,
			)
		}))
	if err != nil {
		if errors.IsNotFound(err) {
			return "", &errors.NotFoundError{Resource: "book file", ID: repo.FullName + ":" + book, Err: err}
		}
		return "", err
	}
	return path, nil
}
