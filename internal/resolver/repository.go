// Package resolver finds content repositories, locates book files inside
// them and fetches file content with ref fallback and retry.
package resolver

import (
	"context"
	"log/slog"
	"strings"

	"github.com/FocuswithJustin/JuniperHelps/core/errors"
	"github.com/FocuswithJustin/JuniperHelps/internal/cache"
	"github.com/FocuswithJustin/JuniperHelps/internal/dcs"
	"github.com/FocuswithJustin/JuniperHelps/internal/logging"
	"github.com/FocuswithJustin/JuniperHelps/internal/retry"
)

// Catalog is the part of the content service the resolver needs.
type Catalog interface {
	SearchCatalog(ctx context.Context, q dcs.CatalogQuery) ([]dcs.Repository, error)
	GetRepository(ctx context.Context, owner, name string) (dcs.Repository, error)
}

// RepositoryResolver maps (organization, resource id) to a repository.
type RepositoryResolver struct {
	catalog Catalog
	stage   string
	retry   retry.Config
	cache   *cache.TTLCache[string, dcs.Repository]
	logger  *slog.Logger
}

// RepositoryOption configures a RepositoryResolver.
type RepositoryOption func(*RepositoryResolver)

// WithStage sets the catalog stage searched (default "prod").
func WithStage(stage string) RepositoryOption {
	return func(r *RepositoryResolver) {
		if stage != "" {
			r.stage = stage
		}
	}
}

// WithRepositoryCache injects the repository cache.
func WithRepositoryCache(c *cache.TTLCache[string, dcs.Repository]) RepositoryOption {
	return func(r *RepositoryResolver) {
		if c != nil {
			r.cache = c
		}
	}
}

// WithRepositoryRetry sets the retry policy for catalog calls.
func WithRepositoryRetry(cfg retry.Config) RepositoryOption {
	return func(r *RepositoryResolver) {
		r.retry = cfg
	}
}

// WithRepositoryLogger sets the logger.
func WithRepositoryLogger(logger *slog.Logger) RepositoryOption {
	return func(r *RepositoryResolver) {
		r.logger = logger
	}
}

// NewRepositoryResolver creates a resolver over catalog.
func NewRepositoryResolver(catalog Catalog, opts ...RepositoryOption) *RepositoryResolver {
	r := &RepositoryResolver{
		catalog: catalog,
		stage:   dcs.DefaultStage,
		retry:   retry.DefaultConfig(),
		cache:   cache.New[string, dcs.Repository](cache.NoExpiry),
	}
	for _, opt := range opts {
		opt(r)
	}
	r.logger = logging.Component(r.logger, "repository_resolver")
	return r
}

// Resolve finds the repository named resourceID owned by organization.
// The catalog is searched first; when it has no match the repository is
// looked up directly. A missing repository is a *NotFoundError.
func (r *RepositoryResolver) Resolve(ctx context.Context, organization, resourceID string) (dcs.Repository, error) {
	key := strings.ToLower(organization) + "/" + strings.ToLower(resourceID)
	if repo, ok := r.cache.Get(key); ok {
		return repo, nil
	}

	repo, found, catalogErr := r.searchCatalog(ctx, organization, resourceID)
	if catalogErr != nil {
		if ctx.Err() != nil {
			return dcs.Repository{}, ctx.Err()
		}
		r.logger.Warn("catalog search failed, trying direct lookup",
			"organization", organization,
			"resource_id", resourceID,
			"error", catalogErr,
		)
	}

	if !found {
		var err error
		repo, err = retry.DoWithResult(ctx, r.retry, func(ctx context.Context) (dcs.Repository, error) {
			return r.catalog.GetRepository(ctx, organization, resourceID)
		})
		if err != nil {
			if errors.IsNotFound(err) {
				logging.CandidateFailed(r.logger, "repository", organization+"/"+resourceID, err)
				return dcs.Repository{}, errors.NewNotFound("repository", organization+"/"+resourceID)
			}
			return dcs.Repository{}, err
		}
	}

	repo = normalize(repo)
	r.cache.Set(key, repo)
	return repo, nil
}

func (r *RepositoryResolver) searchCatalog(ctx context.Context, organization, resourceID string) (dcs.Repository, bool, error) {
	q := dcs.CatalogQuery{Owner: organization, Repo: resourceID, Stage: r.stage}
	repos, err := retry.DoWithResult(ctx, r.retry, func(ctx context.Context) ([]dcs.Repository, error) {
		return r.catalog.SearchCatalog(ctx, q)
	})
	if err != nil {
		if errors.IsNotFound(err) {
			return dcs.Repository{}, false, nil
		}
		return dcs.Repository{}, false, err
	}
	for _, repo := range repos {
		if strings.EqualFold(repo.Name, resourceID) && (repo.Owner == "" || strings.EqualFold(repo.Owner, organization)) {
			return repo, true, nil
		}
	}
	return dcs.Repository{}, false, nil
}

// normalize fills the branch hints so every repository has a usable ref.
func normalize(repo dcs.Repository) dcs.Repository {
	if repo.DefaultBranch == "" {
		repo.DefaultBranch = dcs.DefaultRef
	}
	if repo.TagOrBranch == "" {
		repo.TagOrBranch = dcs.DefaultRef
	}
	if repo.FullName == "" {
		repo.FullName = repo.Owner + "/" + repo.Name
	}
	return repo
}

// languageOf returns the language prefix of a "{lang}_{id}" repository name.
func languageOf(repo dcs.Repository) string {
	lang, _, ok := strings.Cut(repo.Name, "_")
	if !ok {
		return ""
	}
	return lang
}
