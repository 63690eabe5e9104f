// Package ondemand resolves single academy articles and word definitions by
// identifier, independently of book packages.
package ondemand

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/FocuswithJustin/JuniperHelps/core/errors"
	"github.com/FocuswithJustin/JuniperHelps/internal/cache"
	"github.com/FocuswithJustin/JuniperHelps/internal/dcs"
	"github.com/FocuswithJustin/JuniperHelps/internal/fallback"
	"github.com/FocuswithJustin/JuniperHelps/internal/logging"
	"github.com/FocuswithJustin/JuniperHelps/internal/processor"
	"github.com/FocuswithJustin/JuniperHelps/internal/resource"
	"github.com/FocuswithJustin/JuniperHelps/internal/store"
)

// DefaultTTL is how long a loaded resource is served from memory.
const DefaultTTL = 24 * time.Hour

// DefaultWordCategory is used for word identifiers without a category.
const DefaultWordCategory = "kt"

// AcademyDirs are the academy manuals searched, in order, for an unqualified
// article identifier.
var AcademyDirs = []string{"process", "translate", "checking", "intro"}

// Resolver finds a repository by organization and name.
type Resolver interface {
	Resolve(ctx context.Context, organization, resourceID string) (dcs.Repository, error)
}

// Fetcher retrieves file content.
type Fetcher interface {
	Fetch(ctx context.Context, repo dcs.Repository, path string) (string, error)
}

// Request names one article.
type Request struct {
	Type         resource.Type `json:"type"`
	Identifier   string        `json:"identifier"`
	Language     string        `json:"language"`
	Organization string        `json:"organization"`
}

// Resource is a loaded article.
type Resource struct {
	Type        resource.Type    `json:"type"`
	Identifier  string           `json:"identifier"`
	Source      string           `json:"source"`
	Path        string           `json:"path"`
	Title       string           `json:"title"`
	Content     string           `json:"content"`
	Processed   processor.Output `json:"processed"`
	ContentHash string           `json:"contentHash"`
	FetchedAt   time.Time        `json:"fetchedAt"`
}

// Loader fetches and caches on-demand resources.
type Loader struct {
	resolver Resolver
	fetcher  Fetcher
	cache    *cache.TTLCache[string, *Resource]
	now      func() time.Time
	logger   *slog.Logger
	group    singleflight.Group
}

// Option configures a Loader.
type Option func(*Loader)

// WithCache injects the resource cache.
func WithCache(c *cache.TTLCache[string, *Resource]) Option {
	return func(l *Loader) {
		if c != nil {
			l.cache = c
		}
	}
}

// WithClock overrides the clock used for FetchedAt.
func WithClock(now func() time.Time) Option {
	return func(l *Loader) { l.now = now }
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(l *Loader) { l.logger = logger }
}

// NewLoader creates a Loader with a DefaultTTL cache.
func NewLoader(r Resolver, f Fetcher, opts ...Option) *Loader {
	l := &Loader{
		resolver: r,
		fetcher:  f,
		cache:    cache.New[string, *Resource](DefaultTTL),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(l)
	}
	l.logger = logging.Component(l.logger, "ondemand")
	return l
}

// Key returns the cache key "type/organization/language/identifier" after
// identifier normalization.
func (r Request) Key() string {
	return string(r.Type) + "/" + r.Organization + "/" + strings.ToLower(r.Language) + "/" + NormalizeIdentifier(r.Type, r.Identifier)
}

// Validate checks the request fields.
func (r Request) Validate() error {
	if r.Type != resource.TA && r.Type != resource.TW {
		return errors.NewValidation("type", "on-demand loading supports ta and tw, not "+string(r.Type))
	}
	if NormalizeIdentifier(r.Type, r.Identifier) == "" {
		return errors.NewValidation("identifier", "required")
	}
	if r.Language == "" {
		return errors.NewValidation("language", "required")
	}
	if r.Organization == "" {
		return errors.NewValidation("organization", "required")
	}
	return nil
}

// Fetch loads the article named by req. An article found in no candidate
// location is a *NotFoundError matching errors.ErrNotFound.
func (l *Loader) Fetch(ctx context.Context, req Request) (*Resource, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	key := req.Key()
	if res, ok := l.cache.Get(key); ok {
		return res, nil
	}

	ch := l.group.DoChan(key, func() (any, error) {
		res, err := l.load(context.WithoutCancel(ctx), req)
		if err != nil {
			return nil, err
		}
		l.cache.Set(key, res)
		return res, nil
	})
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case r := <-ch:
		if r.Err != nil {
			return nil, r.Err
		}
		return r.Val.(*Resource), nil
	}
}

// Cached reports the number of resources held in memory.
func (l *Loader) Cached() int {
	return l.cache.Len()
}

func (l *Loader) load(ctx context.Context, req Request) (*Resource, error) {
	cfg, _ := resource.Lookup(req.Type)
	id := NormalizeIdentifier(req.Type, req.Identifier)
	logger := l.logger.With("type", req.Type, "identifier", id)

	repo, _, err := fallback.First(ctx, "repository", cfg.RepositoryNames(req.Language),
		func(ctx context.Context, name string) (dcs.Repository, error) {
			return l.resolver.Resolve(ctx, req.Organization, name)
		})
	if err != nil {
		return nil, l.notFound(req, id, err)
	}

	var candidates []string
	if req.Type == resource.TW {
		candidates = []string{WordPath(id)}
	} else {
		candidates = AcademyPaths(id)
	}

	content, path, err := fallback.First(ctx, "path", candidates,
		func(ctx context.Context, p string) (string, error) {
			return l.fetcher.Fetch(ctx, repo, p)
		},
		fallback.WithFailureHook(func(candidate string, err error) {
			logger.Debug("article candidate missing", "repository", repo.FullName, "candidate", candidate, "error", err)
		}))
	if err != nil {
		return nil, l.notFound(req, id, err)
	}

	res := &Resource{
		Type:        req.Type,
		Identifier:  id,
		Source:      repo.FullName,
		Path:        path,
		Content:     content,
		Processed:   processor.Process(logger, req.Type, path, content),
		ContentHash: store.Digest([]byte(content)),
		FetchedAt:   l.now(),
	}

	switch {
	case res.Processed.Word != nil:
		res.Title = res.Processed.Word.Title
	case res.Processed.Article != nil:
		res.Title = l.academyTitle(ctx, repo, path, res.Processed.Article.Title, logger)
		res.Processed.Article.Title = res.Title
	}

	logger.Info("on-demand resource loaded", "source", res.Source, "path", path)
	return res, nil
}

// academyTitle prefers the manual's title.md next to the article body.
func (l *Loader) academyTitle(ctx context.Context, repo dcs.Repository, bodyPath, fallbackTitle string, logger *slog.Logger) string {
	dir := bodyPath[:strings.LastIndex(bodyPath, "/")+1]
	title, err := l.fetcher.Fetch(ctx, repo, dir+"title.md")
	if err != nil {
		logger.Debug("article title unavailable", "path", dir+"title.md", "error", err)
		return fallbackTitle
	}
	if t := strings.TrimSpace(strings.TrimLeft(strings.TrimSpace(title), "#")); t != "" {
		return t
	}
	return fallbackTitle
}

func (l *Loader) notFound(req Request, id string, err error) error {
	if !errors.IsNotFound(err) {
		return err
	}
	resourceName := "word"
	if req.Type == resource.TA {
		resourceName = "academy article"
	}
	return &errors.NotFoundError{Resource: resourceName, ID: req.Organization + "/" + req.Language + "/" + id, Err: err}
}

// NormalizeIdentifier strips resource-container links and file suffixes:
// "rc://*/tw/dict/bible/kt/god" becomes "kt/god",
// "rc://*/ta/man/translate/figs-metaphor" becomes "translate/figs-metaphor".
func NormalizeIdentifier(t resource.Type, id string) string {
	id = strings.TrimSpace(id)
	if strings.HasPrefix(id, "rc://") {
		parts := strings.Split(strings.TrimPrefix(id, "rc://"), "/")
		// rc://{lang}/{resource}/{type}/{project}/{path...}
		if len(parts) > 4 {
			switch {
			case t == resource.TW && parts[3] == "bible":
				parts = parts[4:]
			default:
				parts = parts[3:]
			}
			id = strings.Join(parts, "/")
		}
	}
	id = strings.TrimPrefix(id, "bible/")
	id = strings.TrimSuffix(strings.Trim(id, "/"), ".md")
	if t == resource.TA {
		id = strings.TrimSuffix(id, "/01")
	}
	return id
}

// WordPath maps "category/name" (or a bare name in DefaultWordCategory) to
// its file path.
func WordPath(id string) string {
	category, name, ok := strings.Cut(id, "/")
	if !ok {
		category, name = DefaultWordCategory, id
	}
	return "bible/" + category + "/" + name + ".md"
}

// AcademyPaths lists candidate article bodies. A manual-qualified identifier
// ("translate/figs-metaphor") has exactly one candidate.
func AcademyPaths(id string) []string {
	if strings.Contains(id, "/") {
		return []string{id + "/01.md"}
	}
	paths := make([]string, 0, len(AcademyDirs))
	for _, dir := range AcademyDirs {
		paths = append(paths, dir+"/"+id+"/01.md")
	}
	return paths
}
