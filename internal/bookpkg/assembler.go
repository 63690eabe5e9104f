package bookpkg

import (
	"context"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/singleflight"

	"github.com/FocuswithJustin/JuniperHelps/core/errors"
	"github.com/FocuswithJustin/JuniperHelps/internal/cache"
	"github.com/FocuswithJustin/JuniperHelps/internal/dcs"
	"github.com/FocuswithJustin/JuniperHelps/internal/fallback"
	"github.com/FocuswithJustin/JuniperHelps/internal/logging"
	"github.com/FocuswithJustin/JuniperHelps/internal/manifest"
	"github.com/FocuswithJustin/JuniperHelps/internal/processor"
	"github.com/FocuswithJustin/JuniperHelps/internal/resource"
	"github.com/FocuswithJustin/JuniperHelps/internal/store"
)

// DefaultTTL is how long an assembled package is served from memory.
const DefaultTTL = time.Hour

// Resolver finds a repository by organization and name.
type Resolver interface {
	Resolve(ctx context.Context, organization, resourceID string) (dcs.Repository, error)
}

// ManifestLoader loads a repository manifest.
type ManifestLoader interface {
	Load(ctx context.Context, repo dcs.Repository) (manifest.Manifest, error)
}

// Locator maps a book to a file path.
type Locator interface {
	Locate(ctx context.Context, repo dcs.Repository, m manifest.Manifest, book string, cfg resource.Config) (string, error)
}

// Fetcher retrieves file content.
type Fetcher interface {
	Fetch(ctx context.Context, repo dcs.Repository, path string) (string, error)
}

// Snapshots is the persistent second-level cache.
type Snapshots interface {
	Get(ctx context.Context, key string, maxAge time.Duration, v any) (time.Time, error)
	Put(ctx context.Context, key string, v any) error
	Delete(ctx context.Context, key string) error
}

// Assembler builds book packages. It is safe for concurrent use; concurrent
// requests for the same key share one assembly.
type Assembler struct {
	resolver  Resolver
	manifests ManifestLoader
	locator   Locator
	fetcher   Fetcher

	cache     *cache.TTLCache[string, *Package]
	snapshots Snapshots
	observers []Observer
	now       func() time.Time
	logger    *slog.Logger

	group singleflight.Group
}

// Option configures an Assembler.
type Option func(*Assembler)

// WithCache injects the package cache. Its TTL governs freshness.
func WithCache(c *cache.TTLCache[string, *Package]) Option {
	return func(a *Assembler) {
		if c != nil {
			a.cache = c
		}
	}
}

// WithSnapshots adds a persistent store consulted on a memory miss.
func WithSnapshots(s Snapshots) Option {
	return func(a *Assembler) { a.snapshots = s }
}

// WithObserver registers a progress observer.
func WithObserver(o Observer) Option {
	return func(a *Assembler) {
		if o != nil {
			a.observers = append(a.observers, o)
		}
	}
}

// WithClock overrides the clock used for FetchedAt.
func WithClock(now func() time.Time) Option {
	return func(a *Assembler) { a.now = now }
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(a *Assembler) { a.logger = logger }
}

// NewAssembler wires the resolution pipeline.
func NewAssembler(r Resolver, m ManifestLoader, l Locator, f Fetcher, opts ...Option) *Assembler {
	a := &Assembler{
		resolver:  r,
		manifests: m,
		locator:   l,
		fetcher:   f,
		cache:     cache.New[string, *Package](DefaultTTL),
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(a)
	}
	a.logger = logging.Component(a.logger, "bookpkg")
	return a
}

// Assemble returns the package for req. A cached package younger than the
// TTL is returned unmodified, even when req asks for types it lacks. A
// package with no slots is a valid result.
func (a *Assembler) Assemble(ctx context.Context, req Request) (*Package, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	key := req.Key()
	if pkg, ok := a.cache.Get(key); ok {
		a.logger.Debug("package cache hit", "key", key)
		return pkg, nil
	}

	ch := a.group.DoChan(key, func() (any, error) {
		return a.load(context.WithoutCancel(ctx), key, req)
	})
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.(*Package), nil
	}
}

// Cached returns the in-memory package for a key without fetching.
func (a *Assembler) Cached(organization, language, book string) (*Package, bool) {
	return a.cache.Get(Key(organization, language, book))
}

// Invalidate drops a package from memory and the snapshot store.
func (a *Assembler) Invalidate(ctx context.Context, organization, language, book string) error {
	key := Key(organization, language, book)
	a.cache.Delete(key)
	if a.snapshots != nil {
		return a.snapshots.Delete(ctx, key)
	}
	return nil
}

func (a *Assembler) load(ctx context.Context, key string, req Request) (*Package, error) {
	if pkg, ok := a.cache.Get(key); ok {
		return pkg, nil
	}

	if a.snapshots != nil {
		var pkg Package
		fetchedAt, err := a.snapshots.Get(ctx, key, a.cache.TTL(), &pkg)
		if err == nil {
			a.cache.SetUntil(key, &pkg, fetchedAt.Add(a.cache.TTL()))
			a.notify(Event{Key: key, Status: StatusCached})
			a.logger.Debug("package restored from snapshot", "key", key, "fetched_at", fetchedAt)
			return &pkg, nil
		}
		if !errors.IsNotFound(err) {
			a.logger.Warn("snapshot unreadable", "key", key, "error", err)
		}
	}

	pkg := a.assemble(ctx, key, req)
	a.cache.Set(key, pkg)

	if a.snapshots != nil {
		if err := a.snapshots.Put(ctx, key, pkg); err != nil {
			a.logger.Warn("failed to persist package", "key", key, "error", err)
		}
	}
	return pkg, nil
}

type slotResult struct {
	slot Slot
	repo RepositoryInfo
	err  error
}

func (a *Assembler) assemble(ctx context.Context, key string, req Request) *Package {
	assemblyID := uuid.New().String()
	logger := a.logger.With("assembly_id", assemblyID, "key", key)
	types := req.types()

	a.notify(Event{AssemblyID: assemblyID, Key: key, Status: StatusStarted, Total: len(types)})
	start := a.now()

	results := make(map[resource.Type]slotResult, len(types))
	var (
		mu sync.Mutex
		wg sync.WaitGroup
	)
	for _, t := range types {
		wg.Add(1)
		go func(t resource.Type) {
			defer wg.Done()
			res := a.resolveType(ctx, assemblyID, key, req, t, logger)
			mu.Lock()
			results[t] = res
			mu.Unlock()
		}(t)
	}
	wg.Wait()

	pkg := &Package{
		Book:         strings.ToUpper(req.Book),
		Language:     req.Language,
		Organization: req.Organization,
		FetchedAt:    a.now(),
		Repositories: make(map[resource.Type]RepositoryInfo),
		Slots:        make(map[resource.Type]Slot),
	}
	for t, res := range results {
		if res.err != nil {
			if pkg.Failures == nil {
				pkg.Failures = make(map[resource.Type]string)
			}
			pkg.Failures[t] = res.err.Error()
			continue
		}
		pkg.Slots[t] = res.slot
		pkg.Repositories[t] = res.repo
	}

	logger.Info("package assembled",
		"resolved", len(pkg.Slots),
		"missing", len(pkg.Failures),
		"duration", a.now().Sub(start),
	)
	a.notify(Event{AssemblyID: assemblyID, Key: key, Status: StatusCompleted, Total: len(types), Resolved: len(pkg.Slots)})
	return pkg
}

// resolveType tries each identifier of t in order; the first that yields a
// file fills the slot.
func (a *Assembler) resolveType(ctx context.Context, assemblyID, key string, req Request, t resource.Type, logger *slog.Logger) slotResult {
	cfg, _ := resource.Lookup(t)
	logger = logger.With("type", t)

	res, _, err := fallback.First(ctx, "identifier", cfg.Identifiers,
		func(ctx context.Context, id string) (slotResult, error) {
			return a.loadSlot(ctx, req, cfg, id, logger)
		},
		fallback.WithFailureHook(func(candidate string, err error) {
			logging.CandidateFailed(logger, "identifier", candidate, err)
			a.notify(Event{AssemblyID: assemblyID, Key: key, Type: t, Status: StatusFallback,
				Source: resource.RepositoryName(req.Language, candidate), Error: err.Error()})
		}))
	if err != nil {
		logger.Warn("resource type unavailable", "candidates", cfg.Identifiers, "error", err)
		a.notify(Event{AssemblyID: assemblyID, Key: key, Type: t, Status: StatusMissing, Error: err.Error()})
		return slotResult{err: err}
	}

	logging.SlotResolved(logger, string(t), res.slot.Source, res.slot.Path)
	a.notify(Event{AssemblyID: assemblyID, Key: key, Type: t, Status: StatusResolved, Source: res.slot.Source})
	return res
}

func (a *Assembler) loadSlot(ctx context.Context, req Request, cfg resource.Config, id string, logger *slog.Logger) (slotResult, error) {
	repo, err := a.resolver.Resolve(ctx, req.Organization, resource.RepositoryName(req.Language, id))
	if err != nil {
		return slotResult{}, err
	}

	m, err := a.manifests.Load(ctx, repo)
	if err != nil {
		if ctx.Err() != nil {
			return slotResult{}, ctx.Err()
		}
		// Locate falls back to filename probing with an empty manifest.
		logger.Debug("proceeding without manifest", "repository", repo.FullName, "error", err)
		m = manifest.Manifest{}
	}

	path, err := a.locator.Locate(ctx, repo, m, req.Book, cfg)
	if err != nil {
		return slotResult{}, err
	}

	content, err := a.fetcher.Fetch(ctx, repo, path)
	if err != nil {
		return slotResult{}, err
	}

	return slotResult{
		slot: Slot{
			Type:        cfg.Type,
			Source:      repo.FullName,
			Identifier:  id,
			Path:        path,
			RawContent:  content,
			Processed:   processor.Process(logger, cfg.Type, path, content),
			ContentHash: store.Digest([]byte(content)),
		},
		repo: RepositoryInfo{
			Name:     repo.Name,
			URL:      repo.HTMLURL,
			Ref:      repo.TagOrBranch,
			Manifest: m,
		},
	}, nil
}

func (a *Assembler) notify(e Event) {
	if len(a.observers) == 0 {
		return
	}
	e.Time = a.now()
	for _, o := range a.observers {
		o(e)
	}
}
