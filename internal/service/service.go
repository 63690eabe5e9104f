// Package service exposes translation helps for one (language,
// organization) pair over the book package assembler and the on-demand
// loader.
package service

import (
	"context"
	"log/slog"
	"strconv"
	"strings"
	"sync"

	"github.com/FocuswithJustin/JuniperHelps/core/alignment"
	"github.com/FocuswithJustin/JuniperHelps/core/errors"
	"github.com/FocuswithJustin/JuniperHelps/core/markup"
	"github.com/FocuswithJustin/JuniperHelps/core/ref"
	"github.com/FocuswithJustin/JuniperHelps/internal/bookpkg"
	"github.com/FocuswithJustin/JuniperHelps/internal/dcs"
	"github.com/FocuswithJustin/JuniperHelps/internal/fallback"
	"github.com/FocuswithJustin/JuniperHelps/internal/logging"
	"github.com/FocuswithJustin/JuniperHelps/internal/manifest"
	"github.com/FocuswithJustin/JuniperHelps/internal/ondemand"
	"github.com/FocuswithJustin/JuniperHelps/internal/processor"
	"github.com/FocuswithJustin/JuniperHelps/internal/resource"
)

// Provider is the consumer-facing helps interface. An offline
// implementation satisfies the same contract without network access.
type Provider interface {
	Initialize(ctx context.Context) error
	AvailableBooks(ctx context.Context) ([]resource.Book, error)
	BibleText(ctx context.Context, book string, textType resource.Type) (*processor.Scripture, error)
	TranslationNotes(ctx context.Context, book string) ([]processor.Note, error)
	TranslationWordsLinks(ctx context.Context, book string) ([]processor.WordLink, error)
	TranslationQuestions(ctx context.Context, book string) ([]processor.Question, error)
	TranslationWord(ctx context.Context, id string) (*ondemand.Resource, error)
	TranslationAcademyArticle(ctx context.Context, id string) (*ondemand.Resource, error)
	PassageHelps(ctx context.Context, reference string) (*PassageHelps, error)
}

// PassageHelps collects every help that touches one passage.
type PassageHelps struct {
	Reference ref.Ref              `json:"reference"`
	Notes     []processor.Note     `json:"notes"`
	WordLinks []processor.WordLink `json:"wordLinks"`
	Questions []processor.Question `json:"questions"`
	// Words and Articles are the distinct word and academy identifiers the
	// passage's links and notes point at, in first-seen order.
	Words    []string `json:"words"`
	Articles []string `json:"articles"`
}

// Assembler builds book packages.
type Assembler interface {
	Assemble(ctx context.Context, req bookpkg.Request) (*bookpkg.Package, error)
}

// Loader fetches on-demand resources.
type Loader interface {
	Fetch(ctx context.Context, req ondemand.Request) (*ondemand.Resource, error)
}

// Service implements Provider.
type Service struct {
	language     string
	organization string

	assembler Assembler
	loader    Loader
	resolver  bookpkg.Resolver
	manifests bookpkg.ManifestLoader
	logger    *slog.Logger

	mu        sync.RWMutex
	available map[string]dcs.Repository // repository name -> descriptor, filled by Initialize
}

var _ Provider = (*Service)(nil)

// Deps are the collaborators of a Service.
type Deps struct {
	Assembler Assembler
	Loader    Loader
	Resolver  bookpkg.Resolver
	Manifests bookpkg.ManifestLoader
	Logger    *slog.Logger
}

// New creates a Service for one language and organization.
func New(language, organization string, deps Deps) *Service {
	return &Service{
		language:     language,
		organization: organization,
		assembler:    deps.Assembler,
		loader:       deps.Loader,
		resolver:     deps.Resolver,
		manifests:    deps.Manifests,
		logger:       logging.Component(deps.Logger, "service"),
		available:    make(map[string]dcs.Repository),
	}
}

// Language returns the service language.
func (s *Service) Language() string { return s.language }

// Organization returns the service organization.
func (s *Service) Organization() string { return s.organization }

// Initialize resolves every primary repository so later calls start warm.
// Missing repositories are logged; it fails only when none resolve.
func (s *Service) Initialize(ctx context.Context) error {
	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		errs []error
	)
	for _, t := range resource.AllTypes() {
		cfg, _ := resource.Lookup(t)
		name := resource.RepositoryName(s.language, cfg.Identifiers[0])
		wg.Add(1)
		go func() {
			defer wg.Done()
			repo, err := s.resolver.Resolve(ctx, s.organization, name)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				errs = append(errs, err)
				logging.CandidateFailed(s.logger, "initialize", name, err)
				return
			}
			s.mu.Lock()
			s.available[name] = repo
			s.mu.Unlock()
		}()
	}
	wg.Wait()

	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.RLock()
	n := len(s.available)
	s.mu.RUnlock()
	if n == 0 {
		return errors.Wrapf(errors.Join(errs...), "no repositories available for %s/%s", s.organization, s.language)
	}
	s.logger.Info("service initialized", "language", s.language, "organization", s.organization, "repositories", n)
	return nil
}

// Repositories returns the repositories found by Initialize.
func (s *Service) Repositories() []dcs.Repository {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]dcs.Repository, 0, len(s.available))
	for _, t := range resource.AllTypes() {
		cfg, _ := resource.Lookup(t)
		if repo, ok := s.available[resource.RepositoryName(s.language, cfg.Identifiers[0])]; ok {
			out = append(out, repo)
		}
	}
	return out
}

// AvailableBooks lists the books of the literal text in canonical order, as
// declared by its manifest. Without a readable manifest every book is
// listed.
func (s *Service) AvailableBooks(ctx context.Context) ([]resource.Book, error) {
	cfg, _ := resource.Lookup(resource.ULT)
	repo, _, err := fallback.First(ctx, "repository", cfg.RepositoryNames(s.language),
		func(ctx context.Context, name string) (dcs.Repository, error) {
			return s.resolver.Resolve(ctx, s.organization, name)
		})
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		s.logger.Warn("literal text unavailable, listing every book", "error", err)
		return resource.Books(), nil
	}

	m, err := s.manifests.Load(ctx, repo)
	if err != nil || len(m.Projects) == 0 {
		s.logger.Debug("no manifest projects, listing every book", "repository", repo.FullName, "error", err)
		return resource.Books(), nil
	}
	return booksIn(m), nil
}

func booksIn(m manifest.Manifest) []resource.Book {
	var books []resource.Book
	for _, b := range resource.Books() {
		if _, ok := m.FindProject(b.Code); ok {
			books = append(books, b)
		}
	}
	return books
}

func (s *Service) request(book string) bookpkg.Request {
	return bookpkg.Request{Book: book, Language: s.language, Organization: s.organization}
}

// Package returns the assembled package of book with every book type
// requested.
func (s *Service) Package(ctx context.Context, book string) (*bookpkg.Package, error) {
	return s.assembler.Assemble(ctx, s.request(book))
}

func (s *Service) slot(ctx context.Context, book string, t resource.Type) (bookpkg.Slot, error) {
	pkg, err := s.Package(ctx, book)
	if err != nil {
		return bookpkg.Slot{}, err
	}
	slot, ok := pkg.Slot(t)
	if !ok {
		return bookpkg.Slot{}, errors.NewNotFound(string(t), strings.ToUpper(book))
	}
	return slot, nil
}

// BibleText returns the scripture of book for textType (ult or ust).
func (s *Service) BibleText(ctx context.Context, book string, textType resource.Type) (*processor.Scripture, error) {
	if cfg, ok := resource.Lookup(textType); !ok || cfg.Kind != resource.KindScripture {
		return nil, errors.NewValidation("type", "not a scripture type: "+string(textType))
	}
	slot, err := s.slot(ctx, book, textType)
	if err != nil {
		return nil, err
	}
	return slot.Processed.Scripture, nil
}

// TranslationNotes returns the notes of book.
func (s *Service) TranslationNotes(ctx context.Context, book string) ([]processor.Note, error) {
	slot, err := s.slot(ctx, book, resource.TN)
	if err != nil {
		return nil, err
	}
	return slot.Processed.Notes, nil
}

// TranslationWordsLinks returns the word links of book.
func (s *Service) TranslationWordsLinks(ctx context.Context, book string) ([]processor.WordLink, error) {
	slot, err := s.slot(ctx, book, resource.TWL)
	if err != nil {
		return nil, err
	}
	return slot.Processed.WordLinks, nil
}

// TranslationQuestions returns the questions of book.
func (s *Service) TranslationQuestions(ctx context.Context, book string) ([]processor.Question, error) {
	slot, err := s.slot(ctx, book, resource.TQ)
	if err != nil {
		return nil, err
	}
	return slot.Processed.Questions, nil
}

// TranslationWord loads a word article ("kt/god", "god" or an rc:// link).
func (s *Service) TranslationWord(ctx context.Context, id string) (*ondemand.Resource, error) {
	return s.loader.Fetch(ctx, ondemand.Request{Type: resource.TW, Identifier: id, Language: s.language, Organization: s.organization})
}

// TranslationAcademyArticle loads an academy article ("figs-metaphor",
// "translate/figs-metaphor" or an rc:// link).
func (s *Service) TranslationAcademyArticle(ctx context.Context, id string) (*ondemand.Resource, error) {
	return s.loader.Fetch(ctx, ondemand.Request{Type: resource.TA, Identifier: id, Language: s.language, Organization: s.organization})
}

// PassageHelps gathers the notes, word links and questions of a passage such
// as "JON 1:3-5". A missing helps table leaves its list empty.
func (s *Service) PassageHelps(ctx context.Context, reference string) (*PassageHelps, error) {
	r, err := ref.Parse(reference)
	if err != nil {
		return nil, errors.NewValidation("reference", err.Error())
	}
	if _, ok := resource.LookupBook(r.Book); !ok {
		return nil, errors.NewValidation("reference", "unknown book code "+r.Book)
	}

	pkg, err := s.Package(ctx, r.Book)
	if err != nil {
		return nil, err
	}

	helps := &PassageHelps{
		Reference: r,
		Notes:     []processor.Note{},
		WordLinks: []processor.WordLink{},
		Questions: []processor.Question{},
		Words:     []string{},
		Articles:  []string{},
	}
	seen := make(map[string]bool)
	add := func(list *[]string, id string) {
		if id != "" && !seen[id] {
			seen[id] = true
			*list = append(*list, id)
		}
	}

	if slot, ok := pkg.Slot(resource.TN); ok {
		for _, n := range slot.Processed.Notes {
			if r.MatchesTSV(n.Reference) {
				helps.Notes = append(helps.Notes, n)
				add(&helps.Articles, ondemand.NormalizeIdentifier(resource.TA, n.SupportReference))
			}
		}
	}
	if slot, ok := pkg.Slot(resource.TWL); ok {
		for _, l := range slot.Processed.WordLinks {
			if r.MatchesTSV(l.Reference) {
				helps.WordLinks = append(helps.WordLinks, l)
				add(&helps.Words, l.Article)
			}
		}
	}
	if slot, ok := pkg.Slot(resource.TQ); ok {
		for _, q := range slot.Processed.Questions {
			if r.MatchesTSV(q.Reference) {
				helps.Questions = append(helps.Questions, q)
			}
		}
	}
	return helps, nil
}

// VerseAlignment extracts the alignment tokens and groups of one verse.
// verse may name a single verse inside a bridged range ("2" finds "1-2").
func (s *Service) VerseAlignment(ctx context.Context, book string, textType resource.Type, chapter int, verse string) (*alignment.Result, error) {
	scripture, err := s.BibleText(ctx, book, textType)
	if err != nil {
		return nil, err
	}
	book = strings.ToUpper(book)
	verses, err := scripture.Verses(book)
	if err != nil {
		return nil, err
	}

	v, ok := findVerse(verses, chapter, verse)
	if !ok {
		return nil, errors.NewNotFound("verse", book+" "+strconv.Itoa(chapter)+":"+verse)
	}
	res := alignment.Extract(v.Ref, v.Nodes)
	return &res, nil
}

func findVerse(verses []markup.Verse, chapter int, number string) (markup.Verse, bool) {
	if v, ok := markup.Find(verses, chapter, number); ok {
		return v, true
	}
	n, err := strconv.Atoi(number)
	if err != nil {
		return markup.Verse{}, false
	}
	for _, v := range verses {
		if v.Chapter != chapter {
			continue
		}
		start, end, ok := strings.Cut(v.Number, "-")
		if !ok {
			continue
		}
		lo, err1 := strconv.Atoi(strings.TrimRight(start, "abc"))
		hi, err2 := strconv.Atoi(strings.TrimRight(end, "abc"))
		if err1 == nil && err2 == nil && lo <= n && n <= hi {
			return v, true
		}
	}
	return markup.Verse{}, false
}
