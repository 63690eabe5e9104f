package main

import (
	"context"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/FocuswithJustin/JuniperHelps/core/errors"
	"github.com/FocuswithJustin/JuniperHelps/internal/api"
	"github.com/FocuswithJustin/JuniperHelps/internal/bookpkg"
	"github.com/FocuswithJustin/JuniperHelps/internal/config"
	"github.com/FocuswithJustin/JuniperHelps/internal/resource"
	"github.com/FocuswithJustin/JuniperHelps/internal/store"
)

// BooksCmd lists the available books.
type BooksCmd struct {
	JSON bool `help:"Print JSON"`
}

func (c *BooksCmd) Run(g *Globals) error {
	ctx := context.Background()
	a, err := g.open(ctx, nil)
	if err != nil {
		return err
	}
	defer a.Close()

	books, err := a.pipeline.Service.AvailableBooks(ctx)
	if err != nil {
		return err
	}
	if c.JSON {
		return g.printJSON(books)
	}
	for _, b := range books {
		g.printf("%s\t%s\t%s\n", b.FilePrefix(), b.Testament, b.Name)
	}
	return nil
}

// PackageCmd assembles a book package.
type PackageCmd struct {
	Book  string `arg:"" help:"Book code, e.g. JON"`
	Types string `help:"Comma-separated resource types (default: ult,ust,tn,twl,tq)"`
	JSON  bool   `help:"Print the full package as JSON"`
}

func (c *PackageCmd) Run(g *Globals) error {
	types, err := resource.ParseTypes(c.Types)
	if err != nil {
		return err
	}

	ctx := context.Background()
	a, err := g.open(ctx, nil)
	if err != nil {
		return err
	}
	defer a.Close()

	pkg, err := a.pipeline.Assembler.Assemble(ctx, bookpkg.Request{
		Book:         c.Book,
		Language:     a.cfg.Language,
		Organization: a.cfg.Organization,
		Types:        types,
	})
	if err != nil {
		return err
	}
	if c.JSON {
		return g.printJSON(pkg)
	}

	g.printf("%s (%s/%s) fetched %s\n", pkg.Book, pkg.Organization, pkg.Language, pkg.FetchedAt.Format(time.RFC3339))
	for _, t := range types {
		if slot, ok := pkg.Slot(t); ok {
			g.printf("  %-4s %s/%s (%d bytes, %s)\n", t, slot.Source, slot.Path, len(slot.RawContent), short(slot.ContentHash))
			continue
		}
		g.printf("  %-4s missing: %s\n", t, pkg.Failures[t])
	}
	return nil
}

// TextCmd prints scripture markup.
type TextCmd struct {
	Book string `arg:"" help:"Book code"`
	Type string `help:"Scripture type (ult or ust)" default:"ult"`
}

func (c *TextCmd) Run(g *Globals) error {
	t, err := resource.ParseType(c.Type)
	if err != nil {
		return err
	}
	ctx := context.Background()
	a, err := g.open(ctx, nil)
	if err != nil {
		return err
	}
	defer a.Close()

	text, err := a.pipeline.Service.BibleText(ctx, c.Book, t)
	if err != nil {
		return err
	}
	g.printf("%s", text.Raw)
	return nil
}

// NotesCmd prints translation notes.
type NotesCmd struct {
	Book string `arg:"" help:"Book code"`
	JSON bool   `help:"Print JSON"`
}

func (c *NotesCmd) Run(g *Globals) error {
	ctx := context.Background()
	a, err := g.open(ctx, nil)
	if err != nil {
		return err
	}
	defer a.Close()

	notes, err := a.pipeline.Service.TranslationNotes(ctx, c.Book)
	if err != nil {
		return err
	}
	if c.JSON {
		return g.printJSON(notes)
	}
	for _, n := range notes {
		g.printf("%s\t%s\t%s\n", n.Reference, n.Quote, oneLine(n.Note))
	}
	return nil
}

// LinksCmd prints translation word links.
type LinksCmd struct {
	Book string `arg:"" help:"Book code"`
	JSON bool   `help:"Print JSON"`
}

func (c *LinksCmd) Run(g *Globals) error {
	ctx := context.Background()
	a, err := g.open(ctx, nil)
	if err != nil {
		return err
	}
	defer a.Close()

	links, err := a.pipeline.Service.TranslationWordsLinks(ctx, c.Book)
	if err != nil {
		return err
	}
	if c.JSON {
		return g.printJSON(links)
	}
	for _, l := range links {
		g.printf("%s\t%s\t%s\n", l.Reference, l.OrigWords, l.Article)
	}
	return nil
}

// QuestionsCmd prints translation questions.
type QuestionsCmd struct {
	Book string `arg:"" help:"Book code"`
	JSON bool   `help:"Print JSON"`
}

func (c *QuestionsCmd) Run(g *Globals) error {
	ctx := context.Background()
	a, err := g.open(ctx, nil)
	if err != nil {
		return err
	}
	defer a.Close()

	questions, err := a.pipeline.Service.TranslationQuestions(ctx, c.Book)
	if err != nil {
		return err
	}
	if c.JSON {
		return g.printJSON(questions)
	}
	for _, q := range questions {
		g.printf("%s\t%s\n\t%s\n", q.Reference, oneLine(q.Question), oneLine(q.Response))
	}
	return nil
}

// WordCmd loads a translation word article.
type WordCmd struct {
	ID   string `arg:"" help:"Article identifier: kt/god, god, or an rc:// link"`
	JSON bool   `help:"Print JSON"`
}

func (c *WordCmd) Run(g *Globals) error {
	ctx := context.Background()
	a, err := g.open(ctx, nil)
	if err != nil {
		return err
	}
	defer a.Close()

	word, err := a.pipeline.Service.TranslationWord(ctx, c.ID)
	if err != nil {
		return err
	}
	if c.JSON {
		return g.printJSON(word)
	}
	g.printf("%s\n%s/%s\n\n%s", word.Title, word.Source, word.Path, word.Content)
	return nil
}

// AcademyCmd loads a translation academy article.
type AcademyCmd struct {
	ID   string `arg:"" help:"Article identifier: figs-metaphor, translate/figs-metaphor, or an rc:// link"`
	JSON bool   `help:"Print JSON"`
}

func (c *AcademyCmd) Run(g *Globals) error {
	ctx := context.Background()
	a, err := g.open(ctx, nil)
	if err != nil {
		return err
	}
	defer a.Close()

	article, err := a.pipeline.Service.TranslationAcademyArticle(ctx, c.ID)
	if err != nil {
		return err
	}
	if c.JSON {
		return g.printJSON(article)
	}
	g.printf("%s\n%s/%s\n\n%s", article.Title, article.Source, article.Path, article.Content)
	return nil
}

// PassageCmd collects the helps for a passage.
type PassageCmd struct {
	Reference []string `arg:"" help:"Reference, e.g. JON 1:1-3"`
	JSON      bool     `help:"Print JSON"`
}

func (c *PassageCmd) Run(g *Globals) error {
	ctx := context.Background()
	a, err := g.open(ctx, nil)
	if err != nil {
		return err
	}
	defer a.Close()

	helps, err := a.pipeline.Service.PassageHelps(ctx, strings.Join(c.Reference, " "))
	if err != nil {
		return err
	}
	if c.JSON {
		return g.printJSON(helps)
	}

	g.printf("%d notes, %d word links, %d questions\n", len(helps.Notes), len(helps.WordLinks), len(helps.Questions))
	for _, n := range helps.Notes {
		g.printf("note %s\t%s\t%s\n", n.Reference, n.Quote, oneLine(n.Note))
	}
	for _, q := range helps.Questions {
		g.printf("question %s\t%s\n", q.Reference, oneLine(q.Question))
	}
	if len(helps.Words) > 0 {
		g.printf("words: %s\n", strings.Join(helps.Words, ", "))
	}
	if len(helps.Articles) > 0 {
		g.printf("articles: %s\n", strings.Join(helps.Articles, ", "))
	}
	return nil
}

// AlignCmd extracts the alignment of one verse.
type AlignCmd struct {
	Book    string `arg:"" help:"Book code"`
	Chapter int    `arg:"" help:"Chapter number"`
	Verse   string `arg:"" help:"Verse number"`
	Type    string `help:"Scripture type (ult or ust)" default:"ult"`
	JSON    bool   `help:"Print JSON"`
}

func (c *AlignCmd) Run(g *Globals) error {
	t, err := resource.ParseType(c.Type)
	if err != nil {
		return err
	}
	ctx := context.Background()
	a, err := g.open(ctx, nil)
	if err != nil {
		return err
	}
	defer a.Close()

	result, err := a.pipeline.Service.VerseAlignment(ctx, c.Book, t, c.Chapter, c.Verse)
	if err != nil {
		return err
	}
	if c.JSON {
		return g.printJSON(result)
	}
	for _, grp := range result.Groups {
		words := make([]string, 0, len(grp.Instances))
		for _, inst := range grp.Instances {
			words = append(words, inst.Text)
		}
		flag := ""
		if grp.NonContiguous {
			flag = " (non-contiguous)"
		}
		g.printf("%s\t%s\t%s\t%s%s\n", grp.Strong, grp.Lemma, grp.SourceWord, strings.Join(words, " "), flag)
	}
	return nil
}

// ServeCmd starts the REST API server.
type ServeCmd struct {
	Port   int  `help:"HTTP server port (overrides server.port)"`
	Warmup bool `help:"Resolve every repository before accepting requests"`
}

func (c *ServeCmd) Run(g *Globals) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := g.loadConfig()
	if err != nil {
		return err
	}
	logger := initLogging(cfg)
	hub := api.NewHub(logger)
	a, err := wire(ctx, cfg, logger, hub.Publish)
	if err != nil {
		return err
	}
	defer a.Close()

	if c.Warmup {
		if err := a.pipeline.Service.Initialize(ctx); err != nil {
			return err
		}
	}

	port := a.cfg.Server.Port
	if c.Port != 0 {
		port = c.Port
	}
	srv, err := api.NewServer(api.Config{
		Port:              port,
		Version:           version,
		RateLimitRequests: a.cfg.Server.RateLimit,
		Auth:              api.AuthConfig{Enabled: a.cfg.Server.APIKey != "", APIKey: a.cfg.Server.APIKey},
		AllowedOrigins:    a.cfg.Server.AllowedOrigins,
		WebSocket:         api.DefaultWebSocketConfig(),
	}, a.pipeline.Service, hub, a.logger)
	if err != nil {
		return err
	}
	return srv.ListenAndServe(ctx)
}

// CacheGroup contains snapshot store operations.
type CacheGroup struct {
	List  CacheListCmd  `cmd:"" help:"List stored package snapshots"`
	Prune CachePruneCmd `cmd:"" help:"Delete snapshots older than a given age"`
}

func openStore(ctx context.Context, g *Globals) (*store.Store, error) {
	cfg, err := g.loadConfig()
	if err != nil {
		return nil, err
	}
	if cfg.Cache.StorePath == "" {
		return nil, errors.NewValidation("cache.store_path", "no snapshot store configured")
	}
	return openSnapshots(ctx, cfg.Cache.StorePath, nil)
}

// CacheListCmd lists snapshots.
type CacheListCmd struct {
	JSON bool `help:"Print JSON"`
}

func (c *CacheListCmd) Run(g *Globals) error {
	ctx := context.Background()
	st, err := openStore(ctx, g)
	if err != nil {
		return err
	}
	defer st.Close()

	entries, err := st.List(ctx)
	if err != nil {
		return err
	}
	if c.JSON {
		return g.printJSON(entries)
	}
	for _, e := range entries {
		g.printf("%s\t%s\t%d\t%s\n", e.Key, e.FetchedAt.UTC().Format(time.RFC3339), e.Size, short(e.Digest))
	}
	return nil
}

// CachePruneCmd deletes old snapshots.
type CachePruneCmd struct {
	OlderThan time.Duration `name:"older-than" help:"Maximum snapshot age to keep" default:"24h"`
}

func (c *CachePruneCmd) Run(g *Globals) error {
	ctx := context.Background()
	st, err := openStore(ctx, g)
	if err != nil {
		return err
	}
	defer st.Close()

	n, err := st.Prune(ctx, c.OlderThan)
	if err != nil {
		return err
	}
	g.printf("pruned %d snapshots\n", n)
	return nil
}

// ConfigGroup contains configuration helpers.
type ConfigGroup struct {
	Init ConfigInitCmd `cmd:"" help:"Write the sample configuration"`
	Show ConfigShowCmd `cmd:"" help:"Print the effective configuration"`
}

// ConfigInitCmd writes the sample configuration file.
type ConfigInitCmd struct {
	Force bool `help:"Overwrite an existing file"`
}

func (c *ConfigInitCmd) Run(g *Globals) error {
	path := g.Config
	if path == "" {
		var err error
		if path, err = config.DefaultConfigPath(); err != nil {
			return err
		}
	}
	if _, err := os.Stat(path); err == nil && !c.Force {
		return errors.NewValidation("config", path+" already exists (use --force)")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return errors.NewIO("create directory", filepath.Dir(path), err)
	}
	if err := os.WriteFile(path, []byte(config.SampleConfig()), 0o600); err != nil {
		return errors.NewIO("write", path, err)
	}
	g.printf("wrote %s\n", path)
	return nil
}

// ConfigShowCmd prints the configuration after env and flag overrides.
type ConfigShowCmd struct{}

func (c *ConfigShowCmd) Run(g *Globals) error {
	cfg, err := g.loadConfig()
	if err != nil {
		return err
	}
	if cfg.Content.Token != "" {
		cfg.Content.Token = "********"
	}
	if cfg.Server.APIKey != "" {
		cfg.Server.APIKey = "********"
	}
	data, err := cfg.Encode()
	if err != nil {
		return err
	}
	g.printf("%s", data)
	return nil
}

// VersionCmd prints version information.
type VersionCmd struct{}

func (c *VersionCmd) Run(g *Globals) error {
	g.printf("helps version %s (sqlite driver %s)\n", version, store.Driver())
	return nil
}

func oneLine(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
