package ondemand

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/FocuswithJustin/JuniperHelps/core/errors"
	"github.com/FocuswithJustin/JuniperHelps/internal/cache"
	"github.com/FocuswithJustin/JuniperHelps/internal/dcs"
	"github.com/FocuswithJustin/JuniperHelps/internal/dcstest"
	"github.com/FocuswithJustin/JuniperHelps/internal/resolver"
	"github.com/FocuswithJustin/JuniperHelps/internal/resource"
	"github.com/FocuswithJustin/JuniperHelps/internal/retry"
)

const org = "unfoldingWord"

func seed(t *testing.T) *dcstest.Server {
	t.Helper()
	srv := dcstest.New(t)
	srv.AddRepository(dcs.Repository{Name: "en_tw", Owner: org}, true)
	srv.AddFile(org+"/en_tw", "master", "bible/kt/god.md", "# God\n\n## Definition:\n\nThe creator.\n")
	srv.AddFile(org+"/en_tw", "master", "bible/names/jonah.md", "# Jonah\n\n## Facts:\n\nA prophet.\n")

	srv.AddRepository(dcs.Repository{Name: "en_ta", Owner: org}, true)
	srv.AddFile(org+"/en_ta", "master", "translate/figs-metaphor/01.md", "### Description\n\nA metaphor is a figure of speech.\n")
	srv.AddFile(org+"/en_ta", "master", "translate/figs-metaphor/title.md", "Metaphor\n")
	srv.AddFile(org+"/en_ta", "master", "checking/acceptable/01.md", "# Acceptable Style\n\nBody.\n")
	return srv
}

func newLoader(srv *dcstest.Server, opts ...Option) *Loader {
	client := srv.Client()
	fast := retry.Config{MaxAttempts: 2, BaseDelay: time.Millisecond, MaxDelay: 5 * time.Millisecond}
	return NewLoader(
		resolver.NewRepositoryResolver(client, resolver.WithRepositoryRetry(fast)),
		resolver.NewFetcher(client, resolver.WithRetry(fast)),
		opts...,
	)
}

func TestFetchWord(t *testing.T) {
	srv := seed(t)
	l := newLoader(srv)

	res, err := l.Fetch(context.Background(), Request{Type: resource.TW, Identifier: "god", Language: "en", Organization: org})
	if err != nil {
		t.Fatalf("Fetch() error = %v", err)
	}
	if res.Path != "bible/kt/god.md" || res.Source != org+"/en_tw" || res.Title != "God" {
		t.Errorf("resource = %+v", res)
	}
	if res.Processed.Word == nil || res.Processed.Word.Definition != "The creator." || res.ContentHash == "" {
		t.Errorf("processed = %+v", res.Processed.Word)
	}

	names, err := l.Fetch(context.Background(), Request{Type: resource.TW, Identifier: "rc://*/tw/dict/bible/names/jonah", Language: "en", Organization: org})
	if err != nil {
		t.Fatalf("Fetch(rc link) error = %v", err)
	}
	if names.Identifier != "names/jonah" || names.Processed.Word.Category != "name" {
		t.Errorf("names resource = %+v", names)
	}
}

func TestFetchAcademySearchesManuals(t *testing.T) {
	srv := seed(t)
	l := newLoader(srv)

	res, err := l.Fetch(context.Background(), Request{Type: resource.TA, Identifier: "figs-metaphor", Language: "en", Organization: org})
	if err != nil {
		t.Fatalf("Fetch() error = %v", err)
	}
	if res.Path != "translate/figs-metaphor/01.md" {
		t.Errorf("path = %q", res.Path)
	}
	if res.Title != "Metaphor" || res.Processed.Article.Title != "Metaphor" || res.Processed.Article.Manual != "translate" {
		t.Errorf("title = %q, article = %+v", res.Title, res.Processed.Article)
	}
	if srv.Count("get:process/figs-metaphor/01.md") == 0 {
		t.Error("process/ should be tried before translate/")
	}

	checking, err := l.Fetch(context.Background(), Request{Type: resource.TA, Identifier: "rc://*/ta/man/checking/acceptable", Language: "en", Organization: org})
	if err != nil {
		t.Fatalf("Fetch(rc link) error = %v", err)
	}
	if checking.Title != "Acceptable Style" {
		t.Errorf("title without title.md = %q", checking.Title)
	}
}

func TestFetchNotFound(t *testing.T) {
	srv := seed(t)
	l := newLoader(srv)

	_, err := l.Fetch(context.Background(), Request{Type: resource.TA, Identifier: "figs-nothing", Language: "en", Organization: org})
	if !errors.Is(err, errors.ErrNotFound) {
		t.Fatalf("Fetch() error = %v, want not found", err)
	}
	var nf *errors.NotFoundError
	if !errors.As(err, &nf) || nf.Resource != "academy article" {
		t.Errorf("error = %#v", err)
	}

	_, err = l.Fetch(context.Background(), Request{Type: resource.TW, Identifier: "god", Language: "fr", Organization: org})
	if !errors.IsNotFound(err) {
		t.Errorf("missing repository error = %v, want not found", err)
	}
}

func TestFetchServerErrorIsNotNotFound(t *testing.T) {
	srv := seed(t)
	srv.AddFile(org+"/en_ta", "master", "translate/figs-simile/01.md", "# Simile\n")
	srv.Script("translate/figs-simile/01.md", 503, 503, 503, 503, 503, 503, 503, 503)
	l := newLoader(srv)

	_, err := l.Fetch(context.Background(), Request{Type: resource.TA, Identifier: "figs-simile", Language: "en", Organization: org})
	if err == nil {
		t.Fatal("Fetch() should fail while the article answers 503")
	}
	if errors.IsNotFound(err) {
		t.Errorf("Fetch() error = %v; a server error must not read as not found", err)
	}
	var nf *errors.NotFoundError
	if errors.As(err, &nf) {
		t.Errorf("Fetch() error should not be a NotFoundError: %v", err)
	}
	if !errors.Is(err, errors.ErrExhaustedRetries) {
		t.Errorf("Fetch() error = %v, want exhausted retries", err)
	}
}

func TestFetchCaches(t *testing.T) {
	srv := seed(t)
	now := time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC)
	clock := func() time.Time { return now }
	l := newLoader(srv, WithCache(cache.New[string, *Resource](DefaultTTL, cache.WithClock(clock))), WithClock(clock))
	req := Request{Type: resource.TW, Identifier: "kt/god", Language: "en", Organization: org}
	ctx := context.Background()

	first, err := l.Fetch(ctx, req)
	if err != nil {
		t.Fatal(err)
	}
	srv.ResetCounts()

	// Same key through a different spelling.
	second, _ := l.Fetch(ctx, Request{Type: resource.TW, Identifier: "rc://*/tw/dict/bible/kt/god", Language: "EN", Organization: org})
	if second != first || srv.Requests() != 0 {
		t.Errorf("expected a cache hit, made %d requests", srv.Requests())
	}

	now = now.Add(25 * time.Hour)
	if _, err := l.Fetch(ctx, req); err != nil {
		t.Fatal(err)
	}
	if srv.Requests() == 0 {
		t.Error("expired resource should be refetched")
	}
}

func TestFetchCoalesces(t *testing.T) {
	srv := seed(t)
	l := newLoader(srv)
	req := Request{Type: resource.TW, Identifier: "god", Language: "en", Organization: org}

	var wg sync.WaitGroup
	results := make([]*Resource, 6)
	for i := range results {
		wg.Add(1)
		go func() {
			defer wg.Done()
			res, err := l.Fetch(context.Background(), req)
			if err != nil {
				t.Errorf("Fetch() error = %v", err)
			}
			results[i] = res
		}()
	}
	wg.Wait()
	for _, r := range results[1:] {
		if r != results[0] {
			t.Fatal("concurrent callers should share one resource")
		}
	}
	if n := srv.Count("get:bible/kt/god.md"); n != 1 {
		t.Errorf("article fetched %d times, want 1", n)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name string
		req  Request
	}{
		{"book type", Request{Type: resource.TN, Identifier: "x", Language: "en", Organization: org}},
		{"empty identifier", Request{Type: resource.TW, Identifier: " ", Language: "en", Organization: org}},
		{"missing language", Request{Type: resource.TW, Identifier: "god", Organization: org}},
		{"missing organization", Request{Type: resource.TW, Identifier: "god", Language: "en"}},
	}
	for _, tt := range tests {
		if err := tt.req.Validate(); !errors.Is(err, errors.ErrInvalidInput) {
			t.Errorf("%s: Validate() = %v", tt.name, err)
		}
	}
}

func TestNormalizeIdentifier(t *testing.T) {
	tests := []struct {
		typ  resource.Type
		in   string
		want string
	}{
		{resource.TW, "rc://*/tw/dict/bible/kt/god", "kt/god"},
		{resource.TW, "rc://en/tw/dict/bible/other/ship.md", "other/ship"},
		{resource.TW, "bible/kt/grace.md", "kt/grace"},
		{resource.TW, "love", "love"},
		{resource.TA, "rc://*/ta/man/translate/figs-idiom", "translate/figs-idiom"},
		{resource.TA, "translate/figs-idiom/01.md", "translate/figs-idiom"},
		{resource.TA, "figs-idiom", "figs-idiom"},
	}
	for _, tt := range tests {
		if got := NormalizeIdentifier(tt.typ, tt.in); got != tt.want {
			t.Errorf("NormalizeIdentifier(%s, %q) = %q, want %q", tt.typ, tt.in, got, tt.want)
		}
	}
}

func TestPaths(t *testing.T) {
	if got := WordPath("god"); got != "bible/kt/god.md" {
		t.Errorf("WordPath(god) = %q", got)
	}
	if got := WordPath("names/jonah"); got != "bible/names/jonah.md" {
		t.Errorf("WordPath(names/jonah) = %q", got)
	}
	paths := AcademyPaths("figs-idiom")
	if len(paths) != 4 || paths[0] != "process/figs-idiom/01.md" || paths[3] != "intro/figs-idiom/01.md" {
		t.Errorf("AcademyPaths() = %q", paths)
	}
	if got := AcademyPaths("translate/figs-idiom"); len(got) != 1 {
		t.Errorf("qualified AcademyPaths() = %q", got)
	}
}
