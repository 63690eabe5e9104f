package service

import (
	"context"
	"testing"
	"time"

	"github.com/FocuswithJustin/JuniperHelps/core/errors"
	"github.com/FocuswithJustin/JuniperHelps/internal/dcs"
	"github.com/FocuswithJustin/JuniperHelps/internal/dcstest"
	"github.com/FocuswithJustin/JuniperHelps/internal/resource"
	"github.com/FocuswithJustin/JuniperHelps/internal/retry"
)

const org = "unfoldingWord"

const ultManifest = `dublin_core:
  identifier: ult
projects:
  - identifier: rut
    path: ./08-RUT.usfm
  - identifier: jon
    path: ./32-JON.usfm
`

const jonahUSFM = `\id JON
\c 1
\v 1 \zaln-s |x-strong="H1697" x-lemma="דָּבָר" x-occurrence="1" x-occurrences="1" x-content="דְּבַר"\*\w Now|x-occurrence="1" x-occurrences="1"\w*\zaln-e\* the word came.
\v 2-3 \zaln-s |x-strong="H6965" x-lemma="קוּם" x-occurrence="1" x-occurrences="1" x-content="קוּם"\*\w Get|x-occurrence="1" x-occurrences="1"\w* \w up|x-occurrence="1" x-occurrences="1"\w*\zaln-e\* and go.
`

const jonahNotes = "Reference\tID\tTags\tSupportReference\tQuote\tOccurrence\tNote\n" +
	"front:intro\tf1\t\t\t\t0\t# Jonah\n" +
	"1:1\tn1\t\trc://*/ta/man/translate/figs-idiom\tדְּבַר\t1\tThe word of Yahweh.\n" +
	"1:3\tn2\t\t\tבָּרַח\t1\tHe ran away.\n" +
	"2:1\tn3\t\t\tדָּג\t1\tA great fish.\n"

const jonahLinks = "Reference\tID\tTags\tOrigWords\tOccurrence\tTWLink\n" +
	"1:1\tl1\tkeyterm\tיְהוָה\t1\trc://*/tw/dict/bible/kt/yahweh\n" +
	"1:2\tl2\tname\tנִינְוֵה\t1\trc://*/tw/dict/bible/names/nineveh\n" +
	"1:2\tl3\tkeyterm\tיְהוָה\t1\trc://*/tw/dict/bible/kt/yahweh\n"

func seed(t *testing.T) *dcstest.Server {
	t.Helper()
	srv := dcstest.New(t)
	srv.AddRepository(dcs.Repository{Name: "en_ult", Owner: org}, true)
	srv.AddFile(org+"/en_ult", "master", "manifest.yaml", ultManifest)
	srv.AddFile(org+"/en_ult", "master", "32-JON.usfm", jonahUSFM)

	srv.AddRepository(dcs.Repository{Name: "en_tn", Owner: org}, true)
	srv.AddFile(org+"/en_tn", "master", "tn_JON.tsv", jonahNotes)

	srv.AddRepository(dcs.Repository{Name: "en_twl", Owner: org}, true)
	srv.AddFile(org+"/en_twl", "master", "twl_JON.tsv", jonahLinks)

	srv.AddRepository(dcs.Repository{Name: "en_tw", Owner: org}, true)
	srv.AddFile(org+"/en_tw", "master", "bible/kt/yahweh.md", "# Yahweh\n\n## Facts:\n\nThe name of God.\n")

	srv.AddRepository(dcs.Repository{Name: "en_ta", Owner: org}, true)
	srv.AddFile(org+"/en_ta", "master", "translate/figs-idiom/01.md", "### Description\n\nAn idiom.\n")
	return srv
}

func build(srv *dcstest.Server) *Pipeline {
	return Build(srv.Client(), Options{
		Language:     "en",
		Organization: org,
		Retry:        retry.Config{MaxAttempts: 2, BaseDelay: time.Millisecond, MaxDelay: 5 * time.Millisecond},
	})
}

func TestInitialize(t *testing.T) {
	srv := seed(t)
	svc := build(srv).Service
	if err := svc.Initialize(context.Background()); err != nil {
		t.Fatalf("Initialize() error = %v", err)
	}
	repos := svc.Repositories()
	if len(repos) != 5 || repos[0].Name != "en_ult" {
		t.Errorf("Repositories() = %+v", repos)
	}

	empty := build(dcstest.New(t)).Service
	if err := empty.Initialize(context.Background()); !errors.IsNotFound(err) {
		t.Errorf("Initialize() with no repositories = %v, want not found", err)
	}
}

func TestAvailableBooks(t *testing.T) {
	srv := seed(t)
	books, err := build(srv).Service.AvailableBooks(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if len(books) != 2 || books[0].Code != "RUT" || books[1].Code != "JON" {
		t.Errorf("AvailableBooks() = %+v", books)
	}

	all, err := build(dcstest.New(t)).Service.AvailableBooks(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if len(all) != len(resource.Books()) {
		t.Errorf("without a literal text got %d books, want every book", len(all))
	}
}

func TestBookHelps(t *testing.T) {
	srv := seed(t)
	svc := build(srv).Service
	ctx := context.Background()

	text, err := svc.BibleText(ctx, "jon", resource.ULT)
	if err != nil {
		t.Fatalf("BibleText() error = %v", err)
	}
	if !text.HasAlignment {
		t.Error("literal text should carry alignment")
	}
	if _, err := svc.BibleText(ctx, "jon", resource.TN); !errors.Is(err, errors.ErrInvalidInput) {
		t.Errorf("BibleText(tn) error = %v", err)
	}
	if _, err := svc.BibleText(ctx, "jon", resource.UST); !errors.IsNotFound(err) {
		t.Errorf("BibleText(ust) error = %v, want not found", err)
	}

	notes, err := svc.TranslationNotes(ctx, "JON")
	if err != nil || len(notes) != 3 {
		t.Errorf("TranslationNotes() = %d notes, %v", len(notes), err)
	}
	links, err := svc.TranslationWordsLinks(ctx, "JON")
	if err != nil || len(links) != 3 {
		t.Errorf("TranslationWordsLinks() = %d links, %v", len(links), err)
	}
	if _, err := svc.TranslationQuestions(ctx, "JON"); !errors.IsNotFound(err) {
		t.Errorf("TranslationQuestions() error = %v, want not found", err)
	}

	srv.ResetCounts()
	svc.TranslationNotes(ctx, "jon")
	if n := srv.Requests(); n != 0 {
		t.Errorf("book helps should share one package, made %d requests", n)
	}
}

func TestOnDemand(t *testing.T) {
	srv := seed(t)
	svc := build(srv).Service
	ctx := context.Background()

	word, err := svc.TranslationWord(ctx, "rc://*/tw/dict/bible/kt/yahweh")
	if err != nil {
		t.Fatalf("TranslationWord() error = %v", err)
	}
	if word.Title != "Yahweh" {
		t.Errorf("word title = %q", word.Title)
	}

	article, err := svc.TranslationAcademyArticle(ctx, "figs-idiom")
	if err != nil {
		t.Fatalf("TranslationAcademyArticle() error = %v", err)
	}
	if article.Path != "translate/figs-idiom/01.md" {
		t.Errorf("article path = %q", article.Path)
	}
}

func TestPassageHelps(t *testing.T) {
	srv := seed(t)
	svc := build(srv).Service
	ctx := context.Background()

	tests := []struct {
		ref       string
		notes     int
		links     int
		words     []string
		articles  []string
		questions int
	}{
		{"JON 1:1", 1, 1, []string{"kt/yahweh"}, []string{"translate/figs-idiom"}, 0},
		{"jon 1:2-3", 1, 2, []string{"names/nineveh", "kt/yahweh"}, nil, 0},
		{"JON 1", 2, 3, []string{"kt/yahweh", "names/nineveh"}, []string{"translate/figs-idiom"}, 0},
		{"JON 1:17-2:2", 1, 0, nil, nil, 0},
	}
	for _, tt := range tests {
		t.Run(tt.ref, func(t *testing.T) {
			helps, err := svc.PassageHelps(ctx, tt.ref)
			if err != nil {
				t.Fatalf("PassageHelps() error = %v", err)
			}
			if len(helps.Notes) != tt.notes || len(helps.WordLinks) != tt.links || len(helps.Questions) != tt.questions {
				t.Errorf("notes=%d links=%d questions=%d", len(helps.Notes), len(helps.WordLinks), len(helps.Questions))
			}
			if !equal(helps.Words, tt.words) {
				t.Errorf("Words = %q, want %q", helps.Words, tt.words)
			}
			if !equal(helps.Articles, tt.articles) {
				t.Errorf("Articles = %q, want %q", helps.Articles, tt.articles)
			}
		})
	}

	for _, bad := range []string{"", "XYZ 1:1", "JON 3:5-1"} {
		if _, err := svc.PassageHelps(ctx, bad); !errors.Is(err, errors.ErrInvalidInput) {
			t.Errorf("PassageHelps(%q) error = %v, want invalid input", bad, err)
		}
	}
}

func TestVerseAlignment(t *testing.T) {
	srv := seed(t)
	svc := build(srv).Service
	ctx := context.Background()

	res, err := svc.VerseAlignment(ctx, "JON", resource.ULT, 1, "1")
	if err != nil {
		t.Fatalf("VerseAlignment() error = %v", err)
	}
	if len(res.Groups) != 1 || res.Groups[0].Strong != "H1697" {
		t.Errorf("groups = %+v", res.Groups)
	}

	bridged, err := svc.VerseAlignment(ctx, "JON", resource.ULT, 1, "3")
	if err != nil {
		t.Fatalf("VerseAlignment(bridged) error = %v", err)
	}
	if len(bridged.Groups) != 1 || bridged.Groups[0].TotalInstances != 2 {
		t.Errorf("bridged groups = %+v", bridged.Groups)
	}

	if _, err := svc.VerseAlignment(ctx, "JON", resource.ULT, 4, "1"); !errors.IsNotFound(err) {
		t.Errorf("missing verse error = %v", err)
	}
}

func equal(got, want []string) bool {
	if len(got) != len(want) {
		return false
	}
	for i := range got {
		if got[i] != want[i] {
			return false
		}
	}
	return true
}
