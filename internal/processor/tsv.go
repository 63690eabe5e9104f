package processor

import (
	"bufio"
	"strconv"
	"strings"

	"github.com/FocuswithJustin/JuniperHelps/core/errors"
)

// Record is one TSV data row keyed by header name.
type Record map[string]string

// Table is a parsed TSV document.
type Table struct {
	Header  []string
	Records []Record
}

const maxLine = 4 * 1024 * 1024

// ParseTSV converts header-driven TSV into records. The first non-empty line
// is the header and never produces a record. Rows shorter than the header are
// padded with empty strings; extra cells are dropped. A missing header yields
// an empty table and a ParseError.
func ParseTSV(content string) (Table, error) {
	var t Table

	scanner := bufio.NewScanner(strings.NewReader(strings.TrimPrefix(content, "\ufeff")))
	scanner.Buffer(make([]byte, 64*1024), maxLine)
	for scanner.Scan() {
		line := strings.TrimRight(scanner.Text(), "\r")
		if strings.TrimSpace(line) == "" {
			continue
		}
		fields := strings.Split(line, "\t")

		if t.Header == nil {
			t.Header = make([]string, len(fields))
			for i, f := range fields {
				t.Header[i] = strings.TrimSpace(f)
			}
			continue
		}

		rec := make(Record, len(t.Header))
		for i, name := range t.Header {
			if i < len(fields) {
				rec[name] = fields[i]
			} else {
				rec[name] = ""
			}
		}
		t.Records = append(t.Records, rec)
	}
	if err := scanner.Err(); err != nil {
		return t, &errors.ParseError{Format: "tsv", Message: "reading table", Err: err}
	}
	if t.Header == nil {
		return t, errors.NewParse("tsv", "", "missing header row")
	}
	return t, nil
}

// HasColumns reports whether every name is present in the header.
func (t Table) HasColumns(names ...string) bool {
	for _, name := range names {
		found := false
		for _, h := range t.Header {
			if h == name {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}

// Get returns the first non-empty field among names.
func (r Record) Get(names ...string) string {
	for _, name := range names {
		if v := r[name]; v != "" {
			return v
		}
	}
	return ""
}

// Note is one translation note row.
type Note struct {
	Reference        string `json:"reference"`
	ID               string `json:"id"`
	Tags             string `json:"tags,omitempty"`
	SupportReference string `json:"supportReference,omitempty"`
	Quote            string `json:"quote,omitempty"`
	Occurrence       int    `json:"occurrence"`
	Note             string `json:"note"`
}

// WordLink ties an original-language phrase to a word article.
type WordLink struct {
	Reference  string `json:"reference"`
	ID         string `json:"id"`
	Tags       string `json:"tags,omitempty"`
	OrigWords  string `json:"origWords"`
	Occurrence int    `json:"occurrence"`
	TWLink     string `json:"twLink"`
	// Article is the "category/name" identifier parsed from TWLink.
	Article string `json:"article,omitempty"`
}

// Question is one comprehension question row.
type Question struct {
	Reference  string `json:"reference"`
	ID         string `json:"id"`
	Tags       string `json:"tags,omitempty"`
	Quote      string `json:"quote,omitempty"`
	Occurrence int    `json:"occurrence"`
	Question   string `json:"question"`
	Response   string `json:"response"`
}

// ParseNotes parses a notes table. Book-introduction and front-matter rows
// are dropped. Legacy nine-column tables (Book, Chapter, Verse, ...) are
// accepted and their references rebuilt.
func ParseNotes(content string) ([]Note, error) {
	t, err := ParseTSV(content)
	notes := make([]Note, 0, len(t.Records))
	for _, r := range t.Records {
		ref := reference(r)
		if IsIntroReference(ref) {
			continue
		}
		notes = append(notes, Note{
			Reference:        ref,
			ID:               r["ID"],
			Tags:             r["Tags"],
			SupportReference: r["SupportReference"],
			Quote:            r.Get("Quote", "OrigQuote"),
			Occurrence:       occurrence(r["Occurrence"]),
			Note:             unescape(r.Get("Note", "OccurrenceNote")),
		})
	}
	return notes, err
}

// ParseWordLinks parses a word-links table.
func ParseWordLinks(content string) ([]WordLink, error) {
	t, err := ParseTSV(content)
	links := make([]WordLink, 0, len(t.Records))
	for _, r := range t.Records {
		link := r["TWLink"]
		links = append(links, WordLink{
			Reference:  reference(r),
			ID:         r["ID"],
			Tags:       r["Tags"],
			OrigWords:  r["OrigWords"],
			Occurrence: occurrence(r["Occurrence"]),
			TWLink:     link,
			Article:    WordArticleID(link),
		})
	}
	return links, err
}

// ParseQuestions parses a questions table.
func ParseQuestions(content string) ([]Question, error) {
	t, err := ParseTSV(content)
	questions := make([]Question, 0, len(t.Records))
	for _, r := range t.Records {
		questions = append(questions, Question{
			Reference:  reference(r),
			ID:         r["ID"],
			Tags:       r["Tags"],
			Quote:      r["Quote"],
			Occurrence: occurrence(r["Occurrence"]),
			Question:   unescape(r["Question"]),
			Response:   unescape(r["Response"]),
		})
	}
	return questions, err
}

// IsIntroReference reports whether a reference addresses front matter or a
// chapter introduction ("front:intro", "1:intro").
func IsIntroReference(ref string) bool {
	chapter, verse, _ := strings.Cut(ref, ":")
	return chapter == "front" || verse == "intro"
}

// WordArticleID extracts "category/name" from a word link such as
// "rc://*/tw/dict/bible/kt/god". Unrecognised links return "".
func WordArticleID(link string) string {
	_, rest, ok := strings.Cut("/"+link, "/bible/")
	if !ok {
		return ""
	}
	category, name, ok := strings.Cut(strings.Trim(rest, "/"), "/")
	if !ok || category == "" || name == "" {
		return ""
	}
	return category + "/" + strings.TrimSuffix(name, ".md")
}

func reference(r Record) string {
	if ref := r["Reference"]; ref != "" {
		return ref
	}
	chapter, verse := r["Chapter"], r["Verse"]
	if chapter == "" && verse == "" {
		return ""
	}
	return chapter + ":" + verse
}

func occurrence(s string) int {
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil {
		return 0
	}
	return n
}

var unescaper = strings.NewReplacer(`\n`, "\n", "<br>", "\n", "<br/>", "\n", "<br />", "\n")

func unescape(s string) string {
	return unescaper.Replace(s)
}
