package processor

import (
	"path"
	"regexp"
	"strings"
)

var headingPattern = regexp.MustCompile(`^(#{1,6})\s+(.+?)\s*#*\s*$`)

// Section is one heading and the text beneath it, up to the next heading of
// the same or a higher level.
type Section struct {
	Heading string `json:"heading"`
	Level   int    `json:"level"`
	Content string `json:"content"`
}

type document struct {
	title    string
	body     string // everything after the title heading
	sections []Section
}

func splitMarkdown(content string) document {
	var (
		doc     document
		body    strings.Builder
		current *Section
		lines   strings.Builder
	)
	flush := func() {
		if current != nil {
			current.Content = strings.TrimSpace(lines.String())
			doc.sections = append(doc.sections, *current)
		}
		lines.Reset()
	}

	// Articles are already in memory; splitting keeps lines of any length.
	for _, line := range strings.Split(content, "\n") {
		line = strings.TrimRight(line, "\r")
		if m := headingPattern.FindStringSubmatch(line); m != nil {
			level := len(m[1])
			if level == 1 && doc.title == "" && current == nil && strings.TrimSpace(body.String()) == "" {
				doc.title = m[2]
				continue
			}
			flush()
			current = &Section{Heading: m[2], Level: level}
			body.WriteString(line)
			body.WriteString("\n")
			continue
		}
		body.WriteString(line)
		body.WriteString("\n")
		lines.WriteString(line)
		lines.WriteString("\n")
	}
	flush()
	doc.body = strings.TrimSpace(body.String())
	return doc
}

// find returns the content of the first section whose heading matches one of
// names, ignoring case and a trailing colon. Deeper subsections are included.
func (d document) find(names ...string) string {
	for i, s := range d.sections {
		heading := strings.ToLower(strings.TrimSuffix(s.Heading, ":"))
		for _, name := range names {
			if heading != strings.ToLower(name) {
				continue
			}
			parts := []string{s.Content}
			for _, sub := range d.sections[i+1:] {
				if sub.Level <= s.Level {
					break
				}
				parts = append(parts, strings.Repeat("#", sub.Level)+" "+sub.Heading, sub.Content)
			}
			return strings.TrimSpace(strings.Join(parts, "\n\n"))
		}
	}
	return ""
}

func listItems(s string) []string {
	var items []string
	for _, line := range strings.Split(s, "\n") {
		line = strings.TrimSpace(line)
		for _, bullet := range []string{"* ", "- ", "+ "} {
			if strings.HasPrefix(line, bullet) {
				if item := strings.TrimSpace(line[len(bullet):]); item != "" {
					items = append(items, item)
				}
				break
			}
		}
	}
	return items
}

// Word categories.
const (
	CategoryKeyTerm = "key-term"
	CategoryName    = "name"
	CategoryOther   = "other"
)

var categories = map[string]string{
	"kt":    CategoryKeyTerm,
	"names": CategoryName,
	"other": CategoryOther,
}

// WordArticle is a parsed word definition.
type WordArticle struct {
	Identifier             string   `json:"identifier"`
	Category               string   `json:"category,omitempty"`
	Title                  string   `json:"title"`
	Definition             string   `json:"definition"`
	TranslationSuggestions string   `json:"translationSuggestions"`
	BibleReferences        []string `json:"bibleReferences,omitempty"`
	Examples               string   `json:"examples"`
	WordData               []string `json:"wordData,omitempty"`
}

// ParseWordArticle extracts the conventional sections of a word article. The
// category comes from the "bible/{kt|names|other}/" path segment.
func ParseWordArticle(p, content string) WordArticle {
	doc := splitMarkdown(content)
	return WordArticle{
		Identifier:             strings.TrimSuffix(path.Base(p), path.Ext(p)),
		Category:               wordCategory(p),
		Title:                  doc.title,
		Definition:             doc.find("Definition", "Facts", "Description"),
		TranslationSuggestions: doc.find("Translation Suggestions"),
		BibleReferences:        listItems(doc.find("Bible References")),
		Examples:               doc.find("Examples from the Bible stories", "Examples from the Bible Stories", "Examples"),
		WordData:               listItems(doc.find("Word Data")),
	}
}

func wordCategory(p string) string {
	segments := strings.Split(strings.Trim(p, "/"), "/")
	for i := 0; i+1 < len(segments); i++ {
		if segments[i] == "bible" {
			return categories[segments[i+1]]
		}
	}
	return ""
}

// AcademyArticle is a parsed academy article.
type AcademyArticle struct {
	Identifier string    `json:"identifier"`
	Manual     string    `json:"manual,omitempty"`
	Title      string    `json:"title"`
	Body       string    `json:"body"`
	Examples   string    `json:"examples"`
	Strategies string    `json:"strategies"`
	Sections   []Section `json:"sections,omitempty"`
}

// Section returns the named section's content, or "".
func (a AcademyArticle) Section(name string) string {
	return document{sections: a.Sections}.find(name)
}

// ParseAcademyArticle parses an article body such as
// "translate/figs-metaphor/01.md". The manual and identifier come from the
// path.
func ParseAcademyArticle(p, content string) AcademyArticle {
	doc := splitMarkdown(content)
	manual, id := academyPath(p)
	return AcademyArticle{
		Identifier: id,
		Manual:     manual,
		Title:      doc.title,
		Body:       doc.body,
		Examples:   doc.find("Examples"),
		Strategies: doc.find("Translation Strategies"),
		Sections:   doc.sections,
	}
}

func academyPath(p string) (manual, id string) {
	segments := strings.Split(strings.Trim(p, "/"), "/")
	if n := len(segments); n > 0 && strings.HasSuffix(segments[n-1], ".md") {
		segments = segments[:n-1]
	}
	switch len(segments) {
	case 0:
		return "", ""
	case 1:
		return "", segments[0]
	default:
		return segments[len(segments)-2], segments[len(segments)-1]
	}
}
