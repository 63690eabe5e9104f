// Package ref parses passage references such as "JON 1:3-5".
package ref

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/alecthomas/participle/v2"
	"github.com/alecthomas/participle/v2/lexer"
)

// Ref is a passage: a book, optionally narrowed to a chapter, verse or range.
type Ref struct {
	// Book is the upper-case USFM book code (e.g., "JON", "1JN").
	Book string `json:"book"`

	// Chapter is 0 for whole-book references.
	Chapter int `json:"chapter,omitempty"`

	// Verse is 0 for whole-chapter references.
	Verse int `json:"verse,omitempty"`

	// EndChapter and EndVerse close a range; zero when the reference is a
	// single verse.
	EndChapter int `json:"end_chapter,omitempty"`
	EndVerse   int `json:"end_verse,omitempty"`
}

// Examples: "JON", "JON 1", "JON 1:3", "jon 1:3-5", "1JN 3:16", "JON 1:17-2:2", "JON.1.3"
//
//nolint:govet // participle grammar tags are not standard struct tags
type refGrammar struct {
	BookPrefix string       `@Int?`
	BookName   string       `@Ident`
	ChapterRef *chapterPart `( "."? @@ )?`
}

//nolint:govet // participle grammar tags are not standard struct tags
type chapterPart struct {
	Chapter  int        `@Int`
	VerseRef *versePart `( ( ":" | "." ) @@ )?`
}

//nolint:govet // participle grammar tags are not standard struct tags
type versePart struct {
	Verse int      `@Int`
	End   *endPart `( "-" @@ )?`
}

//nolint:govet // participle grammar tags are not standard struct tags
type endPart struct {
	First  int  `@Int`
	Second *int `( ":" @Int )?`
}

var refLexer = lexer.MustSimple([]lexer.SimpleRule{
	{Name: "Int", Pattern: `[0-9]+`},
	{Name: "Ident", Pattern: `[A-Za-z]+`},
	{Name: "Punct", Pattern: `[:.\-]`},
	{Name: "Whitespace", Pattern: `\s+`},
})

var refParser = participle.MustBuild[refGrammar](
	participle.Lexer(refLexer),
	participle.Elide("Whitespace"),
)

// Parse parses a passage reference.
func Parse(s string) (Ref, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return Ref{}, fmt.Errorf("empty reference string")
	}

	parsed, err := refParser.ParseString("", s)
	if err != nil {
		return Ref{}, fmt.Errorf("invalid reference format: %q: %w", s, err)
	}

	r := Ref{Book: strings.ToUpper(parsed.BookPrefix + parsed.BookName)}
	if c := parsed.ChapterRef; c != nil {
		r.Chapter = c.Chapter
		if v := c.VerseRef; v != nil {
			r.Verse = v.Verse
			if v.End != nil {
				if v.End.Second != nil {
					r.EndChapter, r.EndVerse = v.End.First, *v.End.Second
				} else {
					r.EndChapter, r.EndVerse = r.Chapter, v.End.First
				}
			}
		}
	}

	if r.EndChapter != 0 && (r.EndChapter < r.Chapter || (r.EndChapter == r.Chapter && r.EndVerse < r.Verse)) {
		return Ref{}, fmt.Errorf("invalid reference format: %q: range ends before it starts", s)
	}
	return r, nil
}

// String formats the reference as "BOOK C:V-V".
func (r Ref) String() string {
	var sb strings.Builder
	sb.WriteString(r.Book)
	if r.Chapter == 0 {
		return sb.String()
	}
	sb.WriteString(" ")
	sb.WriteString(strconv.Itoa(r.Chapter))
	if r.Verse == 0 {
		return sb.String()
	}
	sb.WriteString(":")
	sb.WriteString(strconv.Itoa(r.Verse))
	if r.IsRange() {
		sb.WriteString("-")
		if r.EndChapter != r.Chapter {
			sb.WriteString(strconv.Itoa(r.EndChapter))
			sb.WriteString(":")
		}
		sb.WriteString(strconv.Itoa(r.EndVerse))
	}
	return sb.String()
}

// IsRange reports whether the reference spans more than one verse.
func (r Ref) IsRange() bool {
	return r.EndChapter != 0 && (r.EndChapter != r.Chapter || r.EndVerse != r.Verse)
}

// Contains reports whether chapter:verse falls inside the reference. A verse
// of 0 matches any verse of a chapter the reference touches.
func (r Ref) Contains(chapter, verse int) bool {
	if r.Chapter == 0 {
		return true
	}
	if r.Verse == 0 {
		return chapter == r.Chapter
	}
	endC, endV := r.Chapter, r.Verse
	if r.EndChapter != 0 {
		endC, endV = r.EndChapter, r.EndVerse
	}
	if chapter < r.Chapter || chapter > endC {
		return false
	}
	if verse == 0 {
		return true
	}
	if chapter == r.Chapter && verse < r.Verse {
		return false
	}
	if chapter == endC && verse > endV {
		return false
	}
	return true
}

// MatchesTSV reports whether a helps-table reference ("1:3", "1:3-5",
// "1:intro", "front:intro") overlaps the passage. Introduction rows match
// when their chapter is in range; "front" only matches whole-book passages.
func (r Ref) MatchesTSV(reference string) bool {
	chapterPart, versePart, ok := strings.Cut(strings.TrimSpace(reference), ":")
	if !ok {
		return false
	}
	if chapterPart == "front" {
		return r.Chapter == 0
	}
	chapter, err := strconv.Atoi(chapterPart)
	if err != nil {
		return false
	}
	if versePart == "intro" {
		return r.Contains(chapter, 0)
	}

	startPart, endPart, isRange := strings.Cut(versePart, "-")
	start, err := strconv.Atoi(startPart)
	if err != nil {
		return false
	}
	end := start
	if isRange {
		if end, err = strconv.Atoi(endPart); err != nil {
			end = start
		}
	}
	for v := start; v <= end; v++ {
		if r.Contains(chapter, v) {
			return true
		}
	}
	return false
}
