// Package resource describes the translation resource types: which
// repository identifiers back them and which filenames hold a given book.
package resource

import (
	"fmt"
	"strings"

	"github.com/FocuswithJustin/JuniperHelps/core/errors"
)

// Type is one category of translation material.
type Type string

const (
	ULT Type = "ult" // literal text
	UST Type = "ust" // simplified text
	TN  Type = "tn"  // notes
	TWL Type = "twl" // word links
	TQ  Type = "tq"  // questions
	TA  Type = "ta"  // academy articles
	TW  Type = "tw"  // word definitions
)

// Kind selects the processor for a type.
type Kind int

const (
	KindScripture Kind = iota
	KindTable
	KindArticle
)

// Config describes how one resource type is found.
type Config struct {
	Type        Type
	Kind        Kind
	Identifiers []string // Primary first, then backups
	// Patterns produces filename candidates for a book; nil for types that
	// are not split per book.
	Patterns func(book Book, language string) []string
}

// BookSpecific reports whether the type has one file per book.
func (c Config) BookSpecific() bool {
	return c.Patterns != nil
}

// Candidates returns the ordered filename candidates for a book code.
// Unknown books fall back to code-only patterns.
func (c Config) Candidates(book, language string) []string {
	if c.Patterns == nil {
		return nil
	}
	b, ok := LookupBook(book)
	if !ok {
		b = Book{Code: strings.ToUpper(book)}
	}
	return dedupe(c.Patterns(b, language))
}

// RepositoryNames returns "{lang}_{id}" for each identifier, primary first.
func (c Config) RepositoryNames(language string) []string {
	names := make([]string, 0, len(c.Identifiers))
	for _, id := range c.Identifiers {
		names = append(names, RepositoryName(language, id))
	}
	return names
}

// RepositoryName builds the repository name for an identifier.
func RepositoryName(language, identifier string) string {
	return strings.ToLower(language) + "_" + strings.ToLower(identifier)
}

var configs = map[Type]Config{
	ULT: {Type: ULT, Kind: KindScripture, Identifiers: []string{"ult", "glt", "ulb"}, Patterns: scripturePatterns},
	UST: {Type: UST, Kind: KindScripture, Identifiers: []string{"ust", "gst", "udb"}, Patterns: scripturePatterns},
	TN:  {Type: TN, Kind: KindTable, Identifiers: []string{"tn"}, Patterns: tablePatterns("tn")},
	TWL: {Type: TWL, Kind: KindTable, Identifiers: []string{"twl"}, Patterns: tablePatterns("twl")},
	TQ:  {Type: TQ, Kind: KindTable, Identifiers: []string{"tq"}, Patterns: tablePatterns("tq")},
	TA:  {Type: TA, Kind: KindArticle, Identifiers: []string{"ta"}},
	TW:  {Type: TW, Kind: KindArticle, Identifiers: []string{"tw"}},
}

// Lookup returns the configuration of a type.
func Lookup(t Type) (Config, bool) {
	c, ok := configs[t]
	return c, ok
}

// AllTypes lists every known type in a stable order.
func AllTypes() []Type {
	return []Type{ULT, UST, TN, TWL, TQ, TA, TW}
}

// BookTypes lists the types assembled into a book package.
func BookTypes() []Type {
	return []Type{ULT, UST, TN, TWL, TQ}
}

// ParseType validates a type name.
func ParseType(s string) (Type, error) {
	t := Type(strings.ToLower(strings.TrimSpace(s)))
	if _, ok := configs[t]; !ok {
		return "", errors.NewValidation("type", fmt.Sprintf("unknown resource type %q", s))
	}
	return t, nil
}

// ParseTypes parses a comma-separated list; empty input yields BookTypes.
func ParseTypes(s string) ([]Type, error) {
	if strings.TrimSpace(s) == "" {
		return BookTypes(), nil
	}
	var types []Type
	seen := make(map[Type]bool)
	for _, part := range strings.Split(s, ",") {
		if strings.TrimSpace(part) == "" {
			continue
		}
		t, err := ParseType(part)
		if err != nil {
			return nil, err
		}
		if !seen[t] {
			seen[t] = true
			types = append(types, t)
		}
	}
	return types, nil
}

// scripturePatterns: 32-JON.usfm, 32-jon.usfm, JON.usfm, jon.usfm.
func scripturePatterns(b Book, _ string) []string {
	lower := strings.ToLower(b.Code)
	var out []string
	if b.Number > 0 {
		out = append(out,
			fmt.Sprintf("%02d-%s.usfm", b.Number, b.Code),
			fmt.Sprintf("%02d-%s.usfm", b.Number, lower),
		)
	}
	return append(out, b.Code+".usfm", lower+".usfm")
}

// tablePatterns: tn_JON.tsv, tn_jon.tsv, then the older en_tn_32-JON.tsv.
func tablePatterns(prefix string) func(Book, string) []string {
	return func(b Book, language string) []string {
		lower := strings.ToLower(b.Code)
		out := []string{
			fmt.Sprintf("%s_%s.tsv", prefix, b.Code),
			fmt.Sprintf("%s_%s.tsv", prefix, lower),
		}
		if b.Number > 0 && language != "" {
			out = append(out, fmt.Sprintf("%s_%s_%02d-%s.tsv", strings.ToLower(language), prefix, b.Number, b.Code))
		}
		return out
	}
}

func dedupe(in []string) []string {
	seen := make(map[string]bool, len(in))
	out := in[:0]
	for _, s := range in {
		if !seen[s] {
			seen[s] = true
			out = append(out, s)
		}
	}
	return out
}
