// Package bookpkg assembles every book-specific resource for one
// (organization, language, book) into a single cached package.
package bookpkg

import (
	"strings"
	"time"

	"github.com/FocuswithJustin/JuniperHelps/core/errors"
	"github.com/FocuswithJustin/JuniperHelps/internal/manifest"
	"github.com/FocuswithJustin/JuniperHelps/internal/processor"
	"github.com/FocuswithJustin/JuniperHelps/internal/resource"
)

// Request selects the book and resource types to assemble. An empty Types
// means resource.BookTypes().
type Request struct {
	Book         string          `json:"book"`
	Language     string          `json:"language"`
	Organization string          `json:"organization"`
	Types        []resource.Type `json:"types,omitempty"`
}

// Key returns the cache key "organization/language/BOOK".
func (r Request) Key() string {
	return Key(r.Organization, r.Language, r.Book)
}

// Key builds a package cache key. DCS owner names are case-insensitive, so
// the organization folds to lower case like the language.
func Key(organization, language, book string) string {
	return strings.ToLower(organization) + "/" + strings.ToLower(language) + "/" + strings.ToUpper(book)
}

// Validate checks required fields and that every type is book specific.
func (r Request) Validate() error {
	if r.Organization == "" {
		return errors.NewValidation("organization", "required")
	}
	if r.Language == "" {
		return errors.NewValidation("language", "required")
	}
	if r.Book == "" {
		return errors.NewValidation("book", "required")
	}
	if _, ok := resource.LookupBook(r.Book); !ok {
		return errors.NewValidation("book", "unknown book code "+r.Book)
	}
	for _, t := range r.Types {
		cfg, ok := resource.Lookup(t)
		if !ok {
			return errors.NewValidation("types", "unknown resource type "+string(t))
		}
		if !cfg.BookSpecific() {
			return errors.NewValidation("types", string(t)+" is not split by book")
		}
	}
	return nil
}

func (r Request) types() []resource.Type {
	if len(r.Types) == 0 {
		return resource.BookTypes()
	}
	return r.Types
}

// RepositoryInfo records which repository served a slot.
type RepositoryInfo struct {
	Name     string            `json:"name"`
	URL      string            `json:"url"`
	Ref      string            `json:"ref"`
	Manifest manifest.Manifest `json:"manifest"`
}

// Slot is one resolved resource type.
type Slot struct {
	Type resource.Type `json:"type"`
	// Source is the full name of the repository that served the file; it
	// names the backup when the primary identifier was not found.
	Source      string           `json:"source"`
	Identifier  string           `json:"identifier"`
	Path        string           `json:"path"`
	RawContent  string           `json:"rawContent"`
	Processed   processor.Output `json:"processed"`
	ContentHash string           `json:"contentHash"`
}

// Package is the assembled bundle for one book. A type missing from Slots
// could not be resolved from any candidate; Failures says why.
type Package struct {
	Book         string                           `json:"book"`
	Language     string                           `json:"language"`
	Organization string                           `json:"organization"`
	FetchedAt    time.Time                        `json:"fetchedAt"`
	Repositories map[resource.Type]RepositoryInfo `json:"repositories"`
	Slots        map[resource.Type]Slot           `json:"slots"`
	Failures     map[resource.Type]string         `json:"failures,omitempty"`
}

// Slot returns the slot for t.
func (p *Package) Slot(t resource.Type) (Slot, bool) {
	if p == nil {
		return Slot{}, false
	}
	s, ok := p.Slots[t]
	return s, ok
}

// Types returns the resolved types in resource.AllTypes order.
func (p *Package) Types() []resource.Type {
	var out []resource.Type
	for _, t := range resource.AllTypes() {
		if _, ok := p.Slots[t]; ok {
			out = append(out, t)
		}
	}
	return out
}
