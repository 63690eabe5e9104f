// Package manifest loads and parses repository project manifests.
//
// A manifest maps the project identifiers of a repository (book codes for
// scripture and helps) to the files that hold them. Only the parts the
// resolver needs are read: dublin_core.identifier and the projects list.
package manifest

import (
	"strings"
)

// Manifest is the parsed project manifest of one repository.
type Manifest struct {
	Identifier string    `json:"identifier"`
	Projects   []Project `json:"projects"`
	Filename   string    `json:"filename,omitempty"` // Which filename variant was found
}

// Project is one entry of the projects list.
type Project struct {
	Identifier string `json:"identifier" yaml:"identifier"`
	Title      string `json:"title,omitempty" yaml:"title"`
	Path       string `json:"path" yaml:"path"`
}

// Parser turns manifest bytes into a Manifest. Implementations return the
// best partial result they could build alongside any error.
type Parser interface {
	Parse(data []byte) (Manifest, error)
}

// FindProject matches book against project identifiers and titles, exact
// match first, then case-insensitively. Projects without a path are skipped.
func (m Manifest) FindProject(book string) (Project, bool) {
	book = strings.TrimSpace(book)
	if book == "" {
		return Project{}, false
	}
	for _, p := range m.Projects {
		if p.Path != "" && (p.Identifier == book || p.Title == book) {
			return p, true
		}
	}
	for _, p := range m.Projects {
		if p.Path != "" && (strings.EqualFold(p.Identifier, book) || strings.EqualFold(p.Title, book)) {
			return p, true
		}
	}
	return Project{}, false
}

// cleanPath removes the "./" prefix manifests commonly use.
func cleanPath(p string) string {
	p = strings.TrimSpace(p)
	for strings.HasPrefix(p, "./") {
		p = p[2:]
	}
	return p
}
