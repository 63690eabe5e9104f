package dcs

import (
	"encoding/json"
	"strings"
	"time"

	"github.com/FocuswithJustin/JuniperHelps/core/errors"
)

// DefaultRef is used when a repository advertises neither a tag nor a branch.
const DefaultRef = "master"

// Repository is a content repository descriptor.
type Repository struct {
	Name          string    `json:"name"`
	Owner         string    `json:"owner"`
	FullName      string    `json:"full_name"`
	DefaultBranch string    `json:"default_branch"`
	TagOrBranch   string    `json:"branch_or_tag_name"`
	Subject       string    `json:"subject,omitempty"`
	Stage         string    `json:"stage,omitempty"`
	HTMLURL       string    `json:"html_url,omitempty"`
	UpdatedAt     time.Time `json:"updated_at,omitzero"`
}

// Refs returns the refs to try when fetching a file: the tag hint, the
// default branch, then master and main. Duplicates are removed.
func (r Repository) Refs() []string {
	candidates := []string{r.TagOrBranch, r.DefaultBranch, "master", "main"}
	refs := make([]string, 0, len(candidates))
	seen := make(map[string]bool, len(candidates))
	for _, ref := range candidates {
		if ref == "" || seen[ref] {
			continue
		}
		seen[ref] = true
		refs = append(refs, ref)
	}
	return refs
}

// wireRepository is the descriptor as the service sends it. Catalog entries
// carry owner as a plain string, repository lookups as {"login": ...}.
type wireRepository struct {
	Name          string          `json:"name"`
	Owner         json.RawMessage `json:"owner"`
	FullName      string          `json:"full_name"`
	DefaultBranch string          `json:"default_branch"`
	TagOrBranch   string          `json:"branch_or_tag_name"`
	Subject       string          `json:"subject"`
	Stage         string          `json:"stage"`
	HTMLURL       string          `json:"html_url"`
	UpdatedAt     string          `json:"updated_at"`
}

func decodeRepository(data []byte) (Repository, error) {
	var w wireRepository
	if err := json.Unmarshal(data, &w); err != nil {
		return Repository{}, errors.NewParse("json", "repository", err.Error())
	}

	owner := decodeOwner(w.Owner)
	if owner == "" && w.FullName != "" {
		owner, _, _ = strings.Cut(w.FullName, "/")
	}
	if w.Name == "" || owner == "" {
		return Repository{}, errors.NewParse("json", "repository", "descriptor missing name or owner")
	}

	repo := Repository{
		Name:          w.Name,
		Owner:         owner,
		FullName:      w.FullName,
		DefaultBranch: w.DefaultBranch,
		TagOrBranch:   w.TagOrBranch,
		Subject:       w.Subject,
		Stage:         w.Stage,
		HTMLURL:       w.HTMLURL,
	}
	if repo.FullName == "" {
		repo.FullName = owner + "/" + w.Name
	}
	if repo.DefaultBranch == "" {
		repo.DefaultBranch = DefaultRef
	}
	if repo.TagOrBranch == "" {
		repo.TagOrBranch = repo.DefaultBranch
	}
	if w.UpdatedAt != "" {
		if t, err := time.Parse(time.RFC3339, w.UpdatedAt); err == nil {
			repo.UpdatedAt = t
		}
	}
	return repo, nil
}

func decodeOwner(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}
	var login string
	if err := json.Unmarshal(raw, &login); err == nil {
		return login
	}
	var obj struct {
		Login    string `json:"login"`
		Username string `json:"username"`
	}
	if err := json.Unmarshal(raw, &obj); err == nil {
		if obj.Login != "" {
			return obj.Login
		}
		return obj.Username
	}
	return ""
}
