package processor

import (
	"path"
	"strings"

	"github.com/FocuswithJustin/JuniperHelps/core/markup"
)

// Scripture formats.
const (
	FormatUSFM = "usfm"
	FormatUSX  = "usx"
)

// Scripture is raw scripture markup with its derived flags.
type Scripture struct {
	Raw          string `json:"raw"`
	Format       string `json:"format"`
	HasAlignment bool   `json:"hasAlignment"`
}

// ParseScripture passes markup through and records whether it carries
// paired alignment milestones.
func ParseScripture(p, content string) Scripture {
	s := Scripture{Raw: content, Format: scriptureFormat(p, content)}
	if s.Format == FormatUSX {
		s.HasAlignment = markup.HasAlignmentMarkersUSX([]byte(content))
	} else {
		s.HasAlignment = markup.HasAlignmentMarkersUSFM(content)
	}
	return s
}

// Verses splits the markup into verse token trees. book overrides the \id
// code for USFM; USX always uses its <book> element.
func (s Scripture) Verses(book string) ([]markup.Verse, error) {
	if s.Format == FormatUSX {
		return markup.ParseUSX([]byte(s.Raw))
	}
	return markup.ParseUSFM(book, s.Raw), nil
}

func scriptureFormat(p, content string) string {
	switch strings.ToLower(path.Ext(p)) {
	case ".usx", ".xml":
		return FormatUSX
	case ".usfm", ".sfm":
		return FormatUSFM
	}
	if strings.HasPrefix(strings.TrimSpace(content), "<") {
		return FormatUSX
	}
	return FormatUSFM
}
