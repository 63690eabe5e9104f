// Package processor converts fetched resource files into structured data.
//
// Processors are pure and never fail hard: malformed input degrades to a
// partial or empty result, and Process logs the reason.
package processor

import (
	"log/slog"

	"github.com/FocuswithJustin/JuniperHelps/internal/logging"
	"github.com/FocuswithJustin/JuniperHelps/internal/resource"
)

// Output is the processed form of one resource file. Exactly one field is
// set, chosen by the resource type.
type Output struct {
	Scripture *Scripture      `json:"scripture,omitempty"`
	Notes     []Note          `json:"notes,omitempty"`
	WordLinks []WordLink      `json:"wordLinks,omitempty"`
	Questions []Question      `json:"questions,omitempty"`
	Word      *WordArticle    `json:"word,omitempty"`
	Article   *AcademyArticle `json:"article,omitempty"`
}

var expectedColumns = map[resource.Type][]string{
	resource.TN:  {"Reference", "ID", "Tags", "SupportReference", "Quote", "Occurrence", "Note"},
	resource.TWL: {"Reference", "ID", "Tags", "OrigWords", "Occurrence", "TWLink"},
	resource.TQ:  {"Reference", "ID", "Tags", "Quote", "Occurrence", "Question", "Response"},
}

// Process runs the processor for t over one file.
func Process(logger *slog.Logger, t resource.Type, path, content string) Output {
	logger = logging.OrDefault(logger)

	var (
		out Output
		err error
	)
	switch t {
	case resource.ULT, resource.UST:
		s := ParseScripture(path, content)
		out.Scripture = &s
	case resource.TN:
		out.Notes, err = ParseNotes(content)
	case resource.TWL:
		out.WordLinks, err = ParseWordLinks(content)
	case resource.TQ:
		out.Questions, err = ParseQuestions(content)
	case resource.TW:
		w := ParseWordArticle(path, content)
		out.Word = &w
	case resource.TA:
		a := ParseAcademyArticle(path, content)
		out.Article = &a
	default:
		logger.Warn("no processor for resource type", "type", t, "path", path)
		return out
	}

	if err != nil {
		logger.Warn("resource processed with errors", "type", t, "path", path, "error", err)
	} else if cols, ok := expectedColumns[t]; ok && !hasHeader(content, cols) {
		logger.Warn("unexpected table header", "type", t, "path", path, "expected", cols)
	}
	return out
}

func hasHeader(content string, cols []string) bool {
	t, _ := ParseTSV(firstLine(content))
	return t.HasColumns(cols...)
}

func firstLine(s string) string {
	for i := 0; i < len(s); i++ {
		if s[i] == '\n' {
			return s[:i]
		}
	}
	return s
}
