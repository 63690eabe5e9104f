package markup

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/antchfx/xmlquery"
	"github.com/antchfx/xpath"
)

var (
	zalnStartCount = xpath.MustCompile(`count(//ms[@style='zaln-s'])`)
	zalnEndCount   = xpath.MustCompile(`count(//ms[@style='zaln-e'])`)
)

// Paragraph styles that hold headings rather than verse text.
var headingStyles = map[string]bool{
	"h": true, "toc": true, "toca": true, "mt": true, "ms": true, "mr": true,
	"s": true, "r": true, "d": true, "sp": true, "rem": true, "ide": true,
	"cl": true, "cp": true, "cd": true, "imt": true, "is": true, "ip": true,
}

// HasAlignmentMarkersUSX reports whether a USX document holds paired zaln
// milestones. Malformed XML reports false.
func HasAlignmentMarkersUSX(data []byte) bool {
	doc, err := xmlquery.Parse(bytes.NewReader(data))
	if err != nil {
		return false
	}
	nav := xmlquery.CreateXPathNavigator(doc)
	starts, _ := zalnStartCount.Evaluate(nav).(float64)
	nav.MoveToRoot()
	ends, _ := zalnEndCount.Evaluate(nav).(float64)
	return starts > 0 && ends > 0
}

// ParseUSX splits a USX document into verse token trees.
func ParseUSX(data []byte) ([]Verse, error) {
	doc, err := xmlquery.Parse(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("parsing USX: %w", err)
	}

	b := &treeBuilder{}
	if book := xmlquery.FindOne(doc, "//book[@code]"); book != nil {
		b.book = strings.ToUpper(book.SelectAttr("code"))
	}
	for n := doc.FirstChild; n != nil; n = n.NextSibling {
		walkUSX(b, n)
	}
	return b.finish(), nil
}

func walkUSX(b *treeBuilder, n *xmlquery.Node) {
	switch n.Type {
	case xmlquery.TextNode, xmlquery.CharDataNode:
		b.text(normalizeSpace(n.Data))
		return
	case xmlquery.ElementNode:
	default:
		walkChildren(b, n)
		return
	}

	style := n.SelectAttr("style")
	switch n.Data {
	case "book", "note", "figure", "sidebar":
		return
	case "chapter":
		if num := n.SelectAttr("number"); num != "" {
			b.endVerse()
			fmt.Sscanf(num, "%d", &b.chapter)
		}
		return
	case "verse":
		if num := n.SelectAttr("number"); num != "" {
			b.startVerse(num)
		} else if n.SelectAttr("eid") != "" {
			b.endVerse()
		}
		return
	case "ms":
		switch style {
		case "zaln-s":
			b.openMilestone(sourceFromAttrs(n.SelectAttr))
		case "zaln-e":
			b.closeMilestone()
		}
		return
	case "char":
		if style == "w" {
			b.word(normalizeSpace(strings.TrimSpace(n.InnerText())))
			return
		}
	case "para":
		if headingStyles[strings.TrimRight(style, "0123456789")] {
			return
		}
	}
	walkChildren(b, n)
}

func walkChildren(b *treeBuilder, n *xmlquery.Node) {
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		walkUSX(b, c)
	}
}
