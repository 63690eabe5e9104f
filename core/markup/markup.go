// Package markup turns scripture markup (USFM or USX) into per-verse token
// trees for the alignment extractor.
//
// Only what alignment needs is kept: verse text, \w words and zaln
// milestones. Footnotes, cross references and headings are dropped.
package markup

import (
	"fmt"

	"github.com/FocuswithJustin/JuniperHelps/core/alignment"
)

// Verse is one verse's token tree.
type Verse struct {
	Chapter int              `json:"chapter"`
	Number  string           `json:"number"` // May be a range, e.g. "1-2"
	Ref     string           `json:"ref"`    // "JON 1:3"
	Nodes   []alignment.Node `json:"-"`
}

// Find returns the verse with the given chapter and number.
func Find(verses []Verse, chapter int, number string) (Verse, bool) {
	for _, v := range verses {
		if v.Chapter == chapter && v.Number == number {
			return v, true
		}
	}
	return Verse{}, false
}

func verseRef(book string, chapter int, number string) string {
	return fmt.Sprintf("%s %d:%s", book, chapter, number)
}

// treeBuilder assembles a verse's nodes while milestones open and close.
type treeBuilder struct {
	book    string
	chapter int
	verses  []Verse
	current *Verse
	stack   []*alignment.Node
}

func (b *treeBuilder) startVerse(number string) {
	b.endVerse()
	b.current = &Verse{
		Chapter: b.chapter,
		Number:  number,
		Ref:     verseRef(b.book, b.chapter, number),
	}
}

func (b *treeBuilder) endVerse() {
	if b.current == nil {
		return
	}
	for len(b.stack) > 0 {
		b.closeMilestone()
	}
	b.verses = append(b.verses, *b.current)
	b.current = nil
}

func (b *treeBuilder) add(n alignment.Node) {
	if b.current == nil {
		return
	}
	if len(b.stack) > 0 {
		top := b.stack[len(b.stack)-1]
		top.Children = append(top.Children, n)
		return
	}
	b.current.Nodes = append(b.current.Nodes, n)
}

func (b *treeBuilder) text(s string) {
	if s != "" {
		b.add(alignment.Text(s))
	}
}

func (b *treeBuilder) word(s string) {
	if s != "" {
		b.add(alignment.Word(s))
	}
}

func (b *treeBuilder) openMilestone(src alignment.Source) {
	if b.current == nil {
		return
	}
	b.stack = append(b.stack, &alignment.Node{Kind: alignment.NodeMilestone, Source: src})
}

// closeMilestone attaches the innermost open milestone to its parent.
func (b *treeBuilder) closeMilestone() {
	if len(b.stack) == 0 {
		return
	}
	n := b.stack[len(b.stack)-1]
	b.stack = b.stack[:len(b.stack)-1]
	b.add(*n)
}

func (b *treeBuilder) finish() []Verse {
	b.endVerse()
	return b.verses
}

// sourceFromAttrs reads x-strong/x-lemma/x-content, accepting the unprefixed
// names as well.
func sourceFromAttrs(get func(string) string) alignment.Source {
	pick := func(names ...string) string {
		for _, n := range names {
			if v := get(n); v != "" {
				return v
			}
		}
		return ""
	}
	return alignment.Source{
		Strong:     pick("x-strong", "strong"),
		Lemma:      pick("x-lemma", "lemma"),
		SourceWord: pick("x-content", "content"),
		Morph:      pick("x-morph", "morph"),
	}
}
