// Package alignment extracts word tokens and source-language alignment groups
// from one verse of aligned scripture.
//
// The input is a verse's token tree: text runs, standalone words, and
// milestones that wrap target-language words under one source-language
// attribution (strong number, lemma, source word). Extract walks the tree in
// document order and is pure: identical trees yield identical results.
package alignment

import (
	"fmt"
	"unicode"
)

// NodeKind identifies a token-tree node.
type NodeKind int

const (
	// NodeText is a plain text run.
	NodeText NodeKind = iota
	// NodeWord is a standalone word token.
	NodeWord
	// NodeMilestone wraps children under one source attribution.
	NodeMilestone
)

// Source is a source-language attribution carried by a milestone.
type Source struct {
	Strong     string `json:"strong"`
	Lemma      string `json:"lemma"`
	SourceWord string `json:"sourceWord"`
	Morph      string `json:"morph,omitempty"`
}

func (s Source) empty() bool {
	return s.Strong == "" && s.Lemma == "" && s.SourceWord == ""
}

// Node is one element of a verse token tree.
type Node struct {
	Kind     NodeKind
	Text     string // NodeText, NodeWord
	Source   Source // NodeMilestone
	Children []Node // NodeMilestone
}

// Text returns a text-run node.
func Text(s string) Node { return Node{Kind: NodeText, Text: s} }

// Word returns a standalone word node.
func Word(s string) Node { return Node{Kind: NodeWord, Text: s} }

// Milestone returns a milestone wrapping children.
func Milestone(src Source, children ...Node) Node {
	return Node{Kind: NodeMilestone, Source: src, Children: children}
}

// TokenKind classifies an emitted token.
type TokenKind string

const (
	KindWord        TokenKind = "word"
	KindText        TokenKind = "text"
	KindPunctuation TokenKind = "punctuation"
)

// Span is a half-open character range [Start, End) in the verse text,
// counted in runes.
type Span struct {
	Start int `json:"start"`
	End   int `json:"end"`
}

// WordToken is one whitespace-delimited segment of verse text.
type WordToken struct {
	ID              string    `json:"id"`
	Text            string    `json:"text"`
	Span            Span      `json:"span"`
	WordIndex       int       `json:"wordIndex"`
	IsHighlightable bool      `json:"isHighlightable"`
	Kind            TokenKind `json:"kind"`
	Alignment       *Source   `json:"alignment,omitempty"`
}

// Instance is one occurrence of a group's source word in the target text.
type Instance struct {
	TokenID    string `json:"tokenId"`
	Text       string `json:"text"`
	Position   int    `json:"position"`
	Occurrence int    `json:"occurrence"`
}

// Group collects every target token aligned to one (strong, lemma, source
// word) within a verse.
type Group struct {
	GroupID        string     `json:"groupId"`
	Strong         string     `json:"strong"`
	Lemma          string     `json:"lemma"`
	SourceWord     string     `json:"sourceWord"`
	VerseRef       string     `json:"verseRef"`
	Instances      []Instance `json:"instances"`
	TotalInstances int        `json:"totalInstances"`
	// NonContiguous is set when two consecutive instances are separated by
	// at least one other token.
	NonContiguous bool `json:"nonContiguous"`
}

// MultiInstance reports whether the group has more than one instance,
// whether or not the instances are adjacent.
func (g Group) MultiInstance() bool {
	return g.TotalInstances > 1
}

// Result is the output of Extract.
type Result struct {
	Tokens []WordToken `json:"tokens"`
	Groups []Group     `json:"groups"`
}

type groupKey struct {
	strong, lemma, sourceWord string
}

type extractor struct {
	verseRef string
	offset   int // runes consumed so far
	tokens   []WordToken
	groups   []Group
	index    map[groupKey]int
}

// Extract walks one verse's token tree and returns its tokens and groups.
func Extract(verseRef string, nodes []Node) Result {
	e := &extractor{
		verseRef: verseRef,
		index:    make(map[groupKey]int),
	}
	e.walk(nodes, nil)

	for i := range e.groups {
		e.groups[i].NonContiguous = nonContiguous(e.groups[i].Instances)
	}
	return Result{Tokens: e.tokens, Groups: e.groups}
}

func (e *extractor) walk(nodes []Node, active *Source) {
	for _, n := range nodes {
		switch n.Kind {
		case NodeMilestone:
			ctx := active
			if !n.Source.empty() {
				src := n.Source
				ctx = &src
			}
			e.walk(n.Children, ctx)
		default:
			e.emit(n.Text, active)
		}
	}
}

// emit appends text to the buffer and emits one token per whitespace
// separated segment. Blank runs only advance the buffer.
func (e *extractor) emit(text string, active *Source) {
	segStart := -1
	pos := e.offset
	for _, r := range text {
		if unicode.IsSpace(r) {
			if segStart >= 0 {
				e.token(text, segStart, pos, active)
				segStart = -1
			}
		} else if segStart < 0 {
			segStart = pos
		}
		pos++
	}
	if segStart >= 0 {
		e.token(text, segStart, pos, active)
	}
	e.offset = pos
}

// token emits the segment [start, end) of the buffer; text is the run that
// starts at e.offset.
func (e *extractor) token(text string, start, end int, active *Source) {
	runes := []rune(text)
	segment := string(runes[start-e.offset : end-e.offset])

	idx := len(e.tokens)
	kind := classify(segment)
	tok := WordToken{
		ID:              fmt.Sprintf("%s-token-%d", e.verseRef, idx),
		Text:            segment,
		Span:            Span{Start: start, End: end},
		WordIndex:       idx,
		IsHighlightable: kind != KindPunctuation,
		Kind:            kind,
	}
	if active != nil {
		src := *active
		tok.Alignment = &src
		e.group(tok, src)
	}
	e.tokens = append(e.tokens, tok)
}

func (e *extractor) group(tok WordToken, src Source) {
	key := groupKey{src.Strong, src.Lemma, src.SourceWord}
	gi, ok := e.index[key]
	if !ok {
		e.groups = append(e.groups, Group{
			GroupID:    fmt.Sprintf("%s-group-%d", e.verseRef, len(e.groups)+1),
			Strong:     src.Strong,
			Lemma:      src.Lemma,
			SourceWord: src.SourceWord,
			VerseRef:   e.verseRef,
		})
		gi = len(e.groups) - 1
		e.index[key] = gi
	}
	g := &e.groups[gi]
	g.TotalInstances++
	g.Instances = append(g.Instances, Instance{
		TokenID:    tok.ID,
		Text:       tok.Text,
		Position:   tok.WordIndex,
		Occurrence: g.TotalInstances,
	})
}

// classify: word when every rune is a letter (or combining mark), punctuation
// when there is no letter or digit at all, text otherwise.
func classify(s string) TokenKind {
	letters, digits, other := 0, 0, 0
	for _, r := range s {
		switch {
		case unicode.IsLetter(r), unicode.IsMark(r) && letters > 0:
			letters++
		case unicode.IsDigit(r):
			digits++
		default:
			other++
		}
	}
	switch {
	case letters > 0 && digits == 0 && other == 0:
		return KindWord
	case letters == 0 && digits == 0:
		return KindPunctuation
	default:
		return KindText
	}
}

func nonContiguous(instances []Instance) bool {
	for i := 1; i < len(instances); i++ {
		if instances[i].Position-instances[i-1].Position > 1 {
			return true
		}
	}
	return false
}
