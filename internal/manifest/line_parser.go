package manifest

import (
	"fmt"
	"strings"

	"github.com/FocuswithJustin/JuniperHelps/core/errors"
)

// LineParser reads the constrained manifest subset line by line, tracking
// indentation. It understands:
//
//	dublin_core:
//	  identifier: 'ult'      # only at the block's direct-child indent
//	projects:
//	  - identifier: 'jon'
//	    title: 'Jonah'
//	    path: './32-JON.usfm'
//
// Nested maps and lists inside a project are skipped. Anything else is ignored.
type LineParser struct{}

// NewLineParser returns the default manifest parser.
func NewLineParser() *LineParser {
	return &LineParser{}
}

type section int

const (
	sectionNone section = iota
	sectionDublinCore
	sectionProjects
)

// Parse implements Parser.
func (p *LineParser) Parse(data []byte) (Manifest, error) {
	var (
		m          Manifest
		sec        section
		childInd   = -1 // dublin_core direct-child indent
		dashInd    = -1 // indent of project list dashes
		keyInd     = -1 // indent of keys within a project
		current    *Project
		recognized bool
	)

	flush := func() {
		if current != nil && (current.Identifier != "" || current.Path != "") {
			m.Projects = append(m.Projects, *current)
		}
		current = nil
	}

	for lineNo, raw := range strings.Split(string(data), "\n") {
		line := stripComment(strings.TrimRight(raw, " \t\r"))
		if strings.TrimSpace(line) == "" {
			continue
		}
		if strings.HasPrefix(line, "\t") {
			return m, errors.NewParse("manifest", "", fmt.Sprintf("line %d: tab indentation", lineNo+1))
		}
		indent := len(line) - len(strings.TrimLeft(line, " "))
		text := line[indent:]

		// Projects may list their dashes at column zero.
		if indent == 0 && (sec != sectionProjects || !strings.HasPrefix(text, "-")) {
			flush()
			key, _, _ := splitKey(text)
			switch key {
			case "dublin_core":
				sec, childInd, recognized = sectionDublinCore, -1, true
			case "projects":
				sec, dashInd, keyInd, recognized = sectionProjects, -1, -1, true
			default:
				sec = sectionNone
			}
			continue
		}

		switch sec {
		case sectionDublinCore:
			if childInd < 0 {
				childInd = indent
			}
			if indent != childInd {
				continue
			}
			if key, value, ok := splitKey(text); ok && key == "identifier" {
				m.Identifier = unquote(value)
			}

		case sectionProjects:
			if strings.HasPrefix(text, "-") {
				if dashInd < 0 {
					dashInd = indent
				}
				if indent != dashInd {
					continue // nested list inside a project
				}
				flush()
				current = &Project{}
				rest := strings.TrimLeft(text[1:], " ")
				if rest == "" {
					keyInd = -1
					continue
				}
				keyInd = indent + (len(text) - len(rest))
				p.setField(current, rest)
				continue
			}
			if current == nil {
				continue
			}
			if keyInd < 0 {
				keyInd = indent
			}
			if indent == keyInd {
				p.setField(current, text)
			}
		}
	}
	flush()

	if !recognized && len(strings.TrimSpace(string(data))) > 0 {
		return m, errors.NewParse("manifest", "", "no dublin_core or projects block")
	}
	return m, nil
}

func (p *LineParser) setField(proj *Project, text string) {
	key, value, ok := splitKey(text)
	if !ok {
		return
	}
	switch key {
	case "identifier":
		proj.Identifier = unquote(value)
	case "title":
		proj.Title = unquote(value)
	case "path":
		proj.Path = cleanPath(unquote(value))
	}
}

// splitKey splits "key: value". ok is false when the line is not a mapping.
func splitKey(text string) (key, value string, ok bool) {
	k, v, found := strings.Cut(text, ":")
	if !found {
		return "", "", false
	}
	return strings.TrimSpace(k), strings.TrimSpace(v), true
}

func unquote(v string) string {
	v = strings.TrimSpace(v)
	if len(v) >= 2 {
		if (v[0] == '\'' && v[len(v)-1] == '\'') || (v[0] == '"' && v[len(v)-1] == '"') {
			return v[1 : len(v)-1]
		}
	}
	return v
}

// stripComment drops a trailing "# ..." that is not inside quotes.
func stripComment(line string) string {
	var quote byte
	for i := 0; i < len(line); i++ {
		c := line[i]
		switch {
		case quote != 0:
			if c == quote {
				quote = 0
			}
		case c == '\'' || c == '"':
			quote = c
		case c == '#' && (i == 0 || line[i-1] == ' ' || line[i-1] == '\t'):
			return strings.TrimRight(line[:i], " \t")
		}
	}
	return line
}
