package markup

import (
	"regexp"
	"strconv"
	"strings"
)

var (
	attrRegex     = regexp.MustCompile(`([A-Za-z][\w-]*)="([^"]*)"`)
	verseNumRegex = regexp.MustCompile(`^(\d+[a-z]?(?:-\d+[a-z]?)?)`)
	chapterRegex  = regexp.MustCompile(`^(\d+)`)
	zalnStart     = regexp.MustCompile(`\\zaln-s\b`)
	zalnEnd       = regexp.MustCompile(`\\zaln-e\\\*`)
)

// Markers whose whole line is not verse text; a trailing level digit is
// ignored ("s5", "toc2").
var lineMarkers = map[string]bool{
	"id": true, "ide": true, "usfm": true, "h": true, "rem": true, "sts": true,
	"toc": true, "toca": true, "mt": true, "ms": true, "mr": true, "s": true, "r": true,
	"cl": true, "cp": true, "cd": true, "d": true, "sp": true, "imt": true, "is": true,
	"ip": true, "io": true, "iot": true,
}

func isLineMarker(name string) bool {
	return lineMarkers[strings.TrimRight(name, "0123456789")]
}

// Paired character markers whose content is dropped.
var skipMarkers = map[string]bool{
	"f": true, "fe": true, "x": true, "ef": true, "ex": true, "fig": true,
}

// HasAlignmentMarkersUSFM reports whether content holds paired zaln
// milestones.
func HasAlignmentMarkersUSFM(content string) bool {
	return zalnStart.MatchString(content) && zalnEnd.MatchString(content)
}

// ParseUSFM splits USFM content into verse token trees. book names the verse
// references; when it is empty the \id line is used.
func ParseUSFM(book, content string) []Verse {
	b := &treeBuilder{book: strings.ToUpper(book)}
	s := content
	atLineStart := true

	for len(s) > 0 {
		if s[0] != '\\' {
			end := strings.IndexByte(s, '\\')
			if end < 0 {
				end = len(s)
			}
			b.text(normalizeSpace(s[:end]))
			atLineStart = strings.HasSuffix(s[:end], "\n")
			s = s[end:]
			continue
		}

		name, closing, rest := readMarker(s[1:])
		lineStart := atLineStart
		atLineStart = false
		s = rest

		switch {
		case name == "" && closing:
			// Stray "\*" closing a milestone that was already consumed.

		case name == "":
			b.text("\\")

		case name == "id":
			line, after := cutLine(s)
			if fields := strings.Fields(line); len(fields) > 0 && b.book == "" {
				b.book = strings.ToUpper(fields[0])
			}
			s, atLineStart = after, true

		case name == "c":
			s = strings.TrimLeft(s, " ")
			if m := chapterRegex.FindString(s); m != "" {
				b.endVerse()
				b.chapter, _ = strconv.Atoi(m)
				s = s[len(m):]
			}

		case name == "v":
			s = strings.TrimLeft(s, " ")
			if m := verseNumRegex.FindString(s); m != "" {
				b.startVerse(m)
				s = strings.TrimPrefix(s[len(m):], " ")
			}

		case name == "zaln-s":
			body, after := cutAt(s, `\*`)
			b.openMilestone(sourceFromAttrs(attrLookup(body)))
			s = after

		case name == "zaln-e":
			// Self-closing: "\zaln-e\*".
			s = strings.TrimPrefix(s, `\*`)
			b.closeMilestone()

		case name == "w" || name == "+w":
			if closing {
				continue
			}
			body, after := cutAt(s, `\`+name+`*`)
			text, _, _ := strings.Cut(body, "|")
			b.word(normalizeSpace(strings.TrimSpace(text)))
			s = after

		case skipMarkers[name] && !closing:
			_, after := cutAt(s, `\`+name+`*`)
			s = after

		case isLineMarker(name) && lineStart && !closing:
			_, after := cutLine(s)
			s, atLineStart = after, true

		case strings.HasSuffix(name, "-s") || strings.HasSuffix(name, "-e"):
			// Other milestones (\ts\*, \k-s ...\*) carry no text.
			_, after := cutAt(s, `\*`)
			s = after

		default:
			// Paragraph and character markers: keep their text.
			s = strings.TrimPrefix(s, " ")
		}
	}
	return b.finish()
}

// readMarker reads a marker name after the backslash. closing is set for
// "\name*" forms.
func readMarker(s string) (name string, closing bool, rest string) {
	i := 0
	if i < len(s) && s[i] == '+' {
		i++
	}
	for i < len(s) && (isAlnum(s[i]) || s[i] == '-') {
		i++
	}
	name = s[:i]
	if i < len(s) && s[i] == '*' {
		return name, true, s[i+1:]
	}
	return name, false, s[i:]
}

func isAlnum(c byte) bool {
	return c >= 'a' && c <= 'z' || c >= 'A' && c <= 'Z' || c >= '0' && c <= '9'
}

// cutAt returns the text before sep and the text after it. A missing
// separator consumes the rest of the input.
func cutAt(s, sep string) (string, string) {
	before, after, found := strings.Cut(s, sep)
	if !found {
		return s, ""
	}
	return before, after
}

func cutLine(s string) (string, string) {
	line, after, _ := strings.Cut(s, "\n")
	return line, after
}

func attrLookup(body string) func(string) string {
	attrs := make(map[string]string)
	if _, list, ok := strings.Cut(body, "|"); ok {
		body = list
	}
	for _, m := range attrRegex.FindAllStringSubmatch(body, -1) {
		attrs[m[1]] = m[2]
	}
	return func(k string) string { return attrs[k] }
}

// normalizeSpace folds line breaks into spaces.
func normalizeSpace(s string) string {
	return strings.NewReplacer("\r\n", " ", "\n", " ", "\r", " ").Replace(s)
}
