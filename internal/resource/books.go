package resource

import (
	"fmt"
	"strings"
)

// Book is one canonical book with its USFM file number.
type Book struct {
	Code      string // USFM code, e.g. "JON"
	Name      string
	Number    int // File number used in "32-JON.usfm"; the New Testament starts at 41
	Testament string
}

// FilePrefix returns the zero-padded number and code, e.g. "32-JON".
func (b Book) FilePrefix() string {
	return fmt.Sprintf("%02d-%s", b.Number, b.Code)
}

var books = []Book{
	{"GEN", "Genesis", 1, "OT"}, {"EXO", "Exodus", 2, "OT"}, {"LEV", "Leviticus", 3, "OT"},
	{"NUM", "Numbers", 4, "OT"}, {"DEU", "Deuteronomy", 5, "OT"}, {"JOS", "Joshua", 6, "OT"},
	{"JDG", "Judges", 7, "OT"}, {"RUT", "Ruth", 8, "OT"}, {"1SA", "1 Samuel", 9, "OT"},
	{"2SA", "2 Samuel", 10, "OT"}, {"1KI", "1 Kings", 11, "OT"}, {"2KI", "2 Kings", 12, "OT"},
	{"1CH", "1 Chronicles", 13, "OT"}, {"2CH", "2 Chronicles", 14, "OT"}, {"EZR", "Ezra", 15, "OT"},
	{"NEH", "Nehemiah", 16, "OT"}, {"EST", "Esther", 17, "OT"}, {"JOB", "Job", 18, "OT"},
	{"PSA", "Psalms", 19, "OT"}, {"PRO", "Proverbs", 20, "OT"}, {"ECC", "Ecclesiastes", 21, "OT"},
	{"SNG", "Song of Solomon", 22, "OT"}, {"ISA", "Isaiah", 23, "OT"}, {"JER", "Jeremiah", 24, "OT"},
	{"LAM", "Lamentations", 25, "OT"}, {"EZK", "Ezekiel", 26, "OT"}, {"DAN", "Daniel", 27, "OT"},
	{"HOS", "Hosea", 28, "OT"}, {"JOL", "Joel", 29, "OT"}, {"AMO", "Amos", 30, "OT"},
	{"OBA", "Obadiah", 31, "OT"}, {"JON", "Jonah", 32, "OT"}, {"MIC", "Micah", 33, "OT"},
	{"NAM", "Nahum", 34, "OT"}, {"HAB", "Habakkuk", 35, "OT"}, {"ZEP", "Zephaniah", 36, "OT"},
	{"HAG", "Haggai", 37, "OT"}, {"ZEC", "Zechariah", 38, "OT"}, {"MAL", "Malachi", 39, "OT"},
	{"MAT", "Matthew", 41, "NT"}, {"MRK", "Mark", 42, "NT"}, {"LUK", "Luke", 43, "NT"},
	{"JHN", "John", 44, "NT"}, {"ACT", "Acts", 45, "NT"}, {"ROM", "Romans", 46, "NT"},
	{"1CO", "1 Corinthians", 47, "NT"}, {"2CO", "2 Corinthians", 48, "NT"}, {"GAL", "Galatians", 49, "NT"},
	{"EPH", "Ephesians", 50, "NT"}, {"PHP", "Philippians", 51, "NT"}, {"COL", "Colossians", 52, "NT"},
	{"1TH", "1 Thessalonians", 53, "NT"}, {"2TH", "2 Thessalonians", 54, "NT"}, {"1TI", "1 Timothy", 55, "NT"},
	{"2TI", "2 Timothy", 56, "NT"}, {"TIT", "Titus", 57, "NT"}, {"PHM", "Philemon", 58, "NT"},
	{"HEB", "Hebrews", 59, "NT"}, {"JAS", "James", 60, "NT"}, {"1PE", "1 Peter", 61, "NT"},
	{"2PE", "2 Peter", 62, "NT"}, {"1JN", "1 John", 63, "NT"}, {"2JN", "2 John", 64, "NT"},
	{"3JN", "3 John", 65, "NT"}, {"JUD", "Jude", 66, "NT"}, {"REV", "Revelation", 67, "NT"},
}

var booksByCode = func() map[string]Book {
	m := make(map[string]Book, len(books))
	for _, b := range books {
		m[b.Code] = b
	}
	return m
}()

// Books returns the canonical book list in order.
func Books() []Book {
	out := make([]Book, len(books))
	copy(out, books)
	return out
}

// LookupBook finds a book by code, case-insensitively.
func LookupBook(code string) (Book, bool) {
	b, ok := booksByCode[strings.ToUpper(strings.TrimSpace(code))]
	return b, ok
}
