package textutil

import (
	"strings"
	"unicode"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"golang.org/x/text/unicode/norm"
)

var titleCaser = cases.Title(language.English)

// NormalizeTitle returns s in Unicode NFC with internal whitespace collapsed
// to single spaces and the ends trimmed. Case is preserved.
func NormalizeTitle(s string) string {
	return strings.Join(strings.Fields(norm.NFC.String(s)), " ")
}

// SplitPath splits a delimited category path into normalized, non-empty
// segments. The delimiter is matched after trimming its surrounding spaces so
// "Dev>Web" and "Dev > Web" split the same way.
func SplitPath(path, delimiter string) []string {
	sep := strings.TrimSpace(delimiter)
	if sep == "" {
		sep = ">"
	}
	parts := strings.Split(path, sep)
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		if seg := NormalizeTitle(part); seg != "" {
			out = append(out, seg)
		}
	}
	return out
}

// JoinPath joins segments with the display delimiter.
func JoinPath(segments []string, delimiter string) string {
	if delimiter == "" {
		delimiter = " > "
	}
	return strings.Join(segments, delimiter)
}

// TitleIfLower title-cases a segment only when it contains no upper-case
// letters, leaving deliberate casing such as "iOS" or "AI" untouched.
func TitleIfLower(s string) string {
	for _, r := range s {
		if unicode.IsUpper(r) {
			return s
		}
	}
	return titleCaser.String(s)
}
