package printer

import (
	"bytes"
	"strings"
	"unicode"
)

const maxDescriptionLength = 200

// goName converts a document name to an exported Go identifier: words split
// on non-alphanumerics are capitalized and joined, and a name that does not
// start with a letter gets a T prefix.
func goName(s string) string {
	var b strings.Builder
	upper := true
	for _, r := range s {
		if !unicode.IsLetter(r) && !unicode.IsDigit(r) {
			upper = true
			continue
		}
		if upper {
			r = unicode.ToUpper(r)
			upper = false
		}
		b.WriteRune(r)
	}
	name := b.String()
	if name == "" {
		return "T"
	}
	if first := []rune(name)[0]; !unicode.IsLetter(first) {
		name = "T" + name
	}
	return name
}

// cleanDescription flattens s to one line and truncates it.
func cleanDescription(s string) string {
	s = strings.TrimSpace(strings.ReplaceAll(s, "\n", " "))
	if runes := []rune(s); len(runes) > maxDescriptionLength {
		s = string(runes[:maxDescriptionLength-3]) + "..."
	}
	return s
}

// writeComment writes text as line comments at indent.
func writeComment(b *bytes.Buffer, indent, text string) {
	text = strings.TrimSpace(text)
	if text == "" {
		return
	}
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimRight(line, " \t\r")
		if line == "" {
			b.WriteString(indent + "//\n")
			continue
		}
		b.WriteString(indent + "// " + line + "\n")
	}
}
