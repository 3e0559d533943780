package gen

import (
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// reservedWords cannot be used as generated parameter or type identifiers:
// Go keywords, predeclared identifiers, and the names generated methods use
// for their own receivers, locals and imports.
var reservedWords = map[string]struct{}{
	"break": {}, "case": {}, "chan": {}, "const": {}, "continue": {},
	"default": {}, "defer": {}, "else": {}, "fallthrough": {}, "for": {},
	"func": {}, "go": {}, "goto": {}, "if": {}, "import": {},
	"interface": {}, "map": {}, "package": {}, "range": {}, "return": {},
	"select": {}, "struct": {}, "switch": {}, "type": {}, "var": {},

	"any": {}, "bool": {}, "byte": {}, "error": {}, "float64": {}, "int": {},
	"rune": {}, "string": {}, "true": {}, "false": {}, "nil": {}, "iota": {},
	"append": {}, "cap": {}, "clear": {}, "close": {}, "copy": {}, "delete": {},
	"len": {}, "make": {}, "max": {}, "min": {}, "new": {}, "panic": {}, "recover": {},

	"api": {}, "ctx": {}, "err": {}, "out": {}, "search": {}, "body": {},
	"apiclient": {}, "context": {}, "time": {}, "json": {},
}

var nonIdentChars = regexp.MustCompile(`[^a-zA-Z0-9]`)

// NormalizeIdentifier turns an arbitrary name into an identifier: the
// named-schema pointer prefix and apostrophes are removed, other
// non-alphanumerics become underscores, and a leading digit gets an underscore
// prefix. With asVar, reserved words get an underscore suffix.
func NormalizeIdentifier(val string, asVar bool) string {
	name := strings.Replace(val, "#/components/schemas/", "", 1)
	name = strings.ReplaceAll(name, "'", "")
	name = nonIdentChars.ReplaceAllString(name, "_")
	if name == "" {
		return "_"
	}
	if name[0] >= '0' && name[0] <= '9' {
		name = "_" + name
	}
	if _, ok := reservedWords[name]; ok && asVar {
		name += "_"
	}
	return name
}

// IsReserved reports whether name collides with a reserved word.
func IsReserved(name string) bool {
	_, ok := reservedWords[name]
	return ok
}

func upperFirst(s string) string {
	r, size := utf8.DecodeRuneInString(s)
	if r == utf8.RuneError || !unicode.IsLower(r) {
		return s
	}
	return cases.Upper(language.Und).String(s[:size]) + s[size:]
}

func lowerFirst(s string) string {
	r, size := utf8.DecodeRuneInString(s)
	if r == utf8.RuneError || !unicode.IsUpper(r) {
		return s
	}
	return cases.Lower(language.Und).String(s[:size]) + s[size:]
}

// UpperFirst upper-cases the first letter of s.
func UpperFirst(s string) string { return upperFirst(s) }
