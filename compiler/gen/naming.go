package gen

import (
	"strings"
	"unicode"

	"github.com/go-openapi/inflect"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

var rules = ruleset()

func ruleset() *inflect.Ruleset {
	r := inflect.NewDefaultRuleset()
	for _, w := range []string{"status", "data", "metadata"} {
		r.AddUncountable(w)
	}
	return r
}

// initialisms are rendered upper-case in Go identifiers.
var initialisms = map[string]bool{
	"ACL": true, "API": true, "ARN": true, "CPU": true, "DNS": true,
	"HTML": true, "HTTP": true, "HTTPS": true, "ID": true, "IP": true,
	"JSON": true, "SQL": true, "TTL": true, "URI": true, "URL": true,
	"UUID": true, "XML": true,
}

// words splits an identifier on separators and case boundaries:
// "ownerId" -> [owner Id], "URLCheck" -> [URL Check], "owner_id" -> [owner id].
func words(s string) []string {
	var (
		out []string
		cur []rune
	)
	rs := []rune(s)
	flush := func() {
		if len(cur) > 0 {
			out = append(out, string(cur))
			cur = cur[:0]
		}
	}
	for i, r := range rs {
		switch {
		case r == '_' || r == '-' || r == '.' || r == ' ' || r == '/':
			flush()
			continue
		case unicode.IsUpper(r) && len(cur) > 0:
			prev := rs[i-1]
			nextLower := i+1 < len(rs) && unicode.IsLower(rs[i+1])
			if unicode.IsLower(prev) || unicode.IsDigit(prev) || (unicode.IsUpper(prev) && nextLower) {
				flush()
			}
		}
		cur = append(cur, r)
	}
	flush()
	return out
}

// Pascal converts an identifier to PascalCase without touching the
// remaining letters of each word: "ownerId" -> "OwnerId".
func Pascal(s string) string {
	title := cases.Title(language.English, cases.NoLower)
	var b strings.Builder
	for _, w := range words(s) {
		b.WriteString(title.String(w))
	}
	return b.String()
}

// LowerCamel converts an identifier to lowerCamelCase: "Deactivate" ->
// "deactivate", "URLCheck" -> "urlCheck".
func LowerCamel(s string) string {
	ws := words(s)
	if len(ws) == 0 {
		return ""
	}
	ws[0] = strings.ToLower(ws[0])
	title := cases.Title(language.English, cases.NoLower)
	for i := 1; i < len(ws); i++ {
		ws[i] = title.String(ws[i])
	}
	return strings.Join(ws, "")
}

// Snake converts an identifier to snake_case: "WidgetStatus" -> "widget_status".
func Snake(s string) string {
	ws := words(s)
	for i, w := range ws {
		ws[i] = strings.ToLower(w)
	}
	return strings.Join(ws, "_")
}

// GoName returns the exported Go identifier for s, applying common
// initialisms: "ownerId" -> "OwnerID".
func GoName(s string) string {
	title := cases.Title(language.English)
	var b strings.Builder
	for _, w := range words(s) {
		if up := strings.ToUpper(w); initialisms[up] {
			b.WriteString(up)
			continue
		}
		b.WriteString(title.String(w))
	}
	name := b.String()
	if name == "" || unicode.IsDigit(rune(name[0])) {
		name = "X" + name
	}
	return name
}

// Plural returns the plural form of a PascalCase name: "Widget" -> "Widgets".
func Plural(s string) string {
	ws := words(s)
	if len(ws) == 0 {
		return s
	}
	last := ws[len(ws)-1]
	return strings.TrimSuffix(s, last) + rules.Pluralize(last)
}
