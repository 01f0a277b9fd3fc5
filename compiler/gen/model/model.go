// Package model renders the entity and enum types of an operation set as
// data models in each target language. Field lists come solely from the
// entity type of the operation set, so every language carries the same
// wire names in the same order.
package model

import (
	"bytes"
	"embed"
	"strconv"
	"strings"
	"text/template"

	"github.com/syssam/hubgen/compiler/gen"
)

//go:embed template/*.tmpl
var templateFS embed.FS

var templates = template.Must(template.New("model").ParseFS(templateFS, "template/*.tmpl"))

// execute renders a named template. Templates receive fully resolved view
// data and make no decisions of their own.
func execute(name string, data any) ([]byte, error) {
	var buf bytes.Buffer
	if err := templates.ExecuteTemplate(&buf, name, data); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// artifact renders a template into an artifact, wrapping failures.
func artifact(target gen.Target, entity, path, name string, data any) (*gen.Artifact, error) {
	b, err := execute(name, data)
	if err != nil {
		return nil, gen.NewGenerationError(target.Name, entity, path, "render "+name, err)
	}
	return &gen.Artifact{Path: path, Content: b}, nil
}

// refs returns the entity and enum type names the fields reference,
// excluding self, in first-use order.
func refs(t *gen.ObjectType) (entities, enums []string) {
	seen := map[string]bool{t.Name: true}
	for _, f := range t.Fields {
		if seen[f.Type.Name] {
			continue
		}
		switch f.Type.Kind {
		case gen.KindEntity:
			entities = append(entities, f.Type.Name)
		case gen.KindEnum:
			enums = append(enums, f.Type.Name)
		default:
			continue
		}
		seen[f.Type.Name] = true
	}
	return entities, enums
}

// uniqueNames resolves clashes between sanitized member names by suffixing
// a counter.
func uniqueNames(names []string) []string {
	seen := make(map[string]int, len(names))
	out := make([]string, len(names))
	for i, n := range names {
		seen[n]++
		if c := seen[n]; c > 1 {
			n += "_" + strconv.Itoa(c)
		}
		out[i] = n
	}
	return out
}

// description flattens a description onto one line.
func description(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
