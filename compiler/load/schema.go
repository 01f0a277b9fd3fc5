// Package load decodes entity schema documents into typed, position-aware
// structures. It performs no semantic validation; see package gen for that.
package load

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Schema represents one entity schema document as it was written on disk.
type Schema struct {
	Name             string             `yaml:"name"`
	StorageFamily    string             `yaml:"storageFamily"`
	Description      string             `yaml:"description,omitempty"`
	Attributes       []*Attribute       `yaml:"attributes"`
	PrimaryKey       *Key               `yaml:"primaryKey"`
	SecondaryIndexes []*Index           `yaml:"secondaryIndexes,omitempty"`
	CustomOperations []*CustomOperation `yaml:"customOperations,omitempty"`
	AuthConfig       *AuthConfig        `yaml:"authConfig,omitempty"`

	// Path is the file the schema was read from.
	Path string `yaml:"-"`
	// Line of the document root.
	Line int `yaml:"-"`
	// Notes holds non-fatal observations made while decoding,
	// such as comments placed where they are not supported.
	Notes []Note `yaml:"-"`
}

// Note is a non-fatal observation about the document layout.
type Note struct {
	Line    int
	Message string
}

// Attribute is a declared entity attribute. It is also used for
// the input fields of custom operations.
type Attribute struct {
	Name        string       `yaml:"name"`
	Type        string       `yaml:"type"`
	Nullable    bool         `yaml:"nullable,omitempty"`
	SemanticTag string       `yaml:"semanticTag,omitempty"`
	Values      []string     `yaml:"values,omitempty"`
	Auth        []*Directive `yaml:"auth,omitempty"`
	Description string       `yaml:"description,omitempty"`
	Line        int          `yaml:"-"`
}

// Key is the primary key declaration.
type Key struct {
	PartitionKey string `yaml:"partitionKey"`
	SortKey      string `yaml:"sortKey,omitempty"`
	Line         int    `yaml:"-"`
}

// Index is a secondary index declaration.
type Index struct {
	Name         string `yaml:"name"`
	PartitionKey string `yaml:"partitionKey"`
	SortKey      string `yaml:"sortKey,omitempty"`
	Line         int    `yaml:"-"`
}

// CustomOperation is a declared, non-derived operation.
type CustomOperation struct {
	Name        string       `yaml:"name"`
	Root        string       `yaml:"root,omitempty"`
	Keys        []string     `yaml:"keys,omitempty"`
	Input       []*Attribute `yaml:"input,omitempty"`
	Response    string       `yaml:"response,omitempty"`
	Resolver    *Resolver    `yaml:"resolver,omitempty"`
	Auth        []*Directive `yaml:"auth,omitempty"`
	Description string       `yaml:"description,omitempty"`
	Line        int          `yaml:"-"`
}

// Resolver selects how an operation is serviced.
type Resolver struct {
	Kind     string `yaml:"kind"`
	Function string `yaml:"function,omitempty"`
}

// Directive is one auth directive.
type Directive struct {
	Provider string   `yaml:"provider"`
	Groups   []string `yaml:"groups,omitempty"`
}

// AuthConfig holds the entity-level auth defaults.
type AuthConfig struct {
	Default []*Directive `yaml:"default,omitempty"`
}

// UnmarshalYAML records the source line of the attribute.
func (a *Attribute) UnmarshalYAML(n *yaml.Node) error {
	type plain Attribute
	if err := n.Decode((*plain)(a)); err != nil {
		return err
	}
	a.Line = n.Line
	return nil
}

// UnmarshalYAML records the source line of the key.
func (k *Key) UnmarshalYAML(n *yaml.Node) error {
	type plain Key
	if err := n.Decode((*plain)(k)); err != nil {
		return err
	}
	k.Line = n.Line
	return nil
}

// UnmarshalYAML records the source line of the index.
func (i *Index) UnmarshalYAML(n *yaml.Node) error {
	type plain Index
	if err := n.Decode((*plain)(i)); err != nil {
		return err
	}
	i.Line = n.Line
	return nil
}

// UnmarshalYAML records the source line of the operation.
func (c *CustomOperation) UnmarshalYAML(n *yaml.Node) error {
	type plain CustomOperation
	if err := n.Decode((*plain)(c)); err != nil {
		return err
	}
	c.Line = n.Line
	return nil
}

// ErrEmptyDocument is returned for documents without content.
var ErrEmptyDocument = errors.New("load: empty schema document")

// ReadFile reads and decodes the schema document at path.
func ReadFile(path string) (*Schema, error) {
	buf, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read schema %s: %w", path, err)
	}
	return Parse(path, buf)
}

// Parse decodes a YAML or JSON schema document. Unknown top-level keys are
// rejected.
func Parse(path string, buf []byte) (*Schema, error) {
	var doc yaml.Node
	if err := yaml.Unmarshal(buf, &doc); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	if doc.Kind == 0 || len(doc.Content) == 0 {
		return nil, fmt.Errorf("parse %s: %w", path, ErrEmptyDocument)
	}
	root := doc.Content[0]
	if root.Kind != yaml.MappingNode {
		return nil, fmt.Errorf("parse %s:%d: schema document must be a mapping", path, root.Line)
	}
	s := &Schema{Path: path, Line: root.Line}
	dec := yaml.NewDecoder(bytes.NewReader(buf))
	dec.KnownFields(true)
	if err := dec.Decode(s); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	s.Notes = commentNotes(&doc)
	return s, nil
}

// commentNotes reports comments attached to positions the generator does not
// carry forward: trailing comments on top-level keys and document footers.
// Head comments on the document or on list entries are fine.
func commentNotes(doc *yaml.Node) []Note {
	var notes []Note
	if doc.FootComment != "" {
		notes = append(notes, Note{Line: doc.Line, Message: "comment after the document body is not supported"})
	}
	root := doc.Content[0]
	if root.FootComment != "" {
		notes = append(notes, Note{Line: root.Line, Message: "comment after the top-level mapping is not supported"})
	}
	for i := 0; i+1 < len(root.Content); i += 2 {
		key, val := root.Content[i], root.Content[i+1]
		switch {
		case key.LineComment != "" || (val.Kind == yaml.ScalarNode && val.LineComment != ""):
			notes = append(notes, Note{Line: key.Line, Message: fmt.Sprintf("trailing comment on top-level key %q is not supported", key.Value)})
		case key.FootComment != "" || val.FootComment != "":
			notes = append(notes, Note{Line: key.Line, Message: fmt.Sprintf("comment after top-level key %q is not supported", key.Value)})
		}
	}
	return notes
}

// IsDocument reports whether path has a schema document extension.
func IsDocument(path string) bool {
	switch filepath.Ext(path) {
	case ".yaml", ".yml", ".json":
		return true
	}
	return false
}

// Discover returns the schema documents under dir, sorted by path.
func Discover(dir string) ([]string, error) {
	var paths []string
	err := filepath.WalkDir(dir, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if path != dir && len(d.Name()) > 0 && d.Name()[0] == '.' {
				return filepath.SkipDir
			}
			return nil
		}
		if IsDocument(path) {
			paths = append(paths, path)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("discover schemas in %s: %w", dir, err)
	}
	return paths, nil
}
