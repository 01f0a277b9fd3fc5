package gen

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"slices"
	"strings"

	"github.com/vmihailenco/msgpack/v5"
)

// ManifestName is the file, relative to the output directory, listing the
// files produced by the last run.
const ManifestName = ".hubgen.manifest"

const manifestVersion = 1

// Manifest lists generated files.
type Manifest struct {
	Version int             `msgpack:"version"`
	Files   []ManifestEntry `msgpack:"files"`
}

// ManifestEntry is one generated file.
type ManifestEntry struct {
	Path   string `msgpack:"path"`
	Digest string `msgpack:"digest"`
	Entity string `msgpack:"entity,omitempty"`
	Target string `msgpack:"target"`
}

func digest(b []byte) string {
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:])
}

// ReadManifest reads a manifest file. A missing file yields an empty manifest.
func ReadManifest(path string) (*Manifest, error) {
	buf, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return &Manifest{Version: manifestVersion}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read manifest: %w", err)
	}
	m := &Manifest{}
	if err := msgpack.Unmarshal(buf, m); err != nil {
		return nil, fmt.Errorf("decode manifest %s: %w", path, err)
	}
	if m.Version != manifestVersion {
		return nil, fmt.Errorf("decode manifest %s: unsupported version %d", path, m.Version)
	}
	return m, nil
}

// Encode returns the msgpack encoding of the manifest with entries sorted
// by path, so equal manifests encode identically.
func (m *Manifest) Encode() ([]byte, error) {
	files := slices.Clone(m.Files)
	slices.SortFunc(files, func(a, b ManifestEntry) int { return strings.Compare(a.Path, b.Path) })
	var buf bytes.Buffer
	enc := msgpack.NewEncoder(&buf)
	enc.SetSortMapKeys(true)
	if err := enc.Encode(&Manifest{Version: manifestVersion, Files: files}); err != nil {
		return nil, fmt.Errorf("encode manifest: %w", err)
	}
	return buf.Bytes(), nil
}

// Lookup returns the entry with the given path.
func (m *Manifest) Lookup(path string) (ManifestEntry, bool) {
	for _, f := range m.Files {
		if f.Path == path {
			return f, true
		}
	}
	return ManifestEntry{}, false
}
