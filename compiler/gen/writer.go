package gen

import (
	"bytes"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"strings"
	"sync"

	"github.com/sergi/go-diff/diffmatchpatch"
	"go.uber.org/zap"
	"golang.org/x/tools/imports"
)

// WriteResult is the outcome of writing one artifact.
type WriteResult int

// WriteResult values.
const (
	ResultWritten WriteResult = iota
	ResultUnchanged
	ResultSkipped
	ResultDrifted
	ResultFailed
)

var writeResultNames = [...]string{"written", "unchanged", "skipped", "drifted", "failed"}

// String implements fmt.Stringer.
func (r WriteResult) String() string {
	if int(r) < len(writeResultNames) {
		return writeResultNames[r]
	}
	return "unknown"
}

// Writer writes artifacts below the output directory. It never overwrites
// files lacking the generated marker, leaves unchanged files untouched and
// records what it produced in the manifest. Write is safe for concurrent
// use; writes to one path are serialized.
type Writer struct {
	root   string
	header string
	check  bool
	log    *zap.Logger

	mu       sync.Mutex
	locks    map[string]*sync.Mutex
	produced map[string]ManifestEntry
	stats    FileStats
}

// NewWriter creates a writer for the output directory of cfg.
func NewWriter(cfg *Config) *Writer {
	return &Writer{
		root:     cfg.Output,
		header:   cfg.Header,
		check:    cfg.Check,
		log:      cfg.Logger,
		locks:    make(map[string]*sync.Mutex),
		produced: make(map[string]ManifestEntry),
	}
}

// Stats returns the writer outcome counts so far.
func (w *Writer) Stats() FileStats {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.stats
}

func (w *Writer) lock(p string) func() {
	w.mu.Lock()
	l, ok := w.locks[p]
	if !ok {
		l = &sync.Mutex{}
		w.locks[p] = l
	}
	w.mu.Unlock()
	l.Lock()
	return l.Unlock
}

func (w *Writer) count(r WriteResult) {
	w.mu.Lock()
	defer w.mu.Unlock()
	switch r {
	case ResultWritten:
		w.stats.Written++
	case ResultUnchanged:
		w.stats.Unchanged++
	case ResultSkipped:
		w.stats.Skipped++
	case ResultDrifted:
		w.stats.Drifted++
	case ResultFailed:
		w.stats.Failed++
	}
}

// HasMarker reports whether content starts with a generated-file marker.
func HasMarker(content []byte, marker string) bool {
	if len(content) > MarkerWindow {
		content = content[:MarkerWindow]
	}
	return bytes.Contains(content, []byte(marker))
}

// Write writes one artifact. Errors are *WriteError for I/O failures and
// conflicts, *DriftError in check mode and *GenerationError for artifacts
// that cannot be formatted or lack the marker.
func (w *Writer) Write(a *Artifact) (WriteResult, error) {
	r, err := w.write(a)
	w.count(r)
	return r, err
}

func (w *Writer) write(a *Artifact) (WriteResult, error) {
	if a.Path == "" || path.IsAbs(a.Path) || strings.HasPrefix(path.Clean(a.Path), "..") {
		return ResultFailed, NewGenerationError(a.Target, a.Entity, a.Path, "artifact path must be relative to the output directory", nil)
	}
	full := filepath.Join(w.root, filepath.FromSlash(a.Path))
	content := a.Content
	if strings.HasSuffix(a.Path, ".go") {
		formatted, err := imports.Process(full, content, nil)
		if err != nil {
			if !w.check {
				// Unformatted output is kept next to the target for debugging.
				debugPath := full + ".error"
				_ = os.MkdirAll(filepath.Dir(debugPath), 0o755)
				_ = os.WriteFile(debugPath, content, 0o644)
			}
			return ResultFailed, NewGenerationError(a.Target, a.Entity, a.Path, "format Go source", err)
		}
		content = formatted
	}
	if !HasMarker(content, w.header) {
		return ResultFailed, NewGenerationError(a.Target, a.Entity, a.Path, "artifact lacks the generated marker", nil)
	}
	sum := digest(content)

	unlock := w.lock(a.Path)
	defer unlock()

	w.mu.Lock()
	prev, seen := w.produced[a.Path]
	w.mu.Unlock()
	if seen {
		if prev.Digest == sum {
			return ResultUnchanged, nil
		}
		return ResultFailed, NewGenerationError(a.Target, a.Entity, a.Path,
			fmt.Sprintf("path already produced by target %s with different content", prev.Target), nil)
	}

	existing, err := os.ReadFile(full)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		existing = nil
	case err != nil:
		return ResultFailed, NewWriteError(a.Path, false, err)
	case !HasMarker(existing, w.header):
		w.log.Warn("skip hand-authored file", zap.String("path", a.Path))
		return ResultSkipped, NewWriteError(a.Path, true, nil)
	}
	if existing != nil && bytes.Equal(existing, content) {
		w.record(a, sum)
		return ResultUnchanged, nil
	}
	if w.check {
		w.record(a, sum)
		return ResultDrifted, &DriftError{Path: a.Path, Diff: UnifiedDiff(a.Path, string(existing), string(content))}
	}
	if err := writeFile(full, content); err != nil {
		return ResultFailed, NewWriteError(a.Path, false, err)
	}
	w.record(a, sum)
	w.log.Debug("wrote file", zap.String("path", a.Path), zap.Int("bytes", len(content)))
	return ResultWritten, nil
}

func (w *Writer) record(a *Artifact, sum string) {
	w.mu.Lock()
	w.produced[a.Path] = ManifestEntry{Path: a.Path, Digest: sum, Entity: a.Entity, Target: a.Target}
	w.mu.Unlock()
}

// writeFile writes through a temporary file so readers never observe a
// partially written artifact.
func writeFile(full string, content []byte) error {
	if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
		return fmt.Errorf("create directory: %w", err)
	}
	tmp, err := os.CreateTemp(filepath.Dir(full), "."+filepath.Base(full)+".*")
	if err != nil {
		return err
	}
	if _, err := tmp.Write(content); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return err
	}
	if err := os.Chmod(tmp.Name(), 0o644); err != nil {
		os.Remove(tmp.Name())
		return err
	}
	return os.Rename(tmp.Name(), full)
}

// Finish prunes stale files and writes the manifest. An entry of the
// previous manifest that was not produced in this run is pruned when
// settled reports its entity and target as fully regenerated and the file
// still carries the marker. Other entries are carried forward.
// In check mode nothing is changed and prunable files are returned as
// drift errors.
func (w *Writer) Finish(settled func(entity, target string) bool) ([]string, []error) {
	var (
		pruned []string
		errs   []error
	)
	mpath := filepath.Join(w.root, ManifestName)
	prev, err := ReadManifest(mpath)
	if err != nil {
		w.log.Warn("ignore unreadable manifest", zap.Error(err))
		prev = &Manifest{Version: manifestVersion}
	}
	w.mu.Lock()
	next := &Manifest{Version: manifestVersion}
	for _, e := range w.produced {
		next.Files = append(next.Files, e)
	}
	w.mu.Unlock()

	for _, e := range prev.Files {
		if _, ok := next.Lookup(e.Path); ok {
			continue
		}
		if !settled(e.Entity, e.Target) {
			next.Files = append(next.Files, e)
			continue
		}
		full := filepath.Join(w.root, filepath.FromSlash(e.Path))
		content, err := os.ReadFile(full)
		if errors.Is(err, fs.ErrNotExist) {
			continue
		}
		if err != nil {
			errs = append(errs, NewWriteError(e.Path, false, err))
			next.Files = append(next.Files, e)
			continue
		}
		if !HasMarker(content, w.header) {
			// Replaced by a hand-authored file; no longer ours.
			continue
		}
		if w.check {
			errs = append(errs, &DriftError{Path: e.Path, Stale: true})
			continue
		}
		if err := os.Remove(full); err != nil {
			errs = append(errs, NewWriteError(e.Path, false, err))
			next.Files = append(next.Files, e)
			continue
		}
		removeEmptyDirs(w.root, filepath.Dir(full))
		w.log.Debug("pruned stale file", zap.String("path", e.Path))
		pruned = append(pruned, e.Path)
	}
	w.mu.Lock()
	w.stats.Pruned += len(pruned)
	w.mu.Unlock()

	if w.check {
		return pruned, errs
	}
	buf, err := next.Encode()
	if err != nil {
		return pruned, append(errs, NewWriteError(ManifestName, false, err))
	}
	if old, err := os.ReadFile(mpath); err == nil && bytes.Equal(old, buf) {
		return pruned, errs
	}
	if err := writeFile(mpath, buf); err != nil {
		errs = append(errs, NewWriteError(ManifestName, false, err))
	}
	return pruned, errs
}

// removeEmptyDirs removes dir and its parents up to root while they are empty.
func removeEmptyDirs(root, dir string) {
	root = filepath.Clean(root)
	for dir = filepath.Clean(dir); dir != root && strings.HasPrefix(dir, root); dir = filepath.Dir(dir) {
		entries, err := os.ReadDir(dir)
		if err != nil || len(entries) > 0 {
			return
		}
		if os.Remove(dir) != nil {
			return
		}
	}
}

// UnifiedDiff renders a line diff of two file versions with three lines
// of context.
func UnifiedDiff(name, from, to string) string {
	dmp := diffmatchpatch.New()
	src, dst, lines := dmp.DiffLinesToChars(from, to)
	diffs := dmp.DiffCharsToLines(dmp.DiffMain(src, dst, false), lines)

	type line struct {
		op   diffmatchpatch.Operation
		text string
	}
	var ops []line
	for _, d := range diffs {
		text := strings.TrimSuffix(d.Text, "\n")
		if text == "" && d.Text == "" {
			continue
		}
		for _, l := range strings.Split(text, "\n") {
			ops = append(ops, line{d.Type, l})
		}
	}

	const context = 3
	var b strings.Builder
	fmt.Fprintf(&b, "--- a/%s\n+++ b/%s\n", name, name)
	oldLine, newLine := 1, 1
	for i := 0; i < len(ops); {
		if ops[i].op == diffmatchpatch.DiffEqual {
			oldLine++
			newLine++
			i++
			continue
		}
		// Hunk start with leading context.
		start := max(i-context, 0)
		for j := start; j < i; j++ {
			oldLine--
			newLine--
		}
		end := i
		for end < len(ops) {
			if ops[end].op != diffmatchpatch.DiffEqual {
				end++
				continue
			}
			run := end
			for run < len(ops) && ops[run].op == diffmatchpatch.DiffEqual {
				run++
			}
			if run == len(ops) || run-end > 2*context {
				end = min(end+context, len(ops))
				break
			}
			end = run
		}
		var oldN, newN int
		var body strings.Builder
		for _, l := range ops[start:end] {
			switch l.op {
			case diffmatchpatch.DiffEqual:
				body.WriteString(" ")
				oldN++
				newN++
			case diffmatchpatch.DiffDelete:
				body.WriteString("-")
				oldN++
			case diffmatchpatch.DiffInsert:
				body.WriteString("+")
				newN++
			}
			body.WriteString(l.text)
			body.WriteByte('\n')
		}
		fmt.Fprintf(&b, "@@ -%d,%d +%d,%d @@\n", oldLine, oldN, newLine, newN)
		b.WriteString(body.String())
		oldLine += oldN
		newLine += newN
		i = end
	}
	return b.String()
}
