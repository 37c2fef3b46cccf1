package output

import (
	"bufio"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gitlab.com/tozd/go/errors"
)

// ManifestName is the default manifest file name inside the output
// directory.
const ManifestName = "btouch.sum"

// ManifestEntry records the content digest of one generated file.
type ManifestEntry struct {
	// Path is relative to the output directory, slash separated.
	Path string
	// Sum is the hex encoded SHA-256 of the file contents.
	Sum string
}

// Manifest lists the files written by the last run.
type Manifest struct {
	Entries []*ManifestEntry
	index   map[string]*ManifestEntry // path → entry
}

// NewManifest creates an empty manifest.
func NewManifest() *Manifest {
	return &Manifest{index: make(map[string]*ManifestEntry)}
}

// Lookup finds the entry for path. Returns nil if not found.
func (m *Manifest) Lookup(path string) *ManifestEntry {
	if m.index == nil {
		return nil
	}
	return m.index[path]
}

// Set adds or updates an entry.
func (m *Manifest) Set(path, sum string) {
	if m.index == nil {
		m.index = make(map[string]*ManifestEntry)
	}
	if existing, ok := m.index[path]; ok {
		existing.Sum = sum
		return
	}
	entry := &ManifestEntry{Path: path, Sum: sum}
	m.Entries = append(m.Entries, entry)
	m.index[path] = entry
}

// Sum returns the digest recorded for content.
func Sum(content []byte) string {
	h := sha256.Sum256(content)
	return hex.EncodeToString(h[:])
}

// ReadManifest reads a manifest. Returns an empty manifest if the file does
// not exist.
func ReadManifest(path string) (*Manifest, error) {
	m := NewManifest()

	f, err := os.Open(path)
	if os.IsNotExist(err) {
		return m, nil
	}
	if err != nil {
		return nil, errors.Errorf("reading manifest: %w", err)
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	lineNum := 0
	for scanner.Scan() {
		lineNum++
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		fields := strings.Fields(line)
		if len(fields) != 2 {
			return nil, errors.Errorf("%s:%d: expected 2 fields (path sha256), got %d", path, lineNum, len(fields))
		}

		if !filepath.IsLocal(filepath.FromSlash(fields[0])) {
			return nil, errors.Errorf("%s:%d: path %q is outside the output directory", path, lineNum, fields[0])
		}

		m.Set(fields[0], fields[1])
	}

	if err := scanner.Err(); err != nil {
		return nil, errors.Errorf("reading manifest: %w", err)
	}

	return m, nil
}

// WriteManifest writes the manifest to disk. An empty manifest removes the
// file.
func WriteManifest(path string, m *Manifest) error {
	if len(m.Entries) == 0 {
		if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
			return errors.Errorf("removing empty manifest: %w", err)
		}
		return nil
	}

	var sb strings.Builder
	sb.WriteString("# btouch.sum: generated, do not edit\n")
	for _, e := range m.Entries {
		fmt.Fprintf(&sb, "%s %s\n", e.Path, e.Sum)
	}

	if err := os.WriteFile(path, []byte(sb.String()), 0o644); err != nil {
		return errors.Errorf("writing manifest: %w", err)
	}
	return nil
}
