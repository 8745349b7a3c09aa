// Package storage persists the medallion tiers on the filesystem: bronze
// manifests per brand/batch, silver snapshots with a "latest" pointer, and
// the published gold payload. No concurrent-writer protection is provided;
// callers must serialize writes per brand.
package storage

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"

	"github.com/rotisserie/eris"
)

// Store reads and writes medallion tiers under a single root directory.
type Store struct {
	root string
}

// New creates a Store rooted at the given directory.
func New(root string) *Store {
	return &Store{root: root}
}

func (s *Store) brandDir(tier, brand string) string {
	return filepath.Join(s.root, tier, strings.ToLower(brand))
}

func writeJSON(path string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return eris.Wrapf(err, "storage: marshal %s", path)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return eris.Wrapf(err, "storage: create dir for %s", path)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return eris.Wrapf(err, "storage: write %s", path)
	}
	return nil
}

func readJSON(path string, v any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(data, v); err != nil {
		return eris.Wrapf(err, "storage: parse %s", path)
	}
	return nil
}
