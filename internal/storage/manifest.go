package storage

import (
	"path/filepath"

	"github.com/sipwell/nutrition-pipeline/internal/model"
)

// Manifest is the bronze persistence record for one brand/batch: the batch
// identity plus the full raw record list, written append-only.
type Manifest struct {
	BatchID     string            `json:"batchId"`
	Brand       string            `json:"brand"`
	RecordCount int               `json:"recordCount"`
	Records     []model.RawRecord `json:"records"`
}

// WriteManifest persists the raw record batch under
// <root>/bronze/<brand>/<batch>/manifest.json and returns the path.
// Manifests are never rewritten; each batch gets its own directory.
func (s *Store) WriteManifest(brand, batchID string, records []model.RawRecord) (string, error) {
	path := filepath.Join(s.brandDir("bronze", brand), batchID, "manifest.json")
	manifest := Manifest{
		BatchID:     batchID,
		Brand:       brand,
		RecordCount: len(records),
		Records:     records,
	}
	if err := writeJSON(path, manifest); err != nil {
		return "", err
	}
	return path, nil
}
