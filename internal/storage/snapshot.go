package storage

import (
	"os"
	"path/filepath"

	"github.com/rotisserie/eris"

	"github.com/sipwell/nutrition-pipeline/internal/model"
)

// ErrNoSnapshot is returned by LoadLatest when a brand has never been
// snapshotted. Callers treat it as "first run", not as a failure.
var ErrNoSnapshot = eris.New("storage: no snapshot for brand")

// Snapshot is the silver persistence record: one brand's canonical record
// set for one batch.
type Snapshot struct {
	Brand   string                  `json:"brand"`
	BatchID string                  `json:"batchId"`
	Records []model.CanonicalRecord `json:"records"`
}

// PersistSnapshot writes the canonical record set to
// <root>/silver/<brand>/<batch>.json and overwrites the brand's
// latest.json pointer with the same content.
func (s *Store) PersistSnapshot(brand, batchID string, records []model.CanonicalRecord) (string, error) {
	snap := Snapshot{Brand: brand, BatchID: batchID, Records: records}
	dir := s.brandDir("silver", brand)

	path := filepath.Join(dir, batchID+".json")
	if err := writeJSON(path, snap); err != nil {
		return "", err
	}
	if err := writeJSON(filepath.Join(dir, "latest.json"), snap); err != nil {
		return "", err
	}
	return path, nil
}

// LoadLatest returns the most recently persisted canonical record set for
// the brand, or ErrNoSnapshot when none exists yet.
func (s *Store) LoadLatest(brand string) (*Snapshot, error) {
	path := filepath.Join(s.brandDir("silver", brand), "latest.json")
	var snap Snapshot
	if err := readJSON(path, &snap); err != nil {
		if os.IsNotExist(err) {
			return nil, ErrNoSnapshot
		}
		return nil, eris.Wrapf(err, "storage: load latest snapshot for %s", brand)
	}
	return &snap, nil
}
