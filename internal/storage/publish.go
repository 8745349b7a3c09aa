package storage

import (
	"os"
	"path/filepath"

	"github.com/rotisserie/eris"

	"github.com/sipwell/nutrition-pipeline/internal/model"
)

// ErrNoGoldPayload is returned by LoadPublished before the first publish.
var ErrNoGoldPayload = eris.New("storage: no gold payload published")

// PublishGold writes the sanitized payload to a timestamped gold snapshot
// and overwrites gold/latest.json. Superseded snapshots are retained as
// history; only the latest pointer moves.
func (s *Store) PublishGold(payload model.PublishedPayload) (string, error) {
	dir := filepath.Join(s.root, "gold")
	stamp := payload.GeneratedAt.UTC().Format("20060102150405")

	if err := writeJSON(filepath.Join(dir, stamp+".json"), payload); err != nil {
		return "", err
	}
	latest := filepath.Join(dir, "latest.json")
	if err := writeJSON(latest, payload); err != nil {
		return "", err
	}
	return latest, nil
}

// LoadPublished returns the latest published gold payload, or
// ErrNoGoldPayload when nothing has been published yet.
func (s *Store) LoadPublished() (*model.PublishedPayload, error) {
	path := filepath.Join(s.root, "gold", "latest.json")
	var payload model.PublishedPayload
	if err := readJSON(path, &payload); err != nil {
		if os.IsNotExist(err) {
			return nil, ErrNoGoldPayload
		}
		return nil, eris.Wrap(err, "storage: load published payload")
	}
	return &payload, nil
}
