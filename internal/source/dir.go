package source

import (
	"context"
	"os"
	"path/filepath"

	"github.com/rotisserie/eris"

	"github.com/sipwell/nutrition-pipeline/internal/config"
	"github.com/sipwell/nutrition-pipeline/internal/model"
)

// DirProvider reads brand feeds from JSON files dropped by the crawlers.
// Feed paths are resolved relative to the provider root.
type DirProvider struct {
	root string
}

// NewDirProvider creates a DirProvider rooted at the given directory.
func NewDirProvider(root string) *DirProvider {
	return &DirProvider{root: root}
}

func (p *DirProvider) Fetch(ctx context.Context, brand config.BrandConfig, batchID string) ([]model.RawRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if brand.Feed == "" {
		return nil, eris.Errorf("source: no feed configured for %s", brand.Name)
	}

	path := brand.Feed
	if !filepath.IsAbs(path) {
		path = filepath.Join(p.root, path)
	}

	body, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "source: read feed for %s", brand.Name)
	}
	return decodeFeed(body, brand, batchID, path)
}
