// Package source fetches raw record feeds per brand and shapes them into
// bronze-tier records. Feed entries that drifted from the expected schema are
// skipped with a warning instead of failing the batch.
package source

import (
	"bytes"
	"context"
	"encoding/json"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sipwell/nutrition-pipeline/internal/config"
	"github.com/sipwell/nutrition-pipeline/internal/model"
)

// Provider fetches the raw record feed for one brand.
type Provider interface {
	Fetch(ctx context.Context, brand config.BrandConfig, batchID string) ([]model.RawRecord, error)
}

// feedEntry is the wire shape of one item in a brand feed drop.
type feedEntry struct {
	ProductName   string         `json:"productName"`
	Size          string         `json:"size"`
	BeverageType  *string        `json:"beverageType"`
	Nutrition     map[string]any `json:"nutrition"`
	OCRNutrition  map[string]any `json:"ocrNutrition,omitempty"`
	OCRConfidence *float64       `json:"ocrConfidence,omitempty"`
	SourceType    string         `json:"sourceType"`
}

// decodeFeed parses a feed body into raw records. Entries missing a product
// name or size are schema drift: they are skipped with a warning and the rest
// of the feed is processed. When the brand opts in, a missing beverage type
// is inferred from product-name keywords.
func decodeFeed(body []byte, brand config.BrandConfig, batchID, uri string) ([]model.RawRecord, error) {
	// Feed drops occasionally arrive with a BOM.
	body = bytes.TrimPrefix(body, []byte("\ufeff"))

	var entries []feedEntry
	if err := json.Unmarshal(body, &entries); err != nil {
		return nil, eris.Wrapf(err, "source: decode feed for %s", brand.Name)
	}

	log := zap.L().With(zap.String("brand", brand.Name), zap.String("batch_id", batchID))
	artifact := model.SourceArtifact{
		Brand:       brand.Name,
		BatchID:     batchID,
		SourceType:  model.SourceHTML,
		URI:         uri,
		CollectedAt: time.Now().UTC(),
	}

	records := make([]model.RawRecord, 0, len(entries))
	for i, e := range entries {
		if e.ProductName == "" || e.Size == "" {
			log.Warn("source: schema drift, skipping entry",
				zap.Int("index", i),
				zap.String("product_name", e.ProductName),
				zap.String("size", e.Size),
			)
			continue
		}

		src := artifact
		if e.SourceType != "" {
			src.SourceType = model.SourceType(e.SourceType)
		}
		// Checksummed per record so the bronze validator can verify each
		// nutrition payload independently.
		src.Checksum = model.Checksum(e.Nutrition)

		bevType := e.BeverageType
		if brand.InferType && (bevType == nil || *bevType == "") {
			inferred := ResolveBeverageType(e.ProductName, "")
			bevType = &inferred
		}

		records = append(records, model.RawRecord{
			Brand:         brand.Name,
			ProductName:   e.ProductName,
			Size:          e.Size,
			BeverageType:  bevType,
			NutritionRaw:  e.Nutrition,
			Source:        src,
			OCRNutrition:  e.OCRNutrition,
			OCRConfidence: e.OCRConfidence,
		})
	}

	log.Info("source: feed decoded",
		zap.Int("entries", len(entries)),
		zap.Int("records", len(records)),
		zap.Int("skipped", len(entries)-len(records)),
	)
	return records, nil
}
