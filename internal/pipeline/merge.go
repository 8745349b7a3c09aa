package pipeline

import (
	"go.uber.org/zap"

	"github.com/sipwell/nutrition-pipeline/internal/model"
)

// mergeConflictReason is the reason code attached to every merge conflict.
const mergeConflictReason = "duplicate product_name+size"

// BrandRecords pairs a brand with its canonical record list. Merge walks a
// slice of these so the brand order is an explicit caller decision, never
// incidental map iteration order.
type BrandRecords struct {
	Brand   string
	Records []model.CanonicalRecord
}

// MergeResult holds the consolidated record list and the conflicts dropped
// along the way.
type MergeResult struct {
	Records   []model.CanonicalRecord
	Conflicts []model.MergeConflict
}

// Merge consolidates canonical records across brands. Brands are walked in
// the given order; the first occurrence of an identity key wins and every
// later occurrence is dropped and recorded as a conflict naming the kept
// brand and the colliding brand. First-seen record order is preserved.
func Merge(ordered []BrandRecords) MergeResult {
	seen := make(map[string]model.CanonicalRecord)
	var merged []model.CanonicalRecord
	var conflicts []model.MergeConflict

	for _, brand := range ordered {
		for _, rec := range brand.Records {
			key := rec.Key()
			if kept, ok := seen[key]; ok {
				conflicts = append(conflicts, model.MergeConflict{
					Key:    key,
					Brands: []string{kept.Brand, brand.Brand},
					Reason: mergeConflictReason,
				})
				zap.L().Warn("merge: duplicate identity key dropped",
					zap.String("key", key),
					zap.String("kept_brand", kept.Brand),
					zap.String("conflicting_brand", brand.Brand),
				)
				continue
			}
			seen[key] = rec
			merged = append(merged, rec)
		}
	}

	return MergeResult{Records: merged, Conflicts: conflicts}
}
