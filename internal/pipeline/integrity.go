package pipeline

import (
	"fmt"

	"github.com/sipwell/nutrition-pipeline/internal/model"
)

// FilterRecords enforces the per-brand size/type policy on merged canonical
// records. A record is blocked when its size code is outside its brand's
// allow-list, or, failing that, when its beverage type is the unknown
// marker. Blocked records are reported, never fatal.
func FilterRecords(records []model.CanonicalRecord, allowlists map[string][]string) ([]model.CanonicalRecord, *model.IntegrityReport) {
	allowed := make(map[string]map[string]struct{}, len(allowlists))
	for brand, sizes := range allowlists {
		set := make(map[string]struct{}, len(sizes))
		for _, s := range sizes {
			set[s] = struct{}{}
		}
		allowed[brand] = set
	}

	report := &model.IntegrityReport{}
	var valid []model.CanonicalRecord

	for _, rec := range records {
		reason := ""
		if _, ok := allowed[rec.Brand][rec.Size]; !ok {
			reason = fmt.Sprintf("size %s not allowed for %s", rec.Size, rec.Brand)
		} else if rec.BeverageType == "" || rec.BeverageType == model.BeverageTypeUnknown {
			reason = "beverage_type missing"
		}

		report.Track(rec, reason)
		if reason == "" {
			valid = append(valid, rec)
		}
	}

	return valid, report
}
