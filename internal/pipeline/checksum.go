package pipeline

import (
	"github.com/sipwell/nutrition-pipeline/internal/model"
)

// DedupReport collects duplicate identity keys and checksum mismatches found
// in one brand/batch of raw records. Both findings are warnings: nothing is
// dropped at this stage.
type DedupReport struct {
	Duplicates         []string `json:"duplicates"`
	ChecksumMismatches []string `json:"checksumMismatches"`
	Warnings           []string `json:"warnings"`
}

// Clean reports whether the batch produced no findings.
func (r DedupReport) Clean() bool {
	return len(r.Duplicates) == 0 && len(r.ChecksumMismatches) == 0
}

// ValidateBatch recomputes each record's raw-payload checksum against the
// one declared by its source artifact and flags identity keys shared by more
// than one record. Detection only; the caller decides what to do with the
// report.
func ValidateBatch(records []model.RawRecord) DedupReport {
	var report DedupReport

	keyOrder := make([]string, 0, len(records))
	keyCounts := make(map[string]int)

	for _, rec := range records {
		key := model.IdentityKey(rec.ProductName, rec.Size)
		if keyCounts[key] == 0 {
			keyOrder = append(keyOrder, key)
		}
		keyCounts[key]++

		if model.Checksum(rec.NutritionRaw) != rec.Source.Checksum {
			report.ChecksumMismatches = append(report.ChecksumMismatches, rec.ProductName)
		}
	}

	for _, key := range keyOrder {
		if keyCounts[key] > 1 {
			report.Duplicates = append(report.Duplicates, key)
		}
	}

	if len(report.Duplicates) > 0 {
		report.Warnings = append(report.Warnings, "duplicated product_name+size combinations detected")
	}
	if len(report.ChecksumMismatches) > 0 {
		report.Warnings = append(report.Warnings, "checksum mismatches found in bronze payloads")
	}

	return report
}
