package pipeline

import (
	"encoding/json"
	"sort"

	"github.com/sipwell/nutrition-pipeline/internal/model"
)

// SnapshotDiff partitions product names between two consecutive snapshots.
// FirstRun marks the absence of a prior snapshot; the other fields are only
// meaningful when it is false. The diff is informational and never gates
// the pipeline.
type SnapshotDiff struct {
	FirstRun bool     `json:"firstRun"`
	New      []string `json:"new"`
	Removed  []string `json:"removed"`
	Changed  []string `json:"changed"`
}

// Empty reports whether a non-first-run diff found no differences.
func (d SnapshotDiff) Empty() bool {
	return !d.FirstRun && len(d.New) == 0 && len(d.Removed) == 0 && len(d.Changed) == 0
}

// DiffSnapshots compares the previous canonical record set (nil on the very
// first run) with the current one. A product counts as changed when its
// serialized content differs under the stable canonical serialization;
// equality is exact, including nutrition floats, since both sides pass
// through the same normalizer.
func DiffSnapshots(previous, current []model.CanonicalRecord) SnapshotDiff {
	if previous == nil {
		return SnapshotDiff{FirstRun: true}
	}

	prev := serializeByProduct(previous)
	curr := serializeByProduct(current)

	var diff SnapshotDiff
	for name, body := range curr {
		prevBody, ok := prev[name]
		switch {
		case !ok:
			diff.New = append(diff.New, name)
		case prevBody != body:
			diff.Changed = append(diff.Changed, name)
		}
	}
	for name := range prev {
		if _, ok := curr[name]; !ok {
			diff.Removed = append(diff.Removed, name)
		}
	}

	sort.Strings(diff.New)
	sort.Strings(diff.Removed)
	sort.Strings(diff.Changed)
	return diff
}

// serializeByProduct canonically serializes all records sharing a product
// name. Records are sorted by size first so the serialization is stable
// regardless of input order.
func serializeByProduct(records []model.CanonicalRecord) map[string]string {
	grouped := make(map[string][]model.CanonicalRecord)
	for _, rec := range records {
		grouped[rec.ProductName] = append(grouped[rec.ProductName], rec)
	}

	out := make(map[string]string, len(grouped))
	for name, recs := range grouped {
		sort.Slice(recs, func(i, j int) bool { return recs[i].Size < recs[j].Size })
		body, err := json.Marshal(recs)
		if err != nil {
			// CanonicalRecord contains no unmarshalable types.
			continue
		}
		out[name] = string(body)
	}
	return out
}
