package pipeline

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sipwell/nutrition-pipeline/internal/model"
)

func TestRenderConflictReport_Empty(t *testing.T) {
	out := RenderConflictReport(nil)
	assert.Contains(t, out, "# Merge Conflicts")
	assert.Contains(t, out, "No conflicts detected.")
}

func TestRenderConflictReport_WithConflicts(t *testing.T) {
	conflicts := []model.MergeConflict{{
		Key:    "아메리카노::TALL",
		Brands: []string{"Starbucks", "MegaCoffee"},
		Reason: "duplicate product_name+size",
	}}

	out := RenderConflictReport(conflicts)
	assert.Contains(t, out, "아메리카노::TALL")
	assert.Contains(t, out, "Starbucks, MegaCoffee")
	assert.Contains(t, out, "duplicate product_name+size")
}

func TestRenderIntegrityReport(t *testing.T) {
	report := &model.IntegrityReport{Inspected: 3, Passed: 2}
	report.Blocked = []model.IntegrityViolation{{
		Brand:       "Starbucks",
		ProductName: "아메리카노",
		Size:        "SHORT",
		Reason:      "size SHORT not allowed for Starbucks",
	}}

	out := RenderIntegrityReport(report)
	assert.Contains(t, out, "- Inspected: 3")
	assert.Contains(t, out, "- Passed: 2")
	assert.Contains(t, out, "- Blocked: 1")
	assert.Contains(t, out, "size SHORT not allowed for Starbucks")
}

func TestRenderIntegrityReport_NoneBlocked(t *testing.T) {
	out := RenderIntegrityReport(&model.IntegrityReport{Inspected: 2, Passed: 2})
	assert.Contains(t, out, "None.")
}

func TestRenderChangeLog_FirstRun(t *testing.T) {
	out := RenderChangeLog("Starbucks", SnapshotDiff{FirstRun: true})
	assert.Contains(t, out, "# Change Log: Starbucks")
	assert.Contains(t, out, "No prior snapshot; this is the first run.")
}

func TestRenderChangeLog_Sections(t *testing.T) {
	diff := SnapshotDiff{
		New:     []string{"새 음료"},
		Removed: []string{"없어진 음료"},
		Changed: []string{"바뀐 음료"},
	}

	out := RenderChangeLog("MegaCoffee", diff)
	assert.Contains(t, out, "## New (1)")
	assert.Contains(t, out, "- 새 음료")
	assert.Contains(t, out, "## Removed (1)")
	assert.Contains(t, out, "## Changed (1)")
}

func TestRenderQualityReport(t *testing.T) {
	summary := &ValidationSummary{
		Inspected:   5,
		Clean:       4,
		NeedsReview: 1,
		Offenders:   []string{"수상한 음료"},
	}
	dedup := DedupReport{Duplicates: []string{"라떼::tall"}}

	out := RenderQualityReport("Starbucks", "batch-9", summary, dedup)
	assert.Contains(t, out, "# Starbucks Quality Report")
	assert.Contains(t, out, "**Batch**: batch-9")
	assert.Contains(t, out, "- Total inspected: 5")
	assert.Contains(t, out, "- Duplicates: 라떼::tall")
	assert.Contains(t, out, "- Checksum issues: none")
	assert.Contains(t, out, "- 수상한 음료")
}

func TestWriteReport(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "reports")

	path, err := WriteReport(dir, "test.md", "# Hello\n")
	require.NoError(t, err)

	content, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "# Hello\n", string(content))
}
