package pipeline

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/sipwell/nutrition-pipeline/internal/model"
)

// RenderConflictReport renders the merge conflict list as a markdown
// document. The empty state is an explicit "no conflicts" line so auditors
// can tell a clean merge from a missing report.
func RenderConflictReport(conflicts []model.MergeConflict) string {
	var b strings.Builder
	b.WriteString("# Merge Conflicts\n\n")
	if len(conflicts) == 0 {
		b.WriteString("No conflicts detected.\n")
		return b.String()
	}
	for _, c := range conflicts {
		fmt.Fprintf(&b, "- `%s`: brands=[%s], reason=%s\n", c.Key, strings.Join(c.Brands, ", "), c.Reason)
	}
	return b.String()
}

// RenderIntegrityReport renders inspected/passed/blocked counts plus one
// line per blocked record.
func RenderIntegrityReport(report *model.IntegrityReport) string {
	var b strings.Builder
	b.WriteString("# Integrity Report\n\n")
	fmt.Fprintf(&b, "- Inspected: %d\n", report.Inspected)
	fmt.Fprintf(&b, "- Passed: %d\n", report.Passed)
	fmt.Fprintf(&b, "- Blocked: %d\n\n", len(report.Blocked))
	b.WriteString("## Blocked Records\n")
	if len(report.Blocked) == 0 {
		b.WriteString("None.\n")
		return b.String()
	}
	for _, v := range report.Blocked {
		fmt.Fprintf(&b, "- %s/%s (%s): %s\n", v.Brand, v.ProductName, v.Size, v.Reason)
	}
	return b.String()
}

// RenderChangeLog renders the snapshot diff as a human-readable change log.
// The first run renders an explicit "no prior snapshot" line.
func RenderChangeLog(brand string, diff SnapshotDiff) string {
	var b strings.Builder
	fmt.Fprintf(&b, "# Change Log: %s\n\n", brand)
	if diff.FirstRun {
		b.WriteString("No prior snapshot; this is the first run.\n")
		return b.String()
	}
	writeSection := func(title string, names []string) {
		fmt.Fprintf(&b, "## %s (%d)\n", title, len(names))
		for _, name := range names {
			fmt.Fprintf(&b, "- %s\n", name)
		}
		b.WriteString("\n")
	}
	writeSection("New", diff.New)
	writeSection("Removed", diff.Removed)
	writeSection("Changed", diff.Changed)
	return b.String()
}

// RenderQualityReport renders the per-brand validation summary together
// with the duplicate/checksum findings for one batch.
func RenderQualityReport(brand, batchID string, summary *ValidationSummary, dedup DedupReport) string {
	var b strings.Builder
	fmt.Fprintf(&b, "# %s Quality Report\n\n", brand)
	fmt.Fprintf(&b, "**Batch**: %s\n\n", batchID)
	b.WriteString("## Validation Summary\n")
	fmt.Fprintf(&b, "- Total inspected: %d\n", summary.Inspected)
	fmt.Fprintf(&b, "- Clean records: %d\n", summary.Clean)
	fmt.Fprintf(&b, "- Needs review: %d\n", summary.NeedsReview)
	fmt.Fprintf(&b, "- Duplicates: %s\n", listOrNone(dedup.Duplicates))
	fmt.Fprintf(&b, "- Checksum issues: %s\n\n", listOrNone(dedup.ChecksumMismatches))
	b.WriteString("## Offenders\n")
	if len(summary.Offenders) == 0 {
		b.WriteString("None.\n")
		return b.String()
	}
	for _, name := range summary.Offenders {
		fmt.Fprintf(&b, "- %s\n", name)
	}
	return b.String()
}

func listOrNone(items []string) string {
	if len(items) == 0 {
		return "none"
	}
	return strings.Join(items, ", ")
}

// WriteReport persists a rendered report under the reports directory.
func WriteReport(dir, name, content string) (string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", eris.Wrapf(err, "report: create dir %s", dir)
	}
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		return "", eris.Wrapf(err, "report: write %s", path)
	}
	return path, nil
}
