package model

import (
	"strings"
	"time"

	"golang.org/x/text/unicode/norm"
)

// SourceType identifies the kind of collection source a record came from.
type SourceType string

const (
	SourceHTML SourceType = "HTML"
	SourcePNG  SourceType = "PNG"
)

// ValidationStatus marks the outcome of the silver-tier cross-check.
type ValidationStatus string

const (
	ValidationClean       ValidationStatus = "clean"
	ValidationNeedsReview ValidationStatus = "needs_review"
)

// BeverageTypeUnknown is the explicit marker used when no beverage type
// survives normalization. The integrity filter blocks records carrying it.
const BeverageTypeUnknown = "UNKNOWN"

// SourceArtifact describes where and when a raw record was collected.
// Immutable once created.
type SourceArtifact struct {
	Brand       string     `json:"brand"`
	BatchID     string     `json:"batchId"`
	SourceType  SourceType `json:"sourceType"`
	URI         string     `json:"uri"`
	Checksum    string     `json:"checksum"`
	CollectedAt time.Time  `json:"collectedAt"`
}

// RawRecord is a bronze-tier record exactly as collected: one per crawl
// item, never mutated, persisted append-only per batch. Nutrition values
// arrive as a free-form mapping and are only typed at the silver boundary.
type RawRecord struct {
	Brand        string         `json:"brand"`
	ProductName  string         `json:"productName"`
	Size         string         `json:"size"`
	BeverageType *string        `json:"beverageType"`
	NutritionRaw map[string]any `json:"nutritionRaw"`
	Source       SourceArtifact `json:"source"`

	// Optional secondary measurement from the OCR collaborator.
	OCRNutrition  map[string]any `json:"ocrNutrition,omitempty"`
	OCRConfidence *float64       `json:"ocrConfidence,omitempty"`
}

// NutritionProfile is the fixed, typed nutrition schema. Every field is
// non-negative; the normalizer coerces missing or unparsable values to zero.
type NutritionProfile struct {
	ServingML     int     `json:"serving_ml"`
	ServingKcal   int     `json:"serving_kcal"`
	SaturatedFatG float64 `json:"saturated_fat_g"`
	ProteinG      float64 `json:"protein_g"`
	SodiumMg      float64 `json:"sodium_mg"`
	SugarG        float64 `json:"sugar_g"`
	CaffeineMg    float64 `json:"caffeine_mg"`
}

// CanonicalRecord is a silver-tier record: normalized, typed and validated
// against the secondary measurement when one exists. BeverageType is never
// empty after normalization; it defaults to BeverageTypeUnknown.
type CanonicalRecord struct {
	Brand            string           `json:"brand"`
	ProductName      string           `json:"productName"`
	Size             string           `json:"size"`
	BeverageType     string           `json:"beverageType"`
	Nutrition        NutritionProfile `json:"nutrition"`
	SourceBatch      string           `json:"sourceBatch"`
	ValidationStatus ValidationStatus `json:"validationStatus"`
	Notes            *string          `json:"notes"`
}

// Key returns the identity key used for deduplication and merge collision
// detection: NFC-normalized, trimmed, lowercased product name joined with
// the size code. Expected unique within a brand at the silver stage.
func (r CanonicalRecord) Key() string {
	return IdentityKey(r.ProductName, r.Size)
}

// IdentityKey builds the (product name, size) identity key. Product names
// are NFC-normalized before lowercasing so that visually identical Korean
// names collected from different sources compare equal.
func IdentityKey(productName, size string) string {
	name := norm.NFC.String(strings.TrimSpace(productName))
	return strings.ToLower(name) + "::" + size
}

// MergeConflict records a duplicate identity key discovered during the
// cross-brand merge. Brands lists the originally-kept brand first, then the
// colliding brand.
type MergeConflict struct {
	Key    string   `json:"key"`
	Brands []string `json:"brands"`
	Reason string   `json:"reason"`
}

// IntegrityViolation identifies a record blocked by the integrity filter.
type IntegrityViolation struct {
	Brand       string `json:"brand"`
	ProductName string `json:"productName"`
	Size        string `json:"size"`
	Reason      string `json:"reason"`
}

// IntegrityReport tracks the outcome of an integrity filter pass.
// Passed + len(Blocked) always equals Inspected.
type IntegrityReport struct {
	Inspected int                  `json:"inspected"`
	Passed    int                  `json:"passed"`
	Blocked   []IntegrityViolation `json:"blocked"`
}

// Track records one inspected record. An empty reason counts as passed.
func (r *IntegrityReport) Track(rec CanonicalRecord, reason string) {
	r.Inspected++
	if reason == "" {
		r.Passed++
		return
	}
	r.Blocked = append(r.Blocked, IntegrityViolation{
		Brand:       rec.Brand,
		ProductName: rec.ProductName,
		Size:        rec.Size,
		Reason:      reason,
	})
}

// PayloadItem is one public item in the gold dispatch payload. ProductID and
// IsLiked are internal-only and are stripped from the published copy.
type PayloadItem struct {
	ProductID        string           `json:"productId"`
	Brand            string           `json:"brand"`
	ProductName      string           `json:"productName"`
	Size             string           `json:"size"`
	BeverageType     string           `json:"beverageType"`
	IsLiked          bool             `json:"isLiked"`
	SourceBatch      string           `json:"sourceBatch"`
	ValidationStatus ValidationStatus `json:"validationStatus"`
	Notes            *string          `json:"notes"`
	Nutrition        NutritionProfile `json:"nutrition"`
}

// BrandPayload groups payload items under a localized brand display label.
type BrandPayload struct {
	BrandLabel string        `json:"brandLabel"`
	Items      []PayloadItem `json:"items"`
}

// DeliveryPayload is the gold-tier payload handed to the dispatcher.
// A fresh payload is built on every pipeline run.
type DeliveryPayload struct {
	Brands      []BrandPayload `json:"brands"`
	GeneratedAt time.Time      `json:"generatedAt"`
}

// PublishedItem mirrors PayloadItem with internal-only fields removed.
type PublishedItem struct {
	Brand            string           `json:"brand"`
	ProductName      string           `json:"productName"`
	Size             string           `json:"size"`
	BeverageType     string           `json:"beverageType"`
	SourceBatch      string           `json:"sourceBatch"`
	ValidationStatus ValidationStatus `json:"validationStatus"`
	Notes            *string          `json:"notes"`
	Nutrition        NutritionProfile `json:"nutrition"`
}

// PublishedBrand groups published items under a brand label.
type PublishedBrand struct {
	BrandLabel string          `json:"brandLabel"`
	Items      []PublishedItem `json:"items"`
}

// PublishedPayload is the sanitized public copy of a DeliveryPayload.
type PublishedPayload struct {
	Brands      []PublishedBrand `json:"brands"`
	GeneratedAt time.Time        `json:"generatedAt"`
}
