package pipeline

import (
	"math"
	"strconv"
	"strings"

	"github.com/sipwell/nutrition-pipeline/internal/model"
)

// crossCheckTolerance is the maximum relative difference allowed between an
// official nutrition value and its secondary (OCR) measurement.
const crossCheckTolerance = 0.02

// crossCheckFields lists the six shared fields compared against the
// secondary measurement. ServingML has no OCR counterpart.
var crossCheckFields = []string{
	"servingKcal",
	"saturatedFatG",
	"proteinG",
	"sodiumMg",
	"sugarG",
	"caffeineMg",
}

// ValidationResult is the cross-check outcome for a single record.
type ValidationResult struct {
	ProductName     string
	Status          model.ValidationStatus
	OffendingFields []string
}

// ValidationSummary accumulates cross-check outcomes over one brand/batch.
type ValidationSummary struct {
	Inspected   int      `json:"inspected"`
	Clean       int      `json:"clean"`
	NeedsReview int      `json:"needsReview"`
	Offenders   []string `json:"offenders"`
}

// Track records one validation result.
func (s *ValidationSummary) Track(result ValidationResult) {
	s.Inspected++
	if result.Status == model.ValidationClean {
		s.Clean++
		return
	}
	s.NeedsReview++
	s.Offenders = append(s.Offenders, result.ProductName)
}

// NormalizeBatch converts raw bronze records into canonical silver records
// and accumulates the per-batch validation summary.
func NormalizeBatch(records []model.RawRecord) ([]model.CanonicalRecord, *ValidationSummary) {
	summary := &ValidationSummary{}
	out := make([]model.CanonicalRecord, 0, len(records))
	for _, rec := range records {
		out = append(out, Normalize(rec, summary))
	}
	return out, summary
}

// Normalize converts one raw record into a canonical record. Raw numeric
// fields are coerced into the typed non-negative profile; a missing beverage
// type becomes the explicit unknown marker; the optional secondary
// measurement sets the validation status.
func Normalize(rec model.RawRecord, summary *ValidationSummary) model.CanonicalRecord {
	validation := evaluateRecord(rec)
	if summary != nil {
		summary.Track(validation)
	}

	beverageType := model.BeverageTypeUnknown
	if rec.BeverageType != nil && strings.TrimSpace(*rec.BeverageType) != "" {
		beverageType = strings.ToUpper(strings.TrimSpace(*rec.BeverageType))
	}

	var notes *string
	if len(validation.OffendingFields) > 0 {
		joined := strings.Join(validation.OffendingFields, ", ")
		notes = &joined
	}

	return model.CanonicalRecord{
		Brand:            rec.Brand,
		ProductName:      rec.ProductName,
		Size:             rec.Size,
		BeverageType:     beverageType,
		Nutrition:        nutritionFromRaw(rec.NutritionRaw),
		SourceBatch:      rec.Source.BatchID,
		ValidationStatus: validation.Status,
		Notes:            notes,
	}
}

// evaluateRecord compares the official values against the secondary (OCR)
// measurement. Without a secondary mapping the record is clean by
// definition. Each shared field whose relative difference exceeds the
// tolerance is an offending field; any offender flips the status to
// needs_review.
func evaluateRecord(rec model.RawRecord) ValidationResult {
	if len(rec.OCRNutrition) == 0 {
		return ValidationResult{ProductName: rec.ProductName, Status: model.ValidationClean}
	}

	var offending []string
	for _, field := range crossCheckFields {
		official := coerceFloat(rec.NutritionRaw[field])
		secondary := coerceFloat(rec.OCRNutrition[field])
		baseline := math.Max(official, 1.0)
		if math.Abs(official-secondary)/baseline > crossCheckTolerance {
			offending = append(offending, field)
		}
	}

	status := model.ValidationClean
	if len(offending) > 0 {
		status = model.ValidationNeedsReview
	}
	return ValidationResult{
		ProductName:     rec.ProductName,
		Status:          status,
		OffendingFields: offending,
	}
}

// nutritionFromRaw coerces the free-form raw mapping into the fixed typed
// profile. Missing, unparsable, or negative values default to zero so the
// non-negativity invariant always holds past this point.
func nutritionFromRaw(raw map[string]any) model.NutritionProfile {
	return model.NutritionProfile{
		ServingML:     coerceInt(raw["servingMl"]),
		ServingKcal:   coerceInt(raw["servingKcal"]),
		SaturatedFatG: coerceFloat(raw["saturatedFatG"]),
		ProteinG:      coerceFloat(raw["proteinG"]),
		SodiumMg:      coerceFloat(raw["sodiumMg"]),
		SugarG:        coerceFloat(raw["sugarG"]),
		CaffeineMg:    coerceFloat(raw["caffeineMg"]),
	}
}

func coerceFloat(v any) float64 {
	var f float64
	switch val := v.(type) {
	case float64:
		f = val
	case float32:
		f = float64(val)
	case int:
		f = float64(val)
	case int64:
		f = float64(val)
	case string:
		parsed, err := strconv.ParseFloat(strings.TrimSpace(strings.ReplaceAll(val, ",", "")), 64)
		if err != nil {
			return 0
		}
		f = parsed
	default:
		return 0
	}
	if f < 0 {
		return 0
	}
	return f
}

func coerceInt(v any) int {
	return int(coerceFloat(v))
}
