package pipeline

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sipwell/nutrition-pipeline/internal/model"
)

func strPtr(s string) *string { return &s }

func floatPtr(f float64) *float64 { return &f }

func TestNormalize_TypedProfile(t *testing.T) {
	rec := model.RawRecord{
		Brand:        "Starbucks",
		ProductName:  "카페 모카",
		Size:         "GRANDE",
		BeverageType: strPtr("espresso"),
		NutritionRaw: map[string]any{
			"servingMl":     "473",
			"servingKcal":   290,
			"saturatedFatG": 8.0,
			"proteinG":      "10.5",
			"sodiumMg":      "1,150",
			"sugarG":        25,
			"caffeineMg":    95.0,
		},
		Source: model.SourceArtifact{BatchID: "batch-7"},
	}

	out := Normalize(rec, nil)
	assert.Equal(t, "ESPRESSO", out.BeverageType)
	assert.Equal(t, 473, out.Nutrition.ServingML)
	assert.Equal(t, 290, out.Nutrition.ServingKcal)
	assert.InDelta(t, 8.0, out.Nutrition.SaturatedFatG, 1e-9)
	assert.InDelta(t, 10.5, out.Nutrition.ProteinG, 1e-9)
	assert.InDelta(t, 1150, out.Nutrition.SodiumMg, 1e-9)
	assert.Equal(t, "batch-7", out.SourceBatch)
	assert.Equal(t, model.ValidationClean, out.ValidationStatus)
	assert.Nil(t, out.Notes)
}

func TestNormalize_MissingTypeBecomesUnknown(t *testing.T) {
	for _, bevType := range []*string{nil, strPtr(""), strPtr("  ")} {
		rec := model.RawRecord{ProductName: "뭔가", Size: "TALL", BeverageType: bevType}
		out := Normalize(rec, nil)
		assert.Equal(t, model.BeverageTypeUnknown, out.BeverageType)
	}
}

func TestNormalize_NegativeAndGarbageCoerceToZero(t *testing.T) {
	rec := model.RawRecord{
		ProductName: "이상한 음료",
		Size:        "TALL",
		NutritionRaw: map[string]any{
			"servingKcal": -5,
			"sugarG":      "n/a",
			"caffeineMg":  nil,
		},
	}

	out := Normalize(rec, nil)
	assert.Zero(t, out.Nutrition.ServingKcal)
	assert.Zero(t, out.Nutrition.SugarG)
	assert.Zero(t, out.Nutrition.CaffeineMg)
	assert.Zero(t, out.Nutrition.ServingML)
}

func TestNormalize_CrossCheckClean(t *testing.T) {
	rec := model.RawRecord{
		ProductName:  "카페 라떼",
		Size:         "TALL",
		NutritionRaw: map[string]any{"servingKcal": 100.0, "sugarG": 10.0},
		// Within 2% of official on every shared field.
		OCRNutrition:  map[string]any{"servingKcal": 101.0, "sugarG": 10.1},
		OCRConfidence: floatPtr(0.95),
	}

	summary := &ValidationSummary{}
	out := Normalize(rec, summary)
	assert.Equal(t, model.ValidationClean, out.ValidationStatus)
	assert.Nil(t, out.Notes)
	assert.Equal(t, 1, summary.Clean)
}

func TestNormalize_CrossCheckNeedsReview(t *testing.T) {
	rec := model.RawRecord{
		ProductName:  "카페 라떼",
		Size:         "TALL",
		NutritionRaw: map[string]any{"servingKcal": 100.0, "caffeineMg": 75.0},
		OCRNutrition: map[string]any{"servingKcal": 110.0, "caffeineMg": 75.0},
	}

	summary := &ValidationSummary{}
	out := Normalize(rec, summary)
	assert.Equal(t, model.ValidationNeedsReview, out.ValidationStatus)
	require.NotNil(t, out.Notes)
	assert.Contains(t, *out.Notes, "servingKcal")
	assert.NotContains(t, *out.Notes, "caffeineMg")
	assert.Equal(t, 1, summary.NeedsReview)
	assert.Equal(t, []string{"카페 라떼"}, summary.Offenders)
}

func TestNormalize_CrossCheckZeroBaseline(t *testing.T) {
	// Official zero uses a baseline of 1.0, so a tiny absolute OCR
	// difference does not explode into a division-by-zero flag.
	rec := model.RawRecord{
		ProductName:  "아이스 티",
		Size:         "TALL",
		NutritionRaw: map[string]any{"saturatedFatG": 0.0},
		OCRNutrition: map[string]any{"saturatedFatG": 0.01},
	}
	out := Normalize(rec, nil)
	assert.Equal(t, model.ValidationClean, out.ValidationStatus)
}

func TestNormalize_NoSecondaryMeansClean(t *testing.T) {
	rec := model.RawRecord{
		ProductName:  "녹차",
		Size:         "TALL",
		NutritionRaw: map[string]any{"servingKcal": 0},
	}
	out := Normalize(rec, nil)
	assert.Equal(t, model.ValidationClean, out.ValidationStatus)
}

func TestNormalizeBatch_Summary(t *testing.T) {
	records := []model.RawRecord{
		{
			ProductName:  "깨끗한 음료",
			Size:         "TALL",
			NutritionRaw: map[string]any{"servingKcal": 50.0},
			OCRNutrition: map[string]any{"servingKcal": 50.0},
		},
		{
			ProductName:  "수상한 음료",
			Size:         "TALL",
			NutritionRaw: map[string]any{"servingKcal": 50.0},
			OCRNutrition: map[string]any{"servingKcal": 80.0},
		},
	}

	out, summary := NormalizeBatch(records)
	require.Len(t, out, 2)
	assert.Equal(t, 2, summary.Inspected)
	assert.Equal(t, 1, summary.Clean)
	assert.Equal(t, 1, summary.NeedsReview)
}
