package source

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sipwell/nutrition-pipeline/internal/config"
	"github.com/sipwell/nutrition-pipeline/internal/model"
)

func testBrand() config.BrandConfig {
	return config.BrandConfig{
		Name:  "Starbucks",
		Label: "스타벅스",
		Feed:  "feeds/starbucks.json",
	}
}

func TestDecodeFeed_Basic(t *testing.T) {
	body := []byte(`[
		{
			"productName": "카페 아메리카노",
			"size": "TALL",
			"beverageType": "ESPRESSO",
			"nutrition": {"servingKcal": 10, "caffeineMg": 150},
			"sourceType": "HTML"
		}
	]`)

	records, err := decodeFeed(body, testBrand(), "batch-1", "feeds/starbucks.json")
	require.NoError(t, err)
	require.Len(t, records, 1)

	rec := records[0]
	assert.Equal(t, "Starbucks", rec.Brand)
	assert.Equal(t, "카페 아메리카노", rec.ProductName)
	assert.Equal(t, "TALL", rec.Size)
	require.NotNil(t, rec.BeverageType)
	assert.Equal(t, "ESPRESSO", *rec.BeverageType)
	assert.Equal(t, model.SourceHTML, rec.Source.SourceType)
	assert.Equal(t, "batch-1", rec.Source.BatchID)
	assert.Equal(t, model.Checksum(rec.NutritionRaw), rec.Source.Checksum)
}

func TestDecodeFeed_ChecksumPerRecord(t *testing.T) {
	body := []byte(`[
		{"productName": "카페 아메리카노", "size": "TALL", "nutrition": {"servingKcal": 10}},
		{"productName": "카페 라떼", "size": "TALL", "nutrition": {"servingKcal": 180}}
	]`)

	records, err := decodeFeed(body, testBrand(), "batch-1", "feed")
	require.NoError(t, err)
	require.Len(t, records, 2)

	assert.Equal(t, model.Checksum(records[0].NutritionRaw), records[0].Source.Checksum)
	assert.Equal(t, model.Checksum(records[1].NutritionRaw), records[1].Source.Checksum)
	assert.NotEqual(t, records[0].Source.Checksum, records[1].Source.Checksum)
}

func TestDecodeFeed_SchemaDriftSkipsEntry(t *testing.T) {
	body := []byte(`[
		{"productName": "콜드 브루", "size": "TALL", "nutrition": {}},
		{"productName": "", "size": "TALL", "nutrition": {}},
		{"productName": "망고 주스", "size": "", "nutrition": {}}
	]`)

	records, err := decodeFeed(body, testBrand(), "batch-1", "feed")
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "콜드 브루", records[0].ProductName)
}

func TestDecodeFeed_MalformedBody(t *testing.T) {
	_, err := decodeFeed([]byte(`{not json`), testBrand(), "batch-1", "feed")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "decode feed")
}

func TestDecodeFeed_StripsBOM(t *testing.T) {
	body := append([]byte("\ufeff"), []byte(`[{"productName":"티","size":"TALL","nutrition":{}}]`)...)

	records, err := decodeFeed(body, testBrand(), "batch-1", "feed")
	require.NoError(t, err)
	assert.Len(t, records, 1)
}

func TestDecodeFeed_InferType(t *testing.T) {
	brand := config.BrandConfig{Name: "MegaCoffee", Label: "메가커피", InferType: true}
	body := []byte(`[
		{"productName": "메가 아메리카노", "size": "MEGA", "nutrition": {}},
		{"productName": "딸기 스무디", "size": "MEGA", "nutrition": {}},
		{"productName": "미네랄 워터", "size": "MEGA", "nutrition": {}},
		{"productName": "복숭아 아이스티", "size": "MEGA", "beverageType": "TEA", "nutrition": {}}
	]`)

	records, err := decodeFeed(body, brand, "batch-1", "feed")
	require.NoError(t, err)
	require.Len(t, records, 4)

	assert.Equal(t, "COFFEE", *records[0].BeverageType)
	assert.Equal(t, "SMOOTHIE_FRAPPE", *records[1].BeverageType)
	assert.Equal(t, "OTHERS", *records[2].BeverageType)
	// A provided type is never overwritten by inference.
	assert.Equal(t, "TEA", *records[3].BeverageType)
}

func TestDecodeFeed_NoInferenceWithoutOptIn(t *testing.T) {
	body := []byte(`[{"productName": "카페 라떼", "size": "TALL", "nutrition": {}}]`)

	records, err := decodeFeed(body, testBrand(), "batch-1", "feed")
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Nil(t, records[0].BeverageType)
}

func TestDecodeFeed_OCRFields(t *testing.T) {
	conf := `[{
		"productName": "자몽 에이드",
		"size": "VENTI",
		"nutrition": {"servingKcal": 120},
		"ocrNutrition": {"servingKcal": 121},
		"ocrConfidence": 0.93,
		"sourceType": "PNG"
	}]`

	records, err := decodeFeed([]byte(conf), testBrand(), "batch-1", "feed")
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, model.SourcePNG, records[0].Source.SourceType)
	require.NotNil(t, records[0].OCRConfidence)
	assert.InDelta(t, 0.93, *records[0].OCRConfidence, 1e-9)
	assert.Equal(t, float64(121), records[0].OCRNutrition["servingKcal"])
}

func TestResolveBeverageType(t *testing.T) {
	assert.Equal(t, "ESPRESSO", ResolveBeverageType("아무거나", "espresso"))
	assert.Equal(t, "COFFEE", ResolveBeverageType("헤이즐넛 커피", ""))
	assert.Equal(t, "ADE_JUICE", ResolveBeverageType("레몬 에이드", ""))
	assert.Equal(t, "CHOCOLATE", ResolveBeverageType("핫초코", ""))
	assert.Equal(t, "OTHERS", ResolveBeverageType("미네랄 워터", ""))
}
