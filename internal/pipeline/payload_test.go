package pipeline

import (
	"crypto/sha1"
	"encoding/hex"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sipwell/nutrition-pipeline/internal/model"
)

func TestProductID_Shape(t *testing.T) {
	rec := canonical("Starbucks", "카페 아메리카노", "TALL")
	id := ProductID(rec)

	digest := sha1.Sum([]byte("Starbucks:카페 아메리카노:TALL"))
	expected := "ST-" + hex.EncodeToString(digest[:])[:10]
	assert.Equal(t, expected, id)
}

func TestProductID_Deterministic(t *testing.T) {
	rec := canonical("MegaCoffee", "메가 라떼", "MEGA")
	assert.Equal(t, ProductID(rec), ProductID(rec))
	assert.True(t, strings.HasPrefix(ProductID(rec), "ME-"))
}

func TestProductID_DistinctPerSize(t *testing.T) {
	tall := canonical("Starbucks", "아메리카노", "TALL")
	grande := canonical("Starbucks", "아메리카노", "GRANDE")
	assert.NotEqual(t, ProductID(tall), ProductID(grande))
}

func TestProductID_ShortBrand(t *testing.T) {
	rec := canonical("X", "음료", "TALL")
	assert.True(t, strings.HasPrefix(ProductID(rec), "X-"))
}

func TestBuildPayload_GroupsByBrandInFirstSeenOrder(t *testing.T) {
	now := time.Now().UTC()
	records := []model.CanonicalRecord{
		canonical("Starbucks", "아메리카노", "TALL"),
		canonical("MegaCoffee", "메가 라떼", "MEGA"),
		canonical("Starbucks", "라떼", "GRANDE"),
	}
	labels := map[string]string{"Starbucks": "스타벅스", "MegaCoffee": "메가커피"}

	payload := BuildPayload(records, labels, now)
	assert.Equal(t, now, payload.GeneratedAt)
	require.Len(t, payload.Brands, 2)
	assert.Equal(t, "스타벅스", payload.Brands[0].BrandLabel)
	assert.Len(t, payload.Brands[0].Items, 2)
	assert.Equal(t, "메가커피", payload.Brands[1].BrandLabel)

	item := payload.Brands[0].Items[0]
	assert.NotEmpty(t, item.ProductID)
	assert.Equal(t, "Starbucks", item.Brand)
	assert.False(t, item.IsLiked)
}

func TestBuildPayload_UnknownBrandFallsBackToName(t *testing.T) {
	payload := BuildPayload(
		[]model.CanonicalRecord{canonical("Paik", "아메리카노", "L")},
		map[string]string{},
		time.Now(),
	)
	require.Len(t, payload.Brands, 1)
	assert.Equal(t, "Paik", payload.Brands[0].BrandLabel)
}

func TestSanitize_StripsInternalFields(t *testing.T) {
	now := time.Now().UTC()
	payload := BuildPayload(
		[]model.CanonicalRecord{canonical("Starbucks", "아메리카노", "TALL")},
		map[string]string{"Starbucks": "스타벅스"},
		now,
	)
	payload.Brands[0].Items[0].IsLiked = true

	published := Sanitize(payload)
	assert.Equal(t, now, published.GeneratedAt)
	require.Len(t, published.Brands, 1)
	assert.Equal(t, "스타벅스", published.Brands[0].BrandLabel)
	require.Len(t, published.Brands[0].Items, 1)

	item := published.Brands[0].Items[0]
	assert.Equal(t, "아메리카노", item.ProductName)
	assert.Equal(t, "COFFEE", item.BeverageType)
}

func TestSanitize_PreservesCounts(t *testing.T) {
	records := []model.CanonicalRecord{
		canonical("Starbucks", "a", "TALL"),
		canonical("Starbucks", "b", "GRANDE"),
		canonical("MegaCoffee", "c", "MEGA"),
	}
	payload := BuildPayload(records, map[string]string{}, time.Now())

	published := Sanitize(payload)
	require.Len(t, published.Brands, len(payload.Brands))
	for i := range payload.Brands {
		assert.Len(t, published.Brands[i].Items, len(payload.Brands[i].Items))
	}
}
