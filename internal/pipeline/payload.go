package pipeline

import (
	"crypto/sha1"
	"encoding/hex"
	"fmt"
	"strings"
	"time"

	"github.com/sipwell/nutrition-pipeline/internal/model"
)

// ProductID derives the stable public identifier for a record: the first
// two letters of the brand uppercased, a dash, and the first ten hex digits
// of the SHA-1 over "brand:product_name:size". Deterministic across runs
// and collision-resistant at the volumes this dataset sees.
func ProductID(rec model.CanonicalRecord) string {
	basis := fmt.Sprintf("%s:%s:%s", rec.Brand, rec.ProductName, rec.Size)
	digest := sha1.Sum([]byte(basis))
	hexDigest := hex.EncodeToString(digest[:])

	prefix := rec.Brand
	if len(prefix) > 2 {
		prefix = prefix[:2]
	}
	return strings.ToUpper(prefix) + "-" + hexDigest[:10]
}

// BuildPayload shapes valid merged records into the gold delivery payload.
// Items are grouped per brand in first-seen order and tagged with the
// localized brand label; unknown brands fall back to the raw brand name.
func BuildPayload(records []model.CanonicalRecord, labels map[string]string, generatedAt time.Time) model.DeliveryPayload {
	var brandOrder []string
	itemsByBrand := make(map[string][]model.PayloadItem)

	for _, rec := range records {
		if _, ok := itemsByBrand[rec.Brand]; !ok {
			brandOrder = append(brandOrder, rec.Brand)
		}
		itemsByBrand[rec.Brand] = append(itemsByBrand[rec.Brand], model.PayloadItem{
			ProductID:        ProductID(rec),
			Brand:            rec.Brand,
			ProductName:      rec.ProductName,
			Size:             rec.Size,
			BeverageType:     rec.BeverageType,
			SourceBatch:      rec.SourceBatch,
			ValidationStatus: rec.ValidationStatus,
			Notes:            rec.Notes,
			Nutrition:        rec.Nutrition,
		})
	}

	payload := model.DeliveryPayload{GeneratedAt: generatedAt}
	for _, brand := range brandOrder {
		label := labels[brand]
		if label == "" {
			label = brand
		}
		payload.Brands = append(payload.Brands, model.BrandPayload{
			BrandLabel: label,
			Items:      itemsByBrand[brand],
		})
	}
	return payload
}

// Sanitize strips internal-only fields (the derived product id and UI-only
// flags) from a delivery payload, producing the copy that is persisted for
// public consumption. The dispatch copy keeps those fields.
func Sanitize(payload model.DeliveryPayload) model.PublishedPayload {
	published := model.PublishedPayload{GeneratedAt: payload.GeneratedAt}
	for _, brand := range payload.Brands {
		out := model.PublishedBrand{BrandLabel: brand.BrandLabel}
		for _, item := range brand.Items {
			out.Items = append(out.Items, model.PublishedItem{
				Brand:            item.Brand,
				ProductName:      item.ProductName,
				Size:             item.Size,
				BeverageType:     item.BeverageType,
				SourceBatch:      item.SourceBatch,
				ValidationStatus: item.ValidationStatus,
				Notes:            item.Notes,
				Nutrition:        item.Nutrition,
			})
		}
		published.Brands = append(published.Brands, out)
	}
	return published
}
