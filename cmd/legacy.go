package main

import (
	"strings"

	"github.com/sipwell/nutrition-pipeline/internal/model"
)

// legacyBrandNames maps canonical brand names to the identifiers the
// historical /api/v1/beverages consumers expect.
var legacyBrandNames = map[string]string{
	"Starbucks":  "STARBUCKS",
	"MegaCoffee": "MEGA_COFFEE",
}

// legacyBeverage is one product in the historical response shape. Starbucks
// carries nutritions as a size-keyed map; every other brand carries a list of
// size-tagged entries.
type legacyBeverage struct {
	Brand              string `json:"brand"`
	Name               string `json:"name"`
	Image              string `json:"image"`
	BeverageType       string `json:"beverageType"`
	BeverageNutritions any    `json:"beverageNutritions"`
}

// goldToLegacy converts the published gold payload into the historical
// per-product grouping. Products appear in first-seen payload order. An empty
// brand filter keeps every brand; matching is case-insensitive on the
// canonical brand name.
func goldToLegacy(payload *model.PublishedPayload, brandFilter string) []legacyBeverage {
	brandFilter = strings.ToLower(strings.TrimSpace(brandFilter))

	type groupKey struct{ brand, name string }
	grouped := make(map[groupKey]int)
	var beverages []legacyBeverage

	for _, brandEntry := range payload.Brands {
		for _, item := range brandEntry.Items {
			if item.Brand == "" {
				continue
			}
			if brandFilter != "" && strings.ToLower(item.Brand) != brandFilter {
				continue
			}

			key := groupKey{brand: item.Brand, name: item.ProductName}
			idx, ok := grouped[key]
			if !ok {
				label, found := legacyBrandNames[item.Brand]
				if !found {
					label = strings.ToUpper(item.Brand)
				}
				bev := legacyBeverage{
					Brand:        label,
					Name:         item.ProductName,
					BeverageType: item.BeverageType,
				}
				if item.Brand == "Starbucks" {
					bev.BeverageNutritions = map[string]model.NutritionProfile{}
				} else {
					bev.BeverageNutritions = []map[string]any{}
				}
				beverages = append(beverages, bev)
				idx = len(beverages) - 1
				grouped[key] = idx
			}

			switch nutritions := beverages[idx].BeverageNutritions.(type) {
			case map[string]model.NutritionProfile:
				if item.Size != "" {
					nutritions[item.Size] = item.Nutrition
				}
			case []map[string]any:
				entry := nutritionEntry(item.Nutrition)
				if item.Size != "" {
					entry["size"] = item.Size
				}
				beverages[idx].BeverageNutritions = append(nutritions, entry)
			}
		}
	}

	if beverages == nil {
		return []legacyBeverage{}
	}
	return beverages
}

// nutritionEntry flattens a nutrition profile into the historical loose-map
// entry shape.
func nutritionEntry(n model.NutritionProfile) map[string]any {
	return map[string]any{
		"serving_ml":      n.ServingML,
		"serving_kcal":    n.ServingKcal,
		"saturated_fat_g": n.SaturatedFatG,
		"protein_g":       n.ProteinG,
		"sodium_mg":       n.SodiumMg,
		"sugar_g":         n.SugarG,
		"caffeine_mg":     n.CaffeineMg,
	}
}
