package source

import "strings"

// typeKeywords maps beverage types to the product-name keywords that imply
// them. Order matters: the first matching group wins.
var typeKeywords = []struct {
	beverageType string
	keywords     []string
}{
	{"COFFEE", []string{"커피", "아메리카노", "라떼", "에스프레소"}},
	{"SMOOTHIE_FRAPPE", []string{"스무디", "프라페", "쉐이크"}},
	{"ADE_JUICE", []string{"에이드", "주스"}},
	{"TEA", []string{"티", "차", "녹차"}},
	{"CHOCOLATE", []string{"초코", "핫초코"}},
	{"COLD_BREW", []string{"콜드 브루"}},
	{"BLENDED", []string{"블렌디드"}},
	{"FIZZIO", []string{"피지오"}},
	{"REFRESHER", []string{"리프레셔"}},
}

// ResolveBeverageType returns the provided beverage type uppercased when one
// exists, otherwise infers one from product-name keywords. Names matching no
// keyword resolve to OTHERS.
func ResolveBeverageType(productName, provided string) string {
	provided = strings.TrimSpace(provided)
	if provided != "" {
		return strings.ToUpper(provided)
	}

	lowered := strings.ToLower(productName)
	for _, group := range typeKeywords {
		for _, kw := range group.keywords {
			if strings.Contains(lowered, strings.ToLower(kw)) {
				return group.beverageType
			}
		}
	}
	return "OTHERS"
}
