package rewrite

import (
	"regexp"
	"sort"
	"strings"
)

// triggerPattern detects allergy, intolerance, avoidance, and substitution
// phrasing in Korean and English. Recall-oriented on purpose.
var triggerPattern = regexp.MustCompile(
	`(?i)(알레르|알러지|알레르겐|알러젠|과민|민감|불내증|못\s*먹|먹지\s*못|금기|피하|제외|빼(고|줘)?|제거|대체|대신|치환|substitut\w*|allerg\w*|intoleran\w*|avoid|can'?t\s*eat|without)`,
)

// allergenSynonyms maps canonical allergen keys to surface variants.
var allergenSynonyms = map[string][]string{
	"pork":         {"돼지고기", "돼지", "pork"},
	"beef":         {"소고기", "소", "beef"},
	"chicken":      {"닭고기", "닭", "chicken"},
	"egg":          {"계란", "달걀", "egg", "eggs"},
	"milk":         {"우유", "유제품", "치즈", "버터", "milk", "dairy", "cheese", "butter", "lactose"},
	"soy":          {"대두", "콩", "두부", "soy", "soybean", "tofu"},
	"wheat_gluten": {"밀", "밀가루", "글루텐", "wheat", "flour", "gluten"},
	"peanut":       {"땅콩", "peanut", "peanuts"},
	"tree_nut":     {"견과", "아몬드", "호두", "캐슈", "피칸", "헤이즐넛", "nut", "nuts", "almond", "walnut", "cashew", "pecan", "hazelnut"},
	"sesame":       {"참깨", "들깨", "깨", "sesame", "perilla"},
	"crustacean":   {"갑각류", "새우", "게", "랍스터", "가재", "crustacean", "shrimp", "prawn", "crab", "lobster"},
	"shellfish":    {"조개류", "홍합", "바지락", "조개", "굴", "전복", "가리비", "shellfish", "clam", "mussel", "oyster", "scallop"},
	"fish":         {"생선", "참치", "연어", "대구", "고등어", "fish", "salmon", "tuna", "cod", "mackerel"},
	"celery":       {"셀러리", "celery"},
	"mustard":      {"겨자", "머스타드", "mustard"},
	"tomato":       {"토마토", "tomato"},
}

// DetectTriggers reports whether text expresses allergy or substitution
// intent.
func DetectTriggers(text string) bool {
	return text != "" && triggerPattern.MatchString(text)
}

// ExtractAllergens scans text for allergen synonyms and returns the sorted
// canonical keys found.
func ExtractAllergens(text string) []string {
	if text == "" {
		return nil
	}
	t := strings.ToLower(strings.TrimSpace(text))
	var found []string
	for canon, syns := range allergenSynonyms {
		for _, s := range syns {
			if strings.Contains(t, strings.ToLower(s)) {
				found = append(found, canon)
				break
			}
		}
	}
	sort.Strings(found)
	return found
}

// BuildConstraintText renders the allergen set as the Korean constraint
// clause appended to the rewrite input.
func BuildConstraintText(allergens []string) string {
	if len(allergens) == 0 {
		return ""
	}
	return "제약: 알레르기/제외 대상 [" + strings.Join(allergens, ", ") + "] 제외, 적절한 대체재를 반영해 검색 최적화."
}
