package assistant

import (
	"regexp"
	"sort"
)

type languageRule struct {
	language string
	priority int
	re       *regexp.Regexp
}

// Detection rules, highest priority wins. Turkish-specific letters are a
// stronger signal than English stopwords, which also show up in mixed text.
var languageRules = []languageRule{
	{language: "tr", priority: 10, re: regexp.MustCompile(`[çğıöşüÇĞİÖŞÜ]`)},
	{language: "en", priority: 5, re: regexp.MustCompile(`(?i)\b(the|and|is|are|what|how|this|that)\b`)},
}

// DetectLanguage returns the language of the text, or fallback when no rule
// matches.
func DetectLanguage(text, fallback string) string {
	var matched []languageRule
	for _, rule := range languageRules {
		if rule.re.MatchString(text) {
			matched = append(matched, rule)
		}
	}
	if len(matched) == 0 {
		return fallback
	}
	sort.SliceStable(matched, func(i, j int) bool {
		return matched[i].priority > matched[j].priority
	})
	return matched[0].language
}
