package knowledge

import (
	"sort"
	"strings"

	"gorm.io/datatypes"

	"github.com/aixlab/aix/internal/stringutils"
)

func newJSONContent(m map[string]any) datatypes.JSONType[map[string]any] {
	return datatypes.NewJSONType(m)
}

func newJSONVector(v []float32) datatypes.JSONType[[]float32] {
	return datatypes.NewJSONType(v)
}

// lexicalScore is the fraction of query tokens found in the text.
func lexicalScore(text string, tokens []string) float32 {
	if len(tokens) == 0 {
		return 0
	}
	lowered := strings.ToLower(text)
	matched := 0
	for _, tok := range tokens {
		if strings.Contains(lowered, tok) {
			matched++
		}
	}
	return float32(matched) / float32(len(tokens))
}

func sortHitsByScore(hits []SearchHit) {
	sort.SliceStable(hits, func(i, j int) bool {
		return hits[i].Score > hits[j].Score
	})
}

// keywordsIntersect reports whether the payload's "keywords" array shares at
// least one entry with the wanted set. Comparison is case-insensitive on
// normalized tokens.
func keywordsIntersect(payload map[string]any, wanted map[string]struct{}) bool {
	raw, ok := payload["keywords"]
	if !ok {
		return false
	}
	list, ok := raw.([]any)
	if !ok {
		return false
	}
	for _, v := range list {
		kw, ok := v.(string)
		if !ok {
			continue
		}
		if _, hit := wanted[stringutils.Clean(kw)]; hit {
			return true
		}
	}
	return false
}
