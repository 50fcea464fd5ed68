package retrieval

import (
	"strings"

	"github.com/aixlab/aix/internal/stringutils"
)

type Intent string

const (
	IntentDefinition Intent = "definition"
	IntentProcedure  Intent = "procedure"
	IntentComparison Intent = "comparison"
	IntentQuestion   Intent = "question"
	IntentStatement  Intent = "statement"
)

var (
	definitionPhrases = []string{"nedir", "ne demek", "anlamı", "tanımı", "what is", "define"}
	procedurePhrases  = []string{"nasıl", "adımları", "yapılır", "how to", "how do"}
	comparisonPhrases = []string{"fark", "karşılaştır", "arasındaki", "hangisi", "difference", "compare"}
	questionSuffixes  = []string{"mı", "mi", "mu", "mü", "mıdır", "midir"}
)

// DetectIntent classifies the query with phrase heuristics. Phrase checks run
// in fixed precedence; a trailing question mark or Turkish question particle
// still makes an otherwise unmatched query a question.
func DetectIntent(query string) Intent {
	cleaned := stringutils.Clean(query)

	for _, p := range definitionPhrases {
		if strings.Contains(cleaned, p) {
			return IntentDefinition
		}
	}
	for _, p := range procedurePhrases {
		if strings.Contains(cleaned, p) {
			return IntentProcedure
		}
	}
	for _, p := range comparisonPhrases {
		if strings.Contains(cleaned, p) {
			return IntentComparison
		}
	}

	if strings.HasSuffix(strings.TrimSpace(query), "?") {
		return IntentQuestion
	}
	tokens := stringutils.Tokenize(query)
	for _, tok := range tokens {
		for _, suffix := range questionSuffixes {
			if tok == suffix {
				return IntentQuestion
			}
		}
	}

	return IntentStatement
}
