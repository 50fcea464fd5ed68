package rules

import (
	"strings"

	"github.com/aixlab/aix/internal/stringutils"
	"github.com/aixlab/aix/knowledge"
	"github.com/aixlab/aix/retrieval"
)

// Condition operators.
const (
	OpIntentIs           = "intent_is"
	OpQueryContains      = "query_contains"
	OpContextHasKind     = "context_has_kind"
	OpContextMissingKind = "context_missing_kind"
	OpContextHasKeyword  = "context_has_keyword"
)

// evalCondition checks one predicate against the retrieval pool. Unknown
// operators never match.
func evalCondition(cond knowledge.Condition, pool *retrieval.Pool) bool {
	switch cond.Op {
	case OpIntentIs:
		return string(pool.Intent) == cond.Value
	case OpQueryContains:
		return strings.Contains(stringutils.Clean(pool.Query), stringutils.Clean(cond.Value))
	case OpContextHasKind:
		return poolHasKind(pool, cond.Value)
	case OpContextMissingKind:
		return !poolHasKind(pool, cond.Value)
	case OpContextHasKeyword:
		keyword := stringutils.Clean(cond.Value)
		for _, cand := range pool.Candidates {
			if strings.Contains(stringutils.Clean(cand.Item.EmbeddingText), keyword) {
				return true
			}
		}
		return false
	default:
		return false
	}
}

func poolHasKind(pool *retrieval.Pool, kind string) bool {
	for _, cand := range pool.Candidates {
		if string(cand.Item.Kind) == kind {
			return true
		}
	}
	return false
}

// evalConditions combines the predicates with the given match mode. "any"
// needs one hit; everything else behaves as "all". Empty condition lists
// never match, so a malformed rule cannot fire unconditionally.
func evalConditions(conds []knowledge.Condition, match string, pool *retrieval.Pool) bool {
	if len(conds) == 0 {
		return false
	}
	if match == "any" {
		for _, cond := range conds {
			if evalCondition(cond, pool) {
				return true
			}
		}
		return false
	}
	for _, cond := range conds {
		if !evalCondition(cond, pool) {
			return false
		}
	}
	return true
}
