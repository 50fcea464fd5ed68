package rank

import (
	"sort"

	"github.com/aixlab/aix/config"
	"github.com/aixlab/aix/entity"
	"github.com/aixlab/aix/internal/mylog"
	"github.com/aixlab/aix/retrieval"
)

type (
	// Ranked is a candidate with its final score after multipliers.
	Ranked struct {
		Candidate retrieval.Candidate
		Score     float32
	}

	// Ranker orders the candidate pool. Scoring is a pure function of each
	// candidate, so the ordering is deterministic for a given pool.
	Ranker struct {
		logger *mylog.Logger
		conf   *config.QueryConfig
	}
)

func NewRanker(logger *mylog.Logger, conf *config.QueryConfig) *Ranker {
	return &Ranker{logger: logger, conf: conf}
}

// Rank applies the multiplier table to every candidate, sorts descending and
// truncates to the result limit. Equal scores keep pool order (stable sort),
// so ties resolve by discovery order.
func (r *Ranker) Rank(pool *retrieval.Pool) []Ranked {
	ranked := make([]Ranked, 0, len(pool.Candidates))
	for _, cand := range pool.Candidates {
		ranked = append(ranked, Ranked{
			Candidate: cand,
			Score:     cand.Score * r.multiplier(cand),
		})
	}

	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].Score > ranked[j].Score
	})

	if len(ranked) > r.conf.ResultLimit {
		ranked = ranked[:r.conf.ResultLimit]
	}
	return ranked
}

// multiplier picks exactly one factor per candidate, in strict precedence:
// rule-set match, then hypothesis-template match, then validation status.
func (r *Ranker) multiplier(cand retrieval.Candidate) float32 {
	switch {
	case cand.FromKeywordLookup && cand.Item.Kind == entity.KindRuleSet:
		return r.conf.RuleMatchBonus
	case cand.FromKeywordLookup && cand.Item.Kind == entity.KindHypothesisTemplate:
		return r.conf.TemplateMatchBonus
	case cand.Item.ValidationStatus == entity.StatusValidated:
		return r.conf.ValidatedMultiplier
	case cand.Item.ValidationStatus == entity.StatusPending:
		return r.conf.PendingMultiplier
	default:
		return 1.0
	}
}
