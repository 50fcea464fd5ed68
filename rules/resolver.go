package rules

import (
	"context"
	"sort"
	"strings"
	"time"

	"github.com/aixlab/aix/entity"
	"github.com/aixlab/aix/internal/mylog"
	"github.com/aixlab/aix/internal/stringutils"
	"github.com/aixlab/aix/knowledge"
	"github.com/aixlab/aix/rank"
	"github.com/aixlab/aix/retrieval"
)

// Result kinds, in resolution precedence order.
const (
	ResultQAFound             = "qa_found"
	ResultProcedureFound      = "procedure_found"
	ResultRuleApplied         = "rule_applied"
	ResultHypothesisGenerated = "hypothesis_generated"
	ResultFactFound           = "fact_found"
	ResultFallback            = "fallback"
	ResultMultiStep           = "multi_step_result"
)

type (
	// Result is what resolution produced: a kind discriminator plus
	// kind-specific data for response generation.
	Result struct {
		Kind string
		Data map[string]any
	}

	// Renderer turns a template body and data into text. The default
	// implementation lives in the respond package; the interface is
	// declared here so rule resolution does not depend on it.
	Renderer interface {
		Render(ctx context.Context, body string, data map[string]any) (string, error)
	}

	// Resolver walks the resolution ladder over the ranked candidates:
	// direct QA or procedure match, rule sets, hypothesis templates, plain
	// facts, fallback.
	Resolver struct {
		logger   *mylog.Logger
		store    knowledge.Store
		renderer Renderer
	}
)

func NewResolver(logger *mylog.Logger, store knowledge.Store, renderer Renderer) *Resolver {
	return &Resolver{logger: logger, store: store, renderer: renderer}
}

// Resolve picks the answer for the pool. It always returns a Result; when
// nothing matches, the result is a fallback carrying the reason.
func (r *Resolver) Resolve(ctx context.Context, pool *retrieval.Pool, ranked []rank.Ranked) Result {
	if res, ok := r.directMatch(pool, ranked); ok {
		return res
	}
	if res, ok := r.applyRuleSets(ctx, pool, ranked); ok {
		return res
	}
	if res, ok := r.generateHypothesis(ctx, pool, ranked); ok {
		return res
	}
	if res, ok := r.firstFact(ranked); ok {
		return res
	}
	return Result{
		Kind: ResultFallback,
		Data: map[string]any{"reason": "no matching knowledge"},
	}
}

// directMatch looks for a stored question contained in the query (or the
// query contained in the stored question) and for a procedure whose name
// appears in the query.
func (r *Resolver) directMatch(pool *retrieval.Pool, ranked []rank.Ranked) (Result, bool) {
	cleanedQuery := stringutils.Clean(pool.Query)

	for _, rc := range ranked {
		item := rc.Candidate.Item
		switch item.Kind {
		case entity.KindQA:
			var qa knowledge.QA
			if err := knowledge.DecodeContent(item.Content.Data(), &qa); err != nil {
				continue
			}
			question := stringutils.Clean(qa.Question)
			if question == "" {
				continue
			}
			if strings.Contains(cleanedQuery, question) || strings.Contains(question, cleanedQuery) {
				return Result{
					Kind: ResultQAFound,
					Data: map[string]any{
						"item_id":  item.ID,
						"question": qa.Question,
						"answer":   qa.Answer,
					},
				}, true
			}
		case entity.KindProcedure:
			var proc knowledge.Procedure
			if err := knowledge.DecodeContent(item.Content.Data(), &proc); err != nil {
				continue
			}
			name := stringutils.Clean(proc.Name)
			if name != "" && strings.Contains(cleanedQuery, name) {
				return Result{
					Kind: ResultProcedureFound,
					Data: map[string]any{
						"item_id": item.ID,
						"name":    proc.Name,
						"steps":   proc.Steps,
					},
				}, true
			}
		}
	}
	return Result{}, false
}

// applyRuleSets walks the matched rule sets in ranked order. Rules are tried
// by priority within their own set, and the first set that fires wins; a
// high-priority rule in a lower-ranked set never preempts an earlier set.
func (r *Resolver) applyRuleSets(ctx context.Context, pool *retrieval.Pool, ranked []rank.Ranked) (Result, bool) {
	for _, rc := range ranked {
		item := rc.Candidate.Item
		if item.Kind != entity.KindRuleSet {
			continue
		}
		var set knowledge.RuleSet
		if err := knowledge.DecodeContent(item.Content.Data(), &set); err != nil {
			r.logger.Warn("malformed rule set", "id", item.ID, "err", err)
			continue
		}

		rules := make([]knowledge.Rule, len(set.Rules))
		copy(rules, set.Rules)
		sort.SliceStable(rules, func(i, j int) bool {
			return rules[i].Priority > rules[j].Priority
		})

		for _, rule := range rules {
			if !evalConditions(rule.Conditions, rule.Match, pool) {
				continue
			}
			if data, ok := r.runAction(ctx, rule, item.ID); ok {
				return Result{Kind: ResultRuleApplied, Data: data}, true
			}
		}
	}
	return Result{}, false
}

func (r *Resolver) runAction(ctx context.Context, rule knowledge.Rule, itemID string) (map[string]any, bool) {
	switch rule.Action.Type {
	case "respond":
		return map[string]any{
			"item_id":  itemID,
			"rule":     rule.Name,
			"response": rule.Action.Value,
		}, true
	case "fetch_fact":
		items, err := r.store.Find(ctx, knowledge.Filter{
			Kinds:       []entity.Kind{entity.KindFact},
			NotStatuses: []entity.ValidationStatus{entity.StatusInvalid, entity.StatusUnused},
			Keyword:     rule.Action.Keyword,
		}, &knowledge.Sort{Field: "created_at", Desc: true}, 1)
		if err != nil || len(items) == 0 {
			if err != nil {
				r.logger.Warn("fetch_fact action failed", "rule", rule.Name, "err", err)
			}
			return nil, false
		}
		var fact knowledge.Fact
		if err := knowledge.DecodeContent(items[0].Content.Data(), &fact); err != nil {
			return nil, false
		}
		return map[string]any{
			"item_id":  itemID,
			"rule":     rule.Name,
			"response": fact.Text,
			"fact_id":  items[0].ID,
		}, true
	default:
		r.logger.Warn("unknown rule action", "rule", rule.Name, "type", rule.Action.Type)
		return nil, false
	}
}

// generateHypothesis fires the first hypothesis template whose trigger holds.
// A failing render degrades to the raw template body.
func (r *Resolver) generateHypothesis(ctx context.Context, pool *retrieval.Pool, ranked []rank.Ranked) (Result, bool) {
	for _, rc := range ranked {
		item := rc.Candidate.Item
		if item.Kind != entity.KindHypothesisTemplate {
			continue
		}
		var tmpl knowledge.HypothesisTemplate
		if err := knowledge.DecodeContent(item.Content.Data(), &tmpl); err != nil {
			r.logger.Warn("malformed hypothesis template", "id", item.ID, "err", err)
			continue
		}
		if !evalConditions(tmpl.Trigger, tmpl.Match, pool) {
			continue
		}

		text, err := r.renderer.Render(ctx, tmpl.Template, map[string]any{
			"query":        pool.Query,
			"intent":       string(pool.Intent),
			"current_time": time.Now().Format(time.RFC3339),
		})
		if err != nil {
			r.logger.Warn("hypothesis render failed, using raw template", "id", item.ID, "err", err)
			text = tmpl.Template
		}
		return Result{
			Kind: ResultHypothesisGenerated,
			Data: map[string]any{
				"item_id": item.ID,
				"text":    text,
			},
		}, true
	}
	return Result{}, false
}

func (r *Resolver) firstFact(ranked []rank.Ranked) (Result, bool) {
	for _, rc := range ranked {
		item := rc.Candidate.Item
		if item.Kind != entity.KindFact {
			continue
		}
		var fact knowledge.Fact
		if err := knowledge.DecodeContent(item.Content.Data(), &fact); err != nil {
			continue
		}
		return Result{
			Kind: ResultFactFound,
			Data: map[string]any{
				"item_id": item.ID,
				"text":    fact.Text,
			},
		}, true
	}
	return Result{}, false
}
