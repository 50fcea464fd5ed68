package respond

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/samber/lo"

	"github.com/aixlab/aix/config"
	"github.com/aixlab/aix/entity"
	"github.com/aixlab/aix/internal/mylog"
	"github.com/aixlab/aix/knowledge"
	"github.com/aixlab/aix/rules"
	"github.com/aixlab/aix/session"
)

// Style hint vocabulary shared by prompt parsing and template tags.
const (
	HintShort  = "kısa"
	HintLong   = "uzun"
	HintFormal = "resmi"
	HintCasual = "samimi"
)

// Generator shapes resolution results into the final response text. When a
// stored response template fits the result kind it wins; otherwise the raw
// payload text goes out as-is.
type Generator struct {
	logger   *mylog.Logger
	store    knowledge.Store
	renderer rules.Renderer
	conf     *config.QueryConfig
}

func NewGenerator(logger *mylog.Logger, store knowledge.Store, renderer rules.Renderer, conf *config.QueryConfig) *Generator {
	return &Generator{
		logger:   logger,
		store:    store,
		renderer: renderer,
		conf:     conf,
	}
}

// ParseHints extracts style hints from a free-text prompt definition.
func ParseHints(prompt string) []string {
	lowered := strings.ToLower(prompt)
	var hints []string
	for _, hint := range []string{HintShort, HintLong, HintFormal, HintCasual} {
		if strings.Contains(lowered, hint) {
			hints = append(hints, hint)
		}
	}
	return hints
}

// contextTags derives style tags from the session: consistently short past
// responses suggest the user prefers brevity.
func contextTags(sess *session.Context) []string {
	if sess == nil {
		return nil
	}
	entries := sess.History()
	if len(entries) == 0 {
		return nil
	}
	last := entries[len(entries)-1]
	if len([]rune(last.Response)) < 80 {
		return []string{HintShort}
	}
	if len([]rune(last.Response)) > 400 {
		return []string{HintLong}
	}
	return nil
}

type scoredTemplate struct {
	item  entity.KnowledgeItem
	tmpl  knowledge.ResponseTemplate
	score float32
}

// SelectTemplate returns the best-scoring active response template for the
// result kind, or nil when no template scores above zero.
func (g *Generator) SelectTemplate(ctx context.Context, resultKind string, tags, hints []string) (*knowledge.ResponseTemplate, error) {
	active := true
	items, err := g.store.Find(ctx, knowledge.Filter{
		Kinds:  []entity.Kind{entity.KindResponseTemplate},
		Active: &active,
	}, nil, 0)
	if err != nil {
		return nil, err
	}

	wanted := lo.Union(tags, hints)

	var best *scoredTemplate
	for _, item := range items {
		var tmpl knowledge.ResponseTemplate
		if err := knowledge.DecodeContent(item.Content.Data(), &tmpl); err != nil {
			g.logger.Warn("malformed response template", "id", item.ID, "err", err)
			continue
		}

		var score float32
		switch {
		case lo.Contains(tmpl.ResultKinds, resultKind):
			score += 10
		case lo.Contains(tmpl.ResultKinds, "general"):
			score += 1
		default:
			continue
		}

		for _, tag := range tmpl.Tags {
			if lo.Contains(wanted, tag) {
				score += 2
			}
		}
		if conflicts(tmpl.Tags, wanted, HintShort, HintLong) {
			score -= 1.5
		}
		if conflicts(tmpl.Tags, wanted, HintFormal, HintCasual) {
			score -= 1.0
		}

		if score > 0 && (best == nil || score > best.score) {
			best = &scoredTemplate{item: item, tmpl: tmpl, score: score}
		}
	}
	if best == nil {
		return nil, nil
	}
	return &best.tmpl, nil
}

// conflicts reports whether the template declares one style of an opposing
// pair while the request asks for the other.
func conflicts(tags, wanted []string, a, b string) bool {
	return (lo.Contains(tags, a) && lo.Contains(wanted, b)) ||
		(lo.Contains(tags, b) && lo.Contains(wanted, a))
}

// Respond produces the final response text for a resolution result. Template
// failures degrade to the raw payload, and an empty payload degrades to the
// configured fallback response.
func (g *Generator) Respond(ctx context.Context, result rules.Result, sess *session.Context, userQuery string, promptHints []string) string {
	raw := g.rawText(result)

	tmpl, err := g.SelectTemplate(ctx, result.Kind, contextTags(sess), promptHints)
	if err != nil {
		g.logger.Warn("template selection failed", "kind", result.Kind, "err", err)
	}
	if tmpl != nil {
		data := map[string]any{
			"data":            result.Data,
			"inference_kind":  result.Kind,
			"current_time":    time.Now().Format(time.RFC3339),
			"session_history": historyData(sess),
			"user_query":      userQuery,
		}
		text, err := g.renderer.Render(ctx, tmpl.Body, data)
		if err == nil {
			return text
		}
		g.logger.Warn("response template render failed, using raw payload", "template", tmpl.Name, "err", err)
	}

	if raw != "" {
		return raw
	}
	return g.conf.DefaultFallbackResponse
}

func historyData(sess *session.Context) []map[string]string {
	if sess == nil {
		return nil
	}
	entries := sess.History()
	out := make([]map[string]string, 0, len(entries))
	for _, ent := range entries {
		out = append(out, map[string]string{"query": ent.Query, "response": ent.Response})
	}
	return out
}

// rawText flattens a result into plain response text without a template.
func (g *Generator) rawText(result rules.Result) string {
	str := func(key string) string {
		if v, ok := result.Data[key].(string); ok {
			return v
		}
		return ""
	}

	switch result.Kind {
	case rules.ResultQAFound:
		return str("answer")
	case rules.ResultProcedureFound:
		steps, _ := result.Data["steps"].([]string)
		if len(steps) == 0 {
			return str("name")
		}
		var sb strings.Builder
		fmt.Fprintf(&sb, "%s:\n", str("name"))
		for i, step := range steps {
			fmt.Fprintf(&sb, "%d. %s\n", i+1, step)
		}
		return strings.TrimRight(sb.String(), "\n")
	case rules.ResultRuleApplied:
		return str("response")
	case rules.ResultHypothesisGenerated, rules.ResultFactFound:
		return str("text")
	case rules.ResultMultiStep:
		return str("summary")
	default:
		return ""
	}
}
