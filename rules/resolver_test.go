package rules_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/datatypes"

	"github.com/aixlab/aix/entity"
	"github.com/aixlab/aix/errors"
	"github.com/aixlab/aix/internal/mylog"
	"github.com/aixlab/aix/knowledge"
	"github.com/aixlab/aix/rank"
	"github.com/aixlab/aix/retrieval"
	"github.com/aixlab/aix/rules"
)

type echoRenderer struct {
	fail bool
}

func (r *echoRenderer) Render(_ context.Context, body string, _ map[string]any) (string, error) {
	if r.fail {
		return "", errors.New("render error")
	}
	return "rendered: " + body, nil
}

func newResolver(t *testing.T, store knowledge.Store, renderer rules.Renderer) *rules.Resolver {
	t.Helper()
	return rules.NewResolver(mylog.NewLogger("error", "default"), store, renderer)
}

func rankedItem(id string, kind entity.Kind, content map[string]any, fromKeyword bool) rank.Ranked {
	return rank.Ranked{
		Candidate: retrieval.Candidate{
			Item: entity.KnowledgeItem{
				ID:            id,
				Kind:          kind,
				Content:       datatypes.NewJSONType(content),
				EmbeddingText: "",
			},
			FromKeywordLookup: fromKeyword,
		},
		Score: 1,
	}
}

func TestResolver_QADirectMatchWinsOverFact(t *testing.T) {
	store := knowledge.NewInMemoryStore(4)
	defer store.Close()
	resolver := newResolver(t, store, &echoRenderer{})

	pool := &retrieval.Pool{
		Query:  "VPN bağlantısı nasıl kurulur acaba",
		Intent: retrieval.IntentProcedure,
	}
	ranked := []rank.Ranked{
		rankedItem("fact-1", entity.KindFact, map[string]any{"text": "some fact"}, false),
		rankedItem("qa-1", entity.KindQA, map[string]any{
			"question": "VPN bağlantısı nasıl kurulur",
			"answer":   "Ayarlar > Ağ menüsünden",
		}, false),
	}

	result := resolver.Resolve(context.Background(), pool, ranked)
	assert.Equal(t, rules.ResultQAFound, result.Kind)
	assert.Equal(t, "Ayarlar > Ağ menüsünden", result.Data["answer"])
	assert.Equal(t, "qa-1", result.Data["item_id"])
}

func TestResolver_ProcedureNameMatch(t *testing.T) {
	store := knowledge.NewInMemoryStore(4)
	defer store.Close()
	resolver := newResolver(t, store, &echoRenderer{})

	pool := &retrieval.Pool{Query: "yazıcı kurulumu yapmam lazım"}
	ranked := []rank.Ranked{
		rankedItem("proc-1", entity.KindProcedure, map[string]any{
			"name":  "yazıcı kurulumu",
			"steps": []any{"Sürücüyü indir", "Kabloyu tak"},
		}, false),
	}

	result := resolver.Resolve(context.Background(), pool, ranked)
	assert.Equal(t, rules.ResultProcedureFound, result.Kind)
	assert.Equal(t, "yazıcı kurulumu", result.Data["name"])
}

func TestResolver_RuleSetBeatsFact(t *testing.T) {
	store := knowledge.NewInMemoryStore(4)
	defer store.Close()
	resolver := newResolver(t, store, &echoRenderer{})

	pool := &retrieval.Pool{
		Query:  "ağ sorunu var",
		Intent: retrieval.IntentStatement,
	}
	pool.Candidates = []retrieval.Candidate{
		{Item: entity.KnowledgeItem{ID: "fact-1", Kind: entity.KindFact}},
	}

	ranked := []rank.Ranked{
		rankedItem("fact-1", entity.KindFact, map[string]any{"text": "plain fact"}, false),
		rankedItem("rs-1", entity.KindRuleSet, map[string]any{
			"keywords": []any{"ağ"},
			"rules": []any{
				map[string]any{
					"name":     "network-escalation",
					"priority": 10,
					"match":    "all",
					"conditions": []any{
						map[string]any{"op": "query_contains", "value": "ağ"},
					},
					"action": map[string]any{"type": "respond", "value": "Ağ ekibine yönlendirildi"},
				},
			},
		}, true),
	}

	result := resolver.Resolve(context.Background(), pool, ranked)
	assert.Equal(t, rules.ResultRuleApplied, result.Kind)
	assert.Equal(t, "Ağ ekibine yönlendirildi", result.Data["response"])
	assert.Equal(t, "network-escalation", result.Data["rule"])
}

func TestResolver_RulePriorityOrder(t *testing.T) {
	store := knowledge.NewInMemoryStore(4)
	defer store.Close()
	resolver := newResolver(t, store, &echoRenderer{})

	pool := &retrieval.Pool{Query: "disk doldu", Intent: retrieval.IntentStatement}
	ranked := []rank.Ranked{
		rankedItem("rs-1", entity.KindRuleSet, map[string]any{
			"rules": []any{
				map[string]any{
					"name":     "low",
					"priority": 1,
					"conditions": []any{
						map[string]any{"op": "query_contains", "value": "disk"},
					},
					"action": map[string]any{"type": "respond", "value": "low wins"},
				},
				map[string]any{
					"name":     "high",
					"priority": 5,
					"conditions": []any{
						map[string]any{"op": "query_contains", "value": "disk"},
					},
					"action": map[string]any{"type": "respond", "value": "high wins"},
				},
			},
		}, true),
	}

	result := resolver.Resolve(context.Background(), pool, ranked)
	require.Equal(t, rules.ResultRuleApplied, result.Kind)
	assert.Equal(t, "high wins", result.Data["response"])
}

func TestResolver_FirstRankedRuleSetWins(t *testing.T) {
	store := knowledge.NewInMemoryStore(4)
	defer store.Close()
	resolver := newResolver(t, store, &echoRenderer{})

	pool := &retrieval.Pool{Query: "disk doldu", Intent: retrieval.IntentStatement}
	ranked := []rank.Ranked{
		rankedItem("rs-1", entity.KindRuleSet, map[string]any{
			"rules": []any{
				map[string]any{
					"name":     "first-low",
					"priority": 1,
					"conditions": []any{
						map[string]any{"op": "query_contains", "value": "disk"},
					},
					"action": map[string]any{"type": "respond", "value": "first set"},
				},
			},
		}, true),
		rankedItem("rs-2", entity.KindRuleSet, map[string]any{
			"rules": []any{
				map[string]any{
					"name":     "second-high",
					"priority": 10,
					"conditions": []any{
						map[string]any{"op": "query_contains", "value": "disk"},
					},
					"action": map[string]any{"type": "respond", "value": "second set"},
				},
			},
		}, true),
	}

	// Priority orders rules within a set, never across sets: a matching rule
	// in the first ranked set wins regardless of priorities elsewhere.
	result := resolver.Resolve(context.Background(), pool, ranked)
	require.Equal(t, rules.ResultRuleApplied, result.Kind)
	assert.Equal(t, "first set", result.Data["response"])
	assert.Equal(t, "rs-1", result.Data["item_id"])
}

func TestResolver_RankedOrderSkipsNonMatchingSet(t *testing.T) {
	store := knowledge.NewInMemoryStore(4)
	defer store.Close()
	resolver := newResolver(t, store, &echoRenderer{})

	pool := &retrieval.Pool{Query: "disk doldu", Intent: retrieval.IntentStatement}
	ranked := []rank.Ranked{
		rankedItem("rs-1", entity.KindRuleSet, map[string]any{
			"rules": []any{
				map[string]any{
					"name":     "no-match",
					"priority": 10,
					"conditions": []any{
						map[string]any{"op": "query_contains", "value": "ağ"},
					},
					"action": map[string]any{"type": "respond", "value": "wrong"},
				},
			},
		}, true),
		rankedItem("rs-2", entity.KindRuleSet, map[string]any{
			"rules": []any{
				map[string]any{
					"name":     "match",
					"priority": 1,
					"conditions": []any{
						map[string]any{"op": "query_contains", "value": "disk"},
					},
					"action": map[string]any{"type": "respond", "value": "second set"},
				},
			},
		}, true),
	}

	result := resolver.Resolve(context.Background(), pool, ranked)
	require.Equal(t, rules.ResultRuleApplied, result.Kind)
	assert.Equal(t, "second set", result.Data["response"])
}

func TestResolver_FetchFactAction(t *testing.T) {
	ctx := context.Background()
	store := knowledge.NewInMemoryStore(4)
	defer store.Close()
	resolver := newResolver(t, store, &echoRenderer{})

	_, err := store.Put(ctx, &entity.KnowledgeItem{
		Kind:          entity.KindFact,
		Content:       datatypes.NewJSONType(map[string]any{"text": "Bakım penceresi her pazar 02:00"}),
		EmbeddingText: "bakım penceresi pazar",
		Active:        true,
	})
	require.NoError(t, err)

	pool := &retrieval.Pool{Query: "bakım ne zaman", Intent: retrieval.IntentQuestion}
	ranked := []rank.Ranked{
		rankedItem("rs-1", entity.KindRuleSet, map[string]any{
			"rules": []any{
				map[string]any{
					"name": "maintenance-window",
					"conditions": []any{
						map[string]any{"op": "query_contains", "value": "bakım"},
					},
					"action": map[string]any{"type": "fetch_fact", "keyword": "bakım"},
				},
			},
		}, true),
	}

	result := resolver.Resolve(ctx, pool, ranked)
	require.Equal(t, rules.ResultRuleApplied, result.Kind)
	assert.Equal(t, "Bakım penceresi her pazar 02:00", result.Data["response"])
}

func TestResolver_HypothesisRenderFallsBackToRawTemplate(t *testing.T) {
	store := knowledge.NewInMemoryStore(4)
	defer store.Close()

	tmplContent := map[string]any{
		"trigger": []any{
			map[string]any{"op": "intent_is", "value": "definition"},
		},
		"template": "Bu bir tahmindir: {{.query}}",
	}

	pool := &retrieval.Pool{Query: "frob nedir", Intent: retrieval.IntentDefinition}
	ranked := []rank.Ranked{
		rankedItem("ht-1", entity.KindHypothesisTemplate, tmplContent, true),
	}

	// Working renderer.
	resolver := newResolver(t, store, &echoRenderer{})
	result := resolver.Resolve(context.Background(), pool, ranked)
	require.Equal(t, rules.ResultHypothesisGenerated, result.Kind)
	assert.Equal(t, "rendered: Bu bir tahmindir: {{.query}}", result.Data["text"])

	// Failing renderer degrades to the raw template body.
	resolver = newResolver(t, store, &echoRenderer{fail: true})
	result = resolver.Resolve(context.Background(), pool, ranked)
	require.Equal(t, rules.ResultHypothesisGenerated, result.Kind)
	assert.Equal(t, "Bu bir tahmindir: {{.query}}", result.Data["text"])
}

func TestResolver_EmptyConditionsNeverFire(t *testing.T) {
	store := knowledge.NewInMemoryStore(4)
	defer store.Close()
	resolver := newResolver(t, store, &echoRenderer{})

	pool := &retrieval.Pool{Query: "herhangi bir şey"}
	ranked := []rank.Ranked{
		rankedItem("rs-1", entity.KindRuleSet, map[string]any{
			"rules": []any{
				map[string]any{
					"name":       "unconditional",
					"conditions": []any{},
					"action":     map[string]any{"type": "respond", "value": "never"},
				},
			},
		}, true),
	}

	result := resolver.Resolve(context.Background(), pool, ranked)
	assert.Equal(t, rules.ResultFallback, result.Kind)
}

func TestResolver_Fallback(t *testing.T) {
	store := knowledge.NewInMemoryStore(4)
	defer store.Close()
	resolver := newResolver(t, store, &echoRenderer{})

	result := resolver.Resolve(context.Background(), &retrieval.Pool{Query: "boş"}, nil)
	assert.Equal(t, rules.ResultFallback, result.Kind)
	assert.NotEmpty(t, result.Data["reason"])
}
