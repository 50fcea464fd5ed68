package retrieval

import (
	"context"
	"sync"

	"github.com/aixlab/aix/config"
	"github.com/aixlab/aix/embedding"
	"github.com/aixlab/aix/entity"
	"github.com/aixlab/aix/internal/mylog"
	"github.com/aixlab/aix/internal/stringutils"
	"github.com/aixlab/aix/internal/vecmath"
	"github.com/aixlab/aix/knowledge"
	"github.com/aixlab/aix/session"
)

type (
	// Candidate is one retrieved item with its raw relevance score.
	// FromKeywordLookup marks structured lookups whose kind is
	// authoritative for ranking.
	Candidate struct {
		Item              entity.KnowledgeItem
		Score             float32
		FromKeywordLookup bool
	}

	// Pool is everything retrieval hands to ranking and resolution.
	Pool struct {
		Query           string
		QueryVector     []float32
		Intent          Intent
		Candidates      []Candidate
		RelevantHistory []session.Entry
		Language        string
	}

	// Aggregator fans the query out to every retrieval strategy and merges
	// the results. A failing embedder degrades to lexical and keyword
	// retrieval; it never fails the query.
	Aggregator struct {
		logger   *mylog.Logger
		store    knowledge.Store
		embedder embedding.Embedder
		conf     *config.QueryConfig
	}
)

// keywordLookupScore is the base score for structured keyword hits; their
// weight comes from ranking multipliers, not the raw score.
const keywordLookupScore float32 = 0.1

func NewAggregator(logger *mylog.Logger, store knowledge.Store, embedder embedding.Embedder, conf *config.QueryConfig) *Aggregator {
	return &Aggregator{
		logger:   logger,
		store:    store,
		embedder: embedder,
		conf:     conf,
	}
}

// Aggregate runs semantic, lexical and keyword retrieval for the query and
// merges the hits into a single candidate pool.
func (a *Aggregator) Aggregate(ctx context.Context, query string, sess *session.Context) (*Pool, error) {
	pool := &Pool{
		Query:  query,
		Intent: DetectIntent(query),
	}
	if sess != nil {
		pool.Language = sess.Language()
	}

	pool.QueryVector = a.embedQuery(ctx, query)

	filter := knowledge.Filter{
		NotStatuses: []entity.ValidationStatus{entity.StatusInvalid, entity.StatusUnused},
	}

	// Vector and lexical searches run concurrently; both are best-effort.
	var (
		wg                         sync.WaitGroup
		semanticHits, lexicalHits []knowledge.SearchHit
	)

	if len(pool.QueryVector) > 0 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			hits, err := a.store.SemanticSearch(ctx, pool.QueryVector, a.conf.CandidateLimit, filter)
			if err != nil {
				a.logger.Warn("semantic search failed", "err", err)
				return
			}
			semanticHits = hits
		}()
	}

	wg.Add(1)
	go func() {
		defer wg.Done()
		hits, err := a.store.LexicalSearch(ctx, query, filter, a.conf.CandidateLimit)
		if err != nil {
			a.logger.Warn("lexical search failed", "err", err)
			return
		}
		lexicalHits = hits
	}()

	wg.Wait()

	// Merge order is fixed (semantic, lexical, keyword) so the pool is
	// deterministic for a given set of hits.
	seen := make(map[string]int)
	addHit := func(item entity.KnowledgeItem, score float32, fromKeyword bool) {
		if idx, ok := seen[item.ID]; ok {
			if score > pool.Candidates[idx].Score {
				pool.Candidates[idx].Score = score
			}
			if fromKeyword {
				pool.Candidates[idx].FromKeywordLookup = true
			}
			return
		}
		seen[item.ID] = len(pool.Candidates)
		pool.Candidates = append(pool.Candidates, Candidate{
			Item:              item,
			Score:             score,
			FromKeywordLookup: fromKeyword,
		})
	}

	for _, hit := range semanticHits {
		addHit(hit.Item, hit.Score, false)
	}
	for _, hit := range lexicalHits {
		addHit(hit.Item, hit.Score, false)
	}

	tokens := stringutils.Tokenize(query)
	for _, kind := range []entity.Kind{entity.KindRuleSet, entity.KindHypothesisTemplate} {
		items, err := a.store.FindByKeywords(ctx, kind, tokens, a.conf.KeywordLookupLimit)
		if err != nil {
			a.logger.Warn("keyword lookup failed", "kind", kind, "err", err)
			continue
		}
		for _, item := range items {
			addHit(item, keywordLookupScore, true)
		}
	}

	if sess != nil && len(pool.QueryVector) > 0 {
		pool.RelevantHistory = a.relevantHistory(ctx, pool.QueryVector, sess.History())
	}

	return pool, nil
}

// embedQuery returns nil when embedding is unavailable; retrieval proceeds
// without the vector branch.
func (a *Aggregator) embedQuery(ctx context.Context, query string) []float32 {
	embedCtx, cancel := context.WithTimeout(ctx, a.conf.EmbedTimeout)
	defer cancel()

	vectors, err := a.embedder.EmbedTexts(embedCtx, embedding.TaskTypeQuery, query)
	if err != nil {
		a.logger.Warn("query embedding failed, continuing without vector search", "err", err)
		return nil
	}
	if len(vectors) == 0 || len(vectors[0]) != a.embedder.Dimension() {
		a.logger.Warn("query embedding has unexpected shape, dropping")
		return nil
	}
	return vectors[0]
}

// relevantHistory keeps past exchanges whose combined text is semantically
// close to the current query. Entries whose embedding fails are skipped.
func (a *Aggregator) relevantHistory(ctx context.Context, queryVector []float32, entries []session.Entry) []session.Entry {
	if len(entries) == 0 {
		return nil
	}

	texts := make([]string, len(entries))
	for i, ent := range entries {
		texts[i] = ent.Query + " " + ent.Response
	}

	embedCtx, cancel := context.WithTimeout(ctx, a.conf.EmbedTimeout)
	defer cancel()

	vectors, err := a.embedder.EmbedTexts(embedCtx, embedding.TaskTypeDocument, texts...)
	if err != nil {
		a.logger.Warn("history embedding failed, skipping history relevance", "err", err)
		return nil
	}
	if len(vectors) != len(entries) {
		return nil
	}

	var relevant []session.Entry
	for i, vec := range vectors {
		if vecmath.Cosine(queryVector, vec) >= a.conf.HistoryRelevanceThreshold {
			relevant = append(relevant, entries[i])
		}
	}
	return relevant
}
