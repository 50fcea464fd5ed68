package server_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/datatypes"

	"github.com/aixlab/aix/assistant"
	"github.com/aixlab/aix/config"
	"github.com/aixlab/aix/embedding"
	"github.com/aixlab/aix/entity"
	"github.com/aixlab/aix/feedback"
	"github.com/aixlab/aix/internal/mylog"
	"github.com/aixlab/aix/knowledge"
	"github.com/aixlab/aix/planner"
	"github.com/aixlab/aix/rank"
	"github.com/aixlab/aix/respond"
	"github.com/aixlab/aix/retrieval"
	"github.com/aixlab/aix/rules"
	"github.com/aixlab/aix/server"
	"github.com/aixlab/aix/session"
)

const testDim = 8

func newTestHandler(t *testing.T) (http.Handler, *knowledge.InMemoryStore) {
	t.Helper()

	logger := mylog.NewLogger("error", "default")
	conf := config.NewConfig()
	conf.Store.VectorDimension = testDim

	store := knowledge.NewInMemoryStore(testDim)
	t.Cleanup(func() { store.Close() })

	embedder := embedding.NewStaticEmbedder(testDim)
	sessions := session.NewManager(logger, &conf.Session)
	renderer := respond.NewTemplateRenderer()
	agg := retrieval.NewAggregator(logger, store, embedder, &conf.Query)
	ranker := rank.NewRanker(logger, &conf.Query)
	resolver := rules.NewResolver(logger, store, renderer)
	pl := planner.NewPlanner(logger, &conf.Query)
	generator := respond.NewGenerator(logger, store, renderer, &conf.Query)
	fb := feedback.NewService(logger, store)
	asst := assistant.NewService(logger, conf, store, sessions, agg, ranker, resolver, pl, generator, fb)

	return server.New(logger, asst, fb).Handler(), store
}

func doJSON(t *testing.T, handler http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	return rec
}

func TestQueryEndpoint(t *testing.T) {
	handler, store := newTestHandler(t)

	_, err := store.Put(context.Background(), &entity.KnowledgeItem{
		Kind: entity.KindQA,
		Content: datatypes.NewJSONType(map[string]any{
			"question": "vpn nasıl kurulur",
			"answer":   "Ayarlardan kurulur",
		}),
		EmbeddingText: "vpn nasıl kurulur",
		Active:        true,
	})
	require.NoError(t, err)

	rec := doJSON(t, handler, http.MethodPost, "/api/query", map[string]any{
		"query": "vpn nasıl kurulur",
	})
	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Success   bool   `json:"success"`
		SessionID string `json:"session_id"`
		Response  string `json:"response"`
	}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.True(t, resp.Success)
	assert.NotEmpty(t, resp.SessionID)
	assert.Equal(t, "Ayarlardan kurulur", resp.Response)

	// The session now shows up in the listing with one turn.
	rec = doJSON(t, handler, http.MethodGet, "/api/sessions", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var sessions []map[string]any
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&sessions))
	require.Len(t, sessions, 1)
	assert.Equal(t, resp.SessionID, sessions[0]["id"])

	rec = doJSON(t, handler, http.MethodGet, "/api/sessions/"+resp.SessionID+"/history", nil)
	require.Equal(t, http.StatusOK, rec.Code)
}

func TestQueryEndpoint_ErrorMapping(t *testing.T) {
	handler, _ := newTestHandler(t)

	// Empty query is a 400.
	rec := doJSON(t, handler, http.MethodPost, "/api/query", map[string]any{"query": ""})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	// Unknown session is a 404.
	rec = doJSON(t, handler, http.MethodGet, "/api/sessions/no-such-id/history", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestFeedbackEndpoint(t *testing.T) {
	handler, store := newTestHandler(t)

	id, err := store.Put(context.Background(), &entity.KnowledgeItem{
		Kind:          entity.KindFact,
		Content:       datatypes.NewJSONType(map[string]any{"text": "bilgi"}),
		EmbeddingText: "bilgi",
		Active:        true,
	})
	require.NoError(t, err)

	rec := doJSON(t, handler, http.MethodPost, "/api/feedback", map[string]any{
		"item_id":     id,
		"kind":        "positive",
		"explanation": "doğru",
		"session_id":  "sess-1",
	})
	require.Equal(t, http.StatusOK, rec.Code)

	item, err := store.Get(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, entity.StatusValidated, item.ValidationStatus)

	// Invalid feedback kind is a 400.
	rec = doJSON(t, handler, http.MethodPost, "/api/feedback", map[string]any{
		"item_id": id,
		"kind":    "sideways",
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestNextValidationEndpoint(t *testing.T) {
	handler, store := newTestHandler(t)

	id, err := store.Put(context.Background(), &entity.KnowledgeItem{
		Kind:          entity.KindFact,
		Content:       datatypes.NewJSONType(map[string]any{"text": "bekleyen"}),
		EmbeddingText: "bekleyen",
		Active:        true,
	})
	require.NoError(t, err)

	rec := doJSON(t, handler, http.MethodGet, "/api/validation/next", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Item map[string]any `json:"item"`
	}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	require.NotNil(t, resp.Item)
	assert.Equal(t, id, resp.Item["id"])

	// Skipping the only candidate leaves nothing to review.
	rec = doJSON(t, handler, http.MethodGet, "/api/validation/next?skip="+id, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	resp.Item = nil
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.Nil(t, resp.Item)
}
