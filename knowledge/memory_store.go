package knowledge

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/mokiat/gog"

	"github.com/aixlab/aix/entity"
	"github.com/aixlab/aix/errors"
	"github.com/aixlab/aix/internal/stringutils"
	"github.com/aixlab/aix/internal/vecmath"
)

type (
	// InMemoryStore is a map-backed Store used by tests and small
	// deployments. A separate vectors map stands in for the index mirror so
	// the same consistency rules apply.
	InMemoryStore struct {
		mu        sync.RWMutex
		vecDim    int
		items     map[string]*entity.KnowledgeItem
		vectors   map[string][]float32 // the mirror: id -> embedding
		rels      map[string]*entity.Relationship
		feedback  []entity.FeedbackRecord
		dialogues []entity.DialogueEntry
	}
)

var _ Store = (*InMemoryStore)(nil)

// NewInMemoryStore creates an empty in-memory knowledge store.
func NewInMemoryStore(vecDim int) *InMemoryStore {
	return &InMemoryStore{
		vecDim:  vecDim,
		items:   make(map[string]*entity.KnowledgeItem),
		vectors: make(map[string][]float32),
		rels:    make(map[string]*entity.Relationship),
	}
}

func (m *InMemoryStore) eligible(item *entity.KnowledgeItem) bool {
	return item.Kind.Indexed() && len(item.EmbeddingVector()) == m.vecDim
}

func (m *InMemoryStore) syncMirror(item *entity.KnowledgeItem) {
	if m.eligible(item) {
		m.vectors[item.ID] = copyFloat32Slice(item.EmbeddingVector())
	} else {
		delete(m.vectors, item.ID)
	}
}

// Put implements Store.Put
func (m *InMemoryStore) Put(ctx context.Context, item *entity.KnowledgeItem) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if item.ID == "" {
		item.ID = uuid.NewString()
	}
	if item.ValidationStatus == "" {
		item.ValidationStatus = entity.StatusPending
	}
	now := time.Now()
	if item.CreatedAt.IsZero() {
		item.CreatedAt = now
	}
	item.UpdatedAt = now

	stored := *item
	m.items[item.ID] = &stored
	m.syncMirror(&stored)

	return item.ID, nil
}

// Get implements Store.Get
func (m *InMemoryStore) Get(ctx context.Context, id string) (*entity.KnowledgeItem, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	item, ok := m.items[id]
	if !ok {
		return nil, errors.Wrapf(errors.ErrNotFound, "knowledge item %s", id)
	}
	cp := *item
	return &cp, nil
}

func matchFilter(item *entity.KnowledgeItem, filter Filter) bool {
	if len(filter.Kinds) > 0 && !containsKind(filter.Kinds, item.Kind) {
		return false
	}
	if len(filter.Statuses) > 0 && !containsStatus(filter.Statuses, item.ValidationStatus) {
		return false
	}
	if len(filter.NotStatuses) > 0 && containsStatus(filter.NotStatuses, item.ValidationStatus) {
		return false
	}
	if filter.Active != nil && item.Active != *filter.Active {
		return false
	}
	if filter.Keyword != "" && !strings.Contains(strings.ToLower(item.EmbeddingText), strings.ToLower(filter.Keyword)) {
		return false
	}
	for _, id := range filter.ExcludeIDs {
		if item.ID == id {
			return false
		}
	}
	return true
}

func containsKind(kinds []entity.Kind, k entity.Kind) bool {
	for _, kind := range kinds {
		if kind == k {
			return true
		}
	}
	return false
}

func containsStatus(statuses []entity.ValidationStatus, st entity.ValidationStatus) bool {
	for _, status := range statuses {
		if status == st {
			return true
		}
	}
	return false
}

// Find implements Store.Find
func (m *InMemoryStore) Find(ctx context.Context, filter Filter, sortBy *Sort, limit int) ([]entity.KnowledgeItem, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var results []entity.KnowledgeItem
	for _, item := range m.items {
		if matchFilter(item, filter) {
			results = append(results, *item)
		}
	}

	if sortBy != nil {
		sort.SliceStable(results, func(i, j int) bool {
			less := compareField(&results[i], &results[j], sortBy.Field)
			if sortBy.Desc {
				return !less
			}
			return less
		})
	} else {
		// Map iteration order is random; keep results deterministic.
		sort.SliceStable(results, func(i, j int) bool {
			return results[i].CreatedAt.Before(results[j].CreatedAt)
		})
	}

	if limit > 0 && len(results) > limit {
		results = results[:limit]
	}
	return results, nil
}

func compareField(a, b *entity.KnowledgeItem, field string) bool {
	switch field {
	case "created_at":
		return a.CreatedAt.Before(b.CreatedAt)
	case "updated_at":
		return a.UpdatedAt.Before(b.UpdatedAt)
	case "last_validated_at":
		at, bt := a.LastValidatedAt, b.LastValidatedAt
		if at == nil {
			return bt != nil
		}
		if bt == nil {
			return false
		}
		return at.Before(*bt)
	default:
		return a.ID < b.ID
	}
}

// Update implements Store.Update. Only the mutation keys the engine actually
// uses are supported.
func (m *InMemoryStore) Update(ctx context.Context, id string, set map[string]any, unset []string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	item, ok := m.items[id]
	if !ok {
		return errors.Wrapf(errors.ErrNotFound, "knowledge item %s", id)
	}

	for k, v := range set {
		if err := applyField(item, k, v); err != nil {
			return err
		}
	}
	for _, k := range unset {
		if err := applyField(item, k, nil); err != nil {
			return err
		}
	}
	item.UpdatedAt = time.Now()
	m.syncMirror(item)
	return nil
}

func applyField(item *entity.KnowledgeItem, field string, value any) error {
	switch field {
	case "validation_status":
		if value == nil {
			item.ValidationStatus = entity.StatusPending
		} else if st, ok := value.(entity.ValidationStatus); ok {
			item.ValidationStatus = st
		} else if s, ok := value.(string); ok {
			item.ValidationStatus = entity.ValidationStatus(s)
		}
	case "last_validated_at":
		switch v := value.(type) {
		case nil:
			item.LastValidatedAt = nil
		case time.Time:
			item.LastValidatedAt = &v
		case *time.Time:
			item.LastValidatedAt = v
		}
	case "validated_by_session":
		if value == nil {
			item.ValidatedBySession = ""
		} else if s, ok := value.(string); ok {
			item.ValidatedBySession = s
		}
	case "embedding":
		if value == nil {
			item.Embedding = newJSONVector(nil)
		} else if vec, ok := value.([]float32); ok {
			item.Embedding = newJSONVector(vec)
		}
	case "embedding_text":
		if value == nil {
			item.EmbeddingText = ""
		} else if s, ok := value.(string); ok {
			item.EmbeddingText = s
		}
	case "active":
		if b, ok := value.(bool); ok {
			item.Active = b
		}
	case "content":
		if mp, ok := value.(map[string]any); ok {
			item.Content = newJSONContent(mp)
		} else {
			return errors.Wrapf(errors.ErrInvalidParams, "unsupported content value for update")
		}
	default:
		return errors.Wrapf(errors.ErrInvalidParams, "unsupported update field %q", field)
	}
	return nil
}

// Delete implements Store.Delete
func (m *InMemoryStore) Delete(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	// Mirror first, matching the durable store's ordering.
	delete(m.vectors, id)

	if _, ok := m.items[id]; !ok {
		return errors.Wrapf(errors.ErrNotFound, "knowledge item %s", id)
	}
	delete(m.items, id)
	return nil
}

// SemanticSearch implements Store.SemanticSearch
func (m *InMemoryStore) SemanticSearch(ctx context.Context, vector []float32, k int, filter Filter) ([]SearchHit, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if len(vector) == 0 {
		return []SearchHit{}, nil
	}
	if len(vector) != m.vecDim {
		return nil, errors.Wrapf(errors.ErrDimensionMismatch, "query vector has %d dimensions, want %d", len(vector), m.vecDim)
	}

	var hits []SearchHit
	for id, embedding := range m.vectors {
		item, ok := m.items[id]
		if !ok {
			// Stale mirror entry.
			continue
		}
		if !matchFilter(item, filter) {
			continue
		}
		hits = append(hits, SearchHit{
			Item:  *item,
			Score: vecmath.Cosine(vector, embedding),
		})
	}

	sortHitsByScore(hits)
	if len(hits) > k {
		hits = hits[:k]
	}
	return hits, nil
}

// LexicalSearch implements Store.LexicalSearch
func (m *InMemoryStore) LexicalSearch(ctx context.Context, query string, filter Filter, limit int) ([]SearchHit, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	tokens := gog.Dedupe(stringutils.Tokenize(query))
	if len(tokens) == 0 {
		return []SearchHit{}, nil
	}

	var hits []SearchHit
	for _, item := range m.items {
		if !matchFilter(item, filter) {
			continue
		}
		score := lexicalScore(item.EmbeddingText, tokens)
		if score == 0 {
			continue
		}
		hits = append(hits, SearchHit{Item: *item, Score: score})
	}

	sortHitsByScore(hits)
	if len(hits) > limit {
		hits = hits[:limit]
	}
	return hits, nil
}

// FindByKeywords implements Store.FindByKeywords
func (m *InMemoryStore) FindByKeywords(ctx context.Context, kind entity.Kind, keywords []string, limit int) ([]entity.KnowledgeItem, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if len(keywords) == 0 {
		return []entity.KnowledgeItem{}, nil
	}
	wanted := make(map[string]struct{}, len(keywords))
	for _, kw := range keywords {
		wanted[stringutils.Clean(kw)] = struct{}{}
	}

	var matched []entity.KnowledgeItem
	for _, item := range m.items {
		if item.Kind != kind || !item.Active {
			continue
		}
		if keywordsIntersect(item.Content.Data(), wanted) {
			matched = append(matched, *item)
		}
	}
	sort.SliceStable(matched, func(i, j int) bool {
		return matched[i].CreatedAt.Before(matched[j].CreatedAt)
	})
	if limit > 0 && len(matched) > limit {
		matched = matched[:limit]
	}
	return matched, nil
}

// PutRelationship implements Store.PutRelationship
func (m *InMemoryStore) PutRelationship(ctx context.Context, rel *entity.Relationship) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if rel.ID == "" {
		rel.ID = uuid.NewString()
	}
	if rel.CreatedAt.IsZero() {
		rel.CreatedAt = time.Now()
	}
	stored := *rel
	m.rels[rel.ID] = &stored
	return rel.ID, nil
}

// RelationshipsFrom implements Store.RelationshipsFrom
func (m *InMemoryStore) RelationshipsFrom(ctx context.Context, sourceID string) ([]entity.Relationship, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var rels []entity.Relationship
	for _, rel := range m.rels {
		if rel.SourceID == sourceID {
			rels = append(rels, *rel)
		}
	}
	sort.SliceStable(rels, func(i, j int) bool {
		return rels[i].CreatedAt.Before(rels[j].CreatedAt)
	})
	return rels, nil
}

// DeleteRelationship implements Store.DeleteRelationship
func (m *InMemoryStore) DeleteRelationship(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.rels[id]; !ok {
		return errors.Wrapf(errors.ErrNotFound, "relationship %s", id)
	}
	delete(m.rels, id)
	return nil
}

// GetConfig implements Store.GetConfig
func (m *InMemoryStore) GetConfig(ctx context.Context, name string, def any) (any, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if entry, _ := m.findConfigLocked(name); entry != nil {
		return entry.Value, nil
	}
	return def, nil
}

// SetConfig implements Store.SetConfig
func (m *InMemoryStore) SetConfig(ctx context.Context, name string, value any) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	content := map[string]any{"name": name, "value": value}
	if _, id := m.findConfigLocked(name); id != "" {
		item := m.items[id]
		item.Content = newJSONContent(content)
		item.UpdatedAt = time.Now()
		return nil
	}

	now := time.Now()
	item := &entity.KnowledgeItem{
		ID:               uuid.NewString(),
		CreatedAt:        now,
		UpdatedAt:        now,
		Kind:             entity.KindConfig,
		Content:          newJSONContent(content),
		ValidationStatus: entity.StatusValidated,
		Active:           true,
	}
	m.items[item.ID] = item
	return nil
}

func (m *InMemoryStore) findConfigLocked(name string) (*ConfigEntry, string) {
	for id, item := range m.items {
		if item.Kind != entity.KindConfig {
			continue
		}
		var entry ConfigEntry
		if err := DecodeContent(item.Content.Data(), &entry); err != nil {
			continue
		}
		if entry.Name == name {
			return &entry, id
		}
	}
	return nil, ""
}

// AppendFeedback implements Store.AppendFeedback
func (m *InMemoryStore) AppendFeedback(ctx context.Context, rec *entity.FeedbackRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.feedback = append(m.feedback, *rec)
	return nil
}

// AppendDialogue implements Store.AppendDialogue
func (m *InMemoryStore) AppendDialogue(ctx context.Context, ent *entity.DialogueEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.dialogues = append(m.dialogues, *ent)
	return nil
}

// RecentDialogue implements Store.RecentDialogue
func (m *InMemoryStore) RecentDialogue(ctx context.Context, sessionID string, limit int) ([]entity.DialogueEntry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var entries []entity.DialogueEntry
	for _, ent := range m.dialogues {
		if ent.SessionID == sessionID {
			entries = append(entries, ent)
		}
	}
	if limit > 0 && len(entries) > limit {
		entries = entries[len(entries)-limit:]
	}
	return entries, nil
}

// Reindex implements Store.Reindex
func (m *InMemoryStore) Reindex(ctx context.Context) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	repaired := 0
	for id, item := range m.items {
		_, mirrored := m.vectors[id]
		switch {
		case m.eligible(item) && !mirrored:
			m.vectors[id] = copyFloat32Slice(item.EmbeddingVector())
			repaired++
		case !m.eligible(item) && mirrored:
			delete(m.vectors, id)
			repaired++
		}
	}
	for id := range m.vectors {
		if _, ok := m.items[id]; !ok {
			delete(m.vectors, id)
			repaired++
		}
	}
	return repaired, nil
}

// Close implements Store.Close
func (m *InMemoryStore) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.items = make(map[string]*entity.KnowledgeItem)
	m.vectors = make(map[string][]float32)
	m.rels = make(map[string]*entity.Relationship)
	m.feedback = nil
	m.dialogues = nil
	return nil
}

// MirrorSize reports the number of vector mirror rows. Test hook.
func (m *InMemoryStore) MirrorSize() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.vectors)
}

// HasMirror reports whether the mirror holds a row for id. Test hook.
func (m *InMemoryStore) HasMirror(id string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.vectors[id]
	return ok
}

// Feedback returns a copy of the recorded feedback. Test hook.
func (m *InMemoryStore) Feedback() []entity.FeedbackRecord {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]entity.FeedbackRecord, len(m.feedback))
	copy(out, m.feedback)
	return out
}

func copyFloat32Slice(s []float32) []float32 {
	if s == nil {
		return nil
	}
	out := make([]float32, len(s))
	copy(out, s)
	return out
}
