package knowledge

import (
	"context"

	"github.com/aixlab/aix/entity"
)

type (
	// Filter narrows store lookups. Zero value matches everything.
	Filter struct {
		Kinds       []entity.Kind
		Statuses    []entity.ValidationStatus
		NotStatuses []entity.ValidationStatus
		Active      *bool
		Keyword     string
		ExcludeIDs  []string
	}

	// Sort orders Find results. Field is a column name; Desc flips direction.
	Sort struct {
		Field string
		Desc  bool
	}

	// SearchHit is a store search result with its similarity or match score.
	SearchHit struct {
		Item  entity.KnowledgeItem
		Score float32
	}
)

// Store is the dual-store knowledge layer: a primary document store that owns
// item state, plus a vector index mirror kept consistent with it. The primary
// store is always authoritative; mirror rows exist only for indexed kinds
// carrying an embedding of the configured dimension.
type Store interface {
	// Put persists a new item, assigning an id when empty, and upserts the
	// vector mirror when the item is eligible. Mirror failure does not fail
	// the write.
	Put(ctx context.Context, item *entity.KnowledgeItem) (string, error)

	// Get returns the item or ErrNotFound.
	Get(ctx context.Context, id string) (*entity.KnowledgeItem, error)

	// Find lists items matching the filter.
	Find(ctx context.Context, filter Filter, sort *Sort, limit int) ([]entity.KnowledgeItem, error)

	// Update applies set/unset mutations and re-evaluates mirror eligibility.
	Update(ctx context.Context, id string, set map[string]any, unset []string) error

	// Delete removes the mirror row first (best effort), then the primary
	// row. The primary delete decides the outcome.
	Delete(ctx context.Context, id string) error

	// SemanticSearch runs a vector similarity query against the mirror and
	// resolves hits back through the primary store. Ids no longer present in
	// the primary store are dropped; index order is preserved.
	SemanticSearch(ctx context.Context, vector []float32, k int, filter Filter) ([]SearchHit, error)

	// LexicalSearch matches query tokens against embedding text, scored by
	// the fraction of tokens that matched.
	LexicalSearch(ctx context.Context, query string, filter Filter, limit int) ([]SearchHit, error)

	// FindByKeywords returns items of the given kind whose stored keywords
	// intersect the query keywords.
	FindByKeywords(ctx context.Context, kind entity.Kind, keywords []string, limit int) ([]entity.KnowledgeItem, error)

	PutRelationship(ctx context.Context, rel *entity.Relationship) (string, error)
	RelationshipsFrom(ctx context.Context, sourceID string) ([]entity.Relationship, error)
	DeleteRelationship(ctx context.Context, id string) error

	// GetConfig reads a config-as-data entry, falling back to def when the
	// entry does not exist.
	GetConfig(ctx context.Context, name string, def any) (any, error)
	SetConfig(ctx context.Context, name string, value any) error

	// AppendFeedback records a feedback event. Append-only.
	AppendFeedback(ctx context.Context, rec *entity.FeedbackRecord) error

	// AppendDialogue writes one turn of the durable conversation log.
	AppendDialogue(ctx context.Context, ent *entity.DialogueEntry) error
	RecentDialogue(ctx context.Context, sessionID string, limit int) ([]entity.DialogueEntry, error)

	// Reindex walks the primary store and repairs the mirror: missing rows
	// are inserted for eligible items, orphaned rows removed. Returns the
	// number of repairs made.
	Reindex(ctx context.Context) (int, error)

	Close() error
}
