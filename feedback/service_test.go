package feedback_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/datatypes"

	"github.com/aixlab/aix/entity"
	"github.com/aixlab/aix/errors"
	"github.com/aixlab/aix/feedback"
	"github.com/aixlab/aix/internal/mylog"
	"github.com/aixlab/aix/knowledge"
)

func newService(t *testing.T) (*feedback.Service, *knowledge.InMemoryStore) {
	t.Helper()
	store := knowledge.NewInMemoryStore(4)
	t.Cleanup(func() { store.Close() })
	return feedback.NewService(mylog.NewLogger("error", "default"), store), store
}

func putFact(t *testing.T, store knowledge.Store, text string) string {
	t.Helper()
	id, err := store.Put(context.Background(), &entity.KnowledgeItem{
		Kind:          entity.KindFact,
		Content:       datatypes.NewJSONType(map[string]any{"text": text}),
		EmbeddingText: text,
		Active:        true,
	})
	require.NoError(t, err)
	return id
}

func TestRecord_PositiveValidates(t *testing.T) {
	ctx := context.Background()
	svc, store := newService(t)
	id := putFact(t, store, "doğru bilgi")

	err := svc.Record(ctx, feedback.RecordParams{
		ItemID:      id,
		Kind:        entity.FeedbackPositive,
		Explanation: "kontrol ettim, doğru",
		SessionID:   "sess-1",
	})
	require.NoError(t, err)

	item, err := store.Get(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, entity.StatusValidated, item.ValidationStatus)
	assert.Equal(t, "sess-1", item.ValidatedBySession)
	require.NotNil(t, item.LastValidatedAt)
	assert.WithinDuration(t, time.Now(), *item.LastValidatedAt, time.Minute)

	records := store.Feedback()
	require.Len(t, records, 1)
	assert.Equal(t, entity.FeedbackPositive, records[0].Kind)
}

func TestRecord_KindTransitions(t *testing.T) {
	ctx := context.Background()
	svc, store := newService(t)

	cases := []struct {
		kind        entity.FeedbackKind
		explanation string
		want        entity.ValidationStatus
	}{
		{entity.FeedbackNegative, "yanlış bilgi", entity.StatusInvalid},
		{entity.FeedbackDelete, "", entity.StatusUnused},
	}
	for _, tc := range cases {
		id := putFact(t, store, "bilgi")
		err := svc.Record(ctx, feedback.RecordParams{
			ItemID:      id,
			Kind:        tc.kind,
			Explanation: tc.explanation,
		})
		require.NoError(t, err)

		item, err := store.Get(ctx, id)
		require.NoError(t, err)
		assert.Equal(t, tc.want, item.ValidationStatus, "kind: %s", tc.kind)
	}
}

func TestRecord_SkipLeavesStatusUntouched(t *testing.T) {
	ctx := context.Background()
	svc, store := newService(t)
	id := putFact(t, store, "atlanan bilgi")

	err := svc.Record(ctx, feedback.RecordParams{ItemID: id, Kind: entity.FeedbackSkip})
	require.NoError(t, err)

	item, err := store.Get(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, entity.StatusPending, item.ValidationStatus)
	assert.Nil(t, item.LastValidatedAt)

	// The skip is still logged.
	assert.Len(t, store.Feedback(), 1)
}

func TestRecord_Validation(t *testing.T) {
	ctx := context.Background()
	svc, store := newService(t)
	id := putFact(t, store, "bilgi")

	// Unknown kind.
	err := svc.Record(ctx, feedback.RecordParams{ItemID: id, Kind: "maybe"})
	assert.ErrorIs(t, err, errors.ErrInvalidParams)

	// Positive and negative require an explanation.
	err = svc.Record(ctx, feedback.RecordParams{ItemID: id, Kind: entity.FeedbackPositive})
	assert.ErrorIs(t, err, errors.ErrInvalidParams)
	err = svc.Record(ctx, feedback.RecordParams{ItemID: id, Kind: entity.FeedbackNegative})
	assert.ErrorIs(t, err, errors.ErrInvalidParams)

	// Missing item.
	err = svc.Record(ctx, feedback.RecordParams{
		ItemID: "missing", Kind: entity.FeedbackPositive, Explanation: "x",
	})
	assert.ErrorIs(t, err, errors.ErrNotFound)

	// Rejected feedback writes nothing.
	assert.Empty(t, store.Feedback())
}

func TestNextValidationCandidate(t *testing.T) {
	ctx := context.Background()
	svc, store := newService(t)

	// Nothing stored: no candidate.
	item, err := svc.NextValidationCandidate(ctx, nil)
	require.NoError(t, err)
	assert.Nil(t, item)

	old := time.Now().Add(-72 * time.Hour)
	recent := time.Now().Add(-time.Hour)

	staleID := putFact(t, store, "eski doğrulama")
	require.NoError(t, store.Update(ctx, staleID, map[string]any{
		"validation_status": entity.StatusValidated,
		"last_validated_at": &old,
	}, nil))
	freshID := putFact(t, store, "yeni doğrulama")
	require.NoError(t, store.Update(ctx, freshID, map[string]any{
		"validation_status": entity.StatusValidated,
		"last_validated_at": &recent,
	}, nil))

	// No pending items: the oldest-validated item is up for re-review.
	item, err = svc.NextValidationCandidate(ctx, nil)
	require.NoError(t, err)
	require.NotNil(t, item)
	assert.Equal(t, staleID, item.ID)

	// A pending item takes precedence over any validated one.
	pendingID := putFact(t, store, "hiç bakılmadı")
	item, err = svc.NextValidationCandidate(ctx, nil)
	require.NoError(t, err)
	require.NotNil(t, item)
	assert.Equal(t, pendingID, item.ID)

	// Skipped ids are excluded.
	item, err = svc.NextValidationCandidate(ctx, []string{pendingID})
	require.NoError(t, err)
	require.NotNil(t, item)
	assert.Equal(t, staleID, item.ID)
}
