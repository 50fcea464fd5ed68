package feedback

import (
	"context"
	"time"

	"github.com/aixlab/aix/entity"
	"github.com/aixlab/aix/errors"
	"github.com/aixlab/aix/internal/mylog"
	"github.com/aixlab/aix/knowledge"
)

// Service records user feedback on knowledge items and drives the validation
// workflow.
type Service struct {
	logger *mylog.Logger
	store  knowledge.Store
}

func NewService(logger *mylog.Logger, store knowledge.Store) *Service {
	return &Service{logger: logger, store: store}
}

type RecordParams struct {
	ItemID      string
	Kind        entity.FeedbackKind
	Explanation string
	Suggestion  string
	SessionID   string
}

// statusFor maps a feedback kind to the validation status it implies. The
// empty status means the item is left untouched.
func statusFor(kind entity.FeedbackKind) entity.ValidationStatus {
	switch kind {
	case entity.FeedbackPositive:
		return entity.StatusValidated
	case entity.FeedbackNegative:
		return entity.StatusInvalid
	case entity.FeedbackDelete:
		return entity.StatusUnused
	default:
		return ""
	}
}

// Record validates the feedback, appends it to the log and applies the
// implied status transition. The appended record is the source of truth: a
// failed status update after a successful append is logged, not returned.
func (s *Service) Record(ctx context.Context, params RecordParams) error {
	if params.ItemID == "" {
		return errors.Wrapf(errors.ErrInvalidParams, "feedback requires an item id")
	}
	if !params.Kind.Valid() {
		return errors.Wrapf(errors.ErrInvalidParams, "unknown feedback kind %q", params.Kind)
	}
	if params.Explanation == "" &&
		(params.Kind == entity.FeedbackPositive || params.Kind == entity.FeedbackNegative) {
		return errors.Wrapf(errors.ErrInvalidParams, "%s feedback requires an explanation", params.Kind)
	}

	if _, err := s.store.Get(ctx, params.ItemID); err != nil {
		return err
	}

	rec := &entity.FeedbackRecord{
		ItemID:      params.ItemID,
		Kind:        params.Kind,
		Explanation: params.Explanation,
		Suggestion:  params.Suggestion,
		SessionID:   params.SessionID,
	}
	if err := s.store.AppendFeedback(ctx, rec); err != nil {
		return err
	}

	status := statusFor(params.Kind)
	if status == "" {
		return nil
	}

	now := time.Now()
	err := s.store.Update(ctx, params.ItemID, map[string]any{
		"validation_status":    status,
		"last_validated_at":    &now,
		"validated_by_session": params.SessionID,
	}, nil)
	if err != nil {
		s.logger.Warn("status transition failed after feedback was recorded",
			"item_id", params.ItemID, "status", status, "err", err)
	}
	return nil
}

// NextValidationCandidate picks the item the user should review next:
// any pending item first, then the validated item whose last review is
// oldest. Returns nil when nothing needs review.
func (s *Service) NextValidationCandidate(ctx context.Context, skipIDs []string) (*entity.KnowledgeItem, error) {
	pending, err := s.store.Find(ctx, knowledge.Filter{
		Statuses:   []entity.ValidationStatus{entity.StatusPending},
		ExcludeIDs: skipIDs,
	}, &knowledge.Sort{Field: "created_at"}, 1)
	if err != nil {
		return nil, err
	}
	if len(pending) > 0 {
		return &pending[0], nil
	}

	stale, err := s.store.Find(ctx, knowledge.Filter{
		Statuses:   []entity.ValidationStatus{entity.StatusValidated},
		ExcludeIDs: skipIDs,
	}, &knowledge.Sort{Field: "last_validated_at"}, 1)
	if err != nil {
		return nil, err
	}
	if len(stale) > 0 {
		return &stale[0], nil
	}
	return nil, nil
}

// PendingBacklog reports how many items await their first validation.
func (s *Service) PendingBacklog(ctx context.Context) (int, error) {
	items, err := s.store.Find(ctx, knowledge.Filter{
		Statuses: []entity.ValidationStatus{entity.StatusPending},
	}, nil, 0)
	if err != nil {
		return 0, err
	}
	return len(items), nil
}
