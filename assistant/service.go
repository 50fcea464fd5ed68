package assistant

import (
	"context"
	"time"

	"github.com/aixlab/aix/config"
	"github.com/aixlab/aix/entity"
	"github.com/aixlab/aix/errors"
	"github.com/aixlab/aix/feedback"
	"github.com/aixlab/aix/internal/mylog"
	"github.com/aixlab/aix/knowledge"
	"github.com/aixlab/aix/planner"
	"github.com/aixlab/aix/rank"
	"github.com/aixlab/aix/respond"
	"github.com/aixlab/aix/retrieval"
	"github.com/aixlab/aix/rules"
	"github.com/aixlab/aix/session"
)

type (
	// Answer is what one processed query returns. Steps is populated only
	// for compound queries.
	Answer struct {
		SessionID string
		Response  string
		Steps     []planner.StepTrace
	}

	// Service is the query pipeline orchestrator: session handling,
	// planning, retrieval, ranking, resolution and response generation.
	Service struct {
		logger    *mylog.Logger
		conf      *config.Config
		store     knowledge.Store
		sessions  *session.Manager
		agg       *retrieval.Aggregator
		ranker    *rank.Ranker
		resolver  *rules.Resolver
		planner   *planner.Planner
		generator *respond.Generator
		feedback  *feedback.Service
	}
)

func NewService(
	logger *mylog.Logger,
	conf *config.Config,
	store knowledge.Store,
	sessions *session.Manager,
	agg *retrieval.Aggregator,
	ranker *rank.Ranker,
	resolver *rules.Resolver,
	pl *planner.Planner,
	generator *respond.Generator,
	fb *feedback.Service,
) *Service {
	return &Service{
		logger:    logger,
		conf:      conf,
		store:     store,
		sessions:  sessions,
		agg:       agg,
		ranker:    ranker,
		resolver:  resolver,
		planner:   pl,
		generator: generator,
		feedback:  fb,
	}
}

func (s *Service) Sessions() *session.Manager { return s.sessions }

var errInvalidQuery = errors.Wrapf(errors.ErrInvalidParams, "query must not be empty")

// ProcessQuery answers one user query. Turns on the same session are
// serialized; different sessions proceed concurrently.
func (s *Service) ProcessQuery(ctx context.Context, sessionID, query string) (*Answer, error) {
	if query == "" {
		return nil, errInvalidQuery
	}

	sess := s.sessions.GetOrCreate(sessionID)
	sess.BeginTurn()
	defer sess.EndTurn()

	lang := DetectLanguage(query, s.conf.Session.DefaultLanguage)
	sess.SetLanguage(lang)

	s.logDialogue(ctx, sess.ID(), entity.DialogueRoleUser, query, lang)

	multi, steps := s.planner.Split(query)

	stepFn := func(ctx context.Context, stepQuery string) (rules.Result, string, error) {
		pool, err := s.agg.Aggregate(ctx, stepQuery, sess)
		if err != nil {
			return rules.Result{}, "", err
		}
		ranked := s.ranker.Rank(pool)
		result := s.resolver.Resolve(ctx, pool, ranked)
		response := s.generator.Respond(ctx, result, sess, stepQuery, nil)
		sess.Append(stepQuery, response)
		return result, response, nil
	}

	var (
		response string
		traces   []planner.StepTrace
	)
	if multi {
		result, err := s.planner.ExecuteSteps(ctx, steps, stepFn)
		if err != nil {
			return nil, err
		}
		response = s.generator.Respond(ctx, result, sess, query, nil)
		traces, _ = result.Data["steps"].([]planner.StepTrace)
	} else {
		_, resp, err := stepFn(ctx, steps[0])
		if err != nil {
			return nil, err
		}
		response = resp
	}

	s.logDialogue(ctx, sess.ID(), entity.DialogueRoleSystem, response, lang)

	return &Answer{
		SessionID: sess.ID(),
		Response:  response,
		Steps:     traces,
	}, nil
}

// logDialogue writes the durable conversation log. Failures are logged and
// otherwise ignored; the in-memory session history stays authoritative.
func (s *Service) logDialogue(ctx context.Context, sessionID string, role entity.DialogueRole, text, lang string) {
	err := s.store.AppendDialogue(ctx, &entity.DialogueEntry{
		SessionID: sessionID,
		Role:      role,
		Text:      text,
		Language:  lang,
	})
	if err != nil {
		s.logger.Warn("dialogue log write failed", "session", sessionID, "err", err)
	}
}

// StartMaintenance runs the background housekeeping loop until the context
// is cancelled: it reports the pending-validation backlog and reconciles the
// vector mirror with the primary store.
func (s *Service) StartMaintenance(ctx context.Context) {
	interval := s.conf.Session.MaintenanceInterval
	if interval <= 0 {
		interval = 5 * time.Minute
	}

	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				s.logger.Info("maintenance loop stopped")
				return
			case <-ticker.C:
				s.runMaintenance(ctx)
			}
		}
	}()
}

func (s *Service) runMaintenance(ctx context.Context) {
	backlog, err := s.feedback.PendingBacklog(ctx)
	if err != nil {
		s.logger.Warn("backlog check failed", "err", err)
	} else if backlog > 0 {
		s.logger.Info("items awaiting validation", "count", backlog)
	}

	repaired, err := s.store.Reindex(ctx)
	if err != nil {
		s.logger.Warn("index reconciliation failed", "err", err)
		return
	}
	if repaired > 0 {
		s.logger.Info("vector mirror repaired", "rows", repaired)
	}
}
