package service

import (
	"context"
	"fmt"
	"time"

	chatdomain "github.com/boddenberg/sellernotes-bot-go/internal/chat/domain"
	"github.com/boddenberg/sellernotes-bot-go/internal/chat/port"
	"github.com/boddenberg/sellernotes-bot-go/internal/infra/observability"
	"github.com/boddenberg/sellernotes-bot-go/internal/infra/resilience"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.uber.org/zap"
)

// ============================================================
// ChatService: the turn processor
// ============================================================
//
// One call to ProcessActivity is one turn:
//  1. Dispatch on the activity kind; only messages reach the dialog
//  2. Lock the session key so turns of one user never interleave
//  3. Load (or create) the session
//  4. Start a new dialog or resume the suspended one
//  5. Save the session, unless the flow failed
//  6. Return the replies posted during the turn
//
// A failed turn leaves the stored session untouched, so the user can
// simply try again.

// ChatService drives MainFlow from inbound activities.
type ChatService struct {
	flow     *MainFlow
	sessions port.SessionStore
	locks    *keyedLocks
	bulkhead *resilience.Bulkhead
	now      func() time.Time
	metrics  *observability.Metrics
	logger   *zap.Logger
}

// NewChatService creates the turn processor. maxConcurrency bounds the
// number of turns processed at once across all sessions.
func NewChatService(
	flow *MainFlow,
	sessions port.SessionStore,
	maxConcurrency int,
	now func() time.Time,
	metrics *observability.Metrics,
	logger *zap.Logger,
) *ChatService {
	if maxConcurrency <= 0 {
		maxConcurrency = 1
	}
	if now == nil {
		now = time.Now
	}
	return &ChatService{
		flow:     flow,
		sessions: sessions,
		locks:    newKeyedLocks(),
		bulkhead: resilience.NewBulkhead(maxConcurrency),
		now:      now,
		metrics:  metrics,
		logger:   logger,
	}
}

// ProcessActivity handles one inbound activity. Non-message activities
// are acknowledged with a nil response.
func (s *ChatService) ProcessActivity(ctx context.Context, act *chatdomain.Activity) (*chatdomain.TurnResponse, error) {
	kind := act.Kind()
	s.metrics.IncrActivity(string(kind))

	switch kind {
	case chatdomain.ActivityMessage:
		return s.processMessage(ctx, act)
	case chatdomain.ActivityConversationUpdate,
		chatdomain.ActivityContactRelationUpdate,
		chatdomain.ActivityTyping,
		chatdomain.ActivityDeleteUserData,
		chatdomain.ActivityPing:
		s.logger.Debug("system activity ignored",
			zap.String("type", string(kind)),
			zap.String("channel", act.ChannelID),
		)
		return nil, nil
	default:
		s.logger.Warn("unknown activity type",
			zap.String("type", act.Type),
			zap.String("channel", act.ChannelID),
		)
		return nil, nil
	}
}

func (s *ChatService) processMessage(ctx context.Context, act *chatdomain.Activity) (resp *chatdomain.TurnResponse, err error) {
	ctx, span := chatTracer.Start(ctx, "ChatService.processMessage")
	defer span.End()

	start := time.Now()
	defer func() {
		s.metrics.RecordTurnDuration(time.Since(start))
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
	}()

	if err := s.bulkhead.Acquire(ctx); err != nil {
		return nil, err
	}
	defer s.bulkhead.Release()

	key := act.SessionKey()
	span.SetAttributes(attribute.String("session.key", key))
	logger := observability.WithTrace(ctx, s.logger)

	unlock := s.locks.Lock(key)
	defer unlock()

	sess, err := s.sessions.Load(ctx, key)
	if err != nil {
		s.metrics.IncrExternalError("session_store")
		return nil, fmt.Errorf("load session: %w", err)
	}
	if sess == nil {
		sess = &chatdomain.Session{Key: key}
	}

	out := &Outbox{}
	step, err := s.runTurn(ctx, sess, act.Text, out)
	if err != nil {
		return nil, err
	}
	if step.Status == StepFailed {
		logger.Warn("turn failed",
			zap.String("session", key),
			zap.Error(step.Err),
		)
		return nil, step.Err
	}

	sess.UpdatedAt = s.now().UTC()
	if err := s.sessions.Save(ctx, sess); err != nil {
		s.metrics.IncrExternalError("session_store")
		return nil, fmt.Errorf("save session: %w", err)
	}

	logger.Info("turn processed",
		zap.String("session", key),
		zap.Stringer("status", step.Status),
		zap.Int("replies", len(out.Messages())),
	)
	return s.buildResponse(act, out.Messages()), nil
}

// runTurn starts or resumes the dialog and converts panics into errors.
func (s *ChatService) runTurn(ctx context.Context, sess *chatdomain.Session, text string, out *Outbox) (step Step[bool], err error) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("panic in dialog", zap.String("session", sess.Key), zap.Any("panic", r))
			err = fmt.Errorf("dialog panic: %v", r)
		}
	}()

	if sess.Dialog == nil {
		return s.flow.Start(ctx, sess, out), nil
	}
	return s.flow.Resume(ctx, sess, text, out), nil
}

func (s *ChatService) buildResponse(act *chatdomain.Activity, messages []string) *chatdomain.TurnResponse {
	locale := act.Locale
	if locale == "" {
		locale = chatdomain.DefaultLocale
	}

	replies := make([]chatdomain.Reply, 0, len(messages))
	for _, m := range messages {
		replies = append(replies, chatdomain.Reply{
			ID:        uuid.NewString(),
			Type:      string(chatdomain.ActivityMessage),
			Text:      m,
			ReplyToID: act.ID,
			Locale:    locale,
		})
	}
	return &chatdomain.TurnResponse{Replies: replies}
}
