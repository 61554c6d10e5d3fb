package service

import (
	"context"
	"errors"
	"time"

	chatdomain "github.com/boddenberg/sellernotes-bot-go/internal/chat/domain"
	"github.com/boddenberg/sellernotes-bot-go/internal/domain"
	"github.com/boddenberg/sellernotes-bot-go/internal/infra/observability"
	"github.com/boddenberg/sellernotes-bot-go/internal/port"

	"go.uber.org/zap"
)

// ============================================================
// MainFlow: login → search (loop) → form → save
// ============================================================
//
//	login ──Done──► search ──Done(nil)──► search (again)
//	                  │
//	                  └─Done(customer)──► summary ─► form
//	                                                   │
//	                       Failed(canceled) ◄──────────┤
//	                       Done(form) ─► save ─► finished
//
// A finished dialog is dropped from the session; the next message starts
// over from login (which completes immediately while the token is valid).

// MainFlow orchestrates one conversation.
type MainFlow struct {
	login   *LoginFlow
	search  *SearchFlow
	form    *FormFlow
	sink    port.PersistenceSink
	now     func() time.Time
	metrics *observability.Metrics
	logger  *zap.Logger
}

// NewMainFlow wires the sub flows together.
func NewMainFlow(
	login *LoginFlow,
	search *SearchFlow,
	form *FormFlow,
	sink port.PersistenceSink,
	now func() time.Time,
	metrics *observability.Metrics,
	logger *zap.Logger,
) *MainFlow {
	if now == nil {
		now = time.Now
	}
	return &MainFlow{
		login:   login,
		search:  search,
		form:    form,
		sink:    sink,
		now:     now,
		metrics: metrics,
		logger:  logger,
	}
}

// Start begins a new conversation in sess. The outcome is true when the
// form was completed and false when it was canceled.
func (m *MainFlow) Start(ctx context.Context, sess *chatdomain.Session, out *Outbox) Step[bool] {
	sess.Dialog = &chatdomain.DialogState{
		Stage:     chatdomain.StageLogin,
		Login:     &chatdomain.LoginState{},
		StartedAt: m.now().UTC(),
	}
	m.logger.Debug("dialog started", zap.String("session", sess.Key))

	return m.afterLogin(ctx, sess, m.login.Start(ctx, sess, sess.Dialog.Login, out), out)
}

// Resume feeds the user's message to whichever sub flow is suspended.
func (m *MainFlow) Resume(ctx context.Context, sess *chatdomain.Session, text string, out *Outbox) Step[bool] {
	d := sess.Dialog
	if d == nil {
		return m.Start(ctx, sess, out)
	}

	switch d.Stage {
	case chatdomain.StageLogin:
		if d.Login == nil {
			d.Login = &chatdomain.LoginState{}
		}
		return m.afterLogin(ctx, sess, m.login.Resume(ctx, sess, d.Login, text, out), out)
	case chatdomain.StageSearch:
		if d.Search == nil {
			return m.startSearch(ctx, sess, out)
		}
		return m.afterSearch(ctx, sess, m.search.Resume(ctx, sess, d.Search, text, out), out)
	case chatdomain.StageForm:
		if d.Form == nil || d.Customer == nil {
			return Failed[bool](&chatdomain.ErrUnknownStage{Flow: "main", Stage: "form without customer"})
		}
		return m.afterForm(ctx, sess, m.form.Resume(ctx, sess, d.Form, text, out), out)
	default:
		return Failed[bool](&chatdomain.ErrUnknownStage{Flow: "main", Stage: string(d.Stage)})
	}
}

func (m *MainFlow) afterLogin(ctx context.Context, sess *chatdomain.Session, step Step[bool], out *Outbox) Step[bool] {
	switch step.Status {
	case StepContinue:
		return Continue[bool]()
	case StepFailed:
		return Failed[bool](step.Err)
	}
	return m.startSearch(ctx, sess, out)
}

func (m *MainFlow) startSearch(ctx context.Context, sess *chatdomain.Session, out *Outbox) Step[bool] {
	d := sess.Dialog
	d.Stage = chatdomain.StageSearch
	d.Login = nil
	if d.Search == nil {
		d.Search = &chatdomain.SearchState{}
	}
	return m.afterSearch(ctx, sess, m.search.Start(ctx, sess, d.Search, out), out)
}

func (m *MainFlow) afterSearch(ctx context.Context, sess *chatdomain.Session, step Step[*domain.Customer], out *Outbox) Step[bool] {
	switch step.Status {
	case StepContinue:
		return Continue[bool]()
	case StepFailed:
		return Failed[bool](step.Err)
	}

	if step.Value == nil {
		return m.startSearch(ctx, sess, out)
	}

	c := step.Value
	d := sess.Dialog
	d.Customer = c
	d.Search = nil
	d.Stage = chatdomain.StageForm
	d.Form = &chatdomain.FormState{}

	out.Postf(msgCustomerSummary, c.Name, c.VAT, c.Code)
	return m.afterForm(ctx, sess, m.form.Start(ctx, sess, d.Form, out), out)
}

func (m *MainFlow) afterForm(ctx context.Context, sess *chatdomain.Session, step Step[*chatdomain.ContactForm], out *Outbox) Step[bool] {
	switch step.Status {
	case StepContinue:
		return Continue[bool]()
	case StepFailed:
		var canceled *chatdomain.ErrFormCanceled
		if errors.As(step.Err, &canceled) {
			out.Post(msgFormCanceled)
			return m.finish(sess, "canceled", false)
		}
		return Failed[bool](step.Err)
	}

	form := step.Value
	form.CustomerID = sess.Dialog.Customer.ID
	outcome := "saved"
	if !m.save(ctx, sess, form) {
		outcome = "save_failed"
		out.Post(msgSaveFailed)
	}
	out.Post(msgSaved)
	return m.finish(sess, outcome, true)
}

// save persists the form. Failures are logged and reported to the
// caller; they never abort the dialog.
func (m *MainFlow) save(ctx context.Context, sess *chatdomain.Session, form *chatdomain.ContactForm) bool {
	ctx, span := chatTracer.Start(ctx, "MainFlow.save")
	defer span.End()

	msg, err := form.ToMessage()
	if err != nil {
		m.logger.Error("contact form incomplete", zap.String("session", sess.Key), zap.Error(err))
		return false
	}

	res, err := m.sink.Save(ctx, sess.AccessToken, msg)
	if err != nil {
		m.metrics.IncrExternalError("contacts")
		m.logger.Error("contact save failed",
			zap.String("session", sess.Key),
			zap.Int("customer_id", msg.CustomerID),
			zap.Error(err),
		)
		return false
	}
	if !res.Success || res.HasErrors() {
		m.logger.Warn("contact save rejected",
			zap.String("session", sess.Key),
			zap.Int("customer_id", msg.CustomerID),
			zap.String("error", res.ErrorMessage),
		)
		return false
	}

	m.logger.Info("contact saved",
		zap.String("session", sess.Key),
		zap.Int("customer_id", msg.CustomerID),
		zap.Stringer("channel", msg.Channel),
	)
	return true
}

// finish drops the dialog so the next message starts a new conversation.
// completed is true once the form has been filled in, even if the save
// itself failed.
func (m *MainFlow) finish(sess *chatdomain.Session, outcome string, completed bool) Step[bool] {
	m.metrics.IncrDialogOutcome(outcome)
	sess.Dialog = nil
	return Done(completed)
}
