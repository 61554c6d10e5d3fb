package service

import (
	"context"
	"fmt"
	"strings"

	chatdomain "github.com/boddenberg/sellernotes-bot-go/internal/chat/domain"
	"github.com/boddenberg/sellernotes-bot-go/internal/domain"
	"github.com/boddenberg/sellernotes-bot-go/internal/infra/observability"
	"github.com/boddenberg/sellernotes-bot-go/internal/port"

	"go.uber.org/zap"
)

// ============================================================
// LoginFlow: makes sure the session carries an access token
// ============================================================
//
//	awaiting_token ──token present──────────────► authenticated (Done)
//	      │
//	      └─no token─► post login link ─► awaiting_code
//	                                          │ code
//	                                          ▼
//	                                   identity exchange ─► authenticated (Done)
//	                                          │ error
//	                                          ▼
//	                                        Failed
//
// The confirmation code is not verified against the identity provider;
// the exchange runs with the configured service credentials. Blank codes
// are rejected and the prompt repeated.

// Credentials are the service account used for the identity exchange.
type Credentials struct {
	Username string
	Password string
}

// LoginFlow implements the authentication dialog.
type LoginFlow struct {
	identity port.IdentityExchange
	creds    Credentials
	metrics  *observability.Metrics
	logger   *zap.Logger
}

// NewLoginFlow creates the authentication flow.
func NewLoginFlow(identity port.IdentityExchange, creds Credentials, metrics *observability.Metrics, logger *zap.Logger) *LoginFlow {
	return &LoginFlow{
		identity: identity,
		creds:    creds,
		metrics:  metrics,
		logger:   logger,
	}
}

// Start checks the session token and prompts for login when it is missing.
func (f *LoginFlow) Start(ctx context.Context, sess *chatdomain.Session, st *chatdomain.LoginState, out *Outbox) Step[bool] {
	st.Stage = chatdomain.LoginAwaitingToken
	if sess.AccessToken != "" {
		st.Stage = chatdomain.LoginAuthenticated
		return Done(true)
	}

	out.Postf(msgLoginPrompt, f.identity.LoginURL())
	st.Stage = chatdomain.LoginAwaitingCode

	f.logger.Info("login required", zap.String("session", sess.Key))
	return Continue[bool]()
}

// Resume handles the confirmation code typed by the user.
func (f *LoginFlow) Resume(ctx context.Context, sess *chatdomain.Session, st *chatdomain.LoginState, text string, out *Outbox) Step[bool] {
	if st.Stage != chatdomain.LoginAwaitingCode {
		return Failed[bool](&chatdomain.ErrUnknownStage{Flow: "login", Stage: string(st.Stage)})
	}

	code := strings.TrimSpace(text)
	if code == "" {
		out.Post(msgLoginEmptyCode)
		return Continue[bool]()
	}

	if err := f.exchange(ctx, sess); err != nil {
		return Failed[bool](err)
	}

	st.Stage = chatdomain.LoginAuthenticated
	out.Post(msgLoginDone)
	f.logger.Info("user logged in",
		zap.String("session", sess.Key),
		zap.Int("code_length", len(code)),
	)
	return Done(true)
}

// Refresh replaces the session token without talking to the user.
// The search flow calls it when the directory rejects the token.
func (f *LoginFlow) Refresh(ctx context.Context, sess *chatdomain.Session) error {
	f.metrics.IncrRelogin()
	return f.exchange(ctx, sess)
}

func (f *LoginFlow) exchange(ctx context.Context, sess *chatdomain.Session) error {
	ctx, span := chatTracer.Start(ctx, "LoginFlow.exchange")
	defer span.End()

	res, err := f.identity.Login(ctx, f.creds.Username, f.creds.Password)
	if err != nil {
		f.metrics.IncrExternalError("identity")
		f.logger.Error("identity exchange failed",
			zap.String("session", sess.Key),
			zap.Error(err),
		)
		return fmt.Errorf("login: %w", err)
	}
	if !res.Success || res.Token == "" {
		return &domain.ErrUnauthorized{Message: "Přihlášení se nezdařilo."}
	}

	sess.AccessToken = res.Token
	return nil
}
