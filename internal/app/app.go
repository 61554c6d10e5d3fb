// Package app assembles the bot from configuration: backends, session
// store, dialog flows, turn processor and HTTP router. Both the server
// and the console command build on it.
package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/boddenberg/sellernotes-bot-go/internal/chat/port"
	"github.com/boddenberg/sellernotes-bot-go/internal/chat/service"
	"github.com/boddenberg/sellernotes-bot-go/internal/config"
	"github.com/boddenberg/sellernotes-bot-go/internal/domain"
	"github.com/boddenberg/sellernotes-bot-go/internal/handler"
	"github.com/boddenberg/sellernotes-bot-go/internal/infra/client"
	"github.com/boddenberg/sellernotes-bot-go/internal/infra/crm"
	"github.com/boddenberg/sellernotes-bot-go/internal/infra/observability"
	"github.com/boddenberg/sellernotes-bot-go/internal/infra/resilience"
	"github.com/boddenberg/sellernotes-bot-go/internal/infra/session"
	mainport "github.com/boddenberg/sellernotes-bot-go/internal/port"

	"go.uber.org/zap"
)

// App is a fully wired bot.
type App struct {
	Chat    *service.ChatService
	Handler http.Handler
	Metrics *observability.Metrics

	closers []func() error
	logger  *zap.Logger
}

// Option customizes New.
type Option func(*options)

type options struct {
	now func() time.Time
}

// WithClock replaces the wall clock, mostly for tests.
func WithClock(now func() time.Time) Option {
	return func(o *options) { o.now = now }
}

// backends groups the three CRM ports.
type backends struct {
	identity  mainport.IdentityExchange
	directory mainport.CustomerDirectory
	sink      mainport.PersistenceSink
	checks    map[string]handler.Checker
	mock      http.Handler
}

// New builds the bot. Close must be called to release databases and
// connections.
func New(ctx context.Context, cfg *config.Config, logger *zap.Logger, opts ...Option) (*App, error) {
	o := options{now: time.Now}
	for _, opt := range opts {
		opt(&o)
	}

	a := &App{Metrics: observability.NewMetrics(), logger: logger}

	resilienceCfg := resilience.Config{
		MaxRetries:     cfg.MaxRetries,
		InitialBackoff: cfg.InitialBackoff,
		MaxConcurrency: cfg.MaxConcurrency,
	}

	be, err := a.buildBackends(cfg, logger, o.now)
	if err != nil {
		a.Close()
		return nil, err
	}

	sessions, err := a.buildSessions(ctx, cfg, resilienceCfg, logger, be.checks)
	if err != nil {
		a.Close()
		return nil, err
	}

	loc := cfg.Location()
	creds := service.Credentials{Username: cfg.LoginUsername, Password: cfg.LoginPassword}

	login := service.NewLoginFlow(be.identity, creds, a.Metrics, logger)
	search := service.NewSearchFlow(be.directory, login, a.Metrics, logger)
	form := service.NewFormFlow(o.now, loc, a.Metrics, logger)
	flow := service.NewMainFlow(login, search, form, be.sink, o.now, a.Metrics, logger)

	a.Chat = service.NewChatService(flow, sessions, resilienceCfg.MaxConcurrency, o.now, a.Metrics, logger)
	a.Handler = handler.NewRouter(handler.RouterDeps{
		Chat:    a.Chat,
		Metrics: a.Metrics,
		Checks:  be.checks,
		MockCRM: be.mock,
		Logger:  logger,
	})
	return a, nil
}

// buildBackends picks the remote CRM when CRM_URL is set and the
// in-process mock otherwise.
func (a *App) buildBackends(cfg *config.Config, logger *zap.Logger, now func() time.Time) (*backends, error) {
	if cfg.CRMURL != "" {
		logger.Info("using remote CRM", zap.String("crm_url", cfg.CRMURL))
		httpClient := &http.Client{Timeout: cfg.HTTPTimeout}
		c := client.NewCRMClient(httpClient, cfg.CRMURL, cfg.LoginURL, resilience.NewCircuitBreaker("crm", logger))
		return &backends{
			identity:  c,
			directory: c,
			sink:      c,
			checks:    map[string]handler.Checker{},
		}, nil
	}

	identity, err := crm.NewIdentityService(crm.IdentityConfig{
		LoginURL: cfg.LoginURL,
		Username: cfg.LoginUsername,
		Password: cfg.LoginPassword,
		Secret:   cfg.JWTSecret,
		TokenTTL: cfg.TokenTTL,
	}, logger)
	if err != nil {
		return nil, err
	}
	identity.WithClock(now)

	customers := crm.DefaultCustomers
	if cfg.CRMSeedFile != "" {
		customers, err = crm.LoadSeed(cfg.CRMSeedFile)
		if err != nil {
			return nil, err
		}
	}
	directory := crm.NewDirectory(customers, identity, logger)

	contacts, err := crm.OpenContactStore(cfg.ContactsDBPath, identity, logger)
	if err != nil {
		return nil, err
	}
	a.closers = append(a.closers, contacts.Close)

	logger.Info("using in-process CRM",
		zap.Int("customers", directory.Len()),
		zap.String("contacts_db", cfg.ContactsDBPath),
	)
	return &backends{
		identity:  identity,
		directory: directory,
		sink:      contacts,
		checks:    map[string]handler.Checker{"contacts": contacts},
		mock:      crm.Router(identity, directory, contacts, logger),
	}, nil
}

func (a *App) buildSessions(ctx context.Context, cfg *config.Config, rc resilience.Config, logger *zap.Logger, checks map[string]handler.Checker) (port.SessionStore, error) {
	if cfg.RedisURL == "" {
		logger.Info("sessions kept in memory", zap.Duration("ttl", cfg.SessionTTL))
		store := session.NewMemoryStore(cfg.SessionTTL)
		a.closers = append(a.closers, store.Close)
		return store, nil
	}

	rdb, err := session.ConnectRedis(ctx, cfg.RedisURL, rc, logger)
	if err != nil {
		return nil, err
	}
	a.closers = append(a.closers, rdb.Close)

	store := session.NewRedisStore(rdb, cfg.SessionTTL, logger)
	checks["redis"] = store
	return store, nil
}

// Close releases every resource opened by New.
func (a *App) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	if len(errs) > 0 {
		return fmt.Errorf("close app: %w", errors.Join(errs...))
	}
	return nil
}

// Send runs one message turn for user on channel and returns the reply
// texts. Used by the console command.
func (a *App) Send(ctx context.Context, channel, user, text string) ([]string, error) {
	resp, err := a.Chat.ProcessActivity(ctx, newMessage(channel, user, text))
	if err != nil {
		return nil, err
	}
	if resp == nil {
		return nil, nil
	}
	out := make([]string, 0, len(resp.Replies))
	for _, r := range resp.Replies {
		out = append(out, r.Text)
	}
	return out, nil
}

// Snapshot exposes the dialog metrics.
func (a *App) Snapshot() *domain.DialogMetrics {
	return a.Metrics.GetDialogSnapshot()
}
