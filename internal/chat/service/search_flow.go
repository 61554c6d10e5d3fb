package service

import (
	"context"
	"strconv"
	"strings"

	chatdomain "github.com/boddenberg/sellernotes-bot-go/internal/chat/domain"
	"github.com/boddenberg/sellernotes-bot-go/internal/domain"
	"github.com/boddenberg/sellernotes-bot-go/internal/infra/observability"
	"github.com/boddenberg/sellernotes-bot-go/internal/port"
	"github.com/boddenberg/sellernotes-bot-go/internal/textfold"

	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

// MaxChoiceCandidates is the largest result set offered as a choice;
// anything bigger asks the user to narrow the search.
const MaxChoiceCandidates = 5

// ============================================================
// SearchFlow: resolves a search term to one customer
// ============================================================
//
// Outcomes of one query:
//
//	lookup failed        → message, stay in awaiting_query (Continue)
//	0 matches            → message, Done(nil)
//	1 match              → Done(customer)
//	2..5 matches         → choice prompt, awaiting_choice (Continue)
//	more than 5          → message, Done(nil)
//
// Done(nil) means "did not converge"; MainFlow restarts the search.
// A 401/403 from the directory triggers one silent re-login and one retry.

// SearchFlow implements the customer search dialog.
type SearchFlow struct {
	directory port.CustomerDirectory
	login     *LoginFlow
	metrics   *observability.Metrics
	logger    *zap.Logger
}

// NewSearchFlow creates the search flow.
func NewSearchFlow(directory port.CustomerDirectory, login *LoginFlow, metrics *observability.Metrics, logger *zap.Logger) *SearchFlow {
	return &SearchFlow{
		directory: directory,
		login:     login,
		metrics:   metrics,
		logger:    logger,
	}
}

// Start posts the search prompt.
func (f *SearchFlow) Start(ctx context.Context, sess *chatdomain.Session, st *chatdomain.SearchState, out *Outbox) Step[*domain.Customer] {
	st.Stage = chatdomain.SearchPrompting
	st.Candidates = nil
	st.Attempt++

	out.Post(msgSearchPrompt)
	st.Stage = chatdomain.SearchAwaitingQuery
	return Continue[*domain.Customer]()
}

// Resume handles either a search term or a choice among candidates.
func (f *SearchFlow) Resume(ctx context.Context, sess *chatdomain.Session, st *chatdomain.SearchState, text string, out *Outbox) Step[*domain.Customer] {
	switch st.Stage {
	case chatdomain.SearchAwaitingQuery:
		return f.handleQuery(ctx, sess, st, text, out)
	case chatdomain.SearchAwaitingChoice:
		return f.handleChoice(st, text, out)
	default:
		return Failed[*domain.Customer](&chatdomain.ErrUnknownStage{Flow: "search", Stage: string(st.Stage)})
	}
}

func (f *SearchFlow) handleQuery(ctx context.Context, sess *chatdomain.Session, st *chatdomain.SearchState, text string, out *Outbox) Step[*domain.Customer] {
	ctx, span := chatTracer.Start(ctx, "SearchFlow.handleQuery")
	defer span.End()

	q := BuildQuery(strings.TrimSpace(text))
	span.SetAttributes(attribute.String("search.type", string(q.Type)))

	res := f.lookup(ctx, sess, q)
	if res == nil || !res.Success {
		f.metrics.IncrSearchResult("failed")
		out.Post(msgSearchFailed)
		return Continue[*domain.Customer]()
	}

	n := len(res.Customers)
	f.logger.Info("customer search",
		zap.String("session", sess.Key),
		zap.String("type", string(q.Type)),
		zap.Int("matches", n),
	)

	switch {
	case n == 0:
		f.metrics.IncrSearchResult("none")
		out.Post(msgSearchNotFound)
		st.Stage = chatdomain.SearchUnresolved
		return Done[*domain.Customer](nil)
	case n == 1:
		f.metrics.IncrSearchResult("single")
		c := res.Customers[0]
		st.Stage = chatdomain.SearchResolved
		return Done(&c)
	case n <= MaxChoiceCandidates:
		f.metrics.IncrSearchResult("choice")
		st.Candidates = append([]domain.Customer(nil), res.Customers...)
		st.Stage = chatdomain.SearchAwaitingChoice
		out.Post(choicePrompt(st.Candidates))
		return Continue[*domain.Customer]()
	default:
		f.metrics.IncrSearchResult("too_many")
		out.Post(msgSearchTooMany)
		st.Stage = chatdomain.SearchUnresolved
		return Done[*domain.Customer](nil)
	}
}

// lookup runs the search, re-logging in once on an auth failure.
// A nil result means the call itself failed.
func (f *SearchFlow) lookup(ctx context.Context, sess *chatdomain.Session, q domain.CustomerQuery) *domain.LookupResult {
	res, err := f.directory.Search(ctx, sess.AccessToken, q)
	if err != nil {
		f.metrics.IncrExternalError("directory")
		f.logger.Warn("customer search failed", zap.String("session", sess.Key), zap.Error(err))
		return nil
	}
	if !res.IsAuthFailure() {
		return res
	}

	f.logger.Info("directory rejected token, logging in again",
		zap.String("session", sess.Key),
		zap.Int("status", res.StatusCode),
	)
	if err := f.login.Refresh(ctx, sess); err != nil {
		f.logger.Warn("re-login failed", zap.String("session", sess.Key), zap.Error(err))
		return nil
	}

	res, err = f.directory.Search(ctx, sess.AccessToken, q)
	if err != nil {
		f.metrics.IncrExternalError("directory")
		f.logger.Warn("customer search retry failed", zap.String("session", sess.Key), zap.Error(err))
		return nil
	}
	return res
}

func (f *SearchFlow) handleChoice(st *chatdomain.SearchState, text string, out *Outbox) Step[*domain.Customer] {
	c, ok := pickCandidate(st.Candidates, text)
	if !ok {
		out.Post(msgSearchInvalidChoice + "\n" + choicePrompt(st.Candidates))
		return Continue[*domain.Customer]()
	}
	st.Candidates = nil
	st.Stage = chatdomain.SearchResolved
	return Done(&c)
}

func choicePrompt(candidates []domain.Customer) string {
	var b strings.Builder
	b.WriteString(msgSearchChoose)
	for i, c := range candidates {
		b.WriteString("\n")
		b.WriteString(strconv.Itoa(i + 1))
		b.WriteString(". ")
		b.WriteString(c.String())
	}
	return b.String()
}

// pickCandidate accepts the 1-based number, the exact name, or a fragment
// matching exactly one candidate (case and accent insensitive).
func pickCandidate(candidates []domain.Customer, text string) (domain.Customer, bool) {
	input := strings.TrimSuffix(strings.TrimSpace(text), ".")
	if n, err := strconv.Atoi(input); err == nil {
		if n >= 1 && n <= len(candidates) {
			return candidates[n-1], true
		}
		return domain.Customer{}, false
	}

	key := textfold.Fold(input)
	if key == "" {
		return domain.Customer{}, false
	}
	for _, c := range candidates {
		if textfold.Fold(c.Name) == key {
			return c, true
		}
	}

	var match []domain.Customer
	for _, c := range candidates {
		if strings.Contains(textfold.Fold(c.Name), key) {
			match = append(match, c)
		}
	}
	if len(match) == 1 {
		return match[0], true
	}
	return domain.Customer{}, false
}
