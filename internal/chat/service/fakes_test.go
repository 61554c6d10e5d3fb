package service

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"testing"
	"time"
	_ "time/tzdata"

	chatdomain "github.com/boddenberg/sellernotes-bot-go/internal/chat/domain"
	"github.com/boddenberg/sellernotes-bot-go/internal/domain"
	"github.com/boddenberg/sellernotes-bot-go/internal/infra/observability"

	"go.uber.org/zap"
)

// ============================================================
// Test doubles
// ============================================================

type fakeIdentity struct {
	mu     sync.Mutex
	calls  int
	token  string
	fail   bool
	reject bool
}

func (f *fakeIdentity) Login(_ context.Context, _, _ string) (*domain.LoginResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.fail {
		return nil, errors.New("identity down")
	}
	if f.reject {
		return &domain.LoginResult{Success: false}, nil
	}
	return &domain.LoginResult{Token: f.token, Success: true}, nil
}

func (f *fakeIdentity) LoginURL() string { return "https://login.test" }

func (f *fakeIdentity) Calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

// fakeDirectory replays scripted results in order; the last one repeats.
type fakeDirectory struct {
	mu      sync.Mutex
	results []*domain.LookupResult
	err     error
	queries []domain.CustomerQuery
	tokens  []string
	panics  bool
}

func (f *fakeDirectory) Search(_ context.Context, token string, q domain.CustomerQuery) (*domain.LookupResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.panics {
		panic("directory exploded")
	}
	f.queries = append(f.queries, q)
	f.tokens = append(f.tokens, token)
	if f.err != nil {
		return nil, f.err
	}
	i := len(f.queries) - 1
	if i >= len(f.results) {
		i = len(f.results) - 1
	}
	return f.results[i], nil
}

func (f *fakeDirectory) Calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.queries)
}

type fakeSink struct {
	mu     sync.Mutex
	saved  []domain.ContactMessage
	tokens []string
	result *domain.SaveResult
	err    error
}

func (f *fakeSink) Save(_ context.Context, token string, msg *domain.ContactMessage) (*domain.SaveResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	f.saved = append(f.saved, *msg)
	f.tokens = append(f.tokens, token)
	if f.result != nil {
		return f.result, nil
	}
	return &domain.SaveResult{Success: true}, nil
}

// ============================================================
// Fixtures
// ============================================================

var prague = mustLocation("Europe/Prague")

func mustLocation(name string) *time.Location {
	loc, err := time.LoadLocation(name)
	if err != nil {
		panic(err)
	}
	return loc
}

// thursday is 3 Nov 2016, 14:30:15 in Prague.
var thursday = time.Date(2016, 11, 3, 14, 30, 15, 0, prague)

func fixedClock() time.Time { return thursday }

var testCustomer = domain.Customer{ID: 1, Code: 1, Name: "Test customer", VAT: "ABCD"}

func customersN(n int) []domain.Customer {
	out := make([]domain.Customer, n)
	for i := range out {
		out[i] = domain.Customer{ID: i + 1, Code: i + 1, Name: "Partner " + string(rune('A'+i)), VAT: "CZ" + string(rune('0'+i))}
	}
	return out
}

func found(cs ...domain.Customer) *domain.LookupResult {
	return &domain.LookupResult{Success: true, StatusCode: http.StatusOK, Customers: cs}
}

func unauthorized() *domain.LookupResult {
	return &domain.LookupResult{StatusCode: http.StatusUnauthorized}
}

type harness struct {
	identity  *fakeIdentity
	directory *fakeDirectory
	sink      *fakeSink
	metrics   *observability.Metrics
	login     *LoginFlow
	search    *SearchFlow
	form      *FormFlow
	main      *MainFlow
}

func newHarness(t *testing.T, results ...*domain.LookupResult) *harness {
	t.Helper()
	if len(results) == 0 {
		results = []*domain.LookupResult{found(testCustomer)}
	}
	h := &harness{
		identity:  &fakeIdentity{token: "fresh-token"},
		directory: &fakeDirectory{results: results},
		sink:      &fakeSink{},
		metrics:   observability.NewMetrics(),
	}
	logger := zap.NewNop()
	h.login = NewLoginFlow(h.identity, Credentials{Username: "bot", Password: "pw"}, h.metrics, logger)
	h.search = NewSearchFlow(h.directory, h.login, h.metrics, logger)
	h.form = NewFormFlow(fixedClock, prague, h.metrics, logger)
	h.main = NewMainFlow(h.login, h.search, h.form, h.sink, fixedClock, h.metrics, logger)
	return h
}

func authedSession() *chatdomain.Session {
	return &chatdomain.Session{Key: "test:user", AccessToken: "valid-token"}
}
