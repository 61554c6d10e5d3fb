package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/boddenberg/sellernotes-bot-go/internal/domain"

	"github.com/sony/gobreaker"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
)

var tracer = otel.Tracer("client")

// statusError is a non-2xx answer that should count against the breaker.
type statusError struct {
	status int
}

func (e *statusError) Error() string {
	return fmt.Sprintf("crm API returned status %d", e.status)
}

// CRMClient talks to the CRM HTTP API. It implements the identity,
// directory and persistence ports. Calls go through a circuit breaker
// and are never retried.
type CRMClient struct {
	httpClient *http.Client
	baseURL    string
	loginURL   string
	cb         *gobreaker.CircuitBreaker
}

// NewCRMClient creates a new CRMClient. loginURL is the page shown to
// users; it is not called.
func NewCRMClient(httpClient *http.Client, baseURL, loginURL string, cb *gobreaker.CircuitBreaker) *CRMClient {
	return &CRMClient{
		httpClient: httpClient,
		baseURL:    strings.TrimRight(baseURL, "/"),
		loginURL:   loginURL,
		cb:         cb,
	}
}

// LoginURL returns the sign-in page.
func (c *CRMClient) LoginURL() string {
	return c.loginURL
}

// Login exchanges credentials for an access token. A 401 is an
// unsuccessful result, not an error.
func (c *CRMClient) Login(ctx context.Context, username, password string) (*domain.LoginResult, error) {
	ctx, span := tracer.Start(ctx, "CRMClient.Login")
	defer span.End()

	body := map[string]string{"username": username, "password": password}
	var res domain.LoginResult
	status, err := c.call(ctx, http.MethodPost, "/login", "", body, &res)
	if err != nil {
		return nil, c.wrap("identity", err)
	}
	if status == http.StatusUnauthorized || status == http.StatusForbidden {
		return &domain.LoginResult{Success: false}, nil
	}
	return &res, nil
}

// Search queries the customer directory.
func (c *CRMClient) Search(ctx context.Context, token string, q domain.CustomerQuery) (*domain.LookupResult, error) {
	ctx, span := tracer.Start(ctx, "CRMClient.Search")
	defer span.End()
	span.SetAttributes(attribute.String("search.type", string(q.Type)))

	params := url.Values{}
	params.Set("type", string(q.Type))
	params.Set("term", q.Term())

	var res domain.LookupResult
	status, err := c.call(ctx, http.MethodGet, "/customers?"+params.Encode(), token, nil, &res)
	if err != nil {
		var se *statusError
		if errors.As(err, &se) {
			return &domain.LookupResult{Success: false, StatusCode: se.status}, nil
		}
		return nil, c.wrap("directory", err)
	}
	if status >= 300 {
		return &domain.LookupResult{Success: false, StatusCode: status}, nil
	}
	res.StatusCode = status
	return &res, nil
}

// Save stores a contact event.
func (c *CRMClient) Save(ctx context.Context, token string, msg *domain.ContactMessage) (*domain.SaveResult, error) {
	ctx, span := tracer.Start(ctx, "CRMClient.Save")
	defer span.End()
	span.SetAttributes(attribute.Int("customer.id", msg.CustomerID))

	var res domain.SaveResult
	status, err := c.call(ctx, http.MethodPost, "/contacts", token, msg, &res)
	if err != nil {
		var se *statusError
		if errors.As(err, &se) {
			return &domain.SaveResult{Success: false, ErrorMessage: se.Error()}, nil
		}
		return nil, c.wrap("contacts", err)
	}
	if status >= 300 {
		res.Success = false
		if res.ErrorMessage == "" {
			res.ErrorMessage = fmt.Sprintf("crm API returned status %d", status)
		}
	}
	return &res, nil
}

// call performs one request through the breaker. 4xx answers are decoded
// into out and returned with their status; 5xx answers are errors.
func (c *CRMClient) call(ctx context.Context, method, path, token string, body, out any) (int, error) {
	result, err := c.cb.Execute(func() (any, error) {
		var reader io.Reader
		if body != nil {
			b, err := json.Marshal(body)
			if err != nil {
				return nil, err
			}
			reader = bytes.NewReader(b)
		}

		req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
		if err != nil {
			return nil, err
		}
		req.Header.Set("Accept", "application/json")
		if body != nil {
			req.Header.Set("Content-Type", "application/json")
		}
		if token != "" {
			req.Header.Set("Authorization", "Bearer "+token)
		}

		resp, err := c.httpClient.Do(req)
		if err != nil {
			return nil, err
		}
		defer resp.Body.Close()

		if resp.StatusCode >= 500 {
			return nil, &statusError{status: resp.StatusCode}
		}
		// error bodies of 4xx answers are best effort
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil && resp.StatusCode < 300 {
			return nil, fmt.Errorf("decode %s %s: %w", method, path, err)
		}
		return resp.StatusCode, nil
	})
	if err != nil {
		return 0, err
	}
	return result.(int), nil
}

func (c *CRMClient) wrap(service string, err error) error {
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return &domain.ErrCircuitOpen{Service: service}
	}
	return &domain.ErrExternalService{Service: service, Err: err}
}
