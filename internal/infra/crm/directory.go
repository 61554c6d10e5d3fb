package crm

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"strconv"
	"strings"
	"sync"

	"github.com/boddenberg/sellernotes-bot-go/internal/domain"
	"github.com/boddenberg/sellernotes-bot-go/internal/textfold"

	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"
)

// DefaultCustomers is the seed used when no seed file is configured.
var DefaultCustomers = []domain.Customer{
	{ID: 1, Code: 1, Name: "Test customer", VAT: "ABCD"},
}

// seedFile is the YAML layout of CRM_SEED_FILE.
//
//	customers:
//	  - id: 1
//	    code: 1
//	    name: Test customer
//	    vat: ABCD
type seedFile struct {
	Customers []domain.Customer `yaml:"customers"`
}

// LoadSeed reads customers from a YAML file.
func LoadSeed(path string) ([]domain.Customer, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read seed %s: %w", path, err)
	}
	var f seedFile
	if err := yaml.Unmarshal(b, &f); err != nil {
		return nil, fmt.Errorf("parse seed %s: %w", path, err)
	}
	seen := make(map[int]bool, len(f.Customers))
	for _, c := range f.Customers {
		if seen[c.ID] {
			return nil, fmt.Errorf("seed %s: duplicate customer id %d", path, c.ID)
		}
		seen[c.ID] = true
	}
	return f.Customers, nil
}

// TokenValidator checks access tokens.
type TokenValidator interface {
	ValidateToken(token string) (*TokenClaims, error)
}

// Directory is an in-memory customer directory guarded by token checks.
// Searches never mutate it, so repeated queries return the same result.
type Directory struct {
	mu        sync.RWMutex
	customers []domain.Customer
	tokens    TokenValidator
	logger    *zap.Logger
}

// NewDirectory creates a directory over customers.
func NewDirectory(customers []domain.Customer, tokens TokenValidator, logger *zap.Logger) *Directory {
	return &Directory{
		customers: append([]domain.Customer(nil), customers...),
		tokens:    tokens,
		logger:    logger,
	}
}

// Search filters customers by the populated field of q.
//
//	code → exact match
//	vat  → case-insensitive exact match
//	name → case and accent insensitive substring
func (d *Directory) Search(ctx context.Context, token string, q domain.CustomerQuery) (*domain.LookupResult, error) {
	_, span := crmTracer.Start(ctx, "Directory.Search")
	defer span.End()
	span.SetAttributes(attribute.String("search.type", string(q.Type)))

	if _, err := d.tokens.ValidateToken(token); err != nil {
		d.logger.Debug("directory: token rejected", zap.Error(err))
		return &domain.LookupResult{StatusCode: http.StatusUnauthorized}, nil
	}

	d.mu.RLock()
	defer d.mu.RUnlock()

	var out []domain.Customer
	for _, c := range d.customers {
		if matches(c, q) {
			out = append(out, c)
		}
	}
	return &domain.LookupResult{Success: true, StatusCode: http.StatusOK, Customers: out}, nil
}

// Add inserts or replaces a customer by ID.
func (d *Directory) Add(c domain.Customer) {
	d.mu.Lock()
	defer d.mu.Unlock()

	for i := range d.customers {
		if d.customers[i].ID == c.ID {
			d.customers[i] = c
			return
		}
	}
	d.customers = append(d.customers, c)
}

// Get returns the customer with id.
func (d *Directory) Get(id int) (*domain.Customer, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	for _, c := range d.customers {
		if c.ID == id {
			return &c, nil
		}
	}
	return nil, &domain.ErrNotFound{Resource: "customer", ID: strconv.Itoa(id)}
}

// Len returns the number of customers.
func (d *Directory) Len() int {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return len(d.customers)
}

func matches(c domain.Customer, q domain.CustomerQuery) bool {
	switch q.Type {
	case domain.SearchByCode:
		return c.Code == q.Code
	case domain.SearchByVAT:
		return strings.EqualFold(c.VAT, strings.TrimSpace(q.VAT))
	case domain.SearchByNamePart:
		return textfold.Contains(c.Name, q.NamePart)
	}
	return false
}
