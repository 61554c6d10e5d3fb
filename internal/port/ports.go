// Package port defines the interfaces (ports) for external dependencies.
// Following hexagonal architecture, these ports decouple the dialog flows
// from the concrete CRM, identity and storage implementations.
package port

import (
	"context"

	"github.com/boddenberg/sellernotes-bot-go/internal/domain"
)

// IdentityExchange obtains access tokens for the CRM.
type IdentityExchange interface {
	Login(ctx context.Context, username, password string) (*domain.LoginResult, error)
	// LoginURL is the page the user visits to sign in. No network call.
	LoginURL() string
}

// CustomerDirectory searches customer records.
// A rejected token is reported through LookupResult.StatusCode, not as an error;
// the error return is reserved for transport failures.
type CustomerDirectory interface {
	Search(ctx context.Context, token string, q domain.CustomerQuery) (*domain.LookupResult, error)
}

// PersistenceSink stores finished contact events.
type PersistenceSink interface {
	Save(ctx context.Context, token string, msg *domain.ContactMessage) (*domain.SaveResult, error)
}
