// Package port defines the session storage port used by the
// turn processor. The concrete adapters live in internal/infra/session.
package port

import (
	"context"

	chatdomain "github.com/boddenberg/sellernotes-bot-go/internal/chat/domain"
)

// SessionStore persists sessions between turns.
//
// Load returns (nil, nil) when no session exists for key. Implementations
// must hand out independent copies: mutating a loaded session has no effect
// until Save is called.
type SessionStore interface {
	Load(ctx context.Context, key string) (*chatdomain.Session, error)
	Save(ctx context.Context, sess *chatdomain.Session) error
}
