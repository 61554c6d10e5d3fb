// Package crm is an in-process stand-in for the company CRM: an identity
// exchange issuing JWT access tokens, a customer directory seeded from
// YAML and a SQLite backed contact store. It serves both as the default
// backend of the bot and, through Router, as an HTTP API the CRM client
// can talk to.
package crm

import (
	"context"
	"fmt"
	"time"

	"github.com/boddenberg/sellernotes-bot-go/internal/domain"

	"github.com/golang-jwt/jwt/v5"
	"go.opentelemetry.io/otel"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

var crmTracer = otel.Tracer("infra/crm")

// DefaultLoginURL is the sign-in page shown to users.
const DefaultLoginURL = "https://access.company.com/login"

const (
	tokenIssuer = "sellernotes-crm"
	tokenType   = "access"
	bcryptCost  = bcrypt.DefaultCost
)

// IdentityConfig configures the identity exchange.
type IdentityConfig struct {
	LoginURL string
	Username string
	Password string
	Secret   string
	TokenTTL time.Duration
}

// TokenClaims are the claims carried by access tokens.
type TokenClaims struct {
	Type string `json:"type"`
	jwt.RegisteredClaims
}

// IdentityService exchanges service credentials for access tokens.
type IdentityService struct {
	loginURL     string
	username     string
	passwordHash []byte
	secret       []byte
	ttl          time.Duration
	now          func() time.Time
	logger       *zap.Logger
}

// NewIdentityService hashes the configured password and returns the service.
func NewIdentityService(cfg IdentityConfig, logger *zap.Logger) (*IdentityService, error) {
	if cfg.Secret == "" {
		return nil, fmt.Errorf("identity: empty signing secret")
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(cfg.Password), bcryptCost)
	if err != nil {
		return nil, fmt.Errorf("identity: hash password: %w", err)
	}
	if cfg.LoginURL == "" {
		cfg.LoginURL = DefaultLoginURL
	}
	if cfg.TokenTTL <= 0 {
		cfg.TokenTTL = time.Hour
	}
	return &IdentityService{
		loginURL:     cfg.LoginURL,
		username:     cfg.Username,
		passwordHash: hash,
		secret:       []byte(cfg.Secret),
		ttl:          cfg.TokenTTL,
		now:          time.Now,
		logger:       logger,
	}, nil
}

// WithClock replaces the clock used for token timestamps.
func (s *IdentityService) WithClock(now func() time.Time) *IdentityService {
	s.now = now
	return s
}

// LoginURL returns the sign-in page.
func (s *IdentityService) LoginURL() string {
	return s.loginURL
}

// Login checks the credentials and issues a token. Wrong credentials are
// an unsuccessful result, not an error.
func (s *IdentityService) Login(ctx context.Context, username, password string) (*domain.LoginResult, error) {
	_, span := crmTracer.Start(ctx, "IdentityService.Login")
	defer span.End()

	if username != s.username || bcrypt.CompareHashAndPassword(s.passwordHash, []byte(password)) != nil {
		s.logger.Warn("login: invalid credentials", zap.String("username", username))
		return &domain.LoginResult{Success: false}, nil
	}

	token, err := s.sign(username)
	if err != nil {
		return nil, fmt.Errorf("sign token: %w", err)
	}
	return &domain.LoginResult{Token: token, Success: true}, nil
}

// ValidateToken verifies signature, type and expiry.
func (s *IdentityService) ValidateToken(tokenString string) (*TokenClaims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &TokenClaims{}, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return s.secret, nil
	}, jwt.WithTimeFunc(s.now), jwt.WithIssuer(tokenIssuer))
	if err != nil {
		return nil, &domain.ErrUnauthorized{Message: "invalid or expired token"}
	}

	claims, ok := token.Claims.(*TokenClaims)
	if !ok || !token.Valid || claims.Type != tokenType {
		return nil, &domain.ErrUnauthorized{Message: "invalid token"}
	}
	return claims, nil
}

func (s *IdentityService) sign(subject string) (string, error) {
	now := s.now()
	claims := TokenClaims{
		Type: tokenType,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.ttl)),
			Issuer:    tokenIssuer,
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
}
