package remember

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

const minKeyBytes = 16

var (
	// ErrInvalidToken is an exported constant or variable used by the identity engine.
	ErrInvalidToken = errors.New("remember token invalid")
	// ErrTokenExpired is an exported constant or variable used by the identity engine.
	ErrTokenExpired = errors.New("remember token expired")
)

// Config defines a public type used by authcore APIs.
//
// Config instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type Config struct {
	SigningKey []byte
	TTL        time.Duration
	Issuer     string
}

// Manager issues and verifies remember tokens: HS256-signed JWTs binding a
// username for silent re-login. Tokens carry no password material; the only
// secret is the signing key.
type Manager struct {
	config Config
}

type rememberClaims struct {
	Username string `json:"unm"`
	jwt.RegisteredClaims
}

// NewManager describes the newmanager operation and its observable behavior.
//
// NewManager may return an error when input validation, dependency calls, or security checks fail.
// NewManager does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func NewManager(cfg Config) (*Manager, error) {
	if len(cfg.SigningKey) < minKeyBytes {
		return nil, errors.New("signing key must be at least 16 bytes")
	}
	if cfg.TTL <= 0 {
		return nil, errors.New("invalid TTL configuration")
	}
	return &Manager{config: cfg}, nil
}

// Issue creates a signed token binding the username until the TTL elapses.
func (m *Manager) Issue(username string) (string, error) {
	if username == "" {
		return "", errors.New("username must not be empty")
	}

	now := time.Now()
	claims := rememberClaims{
		Username: username,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			ExpiresAt: jwt.NewNumericDate(now.Add(m.config.TTL)),
			IssuedAt:  jwt.NewNumericDate(now),
			Issuer:    m.config.Issuer,
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(m.config.SigningKey)
}

// Verify checks the signature and expiry and returns the bound username.
func (m *Manager) Verify(tokenStr string) (string, error) {
	options := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
	}
	if m.config.Issuer != "" {
		options = append(options, jwt.WithIssuer(m.config.Issuer))
	}

	parser := jwt.NewParser(options...)
	token, err := parser.ParseWithClaims(tokenStr, &rememberClaims{}, func(t *jwt.Token) (interface{}, error) {
		return m.config.SigningKey, nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return "", fmt.Errorf("%w: %v", ErrTokenExpired, err)
		}
		return "", fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}

	claims, ok := token.Claims.(*rememberClaims)
	if !ok || claims.Username == "" {
		return "", ErrInvalidToken
	}
	return claims.Username, nil
}
