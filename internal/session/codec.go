// Package session issues and verifies the signed session token carried in the
// helpdesk cookie, and resolves it into a shared.Principal per request.
package session

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/clinica-central/helpdesk/internal/shared"
)

// TTL is the lifetime of an issued token.
const TTL = 7 * 24 * time.Hour

var (
	// ErrInvalidSignature covers malformed, unsigned and tampered tokens.
	ErrInvalidSignature = errors.New("session: invalid signature")
	// ErrExpired is returned for tokens past their expiry.
	ErrExpired = errors.New("session: token expired")
)

type claims struct {
	UserID int64  `json:"userId"`
	Email  string `json:"email"`
	Role   string `json:"role"`
	jwt.RegisteredClaims
}

// Codec signs and verifies session tokens with an HMAC secret.
type Codec struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

// NewCodec returns a Codec. A non-positive ttl falls back to TTL.
func NewCodec(secret string, ttl time.Duration) *Codec {
	if ttl <= 0 {
		ttl = TTL
	}
	return &Codec{secret: []byte(secret), ttl: ttl, now: time.Now}
}

// WithClock overrides the time source.
func (c *Codec) WithClock(now func() time.Time) *Codec {
	c.now = now
	return c
}

// TTL returns the configured token lifetime.
func (c *Codec) TTL() time.Duration { return c.ttl }

// Issue signs a token for p.
func (c *Codec) Issue(p shared.Principal) (string, error) {
	if len(c.secret) == 0 {
		return "", errors.New("session: secret not configured")
	}
	issuedAt := c.now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims{
		UserID: p.UserID,
		Email:  p.Email,
		Role:   p.Role.Name(),
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(issuedAt),
			ExpiresAt: jwt.NewNumericDate(issuedAt.Add(c.ttl)),
		},
	})
	signed, err := token.SignedString(c.secret)
	if err != nil {
		return "", fmt.Errorf("session: sign: %w", err)
	}
	return signed, nil
}

// Verify checks signature and expiry and returns the principal the token was issued for.
func (c *Codec) Verify(raw string) (shared.Principal, error) {
	var cl claims
	_, err := jwt.ParseWithClaims(raw, &cl, func(*jwt.Token) (any, error) {
		return c.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(c.now),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return shared.Principal{}, ErrExpired
		}
		return shared.Principal{}, ErrInvalidSignature
	}
	if cl.UserID <= 0 {
		return shared.Principal{}, ErrInvalidSignature
	}
	return shared.Principal{UserID: cl.UserID, Email: cl.Email, Role: shared.ParseRole(cl.Role)}, nil
}
