// Package auth issues and verifies the HS256 access tokens carried in the
// access_token cookie or the Authorization header.
package auth

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/helloviza/approvals/internal/domain/entity"
)

// ErrInvalidToken wraps every verification failure
var ErrInvalidToken = errors.New("invalid token")

// Claims are the access token claims
type Claims struct {
	Email      string      `json:"email"`
	Name       string      `json:"name"`
	Role       entity.Role `json:"role"`
	CustomerID string      `json:"customerId"`
	jwt.RegisteredClaims
}

// Actor converts the claims into the service-level caller
func (c *Claims) Actor() entity.Actor {
	return entity.Actor{
		ID:         c.Subject,
		Email:      c.Email,
		Name:       c.Name,
		Role:       c.Role,
		CustomerID: c.CustomerID,
	}
}

// Issuer signs and verifies tokens with a shared secret
type Issuer struct {
	secret []byte
	ttl    time.Duration
	issuer string
	nowFn  func() time.Time
}

// NewIssuer creates an Issuer. ttl <= 0 defaults to 24h.
func NewIssuer(secret string, ttl time.Duration) (*Issuer, error) {
	if secret == "" {
		return nil, fmt.Errorf("jwt secret is required")
	}
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &Issuer{
		secret: []byte(secret),
		ttl:    ttl,
		issuer: "approvals",
		nowFn:  time.Now,
	}, nil
}

// Issue returns a signed token for actor
func (i *Issuer) Issue(actor entity.Actor) (string, error) {
	if !actor.Role.IsValid() {
		return "", fmt.Errorf("cannot issue token for role %q", actor.Role)
	}

	now := i.nowFn()
	claims := Claims{
		Email:      actor.Email,
		Name:       actor.Name,
		Role:       actor.Role,
		CustomerID: actor.CustomerID,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   actor.ID,
			Issuer:    i.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(i.ttl)),
		},
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(i.secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}
	return signed, nil
}

// Verify parses a token, optionally prefixed with "Bearer ", and checks its
// signature, expiry and role
func (i *Issuer) Verify(tokenStr string) (*Claims, error) {
	tokenStr = strings.TrimSpace(strings.TrimPrefix(tokenStr, "Bearer "))
	if tokenStr == "" {
		return nil, fmt.Errorf("%w: empty", ErrInvalidToken)
	}

	token, err := jwt.ParseWithClaims(tokenStr, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return i.secret, nil
	}, jwt.WithTimeFunc(i.nowFn), jwt.WithIssuer(i.issuer))
	if err != nil || !token.Valid {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}

	claims, ok := token.Claims.(*Claims)
	if !ok {
		return nil, fmt.Errorf("%w: unexpected claims", ErrInvalidToken)
	}
	if !claims.Role.IsValid() {
		return nil, fmt.Errorf("%w: unknown role %q", ErrInvalidToken, claims.Role)
	}

	return claims, nil
}
