// Package authn verifies identity provider bearer tokens.
package authn

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/and161185/lookup-credits/internal/errs"
	"github.com/and161185/lookup-credits/internal/model"
)

// DefaultLeeway tolerates clock skew between the provider and this server.
const DefaultLeeway = 30 * time.Second

// Verifier checks HS256 tokens; the subject is the external identity id.
type Verifier struct {
	key    []byte
	leeway time.Duration
	now    func() time.Time
}

// NewVerifier returns a Verifier for key. now may be nil.
func NewVerifier(key []byte, now func() time.Time) *Verifier {
	if now == nil {
		now = time.Now
	}
	return &Verifier{key: key, leeway: DefaultLeeway, now: now}
}

// Verify returns the identity carried by tok, or errs.ErrUnauthorized.
func (v *Verifier) Verify(tok string) (*model.Identity, error) {
	if len(v.key) == 0 {
		return nil, fmt.Errorf("%w: verification key not configured", errs.ErrUnauthorized)
	}
	var claims jwt.RegisteredClaims
	parsed, err := jwt.ParseWithClaims(tok, &claims, func(t *jwt.Token) (any, error) {
		if t.Method != jwt.SigningMethodHS256 {
			return nil, errors.New("unexpected signing method")
		}
		return v.key, nil
	}, jwt.WithoutClaimsValidation())
	if err != nil || !parsed.Valid {
		return nil, fmt.Errorf("%w: invalid token", errs.ErrUnauthorized)
	}

	val := jwt.NewValidator(jwt.WithLeeway(v.leeway), jwt.WithTimeFunc(v.now), jwt.WithExpirationRequired())
	if err := val.Validate(&claims); err != nil {
		return nil, fmt.Errorf("%w: token expired or not valid yet", errs.ErrUnauthorized)
	}
	if strings.TrimSpace(claims.Subject) == "" {
		return nil, fmt.Errorf("%w: empty subject", errs.ErrUnauthorized)
	}
	return &model.Identity{ID: claims.Subject}, nil
}

// Sign issues a token for subject. The identity provider does this in
// production; local setups and tests use it directly.
func Sign(key []byte, subject string, issuedAt time.Time, ttl time.Duration) (string, error) {
	claims := jwt.RegisteredClaims{
		Subject:   subject,
		IssuedAt:  jwt.NewNumericDate(issuedAt),
		NotBefore: jwt.NewNumericDate(issuedAt),
		ExpiresAt: jwt.NewNumericDate(issuedAt.Add(ttl)),
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(key)
}

// BearerToken picks the first "Bearer <token>" value.
func BearerToken(values []string) (string, bool) {
	for _, v := range values {
		v = strings.TrimSpace(v)
		if len(v) >= 7 && strings.EqualFold(v[:7], "bearer ") {
			if t := strings.TrimSpace(v[7:]); t != "" {
				return t, true
			}
		}
	}
	return "", false
}
