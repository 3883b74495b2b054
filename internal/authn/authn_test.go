package authn

import (
	"errors"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/and161185/lookup-credits/internal/errs"
)

var key = []byte("secret")

func makeJWT(t *testing.T, sub string, method jwt.SigningMethod, iat time.Time, ttl time.Duration) string {
	t.Helper()
	claims := jwt.RegisteredClaims{
		Subject:   sub,
		IssuedAt:  jwt.NewNumericDate(iat),
		NotBefore: jwt.NewNumericDate(iat),
		ExpiresAt: jwt.NewNumericDate(iat.Add(ttl)),
	}
	s, err := jwt.NewWithClaims(method, claims).SignedString(key)
	if err != nil {
		t.Fatalf("SignedString: %v", err)
	}
	return s
}

func TestVerify_Valid(t *testing.T) {
	t.Parallel()
	now := time.Now().UTC()
	tok, err := Sign(key, "user_2abc", now.Add(-time.Minute), 10*time.Minute)
	if err != nil {
		t.Fatalf("Sign: %v", err)
	}
	id, err := NewVerifier(key, nil).Verify(tok)
	if err != nil {
		t.Fatalf("Verify: %v", err)
	}
	if id.ID != "user_2abc" {
		t.Fatalf("subject = %q", id.ID)
	}
}

func TestVerify_Rejects(t *testing.T) {
	t.Parallel()
	now := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)
	v := NewVerifier(key, func() time.Time { return now })

	cases := map[string]string{
		"expired":     makeJWT(t, "u", jwt.SigningMethodHS256, now.Add(-2*time.Hour), time.Hour),
		"wrong alg":   makeJWT(t, "u", jwt.SigningMethodHS384, now, time.Hour),
		"empty sub":   makeJWT(t, "", jwt.SigningMethodHS256, now, time.Hour),
		"not a jwt":   "this-is-not-a-jwt",
		"future nbf":  makeJWT(t, "u", jwt.SigningMethodHS256, now.Add(time.Hour), time.Hour),
		"no lifetime": mustSign(t, jwt.RegisteredClaims{Subject: "u"}),
	}
	for name, tok := range cases {
		if _, err := v.Verify(tok); !errors.Is(err, errs.ErrUnauthorized) {
			t.Fatalf("%s: want ErrUnauthorized, got %v", name, err)
		}
	}

	if _, err := NewVerifier(nil, nil).Verify(cases["expired"]); !errors.Is(err, errs.ErrUnauthorized) {
		t.Fatalf("want ErrUnauthorized without key, got %v", err)
	}
}

func TestVerify_Leeway(t *testing.T) {
	t.Parallel()
	now := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)
	v := NewVerifier(key, func() time.Time { return now })
	// Expired 10s ago, inside the skew allowance.
	tok := makeJWT(t, "u", jwt.SigningMethodHS256, now.Add(-time.Hour-10*time.Second), time.Hour)
	if _, err := v.Verify(tok); err != nil {
		t.Fatalf("Verify within leeway: %v", err)
	}
}

func mustSign(t *testing.T, c jwt.RegisteredClaims) string {
	t.Helper()
	s, err := jwt.NewWithClaims(jwt.SigningMethodHS256, c).SignedString(key)
	if err != nil {
		t.Fatalf("SignedString: %v", err)
	}
	return s
}

func TestBearerToken(t *testing.T) {
	t.Parallel()
	if got, ok := BearerToken([]string{"Basic foo", "bearer abc.def.ghi"}); !ok || got != "abc.def.ghi" {
		t.Fatalf("got %q %v", got, ok)
	}
	for _, in := range [][]string{nil, {"Basic foo"}, {"Bearer   "}} {
		if _, ok := BearerToken(in); ok {
			t.Fatalf("want miss for %q", in)
		}
	}
}
