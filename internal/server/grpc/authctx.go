package grpcserver

import (
	"context"
	"fmt"
	"net"
	"strings"

	"github.com/and161185/lookup-credits/internal/authn"
	"github.com/and161185/lookup-credits/internal/errs"
	"github.com/and161185/lookup-credits/internal/model"
	"github.com/and161185/lookup-credits/internal/service"
	"github.com/and161185/lookup-credits/internal/session"
)

type ctxKey string

const (
	sessionKey  ctxKey = "lc.session"
	identityKey ctxKey = "lc.identity"
)

const maxDeviceIDLen = 128

// WithSession stores the resolved account session in context.
func WithSession(ctx context.Context, s *session.AccountSession) context.Context {
	return context.WithValue(ctx, sessionKey, s)
}

// SessionFromCtx fetches the account session from context.
func SessionFromCtx(ctx context.Context) (*session.AccountSession, bool) {
	s, ok := ctx.Value(sessionKey).(*session.AccountSession)
	return s, ok && s != nil
}

// WithIdentity stores a verified admin identity in context.
func WithIdentity(ctx context.Context, id *model.Identity) context.Context {
	return context.WithValue(ctx, identityKey, id)
}

// IdentityFromCtx fetches the admin identity from context.
func IdentityFromCtx(ctx context.Context) (*model.Identity, bool) {
	id, ok := ctx.Value(identityKey).(*model.Identity)
	return id, ok && id != nil
}

// Authenticator turns transport credentials into sessions. Both the gRPC
// interceptor and the HTTP gateway use it.
type Authenticator struct {
	identity service.IdentityService
	verifier *authn.Verifier
	admins   map[string]bool
}

// NewAuthenticator constructs Authenticator. admins are external identity ids.
func NewAuthenticator(identity service.IdentityService, verifier *authn.Verifier, admins []string) *Authenticator {
	set := make(map[string]bool, len(admins))
	for _, a := range admins {
		if a = strings.TrimSpace(a); a != "" {
			set[a] = true
		}
	}
	return &Authenticator{identity: identity, verifier: verifier, admins: set}
}

// Identify verifies an optional bearer. No bearer means a guest (nil, nil).
func (a *Authenticator) Identify(authorization []string) (*model.Identity, error) {
	tok, ok := authn.BearerToken(authorization)
	if !ok {
		return nil, nil
	}
	if a.verifier == nil {
		return nil, fmt.Errorf("%w: sign-in disabled", errs.ErrUnauthorized)
	}
	return a.verifier.Verify(tok)
}

// Session resolves the account for a device and optional bearer.
func (a *Authenticator) Session(ctx context.Context, deviceID string, authorization []string, remoteAddr string) (*session.AccountSession, error) {
	deviceID = strings.TrimSpace(deviceID)
	if deviceID == "" || len(deviceID) > maxDeviceIDLen {
		return nil, fmt.Errorf("%w: missing or oversized device id", errs.ErrInvalidArgument)
	}
	id, err := a.Identify(authorization)
	if err != nil {
		return nil, err
	}
	s, err := a.identity.Resolve(ctx, deviceID, id)
	if err != nil {
		return nil, err
	}
	return s.WithRemoteIP(hostOnly(remoteAddr)), nil
}

// Admin requires a verified bearer listed as admin.
func (a *Authenticator) Admin(authorization []string) (*model.Identity, error) {
	id, err := a.Identify(authorization)
	if err != nil {
		return nil, err
	}
	if id == nil {
		return nil, errs.ErrNotAuthenticated
	}
	if !a.admins[id.ID] {
		return nil, errs.ErrForbidden
	}
	return id, nil
}

func hostOnly(addr string) string {
	if host, _, err := net.SplitHostPort(addr); err == nil {
		return host
	}
	return addr
}
