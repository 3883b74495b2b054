package grpcserver

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"go.uber.org/zap/zaptest"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/peer"
	"google.golang.org/grpc/status"

	"github.com/and161185/lookup-credits/internal/authn"
	"github.com/and161185/lookup-credits/internal/errs"
	v1 "github.com/and161185/lookup-credits/internal/rpc/ledgerv1"
)

type fakeAddr struct{}

func (fakeAddr) Network() string { return "tcp" }
func (fakeAddr) String() string  { return "203.0.113.7:12345" }

func TestLoggingUnary_Passthrough(t *testing.T) {
	t.Parallel()

	ic := LoggingUnary(zaptest.NewLogger(t))
	ctx := peer.NewContext(context.Background(), &peer.Peer{Addr: fakeAddr{}})
	info := &grpc.UnaryServerInfo{FullMethod: v1.FullMethod("Resolve")}

	resp, err := ic(ctx, "req", info, func(context.Context, any) (any, error) { return "ok", nil })
	if err != nil || resp != "ok" {
		t.Fatalf("got %v, %v", resp, err)
	}

	wantErr := errors.New("boom")
	if _, err := ic(ctx, "req", info, func(context.Context, any) (any, error) { return nil, wantErr }); !errors.Is(err, wantErr) {
		t.Fatalf("want original error, got: %v", err)
	}
}

func TestRecoverUnary_CatchesPanic(t *testing.T) {
	t.Parallel()

	ic := RecoverUnary(zaptest.NewLogger(t))
	info := &grpc.UnaryServerInfo{FullMethod: v1.FullMethod("Search")}

	_, err := ic(context.Background(), "req", info, func(context.Context, any) (any, error) { panic("oh no") })
	if status.Code(err) != codes.Internal {
		t.Fatalf("want codes.Internal, got: %v", err)
	}

	resp, err := ic(context.Background(), "req", info, func(context.Context, any) (any, error) { return 42, nil })
	if err != nil || resp != 42 {
		t.Fatalf("passthrough: %v, %v", resp, err)
	}
}

func TestErrorsUnary_MapsDomainErrors(t *testing.T) {
	t.Parallel()

	ic := ErrorsUnary()
	info := &grpc.UnaryServerInfo{FullMethod: v1.FullMethod("ActivateKey")}

	_, err := ic(context.Background(), nil, info, func(context.Context, any) (any, error) {
		return nil, fmt.Errorf("activate: %w", errs.ErrBlocked)
	})
	st, _ := status.FromError(err)
	if st.Code() != codes.FailedPrecondition || st.Message() != "Key is blocked" {
		t.Fatalf("got %v", err)
	}

	orig := status.Error(codes.Unauthenticated, "no session")
	if _, err := ic(context.Background(), nil, info, func(context.Context, any) (any, error) { return nil, orig }); err != orig {
		t.Fatalf("status errors must pass through, got %v", err)
	}
}

func TestSessionUnary_SkipsForeignMethods(t *testing.T) {
	t.Parallel()

	ic := SessionUnary(NewAuthenticator(&fakeIdentity{}, nil, nil))
	info := &grpc.UnaryServerInfo{FullMethod: "/grpc.health.v1.Health/Check"}
	called := false
	_, err := ic(context.Background(), nil, info, func(ctx context.Context, _ any) (any, error) {
		called = true
		if _, ok := SessionFromCtx(ctx); ok {
			t.Errorf("no session expected")
		}
		return nil, nil
	})
	if err != nil || !called {
		t.Fatalf("health must bypass sessions: %v", err)
	}
}

func TestSessionUnary_AttachesSession(t *testing.T) {
	t.Parallel()

	fi := &fakeIdentity{}
	ic := SessionUnary(NewAuthenticator(fi, authn.NewVerifier(signKey, nil), nil))
	info := &grpc.UnaryServerInfo{FullMethod: v1.FullMethod("Resolve")}

	ctx := metadata.NewIncomingContext(context.Background(), metadata.Pairs(v1.MDDeviceID, "devA"))
	ctx = peer.NewContext(ctx, &peer.Peer{Addr: fakeAddr{}})
	_, err := ic(ctx, nil, info, func(ctx context.Context, _ any) (any, error) {
		s, ok := SessionFromCtx(ctx)
		if !ok {
			t.Errorf("session missing")
			return nil, nil
		}
		if s.DeviceID() != "devA" || s.RemoteIP() != "203.0.113.7" || s.Authenticated() {
			t.Errorf("bad session: device=%q ip=%q", s.DeviceID(), s.RemoteIP())
		}
		return nil, nil
	})
	if err != nil {
		t.Fatalf("SessionUnary: %v", err)
	}
}
