package grpcserver

import (
	"context"
	"runtime/debug"
	"strings"
	"time"

	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/peer"
	"google.golang.org/grpc/status"

	"github.com/and161185/lookup-credits/internal/errs"
	v1 "github.com/and161185/lookup-credits/internal/rpc/ledgerv1"
)

func remoteAddr(ctx context.Context) string {
	if p, ok := peer.FromContext(ctx); ok && p.Addr != nil {
		return p.Addr.String()
	}
	return ""
}

// LoggingUnary returns a unary server interceptor for structured logging.
func LoggingUnary(log *zap.Logger) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, next grpc.UnaryHandler) (any, error) {
		start := time.Now()
		resp, err := next(ctx, req)
		code := status.Code(err)

		// metadata only, never payloads
		fields := []zap.Field{
			zap.String("method", info.FullMethod),
			zap.String("code", code.String()),
			zap.Duration("dur", time.Since(start)),
			zap.String("peer", remoteAddr(ctx)),
		}
		if code == codes.Internal || code == codes.Unknown {
			log.Warn("grpc", append(fields, zap.Error(err))...)
		} else {
			log.Info("grpc", fields...)
		}
		return resp, err
	}
}

// RecoverUnary returns a unary server interceptor that recovers from panics.
func RecoverUnary(log *zap.Logger) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, next grpc.UnaryHandler) (resp any, err error) {
		defer func() {
			if r := recover(); r != nil {
				log.Error("panic",
					zap.Any("reason", r),
					zap.ByteString("stack", debug.Stack()),
					zap.String("method", info.FullMethod),
				)
				err = status.Error(codes.Internal, "internal")
			}
		}()
		return next(ctx, req)
	}
}

// ErrorsUnary converts domain errors to statuses and reports the error kind
// in the x-error-kind trailer.
func ErrorsUnary() grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, next grpc.UnaryHandler) (any, error) {
		resp, err := next(ctx, req)
		if err == nil {
			return resp, nil
		}
		if _, isStatus := status.FromError(err); !isStatus {
			_ = grpc.SetTrailer(ctx, metadata.Pairs(v1.MDErrorKind, errs.Kind(err)))
		}
		return nil, ToStatus(err)
	}
}

// SessionUnary resolves the caller for ledger methods: an admin identity for
// admin methods, an account session for everything else.
func SessionUnary(auth *Authenticator) grpc.UnaryServerInterceptor {
	prefix := "/" + v1.ServiceName + "/"
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, next grpc.UnaryHandler) (any, error) {
		if !strings.HasPrefix(info.FullMethod, prefix) {
			return next(ctx, req)
		}
		md, _ := metadata.FromIncomingContext(ctx)
		authz := md.Get("authorization")

		if v1.AdminMethods[info.FullMethod] {
			id, err := auth.Admin(authz)
			if err != nil {
				return nil, err
			}
			return next(WithIdentity(ctx, id), req)
		}

		var deviceID string
		if vals := md.Get(v1.MDDeviceID); len(vals) > 0 {
			deviceID = vals[0]
		}
		s, err := auth.Session(ctx, deviceID, authz, remoteAddr(ctx))
		if err != nil {
			return nil, err
		}
		return next(WithSession(ctx, s), req)
	}
}
