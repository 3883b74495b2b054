package grpcserver

import (
	"context"
	"errors"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/and161185/lookup-credits/internal/errs"
)

var kindCodes = map[string]codes.Code{
	"not_authenticated":      codes.Unauthenticated,
	"unauthorized":           codes.Unauthenticated,
	"forbidden":              codes.PermissionDenied,
	"insufficient_credits":   codes.FailedPrecondition,
	"already_used":           codes.FailedPrecondition,
	"already_used_elsewhere": codes.FailedPrecondition,
	"self_referral":          codes.FailedPrecondition,
	"blocked":                codes.FailedPrecondition,
	"invalid_code":           codes.NotFound,
	"no_records":             codes.NotFound,
	"not_found":              codes.NotFound,
	"rate_limited":           codes.ResourceExhausted,
	"lookup_failed":          codes.Unavailable,
	"invalid_argument":       codes.InvalidArgument,
	"invalid_query":          codes.InvalidArgument,
	"conflict":               codes.Aborted,
	"already_exists":         codes.AlreadyExists,
	"store_write_failed":     codes.Internal,
}

// ToStatus maps a domain error to a gRPC status carrying the user-facing
// message. Status errors pass through unchanged.
func ToStatus(err error) error {
	if err == nil {
		return nil
	}
	if _, ok := status.FromError(err); ok {
		return err
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return status.FromContextError(err).Err()
	}
	code, ok := kindCodes[errs.Kind(err)]
	if !ok {
		code = codes.Internal
	}
	return status.Error(code, errs.Message(err))
}
