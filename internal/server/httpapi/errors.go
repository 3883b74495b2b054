package httpapi

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/and161185/lookup-credits/internal/errs"
)

type errorBody struct {
	Error errorDetail `json:"error"`
}

type errorDetail struct {
	Kind    string `json:"kind"`
	Message string `json:"message"`
}

var kindStatus = map[string]int{
	"not_authenticated":      http.StatusUnauthorized,
	"unauthorized":           http.StatusUnauthorized,
	"forbidden":              http.StatusForbidden,
	"insufficient_credits":   http.StatusPaymentRequired,
	"already_used":           http.StatusConflict,
	"already_used_elsewhere": http.StatusConflict,
	"self_referral":          http.StatusUnprocessableEntity,
	"blocked":                http.StatusForbidden,
	"invalid_code":           http.StatusNotFound,
	"no_records":             http.StatusNotFound,
	"not_found":              http.StatusNotFound,
	"rate_limited":           http.StatusTooManyRequests,
	"lookup_failed":          http.StatusBadGateway,
	"invalid_argument":       http.StatusBadRequest,
	"invalid_query":          http.StatusBadRequest,
	"conflict":               http.StatusConflict,
	"already_exists":         http.StatusConflict,
	"store_write_failed":     http.StatusInternalServerError,
}

var codeStatus = map[codes.Code]int{
	codes.InvalidArgument:    http.StatusBadRequest,
	codes.Unauthenticated:    http.StatusUnauthorized,
	codes.PermissionDenied:   http.StatusForbidden,
	codes.NotFound:           http.StatusNotFound,
	codes.Unimplemented:      http.StatusNotImplemented,
	codes.DeadlineExceeded:   http.StatusGatewayTimeout,
	codes.Canceled:           499,
	codes.ResourceExhausted:  http.StatusTooManyRequests,
	codes.FailedPrecondition: http.StatusConflict,
}

// describe maps err to an HTTP status and the JSON error body.
func describe(err error) (int, errorBody) {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		st := status.FromContextError(err)
		return codeStatus[st.Code()], errorBody{errorDetail{Kind: "canceled", Message: st.Message()}}
	}
	if st, ok := status.FromError(err); ok {
		code, known := codeStatus[st.Code()]
		if !known {
			code = http.StatusInternalServerError
		}
		kind := strings.ToLower(st.Code().String())
		return code, errorBody{errorDetail{Kind: kind, Message: st.Message()}}
	}
	kind := errs.Kind(err)
	code, ok := kindStatus[kind]
	if !ok {
		code = http.StatusInternalServerError
	}
	return code, errorBody{errorDetail{Kind: kind, Message: errs.Message(err)}}
}
