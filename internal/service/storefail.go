package service

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/and161185/lookup-credits/internal/errs"
)

// storeFailure logs an unexpected store error and wraps it in ErrStoreWriteFailed.
// Cancellation and deadlines pass through unchanged.
func storeFailure(log *zap.Logger, msg string, err error, fields ...zap.Field) error {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	log.Error(msg, append(fields, zap.Error(err))...)
	return fmt.Errorf("%w: %w", errs.ErrStoreWriteFailed, err)
}
