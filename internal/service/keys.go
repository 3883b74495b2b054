package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/gofrs/uuid/v5"
	"github.com/sethvargo/go-retry"
	"go.uber.org/zap"

	"github.com/and161185/lookup-credits/internal/errs"
	"github.com/and161185/lookup-credits/internal/model"
	"github.com/and161185/lookup-credits/internal/repository"
)

const maxKeyValidityDays = 3650

// KeyService is the admin surface over super keys.
type KeyService interface {
	// Generate creates an active, unused key. Zero values pick the defaults.
	Generate(ctx context.Context, credits int64, days int) (*model.Entitlement, error)
	SetActive(ctx context.Context, id uuid.UUID, active bool) error
	Delete(ctx context.Context, id uuid.UUID) error
	List(ctx context.Context) ([]model.Entitlement, error)
}

type KeyServiceImpl struct {
	keys repository.EntitlementRepository
	log  *zap.Logger
}

func NewKeyService(keys repository.EntitlementRepository, log *zap.Logger) *KeyServiceImpl {
	if log == nil {
		log = zap.NewNop()
	}
	return &KeyServiceImpl{keys: keys, log: log}
}

func (k *KeyServiceImpl) Generate(ctx context.Context, credits int64, days int) (*model.Entitlement, error) {
	if credits == 0 {
		credits = model.DefaultKeyCredits
	}
	if days == 0 {
		days = model.DefaultKeyValidityDays
	}
	if credits < 0 {
		return nil, fmt.Errorf("%w: credits must be positive", errs.ErrInvalidArgument)
	}
	if days < 0 || days > maxKeyValidityDays {
		return nil, fmt.Errorf("%w: validity days out of range", errs.ErrInvalidArgument)
	}

	var out *model.Entitlement
	backoff := retry.WithMaxRetries(3, retry.NewConstant(5*time.Millisecond))
	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		id, err := uuid.NewV4()
		if err != nil {
			return err
		}
		code, err := newKeyCode()
		if err != nil {
			return err
		}
		e := &model.Entitlement{
			ID:             id,
			Code:           code,
			CreditsGranted: credits,
			ValidityDays:   days,
			IsActive:       true,
		}
		if err := k.keys.Create(ctx, e); err != nil {
			if errors.Is(err, errs.ErrAlreadyExists) {
				return retry.RetryableError(err)
			}
			return err
		}
		out = e
		return nil
	})
	if err != nil {
		return nil, storeFailure(k.log, "generate key failed", err)
	}
	k.log.Info("super key generated", zap.String("key_id", out.ID.String()), zap.Int64("credits", credits))
	return out, nil
}

func (k *KeyServiceImpl) SetActive(ctx context.Context, id uuid.UUID, active bool) error {
	if err := k.keys.SetActive(ctx, id, active); err != nil {
		return k.fail("toggle key failed", id, err)
	}
	k.log.Info("super key toggled", zap.String("key_id", id.String()), zap.Bool("active", active))
	return nil
}

func (k *KeyServiceImpl) Delete(ctx context.Context, id uuid.UUID) error {
	if err := k.keys.Delete(ctx, id); err != nil {
		return k.fail("delete key failed", id, err)
	}
	return nil
}

func (k *KeyServiceImpl) List(ctx context.Context) ([]model.Entitlement, error) {
	keys, err := k.keys.List(ctx)
	if err != nil {
		return nil, storeFailure(k.log, "list keys failed", err)
	}
	return keys, nil
}

func (k *KeyServiceImpl) fail(msg string, id uuid.UUID, err error) error {
	if errors.Is(err, errs.ErrNotFound) {
		return err
	}
	return storeFailure(k.log, msg, err, zap.String("key_id", id.String()))
}
