package grpcserver

import (
	"context"
	"sync"
	"time"

	"github.com/gofrs/uuid/v5"

	"github.com/and161185/lookup-credits/internal/model"
	"github.com/and161185/lookup-credits/internal/service"
	"github.com/and161185/lookup-credits/internal/session"
)

var (
	signKey = []byte("test-secret")
	t0      = time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)
)

type fakeIdentity struct {
	mu       sync.Mutex
	devices  []string
	identity *model.Identity
	err      error
}

func (f *fakeIdentity) Resolve(_ context.Context, deviceID string, id *model.Identity) (*session.AccountSession, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	f.devices = append(f.devices, deviceID)
	f.identity = id
	acc := model.Account{
		ID:           uuid.Must(uuid.NewV4()),
		DeviceID:     deviceID,
		Credits:      10,
		ReferralCode: "AB12CD34",
	}
	if id != nil {
		ext := id.ID
		acc.ExternalIdentityID = &ext
	}
	return session.New(acc, deviceID, id), nil
}

type fakeLookup struct {
	out service.SearchOutcome
	err error
}

func (f *fakeLookup) Search(_ context.Context, _ *session.AccountSession, raw string) (service.SearchOutcome, error) {
	if f.err != nil {
		return service.SearchOutcome{}, f.err
	}
	out := f.out
	out.Query = raw
	return out, nil
}

type fakeRewards struct{ err error }

func (f *fakeRewards) WatchAd(_ context.Context, s *session.AccountSession) error {
	if f.err != nil {
		return f.err
	}
	acc := s.Account()
	acc.Credits += model.AdReward
	s.Replace(acc)
	return nil
}

type fakeReferrals struct {
	err     error
	invite  *model.Invite
	limit   int
	applied string
}

func (f *fakeReferrals) Apply(_ context.Context, _ *session.AccountSession, code string) (int64, error) {
	if f.err != nil {
		return 0, f.err
	}
	f.applied = code
	return model.ReferralAward, nil
}
func (f *fakeReferrals) Remember(context.Context, *session.AccountSession, string) error {
	return f.err
}
func (f *fakeReferrals) Pending(context.Context, *session.AccountSession) (*model.Invite, error) {
	return f.invite, f.err
}
func (f *fakeReferrals) Decline(context.Context, *session.AccountSession) error { return f.err }
func (f *fakeReferrals) Referrals(context.Context, *session.AccountSession) ([]model.ReferralLog, error) {
	return []model.ReferralLog{{ReferredDeviceID: "devB", CreditsAwarded: model.ReferralAward, CreatedAt: t0}}, f.err
}
func (f *fakeReferrals) Leaderboard(_ context.Context, limit int) ([]model.LeaderboardEntry, error) {
	f.limit = limit
	return []model.LeaderboardEntry{{Rank: 1, ExternalID: "user_a", ReferralCount: 3}}, f.err
}

type fakeEntitlements struct{ err error }

func (f *fakeEntitlements) Activate(context.Context, *session.AccountSession, string) (model.Activation, error) {
	if f.err != nil {
		return model.Activation{}, f.err
	}
	return model.Activation{ExpiresAt: t0.Add(30 * 24 * time.Hour), Days: 30}, nil
}
func (f *fakeEntitlements) Deactivate(context.Context, *session.AccountSession) error { return f.err }

type fakeKeys struct {
	keys map[uuid.UUID]model.Entitlement
}

func (f *fakeKeys) Generate(_ context.Context, credits int64, days int) (*model.Entitlement, error) {
	k := model.Entitlement{
		ID: uuid.Must(uuid.NewV4()), Code: "SK-ABCDEFGH-IJKL",
		CreditsGranted: credits, ValidityDays: days, IsActive: true, CreatedAt: t0,
	}
	f.keys[k.ID] = k
	return &k, nil
}
func (f *fakeKeys) SetActive(_ context.Context, id uuid.UUID, active bool) error {
	k, ok := f.keys[id]
	if !ok {
		return errNotFoundForTest
	}
	k.IsActive = active
	f.keys[id] = k
	return nil
}
func (f *fakeKeys) Delete(_ context.Context, id uuid.UUID) error {
	if _, ok := f.keys[id]; !ok {
		return errNotFoundForTest
	}
	delete(f.keys, id)
	return nil
}
func (f *fakeKeys) List(context.Context) ([]model.Entitlement, error) {
	out := make([]model.Entitlement, 0, len(f.keys))
	for _, k := range f.keys {
		out = append(out, k)
	}
	return out, nil
}
