package service

import (
	"context"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/gofrs/uuid/v5"
	"github.com/jonboulle/clockwork"

	"github.com/and161185/lookup-credits/internal/errs"
	"github.com/and161185/lookup-credits/internal/limiter"
	"github.com/and161185/lookup-credits/internal/lookup"
	"github.com/and161185/lookup-credits/internal/model"
	"github.com/and161185/lookup-credits/internal/repository"
	"github.com/and161185/lookup-credits/internal/session"
)

// memStore mimics the conditional writes of the Postgres repositories.
type memStore struct {
	mu       sync.Mutex
	accounts map[uuid.UUID]*model.Account
	keys     map[uuid.UUID]*model.Entitlement
	refs     []model.ReferralLog
	ads      []model.AdWatchLog

	// fail makes the named method return the error once.
	fail  map[string]error
	calls map[string]int
}

func newMemStore() *memStore {
	return &memStore{
		accounts: map[uuid.UUID]*model.Account{},
		keys:     map[uuid.UUID]*model.Entitlement{},
		fail:     map[string]error{},
		calls:    map[string]int{},
	}
}

func (m *memStore) hit(method string) error {
	m.calls[method]++
	if err, ok := m.fail[method]; ok {
		delete(m.fail, method)
		return err
	}
	return nil
}

func (m *memStore) account(id uuid.UUID) model.Account {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.accounts[id].Clone()
}

func (m *memStore) key(id uuid.UUID) model.Entitlement {
	m.mu.Lock()
	defer m.mu.Unlock()
	return *m.keys[id]
}

func (m *memStore) put(a model.Account) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c := a.Clone()
	m.accounts[a.ID] = &c
}

func (m *memStore) putKey(e model.Entitlement) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c := e
	m.keys[e.ID] = &c
}

func (m *memStore) find(pred func(*model.Account) bool) (*model.Account, error) {
	for _, a := range m.accounts {
		if pred(a) {
			c := a.Clone()
			return &c, nil
		}
	}
	return nil, errs.ErrNotFound
}

type fakeAccounts struct{ *memStore }
type fakeKeys struct{ *memStore }
type fakeAudit struct{ *memStore }

var (
	_ repository.AccountRepository     = fakeAccounts{}
	_ repository.EntitlementRepository = fakeKeys{}
	_ repository.AuditRepository       = fakeAudit{}
)

func (f fakeAccounts) GetByID(_ context.Context, id uuid.UUID) (*model.Account, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.hit("GetByID"); err != nil {
		return nil, err
	}
	return f.find(func(a *model.Account) bool { return a.ID == id })
}

func (f fakeAccounts) GetByExternalID(_ context.Context, ext string) (*model.Account, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.hit("GetByExternalID"); err != nil {
		return nil, err
	}
	return f.find(func(a *model.Account) bool { return a.ExternalIdentityID != nil && *a.ExternalIdentityID == ext })
}

func (f fakeAccounts) GetGuestByDevice(_ context.Context, deviceID string) (*model.Account, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.hit("GetGuestByDevice"); err != nil {
		return nil, err
	}
	return f.find(func(a *model.Account) bool { return a.ExternalIdentityID == nil && a.DeviceID == deviceID })
}

func (f fakeAccounts) GetByReferralCode(_ context.Context, code string) (*model.Account, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.hit("GetByReferralCode"); err != nil {
		return nil, err
	}
	return f.find(func(a *model.Account) bool { return a.ReferralCode == code })
}

func (f fakeAccounts) Create(_ context.Context, a *model.Account) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.hit("Create"); err != nil {
		return err
	}
	for _, o := range f.accounts {
		if o.ReferralCode == a.ReferralCode ||
			(a.ExternalIdentityID != nil && o.ExternalIdentityID != nil && *o.ExternalIdentityID == *a.ExternalIdentityID) ||
			(a.ExternalIdentityID == nil && o.ExternalIdentityID == nil && o.DeviceID == a.DeviceID) {
			return errs.ErrAlreadyExists
		}
	}
	c := a.Clone()
	f.accounts[a.ID] = &c
	return nil
}

func (f fakeAccounts) LinkIdentity(_ context.Context, id uuid.UUID, ext string) (*model.Account, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.hit("LinkIdentity"); err != nil {
		return nil, err
	}
	a, ok := f.accounts[id]
	if !ok || a.ExternalIdentityID != nil {
		return nil, errs.ErrVersionConflict
	}
	a.ExternalIdentityID = &ext
	c := a.Clone()
	return &c, nil
}

func (f fakeAccounts) Debit(_ context.Context, id uuid.UUID, n int64) (*model.Account, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.hit("Debit"); err != nil {
		return nil, err
	}
	a, ok := f.accounts[id]
	if !ok || a.Credits < n {
		return nil, errs.ErrInsufficientCredits
	}
	a.Credits -= n
	c := a.Clone()
	return &c, nil
}

func (f fakeAccounts) Credit(_ context.Context, id uuid.UUID, n int64) (*model.Account, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.hit("Credit"); err != nil {
		return nil, err
	}
	a, ok := f.accounts[id]
	if !ok {
		return nil, errs.ErrNotFound
	}
	a.Credits += n
	c := a.Clone()
	return &c, nil
}

func (f fakeAccounts) SetPendingReferral(_ context.Context, id uuid.UUID, code *string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.hit("SetPendingReferral"); err != nil {
		return err
	}
	a, ok := f.accounts[id]
	if !ok {
		return errs.ErrNotFound
	}
	if code == nil {
		a.PendingReferralCode = nil
	} else {
		v := *code
		a.PendingReferralCode = &v
	}
	return nil
}

func (f fakeKeys) GetByID(_ context.Context, id uuid.UUID) (*model.Entitlement, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.hit("Key.GetByID"); err != nil {
		return nil, err
	}
	e, ok := f.keys[id]
	if !ok {
		return nil, errs.ErrNotFound
	}
	c := *e
	return &c, nil
}

func (f fakeKeys) GetByCode(_ context.Context, code string) (*model.Entitlement, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.hit("GetByCode"); err != nil {
		return nil, err
	}
	for _, e := range f.keys {
		if e.Code == code {
			c := *e
			return &c, nil
		}
	}
	return nil, errs.ErrNotFound
}

func (f fakeKeys) Create(_ context.Context, e *model.Entitlement) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.hit("Key.Create"); err != nil {
		return err
	}
	for _, o := range f.keys {
		if o.Code == e.Code {
			return errs.ErrAlreadyExists
		}
	}
	c := *e
	f.keys[e.ID] = &c
	return nil
}

func (f fakeKeys) SetActive(_ context.Context, id uuid.UUID, active bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	e, ok := f.keys[id]
	if !ok {
		return errs.ErrNotFound
	}
	e.IsActive = active
	return nil
}

func (f fakeKeys) Delete(_ context.Context, id uuid.UUID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.keys[id]; !ok {
		return errs.ErrNotFound
	}
	delete(f.keys, id)
	return nil
}

func (f fakeKeys) List(context.Context) ([]model.Entitlement, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]model.Entitlement, 0, len(f.keys))
	for _, e := range f.keys {
		out = append(out, *e)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Code < out[j].Code })
	return out, nil
}

func (f fakeKeys) Activate(_ context.Context, p model.ActivationParams) (*model.Account, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.hit("Activate"); err != nil {
		return nil, err
	}
	e, ok := f.keys[p.EntitlementID]
	if !ok || !e.IsActive || e.IsUsed {
		return nil, errs.ErrVersionConflict
	}
	if _, ok := f.accounts[p.AccountID]; !ok {
		return nil, errs.ErrNotFound
	}
	dev, used, exp := p.DeviceID, p.UsedAt, p.ExpiresAt
	e.IsUsed, e.BoundDeviceID, e.UsedAt, e.ExpiresAt = true, &dev, &used, &exp
	return f.grant(p)
}

func (f fakeKeys) Rearm(_ context.Context, p model.ActivationParams) (*model.Account, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.hit("Rearm"); err != nil {
		return nil, err
	}
	e, ok := f.keys[p.EntitlementID]
	if !ok || !e.IsActive || !e.BoundTo(p.DeviceID) {
		return nil, errs.ErrVersionConflict
	}
	if _, ok := f.accounts[p.AccountID]; !ok {
		return nil, errs.ErrNotFound
	}
	used, exp := p.UsedAt, p.ExpiresAt
	e.UsedAt, e.ExpiresAt = &used, &exp
	p.Credits = 0
	return f.grant(p)
}

func (f fakeKeys) Attach(_ context.Context, p model.ActivationParams) (*model.Account, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.hit("Attach"); err != nil {
		return nil, err
	}
	if _, ok := f.accounts[p.AccountID]; !ok {
		return nil, errs.ErrNotFound
	}
	p.Credits = 0
	return f.grant(p)
}

// grant mirrors grantSQL plus the freeing of the replaced key. Caller holds mu.
func (f fakeKeys) grant(p model.ActivationParams) (*model.Account, error) {
	a := f.accounts[p.AccountID]
	keyID, exp := p.EntitlementID, p.ExpiresAt
	a.Credits += p.Credits
	a.ActiveEntitlementID, a.EntitlementExpiresAt = &keyID, &exp
	if p.Replaces != nil && *p.Replaces != keyID {
		f.free(*p.Replaces)
	}
	c := a.Clone()
	return &c, nil
}

// free mirrors freeKeySQL. Caller holds mu.
func (f fakeKeys) free(id uuid.UUID) {
	e, ok := f.keys[id]
	if !ok || !e.IsUsed {
		return
	}
	for _, a := range f.accounts {
		if a.ActiveEntitlementID != nil && *a.ActiveEntitlementID == id {
			return
		}
	}
	e.IsUsed, e.BoundDeviceID, e.UsedAt, e.ExpiresAt = false, nil, nil, nil
}

func (f fakeKeys) Release(_ context.Context, accountID, entitlementID uuid.UUID, reset int64) (*model.Account, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.hit("Release"); err != nil {
		return nil, err
	}
	a, ok := f.accounts[accountID]
	if !ok || a.ActiveEntitlementID == nil || *a.ActiveEntitlementID != entitlementID {
		return nil, errs.ErrVersionConflict
	}
	a.Credits, a.ActiveEntitlementID, a.EntitlementExpiresAt = reset, nil, nil
	f.free(entitlementID)
	c := a.Clone()
	return &c, nil
}

func (f fakeAudit) ApplyReferral(_ context.Context, g model.ReferralGrant) (*model.Account, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.hit("ApplyReferral"); err != nil {
		return nil, err
	}
	referee, ok := f.accounts[g.RefereeID]
	if !ok || referee.ReferredBy != nil {
		return nil, errs.ErrVersionConflict
	}
	referrer, ok := f.accounts[g.Referrer.ID]
	if !ok {
		return nil, errs.ErrNotFound
	}
	code := g.Code
	referee.ReferredBy = &code
	referee.Credits += g.Amount
	referee.PendingReferralCode = nil
	referrer.Credits += g.Amount
	f.refs = append(f.refs, g.Log)
	c := referee.Clone()
	return &c, nil
}

func (f fakeAudit) RecordAdWatch(_ context.Context, l model.AdWatchLog) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.hit("RecordAdWatch"); err != nil {
		return err
	}
	f.ads = append(f.ads, l)
	return nil
}

func (f fakeAudit) ReferralsBy(_ context.Context, ext string) ([]model.ReferralLog, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []model.ReferralLog
	for _, l := range f.refs {
		if l.ReferrerExternalID != nil && *l.ReferrerExternalID == ext {
			out = append(out, l)
		}
	}
	return out, nil
}

func (f fakeAudit) Leaderboard(_ context.Context, limit int) ([]model.LeaderboardEntry, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls["Leaderboard"] = limit
	return nil, nil
}

type fakeLimiter struct {
	allowOK  bool
	allowErr error

	failBlocked bool
	failErr     error

	successErr error

	allowCalls   int
	failureCalls int
	successCalls int
}

var _ limiter.Limiter = (*fakeLimiter)(nil)

func (l *fakeLimiter) Allow(context.Context, string, []byte) (bool, time.Duration, error) {
	l.allowCalls++
	return l.allowOK, 0, l.allowErr
}
func (l *fakeLimiter) Success(context.Context, string, []byte) error {
	l.successCalls++
	return l.successErr
}
func (l *fakeLimiter) Failure(context.Context, string, []byte) (bool, time.Duration, error) {
	l.failureCalls++
	return l.failBlocked, 0, l.failErr
}

type fakeSearcher struct {
	res   lookup.Result
	err   error
	calls int
	last  string
}

var _ Searcher = (*fakeSearcher)(nil)

func (f *fakeSearcher) Search(_ context.Context, q string) (lookup.Result, error) {
	f.calls++
	f.last = q
	return f.res, f.err
}

var t0 = time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)

func newAccount(deviceID, ext, code string, credits int64) model.Account {
	a := model.Account{
		ID:           uuid.Must(uuid.NewV4()),
		DeviceID:     deviceID,
		Credits:      credits,
		ReferralCode: code,
	}
	if ext != "" {
		a.ExternalIdentityID = &ext
	}
	return a
}

func newKey(code string) model.Entitlement {
	return model.Entitlement{
		ID:             uuid.Must(uuid.NewV4()),
		Code:           code,
		CreditsGranted: model.DefaultKeyCredits,
		ValidityDays:   model.DefaultKeyValidityDays,
		IsActive:       true,
	}
}

// sessionFor stores acc and opens a session on it.
func sessionFor(t *testing.T, m *memStore, acc model.Account) *session.AccountSession {
	t.Helper()
	m.put(acc)
	var id *model.Identity
	if acc.ExternalIdentityID != nil {
		id = &model.Identity{ID: *acc.ExternalIdentityID}
	}
	return session.New(acc, acc.DeviceID, id)
}

func fakeClock() *clockwork.FakeClock { return clockwork.NewFakeClockAt(t0) }

func sampleResult(n int) lookup.Result {
	name := "Ali Khan"
	recs := make([]lookup.Record, n)
	for i := range recs {
		recs[i] = lookup.Record{Fields: []lookup.Field{{Name: lookup.FieldFullName, Value: &name}}}
	}
	return lookup.Result{Records: recs, Count: n}
}
