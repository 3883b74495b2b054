// Package model defines domain entities used by services and repositories.
package model

import (
	"fmt"
	"time"

	"github.com/gofrs/uuid/v5"
)

// Ledger constants.
const (
	DefaultCredits         int64 = 10   // starting grant, also the reset value on key logout
	ReferralAward          int64 = 5    // credited to each side of a referral
	AdReward               int64 = 1    // credited per attested ad watch
	DefaultKeyCredits      int64 = 1000 // admin key generation default
	DefaultKeyValidityDays       = 30
)

// Identity is an authenticated user as reported by the identity provider.
type Identity struct {
	ID string // stable external user id (JWT subject)
}

// Account is the unit of credit ownership.
type Account struct {
	ID                   uuid.UUID
	DeviceID             string
	ExternalIdentityID   *string    // nil for guest accounts
	Credits              int64      // >= 0, enforced by the ledger
	ReferralCode         string     // unique, assigned at creation
	ReferredBy           *string    // write-once
	ActiveEntitlementID  *uuid.UUID // set together with EntitlementExpiresAt
	EntitlementExpiresAt *time.Time
	PendingReferralCode  *string // invite remembered before sign-in
	CreatedAt            time.Time
	UpdatedAt            time.Time
}

// Authenticated reports whether the account is linked to an identity.
func (a Account) Authenticated() bool {
	return a.ExternalIdentityID != nil && *a.ExternalIdentityID != ""
}

// HasActiveEntitlement reports whether a bound entitlement is still valid at now.
func (a Account) HasActiveEntitlement(now time.Time) bool {
	return a.ActiveEntitlementID != nil && a.EntitlementExpiresAt != nil && a.EntitlementExpiresAt.After(now)
}

// Clone returns a deep copy; pointer fields do not alias the receiver.
func (a Account) Clone() Account {
	c := a
	c.ExternalIdentityID = cloneStr(a.ExternalIdentityID)
	c.ReferredBy = cloneStr(a.ReferredBy)
	c.PendingReferralCode = cloneStr(a.PendingReferralCode)
	if a.ActiveEntitlementID != nil {
		id := *a.ActiveEntitlementID
		c.ActiveEntitlementID = &id
	}
	if a.EntitlementExpiresAt != nil {
		t := *a.EntitlementExpiresAt
		c.EntitlementExpiresAt = &t
	}
	return c
}

func cloneStr(s *string) *string {
	if s == nil {
		return nil
	}
	v := *s
	return &v
}

// Entitlement ("super key") is a single-use, time-boxed premium grant.
type Entitlement struct {
	ID             uuid.UUID
	Code           string
	CreditsGranted int64
	ValidityDays   int
	IsActive       bool    // admin kill switch
	IsUsed         bool    // redeemed by some account
	BoundDeviceID  *string // device currently holding the key
	UsedAt         *time.Time
	ExpiresAt      *time.Time
	CreatedAt      time.Time
}

// BoundTo reports whether the key is currently held by deviceID.
func (e Entitlement) BoundTo(deviceID string) bool {
	return e.IsUsed && e.BoundDeviceID != nil && *e.BoundDeviceID == deviceID
}

// ActivationParams is the state written when a key is redeemed.
type ActivationParams struct {
	EntitlementID uuid.UUID
	AccountID     uuid.UUID
	DeviceID      string
	UsedAt        time.Time
	ExpiresAt     time.Time
	Credits       int64
	// Replaces is the key the account pointed at before, if any.
	Replaces *uuid.UUID
}

// Activation describes a successful key redemption.
type Activation struct {
	Entitlement Entitlement
	ExpiresAt   time.Time
	Days        int  // whole days of validity left
	Resumed     bool // same device re-entered an already bound key
}

// Message is the confirmation shown to the user.
func (a Activation) Message() string {
	return fmt.Sprintf("Super Key Activated! Valid for %d days.", a.Days)
}

// ReferralAppliedMessage is the confirmation shown after a referral grant.
func ReferralAppliedMessage(award int64) string {
	return fmt.Sprintf("Code applied! You both got %d credits.", award)
}

// ReferralGrant is the state written when a referral code is applied.
type ReferralGrant struct {
	RefereeID uuid.UUID
	Referrer  Account
	Code      string
	Amount    int64
	Log       ReferralLog
}

// ReferralLog is an append-only audit row of a referral.
type ReferralLog struct {
	ID                 uuid.UUID
	ReferrerDeviceID   string
	ReferredDeviceID   string
	ReferrerExternalID *string
	ReferredExternalID *string
	CreditsAwarded     int64
	CreatedAt          time.Time
}

// AdWatchLog is an append-only audit row of a rewarded ad.
type AdWatchLog struct {
	ID            uuid.UUID
	DeviceID      string
	ExternalID    *string
	CreditsEarned int64
	CreatedAt     time.Time
}

// LeaderboardEntry is a referrer ranked by referral count.
type LeaderboardEntry struct {
	Rank          int
	ExternalID    string
	ReferralCount int64
}

// Invite is a remembered referral code and what is known about its owner.
type Invite struct {
	Code          string
	InviterID     string // external id of the referrer, empty for guests
	LoginRequired bool
}
