package ledgerv1

import "time"

// Empty is the response of calls that return nothing.
type Empty struct{}

// Account is the caller's view of their account.
type Account struct {
	ID                   string     `json:"id"`
	DeviceID             string     `json:"device_id"`
	ExternalID           string     `json:"external_id,omitempty"`
	Credits              int64      `json:"credits"`
	ReferralCode         string     `json:"referral_code"`
	ReferredBy           string     `json:"referred_by,omitempty"`
	EntitlementActive    bool       `json:"entitlement_active"`
	EntitlementExpiresAt *time.Time `json:"entitlement_expires_at,omitempty"`
	PendingReferralCode  string     `json:"pending_referral_code,omitempty"`
	InviteURL            string     `json:"invite_url,omitempty"`
}

type ResolveRequest struct{}

type ResolveResponse struct {
	Account Account `json:"account"`
}

// Field is one named value of a lookup record; Value is nil for null.
type Field struct {
	Name  string  `json:"name"`
	Value *string `json:"value"`
}

type Record struct {
	Fields []Field `json:"fields"`
}

type SearchRequest struct {
	Query string `json:"query"`
}

type SearchResponse struct {
	Query   string   `json:"query"`
	Kind    string   `json:"kind"`
	Count   int      `json:"count"`
	Records []Record `json:"records"`
	Charged bool     `json:"charged"`
	Account Account  `json:"account"`
}

type WatchAdRequest struct{}

type WatchAdResponse struct {
	Credited int64   `json:"credited"`
	Account  Account `json:"account"`
}

type ApplyReferralRequest struct {
	Code string `json:"code"`
}

type ApplyReferralResponse struct {
	Awarded int64   `json:"awarded"`
	Message string  `json:"message"`
	Account Account `json:"account"`
}

type RememberReferralRequest struct {
	Code string `json:"code"`
}

type PendingReferralRequest struct{}

// Invite is a remembered referral code.
type Invite struct {
	Code          string `json:"code"`
	InviterID     string `json:"inviter_id,omitempty"`
	LoginRequired bool   `json:"login_required"`
}

type PendingReferralResponse struct {
	Invite *Invite `json:"invite,omitempty"`
}

type DeclineReferralRequest struct{}

type ListReferralsRequest struct{}

// Referral is one account the caller referred.
type Referral struct {
	ReferredExternalID string    `json:"referred_external_id,omitempty"`
	ReferredDeviceID   string    `json:"referred_device_id"`
	CreditsAwarded     int64     `json:"credits_awarded"`
	CreatedAt          time.Time `json:"created_at"`
}

type ListReferralsResponse struct {
	Referrals []Referral `json:"referrals"`
}

type LeaderboardRequest struct {
	Limit int `json:"limit,omitempty"`
}

type LeaderboardEntry struct {
	Rank          int    `json:"rank"`
	ExternalID    string `json:"external_id"`
	ReferralCount int64  `json:"referral_count"`
}

type LeaderboardResponse struct {
	Entries []LeaderboardEntry `json:"entries"`
}

type ActivateKeyRequest struct {
	Code string `json:"code"`
}

type ActivateKeyResponse struct {
	Message   string    `json:"message"`
	Days      int       `json:"days"`
	ExpiresAt time.Time `json:"expires_at"`
	Resumed   bool      `json:"resumed"`
	Account   Account   `json:"account"`
}

type LogoutKeyRequest struct{}

type LogoutKeyResponse struct {
	Account Account `json:"account"`
}

// Key is the admin view of a super key.
type Key struct {
	ID             string     `json:"id"`
	Code           string     `json:"code"`
	CreditsGranted int64      `json:"credits_granted"`
	ValidityDays   int        `json:"validity_days"`
	IsActive       bool       `json:"is_active"`
	IsUsed         bool       `json:"is_used"`
	BoundDeviceID  string     `json:"bound_device_id,omitempty"`
	UsedAt         *time.Time `json:"used_at,omitempty"`
	ExpiresAt      *time.Time `json:"expires_at,omitempty"`
	CreatedAt      time.Time  `json:"created_at"`
}

type GenerateKeyRequest struct {
	Credits      int64 `json:"credits,omitempty"`
	ValidityDays int   `json:"validity_days,omitempty"`
}

type GenerateKeyResponse struct {
	Key Key `json:"key"`
}

type SetKeyActiveRequest struct {
	ID     string `json:"id"`
	Active bool   `json:"active"`
}

type DeleteKeyRequest struct {
	ID string `json:"id"`
}

type ListKeysRequest struct{}

type ListKeysResponse struct {
	Keys []Key `json:"keys"`
}
