// Package convert maps domain values to ledger.v1 wire messages.
package convert

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	u "github.com/gofrs/uuid/v5"

	"github.com/and161185/lookup-credits/internal/errs"
	"github.com/and161185/lookup-credits/internal/lookup"
	"github.com/and161185/lookup-credits/internal/model"
	v1 "github.com/and161185/lookup-credits/internal/rpc/ledgerv1"
	"github.com/and161185/lookup-credits/internal/service"
)

func str(p *string) string {
	if p == nil {
		return ""
	}
	return *p
}

func tsp(t *time.Time) *time.Time {
	if t == nil || t.IsZero() {
		return nil
	}
	v := t.UTC()
	return &v
}

// --- accounts ---

// ToWireAccount converts an account; now decides whether the entitlement is live.
func ToWireAccount(a model.Account, now time.Time) v1.Account {
	return v1.Account{
		ID:                   a.ID.String(),
		DeviceID:             a.DeviceID,
		ExternalID:           str(a.ExternalIdentityID),
		Credits:              a.Credits,
		ReferralCode:         a.ReferralCode,
		ReferredBy:           str(a.ReferredBy),
		EntitlementActive:    a.HasActiveEntitlement(now),
		EntitlementExpiresAt: tsp(a.EntitlementExpiresAt),
		PendingReferralCode:  str(a.PendingReferralCode),
	}
}

// InviteURL builds the share link for a referral code: base + "/?ref=" + code.
// An empty base or code yields "".
func InviteURL(base, code string) string {
	if base == "" || code == "" {
		return ""
	}
	link, err := url.Parse(strings.TrimRight(base, "/"))
	if err != nil {
		return ""
	}
	link.Path += "/"
	link.RawQuery = url.Values{"ref": {code}}.Encode()
	return link.String()
}

// --- lookups ---

// ToWireRecords keeps field order and nulls.
func ToWireRecords(in []lookup.Record) []v1.Record {
	out := make([]v1.Record, 0, len(in))
	for _, r := range in {
		fs := make([]v1.Field, 0, len(r.Fields))
		for _, f := range r.Fields {
			fs = append(fs, v1.Field{Name: f.Name, Value: f.Value})
		}
		out = append(out, v1.Record{Fields: fs})
	}
	return out
}

// FromWireRecords is the inverse of ToWireRecords.
func FromWireRecords(in []v1.Record) []lookup.Record {
	out := make([]lookup.Record, 0, len(in))
	for _, r := range in {
		fs := make([]lookup.Field, 0, len(r.Fields))
		for _, f := range r.Fields {
			fs = append(fs, lookup.Field{Name: f.Name, Value: f.Value})
		}
		out = append(out, lookup.Record{Fields: fs})
	}
	return out
}

// ToWireSearch converts a completed lookup.
func ToWireSearch(o service.SearchOutcome, acc v1.Account) *v1.SearchResponse {
	return &v1.SearchResponse{
		Query:   o.Query,
		Kind:    string(o.Kind),
		Count:   o.Result.Count,
		Records: ToWireRecords(o.Result.Records),
		Charged: o.Charged,
		Account: acc,
	}
}

// --- referrals ---

func ToWireInvite(in *model.Invite) *v1.Invite {
	if in == nil {
		return nil
	}
	return &v1.Invite{Code: in.Code, InviterID: in.InviterID, LoginRequired: in.LoginRequired}
}

func ToWireReferrals(in []model.ReferralLog) []v1.Referral {
	out := make([]v1.Referral, 0, len(in))
	for _, l := range in {
		out = append(out, v1.Referral{
			ReferredExternalID: str(l.ReferredExternalID),
			ReferredDeviceID:   l.ReferredDeviceID,
			CreditsAwarded:     l.CreditsAwarded,
			CreatedAt:          l.CreatedAt.UTC(),
		})
	}
	return out
}

func ToWireLeaderboard(in []model.LeaderboardEntry) []v1.LeaderboardEntry {
	out := make([]v1.LeaderboardEntry, 0, len(in))
	for _, e := range in {
		out = append(out, v1.LeaderboardEntry{Rank: e.Rank, ExternalID: e.ExternalID, ReferralCount: e.ReferralCount})
	}
	return out
}

// --- keys ---

func ToWireKey(e model.Entitlement) v1.Key {
	return v1.Key{
		ID:             e.ID.String(),
		Code:           e.Code,
		CreditsGranted: e.CreditsGranted,
		ValidityDays:   e.ValidityDays,
		IsActive:       e.IsActive,
		IsUsed:         e.IsUsed,
		BoundDeviceID:  str(e.BoundDeviceID),
		UsedAt:         tsp(e.UsedAt),
		ExpiresAt:      tsp(e.ExpiresAt),
		CreatedAt:      e.CreatedAt.UTC(),
	}
}

func ToWireKeys(in []model.Entitlement) []v1.Key {
	out := make([]v1.Key, 0, len(in))
	for _, e := range in {
		out = append(out, ToWireKey(e))
	}
	return out
}

// FromWireID parses an id sent by a client.
func FromWireID(s string) (u.UUID, error) {
	var id u.UUID
	if err := id.UnmarshalText([]byte(s)); err != nil {
		return u.Nil, fmt.Errorf("%w: invalid id: %w", errs.ErrInvalidArgument, err)
	}
	return id, nil
}
