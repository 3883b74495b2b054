// Package grpcserver exposes the credit ledger over gRPC.
package grpcserver

import (
	"context"

	"github.com/jonboulle/clockwork"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/and161185/lookup-credits/internal/convert"
	"github.com/and161185/lookup-credits/internal/model"
	v1 "github.com/and161185/lookup-credits/internal/rpc/ledgerv1"
	"github.com/and161185/lookup-credits/internal/service"
	"github.com/and161185/lookup-credits/internal/session"
)

// Services bundles the engines behind the API.
type Services struct {
	Lookup       service.LookupService
	Rewards      service.RewardService
	Referrals    service.ReferralService
	Entitlements service.EntitlementService
	Keys         service.KeyService
}

// Server wires services into gRPC handlers. Handlers return domain errors;
// ErrorsUnary turns them into statuses.
type Server struct {
	v1.UnimplementedLedgerServer
	svc        Services
	clk        clockwork.Clock
	inviteBase string
}

// Option configures a Server.
type Option func(*Server)

// WithInviteBase sets the site that share links for referral codes point at.
func WithInviteBase(base string) Option {
	return func(s *Server) { s.inviteBase = base }
}

// New constructs a gRPC server with injected services.
func New(svc Services, clk clockwork.Clock, opts ...Option) *Server {
	if clk == nil {
		clk = clockwork.NewRealClock()
	}
	s := &Server{svc: svc, clk: clk}
	for _, o := range opts {
		o(s)
	}
	return s
}

var errNoSession = status.Error(codes.Unauthenticated, "no session")

func (s *Server) session(ctx context.Context) (*session.AccountSession, error) {
	sess, ok := SessionFromCtx(ctx)
	if !ok {
		return nil, errNoSession
	}
	return sess, nil
}

func (s *Server) account(sess *session.AccountSession) v1.Account {
	acc := convert.ToWireAccount(sess.Account(), s.clk.Now())
	acc.InviteURL = convert.InviteURL(s.inviteBase, acc.ReferralCode)
	return acc
}

func (s *Server) admin(ctx context.Context) error {
	if _, ok := IdentityFromCtx(ctx); !ok {
		return status.Error(codes.PermissionDenied, "admin identity required")
	}
	return nil
}

// --- account ---

// Resolve returns the caller's account, creating it on first contact.
func (s *Server) Resolve(ctx context.Context, _ *v1.ResolveRequest) (*v1.ResolveResponse, error) {
	sess, err := s.session(ctx)
	if err != nil {
		return nil, err
	}
	return &v1.ResolveResponse{Account: s.account(sess)}, nil
}

// Search runs a paid lookup.
func (s *Server) Search(ctx context.Context, req *v1.SearchRequest) (*v1.SearchResponse, error) {
	sess, err := s.session(ctx)
	if err != nil {
		return nil, err
	}
	out, err := s.svc.Lookup.Search(ctx, sess, req.Query)
	if err != nil {
		return nil, err
	}
	return convert.ToWireSearch(out, s.account(sess)), nil
}

// WatchAd credits one attested ad view.
func (s *Server) WatchAd(ctx context.Context, _ *v1.WatchAdRequest) (*v1.WatchAdResponse, error) {
	sess, err := s.session(ctx)
	if err != nil {
		return nil, err
	}
	if err := s.svc.Rewards.WatchAd(ctx, sess); err != nil {
		return nil, err
	}
	return &v1.WatchAdResponse{Credited: model.AdReward, Account: s.account(sess)}, nil
}

// --- referrals ---

func (s *Server) ApplyReferral(ctx context.Context, req *v1.ApplyReferralRequest) (*v1.ApplyReferralResponse, error) {
	sess, err := s.session(ctx)
	if err != nil {
		return nil, err
	}
	awarded, err := s.svc.Referrals.Apply(ctx, sess, req.Code)
	if err != nil {
		return nil, err
	}
	return &v1.ApplyReferralResponse{
		Awarded: awarded,
		Message: model.ReferralAppliedMessage(awarded),
		Account: s.account(sess),
	}, nil
}

func (s *Server) RememberReferral(ctx context.Context, req *v1.RememberReferralRequest) (*v1.Empty, error) {
	sess, err := s.session(ctx)
	if err != nil {
		return nil, err
	}
	if err := s.svc.Referrals.Remember(ctx, sess, req.Code); err != nil {
		return nil, err
	}
	return &v1.Empty{}, nil
}

func (s *Server) PendingReferral(ctx context.Context, _ *v1.PendingReferralRequest) (*v1.PendingReferralResponse, error) {
	sess, err := s.session(ctx)
	if err != nil {
		return nil, err
	}
	inv, err := s.svc.Referrals.Pending(ctx, sess)
	if err != nil {
		return nil, err
	}
	return &v1.PendingReferralResponse{Invite: convert.ToWireInvite(inv)}, nil
}

func (s *Server) DeclineReferral(ctx context.Context, _ *v1.DeclineReferralRequest) (*v1.Empty, error) {
	sess, err := s.session(ctx)
	if err != nil {
		return nil, err
	}
	if err := s.svc.Referrals.Decline(ctx, sess); err != nil {
		return nil, err
	}
	return &v1.Empty{}, nil
}

func (s *Server) ListReferrals(ctx context.Context, _ *v1.ListReferralsRequest) (*v1.ListReferralsResponse, error) {
	sess, err := s.session(ctx)
	if err != nil {
		return nil, err
	}
	logs, err := s.svc.Referrals.Referrals(ctx, sess)
	if err != nil {
		return nil, err
	}
	return &v1.ListReferralsResponse{Referrals: convert.ToWireReferrals(logs)}, nil
}

func (s *Server) Leaderboard(ctx context.Context, req *v1.LeaderboardRequest) (*v1.LeaderboardResponse, error) {
	entries, err := s.svc.Referrals.Leaderboard(ctx, req.Limit)
	if err != nil {
		return nil, err
	}
	return &v1.LeaderboardResponse{Entries: convert.ToWireLeaderboard(entries)}, nil
}

// --- super keys ---

// ActivateKey redeems or resumes a super key on the caller's device.
func (s *Server) ActivateKey(ctx context.Context, req *v1.ActivateKeyRequest) (*v1.ActivateKeyResponse, error) {
	sess, err := s.session(ctx)
	if err != nil {
		return nil, err
	}
	act, err := s.svc.Entitlements.Activate(ctx, sess, req.Code)
	if err != nil {
		return nil, err
	}
	return &v1.ActivateKeyResponse{
		Message:   act.Message(),
		Days:      act.Days,
		ExpiresAt: act.ExpiresAt.UTC(),
		Resumed:   act.Resumed,
		Account:   s.account(sess),
	}, nil
}

// LogoutKey releases the caller's super key.
func (s *Server) LogoutKey(ctx context.Context, _ *v1.LogoutKeyRequest) (*v1.LogoutKeyResponse, error) {
	sess, err := s.session(ctx)
	if err != nil {
		return nil, err
	}
	if err := s.svc.Entitlements.Deactivate(ctx, sess); err != nil {
		return nil, err
	}
	return &v1.LogoutKeyResponse{Account: s.account(sess)}, nil
}

// --- admin ---

func (s *Server) GenerateKey(ctx context.Context, req *v1.GenerateKeyRequest) (*v1.GenerateKeyResponse, error) {
	if err := s.admin(ctx); err != nil {
		return nil, err
	}
	k, err := s.svc.Keys.Generate(ctx, req.Credits, req.ValidityDays)
	if err != nil {
		return nil, err
	}
	return &v1.GenerateKeyResponse{Key: convert.ToWireKey(*k)}, nil
}

func (s *Server) SetKeyActive(ctx context.Context, req *v1.SetKeyActiveRequest) (*v1.Empty, error) {
	if err := s.admin(ctx); err != nil {
		return nil, err
	}
	id, err := convert.FromWireID(req.ID)
	if err != nil {
		return nil, err
	}
	if err := s.svc.Keys.SetActive(ctx, id, req.Active); err != nil {
		return nil, err
	}
	return &v1.Empty{}, nil
}

func (s *Server) DeleteKey(ctx context.Context, req *v1.DeleteKeyRequest) (*v1.Empty, error) {
	if err := s.admin(ctx); err != nil {
		return nil, err
	}
	id, err := convert.FromWireID(req.ID)
	if err != nil {
		return nil, err
	}
	if err := s.svc.Keys.Delete(ctx, id); err != nil {
		return nil, err
	}
	return &v1.Empty{}, nil
}

func (s *Server) ListKeys(ctx context.Context, _ *v1.ListKeysRequest) (*v1.ListKeysResponse, error) {
	if err := s.admin(ctx); err != nil {
		return nil, err
	}
	keys, err := s.svc.Keys.List(ctx)
	if err != nil {
		return nil, err
	}
	return &v1.ListKeysResponse{Keys: convert.ToWireKeys(keys)}, nil
}
