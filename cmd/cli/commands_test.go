package main

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"

	v1 "github.com/and161185/lookup-credits/internal/rpc/ledgerv1"
)

// fakeClient implements the calls the tests exercise; others panic on the nil embed.
type fakeClient struct {
	v1.LedgerClient
	searchQuery string
	setReq      *v1.SetKeyActiveRequest
	genReq      *v1.GenerateKeyRequest
	invite      *v1.Invite
	err         error
}

func (f *fakeClient) Search(_ context.Context, in *v1.SearchRequest, _ ...grpc.CallOption) (*v1.SearchResponse, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.searchQuery = in.Query
	return &v1.SearchResponse{Query: "3001234567", Kind: "phone", Count: 1, Records: []v1.Record{{}}, Account: v1.Account{Credits: 9}}, nil
}

func (f *fakeClient) ApplyReferral(_ context.Context, _ *v1.ApplyReferralRequest, _ ...grpc.CallOption) (*v1.ApplyReferralResponse, error) {
	return &v1.ApplyReferralResponse{Awarded: 5, Message: "Code applied! You both got 5 credits."}, f.err
}

func (f *fakeClient) PendingReferral(context.Context, *v1.PendingReferralRequest, ...grpc.CallOption) (*v1.PendingReferralResponse, error) {
	return &v1.PendingReferralResponse{Invite: f.invite}, nil
}

func (f *fakeClient) Leaderboard(_ context.Context, in *v1.LeaderboardRequest, _ ...grpc.CallOption) (*v1.LeaderboardResponse, error) {
	return &v1.LeaderboardResponse{Entries: []v1.LeaderboardEntry{{Rank: 1, ExternalID: "user_a", ReferralCount: int64(in.Limit)}}}, nil
}

func (f *fakeClient) GenerateKey(_ context.Context, in *v1.GenerateKeyRequest, _ ...grpc.CallOption) (*v1.GenerateKeyResponse, error) {
	f.genReq = in
	return &v1.GenerateKeyResponse{Key: v1.Key{Code: "SK-ABCDEFGH-IJKL"}}, nil
}

func (f *fakeClient) SetKeyActive(_ context.Context, in *v1.SetKeyActiveRequest, _ ...grpc.CallOption) (*v1.Empty, error) {
	f.setReq = in
	return &v1.Empty{}, nil
}

func runCmd(t *testing.T, f *fakeClient, name string, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	err := commands[name].run(context.Background(), &app{cli: f, out: &out, in: strings.NewReader("")}, args)
	return out.String(), err
}

func TestCommands_Search(t *testing.T) {
	f := &fakeClient{}
	out, err := runCmd(t, f, "search", "+92", "300", "1234567")
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if f.searchQuery != "+92 300 1234567" || !strings.Contains(out, "credits left: 9") {
		t.Fatalf("query=%q out=%q", f.searchQuery, out)
	}
	if _, err := runCmd(t, f, "search"); !errors.Is(err, errUsage) {
		t.Fatalf("want usage error, got %v", err)
	}
	f.err = status.Error(codes.FailedPrecondition, "No credits left!")
	if _, err := runCmd(t, f, "search", "3001234567"); status.Code(err) != codes.FailedPrecondition {
		t.Fatalf("rpc error lost: %v", err)
	}
}

func TestCommands_ReferralFlow(t *testing.T) {
	f := &fakeClient{}
	out, err := runCmd(t, f, "apply", "ab12")
	if err != nil || !strings.Contains(out, "5 credits") {
		t.Fatalf("apply: %q %v", out, err)
	}

	out, _ = runCmd(t, f, "invite-status")
	if !strings.Contains(out, "no pending invite") {
		t.Fatalf("status: %q", out)
	}
	f.invite = &v1.Invite{Code: "AB12", LoginRequired: true}
	out, _ = runCmd(t, f, "invite-status")
	if !strings.Contains(out, "login to claim") {
		t.Fatalf("status: %q", out)
	}

	out, err = runCmd(t, f, "leaderboard", "--limit", "7")
	if err != nil || !strings.Contains(out, "user_a") || !strings.Contains(out, " 7") {
		t.Fatalf("leaderboard: %q %v", out, err)
	}
}

func TestCommands_Keys(t *testing.T) {
	f := &fakeClient{}
	out, err := runCmd(t, f, "keys", "gen", "--credits", "50", "--days", "7")
	if err != nil || strings.TrimSpace(out) != "SK-ABCDEFGH-IJKL" {
		t.Fatalf("gen: %q %v", out, err)
	}
	if f.genReq.Credits != 50 || f.genReq.ValidityDays != 7 {
		t.Fatalf("gen request: %+v", f.genReq)
	}
	if _, err := runCmd(t, f, "keys", "unblock", "id-1"); err != nil || !f.setReq.Active {
		t.Fatalf("unblock: %+v %v", f.setReq, err)
	}
	if _, err := runCmd(t, f, "keys", "block", "id-1"); err != nil || f.setReq.Active {
		t.Fatalf("block: %+v %v", f.setReq, err)
	}
	if _, err := runCmd(t, f, "keys", "nope"); !errors.Is(err, errUsage) {
		t.Fatalf("want usage error, got %v", err)
	}
}

func TestCommands_LoginAndDevToken(t *testing.T) {
	_ = withTmpConfig(t)

	if _, err := runCmd(t, nil, "dev-token", "--key", "k", "--sub", "user_a"); err != nil {
		t.Fatalf("dev-token: %v", err)
	}
	tok, err := loadToken()
	if err != nil || tok == "" {
		t.Fatalf("token not saved: %v", err)
	}
	if _, err := runCmd(t, nil, "logout"); err != nil {
		t.Fatalf("logout: %v", err)
	}
	if _, err := runCmd(t, nil, "login", tok); err != nil {
		t.Fatalf("login: %v", err)
	}
	if got, _ := loadToken(); got != tok {
		t.Fatalf("login did not persist the token")
	}
	if _, err := runCmd(t, nil, "login", "not-a-jwt"); err == nil {
		t.Fatalf("want error on garbage token")
	}
}

func TestDescribe(t *testing.T) {
	err := status.Error(codes.FailedPrecondition, "Key is blocked")
	if got := describe(err, metadata.Pairs(v1.MDErrorKind, "blocked")); got != "Key is blocked (blocked)" {
		t.Fatalf("describe = %q", got)
	}
	if got := describe(err, nil); !strings.Contains(got, "FailedPrecondition") {
		t.Fatalf("describe = %q", got)
	}
	if got := describe(errors.New("dial"), nil); got != "dial" {
		t.Fatalf("describe = %q", got)
	}
}
