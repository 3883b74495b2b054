package ledgerv1

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// ServiceName is the fully qualified gRPC service name.
const ServiceName = "ledger.v1.Ledger"

// Metadata keys shared by clients and the server.
const (
	MDDeviceID  = "x-device-id"
	MDErrorKind = "x-error-kind"
)

// LedgerServer is the server API for the ledger service.
type LedgerServer interface {
	Resolve(context.Context, *ResolveRequest) (*ResolveResponse, error)
	Search(context.Context, *SearchRequest) (*SearchResponse, error)
	WatchAd(context.Context, *WatchAdRequest) (*WatchAdResponse, error)
	ApplyReferral(context.Context, *ApplyReferralRequest) (*ApplyReferralResponse, error)
	RememberReferral(context.Context, *RememberReferralRequest) (*Empty, error)
	PendingReferral(context.Context, *PendingReferralRequest) (*PendingReferralResponse, error)
	DeclineReferral(context.Context, *DeclineReferralRequest) (*Empty, error)
	ListReferrals(context.Context, *ListReferralsRequest) (*ListReferralsResponse, error)
	Leaderboard(context.Context, *LeaderboardRequest) (*LeaderboardResponse, error)
	ActivateKey(context.Context, *ActivateKeyRequest) (*ActivateKeyResponse, error)
	LogoutKey(context.Context, *LogoutKeyRequest) (*LogoutKeyResponse, error)

	GenerateKey(context.Context, *GenerateKeyRequest) (*GenerateKeyResponse, error)
	SetKeyActive(context.Context, *SetKeyActiveRequest) (*Empty, error)
	DeleteKey(context.Context, *DeleteKeyRequest) (*Empty, error)
	ListKeys(context.Context, *ListKeysRequest) (*ListKeysResponse, error)
}

// AdminMethods lists the full method names restricted to admins.
var AdminMethods = map[string]bool{
	FullMethod("GenerateKey"):  true,
	FullMethod("SetKeyActive"): true,
	FullMethod("DeleteKey"):    true,
	FullMethod("ListKeys"):     true,
}

// FullMethod returns "/ledger.v1.Ledger/<name>".
func FullMethod(name string) string { return "/" + ServiceName + "/" + name }

// UnimplementedLedgerServer can be embedded to get forward compatible implementations.
type UnimplementedLedgerServer struct{}

func unimplemented(name string) error {
	return status.Errorf(codes.Unimplemented, "method %s not implemented", name)
}

func (UnimplementedLedgerServer) Resolve(context.Context, *ResolveRequest) (*ResolveResponse, error) {
	return nil, unimplemented("Resolve")
}
func (UnimplementedLedgerServer) Search(context.Context, *SearchRequest) (*SearchResponse, error) {
	return nil, unimplemented("Search")
}
func (UnimplementedLedgerServer) WatchAd(context.Context, *WatchAdRequest) (*WatchAdResponse, error) {
	return nil, unimplemented("WatchAd")
}
func (UnimplementedLedgerServer) ApplyReferral(context.Context, *ApplyReferralRequest) (*ApplyReferralResponse, error) {
	return nil, unimplemented("ApplyReferral")
}
func (UnimplementedLedgerServer) RememberReferral(context.Context, *RememberReferralRequest) (*Empty, error) {
	return nil, unimplemented("RememberReferral")
}
func (UnimplementedLedgerServer) PendingReferral(context.Context, *PendingReferralRequest) (*PendingReferralResponse, error) {
	return nil, unimplemented("PendingReferral")
}
func (UnimplementedLedgerServer) DeclineReferral(context.Context, *DeclineReferralRequest) (*Empty, error) {
	return nil, unimplemented("DeclineReferral")
}
func (UnimplementedLedgerServer) ListReferrals(context.Context, *ListReferralsRequest) (*ListReferralsResponse, error) {
	return nil, unimplemented("ListReferrals")
}
func (UnimplementedLedgerServer) Leaderboard(context.Context, *LeaderboardRequest) (*LeaderboardResponse, error) {
	return nil, unimplemented("Leaderboard")
}
func (UnimplementedLedgerServer) ActivateKey(context.Context, *ActivateKeyRequest) (*ActivateKeyResponse, error) {
	return nil, unimplemented("ActivateKey")
}
func (UnimplementedLedgerServer) LogoutKey(context.Context, *LogoutKeyRequest) (*LogoutKeyResponse, error) {
	return nil, unimplemented("LogoutKey")
}
func (UnimplementedLedgerServer) GenerateKey(context.Context, *GenerateKeyRequest) (*GenerateKeyResponse, error) {
	return nil, unimplemented("GenerateKey")
}
func (UnimplementedLedgerServer) SetKeyActive(context.Context, *SetKeyActiveRequest) (*Empty, error) {
	return nil, unimplemented("SetKeyActive")
}
func (UnimplementedLedgerServer) DeleteKey(context.Context, *DeleteKeyRequest) (*Empty, error) {
	return nil, unimplemented("DeleteKey")
}
func (UnimplementedLedgerServer) ListKeys(context.Context, *ListKeysRequest) (*ListKeysResponse, error) {
	return nil, unimplemented("ListKeys")
}

// unary builds the method descriptor for one call.
func unary[Req, Resp any](name string, call func(LedgerServer, context.Context, *Req) (*Resp, error)) grpc.MethodDesc {
	return grpc.MethodDesc{
		MethodName: name,
		Handler: func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
			in := new(Req)
			if err := dec(in); err != nil {
				return nil, err
			}
			if interceptor == nil {
				return call(srv.(LedgerServer), ctx, in)
			}
			info := &grpc.UnaryServerInfo{Server: srv, FullMethod: FullMethod(name)}
			handler := func(ctx context.Context, req any) (any, error) {
				return call(srv.(LedgerServer), ctx, req.(*Req))
			}
			return interceptor(ctx, in, info, handler)
		},
	}
}

// Ledger_ServiceDesc is the grpc.ServiceDesc for the ledger service.
var Ledger_ServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*LedgerServer)(nil),
	Methods: []grpc.MethodDesc{
		unary("Resolve", LedgerServer.Resolve),
		unary("Search", LedgerServer.Search),
		unary("WatchAd", LedgerServer.WatchAd),
		unary("ApplyReferral", LedgerServer.ApplyReferral),
		unary("RememberReferral", LedgerServer.RememberReferral),
		unary("PendingReferral", LedgerServer.PendingReferral),
		unary("DeclineReferral", LedgerServer.DeclineReferral),
		unary("ListReferrals", LedgerServer.ListReferrals),
		unary("Leaderboard", LedgerServer.Leaderboard),
		unary("ActivateKey", LedgerServer.ActivateKey),
		unary("LogoutKey", LedgerServer.LogoutKey),
		unary("GenerateKey", LedgerServer.GenerateKey),
		unary("SetKeyActive", LedgerServer.SetKeyActive),
		unary("DeleteKey", LedgerServer.DeleteKey),
		unary("ListKeys", LedgerServer.ListKeys),
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "ledger/v1/ledger.cbor",
}

// RegisterLedgerServer registers srv on s.
func RegisterLedgerServer(s grpc.ServiceRegistrar, srv LedgerServer) {
	s.RegisterService(&Ledger_ServiceDesc, srv)
}

// LedgerClient is the client API for the ledger service.
type LedgerClient interface {
	Resolve(ctx context.Context, in *ResolveRequest, opts ...grpc.CallOption) (*ResolveResponse, error)
	Search(ctx context.Context, in *SearchRequest, opts ...grpc.CallOption) (*SearchResponse, error)
	WatchAd(ctx context.Context, in *WatchAdRequest, opts ...grpc.CallOption) (*WatchAdResponse, error)
	ApplyReferral(ctx context.Context, in *ApplyReferralRequest, opts ...grpc.CallOption) (*ApplyReferralResponse, error)
	RememberReferral(ctx context.Context, in *RememberReferralRequest, opts ...grpc.CallOption) (*Empty, error)
	PendingReferral(ctx context.Context, in *PendingReferralRequest, opts ...grpc.CallOption) (*PendingReferralResponse, error)
	DeclineReferral(ctx context.Context, in *DeclineReferralRequest, opts ...grpc.CallOption) (*Empty, error)
	ListReferrals(ctx context.Context, in *ListReferralsRequest, opts ...grpc.CallOption) (*ListReferralsResponse, error)
	Leaderboard(ctx context.Context, in *LeaderboardRequest, opts ...grpc.CallOption) (*LeaderboardResponse, error)
	ActivateKey(ctx context.Context, in *ActivateKeyRequest, opts ...grpc.CallOption) (*ActivateKeyResponse, error)
	LogoutKey(ctx context.Context, in *LogoutKeyRequest, opts ...grpc.CallOption) (*LogoutKeyResponse, error)
	GenerateKey(ctx context.Context, in *GenerateKeyRequest, opts ...grpc.CallOption) (*GenerateKeyResponse, error)
	SetKeyActive(ctx context.Context, in *SetKeyActiveRequest, opts ...grpc.CallOption) (*Empty, error)
	DeleteKey(ctx context.Context, in *DeleteKeyRequest, opts ...grpc.CallOption) (*Empty, error)
	ListKeys(ctx context.Context, in *ListKeysRequest, opts ...grpc.CallOption) (*ListKeysResponse, error)
}

type ledgerClient struct {
	cc grpc.ClientConnInterface
}

// NewLedgerClient returns a client that always speaks the CBOR codec.
func NewLedgerClient(cc grpc.ClientConnInterface) LedgerClient {
	return &ledgerClient{cc: cc}
}

func invoke[Resp any](ctx context.Context, cc grpc.ClientConnInterface, name string, in any, opts []grpc.CallOption) (*Resp, error) {
	out := new(Resp)
	opts = append([]grpc.CallOption{grpc.CallContentSubtype(CodecName)}, opts...)
	if err := cc.Invoke(ctx, FullMethod(name), in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *ledgerClient) Resolve(ctx context.Context, in *ResolveRequest, opts ...grpc.CallOption) (*ResolveResponse, error) {
	return invoke[ResolveResponse](ctx, c.cc, "Resolve", in, opts)
}
func (c *ledgerClient) Search(ctx context.Context, in *SearchRequest, opts ...grpc.CallOption) (*SearchResponse, error) {
	return invoke[SearchResponse](ctx, c.cc, "Search", in, opts)
}
func (c *ledgerClient) WatchAd(ctx context.Context, in *WatchAdRequest, opts ...grpc.CallOption) (*WatchAdResponse, error) {
	return invoke[WatchAdResponse](ctx, c.cc, "WatchAd", in, opts)
}
func (c *ledgerClient) ApplyReferral(ctx context.Context, in *ApplyReferralRequest, opts ...grpc.CallOption) (*ApplyReferralResponse, error) {
	return invoke[ApplyReferralResponse](ctx, c.cc, "ApplyReferral", in, opts)
}
func (c *ledgerClient) RememberReferral(ctx context.Context, in *RememberReferralRequest, opts ...grpc.CallOption) (*Empty, error) {
	return invoke[Empty](ctx, c.cc, "RememberReferral", in, opts)
}
func (c *ledgerClient) PendingReferral(ctx context.Context, in *PendingReferralRequest, opts ...grpc.CallOption) (*PendingReferralResponse, error) {
	return invoke[PendingReferralResponse](ctx, c.cc, "PendingReferral", in, opts)
}
func (c *ledgerClient) DeclineReferral(ctx context.Context, in *DeclineReferralRequest, opts ...grpc.CallOption) (*Empty, error) {
	return invoke[Empty](ctx, c.cc, "DeclineReferral", in, opts)
}
func (c *ledgerClient) ListReferrals(ctx context.Context, in *ListReferralsRequest, opts ...grpc.CallOption) (*ListReferralsResponse, error) {
	return invoke[ListReferralsResponse](ctx, c.cc, "ListReferrals", in, opts)
}
func (c *ledgerClient) Leaderboard(ctx context.Context, in *LeaderboardRequest, opts ...grpc.CallOption) (*LeaderboardResponse, error) {
	return invoke[LeaderboardResponse](ctx, c.cc, "Leaderboard", in, opts)
}
func (c *ledgerClient) ActivateKey(ctx context.Context, in *ActivateKeyRequest, opts ...grpc.CallOption) (*ActivateKeyResponse, error) {
	return invoke[ActivateKeyResponse](ctx, c.cc, "ActivateKey", in, opts)
}
func (c *ledgerClient) LogoutKey(ctx context.Context, in *LogoutKeyRequest, opts ...grpc.CallOption) (*LogoutKeyResponse, error) {
	return invoke[LogoutKeyResponse](ctx, c.cc, "LogoutKey", in, opts)
}
func (c *ledgerClient) GenerateKey(ctx context.Context, in *GenerateKeyRequest, opts ...grpc.CallOption) (*GenerateKeyResponse, error) {
	return invoke[GenerateKeyResponse](ctx, c.cc, "GenerateKey", in, opts)
}
func (c *ledgerClient) SetKeyActive(ctx context.Context, in *SetKeyActiveRequest, opts ...grpc.CallOption) (*Empty, error) {
	return invoke[Empty](ctx, c.cc, "SetKeyActive", in, opts)
}
func (c *ledgerClient) DeleteKey(ctx context.Context, in *DeleteKeyRequest, opts ...grpc.CallOption) (*Empty, error) {
	return invoke[Empty](ctx, c.cc, "DeleteKey", in, opts)
}
func (c *ledgerClient) ListKeys(ctx context.Context, in *ListKeysRequest, opts ...grpc.CallOption) (*ListKeysResponse, error) {
	return invoke[ListKeysResponse](ctx, c.cc, "ListKeys", in, opts)
}
