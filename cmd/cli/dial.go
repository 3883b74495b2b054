package main

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"errors"
	"os"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials"
	"google.golang.org/grpc/credentials/insecure"

	v1 "github.com/and161185/lookup-credits/internal/rpc/ledgerv1"
)

type connOpts struct {
	addr      string
	caPath    string
	insecure  bool // TLS without verification
	plaintext bool // no TLS at all
}

type callerCreds struct {
	device, token string
	secure        bool
}

func (c callerCreds) GetRequestMetadata(context.Context, ...string) (map[string]string, error) {
	md := map[string]string{v1.MDDeviceID: c.device}
	if c.token != "" {
		md["authorization"] = "Bearer " + c.token
	}
	return md, nil
}
func (c callerCreds) RequireTransportSecurity() bool { return c.secure }

func loadTLS(caPath string, skipVerify bool) (credentials.TransportCredentials, error) {
	if skipVerify {
		return credentials.NewTLS(&tls.Config{InsecureSkipVerify: true}), nil //nolint:gosec // dev flag
	}
	if caPath == "" {
		return credentials.NewClientTLSFromCert(nil, ""), nil
	}
	pem, err := os.ReadFile(caPath)
	if err != nil {
		return nil, err
	}
	pool := x509.NewCertPool()
	if !pool.AppendCertsFromPEM(pem) {
		return nil, errors.New("bad CA cert")
	}
	return credentials.NewTLS(&tls.Config{RootCAs: pool}), nil
}

func dial(ctx context.Context, o connOpts, device, bearer string) (*grpc.ClientConn, v1.LedgerClient, error) {
	var creds credentials.TransportCredentials
	if o.plaintext {
		creds = insecure.NewCredentials()
	} else {
		var err error
		if creds, err = loadTLS(o.caPath, o.insecure); err != nil {
			return nil, nil, err
		}
	}
	opts := []grpc.DialOption{
		grpc.WithTransportCredentials(creds),
		grpc.WithPerRPCCredentials(callerCreds{device: device, token: bearer, secure: !o.plaintext}),
	}
	//nolint:staticcheck // DialContext is supported through 1.x; migrate when grpc.NewClient is stable
	cc, err := grpc.DialContext(ctx, o.addr, opts...)
	if err != nil {
		return nil, nil, err
	}
	return cc, v1.NewLedgerClient(cc), nil
}
