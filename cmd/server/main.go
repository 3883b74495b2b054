// Command lc-server starts the lookup credits gRPC server and HTTP gateway.
package main

import (
	"context"
	"errors"
	"flag"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jonboulle/clockwork"
	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"

	"github.com/and161185/lookup-credits/internal/authn"
	"github.com/and161185/lookup-credits/internal/housekeeping"
	"github.com/and161185/lookup-credits/internal/limiter"
	"github.com/and161185/lookup-credits/internal/lookup"
	"github.com/and161185/lookup-credits/internal/migrate"
	"github.com/and161185/lookup-credits/internal/repository/postgres"
	v1 "github.com/and161185/lookup-credits/internal/rpc/ledgerv1"
	grpcserver "github.com/and161185/lookup-credits/internal/server/grpc"
	"github.com/and161185/lookup-credits/internal/server/httpapi"
	"github.com/and161185/lookup-credits/internal/service"
)

var (
	version   = "dev"
	buildDate = "unknown"
)

const shutdownGrace = 5 * time.Second

// main parses configuration, runs migrations, and serves gRPC and HTTP until a signal arrives.
func main() {
	cfg, err := parseConfig(flag.CommandLine, os.Args[1:])
	if err != nil {
		_, _ = os.Stderr.WriteString(err.Error() + "\n")
		os.Exit(2)
	}

	logger, _ := zap.NewProduction()
	if cfg.dev {
		logger, _ = zap.NewDevelopment()
	}
	defer func() { _ = logger.Sync() }()
	logger.Info("starting",
		zap.String("version", version),
		zap.String("buildDate", buildDate),
		zap.String("addr", cfg.addr),
		zap.String("http_addr", cfg.httpAddr),
	)

	// Context with OS signals
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	schema, err := migrate.Up(ctx, cfg.dsn, logger)
	if err != nil {
		logger.Fatal("migrate up", zap.Error(err))
	}
	logger.Info("schema ready", zap.Int64("version", schema))

	db, err := postgres.New(ctx, cfg.dsn)
	if err != nil {
		logger.Fatal("postgres.New", zap.Error(err))
	}
	defer db.Close()

	clk := clockwork.NewRealClock()
	pepper := []byte(cfg.ipPepper)

	// Repositories
	accounts := postgres.NewAccountRepo(db)
	keys := postgres.NewEntitlementRepo(db)
	audit := postgres.NewAuditRepo(db)

	lim := limiter.NewPG(db.Pool, clk, cfg.redeemWindow, cfg.redeemMaxFails, cfg.redeemBlock)
	searcher := lookup.NewClient(lookup.Config{
		Endpoint: cfg.lookupURL,
		Proxies:  cfg.lookupProxies,
		Timeout:  cfg.lookupTimeout,
	}, &http.Client{}, logger.Named("lookup"))

	// Services
	ledger := service.NewLedgerService(accounts, clk, logger)
	identity := service.NewIdentityService(accounts, logger)
	app := grpcserver.New(grpcserver.Services{
		Lookup:       service.NewLookupService(searcher, ledger, clk, logger, cfg.lookupRequiresAuth),
		Rewards:      service.NewRewardService(audit, ledger, logger),
		Referrals:    service.NewReferralService(accounts, audit, lim, pepper, logger),
		Entitlements: service.NewEntitlementService(keys, lim, pepper, clk, logger),
		Keys:         service.NewKeyService(keys, logger),
	}, clk, grpcserver.WithInviteBase(cfg.referralDomain))
	auth := grpcserver.NewAuthenticator(identity, authn.NewVerifier([]byte(cfg.jwtKey), clk.Now), cfg.admins)

	// gRPC server with interceptors
	opts := []grpc.ServerOption{
		grpc.ChainUnaryInterceptor(
			grpcserver.RecoverUnary(logger),
			grpcserver.LoggingUnary(logger),
			grpcserver.ErrorsUnary(),
			grpcserver.SessionUnary(auth),
		),
	}
	if !cfg.insecure {
		creds, err := credentials.NewServerTLSFromFile(cfg.certFile, cfg.keyFile)
		if err != nil {
			logger.Fatal("failed to load TLS cert/key", zap.Error(err))
		}
		opts = append(opts, grpc.Creds(creds))
	} else {
		logger.Warn("serving gRPC without TLS")
	}
	s := grpc.NewServer(opts...)
	v1.RegisterLedgerServer(s, app)

	// Health & reflection (dev)
	hs := health.NewServer()
	healthpb.RegisterHealthServer(s, hs)
	if cfg.dev {
		reflection.Register(s)
	}

	hk, err := housekeeping.New(lim, housekeeping.Config{Every: cfg.pruneEvery, Retention: cfg.pruneRetention}, clk, logger.Named("housekeeping"))
	if err != nil {
		logger.Fatal("housekeeping", zap.Error(err))
	}
	hk.Start()

	lis, err := net.Listen("tcp", cfg.addr)
	if err != nil {
		logger.Fatal("listen", zap.Error(err))
	}

	errCh := make(chan error, 2)
	go func() {
		logger.Info("listening (gRPC)", zap.String("addr", cfg.addr), zap.Bool("tls", !cfg.insecure))
		errCh <- s.Serve(lis)
	}()

	var hsrv *http.Server
	if cfg.httpAddr != "" {
		hsrv = &http.Server{
			Addr:              cfg.httpAddr,
			Handler:           httpapi.NewRouter(httpapi.NewHandler(app, auth, logger.Named("http")), cfg.corsOrigins),
			ReadHeaderTimeout: 10 * time.Second,
		}
		go func() {
			logger.Info("listening (HTTP)", zap.String("addr", cfg.httpAddr))
			if err := hsrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				errCh <- err
			}
		}()
	}

	// Wait for stop
	select {
	case <-ctx.Done():
		hs.Shutdown()
		if hsrv != nil {
			sctx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
			_ = hsrv.Shutdown(sctx)
			cancel()
		}
		done := make(chan struct{})
		go func() {
			s.GracefulStop()
			close(done)
		}()
		select {
		case <-done:
		case <-time.After(shutdownGrace):
			s.Stop()
		}
	case err := <-errCh:
		logger.Error("server error", zap.Error(err))
		_ = hk.Stop()
		os.Exit(1)
	}

	if err := hk.Stop(); err != nil {
		logger.Warn("housekeeping stop", zap.Error(err))
	}
	logger.Info("shutdown complete")
}
