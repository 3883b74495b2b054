// Command lc is a CLI client for the lookup credits service.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/pflag"
	"google.golang.org/grpc"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"

	v1 "github.com/and161185/lookup-credits/internal/rpc/ledgerv1"
)

var (
	version   = "dev"
	buildDate = "unknown"
)

func usage(w io.Writer) {
	fmt.Fprintf(w, "lc CLI\nUsage:\n  lc [--addr HOST:PORT] [--cacert file | --insecure | --plaintext] <cmd> [args]\n\nCommands:\n")
	for _, n := range commandNames() {
		fmt.Fprintf(w, "  %s\n", commands[n].usage)
	}
}

// describe renders an RPC failure with its error kind when the server sent one.
func describe(err error, trailer metadata.MD) string {
	s, ok := status.FromError(err)
	if !ok {
		return err.Error()
	}
	if kind := trailer.Get(v1.MDErrorKind); len(kind) > 0 {
		return fmt.Sprintf("%s (%s)", s.Message(), kind[0])
	}
	return fmt.Sprintf("rpc error: code=%s msg=%s", s.Code(), s.Message())
}

// trailerClient captures the trailer of the last call.
type trailerClient struct {
	grpc.ClientConnInterface
	last *metadata.MD
}

func (t trailerClient) Invoke(ctx context.Context, method string, args, reply any, opts ...grpc.CallOption) error {
	return t.ClientConnInterface.Invoke(ctx, method, args, reply, append(opts, grpc.Trailer(t.last))...)
}

// main dispatches subcommands and configures TLS and identity for RPC calls.
func main() {
	var o connOpts
	pflag.StringVar(&o.addr, "addr", "localhost:8443", "server addr")
	pflag.StringVar(&o.caPath, "cacert", "", "CA cert (PEM)")
	pflag.BoolVar(&o.insecure, "insecure", false, "skip cert verify (dev)")
	pflag.BoolVar(&o.plaintext, "plaintext", false, "connect without TLS (dev)")
	pflag.CommandLine.SetInterspersed(false)
	pflag.Usage = func() { usage(os.Stderr) }
	pflag.Parse()

	if pflag.NArg() < 1 {
		usage(os.Stderr)
		os.Exit(2)
	}
	name, args := pflag.Arg(0), pflag.Args()[1:]
	cmd, ok := commands[name]
	if !ok {
		usage(os.Stderr)
		os.Exit(2)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	a := &app{out: os.Stdout, in: os.Stdin}
	var trailer metadata.MD
	if !cmd.local {
		device, err := deviceID()
		if err != nil {
			fail(err, nil)
		}
		token, err := loadToken()
		if err != nil {
			fail(err, nil)
		}
		cc, _, err := dial(ctx, o, device, token)
		if err != nil {
			fail(err, nil)
		}
		defer cc.Close()
		a.cli = v1.NewLedgerClient(trailerClient{ClientConnInterface: cc, last: &trailer})
	}

	if err := cmd.run(ctx, a, args); err != nil {
		if errors.Is(err, errUsage) {
			fmt.Fprintf(os.Stderr, "usage: lc %s\n", cmd.usage)
			os.Exit(2)
		}
		fail(err, trailer)
	}
}

func fail(err error, trailer metadata.MD) {
	fmt.Fprintln(os.Stderr, describe(err, trailer))
	os.Exit(1)
}
