package main

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/spf13/pflag"

	"github.com/and161185/lookup-credits/internal/authn"
	v1 "github.com/and161185/lookup-credits/internal/rpc/ledgerv1"
)

type app struct {
	cli v1.LedgerClient
	out io.Writer
	in  io.Reader
}

type command struct {
	usage string
	local bool // runs without a server connection
	run   func(ctx context.Context, a *app, args []string) error
}

var errUsage = errors.New("usage")

func (a *app) printJSON(v any) error {
	enc := json.NewEncoder(a.out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func oneArg(args []string) (string, error) {
	if len(args) != 1 || strings.TrimSpace(args[0]) == "" {
		return "", errUsage
	}
	return strings.TrimSpace(args[0]), nil
}

func newFlags(name string, a *app) *pflag.FlagSet {
	fs := pflag.NewFlagSet(name, pflag.ContinueOnError)
	fs.SetOutput(a.out)
	return fs
}

var commands = map[string]command{
	"account": {usage: "account", run: func(ctx context.Context, a *app, _ []string) error {
		resp, err := a.cli.Resolve(ctx, &v1.ResolveRequest{})
		if err != nil {
			return err
		}
		return a.printJSON(resp.Account)
	}},

	"search": {usage: "search <phone|cnic>", run: func(ctx context.Context, a *app, args []string) error {
		if len(args) == 0 {
			return errUsage
		}
		resp, err := a.cli.Search(ctx, &v1.SearchRequest{Query: strings.Join(args, " ")})
		if err != nil {
			return err
		}
		fmt.Fprintf(a.out, "%d record(s) for %s %s, credits left: %d\n", resp.Count, resp.Kind, resp.Query, resp.Account.Credits)
		return a.printJSON(resp.Records)
	}},

	"ad": {usage: "ad", run: func(ctx context.Context, a *app, _ []string) error {
		resp, err := a.cli.WatchAd(ctx, &v1.WatchAdRequest{})
		if err != nil {
			return err
		}
		fmt.Fprintf(a.out, "+%d credit, balance %d\n", resp.Credited, resp.Account.Credits)
		return nil
	}},

	"apply": {usage: "apply <referral-code>", run: func(ctx context.Context, a *app, args []string) error {
		code, err := oneArg(args)
		if err != nil {
			return err
		}
		resp, err := a.cli.ApplyReferral(ctx, &v1.ApplyReferralRequest{Code: code})
		if err != nil {
			return err
		}
		fmt.Fprintln(a.out, resp.Message)
		return nil
	}},

	"invite": {usage: "invite <referral-code>  (remember until sign-in)", run: func(ctx context.Context, a *app, args []string) error {
		code, err := oneArg(args)
		if err != nil {
			return err
		}
		if _, err := a.cli.RememberReferral(ctx, &v1.RememberReferralRequest{Code: code}); err != nil {
			return err
		}
		fmt.Fprintln(a.out, "ok")
		return nil
	}},

	"invite-status": {usage: "invite-status", run: func(ctx context.Context, a *app, _ []string) error {
		resp, err := a.cli.PendingReferral(ctx, &v1.PendingReferralRequest{})
		if err != nil {
			return err
		}
		switch inv := resp.Invite; {
		case inv == nil:
			fmt.Fprintln(a.out, "no pending invite")
		case inv.LoginRequired:
			fmt.Fprintf(a.out, "invite %s waiting, login to claim it\n", inv.Code)
		default:
			fmt.Fprintf(a.out, "invited by %s with code %s (run: apply %s)\n", inv.InviterID, inv.Code, inv.Code)
		}
		return nil
	}},

	"invite-decline": {usage: "invite-decline", run: func(ctx context.Context, a *app, _ []string) error {
		_, err := a.cli.DeclineReferral(ctx, &v1.DeclineReferralRequest{})
		return err
	}},

	"referrals": {usage: "referrals", run: func(ctx context.Context, a *app, _ []string) error {
		resp, err := a.cli.ListReferrals(ctx, &v1.ListReferralsRequest{})
		if err != nil {
			return err
		}
		return a.printJSON(resp.Referrals)
	}},

	"leaderboard": {usage: "leaderboard [--limit N]", run: func(ctx context.Context, a *app, args []string) error {
		fs := newFlags("leaderboard", a)
		limit := fs.IntP("limit", "n", 0, "entries to show")
		if err := fs.Parse(args); err != nil {
			return err
		}
		resp, err := a.cli.Leaderboard(ctx, &v1.LeaderboardRequest{Limit: *limit})
		if err != nil {
			return err
		}
		for _, e := range resp.Entries {
			fmt.Fprintf(a.out, "%3d. %-24s %d\n", e.Rank, e.ExternalID, e.ReferralCount)
		}
		return nil
	}},

	"activate": {usage: "activate <super-key>", run: func(ctx context.Context, a *app, args []string) error {
		code, err := oneArg(args)
		if err != nil {
			return err
		}
		resp, err := a.cli.ActivateKey(ctx, &v1.ActivateKeyRequest{Code: code})
		if err != nil {
			return err
		}
		fmt.Fprintln(a.out, resp.Message)
		return nil
	}},

	"deactivate": {usage: "deactivate", run: func(ctx context.Context, a *app, _ []string) error {
		resp, err := a.cli.LogoutKey(ctx, &v1.LogoutKeyRequest{})
		if err != nil {
			return err
		}
		fmt.Fprintf(a.out, "super key released, credits %d\n", resp.Account.Credits)
		return nil
	}},

	"keys": {usage: "keys list | gen [--credits N] [--days N] | block <id> | unblock <id> | rm <id>", run: runKeys},

	"login": {usage: "login [token]  (reads stdin when omitted)", local: true, run: func(_ context.Context, a *app, args []string) error {
		tok := ""
		if len(args) > 0 {
			tok = args[0]
		} else {
			line, err := bufio.NewReader(a.in).ReadString('\n')
			if err != nil && !errors.Is(err, io.EOF) {
				return err
			}
			tok = line
		}
		tok = strings.TrimSpace(tok)
		if tok == "" {
			return errUsage
		}
		exp, err := tokenExpiry(tok)
		if err != nil {
			return fmt.Errorf("not a JWT: %w", err)
		}
		if err := saveToken(tok, exp); err != nil {
			return err
		}
		fmt.Fprintf(a.out, "ok, valid until %s\n", exp.UTC().Format(time.RFC3339))
		return nil
	}},

	"logout": {usage: "logout", local: true, run: func(_ context.Context, a *app, _ []string) error {
		if err := clearToken(); err != nil {
			return err
		}
		fmt.Fprintln(a.out, "signed out")
		return nil
	}},

	"dev-token": {usage: "dev-token --key K --sub ID [--ttl 1h]  (local setups only)", local: true, run: func(_ context.Context, a *app, args []string) error {
		fs := newFlags("dev-token", a)
		key := fs.String("key", os.Getenv("LC_JWT_KEY"), "HS256 key shared with the server")
		sub := fs.String("sub", "", "external identity id")
		ttl := fs.Duration("ttl", time.Hour, "token lifetime")
		if err := fs.Parse(args); err != nil {
			return err
		}
		if *key == "" || *sub == "" {
			return errUsage
		}
		now := time.Now()
		tok, err := authn.Sign([]byte(*key), *sub, now, *ttl)
		if err != nil {
			return err
		}
		if err := saveToken(tok, now.Add(*ttl)); err != nil {
			return err
		}
		fmt.Fprintf(a.out, "signed in as %s\n", *sub)
		return nil
	}},

	"version": {usage: "version", local: true, run: func(_ context.Context, a *app, _ []string) error {
		fmt.Fprintf(a.out, "lc %s (%s)\n", version, buildDate)
		return nil
	}},
}

func runKeys(ctx context.Context, a *app, args []string) error {
	if len(args) == 0 {
		return errUsage
	}
	sub, rest := args[0], args[1:]
	switch sub {
	case "list":
		resp, err := a.cli.ListKeys(ctx, &v1.ListKeysRequest{})
		if err != nil {
			return err
		}
		return a.printJSON(resp.Keys)
	case "gen":
		fs := newFlags("keys gen", a)
		credits := fs.Int64("credits", 0, "credits granted (0 = default)")
		days := fs.Int("days", 0, "validity in days (0 = default)")
		if err := fs.Parse(rest); err != nil {
			return err
		}
		resp, err := a.cli.GenerateKey(ctx, &v1.GenerateKeyRequest{Credits: *credits, ValidityDays: *days})
		if err != nil {
			return err
		}
		fmt.Fprintln(a.out, resp.Key.Code)
		return nil
	case "block", "unblock":
		id, err := oneArg(rest)
		if err != nil {
			return err
		}
		_, err = a.cli.SetKeyActive(ctx, &v1.SetKeyActiveRequest{ID: id, Active: sub == "unblock"})
		return err
	case "rm":
		id, err := oneArg(rest)
		if err != nil {
			return err
		}
		_, err = a.cli.DeleteKey(ctx, &v1.DeleteKeyRequest{ID: id})
		return err
	}
	return errUsage
}

func commandNames() []string {
	names := make([]string, 0, len(commands))
	for n := range commands {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}
