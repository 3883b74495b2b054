package main

import (
	"flag"
	"io"
	"testing"
	"time"
)

func newFS() *flag.FlagSet {
	fs := flag.NewFlagSet("lc-server", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	return fs
}

func TestParseConfig_FlagsAndLists(t *testing.T) {
	c, err := parseConfig(newFS(), []string{
		"-jwt-key", "k", "-lookup-url", "https://api.example.com/search",
		"-admins", " user_a, ,user_b ", "-lookup-proxies", "https://p1/?u={url}",
		"-redeem-window", "5m", "-http-addr", "",
	})
	if err != nil {
		t.Fatalf("parseConfig: %v", err)
	}
	if len(c.admins) != 2 || c.admins[1] != "user_b" {
		t.Fatalf("admins = %v", c.admins)
	}
	if len(c.lookupProxies) != 1 || c.redeemWindow != 5*time.Minute || c.httpAddr != "" {
		t.Fatalf("bad config: %+v", c)
	}
	if !c.lookupRequiresAuth {
		t.Fatalf("lookups require sign-in by default")
	}
}

func TestParseConfig_EnvDefaults(t *testing.T) {
	t.Setenv("LC_JWT_KEY", "from-env")
	t.Setenv("LC_LOOKUP_URL", "https://api.example.com/search")
	t.Setenv("LC_REDEEM_MAX_FAILS", "9")
	t.Setenv("LC_LOOKUP_REQUIRES_AUTH", "false")

	c, err := parseConfig(newFS(), nil)
	if err != nil {
		t.Fatalf("parseConfig: %v", err)
	}
	if c.jwtKey != "from-env" || c.redeemMaxFails != 9 || c.lookupRequiresAuth {
		t.Fatalf("env ignored: %+v", c)
	}
}

func TestParseConfig_Required(t *testing.T) {
	if _, err := parseConfig(newFS(), []string{"-lookup-url", "x"}); err == nil {
		t.Fatalf("want error without jwt key")
	}
	if _, err := parseConfig(newFS(), []string{"-jwt-key", "k"}); err == nil {
		t.Fatalf("want error without lookup url")
	}
	if _, err := parseConfig(newFS(), []string{"-jwt-key", "k", "-lookup-url", "x", "-redeem-max-fails", "0"}); err == nil {
		t.Fatalf("want error on zero max fails")
	}
	if _, err := parseConfig(newFS(), []string{"-jwt-key", "k", "-lookup-url", "x", "-referral-domain", "share.example.com"}); err == nil {
		t.Fatalf("want error on a referral domain without scheme")
	}
	c, err := parseConfig(newFS(), []string{"-jwt-key", "k", "-lookup-url", "x", "-referral-domain", "https://share.example.com"})
	if err != nil || c.referralDomain != "https://share.example.com" {
		t.Fatalf("referral domain: %+v, %v", c, err)
	}
}
