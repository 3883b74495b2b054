package main

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"time"

	u "github.com/gofrs/uuid/v5"
	"github.com/golang-jwt/jwt/v5"
)

// ---- config/token store ----

type tokenFile struct {
	AccessToken string    `json:"access_token"`
	ExpiresAt   time.Time `json:"expires_at"`
}

func cfgDir() string {
	if v := os.Getenv("XDG_CONFIG_HOME"); v != "" {
		return filepath.Join(v, "lookup-credits")
	}
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".config", "lookup-credits")
}

func tokenPath() string  { return filepath.Join(cfgDir(), "token.json") }
func devicePath() string { return filepath.Join(cfgDir(), "device_id") }

// tokenExpiry reads exp without verifying the signature; the server verifies.
func tokenExpiry(tok string) (time.Time, error) {
	var claims jwt.RegisteredClaims
	if _, _, err := jwt.NewParser().ParseUnverified(tok, &claims); err != nil {
		return time.Time{}, err
	}
	if claims.ExpiresAt == nil {
		return time.Now().Add(time.Hour), nil
	}
	return claims.ExpiresAt.Time, nil
}

func saveToken(tok string, exp time.Time) error {
	if err := os.MkdirAll(cfgDir(), 0o700); err != nil {
		return err
	}
	b, err := json.MarshalIndent(tokenFile{AccessToken: tok, ExpiresAt: exp}, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(tokenPath(), b, 0o600)
}

// loadToken returns "" when signed out. An expired token is an error.
func loadToken() (string, error) {
	b, err := os.ReadFile(tokenPath())
	if errors.Is(err, os.ErrNotExist) {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	var tf tokenFile
	if err := json.Unmarshal(b, &tf); err != nil {
		return "", err
	}
	if tf.AccessToken == "" || time.Now().After(tf.ExpiresAt) {
		return "", errors.New("session expired (run login again)")
	}
	return tf.AccessToken, nil
}

func clearToken() error {
	err := os.Remove(tokenPath())
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	return err
}

// deviceID returns the persisted device id, creating it on first use.
func deviceID() (string, error) {
	b, err := os.ReadFile(devicePath())
	if err == nil {
		if id := strings.TrimSpace(string(b)); id != "" {
			return id, nil
		}
	} else if !errors.Is(err, os.ErrNotExist) {
		return "", err
	}
	id, err := u.NewV4()
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(cfgDir(), 0o700); err != nil {
		return "", err
	}
	if err := os.WriteFile(devicePath(), []byte(id.String()), 0o600); err != nil {
		return "", err
	}
	return id.String(), nil
}
