package service

import (
	"crypto/rand"
	"fmt"
	"strings"
)

const codeAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

// randomCode returns n characters from codeAlphabet.
func randomCode(n int) (string, error) {
	// 252 is the largest multiple of len(codeAlphabet) below 256.
	const limit = 252
	out := make([]byte, 0, n)
	buf := make([]byte, n*2)
	for len(out) < n {
		if _, err := rand.Read(buf); err != nil {
			return "", fmt.Errorf("random code: %w", err)
		}
		for _, b := range buf {
			if b >= limit {
				continue
			}
			out = append(out, codeAlphabet[int(b)%len(codeAlphabet)])
			if len(out) == n {
				break
			}
		}
	}
	return string(out), nil
}

// newReferralCode returns an 8-character referral code.
func newReferralCode() (string, error) { return randomCode(8) }

// newKeyCode returns a super key code shaped SK-XXXXXXXX-XXXX.
func newKeyCode() (string, error) {
	a, err := randomCode(8)
	if err != nil {
		return "", err
	}
	b, err := randomCode(4)
	if err != nil {
		return "", err
	}
	return "SK-" + a + "-" + b, nil
}

// normalizeCode trims and upper-cases a user-entered code.
func normalizeCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}
