package lookup

import (
	"strings"

	"github.com/and161185/lookup-credits/internal/errs"
)

// Kind tells what the user typed.
type Kind string

// Query kinds.
const (
	KindPhone Kind = "phone"
	KindCNIC  Kind = "cnic"
)

const cnicDigits = 13

// Normalize strips formatting from a raw query. Phone numbers lose the
// country prefix 92 and the trunk 0; 13-digit national ids are kept as is.
func Normalize(raw string) (string, Kind, error) {
	var b strings.Builder
	for _, r := range raw {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	digits := b.String()
	if digits == "" {
		return "", "", errs.ErrInvalidQuery
	}
	if len(digits) == cnicDigits {
		return digits, KindCNIC, nil
	}

	if strings.HasPrefix(digits, "92") && len(digits) > 10 {
		digits = digits[2:]
	}
	digits = strings.TrimPrefix(digits, "0")
	if digits == "" {
		return "", "", errs.ErrInvalidQuery
	}
	return digits, KindPhone, nil
}
