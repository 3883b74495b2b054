package errs

import "errors"

type entry struct {
	err     error
	kind    string
	message string
}

// Order matters: ErrStoreWriteFailed wraps its cause, so it is checked before
// the storage sentinels it may carry.
var table = []entry{
	{ErrNotAuthenticated, "not_authenticated", "Please login to continue"},
	{ErrInsufficientCredits, "insufficient_credits", "No credits left! Watch an ad or use a referral code."},
	{ErrInvalidCode, "invalid_code", "Invalid code"},
	{ErrAlreadyUsed, "already_used", "Referral code already used"},
	{ErrAlreadyUsedElsewhere, "already_used_elsewhere", "Key already used on another device"},
	{ErrSelfReferral, "self_referral", "Cannot use your own code"},
	{ErrBlocked, "blocked", "Key is blocked"},
	{ErrRateLimited, "rate_limited", "Too many attempts, try again later"},
	{ErrInvalidQuery, "invalid_query", "Enter a phone number or CNIC"},
	{ErrNoRecords, "no_records", "No records found for this number"},
	{ErrLookupFailed, "lookup_failed", "Unable to connect to database. Please try again."},
	{ErrStoreWriteFailed, "store_write_failed", "Something went wrong, please try again"},
	{ErrInvalidArgument, "invalid_argument", "Invalid request"},
	{ErrUnauthorized, "unauthorized", "Session expired, please login again"},
	{ErrForbidden, "forbidden", "Admin access required"},
	{ErrNotFound, "not_found", "Not found"},
	{ErrVersionConflict, "conflict", "Please try again"},
	{ErrAlreadyExists, "already_exists", "Already exists"},
}

// Kind returns a stable snake_case identifier for err, "internal" for unknown errors
// and "" for nil.
func Kind(err error) string {
	if err == nil {
		return ""
	}
	for _, e := range table {
		if errors.Is(err, e.err) {
			return e.kind
		}
	}
	return "internal"
}

// Message returns the short user-facing text for err.
func Message(err error) string {
	if err == nil {
		return ""
	}
	for _, e := range table {
		if errors.Is(err, e.err) {
			return e.message
		}
	}
	return "Something went wrong, please try again"
}
