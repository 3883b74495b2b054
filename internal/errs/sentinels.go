// Package errs contains sentinel errors used across layers for stable error mapping.
package errs

import "errors"

// Storage-level sentinels shared by repositories and services.
var (
	// ErrNotFound indicates the requested entity does not exist.
	ErrNotFound = errors.New("not found")

	// ErrVersionConflict indicates a conditional write matched no row (state changed underneath).
	ErrVersionConflict = errors.New("version conflict")

	// ErrUnauthorized indicates a bearer token that failed verification.
	ErrUnauthorized = errors.New("unauthorized")

	// ErrForbidden indicates a verified identity without admin rights.
	ErrForbidden = errors.New("forbidden")

	// ErrRateLimited indicates temporary lock of code redemption due to repeated failures.
	ErrRateLimited = errors.New("rate limited")

	// ErrAlreadyExists indicates a unique constraint violation.
	ErrAlreadyExists = errors.New("already exists")

	// ErrInvalidArgument indicates malformed input; wrap it with details.
	ErrInvalidArgument = errors.New("validation")
)

// Business rule sentinels returned by the engines.
var (
	// ErrNotAuthenticated indicates an operation that requires a signed-in identity.
	ErrNotAuthenticated = errors.New("not authenticated")

	// ErrInsufficientCredits indicates a deduction with zero balance and no active entitlement.
	ErrInsufficientCredits = errors.New("insufficient credits")

	// ErrInvalidCode indicates a referral or entitlement code that does not exist.
	ErrInvalidCode = errors.New("invalid code")

	// ErrAlreadyUsed indicates the account already applied a referral code.
	ErrAlreadyUsed = errors.New("already used")

	// ErrAlreadyUsedElsewhere indicates an entitlement bound to another device.
	ErrAlreadyUsedElsewhere = errors.New("already used elsewhere")

	// ErrSelfReferral indicates an account redeeming its own referral code.
	ErrSelfReferral = errors.New("self referral")

	// ErrBlocked indicates an administratively disabled entitlement.
	ErrBlocked = errors.New("blocked")

	// ErrStoreWriteFailed wraps an unexpected persistence failure; local state was reverted.
	ErrStoreWriteFailed = errors.New("store write failed")
)

// Lookup outcomes. None of them charge a credit.
var (
	// ErrInvalidQuery indicates a query with no usable digits.
	ErrInvalidQuery = errors.New("invalid query")

	// ErrNoRecords indicates the lookup succeeded but found nothing.
	ErrNoRecords = errors.New("no records")

	// ErrLookupFailed indicates the lookup service reported an error or was unreachable.
	ErrLookupFailed = errors.New("lookup failed")
)
