// Package common defines the sentinel-error taxonomy shared by the server
// and client layers. Callers match these with errors.Is; there are no
// exception types, per spec.md §7.
package common

import "errors"

var (
	// ErrNotFound: the record never existed, or the store found nothing.
	ErrNotFound = errors.New("not found")

	// ErrGone: the record expired, was already burned, or its token was
	// already used. Per spec.md §7 the caller MUST NOT distinguish this
	// from ErrNotFound in the HTTP response, to avoid an enumeration oracle.
	ErrGone = errors.New("gone")

	// ErrValidation: malformed input — bad UUID, missing field, or an
	// out-of-range view count/expiry/chunk size. No state change occurs.
	ErrValidation = errors.New("validation error")

	// ErrUnauthorized: a download token failed to validate.
	ErrUnauthorized = errors.New("unauthorized")

	// ErrAuthFailure: a passphrase-validation candidate hash did not match
	// the stored one. Distinct from ErrUnauthorized, which is about a
	// download token's bearer-style validity rather than a credential the
	// user supplied.
	ErrAuthFailure = errors.New("auth failure")

	// ErrRateLimited: the per-IP sliding window rejected the request.
	ErrRateLimited = errors.New("rate limited")

	// ErrInternal: an infrastructure failure (store or blob backend).
	ErrInternal = errors.New("internal error")

	// ErrCrossOrigin: a state-changing request failed the same-origin check.
	ErrCrossOrigin = errors.New("cross-origin request refused")

	// ErrAlreadyFinalized: a chunked file was already finalized (or its
	// record already expired out from under a finalize call). Treated as
	// idempotent success at the HTTP layer, per spec.md §9.
	ErrAlreadyFinalized = errors.New("already finalized")
)
