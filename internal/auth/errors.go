package auth

import (
	"errors"
	"fmt"
)

// ErrInvalidToken is the umbrella for every credential that failed
// validation. The specific reasons below wrap it, so callers can match
// either the broad class or the exact cause.
var ErrInvalidToken = errors.New("auth: invalid token")

var (
	ErrMalformed        = fmt.Errorf("%w: malformed", ErrInvalidToken)
	ErrBadSignature     = fmt.Errorf("%w: bad signature", ErrInvalidToken)
	ErrExpired          = fmt.Errorf("%w: expired", ErrInvalidToken)
	ErrRevoked          = fmt.Errorf("%w: revoked", ErrInvalidToken)
	ErrIssuerMismatch   = fmt.Errorf("%w: issuer mismatch", ErrInvalidToken)
	ErrAudienceMismatch = fmt.Errorf("%w: audience mismatch", ErrInvalidToken)
)

var (
	// ErrProviderUnavailable means the identity provider could not be
	// reached; distinct from a bad token so callers can retry or fail fast.
	ErrProviderUnavailable = errors.New("auth: identity provider unavailable")

	// ErrUnauthenticated maps to 401: no usable credential at all.
	ErrUnauthenticated = errors.New("auth: unauthenticated")

	// ErrForbidden maps to 403: valid credential, insufficient rights.
	ErrForbidden = errors.New("auth: forbidden")

	// ErrPersistence signals that a revocation could not be made durable.
	ErrPersistence = errors.New("auth: blacklist persistence failure")
)
