package domain

import "errors"

var (
	// ErrGrantNotFound is returned when a capability id is unknown both
	// on-chain and in the off-chain cache.
	ErrGrantNotFound = errors.New("grant not found")

	// ErrAnchorNotFound is returned when no anchor exists for a period.
	ErrAnchorNotFound = errors.New("anchor not found")

	// ErrNotGrantee is returned when a caller other than the grantee tries
	// to exercise a capability. Distinct from not-found and from a status
	// transition.
	ErrNotGrantee = errors.New("caller is not the grantee")

	// ErrNotGrantor is returned when a caller other than the grantor tries
	// to revoke a capability.
	ErrNotGrantor = errors.New("caller is not the grantor")

	// ErrDuplicateRequest is returned when a meta-tx request id was already
	// accepted. Re-submission is a no-op by contract.
	ErrDuplicateRequest = errors.New("duplicate request id")

	// ErrBadSignature is returned when the forwarder rejects a meta-tx
	// signature. Terminal: retrying cannot change a cryptographic verdict.
	ErrBadSignature = errors.New("invalid meta-transaction signature")

	// ErrProbeExhausted is returned when capability id prediction ran out of
	// free slots within the probe ceiling.
	ErrProbeExhausted = errors.New("capability id probe ceiling exhausted")

	// ErrInvalidAddress is returned for malformed Ethereum addresses.
	ErrInvalidAddress = errors.New("invalid address")

	// ErrInvalidCapabilityID is returned for malformed capability ids.
	ErrInvalidCapabilityID = errors.New("invalid capability id")
)
