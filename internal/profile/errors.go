package profile

import "errors"

// Domain errors for the profile package.
var (
	// ErrInvalidProfile is returned when a profile fails structural
	// validation (empty capability list, mapping without capability).
	ErrInvalidProfile = errors.New("profile: invalid profile")

	// ErrInvalidFingerprint is returned when a fingerprint is missing
	// vendor or model id.
	ErrInvalidFingerprint = errors.New("profile: invalid fingerprint")

	// ErrLoadFailed is returned when profile files cannot be read or
	// parsed.
	ErrLoadFailed = errors.New("profile: loading profiles failed")
)
