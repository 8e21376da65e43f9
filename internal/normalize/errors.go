package normalize

import "errors"

// Domain errors for the normalize package.
var (
	// ErrNotNumeric is returned when a numeric conversion rule is
	// applied to a value that cannot be coerced to a number.
	ErrNotNumeric = errors.New("normalize: raw value is not numeric")

	// ErrUnknownRuleKind is returned when a conversion rule carries a
	// kind outside the closed set.
	ErrUnknownRuleKind = errors.New("normalize: unknown conversion rule kind")

	// ErrMissingCustomFunc is returned when a custom rule has no
	// transform function attached.
	ErrMissingCustomFunc = errors.New("normalize: custom rule without transform function")

	// ErrStoreFailed is returned when persisting or loading learned
	// state fails.
	ErrStoreFailed = errors.New("normalize: learned state store failed")
)
