package presigned

import "errors"

// Signature errors
var (
	// ErrNoSecretKey is returned when signing or verifying without a configured secret key
	ErrNoSecretKey = errors.New("presigned: no secret key configured")

	// ErrMissingSignature is returned when no signature accompanies a request
	ErrMissingSignature = errors.New("presigned: missing signature parameter")

	// ErrInvalidSignature is returned when the signature does not match the parameters
	ErrInvalidSignature = errors.New("presigned: invalid signature")
)

// IsAuthError returns true if the error is a signature validation error
func IsAuthError(err error) bool {
	return errors.Is(err, ErrMissingSignature) ||
		errors.Is(err, ErrInvalidSignature) ||
		errors.Is(err, ErrNoSecretKey)
}
