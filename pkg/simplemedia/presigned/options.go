package presigned

// Option is a functional option for configuring a Signer
type Option func(*Signer)

// WithSecretKey sets the secret key used for HMAC signing
// The key should be at least 32 bytes for security
func WithSecretKey(key string) Option {
	return func(s *Signer) {
		s.secretKey = []byte(key)
	}
}

// WithURLPrefix sets the path prefix of generated URLs, e.g. "/v1".
func WithURLPrefix(prefix string) Option {
	return func(s *Signer) {
		s.urlPrefix = prefix
	}
}
