// Package auth resolves caller identities from HS256 bearer tokens.
//
// A request without a token is anonymous. A token that fails verification
// is rejected. A valid token without a subject claim is treated as
// anonymous.
package auth

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/jwtauth"

	"github.com/tendant/simple-media/pkg/simplemedia"
)

// DefaultTokenTTL is the lifetime of issued tokens when none is given.
const DefaultTokenTTL = 15 * time.Minute

// Authenticator verifies and issues tokens signed with a shared secret.
type Authenticator struct {
	ja *jwtauth.JWTAuth
}

// New creates an Authenticator for secret.
func New(secret string) (*Authenticator, error) {
	if secret == "" {
		return nil, errors.New("auth secret is required")
	}
	return &Authenticator{ja: jwtauth.New("HS256", []byte(secret), nil)}, nil
}

// Authenticate returns the identity carried by token.
func (a *Authenticator) Authenticate(token string) (simplemedia.Identity, error) {
	if token == "" {
		return simplemedia.Anonymous, nil
	}
	tok, err := jwtauth.VerifyToken(a.ja, token)
	if err != nil {
		return simplemedia.Anonymous, fmt.Errorf("%w: %v", simplemedia.ErrUnauthorized, err)
	}
	return simplemedia.Identity(tok.Subject()), nil
}

// IssueToken mints a token for subject that expires after ttl.
func (a *Authenticator) IssueToken(subject string, ttl time.Duration) (string, error) {
	if subject == "" {
		return "", errors.New("subject is required")
	}
	if ttl <= 0 {
		ttl = DefaultTokenTTL
	}
	claims := map[string]interface{}{"sub": subject}
	jwtauth.SetIssuedNow(claims)
	jwtauth.SetExpiryIn(claims, ttl)

	_, tokenString, err := a.ja.Encode(claims)
	if err != nil {
		return "", fmt.Errorf("failed to encode token: %w", err)
	}
	return tokenString, nil
}

type contextKey struct{}

// WithIdentity returns a copy of ctx carrying id.
func WithIdentity(ctx context.Context, id simplemedia.Identity) context.Context {
	return context.WithValue(ctx, contextKey{}, id)
}

// IdentityFromContext returns the identity placed by Middleware, or
// Anonymous.
func IdentityFromContext(ctx context.Context) simplemedia.Identity {
	id, _ := ctx.Value(contextKey{}).(simplemedia.Identity)
	return id
}

// ErrorHandler writes the response for a rejected token.
type ErrorHandler func(w http.ResponseWriter, r *http.Request, err error)

// Middleware resolves the bearer token of every request and stores the
// identity in the request context. Requests with an invalid token are
// passed to onError, which defaults to a plain 401.
func (a *Authenticator) Middleware(onError ErrorHandler) func(http.Handler) http.Handler {
	if onError == nil {
		onError = func(w http.ResponseWriter, r *http.Request, err error) {
			http.Error(w, http.StatusText(http.StatusUnauthorized), http.StatusUnauthorized)
		}
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id, err := a.Authenticate(jwtauth.TokenFromHeader(r))
			if err != nil {
				w.Header().Set("WWW-Authenticate", "Bearer")
				onError(w, r, err)
				return
			}
			next.ServeHTTP(w, r.WithContext(WithIdentity(r.Context(), id)))
		})
	}
}
