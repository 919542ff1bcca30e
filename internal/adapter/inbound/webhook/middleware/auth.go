package middleware

import (
	"crypto/hmac"
	"net/http"
	"strings"

	"github.com/jonny/hookaudit/pkg/apierror"
	"github.com/jonny/hookaudit/pkg/requestcontext"
)

// bearerToken returns the token from an "Authorization: Bearer <token>" header.
func bearerToken(r *http.Request) (string, bool) {
	parts := strings.SplitN(r.Header.Get("Authorization"), " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return "", false
	}
	token := strings.TrimSpace(parts[1])
	return token, token != ""
}

// lookupActor compares token against every configured token in constant time.
func lookupActor(tokens map[string]string, token string) (string, bool) {
	var actor string
	for candidate, owner := range tokens {
		if hmac.Equal([]byte(candidate), []byte(token)) {
			actor = owner
		}
	}
	return actor, actor != ""
}

// TokenAuth returns middleware that requires a bearer token from tokens
// (token → actor) and stores the owning actor in the request context.
func TokenAuth(tokens map[string]string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token, ok := bearerToken(r)
			if !ok {
				apierror.Write(w, apierror.Unauthorized("missing or malformed bearer token"))
				return
			}
			actor, ok := lookupActor(tokens, token)
			if !ok {
				apierror.Write(w, apierror.Unauthorized("invalid bearer token"))
				return
			}
			next.ServeHTTP(w, r.WithContext(requestcontext.WithActor(r.Context(), actor)))
		})
	}
}

// OptionalTokenAuth attaches the actor when a known bearer token is
// presented and passes anonymous requests through untouched. Webhook
// senders authenticate with signatures instead, so an unknown token is not
// an error here.
func OptionalTokenAuth(tokens map[string]string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if token, ok := bearerToken(r); ok {
				if actor, ok := lookupActor(tokens, token); ok {
					r = r.WithContext(requestcontext.WithActor(r.Context(), actor))
				}
			}
			next.ServeHTTP(w, r)
		})
	}
}
