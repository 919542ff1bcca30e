package middleware

import (
	"bytes"
	"io"
	"net/http"

	"github.com/jonny/hookaudit/pkg/apierror"
	"github.com/jonny/hookaudit/pkg/requestcontext"
)

// DefaultMaxBodyBytes bounds buffered request bodies.
const DefaultMaxBodyBytes = 10 << 20

// BodyReader buffers up to maxBytes of the request body so it can be read
// more than once, e.g. for HMAC validation and then JSON parsing. Larger
// bodies are rejected with 413. The bytes are also available through
// requestcontext.RawBody.
func BodyReader(maxBytes int64) func(http.Handler) http.Handler {
	if maxBytes <= 0 {
		maxBytes = DefaultMaxBodyBytes
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			body, err := io.ReadAll(io.LimitReader(r.Body, maxBytes+1))
			if err != nil {
				apierror.Write(w, apierror.BadRequest("failed to read request body"))
				return
			}
			_ = r.Body.Close()
			if int64(len(body)) > maxBytes {
				apierror.Write(w, apierror.New(http.StatusRequestEntityTooLarge, "request body too large"))
				return
			}

			r.Body = io.NopCloser(bytes.NewReader(body))
			ctx := requestcontext.WithRawBody(r.Context(), body)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
