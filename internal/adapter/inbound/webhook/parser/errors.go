package parser

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/jonny/hookaudit/pkg/requestcontext"
)

var (
	ErrNoParser         = errors.New("no parser found for request")
	ErrInvalidSignature = errors.New("invalid signature")
	ErrUnsupportedEvent = errors.New("unsupported event")
)

// maxBodyBytes bounds how much of an unbuffered request body a parser reads.
const maxBodyBytes = 10 << 20

// readBody returns the request body. A body already buffered by middleware
// is used as is; otherwise the body is read and an equivalent reader is put
// back so signature validation and parsing can both consume it.
func readBody(r *http.Request) ([]byte, error) {
	if body, ok := requestcontext.RawBody(r.Context()); ok {
		return body, nil
	}
	if r.Body == nil {
		return nil, nil
	}
	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes+1))
	if err != nil {
		return nil, fmt.Errorf("reading request body: %w", err)
	}
	if len(body) > maxBodyBytes {
		return nil, fmt.Errorf("request body exceeds %d bytes", maxBodyBytes)
	}
	_ = r.Body.Close()
	r.Body = io.NopCloser(bytes.NewReader(body))
	return body, nil
}
