package apierror_test

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/jonny/hookaudit/pkg/apierror"
)

func TestError_Error(t *testing.T) {
	if got := apierror.NotFound("record").Error(); got != "[404] record not found" {
		t.Errorf("got %q", got)
	}
	if got := apierror.WithDetail(400, "bad input", "size").Error(); got != "[400] bad input: size" {
		t.Errorf("got %q", got)
	}
}

func TestWrite(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		wantCode int
		wantMsg  string
	}{
		{"api error", apierror.Unprocessable("incomplete record"), http.StatusUnprocessableEntity, "incomplete record"},
		{"wrapped api error", fmt.Errorf("ctx: %w", apierror.Conflict("dup")), http.StatusConflict, "dup"},
		{"plain error", errors.New("database is on fire"), http.StatusInternalServerError, "internal error"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			apierror.Write(w, tc.err)

			if w.Code != tc.wantCode {
				t.Errorf("status = %d, want %d", w.Code, tc.wantCode)
			}
			if ct := w.Header().Get("Content-Type"); ct != "application/json" {
				t.Errorf("Content-Type = %q", ct)
			}
			var body struct {
				Error apierror.Error `json:"error"`
			}
			if err := json.NewDecoder(w.Body).Decode(&body); err != nil {
				t.Fatalf("decode: %v", err)
			}
			if body.Error.Message != tc.wantMsg || body.Error.Code != tc.wantCode {
				t.Errorf("body = %+v", body.Error)
			}
		})
	}
}
