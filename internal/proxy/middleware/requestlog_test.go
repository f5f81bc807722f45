package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/formzs/poe-to-gpt/internal/logging"
)

func TestRequestLogInjectsID(t *testing.T) {
	var got string
	handler := RequestLog(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = logging.RequestID(r.Context())
		w.WriteHeader(http.StatusTeapot)
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/models", nil))

	if got == "" {
		t.Error("request id missing from context")
	}
	if len(got) != 8 {
		t.Errorf("request id = %q, want 8 hex chars", got)
	}
	if rec.Code != http.StatusTeapot {
		t.Errorf("status = %d, handler status not passed through", rec.Code)
	}
}

func TestRequestLogFlusherPassthrough(t *testing.T) {
	handler := RequestLog(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, ok := w.(http.Flusher); !ok {
			t.Error("wrapped writer lost the Flusher interface")
		}
	}))
	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))
}
