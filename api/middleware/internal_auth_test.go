package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestInternalAuthAcceptsSharedSecret(t *testing.T) {
	handler := InternalAuth("s3cret", nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))

	req := httptest.NewRequest(http.MethodPost, "/internal/v1/orders/x/refund", nil)
	req.Header.Set(internalSecretHeader, "s3cret")
	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, req)
	if resp.Code != http.StatusNoContent {
		t.Fatalf("expected 204 got %d", resp.Code)
	}
}

func TestInternalAuthRejectsBadSecret(t *testing.T) {
	handler := InternalAuth("s3cret", nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))

	for _, provided := range []string{"", "wrong"} {
		req := httptest.NewRequest(http.MethodPost, "/internal/v1/orders/x/refund", nil)
		if provided != "" {
			req.Header.Set(internalSecretHeader, provided)
		}
		resp := httptest.NewRecorder()
		handler.ServeHTTP(resp, req)
		if resp.Code != http.StatusUnauthorized {
			t.Fatalf("provided %q: expected 401 got %d", provided, resp.Code)
		}
	}
}

func TestInternalAuthFailsClosedWithoutSecret(t *testing.T) {
	handler := InternalAuth("", nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))

	req := httptest.NewRequest(http.MethodPost, "/internal/v1/orders/x/refund", nil)
	req.Header.Set(internalSecretHeader, "anything")
	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, req)
	if resp.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500 got %d", resp.Code)
	}
}
