package httpadapter

import (
	"bytes"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/kk7453603/ragcore/internal/config"
	"github.com/kk7453603/ragcore/internal/core/domain"
)

func TestMapErrorToHTTPStatus(t *testing.T) {
	cases := []struct {
		err  error
		want int
	}{
		{domain.WrapError(domain.ErrInvalidInput, "run", errors.New("empty")), http.StatusBadRequest},
		{domain.WrapError(domain.ErrUnauthorized, "auth", errors.New("no token")), http.StatusUnauthorized},
		{domain.WrapError(domain.ErrDocumentNotFound, "load", errors.New("missing")), http.StatusNotFound},
		{domain.WrapError(domain.ErrTemporary, "store", errors.New("blip")), http.StatusServiceUnavailable},
		{domain.WrapError(domain.ErrStepBudgetExceeded, "drive", errors.New("budget")), http.StatusServiceUnavailable},
		{errors.New("anything else"), http.StatusInternalServerError},
	}
	for _, tc := range cases {
		if got := mapErrorToHTTPStatus(tc.err); got != tc.want {
			t.Fatalf("mapErrorToHTTPStatus(%v) = %d, want %d", tc.err, got, tc.want)
		}
	}
}

func TestRunTurnMapsRunnerErrors(t *testing.T) {
	runner := &fakeRunner{err: domain.WrapError(domain.ErrInvalidInput, "run", errors.New("query must not be empty"))}
	handler := newTestHandlerWithRunner(config.Config{}, runner)

	req := httptest.NewRequest(http.MethodPost, "/v1/rag/query", bytes.NewBufferString(`{"query":"q"}`))
	res := httptest.NewRecorder()
	handler.ServeHTTP(res, req)

	if res.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 from wrapped invalid-input error, got %d", res.Code)
	}
}

func TestRunTurnRejectsInvalidJSON(t *testing.T) {
	handler := newTestHandler(config.Config{})

	req := httptest.NewRequest(http.MethodPost, "/v1/rag/query", bytes.NewBufferString(`{"query":`))
	res := httptest.NewRecorder()
	handler.ServeHTTP(res, req)

	if res.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for malformed json, got %d", res.Code)
	}
}
