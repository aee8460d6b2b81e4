package middleware_test

import (
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/daybook/daybook/internal/api/middleware"
	"github.com/daybook/daybook/internal/api/response"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestRecovery_PanicReturns500(t *testing.T) {
	// Handler that panics
	panicHandler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic("something went wrong!")
	})

	handler := middleware.Recovery(discardLogger())(panicHandler)

	req := httptest.NewRequest("GET", "/test", nil)
	rr := httptest.NewRecorder()

	handler.ServeHTTP(rr, req)

	if rr.Code != http.StatusInternalServerError {
		t.Errorf("expected status 500, got %d", rr.Code)
	}

	var resp response.ErrorResponse
	if err := json.NewDecoder(rr.Body).Decode(&resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}

	if resp.Error.Code != "INTERNAL_ERROR" {
		t.Errorf("expected code 'INTERNAL_ERROR', got %q", resp.Error.Code)
	}
}

func TestLocalNow_Extracted(t *testing.T) {
	var extracted *time.Time

	captureHandler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		extracted = middleware.GetLocalNow(r.Context())
		w.WriteHeader(http.StatusOK)
	})

	handler := middleware.LocalNow(captureHandler)

	req := httptest.NewRequest("GET", "/test", nil)
	req.Header.Set(middleware.LocalNowHeader, "2025-01-06T09:30:00+01:00")
	rr := httptest.NewRecorder()

	handler.ServeHTTP(rr, req)

	if extracted == nil {
		t.Fatal("expected local time in context")
	}
	want := time.Date(2025, 1, 6, 8, 30, 0, 0, time.UTC)
	if !extracted.Equal(want) {
		t.Errorf("expected %v, got %v", want, *extracted)
	}
	if _, offset := extracted.Zone(); offset != 3600 {
		t.Errorf("expected the client's offset to be kept, got %d", offset)
	}
}

func TestLocalNow_AbsentHeader(t *testing.T) {
	called := false
	captureHandler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
		if middleware.GetLocalNow(r.Context()) != nil {
			t.Error("expected no local time in context")
		}
	})

	rr := httptest.NewRecorder()
	middleware.LocalNow(captureHandler).ServeHTTP(rr, httptest.NewRequest("GET", "/test", nil))

	if !called {
		t.Error("expected next handler to run")
	}
}

func TestLocalNow_MalformedHeader(t *testing.T) {
	handler := middleware.LocalNow(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("next handler must not run")
	}))

	req := httptest.NewRequest("GET", "/test", nil)
	req.Header.Set(middleware.LocalNowHeader, "tomorrow morning")
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)

	if rr.Code != http.StatusBadRequest {
		t.Errorf("expected status 400, got %d", rr.Code)
	}
}

func TestLogging_CapturesStatus(t *testing.T) {
	var buf bytes.Buffer
	log := slog.New(slog.NewTextHandler(&buf, nil))

	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusCreated)
	})

	wrapped := middleware.Logging(log)(handler)

	req := httptest.NewRequest("GET", "/test", nil)
	rr := httptest.NewRecorder()

	wrapped.ServeHTTP(rr, req)

	if rr.Code != http.StatusCreated {
		t.Errorf("expected status 201, got %d", rr.Code)
	}
	if !strings.Contains(buf.String(), "status=201") {
		t.Errorf("expected status in log line, got %q", buf.String())
	}
}
