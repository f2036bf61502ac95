package middleware_test

import (
	"bytes"
	"context"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/matiasleandrokruk/sqlagent/internal/server/ctxkeys"
	"github.com/matiasleandrokruk/sqlagent/internal/server/middleware"
	pkgauth "github.com/matiasleandrokruk/sqlagent/pkg/auth"
)

var secret = []byte("test-secret-key-32-chars-min!!!")

// nextHandler records that it ran and the context it saw.
func nextHandler(called *bool, capturedCtx *context.Context) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		*called = true
		if capturedCtx != nil {
			*capturedCtx = r.Context()
		}
		w.WriteHeader(http.StatusOK)
	})
}

func makeRequest(authorization string) *http.Request {
	req := httptest.NewRequest(http.MethodPost, "/mcp", nil)
	if authorization != "" {
		req.Header.Set("Authorization", authorization)
	}
	return req
}

func mustToken(t *testing.T, key []byte, ttl time.Duration) string {
	t.Helper()
	token, err := pkgauth.GenerateJWT(key, "ask-cli", ttl)
	if err != nil {
		t.Fatalf("GenerateJWT: %v", err)
	}
	return token
}

func TestBearerAuth_Rejects(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name          string
		authorization string
	}{
		{name: "no header", authorization: ""},
		{name: "basic scheme", authorization: "Basic dXNlcjpwYXNz"},
		{name: "lowercase scheme", authorization: "bearer " + mustToken(t, secret, time.Hour)},
		{name: "empty token", authorization: "Bearer   "},
		{name: "garbage", authorization: "Bearer not-a-jwt"},
		{name: "expired", authorization: "Bearer " + mustToken(t, secret, -time.Minute)},
		{name: "wrong secret", authorization: "Bearer " + mustToken(t, []byte("other"), time.Hour)},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			called := false
			rr := httptest.NewRecorder()
			middleware.BearerAuth(secret)(nextHandler(&called, nil)).ServeHTTP(rr, makeRequest(tc.authorization))

			if rr.Code != http.StatusUnauthorized {
				t.Errorf("expected 401, got %d", rr.Code)
			}
			if called {
				t.Error("next handler must not run")
			}
			if !strings.Contains(rr.Body.String(), `"error"`) {
				t.Errorf("expected JSON error body, got %s", rr.Body.String())
			}
			if rr.Header().Get("WWW-Authenticate") == "" {
				t.Error("expected WWW-Authenticate header")
			}
		})
	}
}

func TestBearerAuth_ValidTokenInjectsSubject(t *testing.T) {
	t.Parallel()

	called := false
	var ctx context.Context
	rr := httptest.NewRecorder()
	middleware.BearerAuth(secret)(nextHandler(&called, &ctx)).
		ServeHTTP(rr, makeRequest("Bearer "+mustToken(t, secret, time.Hour)))

	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	if !called {
		t.Fatal("next handler should run")
	}
	if got := ctxkeys.Value(ctx, ctxkeys.Subject); got != "ask-cli" {
		t.Errorf("expected subject ask-cli, got %q", got)
	}
}

func TestAccessLog_RecordsStatusAndSubject(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, nil))
	handler := middleware.BearerAuth(secret)(middleware.AccessLog(logger)(
		http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusAccepted)
		}),
	))

	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, makeRequest("Bearer "+mustToken(t, secret, time.Hour)))

	if rr.Code != http.StatusAccepted {
		t.Fatalf("expected 202, got %d", rr.Code)
	}
	line := buf.String()
	for _, want := range []string{`"status_code":202`, `"subject":"ask-cli"`, `"path":"/mcp"`, `"method":"POST"`} {
		if !strings.Contains(line, want) {
			t.Errorf("log line %s missing %s", line, want)
		}
	}
}

func TestAccessLog_DefaultStatusAndFlush(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	handler := middleware.AccessLog(slog.New(slog.NewJSONHandler(&buf, nil)))(
		http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			_, _ = w.Write([]byte("data: ok\n\n"))
			w.(http.Flusher).Flush()
		}),
	)

	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/mcp", nil))

	if !rr.Flushed {
		t.Error("expected the response to be flushed")
	}
	if !strings.Contains(buf.String(), `"status_code":200`) {
		t.Errorf("expected status 200 in log, got %s", buf.String())
	}
}
