package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/EduShopX/edushop/internal/app/domain/account"
	"github.com/EduShopX/edushop/internal/auth"
	apperrors "github.com/EduShopX/edushop/internal/errors"
	"github.com/EduShopX/edushop/pkg/logger"
)

func newTestTokens(t *testing.T) *auth.Tokens {
	t.Helper()
	priv, pub, _, err := auth.LoadKeys("", "")
	if err != nil {
		t.Fatalf("keys: %v", err)
	}
	return auth.NewTokens(priv, pub, auth.Config{}, nil)
}

func issueAccess(t *testing.T, tokens *auth.Tokens, user account.User) string {
	t.Helper()
	pair, err := tokens.Issue(user)
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	return pair.Access
}

func principalEcho(captured *auth.Principal, seen *bool) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		*captured, *seen = auth.PrincipalFrom(r.Context())
		w.WriteHeader(http.StatusOK)
	})
}

func TestAuthMiddleware_AnonymousPassesThrough(t *testing.T) {
	m := NewAuthMiddleware(newTestTokens(t), logger.NewDefault("test"), nil)
	var p auth.Principal
	var seen bool

	rec := httptest.NewRecorder()
	m.Handler(principalEcho(&p, &seen)).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/store/books/", nil))

	if rec.Code != http.StatusOK || seen {
		t.Fatalf("expected anonymous pass-through, got %d seen=%v", rec.Code, seen)
	}
}

func TestAuthMiddleware_InvalidHeaderFormat(t *testing.T) {
	m := NewAuthMiddleware(newTestTokens(t), logger.NewDefault("test"), nil)
	var p auth.Principal
	var seen bool

	tests := []struct {
		name   string
		header string
	}{
		{"no bearer prefix", "token123"},
		{"wrong prefix", "Basic token123"},
		{"empty token", "Bearer "},
		{"garbage token", "Bearer not.a.jwt"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/api/user/courses/", nil)
			req.Header.Set("Authorization", tt.header)
			rec := httptest.NewRecorder()
			m.Handler(principalEcho(&p, &seen)).ServeHTTP(rec, req)
			if rec.Code != http.StatusUnauthorized {
				t.Errorf("Status code = %d, want %d", rec.Code, http.StatusUnauthorized)
			}
		})
	}
}

func TestAuthMiddleware_ValidToken(t *testing.T) {
	tokens := newTestTokens(t)
	m := NewAuthMiddleware(tokens, logger.NewDefault("test"), nil)
	var p auth.Principal
	var seen bool

	req := httptest.NewRequest(http.MethodGet, "/api/user/courses/", nil)
	req.Header.Set("Authorization", "Bearer "+issueAccess(t, tokens, account.User{ID: 12, Role: account.RoleTeacher, IsActive: true}))
	rec := httptest.NewRecorder()
	m.Handler(principalEcho(&p, &seen)).ServeHTTP(rec, req)

	if rec.Code != http.StatusOK || !seen {
		t.Fatalf("expected authenticated request, got %d", rec.Code)
	}
	if p.UserID != 12 || !p.IsTeacher() {
		t.Fatalf("unexpected principal %+v", p)
	}
}

func TestAuthMiddleware_QueryTokenOnlyForWebsocketPaths(t *testing.T) {
	tokens := newTestTokens(t)
	m := NewAuthMiddleware(tokens, logger.NewDefault("test"), []string{"/ws/"})
	token := issueAccess(t, tokens, account.User{ID: 3, IsActive: true})
	var p auth.Principal
	var seen bool

	rec := httptest.NewRecorder()
	m.Handler(principalEcho(&p, &seen)).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/ws/support/1/?token="+token, nil))
	if !seen || p.UserID != 3 {
		t.Fatalf("expected websocket query token to authenticate")
	}

	seen = false
	rec = httptest.NewRecorder()
	m.Handler(principalEcho(&p, &seen)).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/user/courses/?token="+token, nil))
	if seen {
		t.Fatalf("query token must be ignored outside websocket paths")
	}
}

func TestAuthMiddleware_InactiveUserRejected(t *testing.T) {
	tokens := newTestTokens(t)
	m := NewAuthMiddleware(tokens, logger.NewDefault("test"), nil)
	var p auth.Principal
	var seen bool

	req := httptest.NewRequest(http.MethodGet, "/api/", nil)
	req.Header.Set("Authorization", "Bearer "+issueAccess(t, tokens, account.User{ID: 4, IsActive: false}))
	rec := httptest.NewRecorder()
	m.Handler(principalEcho(&p, &seen)).ServeHTTP(rec, req)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 for inactive user, got %d", rec.Code)
	}
}

type stubPrincipals map[int64]auth.Principal

func (s stubPrincipals) LoadPrincipal(_ context.Context, userID int64) (auth.Principal, error) {
	p, ok := s[userID]
	if !ok {
		return auth.Principal{}, apperrors.Unauthorized("User not found")
	}
	return p, nil
}

func TestAuthMiddleware_PrincipalComesFromStoredUser(t *testing.T) {
	tokens := newTestTokens(t)
	m := NewAuthMiddleware(tokens, logger.NewDefault("test"), nil).
		WithPrincipals(stubPrincipals{12: {UserID: 12, Role: account.RoleStudent}})
	var p auth.Principal
	var seen bool

	req := httptest.NewRequest(http.MethodGet, "/api/user/courses/", nil)
	req.Header.Set("Authorization", "Bearer "+issueAccess(t, tokens, account.User{ID: 12, Role: account.RoleTeacher, IsStaff: true, IsActive: true}))
	rec := httptest.NewRecorder()
	m.Handler(principalEcho(&p, &seen)).ServeHTTP(rec, req)
	if rec.Code != http.StatusOK || !seen {
		t.Fatalf("expected authenticated request, got %d", rec.Code)
	}
	if p.IsTeacher() || p.IsAdmin() {
		t.Fatalf("stale token claims leaked into principal %+v", p)
	}

	seen = false
	req = httptest.NewRequest(http.MethodGet, "/api/user/courses/", nil)
	req.Header.Set("Authorization", "Bearer "+issueAccess(t, tokens, account.User{ID: 99, IsActive: true}))
	rec = httptest.NewRecorder()
	m.Handler(principalEcho(&p, &seen)).ServeHTTP(rec, req)
	if rec.Code != http.StatusUnauthorized || seen {
		t.Fatalf("expected 401 for a user that no longer exists, got %d", rec.Code)
	}
}

func TestGuards(t *testing.T) {
	ok := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusOK) })
	cases := []struct {
		name   string
		guard  Guard
		ctx    func(context.Context) context.Context
		status int
	}{
		{"anonymous admin route", IsAdmin, func(c context.Context) context.Context { return c }, http.StatusUnauthorized},
		{"student on admin route", IsAdmin, withUser(auth.Principal{UserID: 1, Role: account.RoleStudent}), http.StatusForbidden},
		{"staff on admin route", IsAdmin, withUser(auth.Principal{UserID: 1, IsStaff: true}), http.StatusOK},
		{"student on teacher route", IsTeacher, withUser(auth.Principal{UserID: 1, Role: account.RoleStudent}), http.StatusForbidden},
		{"teacher on teacher route", IsTeacher, withUser(auth.Principal{UserID: 1, Role: account.RoleTeacher}), http.StatusOK},
		{"staff on user route", NotAdmin, withUser(auth.Principal{UserID: 1, IsStaff: true}), http.StatusForbidden},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			req = req.WithContext(tc.ctx(req.Context()))
			rec := httptest.NewRecorder()
			Require(tc.guard)(ok).ServeHTTP(rec, req)
			if rec.Code != tc.status {
				t.Fatalf("status %d, want %d", rec.Code, tc.status)
			}
		})
	}
}

func withUser(p auth.Principal) func(context.Context) context.Context {
	return func(ctx context.Context) context.Context { return auth.WithPrincipal(ctx, p) }
}

func TestRateLimiterThrottlesPerClient(t *testing.T) {
	rl := NewRateLimiter(0.0001, 1, nil)
	h := rl.Handler(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusOK) }))

	send := func(ip string) int {
		req := httptest.NewRequest(http.MethodGet, "/api/", nil)
		req.RemoteAddr = ip + ":5555"
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		return rec.Code
	}

	if code := send("10.0.0.1"); code != http.StatusOK {
		t.Fatalf("first request: %d", code)
	}
	if code := send("10.0.0.1"); code != http.StatusTooManyRequests {
		t.Fatalf("second request: %d", code)
	}
	if code := send("10.0.0.2"); code != http.StatusOK {
		t.Fatalf("other client should not be throttled: %d", code)
	}

	rl.idle = -time.Second
	rl.Cleanup()
	if rl.size() != 0 {
		t.Fatalf("expected idle limiters to be dropped")
	}
}

func TestRateLimiterIgnoresForgedForwardingHeaders(t *testing.T) {
	rl := NewRateLimiter(0.0001, 1, nil)
	h := rl.Handler(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusOK) }))

	send := func(xff string) int {
		req := httptest.NewRequest(http.MethodGet, "/api/", nil)
		req.RemoteAddr = "198.51.100.7:5555"
		req.Header.Set("X-Forwarded-For", xff)
		req.Header.Set("X-Real-IP", xff)
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		return rec.Code
	}

	if code := send("1.1.1.1"); code != http.StatusOK {
		t.Fatalf("first request: %d", code)
	}
	if code := send("2.2.2.2"); code != http.StatusTooManyRequests {
		t.Fatalf("a new forwarding header must not open a new bucket: %d", code)
	}
}

func TestRateLimiterKeysOnForwardedClientBehindProxy(t *testing.T) {
	resolver, err := NewIPResolver([]string{"10.0.0.1"})
	if err != nil {
		t.Fatalf("resolver: %v", err)
	}
	rl := NewRateLimiter(0.0001, 1, nil).WithResolver(resolver)
	h := rl.Handler(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusOK) }))

	send := func(client string) int {
		req := httptest.NewRequest(http.MethodGet, "/api/", nil)
		req.RemoteAddr = "10.0.0.1:5555"
		req.Header.Set("X-Forwarded-For", client)
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		return rec.Code
	}

	if code := send("203.0.113.1"); code != http.StatusOK {
		t.Fatalf("first client: %d", code)
	}
	if code := send("203.0.113.2"); code != http.StatusOK {
		t.Fatalf("second client shares the proxy but not the bucket: %d", code)
	}
	if code := send("203.0.113.1"); code != http.StatusTooManyRequests {
		t.Fatalf("repeat from first client: %d", code)
	}
}

func TestCORSPreflight(t *testing.T) {
	m := NewCORSMiddleware([]string{"https://edushop.example"})
	h := m.Handler(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusTeapot) }))

	req := httptest.NewRequest(http.MethodOptions, "/api/", nil)
	req.Header.Set("Origin", "https://edushop.example")
	req.Header.Set("Access-Control-Request-Method", "POST")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusNoContent || rec.Header().Get("Access-Control-Allow-Origin") != "https://edushop.example" {
		t.Fatalf("unexpected preflight response %d %v", rec.Code, rec.Header())
	}

	req = httptest.NewRequest(http.MethodGet, "/api/", nil)
	req.Header.Set("Origin", "https://evil.example")
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Header().Get("Access-Control-Allow-Origin") != "" {
		t.Fatalf("unexpected CORS header for foreign origin")
	}
}

type staticBlocklist map[string]bool

func (s staticBlocklist) IsBlocked(_ context.Context, ip string) (bool, error) { return s[ip], nil }

func TestBlocklistMiddleware(t *testing.T) {
	resolver, err := NewIPResolver([]string{"10.0.0.0/8"})
	if err != nil {
		t.Fatalf("resolver: %v", err)
	}
	h := BlocklistMiddleware(staticBlocklist{"203.0.113.9": true}, resolver, nil)(
		http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusOK) }))

	tests := []struct {
		name   string
		remote string
		xff    string
		status int
	}{
		{"blocked peer", "203.0.113.9:4000", "", http.StatusForbidden},
		{"blocked peer with forged header", "203.0.113.9:4000", "1.2.3.4", http.StatusForbidden},
		{"blocked client behind trusted proxy", "10.0.0.5:4000", "203.0.113.9", http.StatusForbidden},
		{"header from untrusted peer ignored", "198.51.100.7:4000", "203.0.113.9", http.StatusOK},
		{"clean client", "198.51.100.7:4000", "", http.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/api/", nil)
			req.RemoteAddr = tt.remote
			if tt.xff != "" {
				req.Header.Set("X-Forwarded-For", tt.xff)
			}
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)
			if rec.Code != tt.status {
				t.Fatalf("status %d, want %d", rec.Code, tt.status)
			}
		})
	}
}

func TestIPResolverClientIP(t *testing.T) {
	resolver, err := NewIPResolver([]string{"10.0.0.0/8", " 192.168.1.1 "})
	if err != nil {
		t.Fatalf("resolver: %v", err)
	}

	tests := []struct {
		name   string
		remote string
		xff    string
		realIP string
		want   string
	}{
		{"untrusted peer", "198.51.100.7:4000", "1.2.3.4", "5.6.7.8", "198.51.100.7"},
		{"rightmost untrusted hop", "10.0.0.5:4000", "1.2.3.4, 203.0.113.9, 10.1.1.1", "", "203.0.113.9"},
		{"bare proxy address", "192.168.1.1:4000", "203.0.113.9", "", "203.0.113.9"},
		{"garbage hop stops the walk", "10.0.0.5:4000", "1.2.3.4, junk", "5.6.7.8", "5.6.7.8"},
		{"only trusted hops", "10.0.0.5:4000", "10.0.0.6", "", "10.0.0.5"},
		{"real ip from proxy", "10.0.0.5:4000", "", "203.0.113.9", "203.0.113.9"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			req.RemoteAddr = tt.remote
			if tt.xff != "" {
				req.Header.Set("X-Forwarded-For", tt.xff)
			}
			if tt.realIP != "" {
				req.Header.Set("X-Real-IP", tt.realIP)
			}
			if got := resolver.ClientIP(req); got != tt.want {
				t.Fatalf("ClientIP = %q, want %q", got, tt.want)
			}
		})
	}

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "10.0.0.5:4000"
	req.Header.Set("X-Forwarded-For", "203.0.113.9")
	if got := ClientIP(req); got != "10.0.0.5" {
		t.Fatalf("without trusted proxies ClientIP = %q", got)
	}

	if _, err := NewIPResolver([]string{"10.0.0.0/33"}); err == nil {
		t.Fatalf("expected an error for a bad CIDR")
	}
	if _, err := NewIPResolver([]string{"proxy.local"}); err == nil {
		t.Fatalf("expected an error for a host name")
	}
}

func TestLoggingMiddlewareSetsTraceID(t *testing.T) {
	h := LoggingMiddleware(logger.NewDefault("test"))(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if logger.TraceID(r.Context()) == "" {
			t.Errorf("trace id missing from context")
		}
		if _, ok := w.(http.Hijacker); !ok {
			t.Errorf("wrapped writer must support hijacking")
		}
	}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	if rec.Header().Get("X-Trace-ID") == "" {
		t.Fatalf("expected X-Trace-ID header")
	}
}

func TestRecoveryMiddleware(t *testing.T) {
	h := RecoveryMiddleware(logger.NewDefault("test"))(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic("boom")
	}))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", rec.Code)
	}
}
