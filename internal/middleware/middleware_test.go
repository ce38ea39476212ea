package middleware

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"

	"github.com/iliyamo/playhouse-booking/internal/config"
	"github.com/iliyamo/playhouse-booking/internal/utils"
)

func newRedis(t *testing.T) *redis.Client {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return rdb
}

func serve(e *echo.Echo, method, target, token string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, target, nil)
	if token != "" {
		req.Header.Set(echo.HeaderAuthorization, "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

func TestJWTAuthAndRequireAdmin(t *testing.T) {
	const secret = "test-secret"
	e := echo.New()
	whoami := func(c echo.Context) error {
		id, _ := UserID(c)
		return c.JSON(http.StatusOK, echo.Map{"id": id, "admin": IsAdmin(c)})
	}
	e.GET("/me", whoami, JWTAuth(secret))
	e.GET("/admin", whoami, JWTAuth(secret), RequireAdmin())

	customer, _ := utils.NewAccessToken(secret, 7, false, 15, time.Now())
	admin, _ := utils.NewAccessToken(secret, 1, true, 15, time.Now())
	forged, _ := utils.NewAccessToken("other", 1, true, 15, time.Now())

	tests := []struct {
		name   string
		path   string
		token  string
		status int
		body   string
	}{
		{"no token", "/me", "", http.StatusUnauthorized, "missing bearer token"},
		{"forged token", "/me", forged.Token, http.StatusUnauthorized, "invalid token"},
		{"customer", "/me", customer.Token, http.StatusOK, `"id":7`},
		{"customer on admin route", "/admin", customer.Token, http.StatusForbidden, "admin access required"},
		{"admin", "/admin", admin.Token, http.StatusOK, `"admin":true`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := serve(e, http.MethodGet, tt.path, tt.token)
			if rec.Code != tt.status {
				t.Fatalf("status = %d, want %d (%s)", rec.Code, tt.status, rec.Body.String())
			}
			if !strings.Contains(rec.Body.String(), tt.body) {
				t.Fatalf("body %q does not contain %q", rec.Body.String(), tt.body)
			}
		})
	}
}

func TestTokenBucket(t *testing.T) {
	rdb := newRedis(t)
	cfg := config.RateLimitConfig{
		Enabled:        true,
		Capacity:       2,
		RefillTokens:   1,
		RefillInterval: time.Minute,
		TTL:            10 * time.Minute,
		KeyStrategy:    "ip",
		Prefix:         "rl",
	}
	e := echo.New()
	e.POST("/otp", func(c echo.Context) error { return c.NoContent(http.StatusAccepted) }, NewTokenBucket(cfg, rdb))

	first := serve(e, http.MethodPost, "/otp", "")
	if first.Code != http.StatusAccepted || first.Header().Get("X-RateLimit-Remaining") != "1" {
		t.Fatalf("first: %d remaining=%q", first.Code, first.Header().Get("X-RateLimit-Remaining"))
	}
	if second := serve(e, http.MethodPost, "/otp", ""); second.Code != http.StatusAccepted {
		t.Fatalf("second: %d", second.Code)
	}
	third := serve(e, http.MethodPost, "/otp", "")
	if third.Code != http.StatusTooManyRequests {
		t.Fatalf("third: %d, want 429", third.Code)
	}
	if third.Header().Get("Retry-After") == "" || !strings.Contains(third.Body.String(), "too_many_requests") {
		t.Fatalf("429 response missing retry info: %v %s", third.Header(), third.Body.String())
	}
}

func TestTokenBucketPassThrough(t *testing.T) {
	e := echo.New()
	e.GET("/", func(c echo.Context) error { return c.NoContent(http.StatusOK) },
		NewTokenBucket(config.RateLimitConfig{Enabled: true, Capacity: 1}, nil))
	for i := 0; i < 3; i++ {
		if rec := serve(e, http.MethodGet, "/", ""); rec.Code != http.StatusOK {
			t.Fatalf("request %d: %d", i, rec.Code)
		}
	}
}

func TestBuildRateKey(t *testing.T) {
	e := echo.New()
	req := httptest.NewRequest(http.MethodPost, "/v1/auth/otp/request", nil)
	req.RemoteAddr = "203.0.113.9:5555"
	c := e.NewContext(req, httptest.NewRecorder())
	c.SetPath("/v1/auth/otp/request")

	tests := []struct {
		strategy string
		want     string
	}{
		{"ip", "rl:ip:203.0.113.9"},
		{"user", "rl:user:anon"},
		{"ip_route", "rl:ip:203.0.113.9:route:POST /v1/auth/otp/request"},
		{"", "rl:ip:203.0.113.9:user:anon:route:POST /v1/auth/otp/request"},
	}
	for _, tt := range tests {
		got := buildRateKey(config.RateLimitConfig{Prefix: "rl", KeyStrategy: tt.strategy}, c)
		if got != tt.want {
			t.Errorf("strategy %q: key = %q, want %q", tt.strategy, got, tt.want)
		}
	}

	SetIdentity(c, 42, false)
	if got := buildRateKey(config.RateLimitConfig{Prefix: "rl", KeyStrategy: "user"}, c); got != "rl:user:42" {
		t.Errorf("user key = %q", got)
	}
}

func TestRedisCache(t *testing.T) {
	rdb := newRedis(t)
	cfg := config.CacheConfig{
		Enabled:      true,
		Methods:      map[string]bool{http.MethodGet: true},
		TTL:          30 * time.Second,
		Prefix:       "cache",
		MaxBodyBytes: 1 << 20,
	}
	var calls atomic.Int32
	h := func(c echo.Context) error {
		n := calls.Add(1)
		return c.JSON(http.StatusOK, echo.Map{"id": c.Param("id"), "call": n})
	}
	e := echo.New()
	mw := NewRedisCache(cfg, rdb)
	e.GET("/packages/:id", h, mw)
	e.POST("/packages/:id", h, mw)

	miss := serve(e, http.MethodGet, "/packages/1", "")
	hit := serve(e, http.MethodGet, "/packages/1", "")
	if miss.Header().Get("X-Cache") != "MISS" || hit.Header().Get("X-Cache") != "HIT" {
		t.Fatalf("X-Cache = %q then %q", miss.Header().Get("X-Cache"), hit.Header().Get("X-Cache"))
	}
	if hit.Body.String() != miss.Body.String() || calls.Load() != 1 {
		t.Fatalf("cached body %q vs %q after %d calls", hit.Body.String(), miss.Body.String(), calls.Load())
	}
	if hit.Header().Get(echo.HeaderContentType) != echo.MIMEApplicationJSON {
		t.Fatalf("content type not restored: %q", hit.Header().Get(echo.HeaderContentType))
	}

	if other := serve(e, http.MethodGet, "/packages/2", ""); other.Header().Get("X-Cache") != "MISS" {
		t.Fatal("different id served from cache")
	}
	serve(e, http.MethodPost, "/packages/1", "")
	if calls.Load() != 3 {
		t.Fatalf("POST should bypass cache, calls = %d", calls.Load())
	}

	if err := NewCachePurger(cfg, rdb).Purge(t.Context()); err != nil {
		t.Fatalf("purge: %v", err)
	}
	if again := serve(e, http.MethodGet, "/packages/1", ""); again.Header().Get("X-Cache") != "MISS" {
		t.Fatal("purged entry still served")
	}
}

func TestCacheSkipsOversizedBodies(t *testing.T) {
	rdb := newRedis(t)
	cfg := config.CacheConfig{Enabled: true, Methods: map[string]bool{http.MethodGet: true}, TTL: time.Minute, Prefix: "cache", MaxBodyBytes: 8}
	e := echo.New()
	e.GET("/big", func(c echo.Context) error { return c.String(http.StatusOK, strings.Repeat("x", 64)) }, NewRedisCache(cfg, rdb))

	serve(e, http.MethodGet, "/big", "")
	if rec := serve(e, http.MethodGet, "/big", ""); rec.Header().Get("X-Cache") != "MISS" || rec.Body.Len() != 64 {
		t.Fatalf("oversized body cached: %q len=%d", rec.Header().Get("X-Cache"), rec.Body.Len())
	}
}
