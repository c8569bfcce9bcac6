package middleware

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/wyfcoding/pantry/pkg/metrics"
	"github.com/wyfcoding/pantry/pkg/ratelimit"
)

const secret = "test-secret"

func init() {
	gin.SetMode(gin.TestMode)
}

func newRouter(mw ...gin.HandlerFunc) *gin.Engine {
	r := gin.New()
	r.Use(mw...)
	r.GET("/whoami", func(c *gin.Context) {
		id, _ := CurrentIdentity(c)
		c.JSON(http.StatusOK, gin.H{"userId": id.UserID, "role": id.Role})
	})
	return r
}

func do(r http.Handler, header string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, "/whoami", nil)
	if header != "" {
		req.Header.Set("Authorization", header)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestAuthMiddleware(t *testing.T) {
	r := newRouter(AuthMiddleware(secret))

	token, err := SignToken(secret, 42, RoleCustomer, time.Hour)
	require.NoError(t, err)

	t.Run("bearer token", func(t *testing.T) {
		w := do(r, "Bearer "+token)
		assert.Equal(t, http.StatusOK, w.Code)
		assert.JSONEq(t, `{"userId":42,"role":"customer"}`, w.Body.String())
	})

	t.Run("raw token", func(t *testing.T) {
		assert.Equal(t, http.StatusOK, do(r, token).Code)
	})

	t.Run("missing header", func(t *testing.T) {
		assert.Equal(t, http.StatusUnauthorized, do(r, "").Code)
	})

	t.Run("wrong secret", func(t *testing.T) {
		other, err := SignToken("other", 42, RoleCustomer, time.Hour)
		require.NoError(t, err)
		assert.Equal(t, http.StatusUnauthorized, do(r, "Bearer "+other).Code)
	})

	t.Run("expired", func(t *testing.T) {
		w := do(r, "Bearer "+expiredToken(t))
		assert.Equal(t, http.StatusUnauthorized, w.Code)
		assert.Contains(t, w.Body.String(), "token expired")
	})
}

func expiredToken(t *testing.T) string {
	t.Helper()
	claims := Claims{
		UserID: 42,
		Role:   RoleCustomer,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(-time.Hour)),
		},
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
	require.NoError(t, err)
	return token
}

func TestAdminOnly(t *testing.T) {
	r := newRouter(AuthMiddleware(secret), AdminOnly())

	customer, _ := SignToken(secret, 1, RoleCustomer, time.Hour)
	admin, _ := SignToken(secret, 2, RoleAdmin, time.Hour)

	assert.Equal(t, http.StatusForbidden, do(r, "Bearer "+customer).Code)
	assert.Equal(t, http.StatusOK, do(r, "Bearer "+admin).Code)
}

type stubLimiter struct {
	decision ratelimit.Decision
	err      error
	subjects []string
}

func (s *stubLimiter) Allow(_ context.Context, subject string) (ratelimit.Decision, error) {
	s.subjects = append(s.subjects, subject)
	return s.decision, s.err
}

func TestRateLimitMiddleware(t *testing.T) {
	token, _ := SignToken(secret, 7, RoleCustomer, time.Hour)

	t.Run("rejects when over limit and keys by user", func(t *testing.T) {
		lim := &stubLimiter{decision: ratelimit.Decision{Limit: 5, RetryAfter: 1500 * time.Millisecond}}
		r := newRouter(AuthMiddleware(secret), RateLimitMiddleware(lim))
		w := do(r, "Bearer "+token)
		assert.Equal(t, http.StatusTooManyRequests, w.Code)
		assert.Equal(t, "2", w.Header().Get("Retry-After"))
		assert.Equal(t, "5", w.Header().Get("X-RateLimit-Limit"))
		assert.Contains(t, w.Body.String(), "rate_limited")
		assert.Equal(t, []string{"user:7"}, lim.subjects)
	})

	t.Run("allows and reports remaining", func(t *testing.T) {
		lim := &stubLimiter{decision: ratelimit.Decision{Allowed: true, Limit: 5, Remaining: 4}}
		r := newRouter(AuthMiddleware(secret), RateLimitMiddleware(lim))
		w := do(r, "Bearer "+token)
		assert.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, "4", w.Header().Get("X-RateLimit-Remaining"))
	})

	t.Run("fails open on limiter error", func(t *testing.T) {
		lim := &stubLimiter{err: errors.New("redis down")}
		r := newRouter(AuthMiddleware(secret), RateLimitMiddleware(lim))
		assert.Equal(t, http.StatusOK, do(r, "Bearer "+token).Code)
	})

	t.Run("keys anonymous callers by ip", func(t *testing.T) {
		lim := &stubLimiter{decision: ratelimit.Decision{Allowed: true}}
		r := newRouter(RateLimitMiddleware(lim))
		req := httptest.NewRequest(http.MethodGet, "/whoami", nil)
		req.RemoteAddr = "10.0.0.9:5123"
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)
		assert.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, []string{"ip:10.0.0.9"}, lim.subjects)
	})

	t.Run("nil limiter", func(t *testing.T) {
		r := newRouter(RateLimitMiddleware(nil))
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/whoami", nil))
		assert.Equal(t, http.StatusOK, w.Code)
	})
}

func TestRecoveryAndLogging(t *testing.T) {
	r := gin.New()
	r.Use(GinLoggingMiddleware(), GinRecoveryMiddleware())
	r.GET("/panic", func(*gin.Context) { panic("kaboom") })

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/panic", nil))

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.NotEmpty(t, w.Header().Get(RequestIDHeader))
	assert.Contains(t, w.Body.String(), "internal_error")
}

func TestGinMetricsMiddleware(t *testing.T) {
	m := metrics.New("test")
	require.NoError(t, m.Register(prometheus.NewRegistry()))

	r := gin.New()
	r.Use(GinMetricsMiddleware(m))
	r.GET("/items/:id", func(c *gin.Context) { c.Status(http.StatusOK) })

	for i := 0; i < 2; i++ {
		r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/items/9", nil))
	}

	assert.Equal(t, 2.0, testutil.ToFloat64(m.HTTPRequestsTotal.WithLabelValues("GET", "/items/:id", "200")))
}
