package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"campusmarket-be/internal/auth"
	"campusmarket-be/internal/logger"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "test-secret"

func TestRequestID(t *testing.T) {
	var seen string
	nextHandler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = logger.RequestIDFrom(r.Context())
		w.WriteHeader(http.StatusTeapot)
	})

	handler := LoggingMiddleware(nextHandler)

	t.Run("Generates ID when missing", func(t *testing.T) {
		req := httptest.NewRequest("GET", "/test", nil)
		w := httptest.NewRecorder()

		handler.ServeHTTP(w, req)

		assert.NotEmpty(t, seen)
		assert.Equal(t, seen, w.Header().Get(RequestIDHeader))
		assert.Equal(t, http.StatusTeapot, w.Code)
	})

	t.Run("Preserves existing ID", func(t *testing.T) {
		req := httptest.NewRequest("GET", "/test", nil)
		req.Header.Set(RequestIDHeader, "test-id-123")
		w := httptest.NewRecorder()

		handler.ServeHTTP(w, req)

		assert.Equal(t, "test-id-123", seen)
	})
}

func TestAuth(t *testing.T) {
	mw := AuthMiddleware(testSecret)

	t.Run("Missing Token", func(t *testing.T) {
		next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			_, ok := auth.PrincipalFrom(r.Context())
			assert.False(t, ok, "Context should not contain a principal")
			w.WriteHeader(http.StatusOK)
		})

		req := httptest.NewRequest("GET", "/protected", nil)
		w := httptest.NewRecorder()

		mw(next).ServeHTTP(w, req)

		assert.Equal(t, http.StatusOK, w.Code)
	})

	t.Run("Invalid Token", func(t *testing.T) {
		req := httptest.NewRequest("GET", "/protected", nil)
		req.Header.Set("Authorization", "Bearer invalid-token")
		w := httptest.NewRecorder()

		mw(http.NotFoundHandler()).ServeHTTP(w, req)

		assert.Equal(t, http.StatusUnauthorized, w.Code)
		assert.JSONEq(t, `{"error":"invalid or expired token"}`, w.Body.String())
	})

	t.Run("Valid Token", func(t *testing.T) {
		tokenString, err := auth.IssueToken(testSecret, auth.Principal{ID: 1, Role: auth.RoleDelivery}, time.Hour)
		require.NoError(t, err)

		req := httptest.NewRequest("GET", "/protected", nil)
		req.Header.Set("Authorization", "Bearer "+tokenString)
		w := httptest.NewRecorder()

		next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			p, ok := auth.PrincipalFrom(r.Context())
			assert.True(t, ok)
			assert.Equal(t, auth.Principal{ID: 1, Role: auth.RoleDelivery}, p)
			w.WriteHeader(http.StatusOK)
		})

		mw(next).ServeHTTP(w, req)

		assert.Equal(t, http.StatusOK, w.Code)
	})

	t.Run("Cookie Token", func(t *testing.T) {
		tokenString, err := auth.IssueToken(testSecret, auth.Principal{ID: 9, Role: auth.RoleBuyer}, time.Hour)
		require.NoError(t, err)

		req := httptest.NewRequest("GET", "/protected", nil)
		req.AddCookie(&http.Cookie{Name: auth.AccessTokenCookie, Value: tokenString})
		w := httptest.NewRecorder()

		var got auth.Principal
		mw(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			got, _ = auth.PrincipalFrom(r.Context())
		})).ServeHTTP(w, req)

		assert.Equal(t, int64(9), got.ID)
	})

	t.Run("Expired Token", func(t *testing.T) {
		token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
			"user_id": 1,
			"role":    "buyer",
			"exp":     time.Now().Add(-time.Hour).Unix(),
		})
		tokenString, err := token.SignedString([]byte(testSecret))
		assert.NoError(t, err)

		req := httptest.NewRequest("GET", "/protected", nil)
		req.Header.Set("Authorization", "Bearer "+tokenString)
		w := httptest.NewRecorder()

		mw(http.NotFoundHandler()).ServeHTTP(w, req)

		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})

	t.Run("Malformed Header", func(t *testing.T) {
		req := httptest.NewRequest("GET", "/protected", nil)
		req.Header.Set("Authorization", "Basic user:pass")
		w := httptest.NewRecorder()

		next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			_, ok := auth.PrincipalFrom(r.Context())
			assert.False(t, ok)
			w.WriteHeader(http.StatusOK)
		})

		mw(next).ServeHTTP(w, req)

		assert.Equal(t, http.StatusOK, w.Code)
	})
}

func TestRequireAuth(t *testing.T) {
	ok := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusOK) })

	t.Run("Anonymous", func(t *testing.T) {
		w := httptest.NewRecorder()
		RequireAuth(ok).ServeHTTP(w, httptest.NewRequest("GET", "/", nil))
		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})

	t.Run("Authenticated", func(t *testing.T) {
		req := httptest.NewRequest("GET", "/", nil)
		req = req.WithContext(auth.WithPrincipal(req.Context(), auth.Principal{ID: 1, Role: auth.RoleBuyer}))
		w := httptest.NewRecorder()

		RequireAuth(ok).ServeHTTP(w, req)
		assert.Equal(t, http.StatusOK, w.Code)
	})
}

func TestRateLimiter(t *testing.T) {
	ok := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusOK) })

	t.Run("StrictTierForWebhook", func(t *testing.T) {
		h := NewRateLimiter("").Middleware(ok)

		codes := make([]int, 0, burstStrict+1)
		for i := 0; i < burstStrict+1; i++ {
			req := httptest.NewRequest("POST", StrictPath, nil)
			req.RemoteAddr = "10.0.0.1:1234"
			w := httptest.NewRecorder()
			h.ServeHTTP(w, req)
			codes = append(codes, w.Code)
		}

		assert.Equal(t, http.StatusOK, codes[0])
		assert.Equal(t, http.StatusTooManyRequests, codes[burstStrict])
	})

	t.Run("SeparateBucketsPerUser", func(t *testing.T) {
		h := NewRateLimiter("").Middleware(ok)

		send := func(id int64) int {
			req := httptest.NewRequest("POST", StrictPath, nil)
			req = req.WithContext(auth.WithPrincipal(context.Background(), auth.Principal{ID: id, Role: auth.RoleBuyer}))
			w := httptest.NewRecorder()
			h.ServeHTTP(w, req)
			return w.Code
		}

		for i := 0; i < burstStrict; i++ {
			send(1)
		}
		assert.Equal(t, http.StatusTooManyRequests, send(1))
		assert.Equal(t, http.StatusOK, send(2))
	})

	t.Run("TierResolution", func(t *testing.T) {
		l := NewRateLimiter("svc-key")

		req := httptest.NewRequest("GET", "/cart", nil)
		req.Header.Set("X-Service-Auth", "svc-key")
		_, _, tier := l.resolveRateTier(req)
		assert.Equal(t, "internal", tier)

		req = httptest.NewRequest("GET", "/cart", nil)
		req.Header.Set("X-Client-Type", "frontend-heavy")
		_, _, tier = l.resolveRateTier(req)
		assert.Equal(t, "frontend", tier)

		_, _, tier = l.resolveRateTier(httptest.NewRequest("GET", "/cart", nil))
		assert.Equal(t, "general", tier)
	})

	t.Run("EvictIdle", func(t *testing.T) {
		l := NewRateLimiter("")
		l.getVisitor("ip:1:general", limitGeneral, burstGeneral)

		l.evictIdle(time.Now().Add(visitorIdle + time.Second))

		assert.Empty(t, l.visitors)
	})
}
