package middleware

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"docchat-platform/internal/config"
	"docchat-platform/utils"

	"github.com/alicebob/miniredis/v2"
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
)

func rateLimitedRouter(t *testing.T, reqs, window int) (*gin.Engine, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})

	cfg := &config.Config{RateLimitReqs: reqs, RateLimitWindow: window}

	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.Use(RateLimitMiddleware(rdb, cfg))
	router.POST("/api/document/upload", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"ok": true})
	})
	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "healthy"})
	})
	return router, mr
}

func TestRateLimitAllowsUpToLimit(t *testing.T) {
	router, _ := rateLimitedRouter(t, 10, 60)

	for i := 1; i <= 10; i++ {
		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodPost, "/api/document/upload", nil)
		req.RemoteAddr = "10.1.2.3:5000"
		router.ServeHTTP(w, req)

		if w.Code != http.StatusOK {
			t.Fatalf("request %d: expected 200, got %d", i, w.Code)
		}
	}
}

func TestRateLimitRejectsOverLimit(t *testing.T) {
	router, _ := rateLimitedRouter(t, 10, 60)

	var last *httptest.ResponseRecorder
	for i := 1; i <= 11; i++ {
		last = httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodPost, "/api/document/upload", nil)
		req.RemoteAddr = "10.1.2.3:5000"
		router.ServeHTTP(last, req)
	}

	if last.Code != http.StatusTooManyRequests {
		t.Fatalf("expected 429 on the 11th request, got %d", last.Code)
	}

	var body utils.RateLimitBody
	if err := json.Unmarshal(last.Body.Bytes(), &body); err != nil {
		t.Fatalf("invalid 429 body: %v", err)
	}
	if body.Error == "" {
		t.Fatalf("429 body missing error message")
	}
	if body.Limit != 10 {
		t.Fatalf("expected limit 10, got %d", body.Limit)
	}
	if body.Remaining != 0 {
		t.Fatalf("expected remaining 0, got %d", body.Remaining)
	}
	if body.Reset < time.Now().Unix() {
		t.Fatalf("reset %d is in the past", body.Reset)
	}
	if last.Header().Get("X-RateLimit-Remaining") != "0" {
		t.Fatalf("expected X-RateLimit-Remaining 0, got %q", last.Header().Get("X-RateLimit-Remaining"))
	}
}

func TestRateLimitIsPerClientIP(t *testing.T) {
	router, _ := rateLimitedRouter(t, 2, 60)

	for _, addr := range []string{"10.0.0.1:1234", "10.0.0.2:1234"} {
		for i := 0; i < 2; i++ {
			w := httptest.NewRecorder()
			req := httptest.NewRequest(http.MethodPost, "/api/document/upload", nil)
			req.RemoteAddr = addr
			router.ServeHTTP(w, req)
			if w.Code != http.StatusOK {
				t.Fatalf("addr %s request %d: expected 200, got %d", addr, i+1, w.Code)
			}
		}
	}
}

func TestRateLimitWindowResets(t *testing.T) {
	router, mr := rateLimitedRouter(t, 1, 60)

	first := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/document/upload", nil)
	req.RemoteAddr = "10.1.2.3:5000"
	router.ServeHTTP(first, req)
	if first.Code != http.StatusOK {
		t.Fatalf("expected first request to pass, got %d", first.Code)
	}

	second := httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodPost, "/api/document/upload", nil)
	req.RemoteAddr = "10.1.2.3:5000"
	router.ServeHTTP(second, req)
	if second.Code != http.StatusTooManyRequests {
		t.Fatalf("expected second request rejected, got %d", second.Code)
	}

	mr.FastForward(61 * time.Second)

	third := httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodPost, "/api/document/upload", nil)
	req.RemoteAddr = "10.1.2.3:5000"
	router.ServeHTTP(third, req)
	if third.Code != http.StatusOK {
		t.Fatalf("expected request after window expiry to pass, got %d", third.Code)
	}
}

func TestRateLimitHealsCounterWithoutTTL(t *testing.T) {
	router, mr := rateLimitedRouter(t, 1, 60)

	// A counter stranded without an expiry must regain one on the next
	// request instead of limiting the address forever.
	mr.Set("ratelimit:10.1.2.3", "100")

	first := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/document/upload", nil)
	req.RemoteAddr = "10.1.2.3:5000"
	router.ServeHTTP(first, req)
	if first.Code != http.StatusTooManyRequests {
		t.Fatalf("expected the stranded counter to still limit, got %d", first.Code)
	}

	mr.FastForward(61 * time.Second)

	second := httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodPost, "/api/document/upload", nil)
	req.RemoteAddr = "10.1.2.3:5000"
	router.ServeHTTP(second, req)
	if second.Code != http.StatusOK {
		t.Fatalf("expected the counter to expire after the window, got %d", second.Code)
	}
}

func TestRateLimitSkipsHealthCheck(t *testing.T) {
	router, _ := rateLimitedRouter(t, 1, 60)

	for i := 0; i < 5; i++ {
		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/health", nil)
		req.RemoteAddr = "10.1.2.3:5000"
		router.ServeHTTP(w, req)
		if w.Code != http.StatusOK {
			t.Fatalf("health request %d rate limited", i+1)
		}
	}
}
