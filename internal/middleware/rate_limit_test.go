package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
)

func TestRateLimitBlocksAfterLimit(t *testing.T) {
	gin.SetMode(gin.TestMode)

	router := gin.New()
	router.Use(RequestID())
	router.Use(RateLimit(5, time.Minute))
	router.GET("/attention", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"items": []string{}})
	})

	send := func() int {
		req := httptest.NewRequest("GET", "/attention", nil)
		req.RemoteAddr = "192.168.1.1:12345"
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)
		return w.Code
	}

	for i := 0; i < 5; i++ {
		if code := send(); code != http.StatusOK {
			t.Errorf("Request %d: Expected status 200, got %d", i+1, code)
		}
	}

	if code := send(); code != http.StatusTooManyRequests {
		t.Errorf("Expected status 429 past the limit, got %d", code)
	}
}

func TestRateLimitTracksIPsSeparately(t *testing.T) {
	gin.SetMode(gin.TestMode)

	router := gin.New()
	router.Use(RateLimit(2, time.Minute))
	router.GET("/attention", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"items": []string{}})
	})

	for i := 0; i < 3; i++ {
		req := httptest.NewRequest("GET", "/attention", nil)
		req.Header.Set("X-Forwarded-For", "10.0.0.1")
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)
	}

	req := httptest.NewRequest("GET", "/attention", nil)
	req.Header.Set("X-Forwarded-For", "10.0.0.2")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Errorf("Different IP should not be rate limited, got %d", w.Code)
	}
}

func TestRateLimiterAllow(t *testing.T) {
	limiter := NewRateLimiter(2, 50*time.Millisecond)

	if !limiter.Allow("10.0.0.1") || !limiter.Allow("10.0.0.1") {
		t.Fatal("Expected first two requests allowed")
	}
	if limiter.Allow("10.0.0.1") {
		t.Error("Expected third request denied")
	}
	if !limiter.Allow("10.0.0.2") {
		t.Error("Expected separate budget per IP")
	}

	// Window rollover clears the counts
	time.Sleep(60 * time.Millisecond)
	if !limiter.Allow("10.0.0.1") {
		t.Error("Expected allowance after the window reset")
	}
}
