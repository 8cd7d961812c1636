package ratelimit

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func TestDefaultSignupConfig(t *testing.T) {
	cfg := DefaultSignupConfig()
	assert.Equal(t, float64(2), cfg.Rate)
	assert.Equal(t, 5, cfg.Burst)
	assert.Equal(t, time.Minute, cfg.CleanupInterval)
	assert.Equal(t, 5*time.Minute, cfg.MaxAge)
}

func TestAllowWithinBurst(t *testing.T) {
	rl := New(Config{Rate: 1, Burst: 5, CleanupInterval: time.Hour, MaxAge: time.Hour})
	defer rl.Stop()

	for i := 0; i < 5; i++ {
		assert.True(t, rl.Allow("192.168.1.1"), "request %d should be allowed", i)
	}
	assert.False(t, rl.Allow("192.168.1.1"))
}

func TestAllowSeparateIPs(t *testing.T) {
	rl := New(Config{Rate: 1, Burst: 2, CleanupInterval: time.Hour, MaxAge: time.Hour})
	defer rl.Stop()

	rl.Allow("192.168.1.1")
	rl.Allow("192.168.1.1")
	assert.False(t, rl.Allow("192.168.1.1"))

	assert.True(t, rl.Allow("192.168.1.2"))
}

func TestTokensRefill(t *testing.T) {
	rl := New(Config{Rate: 100, Burst: 1, CleanupInterval: time.Hour, MaxAge: time.Hour})
	defer rl.Stop()

	assert.True(t, rl.Allow("192.168.1.1"))
	assert.False(t, rl.Allow("192.168.1.1"))

	time.Sleep(20 * time.Millisecond)
	assert.True(t, rl.Allow("192.168.1.1"))
}

func TestEvictStale(t *testing.T) {
	rl := New(Config{Rate: 1, Burst: 1, CleanupInterval: time.Hour, MaxAge: 10 * time.Millisecond})
	defer rl.Stop()

	rl.Allow("192.168.1.1")
	rl.Allow("192.168.1.2")
	require.Equal(t, 2, rl.Len())

	time.Sleep(20 * time.Millisecond)
	rl.evictStale()
	assert.Equal(t, 0, rl.Len())
}

func TestDefaultsAppliedForZeroValues(t *testing.T) {
	rl := New(Config{Rate: 1, Burst: 1})
	defer rl.Stop()

	assert.Equal(t, time.Minute, rl.config.CleanupInterval)
	assert.Equal(t, 5*time.Minute, rl.config.MaxAge)
}

func TestMiddlewareRejectsOverLimit(t *testing.T) {
	rl := New(Config{Rate: 1, Burst: 2, CleanupInterval: time.Hour, MaxAge: time.Hour})
	defer rl.Stop()

	engine := gin.New()
	engine.POST("/signup", rl.Middleware(), func(c *gin.Context) {
		c.JSON(http.StatusCreated, gin.H{"ok": true})
	})

	do := func() int {
		rec := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodPost, "/signup", nil)
		req.RemoteAddr = "10.0.0.1:12345"
		engine.ServeHTTP(rec, req)
		return rec.Code
	}

	assert.Equal(t, http.StatusCreated, do())
	assert.Equal(t, http.StatusCreated, do())
	assert.Equal(t, http.StatusTooManyRequests, do())
}
