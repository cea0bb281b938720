package server

import (
	"net/http"
	"testing"

	"github.com/alicebob/miniredis/v2"
	redis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/smallbiznis/oceandata/internal/config"
	"github.com/smallbiznis/oceandata/internal/ratelimit"
)

func TestUploadRateLimit(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	limiter := ratelimit.NewUploadLimiter(config.Config{UploadRatePerSecond: 0.01, UploadBurst: 1}, client)
	ts := newTestServer(t, config.Config{}, limiter)
	upload := func() *http.Request {
		return multipartRequest(t, "/api/datasets/upload", "dataset", "reef.csv", []byte("a\n1\n"), map[string]string{"name": "x", "source": "NOAA"})
	}

	w := ts.do(upload())
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "1", w.Header().Get("X-RateLimit-Limit"))

	w = ts.do(upload())
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.NotEmpty(t, w.Header().Get("Retry-After"))
	assert.Equal(t, "client-rate", w.Header().Get("X-Rate-Limited-Reason"))
	body := decodeError(t, w)
	assert.Equal(t, "rate_limited", body.Type)

	assert.False(t, mr.Exists("oceandata:upload:lock:192.0.2.1"), "lease is released after the request")
}

func TestUploadRateLimitFailsOpen(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	mr.Close()

	limiter := ratelimit.NewUploadLimiter(config.Config{UploadRatePerSecond: 1, UploadBurst: 1}, client)
	ts := newTestServer(t, config.Config{}, limiter)

	w := ts.do(multipartRequest(t, "/api/datasets/upload", "dataset", "reef.csv", []byte("a\n1\n"), map[string]string{"name": "x", "source": "NOAA"}))
	assert.Equal(t, http.StatusOK, w.Code)
}
