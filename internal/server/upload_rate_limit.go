package server

import (
	"math"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/smallbiznis/oceandata/internal/observability/logger"
)

const (
	rateLimitReasonClientRate = "client-rate"
	rateLimitReasonInFlight   = "client-in-flight"
)

// UploadRateLimit throttles upload routes per client address. Redis failures
// fail open so uploads keep working without the limiter.
func (s *Server) UploadRateLimit() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !s.uploadLimiter.Enabled() {
			c.Next()
			return
		}

		ctx := c.Request.Context()
		log := logger.FromContext(ctx)
		endpoint := normalizeRateLimitEndpoint(c)
		clientIP := c.ClientIP()

		decision, err := s.uploadLimiter.Allow(ctx, clientIP)
		if err != nil {
			log.Warn("upload rate limit check failed", zap.String("endpoint", endpoint), zap.Error(err))
			c.Next()
			return
		}
		c.Header("X-RateLimit-Limit", strconv.Itoa(decision.Limit))
		c.Header("X-RateLimit-Remaining", strconv.Itoa(decision.Remaining))
		if !decision.Allowed {
			seconds := int(math.Ceil(decision.RetryAfter.Seconds()))
			if seconds < 1 {
				seconds = 1
			}
			c.Header("Retry-After", strconv.Itoa(seconds))
			s.denyUpload(c, endpoint, rateLimitReasonClientRate, ErrRateLimited)
			return
		}

		lease, acquired, err := s.uploadLimiter.Acquire(ctx, clientIP)
		if err != nil {
			log.Warn("upload concurrency lock failed", zap.String("endpoint", endpoint), zap.Error(err))
			c.Next()
			return
		}
		if !acquired {
			c.Header("Retry-After", "1")
			s.denyUpload(c, endpoint, rateLimitReasonInFlight, ErrUploadInProgress)
			return
		}
		defer func() {
			if err := lease.Release(ctx); err != nil {
				log.Warn("upload concurrency unlock failed", zap.Error(err))
			}
		}()

		c.Next()
	}
}

func (s *Server) denyUpload(c *gin.Context, endpoint, reason string, err error) {
	ctx := c.Request.Context()
	logger.FromContext(ctx).Warn("upload rate limit exceeded",
		zap.String("reason", reason),
		zap.String("endpoint", endpoint),
	)
	s.obsMetrics.RecordRateLimitDenied(ctx, endpoint, reason)

	c.Header("X-Rate-Limited-Reason", reason)
	AbortWithError(c, err)
}

func normalizeRateLimitEndpoint(c *gin.Context) string {
	endpoint := strings.TrimSpace(c.FullPath())
	if endpoint == "" {
		endpoint = strings.TrimSpace(c.Request.URL.Path)
	}
	if endpoint == "" {
		endpoint = "unknown"
	}
	return endpoint
}
