package ratelimit

import (
	"context"
	"fmt"
	"strings"
	"time"

	redis "github.com/redis/go-redis/v9"

	"github.com/smallbiznis/oceandata/internal/config"
)

const (
	keyUploadBucket = "oceandata:upload:ip:%s"
	keyUploadLock   = "oceandata:upload:lock:%s"

	// uploadLockTTL bounds how long a crashed request can hold a client's slot.
	uploadLockTTL = 2 * time.Minute
)

// UploadLimiter throttles dataset uploads per client address. A nil or
// disabled limiter allows everything.
type UploadLimiter struct {
	bucket *TokenBucket
	locker *Locker
	rate   float64
	burst  int
}

func NewUploadLimiter(cfg config.Config, client redis.UniversalClient) *UploadLimiter {
	if client == nil || cfg.UploadRatePerSecond <= 0 || cfg.UploadBurst <= 0 {
		return nil
	}
	return &UploadLimiter{
		bucket: NewTokenBucket(client),
		locker: NewLocker(client),
		rate:   cfg.UploadRatePerSecond,
		burst:  cfg.UploadBurst,
	}
}

func (l *UploadLimiter) Enabled() bool {
	return l != nil && l.bucket != nil
}

func (l *UploadLimiter) Allow(ctx context.Context, clientIP string) (Decision, error) {
	if !l.Enabled() {
		return Decision{Allowed: true}, nil
	}
	return l.bucket.Allow(ctx, fmt.Sprintf(keyUploadBucket, normalizeIP(clientIP)), l.rate, l.burst)
}

// Acquire reserves the single in-flight upload slot of a client. It returns
// a nil lease when another upload from the same address is running.
func (l *UploadLimiter) Acquire(ctx context.Context, clientIP string) (*Lease, bool, error) {
	if !l.Enabled() {
		return nil, true, nil
	}
	lease, err := l.locker.TryLock(ctx, fmt.Sprintf(keyUploadLock, normalizeIP(clientIP)), uploadLockTTL)
	if err != nil {
		return nil, false, err
	}
	return lease, lease != nil, nil
}

func normalizeIP(ip string) string {
	ip = strings.TrimSpace(ip)
	if ip == "" {
		return "unknown"
	}
	return ip
}
