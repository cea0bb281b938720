package ratelimit

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	redis "github.com/redis/go-redis/v9"
)

const lockReleaseScript = `
if redis.call("GET", KEYS[1]) == ARGV[1] then
  return redis.call("DEL", KEYS[1])
end
return 0
`

// Locker hands out exclusive, expiring leases on redis keys.
type Locker struct {
	client redis.UniversalClient
	script *redis.Script
}

// Lease is a held lock. Release only deletes the key while this lease still owns it.
type Lease struct {
	locker *Locker
	key    string
	token  string
}

func NewLocker(client redis.UniversalClient) *Locker {
	if client == nil {
		return nil
	}
	return &Locker{
		client: client,
		script: redis.NewScript(lockReleaseScript),
	}
}

// TryLock returns nil and no error when the key is already held.
func (l *Locker) TryLock(ctx context.Context, key string, ttl time.Duration) (*Lease, error) {
	if l == nil || l.client == nil {
		return nil, ErrNotConfigured
	}
	if key == "" {
		return nil, ErrEmptyKey
	}
	if ttl <= 0 {
		return nil, errors.New("lock ttl must be positive")
	}

	token := uuid.NewString()
	ok, err := l.client.SetNX(ctx, key, token, ttl).Result()
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, nil
	}
	return &Lease{locker: l, key: key, token: token}, nil
}

func (l *Lease) Release(ctx context.Context) error {
	if l == nil || l.locker == nil {
		return nil
	}
	return l.locker.script.Run(ctx, l.locker.client, []string{l.key}, l.token).Err()
}
