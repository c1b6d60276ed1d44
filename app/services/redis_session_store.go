package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/amirphl/faredown-pricing/pricing"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

var _ pricing.SessionStore = (*RedisSessionStore)(nil)

// ErrSessionLockTimeout is returned when another worker holds a session for too long
var ErrSessionLockTimeout = errors.New("timed out waiting for bargain session lock")

// releaseLock deletes the lock only when it still carries our token
var releaseLock = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// refreshLock extends the lock only while it still carries our token
var refreshLock = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("PEXPIRE", KEYS[1], ARGV[2])
end
return 0
`)

// RedisSessionStore keeps bargain sessions in Redis so every API replica sees the same state.
// Update holds a SETNX lock per session key for the duration of fn and refreshes it while
// fn runs, so a slow commit cannot let a second writer in.
type RedisSessionStore struct {
	rc       *redis.Client
	prefix   string
	keyTTL   time.Duration
	lockTTL  time.Duration
	lockWait time.Duration
}

type RedisSessionOption func(*RedisSessionStore)

// WithSessionLockTTL sets how long a lock outlives a crashed holder
func WithSessionLockTTL(ttl time.Duration) RedisSessionOption {
	return func(s *RedisSessionStore) {
		if ttl > 0 {
			s.lockTTL = ttl
		}
	}
}

// NewRedisSessionStore creates the store. keyTTL bounds how long any session survives in Redis.
func NewRedisSessionStore(rc *redis.Client, prefix string, keyTTL time.Duration, opts ...RedisSessionOption) *RedisSessionStore {
	s := &RedisSessionStore{
		rc:       rc,
		prefix:   prefix,
		keyTTL:   keyTTL,
		lockTTL:  5 * time.Second,
		lockWait: 3 * time.Second,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *RedisSessionStore) sessionKey(key pricing.SessionKey) string {
	return fmt.Sprintf("%s:bargain:%s:%s", s.prefix, key.SessionID, key.LineItemID)
}

func (s *RedisSessionStore) lockKey(key pricing.SessionKey) string {
	return fmt.Sprintf("%s:bargain_lock:%s:%s", s.prefix, key.SessionID, key.LineItemID)
}

func (s *RedisSessionStore) Get(ctx context.Context, key pricing.SessionKey) (*pricing.BargainSession, error) {
	return s.read(ctx, s.sessionKey(key))
}

func (s *RedisSessionStore) read(ctx context.Context, redisKey string) (*pricing.BargainSession, error) {
	bs, err := s.rc.Get(ctx, redisKey).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read bargain session: %w", err)
	}
	var sess pricing.BargainSession
	if err := json.Unmarshal(bs, &sess); err != nil {
		return nil, fmt.Errorf("failed to decode bargain session: %w", err)
	}
	return &sess, nil
}

func (s *RedisSessionStore) Update(ctx context.Context, key pricing.SessionKey, fn pricing.UpdateFunc) error {
	lockKey := s.lockKey(key)
	token, err := s.acquire(ctx, lockKey)
	if err != nil {
		return err
	}
	stopRefresh := s.keepAlive(lockKey, token)
	defer func() {
		stopRefresh()
		_ = releaseLock.Run(context.Background(), s.rc, []string{lockKey}, token).Err()
	}()

	redisKey := s.sessionKey(key)
	current, err := s.read(ctx, redisKey)
	if err != nil {
		return err
	}

	next, fnErr := fn(current)
	if next != nil {
		bs, err := json.Marshal(next)
		if err != nil {
			return fmt.Errorf("failed to encode bargain session: %w", err)
		}
		if err := s.rc.Set(ctx, redisKey, bs, s.keyTTL).Err(); err != nil {
			return fmt.Errorf("failed to write bargain session: %w", err)
		}
	}
	return fnErr
}

func (s *RedisSessionStore) acquire(ctx context.Context, lockKey string) (string, error) {
	token := uuid.NewString()
	deadline := time.Now().Add(s.lockWait)
	backoff := 5 * time.Millisecond

	for {
		ok, err := s.rc.SetNX(ctx, lockKey, token, s.lockTTL).Result()
		if err != nil {
			return "", fmt.Errorf("failed to acquire bargain session lock: %w", err)
		}
		if ok {
			return token, nil
		}
		if time.Now().After(deadline) {
			return "", ErrSessionLockTimeout
		}

		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-time.After(backoff):
		}
		if backoff < 100*time.Millisecond {
			backoff *= 2
		}
	}
}

// keepAlive re-arms the lock TTL every third of its length until the returned func is called
func (s *RedisSessionStore) keepAlive(lockKey, token string) func() {
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})

	go func() {
		defer close(done)
		interval := s.lockTTL / 3
		if interval <= 0 {
			interval = time.Millisecond
		}
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				held, err := refreshLock.Run(ctx, s.rc, []string{lockKey}, token, s.lockTTL.Milliseconds()).Int()
				if err == nil && held == 0 {
					// someone else owns the key now, nothing left to refresh
					return
				}
			}
		}
	}()

	return func() {
		cancel()
		<-done
	}
}

// SweepExpired scans every session key, expiring overdue ones and deleting terminal
// sessions past retention. Keys Redis already evicted are simply gone.
func (s *RedisSessionStore) SweepExpired(ctx context.Context, now time.Time, retention time.Duration) (int, error) {
	pattern := s.prefix + ":bargain:*"
	expired := 0

	iter := s.rc.Scan(ctx, 0, pattern, 200).Iterator()
	for iter.Next(ctx) {
		redisKey := iter.Val()
		sess, err := s.read(ctx, redisKey)
		if err != nil || sess == nil {
			continue
		}

		drop := false
		err = s.Update(ctx, sess.Key, func(cur *pricing.BargainSession) (*pricing.BargainSession, error) {
			if cur == nil {
				return nil, nil
			}
			if cur.ExpireIfDue(now) {
				expired++
				return cur, nil
			}
			if cur.Terminal() && retention > 0 && now.Sub(cur.UpdatedAt) > retention {
				drop = true
			}
			return nil, nil
		})
		if err != nil {
			return expired, err
		}
		if drop {
			if err := s.rc.Del(ctx, redisKey).Err(); err != nil {
				return expired, err
			}
		}
	}
	if err := iter.Err(); err != nil {
		return expired, fmt.Errorf("failed to scan bargain sessions: %w", err)
	}
	return expired, nil
}
