package redisstore

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"linksort/internal/scheduler"
)

// Store keeps job state blobs and alarms in Redis. Alarms share one sorted set
// scored by fire time in unix milliseconds.
type Store struct {
	rdb    *redis.Client
	prefix string
}

// Config holds Redis connection configuration.
type Config struct {
	URL       string
	Password  string
	KeyPrefix string
}

// clearIfAtScript removes an alarm only when its score still matches.
var clearIfAtScript = redis.NewScript(`
local score = redis.call('ZSCORE', KEYS[1], ARGV[1])
if score and tonumber(score) == tonumber(ARGV[2]) then
  return redis.call('ZREM', KEYS[1], ARGV[1])
end
return 0
`)

// ownedScript sets or deletes a job record only when its JSON job_id equals
// ARGV[1].
var ownedScript = redis.NewScript(`
local cur = redis.call('GET', KEYS[1])
if not cur then
  return 0
end
local ok, doc = pcall(cjson.decode, cur)
if not ok or type(doc) ~= 'table' or doc['job_id'] ~= ARGV[1] then
  return 0
end
if ARGV[2] == 'set' then
  redis.call('SET', KEYS[1], ARGV[3])
else
  redis.call('DEL', KEYS[1])
end
return 1
`)

// Open parses cfg.URL, connects, and verifies the server answers PING.
func Open(ctx context.Context, cfg Config) (*Store, error) {
	opts, err := redis.ParseURL(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	if cfg.Password != "" {
		opts.Password = cfg.Password
	}
	rdb := redis.NewClient(opts)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("connect to redis: %w", err)
	}
	return New(rdb, cfg.KeyPrefix), nil
}

// New wraps an existing client.
func New(rdb *redis.Client, prefix string) *Store {
	prefix = strings.TrimSpace(prefix)
	if prefix == "" {
		prefix = "linksort"
	}
	return &Store{rdb: rdb, prefix: prefix}
}

// Close closes the Redis connection.
func (s *Store) Close() error {
	return s.rdb.Close()
}

// Ping verifies the server is reachable.
func (s *Store) Ping(ctx context.Context) error {
	return s.rdb.Ping(ctx).Err()
}

func (s *Store) jobKey(key string) string {
	return fmt.Sprintf("%s:job:%s", s.prefix, key)
}

func (s *Store) alarmsKey() string {
	return s.prefix + ":alarms"
}

// GetBlob returns the job state blob stored under key.
func (s *Store) GetBlob(ctx context.Context, key string) ([]byte, bool, error) {
	data, err := s.rdb.Get(ctx, s.jobKey(key)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("get job state %s: %w", key, err)
	}
	return data, true, nil
}

// UpdateBlob replaces blob under key only while the stored record belongs to
// owner.
func (s *Store) UpdateBlob(ctx context.Context, key, owner string, blob []byte) (bool, error) {
	n, err := ownedScript.Run(ctx, s.rdb, []string{s.jobKey(key)}, owner, "set", blob).Int()
	if err != nil {
		return false, fmt.Errorf("update job state %s: %w", key, err)
	}
	return n == 1, nil
}

// DeleteOwnedBlob removes key only while the stored record belongs to owner.
func (s *Store) DeleteOwnedBlob(ctx context.Context, key, owner string) (bool, error) {
	n, err := ownedScript.Run(ctx, s.rdb, []string{s.jobKey(key)}, owner, "del").Int()
	if err != nil {
		return false, fmt.Errorf("release job state %s: %w", key, err)
	}
	return n == 1, nil
}

// CreateBlob writes blob only when key is absent.
func (s *Store) CreateBlob(ctx context.Context, key string, blob []byte) (bool, error) {
	ok, err := s.rdb.SetNX(ctx, s.jobKey(key), blob, 0).Result()
	if err != nil {
		return false, fmt.Errorf("create job state %s: %w", key, err)
	}
	return ok, nil
}

// DeleteBlob removes key and reports whether it existed.
func (s *Store) DeleteBlob(ctx context.Context, key string) (bool, error) {
	n, err := s.rdb.Del(ctx, s.jobKey(key)).Result()
	if err != nil {
		return false, fmt.Errorf("delete job state %s: %w", key, err)
	}
	return n > 0, nil
}

// ArmAlarm sets the fire time for id, replacing any previous one.
func (s *Store) ArmAlarm(ctx context.Context, id string, at time.Time) error {
	z := redis.Z{Score: float64(at.UnixMilli()), Member: id}
	if err := s.rdb.ZAdd(ctx, s.alarmsKey(), z).Err(); err != nil {
		return fmt.Errorf("arm alarm %s: %w", id, err)
	}
	return nil
}

// GetAlarm returns the fire time for id, if armed.
func (s *Store) GetAlarm(ctx context.Context, id string) (time.Time, bool, error) {
	score, err := s.rdb.ZScore(ctx, s.alarmsKey(), id).Result()
	if errors.Is(err, redis.Nil) {
		return time.Time{}, false, nil
	}
	if err != nil {
		return time.Time{}, false, fmt.Errorf("get alarm %s: %w", id, err)
	}
	return time.UnixMilli(int64(score)).UTC(), true, nil
}

// DueAlarms lists alarms firing at or before now, oldest first.
func (s *Store) DueAlarms(ctx context.Context, now time.Time) ([]scheduler.Alarm, error) {
	results, err := s.rdb.ZRangeByScoreWithScores(ctx, s.alarmsKey(), &redis.ZRangeBy{
		Min: "-inf",
		Max: strconv.FormatInt(now.UnixMilli(), 10),
	}).Result()
	if err != nil {
		return nil, fmt.Errorf("list due alarms: %w", err)
	}
	alarms := make([]scheduler.Alarm, 0, len(results))
	for _, z := range results {
		id, ok := z.Member.(string)
		if !ok {
			continue
		}
		alarms = append(alarms, scheduler.Alarm{ID: id, FireAt: time.UnixMilli(int64(z.Score)).UTC()})
	}
	return alarms, nil
}

// ClearAlarmIfAt removes the alarm for id only when it still fires at at.
func (s *Store) ClearAlarmIfAt(ctx context.Context, id string, at time.Time) (bool, error) {
	n, err := clearIfAtScript.Run(ctx, s.rdb, []string{s.alarmsKey()}, id, at.UnixMilli()).Int()
	if err != nil {
		return false, fmt.Errorf("clear alarm %s: %w", id, err)
	}
	return n > 0, nil
}

// ClearAlarm removes the alarm for id unconditionally.
func (s *Store) ClearAlarm(ctx context.Context, id string) error {
	if err := s.rdb.ZRem(ctx, s.alarmsKey(), id).Err(); err != nil {
		return fmt.Errorf("clear alarm %s: %w", id, err)
	}
	return nil
}
