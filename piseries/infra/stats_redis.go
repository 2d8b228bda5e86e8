package infra

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"pi-benchmark/piseries/domain"

	"github.com/redis/go-redis/v9"
)

// RedisStatsStore grava contadores por desfecho em hashes:
//
//	<prefix>:total               campo = outcome (+ "iterations")
//	<prefix>:minute:<yyyymmddHHMM> idem, com TTL
//	<prefix>:key:<ip>            idem, com TTL (só com trackKeys)
type RedisStatsStore struct {
	rdb *redis.Client

	prefix string
	// ttl aplica apenas em chaves de série temporal / por key.
	// total é cumulativo e não expira.
	ttl time.Duration

	bucket string // "minute" (padrão) ou "none"

	trackKeys bool
}

type RedisStatsOption func(*RedisStatsStore)

func WithStatsPrefix(prefix string) RedisStatsOption {
	return func(s *RedisStatsStore) {
		s.prefix = strings.Trim(prefix, ":")
	}
}

func WithStatsTTL(d time.Duration) RedisStatsOption {
	return func(s *RedisStatsStore) { s.ttl = d }
}

func WithStatsBucket(bucket string) RedisStatsOption {
	return func(s *RedisStatsStore) { s.bucket = strings.ToLower(strings.TrimSpace(bucket)) }
}

func WithStatsTrackKeys(track bool) RedisStatsOption {
	return func(s *RedisStatsStore) { s.trackKeys = track }
}

func NewRedisStatsStore(rdb *redis.Client, opts ...RedisStatsOption) *RedisStatsStore {
	s := &RedisStatsStore{
		rdb:    rdb,
		prefix: "pi:stats",
		ttl:    24 * time.Hour,
		bucket: "minute",
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *RedisStatsStore) Record(ctx context.Context, ev domain.StatsEvent) error {
	if s == nil || s.rdb == nil {
		return nil
	}

	at := ev.At
	if at.IsZero() {
		at = time.Now()
	}

	keys := []string{s.prefix + ":total"}
	expiring := map[string]bool{}

	if s.bucket == "minute" {
		k := s.minuteKey(at)
		keys = append(keys, k)
		expiring[k] = true
	}
	if s.trackKeys {
		if ip := strings.TrimSpace(string(ev.Key)); ip != "" {
			k := s.prefix + ":key:" + ip
			keys = append(keys, k)
			expiring[k] = true
		}
	}

	pipe := s.rdb.Pipeline()
	for _, k := range keys {
		pipe.HIncrBy(ctx, k, string(ev.Outcome), 1)
		if ev.Outcome == domain.OutcomeServed && ev.Iterations > 0 {
			pipe.HIncrBy(ctx, k, "iterations", int64(ev.Iterations))
		}
		if expiring[k] && s.ttl > 0 {
			pipe.Expire(ctx, k, s.ttl)
		}
	}

	_, err := pipe.Exec(ctx)
	return err
}

// Total lê o hash cumulativo.
func (s *RedisStatsStore) Total(ctx context.Context) (map[string]int64, error) {
	if s == nil || s.rdb == nil {
		return map[string]int64{}, nil
	}
	raw, err := s.rdb.HGetAll(ctx, s.prefix+":total").Result()
	if err != nil {
		return nil, err
	}
	out := make(map[string]int64, len(raw))
	for k, v := range raw {
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("redis stats: field %s: %w", k, err)
		}
		out[k] = n
	}
	return out, nil
}

func (s *RedisStatsStore) minuteKey(at time.Time) string {
	return fmt.Sprintf("%s:minute:%s", s.prefix, at.UTC().Format("200601021504"))
}
