package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"pi-benchmark/piseries"
	"pi-benchmark/piseries/domain"
	"pi-benchmark/piseries/infra"

	"github.com/redis/go-redis/v9"
)

func main() {
	cfg, err := readConfig()
	if err != nil {
		log.Fatalf("config error: %v", err)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	opts := piseries.Options{
		MaxConcurrent:  cfg.concurrencyMax,
		AcquireTimeout: cfg.concurrencyTimeout,
		ReadTimeout:    cfg.readTimeout,
		WriteTimeout:   cfg.writeTimeout,
		LingerTimeout:  cfg.lingerTimeout,
		MaxIterations:  cfg.maxIterations,
	}

	if cfg.rateEnabled {
		store := infra.NewStore(cfg.rateRPS, cfg.rateBurst)
		store.StartJanitor(ctx)
		opts.Store = store
	}

	stats, closeStats, err := openStats(ctx, cfg)
	if err != nil {
		log.Fatalf("stats error: %v", err)
	}
	defer closeStats()
	opts.Stats = stats

	ln, err := net.Listen("tcp", cfg.listenAddr)
	if err != nil {
		log.Fatalf("listen error: %v", err)
	}

	log.Printf("pi-server listening on %s (rate: enabled=%v rps=%.3f burst=%d; concurrency: max=%d acquireTimeout=%s; stats=%q)",
		ln.Addr(), cfg.rateEnabled, cfg.rateRPS, cfg.rateBurst, cfg.concurrencyMax, cfg.concurrencyTimeout, cfg.statsBackend)

	if err := piseries.NewServer(opts).Serve(ctx, ln); err != nil {
		log.Fatalf("server error: %v", err)
	}
}

// openStats monta o backend de estatísticas escolhido em STATS_BACKEND.
func openStats(ctx context.Context, cfg config) (domain.StatsStore, func(), error) {
	noop := func() {}

	switch cfg.statsBackend {
	case "":
		return nil, noop, nil

	case "memory":
		mem := infra.NewMemoryStatsStore(infra.WithTrackKeys(cfg.statsTrackKeys))
		if cfg.statsLogEvery > 0 {
			go logTotals(ctx, mem, cfg.statsLogEvery)
		}
		return mem, noop, nil

	case "redis":
		rdb := redis.NewClient(&redis.Options{
			Addr:     cfg.statsRedisAddr,
			Password: cfg.statsRedisPassword,
			DB:       cfg.statsRedisDB,
		})

		pingCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
		_, err := rdb.Ping(pingCtx).Result()
		cancel()
		if err != nil {
			_ = rdb.Close()
			return nil, noop, fmt.Errorf("redis ping: %w", err)
		}

		store := infra.NewRedisStatsStore(
			rdb,
			infra.WithStatsPrefix(cfg.statsRedisPrefix),
			infra.WithStatsTTL(cfg.statsRedisTTL),
			infra.WithStatsBucket(cfg.statsRedisBucket),
			infra.WithStatsTrackKeys(cfg.statsTrackKeys),
		)
		return store, func() { _ = rdb.Close() }, nil

	case "sqlite":
		store, err := infra.NewSQLiteStatsStore(cfg.statsSQLitePath)
		if err != nil {
			return nil, noop, err
		}
		return store, func() { _ = store.Close() }, nil
	}
	return nil, noop, fmt.Errorf("unknown STATS_BACKEND %q", cfg.statsBackend)
}

func logTotals(ctx context.Context, mem *infra.MemoryStatsStore, every time.Duration) {
	t := time.NewTicker(every)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			total := mem.Total()
			parts := make([]string, 0, len(domain.Outcomes))
			for _, o := range domain.Outcomes {
				parts = append(parts, fmt.Sprintf("%s=%d", o, total.ByOutcome[o]))
			}
			log.Printf("stats: %s iterations=%d", strings.Join(parts, " "), total.Iterations)
		}
	}
}

type config struct {
	listenAddr         string
	readTimeout        time.Duration
	writeTimeout       time.Duration
	lingerTimeout      time.Duration
	maxIterations      uint64
	rateEnabled        bool
	rateRPS            float64
	rateBurst          int
	concurrencyMax     int
	concurrencyTimeout time.Duration

	statsBackend       string
	statsLogEvery      time.Duration
	statsTrackKeys     bool
	statsRedisAddr     string
	statsRedisPassword string
	statsRedisDB       int
	statsRedisPrefix   string
	statsRedisTTL      time.Duration
	statsRedisBucket   string
	statsSQLitePath    string
}

func readConfig() (config, error) {
	cfg := config{}
	cfg.listenAddr = getenvDefault("LISTEN_ADDR", ":3000")
	cfg.readTimeout = getenvDurationDefault("READ_TIMEOUT", 10*time.Second)
	cfg.writeTimeout = getenvDurationDefault("WRITE_TIMEOUT", 10*time.Second)
	cfg.lingerTimeout = getenvDurationDefault("LINGER_TIMEOUT", 250*time.Millisecond)
	cfg.rateEnabled = getenvBoolDefault("RATE_ENABLED", false)
	cfg.rateRPS = getenvFloatDefault("RATE_RPS", 10)
	// com RPS < 1 e burst padrão as primeiras ~20 conexões passariam direto
	if burst, ok := getenvInt("RATE_BURST"); ok {
		cfg.rateBurst = burst
	} else {
		cfg.rateBurst = 20
		if getenvIsSet("RATE_RPS") && cfg.rateRPS > 0 && cfg.rateRPS < 1 {
			cfg.rateBurst = 1
		}
	}
	cfg.concurrencyMax = getenvIntDefault("CONCURRENCY_MAX", 0)
	cfg.concurrencyTimeout = getenvDurationDefault("CONCURRENCY_TIMEOUT", 0)

	cfg.statsBackend = strings.ToLower(strings.TrimSpace(os.Getenv("STATS_BACKEND")))
	cfg.statsLogEvery = getenvDurationDefault("STATS_LOG_EVERY", 0)
	cfg.statsTrackKeys = getenvBoolDefault("STATS_TRACK_KEYS", false)
	cfg.statsRedisAddr = getenvDefault("STATS_REDIS_ADDR", "")
	cfg.statsRedisPassword = os.Getenv("STATS_REDIS_PASSWORD")
	cfg.statsRedisDB = getenvIntDefault("STATS_REDIS_DB", 0)
	cfg.statsRedisPrefix = getenvDefault("STATS_REDIS_PREFIX", "pi:stats")
	cfg.statsRedisTTL = getenvDurationDefault("STATS_REDIS_TTL", 24*time.Hour)
	cfg.statsRedisBucket = getenvDefault("STATS_REDIS_BUCKET", "minute")
	cfg.statsSQLitePath = getenvDefault("STATS_SQLITE_PATH", "data/pi-stats.db")

	if v := os.Getenv("MAX_ITERATIONS"); v != "" {
		n, err := strconv.ParseUint(v, 10, 64)
		if err != nil {
			return config{}, fmt.Errorf("MAX_ITERATIONS: %w", err)
		}
		cfg.maxIterations = n
	}

	switch cfg.statsBackend {
	case "", "memory", "redis", "sqlite":
	default:
		return config{}, fmt.Errorf("STATS_BACKEND must be memory, redis or sqlite, got %q", cfg.statsBackend)
	}
	if cfg.statsBackend == "redis" && strings.TrimSpace(cfg.statsRedisAddr) == "" {
		return config{}, errors.New("STATS_REDIS_ADDR is required when STATS_BACKEND=redis")
	}
	if cfg.rateEnabled && cfg.rateRPS <= 0 {
		return config{}, errors.New("RATE_RPS must be > 0")
	}
	if cfg.rateEnabled && cfg.rateBurst <= 0 {
		return config{}, errors.New("RATE_BURST must be > 0")
	}
	if cfg.concurrencyMax < 0 {
		return config{}, errors.New("CONCURRENCY_MAX must be >= 0")
	}
	return cfg, nil
}

func getenvDefault(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}

func getenvIntDefault(k string, def int) int {
	v := os.Getenv(k)
	if v == "" {
		return def
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return i
}

func getenvInt(k string) (int, bool) {
	v, ok := os.LookupEnv(k)
	if !ok || v == "" {
		return 0, false
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return 0, false
	}
	return i, true
}

func getenvIsSet(k string) bool {
	v, ok := os.LookupEnv(k)
	return ok && v != ""
}

func getenvFloatDefault(k string, def float64) float64 {
	v := os.Getenv(k)
	if v == "" {
		return def
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return def
	}
	return f
}

func getenvBoolDefault(k string, def bool) bool {
	v := os.Getenv(k)
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return def
	}
	return b
}

func getenvDurationDefault(k string, def time.Duration) time.Duration {
	v := os.Getenv(k)
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return def
	}
	return d
}
