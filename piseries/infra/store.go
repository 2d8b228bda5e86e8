package infra

import (
	"context"
	"sync"
	"time"

	"pi-benchmark/piseries/domain"

	"golang.org/x/time/rate"
)

// Store mantém um token bucket (x/time/rate) por cliente, com limpeza periódica
// dos clientes que pararam de conectar.
type Store struct {
	mu           sync.Mutex
	clients      map[domain.Key]*client
	rps          rate.Limit
	burst        int
	idleTTL      time.Duration
	cleanupEvery time.Duration
}

type client struct {
	lim      *rate.Limiter
	lastSeen time.Time
}

type StoreOption func(*Store)

func WithIdleTTL(d time.Duration) StoreOption {
	return func(s *Store) { s.idleTTL = d }
}

func WithCleanupEvery(d time.Duration) StoreOption {
	return func(s *Store) { s.cleanupEvery = d }
}

func NewStore(rps float64, burst int, opts ...StoreOption) *Store {
	s := &Store{
		clients:      make(map[domain.Key]*client),
		rps:          rate.Limit(rps),
		burst:        burst,
		idleTTL:      10 * time.Minute,
		cleanupEvery: time.Minute,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Store) RPS() float64 { return float64(s.rps) }
func (s *Store) Burst() int   { return s.burst }

// Len devolve quantos clientes têm limiter ativo.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.clients)
}

// Get implementa domain.LimiterStore.
func (s *Store) Get(key domain.Key) domain.Limiter {
	return s.limiter(key)
}

func (s *Store) limiter(key domain.Key) *rate.Limiter {
	now := time.Now()

	s.mu.Lock()
	defer s.mu.Unlock()

	if c, ok := s.clients[key]; ok {
		c.lastSeen = now
		return c.lim
	}

	lim := rate.NewLimiter(s.rps, s.burst)
	s.clients[key] = &client{lim: lim, lastSeen: now}
	return lim
}

// Cleanup remove clientes sem conexão há mais de idleTTL.
func (s *Store) Cleanup() int {
	cutoff := time.Now().Add(-s.idleTTL)

	s.mu.Lock()
	defer s.mu.Unlock()

	removed := 0
	for k, c := range s.clients {
		if c.lastSeen.Before(cutoff) {
			delete(s.clients, k)
			removed++
		}
	}
	return removed
}

// StartJanitor inicia uma goroutine que chama Cleanup periodicamente.
// Pare cancelando o contexto.
func (s *Store) StartJanitor(ctx context.Context) {
	if s.cleanupEvery <= 0 {
		return
	}

	t := time.NewTicker(s.cleanupEvery)
	go func() {
		defer t.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-t.C:
				s.Cleanup()
			}
		}
	}()
}
