package infra

import (
	"context"
	"sync"

	"pi-benchmark/piseries/domain"
)

// Counters agrega conexões por desfecho.
type Counters struct {
	ByOutcome  map[domain.Outcome]int64
	Iterations uint64
}

func (c Counters) clone() Counters {
	out := Counters{ByOutcome: make(map[domain.Outcome]int64, len(c.ByOutcome)), Iterations: c.Iterations}
	for k, v := range c.ByOutcome {
		out.ByOutcome[k] = v
	}
	return out
}

func (c *Counters) add(ev domain.StatsEvent) {
	if c.ByOutcome == nil {
		c.ByOutcome = make(map[domain.Outcome]int64)
	}
	c.ByOutcome[ev.Outcome]++
	if ev.Outcome == domain.OutcomeServed {
		c.Iterations += ev.Iterations
	}
}

// MemoryStatsStore é uma implementação simples em memória.
// Útil para testes e para o log periódico do binário.
//
// Não faz expiração.
type MemoryStatsStore struct {
	mu    sync.Mutex
	total Counters
	byKey map[domain.Key]Counters

	trackKeys bool
}

type MemoryStatsOption func(*MemoryStatsStore)

func WithTrackKeys(track bool) MemoryStatsOption {
	return func(s *MemoryStatsStore) { s.trackKeys = track }
}

func NewMemoryStatsStore(opts ...MemoryStatsOption) *MemoryStatsStore {
	s := &MemoryStatsStore{
		byKey: make(map[domain.Key]Counters),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *MemoryStatsStore) Record(_ context.Context, ev domain.StatsEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.total.add(ev)
	if s.trackKeys {
		c := s.byKey[ev.Key]
		c.add(ev)
		s.byKey[ev.Key] = c
	}
	return nil
}

func (s *MemoryStatsStore) Total() Counters {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.total.clone()
}

func (s *MemoryStatsStore) ByKey() map[domain.Key]Counters {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[domain.Key]Counters, len(s.byKey))
	for k, v := range s.byKey {
		out[k] = v.clone()
	}
	return out
}
