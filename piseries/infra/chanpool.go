package infra

import (
	"context"
	"sync/atomic"

	"pi-benchmark/piseries/domain"
)

// ChanPool é um semáforo baseado em channel com capacidade fixa.
type ChanPool struct {
	sem   chan struct{}
	inUse atomic.Int64
}

// NewChanPool cria um pool com `max` vagas.
func NewChanPool(max int) *ChanPool {
	return &ChanPool{sem: make(chan struct{}, max)}
}

var _ domain.SlotPool = (*ChanPool)(nil)

func (p *ChanPool) Acquire(ctx context.Context) (func(), bool) {
	select {
	case p.sem <- struct{}{}:
		p.inUse.Add(1)
		var once atomic.Bool
		return func() {
			if once.CompareAndSwap(false, true) {
				p.inUse.Add(-1)
				<-p.sem
			}
		}, true
	case <-ctx.Done():
		return nil, false
	}
}

// InUse devolve quantas vagas estão ocupadas agora.
func (p *ChanPool) InUse() int { return int(p.inUse.Load()) }

func (p *ChanPool) Cap() int { return cap(p.sem) }
