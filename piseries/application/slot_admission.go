package application

import (
	"context"
	"time"

	"pi-benchmark/piseries/domain"
)

// SlotAdmission reserva uma vaga de conexão em andamento para uma conexão aceita.
type SlotAdmission struct {
	Pool domain.SlotPool
	// AcquireTimeout conta a partir de Conn.Accepted, não da chamada a Admit.
	// <= 0 espera até ctx cancelar.
	AcquireTimeout time.Duration
}

// Admit devolve (release, decisão). Com Allowed=false nenhuma vaga foi
// reservada e release é nil; com Allowed=true release deve ser chamado
// exatamente uma vez.
func (a SlotAdmission) Admit(ctx context.Context, conn domain.Conn) (func(), domain.Decision) {
	if a.Pool == nil {
		return func() {}, domain.Decision{Allowed: true}
	}
	accepted := conn.Accepted
	if accepted.IsZero() {
		accepted = time.Now()
	}

	acqCtx := ctx
	if a.AcquireTimeout > 0 {
		var cancel context.CancelFunc
		acqCtx, cancel = context.WithDeadline(ctx, accepted.Add(a.AcquireTimeout))
		defer cancel()
	}

	release, ok := a.Pool.Acquire(acqCtx)
	dec := domain.Decision{Allowed: ok, Waited: time.Since(accepted)}
	if !ok {
		return nil, dec
	}
	return release, dec
}
