package domain

import (
	"context"
	"time"
)

// Outcome é o desfecho de uma conexão.
type Outcome string

const (
	OutcomeServed   Outcome = "served"
	OutcomeDropped  Outcome = "dropped"
	OutcomeInvalid  Outcome = "invalid"
	OutcomeFailed   Outcome = "failed"
	OutcomeLimited  Outcome = "limited"
	OutcomeRejected Outcome = "rejected"
)

// Outcomes lista todos os desfechos na ordem usada em relatórios.
var Outcomes = []Outcome{
	OutcomeServed,
	OutcomeDropped,
	OutcomeInvalid,
	OutcomeFailed,
	OutcomeLimited,
	OutcomeRejected,
}

// StatsEvent descreve uma conexão encerrada.
//
// Observação: cuidado com cardinalidade de Key (IP) em bases como Redis.
type StatsEvent struct {
	Key     Key
	Outcome Outcome

	// Iterations só é preenchido quando a linha foi interpretada.
	Iterations uint64
	Duration   time.Duration

	At time.Time
}

// StatsStore é a estratégia de persistência das estatísticas de conexão.
//
// Implementações podem armazenar em Redis, SQLite, memória, etc.
// O servidor trata erro como best-effort (não derruba a conexão).
type StatsStore interface {
	Record(ctx context.Context, ev StatsEvent) error
}
