package domain

// Regras de admissão de conexões: rate limit por cliente e limite de concorrência.

import (
	"context"
	"time"
)

type Key string

// Conn é o que a admissão enxerga de uma conexão aceita: a chave do cliente e
// o instante do accept. O prazo de espera por vaga conta a partir de Accepted.
type Conn struct {
	Key      Key
	Accepted time.Time
}

// Limiter representa algo que pode decidir se uma ação é permitida agora.
//
// A camada de infra usa golang.org/x/time/rate (token bucket).
type Limiter interface {
	Allow() bool
}

// LimiterStore obtém um limiter por chave (ex: IP do cliente).
type LimiterStore interface {
	Get(Key) Limiter
}

// Decision é a resposta da admissão para uma Conn.
type Decision struct {
	Allowed bool
	// Waited é quanto a conexão esperou por vaga desde o accept.
	Waited time.Duration
	// RetryAfter é só informativo (log); o protocolo não tem status de erro.
	RetryAfter time.Duration
}

// SlotPool representa um recurso com capacidade finita (conexões em andamento).
//
// Acquire bloqueia até conseguir uma vaga ou até o ctx encerrar.
// Ao adquirir, retorna uma função de release que deve ser chamada exatamente uma vez.
type SlotPool interface {
	Acquire(ctx context.Context) (release func(), ok bool)
}
