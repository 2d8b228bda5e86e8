package application

import (
	"time"

	"pi-benchmark/piseries/domain"
)

// RateAdmission decide se uma conexão recém-aceita pode ser atendida pelo
// token bucket do cliente dela.
//
// Ele não sabe nada sobre sockets; o handler monta a domain.Conn e dropa a
// conexão quando a decisão é negativa.
type RateAdmission struct {
	Store      domain.LimiterStore
	RetryAfter time.Duration
}

func (a RateAdmission) Admit(conn domain.Conn) domain.Decision {
	if a.Store == nil {
		return domain.Decision{Allowed: true}
	}

	lim := a.Store.Get(conn.Key)
	if lim == nil || lim.Allow() {
		return domain.Decision{Allowed: true}
	}

	retry := a.RetryAfter
	if retry <= 0 {
		retry = time.Second
	}
	return domain.Decision{Allowed: false, RetryAfter: retry}
}
