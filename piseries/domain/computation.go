package domain

// Request é a linha de requisição já interpretada.
//
// Só existe durante uma troca request/response; nada aqui é compartilhado
// entre conexões.
type Request struct {
	Method     string
	Path       string
	Query      map[string]string
	Proto      string
	Iterations uint64
}

// Result é o resultado imutável da série de Leibniz com as duas estatísticas
// auxiliares.
type Result struct {
	// Pi já multiplicado por 4.
	Pi float64
	// Sum é a soma corrente das parciais (sem o fator 4).
	Sum float64
	// Accumulator varia conforme x mod 3.
	Accumulator float64
}
