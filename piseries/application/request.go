package application

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"pi-benchmark/piseries/domain"
)

// Marker é o único padrão de caminho aceito.
const Marker = "/?iterations="

var (
	// ErrNoMarker indica que a linha não segue o padrão; a conexão é descartada sem resposta.
	ErrNoMarker = errors.New("application: request line without iterations marker")
	// ErrBadIterations indica que o valor de iterations não é um inteiro não negativo.
	ErrBadIterations = errors.New("application: invalid iterations value")
	// ErrTooManyIterations indica que o valor passou do limite configurado.
	ErrTooManyIterations = errors.New("application: iterations above limit")
)

// ParseRequestLine interpreta a linha de requisição no formato mínimo
// `GET /?iterations=<n> HTTP/1.1`.
//
// A linha é dividida no marcador e precisa resultar em exatamente dois pedaços;
// o primeiro token (até o primeiro espaço) do segundo pedaço é o número.
// Qualquer outra coisa na query (ex: `&x=1`) faz o número falhar.
func ParseRequestLine(line string) (domain.Request, error) {
	line = strings.TrimRight(line, "\r\n")

	parts := strings.Split(line, Marker)
	if len(parts) != 2 {
		return domain.Request{}, ErrNoMarker
	}

	token, proto, _ := strings.Cut(parts[1], " ")
	n, err := strconv.ParseUint(token, 10, 64)
	if err != nil {
		return domain.Request{}, fmt.Errorf("%w: %q", ErrBadIterations, token)
	}

	method, _, _ := strings.Cut(parts[0], " ")
	return domain.Request{
		Method:     method,
		Path:       "/",
		Query:      map[string]string{"iterations": token},
		Proto:      strings.TrimSpace(proto),
		Iterations: n,
	}, nil
}

// CheckLimit aplica o limite de iterations (0 = sem limite).
func CheckLimit(req domain.Request, max uint64) error {
	if max > 0 && req.Iterations > max {
		return fmt.Errorf("%w: %d > %d", ErrTooManyIterations, req.Iterations, max)
	}
	return nil
}
