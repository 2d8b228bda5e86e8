package loadtest

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"pi-benchmark/piseries"
	"pi-benchmark/piseries/application"
)

var ErrInvalidResponse = errors.New("loadtest: invalid response")

// Expected devolve o corpo que o servidor deve mandar para iterations.
func Expected(iterations uint64) string {
	return piseries.FormatBody(application.Compute(iterations))
}

// Validate confere body contra o cálculo local.
func Validate(body string, iterations uint64) error {
	return check(body, Expected(iterations))
}

// check exige uma linha do corpo exatamente igual a expected.
func check(body, expected string) error {
	for _, line := range strings.Split(strings.TrimSpace(body), "\n") {
		if strings.TrimRight(line, "\r") == expected {
			return nil
		}
	}
	return fmt.Errorf("%w: %q (expected: %q)", ErrInvalidResponse, strings.TrimSpace(body), expected)
}

// RequestURL monta `<base>/?iterations=<n>`.
func RequestURL(base string, iterations uint64) string {
	return strings.TrimRight(base, "/") + application.Marker + strconv.FormatUint(iterations, 10)
}
