package loadtest

import "errors"

var ErrEmpty = errors.New("loadtest: percentile of empty slice")

// P1 devolve o percentil 1 de valores já ordenados, evitando o mínimo quando possível.
func P1[T any](sorted []T) (T, error) { return pHigher(sorted, 0.01) }

// P50 devolve a mediana (inferior) de valores já ordenados.
func P50[T any](sorted []T) (T, error) { return pLower(sorted, 0.5) }

// P99 devolve o percentil 99 de valores já ordenados, evitando o máximo quando possível.
func P99[T any](sorted []T) (T, error) { return pLower(sorted, 0.99) }

func pLower[T any](v []T, p float64) (T, error) {
	var zero T
	if len(v) == 0 {
		return zero, ErrEmpty
	}
	i := int(float64(len(v)) * p)
	if i > 0 {
		i--
	}
	return v[i], nil
}

func pHigher[T any](v []T, p float64) (T, error) {
	var zero T
	if len(v) == 0 {
		return zero, ErrEmpty
	}
	i := int(float64(len(v)) * p)
	if i == 0 && len(v) > 1 {
		i = 1
	}
	return v[i], nil
}
