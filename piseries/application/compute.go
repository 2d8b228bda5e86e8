package application

import "pi-benchmark/piseries/domain"

// Compute aproxima pi pela série de Leibniz e devolve também a soma corrente
// das parciais e o acumulador mod 3.
//
// Função pura: pode ser chamada concorrentemente sem coordenação.
func Compute(iterations uint64) domain.Result {
	pi := 0.0
	denominator := 1.0
	sum := 0.0
	acc := 0.0

	for x := uint64(0); x < iterations; x++ {
		if x%2 == 0 {
			pi += 1 / denominator
		} else {
			pi -= 1 / denominator
		}
		denominator += 2

		sum += pi
		switch x % 3 {
		case 0:
			acc += pi
		case 1:
			acc -= pi
		case 2:
			acc /= 2
		}
	}

	pi *= 4
	return domain.Result{Pi: pi, Sum: sum, Accumulator: acc}
}
