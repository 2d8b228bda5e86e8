// Package loadtest é o lado cliente do benchmark: gera carga HTTP contra o
// servidor pi-series, valida cada corpo contra o cálculo local e resume
// vazão (RPS por segundo) e latência em percentis.
package loadtest
