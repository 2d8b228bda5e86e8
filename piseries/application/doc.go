// Package application contém os casos de uso do servidor pi-series:
// o cálculo da série, a interpretação da linha de requisição e a admissão
// de conexões (decisão de rate limit, aquisição de vaga com timeout).
//
// Ele depende apenas do pacote domain e não conhece net.
// Ex.: Compute(5) retorna um domain.Result; RateAdmission.Admit(conn) retorna uma Decision.
package application
