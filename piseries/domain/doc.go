// Package domain define contratos e tipos de domínio do servidor pi-series.
//
// Este pacote não depende de net nem de implementações concretas.
// A intenção é permitir testes de unidade puros e desacoplar o cálculo,
// a admissão de conexões e as estatísticas dos detalhes de socket.
package domain
