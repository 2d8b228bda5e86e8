// Package piseries é o servidor de benchmark pi-series sobre socket TCP puro.
//
// Visão geral (camadas):
//
//   - domain: contratos e tipos (Request, Result, Limiter, SlotPool, StatsEvent)
//   - application: cálculo da série, parse da linha de requisição, decisões de admissão
//   - infra: implementações concretas (token bucket, semáforo, stats em memória/Redis/SQLite)
//   - piseries (este pacote): loop de accept, handler de conexão e formatação da resposta
//
// Fluxo de uma conexão:
//
//  1. Serve aceita a conexão e dispara uma goroutine
//  2. o handler aplica limite de concorrência e rate limit por IP
//  3. lê só a linha de requisição (`GET /?iterations=<n> HTTP/1.1`)
//  4. calcula e escreve `HTTP/1.1 200 OK`, linha vazia e `<pi>;<sum>;<acc>`
//  5. fecha a conexão
//
// Linha sem o marcador, número inválido ou cliente barrado pela admissão:
// a conexão é fechada sem resposta. Não existe caminho com status de erro.
package piseries
