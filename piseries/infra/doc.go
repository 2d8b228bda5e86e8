// Package infra contém implementações concretas (infraestrutura) para os contratos
// definidos no pacote domain.
//
// Exemplos:
//   - Store: token bucket por IP usando golang.org/x/time/rate
//   - ChanPool: semáforo simples para limite de conexões em andamento
//   - MemoryStatsStore, RedisStatsStore, SQLiteStatsStore: estatísticas de conexão
package infra
