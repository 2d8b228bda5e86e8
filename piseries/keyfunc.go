package piseries

import (
	"net"
	"strings"

	"pi-benchmark/piseries/domain"
)

// KeyFunc extrai a chave de rate limit/estatística de uma conexão.
type KeyFunc func(c net.Conn) domain.Key

// RemoteKey usa o IP remoto (sem porta) como chave.
func RemoteKey(c net.Conn) domain.Key {
	addr := c.RemoteAddr()
	if addr == nil {
		return "unknown"
	}
	if tcp, ok := addr.(*net.TCPAddr); ok && tcp.IP != nil {
		return domain.Key(tcp.IP.String())
	}

	raw := strings.TrimSpace(addr.String())
	host, _, err := net.SplitHostPort(raw)
	if err == nil && host != "" {
		return domain.Key(host)
	}
	if raw != "" {
		return domain.Key(raw)
	}
	return "unknown"
}
