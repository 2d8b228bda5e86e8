package piseries

import (
	"bufio"
	"context"
	"errors"
	"io"
	"net"
	"time"

	"pi-benchmark/piseries/application"
	"pi-benchmark/piseries/domain"
)

const (
	maxLineBytes  = 8 << 10
	maxDrainBytes = 64 << 10
)

var ErrLineTooLong = errors.New("piseries: request line too long")

// handleConn é dono exclusivo de c e o fecha em qualquer caminho, antes de
// gravar a estatística: o cliente recebe o FIN sem esperar o backend.
func (s *Server) handleConn(ctx context.Context, c net.Conn, accepted time.Time) {
	ev := domain.StatsEvent{Key: "unknown", Outcome: domain.OutcomeFailed, At: accepted}

	defer func() {
		if p := recover(); p != nil {
			s.log.Printf("pi: conn %s: panic: %v", ev.Key, p)
			ev.Outcome = domain.OutcomeFailed
		}
		ev.Duration = time.Since(accepted)
		s.closeConn(c)
		s.record(ctx, ev)
	}()

	conn := domain.Conn{Key: s.opts.KeyFn(c), Accepted: accepted}
	ev.Key = conn.Key

	release, dec := s.slots.Admit(ctx, conn)
	if !dec.Allowed {
		ev.Outcome = domain.OutcomeRejected
		s.log.Printf("pi: conn %s: no free slot after %s", conn.Key, dec.Waited.Round(time.Millisecond))
		return
	}
	defer release()

	s.active.Add(1)
	defer s.active.Add(-1)

	if dec := s.rate.Admit(conn); !dec.Allowed {
		ev.Outcome = domain.OutcomeLimited
		s.log.Printf("pi: conn %s: rate limited (retry after %s)", conn.Key, dec.RetryAfter)
		return
	}

	ev.Outcome, ev.Iterations = s.serve(c, conn.Key)
}

// serve faz a troca request/response de uma conexão já admitida.
func (s *Server) serve(c net.Conn, key domain.Key) (domain.Outcome, uint64) {
	if s.opts.ReadTimeout > 0 {
		_ = c.SetReadDeadline(time.Now().Add(s.opts.ReadTimeout))
	}
	line, err := readRequestLine(bufio.NewReaderSize(c, maxLineBytes))
	if err != nil {
		if errors.Is(err, io.EOF) {
			return domain.OutcomeDropped, 0
		}
		s.log.Printf("pi: conn %s: read: %v", key, err)
		return domain.OutcomeFailed, 0
	}

	req, err := application.ParseRequestLine(line)
	if errors.Is(err, application.ErrNoMarker) {
		return domain.OutcomeDropped, 0
	}
	if err == nil {
		err = application.CheckLimit(req, s.opts.MaxIterations)
	}
	if err != nil {
		s.log.Printf("pi: conn %s: %v", key, err)
		return domain.OutcomeInvalid, 0
	}

	res := application.Compute(req.Iterations)

	if s.opts.WriteTimeout > 0 {
		_ = c.SetWriteDeadline(time.Now().Add(s.opts.WriteTimeout))
	}
	if _, err := io.WriteString(c, formatResponse(res)); err != nil {
		s.log.Printf("pi: conn %s: write: %v", key, err)
		return domain.OutcomeFailed, req.Iterations
	}
	return domain.OutcomeServed, req.Iterations
}

// readRequestLine devolve a primeira linha; uma linha parcial antes do EOF vale.
func readRequestLine(br *bufio.Reader) (string, error) {
	line, err := br.ReadSlice('\n')
	switch {
	case err == nil:
		return string(line), nil
	case errors.Is(err, bufio.ErrBufferFull):
		return "", ErrLineTooLong
	case errors.Is(err, io.EOF) && len(line) > 0:
		return string(line), nil
	default:
		return "", err
	}
}

// closeConn fecha primeiro a escrita e descarta o que o cliente ainda mandar
// (headers) por LingerTimeout; fechar com dados não lidos gera RST e o cliente
// pode perder a resposta.
func (s *Server) closeConn(c net.Conn) {
	if cw, ok := c.(interface{ CloseWrite() error }); ok && s.opts.LingerTimeout > 0 {
		if cw.CloseWrite() == nil {
			_ = c.SetReadDeadline(time.Now().Add(s.opts.LingerTimeout))
			_, _ = io.Copy(io.Discard, io.LimitReader(c, maxDrainBytes))
		}
	}
	_ = c.Close()
}
