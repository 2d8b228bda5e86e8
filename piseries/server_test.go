package piseries

import (
	"context"
	"errors"
	"io"
	"net"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"pi-benchmark/piseries/application"
	"pi-benchmark/piseries/domain"
	"pi-benchmark/piseries/infra"
)

func startServer(t *testing.T, opts Options) (*Server, string) {
	t.Helper()
	if opts.Logger == nil {
		opts.Logger, _ = newTestLogger()
	}
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}

	srv := NewServer(opts)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- srv.Serve(ctx, ln) }()

	t.Cleanup(func() {
		cancel()
		select {
		case err := <-done:
			if err != nil {
				t.Errorf("serve returned %v", err)
			}
		case <-time.After(3 * time.Second):
			t.Errorf("serve did not stop")
		}
	})
	return srv, ln.Addr().String()
}

func dial(t *testing.T, addr string) net.Conn {
	t.Helper()
	c, err := net.DialTimeout("tcp", addr, time.Second)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	_ = c.SetDeadline(time.Now().Add(3 * time.Second))
	return c
}

// roundTrip envia payload e lê até o servidor fechar. Reset conta como "sem resposta".
func roundTrip(t *testing.T, addr, payload string) string {
	t.Helper()
	c := dial(t, addr)
	defer c.Close()

	if _, err := io.WriteString(c, payload); err != nil {
		t.Fatalf("write: %v", err)
	}
	b, err := io.ReadAll(c)
	if err != nil && len(b) > 0 {
		t.Fatalf("read: %v", err)
	}
	return string(b)
}

// waitFor repete cond até ficar verdadeira; a estatística é gravada depois do close.
func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for %s", what)
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func expectedResponse(n uint64) string {
	return "HTTP/1.1 200 OK\r\n\r\n" + FormatBody(application.Compute(n)) + "\r\n"
}

func TestServe_AnswersRequestWithHeaders(t *testing.T) {
	_, addr := startServer(t, Options{LingerTimeout: 100 * time.Millisecond})

	got := roundTrip(t, addr, "GET /?iterations=5 HTTP/1.1\r\nHost: localhost\r\nUser-Agent: test\r\n\r\n")
	if got != expectedResponse(5) {
		t.Fatalf("expected %q, got %q", expectedResponse(5), got)
	}
}

func TestServe_SumHasSevenDigits(t *testing.T) {
	_, addr := startServer(t, Options{})

	got := roundTrip(t, addr, "GET /?iterations=1 HTTP/1.1\r\n")
	if !strings.HasSuffix(got, "\r\n\r\n4;1.0000000;1\r\n") {
		t.Fatalf("unexpected response %q", got)
	}
}

func TestServe_PartialLineThenHalfClose(t *testing.T) {
	_, addr := startServer(t, Options{})

	c := dial(t, addr)
	defer c.Close()
	_, _ = io.WriteString(c, "GET /?iterations=7 HTTP/1.1")
	if err := c.(*net.TCPConn).CloseWrite(); err != nil {
		t.Fatalf("close write: %v", err)
	}
	b, err := io.ReadAll(c)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if string(b) != expectedResponse(7) {
		t.Fatalf("unexpected response %q", b)
	}
}

func TestServe_MalformedRequestsDoNotStopListener(t *testing.T) {
	stats := infra.NewMemoryStatsStore()
	_, addr := startServer(t, Options{Stats: stats, LingerTimeout: 50 * time.Millisecond})

	if got := roundTrip(t, addr, "GET / HTTP/1.1\r\n\r\n"); got != "" {
		t.Fatalf("expected no response without marker, got %q", got)
	}
	if got := roundTrip(t, addr, "GET /?iterations=abc HTTP/1.1\r\n\r\n"); got != "" {
		t.Fatalf("expected no response for non-numeric iterations, got %q", got)
	}
	if got := roundTrip(t, addr, "GET /?iterations=3 HTTP/1.1\r\n\r\n"); got != expectedResponse(3) {
		t.Fatalf("expected listener to keep serving, got %q", got)
	}

	waitFor(t, "three outcomes", func() bool {
		total := stats.Total()
		return total.ByOutcome[domain.OutcomeDropped] == 1 &&
			total.ByOutcome[domain.OutcomeInvalid] == 1 &&
			total.ByOutcome[domain.OutcomeServed] == 1
	})
}

func TestServe_ClientClosingWithoutDataIsDropped(t *testing.T) {
	stats := infra.NewMemoryStatsStore()
	_, addr := startServer(t, Options{Stats: stats})

	c := dial(t, addr)
	_ = c.Close()

	if got := roundTrip(t, addr, "GET /?iterations=2 HTTP/1.1\r\n"); got != expectedResponse(2) {
		t.Fatalf("unexpected response %q", got)
	}

	waitFor(t, "one dropped connection", func() bool {
		return stats.Total().ByOutcome[domain.OutcomeDropped] == 1
	})
}

func TestServe_ConcurrentClients(t *testing.T) {
	_, addr := startServer(t, Options{})

	var wg sync.WaitGroup
	for i := 0; i < 32; i++ {
		n := uint64(i * 37)
		wg.Add(1)
		go func() {
			defer wg.Done()
			c, err := net.DialTimeout("tcp", addr, time.Second)
			if err != nil {
				t.Errorf("dial: %v", err)
				return
			}
			defer c.Close()
			_ = c.SetDeadline(time.Now().Add(3 * time.Second))
			_, _ = io.WriteString(c, "GET /?iterations="+strconv.FormatUint(n, 10)+" HTTP/1.1\r\n")
			b, err := io.ReadAll(c)
			if err != nil {
				t.Errorf("read: %v", err)
				return
			}
			if string(b) != expectedResponse(n) {
				t.Errorf("n=%d: unexpected response %q", n, b)
			}
		}()
	}
	wg.Wait()
}

func TestServe_SilentClientDoesNotBlockOthers(t *testing.T) {
	_, addr := startServer(t, Options{ReadTimeout: 2 * time.Second})

	silent := dial(t, addr)
	defer silent.Close()

	if got := roundTrip(t, addr, "GET /?iterations=4 HTTP/1.1\r\n"); got != expectedResponse(4) {
		t.Fatalf("unexpected response %q", got)
	}
}

func TestServe_RateLimitPerClient(t *testing.T) {
	stats := infra.NewMemoryStatsStore()
	_, addr := startServer(t, Options{Store: infra.NewStore(0.02, 1), Stats: stats})

	if got := roundTrip(t, addr, "GET /?iterations=1 HTTP/1.1\r\n"); got != expectedResponse(1) {
		t.Fatalf("expected first request served, got %q", got)
	}
	if got := roundTrip(t, addr, "GET /?iterations=1 HTTP/1.1\r\n"); got != "" {
		t.Fatalf("expected second request dropped, got %q", got)
	}
	waitFor(t, "one limited", func() bool {
		return stats.Total().ByOutcome[domain.OutcomeLimited] == 1
	})
}

func TestServe_ConcurrencyLimitRejects(t *testing.T) {
	stats := infra.NewMemoryStatsStore()
	srv, addr := startServer(t, Options{
		Stats:          stats,
		MaxConcurrent:  1,
		AcquireTimeout: 20 * time.Millisecond,
		ReadTimeout:    2 * time.Second,
	})

	holder := dial(t, addr)
	defer holder.Close()

	waitFor(t, "first connection to take the slot", func() bool { return srv.Active() == 1 })

	if got := roundTrip(t, addr, "GET /?iterations=1 HTTP/1.1\r\n"); got != "" {
		t.Fatalf("expected rejection without response, got %q", got)
	}
	waitFor(t, "one rejected", func() bool {
		return stats.Total().ByOutcome[domain.OutcomeRejected] == 1
	})

	_, _ = io.WriteString(holder, "GET /?iterations=6 HTTP/1.1\r\n")
	b, _ := io.ReadAll(holder)
	if string(b) != expectedResponse(6) {
		t.Fatalf("expected slot holder to be served, got %q", b)
	}
}

func TestServe_PanicIsContainedToConnection(t *testing.T) {
	var calls atomic.Int32
	logger, logs := newTestLogger()
	stats := infra.NewMemoryStatsStore(infra.WithTrackKeys(true))
	_, addr := startServer(t, Options{
		Logger: logger,
		Stats:  stats,
		KeyFn: func(c net.Conn) domain.Key {
			if calls.Add(1) == 1 {
				panic("boom")
			}
			return RemoteKey(c)
		},
	})

	if got := roundTrip(t, addr, "GET /?iterations=1 HTTP/1.1\r\n"); got != "" {
		t.Fatalf("expected no response from panicking handler, got %q", got)
	}
	if got := roundTrip(t, addr, "GET /?iterations=1 HTTP/1.1\r\n"); got != expectedResponse(1) {
		t.Fatalf("expected next connection served, got %q", got)
	}
	if !strings.Contains(logs.String(), "panic: boom") {
		t.Fatalf("expected panic to be logged, got %q", logs.String())
	}
	waitFor(t, "failed outcome under unknown key", func() bool {
		return stats.ByKey()["unknown"].ByOutcome[domain.OutcomeFailed] == 1
	})
}

type failingStats struct{}

func (failingStats) Record(context.Context, domain.StatsEvent) error {
	return errors.New("stats down")
}

func TestServe_StatsErrorsAreBestEffort(t *testing.T) {
	logger, logs := newTestLogger()
	_, addr := startServer(t, Options{Logger: logger, Stats: failingStats{}})

	if got := roundTrip(t, addr, "GET /?iterations=8 HTTP/1.1\r\n"); got != expectedResponse(8) {
		t.Fatalf("unexpected response %q", got)
	}
	waitFor(t, "stats error in the log", func() bool {
		return strings.Contains(logs.String(), "stats down")
	})
}

// slowStats segura cada Record como um backend lento (Redis remoto, SQLite ocupado).
type slowStats struct {
	delay    time.Duration
	recorded atomic.Int32
}

func (s *slowStats) Record(ctx context.Context, _ domain.StatsEvent) error {
	select {
	case <-time.After(s.delay):
	case <-ctx.Done():
		return ctx.Err()
	}
	s.recorded.Add(1)
	return nil
}

func TestServe_ClosesBeforeRecordingStats(t *testing.T) {
	stats := &slowStats{delay: 800 * time.Millisecond}
	_, addr := startServer(t, Options{Stats: stats})

	start := time.Now()
	got := roundTrip(t, addr, "GET /?iterations=8 HTTP/1.1\r\n")
	took := time.Since(start)

	if got != expectedResponse(8) {
		t.Fatalf("unexpected response %q", got)
	}
	if took >= 400*time.Millisecond {
		t.Fatalf("client waited %s for EOF; close should not wait for stats", took)
	}
	waitFor(t, "slow record to finish", func() bool { return stats.recorded.Load() == 1 })
}

func TestServe_SlowStatsDoNotSerializeClients(t *testing.T) {
	stats := &slowStats{delay: 500 * time.Millisecond}
	_, addr := startServer(t, Options{Stats: stats})

	start := time.Now()
	for i := uint64(1); i <= 4; i++ {
		if got := roundTrip(t, addr, "GET /?iterations="+strconv.FormatUint(i, 10)+" HTTP/1.1\r\n"); got != expectedResponse(i) {
			t.Fatalf("n=%d: unexpected response %q", i, got)
		}
	}
	if took := time.Since(start); took >= time.Second {
		t.Fatalf("four sequential clients took %s behind slow stats", took)
	}
}

func TestServe_TwoListenersShareOneServer(t *testing.T) {
	logger, _ := newTestLogger()
	srv := NewServer(Options{Logger: logger})
	ctx, cancel := context.WithCancel(context.Background())

	var addrs []string
	done := make(chan error, 2)
	for i := 0; i < 2; i++ {
		ln, err := net.Listen("tcp", "127.0.0.1:0")
		if err != nil {
			t.Fatalf("listen: %v", err)
		}
		addrs = append(addrs, ln.Addr().String())
		go func() { done <- srv.Serve(ctx, ln) }()
	}

	for i, addr := range addrs {
		n := uint64(10 + i)
		if got := roundTrip(t, addr, "GET /?iterations="+strconv.FormatUint(n, 10)+" HTTP/1.1\r\n"); got != expectedResponse(n) {
			t.Fatalf("%s: unexpected response %q", addr, got)
		}
	}

	cancel()
	for i := 0; i < 2; i++ {
		select {
		case err := <-done:
			if err != nil {
				t.Fatalf("serve returned %v", err)
			}
		case <-time.After(3 * time.Second):
			t.Fatalf("serve did not stop")
		}
	}
}

func TestServe_ReturnsErrorWhenListenerClosedExternally(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	logger, _ := newTestLogger()
	srv := NewServer(Options{Logger: logger})

	done := make(chan error, 1)
	go func() { done <- srv.Serve(context.Background(), ln) }()

	_ = ln.Close()
	select {
	case err := <-done:
		if !errors.Is(err, net.ErrClosed) {
			t.Fatalf("expected net.ErrClosed, got %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("serve did not return")
	}
}
