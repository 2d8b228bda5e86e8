package piseries

import (
	"context"
	"errors"
	"log"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"pi-benchmark/piseries/application"
	"pi-benchmark/piseries/domain"
	"pi-benchmark/piseries/infra"
)

type Options struct {
	// Store liga o rate limit por cliente; nil desliga.
	Store      domain.LimiterStore
	Stats      domain.StatsStore
	KeyFn      KeyFunc
	RetryAfter time.Duration

	// MaxConcurrent <= 0 não limita conexões em andamento.
	MaxConcurrent  int
	AcquireTimeout time.Duration

	ReadTimeout   time.Duration
	WriteTimeout  time.Duration
	LingerTimeout time.Duration

	// MaxIterations 0 = sem limite.
	MaxIterations uint64

	Logger *log.Logger
}

// Server é o loop de accept + handler. Um Server pode atender vários
// listeners; admissão e contadores são compartilhados entre eles.
type Server struct {
	opts  Options
	rate  application.RateAdmission
	slots application.SlotAdmission
	log   *log.Logger

	active atomic.Int64
}

func NewServer(opts Options) *Server {
	if opts.KeyFn == nil {
		opts.KeyFn = RemoteKey
	}
	if opts.Logger == nil {
		opts.Logger = log.Default()
	}

	s := &Server{
		opts: opts,
		rate: application.RateAdmission{
			Store:      opts.Store,
			RetryAfter: opts.RetryAfter,
		},
		slots: application.SlotAdmission{AcquireTimeout: opts.AcquireTimeout},
		log:   opts.Logger,
	}
	if opts.MaxConcurrent > 0 {
		s.slots.Pool = infra.NewChanPool(opts.MaxConcurrent)
	}
	return s
}

// Active devolve quantas conexões passaram da admissão e ainda estão abertas.
func (s *Server) Active() int { return int(s.active.Load()) }

// Serve aceita conexões de ln até ctx terminar, uma goroutine por conexão.
//
// O listener pertence ao Serve a partir daqui e é fechado na saída. Com ctx
// cancelado, Serve espera as conexões em andamento e retorna nil. Erros de
// accept são logados e o loop continua; só um listener fechado por fora encerra
// com erro. Cada chamada espera só as conexões que ela mesma aceitou.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	var wg sync.WaitGroup
	defer ln.Close()
	stop := context.AfterFunc(ctx, func() { _ = ln.Close() })
	defer stop()

	var delay time.Duration
	for {
		c, err := ln.Accept()
		if err != nil {
			if ctx.Err() != nil {
				wg.Wait()
				return nil
			}
			if errors.Is(err, net.ErrClosed) {
				wg.Wait()
				return err
			}

			if delay == 0 {
				delay = 5 * time.Millisecond
			} else {
				delay *= 2
			}
			if delay > time.Second {
				delay = time.Second
			}
			s.log.Printf("pi: accept error: %v; retrying in %s", err, delay)
			select {
			case <-time.After(delay):
			case <-ctx.Done():
			}
			continue
		}
		delay = 0
		accepted := time.Now()

		wg.Add(1)
		go func() {
			defer wg.Done()
			s.handleConn(ctx, c, accepted)
		}()
	}
}

func (s *Server) record(ctx context.Context, ev domain.StatsEvent) {
	if s.opts.Stats == nil {
		return
	}
	// conexões que terminam durante o shutdown ainda contam
	recCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 2*time.Second)
	defer cancel()
	if err := s.opts.Stats.Record(recCtx, ev); err != nil {
		s.log.Printf("pi: stats record error: %v", err)
	}
}
