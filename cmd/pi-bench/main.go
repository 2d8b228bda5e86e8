package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"pi-benchmark/loadtest"
)

func main() {
	cfg := loadtest.Config{}
	flag.StringVar(&cfg.URL, "url", "http://localhost:3000", "base URL of the pi-series server")
	flag.Uint64Var(&cfg.Iterations, "iterations", 1_000_000_000, "iterations query parameter")
	flag.IntVar(&cfg.Concurrency, "concurrency", 1, "parallel workers")
	flag.DurationVar(&cfg.Duration, "duration", 10*time.Second, "load test duration")
	flag.DurationVar(&cfg.Timeout, "timeout", 600*time.Second, "per-request timeout")
	flag.BoolVar(&cfg.Verbose, "verbose", false, "log every failed request")
	validate := flag.Bool("validate", false, "send a single request, check the body and exit")
	flag.Parse()

	if *validate {
		body, err := loadtest.Probe(cfg)
		if err != nil {
			log.Printf("validation failed: %v", err)
			os.Exit(1)
		}
		log.Printf("ok: %s", body)
		return
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	log.Printf("load test %s iterations=%d concurrency=%d duration=%s", cfg.URL, cfg.Iterations, cfg.Concurrency, cfg.Duration)
	res, err := loadtest.Run(ctx, cfg)
	log.Printf("success=%d fail=%d total=%s rps(median=%d p99=%d) latency(median=%s p99=%s)",
		res.Success, res.Fail, res.TotalTime, res.RPSMedian, res.RPSP99, res.LatencyMedian, res.LatencyP99)
	if err != nil {
		log.Fatalf("load test error: %v", err)
	}
}
