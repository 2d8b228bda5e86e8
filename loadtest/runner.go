package loadtest

import (
	"context"
	"errors"
	"fmt"
	"log"
	"slices"
	"sync"
	"time"

	"github.com/valyala/fasthttp"
)

var ErrNoSuccess = errors.New("loadtest: no successful requests")

type Config struct {
	// URL base do servidor, ex: http://localhost:3000
	URL         string
	Iterations  uint64
	Concurrency int
	Duration    time.Duration
	Timeout     time.Duration
	// Verbose loga cada falha.
	Verbose bool
	Logger  *log.Logger
}

type Result struct {
	Success   int
	Fail      int
	TotalTime time.Duration

	RPSMedian int
	RPSP99    int

	LatencyMedian time.Duration
	LatencyP99    time.Duration
}

type workerResult struct {
	success   int
	fail      int
	latencies []time.Duration
	// segundo (desde o início) em que cada sucesso terminou
	seconds []int
}

// Run dispara Concurrency workers fazendo GET até Duration passar (ou ctx encerrar).
//
// Falhas de validação contam como fail. Retorna erro se nenhum request
// funcionou ou se algum falhou, junto com o Result parcial.
func Run(ctx context.Context, cfg Config) (Result, error) {
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 1
	}
	if cfg.Duration <= 0 {
		cfg.Duration = 10 * time.Second
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 5 * time.Second
	}
	if cfg.Logger == nil {
		cfg.Logger = log.Default()
	}

	client := &fasthttp.Client{
		Name:            "pi-bench",
		ReadTimeout:     cfg.Timeout,
		WriteTimeout:    cfg.Timeout,
		MaxConnsPerHost: cfg.Concurrency,
	}
	url := RequestURL(cfg.URL, cfg.Iterations)
	expected := Expected(cfg.Iterations)

	runCtx, cancel := context.WithTimeout(ctx, cfg.Duration)
	defer cancel()

	start := time.Now()
	results := make([]workerResult, cfg.Concurrency)
	var wg sync.WaitGroup
	for i := range results {
		i := i
		wg.Add(1)
		go func() {
			defer wg.Done()
			results[i] = work(runCtx, client, url, expected, start, cfg)
		}()
	}
	wg.Wait()

	return summarize(results, time.Since(start), cfg.Duration)
}

func work(ctx context.Context, client *fasthttp.Client, url, expected string, start time.Time, cfg Config) workerResult {
	var out workerResult

	req := fasthttp.AcquireRequest()
	resp := fasthttp.AcquireResponse()
	defer fasthttp.ReleaseRequest(req)
	defer fasthttp.ReleaseResponse(resp)

	for ctx.Err() == nil {
		req.Reset()
		resp.Reset()
		req.SetRequestURI(url)
		req.Header.SetMethod(fasthttp.MethodGet)
		// o servidor fecha após cada resposta
		req.SetConnectionClose()

		t0 := time.Now()
		err := client.DoTimeout(req, resp, cfg.Timeout)
		latency := time.Since(t0)

		if err == nil && resp.StatusCode() != fasthttp.StatusOK {
			err = fmt.Errorf("unexpected status %d", resp.StatusCode())
		}
		if err == nil {
			err = check(string(resp.Body()), expected)
		}
		if err != nil {
			if ctx.Err() != nil {
				// request cortado pelo fim do teste não conta
				break
			}
			out.fail++
			if cfg.Verbose {
				cfg.Logger.Printf("request to %s failed: %v (success=%d fail=%d)", url, err, out.success, out.fail)
			}
			continue
		}

		out.success++
		out.latencies = append(out.latencies, latency)
		out.seconds = append(out.seconds, int(time.Since(start)/time.Second))
	}
	return out
}

func summarize(results []workerResult, total, duration time.Duration) (Result, error) {
	res := Result{TotalTime: total}

	buckets := int(duration / time.Second)
	if buckets < 1 {
		buckets = 1
	}
	rps := make([]int, buckets)
	var latencies []time.Duration

	for _, r := range results {
		res.Success += r.success
		res.Fail += r.fail
		latencies = append(latencies, r.latencies...)
		for _, sec := range r.seconds {
			if sec < buckets {
				rps[sec]++
			}
		}
	}

	if res.Success == 0 {
		return res, ErrNoSuccess
	}

	slices.Sort(rps)
	slices.Sort(latencies)
	res.RPSMedian, _ = P50(rps)
	res.RPSP99, _ = P99(rps)
	res.LatencyMedian, _ = P50(latencies)
	res.LatencyP99, _ = P99(latencies)

	if res.Fail > 0 {
		return res, fmt.Errorf("loadtest: %d of %d requests failed", res.Fail, res.Fail+res.Success)
	}
	return res, nil
}

// Probe faz um único request e valida o corpo.
func Probe(cfg Config) (string, error) {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 5 * time.Second
	}

	req := fasthttp.AcquireRequest()
	resp := fasthttp.AcquireResponse()
	defer fasthttp.ReleaseRequest(req)
	defer fasthttp.ReleaseResponse(resp)

	req.SetRequestURI(RequestURL(cfg.URL, cfg.Iterations))
	req.Header.SetMethod(fasthttp.MethodGet)
	req.SetConnectionClose()

	if err := fasthttp.DoTimeout(req, resp, cfg.Timeout); err != nil {
		return "", err
	}
	body := string(resp.Body())
	if resp.StatusCode() != fasthttp.StatusOK {
		return body, fmt.Errorf("unexpected status %d", resp.StatusCode())
	}
	return body, Validate(body, cfg.Iterations)
}
