package piseries

import (
	"testing"

	"pi-benchmark/piseries/application"
	"pi-benchmark/piseries/domain"
)

func TestFormatBody_OnlySumHasFixedDigits(t *testing.T) {
	got := FormatBody(domain.Result{Pi: 4, Sum: 1, Accumulator: 1})
	if got != "4;1.0000000;1" {
		t.Fatalf("unexpected body %q", got)
	}
}

func TestFormatBody_RoundsSumToSevenDigits(t *testing.T) {
	got := FormatBody(domain.Result{Pi: 0.5, Sum: 0.123456789, Accumulator: -0.25})
	if got != "0.5;0.1234568;-0.25" {
		t.Fatalf("unexpected body %q", got)
	}
}

func TestFormatBody_BenchmarkReferenceValues(t *testing.T) {
	r := domain.Result{Pi: 3.1415926525880504, Sum: 785398157.7092886, Accumulator: 0.7853981633136793}
	want := "3.1415926525880504;785398157.7092886;0.7853981633136793"
	if got := FormatBody(r); got != want {
		t.Fatalf("expected %q, got %q", want, got)
	}
}

func TestFormatBody_ZeroIterations(t *testing.T) {
	if got := FormatBody(application.Compute(0)); got != "0;0.0000000;0" {
		t.Fatalf("unexpected body %q", got)
	}
}

func TestFormatResponse_StatusBlankLineBody(t *testing.T) {
	got := formatResponse(domain.Result{Pi: 4, Sum: 1, Accumulator: 1})
	if got != "HTTP/1.1 200 OK\r\n\r\n4;1.0000000;1\r\n" {
		t.Fatalf("unexpected response %q", got)
	}
}
