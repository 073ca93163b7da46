package metrics

import (
	"io"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestObserveStream(t *testing.T) {
	r := New()
	r.ObserveStream(OutcomePartial)
	r.ObserveStream(OutcomePartial)
	r.ObserveStream(OutcomeNotFound)

	if got := testutil.ToFloat64(r.streams.WithLabelValues(OutcomePartial)); got != 2 {
		t.Fatalf("expected 2 partial streams, got %v", got)
	}
	if got := testutil.ToFloat64(r.streams.WithLabelValues(OutcomeNotFound)); got != 1 {
		t.Fatalf("expected 1 not_found, got %v", got)
	}
}

func TestBytesAndLookups(t *testing.T) {
	r := New()
	r.AddBytes(100)
	r.AddBytes(-5)
	r.ObserveSizeLookup(true)
	r.ObserveSizeLookup(false)
	r.ObserveSizeLookup(false)

	if got := testutil.ToFloat64(r.bytes); got != 100 {
		t.Fatalf("expected 100 bytes, got %v", got)
	}
	if got := testutil.ToFloat64(r.sizeLookups.WithLabelValues("miss")); got != 2 {
		t.Fatalf("expected 2 misses, got %v", got)
	}
}

func TestInFlightGauge(t *testing.T) {
	r := New()
	r.StreamOpened()
	r.StreamOpened()
	r.StreamClosed()

	if got := testutil.ToFloat64(r.inFlight); got != 1 {
		t.Fatalf("expected 1 stream in flight, got %v", got)
	}
}

func TestNilRecorderIsSafe(t *testing.T) {
	var r *Recorder
	r.ObserveStream(OutcomeFull)
	r.AddBytes(1)
	r.ObserveSizeLookup(true)
	r.StreamOpened()
	r.StreamClosed()
}

func TestHandlerExposesCounters(t *testing.T) {
	r := New()
	r.ObserveStream(OutcomeFull)

	rec := httptest.NewRecorder()
	r.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))

	body, _ := io.ReadAll(rec.Body)
	if !strings.Contains(string(body), `pipestream_streams_total{outcome="full"} 1`) {
		t.Fatalf("metrics output missing stream counter:\n%s", body)
	}
}
