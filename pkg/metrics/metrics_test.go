package metrics

import (
	"context"
	"io"
	"math"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"
)

func TestCounter(t *testing.T) {
	r := New()
	c := r.Counter("test_total", "A test counter")
	c.Inc()
	c.Inc()
	c.Add(5)
	if c.Value() != 7 {
		t.Fatalf("expected 7, got %d", c.Value())
	}
	if r.Counter("test_total", "") != c {
		t.Fatal("expected same counter instance")
	}
}

func TestGauge(t *testing.T) {
	g := New().Gauge("test_gauge", "A test gauge")
	g.Set(42)
	g.Inc()
	g.Inc()
	g.Dec()
	g.Add(0.5)
	if g.Value() != 43.5 {
		t.Fatalf("expected 43.5, got %g", g.Value())
	}
}

func TestHistogramBuckets(t *testing.T) {
	h := New().Histogram("test_duration_seconds", "", []float64{1.0, 0.1, 0.5})
	for _, v := range []float64{0.05, 0.1, 0.3, 0.8, 2.0} {
		h.Observe(v)
	}
	buckets, counts, sum, count := h.snapshot()
	if count != 5 || math.Abs(sum-3.25) > 1e-9 {
		t.Fatalf("count %d sum %g", count, sum)
	}
	if buckets[0] != 0.1 {
		t.Fatalf("buckets must be sorted, got %v", buckets)
	}
	// 0.1 belongs to the 0.1 bucket; 2.0 only to +Inf
	want := []uint64{2, 1, 1}
	for i := range want {
		if counts[i] != want[i] {
			t.Errorf("bucket %g: got %d, want %d", buckets[i], counts[i], want[i])
		}
	}
}

func TestHistogramSince(t *testing.T) {
	h := New().Histogram("latency", "", nil)
	h.Since(time.Now().Add(-100 * time.Millisecond))
	if _, _, sum, count := h.snapshot(); count != 1 || sum < 0.1 {
		t.Fatalf("count %d sum %g", count, sum)
	}
}

func TestWithLabels(t *testing.T) {
	tests := []struct {
		kvs  []string
		want string
	}{
		{[]string{"strategy", "hybrid", "status", "ok"}, `foo_total{strategy="hybrid",status="ok"}`},
		{nil, "foo_total"},
		{[]string{"odd"}, "foo_total"},
		{[]string{"q", `say "hi"`}, `foo_total{q="say \"hi\""}`},
	}
	for _, tt := range tests {
		if got := WithLabels("foo_total", tt.kvs...); got != tt.want {
			t.Errorf("WithLabels(%v) = %q, want %q", tt.kvs, got, tt.want)
		}
	}
}

func TestRender(t *testing.T) {
	r := New()
	r.Counter("requests_total", "Total requests").Add(10)
	r.Counter(WithLabels("requests_total", "method", "GET"), "").Add(7)
	r.Gauge("unga_engine_degraded", "Degraded flag").Set(1)
	h := r.Histogram(WithLabels("request_duration_seconds", "route", "analyze"), "Request latency", []float64{0.1, 0.5})
	h.Observe(0.05)
	h.Observe(0.3)

	out := r.Render()
	for _, want := range []string{
		"# HELP requests_total Total requests",
		"# TYPE requests_total counter",
		"requests_total 10",
		`requests_total{method="GET"} 7`,
		"# TYPE unga_engine_degraded gauge",
		"unga_engine_degraded 1",
		"# TYPE request_duration_seconds histogram",
		`request_duration_seconds_bucket{le="0.1",route="analyze"} 1`,
		`request_duration_seconds_bucket{le="0.5",route="analyze"} 2`,
		`request_duration_seconds_bucket{le="+Inf",route="analyze"} 2`,
		`request_duration_seconds_count{route="analyze"} 2`,
	} {
		if !strings.Contains(out, want) {
			t.Errorf("missing %q in\n%s", want, out)
		}
	}
	if strings.Index(out, "requests_total") > strings.Index(out, "unga_engine_degraded") {
		t.Error("families must render in registration order")
	}
}

func TestKindMismatch(t *testing.T) {
	r := New()
	r.Counter("mixed", "").Inc()
	g := r.Gauge("mixed", "")
	g.Set(9)
	if strings.Contains(r.Render(), "mixed 9") {
		t.Error("a gauge must not be registered under a counter family")
	}
}

func TestConcurrentRegistration(t *testing.T) {
	r := New()
	var wg sync.WaitGroup
	for i := 0; i < 32; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			r.Counter(WithLabels("hits_total", "strategy", "hybrid"), "").Inc()
			_ = r.Render()
		}()
	}
	wg.Wait()
	if v := r.Counter(WithLabels("hits_total", "strategy", "hybrid"), "").Value(); v != 32 {
		t.Fatalf("got %d", v)
	}
}

func TestHandler(t *testing.T) {
	r := New()
	r.Counter("test_total", "test").Inc()

	rec := httptest.NewRecorder()
	r.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))

	if rec.Code != http.StatusOK || !strings.Contains(rec.Header().Get("Content-Type"), "text/plain") {
		t.Fatalf("code %d content type %q", rec.Code, rec.Header().Get("Content-Type"))
	}
	if !strings.Contains(rec.Body.String(), "test_total 1") {
		t.Error("missing metric in handler output")
	}
}

func TestServeShutsDownWithContext(t *testing.T) {
	lis, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	addr := lis.Addr().String()
	lis.Close()

	r := New()
	r.Counter("up_total", "").Inc()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- r.Serve(ctx, addr) }()

	var body string
	for i := 0; i < 50 && body == ""; i++ {
		resp, err := http.Get("http://" + addr + "/metrics")
		if err != nil {
			time.Sleep(20 * time.Millisecond)
			continue
		}
		b, _ := io.ReadAll(resp.Body)
		resp.Body.Close()
		body = string(b)
	}
	if !strings.Contains(body, "up_total 1") {
		t.Fatalf("body = %q", body)
	}
	cancel()
	if err := <-done; err != nil {
		t.Fatalf("Serve: %v", err)
	}
}

func TestMetricBaseName(t *testing.T) {
	tests := []struct{ in, want string }{
		{"foo_total", "foo_total"},
		{`foo_total{k="v"}`, "foo_total"},
		{`foo{a="1",b="2"}`, "foo"},
	}
	for _, tt := range tests {
		if got := metricBaseName(tt.in); got != tt.want {
			t.Errorf("metricBaseName(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
