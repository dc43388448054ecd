// Package metrics samples server health: uptime, memory, CPU, request and
// error counters and the duration of the last build.
//
// The Sampler keeps a plain snapshot for the dashboard and status API and
// mirrors the same values into Prometheus collectors for /metrics.
package metrics

import (
	"net/http"
	"runtime"
	rtmetrics "runtime/metrics"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/vango-dev/devd/internal/event"
)

// DefaultInterval is the default sampling period.
const DefaultInterval = 5 * time.Second

// Memory is a view of the Go runtime memory statistics.
type Memory struct {
	Alloc      uint64 `json:"alloc"`
	TotalAlloc uint64 `json:"totalAlloc"`
	Sys        uint64 `json:"sys"`
	HeapInuse  uint64 `json:"heapInuse"`
	NumGC      uint32 `json:"numGC"`
}

// CPU describes process CPU usage.
type CPU struct {
	// UserSeconds is cumulative user CPU time consumed by the process.
	UserSeconds float64 `json:"userSeconds"`

	// Percent is user CPU time over wall time since the previous sample,
	// where 100 means one core fully busy.
	Percent float64 `json:"percent"`

	Goroutines int `json:"goroutines"`
}

// ServerMetrics is a point-in-time copy of the sampled values.
type ServerMetrics struct {
	UptimeMs            int64  `json:"uptimeMs"`
	Requests            uint64 `json:"requests"`
	Errors              uint64 `json:"errors"`
	LastBuildDurationMs int64  `json:"lastBuildDurationMs"`
	Memory              Memory `json:"memory"`
	CPU                 CPU    `json:"cpu"`
}

// Options configures a Sampler.
type Options struct {
	// Interval is the sampling period. Defaults to DefaultInterval.
	Interval time.Duration

	// Namespace prefixes the Prometheus metric names. Defaults to "devd".
	Namespace string

	// Registry receives the collectors. When nil the Sampler creates its own
	// registry, including Go runtime and process collectors.
	Registry prometheus.Registerer
}

type collectorSet struct {
	requests      prometheus.Counter
	errors        prometheus.Counter
	buildDuration prometheus.Histogram
	uptime        prometheus.Gauge
	cpuPercent    prometheus.Gauge
}

// Sampler owns the ServerMetrics value. Counters are updated synchronously;
// uptime, memory and CPU are refreshed by the ticker or by Metrics.
type Sampler struct {
	mu       sync.Mutex
	interval time.Duration
	started  time.Time
	current  ServerMetrics

	lastCPUSample time.Time
	lastUserCPU   float64

	running bool
	stopCh  chan struct{}
	wg      sync.WaitGroup

	registerer prometheus.Registerer
	gatherer   prometheus.Gatherer
	collectors collectorSet
	now        func() time.Time

	// OnUpdate is emitted with a fresh copy after every tick.
	OnUpdate event.Emitter[ServerMetrics]
}

// NewSampler creates a Sampler. The uptime clock starts immediately.
func NewSampler(opts Options) *Sampler {
	if opts.Interval <= 0 {
		opts.Interval = DefaultInterval
	}
	if opts.Namespace == "" {
		opts.Namespace = "devd"
	}

	var gatherer prometheus.Gatherer
	if opts.Registry == nil {
		reg := prometheus.NewRegistry()
		reg.MustRegister(
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		)
		opts.Registry = reg
		gatherer = reg
	} else if g, ok := opts.Registry.(prometheus.Gatherer); ok {
		gatherer = g
	} else {
		gatherer = prometheus.DefaultGatherer
	}

	factory := promauto.With(opts.Registry)
	s := &Sampler{
		interval:   opts.Interval,
		registerer: opts.Registry,
		gatherer:   gatherer,
		now:        time.Now,
		collectors: collectorSet{
			requests: factory.NewCounter(prometheus.CounterOpts{
				Namespace: opts.Namespace,
				Name:      "http_requests_total",
				Help:      "Total number of HTTP requests served by the dev server",
			}),
			errors: factory.NewCounter(prometheus.CounterOpts{
				Namespace: opts.Namespace,
				Name:      "errors_total",
				Help:      "Total number of request and build errors",
			}),
			buildDuration: factory.NewHistogram(prometheus.HistogramOpts{
				Namespace: opts.Namespace,
				Name:      "build_duration_seconds",
				Help:      "Build duration in seconds",
				Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60, 120},
			}),
			uptime: factory.NewGauge(prometheus.GaugeOpts{
				Namespace: opts.Namespace,
				Name:      "uptime_seconds",
				Help:      "Seconds since the sampler was created",
			}),
			cpuPercent: factory.NewGauge(prometheus.GaugeOpts{
				Namespace: opts.Namespace,
				Name:      "cpu_percent",
				Help:      "User CPU percent over the last sampling interval",
			}),
		},
	}
	s.started = s.now()
	s.lastCPUSample = s.started
	s.lastUserCPU = readUserCPU()
	s.refreshLocked()
	return s
}

// Start begins periodic sampling. Calling Start while running is a no-op.
func (s *Sampler) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		return
	}
	s.running = true
	s.stopCh = make(chan struct{})

	s.wg.Add(1)
	go s.loop(s.stopCh, s.interval)
}

// Stop cancels periodic sampling and waits for the ticker goroutine to exit.
// Calling Stop while stopped is a no-op.
func (s *Sampler) Stop() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	s.running = false
	close(s.stopCh)
	s.mu.Unlock()

	s.wg.Wait()
}

// Running reports whether the ticker is active.
func (s *Sampler) Running() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

func (s *Sampler) loop(stop <-chan struct{}, interval time.Duration) {
	defer s.wg.Done()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			s.mu.Lock()
			s.refreshLocked()
			snap := s.current
			s.mu.Unlock()
			s.OnUpdate.Emit(snap)
		}
	}
}

// RecordRequest increments the request counter.
func (s *Sampler) RecordRequest() {
	s.mu.Lock()
	s.current.Requests++
	s.mu.Unlock()
	s.collectors.requests.Inc()
}

// RecordError increments the error counter.
func (s *Sampler) RecordError() {
	s.mu.Lock()
	s.current.Errors++
	s.mu.Unlock()
	s.collectors.errors.Inc()
}

// RecordBuildTime stores the duration of the most recent build.
func (s *Sampler) RecordBuildTime(d time.Duration) {
	s.mu.Lock()
	s.current.LastBuildDurationMs = d.Milliseconds()
	s.mu.Unlock()
	s.collectors.buildDuration.Observe(d.Seconds())
}

// Metrics refreshes uptime, memory and CPU and returns a copy.
func (s *Sampler) Metrics() ServerMetrics {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.refreshLocked()
	return s.current
}

// Snapshot returns the last sampled copy without refreshing. Counters are
// always current; uptime, memory and CPU are as of the last refresh.
func (s *Sampler) Snapshot() ServerMetrics {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.current
}

// Registerer returns the registry the sampler's collectors live in, so
// other collectors can be exported on the same /metrics endpoint.
func (s *Sampler) Registerer() prometheus.Registerer {
	return s.registerer
}

// Handler serves the Prometheus exposition format.
func (s *Sampler) Handler() http.Handler {
	return promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{})
}

func (s *Sampler) refreshLocked() {
	now := s.now()
	uptime := now.Sub(s.started)
	s.current.UptimeMs = uptime.Milliseconds()

	var ms runtime.MemStats
	runtime.ReadMemStats(&ms)
	s.current.Memory = Memory{
		Alloc:      ms.Alloc,
		TotalAlloc: ms.TotalAlloc,
		Sys:        ms.Sys,
		HeapInuse:  ms.HeapInuse,
		NumGC:      ms.NumGC,
	}

	user := readUserCPU()
	wall := now.Sub(s.lastCPUSample).Seconds()
	percent := s.current.CPU.Percent
	if wall > 0 {
		percent = (user - s.lastUserCPU) / wall * 100
		if percent < 0 {
			percent = 0
		}
	}
	s.lastUserCPU = user
	s.lastCPUSample = now
	s.current.CPU = CPU{
		UserSeconds: user,
		Percent:     percent,
		Goroutines:  runtime.NumGoroutine(),
	}

	s.collectors.uptime.Set(uptime.Seconds())
	s.collectors.cpuPercent.Set(percent)
}

const userCPUMetric = "/cpu/classes/user:cpu-seconds"

func readUserCPU() float64 {
	sample := []rtmetrics.Sample{{Name: userCPUMetric}}
	rtmetrics.Read(sample)
	if sample[0].Value.Kind() != rtmetrics.KindFloat64 {
		return 0
	}
	return sample[0].Value.Float64()
}
