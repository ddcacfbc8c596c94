package observability

import (
	"context"
	"errors"
	"net/http"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/pandoapps/videoSoryBoard/internal/platform/logger"
)

type Metrics struct {
	registry *prometheus.Registry

	apiRequests *prometheus.CounterVec
	apiLatency  *prometheus.HistogramVec
	apiInflight prometheus.Gauge

	jobRuns     *prometheus.CounterVec
	jobDuration *prometheus.HistogramVec

	pollChecks *prometheus.CounterVec

	providerCalls   *prometheus.CounterVec
	providerLatency *prometheus.HistogramVec
	llmTokens       *prometheus.CounterVec

	mediaSteps *prometheus.HistogramVec
	stageEvent *prometheus.CounterVec
}

var (
	initOnce sync.Once
	instance *Metrics
)

func Enabled() bool {
	v := strings.TrimSpace(strings.ToLower(os.Getenv("METRICS_ENABLED")))
	if v == "" {
		return true
	}
	return v == "true" || v == "1" || v == "yes" || v == "on"
}

// Current is nil until Init ran with metrics enabled; every method is nil-safe.
func Current() *Metrics {
	return instance
}

func Init(log *logger.Logger) *Metrics {
	if !Enabled() {
		return nil
	}
	initOnce.Do(func() {
		instance = New()
		if log != nil {
			log.Info("prometheus metrics initialized")
		}
	})
	return instance
}

// New builds an isolated registry; Init shares one per process.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	m := &Metrics{
		registry: reg,
		apiRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "vsb_api_requests_total",
			Help: "Total API requests by method/route/status.",
		}, []string{"method", "route", "status"}),
		apiLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "vsb_api_request_duration_seconds",
			Help:    "API request latency in seconds.",
			Buckets: []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10, 30},
		}, []string{"method", "route", "status"}),
		apiInflight: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "vsb_api_inflight_requests",
			Help: "In-flight API requests.",
		}),
		jobRuns: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "vsb_job_runs_total",
			Help: "Job handler executions by job type and outcome.",
		}, []string{"job_type", "outcome"}),
		jobDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "vsb_job_run_duration_seconds",
			Help:    "Job handler execution time.",
			Buckets: []float64{0.05, 0.25, 1, 5, 15, 60, 180, 600},
		}, []string{"job_type", "outcome"}),
		pollChecks: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "vsb_poll_checks_total",
			Help: "External task status checks by poller kind and decision.",
		}, []string{"kind", "decision"}),
		providerCalls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "vsb_provider_calls_total",
			Help: "Calls to external generation providers.",
		}, []string{"provider", "operation", "status"}),
		providerLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "vsb_provider_call_duration_seconds",
			Help:    "External provider call latency.",
			Buckets: prometheus.ExponentialBuckets(0.05, 2, 12),
		}, []string{"provider", "operation"}),
		llmTokens: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "vsb_llm_tokens_total",
			Help: "Text model tokens by model and direction.",
		}, []string{"model", "direction"}),
		mediaSteps: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "vsb_media_step_duration_seconds",
			Help:    "ffmpeg/ffprobe and transfer step durations.",
			Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60, 120, 300},
		}, []string{"step", "status"}),
		stageEvent: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "vsb_pipeline_stage_events_total",
			Help: "Pipeline stage transitions by stage and event.",
		}, []string{"stage", "event"}),
	}
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.apiRequests, m.apiLatency, m.apiInflight,
		m.jobRuns, m.jobDuration,
		m.pollChecks,
		m.providerCalls, m.providerLatency, m.llmTokens,
		m.mediaSteps, m.stageEvent,
	)
	return m
}

func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// StartServer exposes /metrics on a dedicated listener, used by worker-only processes.
func (m *Metrics) StartServer(ctx context.Context, log *logger.Logger, addr string) {
	if m == nil || strings.TrimSpace(addr) == "" {
		return
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", m.Handler())
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) && log != nil {
			log.Warn("metrics server stopped", "error", err)
		}
	}()
}

func (m *Metrics) ObserveAPI(method, route, status string, dur time.Duration) {
	if m == nil {
		return
	}
	if route == "" {
		route = "unmatched"
	}
	m.apiRequests.WithLabelValues(method, route, status).Inc()
	m.apiLatency.WithLabelValues(method, route, status).Observe(dur.Seconds())
}

func (m *Metrics) ApiInflightInc() {
	if m == nil {
		return
	}
	m.apiInflight.Inc()
}

func (m *Metrics) ApiInflightDec() {
	if m == nil {
		return
	}
	m.apiInflight.Dec()
}

// ObserveJob records one handler run. outcome is succeeded, failed, yielded or panic.
func (m *Metrics) ObserveJob(jobType, outcome string, dur time.Duration) {
	if m == nil {
		return
	}
	m.jobRuns.WithLabelValues(jobType, outcome).Inc()
	m.jobDuration.WithLabelValues(jobType, outcome).Observe(dur.Seconds())
}

func (m *Metrics) IncPollCheck(kind, decision string) {
	if m == nil {
		return
	}
	m.pollChecks.WithLabelValues(kind, decision).Inc()
}

func (m *Metrics) ObserveProviderCall(provider, operation string, err error, dur time.Duration) {
	if m == nil {
		return
	}
	status := "ok"
	if err != nil {
		status = "error"
	}
	m.providerCalls.WithLabelValues(provider, operation, status).Inc()
	m.providerLatency.WithLabelValues(provider, operation).Observe(dur.Seconds())
}

func (m *Metrics) ObserveLLMTokens(model string, inputTokens, outputTokens int) {
	if m == nil {
		return
	}
	if inputTokens > 0 {
		m.llmTokens.WithLabelValues(model, "input").Add(float64(inputTokens))
	}
	if outputTokens > 0 {
		m.llmTokens.WithLabelValues(model, "output").Add(float64(outputTokens))
	}
}

func (m *Metrics) ObserveMediaStep(step string, err error, dur time.Duration) {
	if m == nil {
		return
	}
	status := "ok"
	if err != nil {
		status = "error"
	}
	m.mediaSteps.WithLabelValues(step, status).Observe(dur.Seconds())
}

func (m *Metrics) IncStageEvent(stage, event string) {
	if m == nil {
		return
	}
	m.stageEvent.WithLabelValues(stage, event).Inc()
}
