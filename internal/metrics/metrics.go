// Package metrics exposes the engine's prometheus counters/gauges and the
// expvar status surface, grounded on the teacher's httpServe handler but
// stripped of the grpc-gateway reverse proxy this engine has no gRPC API
// for.
package metrics

import (
	"context"
	"expvar"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const (
	defaultMetricsPath = "/metrics"
	defaultDebugPath   = "/debug/vars"
)

// Registry holds every metric the engine updates per tick.
type Registry struct {
	TickDuration  prometheus.Histogram
	Decisions     *prometheus.CounterVec
	OrdersOpened  *prometheus.CounterVec
	OrdersClosed  *prometheus.CounterVec
	ModeBalance   *prometheus.GaugeVec
	CascadeLevel  prometheus.Gauge
	VPIN          prometheus.Gauge

	expTickCount *expvar.Int
}

// New registers every metric against the global default prometheus
// registry, so it may be called only once per process.
func New() *Registry {
	r := &Registry{
		TickDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name: "engine_tick_duration_seconds",
			Help: "Duration of one decision tick.",
		}),
		Decisions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "engine_decisions_total",
			Help: "Decisions produced, by mode and action.",
		}, []string{"mode", "action"}),
		OrdersOpened: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "engine_orders_opened_total",
			Help: "Simulated orders opened, by mode.",
		}, []string{"mode"}),
		OrdersClosed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "engine_orders_closed_total",
			Help: "Simulated orders closed, by mode and exit reason.",
		}, []string{"mode", "reason"}),
		ModeBalance: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "engine_mode_balance_usdt",
			Help: "Current balance per mode.",
		}, []string{"mode"}),
		CascadeLevel: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "engine_cascade_level",
			Help: "Current liquidation cascade level rank.",
		}),
		VPIN: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "engine_vpin",
			Help: "Current VPIN value.",
		}),
	}

	prometheus.MustRegister(r.TickDuration, r.Decisions, r.OrdersOpened, r.OrdersClosed, r.ModeBalance, r.CascadeLevel, r.VPIN)

	r.expTickCount = expvar.NewInt("engine_tick_count")

	return r
}

// IncTick bumps the expvar tick counter, exposed for quick inspection at
// /debug/vars without scraping prometheus.
func (r *Registry) IncTick() {
	r.expTickCount.Add(1)
}

// Serve starts the status HTTP server and blocks until ctx is done or the
// server errors.
func Serve(ctx context.Context, addr string) error {
	mux := http.NewServeMux()
	mux.Handle(defaultMetricsPath, promhttp.Handler())
	mux.Handle(defaultDebugPath, expvar.Handler())

	server := &http.Server{Addr: addr, Handler: mux}

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		return server.Shutdown(context.Background())
	case err := <-errCh:
		if err == http.ErrServerClosed {
			return nil
		}
		return err
	}
}
