package observability

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const unmatchedRoute = "unknown"

// Metrics mengumpulkan metrik Prometheus untuk layanan pajak.
type Metrics struct {
	registry *prometheus.Registry
	handler  http.Handler

	requests     *prometheus.CounterVec
	duration     *prometheus.HistogramVec
	inFlight     prometheus.Gauge
	calculations *prometheus.CounterVec
	taxAmount    *prometheus.CounterVec
}

// NewMetrics membuat registry sendiri berisi metrik HTTP, metrik perhitungan
// pajak, serta collector runtime Go dan proses.
func NewMetrics() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "odyssey_tax_http_requests_total",
			Help: "Jumlah permintaan HTTP berdasarkan route dan status.",
		}, []string{"route", "code"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "odyssey_tax_http_request_duration_seconds",
			Help:    "Durasi permintaan HTTP per route.",
			Buckets: []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5},
		}, []string{"route"}),
		inFlight: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "odyssey_tax_http_in_flight_requests",
			Help: "Permintaan HTTP yang sedang diproses.",
		}),
		calculations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "odyssey_tax_calculations_total",
			Help: "Jumlah perhitungan pajak yang berhasil per jenis operasi.",
		}, []string{"operation"}),
		taxAmount: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "odyssey_tax_amount_total",
			Help: "Akumulasi nilai pajak yang dihitung per jenis operasi.",
		}, []string{"operation"}),
	}
	m.registry.MustRegister(
		m.requests, m.duration, m.inFlight, m.calculations, m.taxAmount,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	m.handler = promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
	return m
}

// Handler melayani endpoint /metrics dari registry milik Metrics.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, http.StatusText(http.StatusServiceUnavailable), http.StatusServiceUnavailable)
		})
	}
	return m.handler
}

// Middleware mencatat jumlah, status, dan durasi setiap permintaan. Label
// route memakai pola chi, bukan path mentah, agar kardinalitas tetap kecil.
func (m *Metrics) Middleware(next http.Handler) http.Handler {
	if m == nil {
		return next
	}
	counted := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		route := routePattern(r)
		m.requests.WithLabelValues(route, strconv.Itoa(status)).Inc()
		m.duration.WithLabelValues(route).Observe(time.Since(start).Seconds())
	})
	return promhttp.InstrumentHandlerInFlight(m.inFlight, counted)
}

// ObserveCalculation mencatat satu perhitungan pajak yang berhasil beserta
// nilai pajaknya. Nilai nol atau negatif hanya menambah hitungan.
func (m *Metrics) ObserveCalculation(operation string, taxAmount float64) {
	if m == nil {
		return
	}
	m.calculations.WithLabelValues(operation).Inc()
	if taxAmount > 0 {
		m.taxAmount.WithLabelValues(operation).Add(taxAmount)
	}
}

// Registerer mengekspos registry untuk pendaftaran metrik khusus.
func (m *Metrics) Registerer() prometheus.Registerer {
	if m == nil {
		return prometheus.DefaultRegisterer
	}
	return m.registry
}

func routePattern(r *http.Request) string {
	rctx := chi.RouteContext(r.Context())
	if rctx == nil {
		return unmatchedRoute
	}
	if pattern := rctx.RoutePattern(); pattern != "" {
		return pattern
	}
	return unmatchedRoute
}
