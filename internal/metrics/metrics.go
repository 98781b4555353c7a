// Package metrics exposes Prometheus counters for the migration. A run is
// usually over in seconds, but large ledgers take a while; an optional
// listener serves /metrics so progress can be watched from outside.
package metrics

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Collectors holds the migration's Prometheus collectors.
type Collectors struct {
	PostingsRead    prometheus.Counter
	AccountsCreated prometheus.Counter
	SplitsCreated   prometheus.Counter
	RecordsCreated  prometheus.Counter
	PassDuration    *prometheus.HistogramVec
}

// New registers the collectors on a fresh registry and returns both.
func New() (*Collectors, *prometheus.Registry) {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	c := &Collectors{
		PostingsRead: factory.NewCounter(prometheus.CounterOpts{
			Name: "migration_postings_read_total",
			Help: "Source CSV posting rows read across all passes.",
		}),
		AccountsCreated: factory.NewCounter(prometheus.CounterOpts{
			Name: "migration_accounts_created_total",
			Help: "Distinct accounts inserted into the destination.",
		}),
		SplitsCreated: factory.NewCounter(prometheus.CounterOpts{
			Name: "migration_splits_created_total",
			Help: "Splits inserted into the destination.",
		}),
		RecordsCreated: factory.NewCounter(prometheus.CounterOpts{
			Name: "migration_records_created_total",
			Help: "Records inserted into the destination.",
		}),
		PassDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "migration_pass_duration_seconds",
			Help:    "Wall time of each migration pass.",
			Buckets: prometheus.ExponentialBuckets(0.01, 4, 8),
		}, []string{"pass"}),
	}
	return c, reg
}

// ObservePass times one migration pass.
func (c *Collectors) ObservePass(pass string, start time.Time) {
	c.PassDuration.WithLabelValues(pass).Observe(time.Since(start).Seconds())
}

// ─── Listener ───────────────────────────────────────────────────────────────

// Server serves /metrics and /health while a migration runs.
type Server struct {
	srv *http.Server
}

// NewServer builds the listener for the given registry.
func NewServer(addr string, reg *prometheus.Registry) *Server {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok\n"))
	})
	r.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))

	return &Server{srv: &http.Server{Addr: addr, Handler: r}}
}

// Start begins serving in the background. Listen errors other than a clean
// shutdown are reported on the returned channel.
func (s *Server) Start() <-chan error {
	errc := make(chan error, 1)
	go func() {
		if err := s.srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errc <- err
		}
		close(errc)
	}()
	return errc
}

// Stop shuts the listener down.
func (s *Server) Stop(ctx context.Context) error {
	return s.srv.Shutdown(ctx)
}
