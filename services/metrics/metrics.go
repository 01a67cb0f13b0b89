package metrics

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"sjsage522/placereviewworker/logger"
)

var (
	Rounds = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: "placereview", Name: "rounds_total", Help: "Scan rounds by outcome."},
		[]string{"outcome"}, // new|idle|error
	)
	Records = prometheus.NewCounter(
		prometheus.CounterOpts{Namespace: "placereview", Name: "records_total", Help: "Deduplicated review records collected."},
	)
	Recoveries = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: "placereview", Name: "recoveries_total", Help: "Recovery sweeps by result."},
		[]string{"result"}, // resumed|exhausted
	)
	Harvests = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: "placereview", Name: "harvests_total", Help: "Per-entity harvests by status."},
		[]string{"status"}, // ok|failed|skipped
	)
	HarvestDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "placereview", Name: "harvest_duration_seconds",
			Help:    "Per-entity harvest duration seconds.",
			Buckets: []float64{10, 30, 60, 120, 300, 600, 1200, 2400},
		},
	)
	CacheEvents = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: "placereview", Name: "cache_events_total", Help: "Harvest guard hits/misses/sets."},
		[]string{"event"}, // hit|miss|set|error
	)
)

// InitRegistry registers every collector on a fresh registry
func InitRegistry() *prometheus.Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(Rounds, Records, Recoveries, Harvests, HarvestDuration, CacheEvents)
	return reg
}

// Router serves /metrics and /healthz
func Router(reg *prometheus.Registry) http.Handler {
	r := chi.NewRouter()
	r.Use(chimw.Recoverer)
	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(200); _, _ = w.Write([]byte("ok")) })
	r.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	return r
}

// Serve runs the metrics server until ctx is cancelled; an empty addr disables it
func Serve(ctx context.Context, addr string, reg *prometheus.Registry) {
	if addr == "" {
		return
	}
	log := logger.ForComponent("metrics")
	srv := &http.Server{
		Addr:              addr,
		Handler:           Router(reg),
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	go func() {
		log.Info().Str("addr", addr).Msg("metrics server listening")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error().Err(err).Msg("metrics server failed")
		}
	}()
}

func ObserveRound(outcome string) { Rounds.WithLabelValues(outcome).Inc() }

func ObserveRecords(n int) { Records.Add(float64(n)) }

func ObserveRecovery(result string) { Recoveries.WithLabelValues(result).Inc() }

func ObserveHarvest(status string, dur time.Duration) {
	Harvests.WithLabelValues(status).Inc()
	if status != "skipped" {
		HarvestDuration.Observe(dur.Seconds())
	}
}

func ObserveCache(event string) { CacheEvents.WithLabelValues(event).Inc() }
