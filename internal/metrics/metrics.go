// Package metrics records tile interactions as prometheus counters.
package metrics

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

type Sink struct {
	registry *prometheus.Registry
	actions  *prometheus.CounterVec
	log      *zap.Logger
}

func New(log *zap.Logger) *Sink {
	if log == nil {
		log = zap.NewNop()
	}
	actions := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "nightdisplay_tile_actions_total",
			Help: "Tile actions by metrics category and resulting state.",
		},
		[]string{"category", "activated"},
	)

	registry := prometheus.NewRegistry()
	registry.MustRegister(actions)

	return &Sink{registry: registry, actions: actions, log: log}
}

// Action records one event. It never blocks on I/O and never fails.
func (s *Sink) Action(category string, activated bool) {
	s.actions.WithLabelValues(category, strconv.FormatBool(activated)).Inc()
	s.log.Debug("Action", zap.String("category", category), zap.Bool("activated", activated))
}

func (s *Sink) Registry() *prometheus.Registry {
	return s.registry
}

func (s *Sink) Handler() http.Handler {
	return promhttp.HandlerFor(s.registry, promhttp.HandlerOpts{})
}

// Serve exposes /metrics on addr until ctx is done.
func (s *Sink) Serve(ctx context.Context, addr string) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", s.Handler())

	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	s.log.Info("Serving metrics", zap.String("addr", addr))
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
