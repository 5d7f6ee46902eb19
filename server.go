// Package stmlive is the HTTP surface of the live-arrival engine: trip
// search, point-to-point ETA and the per-itinerary polling sessions.
package stmlive

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/mtlrider/stm-live/config"
	"github.com/mtlrider/stm-live/directions"
	"github.com/mtlrider/stm-live/geo"
	"github.com/mtlrider/stm-live/metrics"
	"github.com/mtlrider/stm-live/poll"
)

const shutdownTimeout = 10 * time.Second

// DirectionsAPI is the slice of the directions client the handlers use.
type DirectionsAPI interface {
	ComputeRoutes(ctx context.Context, origin, destination string) (*directions.RoutesResponse, error)
	EstimateETA(ctx context.Context, from, to geo.Coord) *int
}

type Server struct {
	cfg       *config.AppConfig
	log       *zap.Logger
	collector *metrics.Collector
	routes    DirectionsAPI
	sessions  *poll.Registry
	started   time.Time
	http      *http.Server
}

func NewServer(cfg *config.AppConfig, log *zap.Logger, collector *metrics.Collector, routes DirectionsAPI, sessions *poll.Registry) *Server {
	s := &Server{
		cfg:       cfg,
		log:       log,
		collector: collector,
		routes:    routes,
		sessions:  sessions,
		started:   time.Now(),
	}
	s.http = &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:           s.router(),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	return s
}

func (s *Server) router() *gin.Engine {
	if s.cfg.Server.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.New()
	r.Use(requestLogger(s.log), gin.Recovery())

	r.GET("/health", s.handleHealth)
	if s.collector != nil {
		r.GET("/metrics", gin.WrapH(s.collector.Handler()))
	}

	api := r.Group("/api")
	{
		api.POST("/directions", s.handleDirections)
		// Historical alias kept for clients issued before the rename.
		api.POST("/routes", s.handleDirections)
		api.POST("/eta", s.handleETA)
		api.POST("/sessions", s.handleCreateSession)
		api.DELETE("/sessions/:id", s.handleCancelSession)
		api.GET("/sessions/:id/arrivals", s.handleArrivals)
	}
	return r
}

// Run serves until the context is cancelled, then drains in-flight requests
// and cancels every polling session.
func (s *Server) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		if err := s.http.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()
	s.log.Info("server listening", zap.String("addr", s.http.Addr))

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	s.log.Info("shutdown signal received")
	s.sessions.CancelAll()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := s.http.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown: %w", err)
	}
	s.log.Info("server shut down")
	return nil
}
