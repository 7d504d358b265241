package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/danmuck/evrstamp/internal/observability"
	"github.com/danmuck/evrstamp/internal/pipeline"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
)

const (
	DefaultRequestTimeout  = 2 * time.Second
	DefaultShutdownTimeout = 5 * time.Second
)

// Server exposes one pipeline's register file over HTTP.
type Server struct {
	ID       string
	Addr     string
	Appeared time.Time

	RequestTimeout time.Duration

	pipe   *pipeline.Pipeline
	router *gin.Engine
}

func New(id, addr string, corsOrigins []string, p *pipeline.Pipeline) *Server {
	observability.RegisterMetrics()
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(observability.RequestLogger(log.Logger))
	r.Use(observability.RequestMetricsMiddleware(p.Name()))
	r.Use(cors.New(cors.Config{
		AllowOrigins: normalizeOrigins(corsOrigins),
		AllowMethods: []string{"GET", "POST"},
		AllowHeaders: []string{"Origin", "Content-Type"},
		MaxAge:       12 * time.Hour,
	}))
	_ = r.SetTrustedProxies([]string{"127.0.0.1", "::1"})

	return &Server{
		ID:             id,
		Addr:           addr,
		Appeared:       time.Now(),
		RequestTimeout: DefaultRequestTimeout,
		pipe:           p,
		router:         r,
	}
}

func (s *Server) HTTPRouter() *gin.Engine {
	return s.router
}

// Serve registers routes and blocks until ctx is done or the listener
// fails.
func (s *Server) Serve(ctx context.Context) error {
	s.RegisterRoutes()
	srv := &http.Server{
		Addr:              s.Addr,
		Handler:           s.router,
		ReadHeaderTimeout: 5 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}
	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), DefaultShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	log.Info().Str("id", s.ID).Msg("http server stopped")
	return nil
}

func normalizeOrigins(origins []string) []string {
	if len(origins) == 0 {
		return []string{"http://localhost:3000"}
	}
	return origins
}
