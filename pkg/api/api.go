package api

import (
	"context"
	"errors"
	"net"
	"net/http"
	"sync"
	"time"

	ginzap "github.com/gin-contrib/zap"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/sipwatch/sipwatch/pkg/apiresponses"
	"github.com/sipwatch/sipwatch/pkg/checker"
	"github.com/sipwatch/sipwatch/pkg/metrics"
	"github.com/sipwatch/sipwatch/pkg/ratelimit"
	"github.com/sipwatch/sipwatch/pkg/version"
)

const shutdownTimeout = 10 * time.Second

type Server struct {
	gin     *gin.Engine
	log     *zap.Logger
	limiter *ratelimit.Limiter

	mu       sync.RWMutex
	last     *checker.Report
	runCount int
}

func NewServer(log *zap.Logger, debug bool) *Server {
	if !debug {
		gin.SetMode(gin.ReleaseMode)
	}

	engine := gin.New()
	engine.Use(
		ginzap.Ginzap(log, time.RFC3339, true),
		ginzap.RecoveryWithZap(log, true),
	)

	s := &Server{
		gin:     engine,
		log:     log.Named("api"),
		limiter: ratelimit.New(ratelimit.DefaultStatusConfig()),
	}

	engine.GET("/healthz", s.healthz)
	engine.GET("/metrics", gin.WrapH(metrics.MetricsHandler()))

	v1 := engine.Group("/api/v1", s.limiter.Middleware())
	v1.GET("/status", s.getStatus)
	v1.GET("/version", s.getVersion)

	return s
}

// Handler returns the underlying http.Handler.
func (s *Server) Handler() http.Handler {
	return s.gin
}

// SetReport records the report of a finished run.
func (s *Server) SetReport(r checker.Report) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.last = &r
	s.runCount++
}

// Serve accepts connections on ln until ctx is cancelled, then shuts down
// gracefully.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	srv := &http.Server{
		Handler:           s.gin,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Serve(ln)
	}()
	s.log.Info("Status API listening", zap.String("address", ln.Addr().String()))

	select {
	case err := <-errCh:
		s.limiter.Stop()
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	err := srv.Shutdown(shutdownCtx)
	s.limiter.Stop()
	if serveErr := <-errCh; serveErr != nil && !errors.Is(serveErr, http.ErrServerClosed) {
		return serveErr
	}
	return err
}

// ListenAndServe listens on addr and calls Serve.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}
	return s.Serve(ctx, ln)
}

// Close stops background work without serving.
func (s *Server) Close() {
	s.limiter.Stop()
}

func (s *Server) healthz(c *gin.Context) {
	apiresponses.RespondOK(c, gin.H{"status": "ok"})
}

type statusResponse struct {
	Runs   int             `json:"runs"`
	Report *checker.Report `json:"report"`
}

func (s *Server) getStatus(c *gin.Context) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.last == nil {
		apiresponses.RespondNotFoundSimple(c, "no run has completed yet")
		return
	}
	apiresponses.RespondOK(c, statusResponse{Runs: s.runCount, Report: s.last})
}

func (s *Server) getVersion(c *gin.Context) {
	apiresponses.RespondOK(c, version.GetBuildInfo())
}
