package server

import (
	"context"
	"fmt"
	"io"
	"net/http"

	"github.com/KramerO/ollama-flow-sub002/internal/drone"
	"github.com/KramerO/ollama-flow-sub002/internal/pool"
	"github.com/KramerO/ollama-flow-sub002/internal/workflow"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// Coordinator is the part of workflow.Coordinator the API drives.
type Coordinator interface {
	PoolStatus() map[drone.Role][]pool.AgentStatus
	ProcessWorkflow(ctx context.Context, query string) *workflow.Record
}

// StartOpts holds configuration for the API server.
type StartOpts struct {
	Coordinator Coordinator
	Reader      workflow.Reader
	Port        int
	Out         io.Writer
	Logger      *zap.Logger
}

// Start launches the HTTP API. It blocks until ctx is cancelled, then shuts
// down gracefully.
func Start(ctx context.Context, opts StartOpts) error {
	router, err := NewRouter(opts)
	if err != nil {
		return err
	}
	if opts.Port <= 0 {
		opts.Port = 8080
	}

	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", opts.Port),
		Handler: router,
	}

	go func() {
		<-ctx.Done()
		srv.Shutdown(context.Background())
	}()

	if opts.Out != nil {
		fmt.Fprintf(opts.Out, "API listening on http://localhost:%d\n", opts.Port)
	}
	if opts.Logger != nil {
		opts.Logger.Info("server started", zap.Int("port", opts.Port))
	}

	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("server: %w", err)
	}
	return nil
}

// NewRouter builds the gin engine without binding a listener.
func NewRouter(opts StartOpts) (*gin.Engine, error) {
	if opts.Coordinator == nil {
		return nil, fmt.Errorf("server: coordinator is required")
	}
	if opts.Reader == nil {
		return nil, fmt.Errorf("server: workflow reader is required")
	}
	log := opts.Logger
	if log == nil {
		log = zap.NewNop()
	}

	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())

	registerRoutes(router, opts.Coordinator, opts.Reader, log)
	return router, nil
}
