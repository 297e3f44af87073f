// Package server exposes the progression engine as a JSON API over HTTP.
package server

import (
	"context"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/mkernan/questboard/internal/notify"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// StartOpts holds configuration for the API server.
type StartOpts struct {
	DB         *gorm.DB
	Port       int
	JWTSecret  []byte
	Dispatcher *notify.Dispatcher
	Log        *logrus.Logger
}

// Start launches the API server. It blocks until ctx is cancelled, then
// shuts down gracefully.
func Start(ctx context.Context, opts StartOpts) error {
	if opts.DB == nil {
		return fmt.Errorf("server: db is required")
	}
	if len(opts.JWTSecret) == 0 {
		return fmt.Errorf("server: jwt secret is required")
	}
	if opts.Port <= 0 {
		opts.Port = 8080
	}
	if opts.Log == nil {
		opts.Log = logrus.StandardLogger()
	}

	gin.SetMode(gin.ReleaseMode)
	router := newRouter(opts)

	addr := fmt.Sprintf(":%d", opts.Port)
	srv := &http.Server{
		Addr:    addr,
		Handler: router,
	}

	// Graceful shutdown on context cancellation.
	go func() {
		<-ctx.Done()
		srv.Shutdown(context.Background())
	}()

	opts.Log.WithField("addr", addr).Info("api server listening")

	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("server: %w", err)
	}
	return nil
}

// newRouter builds the gin engine with all routes registered.
func newRouter(opts StartOpts) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())

	h := &handlers{
		db:         opts.DB,
		dispatcher: opts.Dispatcher,
		log:        opts.Log,
	}
	registerRoutes(router, h, opts.JWTSecret)
	return router
}
