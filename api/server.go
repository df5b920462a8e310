// Package api exposes reel generation over HTTP.
package api

import (
	"context"
	"time"

	"reelgen/backgrounds"
	"reelgen/pipeline"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// Runs submits and looks up asynchronous runs. *jobs.Registry satisfies it.
type Runs interface {
	Submit(req pipeline.Request) (string, error)
	Get(id string) (*pipeline.Run, error)
	List() []pipeline.Status
}

// Rotation reports catalog sizes and resets rotation state.
// *backgrounds.Selector satisfies it.
type Rotation interface {
	Sizes() map[backgrounds.Category]int
	Reset(ctx context.Context, cat backgrounds.Category) error
}

// Server carries the dependencies of the route handlers.
type Server struct {
	runs      Runs
	rotation  Rotation
	logger    *zap.Logger
	maxUpload int64
}

// DefaultMaxUpload caps custom background uploads.
const DefaultMaxUpload = 500 << 20

// NewServer builds a Server. A maxUpload of zero uses DefaultMaxUpload.
func NewServer(runs Runs, rotation Rotation, logger *zap.Logger, maxUpload int64) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	if maxUpload <= 0 {
		maxUpload = DefaultMaxUpload
	}
	return &Server{runs: runs, rotation: rotation, logger: logger, maxUpload: maxUpload}
}

// NewRouter constructs a Gin engine with registered routes.
func NewRouter(s *Server) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), requestLogger(s.logger))
	r.MaxMultipartMemory = 32 << 20

	RegisterHealthRoutes(r)
	s.RegisterCategoryRoutes(r)
	s.RegisterReelRoutes(r)
	return r
}

func requestLogger(logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		logger.Debug("http request",
			zap.String("method", c.Request.Method),
			zap.String("path", c.FullPath()),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("latency", time.Since(start)),
		)
	}
}
