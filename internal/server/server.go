package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/studyloop/polarsync/internal/config"
	ingestdomain "github.com/studyloop/polarsync/internal/ingest/domain"
	"github.com/studyloop/polarsync/internal/observability/logger"
	"github.com/studyloop/polarsync/internal/observability/tracing"
	"go.opentelemetry.io/otel/propagation"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const (
	webhookRateLimit  = 300
	webhookRateWindow = time.Minute
)

type Params struct {
	fx.In

	Cfg       config.Config
	Log       *zap.Logger
	DB        *gorm.DB
	IngestSvc ingestdomain.Service
}

type Server struct {
	cfg       config.Config
	log       *zap.Logger
	db        *gorm.DB
	ingestSvc ingestdomain.Service
}

func NewServer(p Params) *Server {
	return &Server{
		cfg:       p.Cfg,
		log:       p.Log.Named("server"),
		db:        p.DB,
		ingestSvc: p.IngestSvc,
	}
}

// Router builds the gin engine with all routes registered.
func (s *Server) Router() *gin.Engine {
	if s.cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(func(c *gin.Context) {
		ctx := tracing.ExtractContext(c.Request.Context(), propagation.HeaderCarrier(c.Request.Header))
		c.Request = c.Request.WithContext(ctx)
		c.Next()
	})
	router.Use(logger.GinMiddleware(logger.MiddlewareConfig{
		SkipPaths: []string{"/healthz", "/metrics"},
	}))

	router.GET("/healthz", s.Health)
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	limiter := newRateLimiter(webhookRateLimit, webhookRateWindow)
	router.POST("/webhooks/polar", rateLimitMiddleware(limiter), s.PolarWebhook)
	return router
}

// Run starts the HTTP server and wires it into the fx lifecycle.
func Run(lc fx.Lifecycle, s *Server) {
	srv := &http.Server{
		Addr:    s.cfg.HTTPAddr,
		Handler: s.Router(),
	}

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			go func() {
				if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					s.log.Error("http server stopped", zap.Error(err))
				}
			}()
			s.log.Info("http server listening", zap.String("addr", s.cfg.HTTPAddr))
			return nil
		},
		OnStop: func(ctx context.Context) error {
			return srv.Shutdown(ctx)
		},
	})
}

var Module = fx.Module("server",
	fx.Provide(NewServer),
	fx.Invoke(Run),
)
