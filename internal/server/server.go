package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/smallbiznis/oceandata/internal/assistant"
	assistantdomain "github.com/smallbiznis/oceandata/internal/assistant/domain"
	"github.com/smallbiznis/oceandata/internal/config"
	datasetdomain "github.com/smallbiznis/oceandata/internal/dataset/domain"
	"github.com/smallbiznis/oceandata/internal/observability"
	obsmiddleware "github.com/smallbiznis/oceandata/internal/observability/logger"
	obsmetrics "github.com/smallbiznis/oceandata/internal/observability/metrics"
	obstracing "github.com/smallbiznis/oceandata/internal/observability/tracing"
	"github.com/smallbiznis/oceandata/internal/ratelimit"
)

// multipartOverhead is allowed on top of a file limit for form boundaries and fields.
const multipartOverhead = 1 << 20

var Module = fx.Module("http.server",
	assistant.Module,
	ratelimit.Module,
	fx.Provide(registerGin),
	fx.Invoke(NewServer),
	fx.Invoke(run),
)

func NewEngine(obsCfg observability.Config, cfg config.Config, httpMetrics *obsmetrics.HTTPMetrics) *gin.Engine {
	if !obsCfg.Debug() {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(obsmiddleware.GinMiddleware(obsmiddleware.MiddlewareConfig{
		Debug:           obsCfg.Debug(),
		ErrorClassifier: classifyErrorForLog,
	}))
	r.Use(obstracing.GinMiddleware())
	r.Use(httpMetrics.Middleware())
	r.Use(CORS(cfg.CORSAllowedOrigins))
	r.Use(ErrorHandlingMiddleware())

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	return r
}

func registerGin(obsCfg observability.Config, cfg config.Config, httpMetrics *obsmetrics.HTTPMetrics) *gin.Engine {
	return NewEngine(obsCfg, cfg, httpMetrics)
}

func run(lc fx.Lifecycle, cfg config.Config, r *gin.Engine, log *zap.Logger) {
	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			go func() {
				log.Info("http server listening", zap.String("addr", cfg.HTTPAddr))
				if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					log.Fatal("http server stopped", zap.Error(err))
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		},
	})
}

type Server struct {
	engine        *gin.Engine
	cfg           config.Config
	log           *zap.Logger
	datasetSvc    datasetdomain.Service
	assistantSvc  assistantdomain.Service
	uploadLimiter *ratelimit.UploadLimiter
	obsMetrics    *obsmetrics.Metrics
}

type ServerParams struct {
	fx.In

	Gin           *gin.Engine
	Cfg           config.Config
	Log           *zap.Logger
	DatasetSvc    datasetdomain.Service
	AssistantSvc  assistantdomain.Service
	UploadLimiter *ratelimit.UploadLimiter `optional:"true"`
	ObsMetrics    *obsmetrics.Metrics      `optional:"true"`
}

func NewServer(p ServerParams) *Server {
	svc := &Server{
		engine:        p.Gin,
		cfg:           p.Cfg,
		log:           p.Log.Named("http"),
		datasetSvc:    p.DatasetSvc,
		assistantSvc:  p.AssistantSvc,
		uploadLimiter: p.UploadLimiter,
		obsMetrics:    p.ObsMetrics,
	}

	svc.registerDatasetRoutes()
	svc.registerAssistantRoutes()
	svc.registerStaticRoutes()

	return svc
}

func (s *Server) Engine() *gin.Engine {
	return s.engine
}

func (s *Server) registerDatasetRoutes() {
	api := s.engine.Group("/api")

	datasets := api.Group("/datasets")
	{
		datasets.POST("/upload",
			s.UploadRateLimit(),
			LimitBody(s.cfg.MaxDatasetBytes+multipartOverhead),
			s.UploadDataset,
		)
		datasets.GET("", s.ListDatasets)
		datasets.GET("/statistics", s.GetStatistics)
		datasets.GET("/:id", s.GetDataset)
		datasets.GET("/:id/records", s.ListDatasetRecords)
		datasets.GET("/:id/logs", s.ListDatasetLogs)
		datasets.GET("/:id/export", s.ExportDataset)
		datasets.DELETE("/:id", s.DeleteDataset)
	}

	api.GET("/search", s.SearchRecords)
}

func (s *Server) registerAssistantRoutes() {
	api := s.engine.Group("/api")

	api.POST("/chat", LimitBody(64<<10), s.Chat)
	api.POST("/analyze-image", LimitBody(s.cfg.MaxImageBytes*2+multipartOverhead), s.AnalyzeImage)
	api.POST("/upload",
		s.UploadRateLimit(),
		LimitBody(s.cfg.MaxImageBytes+multipartOverhead),
		s.UploadImage,
	)
	api.GET("/chat-history", s.ChatHistory)
	api.GET("/recent-identifications", s.RecentIdentifications)
}

func (s *Server) registerStaticRoutes() {
	if s.cfg.ImageUploadDir != "" {
		s.engine.Static("/uploads", s.cfg.ImageUploadDir)
	}
}
