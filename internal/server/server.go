package server

import (
	"context"
	"net/http"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/smallbiznis/irriflow/internal/billing"
	billingdomain "github.com/smallbiznis/irriflow/internal/billing/domain"
	"github.com/smallbiznis/irriflow/internal/config"
	"github.com/smallbiznis/irriflow/internal/metering"
	meteringdomain "github.com/smallbiznis/irriflow/internal/metering/domain"
	"github.com/smallbiznis/irriflow/internal/observability"
	obsmiddleware "github.com/smallbiznis/irriflow/internal/observability/logger"
	obsmetrics "github.com/smallbiznis/irriflow/internal/observability/metrics"
	obstracing "github.com/smallbiznis/irriflow/internal/observability/tracing"
	"github.com/smallbiznis/irriflow/internal/pump"
	pumpdomain "github.com/smallbiznis/irriflow/internal/pump/domain"
	"github.com/smallbiznis/irriflow/internal/ratelimit"
	"github.com/smallbiznis/irriflow/internal/sensor"
	sensordomain "github.com/smallbiznis/irriflow/internal/sensor/domain"
	"github.com/smallbiznis/irriflow/internal/session"
	sessiondomain "github.com/smallbiznis/irriflow/internal/session/domain"
	"github.com/smallbiznis/irriflow/internal/tariff"
	tariffdomain "github.com/smallbiznis/irriflow/internal/tariff/domain"
)

var Module = fx.Module("http.server",
	fx.Provide(registerGin),
	tariff.Module,
	pump.Module,
	session.Module,
	sensor.Module,
	billing.Module,
	metering.Module,
	ratelimit.Module,
	fx.Invoke(NewServer),
	fx.Invoke(run),
)

func NewEngine(obsCfg observability.Config, httpMetrics *obsmetrics.HTTPMetrics) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(obsmiddleware.GinMiddleware(obsmiddleware.MiddlewareConfig{
		Debug:           obsCfg.Debug(),
		ErrorClassifier: classifyErrorForLog,
	}))
	r.Use(obstracing.GinMiddleware())
	r.Use(obsmetrics.GinMiddleware(httpMetrics))
	r.Use(ErrorHandlingMiddleware())

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	return r
}

func registerGin(obsCfg observability.Config, httpMetrics *obsmetrics.HTTPMetrics) *gin.Engine {
	return NewEngine(obsCfg, httpMetrics)
}

func run(lc fx.Lifecycle, cfg config.Config, r *gin.Engine, log *zap.Logger) {
	srv := &http.Server{
		Addr:    cfg.HTTPAddr,
		Handler: r,
	}

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			log.Info("http server listening", zap.String("addr", cfg.HTTPAddr))
			go func() {
				if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
					log.Fatal("http server failed", zap.Error(err))
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
	engine   *gin.Engine
	cfg      config.Config
	db       *gorm.DB
	log      *zap.Logger
	genID    *snowflake.Node
	metering meteringdomain.Service
	tariffs  tariffdomain.Service
	pumps    pumpdomain.Service
	billing  billingdomain.Service
	sessions sessiondomain.Repository
	readings sensordomain.Repository
	limiter  *ratelimit.Limiter
	metrics  *obsmetrics.Metrics
}

type ServerParams struct {
	fx.In

	Engine   *gin.Engine
	Cfg      config.Config
	DB       *gorm.DB
	Log      *zap.Logger
	GenID    *snowflake.Node
	Metering meteringdomain.Service
	Tariffs  tariffdomain.Service
	Pumps    pumpdomain.Service
	Billing  billingdomain.Service
	Sessions sessiondomain.Repository
	Readings sensordomain.Repository
	Limiter  *ratelimit.Limiter
	Metrics  *obsmetrics.Metrics
}

func NewServer(p ServerParams) *Server {
	s := &Server{
		engine:   p.Engine,
		cfg:      p.Cfg,
		db:       p.DB,
		log:      p.Log.Named("http.server"),
		genID:    p.GenID,
		metering: p.Metering,
		tariffs:  p.Tariffs,
		pumps:    p.Pumps,
		billing:  p.Billing,
		sessions: p.Sessions,
		readings: p.Readings,
		limiter:  p.Limiter,
		metrics:  p.Metrics,
	}
	s.registerRoutes()
	return s
}

func (s *Server) registerRoutes() {
	v1 := s.engine.Group("/v1")
	{
		v1.POST("/usage/start", s.startUsage)
		v1.POST("/usage/update", s.updateUsage)
		v1.POST("/usage/stop", s.stopUsage)
		v1.GET("/pump/status/:id", s.pumpStatus)
		v1.POST("/sensor/data", s.sensorRateLimit(), s.ingestSensorData)
	}

	admin := s.engine.Group("/admin")
	{
		admin.GET("/tariffs", s.listTariffs)
		admin.POST("/tariffs", s.createTariff)
		admin.GET("/tariffs/:id", s.getTariff)
		admin.PATCH("/tariffs/:id", s.updateTariff)
		admin.DELETE("/tariffs/:id", s.deactivateTariff)

		admin.GET("/pumps", s.listPumps)
		admin.POST("/pumps", s.createPump)
		admin.GET("/pumps/:id", s.getPump)
		admin.PATCH("/pumps/:id", s.updatePump)
		admin.GET("/pumps/:id/readings", s.listPumpReadings)

		admin.GET("/sessions", s.listSessions)

		admin.GET("/billings", s.listBillings)
		admin.GET("/billings/:id", s.getBilling)
		admin.POST("/billings/:id/pay", s.payBilling)
	}
}
