package server

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/marginlens/marginlens/internal/aggregate"
	aggregatedomain "github.com/marginlens/marginlens/internal/aggregate/domain"
	"github.com/marginlens/marginlens/internal/clock"
	"github.com/marginlens/marginlens/internal/config"
	"github.com/marginlens/marginlens/internal/customer"
	customerdomain "github.com/marginlens/marginlens/internal/customer/domain"
	"github.com/marginlens/marginlens/internal/dashboard"
	dashboarddomain "github.com/marginlens/marginlens/internal/dashboard/domain"
	"github.com/marginlens/marginlens/internal/event"
	eventdomain "github.com/marginlens/marginlens/internal/event/domain"
	"github.com/marginlens/marginlens/internal/insight"
	insightdomain "github.com/marginlens/marginlens/internal/insight/domain"
	"github.com/marginlens/marginlens/internal/observability"
	obsmiddleware "github.com/marginlens/marginlens/internal/observability/logger"
	obsmetrics "github.com/marginlens/marginlens/internal/observability/metrics"
	obstracing "github.com/marginlens/marginlens/internal/observability/tracing"
	"go.uber.org/fx"
)

var Module = fx.Module("http.server",
	fx.Provide(registerGin),
	customer.Module,
	event.Module,
	aggregate.Module,
	insight.Module,
	dashboard.Module,
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

func run(lc fx.Lifecycle, cfg config.Config, r *gin.Engine) {
	srv := &http.Server{
		Addr:    cfg.HTTPAddr,
		Handler: r,
	}

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			go func() {
				if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
					panic(err)
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
	engine       *gin.Engine
	cfg          config.Config
	clock        clock.Clock
	customerSvc  customerdomain.Service
	eventSvc     eventdomain.Service
	aggregateSvc aggregatedomain.Service
	insightSvc   insightdomain.Service
	dashboardSvc dashboarddomain.Service
}

type ServerParams struct {
	fx.In

	Gin          *gin.Engine
	Cfg          config.Config
	Clock        clock.Clock
	CustomerSvc  customerdomain.Service
	EventSvc     eventdomain.Service
	AggregateSvc aggregatedomain.Service
	InsightSvc   insightdomain.Service
	DashboardSvc dashboarddomain.Service
}

func NewServer(p ServerParams) *Server {
	svc := &Server{
		engine:       p.Gin,
		cfg:          p.Cfg,
		clock:        p.Clock,
		customerSvc:  p.CustomerSvc,
		eventSvc:     p.EventSvc,
		aggregateSvc: p.AggregateSvc,
		insightSvc:   p.InsightSvc,
		dashboardSvc: p.DashboardSvc,
	}

	svc.registerAPIRoutes()

	return svc
}

func (s *Server) Engine() *gin.Engine {
	return s.engine
}

func (s *Server) registerAPIRoutes() {
	api := s.engine.Group("/api")

	api.GET("/health", s.Health)

	// -------- Events --------
	api.POST("/events/usage", s.IngestUsage)
	api.POST("/events/revenue", s.IngestRevenue)
	api.GET("/sync/stats", s.SyncStats)

	// -------- Customers --------
	api.GET("/customers", s.ListCustomers)
	api.POST("/customers", s.CreateCustomer)
	api.GET("/customers/:id", s.GetCustomerByID)

	// -------- Aggregates --------
	api.POST("/aggregates/materialize", s.MaterializeAggregates)

	// -------- Insights --------
	api.GET("/insights", s.ListInsights)
	api.POST("/insights/compute", s.ComputeInsights)

	// -------- Dashboard --------
	api.GET("/dashboard", s.GetDashboard)
	api.GET("/timeseries", s.GetTimeSeries)
	api.GET("/features", s.GetFeatureMetrics)
}

func (s *Server) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "healthy"})
}
