package web

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"gitlab.com/timkado/api/affiliate-lead-service/internal/attribution"
	"gitlab.com/timkado/api/affiliate-lead-service/internal/config"
	"gitlab.com/timkado/api/affiliate-lead-service/internal/storage"
	"gitlab.com/timkado/api/affiliate-lead-service/pkg/utils"
)

// Deps are the collaborators of the public web server.
type Deps struct {
	Resolver    attribution.AffiliateResolver
	Cookies     *attribution.CookieStore
	Properties  storage.PropertyRepo
	Visits      VisitRecorder
	Leads       LeadSubmitter
	Limiter     *RateLimiter
	CatalogPath string
}

// Server is the public catalog and inquiry server.
type Server struct {
	engine     *gin.Engine
	httpServer *http.Server
	logger     *zap.Logger
}

// NewServer builds the router. Requests pass recovery, request id, access
// logging and attribution before reaching a handler.
func NewServer(cfg config.HTTPConfig, deps Deps, log *zap.Logger) (*Server, error) {
	log = log.Named("web")

	engine := gin.New()
	if err := engine.SetTrustedProxies(cfg.TrustedProxies); err != nil {
		return nil, fmt.Errorf("invalid trusted proxies: %w", err)
	}

	engine.Use(
		Recovery(log),
		RequestID(log),
		RequestLogger(log),
		attribution.Middleware(deps.Resolver, deps.Cookies, log),
	)

	catalogPath := deps.CatalogPath
	if catalogPath == "" {
		catalogPath = "/properties"
	}
	limiter := deps.Limiter
	if limiter == nil {
		limiter = NewRateLimiter(0, 1)
	}

	h := &handlers{
		resolver:    deps.Resolver,
		cookies:     deps.Cookies,
		properties:  deps.Properties,
		visits:      deps.Visits,
		leads:       deps.Leads,
		catalogPath: catalogPath,
		logger:      log,
	}

	engine.GET("/ref/:code", h.referral)
	properties := engine.Group("/properties")
	{
		properties.GET("", h.catalog)
		properties.GET("/:slug", h.property)
		properties.POST("/:slug/inquiries", limiter.Middleware(), h.inquiry)
	}

	return &Server{
		engine: engine,
		httpServer: &http.Server{
			Addr:              fmt.Sprintf(":%d", cfg.Port),
			Handler:           engine,
			ReadTimeout:       cfg.ReadTimeout,
			ReadHeaderTimeout: 5 * time.Second,
			WriteTimeout:      cfg.WriteTimeout,
		},
		logger: log,
	}, nil
}

// Handler exposes the router for tests.
func (s *Server) Handler() http.Handler {
	return s.engine
}

// Start serves in the background.
func (s *Server) Start() {
	utils.SafeGo(func() {
		s.logger.Info("Starting web server", zap.String("addr", s.httpServer.Addr))
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			s.logger.Error("Web server error", zap.Error(err))
		}
	}, nil)
}

// Stop drains in-flight requests.
func (s *Server) Stop(ctx context.Context) error {
	s.logger.Info("Stopping web server")
	return s.httpServer.Shutdown(ctx)
}
