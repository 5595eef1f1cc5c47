package server

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/ynterhq/gateway/internal/auth"
	bankitemdomain "github.com/ynterhq/gateway/internal/bankitem/domain"
	"github.com/ynterhq/gateway/internal/billing"
	"github.com/ynterhq/gateway/internal/config"
	entitlementdomain "github.com/ynterhq/gateway/internal/entitlement/domain"
	"github.com/ynterhq/gateway/internal/gate"
	obsmiddleware "github.com/ynterhq/gateway/internal/observability/logger"
	obsmetrics "github.com/ynterhq/gateway/internal/observability/metrics"
	"github.com/ynterhq/gateway/internal/providers/bankdata"
	"github.com/ynterhq/gateway/internal/providers/chat"
	"github.com/ynterhq/gateway/internal/providers/places"
	"github.com/ynterhq/gateway/internal/tokencount"
)

var Module = fx.Module("http.server",
	fx.Provide(registerGin),
	fx.Invoke(NewServer),
	fx.Invoke(run),
)

func NewEngine(httpMetrics *obsmetrics.HTTPMetrics) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(obsmiddleware.GinMiddleware(obsmiddleware.MiddlewareConfig{
		ErrorClassifier: classifyErrorForLog,
	}))
	r.Use(obsmetrics.GinMiddleware(httpMetrics))
	r.Use(CORSMiddleware())
	r.Use(ErrorHandlingMiddleware())

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	return r
}

func registerGin(httpMetrics *obsmetrics.HTTPMetrics) *gin.Engine {
	return NewEngine(httpMetrics)
}

func run(lc fx.Lifecycle, cfg config.Config, r *gin.Engine, log *zap.Logger) {
	srv := &http.Server{
		Addr:    cfg.ListenAddr,
		Handler: r,
	}

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			log.Info("http server listening", zap.String("addr", cfg.ListenAddr))
			go func() {
				if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
					log.Fatal("http server failed", zap.Error(err))
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			log.Info("http server stopping")
			shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		},
	})
}

type Server struct {
	engine   *gin.Engine
	cfg      config.Config
	gate     *gate.Gate
	verifier auth.Verifier
	store    entitlementdomain.Store
	counter  tokencount.Counter

	bankItems bankitemdomain.Repository

	chatProvider  chat.Provider
	bankProvider  bankdata.Provider
	placeProvider places.Provider

	sigVerifier *billing.SignatureVerifier
	reconciler  *billing.Reconciler
	registrar   *billing.Registrar
}

type ServerParams struct {
	fx.In

	Gin      *gin.Engine
	Cfg      config.Config
	Gate     *gate.Gate
	Verifier auth.Verifier
	Store    entitlementdomain.Store
	Counter  tokencount.Counter

	BankItems bankitemdomain.Repository

	ChatProvider  chat.Provider
	BankProvider  bankdata.Provider
	PlaceProvider places.Provider

	SigVerifier *billing.SignatureVerifier
	Reconciler  *billing.Reconciler
	Registrar   *billing.Registrar
}

func NewServer(p ServerParams) *Server {
	svc := &Server{
		engine:        p.Gin,
		cfg:           p.Cfg,
		gate:          p.Gate,
		verifier:      p.Verifier,
		store:         p.Store,
		counter:       p.Counter,
		bankItems:     p.BankItems,
		chatProvider:  p.ChatProvider,
		bankProvider:  p.BankProvider,
		placeProvider: p.PlaceProvider,
		sigVerifier:   p.SigVerifier,
		reconciler:    p.Reconciler,
		registrar:     p.Registrar,
	}

	svc.registerAPIRoutes()
	svc.registerBillingRoutes()

	return svc
}

func (s *Server) Engine() *gin.Engine {
	return s.engine
}

func (s *Server) registerAPIRoutes() {
	v1 := s.engine.Group("/v1")

	v1.POST("/chat", s.HandleChat)
	v1.POST("/receipts/search", s.HandleReceiptSearch)

	bank := v1.Group("/bank")
	bank.POST("/link-token", s.HandleBankLinkToken)
	bank.POST("/exchange", s.HandleBankExchange)
	bank.POST("/transactions/sync", s.HandleBankTransactionsSync)
	bank.POST("/remove", s.HandleBankRemove)
}

func (s *Server) registerBillingRoutes() {
	grp := s.engine.Group("/v1/billing")

	grp.POST("/webhook", s.HandleBillingWebhook)
	grp.POST("/customer", s.HandleBillingCustomer)
}
