// Package server wires the HTTP surface: webhook intake, creator-facing
// balance and payout endpoints, provider callbacks, and operational probes.
package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/Arnzyy/AIFANS-sub001/internal/config"
	ledgerdomain "github.com/Arnzyy/AIFANS-sub001/internal/ledger/domain"
	"github.com/Arnzyy/AIFANS-sub001/internal/observability/logger"
	obsmetrics "github.com/Arnzyy/AIFANS-sub001/internal/observability/metrics"
	payoutdomain "github.com/Arnzyy/AIFANS-sub001/internal/payout/domain"
	reconciliationservice "github.com/Arnzyy/AIFANS-sub001/internal/reconciliation/service"
	subscriptiondomain "github.com/Arnzyy/AIFANS-sub001/internal/subscription/domain"
	webhookservice "github.com/Arnzyy/AIFANS-sub001/internal/webhook/service"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

type Params struct {
	fx.In

	Config         config.Config
	Log            *zap.Logger
	Webhook        webhookservice.Service
	Ledger         ledgerdomain.Service
	Subscription   subscriptiondomain.Service
	Payout         payoutdomain.Service
	Reconciliation reconciliationservice.Service
	ObsMetrics     *obsmetrics.Metrics `optional:"true"`
}

type Server struct {
	engine *gin.Engine
	log    *zap.Logger

	webhook        webhookservice.Service
	ledger         ledgerdomain.Service
	subscription   subscriptiondomain.Service
	payout         payoutdomain.Service
	reconciliation reconciliationservice.Service
}

func NewEngine(p Params) *gin.Engine {
	if p.Config.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	s := &Server{
		log:            p.Log.Named("server"),
		webhook:        p.Webhook,
		ledger:         p.Ledger,
		subscription:   p.Subscription,
		payout:         p.Payout,
		reconciliation: p.Reconciliation,
	}

	engine := gin.New()
	engine.Use(gin.Recovery())
	engine.Use(logger.GinMiddleware(p.Log))
	engine.Use(ErrorMiddleware())

	engine.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	if p.ObsMetrics != nil {
		engine.GET("/metrics", gin.WrapH(promhttp.HandlerFor(
			p.ObsMetrics.Registry(),
			promhttp.HandlerOpts{},
		)))
	}

	engine.POST("/webhooks/payments", s.handleWebhook)

	v1 := engine.Group("/v1")
	{
		v1.GET("/creators/:creator_id/balance", s.handleBalance)
		v1.POST("/creators/:creator_id/payouts", s.handleRequestPayout)
		v1.GET("/payouts/:payout_id", s.handleGetPayout)
		v1.POST("/payouts/:payout_id/confirm", s.handleConfirmPayout)
		v1.POST("/payouts/:payout_id/fail", s.handleFailPayout)
		v1.GET("/subscriptions/status", s.handleSubscriptionStatus)
		v1.GET("/reconciliation/cases", s.handleListCases)
		v1.POST("/reconciliation/cases/:case_id/resolve", s.handleResolveCase)
	}

	s.engine = engine
	return engine
}

// Run starts the HTTP listener under the fx lifecycle.
func Run(lc fx.Lifecycle, cfg config.Config, log *zap.Logger, engine *gin.Engine) {
	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           engine,
		ReadHeaderTimeout: 10 * time.Second,
	}

	lc.Append(fx.Hook{
		OnStart: func(context.Context) error {
			go func() {
				log.Info("http server listening", zap.String("addr", cfg.HTTPAddr))
				if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					log.Error("http server stopped", zap.Error(err))
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			return srv.Shutdown(ctx)
		},
	})
}

var Module = fx.Module("server",
	fx.Provide(NewEngine),
	fx.Invoke(Run),
)
