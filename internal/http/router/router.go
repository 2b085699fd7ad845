package router

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"

	"github.com/ignatzorin/gig-escrow/internal/auth"
	"github.com/ignatzorin/gig-escrow/internal/config"
	"github.com/ignatzorin/gig-escrow/internal/fingerprint"
	"github.com/ignatzorin/gig-escrow/internal/http/middleware"
	"github.com/ignatzorin/gig-escrow/internal/interface/http/handler"
	"github.com/ignatzorin/gig-escrow/internal/logger"
	"github.com/ignatzorin/gig-escrow/internal/validation"
)

// Handlers - всё, что нужно роутеру.
type Handlers struct {
	Orders   *handler.OrderHandler
	Escrow   *handler.EscrowHandler
	Disputes *handler.DisputeHandler
	Fraud    *handler.FraudHandler
	Health   *handler.HealthHandler
	WS       *handler.WSHandler
	Metrics  http.Handler
}

func SetupRouter(cfg *config.Config, tokens *auth.TokenManager, extractor *fingerprint.Extractor, h Handlers) *gin.Engine {
	if cfg.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	if v, ok := binding.Validator.Engine().(*validator.Validate); ok {
		if err := validation.RegisterCurrency(v); err != nil {
			logger.WithComponent("http").WithError(err).Error("router: не удалось зарегистрировать валидатор currency")
		}
	}

	r := gin.New()
	r.Use(gin.Logger(), gin.Recovery())
	r.Use(middleware.ErrorHandler())
	r.Use(middleware.CORSMiddleware(cfg.AllowedOrigins))

	r.GET("/health", h.Health.Health)
	if h.Metrics != nil {
		r.GET("/metrics", gin.WrapH(h.Metrics))
	}

	api := r.Group("/api")
	api.Use(fingerprint.Middleware(extractor))

	if h.WS != nil {
		api.GET("/ws", h.WS.Handle)
	}

	protected := api.Group("/")
	protected.Use(middleware.AuthMiddleware(tokens))
	protected.Use(middleware.RateLimitMiddleware(cfg.RateLimitLimit, cfg.RateLimitPeriod))
	{
		// Заказы
		protected.POST("/orders", h.Orders.CreateOrder)
		protected.GET("/orders/:id", middleware.UUIDValidator("id"), h.Orders.GetOrder)
		protected.GET("/orders/:id/history", middleware.UUIDValidator("id"), h.Orders.History)
		protected.POST("/orders/:id/transitions", middleware.UUIDValidator("id"), h.Orders.Transition)

		// Платёж по заказу
		protected.POST("/orders/:id/payment/authorize", middleware.UUIDValidator("id"), h.Escrow.Authorize)
		protected.GET("/orders/:id/payment", middleware.UUIDValidator("id"), h.Escrow.ByOrder)

		// Escrow
		protected.GET("/escrow/:id", middleware.UUIDValidator("id"), h.Escrow.Get)
		protected.POST("/escrow/:id/capture", middleware.UUIDValidator("id"), h.Escrow.Capture)
		protected.POST("/escrow/:id/release", middleware.UUIDValidator("id"), h.Escrow.Release)
		protected.POST("/escrow/:id/refund", middleware.UUIDValidator("id"), h.Escrow.Refund)

		// Выплаты
		protected.POST("/payouts", h.Escrow.CreatePayout)
		protected.GET("/payouts/balance", h.Escrow.Balance)
		protected.GET("/payouts/:id", middleware.UUIDValidator("id"), h.Escrow.GetPayout)
		protected.POST("/payouts/:id/process", middleware.UUIDValidator("id"), h.Escrow.ProcessPayout)

		// Споры
		protected.POST("/orders/:id/disputes", middleware.UUIDValidator("id"), h.Disputes.Open)
		protected.GET("/orders/:id/disputes", middleware.UUIDValidator("id"), h.Disputes.ByOrder)
		protected.GET("/disputes/:id", middleware.UUIDValidator("id"), h.Disputes.Get)
		protected.POST("/disputes/:id/evidence", middleware.UUIDValidator("id"), h.Disputes.SubmitEvidence)
		protected.POST("/disputes/:id/escalate", middleware.UUIDValidator("id"), h.Disputes.Escalate)
		protected.POST("/disputes/:id/resolve", middleware.UUIDValidator("id"), h.Disputes.Resolve)
		protected.POST("/disputes/:id/close", middleware.UUIDValidator("id"), h.Disputes.Close)

		// Антифрод
		protected.POST("/fraud/evaluate", h.Fraud.Evaluate)
	}

	return r
}
