package router

import (
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/ignatzorin/dispatch-engine/internal/config"
	"github.com/ignatzorin/dispatch-engine/internal/http/middleware"
	"github.com/ignatzorin/dispatch-engine/internal/interface/http/handler"
	"github.com/ignatzorin/dispatch-engine/internal/metrics"
	"github.com/ignatzorin/dispatch-engine/internal/service"
)

// Handlers обработчики HTTP API. WS и Admin могут быть nil.
type Handlers struct {
	Request  *handler.RequestHandler
	Quote    *handler.QuoteHandler
	Dispatch *handler.DispatchHandler
	Stream   *handler.StreamHandler
	Admin    *handler.AdminHandler
	WS       *handler.WSHandler
	Health   *handler.HealthHandler
}

func SetupRouter(cfg *config.Config, h Handlers, tokenManager *service.TokenManager) *gin.Engine {
	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.Default()
	r.Use(middleware.MetricsMiddleware())
	r.Use(middleware.ErrorHandler())
	r.Use(middleware.CORSMiddleware(cfg.AllowedOrigins))

	r.GET("/health", h.Health.Health)
	r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(metrics.Registry, promhttp.HandlerOpts{})))

	api := r.Group("/api")
	api.Use(middleware.AuthMiddleware(tokenManager))
	api.Use(middleware.RateLimitMiddleware(cfg.RateLimitLimit, cfg.RateLimitPeriod))

	if h.WS != nil {
		api.GET("/ws", h.WS.Handle)
	}

	validID := middleware.UUIDValidator("id")

	requests := api.Group("/requests")
	{
		requests.POST("", h.Request.CreateRequest)
		requests.GET("", h.Request.ListRequests)
		requests.GET("/:id", validID, h.Request.GetRequest)
		requests.GET("/:id/events", validID, h.Request.ListEvents)
		requests.GET("/:id/events/stream", validID, h.Stream.StreamEvents)
		requests.GET("/:id/eligible-operators", validID, h.Request.ListEligibleOperators)

		requests.POST("/:id/offer", validID, h.Request.OfferToOperator)
		requests.POST("/:id/offer/response", validID, h.Request.RespondToOffer)
		requests.POST("/:id/start", validID, h.Request.StartWork)
		requests.POST("/:id/complete", validID, h.Request.Complete)
		requests.POST("/:id/dispute", validID, h.Request.Dispute)
		requests.POST("/:id/resolve", validID, h.Request.ResolveDispute)
		requests.POST("/:id/cancel", validID, h.Request.Cancel)

		requests.POST("/:id/quotes", validID, h.Quote.SubmitQuote)
		requests.GET("/:id/quotes", validID, h.Quote.ListQuotes)

		requests.POST("/:id/dispatch", validID, h.Dispatch.StartDispatch)
		requests.GET("/:id/dispatch", validID, h.Dispatch.GetDispatch)
	}

	quotes := api.Group("/quotes")
	{
		quotes.GET("/:id", validID, h.Quote.GetQuote)
		quotes.POST("/:id/counter", validID, h.Quote.CounterQuote)
		quotes.POST("/:id/counter/response", validID, h.Quote.RespondToCounter)
		quotes.POST("/:id/accept", validID, h.Quote.AcceptQuote)
		quotes.POST("/:id/decline", validID, h.Quote.DeclineQuote)
		quotes.POST("/:id/withdraw", validID, h.Quote.WithdrawQuote)
	}

	api.POST("/dispatch/entries/:id/response", validID, h.Dispatch.RespondToEntry)

	if h.Admin != nil {
		admin := api.Group("/admin")
		admin.Use(middleware.RequireSystem())
		admin.POST("/sweep", h.Admin.Sweep)
	}

	return r
}
