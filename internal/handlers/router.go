package handlers

import (
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// RouterConfig groups everything the HTTP surface is built from. Checkout, Webhooks,
// OTP and Metrics may be nil to leave their routes out.
type RouterConfig struct {
	Orders        OrderService
	Checkout      PaymentInitiator
	Webhooks      WebhookReconciler
	OTP           OTPService
	OTPPerMinute  int
	Metrics       http.Handler
	Logger        *zap.Logger
	AllowedOrigins []string
}

// NewRouter builds the gin engine with recovery, request logging and CORS applied.
func NewRouter(cfg RouterConfig) *gin.Engine {
	log := cfg.Logger
	if log == nil {
		log = zap.NewNop()
	}

	r := gin.New()
	r.Use(gin.Recovery(), RequestLogger(log), cors.New(corsConfig(cfg.AllowedOrigins)))

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	if cfg.Metrics != nil {
		r.GET("/metrics", gin.WrapH(cfg.Metrics))
	}

	RegisterOrdersRoutes(r, cfg.Orders, cfg.Checkout, log)
	if cfg.Webhooks != nil {
		RegisterWebhookRoutes(r, cfg.Webhooks, log)
	}
	if cfg.OTP != nil {
		RegisterOTPRoutes(r, cfg.OTP, NewIPRateLimiter(cfg.OTPPerMinute), log)
	}
	return r
}

func corsConfig(origins []string) cors.Config {
	c := cors.Config{
		AllowMethods:  []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowHeaders:  []string{"Origin", "Content-Type", "Idempotency-Key", "X-Request-Id"},
		ExposeHeaders: []string{"Location", "X-Request-Id", "Idempotent-Replayed"},
		MaxAge:        12 * time.Hour,
	}
	if len(origins) == 0 {
		c.AllowAllOrigins = true
	} else {
		c.AllowOrigins = origins
	}
	return c
}
