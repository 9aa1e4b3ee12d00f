package handlers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/imrishuroy/go-canteen-orderflow/internal/validation"
	"go.uber.org/zap"
)

// OTPService issues and checks email one-time codes. *otp.Service implements it.
type OTPService interface {
	Request(ctx context.Context, email string) error
	Verify(ctx context.Context, email, code string) error
}

// RegisterOTPRoutes mounts the OTP endpoints behind limiter.
func RegisterOTPRoutes(r gin.IRouter, svc OTPService, limiter *IPRateLimiter, log *zap.Logger) {
	v := validation.New()
	g := r.Group("/otp")
	if limiter != nil {
		g.Use(limiter.Middleware())
	}

	g.POST("/request", func(c *gin.Context) {
		var req validation.OTPRequest
		if err := validation.BindAndValidate(c, &req, v); err != nil {
			return
		}
		if err := svc.Request(c.Request.Context(), req.Email); err != nil {
			writeError(c, log, err)
			return
		}
		c.JSON(http.StatusAccepted, gin.H{"status": "sent"})
	})

	g.POST("/verify", func(c *gin.Context) {
		var req validation.OTPVerifyRequest
		if err := validation.BindAndValidate(c, &req, v); err != nil {
			return
		}
		if err := svc.Verify(c.Request.Context(), req.Email, req.Code); err != nil {
			writeError(c, log, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "verified"})
	})
}
