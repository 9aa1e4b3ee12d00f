package handlers

import (
	"context"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/imrishuroy/go-canteen-orderflow/internal/reconcile"
	"go.uber.org/zap"
)

const maxWebhookBody = 64 << 10

// WebhookReconciler verifies and applies one provider notification.
type WebhookReconciler interface {
	Handle(ctx context.Context, body []byte, header http.Header) (reconcile.Outcome, error)
}

// RegisterWebhookRoutes mounts the payment provider callback. The body is read raw since
// signatures cover the exact bytes received.
func RegisterWebhookRoutes(r gin.IRouter, rec WebhookReconciler, log *zap.Logger) {
	r.POST("/webhooks/payments", func(c *gin.Context) {
		body, err := io.ReadAll(http.MaxBytesReader(c.Writer, c.Request.Body, maxWebhookBody))
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request_body", "message": err.Error()})
			return
		}

		outcome, err := rec.Handle(c.Request.Context(), body, c.Request.Header)
		if err != nil {
			writeError(c, log, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": outcome})
	})
}
