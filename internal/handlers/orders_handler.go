package handlers

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	validatorv10 "github.com/go-playground/validator/v10"
	"github.com/imrishuroy/go-canteen-orderflow/internal/apperr"
	"github.com/imrishuroy/go-canteen-orderflow/internal/idempotency"
	"github.com/imrishuroy/go-canteen-orderflow/internal/orders"
	"github.com/imrishuroy/go-canteen-orderflow/internal/payments"
	"github.com/imrishuroy/go-canteen-orderflow/internal/validation"
	"go.uber.org/zap"
)

const maxOrderBody = 64 << 10

// OrderService is the lifecycle surface the order routes use. *orders.Service implements it.
type OrderService interface {
	CreateIdempotent(ctx context.Context, key, requestHash string, in orders.CreateInput) (*orders.Order, bool, error)
	Get(ctx context.Context, orderID string) (*orders.Order, error)
	List(ctx context.Context) ([]*orders.Order, error)
	ConfirmManually(ctx context.Context, orderID string) (*orders.Order, bool, error)
}

// PaymentInitiator starts a provider payment for an order. *payments.Checkout implements it.
type PaymentInitiator interface {
	Initiate(ctx context.Context, orderID string) (*payments.InitiateResult, error)
}

type ordersHandler struct {
	orders   OrderService
	checkout PaymentInitiator
	validate *validatorv10.Validate
	log      *zap.Logger
}

// RegisterOrdersRoutes registers the buyer and admin order routes.
func RegisterOrdersRoutes(r gin.IRouter, svc OrderService, checkout PaymentInitiator, log *zap.Logger) {
	h := &ordersHandler{orders: svc, checkout: checkout, validate: validation.New(), log: log}

	r.POST("/orders", h.create)
	r.GET("/orders", h.list)
	r.GET("/orders/:id", h.get)
	r.GET("/orders/:id/status", h.status)
	if checkout != nil {
		r.POST("/orders/:id/payment", h.initiatePayment)
	}
	r.POST("/admin/orders/:id/confirm", h.confirm)
}

func (h *ordersHandler) create(c *gin.Context) {
	raw, err := io.ReadAll(http.MaxBytesReader(c.Writer, c.Request.Body, maxOrderBody))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request_body", "message": err.Error()})
		return
	}
	c.Request.Body = io.NopCloser(bytes.NewReader(raw))

	var req validation.CreateOrderRequest
	if err := validation.BindAndValidate(c, &req, h.validate); err != nil {
		return
	}

	key := c.GetHeader("Idempotency-Key")
	o, replayed, err := h.orders.CreateIdempotent(c.Request.Context(), key, idempotency.Fingerprint(raw), req.ToInput())
	if err != nil {
		writeError(c, h.log, err)
		return
	}

	if replayed {
		c.Header("Idempotent-Replayed", "true")
	}
	c.Header("Location", fmt.Sprintf("/orders/%s", o.OrderID))
	c.JSON(http.StatusCreated, newOrderView(o))
}

func (h *ordersHandler) get(c *gin.Context) {
	o, err := h.orders.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		writeError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, newOrderView(o))
}

func (h *ordersHandler) status(c *gin.Context) {
	o, err := h.orders.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		writeError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, newStatusView(o))
}

func (h *ordersHandler) list(c *gin.Context) {
	all, err := h.orders.List(c.Request.Context())
	if err != nil {
		writeError(c, h.log, err)
		return
	}
	out := make([]orderView, 0, len(all))
	for _, o := range all {
		out = append(out, newOrderView(o))
	}
	c.JSON(http.StatusOK, out)
}

func (h *ordersHandler) initiatePayment(c *gin.Context) {
	res, err := h.checkout.Initiate(c.Request.Context(), c.Param("id"))
	if err != nil {
		writeError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

func (h *ordersHandler) confirm(c *gin.Context) {
	id := c.Param("id")
	if id == "" {
		writeError(c, h.log, apperr.Validation("order id required"))
		return
	}
	o, applied, err := h.orders.ConfirmManually(c.Request.Context(), id)
	if err != nil {
		writeError(c, h.log, err)
		return
	}
	h.log.Info("manual confirmation",
		zap.String("order_id", o.OrderID),
		zap.Bool("applied", applied))
	c.JSON(http.StatusOK, gin.H{"ok": true, "orderId": o.OrderID, "status": o.Status, "applied": applied})
}
