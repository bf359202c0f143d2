package handlers

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/subletx/subletx/internal/config"
	"github.com/subletx/subletx/internal/domain/order"
	"github.com/subletx/subletx/internal/http/middlewares"
	"github.com/subletx/subletx/internal/utils"
)

type AdminOrderStore interface {
	ListPending(ctx context.Context) ([]order.Order, error)
	Decide(ctx context.Context, id, status string) (order.Order, error)
}

// AdminOrdersHandler is the review queue: only admins get here, the
// router guards the group.
type AdminOrdersHandler struct {
	store AdminOrderStore
}

func NewAdminOrdersHandler(store AdminOrderStore) *AdminOrdersHandler {
	return &AdminOrdersHandler{store: store}
}

// ListPending returns the review queue oldest first.
func (h *AdminOrdersHandler) ListPending(ctx *gin.Context) {
	cctx, cancel := config.WithTimeout(3 * time.Second)
	defer cancel()

	items, err := h.store.ListPending(cctx)
	if err != nil {
		RespondInternal(ctx, "Could not list pending orders")
		return
	}

	ctx.JSON(http.StatusOK, gin.H{"items": items})
}

// Decide confirms or rejects a pending order. A decision on an order
// that already left pending is a conflict, not an overwrite.
func (h *AdminOrdersHandler) Decide(ctx *gin.Context) {
	id := ctx.Param("id")
	if !utils.IsUUID(id) {
		RespondBadRequest(ctx, "Invalid order id.", nil)
		return
	}

	var req order.AdminDecisionRequest
	if !BindJSON(ctx, &req) {
		return
	}

	cctx, cancel := config.WithTimeout(3 * time.Second)
	defer cancel()

	o, err := h.store.Decide(cctx, id, req.Status)
	if err != nil {
		switch {
		case errors.Is(err, order.ErrNotFound):
			RespondNotFound(ctx, "Order not found")
		case errors.Is(err, order.ErrNotPending):
			RespondConflict(ctx, "order_not_pending", "Order has already been decided.")
		default:
			RespondInternal(ctx, "Could not decide order")
		}
		return
	}

	adminEmail, _ := middlewares.EmailFromContext(ctx)

	slog.Default().InfoContext(ctx.Request.Context(), "order_decided",
		slog.String("order_id", o.ID),
		slog.String("status", o.Status),
		slog.String("admin", adminEmail),
	)

	ctx.JSON(http.StatusOK, o)
}
