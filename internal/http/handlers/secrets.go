package handlers

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/subletx/subletx/internal/config"
	"github.com/subletx/subletx/internal/domain/order"
	"github.com/subletx/subletx/internal/domain/secret"
	"github.com/subletx/subletx/internal/http/middlewares"
	"github.com/subletx/subletx/internal/observability"
	"github.com/subletx/subletx/internal/utils"
)

type SecretStore interface {
	Create(ctx context.Context, s secret.Secret) error
	Claim(ctx context.Context, orderID string) (string, error)
}

type SecretOrderReader interface {
	GetByID(ctx context.Context, id string) (order.Order, error)
}

type SecretsHandler struct {
	secrets SecretStore
	orders  SecretOrderReader
	prom    *observability.Prom
}

func NewSecretsHandler(secrets SecretStore, orders SecretOrderReader, prom *observability.Prom) *SecretsHandler {
	return &SecretsHandler{secrets: secrets, orders: orders, prom: prom}
}

// Share lets the seller hand over the credential for a confirmed order.
// Each share opens a fresh claim window; the newest share is the one a
// claim will return.
func (h *SecretsHandler) Share(ctx *gin.Context) {
	userID, ok := middlewares.UserIDFromContext(ctx)
	if !ok {
		RespondUnAuthorized(ctx, "unauthorized", "Missing identity context")
		return
	}

	orderID := ctx.Param("id")
	if !utils.IsUUID(orderID) {
		RespondBadRequest(ctx, "Invalid order id.", nil)
		return
	}

	var req secret.ShareSecretRequest
	if !BindJSON(ctx, &req) {
		return
	}

	cctx, cancel := config.WithTimeout(3 * time.Second)
	defer cancel()

	o, err := h.orders.GetByID(cctx, orderID)
	if err != nil {
		if errors.Is(err, order.ErrNotFound) {
			RespondNotFound(ctx, "Order not found")
			return
		}
		RespondInternal(ctx, "Could not fetch order")
		return
	}

	if o.SellerID != userID {
		RespondForbidden(ctx, "Only the seller can share the credential.")
		return
	}

	if o.Status != order.StatusConfirmed {
		RespondConflict(ctx, "order_not_confirmed", "Credentials can only be shared on confirmed orders.")
		return
	}

	s := secret.NewFromShareRequest(o.ID, o.BuyerID, req)

	if err := h.secrets.Create(cctx, s); err != nil {
		RespondInternal(ctx, "Could not share credential")
		return
	}

	ctx.JSON(http.StatusCreated, gin.H{
		"orderId":   s.OrderID,
		"expiresAt": s.ExpiresAt,
	})
}

// Claim hands the credential to the buyer exactly once. Never-shared,
// already-claimed and expired all answer the same way.
func (h *SecretsHandler) Claim(ctx *gin.Context) {
	userID, ok := middlewares.UserIDFromContext(ctx)
	if !ok {
		RespondUnAuthorized(ctx, "unauthorized", "Missing identity context")
		return
	}

	orderID := ctx.Param("id")
	if !utils.IsUUID(orderID) {
		RespondBadRequest(ctx, "Invalid order id.", nil)
		return
	}

	cctx, cancel := config.WithTimeout(3 * time.Second)
	defer cancel()

	o, err := h.orders.GetByID(cctx, orderID)
	if err != nil {
		if errors.Is(err, order.ErrNotFound) {
			RespondNotFound(ctx, "Order not found")
			return
		}
		RespondInternal(ctx, "Could not fetch order")
		return
	}

	if o.BuyerID != userID {
		RespondForbidden(ctx, "Only the buyer can claim the credential.")
		return
	}

	// admins moderate orders; they never see credential values
	if role, _ := middlewares.RoleFromContext(ctx); role == "admin" {
		RespondForbidden(ctx, "Admin accounts cannot claim credentials.")
		return
	}

	if o.Status != order.StatusConfirmed {
		RespondConflict(ctx, "order_not_confirmed", "Credentials can only be claimed on confirmed orders.")
		return
	}

	value, err := h.secrets.Claim(cctx, orderID)
	if err != nil {
		if errors.Is(err, secret.ErrUnavailable) {
			h.countClaim("unavailable")
			RespondError(ctx, http.StatusGone, "secret_unavailable", "No credential is available for this order.", nil)
			return
		}
		h.countClaim("error")
		RespondInternal(ctx, "Could not claim credential")
		return
	}

	h.countClaim("claimed")

	ctx.JSON(http.StatusOK, gin.H{"value": value})
}

func (h *SecretsHandler) countClaim(outcome string) {
	if h.prom != nil {
		h.prom.SecretClaims.WithLabelValues(outcome).Inc()
	}
}
