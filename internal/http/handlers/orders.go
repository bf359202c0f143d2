package handlers

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/subletx/subletx/internal/config"
	"github.com/subletx/subletx/internal/domain/listing"
	"github.com/subletx/subletx/internal/domain/order"
	"github.com/subletx/subletx/internal/http/middlewares"
	"github.com/subletx/subletx/internal/storage"
	"github.com/subletx/subletx/internal/utils"
)

// maxScreenshotBytes caps a single payment-screenshot upload.
const maxScreenshotBytes = 5 << 20

type OrderStore interface {
	Create(ctx context.Context, buyerID string, req order.CreateOrderRequest) (order.Order, error)
	GetByID(ctx context.Context, id string) (order.Order, error)
	ListForUser(ctx context.Context, userID string) ([]order.Order, error)
	SetScreenshotURL(ctx context.Context, id, buyerID, url string) (order.Order, error)
}

type OrdersHandler struct {
	store       OrderStore
	screenshots storage.ScreenshotStore
}

func NewOrdersHandler(store OrderStore, screenshots storage.ScreenshotStore) *OrdersHandler {
	return &OrdersHandler{store: store, screenshots: screenshots}
}

// Create books a listing. The order starts pending and waits for an
// admin decision; payment reference comes with the request.
func (h *OrdersHandler) Create(ctx *gin.Context) {
	buyerID, ok := middlewares.UserIDFromContext(ctx)
	if !ok {
		RespondUnAuthorized(ctx, "unauthorized", "Missing identity context")
		return
	}

	var req order.CreateOrderRequest
	if !BindJSON(ctx, &req) {
		return
	}

	cctx, cancel := config.WithTimeout(3 * time.Second)
	defer cancel()

	o, err := h.store.Create(cctx, buyerID, req)
	if err != nil {
		switch {
		case errors.Is(err, listing.ErrNotFound):
			RespondNotFound(ctx, "Listing not found")
		case errors.Is(err, order.ErrOwnListing):
			RespondBadRequest(ctx, "You cannot book your own listing.", nil)
		default:
			RespondInternal(ctx, "Could not create order")
		}
		return
	}

	ctx.JSON(http.StatusCreated, o)
}

// List returns every order the caller participates in, as buyer or
// seller.
func (h *OrdersHandler) List(ctx *gin.Context) {
	userID, ok := middlewares.UserIDFromContext(ctx)
	if !ok {
		RespondUnAuthorized(ctx, "unauthorized", "Missing identity context")
		return
	}

	cctx, cancel := config.WithTimeout(3 * time.Second)
	defer cancel()

	items, err := h.store.ListForUser(cctx, userID)
	if err != nil {
		RespondInternal(ctx, "Could not list orders")
		return
	}

	ctx.JSON(http.StatusOK, gin.H{"items": items})
}

func (h *OrdersHandler) Get(ctx *gin.Context) {
	userID, ok := middlewares.UserIDFromContext(ctx)
	if !ok {
		RespondUnAuthorized(ctx, "unauthorized", "Missing identity context")
		return
	}

	id := ctx.Param("id")
	if !utils.IsUUID(id) {
		RespondBadRequest(ctx, "Invalid order id.", nil)
		return
	}

	cctx, cancel := config.WithTimeout(2 * time.Second)
	defer cancel()

	o, err := h.store.GetByID(cctx, id)
	if err != nil {
		if errors.Is(err, order.ErrNotFound) {
			RespondNotFound(ctx, "Order not found")
			return
		}
		RespondInternal(ctx, "Could not fetch order")
		return
	}

	role, _ := middlewares.RoleFromContext(ctx)
	if o.BuyerID != userID && o.SellerID != userID && role != "admin" {
		// hide existence from third parties
		RespondNotFound(ctx, "Order not found")
		return
	}

	ctx.JSON(http.StatusOK, o)
}

// UploadScreenshot attaches a payment screenshot to the caller's own
// order. Multipart field name: "screenshot".
func (h *OrdersHandler) UploadScreenshot(ctx *gin.Context) {
	buyerID, ok := middlewares.UserIDFromContext(ctx)
	if !ok {
		RespondUnAuthorized(ctx, "unauthorized", "Missing identity context")
		return
	}

	id := ctx.Param("id")
	if !utils.IsUUID(id) {
		RespondBadRequest(ctx, "Invalid order id.", nil)
		return
	}

	cctx, cancel := config.WithTimeout(5 * time.Second)
	defer cancel()

	// authorize before touching disk so a bad order id leaves no file behind
	existing, err := h.store.GetByID(cctx, id)
	if err != nil {
		if errors.Is(err, order.ErrNotFound) {
			RespondNotFound(ctx, "Order not found")
			return
		}
		RespondInternal(ctx, "Could not fetch order")
		return
	}
	if existing.BuyerID != buyerID {
		RespondNotFound(ctx, "Order not found")
		return
	}

	fileHeader, err := ctx.FormFile("screenshot")
	if err != nil {
		RespondBadRequest(ctx, "Missing screenshot file.", nil)
		return
	}

	if fileHeader.Size > maxScreenshotBytes {
		RespondError(ctx, http.StatusRequestEntityTooLarge, "payload_too_large", "Screenshot exceeds the size limit.", nil)
		return
	}

	f, err := fileHeader.Open()
	if err != nil {
		RespondInternal(ctx, "Could not read screenshot")
		return
	}
	defer f.Close()

	url, err := h.screenshots.Save(cctx, id, fileHeader.Filename, f)
	if err != nil {
		if errors.Is(err, storage.ErrUnsupportedType) {
			RespondBadRequest(ctx, "Screenshot must be a png, jpg or webp image.", nil)
			return
		}
		RespondInternal(ctx, "Could not store screenshot")
		return
	}

	o, err := h.store.SetScreenshotURL(cctx, id, buyerID, url)
	if err != nil {
		if errors.Is(err, order.ErrNotFound) {
			RespondNotFound(ctx, "Order not found")
			return
		}
		RespondInternal(ctx, "Could not attach screenshot")
		return
	}

	ctx.JSON(http.StatusOK, o)
}
