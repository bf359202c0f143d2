package handlers

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/subletx/subletx/internal/cache"
	"github.com/subletx/subletx/internal/config"
	"github.com/subletx/subletx/internal/domain/listing"
	"github.com/subletx/subletx/internal/http/middlewares"
	"github.com/subletx/subletx/internal/utils"
)

const (
	defaultCatalogLimit = 20
	maxCatalogLimit     = 100
)

type ListingStore interface {
	Create(ctx context.Context, ownerID string, req listing.CreateListingRequest) (listing.Listing, error)
	GetByID(ctx context.Context, id string) (listing.Listing, error)
	ListCursor(ctx context.Context, f listing.Filter, afterCreatedAt time.Time, afterID string) ([]listing.Listing, *string, bool, error)
	ListByOwner(ctx context.Context, ownerID string) ([]listing.Listing, error)
	Update(ctx context.Context, id, ownerID string, req listing.UpdateListingRequest) (listing.Listing, error)
	Delete(ctx context.Context, id, ownerID string) error
}

type ListingsHandler struct {
	store ListingStore
	cache *cache.Cache
}

func NewListingsHandler(store ListingStore, c *cache.Cache) *ListingsHandler {
	return &ListingsHandler{store: store, cache: c}
}

type catalogPage struct {
	Items      []listing.Listing `json:"items"`
	NextCursor *string           `json:"nextCursor,omitempty"`
	HasMore    bool              `json:"hasMore"`
}

// List serves the public catalog: active listings only, newest first,
// filterable by category, price range and keyword.
func (h *ListingsHandler) List(ctx *gin.Context) {
	f, ok := parseCatalogFilter(ctx)
	if !ok {
		return
	}

	after := utils.ListingCursor{
		// first page starts above every real row
		CreatedAt: time.Now().UTC().Add(24 * time.Hour),
		ID:        "ffffffff-ffff-ffff-ffff-ffffffffffff",
	}

	rawCursor := strings.TrimSpace(ctx.Query("cursor"))
	if rawCursor != "" {
		decoded, err := utils.DecodeListingCursor(rawCursor)
		if err != nil {
			RespondBadRequest(ctx, "Invalid cursor.", nil)
			return
		}
		after = decoded
	}

	// first pages are cacheable; cursor pages go straight to the store
	cacheKey := ""
	if rawCursor == "" && h.cache != nil {
		cacheKey = utils.BuildCatalogCacheKey(f.Limit, f.Category, f.MinPrice, f.MaxPrice, f.Query)
		if cached, hit := h.cache.Get(cacheKey); hit {
			if page, okType := cached.(catalogPage); okType {
				RespondJSONWithETag(ctx, http.StatusOK, page)
				return
			}
		}
	}

	cctx, cancel := config.WithTimeout(3 * time.Second)
	defer cancel()

	items, nextCursor, hasMore, err := h.store.ListCursor(cctx, f, after.CreatedAt, after.ID)
	if err != nil {
		RespondInternal(ctx, "Could not list catalog")
		return
	}

	page := catalogPage{Items: items, NextCursor: nextCursor, HasMore: hasMore}

	if cacheKey != "" {
		h.cache.Set(cacheKey, page)
	}

	RespondJSONWithETag(ctx, http.StatusOK, page)
}

func (h *ListingsHandler) Get(ctx *gin.Context) {
	id := ctx.Param("id")
	if !utils.IsUUID(id) {
		RespondBadRequest(ctx, "Invalid listing id.", nil)
		return
	}

	cctx, cancel := config.WithTimeout(2 * time.Second)
	defer cancel()

	l, err := h.store.GetByID(cctx, id)
	if err != nil {
		if errors.Is(err, listing.ErrNotFound) {
			RespondNotFound(ctx, "Listing not found")
			return
		}
		RespondInternal(ctx, "Could not fetch listing")
		return
	}

	RespondJSONWithETag(ctx, http.StatusOK, l)
}

func (h *ListingsHandler) Create(ctx *gin.Context) {
	userID, ok := middlewares.UserIDFromContext(ctx)
	if !ok {
		RespondUnAuthorized(ctx, "unauthorized", "Missing identity context")
		return
	}

	var req listing.CreateListingRequest
	if !BindJSON(ctx, &req) {
		return
	}

	cctx, cancel := config.WithTimeout(3 * time.Second)
	defer cancel()

	l, err := h.store.Create(cctx, userID, req)
	if err != nil {
		if errors.Is(err, listing.ErrBadInput) {
			RespondBadRequest(ctx, "Invalid listing.", nil)
			return
		}
		RespondInternal(ctx, "Could not create listing")
		return
	}

	h.invalidateCatalog()

	ctx.JSON(http.StatusCreated, l)
}

// Mine returns the caller's own listings, active and inactive alike.
func (h *ListingsHandler) Mine(ctx *gin.Context) {
	userID, ok := middlewares.UserIDFromContext(ctx)
	if !ok {
		RespondUnAuthorized(ctx, "unauthorized", "Missing identity context")
		return
	}

	cctx, cancel := config.WithTimeout(3 * time.Second)
	defer cancel()

	items, err := h.store.ListByOwner(cctx, userID)
	if err != nil {
		RespondInternal(ctx, "Could not list your listings")
		return
	}

	ctx.JSON(http.StatusOK, gin.H{"items": items})
}

func (h *ListingsHandler) Update(ctx *gin.Context) {
	userID, ok := middlewares.UserIDFromContext(ctx)
	if !ok {
		RespondUnAuthorized(ctx, "unauthorized", "Missing identity context")
		return
	}

	id := ctx.Param("id")
	if !utils.IsUUID(id) {
		RespondBadRequest(ctx, "Invalid listing id.", nil)
		return
	}

	var req listing.UpdateListingRequest
	if !BindJSON(ctx, &req) {
		return
	}

	cctx, cancel := config.WithTimeout(3 * time.Second)
	defer cancel()

	l, err := h.store.Update(cctx, id, userID, req)
	if err != nil {
		switch {
		case errors.Is(err, listing.ErrNotFound):
			RespondNotFound(ctx, "Listing not found")
		case errors.Is(err, listing.ErrNotOwner):
			RespondForbidden(ctx, "You can only edit your own listings.")
		default:
			RespondInternal(ctx, "Could not update listing")
		}
		return
	}

	h.invalidateCatalog()

	ctx.JSON(http.StatusOK, l)
}

func (h *ListingsHandler) Delete(ctx *gin.Context) {
	userID, ok := middlewares.UserIDFromContext(ctx)
	if !ok {
		RespondUnAuthorized(ctx, "unauthorized", "Missing identity context")
		return
	}

	id := ctx.Param("id")
	if !utils.IsUUID(id) {
		RespondBadRequest(ctx, "Invalid listing id.", nil)
		return
	}

	cctx, cancel := config.WithTimeout(3 * time.Second)
	defer cancel()

	err := h.store.Delete(cctx, id, userID)
	if err != nil {
		switch {
		case errors.Is(err, listing.ErrNotFound):
			RespondNotFound(ctx, "Listing not found")
		case errors.Is(err, listing.ErrNotOwner):
			RespondForbidden(ctx, "You can only delete your own listings.")
		default:
			RespondInternal(ctx, "Could not delete listing")
		}
		return
	}

	h.invalidateCatalog()

	ctx.Status(http.StatusNoContent)
}

func (h *ListingsHandler) invalidateCatalog() {
	if h.cache != nil {
		h.cache.Clear()
	}
}

func parseCatalogFilter(ctx *gin.Context) (listing.Filter, bool) {
	f := listing.Filter{Limit: defaultCatalogLimit}

	if raw := strings.TrimSpace(ctx.Query("limit")); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			RespondBadRequest(ctx, "limit must be a positive integer.", nil)
			return listing.Filter{}, false
		}
		if n > maxCatalogLimit {
			n = maxCatalogLimit
		}
		f.Limit = n
	}

	if raw := strings.TrimSpace(ctx.Query("category")); raw != "" {
		valid := false
		for _, c := range listing.Categories {
			if c == raw {
				valid = true
				break
			}
		}
		if !valid {
			RespondBadRequest(ctx, "Unknown category.", gin.H{"allowed": listing.Categories})
			return listing.Filter{}, false
		}
		f.Category = &raw
	}

	if raw := strings.TrimSpace(ctx.Query("minPrice")); raw != "" {
		n, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || n < 0 {
			RespondBadRequest(ctx, "minPrice must be a non-negative integer.", nil)
			return listing.Filter{}, false
		}
		f.MinPrice = &n
	}

	if raw := strings.TrimSpace(ctx.Query("maxPrice")); raw != "" {
		n, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || n < 0 {
			RespondBadRequest(ctx, "maxPrice must be a non-negative integer.", nil)
			return listing.Filter{}, false
		}
		f.MaxPrice = &n
	}

	if f.MinPrice != nil && f.MaxPrice != nil && *f.MinPrice > *f.MaxPrice {
		RespondBadRequest(ctx, "minPrice cannot exceed maxPrice.", nil)
		return listing.Filter{}, false
	}

	if raw := strings.TrimSpace(ctx.Query("q")); raw != "" {
		f.Query = &raw
	}

	return f, true
}
