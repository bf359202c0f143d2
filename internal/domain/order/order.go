package order

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

const (
	StatusPending   = "pending"
	StatusConfirmed = "confirmed"
	StatusRejected  = "rejected"
)

type Order struct {
	ID            string    `json:"id"`
	ListingID     string    `json:"listingId"`
	BuyerID       string    `json:"buyerId"`
	SellerID      string    `json:"sellerId"`
	Status        string    `json:"status"`
	TransactionID string    `json:"transactionId,omitempty"`
	ScreenshotURL string    `json:"screenshotUrl,omitempty"`
	CreatedAt     time.Time `json:"createdAt"`
	UpdatedAt     time.Time `json:"updatedAt"`
}

var (
	ErrNotFound = errors.New("order not found")
	// the guarded transition found the order in another state already
	ErrNotPending = errors.New("order is not pending")
	ErrOwnListing = errors.New("cannot book your own listing")
)

type CreateOrderRequest struct {
	ListingID     string `json:"listingId" binding:"required,uuid"`
	TransactionID string `json:"transactionId" binding:"required,min=4,max=120"`
	ScreenshotURL string `json:"screenshotUrl" binding:"omitempty,max=500"`
}

type AdminDecisionRequest struct {
	Status string `json:"status" binding:"required,oneof=confirmed rejected"`
}

// A factory to build a pending Order from the incoming DTO once the
// listing owner is known.

func NewFromCreateRequest(buyerID, sellerID string, req CreateOrderRequest) Order {
	now := time.Now().UTC()
	return Order{
		ID:            uuid.NewString(),
		ListingID:     req.ListingID,
		BuyerID:       buyerID,
		SellerID:      sellerID,
		Status:        StatusPending,
		TransactionID: req.TransactionID,
		ScreenshotURL: req.ScreenshotURL,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
}
