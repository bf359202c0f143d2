package listing

import (
	"errors"
	"time"
)

const (
	StatusActive   = "active"
	StatusInactive = "inactive"
)

// Categories is the fixed set a listing must belong to.
var Categories = []string{"Streaming", "Tools", "Gaming"}

type Listing struct {
	ID           string    `json:"id"`
	OwnerID      string    `json:"ownerId"`
	ServiceName  string    `json:"serviceName"`
	Description  string    `json:"description"`
	Price        int64     `json:"price"`
	DurationDays int       `json:"durationDays"`
	Category     string    `json:"category"`
	Tags         []string  `json:"tags"`
	Status       string    `json:"status"`
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`

	// seller contact, resolved on catalog reads
	SellerEmail string `json:"sellerEmail,omitempty"`
	SellerUpiID string `json:"sellerUpiId,omitempty"`
}

// with pointers if optional, it will be nil
type Filter struct {
	Category *string
	MinPrice *int64
	MaxPrice *int64
	Query    *string
	Limit    int
	Offset   int
}

var (
	ErrNotFound = errors.New("listing not found")
	ErrNotOwner = errors.New("listing does not belong to caller")
	ErrBadInput = errors.New("invalid listing input")
)

type CreateListingRequest struct {
	ServiceName  string `json:"serviceName" binding:"required,min=2,max=120"`
	Description  string `json:"description" binding:"required,max=1000"`
	Price        int64  `json:"price" binding:"required,min=1"`
	DurationDays int    `json:"durationDays" binding:"required,min=1,max=3650"`
	Category     string `json:"category" binding:"required,oneof=Streaming Tools Gaming"`
	Tags         string `json:"tags" binding:"omitempty,max=500"`
}

// a full update payload, applied to a listing the caller owns
type UpdateListingRequest struct {
	ServiceName  string `json:"serviceName" binding:"required,min=2,max=120"`
	Description  string `json:"description" binding:"required,max=1000"`
	Price        int64  `json:"price" binding:"required,min=1"`
	DurationDays int    `json:"durationDays" binding:"required,min=1,max=3650"`
	Category     string `json:"category" binding:"required,oneof=Streaming Tools Gaming"`
	Tags         string `json:"tags" binding:"omitempty,max=500"`
	Status       string `json:"status" binding:"omitempty,oneof=active inactive"`
}
