package secret

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

// TTL is how long a shared secret stays claimable.
const TTL = 10 * time.Minute

type Secret struct {
	ID        string    `json:"id"`
	OrderID   string    `json:"orderId"`
	BuyerID   string    `json:"buyerId"`
	Value     string    `json:"-"` // only ever surfaced through a successful claim
	Used      bool      `json:"used"`
	CreatedAt time.Time `json:"createdAt"`
	ExpiresAt time.Time `json:"expiresAt"`
}

// ErrUnavailable deliberately covers never-shared, already-claimed and
// expired alike; callers cannot distinguish them.
var ErrUnavailable = errors.New("no secret available")

type ShareSecretRequest struct {
	Value string `json:"value" binding:"required,min=1,max=2000"`
}

func NewFromShareRequest(orderID, buyerID string, req ShareSecretRequest) Secret {
	now := time.Now().UTC()
	return Secret{
		ID:        uuid.NewString(),
		OrderID:   orderID,
		BuyerID:   buyerID,
		Value:     req.Value,
		Used:      false,
		CreatedAt: now,
		ExpiresAt: now.Add(TTL),
	}
}

func (s Secret) Expired(now time.Time) bool {
	return now.After(s.ExpiresAt)
}
