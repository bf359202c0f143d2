package utils

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"time"
)

// ListingCursor pages the catalog in createdAt DESC, id DESC order.
type ListingCursor struct {
	CreatedAt time.Time `json:"createdAt"`
	ID        string    `json:"id"`
}

func EncodeListingCursor(createdAt time.Time, id string) (string, error) {
	b, err := json.Marshal(ListingCursor{CreatedAt: createdAt, ID: id})
	if err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}

func DecodeListingCursor(cursor string) (ListingCursor, error) {
	if cursor == "" {
		return ListingCursor{}, errors.New("empty cursor")
	}

	raw, err := base64.RawURLEncoding.DecodeString(cursor)
	if err != nil {
		return ListingCursor{}, err
	}

	var c ListingCursor
	if err := json.Unmarshal(raw, &c); err != nil {
		return ListingCursor{}, err
	}
	if c.ID == "" || c.CreatedAt.IsZero() {
		return ListingCursor{}, errors.New("invalid cursor payload")
	}
	return c, nil
}
