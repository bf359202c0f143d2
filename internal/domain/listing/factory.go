package listing

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// A factory to build a Listing from the incoming DTO

func NewFromCreateRequest(ownerID string, req CreateListingRequest) Listing {
	now := time.Now().UTC()
	return Listing{
		ID:           uuid.NewString(),
		OwnerID:      ownerID,
		ServiceName:  req.ServiceName,
		Description:  req.Description,
		Price:        req.Price,
		DurationDays: req.DurationDays,
		Category:     req.Category,
		Tags:         ParseTags(req.Tags),
		Status:       StatusActive,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
}

// ParseTags splits a comma-delimited tag string into trimmed, non-empty values.
func ParseTags(raw string) []string {
	parts := strings.Split(raw, ",")
	tags := make([]string, 0, len(parts))

	for _, p := range parts {
		t := strings.TrimSpace(p)
		if t == "" {
			continue
		}
		tags = append(tags, t)
	}
	return tags
}

// JoinTags is the display form, the inverse of ParseTags.
func JoinTags(tags []string) string {
	return strings.Join(tags, ", ")
}

// Validate re-checks the bounds the binding tags enforce, for callers that
// do not go through the HTTP layer.
func Validate(req CreateListingRequest) error {
	if strings.TrimSpace(req.ServiceName) == "" || strings.TrimSpace(req.Description) == "" {
		return ErrBadInput
	}
	if req.Price < 1 || req.DurationDays < 1 {
		return ErrBadInput
	}
	if !validCategory(req.Category) {
		return ErrBadInput
	}
	return nil
}

func validCategory(c string) bool {
	for _, v := range Categories {
		if v == c {
			return true
		}
	}
	return false
}

// Matches reports whether a listing satisfies every criterion in the filter.
// The postgres repo pushes the same predicates into SQL; this is the single
// source of truth for the memory repo and for tests.
func (l Listing) Matches(f Filter) bool {
	if f.Category != nil && l.Category != *f.Category {
		return false
	}
	if f.MinPrice != nil && l.Price < *f.MinPrice {
		return false
	}
	if f.MaxPrice != nil && l.Price > *f.MaxPrice {
		return false
	}
	if f.Query != nil {
		q := strings.ToLower(strings.TrimSpace(*f.Query))
		if q != "" && !l.matchesKeyword(q) {
			return false
		}
	}
	return true
}

func (l Listing) matchesKeyword(q string) bool {
	if strings.Contains(strings.ToLower(l.ServiceName), q) {
		return true
	}
	if strings.Contains(strings.ToLower(l.Description), q) {
		return true
	}
	for _, t := range l.Tags {
		if strings.Contains(strings.ToLower(t), q) {
			return true
		}
	}
	return false
}
