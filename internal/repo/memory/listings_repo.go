package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/subletx/subletx/internal/domain/listing"
	"github.com/subletx/subletx/internal/utils"
)

// ListingsRepo keeps the catalog in a map; filter semantics come from
// listing.Matches so they stay identical to the SQL rendering.
type ListingsRepo struct {
	mu    sync.RWMutex
	items map[string]listing.Listing
}

func NewListingsRepo() *ListingsRepo {
	return &ListingsRepo{
		items: make(map[string]listing.Listing),
	}
}

func (r *ListingsRepo) Create(ctx context.Context, ownerID string, req listing.CreateListingRequest) (listing.Listing, error) {
	if err := listing.Validate(req); err != nil {
		return listing.Listing{}, err
	}

	l := listing.NewFromCreateRequest(ownerID, req)

	r.mu.Lock()
	r.items[l.ID] = l
	r.mu.Unlock()

	return l, nil
}

func (r *ListingsRepo) GetByID(ctx context.Context, id string) (listing.Listing, error) {
	r.mu.RLock()
	l, ok := r.items[id]
	r.mu.RUnlock()

	if !ok {
		return listing.Listing{}, listing.ErrNotFound
	}
	return l, nil
}

func (r *ListingsRepo) ListCursor(
	ctx context.Context,
	f listing.Filter,
	afterCreatedAt time.Time,
	afterID string,
) ([]listing.Listing, *string, bool, error) {
	r.mu.RLock()
	all := make([]listing.Listing, 0, len(r.items))
	for _, l := range r.items {
		if l.Status != listing.StatusActive {
			continue
		}
		if !l.Matches(f) {
			continue
		}
		all = append(all, l)
	}
	r.mu.RUnlock()

	sort.Slice(all, func(i, j int) bool {
		if !all[i].CreatedAt.Equal(all[j].CreatedAt) {
			return all[i].CreatedAt.After(all[j].CreatedAt)
		}
		return all[i].ID > all[j].ID
	})

	// drop rows at or after the cursor position
	start := 0
	for start < len(all) {
		l := all[start]
		if l.CreatedAt.Before(afterCreatedAt) || (l.CreatedAt.Equal(afterCreatedAt) && l.ID < afterID) {
			break
		}
		start++
	}
	all = all[start:]

	hasMore := len(all) > f.Limit
	if hasMore {
		all = all[:f.Limit]
	}

	var nextCursor *string
	if hasMore && len(all) > 0 {
		last := all[len(all)-1]
		cur, err := utils.EncodeListingCursor(last.CreatedAt, last.ID)
		if err != nil {
			return nil, nil, false, err
		}
		nextCursor = &cur
	}

	return all, nextCursor, hasMore, nil
}

func (r *ListingsRepo) ListByOwner(ctx context.Context, ownerID string) ([]listing.Listing, error) {
	r.mu.RLock()
	out := make([]listing.Listing, 0)
	for _, l := range r.items {
		if l.OwnerID == ownerID {
			out = append(out, l)
		}
	}
	r.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})

	return out, nil
}

func (r *ListingsRepo) Update(ctx context.Context, id, ownerID string, req listing.UpdateListingRequest) (listing.Listing, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	l, ok := r.items[id]
	if !ok {
		return listing.Listing{}, listing.ErrNotFound
	}
	if l.OwnerID != ownerID {
		return listing.Listing{}, listing.ErrNotOwner
	}

	l.ServiceName = req.ServiceName
	l.Description = req.Description
	l.Price = req.Price
	l.DurationDays = req.DurationDays
	l.Category = req.Category
	l.Tags = listing.ParseTags(req.Tags)
	if req.Status != "" {
		l.Status = req.Status
	}
	l.UpdatedAt = time.Now().UTC()

	r.items[id] = l
	return l, nil
}

func (r *ListingsRepo) Delete(ctx context.Context, id, ownerID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	l, ok := r.items[id]
	if !ok {
		return listing.ErrNotFound
	}
	if l.OwnerID != ownerID {
		return listing.ErrNotOwner
	}

	delete(r.items, id)
	return nil
}
