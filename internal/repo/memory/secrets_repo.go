package memory

import (
	"context"
	"sync"
	"time"

	"github.com/subletx/subletx/internal/domain/secret"
)

type SecretsRepo struct {
	mu    sync.Mutex
	items map[string][]secret.Secret // keyed by order id
}

func NewSecretsRepo() *SecretsRepo {
	return &SecretsRepo{
		items: make(map[string][]secret.Secret),
	}
}

func (r *SecretsRepo) Create(ctx context.Context, s secret.Secret) error {
	r.mu.Lock()
	r.items[s.OrderID] = append(r.items[s.OrderID], s)
	r.mu.Unlock()
	return nil
}

// Claim mirrors the postgres conditional update: select-and-flip under one
// lock so two concurrent claimers cannot both win.
func (r *SecretsRepo) Claim(ctx context.Context, orderID string) (string, error) {
	now := time.Now().UTC()

	r.mu.Lock()
	defer r.mu.Unlock()

	secrets := r.items[orderID]

	best := -1
	for i, s := range secrets {
		if s.Used || s.Expired(now) {
			continue
		}
		if best == -1 || s.CreatedAt.After(secrets[best].CreatedAt) {
			best = i
		}
	}

	if best == -1 {
		return "", secret.ErrUnavailable
	}

	secrets[best].Used = true
	return secrets[best].Value, nil
}
