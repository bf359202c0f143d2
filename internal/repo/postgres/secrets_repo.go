package postgres

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/subletx/subletx/internal/domain/secret"
	"github.com/subletx/subletx/internal/observability"
)

type SecretsRepo struct {
	pool *pgxpool.Pool
	prom *observability.Prom
}

func NewSecretsRepo(pool *pgxpool.Pool, prom *observability.Prom) *SecretsRepo {
	return &SecretsRepo{
		pool: pool,
		prom: prom,
	}
}

func (r *SecretsRepo) observe(op string, fn func() error) error {
	if r.prom != nil {
		return r.prom.ObserveDB(op, fn)
	}
	return fn()
}

func (r *SecretsRepo) Create(ctx context.Context, s secret.Secret) error {
	return r.observe("secrets.create", func() error {
		_, err := r.pool.Exec(ctx,
			`INSERT INTO secrets (id, order_id, buyer_id, value, used, created_at, expires_at)
			 VALUES ($1,$2,$3,$4,$5,$6,$7)`,
			s.ID, s.OrderID, s.BuyerID, s.Value, s.Used, s.CreatedAt, s.ExpiresAt)
		return err
	})
}

// Claim flips the newest unused, unexpired secret of the order to used and
// returns its value, in one statement. The subquery picks the row most
// recently shared; SKIP LOCKED makes a concurrent claimer see no candidate
// instead of blocking, so exactly one caller ever receives the value.
func (r *SecretsRepo) Claim(ctx context.Context, orderID string) (string, error) {
	var value string

	err := r.observe("secrets.claim", func() error {
		return r.pool.QueryRow(ctx,
			`UPDATE secrets
				SET used = TRUE
			 WHERE id = (
				SELECT id FROM secrets
				WHERE order_id = $1
				  AND used = FALSE
				  AND expires_at > NOW()
				ORDER BY created_at DESC, id DESC
				LIMIT 1
				FOR UPDATE SKIP LOCKED
			 )
			 RETURNING value`, orderID).Scan(&value)
	})

	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", secret.ErrUnavailable
		}
		return "", err
	}

	return value, nil
}
