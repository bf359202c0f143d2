package postgres

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/subletx/subletx/internal/domain/listing"
	"github.com/subletx/subletx/internal/domain/order"
	"github.com/subletx/subletx/internal/observability"
)

type OrdersRepo struct {
	pool *pgxpool.Pool
	prom *observability.Prom
}

func NewOrdersRepo(pool *pgxpool.Pool, prom *observability.Prom) *OrdersRepo {
	return &OrdersRepo{
		pool: pool,
		prom: prom,
	}
}

func (r *OrdersRepo) observe(op string, fn func() error) error {
	if r.prom != nil {
		return r.prom.ObserveDB(op, fn)
	}
	return fn()
}

const orderColumns = `id, listing_id, buyer_id, seller_id, status, transaction_id, screenshot_url, created_at, updated_at`

func scanOrder(row pgx.Row) (order.Order, error) {
	var o order.Order
	err := row.Scan(
		&o.ID, &o.ListingID, &o.BuyerID, &o.SellerID, &o.Status,
		&o.TransactionID, &o.ScreenshotURL, &o.CreatedAt, &o.UpdatedAt,
	)
	return o, err
}

// Create books a listing: the listing row is read inside the same
// transaction so the seller id cannot go stale under a concurrent owner
// change, and booking your own listing is refused.
func (r *OrdersRepo) Create(ctx context.Context, buyerID string, req order.CreateOrderRequest) (o order.Order, err error) {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return
	}

	defer func() {
		_ = tx.Rollback(ctx)
	}()

	var sellerID string

	// inactive listings are hidden from the catalog and stay unbookable by id
	err = r.observe("orders.create.resolve_listing", func() error {
		return tx.QueryRow(ctx,
			`SELECT owner_id FROM listings WHERE id = $1 AND status = $2`,
			req.ListingID, listing.StatusActive,
		).Scan(&sellerID)
	})

	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			err = listing.ErrNotFound
		}
		return
	}

	if sellerID == buyerID {
		err = order.ErrOwnListing
		return
	}

	o = order.NewFromCreateRequest(buyerID, sellerID, req)

	err = r.observe("orders.create.insert", func() error {
		_, e := tx.Exec(ctx,
			`INSERT INTO orders (id, listing_id, buyer_id, seller_id, status, transaction_id, screenshot_url, created_at, updated_at)
			 VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)`,
			o.ID, o.ListingID, o.BuyerID, o.SellerID, o.Status, o.TransactionID, o.ScreenshotURL, o.CreatedAt, o.UpdatedAt)
		return e
	})

	if err != nil {
		return
	}

	err = tx.Commit(ctx)

	return
}

func (r *OrdersRepo) GetByID(ctx context.Context, id string) (order.Order, error) {
	var o order.Order

	err := r.observe("orders.get_by_id", func() error {
		var scanErr error
		o, scanErr = scanOrder(r.pool.QueryRow(ctx,
			`SELECT `+orderColumns+` FROM orders WHERE id = $1`, id))
		return scanErr
	})

	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return order.Order{}, order.ErrNotFound
		}
		return order.Order{}, err
	}

	return o, nil
}

// ListForUser returns orders where the caller is either side of the trade.
func (r *OrdersRepo) ListForUser(ctx context.Context, userID string) ([]order.Order, error) {
	return r.list(ctx, "orders.list_for_user",
		`SELECT `+orderColumns+`
		 FROM orders
		 WHERE buyer_id = $1 OR seller_id = $1
		 ORDER BY created_at DESC, id DESC`, userID)
}

// ListPending is the admin review queue.
func (r *OrdersRepo) ListPending(ctx context.Context) ([]order.Order, error) {
	return r.list(ctx, "orders.list_pending",
		`SELECT `+orderColumns+`
		 FROM orders
		 WHERE status = $1
		 ORDER BY created_at ASC, id ASC`, order.StatusPending)
}

func (r *OrdersRepo) list(ctx context.Context, op, query string, args ...any) ([]order.Order, error) {
	var rows pgx.Rows

	err := r.observe(op, func() error {
		var qerr error
		rows, qerr = r.pool.Query(ctx, query, args...)
		return qerr
	})
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]order.Order, 0)
	for rows.Next() {
		o, scanErr := scanOrder(rows)
		if scanErr != nil {
			return nil, scanErr
		}
		out = append(out, o)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}

	return out, nil
}

// Decide moves a pending order to confirmed or rejected. The status guard
// lives in the WHERE clause so two admins cannot both land a transition.
func (r *OrdersRepo) Decide(ctx context.Context, id, status string) (order.Order, error) {
	var o order.Order

	err := r.observe("orders.decide", func() error {
		var scanErr error
		o, scanErr = scanOrder(r.pool.QueryRow(ctx,
			`UPDATE orders
				SET status = $2, updated_at = NOW()
			 WHERE id = $1 AND status = $3
			 RETURNING `+orderColumns, id, status, order.StatusPending))
		return scanErr
	})

	if err == nil {
		return o, nil
	}

	if !errors.Is(err, pgx.ErrNoRows) {
		return order.Order{}, err
	}

	// row missing or already decided; look again to tell the caller which
	var exists bool
	checkErr := r.observe("orders.decide.exists_check", func() error {
		return r.pool.QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM orders WHERE id = $1)`, id).Scan(&exists)
	})
	if checkErr != nil {
		return order.Order{}, checkErr
	}

	if !exists {
		return order.Order{}, order.ErrNotFound
	}

	return order.Order{}, order.ErrNotPending
}

// SetScreenshotURL attaches an uploaded payment screenshot to a pending
// order owned by the buyer.
func (r *OrdersRepo) SetScreenshotURL(ctx context.Context, id, buyerID, url string) (order.Order, error) {
	var o order.Order

	err := r.observe("orders.set_screenshot", func() error {
		var scanErr error
		o, scanErr = scanOrder(r.pool.QueryRow(ctx,
			`UPDATE orders
				SET screenshot_url = $3, updated_at = NOW()
			 WHERE id = $1 AND buyer_id = $2
			 RETURNING `+orderColumns, id, buyerID, url))
		return scanErr
	})

	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return order.Order{}, order.ErrNotFound
		}
		return order.Order{}, err
	}

	return o, nil
}
