package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/subletx/subletx/internal/domain/listing"
	"github.com/subletx/subletx/internal/observability"
	"github.com/subletx/subletx/internal/utils"
)

type ListingsRepo struct {
	pool *pgxpool.Pool
	prom *observability.Prom
}

func NewListingsRepo(pool *pgxpool.Pool, prom *observability.Prom) *ListingsRepo {
	return &ListingsRepo{
		pool: pool,
		prom: prom,
	}
}

func (r *ListingsRepo) observe(op string, fn func() error) error {
	if r.prom != nil {
		return r.prom.ObserveDB(op, fn)
	}
	return fn()
}

func (r *ListingsRepo) Create(ctx context.Context, ownerID string, req listing.CreateListingRequest) (listing.Listing, error) {
	l := listing.NewFromCreateRequest(ownerID, req)

	err := r.observe("listings.create", func() error {
		_, err := r.pool.Exec(ctx,
			`INSERT INTO listings (id, owner_id, service_name, description, price, duration_days, category, tags, status, created_at, updated_at)
			 VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)`,
			l.ID, l.OwnerID, l.ServiceName, l.Description, l.Price, l.DurationDays, l.Category, l.Tags, l.Status, l.CreatedAt, l.UpdatedAt)
		return err
	})

	if err != nil {
		return listing.Listing{}, err
	}

	return l, nil
}

// filterConds renders the catalog filter to SQL, mirroring listing.Matches.
// Keyword search covers service name, description and tags.
func filterConds(f listing.Filter, argsPosition int) (conds []string, args []interface{}, next int) {
	next = argsPosition

	conds = append(conds, fmt.Sprintf("l.status = $%d", next))
	args = append(args, listing.StatusActive)
	next++

	if f.Category != nil {
		conds = append(conds, fmt.Sprintf("l.category = $%d", next))
		args = append(args, *f.Category)
		next++
	}

	if f.MinPrice != nil {
		conds = append(conds, fmt.Sprintf("l.price >= $%d", next))
		args = append(args, *f.MinPrice)
		next++
	}

	if f.MaxPrice != nil {
		conds = append(conds, fmt.Sprintf("l.price <= $%d", next))
		args = append(args, *f.MaxPrice)
		next++
	}

	if f.Query != nil && strings.TrimSpace(*f.Query) != "" {
		q := "%" + strings.TrimSpace(*f.Query) + "%"
		conds = append(conds, fmt.Sprintf(
			"(l.service_name ILIKE $%d OR l.description ILIKE $%d OR EXISTS (SELECT 1 FROM unnest(l.tags) t WHERE t ILIKE $%d))",
			next, next+1, next+2,
		))
		args = append(args, q, q, q)
		next += 3
	}

	return conds, args, next
}

const listingColumns = `l.id,
	l.owner_id,
	l.service_name,
	l.description,
	l.price,
	l.duration_days,
	l.category,
	l.tags,
	l.status,
	l.created_at,
	l.updated_at,
	u.email,
	u.upi_id`

func scanListing(row pgx.Row) (listing.Listing, error) {
	var l listing.Listing
	err := row.Scan(
		&l.ID, &l.OwnerID, &l.ServiceName, &l.Description, &l.Price, &l.DurationDays,
		&l.Category, &l.Tags, &l.Status, &l.CreatedAt, &l.UpdatedAt,
		&l.SellerEmail, &l.SellerUpiID,
	)
	return l, err
}

// ListCursor returns a catalog page ordered createdAt DESC, id DESC, with
// seller contact joined per row instead of a client-side profile scan.
func (r *ListingsRepo) ListCursor(
	ctx context.Context,
	f listing.Filter,
	afterCreatedAt time.Time,
	afterID string,
) (items []listing.Listing, nextCursor *string, hasMore bool, err error) {
	op := "listings.list_cursor"

	conds, args, next := filterConds(f, 1)

	conds = append(conds, fmt.Sprintf("(l.created_at, l.id) < ($%d, $%d)", next, next+1))
	args = append(args, afterCreatedAt, afterID)
	next += 2

	query := `SELECT ` + listingColumns + `
		FROM listings l
		JOIN users u ON u.id = l.owner_id
		WHERE ` + strings.Join(conds, " AND ") + fmt.Sprintf(`
		ORDER BY l.created_at DESC, l.id DESC
		LIMIT $%d`, next)

	limitPlusOne := f.Limit + 1
	args = append(args, limitPlusOne)

	var rows pgx.Rows
	err = r.observe(op, func() error {
		var qerr error
		rows, qerr = r.pool.Query(ctx, query, args...)
		return qerr
	})
	if err != nil {
		return nil, nil, false, err
	}
	defer rows.Close()

	out := make([]listing.Listing, 0, f.Limit)

	for rows.Next() {
		l, scanErr := scanListing(rows)
		if scanErr != nil {
			return nil, nil, false, scanErr
		}
		out = append(out, l)
	}
	if rows.Err() != nil {
		return nil, nil, false, rows.Err()
	}

	if len(out) > f.Limit {
		hasMore = true
		out = out[:f.Limit]
		last := out[len(out)-1]
		cur, encErr := utils.EncodeListingCursor(last.CreatedAt, last.ID)
		if encErr != nil {
			return nil, nil, false, encErr
		}
		nextCursor = &cur
	}

	return out, nextCursor, hasMore, nil
}

func (r *ListingsRepo) GetByID(ctx context.Context, id string) (listing.Listing, error) {
	var l listing.Listing

	err := r.observe("listings.get_by_id", func() error {
		var scanErr error
		l, scanErr = scanListing(r.pool.QueryRow(ctx,
			`SELECT `+listingColumns+`
			 FROM listings l
			 JOIN users u ON u.id = l.owner_id
			 WHERE l.id = $1`, id))
		return scanErr
	})

	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return listing.Listing{}, listing.ErrNotFound
		}
		return listing.Listing{}, err
	}

	return l, nil
}

func (r *ListingsRepo) ListByOwner(ctx context.Context, ownerID string) ([]listing.Listing, error) {
	var rows pgx.Rows

	err := r.observe("listings.list_by_owner", func() error {
		var qerr error
		rows, qerr = r.pool.Query(ctx,
			`SELECT `+listingColumns+`
			 FROM listings l
			 JOIN users u ON u.id = l.owner_id
			 WHERE l.owner_id = $1
			 ORDER BY l.created_at DESC, l.id DESC`, ownerID)
		return qerr
	})
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]listing.Listing, 0)
	for rows.Next() {
		l, scanErr := scanListing(rows)
		if scanErr != nil {
			return nil, scanErr
		}
		out = append(out, l)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}

	return out, nil
}

// Update rewrites a listing the caller owns. A guarded UPDATE does the
// owner check; zero rows gets a second look to tell "not yours" from
// "gone".
func (r *ListingsRepo) Update(ctx context.Context, id, ownerID string, req listing.UpdateListingRequest) (listing.Listing, error) {
	status := req.Status
	if status == "" {
		status = listing.StatusActive
	}

	var l listing.Listing

	err := r.observe("listings.update", func() error {
		return r.pool.QueryRow(ctx,
			`UPDATE listings
				SET service_name = $3,
					description = $4,
					price = $5,
					duration_days = $6,
					category = $7,
					tags = $8,
					status = $9,
					updated_at = NOW()
			 WHERE id = $1 AND owner_id = $2
			 RETURNING id, owner_id, service_name, description, price, duration_days, category, tags, status, created_at, updated_at`,
			id,
			ownerID,
			req.ServiceName,
			req.Description,
			req.Price,
			req.DurationDays,
			req.Category,
			listing.ParseTags(req.Tags),
			status,
		).Scan(
			&l.ID, &l.OwnerID, &l.ServiceName, &l.Description, &l.Price, &l.DurationDays,
			&l.Category, &l.Tags, &l.Status, &l.CreatedAt, &l.UpdatedAt,
		)
	})

	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return listing.Listing{}, r.ownershipErr(ctx, id)
		}
		return listing.Listing{}, err
	}

	return l, nil
}

func (r *ListingsRepo) Delete(ctx context.Context, id, ownerID string) error {
	var affected int64

	err := r.observe("listings.delete", func() error {
		tag, err := r.pool.Exec(ctx, `DELETE FROM listings WHERE id = $1 AND owner_id = $2`, id, ownerID)
		affected = tag.RowsAffected()
		return err
	})

	if err != nil {
		return err
	}

	if affected == 0 {
		return r.ownershipErr(ctx, id)
	}

	return nil
}

// ownershipErr resolves a zero-row guarded write: the listing is either
// gone or belongs to someone else.
func (r *ListingsRepo) ownershipErr(ctx context.Context, id string) error {
	var exists bool
	err := r.observe("listings.exists_check", func() error {
		return r.pool.QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM listings WHERE id = $1)`, id).Scan(&exists)
	})
	if err != nil {
		return err
	}

	if exists {
		return listing.ErrNotOwner
	}

	return listing.ErrNotFound
}
