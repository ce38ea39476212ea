package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/iliyamo/playhouse-booking/internal/model"
)

// ErrPackageInUse is returned when an update would change anything other
// than the price or active flag of a package that bookings reference.
var ErrPackageInUse = errors.New("package is referenced by bookings")

// PackageRepo manages the packages table.
type PackageRepo struct {
	db *sql.DB
}

func NewPackageRepo(db *sql.DB) *PackageRepo { return &PackageRepo{db: db} }

const packageColumns = `id, name, type, description, price, duration_minutes, max_children, is_active, created_at, updated_at`

func scanPackage(row rowScanner) (*model.Package, error) {
	var (
		p    model.Package
		desc sql.NullString
	)
	if err := row.Scan(&p.ID, &p.Name, &p.Type, &desc, &p.Price, &p.DurationMinutes,
		&p.MaxChildren, &p.IsActive, &p.CreatedAt, &p.UpdatedAt); err != nil {
		return nil, mapErr(err)
	}
	p.Description = stringPtr(desc)
	return &p, nil
}

func getPackage(ctx context.Context, q querier, id uint64) (*model.Package, error) {
	return scanPackage(q.QueryRowContext(ctx, `SELECT `+packageColumns+` FROM packages WHERE id = ?`, id))
}

// GetByID returns ErrNotFound when no package has the id.
func (r *PackageRepo) GetByID(ctx context.Context, id uint64) (*model.Package, error) {
	return getPackage(ctx, r.db, id)
}

// List returns packages ordered by price, optionally only active ones.
func (r *PackageRepo) List(ctx context.Context, activeOnly bool) ([]model.Package, error) {
	q := `SELECT ` + packageColumns + ` FROM packages`
	if activeOnly {
		q += ` WHERE is_active = 1`
	}
	q += ` ORDER BY price, id`

	rows, err := r.db.QueryContext(ctx, q)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []model.Package{}
	for rows.Next() {
		p, err := scanPackage(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *p)
	}
	return out, rows.Err()
}

// Create inserts p and fills in its ID and timestamps.
func (r *PackageRepo) Create(ctx context.Context, p *model.Package) error {
	res, err := r.db.ExecContext(ctx,
		`INSERT INTO packages (name, type, description, price, duration_minutes, max_children, is_active)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		p.Name, p.Type, nullString(p.Description), p.Price, p.DurationMinutes, p.MaxChildren, p.IsActive)
	if err != nil {
		return mapErr(err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	created, err := r.GetByID(ctx, uint64(id))
	if err != nil {
		return err
	}
	*p = *created
	return nil
}

// Update overwrites the package row.  Once bookings reference the package
// only Price and IsActive may differ from the stored row.
func (r *PackageRepo) Update(ctx context.Context, p *model.Package) (err error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	cur, err := scanPackage(tx.QueryRowContext(ctx,
		`SELECT `+packageColumns+` FROM packages WHERE id = ? FOR UPDATE`, p.ID))
	if err != nil {
		return err
	}
	inUse, err := referenced(ctx, tx, `SELECT EXISTS(SELECT 1 FROM bookings WHERE package_id = ?)`, p.ID)
	if err != nil {
		return err
	}
	if inUse && !onlyPriceOrStatusChanged(*cur, *p) {
		return ErrPackageInUse
	}

	if _, err = tx.ExecContext(ctx,
		`UPDATE packages SET name = ?, type = ?, description = ?, price = ?, duration_minutes = ?,
		        max_children = ?, is_active = ?, updated_at = CURRENT_TIMESTAMP
		 WHERE id = ?`,
		p.Name, p.Type, nullString(p.Description), p.Price, p.DurationMinutes, p.MaxChildren, p.IsActive, p.ID); err != nil {
		return mapErr(err)
	}
	updated, err := scanPackage(tx.QueryRowContext(ctx, `SELECT `+packageColumns+` FROM packages WHERE id = ?`, p.ID))
	if err != nil {
		return err
	}
	if err = tx.Commit(); err != nil {
		return err
	}
	*p = *updated
	return nil
}

func onlyPriceOrStatusChanged(cur, next model.Package) bool {
	sameDesc := (cur.Description == nil && next.Description == nil) ||
		(cur.Description != nil && next.Description != nil && *cur.Description == *next.Description)
	return cur.Name == next.Name &&
		cur.Type == next.Type &&
		sameDesc &&
		cur.DurationMinutes == next.DurationMinutes &&
		cur.MaxChildren == next.MaxChildren
}

// Delete removes a package that no booking references.  Referenced
// packages yield ErrConflict; deactivate them instead.
func (r *PackageRepo) Delete(ctx context.Context, id uint64) error {
	inUse, err := referenced(ctx, r.db, `SELECT EXISTS(SELECT 1 FROM bookings WHERE package_id = ?)`, id)
	if err != nil {
		return err
	}
	if inUse {
		return ErrConflict
	}
	res, err := r.db.ExecContext(ctx, `DELETE FROM packages WHERE id = ?`, id)
	if err != nil {
		return err
	}
	return affected(res)
}

func referenced(ctx context.Context, q querier, query string, args ...interface{}) (bool, error) {
	var exists bool
	if err := q.QueryRowContext(ctx, query, args...).Scan(&exists); err != nil {
		return false, err
	}
	return exists, nil
}
