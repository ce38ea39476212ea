package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/iliyamo/playhouse-booking/internal/model"
)

// HolidayRepo manages the holidays table.  holiday_date is unique.
type HolidayRepo struct {
	db *sql.DB
}

func NewHolidayRepo(db *sql.DB) *HolidayRepo { return &HolidayRepo{db: db} }

const holidayColumns = `id, DATE_FORMAT(holiday_date, '%Y-%m-%d'), reason, is_active, created_at`

func scanHoliday(row rowScanner) (*model.Holiday, error) {
	var h model.Holiday
	if err := row.Scan(&h.ID, &h.Date, &h.Reason, &h.IsActive, &h.CreatedAt); err != nil {
		return nil, mapErr(err)
	}
	return &h, nil
}

// activeHoliday returns nil, nil when date is open.
func activeHoliday(ctx context.Context, q querier, date string) (*model.Holiday, error) {
	h, err := scanHoliday(q.QueryRowContext(ctx,
		`SELECT `+holidayColumns+` FROM holidays WHERE holiday_date = ? AND is_active = 1`, date))
	if errors.Is(err, ErrNotFound) {
		return nil, nil
	}
	return h, err
}

func (r *HolidayRepo) ActiveOn(ctx context.Context, date string) (*model.Holiday, error) {
	return activeHoliday(ctx, r.db, date)
}

// List returns holidays in [from, to]; empty bounds are open.
func (r *HolidayRepo) List(ctx context.Context, from, to string) ([]model.Holiday, error) {
	query := `SELECT ` + holidayColumns + ` FROM holidays WHERE 1 = 1`
	var args []interface{}
	if from != "" {
		query += ` AND holiday_date >= ?`
		args = append(args, from)
	}
	if to != "" {
		query += ` AND holiday_date <= ?`
		args = append(args, to)
	}
	query += ` ORDER BY holiday_date`

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []model.Holiday{}
	for rows.Next() {
		h, err := scanHoliday(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *h)
	}
	return out, rows.Err()
}

// Create inserts h.  A second entry for the same date yields ErrDuplicate.
func (r *HolidayRepo) Create(ctx context.Context, h *model.Holiday) error {
	res, err := r.db.ExecContext(ctx,
		`INSERT INTO holidays (holiday_date, reason, is_active) VALUES (?, ?, ?)`,
		h.Date, h.Reason, h.IsActive)
	if err != nil {
		return mapErr(err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	created, err := scanHoliday(r.db.QueryRowContext(ctx, `SELECT `+holidayColumns+` FROM holidays WHERE id = ?`, id))
	if err != nil {
		return err
	}
	*h = *created
	return nil
}

// Update changes the reason and active flag of an entry.
func (r *HolidayRepo) Update(ctx context.Context, h *model.Holiday) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE holidays SET reason = ?, is_active = ? WHERE id = ?`, h.Reason, h.IsActive, h.ID)
	if err != nil {
		return err
	}
	if err := affected(res); err != nil {
		return err
	}
	updated, err := scanHoliday(r.db.QueryRowContext(ctx, `SELECT `+holidayColumns+` FROM holidays WHERE id = ?`, h.ID))
	if err != nil {
		return err
	}
	*h = *updated
	return nil
}

func (r *HolidayRepo) Delete(ctx context.Context, id uint64) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM holidays WHERE id = ?`, id)
	if err != nil {
		return err
	}
	return affected(res)
}
