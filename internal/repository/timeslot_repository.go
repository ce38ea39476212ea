package repository

import (
	"context"
	"database/sql"

	"github.com/iliyamo/playhouse-booking/internal/model"
)

// TimeSlotRepo manages the time_slots table.  Start and end times are
// exchanged as HH:MM strings.
type TimeSlotRepo struct {
	db *sql.DB
}

func NewTimeSlotRepo(db *sql.DB) *TimeSlotRepo { return &TimeSlotRepo{db: db} }

const timeSlotColumns = `id, label, TIME_FORMAT(start_time, '%H:%i'), TIME_FORMAT(end_time, '%H:%i'),
	max_capacity, is_active, created_at, updated_at`

func scanTimeSlot(row rowScanner) (*model.TimeSlot, error) {
	var s model.TimeSlot
	if err := row.Scan(&s.ID, &s.Label, &s.StartTime, &s.EndTime, &s.MaxCapacity,
		&s.IsActive, &s.CreatedAt, &s.UpdatedAt); err != nil {
		return nil, mapErr(err)
	}
	return &s, nil
}

func getTimeSlot(ctx context.Context, q querier, id uint64, lock bool) (*model.TimeSlot, error) {
	query := `SELECT ` + timeSlotColumns + ` FROM time_slots WHERE id = ?`
	if lock {
		query += ` FOR UPDATE`
	}
	return scanTimeSlot(q.QueryRowContext(ctx, query, id))
}

func listTimeSlots(ctx context.Context, q querier, activeOnly bool) ([]model.TimeSlot, error) {
	query := `SELECT ` + timeSlotColumns + ` FROM time_slots`
	if activeOnly {
		query += ` WHERE is_active = 1`
	}
	query += ` ORDER BY start_time, id`

	rows, err := q.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []model.TimeSlot{}
	for rows.Next() {
		s, err := scanTimeSlot(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *s)
	}
	return out, rows.Err()
}

func (r *TimeSlotRepo) GetByID(ctx context.Context, id uint64) (*model.TimeSlot, error) {
	return getTimeSlot(ctx, r.db, id, false)
}

func (r *TimeSlotRepo) List(ctx context.Context, activeOnly bool) ([]model.TimeSlot, error) {
	return listTimeSlots(ctx, r.db, activeOnly)
}

// Create inserts s and fills in its ID and timestamps.
func (r *TimeSlotRepo) Create(ctx context.Context, s *model.TimeSlot) error {
	res, err := r.db.ExecContext(ctx,
		`INSERT INTO time_slots (label, start_time, end_time, max_capacity, is_active) VALUES (?, ?, ?, ?, ?)`,
		s.Label, s.StartTime, s.EndTime, s.MaxCapacity, s.IsActive)
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
	*s = *created
	return nil
}

// Update overwrites the slot row.  Lowering capacity does not touch
// existing bookings; it only limits later admissions.
func (r *TimeSlotRepo) Update(ctx context.Context, s *model.TimeSlot) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE time_slots
		 SET label = ?, start_time = ?, end_time = ?, max_capacity = ?, is_active = ?, updated_at = CURRENT_TIMESTAMP
		 WHERE id = ?`,
		s.Label, s.StartTime, s.EndTime, s.MaxCapacity, s.IsActive, s.ID)
	if err != nil {
		return mapErr(err)
	}
	if err := affected(res); err != nil {
		return err
	}
	updated, err := r.GetByID(ctx, s.ID)
	if err != nil {
		return err
	}
	*s = *updated
	return nil
}

// Delete removes a slot without bookings; otherwise ErrConflict.
func (r *TimeSlotRepo) Delete(ctx context.Context, id uint64) error {
	inUse, err := referenced(ctx, r.db, `SELECT EXISTS(SELECT 1 FROM bookings WHERE time_slot_id = ?)`, id)
	if err != nil {
		return err
	}
	if inUse {
		return ErrConflict
	}
	res, err := r.db.ExecContext(ctx, `DELETE FROM time_slots WHERE id = ?`, id)
	if err != nil {
		return err
	}
	return affected(res)
}
