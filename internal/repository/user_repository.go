package repository

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	"github.com/iliyamo/playhouse-booking/internal/model"
)

// ErrEmailExists is returned when registering an email that is taken.
var ErrEmailExists = errors.New("email already exists")

// UserRepo manages the users table.  Emails are stored lower-case and
// phones in E.164 form.
type UserRepo struct {
	db *sql.DB
}

func NewUserRepo(db *sql.DB) *UserRepo { return &UserRepo{db: db} }

const userColumns = `id, name, email, phone, password_hash, google_sub, is_admin, is_active, created_at, updated_at`

func scanUser(row rowScanner) (*model.User, error) {
	var u model.User
	var email, phone, hash, sub sql.NullString
	if err := row.Scan(&u.ID, &u.Name, &email, &phone, &hash, &sub,
		&u.IsAdmin, &u.IsActive, &u.CreatedAt, &u.UpdatedAt); err != nil {
		return nil, mapErr(err)
	}
	u.Email = stringPtr(email)
	u.Phone = stringPtr(phone)
	u.PasswordHash = stringPtr(hash)
	u.GoogleSub = stringPtr(sub)
	return &u, nil
}

func normEmail(email string) string { return strings.ToLower(strings.TrimSpace(email)) }

// Create inserts u and fills in its ID and timestamps.  A duplicate
// email yields ErrEmailExists; any other unique clash ErrDuplicate.
func (r *UserRepo) Create(ctx context.Context, u *model.User) error {
	if u.Email != nil {
		e := normEmail(*u.Email)
		u.Email = &e
	}
	res, err := r.db.ExecContext(ctx,
		`INSERT INTO users (name, email, phone, password_hash, google_sub, is_admin, is_active)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		u.Name, nullString(u.Email), nullString(u.Phone), nullString(u.PasswordHash), nullString(u.GoogleSub),
		u.IsAdmin, u.IsActive)
	if err != nil {
		err = mapErr(err)
		if errors.Is(err, ErrDuplicate) && u.Email != nil {
			if _, lookupErr := r.GetByEmail(ctx, *u.Email); lookupErr == nil {
				return ErrEmailExists
			}
		}
		return err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	created, err := r.GetByID(ctx, uint64(id))
	if err != nil {
		return err
	}
	*u = *created
	return nil
}

func (r *UserRepo) GetByID(ctx context.Context, id uint64) (*model.User, error) {
	return scanUser(r.db.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE id = ?`, id))
}

func (r *UserRepo) GetByEmail(ctx context.Context, email string) (*model.User, error) {
	return scanUser(r.db.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE email = ? LIMIT 1`, normEmail(email)))
}

func (r *UserRepo) GetByPhone(ctx context.Context, phone string) (*model.User, error) {
	return scanUser(r.db.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE phone = ? LIMIT 1`, phone))
}

func (r *UserRepo) GetByGoogleSub(ctx context.Context, sub string) (*model.User, error) {
	return scanUser(r.db.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE google_sub = ? LIMIT 1`, sub))
}

// LinkGoogle attaches a Google subject to an existing account.
func (r *UserRepo) LinkGoogle(ctx context.Context, id uint64, sub string) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE users SET google_sub = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ?`, sub, id)
	if err != nil {
		return mapErr(err)
	}
	return affected(res)
}

// List returns users, newest first, optionally filtered by a substring
// of name, email or phone.
func (r *UserRepo) List(ctx context.Context, search string, limit, offset int) ([]model.User, error) {
	query := `SELECT ` + userColumns + ` FROM users`
	var args []interface{}
	if s := strings.TrimSpace(search); s != "" {
		like := "%" + s + "%"
		query += ` WHERE name LIKE ? OR email LIKE ? OR phone LIKE ?`
		args = append(args, like, like, like)
	}
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	query += ` ORDER BY id DESC LIMIT ? OFFSET ?`
	args = append(args, limit, offset)

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []model.User{}
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *u)
	}
	return out, rows.Err()
}

func (r *UserRepo) SetAdmin(ctx context.Context, id uint64, admin bool) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE users SET is_admin = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ?`, admin, id)
	if err != nil {
		return err
	}
	return affected(res)
}

// SetActive blocks or unblocks an account.  Blocked users cannot sign in.
func (r *UserRepo) SetActive(ctx context.Context, id uint64, active bool) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE users SET is_active = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ?`, active, id)
	if err != nil {
		return err
	}
	return affected(res)
}

// PromoteFirstAdmin makes id an admin only while no admin exists.  It
// returns ErrConflict once an admin is present.
func (r *UserRepo) PromoteFirstAdmin(ctx context.Context, id uint64) (err error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	var admins int
	if err = tx.QueryRowContext(ctx, `SELECT COUNT(*) FROM users WHERE is_admin = 1 FOR UPDATE`).Scan(&admins); err != nil {
		return err
	}
	if admins > 0 {
		return ErrConflict
	}
	res, err := tx.ExecContext(ctx,
		`UPDATE users SET is_admin = 1, updated_at = CURRENT_TIMESTAMP WHERE id = ? AND is_active = 1`, id)
	if err != nil {
		return err
	}
	if err = affected(res); err != nil {
		return err
	}
	return tx.Commit()
}
