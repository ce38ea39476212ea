package repository

import (
	"context"
	"database/sql"
	"encoding/json"

	"github.com/iliyamo/playhouse-booking/internal/model"
)

// VoucherRepo manages discount_vouchers and voucher_redemptions.  Codes
// are stored upper-case; applicable_packages is a JSON array of package
// types.
type VoucherRepo struct {
	db *sql.DB
}

func NewVoucherRepo(db *sql.DB) *VoucherRepo { return &VoucherRepo{db: db} }

const voucherColumns = `id, code, discount_type, value, min_amount, max_discount,
	DATE_FORMAT(valid_from, '%Y-%m-%d'), DATE_FORMAT(valid_till, '%Y-%m-%d'),
	usage_limit, used_count, applicable_packages, is_active, created_at, updated_at`

func scanVoucher(row rowScanner) (*model.DiscountVoucher, error) {
	var (
		v        model.DiscountVoucher
		packages []byte
	)
	if err := row.Scan(&v.ID, &v.Code, &v.DiscountType, &v.Value, &v.MinAmount, &v.MaxDiscount,
		&v.ValidFrom, &v.ValidTill, &v.UsageLimit, &v.UsedCount, &packages, &v.IsActive,
		&v.CreatedAt, &v.UpdatedAt); err != nil {
		return nil, mapErr(err)
	}
	v.ApplicablePackages = []string{}
	if len(packages) > 0 {
		if err := json.Unmarshal(packages, &v.ApplicablePackages); err != nil {
			return nil, err
		}
	}
	return &v, nil
}

func encodePackages(types []string) ([]byte, error) {
	if types == nil {
		types = []string{}
	}
	return json.Marshal(types)
}

func getVoucherByCode(ctx context.Context, q querier, code string, lock bool) (*model.DiscountVoucher, error) {
	query := `SELECT ` + voucherColumns + ` FROM discount_vouchers WHERE code = ?`
	if lock {
		query += ` FOR UPDATE`
	}
	return scanVoucher(q.QueryRowContext(ctx, query, code))
}

// incrementVoucherUsage claims one use.  The WHERE clause keeps used_count
// at or below usage_limit even without a prior row lock.
func incrementVoucherUsage(ctx context.Context, q querier, id uint64) (bool, error) {
	res, err := q.ExecContext(ctx,
		`UPDATE discount_vouchers
		 SET used_count = used_count + 1, updated_at = CURRENT_TIMESTAMP
		 WHERE id = ? AND used_count < usage_limit`, id)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

func (r *VoucherRepo) GetByCode(ctx context.Context, code string) (*model.DiscountVoucher, error) {
	return getVoucherByCode(ctx, r.db, code, false)
}

func (r *VoucherRepo) GetByID(ctx context.Context, id uint64) (*model.DiscountVoucher, error) {
	return scanVoucher(r.db.QueryRowContext(ctx, `SELECT `+voucherColumns+` FROM discount_vouchers WHERE id = ?`, id))
}

// List returns every voucher, newest first.
func (r *VoucherRepo) List(ctx context.Context) ([]model.DiscountVoucher, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT `+voucherColumns+` FROM discount_vouchers ORDER BY id DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []model.DiscountVoucher{}
	for rows.Next() {
		v, err := scanVoucher(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *v)
	}
	return out, rows.Err()
}

// Create inserts v.  A code that already exists yields ErrDuplicate.
func (r *VoucherRepo) Create(ctx context.Context, v *model.DiscountVoucher) error {
	packages, err := encodePackages(v.ApplicablePackages)
	if err != nil {
		return err
	}
	res, err := r.db.ExecContext(ctx,
		`INSERT INTO discount_vouchers
		   (code, discount_type, value, min_amount, max_discount, valid_from, valid_till,
		    usage_limit, applicable_packages, is_active)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		v.Code, v.DiscountType, v.Value, v.MinAmount, v.MaxDiscount, v.ValidFrom, v.ValidTill,
		v.UsageLimit, packages, v.IsActive)
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
	*v = *created
	return nil
}

// Update overwrites the voucher terms.  used_count is never written here
// and a usage limit below the current used count yields ErrConflict.
func (r *VoucherRepo) Update(ctx context.Context, v *model.DiscountVoucher) error {
	packages, err := encodePackages(v.ApplicablePackages)
	if err != nil {
		return err
	}
	res, err := r.db.ExecContext(ctx,
		`UPDATE discount_vouchers
		 SET code = ?, discount_type = ?, value = ?, min_amount = ?, max_discount = ?,
		     valid_from = ?, valid_till = ?, usage_limit = ?, applicable_packages = ?, is_active = ?,
		     updated_at = CURRENT_TIMESTAMP
		 WHERE id = ? AND used_count <= ?`,
		v.Code, v.DiscountType, v.Value, v.MinAmount, v.MaxDiscount, v.ValidFrom, v.ValidTill,
		v.UsageLimit, packages, v.IsActive, v.ID, v.UsageLimit)
	if err != nil {
		return mapErr(err)
	}
	if err := affected(res); err != nil {
		if _, lookupErr := r.GetByID(ctx, v.ID); lookupErr == nil {
			return ErrConflict
		}
		return err
	}
	updated, err := r.GetByID(ctx, v.ID)
	if err != nil {
		return err
	}
	*v = *updated
	return nil
}

// Delete removes a voucher that was never redeemed; otherwise ErrConflict.
func (r *VoucherRepo) Delete(ctx context.Context, id uint64) error {
	used, err := referenced(ctx, r.db, `SELECT EXISTS(SELECT 1 FROM voucher_redemptions WHERE voucher_id = ?)`, id)
	if err != nil {
		return err
	}
	if used {
		return ErrConflict
	}
	res, err := r.db.ExecContext(ctx, `DELETE FROM discount_vouchers WHERE id = ?`, id)
	if err != nil {
		return err
	}
	return affected(res)
}

// Redemptions lists the uses of a voucher, newest first.
func (r *VoucherRepo) Redemptions(ctx context.Context, voucherID uint64) ([]model.VoucherRedemption, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, voucher_id, booking_id, user_id, discount, redeemed_at
		 FROM voucher_redemptions WHERE voucher_id = ? ORDER BY id DESC`, voucherID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []model.VoucherRedemption{}
	for rows.Next() {
		var red model.VoucherRedemption
		if err := rows.Scan(&red.ID, &red.VoucherID, &red.BookingID, &red.UserID, &red.Discount, &red.RedeemedAt); err != nil {
			return nil, err
		}
		out = append(out, red)
	}
	return out, rows.Err()
}

func insertRedemption(ctx context.Context, q querier, red *model.VoucherRedemption) error {
	res, err := q.ExecContext(ctx,
		`INSERT INTO voucher_redemptions (voucher_id, booking_id, user_id, discount, redeemed_at)
		 VALUES (?, ?, ?, ?, ?)`,
		red.VoucherID, red.BookingID, red.UserID, red.Discount, red.RedeemedAt)
	if err != nil {
		return err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	red.ID = uint64(id)
	return nil
}
