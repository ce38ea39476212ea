package handler

import (
	"context"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/shopspring/decimal"

	"github.com/iliyamo/playhouse-booking/internal/booking"
	"github.com/iliyamo/playhouse-booking/internal/model"
)

type PackageStore interface {
	PackageReader
	Create(ctx context.Context, p *model.Package) error
	Update(ctx context.Context, p *model.Package) error
	Delete(ctx context.Context, id uint64) error
}

type SlotStore interface {
	SlotReader
	GetByID(ctx context.Context, id uint64) (*model.TimeSlot, error)
	Create(ctx context.Context, s *model.TimeSlot) error
	Update(ctx context.Context, s *model.TimeSlot) error
	Delete(ctx context.Context, id uint64) error
}

type HolidayStore interface {
	List(ctx context.Context, from, to string) ([]model.Holiday, error)
	Create(ctx context.Context, h *model.Holiday) error
	Update(ctx context.Context, h *model.Holiday) error
	Delete(ctx context.Context, id uint64) error
}

type VoucherStore interface {
	List(ctx context.Context) ([]model.DiscountVoucher, error)
	GetByID(ctx context.Context, id uint64) (*model.DiscountVoucher, error)
	Create(ctx context.Context, v *model.DiscountVoucher) error
	Update(ctx context.Context, v *model.DiscountVoucher) error
	Delete(ctx context.Context, id uint64) error
	Redemptions(ctx context.Context, voucherID uint64) ([]model.VoucherRedemption, error)
}

// Purger drops cached public responses after a catalogue change.
type Purger interface {
	Purge(ctx context.Context) error
}

// CatalogHandler manages packages, time slots, holidays and vouchers.
type CatalogHandler struct {
	packages PackageStore
	slots    SlotStore
	holidays HolidayStore
	vouchers VoucherStore
	purger   Purger
}

func NewCatalogHandler(packages PackageStore, slots SlotStore, holidays HolidayStore, vouchers VoucherStore, purger Purger) *CatalogHandler {
	return &CatalogHandler{packages: packages, slots: slots, holidays: holidays, vouchers: vouchers, purger: purger}
}

// changed purges the response cache.  A failed purge only leaves stale
// entries until their TTL runs out, so it is logged and ignored.
func (h *CatalogHandler) changed(c echo.Context) {
	if h.purger == nil {
		return
	}
	if err := h.purger.Purge(c.Request().Context()); err != nil {
		c.Logger().Warnf("cache purge: %v", err)
	}
}

// checks collects field errors found after struct validation.
type checks map[string][]string

func (ch checks) add(field, msg string) { ch[field] = append(ch[field], msg) }

func (ch checks) err() error {
	if len(ch) == 0 {
		return nil
	}
	return &fieldsError{fields: ch}
}

func boolOr(p *bool, def bool) bool {
	if p == nil {
		return def
	}
	return *p
}

// ----- packages -----

type packageReq struct {
	Name            string          `json:"name"             validate:"required,max=100"`
	Type            string          `json:"type"             validate:"required,oneof=play_session birthday_party weekend_special"`
	Description     *string         `json:"description"      validate:"omitempty,max=1000"`
	Price           decimal.Decimal `json:"price"`
	DurationMinutes uint32          `json:"duration_minutes" validate:"required,min=15,max=720"`
	MaxChildren     uint32          `json:"max_children"     validate:"required,min=1,max=100"`
	IsActive        *bool           `json:"is_active"`
}

func (r packageReq) check() error {
	ch := checks{}
	if !r.Price.IsPositive() {
		ch.add("price", "must be greater than 0")
	}
	return ch.err()
}

func (r packageReq) apply(p *model.Package) {
	p.Name = r.Name
	p.Type = r.Type
	p.Description = r.Description
	p.Price = r.Price.Round(2)
	p.DurationMinutes = r.DurationMinutes
	p.MaxChildren = r.MaxChildren
	p.IsActive = boolOr(r.IsActive, p.IsActive)
}

// ListPackages includes inactive packages.
func (h *CatalogHandler) ListPackages(c echo.Context) error {
	ctx, cancel := timeout(c)
	defer cancel()
	out, err := h.packages.List(ctx, false)
	if err != nil {
		return respondErr(c, err)
	}
	return c.JSON(http.StatusOK, out)
}

func (h *CatalogHandler) CreatePackage(c echo.Context) error {
	var req packageReq
	if err := bind(c, &req); err != nil {
		return respondErr(c, err)
	}
	if err := req.check(); err != nil {
		return respondErr(c, err)
	}
	p := model.Package{IsActive: true}
	req.apply(&p)

	ctx, cancel := timeout(c)
	defer cancel()
	if err := h.packages.Create(ctx, &p); err != nil {
		return respondErr(c, err)
	}
	h.changed(c)
	return c.JSON(http.StatusCreated, p)
}

// UpdatePackage replaces a package.  Packages with bookings only accept
// price and active flag changes.
func (h *CatalogHandler) UpdatePackage(c echo.Context) error {
	id, err := pathID(c)
	if err != nil {
		return respondErr(c, err)
	}
	var req packageReq
	if err := bind(c, &req); err != nil {
		return respondErr(c, err)
	}
	if err := req.check(); err != nil {
		return respondErr(c, err)
	}

	ctx, cancel := timeout(c)
	defer cancel()
	p, err := h.packages.GetByID(ctx, id)
	if err != nil {
		return respondErr(c, err)
	}
	req.apply(p)
	if err := h.packages.Update(ctx, p); err != nil {
		return respondErr(c, err)
	}
	h.changed(c)
	return c.JSON(http.StatusOK, p)
}

func (h *CatalogHandler) DeletePackage(c echo.Context) error {
	id, err := pathID(c)
	if err != nil {
		return respondErr(c, err)
	}
	ctx, cancel := timeout(c)
	defer cancel()
	if err := h.packages.Delete(ctx, id); err != nil {
		return respondErr(c, err)
	}
	h.changed(c)
	return c.NoContent(http.StatusNoContent)
}

// ----- time slots -----

type slotReq struct {
	Label       string `json:"label"        validate:"required,max=50"`
	StartTime   string `json:"start_time"   validate:"required,datetime=15:04"`
	EndTime     string `json:"end_time"     validate:"required,datetime=15:04"`
	MaxCapacity uint32 `json:"max_capacity" validate:"required,min=1,max=1000"`
	IsActive    *bool  `json:"is_active"`
}

func (r slotReq) check() error {
	ch := checks{}
	// zero-padded HH:MM compares correctly as text
	if r.EndTime <= r.StartTime {
		ch.add("end_time", "must be after start_time")
	}
	return ch.err()
}

func (r slotReq) apply(s *model.TimeSlot) {
	s.Label = r.Label
	s.StartTime = r.StartTime
	s.EndTime = r.EndTime
	s.MaxCapacity = r.MaxCapacity
	s.IsActive = boolOr(r.IsActive, s.IsActive)
}

func (h *CatalogHandler) ListSlots(c echo.Context) error {
	ctx, cancel := timeout(c)
	defer cancel()
	out, err := h.slots.List(ctx, false)
	if err != nil {
		return respondErr(c, err)
	}
	return c.JSON(http.StatusOK, out)
}

func (h *CatalogHandler) CreateSlot(c echo.Context) error {
	var req slotReq
	if err := bind(c, &req); err != nil {
		return respondErr(c, err)
	}
	if err := req.check(); err != nil {
		return respondErr(c, err)
	}
	s := model.TimeSlot{IsActive: true}
	req.apply(&s)

	ctx, cancel := timeout(c)
	defer cancel()
	if err := h.slots.Create(ctx, &s); err != nil {
		return respondErr(c, err)
	}
	h.changed(c)
	return c.JSON(http.StatusCreated, s)
}

// UpdateSlot replaces a slot.  Lowering capacity never evicts bookings.
func (h *CatalogHandler) UpdateSlot(c echo.Context) error {
	id, err := pathID(c)
	if err != nil {
		return respondErr(c, err)
	}
	var req slotReq
	if err := bind(c, &req); err != nil {
		return respondErr(c, err)
	}
	if err := req.check(); err != nil {
		return respondErr(c, err)
	}

	ctx, cancel := timeout(c)
	defer cancel()
	s, err := h.slots.GetByID(ctx, id)
	if err != nil {
		return respondErr(c, err)
	}
	req.apply(s)
	if err := h.slots.Update(ctx, s); err != nil {
		return respondErr(c, err)
	}
	h.changed(c)
	return c.JSON(http.StatusOK, s)
}

func (h *CatalogHandler) DeleteSlot(c echo.Context) error {
	id, err := pathID(c)
	if err != nil {
		return respondErr(c, err)
	}
	ctx, cancel := timeout(c)
	defer cancel()
	if err := h.slots.Delete(ctx, id); err != nil {
		return respondErr(c, err)
	}
	h.changed(c)
	return c.NoContent(http.StatusNoContent)
}

// ----- holidays -----

type holidayReq struct {
	Date     string `json:"date"      validate:"required,datetime=2006-01-02"`
	Reason   string `json:"reason"    validate:"required,max=200"`
	IsActive *bool  `json:"is_active"`
}

type holidayUpdateReq struct {
	Reason   string `json:"reason"    validate:"required,max=200"`
	IsActive *bool  `json:"is_active" validate:"required"`
}

// ListHolidays returns entries in ?from= ?to=, both optional.
func (h *CatalogHandler) ListHolidays(c echo.Context) error {
	ctx, cancel := timeout(c)
	defer cancel()
	out, err := h.holidays.List(ctx, c.QueryParam("from"), c.QueryParam("to"))
	if err != nil {
		return respondErr(c, err)
	}
	return c.JSON(http.StatusOK, out)
}

func (h *CatalogHandler) CreateHoliday(c echo.Context) error {
	var req holidayReq
	if err := bind(c, &req); err != nil {
		return respondErr(c, err)
	}
	hol := model.Holiday{Date: req.Date, Reason: req.Reason, IsActive: boolOr(req.IsActive, true)}

	ctx, cancel := timeout(c)
	defer cancel()
	if err := h.holidays.Create(ctx, &hol); err != nil {
		return respondErr(c, err)
	}
	h.changed(c)
	return c.JSON(http.StatusCreated, hol)
}

// UpdateHoliday changes the reason or re-opens the date.  The date
// itself is fixed; delete and recreate to move it.
func (h *CatalogHandler) UpdateHoliday(c echo.Context) error {
	id, err := pathID(c)
	if err != nil {
		return respondErr(c, err)
	}
	var req holidayUpdateReq
	if err := bind(c, &req); err != nil {
		return respondErr(c, err)
	}
	hol := model.Holiday{ID: id, Reason: req.Reason, IsActive: *req.IsActive}

	ctx, cancel := timeout(c)
	defer cancel()
	if err := h.holidays.Update(ctx, &hol); err != nil {
		return respondErr(c, err)
	}
	h.changed(c)
	return c.JSON(http.StatusOK, hol)
}

func (h *CatalogHandler) DeleteHoliday(c echo.Context) error {
	id, err := pathID(c)
	if err != nil {
		return respondErr(c, err)
	}
	ctx, cancel := timeout(c)
	defer cancel()
	if err := h.holidays.Delete(ctx, id); err != nil {
		return respondErr(c, err)
	}
	h.changed(c)
	return c.NoContent(http.StatusNoContent)
}

// ----- vouchers -----

type voucherReq struct {
	Code               string          `json:"code"                validate:"required,min=3,max=32,alphanum"`
	DiscountType       string          `json:"discount_type"       validate:"required,oneof=percentage fixed"`
	Value              decimal.Decimal `json:"value"`
	MinAmount          decimal.Decimal `json:"min_amount"`
	MaxDiscount        decimal.Decimal `json:"max_discount"`
	ValidFrom          string          `json:"valid_from"          validate:"required,datetime=2006-01-02"`
	ValidTill          string          `json:"valid_till"          validate:"required,datetime=2006-01-02"`
	UsageLimit         uint32          `json:"usage_limit"         validate:"required,min=1"`
	ApplicablePackages []string        `json:"applicable_packages" validate:"omitempty,dive,oneof=play_session birthday_party weekend_special"`
	IsActive           *bool           `json:"is_active"`
}

func (r voucherReq) check() error {
	ch := checks{}
	if !r.Value.IsPositive() {
		ch.add("value", "must be greater than 0")
	}
	if r.DiscountType == model.DiscountPercentage && r.Value.GreaterThan(decimal.NewFromInt(100)) {
		ch.add("value", "must be at most 100 for percentage vouchers")
	}
	if r.MinAmount.IsNegative() {
		ch.add("min_amount", "must not be negative")
	}
	if !r.MaxDiscount.IsPositive() {
		ch.add("max_discount", "must be greater than 0")
	}
	if r.ValidFrom > r.ValidTill {
		ch.add("valid_till", "must not be before valid_from")
	}
	return ch.err()
}

func (r voucherReq) apply(v *model.DiscountVoucher) {
	v.Code = booking.NormalizeCode(r.Code)
	v.DiscountType = r.DiscountType
	v.Value = r.Value
	v.MinAmount = r.MinAmount.Round(2)
	v.MaxDiscount = r.MaxDiscount.Round(2)
	v.ValidFrom = r.ValidFrom
	v.ValidTill = r.ValidTill
	v.UsageLimit = r.UsageLimit
	v.ApplicablePackages = r.ApplicablePackages
	if v.ApplicablePackages == nil {
		v.ApplicablePackages = []string{}
	}
	v.IsActive = boolOr(r.IsActive, v.IsActive)
}

func (h *CatalogHandler) ListVouchers(c echo.Context) error {
	ctx, cancel := timeout(c)
	defer cancel()
	out, err := h.vouchers.List(ctx)
	if err != nil {
		return respondErr(c, err)
	}
	return c.JSON(http.StatusOK, out)
}

// GetVoucher returns a voucher together with its redemptions.
func (h *CatalogHandler) GetVoucher(c echo.Context) error {
	id, err := pathID(c)
	if err != nil {
		return respondErr(c, err)
	}
	ctx, cancel := timeout(c)
	defer cancel()

	v, err := h.vouchers.GetByID(ctx, id)
	if err != nil {
		return respondErr(c, err)
	}
	reds, err := h.vouchers.Redemptions(ctx, id)
	if err != nil {
		return respondErr(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"voucher": v, "redemptions": reds})
}

func (h *CatalogHandler) CreateVoucher(c echo.Context) error {
	var req voucherReq
	if err := bind(c, &req); err != nil {
		return respondErr(c, err)
	}
	if err := req.check(); err != nil {
		return respondErr(c, err)
	}
	v := model.DiscountVoucher{IsActive: true}
	req.apply(&v)

	ctx, cancel := timeout(c)
	defer cancel()
	if err := h.vouchers.Create(ctx, &v); err != nil {
		return respondErr(c, err)
	}
	return c.JSON(http.StatusCreated, v)
}

// UpdateVoucher replaces the voucher terms.  The used count is kept and
// a usage limit below it is rejected with 409.
func (h *CatalogHandler) UpdateVoucher(c echo.Context) error {
	id, err := pathID(c)
	if err != nil {
		return respondErr(c, err)
	}
	var req voucherReq
	if err := bind(c, &req); err != nil {
		return respondErr(c, err)
	}
	if err := req.check(); err != nil {
		return respondErr(c, err)
	}

	ctx, cancel := timeout(c)
	defer cancel()
	v, err := h.vouchers.GetByID(ctx, id)
	if err != nil {
		return respondErr(c, err)
	}
	req.apply(v)
	if err := h.vouchers.Update(ctx, v); err != nil {
		return respondErr(c, err)
	}
	return c.JSON(http.StatusOK, v)
}

func (h *CatalogHandler) DeleteVoucher(c echo.Context) error {
	id, err := pathID(c)
	if err != nil {
		return respondErr(c, err)
	}
	ctx, cancel := timeout(c)
	defer cancel()
	if err := h.vouchers.Delete(ctx, id); err != nil {
		return respondErr(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}
