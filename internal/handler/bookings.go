package handler

import (
	"context"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/playhouse-booking/internal/booking"
	"github.com/iliyamo/playhouse-booking/internal/middleware"
	"github.com/iliyamo/playhouse-booking/internal/model"
	"github.com/iliyamo/playhouse-booking/internal/utils"
)

type BookingLister interface {
	ListByUser(ctx context.Context, userID uint64, limit, offset int) ([]model.Booking, error)
	List(ctx context.Context, f model.BookingFilter) ([]model.Booking, error)
	GetByID(ctx context.Context, id uint64) (*model.Booking, error)
}

// BookingHandler serves a signed-in customer's bookings.
type BookingHandler struct {
	manager     *booking.Manager
	bookings    BookingLister
	countryCode string
}

func NewBookingHandler(manager *booking.Manager, bookings BookingLister, countryCode string) *BookingHandler {
	return &BookingHandler{manager: manager, bookings: bookings, countryCode: countryCode}
}

type createBookingReq struct {
	PackageID        uint64 `json:"package_id"         validate:"required"`
	TimeSlotID       uint64 `json:"time_slot_id"       validate:"required"`
	Date             string `json:"date"               validate:"required,datetime=2006-01-02"`
	NumberOfChildren uint32 `json:"number_of_children" validate:"required,min=1"`
	VoucherCode      string `json:"voucher_code"       validate:"max=32"`
	ParentName       string `json:"parent_name"        validate:"required,max=100"`
	ParentPhone      string `json:"parent_phone"       validate:"required"`
	ParentEmail      string `json:"parent_email"       validate:"omitempty,email"`
	Notes            string `json:"notes"              validate:"max=500"`
}

func actor(c echo.Context) (booking.Actor, bool) {
	uid, ok := middleware.UserID(c)
	return booking.Actor{UserID: uid, IsAdmin: middleware.IsAdmin(c)}, ok
}

// Create books a slot for the caller.  The booking starts pending.
func (h *BookingHandler) Create(c echo.Context) error {
	a, ok := actor(c)
	if !ok {
		return fail(c, http.StatusUnauthorized, "unauthorized", "missing identity")
	}
	var req createBookingReq
	if err := bind(c, &req); err != nil {
		return respondErr(c, err)
	}
	phone, err := utils.NormalizePhone(req.ParentPhone, h.countryCode)
	if err != nil {
		return respondErr(c, newFieldsError("parent_phone", "must be a valid phone number"))
	}

	ctx, cancel := timeout(c)
	defer cancel()
	b, err := h.manager.CreateBooking(ctx, booking.CreateInput{
		UserID:           a.UserID,
		PackageID:        req.PackageID,
		TimeSlotID:       req.TimeSlotID,
		Date:             req.Date,
		NumberOfChildren: req.NumberOfChildren,
		VoucherCode:      req.VoucherCode,
		ParentName:       req.ParentName,
		ParentPhone:      phone,
		ParentEmail:      req.ParentEmail,
		Notes:            req.Notes,
	})
	if err != nil {
		return respondErr(c, err)
	}
	return c.JSON(http.StatusCreated, b)
}

// List returns the caller's bookings, newest first.
func (h *BookingHandler) List(c echo.Context) error {
	a, ok := actor(c)
	if !ok {
		return fail(c, http.StatusUnauthorized, "unauthorized", "missing identity")
	}
	limit, offset := paging(c, 20)
	ctx, cancel := timeout(c)
	defer cancel()

	out, err := h.bookings.ListByUser(ctx, a.UserID, limit, offset)
	if err != nil {
		return respondErr(c, err)
	}
	return c.JSON(http.StatusOK, out)
}

func (h *BookingHandler) Get(c echo.Context) error {
	a, ok := actor(c)
	if !ok {
		return fail(c, http.StatusUnauthorized, "unauthorized", "missing identity")
	}
	id, err := pathID(c)
	if err != nil {
		return respondErr(c, err)
	}
	ctx, cancel := timeout(c)
	defer cancel()

	b, err := h.manager.GetBooking(ctx, id, a)
	if err != nil {
		return respondErr(c, err)
	}
	return c.JSON(http.StatusOK, b)
}

// Cancel cancels one of the caller's pending or confirmed bookings.
func (h *BookingHandler) Cancel(c echo.Context) error {
	a, ok := actor(c)
	if !ok {
		return fail(c, http.StatusUnauthorized, "unauthorized", "missing identity")
	}
	id, err := pathID(c)
	if err != nil {
		return respondErr(c, err)
	}
	ctx, cancel := timeout(c)
	defer cancel()

	b, err := h.manager.CancelBooking(ctx, id, a)
	if err != nil {
		return respondErr(c, err)
	}
	return c.JSON(http.StatusOK, b)
}
