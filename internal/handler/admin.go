package handler

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/playhouse-booking/internal/booking"
	"github.com/iliyamo/playhouse-booking/internal/middleware"
	"github.com/iliyamo/playhouse-booking/internal/model"
	"github.com/iliyamo/playhouse-booking/internal/repository"
)

// Analytics runs the dashboard aggregates.
type Analytics interface {
	Summary(ctx context.Context, from, to string) (repository.Summary, error)
	RevenueByDay(ctx context.Context, from, to string) ([]repository.DailyRevenue, error)
	BookingsByPackage(ctx context.Context, from, to string) ([]repository.PackageBookings, error)
	SlotUtilisation(ctx context.Context, date string) ([]repository.SlotUtilisation, error)
}

// AdminHandler serves booking management, analytics and user
// administration.  Every route sits behind RequireAdmin.
type AdminHandler struct {
	manager   *booking.Manager
	bookings  BookingLister
	analytics Analytics
	users     UserStore
	tokens    TokenStore
}

func NewAdminHandler(manager *booking.Manager, bookings BookingLister, analytics Analytics, users UserStore, tokens TokenStore) *AdminHandler {
	return &AdminHandler{manager: manager, bookings: bookings, analytics: analytics, users: users, tokens: tokens}
}

// ListBookings filters by status, date, time_slot_id and user_id.
func (h *AdminHandler) ListBookings(c echo.Context) error {
	f := model.BookingFilter{Status: c.QueryParam("status"), Date: c.QueryParam("date")}
	f.TimeSlotID, _ = strconv.ParseUint(c.QueryParam("time_slot_id"), 10, 64)
	f.UserID, _ = strconv.ParseUint(c.QueryParam("user_id"), 10, 64)
	f.Limit, f.Offset = paging(c, 50)

	ctx, cancel := timeout(c)
	defer cancel()
	out, err := h.bookings.List(ctx, f)
	if err != nil {
		return respondErr(c, err)
	}
	return c.JSON(http.StatusOK, out)
}

func (h *AdminHandler) GetBooking(c echo.Context) error {
	id, err := pathID(c)
	if err != nil {
		return respondErr(c, err)
	}
	ctx, cancel := timeout(c)
	defer cancel()

	b, err := h.bookings.GetByID(ctx, id)
	if err != nil {
		return respondErr(c, err)
	}
	return c.JSON(http.StatusOK, b)
}

type statusReq struct {
	Status     string `json:"status"      validate:"required"`
	PaymentRef string `json:"payment_ref" validate:"max=100"`
}

// UpdateBookingStatus moves a booking through its lifecycle.  Illegal
// moves answer 409.
func (h *AdminHandler) UpdateBookingStatus(c echo.Context) error {
	id, err := pathID(c)
	if err != nil {
		return respondErr(c, err)
	}
	var req statusReq
	if err := bind(c, &req); err != nil {
		return respondErr(c, err)
	}
	ctx, cancel := timeout(c)
	defer cancel()

	b, err := h.manager.UpdateStatus(ctx, id, req.Status, req.PaymentRef)
	if err != nil {
		return respondErr(c, err)
	}
	return c.JSON(http.StatusOK, b)
}

// dateRange reads ?from=&to=, defaulting to the 30 days up to today.
func (h *AdminHandler) dateRange(c echo.Context) (string, string, error) {
	today, err := time.Parse("2006-01-02", h.manager.Today())
	if err != nil {
		return "", "", err
	}
	from, to := c.QueryParam("from"), c.QueryParam("to")
	if to == "" {
		to = today.Format("2006-01-02")
	}
	if from == "" {
		from = today.AddDate(0, 0, -30).Format("2006-01-02")
	}
	for field, v := range map[string]string{"from": from, "to": to} {
		if _, err := time.Parse("2006-01-02", v); err != nil {
			return "", "", newFieldsError(field, "must match 2006-01-02")
		}
	}
	if from > to {
		return "", "", newFieldsError("from", "must not be after to")
	}
	return from, to, nil
}

// Analytics returns the summary, daily revenue and per-package figures
// for a date range.
func (h *AdminHandler) Analytics(c echo.Context) error {
	from, to, err := h.dateRange(c)
	if err != nil {
		return respondErr(c, err)
	}
	ctx, cancel := timeout(c)
	defer cancel()

	summary, err := h.analytics.Summary(ctx, from, to)
	if err != nil {
		return respondErr(c, err)
	}
	daily, err := h.analytics.RevenueByDay(ctx, from, to)
	if err != nil {
		return respondErr(c, err)
	}
	packages, err := h.analytics.BookingsByPackage(ctx, from, to)
	if err != nil {
		return respondErr(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"summary": summary, "daily": daily, "packages": packages})
}

// SlotUtilisation reports how full each slot is on ?date= (default today).
func (h *AdminHandler) SlotUtilisation(c echo.Context) error {
	date := c.QueryParam("date")
	if date == "" {
		date = h.manager.Today()
	}
	if _, err := time.Parse("2006-01-02", date); err != nil {
		return respondErr(c, newFieldsError("date", "must match 2006-01-02"))
	}
	ctx, cancel := timeout(c)
	defer cancel()

	out, err := h.analytics.SlotUtilisation(ctx, date)
	if err != nil {
		return respondErr(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"date": date, "slots": out})
}

func (h *AdminHandler) ListUsers(c echo.Context) error {
	limit, offset := paging(c, 50)
	ctx, cancel := timeout(c)
	defer cancel()

	users, err := h.users.List(ctx, c.QueryParam("search"), limit, offset)
	if err != nil {
		return respondErr(c, err)
	}
	out := make([]model.User, 0, len(users))
	out = append(out, users...)
	return c.JSON(http.StatusOK, out)
}

type userUpdateReq struct {
	IsAdmin  *bool `json:"is_admin"`
	IsActive *bool `json:"is_active"`
}

// UpdateUser grants or revokes admin and blocks or unblocks a user.
// Blocking signs the user out everywhere.  Admins cannot change their
// own flags.
func (h *AdminHandler) UpdateUser(c echo.Context) error {
	id, err := pathID(c)
	if err != nil {
		return respondErr(c, err)
	}
	if self, _ := middleware.UserID(c); self == id {
		return fail(c, http.StatusConflict, "self_update", "admins cannot change their own account flags")
	}
	var req userUpdateReq
	if err := bind(c, &req); err != nil {
		return respondErr(c, err)
	}
	ctx, cancel := timeout(c)
	defer cancel()

	if req.IsAdmin != nil {
		if err := h.users.SetAdmin(ctx, id, *req.IsAdmin); err != nil {
			return respondErr(c, err)
		}
	}
	if req.IsActive != nil {
		if err := h.users.SetActive(ctx, id, *req.IsActive); err != nil {
			return respondErr(c, err)
		}
		if !*req.IsActive {
			if err := h.tokens.RevokeAll(ctx, id); err != nil {
				return respondErr(c, err)
			}
		}
	}
	u, err := h.users.GetByID(ctx, id)
	if err != nil {
		return respondErr(c, err)
	}
	return c.JSON(http.StatusOK, u)
}
