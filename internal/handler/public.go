package handler

import (
	"context"
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/playhouse-booking/internal/booking"
	"github.com/iliyamo/playhouse-booking/internal/model"
)

type PackageReader interface {
	List(ctx context.Context, activeOnly bool) ([]model.Package, error)
	GetByID(ctx context.Context, id uint64) (*model.Package, error)
}

type SlotReader interface {
	List(ctx context.Context, activeOnly bool) ([]model.TimeSlot, error)
}

// PublicHandler serves the catalogue and availability to guests.
type PublicHandler struct {
	packages PackageReader
	slots    SlotReader
	manager  *booking.Manager
}

func NewPublicHandler(packages PackageReader, slots SlotReader, manager *booking.Manager) *PublicHandler {
	return &PublicHandler{packages: packages, slots: slots, manager: manager}
}

// ListPackages returns bookable packages, cheapest first.
func (h *PublicHandler) ListPackages(c echo.Context) error {
	ctx, cancel := timeout(c)
	defer cancel()

	out, err := h.packages.List(ctx, true)
	if err != nil {
		return respondErr(c, err)
	}
	return c.JSON(http.StatusOK, out)
}

// GetPackage returns one bookable package.  Inactive packages are hidden.
func (h *PublicHandler) GetPackage(c echo.Context) error {
	id, err := pathID(c)
	if err != nil {
		return respondErr(c, err)
	}
	ctx, cancel := timeout(c)
	defer cancel()

	p, err := h.packages.GetByID(ctx, id)
	if err == nil && !p.IsActive {
		err = booking.ErrNotFound
	}
	if err != nil {
		return respondErr(c, err)
	}
	return c.JSON(http.StatusOK, p)
}

func (h *PublicHandler) ListSlots(c echo.Context) error {
	ctx, cancel := timeout(c)
	defer cancel()

	out, err := h.slots.List(ctx, true)
	if err != nil {
		return respondErr(c, err)
	}
	return c.JSON(http.StatusOK, out)
}

// Availability returns per-slot capacity for ?date= (default today).
func (h *PublicHandler) Availability(c echo.Context) error {
	date := c.QueryParam("date")
	if date == "" {
		date = h.manager.Today()
	}
	ctx, cancel := timeout(c)
	defer cancel()

	slots, err := h.manager.Availability(ctx, date)
	if err != nil {
		return respondErr(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"date": date, "slots": slots})
}

type previewReq struct {
	Code             string `json:"code"               validate:"required"`
	PackageID        uint64 `json:"package_id"         validate:"required"`
	NumberOfChildren uint32 `json:"number_of_children" validate:"omitempty,min=1"`
}

// PreviewVoucher prices an order with a voucher without redeeming it.
func (h *PublicHandler) PreviewVoucher(c echo.Context) error {
	var req previewReq
	if err := bind(c, &req); err != nil {
		return respondErr(c, err)
	}
	ctx, cancel := timeout(c)
	defer cancel()

	q, err := h.manager.PreviewVoucher(ctx, booking.PreviewInput{
		Code:             req.Code,
		PackageID:        req.PackageID,
		NumberOfChildren: req.NumberOfChildren,
	})
	if errors.Is(err, booking.ErrNotFound) {
		return fail(c, http.StatusNotFound, "not_found", "package not found")
	}
	if err != nil {
		return respondErr(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"code": booking.NormalizeCode(req.Code), "quote": q})
}
