package router

import (
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/playhouse-booking/internal/handler"
	"github.com/iliyamo/playhouse-booking/internal/middleware"
)

// Deps carries the handlers and shared middleware the routes are built
// from.  Nil middleware is skipped.
type Deps struct {
	JWTSecret string

	Auth     *handler.AuthHandler
	Public   *handler.PublicHandler
	Bookings *handler.BookingHandler
	Admin    *handler.AdminHandler
	Catalog  *handler.CatalogHandler

	// Ready answers /readyz; nil falls back to the liveness handler.
	Ready echo.HandlerFunc

	// Cache wraps the catalogue reads.
	Cache echo.MiddlewareFunc

	// OTPLimit throttles code requests and verification.
	OTPLimit echo.MiddlewareFunc
}

func optional(mws ...echo.MiddlewareFunc) []echo.MiddlewareFunc {
	out := make([]echo.MiddlewareFunc, 0, len(mws))
	for _, m := range mws {
		if m != nil {
			out = append(out, m)
		}
	}
	return out
}

// Register mounts every route on e.
func Register(e *echo.Echo, d Deps) {
	e.GET("/healthz", handler.Health)
	if d.Ready != nil {
		e.GET("/readyz", d.Ready)
	} else {
		e.GET("/readyz", handler.Health)
	}

	registerAuth(e, d)
	registerPublic(e, d)
	registerCustomer(e, d)
	registerAdmin(e, d)
}

func registerAuth(e *echo.Echo, d Deps) {
	jwt := middleware.JWTAuth(d.JWTSecret)
	otp := optional(d.OTPLimit)

	g := e.Group("/v1/auth")
	g.POST("/register", d.Auth.Register)
	g.POST("/login", d.Auth.Login)
	g.POST("/otp/request", d.Auth.RequestOTP, otp...)
	g.POST("/otp/verify", d.Auth.VerifyOTP, otp...)
	g.POST("/google", d.Auth.Google)
	g.POST("/refresh", d.Auth.Refresh)
	g.POST("/logout", d.Auth.Logout)

	e.GET("/v1/me", d.Auth.Me, jwt)
	// Any signed-in user may claim the first admin seat.
	e.POST("/v1/admin/bootstrap", d.Auth.Bootstrap, jwt)
}

// registerPublic mounts guest endpoints.  Availability is not cached
// because it moves with every booking.
func registerPublic(e *echo.Echo, d Deps) {
	cache := optional(d.Cache)

	e.GET("/v1/packages", d.Public.ListPackages, cache...)
	e.GET("/v1/packages/:id", d.Public.GetPackage, cache...)
	e.GET("/v1/slots", d.Public.ListSlots, cache...)
	e.GET("/v1/availability", d.Public.Availability)
	e.POST("/v1/vouchers/preview", d.Public.PreviewVoucher)
}

func registerCustomer(e *echo.Echo, d Deps) {
	g := e.Group("/v1/bookings", middleware.JWTAuth(d.JWTSecret))
	g.POST("", d.Bookings.Create)
	g.GET("", d.Bookings.List)
	g.GET("/:id", d.Bookings.Get)
	g.POST("/:id/cancel", d.Bookings.Cancel)
}

func registerAdmin(e *echo.Echo, d Deps) {
	g := e.Group("/v1/admin", middleware.JWTAuth(d.JWTSecret), middleware.RequireAdmin())

	// ---- Bookings ----
	g.GET("/bookings", d.Admin.ListBookings)
	g.GET("/bookings/:id", d.Admin.GetBooking)
	g.PATCH("/bookings/:id/status", d.Admin.UpdateBookingStatus)

	// ---- Analytics ----
	g.GET("/analytics", d.Admin.Analytics)
	g.GET("/analytics/slots", d.Admin.SlotUtilisation)

	// ---- Users ----
	g.GET("/users", d.Admin.ListUsers)
	g.PATCH("/users/:id", d.Admin.UpdateUser)

	// ---- Packages ----
	g.GET("/packages", d.Catalog.ListPackages)
	g.POST("/packages", d.Catalog.CreatePackage)
	g.PUT("/packages/:id", d.Catalog.UpdatePackage)
	g.DELETE("/packages/:id", d.Catalog.DeletePackage)

	// ---- Time slots ----
	g.GET("/slots", d.Catalog.ListSlots)
	g.POST("/slots", d.Catalog.CreateSlot)
	g.PUT("/slots/:id", d.Catalog.UpdateSlot)
	g.DELETE("/slots/:id", d.Catalog.DeleteSlot)

	// ---- Holidays ----
	g.GET("/holidays", d.Catalog.ListHolidays)
	g.POST("/holidays", d.Catalog.CreateHoliday)
	g.PUT("/holidays/:id", d.Catalog.UpdateHoliday)
	g.DELETE("/holidays/:id", d.Catalog.DeleteHoliday)

	// ---- Vouchers ----
	g.GET("/vouchers", d.Catalog.ListVouchers)
	g.GET("/vouchers/:id", d.Catalog.GetVoucher)
	g.POST("/vouchers", d.Catalog.CreateVoucher)
	g.PUT("/vouchers/:id", d.Catalog.UpdateVoucher)
	g.DELETE("/vouchers/:id", d.Catalog.DeleteVoucher)
}
