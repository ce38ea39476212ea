package handler

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/playhouse-booking/internal/auth"
	"github.com/iliyamo/playhouse-booking/internal/booking"
	"github.com/iliyamo/playhouse-booking/internal/repository"
	"github.com/iliyamo/playhouse-booking/internal/utils"
)

var errInvalidBody = errors.New("invalid request body")

// fieldsError carries per-field messages from request validation.
type fieldsError struct {
	fields map[string][]string
}

func (e *fieldsError) Error() string { return "invalid input" }

func newFieldsError(field, msg string) *fieldsError {
	return &fieldsError{fields: map[string][]string{field: {msg}}}
}

// knownErrors maps sentinel errors to a status and a stable error code.
var knownErrors = []struct {
	err    error
	status int
	code   string
}{
	{errInvalidBody, http.StatusBadRequest, "invalid_body"},
	{booking.ErrVoucherNotFound, http.StatusNotFound, "voucher_not_found"},
	{booking.ErrVoucherExpired, http.StatusUnprocessableEntity, "voucher_expired"},
	{booking.ErrVoucherExhausted, http.StatusUnprocessableEntity, "voucher_exhausted"},
	{booking.ErrVoucherMinAmountNotMet, http.StatusUnprocessableEntity, "voucher_min_amount_not_met"},
	{booking.ErrVoucherNotApplicable, http.StatusUnprocessableEntity, "voucher_not_applicable"},
	{booking.ErrSlotInactive, http.StatusUnprocessableEntity, "slot_inactive"},
	{booking.ErrPackageInactive, http.StatusUnprocessableEntity, "package_inactive"},
	{booking.ErrNotFound, http.StatusNotFound, "not_found"},
	{booking.ErrForbidden, http.StatusForbidden, "forbidden"},
	{repository.ErrForbidden, http.StatusForbidden, "forbidden"},
	{repository.ErrPackageInUse, http.StatusConflict, "package_in_use"},
	{repository.ErrEmailExists, http.StatusConflict, "email_exists"},
	{repository.ErrDuplicate, http.StatusConflict, "duplicate"},
	{repository.ErrConflict, http.StatusConflict, "conflict"},
	{auth.ErrInvalidCredentials, http.StatusUnauthorized, "invalid_credentials"},
	{auth.ErrUserBlocked, http.StatusForbidden, "user_blocked"},
	{auth.ErrOTPInvalid, http.StatusUnauthorized, "otp_invalid"},
	{auth.ErrOTPExpired, http.StatusUnauthorized, "otp_expired"},
	{auth.ErrOTPAttempts, http.StatusTooManyRequests, "otp_attempts_exceeded"},
	{utils.ErrInvalidPhone, http.StatusUnprocessableEntity, "invalid_phone"},
	{utils.ErrWeakPassword, http.StatusUnprocessableEntity, "weak_password"},
}

// fail writes the error body used by every endpoint.
func fail(c echo.Context, status int, code, msg string) error {
	return c.JSON(status, echo.Map{"error": code, "message": msg})
}

// respondErr maps err to an HTTP response.  Unknown errors are logged and
// reported as 500 without details.
func respondErr(c echo.Context, err error) error {
	if ce := booking.IsCapacityExceeded(err); ce != nil {
		return c.JSON(http.StatusConflict, echo.Map{
			"error":     "capacity_exceeded",
			"message":   ce.Error(),
			"requested": ce.Requested,
			"remaining": ce.Remaining,
		})
	}
	if hc := booking.IsHolidayClosed(err); hc != nil {
		return c.JSON(http.StatusConflict, echo.Map{"error": "holiday_closed", "message": hc.Error(), "reason": hc.Reason})
	}
	if it := booking.IsInvalidTransition(err); it != nil {
		return c.JSON(http.StatusConflict, echo.Map{
			"error":   "invalid_state_transition",
			"message": it.Error(),
			"from":    it.From,
			"to":      it.To,
		})
	}
	if ie := booking.IsInputError(err); ie != nil {
		return c.JSON(http.StatusUnprocessableEntity, echo.Map{"error": "invalid_input", "message": "invalid input", "fields": ie.Fields()})
	}
	var fe *fieldsError
	if errors.As(err, &fe) {
		return c.JSON(http.StatusUnprocessableEntity, echo.Map{"error": "invalid_input", "message": "invalid input", "fields": fe.fields})
	}
	for _, k := range knownErrors {
		if errors.Is(err, k.err) {
			return fail(c, k.status, k.code, k.err.Error())
		}
	}

	c.Logger().Errorf("%s %s: %v", c.Request().Method, c.Path(), err)
	return fail(c, http.StatusInternalServerError, "internal", "internal server error")
}

// bind decodes and validates the request body into req.
func bind(c echo.Context, req interface{}) error {
	if err := c.Bind(req); err != nil {
		return errInvalidBody
	}
	if err := c.Validate(req); err != nil {
		var verrs validator.ValidationErrors
		if !errors.As(err, &verrs) {
			return err
		}
		fe := &fieldsError{fields: make(map[string][]string)}
		for _, v := range verrs {
			fe.fields[v.Field()] = append(fe.fields[v.Field()], validationMessage(v))
		}
		return fe
	}
	return nil
}

func validationMessage(v validator.FieldError) string {
	switch v.Tag() {
	case "required":
		return "is required"
	case "email":
		return "must be a valid email"
	case "oneof":
		return "must be one of: " + v.Param()
	case "datetime":
		return "must match " + v.Param()
	case "min", "gte":
		return "must be at least " + v.Param()
	case "max", "lte":
		return "must be at most " + v.Param()
	}
	return "failed " + v.Tag()
}

// pathID parses the :id route parameter.
func pathID(c echo.Context) (uint64, error) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil || id == 0 {
		return 0, newFieldsError("id", "must be a positive integer")
	}
	return id, nil
}

// paging reads limit and offset query parameters.
func paging(c echo.Context, defLimit int) (limit, offset int) {
	limit, _ = strconv.Atoi(c.QueryParam("limit"))
	offset, _ = strconv.Atoi(c.QueryParam("offset"))
	if limit <= 0 || limit > 200 {
		limit = defLimit
	}
	if offset < 0 {
		offset = 0
	}
	return limit, offset
}
