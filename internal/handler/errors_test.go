package handler

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/playhouse-booking/internal/auth"
	"github.com/iliyamo/playhouse-booking/internal/booking"
	"github.com/iliyamo/playhouse-booking/internal/repository"
)

func newContext(method, body string) (echo.Context, *httptest.ResponseRecorder) {
	e := echo.New()
	e.Logger.SetOutput(io.Discard)
	e.Validator = NewValidator()
	req := httptest.NewRequest(method, "/", strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	return e.NewContext(req, rec), rec
}

func TestRespondErr(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		status int
		code   string
	}{
		{"capacity", &booking.CapacityExceededError{Date: "2026-10-20", SlotID: 1, Requested: 2, Remaining: 1}, http.StatusConflict, "capacity_exceeded"},
		{"holiday", &booking.HolidayClosedError{Date: "2026-10-20", Reason: "Diwali"}, http.StatusConflict, "holiday_closed"},
		{"transition", &booking.InvalidStateTransitionError{From: "pending", To: "completed"}, http.StatusConflict, "invalid_state_transition"},
		{"wrapped not found", fmt.Errorf("booking 9: %w", booking.ErrNotFound), http.StatusNotFound, "not_found"},
		{"voucher missing", booking.ErrVoucherNotFound, http.StatusNotFound, "voucher_not_found"},
		{"voucher expired", booking.ErrVoucherExpired, http.StatusUnprocessableEntity, "voucher_expired"},
		{"voucher exhausted", booking.ErrVoucherExhausted, http.StatusUnprocessableEntity, "voucher_exhausted"},
		{"min amount", booking.ErrVoucherMinAmountNotMet, http.StatusUnprocessableEntity, "voucher_min_amount_not_met"},
		{"not applicable", booking.ErrVoucherNotApplicable, http.StatusUnprocessableEntity, "voucher_not_applicable"},
		{"package in use", repository.ErrPackageInUse, http.StatusConflict, "package_in_use"},
		{"otp attempts", auth.ErrOTPAttempts, http.StatusTooManyRequests, "otp_attempts_exceeded"},
		{"fields", newFieldsError("date", "must match 2006-01-02"), http.StatusUnprocessableEntity, "invalid_input"},
		{"unknown", errors.New("db exploded"), http.StatusInternalServerError, "internal"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, rec := newContext(http.MethodGet, "")
			if err := respondErr(c, tt.err); err != nil {
				t.Fatalf("respondErr: %v", err)
			}
			if rec.Code != tt.status {
				t.Fatalf("expected %d, got %d", tt.status, rec.Code)
			}
			var body map[string]interface{}
			if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
				t.Fatalf("decode: %v", err)
			}
			if body["error"] != tt.code {
				t.Fatalf("expected %q, got %v", tt.code, body["error"])
			}
			if tt.status == http.StatusInternalServerError && strings.Contains(rec.Body.String(), "exploded") {
				t.Fatal("internal errors must not leak details")
			}
		})
	}
}

func TestBindReportsFields(t *testing.T) {
	c, _ := newContext(http.MethodPost, `{"package_id": 1, "date": "20/10/2026", "number_of_children": 0}`)
	var req createBookingReq
	err := bind(c, &req)

	var fe *fieldsError
	if !errors.As(err, &fe) {
		t.Fatalf("expected fieldsError, got %v", err)
	}
	for _, field := range []string{"time_slot_id", "date", "number_of_children", "parent_name", "parent_phone"} {
		if len(fe.fields[field]) == 0 {
			t.Errorf("expected an error for %s, got %v", field, fe.fields)
		}
	}
	if len(fe.fields["package_id"]) != 0 {
		t.Errorf("package_id is valid, got %v", fe.fields["package_id"])
	}
}

func TestBindRejectsMalformedJSON(t *testing.T) {
	c, _ := newContext(http.MethodPost, `{"package_id": `)
	var req createBookingReq
	if err := bind(c, &req); !errors.Is(err, errInvalidBody) {
		t.Fatalf("expected errInvalidBody, got %v", err)
	}
}

func TestVoucherReqCheck(t *testing.T) {
	c, _ := newContext(http.MethodPost, `{"code":"SAVE10","discount_type":"percentage","value":"101","min_amount":"-1",
		"max_discount":"0","valid_from":"2026-11-01","valid_till":"2026-10-01","usage_limit":1}`)
	var req voucherReq
	if err := bind(c, &req); err != nil {
		t.Fatalf("bind: %v", err)
	}
	err := req.check()
	var fe *fieldsError
	if !errors.As(err, &fe) {
		t.Fatalf("expected fieldsError, got %v", err)
	}
	for _, field := range []string{"value", "min_amount", "max_discount", "valid_till"} {
		if len(fe.fields[field]) == 0 {
			t.Errorf("expected an error for %s, got %v", field, fe.fields)
		}
	}
}

func TestPaging(t *testing.T) {
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/?limit=500&offset=-3", nil)
	c := e.NewContext(req, httptest.NewRecorder())
	limit, offset := paging(c, 20)
	if limit != 20 || offset != 0 {
		t.Fatalf("expected 20/0, got %d/%d", limit, offset)
	}
}
