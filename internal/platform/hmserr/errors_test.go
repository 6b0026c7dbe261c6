package hmserr

import (
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"
)

func TestKindOf(t *testing.T) {
	if KindOf(Validation("bad input")) != KindValidation {
		t.Error("expected KindValidation")
	}
	if KindOf(NotFound("invoice", "abc")) != KindNotFound {
		t.Error("expected KindNotFound")
	}
	if KindOf(errors.New("plain")) != KindInternal {
		t.Error("expected plain errors to default to KindInternal")
	}
}

func TestKindOfWrapped(t *testing.T) {
	err := fmt.Errorf("applying payment: %w", Conflict("payment exceeds outstanding balance"))
	if !IsKind(err, KindConflict) {
		t.Error("expected wrapped conflict to keep its kind")
	}
}

func TestNotFoundMessage(t *testing.T) {
	err := NotFound("patient", "42")
	if err.Error() != "patient 42 not found" {
		t.Errorf("unexpected message: %s", err.Error())
	}
}

func TestHTTPErrorHandlerStatuses(t *testing.T) {
	tests := []struct {
		err    error
		status int
	}{
		{Validation("missing doctor_id"), http.StatusBadRequest},
		{NotFound("invoice", "x"), http.StatusNotFound},
		{Conflict("slot already booked"), http.StatusConflict},
		{Forbidden("missing permission"), http.StatusForbidden},
		{Internal(errors.New("boom"), "query failed"), http.StatusInternalServerError},
		{echo.NewHTTPError(http.StatusUnauthorized, "no token"), http.StatusUnauthorized},
		{errors.New("unclassified"), http.StatusInternalServerError},
	}

	logger := zerolog.New(os.Stderr).Level(zerolog.Disabled)
	handler := HTTPErrorHandler(logger)
	e := echo.New()

	for _, tt := range tests {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		rec := httptest.NewRecorder()
		c := e.NewContext(req, rec)
		handler(tt.err, c)
		if rec.Code != tt.status {
			t.Errorf("error %v: expected status %d, got %d", tt.err, tt.status, rec.Code)
		}
	}
}

func TestHTTPErrorHandlerHidesInternalDetail(t *testing.T) {
	logger := zerolog.New(os.Stderr).Level(zerolog.Disabled)
	handler := HTTPErrorHandler(logger)
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	handler(Internal(errors.New("pq: connection refused"), "loading invoice"), c)
	if strings.Contains(rec.Body.String(), "connection refused") {
		t.Error("internal error detail leaked to client")
	}
}

func TestConflictWithDetails(t *testing.T) {
	logger := zerolog.New(os.Stderr).Level(zerolog.Disabled)
	handler := HTTPErrorHandler(logger)
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	handler(ConflictWithDetails("slot unavailable", []string{"overlaps appointment at 10:00"}), c)
	if rec.Code != http.StatusConflict {
		t.Fatalf("expected 409, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "overlaps appointment at 10:00") {
		t.Error("expected details in response body")
	}
}
