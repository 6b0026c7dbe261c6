package ot

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/hms/hms/internal/platform/auth"
	"github.com/hms/hms/internal/platform/hmserr"
	"github.com/hms/hms/pkg/pagination"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	ot := api.Group("/ot", auth.RequireRole(auth.RoleDoctor, auth.RoleNurse))

	admin := ot.Group("", auth.RequireRole(auth.RoleDoctor))
	admin.POST("/theatres", h.CreateTheatre)
	admin.PUT("/theatres/:id", h.UpdateTheatre)
	admin.DELETE("/theatres/:id", h.DeleteTheatre)
	admin.POST("/theatres/:id/ready", h.MarkTheatreReady)
	admin.POST("/surgery-types", h.CreateSurgeryType)
	admin.PUT("/surgery-types/:id", h.UpdateSurgeryType)

	ot.GET("/theatres", h.ListTheatres)
	ot.GET("/theatres/:id", h.GetTheatre)
	ot.GET("/theatres/:id/suggested-slots", h.SuggestSlots)
	ot.GET("/surgery-types", h.ListSurgeryTypes)
	ot.GET("/surgery-types/:id", h.GetSurgeryType)

	ot.POST("/bookings", h.Book)
	ot.GET("/bookings", h.ListBookings)
	ot.GET("/bookings/:id", h.GetBooking)
	ot.POST("/bookings/:id/start", h.StartSurgery)
	ot.POST("/bookings/:id/complete", h.CompleteSurgery)
	ot.POST("/bookings/:id/cancel", h.CancelBooking)
}

// -- Theatres --

func (h *Handler) CreateTheatre(c echo.Context) error {
	var t OperationTheatre
	if err := c.Bind(&t); err != nil {
		return hmserr.Validation("invalid request body")
	}
	if err := h.svc.CreateTheatre(c.Request().Context(), &t); err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, &t)
}

func (h *Handler) GetTheatre(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return hmserr.Validation("invalid theatre id")
	}
	t, err := h.svc.GetTheatre(c.Request().Context(), id)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, t)
}

func (h *Handler) ListTheatres(c echo.Context) error {
	theatres, err := h.svc.ListTheatres(c.Request().Context())
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, map[string]interface{}{"data": theatres})
}

func (h *Handler) UpdateTheatre(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return hmserr.Validation("invalid theatre id")
	}
	var t OperationTheatre
	if err := c.Bind(&t); err != nil {
		return hmserr.Validation("invalid request body")
	}
	t.ID = id
	if err := h.svc.UpdateTheatre(c.Request().Context(), &t); err != nil {
		return err
	}
	return c.JSON(http.StatusOK, &t)
}

func (h *Handler) DeleteTheatre(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return hmserr.Validation("invalid theatre id")
	}
	if err := h.svc.DeleteTheatre(c.Request().Context(), id); err != nil {
		return err
	}
	return c.NoContent(http.StatusNoContent)
}

func (h *Handler) MarkTheatreReady(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return hmserr.Validation("invalid theatre id")
	}
	if err := h.svc.MarkTheatreReady(c.Request().Context(), id); err != nil {
		return err
	}
	return c.JSON(http.StatusOK, map[string]string{"status": TheatreAvailable})
}

// -- Surgery types --

func (h *Handler) CreateSurgeryType(c echo.Context) error {
	var st SurgeryType
	if err := c.Bind(&st); err != nil {
		return hmserr.Validation("invalid request body")
	}
	if err := h.svc.CreateSurgeryType(c.Request().Context(), &st); err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, &st)
}

func (h *Handler) GetSurgeryType(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return hmserr.Validation("invalid surgery type id")
	}
	st, err := h.svc.GetSurgeryType(c.Request().Context(), id)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, st)
}

func (h *Handler) ListSurgeryTypes(c echo.Context) error {
	types, err := h.svc.ListSurgeryTypes(c.Request().Context())
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, map[string]interface{}{"data": types})
}

func (h *Handler) UpdateSurgeryType(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return hmserr.Validation("invalid surgery type id")
	}
	var st SurgeryType
	if err := c.Bind(&st); err != nil {
		return hmserr.Validation("invalid request body")
	}
	st.ID = id
	if err := h.svc.UpdateSurgeryType(c.Request().Context(), &st); err != nil {
		return err
	}
	return c.JSON(http.StatusOK, &st)
}

// -- Bookings --

func (h *Handler) Book(c echo.Context) error {
	var b Booking
	if err := c.Bind(&b); err != nil {
		return hmserr.Validation("invalid request body")
	}
	alternatives, err := h.svc.Book(c.Request().Context(), &b)
	if err != nil {
		var hmsErr *hmserr.Error
		if errors.As(err, &hmsErr) && hmsErr.Kind == hmserr.KindConflict {
			return c.JSON(http.StatusConflict, map[string]interface{}{
				"error":           hmsErr.Message,
				"details":         hmsErr.Details,
				"suggested_slots": alternatives,
			})
		}
		return err
	}
	return c.JSON(http.StatusCreated, &b)
}

func (h *Handler) GetBooking(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return hmserr.Validation("invalid booking id")
	}
	b, err := h.svc.GetBooking(c.Request().Context(), id)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, b)
}

func bookingParamsFromQuery(c echo.Context) (BookingSearchParams, error) {
	var params BookingSearchParams
	for raw, dest := range map[string]**uuid.UUID{
		"theatre_id": &params.TheatreID,
		"surgeon_id": &params.SurgeonID,
		"patient_id": &params.PatientID,
	} {
		if v := c.QueryParam(raw); v != "" {
			id, err := uuid.Parse(v)
			if err != nil {
				return params, hmserr.Validation("invalid %s", raw)
			}
			*dest = &id
		}
	}
	params.Status = c.QueryParam("status")
	return params, nil
}

func (h *Handler) ListBookings(c echo.Context) error {
	params, err := bookingParamsFromQuery(c)
	if err != nil {
		return err
	}
	page := pagination.FromContext(c)
	bookings, total, err := h.svc.SearchBookings(c.Request().Context(), params, page.Limit, page.Offset)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(bookings, total, page.Limit, page.Offset))
}

func (h *Handler) SuggestSlots(c echo.Context) error {
	theatreID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return hmserr.Validation("invalid theatre id")
	}
	surgeonID, err := uuid.Parse(c.QueryParam("surgeon_id"))
	if err != nil {
		return hmserr.Validation("surgeon_id is required")
	}
	from := time.Now().UTC()
	if raw := c.QueryParam("from"); raw != "" {
		from, err = time.Parse(time.RFC3339, raw)
		if err != nil {
			return hmserr.Validation("from must be RFC3339")
		}
	}
	duration := 0
	if raw := c.QueryParam("duration_minutes"); raw != "" {
		duration, err = strconv.Atoi(raw)
		if err != nil {
			return hmserr.Validation("invalid duration_minutes")
		}
	}
	slots, err := h.svc.SuggestSlots(c.Request().Context(), theatreID, surgeonID, from, duration)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, map[string]interface{}{"suggested_slots": slots})
}

func (h *Handler) StartSurgery(c echo.Context) error {
	return h.statusChange(c, h.svc.StartSurgery)
}

func (h *Handler) CompleteSurgery(c echo.Context) error {
	return h.statusChange(c, h.svc.CompleteSurgery)
}

func (h *Handler) CancelBooking(c echo.Context) error {
	return h.statusChange(c, h.svc.CancelBooking)
}

func (h *Handler) statusChange(c echo.Context, fn func(ctx context.Context, id uuid.UUID) error) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return hmserr.Validation("invalid booking id")
	}
	if err := fn(c.Request().Context(), id); err != nil {
		return err
	}
	b, err := h.svc.GetBooking(c.Request().Context(), id)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, b)
}
