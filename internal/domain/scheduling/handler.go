package scheduling

import (
	"context"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/hms/hms/internal/platform/auth"
	"github.com/hms/hms/internal/platform/fhir"
	"github.com/hms/hms/internal/platform/hmserr"
	"github.com/hms/hms/pkg/pagination"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(api *echo.Group, fhirGroup *echo.Group) {
	staff := api.Group("", auth.RequireRole(auth.RoleDoctor, auth.RoleNurse, auth.RoleReceptionist))
	staff.GET("/appointments", h.ListAppointments)
	staff.GET("/appointments/:id", h.GetAppointment)
	staff.POST("/appointments", h.BookAppointment)
	staff.PUT("/appointments/:id", h.Reschedule)
	staff.POST("/appointments/:id/start", h.Start)
	staff.POST("/appointments/:id/complete", h.Complete)
	staff.POST("/appointments/:id/cancel", h.Cancel)
	staff.POST("/appointments/:id/no-show", h.NoShow)
	staff.GET("/doctors/:id/availability", h.CheckAvailability)
	staff.GET("/doctors/:id/suggested-slots", h.SuggestSlots)

	admin := api.Group("", auth.RequireRole(auth.RoleDoctor, auth.RoleReceptionist))
	admin.POST("/doctor-schedules", h.CreateSchedule)
	admin.GET("/doctor-schedules", h.ListSchedules)
	admin.GET("/doctor-schedules/:id", h.GetSchedule)
	admin.PUT("/doctor-schedules/:id", h.UpdateSchedule)
	admin.DELETE("/doctor-schedules/:id", h.DeleteSchedule)
	admin.POST("/blocked-times", h.CreateBlockedTime)
	admin.GET("/blocked-times", h.ListBlockedTimes)
	admin.DELETE("/blocked-times/:id", h.DeleteBlockedTime)

	fhirRead := fhirGroup.Group("", auth.RequireRole(auth.RoleDoctor, auth.RoleNurse, auth.RoleReceptionist))
	fhirRead.GET("/Appointment", h.SearchAppointmentsFHIR)
	fhirRead.GET("/Appointment/:id", h.GetAppointmentFHIR)
	fhirRead.GET("/Schedule", h.SearchSchedulesFHIR)
}

// -- Availability --

func (h *Handler) CheckAvailability(c echo.Context) error {
	doctorID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return hmserr.Validation("invalid doctor id")
	}
	start, err := time.Parse(time.RFC3339, c.QueryParam("start"))
	if err != nil {
		return hmserr.Validation("start must be RFC3339")
	}
	end, err := time.Parse(time.RFC3339, c.QueryParam("end"))
	if err != nil {
		return hmserr.Validation("end must be RFC3339")
	}
	var excludeID *uuid.UUID
	if raw := c.QueryParam("exclude_appointment_id"); raw != "" {
		id, err := uuid.Parse(raw)
		if err != nil {
			return hmserr.Validation("invalid exclude_appointment_id")
		}
		excludeID = &id
	}

	result, err := h.svc.CheckDoctorAvailability(c.Request().Context(), doctorID, start, end, excludeID)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, result)
}

func (h *Handler) SuggestSlots(c echo.Context) error {
	doctorID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return hmserr.Validation("invalid doctor id")
	}
	date, err := time.Parse(time.RFC3339, c.QueryParam("date"))
	if err != nil {
		// Accept a bare date as midnight UTC.
		date, err = time.Parse("2006-01-02", c.QueryParam("date"))
		if err != nil {
			return hmserr.Validation("date must be RFC3339 or YYYY-MM-DD")
		}
	}

	slots, err := h.svc.SuggestSlots(c.Request().Context(), doctorID, date)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, map[string]interface{}{"suggested_slots": slots})
}

// -- Appointments --

func (h *Handler) BookAppointment(c echo.Context) error {
	var a Appointment
	if err := c.Bind(&a); err != nil {
		return hmserr.Validation("invalid request body: %v", err)
	}
	if err := h.svc.BookAppointment(c.Request().Context(), &a); err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, a)
}

func (h *Handler) GetAppointment(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return hmserr.Validation("invalid id")
	}
	a, err := h.svc.GetAppointment(c.Request().Context(), id)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, a)
}

func (h *Handler) ListAppointments(c echo.Context) error {
	pg := pagination.FromContext(c)
	params, err := searchParamsFromQuery(c)
	if err != nil {
		return err
	}
	items, total, err := h.svc.SearchAppointments(c.Request().Context(), params, pg.Limit, pg.Offset)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(items, total, pg.Limit, pg.Offset))
}

func searchParamsFromQuery(c echo.Context) (SearchParams, error) {
	var params SearchParams
	if raw := c.QueryParam("doctor_id"); raw != "" {
		id, err := uuid.Parse(raw)
		if err != nil {
			return params, hmserr.Validation("invalid doctor_id")
		}
		params.DoctorID = &id
	}
	if raw := c.QueryParam("patient_id"); raw != "" {
		id, err := uuid.Parse(raw)
		if err != nil {
			return params, hmserr.Validation("invalid patient_id")
		}
		params.PatientID = &id
	}
	params.Status = c.QueryParam("status")
	if raw := c.QueryParam("from"); raw != "" {
		t, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			return params, hmserr.Validation("from must be RFC3339")
		}
		params.From = &t
	}
	if raw := c.QueryParam("to"); raw != "" {
		t, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			return params, hmserr.Validation("to must be RFC3339")
		}
		params.To = &t
	}
	return params, nil
}

type rescheduleRequest struct {
	StartTime       time.Time `json:"start_time"`
	DurationMinutes int       `json:"duration_minutes"`
}

func (h *Handler) Reschedule(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return hmserr.Validation("invalid id")
	}
	var req rescheduleRequest
	if err := c.Bind(&req); err != nil {
		return hmserr.Validation("invalid request body: %v", err)
	}
	a, err := h.svc.RescheduleAppointment(c.Request().Context(), id, req.StartTime, req.DurationMinutes)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, a)
}

func (h *Handler) Start(c echo.Context) error {
	return h.statusChange(c, h.svc.StartAppointment)
}

func (h *Handler) Complete(c echo.Context) error {
	return h.statusChange(c, h.svc.CompleteAppointment)
}

func (h *Handler) NoShow(c echo.Context) error {
	return h.statusChange(c, h.svc.MarkNoShow)
}

func (h *Handler) Cancel(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return hmserr.Validation("invalid id")
	}
	var req struct {
		Reason string `json:"reason"`
	}
	if err := c.Bind(&req); err != nil {
		return hmserr.Validation("invalid request body: %v", err)
	}
	if err := h.svc.CancelAppointment(c.Request().Context(), id, req.Reason); err != nil {
		return err
	}
	return h.respondWithAppointment(c, id)
}

func (h *Handler) statusChange(c echo.Context, fn func(ctx context.Context, id uuid.UUID) error) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return hmserr.Validation("invalid id")
	}
	if err := fn(c.Request().Context(), id); err != nil {
		return err
	}
	return h.respondWithAppointment(c, id)
}

func (h *Handler) respondWithAppointment(c echo.Context, id uuid.UUID) error {
	a, err := h.svc.GetAppointment(c.Request().Context(), id)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, a)
}

// -- DoctorSchedule --

func (h *Handler) CreateSchedule(c echo.Context) error {
	var s DoctorSchedule
	if err := c.Bind(&s); err != nil {
		return hmserr.Validation("invalid request body: %v", err)
	}
	if err := h.svc.CreateSchedule(c.Request().Context(), &s); err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, s)
}

func (h *Handler) GetSchedule(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return hmserr.Validation("invalid id")
	}
	s, err := h.svc.GetSchedule(c.Request().Context(), id)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, s)
}

func (h *Handler) ListSchedules(c echo.Context) error {
	doctorID, err := uuid.Parse(c.QueryParam("doctor_id"))
	if err != nil {
		return hmserr.Validation("doctor_id query parameter is required")
	}
	items, err := h.svc.ListSchedules(c.Request().Context(), doctorID)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, items)
}

func (h *Handler) UpdateSchedule(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return hmserr.Validation("invalid id")
	}
	var s DoctorSchedule
	if err := c.Bind(&s); err != nil {
		return hmserr.Validation("invalid request body: %v", err)
	}
	s.ID = id
	if err := h.svc.UpdateSchedule(c.Request().Context(), &s); err != nil {
		return err
	}
	return c.JSON(http.StatusOK, s)
}

func (h *Handler) DeleteSchedule(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return hmserr.Validation("invalid id")
	}
	if err := h.svc.DeleteSchedule(c.Request().Context(), id); err != nil {
		return err
	}
	return c.NoContent(http.StatusNoContent)
}

// -- BlockedTime --

func (h *Handler) CreateBlockedTime(c echo.Context) error {
	var b BlockedTime
	if err := c.Bind(&b); err != nil {
		return hmserr.Validation("invalid request body: %v", err)
	}
	if err := h.svc.CreateBlockedTime(c.Request().Context(), &b); err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, b)
}

func (h *Handler) ListBlockedTimes(c echo.Context) error {
	doctorID, err := uuid.Parse(c.QueryParam("doctor_id"))
	if err != nil {
		return hmserr.Validation("doctor_id query parameter is required")
	}
	pg := pagination.FromContext(c)
	items, total, err := h.svc.ListBlockedTimes(c.Request().Context(), doctorID, pg.Limit, pg.Offset)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(items, total, pg.Limit, pg.Offset))
}

func (h *Handler) DeleteBlockedTime(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return hmserr.Validation("invalid id")
	}
	if err := h.svc.DeleteBlockedTime(c.Request().Context(), id); err != nil {
		return err
	}
	return c.NoContent(http.StatusNoContent)
}

// -- FHIR --

func (h *Handler) GetAppointmentFHIR(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return c.JSON(http.StatusNotFound, fhir.NotFoundOutcome("Appointment", c.Param("id")))
	}
	a, err := h.svc.GetAppointment(c.Request().Context(), id)
	if err != nil {
		if hmserr.IsKind(err, hmserr.KindNotFound) {
			return c.JSON(http.StatusNotFound, fhir.NotFoundOutcome("Appointment", c.Param("id")))
		}
		return err
	}
	return c.JSON(http.StatusOK, a.ToFHIR())
}

func (h *Handler) SearchAppointmentsFHIR(c echo.Context) error {
	pg := pagination.FromContext(c)
	var params SearchParams
	if raw := c.QueryParam("practitioner"); raw != "" {
		id, err := uuid.Parse(raw)
		if err != nil {
			return c.JSON(http.StatusBadRequest, fhir.ErrorOutcome("invalid practitioner reference"))
		}
		params.DoctorID = &id
	}
	if raw := c.QueryParam("patient"); raw != "" {
		id, err := uuid.Parse(raw)
		if err != nil {
			return c.JSON(http.StatusBadRequest, fhir.ErrorOutcome("invalid patient reference"))
		}
		params.PatientID = &id
	}

	items, total, err := h.svc.SearchAppointments(c.Request().Context(), params, pg.Limit, pg.Offset)
	if err != nil {
		return err
	}
	resources := make([]map[string]interface{}, len(items))
	for i, a := range items {
		resources[i] = a.ToFHIR()
	}
	baseURL := c.Scheme() + "://" + c.Request().Host + "/fhir"
	return c.JSON(http.StatusOK, fhir.NewSearchBundle(resources, total, baseURL))
}

func (h *Handler) SearchSchedulesFHIR(c echo.Context) error {
	doctorID, err := uuid.Parse(c.QueryParam("actor"))
	if err != nil {
		return c.JSON(http.StatusBadRequest, fhir.ErrorOutcome("actor query parameter is required"))
	}
	items, err := h.svc.ListSchedules(c.Request().Context(), doctorID)
	if err != nil {
		return err
	}
	resources := make([]map[string]interface{}, len(items))
	for i, s := range items {
		resources[i] = s.ToFHIR()
	}
	baseURL := c.Scheme() + "://" + c.Request().Host + "/fhir"
	return c.JSON(http.StatusOK, fhir.NewSearchBundle(resources, len(items), baseURL))
}
