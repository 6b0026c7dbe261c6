package ipd

import (
	"net/http"

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
	ipd := api.Group("/ipd", auth.RequireRole(auth.RoleDoctor, auth.RoleNurse))

	admin := ipd.Group("", auth.RequireRole(auth.RoleDoctor))
	admin.POST("/wards", h.CreateWard)
	admin.PUT("/wards/:id", h.UpdateWard)
	admin.POST("/beds", h.CreateBed)
	admin.POST("/beds/:id/maintenance", h.SetBedMaintenance)

	ipd.GET("/wards", h.ListWards)
	ipd.GET("/wards/:id", h.GetWard)
	ipd.GET("/wards/:id/beds", h.ListBeds)

	ipd.POST("/admissions", h.Admit)
	ipd.GET("/admissions", h.ListAdmissions)
	ipd.GET("/admissions/:id", h.GetAdmission)
	ipd.POST("/admissions/:id/discharge", h.Discharge)

	ipd.POST("/admissions/:id/vital-signs", h.RecordVitalSign)
	ipd.GET("/admissions/:id/vital-signs", h.ListVitalSigns)
	ipd.POST("/admissions/:id/nursing-notes", h.RecordNursingNote)
	ipd.GET("/admissions/:id/nursing-notes", h.ListNursingNotes)
	ipd.POST("/admissions/:id/progress-notes", h.RecordProgressNote)
	ipd.GET("/admissions/:id/progress-notes", h.ListProgressNotes)

	fhirRead := fhirGroup.Group("", auth.RequireRole(auth.RoleDoctor, auth.RoleNurse))
	fhirRead.GET("/Encounter", h.SearchEncountersFHIR)
	fhirRead.GET("/Encounter/:id", h.GetEncounterFHIR)
}

// -- Wards and beds --

func (h *Handler) CreateWard(c echo.Context) error {
	var w Ward
	if err := c.Bind(&w); err != nil {
		return hmserr.Validation("invalid request body")
	}
	if err := h.svc.CreateWard(c.Request().Context(), &w); err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, &w)
}

func (h *Handler) GetWard(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return hmserr.Validation("invalid ward id")
	}
	w, err := h.svc.GetWard(c.Request().Context(), id)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, w)
}

func (h *Handler) ListWards(c echo.Context) error {
	page := pagination.FromContext(c)
	wards, total, err := h.svc.ListWards(c.Request().Context(), page.Limit, page.Offset)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(wards, total, page.Limit, page.Offset))
}

func (h *Handler) UpdateWard(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return hmserr.Validation("invalid ward id")
	}
	var w Ward
	if err := c.Bind(&w); err != nil {
		return hmserr.Validation("invalid request body")
	}
	w.ID = id
	if err := h.svc.UpdateWard(c.Request().Context(), &w); err != nil {
		return err
	}
	return c.JSON(http.StatusOK, &w)
}

func (h *Handler) CreateBed(c echo.Context) error {
	var b Bed
	if err := c.Bind(&b); err != nil {
		return hmserr.Validation("invalid request body")
	}
	if err := h.svc.CreateBed(c.Request().Context(), &b); err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, &b)
}

func (h *Handler) ListBeds(c echo.Context) error {
	wardID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return hmserr.Validation("invalid ward id")
	}
	beds, err := h.svc.ListBeds(c.Request().Context(), wardID, c.QueryParam("status"))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, map[string]interface{}{"data": beds})
}

type bedMaintenanceRequest struct {
	UnderMaintenance bool `json:"under_maintenance"`
}

func (h *Handler) SetBedMaintenance(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return hmserr.Validation("invalid bed id")
	}
	var req bedMaintenanceRequest
	if err := c.Bind(&req); err != nil {
		return hmserr.Validation("invalid request body")
	}
	if err := h.svc.SetBedMaintenance(c.Request().Context(), id, req.UnderMaintenance); err != nil {
		return err
	}
	return c.NoContent(http.StatusNoContent)
}

// -- Admissions --

func (h *Handler) Admit(c echo.Context) error {
	var a Admission
	if err := c.Bind(&a); err != nil {
		return hmserr.Validation("invalid request body")
	}
	if err := h.svc.Admit(c.Request().Context(), &a); err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, &a)
}

func (h *Handler) GetAdmission(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return hmserr.Validation("invalid admission id")
	}
	a, err := h.svc.GetAdmission(c.Request().Context(), id)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, a)
}

func admissionParamsFromQuery(c echo.Context) (AdmissionSearchParams, error) {
	var params AdmissionSearchParams
	if raw := c.QueryParam("patient_id"); raw != "" {
		id, err := uuid.Parse(raw)
		if err != nil {
			return params, hmserr.Validation("invalid patient_id")
		}
		params.PatientID = &id
	}
	if raw := c.QueryParam("doctor_id"); raw != "" {
		id, err := uuid.Parse(raw)
		if err != nil {
			return params, hmserr.Validation("invalid doctor_id")
		}
		params.DoctorID = &id
	}
	params.Status = c.QueryParam("status")
	return params, nil
}

func (h *Handler) ListAdmissions(c echo.Context) error {
	params, err := admissionParamsFromQuery(c)
	if err != nil {
		return err
	}
	page := pagination.FromContext(c)
	admissions, total, err := h.svc.SearchAdmissions(c.Request().Context(), params, page.Limit, page.Offset)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(admissions, total, page.Limit, page.Offset))
}

type dischargeRequest struct {
	Notes *string `json:"notes"`
}

func (h *Handler) Discharge(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return hmserr.Validation("invalid admission id")
	}
	var req dischargeRequest
	if err := c.Bind(&req); err != nil {
		return hmserr.Validation("invalid request body")
	}
	a, err := h.svc.Discharge(c.Request().Context(), id, req.Notes)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, a)
}

// -- Bedside records --

func (h *Handler) RecordVitalSign(c echo.Context) error {
	admissionID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return hmserr.Validation("invalid admission id")
	}
	var v VitalSign
	if err := c.Bind(&v); err != nil {
		return hmserr.Validation("invalid request body")
	}
	v.AdmissionID = admissionID
	if v.RecordedBy == uuid.Nil {
		if uid, err := uuid.Parse(auth.UserIDFromContext(c.Request().Context())); err == nil {
			v.RecordedBy = uid
		}
	}
	if err := h.svc.RecordVitalSign(c.Request().Context(), &v); err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, &v)
}

func (h *Handler) ListVitalSigns(c echo.Context) error {
	admissionID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return hmserr.Validation("invalid admission id")
	}
	vitals, err := h.svc.ListVitalSigns(c.Request().Context(), admissionID)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, map[string]interface{}{"data": vitals})
}

func (h *Handler) RecordNursingNote(c echo.Context) error {
	admissionID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return hmserr.Validation("invalid admission id")
	}
	var n NursingNote
	if err := c.Bind(&n); err != nil {
		return hmserr.Validation("invalid request body")
	}
	n.AdmissionID = admissionID
	if n.RecordedBy == uuid.Nil {
		if uid, err := uuid.Parse(auth.UserIDFromContext(c.Request().Context())); err == nil {
			n.RecordedBy = uid
		}
	}
	if err := h.svc.RecordNursingNote(c.Request().Context(), &n); err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, &n)
}

func (h *Handler) ListNursingNotes(c echo.Context) error {
	admissionID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return hmserr.Validation("invalid admission id")
	}
	notes, err := h.svc.ListNursingNotes(c.Request().Context(), admissionID)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, map[string]interface{}{"data": notes})
}

func (h *Handler) RecordProgressNote(c echo.Context) error {
	admissionID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return hmserr.Validation("invalid admission id")
	}
	var n ProgressNote
	if err := c.Bind(&n); err != nil {
		return hmserr.Validation("invalid request body")
	}
	n.AdmissionID = admissionID
	if n.RecordedBy == uuid.Nil {
		if uid, err := uuid.Parse(auth.UserIDFromContext(c.Request().Context())); err == nil {
			n.RecordedBy = uid
		}
	}
	if err := h.svc.RecordProgressNote(c.Request().Context(), &n); err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, &n)
}

func (h *Handler) ListProgressNotes(c echo.Context) error {
	admissionID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return hmserr.Validation("invalid admission id")
	}
	notes, err := h.svc.ListProgressNotes(c.Request().Context(), admissionID)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, map[string]interface{}{"data": notes})
}

// -- FHIR --

func (h *Handler) GetEncounterFHIR(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return c.JSON(http.StatusBadRequest, fhir.ErrorOutcome("invalid admission id"))
	}
	a, err := h.svc.GetAdmission(c.Request().Context(), id)
	if err != nil {
		if hmserr.IsKind(err, hmserr.KindNotFound) {
			return c.JSON(http.StatusNotFound, fhir.NotFoundOutcome("Encounter", c.Param("id")))
		}
		return err
	}
	return c.JSON(http.StatusOK, a.ToFHIR())
}

func (h *Handler) SearchEncountersFHIR(c echo.Context) error {
	var params AdmissionSearchParams
	if raw := c.QueryParam("patient"); raw != "" {
		id, err := uuid.Parse(raw)
		if err != nil {
			return c.JSON(http.StatusBadRequest, fhir.ErrorOutcome("invalid patient reference"))
		}
		params.PatientID = &id
	}
	if raw := c.QueryParam("status"); raw != "" {
		switch raw {
		case "in-progress":
			params.Status = AdmissionActive
		case "finished":
			params.Status = AdmissionDischarged
		}
	}
	page := pagination.FromContext(c)
	admissions, total, err := h.svc.SearchAdmissions(c.Request().Context(), params, page.Limit, page.Offset)
	if err != nil {
		return err
	}
	resources := make([]map[string]interface{}, 0, len(admissions))
	for _, a := range admissions {
		resources = append(resources, a.ToFHIR())
	}
	baseURL := c.Scheme() + "://" + c.Request().Host + "/fhir"
	return c.JSON(http.StatusOK, fhir.NewSearchBundle(resources, total, baseURL))
}
