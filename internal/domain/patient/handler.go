package patient

import (
	"net/http"
	"strconv"

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
	read := api.Group("", auth.RequireRole(auth.RoleDoctor, auth.RoleNurse, auth.RoleReceptionist, auth.RoleAccountant))
	read.GET("/patients", h.List)
	read.GET("/patients/:id", h.Get)

	write := api.Group("", auth.RequireRole(auth.RoleDoctor, auth.RoleNurse, auth.RoleReceptionist))
	write.POST("/patients", h.Register)
	write.PUT("/patients/:id", h.Update)
	write.DELETE("/patients/:id", h.Remove)

	fhirRead := fhirGroup.Group("", auth.RequireRole(auth.RoleDoctor, auth.RoleNurse, auth.RoleReceptionist))
	fhirRead.GET("/Patient", h.SearchFHIR)
	fhirRead.GET("/Patient/:id", h.GetFHIR)

	fhirWrite := fhirGroup.Group("", auth.RequireRole(auth.RoleDoctor, auth.RoleNurse, auth.RoleReceptionist))
	fhirWrite.POST("/Patient", h.CreateFHIR)
}

func (h *Handler) Register(c echo.Context) error {
	var p Patient
	if err := c.Bind(&p); err != nil {
		return hmserr.Validation("invalid request body: %v", err)
	}
	if err := h.svc.Register(c.Request().Context(), &p); err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, p)
}

func (h *Handler) Get(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return hmserr.Validation("invalid id")
	}
	p, err := h.svc.Get(c.Request().Context(), id)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, p)
}

func (h *Handler) List(c echo.Context) error {
	pg := pagination.FromContext(c)
	params := SearchParams{
		Name: c.QueryParam("name"),
		MRN:  c.QueryParam("mrn"),
	}
	if a := c.QueryParam("active"); a != "" {
		active, err := strconv.ParseBool(a)
		if err != nil {
			return hmserr.Validation("invalid active filter")
		}
		params.Active = &active
	}
	items, total, err := h.svc.Search(c.Request().Context(), params, pg.Limit, pg.Offset)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(items, total, pg.Limit, pg.Offset))
}

func (h *Handler) Update(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return hmserr.Validation("invalid id")
	}
	var p Patient
	if err := c.Bind(&p); err != nil {
		return hmserr.Validation("invalid request body: %v", err)
	}
	p.ID = id
	if err := h.svc.Update(c.Request().Context(), &p); err != nil {
		return err
	}
	return c.JSON(http.StatusOK, p)
}

func (h *Handler) Remove(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return hmserr.Validation("invalid id")
	}
	deactivated, err := h.svc.Remove(c.Request().Context(), id)
	if err != nil {
		return err
	}
	if deactivated {
		return c.JSON(http.StatusOK, map[string]string{"status": "deactivated"})
	}
	return c.NoContent(http.StatusNoContent)
}

// -- FHIR --

func (h *Handler) GetFHIR(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return c.JSON(http.StatusNotFound, fhir.NotFoundOutcome("Patient", c.Param("id")))
	}
	p, err := h.svc.Get(c.Request().Context(), id)
	if err != nil {
		if hmserr.IsKind(err, hmserr.KindNotFound) {
			return c.JSON(http.StatusNotFound, fhir.NotFoundOutcome("Patient", c.Param("id")))
		}
		return err
	}
	return c.JSON(http.StatusOK, p.ToFHIR())
}

func (h *Handler) SearchFHIR(c echo.Context) error {
	pg := pagination.FromContext(c)
	params := SearchParams{
		Name: c.QueryParam("name"),
		MRN:  c.QueryParam("identifier"),
	}
	items, total, err := h.svc.Search(c.Request().Context(), params, pg.Limit, pg.Offset)
	if err != nil {
		return err
	}
	resources := make([]map[string]interface{}, len(items))
	for i, p := range items {
		resources[i] = p.ToFHIR()
	}
	baseURL := c.Scheme() + "://" + c.Request().Host + "/fhir"
	return c.JSON(http.StatusOK, fhir.NewSearchBundle(resources, total, baseURL))
}

func (h *Handler) CreateFHIR(c echo.Context) error {
	var resource fhirPatient
	if err := c.Bind(&resource); err != nil {
		return c.JSON(http.StatusBadRequest, fhir.ErrorOutcome("invalid Patient resource"))
	}
	if resource.ResourceType != "Patient" {
		return c.JSON(http.StatusBadRequest, fhir.ErrorOutcome("resourceType must be Patient"))
	}
	p := resource.toPatient()
	if err := h.svc.Register(c.Request().Context(), p); err != nil {
		if hmserr.IsKind(err, hmserr.KindValidation) {
			return c.JSON(http.StatusBadRequest, fhir.ErrorOutcome(err.Error()))
		}
		return err
	}
	return c.JSON(http.StatusCreated, p.ToFHIR())
}
