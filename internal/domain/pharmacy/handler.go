package pharmacy

import (
	"net/http"

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
	ph := api.Group("/pharmacy", auth.RequireRole(auth.RolePharmacist, auth.RoleDoctor))
	ph.POST("/items", h.CreateItem)
	ph.GET("/items", h.ListItems)
	ph.GET("/items/:id", h.GetItem)
	ph.PUT("/items/:id", h.UpdateItem)
	ph.POST("/items/:id/restock", h.Restock)

	ph.POST("/dispenses", h.Dispense)
	ph.GET("/dispenses/:id", h.GetDispense)
	ph.GET("/patients/:id/dispenses", h.ListPatientDispenses)
}

func (h *Handler) CreateItem(c echo.Context) error {
	var item MedicationItem
	if err := c.Bind(&item); err != nil {
		return hmserr.Validation("invalid request body")
	}
	if err := h.svc.CreateItem(c.Request().Context(), &item); err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, &item)
}

func (h *Handler) GetItem(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return hmserr.Validation("invalid item id")
	}
	item, err := h.svc.GetItem(c.Request().Context(), id)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, item)
}

func (h *Handler) ListItems(c echo.Context) error {
	params := ItemSearchParams{
		Query:        c.QueryParam("q"),
		BelowReorder: c.QueryParam("below_reorder") == "true",
	}
	page := pagination.FromContext(c)
	items, total, err := h.svc.SearchItems(c.Request().Context(), params, page.Limit, page.Offset)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(items, total, page.Limit, page.Offset))
}

func (h *Handler) UpdateItem(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return hmserr.Validation("invalid item id")
	}
	var item MedicationItem
	if err := c.Bind(&item); err != nil {
		return hmserr.Validation("invalid request body")
	}
	item.ID = id
	if err := h.svc.UpdateItem(c.Request().Context(), &item); err != nil {
		return err
	}
	return c.JSON(http.StatusOK, &item)
}

type restockRequest struct {
	Quantity int `json:"quantity"`
}

func (h *Handler) Restock(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return hmserr.Validation("invalid item id")
	}
	var req restockRequest
	if err := c.Bind(&req); err != nil {
		return hmserr.Validation("invalid request body")
	}
	item, err := h.svc.Restock(c.Request().Context(), id, req.Quantity)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, item)
}

func (h *Handler) Dispense(c echo.Context) error {
	var req DispenseRequest
	if err := c.Bind(&req); err != nil {
		return hmserr.Validation("invalid request body")
	}
	if req.DispensedBy == uuid.Nil {
		if uid, err := uuid.Parse(auth.UserIDFromContext(c.Request().Context())); err == nil {
			req.DispensedBy = uid
		}
	}
	rec, err := h.svc.Dispense(c.Request().Context(), req)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, rec)
}

func (h *Handler) GetDispense(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return hmserr.Validation("invalid dispense id")
	}
	rec, err := h.svc.GetDispense(c.Request().Context(), id)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, rec)
}

func (h *Handler) ListPatientDispenses(c echo.Context) error {
	patientID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return hmserr.Validation("invalid patient id")
	}
	page := pagination.FromContext(c)
	records, total, err := h.svc.ListDispensesByPatient(c.Request().Context(), patientID, page.Limit, page.Offset)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(records, total, page.Limit, page.Offset))
}
