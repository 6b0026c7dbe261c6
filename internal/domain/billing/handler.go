package billing

import (
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
	billing := api.Group("/billing", auth.RequirePermission("billing.manage"))
	billing.POST("/invoices", h.CreateInvoice)
	billing.GET("/invoices", h.ListInvoices)
	billing.GET("/invoices/:id", h.GetInvoice)
	billing.POST("/invoices/:id/approve", h.ApproveInvoice)
	billing.POST("/invoices/:id/cancel", h.CancelInvoice)
	billing.POST("/invoices/:id/line-items", h.AddLineItem)
	billing.DELETE("/invoices/:id/line-items/:itemId", h.RemoveLineItem)
	billing.GET("/invoices/:id/payments", h.ListPayments)
	billing.POST("/payments", h.ApplyPayment)
	billing.POST("/invoices/mark-overdue", h.MarkOverdue)

	fhirRead := fhirGroup.Group("", auth.RequirePermission("billing.read"))
	fhirRead.GET("/Invoice", h.SearchInvoicesFHIR)
	fhirRead.GET("/Invoice/:id", h.GetInvoiceFHIR)
}

type createInvoiceRequest struct {
	PatientID     uuid.UUID   `json:"patient_id"`
	AdmissionID   *uuid.UUID  `json:"admission_id"`
	AppointmentID *uuid.UUID  `json:"appointment_id"`
	DueDate       *time.Time  `json:"due_date"`
	Notes         *string     `json:"notes"`
	LineItems     []*LineItem `json:"line_items"`
}

func (h *Handler) CreateInvoice(c echo.Context) error {
	var req createInvoiceRequest
	if err := c.Bind(&req); err != nil {
		return hmserr.Validation("invalid request body")
	}
	inv := &Invoice{
		PatientID:     req.PatientID,
		AdmissionID:   req.AdmissionID,
		AppointmentID: req.AppointmentID,
		DueDate:       req.DueDate,
		Notes:         req.Notes,
	}
	if err := h.svc.CreateInvoice(c.Request().Context(), inv, req.LineItems); err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, inv)
}

func (h *Handler) GetInvoice(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return hmserr.Validation("invalid invoice id")
	}
	inv, err := h.svc.GetInvoice(c.Request().Context(), id)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, inv)
}

func searchParamsFromQuery(c echo.Context) (SearchParams, error) {
	var params SearchParams
	if raw := c.QueryParam("patient_id"); raw != "" {
		id, err := uuid.Parse(raw)
		if err != nil {
			return params, hmserr.Validation("invalid patient_id")
		}
		params.PatientID = &id
	}
	params.Status = c.QueryParam("status")
	return params, nil
}

func (h *Handler) ListInvoices(c echo.Context) error {
	params, err := searchParamsFromQuery(c)
	if err != nil {
		return err
	}
	page := pagination.FromContext(c)
	invoices, total, err := h.svc.SearchInvoices(c.Request().Context(), params, page.Limit, page.Offset)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(invoices, total, page.Limit, page.Offset))
}

func (h *Handler) ApproveInvoice(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return hmserr.Validation("invalid invoice id")
	}
	inv, err := h.svc.ApproveInvoice(c.Request().Context(), id)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, inv)
}

func (h *Handler) CancelInvoice(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return hmserr.Validation("invalid invoice id")
	}
	if err := h.svc.CancelInvoice(c.Request().Context(), id); err != nil {
		return err
	}
	return c.JSON(http.StatusOK, map[string]string{"status": StatusCancelled})
}

func (h *Handler) AddLineItem(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return hmserr.Validation("invalid invoice id")
	}
	var li LineItem
	if err := c.Bind(&li); err != nil {
		return hmserr.Validation("invalid request body")
	}
	if err := h.svc.AddLineItem(c.Request().Context(), id, &li); err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, &li)
}

func (h *Handler) RemoveLineItem(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return hmserr.Validation("invalid invoice id")
	}
	itemID, err := uuid.Parse(c.Param("itemId"))
	if err != nil {
		return hmserr.Validation("invalid line item id")
	}
	if err := h.svc.RemoveLineItem(c.Request().Context(), id, itemID); err != nil {
		return err
	}
	return c.NoContent(http.StatusNoContent)
}

type paymentRequest struct {
	InvoiceID uuid.UUID `json:"invoice_id"`
	Amount    float64   `json:"amount"`
	Method    string    `json:"method"`
	Reference *string   `json:"reference"`
}

func (h *Handler) ApplyPayment(c echo.Context) error {
	var req paymentRequest
	if err := c.Bind(&req); err != nil {
		return hmserr.Validation("invalid request body")
	}
	if req.InvoiceID == uuid.Nil {
		return hmserr.Validation("invoice_id is required")
	}
	inv, err := h.svc.ApplyPayment(c.Request().Context(), req.InvoiceID, req.Amount, req.Method, req.Reference)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, inv)
}

func (h *Handler) ListPayments(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return hmserr.Validation("invalid invoice id")
	}
	payments, err := h.svc.ListPayments(c.Request().Context(), id)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, map[string]interface{}{"data": payments})
}

func (h *Handler) MarkOverdue(c echo.Context) error {
	n, err := h.svc.MarkOverdue(c.Request().Context())
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, map[string]int64{"marked_overdue": n})
}

// -- FHIR --

func (h *Handler) GetInvoiceFHIR(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return c.JSON(http.StatusBadRequest, fhir.ErrorOutcome("invalid invoice id"))
	}
	inv, err := h.svc.GetInvoice(c.Request().Context(), id)
	if err != nil {
		if hmserr.IsKind(err, hmserr.KindNotFound) {
			return c.JSON(http.StatusNotFound, fhir.NotFoundOutcome("Invoice", c.Param("id")))
		}
		return err
	}
	return c.JSON(http.StatusOK, inv.ToFHIR())
}

func (h *Handler) SearchInvoicesFHIR(c echo.Context) error {
	var params SearchParams
	if raw := c.QueryParam("patient"); raw != "" {
		id, err := uuid.Parse(raw)
		if err != nil {
			return c.JSON(http.StatusBadRequest, fhir.ErrorOutcome("invalid patient reference"))
		}
		params.PatientID = &id
	}
	page := pagination.FromContext(c)
	invoices, total, err := h.svc.SearchInvoices(c.Request().Context(), params, page.Limit, page.Offset)
	if err != nil {
		return err
	}
	resources := make([]map[string]interface{}, 0, len(invoices))
	for _, inv := range invoices {
		resources = append(resources, inv.ToFHIR())
	}
	baseURL := c.Scheme() + "://" + c.Request().Host + "/fhir"
	return c.JSON(http.StatusOK, fhir.NewSearchBundle(resources, total, baseURL))
}
