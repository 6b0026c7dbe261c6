package insurance

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
	ins := api.Group("/insurance", auth.RequirePermission("insurance.manage"))
	ins.POST("/providers", h.CreateProvider)
	ins.GET("/providers", h.ListProviders)
	ins.GET("/providers/:id", h.GetProvider)
	ins.PUT("/providers/:id", h.UpdateProvider)

	ins.POST("/policies", h.CreatePolicy)
	ins.GET("/policies", h.ListPolicies)
	ins.GET("/policies/:id", h.GetPolicy)
	ins.POST("/policies/:id/cancel", h.CancelPolicy)

	ins.POST("/claims", h.SubmitClaim)
	ins.GET("/claims", h.ListClaims)
	ins.GET("/claims/:id", h.GetClaim)
	ins.POST("/claims/:id/review", h.ReviewClaim)
	ins.POST("/claims/:id/approve", h.ApproveClaim)
	ins.POST("/claims/:id/reject", h.RejectClaim)
	ins.POST("/claims/:id/settle", h.SettleClaim)

	fhirRead := fhirGroup.Group("", auth.RequirePermission("insurance.read"))
	fhirRead.GET("/Coverage", h.SearchCoverageFHIR)
	fhirRead.GET("/Coverage/:id", h.GetCoverageFHIR)
	fhirRead.GET("/Claim", h.SearchClaimsFHIR)
	fhirRead.GET("/Claim/:id", h.GetClaimFHIR)
}

// -- Providers --

func (h *Handler) CreateProvider(c echo.Context) error {
	var p Provider
	if err := c.Bind(&p); err != nil {
		return hmserr.Validation("invalid request body")
	}
	if err := h.svc.CreateProvider(c.Request().Context(), &p); err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, &p)
}

func (h *Handler) GetProvider(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return hmserr.Validation("invalid provider id")
	}
	p, err := h.svc.GetProvider(c.Request().Context(), id)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, p)
}

func (h *Handler) ListProviders(c echo.Context) error {
	page := pagination.FromContext(c)
	providers, total, err := h.svc.ListProviders(c.Request().Context(), page.Limit, page.Offset)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(providers, total, page.Limit, page.Offset))
}

func (h *Handler) UpdateProvider(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return hmserr.Validation("invalid provider id")
	}
	var p Provider
	if err := c.Bind(&p); err != nil {
		return hmserr.Validation("invalid request body")
	}
	p.ID = id
	if err := h.svc.UpdateProvider(c.Request().Context(), &p); err != nil {
		return err
	}
	return c.JSON(http.StatusOK, &p)
}

// -- Policies --

func (h *Handler) CreatePolicy(c echo.Context) error {
	var p Policy
	if err := c.Bind(&p); err != nil {
		return hmserr.Validation("invalid request body")
	}
	if err := h.svc.CreatePolicy(c.Request().Context(), &p); err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, &p)
}

func (h *Handler) GetPolicy(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return hmserr.Validation("invalid policy id")
	}
	p, err := h.svc.GetPolicy(c.Request().Context(), id)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, p)
}

func policyParamsFromQuery(c echo.Context) (PolicySearchParams, error) {
	var params PolicySearchParams
	if raw := c.QueryParam("patient_id"); raw != "" {
		id, err := uuid.Parse(raw)
		if err != nil {
			return params, hmserr.Validation("invalid patient_id")
		}
		params.PatientID = &id
	}
	if raw := c.QueryParam("provider_id"); raw != "" {
		id, err := uuid.Parse(raw)
		if err != nil {
			return params, hmserr.Validation("invalid provider_id")
		}
		params.ProviderID = &id
	}
	params.Status = c.QueryParam("status")
	return params, nil
}

func (h *Handler) ListPolicies(c echo.Context) error {
	params, err := policyParamsFromQuery(c)
	if err != nil {
		return err
	}
	page := pagination.FromContext(c)
	policies, total, err := h.svc.SearchPolicies(c.Request().Context(), params, page.Limit, page.Offset)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(policies, total, page.Limit, page.Offset))
}

func (h *Handler) CancelPolicy(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return hmserr.Validation("invalid policy id")
	}
	if err := h.svc.CancelPolicy(c.Request().Context(), id); err != nil {
		return err
	}
	return c.JSON(http.StatusOK, map[string]string{"status": PolicyCancelled})
}

// -- Claims --

type submitClaimRequest struct {
	PolicyID  uuid.UUID `json:"policy_id"`
	InvoiceID uuid.UUID `json:"invoice_id"`
	Amount    float64   `json:"amount"`
	Notes     *string   `json:"notes"`
}

func (h *Handler) SubmitClaim(c echo.Context) error {
	var req submitClaimRequest
	if err := c.Bind(&req); err != nil {
		return hmserr.Validation("invalid request body")
	}
	if req.PolicyID == uuid.Nil {
		return hmserr.Validation("policy_id is required")
	}
	if req.InvoiceID == uuid.Nil {
		return hmserr.Validation("invoice_id is required")
	}
	claim, err := h.svc.SubmitClaim(c.Request().Context(), req.PolicyID, req.InvoiceID, req.Amount, req.Notes)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, claim)
}

func (h *Handler) GetClaim(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return hmserr.Validation("invalid claim id")
	}
	claim, err := h.svc.GetClaim(c.Request().Context(), id)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, claim)
}

func claimParamsFromQuery(c echo.Context) (ClaimSearchParams, error) {
	var params ClaimSearchParams
	if raw := c.QueryParam("policy_id"); raw != "" {
		id, err := uuid.Parse(raw)
		if err != nil {
			return params, hmserr.Validation("invalid policy_id")
		}
		params.PolicyID = &id
	}
	if raw := c.QueryParam("invoice_id"); raw != "" {
		id, err := uuid.Parse(raw)
		if err != nil {
			return params, hmserr.Validation("invalid invoice_id")
		}
		params.InvoiceID = &id
	}
	params.Status = c.QueryParam("status")
	return params, nil
}

func (h *Handler) ListClaims(c echo.Context) error {
	params, err := claimParamsFromQuery(c)
	if err != nil {
		return err
	}
	page := pagination.FromContext(c)
	claims, total, err := h.svc.SearchClaims(c.Request().Context(), params, page.Limit, page.Offset)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(claims, total, page.Limit, page.Offset))
}

func (h *Handler) ReviewClaim(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return hmserr.Validation("invalid claim id")
	}
	claim, err := h.svc.ReviewClaim(c.Request().Context(), id)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, claim)
}

type approveClaimRequest struct {
	AmountApproved float64 `json:"amount_approved"`
}

func (h *Handler) ApproveClaim(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return hmserr.Validation("invalid claim id")
	}
	var req approveClaimRequest
	if err := c.Bind(&req); err != nil {
		return hmserr.Validation("invalid request body")
	}
	claim, err := h.svc.ApproveClaim(c.Request().Context(), id, req.AmountApproved)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, claim)
}

type rejectClaimRequest struct {
	Reason string `json:"reason"`
}

func (h *Handler) RejectClaim(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return hmserr.Validation("invalid claim id")
	}
	var req rejectClaimRequest
	if err := c.Bind(&req); err != nil {
		return hmserr.Validation("invalid request body")
	}
	claim, err := h.svc.RejectClaim(c.Request().Context(), id, req.Reason)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, claim)
}

func (h *Handler) SettleClaim(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return hmserr.Validation("invalid claim id")
	}
	claim, err := h.svc.SettleClaim(c.Request().Context(), id)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, claim)
}

// -- FHIR --

func (h *Handler) GetCoverageFHIR(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return c.JSON(http.StatusBadRequest, fhir.ErrorOutcome("invalid policy id"))
	}
	p, err := h.svc.GetPolicy(c.Request().Context(), id)
	if err != nil {
		if hmserr.IsKind(err, hmserr.KindNotFound) {
			return c.JSON(http.StatusNotFound, fhir.NotFoundOutcome("Coverage", c.Param("id")))
		}
		return err
	}
	return c.JSON(http.StatusOK, p.ToFHIR())
}

func (h *Handler) SearchCoverageFHIR(c echo.Context) error {
	var params PolicySearchParams
	if raw := c.QueryParam("beneficiary"); raw != "" {
		id, err := uuid.Parse(raw)
		if err != nil {
			return c.JSON(http.StatusBadRequest, fhir.ErrorOutcome("invalid beneficiary reference"))
		}
		params.PatientID = &id
	}
	page := pagination.FromContext(c)
	policies, total, err := h.svc.SearchPolicies(c.Request().Context(), params, page.Limit, page.Offset)
	if err != nil {
		return err
	}
	resources := make([]map[string]interface{}, 0, len(policies))
	for _, p := range policies {
		resources = append(resources, p.ToFHIR())
	}
	baseURL := c.Scheme() + "://" + c.Request().Host + "/fhir"
	return c.JSON(http.StatusOK, fhir.NewSearchBundle(resources, total, baseURL))
}

func (h *Handler) GetClaimFHIR(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return c.JSON(http.StatusBadRequest, fhir.ErrorOutcome("invalid claim id"))
	}
	claim, err := h.svc.GetClaim(c.Request().Context(), id)
	if err != nil {
		if hmserr.IsKind(err, hmserr.KindNotFound) {
			return c.JSON(http.StatusNotFound, fhir.NotFoundOutcome("Claim", c.Param("id")))
		}
		return err
	}
	return c.JSON(http.StatusOK, claim.ToFHIR())
}

func (h *Handler) SearchClaimsFHIR(c echo.Context) error {
	params, err := claimParamsFromQuery(c)
	if err != nil {
		return err
	}
	page := pagination.FromContext(c)
	claims, total, err := h.svc.SearchClaims(c.Request().Context(), params, page.Limit, page.Offset)
	if err != nil {
		return err
	}
	resources := make([]map[string]interface{}, 0, len(claims))
	for _, claim := range claims {
		resources = append(resources, claim.ToFHIR())
	}
	baseURL := c.Scheme() + "://" + c.Request().Host + "/fhir"
	return c.JSON(http.StatusOK, fhir.NewSearchBundle(resources, total, baseURL))
}
