package support

import (
	"context"
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
	ss := api.Group("/support-services",
		auth.RequireRole(auth.RoleSupportStaff, auth.RoleNurse, auth.RoleReceptionist))
	h.registerArea(ss.Group("/housekeeping"), AreaHousekeeping)
	h.registerArea(ss.Group("/maintenance"), AreaMaintenance)
}

func (h *Handler) registerArea(g *echo.Group, area string) {
	g.POST("", h.create(area))
	g.GET("", h.list(area))
	g.GET("/:id", h.get(area))
	g.POST("/:id/assign", h.assign(area))
	g.POST("/:id/start", h.start(area))
	g.POST("/:id/complete", h.complete(area))
	g.POST("/:id/cancel", h.cancel(area))
}

func (h *Handler) create(area string) echo.HandlerFunc {
	return func(c echo.Context) error {
		var req Request
		if err := c.Bind(&req); err != nil {
			return hmserr.Validation("invalid request body")
		}
		if req.RequestedBy == uuid.Nil {
			if uid, err := uuid.Parse(auth.UserIDFromContext(c.Request().Context())); err == nil {
				req.RequestedBy = uid
			}
		}
		if err := h.svc.CreateRequest(c.Request().Context(), area, &req); err != nil {
			return err
		}
		return c.JSON(http.StatusCreated, &req)
	}
}

func (h *Handler) get(area string) echo.HandlerFunc {
	return func(c echo.Context) error {
		id, err := uuid.Parse(c.Param("id"))
		if err != nil {
			return hmserr.Validation("invalid request id")
		}
		req, err := h.svc.GetRequest(c.Request().Context(), area, id)
		if err != nil {
			return err
		}
		return c.JSON(http.StatusOK, req)
	}
}

func (h *Handler) list(area string) echo.HandlerFunc {
	return func(c echo.Context) error {
		params := SearchParams{
			Status:   c.QueryParam("status"),
			Priority: c.QueryParam("priority"),
		}
		if raw := c.QueryParam("assigned_to"); raw != "" {
			id, err := uuid.Parse(raw)
			if err != nil {
				return hmserr.Validation("invalid assigned_to")
			}
			params.AssignedTo = &id
		}
		page := pagination.FromContext(c)
		requests, total, err := h.svc.SearchRequests(c.Request().Context(), area, params, page.Limit, page.Offset)
		if err != nil {
			return err
		}
		return c.JSON(http.StatusOK, pagination.NewResponse(requests, total, page.Limit, page.Offset))
	}
}

type assignRequest struct {
	AssignedTo uuid.UUID `json:"assigned_to"`
}

func (h *Handler) assign(area string) echo.HandlerFunc {
	return func(c echo.Context) error {
		id, err := uuid.Parse(c.Param("id"))
		if err != nil {
			return hmserr.Validation("invalid request id")
		}
		var body assignRequest
		if err := c.Bind(&body); err != nil {
			return hmserr.Validation("invalid request body")
		}
		req, err := h.svc.Assign(c.Request().Context(), area, id, body.AssignedTo)
		if err != nil {
			return err
		}
		return c.JSON(http.StatusOK, req)
	}
}

func (h *Handler) start(area string) echo.HandlerFunc {
	return h.statusChange(area, h.svc.Start)
}

func (h *Handler) complete(area string) echo.HandlerFunc {
	return h.statusChange(area, h.svc.Complete)
}

func (h *Handler) cancel(area string) echo.HandlerFunc {
	return h.statusChange(area, h.svc.Cancel)
}

func (h *Handler) statusChange(area string, fn func(ctx context.Context, area string, id uuid.UUID) (*Request, error)) echo.HandlerFunc {
	return func(c echo.Context) error {
		id, err := uuid.Parse(c.Param("id"))
		if err != nil {
			return hmserr.Validation("invalid request id")
		}
		req, err := fn(c.Request().Context(), area, id)
		if err != nil {
			return err
		}
		return c.JSON(http.StatusOK, req)
	}
}
