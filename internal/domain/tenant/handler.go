package tenant

import (
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/clinicflow/clinicflow/internal/access"
	"github.com/clinicflow/clinicflow/internal/apperr"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	g := api.Group("/tenant", access.RequireActiveTenant())
	g.GET("", h.Get)
	g.PATCH("/settings", h.UpdateSettings)
	g.GET("/members", h.ListMembers)
	g.POST("/members", h.Invite)
	g.PATCH("/members/:id/role", h.UpdateMemberRole)
	g.DELETE("/members/:id", h.RemoveMember)
}

func (h *Handler) Get(c echo.Context) error {
	ctx := c.Request().Context()
	t, err := h.svc.Get(ctx, access.GrantFromContext(ctx))
	if err != nil {
		return echo.NewHTTPError(apperr.Status(err), err.Error())
	}
	return c.JSON(http.StatusOK, t)
}

func (h *Handler) UpdateSettings(c echo.Context) error {
	var patch SettingsPatch
	if err := c.Bind(&patch); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	ctx := c.Request().Context()
	t, err := h.svc.UpdateSettings(ctx, access.GrantFromContext(ctx), patch)
	if err != nil {
		return echo.NewHTTPError(apperr.Status(err), err.Error())
	}
	return c.JSON(http.StatusOK, t)
}

func (h *Handler) ListMembers(c echo.Context) error {
	ctx := c.Request().Context()
	members, err := h.svc.Members(ctx, access.GrantFromContext(ctx))
	if err != nil {
		return echo.NewHTTPError(apperr.Status(err), err.Error())
	}
	return c.JSON(http.StatusOK, members)
}

func (h *Handler) Invite(c echo.Context) error {
	var req struct {
		Email string      `json:"email"`
		Role  access.Role `json:"role"`
	}
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	ctx := c.Request().Context()
	m, err := h.svc.Invite(ctx, access.GrantFromContext(ctx), req.Email, req.Role)
	if err != nil {
		return echo.NewHTTPError(apperr.Status(err), err.Error())
	}
	return c.JSON(http.StatusCreated, m)
}

func (h *Handler) UpdateMemberRole(c echo.Context) error {
	memberID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid member id")
	}
	var req struct {
		Role access.Role `json:"role"`
	}
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	ctx := c.Request().Context()
	if err := h.svc.UpdateMemberRole(ctx, access.GrantFromContext(ctx), memberID, req.Role); err != nil {
		return echo.NewHTTPError(apperr.Status(err), err.Error())
	}
	return c.NoContent(http.StatusNoContent)
}

func (h *Handler) RemoveMember(c echo.Context) error {
	memberID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid member id")
	}

	ctx := c.Request().Context()
	if err := h.svc.RemoveMember(ctx, access.GrantFromContext(ctx), memberID); err != nil {
		return echo.NewHTTPError(apperr.Status(err), err.Error())
	}
	return c.NoContent(http.StatusNoContent)
}
