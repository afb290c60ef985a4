package directory

import (
	"net/http"

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
	me := api.Group("/me", access.RequireAuthenticated())
	me.GET("", h.Me)
	me.PATCH("", h.UpdateMe)

	admin := api.Group("/admin", access.RequireSystemAdmin())
	admin.GET("/users", h.ListUsers)
	admin.PATCH("/users/:id/active", h.SetUserActive)
}

// Me returns the caller's directory record together with the computed
// access decision and state, so a client learns its next step (purchase,
// tenant setup, or full access) from one request.
func (h *Handler) Me(c echo.Context) error {
	ctx := c.Request().Context()
	grant := access.GrantFromContext(ctx)

	rec, err := h.svc.Get(ctx, grant.AccountID())
	if err != nil {
		return echo.NewHTTPError(apperr.Status(err), "user record not found")
	}

	return c.JSON(http.StatusOK, map[string]any{
		"user":     rec,
		"decision": grant.Decision,
		"state":    grant.State.String(),
	})
}

func (h *Handler) UpdateMe(c echo.Context) error {
	var req struct {
		DisplayName string `json:"displayName"`
	}
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	ctx := c.Request().Context()
	grant := access.GrantFromContext(ctx)
	if err := h.svc.UpdateDisplayName(ctx, grant, req.DisplayName); err != nil {
		return echo.NewHTTPError(apperr.Status(err), err.Error())
	}
	return c.NoContent(http.StatusNoContent)
}

func (h *Handler) ListUsers(c echo.Context) error {
	ctx := c.Request().Context()
	users, err := h.svc.List(ctx, access.GrantFromContext(ctx))
	if err != nil {
		return echo.NewHTTPError(apperr.Status(err), err.Error())
	}
	return c.JSON(http.StatusOK, users)
}

func (h *Handler) SetUserActive(c echo.Context) error {
	var req struct {
		Active bool `json:"active"`
	}
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	ctx := c.Request().Context()
	if err := h.svc.SetActive(ctx, access.GrantFromContext(ctx), c.Param("id"), req.Active); err != nil {
		return echo.NewHTTPError(apperr.Status(err), err.Error())
	}
	return c.NoContent(http.StatusNoContent)
}
