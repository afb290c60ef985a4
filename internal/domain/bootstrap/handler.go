package bootstrap

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
	api.POST("/bootstrap", h.Run, access.RequireAuthenticated())
}

func (h *Handler) Run(c echo.Context) error {
	ctx := c.Request().Context()
	grant, err := h.svc.Run(ctx, access.GrantFromContext(ctx))
	if err != nil {
		return echo.NewHTTPError(apperr.Status(err), err.Error())
	}
	return c.JSON(http.StatusOK, map[string]any{
		"decision": grant.Decision,
		"state":    grant.State.String(),
		"tenantId": grant.TenantID,
	})
}
