package auth

import (
	"context"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/clinicflow/clinicflow/internal/apperr"
)

// Registrar is called after a successful sign-up or sign-in so the user
// directory can create its record for the account. Idempotent on the
// directory side.
type Registrar interface {
	RegisterAccount(ctx context.Context, account *Account) error
}

type Handler struct {
	provider  *Provider
	registrar Registrar
}

func NewHandler(provider *Provider, registrar Registrar) *Handler {
	return &Handler{provider: provider, registrar: registrar}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	g := api.Group("/auth")
	g.POST("/signup", h.SignUp)
	g.POST("/signin", h.SignIn)
	g.POST("/reset-password", h.ResetPassword)
	g.POST("/signout", h.SignOut)
}

type credentialsRequest struct {
	Email       string `json:"email"`
	Password    string `json:"password"`
	DisplayName string `json:"displayName,omitempty"`
}

func (h *Handler) SignUp(c echo.Context) error {
	var req credentialsRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	ctx := c.Request().Context()
	session, err := h.provider.SignUp(ctx, req.Email, req.Password, req.DisplayName)
	if err != nil {
		return echo.NewHTTPError(apperr.Status(err), err.Error())
	}
	if err := h.registrar.RegisterAccount(ctx, &session.Account); err != nil {
		return echo.NewHTTPError(apperr.Status(err), err.Error())
	}
	return c.JSON(http.StatusCreated, session)
}

func (h *Handler) SignIn(c echo.Context) error {
	var req credentialsRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	ctx := c.Request().Context()
	session, err := h.provider.SignIn(ctx, req.Email, req.Password)
	if err != nil {
		return echo.NewHTTPError(apperr.Status(err), err.Error())
	}
	// Accounts created before the directory existed, or through another
	// channel, get their record on first sign-in.
	if err := h.registrar.RegisterAccount(ctx, &session.Account); err != nil {
		return echo.NewHTTPError(apperr.Status(err), err.Error())
	}
	return c.JSON(http.StatusOK, session)
}

func (h *Handler) ResetPassword(c echo.Context) error {
	var req struct {
		Email string `json:"email"`
	}
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	if err := h.provider.SendPasswordReset(c.Request().Context(), req.Email); err != nil {
		return echo.NewHTTPError(apperr.Status(err), err.Error())
	}
	return c.NoContent(http.StatusAccepted)
}

// SignOut is stateless on the server; tokens expire on their own. The
// endpoint exists so clients have a uniform auth surface.
func (h *Handler) SignOut(c echo.Context) error {
	return c.NoContent(http.StatusNoContent)
}
