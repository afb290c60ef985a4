package auth

import (
	"context"
	"strings"

	"github.com/labstack/echo/v4"
)

type contextKey string

const accountKey contextKey = "account"

// Middleware resolves an Authorization bearer token to an Account in the
// request context. Requests without a valid token continue unauthenticated;
// route gates downstream decide what anonymous callers may do.
func Middleware(provider *Provider) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			header := c.Request().Header.Get("Authorization")
			if !strings.HasPrefix(header, "Bearer ") {
				return next(c)
			}

			account, err := provider.Verify(strings.TrimPrefix(header, "Bearer "))
			if err != nil {
				return next(c)
			}

			ctx := context.WithValue(c.Request().Context(), accountKey, account)
			c.SetRequest(c.Request().WithContext(ctx))
			return next(c)
		}
	}
}

// AccountFromContext returns the authenticated account, or nil.
func AccountFromContext(ctx context.Context) *Account {
	account, _ := ctx.Value(accountKey).(*Account)
	return account
}

// WithAccount returns a context carrying the account. Used by tests and the
// bootstrap CLI path.
func WithAccount(ctx context.Context, account *Account) context.Context {
	return context.WithValue(ctx, accountKey, account)
}
