package middleware

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/marketledger/marketledger/internal/core/domain"
)

// RoleChecker answers capability queries against the ledger's role registry.
type RoleChecker interface {
	HasRole(account domain.Account, tag domain.RoleTag) bool
}

// RequireRole rejects callers whose account does not hold any of the given
// capabilities. This is a fast-fail at the transport boundary; the core
// services re-validate capabilities inside the atomic apply regardless, so a
// grant revoked between check and execution can never slip through (grants
// are monotonic anyway, but ownership checks are not expressible here).
func RequireRole(roles RoleChecker, tags ...domain.RoleTag) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			account, _ := c.Get("account").(string)
			if account == "" {
				return echo.NewHTTPError(http.StatusUnauthorized, "missing authentication claims")
			}

			for _, tag := range tags {
				if roles.HasRole(domain.Account(account), tag) {
					return next(c)
				}
			}
			return c.JSON(http.StatusForbidden, map[string]string{"error": "missing capability"})
		}
	}
}
