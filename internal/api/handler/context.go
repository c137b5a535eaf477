package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/marketledger/marketledger/internal/core/domain"
)

// ctxAccount extracts the caller's ledger account injected by the Auth
// middleware. Presence proves the middleware ran; an empty account means the
// token predates account minting and is unusable.
func ctxAccount(c echo.Context) (domain.Account, error) {
	account, _ := c.Get("account").(string)
	if account == "" {
		return "", echo.NewHTTPError(http.StatusUnauthorized, "missing authentication claims")
	}
	return domain.Account(account), nil
}
