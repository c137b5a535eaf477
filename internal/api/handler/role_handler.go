package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/marketledger/marketledger/internal/core/domain"
	"github.com/marketledger/marketledger/internal/core/ports"
)

// RoleHandler exposes the role registry.
type RoleHandler struct {
	roles ports.RoleService
}

func NewRoleHandler(roles ports.RoleService) *RoleHandler {
	return &RoleHandler{roles: roles}
}

// Register handles POST /v1/roles — self-service capability registration.
// The subject is always the authenticated caller; there is no granting on
// behalf of another account.
//
// @Summary      Register the caller for a role
// @Tags         roles
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        body  body      registerRoleRequest  true  "Role to register"
// @Success      201   {object}  rolesResponse
// @Failure      400   {object}  errorResponse
// @Failure      409   {object}  errorResponse
// @Router       /v1/roles [post]
func (h *RoleHandler) Register(c echo.Context) error {
	caller, err := ctxAccount(c)
	if err != nil {
		return err
	}

	var req registerRoleRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid payload")
	}
	if err := c.Validate(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	tag, ok := domain.ParseRoleTag(req.Role)
	if !ok {
		return echo.NewHTTPError(http.StatusBadRequest, "unknown role")
	}

	if err := h.roles.Register(c.Request().Context(), caller, tag); err != nil {
		return err
	}

	return c.JSON(http.StatusCreated, h.rolesOf(c, caller))
}

// Get handles GET /v1/roles/:account — the account's granted capabilities.
//
// @Summary      List an account's roles
// @Tags         roles
// @Produce      json
// @Security     BearerAuth
// @Param        account  path      string  true  "Ledger account address"
// @Success      200      {object}  rolesResponse
// @Router       /v1/roles/{account} [get]
func (h *RoleHandler) Get(c echo.Context) error {
	account := domain.Account(c.Param("account"))
	return c.JSON(http.StatusOK, h.rolesOf(c, account))
}

func (h *RoleHandler) rolesOf(c echo.Context, account domain.Account) rolesResponse {
	tags := h.roles.RolesOf(c.Request().Context(), account)
	out := rolesResponse{Account: string(account), Roles: make([]string, len(tags))}
	for i, t := range tags {
		out.Roles[i] = string(t)
	}
	return out
}
