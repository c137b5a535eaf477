package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/marketledger/marketledger/internal/core/domain"
	"github.com/marketledger/marketledger/internal/core/ports"
)

// ShippingHandler handles HTTP requests for the shipping coordinator.
type ShippingHandler struct {
	shipping ports.ShippingService
}

func NewShippingHandler(shipping ports.ShippingService) *ShippingHandler {
	return &ShippingHandler{shipping: shipping}
}

// Request handles POST /v1/shipping/:id/requests — a shipper bidding for a
// sold product. Duplicate bids succeed without adding a second entry.
//
// @Summary      Bid to ship a sold product
// @Tags         shipping
// @Produce      json
// @Security     BearerAuth
// @Param        id   path      int  true  "Product id"
// @Success      201  {object}  shippingRequestsResponse
// @Failure      403  {object}  errorResponse
// @Failure      422  {object}  errorResponse
// @Router       /v1/shipping/{id}/requests [post]
func (h *ShippingHandler) Request(c echo.Context) error {
	caller, err := ctxAccount(c)
	if err != nil {
		return err
	}
	id, err := productID(c)
	if err != nil {
		return err
	}

	if err := h.shipping.Request(c.Request().Context(), caller, id); err != nil {
		return err
	}

	resp, err := h.requests(c, id)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, resp)
}

// List handles GET /v1/shipping/:id/requests — the ordered bid list.
//
// @Summary      List shipping bids for a product
// @Tags         shipping
// @Produce      json
// @Security     BearerAuth
// @Param        id   path      int  true  "Product id"
// @Success      200  {object}  shippingRequestsResponse
// @Failure      404  {object}  errorResponse
// @Router       /v1/shipping/{id}/requests [get]
func (h *ShippingHandler) List(c echo.Context) error {
	id, err := productID(c)
	if err != nil {
		return err
	}

	resp, err := h.requests(c, id)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, resp)
}

// ConfirmTransport handles POST /v1/shipping/:id/confirm — the assigned
// shipper reporting arrival.
//
// @Summary      Confirm transport of an in-transit product
// @Tags         shipping
// @Produce      json
// @Security     BearerAuth
// @Param        id   path      int  true  "Product id"
// @Success      200  {object}  productResponse
// @Failure      403  {object}  errorResponse
// @Failure      422  {object}  errorResponse
// @Router       /v1/shipping/{id}/confirm [post]
func (h *ShippingHandler) ConfirmTransport(c echo.Context) error {
	caller, err := ctxAccount(c)
	if err != nil {
		return err
	}
	id, err := productID(c)
	if err != nil {
		return err
	}

	p, err := h.shipping.ConfirmTransport(c.Request().Context(), caller, id)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, toProductResponse(p, true))
}

// Reject handles DELETE /v1/shipping/:id/requests/:account — durable bid
// rejection by the producer. Answers 409 when the arbitration policy keeps
// rejection presentation-only, so the UI knows to filter locally instead.
//
// @Summary      Durably reject a shipping bid
// @Tags         shipping
// @Produce      json
// @Security     BearerAuth
// @Param        id       path      int     true  "Product id"
// @Param        account  path      string  true  "Bidder account to reject"
// @Success      200      {object}  shippingRequestsResponse
// @Failure      403      {object}  errorResponse
// @Failure      409      {object}  errorResponse
// @Failure      422      {object}  errorResponse
// @Router       /v1/shipping/{id}/requests/{account} [delete]
func (h *ShippingHandler) Reject(c echo.Context) error {
	caller, err := ctxAccount(c)
	if err != nil {
		return err
	}
	id, err := productID(c)
	if err != nil {
		return err
	}

	shipper := domain.Account(c.Param("account"))
	if err := h.shipping.Reject(c.Request().Context(), caller, id, shipper); err != nil {
		return err
	}

	resp, err := h.requests(c, id)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, resp)
}

func (h *ShippingHandler) requests(c echo.Context, id int64) (shippingRequestsResponse, error) {
	bidders, err := h.shipping.Requests(c.Request().Context(), id)
	if err != nil {
		return shippingRequestsResponse{}, err
	}

	resp := shippingRequestsResponse{ProductID: id, Bidders: make([]string, len(bidders))}
	for i, b := range bidders {
		resp.Bidders[i] = string(b)
	}
	return resp, nil
}
