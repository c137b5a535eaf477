package handler

import (
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/marketledger/marketledger/internal/core/domain"
	"github.com/marketledger/marketledger/internal/core/ports"
)

// ProductHandler handles HTTP requests for catalog operations.
type ProductHandler struct {
	catalog ports.CatalogService
}

func NewProductHandler(catalog ports.CatalogService) *ProductHandler {
	return &ProductHandler{catalog: catalog}
}

// Create handles POST /v1/products.
//
// @Summary      List a new product
// @Tags         products
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        Idempotency-Key  header    string                false  "Idempotency key to prevent duplicate submissions"
// @Param        body             body      createProductRequest  true   "Product details"
// @Success      201              {object}  productResponse
// @Failure      400              {object}  errorResponse
// @Failure      403              {object}  errorResponse
// @Router       /v1/products [post]
func (h *ProductHandler) Create(c echo.Context) error {
	caller, err := ctxAccount(c)
	if err != nil {
		return err
	}

	var req createProductRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid payload")
	}
	if err := c.Validate(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	result, err := h.catalog.Create(c.Request().Context(), ports.CreateProductInput{
		Caller:         caller,
		Name:           req.Name,
		Price:          req.Price,
		IdempotencyKey: c.Request().Header.Get("Idempotency-Key"),
	})
	if err != nil {
		return err
	}

	status := http.StatusCreated
	if result.AlreadyExisted {
		status = http.StatusOK
	}
	return c.JSON(status, toProductResponse(result.Product, true))
}

// Get handles GET /v1/products/:id.
//
// @Summary      Get a product by id
// @Tags         products
// @Produce      json
// @Security     BearerAuth
// @Param        id   path      int  true  "Product id"
// @Success      200  {object}  productResponse
// @Failure      404  {object}  errorResponse
// @Router       /v1/products/{id} [get]
func (h *ProductHandler) Get(c echo.Context) error {
	id, err := productID(c)
	if err != nil {
		return err
	}

	p, err := h.catalog.Get(c.Request().Context(), id)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, toProductResponse(p, true))
}

// List handles GET /v1/products?view=available|sold|mine|orders|shipments.
// The default view is available. The mine/orders/shipments views are scoped
// to the caller's account as producer, buyer or assigned shipper.
//
// @Summary      List products by view
// @Tags         products
// @Produce      json
// @Security     BearerAuth
// @Param        view  query     string  false  "View: available, sold, mine, orders, shipments"  default(available)
// @Success      200   {object}  productListResponse
// @Failure      400   {object}  errorResponse
// @Router       /v1/products [get]
func (h *ProductHandler) List(c echo.Context) error {
	caller, err := ctxAccount(c)
	if err != nil {
		return err
	}

	ctx := c.Request().Context()
	var products []domain.Product
	switch view := c.QueryParam("view"); view {
	case "", "available":
		products = h.catalog.Available(ctx)
	case "sold":
		products = h.catalog.Sold(ctx)
	case "mine":
		products = h.catalog.ByProducer(ctx, caller)
	case "orders":
		products = h.catalog.ByBuyer(ctx, caller)
	case "shipments":
		products = h.catalog.ByShipper(ctx, caller)
	default:
		return echo.NewHTTPError(http.StatusBadRequest, "unknown view")
	}

	return c.JSON(http.StatusOK, toProductListResponse(products))
}

// Purchase handles POST /v1/products/:id/purchase — exact-match settlement.
//
// @Summary      Buy a product
// @Tags         products
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        id    path      int              true  "Product id"
// @Param        body  body      purchaseRequest  true  "Attached payment"
// @Success      200   {object}  productResponse
// @Failure      402   {object}  errorResponse
// @Failure      404   {object}  errorResponse
// @Failure      422   {object}  errorResponse
// @Router       /v1/products/{id}/purchase [post]
func (h *ProductHandler) Purchase(c echo.Context) error {
	caller, err := ctxAccount(c)
	if err != nil {
		return err
	}
	id, err := productID(c)
	if err != nil {
		return err
	}

	var req purchaseRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid payload")
	}
	if err := c.Validate(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	p, err := h.catalog.Buy(c.Request().Context(), caller, id, req.Paid)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, toProductResponse(p, true))
}

// AssignShipper handles POST /v1/products/:id/shipper.
//
// @Summary      Assign a bidding shipper to a sold product
// @Tags         products
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        id    path      int                   true  "Product id"
// @Param        body  body      assignShipperRequest  true  "Shipper account"
// @Success      200   {object}  productResponse
// @Failure      403   {object}  errorResponse
// @Failure      422   {object}  errorResponse
// @Router       /v1/products/{id}/shipper [post]
func (h *ProductHandler) AssignShipper(c echo.Context) error {
	caller, err := ctxAccount(c)
	if err != nil {
		return err
	}
	id, err := productID(c)
	if err != nil {
		return err
	}

	var req assignShipperRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid payload")
	}
	if err := c.Validate(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	p, err := h.catalog.AssignShipper(c.Request().Context(), caller, id, domain.Account(req.Shipper))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, toProductResponse(p, true))
}

// ConfirmDelivery handles POST /v1/products/:id/delivery.
//
// @Summary      Confirm delivery of an arrived product
// @Tags         products
// @Produce      json
// @Security     BearerAuth
// @Param        id   path      int  true  "Product id"
// @Success      200  {object}  productResponse
// @Failure      403  {object}  errorResponse
// @Failure      422  {object}  errorResponse
// @Router       /v1/products/{id}/delivery [post]
func (h *ProductHandler) ConfirmDelivery(c echo.Context) error {
	caller, err := ctxAccount(c)
	if err != nil {
		return err
	}
	id, err := productID(c)
	if err != nil {
		return err
	}

	p, err := h.catalog.ConfirmDelivery(c.Request().Context(), caller, id)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, toProductResponse(p, true))
}

// productID parses the :id path parameter.
func productID(c echo.Context) (int64, error) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id < 0 {
		return 0, echo.NewHTTPError(http.StatusBadRequest, "invalid product id")
	}
	return id, nil
}
