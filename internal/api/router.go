package api

import (
	"github.com/labstack/echo-contrib/echoprometheus"
	"github.com/labstack/echo/v4"
	echomiddleware "github.com/labstack/echo/v4/middleware"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/marketledger/marketledger/internal/api/handler"
	"github.com/marketledger/marketledger/internal/api/middleware"
	"github.com/marketledger/marketledger/internal/core/domain"
	"github.com/marketledger/marketledger/internal/core/ports"
)

// Deps carries everything the router wires together. Mongo and Redis are
// only used by the readiness probe and may be nil in tests.
type Deps struct {
	Accounts ports.AccountService
	Roles    ports.RoleService
	Catalog  ports.CatalogService
	Shipping ports.ShippingService
	Outbox   handler.OutboxReader
	Checker  middleware.RoleChecker

	Mongo     *mongo.Database
	Redis     *redis.Client
	JWTSecret string
	Logger    zerolog.Logger
}

// NewRouter builds and returns the Echo instance with all routes registered.
func NewRouter(deps Deps) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.Validator = handler.NewValidator()
	e.HTTPErrorHandler = NewHTTPErrorHandler(deps.Logger)

	// --- Global middleware ---
	e.Use(echomiddleware.Recover())
	e.Use(echomiddleware.RequestID())
	e.Use(echomiddleware.Logger())
	e.Use(echoprometheus.NewMiddleware("marketledger"))

	// --- Handlers ---
	authHandler := handler.NewAuthHandler(deps.Accounts)
	roleHandler := handler.NewRoleHandler(deps.Roles)
	productHandler := handler.NewProductHandler(deps.Catalog)
	shippingHandler := handler.NewShippingHandler(deps.Shipping)
	notificationHandler := handler.NewNotificationHandler(deps.Outbox)

	// --- Session boundary (no auth required) ---
	e.POST("/auth/register", authHandler.Register)
	e.POST("/auth/login", authHandler.Login)

	// --- Health probes and metrics (no auth required) ---
	healthHandler := handler.NewHealthHandler()
	healthDepsHandler := handler.NewHealthDependenciesHandler(deps.Mongo, deps.Redis)

	e.GET("/health", healthHandler.Liveness)            // liveness  – is the process alive?
	e.GET("/health/ready", healthDepsHandler.Readiness) // readiness – are dependencies up?
	e.GET("/metrics", echoprometheus.NewHandler())

	// --- Authenticated API ---
	auth := middleware.Auth(deps.JWTSecret)
	v1 := e.Group("/v1", auth)

	v1.POST("/roles", roleHandler.Register)
	v1.GET("/roles/:account", roleHandler.Get)

	requireProducer := middleware.RequireRole(deps.Checker, domain.RoleProducer)
	requireBuyer := middleware.RequireRole(deps.Checker, domain.RoleBuyer)
	requireShipper := middleware.RequireRole(deps.Checker, domain.RoleShipper)

	v1.GET("/products", productHandler.List)
	v1.GET("/products/:id", productHandler.Get)
	v1.POST("/products", productHandler.Create, requireProducer)
	v1.POST("/products/:id/purchase", productHandler.Purchase, requireBuyer)
	// Assignment and delivery are ownership-gated in the core; the producer
	// and buyer capabilities are implied by ownership, so no role middleware.
	v1.POST("/products/:id/shipper", productHandler.AssignShipper)
	v1.POST("/products/:id/delivery", productHandler.ConfirmDelivery)

	v1.GET("/shipping/:id/requests", shippingHandler.List)
	v1.POST("/shipping/:id/requests", shippingHandler.Request, requireShipper)
	v1.POST("/shipping/:id/confirm", shippingHandler.ConfirmTransport)
	v1.DELETE("/shipping/:id/requests/:account", shippingHandler.Reject)

	v1.GET("/notifications", notificationHandler.List)

	return e
}
