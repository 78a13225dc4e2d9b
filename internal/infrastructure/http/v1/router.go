// Package v1 provides HTTP API version 1.
package v1

import (
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"stockbook/internal/domain/catalogs/counterparty"
	"stockbook/internal/domain/catalogs/product"
	"stockbook/internal/domain/catalogs/variant"
	"stockbook/internal/domain/ledger"
	"stockbook/internal/domain/orders"
	"stockbook/internal/domain/reports"
	"stockbook/internal/domain/returns"
	"stockbook/internal/infrastructure/http/v1/handlers"
	"stockbook/internal/infrastructure/http/v1/middleware"
	"stockbook/internal/infrastructure/storage/postgres"
	"stockbook/internal/infrastructure/storage/postgres/catalog_repo"
	"stockbook/internal/infrastructure/storage/postgres/document_repo"
	"stockbook/internal/infrastructure/storage/postgres/ledger_repo"
	"stockbook/internal/infrastructure/storage/postgres/report_repo"
	"stockbook/pkg/logger"
	"stockbook/pkg/numerator"
)

// RouterConfig holds router dependencies.
type RouterConfig struct {
	// Pool is the database connection pool
	Pool *postgres.Pool

	// Logger for request logging
	Logger *logger.Logger

	// TokenValidator for bearer token validation
	TokenValidator middleware.TokenValidator

	// ReturnPolicy overrides the default return acceptance policy when set
	ReturnPolicy *returns.Policy
}

// NewRouter creates and configures the Gin router.
// Repositories and services are wired once at startup; every request
// shares the same pool-backed transaction manager.
func NewRouter(cfg RouterConfig) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)

	router := gin.New()

	// Global middleware (order matters)
	router.Use(middleware.Recovery())
	router.Use(middleware.Trace())
	router.Use(middleware.Logger(cfg.Logger))
	router.Use(middleware.ErrorHandler())

	// Health endpoints (no auth)
	healthHandler := handlers.NewHealthHandler(cfg.Pool)
	health := router.Group("/health")
	{
		health.GET("/live", healthHandler.Live)
		health.GET("/ready", healthHandler.Ready)
		health.GET("/info", healthHandler.Info)
	}

	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// Storage layer
	txManager := postgres.NewTxManager(cfg.Pool)
	num := numerator.New(cfg.Pool.Unwrap())

	outbox := postgres.NewOutboxPublisher(txManager)
	publisher := postgres.NewEventPublisher(outbox)

	auditSvc, err := postgres.NewAuditService(txManager)
	if err != nil {
		// Compressor init only fails on invalid options
		panic(err)
	}
	audit := postgres.NewAuditTrail(auditSvc)

	productRepo := catalog_repo.NewProductRepo(txManager)
	counterpartyRepo := catalog_repo.NewCounterpartyRepo(txManager)
	variantRepo := catalog_repo.NewVariantRepo(txManager)
	orderRepo := document_repo.NewOrderRepo(txManager)
	returnRepo := document_repo.NewReturnRepo(txManager)
	stockRepo := ledger_repo.NewStockRepo(txManager)
	reportRepo := report_repo.NewReportRepo(txManager)

	// Domain layer
	productSvc := product.NewService(productRepo, txManager, num)
	counterpartySvc := counterparty.NewService(counterpartyRepo, txManager, num)
	variantSvc := variant.NewService(variantRepo, txManager)
	ledgerSvc := ledger.NewService(stockRepo)
	orderSvc := orders.NewService(orderRepo, counterpartySvc, variantSvc, ledgerSvc,
		txManager, num, publisher, audit)
	returnSvc := returns.NewService(returnRepo, orderRepo, ledgerSvc,
		txManager, num, cfg.ReturnPolicy, publisher, audit)
	reportSvc := reports.NewService(reportRepo)

	// Handlers
	base := handlers.NewBaseHandler()
	productHandler := handlers.NewProductHandler(base, productSvc)
	counterpartyHandler := handlers.NewCounterpartyHandler(base, counterpartySvc)
	variantHandler := handlers.NewVariantHandler(base, variantSvc)
	orderHandler := handlers.NewOrderHandler(base, orderSvc)
	returnHandler := handlers.NewReturnHandler(base, returnSvc)
	stockHandler := handlers.NewStockHandler(base, ledgerSvc)
	reportHandler := handlers.NewReportHandler(base, reportSvc)

	// API v1 (auth required)
	api := router.Group("/api/v1")
	api.Use(middleware.Auth(cfg.TokenValidator))
	{
		catalogs := api.Group("/catalogs")
		{
			products := catalogs.Group("/products")
			products.POST("", productHandler.Create)
			products.GET("", productHandler.List)
			products.GET("/:id", productHandler.Get)
			products.GET("/by-code/:code", productHandler.GetByCode)
			products.GET("/:id/variants", variantHandler.GetByProduct)
			products.PUT("/:id", productHandler.Update)
			products.PATCH("/:id/active", productHandler.SetActive)

			counterparties := catalogs.Group("/counterparties")
			counterparties.POST("", counterpartyHandler.Create)
			counterparties.GET("", counterpartyHandler.List)
			counterparties.GET("/:id", counterpartyHandler.Get)
			counterparties.PUT("/:id", counterpartyHandler.Update)
			counterparties.PATCH("/:id/active", counterpartyHandler.SetActive)

			variants := catalogs.Group("/variants")
			variants.POST("", variantHandler.Create)
			variants.GET("", variantHandler.List)
			variants.GET("/:id", variantHandler.Get)
			variants.GET("/by-sku/:sku", variantHandler.GetBySKU)
			variants.PUT("/:id", variantHandler.Update)
			variants.PATCH("/:id/active", variantHandler.SetActive)
		}

		ordersGroup := api.Group("/orders")
		{
			ordersGroup.POST("", orderHandler.Create)
			ordersGroup.GET("", orderHandler.List)
			ordersGroup.GET("/:id", orderHandler.Get)
			ordersGroup.POST("/:id/cancel", orderHandler.Cancel)
			ordersGroup.GET("/:id/returns", returnHandler.ListByOrder)
		}

		returnsGroup := api.Group("/returns")
		{
			returnsGroup.POST("", returnHandler.Create)
			returnsGroup.GET("", returnHandler.List)
			returnsGroup.GET("/:id", returnHandler.Get)
			returnsGroup.POST("/:id/toggle", returnHandler.Toggle)
		}

		ledgerGroup := api.Group("/ledger")
		{
			ledgerGroup.GET("/stock/:variantId", stockHandler.GetStock)
			ledgerGroup.GET("/movements", stockHandler.GetMovements)
			ledgerGroup.GET("/returned/:productId", stockHandler.GetReturnedAggregate)
		}

		reportsGroup := api.Group("/reports")
		{
			reportsGroup.GET("/turnover", reportHandler.Turnover)
			reportsGroup.GET("/stock-snapshot", reportHandler.Snapshot)
			reportsGroup.GET("/returns-reconciliation", reportHandler.ReconcileReturns)
		}
	}

	return router
}
