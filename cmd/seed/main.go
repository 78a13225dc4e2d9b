// Package main provides a CLI tool for seeding the database with demo data.
package main

import (
	"context"
	"fmt"
	"os"

	appctx "stockbook/internal/core/context"
	"stockbook/internal/core/types"
	"stockbook/internal/domain/catalogs/counterparty"
	"stockbook/internal/domain/catalogs/product"
	"stockbook/internal/domain/catalogs/variant"
	"stockbook/internal/domain/events"
	"stockbook/internal/domain/ledger"
	"stockbook/internal/domain/orders"
	"stockbook/internal/infrastructure/storage/postgres"
	"stockbook/internal/infrastructure/storage/postgres/catalog_repo"
	"stockbook/internal/infrastructure/storage/postgres/document_repo"
	"stockbook/internal/infrastructure/storage/postgres/ledger_repo"
	"stockbook/pkg/logger"
	"stockbook/pkg/numerator"
)

func main() {
	log, err := logger.New(logger.Config{
		Level:       "info",
		Development: true,
	})
	if err != nil {
		fmt.Printf("failed to create logger: %v\n", err)
		os.Exit(1)
	}

	ctx := appctx.WithCaller(context.Background(), &appctx.CallerContext{
		Subject: "seed",
		Name:    "Seed CLI",
	})

	dbURL := os.Getenv("DATABASE_URL")
	if dbURL == "" {
		log.Fatal("DATABASE_URL environment variable is required")
	}

	pool, err := postgres.NewPool(ctx, postgres.DefaultPoolConfig(dbURL))
	if err != nil {
		log.Fatalw("failed to connect to database", "error", err)
	}
	defer pool.Close()

	log.Info("connected to database")

	txManager := postgres.NewTxManager(pool)
	num := numerator.New(pool.Unwrap())

	productSvc := product.NewService(catalog_repo.NewProductRepo(txManager), txManager, num)
	counterpartySvc := counterparty.NewService(catalog_repo.NewCounterpartyRepo(txManager), txManager, num)
	variantSvc := variant.NewService(catalog_repo.NewVariantRepo(txManager), txManager)
	ledgerSvc := ledger.NewService(ledger_repo.NewStockRepo(txManager))
	orderSvc := orders.NewService(document_repo.NewOrderRepo(txManager), counterpartySvc, variantSvc,
		ledgerSvc, txManager, num, events.NopPublisher{}, events.NopAuditTrail{})

	if err := seed(ctx, log, productSvc, counterpartySvc, variantSvc, orderSvc); err != nil {
		log.Fatalw("seeding failed", "error", err)
	}

	log.Info("seeding completed successfully")
}

func seed(
	ctx context.Context,
	log *logger.Logger,
	products *product.Service,
	counterparties *counterparty.Service,
	variants *variant.Service,
	orderSvc *orders.Service,
) error {
	// Catalogs
	tshirt := product.New("", "Classic T-Shirt")
	tshirt.Category = "apparel"
	if err := products.Create(ctx, tshirt); err != nil {
		return fmt.Errorf("create product: %w", err)
	}

	mug := product.New("", "Enamel Mug")
	mug.Category = "kitchen"
	if err := products.Create(ctx, mug); err != nil {
		return fmt.Errorf("create product: %w", err)
	}

	variantDefs := []struct {
		p     *product.Product
		sku   string
		label string
		price types.MinorUnits
	}{
		{tshirt, "TS-BLK-M", "black / M", 1999},
		{tshirt, "TS-BLK-L", "black / L", 1999},
		{tshirt, "TS-WHT-M", "white / M", 1899},
		{mug, "MUG-GRN", "green", 1250},
	}

	created := make([]*variant.Variant, 0, len(variantDefs))
	for _, def := range variantDefs {
		v := variant.New(def.p.ID, def.sku, def.label, def.price)
		if err := variants.Create(ctx, v); err != nil {
			return fmt.Errorf("create variant %s: %w", def.sku, err)
		}
		created = append(created, v)
	}

	supplier := counterparty.New("", "Northline Wholesale", counterparty.TypeSupplier)
	if err := counterparties.Create(ctx, supplier); err != nil {
		return fmt.Errorf("create supplier: %w", err)
	}

	customer := counterparty.New("", "Walk-in Customer", counterparty.TypeCustomer)
	if err := counterparties.Create(ctx, customer); err != nil {
		return fmt.Errorf("create customer: %w", err)
	}

	log.Infow("catalogs seeded", "products", 2, "variants", len(created), "counterparties", 2)

	// Purchase to stock the shelves
	purchaseLines := make([]orders.LineInput, 0, len(created))
	for _, v := range created {
		purchaseLines = append(purchaseLines, orders.LineInput{
			ProductID: v.ProductID,
			VariantID: v.ID,
			Quantity:  50,
		})
	}
	purchase, err := orderSvc.Create(ctx, orders.KindPurchase, supplier.ID, purchaseLines)
	if err != nil {
		return fmt.Errorf("create purchase: %w", err)
	}
	log.Infow("purchase seeded", "number", purchase.Number)

	// One sale against the first variant
	sale, err := orderSvc.Create(ctx, orders.KindSale, customer.ID, []orders.LineInput{
		{ProductID: created[0].ProductID, VariantID: created[0].ID, Quantity: 3},
	})
	if err != nil {
		return fmt.Errorf("create sale: %w", err)
	}
	log.Infow("sale seeded", "number", sale.Number)

	return nil
}
