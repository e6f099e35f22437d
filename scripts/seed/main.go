package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/ranchbook/ranchbook/internal/app"
	"github.com/ranchbook/ranchbook/internal/inventory"
	"github.com/ranchbook/ranchbook/internal/platform/cache"
	"github.com/ranchbook/ranchbook/internal/platform/db"
	"github.com/ranchbook/ranchbook/internal/posting"
	"github.com/ranchbook/ranchbook/internal/shared"
)

// Fixed ids keep reruns pointed at the same demo ranch.
var (
	demoTenant = uuid.MustParse("6f1c2b7e-1d0a-4d8e-9a51-0c3f5e2a7b10")
	demoSite   = uuid.MustParse("2b8e4c1a-7f3d-4e62-8c90-5d1a3b6f9e24")
)

func main() {
	ctx := context.Background()
	cfg, err := app.LoadConfig()
	if err != nil {
		log.Fatalf("load config: %v", err)
	}
	logger := app.NewLogger(cfg)

	if err := db.Migrate(cfg.PGDSN, logger); err != nil {
		log.Fatalf("migrate: %v", err)
	}
	pool, err := db.New(ctx, cfg.PGDSN, cfg.PGMaxConns)
	if err != nil {
		log.Fatalf("connect postgres: %v", err)
	}
	defer pool.Close()
	redisClient, err := cache.New(ctx, cache.Options{Addr: cfg.RedisAddr, Password: cfg.RedisPassword, DB: cfg.RedisDB})
	if err != nil {
		log.Fatalf("connect redis: %v", err)
	}
	defer redisClient.Close()

	services := app.NewServices(cfg, logger, pool, redisClient, nil)
	defer services.Publisher.Close()
	actor := shared.Actor{TenantID: demoTenant, UserID: getenv("SEED_USER", "seed@ranchbook.local")}

	fmt.Println("→ Seeding chart of accounts...")
	if _, err := services.Accounts.SeedDefaults(ctx, demoTenant); err != nil {
		log.Fatalf("seed accounts: %v", err)
	}
	chart, err := services.Accounts.List(ctx, demoTenant)
	if err != nil {
		log.Fatalf("list accounts: %v", err)
	}
	byCode := make(map[string]uuid.UUID, len(chart))
	for _, acc := range chart {
		byCode[acc.Code] = acc.ID
	}

	fmt.Println("→ Seeding catalog...")
	hay, err := seedItem(ctx, services.Inventory, "HAY-RB", "Round bale hay", "bale", "20", byCode)
	if err != nil {
		log.Fatalf("seed items: %v", err)
	}
	vaccine, err := seedItem(ctx, services.Inventory, "VAC-7W", "7-way clostridial vaccine", "dose", "50", byCode)
	if err != nil {
		log.Fatalf("seed items: %v", err)
	}

	fmt.Println("→ Posting demo activity...")
	today := time.Now().UTC().Format("2006-01-02")
	steps := []struct {
		name  string
		event posting.EventInput
	}{
		{"hay purchase", posting.EventInput{
			SiteID: demoSite, Type: posting.EventPurchase, EventDate: today, PaymentMethod: posting.PaymentCredit,
			Description: "Hay from Miller Farms",
			Lines:       []posting.EventLineInput{{ItemID: &hay, Quantity: dec("120"), UnitCost: dec("55")}},
		}},
		{"vaccine purchase", posting.EventInput{
			SiteID: demoSite, Type: posting.EventPurchase, EventDate: today,
			Lines: []posting.EventLineInput{{ItemID: &vaccine, Quantity: dec("200"), UnitCost: dec("0.85")}},
		}},
		{"winter feeding", posting.EventInput{
			SiteID: demoSite, Type: posting.EventFeeding, EventDate: today,
			Lines: []posting.EventLineInput{{ItemID: &hay, Quantity: dec("30")}},
		}},
		{"spring shots", posting.EventInput{
			SiteID: demoSite, Type: posting.EventTreatment, EventDate: today,
			Lines: []posting.EventLineInput{{ItemID: &vaccine, Quantity: dec("85")}},
		}},
		{"day labor", posting.EventInput{
			SiteID: demoSite, Type: posting.EventLabor, EventDate: today,
			Lines: []posting.EventLineInput{{Description: "Working cattle", Amount: dec("240")}},
		}},
	}
	for _, step := range steps {
		ev, err := services.Posting.CreateEvent(ctx, actor, step.event)
		if err != nil {
			log.Fatalf("create %s: %v", step.name, err)
		}
		out, err := services.Posting.ProcessEvent(ctx, actor, posting.ProcessEventInput{EventID: ev.ID})
		if err != nil {
			log.Fatalf("post %s: %v", step.name, err)
		}
		fmt.Printf("   %s → %s\n", step.name, out.LedgerTransactionID)
	}

	sales := byCode["4000"]
	inv, err := services.Posting.CreateInvoice(ctx, actor, posting.InvoiceInput{
		SiteID:       ptr(demoSite),
		CustomerName: "Hill Country Sale Barn",
		InvoiceDate:  today,
		Lines:        []posting.InvoiceLineInput{{Description: "Feeder steers", AccountID: &sales, Quantity: dec("12"), UnitPrice: dec("1450")}},
	})
	if err != nil {
		log.Fatalf("create invoice: %v", err)
	}
	if _, err := services.Posting.Post(ctx, actor, inv.Ref()); err != nil {
		log.Fatalf("send invoice: %v", err)
	}

	tb, err := services.Ledger.TrialBalance(ctx, demoTenant, nil)
	if err != nil {
		log.Fatalf("trial balance: %v", err)
	}
	fmt.Printf("✓ Seed complete at %s: debits %s credits %s\n",
		time.Now().Format(time.RFC3339), tb.TotalDebit.StringFixed(2), tb.TotalCredit.StringFixed(2))
}

func seedItem(ctx context.Context, svc *inventory.Service, sku, name, unit, reorder string, byCode map[string]uuid.UUID) (uuid.UUID, error) {
	items, err := svc.ListItems(ctx, demoTenant)
	if err != nil {
		return uuid.Nil, err
	}
	for _, item := range items {
		if item.SKU == sku {
			return item.ID, nil
		}
	}
	asset := byCode["1200"]
	item, err := svc.CreateItem(ctx, inventory.CreateItemInput{
		TenantID:       demoTenant,
		SKU:            sku,
		Name:           name,
		Unit:           unit,
		ReorderPoint:   dec(reorder),
		AssetAccountID: &asset,
	})
	if err != nil {
		return uuid.Nil, err
	}
	return item.ID, nil
}

func dec(s string) *decimal.Decimal {
	d := decimal.RequireFromString(s)
	return &d
}

func ptr[T any](v T) *T { return &v }

func getenv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
