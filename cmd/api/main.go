package main

import (
	"context"
	"fmt"
	"log"

	"github.com/gorilla/sessions"

	"billing-dashboard/core"
)

func main() {
	cfg := core.Load()
	ctx := context.Background()

	logCloser, err := core.SetupLogging(cfg, "api.log")
	if err != nil {
		log.Fatalf("failed to setup logging: %v", err)
	}
	defer logCloser.Close()

	if cfg.RunMigrations {
		if err := core.Migrate(ctx, cfg.DatabaseURL); err != nil {
			log.Fatalf("failed to apply migrations: %v", err)
		}
	}

	db, err := core.Connect(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("failed to connect database: %v", err)
	}
	defer db.Close()

	redisClient, err := core.NewRedisClient(cfg.RedisURL)
	if err != nil {
		log.Fatalf("failed to connect redis: %v", err)
	}
	defer redisClient.Close()

	// Gorilla cookie store for session management.
	store := sessions.NewCookieStore([]byte(cfg.SessionKey))

	userRepo := core.NewPgUserRepository(db)
	customerRepo := core.NewPgCustomerRepository(db)
	invoiceRepo := core.NewPgInvoiceRepository(db)

	if err := core.BootstrapUser(ctx, userRepo, cfg); err != nil {
		log.Fatalf("bootstrap user failed: %v", err)
	}
	if cfg.SeedFile != "" {
		stores := core.SeedStores{Users: userRepo, Customers: customerRepo, Invoices: invoiceRepo}
		if _, err := core.LoadSeedFile(ctx, cfg.SeedFile, stores, cfg.BcryptCost); err != nil {
			log.Fatalf("seed %s failed: %v", cfg.SeedFile, err)
		}
	}

	views := core.NewViewCache(redisClient, core.NewRedisQueue(redisClient), cfg.ViewCacheTTL)

	var providers []core.FederatedProvider
	if cfg.FederatedEnabled() {
		providers = append(providers, core.NewHTTPIdentityProvider(cfg))
	}
	gate := core.NewSessionGate(userRepo, core.BcryptVerifier{}, providers...).
		WithThrottle(core.NewRedisSignInThrottle(redisClient, cfg.SignInMaxAttempts, cfg.SignInWindow))

	router := core.NewRouter(cfg, store, core.RouterDeps{
		Auth:      gate,
		Mutations: core.NewMutationPipeline(invoiceRepo, views),
		Pages:     core.NewInvoiceListService(invoiceRepo, views, 0),
		Invoices:  invoiceRepo,
		Customers: customerRepo,
		Metrics:   core.NewMetricsService(redisClient),
		Views:     views,
	})

	addr := fmt.Sprintf(":%s", cfg.Port)
	log.Printf("starting api server on %s", addr)
	if err := router.Run(addr); err != nil {
		log.Fatalf("server failed: %v", err)
	}
}
