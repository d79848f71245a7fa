package main

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/supabros/bookstore/internal/audit"
	"github.com/supabros/bookstore/internal/config"
	"github.com/supabros/bookstore/internal/database"
	"github.com/supabros/bookstore/internal/handlers"
	mW "github.com/supabros/bookstore/internal/middleware"
	"github.com/supabros/bookstore/internal/payment"
	"github.com/supabros/bookstore/internal/replication"
	"github.com/supabros/bookstore/internal/services"
	"github.com/supabros/bookstore/internal/store"
	httpSwagger "github.com/swaggo/http-swagger"
)

// @title Bookstore API
// @version 1.0
// @description Storefront, checkout and seller wallet for a digital bookstore
// @BasePath /api
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization

func main() {
	cfg := config.Load()

	primary, err := store.Open(cfg.Store)
	if err != nil {
		log.Fatalf("Failed to open %s store: %v", cfg.Store.Driver, err)
	}
	defer primary.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var (
		st      store.Store = primary
		queue   *replication.Queue
		targets []replication.Target
	)

	repCfg := config.LoadReplicationConfig()
	if len(repCfg.Targets) > 0 {
		for _, raw := range repCfg.Targets {
			target, err := replication.ParseTarget(raw)
			if err != nil {
				log.Fatalf("Invalid replication target: %v", err)
			}
			targets = append(targets, target)
		}

		queue, err = replication.OpenQueue(repCfg.QueuePath)
		if err != nil {
			log.Fatalf("Failed to open replication queue: %v", err)
		}
		defer queue.Close()

		st = replication.NewMirroredStore(primary, queue, targets)
		log.Printf("[REPLICATION] mirroring writes to %d target(s)", len(targets))

		if repCfg.WorkerEnable {
			worker := replication.NewWorker(queue, replication.SQLExecutor{}, replication.WorkerConfig{
				Interval:   repCfg.Interval,
				BatchSize:  repCfg.BatchSize,
				MaxBackoff: repCfg.MaxBackoff,
				StaleAfter: repCfg.StaleAfter,
			})
			go worker.Run(ctx)
		}
	}

	redisClient := database.InitRedis(cfg.Redis)
	if redisClient != nil {
		defer redisClient.Close()
	}

	gateway, err := payment.NewFromConfig(cfg.Payment)
	if err != nil {
		log.Fatalf("Failed to configure payment gateways: %v", err)
	}

	auditLog := audit.NewLogger()
	sessions := services.NewSessionStore(redisClient, cfg.SessionTTL)
	if !sessions.Enabled() {
		log.Println("[CHECKOUT] Redis unavailable, payment sessions will not be enforced")
	}

	catalogService := services.NewCatalogService(st)
	checkoutService := services.NewCheckoutService(st, gateway, sessions, auditLog, cfg.Payment.Currency, cfg.Payment.Mastercard.CheckoutURL)
	payoutService := services.NewPayoutService(cfg.Payment.Payout, cfg.Payment.Currency)
	walletService := services.NewWalletService(st, payoutService, auditLog)
	dashboardService := services.NewDashboardService(st, queue, targets)
	receiptService := services.NewReceiptService(st)
	authService := services.NewAuthService(st, redisClient, cfg.JWT, cfg.Argon2)

	storefront := handlers.NewStorefrontHandler(catalogService, checkoutService, receiptService)
	admin := handlers.NewAdminHandler(catalogService, checkoutService, walletService, dashboardService)

	r := chi.NewRouter()

	r.Use(mW.SecurityHeaders)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RealIP)
	r.Use(middleware.Timeout(60 * time.Second))

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"https://*", "http://*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: true,
		MaxAge:           86400,
	}))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]string{"status": "healthy"})
	})

	r.Get("/openapi.yaml", func(w http.ResponseWriter, r *http.Request) {
		http.ServeFile(w, r, "./api/openapi.yaml")
	})
	r.Get("/swagger/*", httpSwagger.Handler(httpSwagger.URL("/openapi.yaml")))

	r.Route("/api", func(r chi.Router) {
		r.Get("/books", storefront.ListBooks)
		r.Post("/orders", storefront.PlaceOrder)
		r.Get("/orders/{id}/receipt-qr", storefront.ReceiptQR)

		r.Post("/payment/create-session", storefront.CreateSession)
		r.Post("/payment/visa/charge", storefront.ChargeVisa)
		r.Post("/payment/mastercard/create-session", storefront.CreateMastercardSession)
		r.Post("/payment/mastercard/complete", storefront.CompleteMastercardSession)

		r.Post("/admin/login", authService.Login)
		r.Post("/admin/setup", authService.Setup)

		r.Group(func(r chi.Router) {
			r.Use(mW.AdminAuth(cfg.JWT.SecretKey, redisClient))

			r.Post("/admin/logout", authService.Logout)

			r.Post("/admin/books", admin.CreateBook)
			r.Put("/admin/books/{id}", admin.UpdateBook)
			r.Delete("/admin/books/{id}", admin.DeleteBook)

			r.Get("/admin/transactions", admin.ListTransactions)
			r.Post("/admin/transactions/{id}/refund", admin.Refund)

			r.Get("/admin/wallet", admin.Wallet)
			r.Post("/admin/wallet/transfer", admin.Transfer)

			r.Get("/admin/dashboard-stats", admin.DashboardStats)
			r.Get("/admin/db-status", admin.DBStatus)
			r.Get("/admin/backup-status", admin.BackupStatus)
		})
	})

	r.Handle("/*", mW.StaticFileServer(cfg.StaticDir))

	server := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 75 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Printf("Server starting on :%s (store=%s, payments=%s)", cfg.Port, cfg.Store.Driver, cfg.Payment.Mode)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server failed: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("Server shutting down...")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Fatal("Server forced to shutdown:", err)
	}

	log.Println("Server stopped")
}
