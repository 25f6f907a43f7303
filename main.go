package main

import (
	"context"
	"encoding/json"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"pricewatch/config"
	"pricewatch/database"
	"pricewatch/handlers"
	"pricewatch/middleware"
	"pricewatch/models"
	"pricewatch/repository"
	"pricewatch/scheduler"
	"pricewatch/scraper"
	"pricewatch/services"

	"github.com/gorilla/mux"
	"github.com/joho/godotenv"
	"github.com/rs/cors"
)

func main() {
	once := flag.Bool("once", false, "run a single scan pass and exit")
	envPath := flag.String("config", "", "path to an env file (default .env)")
	productsPath := flag.String("products", "", "path to the products YAML file (overrides PRODUCTS_CONFIG)")
	flag.Parse()

	// Load environment variables
	if *envPath != "" {
		if err := godotenv.Load(*envPath); err != nil {
			log.Fatalf("Failed to load env file %s: %v", *envPath, err)
		}
	} else if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using environment variables")
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	if *productsPath != "" {
		cfg.ProductsPath = *productsPath
	}

	specs, err := config.LoadProducts(cfg.ProductsPath)
	if err != nil {
		log.Fatalf("Failed to load products config: %v", err)
	}
	log.Printf("Loaded %d products from %s", len(specs), cfg.ProductsPath)

	// Initialize database
	if err := database.InitDatabase(cfg.DatabaseURL); err != nil {
		log.Fatalf("Failed to initialize database: %v", err)
	}
	defer database.CloseDatabase()

	if err := database.CreateTables(); err != nil {
		log.Fatalf("Failed to create tables: %v", err)
	}

	// Initialize repositories
	obsRepo := repository.NewObservationRepository()
	alertRepo := repository.NewAlertRepository()

	// Wire the scraping pipeline: generic adapter as registry fallback,
	// amazon hosts intentionally skipped.
	fetcher := scraper.NewFetcher(cfg.FetchTimeout)
	extractor := scraper.NewExtractor()
	rates := scraper.NewStaticRates(scraper.DefaultRates())
	generic := scraper.NewGenericAdapter(fetcher, extractor, rates, cfg.DefaultCurrency, cfg.ForceCurrencyConversion)

	registry := scraper.NewRegistry(generic)
	amazon := scraper.NewAmazonAdapter()
	registry.Register("amazon.ca", amazon)
	registry.Register("amazon.com", amazon)

	detector := services.NewDropDetector(obsRepo, alertRepo, cfg.DedupWindow)
	notifier := buildNotifier(cfg)
	scanner := scheduler.NewScanner(registry, obsRepo, detector, notifier, cfg.ScanConcurrency)

	if *once {
		runOnce(scanner, specs)
		return
	}

	// Initialize and start the scan scheduler
	scanScheduler, err := scheduler.NewScanScheduler(scanner, specs, cfg.ScanIntervalHours)
	if err != nil {
		log.Fatalf("Failed to create scan scheduler: %v", err)
	}
	scanScheduler.Start()
	defer scanScheduler.Stop()

	// Initialize handlers
	h := handlers.NewHandlers(obsRepo, alertRepo, scanScheduler)

	// Setup router
	r := mux.NewRouter()
	r.Use(middleware.LoggingMiddleware)
	r.Use(middleware.RateLimitMiddleware(cfg.RateLimitPerSecond))

	r.HandleFunc("/health", healthCheck).Methods("GET")

	apiV1 := r.PathPrefix("/api/v1").Subrouter()
	apiV1.HandleFunc("/products", h.GetProducts).Methods("GET")
	apiV1.HandleFunc("/products/{id}", h.GetProductDetails).Methods("GET")
	apiV1.HandleFunc("/products/{id}/history", h.GetProductHistory).Methods("GET")
	apiV1.HandleFunc("/products/{id}/alerts", h.GetProductAlerts).Methods("GET")
	apiV1.HandleFunc("/scan", h.TriggerScan).Methods("POST")

	c := cors.New(cors.Options{
		AllowedOrigins:   cfg.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"*"},
		AllowCredentials: true,
	})

	server := &http.Server{
		Addr:    cfg.Host + ":" + cfg.Port,
		Handler: c.Handler(r),
	}

	go func() {
		log.Printf("🌐 Server starting on port %s", cfg.Port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server failed: %v", err)
		}
	}()

	// Wait for interrupt, then stop the scheduler and drain the server.
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan

	log.Println("Shutting down...")
	scanScheduler.Stop()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Printf("Server shutdown error: %v", err)
	}
}

// buildNotifier assembles whichever delivery channels are configured,
// falling back to plain log output.
func buildNotifier(cfg *config.Config) services.Notifier {
	var channels []services.Notifier

	if cfg.TelegramEnabled() {
		telegram, err := services.NewTelegramNotifier(cfg.TelegramBotToken, cfg.TelegramChatID)
		if err != nil {
			log.Printf("Telegram notifications disabled: %v", err)
		} else {
			log.Println("Telegram notifications enabled")
			channels = append(channels, telegram)
		}
	}

	if cfg.EmailEnabled() {
		log.Printf("Email notifications enabled for %d recipients", len(cfg.EmailRecipients))
		channels = append(channels, services.NewEmailNotifier(services.EmailConfig{
			Host:       cfg.SMTPHost,
			Port:       cfg.SMTPPort,
			Username:   cfg.SMTPUsername,
			Password:   cfg.SMTPPassword,
			FromName:   cfg.EmailFromName,
			Recipients: cfg.EmailRecipients,
		}))
	}

	if len(channels) == 0 {
		return services.LogNotifier{}
	}
	return services.NewMultiNotifier(channels...)
}

// runOnce performs a single scan pass, cancellable with Ctrl-C.
func runOnce(scanner *scheduler.Scanner, specs []models.ProductSpec) {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	summary, err := scanner.Run(ctx, specs)
	if err != nil {
		log.Fatalf("Scan failed: %v", err)
	}
	log.Printf("Scan finished: %d products, %d observations, %d drops",
		summary.Products, summary.Observations, summary.Drops)
}

func healthCheck(w http.ResponseWriter, r *http.Request) {
	response := map[string]interface{}{
		"service":     "pricewatch",
		"status":      "healthy",
		"timestamp":   time.Now(),
		"api_version": "v1",
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(response)
}
