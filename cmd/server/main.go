package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"medwaste-backend/internal/config"
	"medwaste-backend/internal/database"
	"medwaste-backend/internal/events"
	"medwaste-backend/internal/handlers"
	"medwaste-backend/internal/logger"
	"medwaste-backend/internal/models"
	"medwaste-backend/internal/outbox"
	"medwaste-backend/internal/services"
	"medwaste-backend/internal/store"
	"medwaste-backend/internal/tracing"
	"medwaste-backend/internal/websocket"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"
)

const serviceName = "medwaste-backend"

// backingStore is what the service and the outbox publisher need from storage.
type backingStore interface {
	store.Store
	store.OutboxStore
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Println("━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━")
		log.Println("❌ FATAL ERROR: Invalid configuration")
		log.Printf("   Error: %v", err)
		log.Println("━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━")
		log.Fatal(err)
	}

	zl, err := logger.New(cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		log.Fatalf("❌ FATAL ERROR: Invalid logger settings: %v", err)
	}
	defer zl.Sync()

	log.Println("═══════════════════════════════════════════════════════════════════")
	log.Println("🚀 MEDWASTE BACKEND SERVER STARTING")
	log.Println("═══════════════════════════════════════════════════════════════════")
	log.Printf("✅ Configuration loaded (log level %s, format %s)", cfg.LogLevel, cfg.LogFormat)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	shutdownTracing, err := tracing.Setup(ctx, serviceName, cfg.OTLPEndpoint)
	if err != nil {
		zl.Fatal("tracing setup failed", zap.Error(err))
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownTracing(shutdownCtx); err != nil {
			zl.Warn("tracing shutdown failed", zap.Error(err))
		}
	}()

	st, closeStore := openStore(ctx, cfg)
	defer closeStore()

	// Change notification
	bus := events.NewBus()
	svc := services.NewWasteService(st, bus, services.WithOutboxTopic(cfg.KafkaTopic))
	log.Println("✅ Waste service initialized")

	g, gctx := errgroup.WithContext(ctx)

	log.Println("🔌 Starting WebSocket hub...")
	wsHub := websocket.NewHub()
	bus.Subscribe(wsHub.HandleEvent)
	g.Go(func() error { return wsHub.Run(gctx) })
	log.Println("✅ WebSocket hub started")

	if notifier := newPickupNotifier(ctx, cfg, svc); notifier != nil {
		bus.Subscribe(notifier.Handle)
		g.Go(func() error { return notifier.Run(gctx) })
	}

	var producer outbox.Producer = outbox.LogProducer{}
	if len(cfg.KafkaBrokers) > 0 {
		producer = outbox.NewKafkaProducer(cfg.KafkaBrokers)
		log.Printf("✅ Outbox publishing to Kafka %v (topic %s)", cfg.KafkaBrokers, cfg.KafkaTopic)
	} else {
		log.Println("⚠️  KAFKA_BROKERS not set, outbox events will only be logged")
	}
	publisher := outbox.NewPublisher(st, producer, outbox.PublisherConfig{
		PollInterval: cfg.OutboxPollInterval,
		BatchSize:    cfg.OutboxBatchSize,
		MaxAttempts:  cfg.OutboxMaxAttempts,
	})
	g.Go(func() error { return publisher.Run(gctx) })

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           handlers.NewRouter(svc, wsHub, cfg.JWTSecret),
		ReadHeaderTimeout: 10 * time.Second,
	}

	g.Go(func() error {
		log.Println("═══════════════════════════════════════════════════════════════════")
		log.Println("✅ ALL INITIALIZATION COMPLETE")
		log.Printf("🚀 Server starting on http://localhost:%s", cfg.Port)
		log.Println("🔌 Ready to accept requests!")
		log.Println("═══════════════════════════════════════════════════════════════════")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		log.Println("🛑 Shutting down server...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		log.Println("━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━")
		log.Println("❌ FATAL ERROR: Server stopped with error")
		log.Printf("   Error: %v", err)
		log.Printf("   Port: %s", cfg.Port)
		log.Println("━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━")
		zl.Fatal("server stopped", zap.Error(err))
	}
	log.Println("👋 Server stopped")
}

// openStore connects to Postgres when DATABASE_URL is set and falls back to
// the in-memory store otherwise.
func openStore(ctx context.Context, cfg *config.Config) (backingStore, func()) {
	bins, err := seedBins(cfg.SeedBinsFile)
	if err != nil {
		log.Fatalf("❌ FATAL ERROR: Failed to load bin seed: %v", err)
	}

	if cfg.DatabaseURL == "" {
		log.Println("⚠️  DATABASE_URL not set, using in-memory store (data is lost on restart)")
		log.Printf("✅ Seeded %d bins into memory", len(bins))
		return store.NewMemoryStore(bins...), func() {}
	}

	log.Println("🔌 Connecting to database...")
	db, err := database.Connect(cfg.DatabaseURL)
	if err != nil {
		log.Println("━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━")
		log.Println("❌ FATAL ERROR: Database connection failed")
		log.Printf("   Error: %v", err)
		log.Println("   This is usually caused by:")
		log.Println("   1. Wrong DATABASE_URL format")
		log.Println("   2. PostgreSQL service is down")
		log.Println("   3. Network connectivity issue")
		log.Println("   4. Invalid credentials")
		log.Println("━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━")
		log.Fatal(err)
	}

	log.Println("🔄 Running database migrations...")
	if err := database.Migrate(db); err != nil {
		db.Close()
		log.Fatalf("❌ FATAL ERROR: Migrations failed: %v", err)
	}
	log.Println("✅ Migrations completed")

	if err := database.SeedBins(ctx, db, bins); err != nil {
		db.Close()
		log.Fatalf("❌ FATAL ERROR: Bin seeding failed: %v", err)
	}

	return store.NewPostgresStore(db), func() { db.Close() }
}

func seedBins(path string) ([]models.Bin, error) {
	if path == "" {
		return database.DefaultBins(), nil
	}
	log.Printf("📂 Loading bin seed from %s", path)
	return database.LoadBinSeed(path)
}

// newPickupNotifier returns nil when no Firebase credentials are configured.
func newPickupNotifier(ctx context.Context, cfg *config.Config, svc *services.WasteService) *services.PickupNotifier {
	var (
		fcm *services.FCMService
		err error
	)
	switch {
	case cfg.FirebaseCredentialsBase64 != "":
		log.Println("🔥 Initializing FCM from base64 credentials...")
		fcm, err = services.NewFCMServiceFromBase64(ctx, cfg.FirebaseCredentialsBase64)
	case cfg.FirebaseCredentialsFile != "":
		log.Printf("🔥 Initializing FCM from file: %s", cfg.FirebaseCredentialsFile)
		fcm, err = services.NewFCMService(ctx, cfg.FirebaseCredentialsFile)
	default:
		log.Println("⚠️  Firebase credentials not set, push notifications disabled")
		return nil
	}
	if err != nil {
		log.Printf("⚠️  Failed to initialize FCM service: %v", err)
		log.Println("⚠️  Push notifications will be disabled")
		return nil
	}

	log.Printf("✅ FCM push notifications enabled (topic %s)", cfg.FCMHandlerTopic)
	limiter := rate.NewLimiter(rate.Limit(cfg.FCMRateLimit), 1)
	return services.NewPickupNotifier(fcm, svc, cfg.FCMHandlerTopic, limiter)
}
