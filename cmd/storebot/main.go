package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/ordbot/storefront/internal/cart"
	"github.com/ordbot/storefront/internal/catalog"
	"github.com/ordbot/storefront/internal/checkout"
	"github.com/ordbot/storefront/internal/gateway"
	"github.com/ordbot/storefront/internal/notify"
	"github.com/ordbot/storefront/internal/order"
	"github.com/ordbot/storefront/internal/rates"
	"github.com/ordbot/storefront/internal/review"
	"github.com/ordbot/storefront/internal/storage"
	"github.com/ordbot/storefront/internal/transport"
)

type Config struct {
	DBHost         string
	DBPort         int
	DBUser         string
	DBPassword     string
	DBName         string
	MigrationsPath string

	MongoURI    string
	MongoDBName string

	RedisAddr     string
	RedisPassword string

	KafkaBrokers []string

	HTTPPort        string
	ChatAPIURL      string
	AdminIDs        []int64
	AdminToken      string
	PaymentAddress  string
	RateFeedURL     string
	ShutdownTimeout time.Duration
}

func loadConfig() *Config {
	dbPort, err := strconv.Atoi(getEnv("DB_PORT", "5432"))
	if err != nil {
		log.Fatalf("invalid DB_PORT: %v", err)
	}

	return &Config{
		DBHost:          getEnv("DB_HOST", "localhost"),
		DBPort:          dbPort,
		DBUser:          getEnv("DB_USER", "postgres"),
		DBPassword:      getEnv("DB_PASSWORD", "postgres"),
		DBName:          getEnv("DB_NAME", "storefront"),
		MigrationsPath:  getEnv("MIGRATIONS_PATH", "internal/storage/migrations"),
		MongoURI:        getEnv("MONGO_URI", "mongodb://localhost:27017"),
		MongoDBName:     getEnv("MONGO_DB_NAME", "storefront"),
		RedisAddr:       getEnv("REDIS_ADDR", "localhost:6379"),
		RedisPassword:   getEnv("REDIS_PASSWORD", ""),
		KafkaBrokers:    splitNonEmpty(getEnv("KAFKA_BROKERS", "")),
		HTTPPort:        getEnv("HTTP_PORT", "8080"),
		ChatAPIURL:      getEnv("CHAT_API_URL", "http://localhost:8081"),
		AdminIDs:        parseAdminIDs(getEnv("ADMIN_IDS", "")),
		AdminToken:      getEnv("ADMIN_TOKEN", ""),
		PaymentAddress:  getEnv("PAYMENT_ADDRESS", ""),
		RateFeedURL:     getEnv("RATE_FEED_URL", rates.DefaultFeedURL),
		ShutdownTimeout: 10 * time.Second,
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func splitNonEmpty(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func parseAdminIDs(s string) []int64 {
	var ids []int64
	for _, part := range splitNonEmpty(s) {
		id, err := strconv.ParseInt(part, 10, 64)
		if err != nil {
			log.Fatalf("invalid admin id %q: %v", part, err)
		}
		ids = append(ids, id)
	}
	return ids
}

func main() {
	cfg := loadConfig()
	ctx := context.Background()

	// Postgres
	creds := &storage.Credentials{
		Host:              cfg.DBHost,
		Port:              cfg.DBPort,
		User:              cfg.DBUser,
		Password:          cfg.DBPassword,
		DBName:            cfg.DBName,
		MigrationsDirPath: cfg.MigrationsPath,
	}
	db, err := storage.Open(creds)
	if err != nil {
		log.Fatalf("failed to open database: %v", err)
	}
	defer db.Close()

	if err := storage.RunMigrations(db, creds); err != nil {
		log.Fatalf("failed to run migrations: %v", err)
	}

	// MongoDB (reviews)
	mongoCtx, cancel := context.WithTimeout(ctx, 15*time.Second)
	mongoDB, err := review.ConnectMongoDB(mongoCtx, cfg.MongoURI, cfg.MongoDBName)
	cancel()
	if err != nil {
		log.Fatalf("failed to connect to MongoDB: %v", err)
	}
	defer func() {
		if err := mongoDB.Client().Disconnect(ctx); err != nil {
			log.Printf("mongo disconnect error: %v", err)
		}
	}()

	reviewRepo := review.NewMongoRepository(mongoDB)
	if err := reviewRepo.CreateIndexes(ctx); err != nil {
		log.Fatalf("failed to create review indexes: %v", err)
	}

	// Redis (cart cache)
	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
	})
	if err := redisClient.Ping(ctx).Err(); err != nil {
		log.Fatalf("failed to ping redis: %v", err)
	}
	defer redisClient.Close()

	// Kafka (order events), optional
	var events order.Publisher = order.NopPublisher{}
	if len(cfg.KafkaBrokers) > 0 {
		kafkaPublisher := order.NewKafkaPublisher(cfg.KafkaBrokers...)
		defer func() {
			if err := kafkaPublisher.Close(); err != nil {
				log.Printf("kafka close error: %v", err)
			}
		}()
		events = kafkaPublisher
	} else {
		log.Println("KAFKA_BROKERS not set, order events disabled")
	}

	// Services
	sender := notify.NewHTTPSender(cfg.ChatAPIURL)
	notifier := notify.NewNotifier(sender, cfg.AdminIDs)

	catalogRepo := catalog.NewRepository(db)
	catalogSvc := catalog.NewService(catalogRepo)
	carts := cart.NewManager(cart.NewPostgresRepository(db), cart.NewRedisCache(redisClient), catalogRepo)
	rateClient := rates.NewClient(cfg.RateFeedURL, rates.FallbackRate)

	orderRepo := order.NewPostgresRepository(db)
	orderSvc := order.NewService(orderRepo, rateClient, notifier, events, carts, cfg.AdminIDs, cfg.PaymentAddress)
	reviewSvc := review.NewService(reviewRepo, orderSvc)

	machine := checkout.NewMachine(checkout.NewStore())
	router := transport.NewRouter(sender, catalogSvc, carts, orderSvc, reviewSvc, machine)

	server := gateway.NewServer(router,
		gateway.NewOrderViews(orderRepo),
		gateway.NewProductViews(catalogSvc),
		cfg.AdminToken)

	srv := &http.Server{
		Addr:         ":" + cfg.HTTPPort,
		Handler:      server.Handler(),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Printf("storebot starting on :%s", cfg.HTTPPort)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("server error: %v", err)
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("shutting down server...")
	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancelShutdown()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Fatalf("server forced to shutdown: %v", err)
	}

	log.Println("server exited")
}
