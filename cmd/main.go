package main

import (
	"context"
	"database/sql"
	"errors"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/go-sql-driver/mysql"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"github.com/rs/cors"

	"voyanceBack/internal/config"
	"voyanceBack/internal/notify"
	"voyanceBack/internal/payments"
	"voyanceBack/internal/storage"
)

const (
	dbPingTimeout   = 5 * time.Second
	shutdownTimeout = 10 * time.Second
)

func main() {
	err := godotenv.Load()
	if err != nil {
		log.Printf("Warning: Error loading .env file: %v", err)
	}

	configPath := flag.String("config", os.Getenv("CONFIG_PATH"), "path to the YAML configuration")
	flag.Parse()

	infoLog := log.New(os.Stdout, "INFO\t", log.Ldate|log.Ltime)
	errorLog := log.New(os.Stderr, "ERROR\t", log.Ldate|log.Ltime|log.Lshortfile)
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))

	cfg, err := config.Load(*configPath)
	if err != nil {
		errorLog.Fatal(err)
	}

	db, err := openDB(cfg)
	if err != nil {
		errorLog.Fatal(err)
	}
	defer db.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	ext, err := openIntegrations(ctx, cfg, logger, infoLog)
	if err != nil {
		errorLog.Fatal(err)
	}
	if ext.redis != nil {
		defer ext.redis.Close()
	}

	app, err := initializeApp(db, cfg, ext, logger, errorLog, infoLog)
	if err != nil {
		errorLog.Fatal(err)
	}

	app.startPackExpiry(ctx, cfg.ExpirySweepInterval())
	if err := app.startRollups(ctx, cfg.Jobs.RollupSpec); err != nil {
		errorLog.Fatalf("schedule rollups: %v", err)
	}

	c := cors.New(cors.Options{
		AllowedOrigins:   cfg.Server.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowCredentials: true,
		AllowedHeaders:   []string{"Content-Type", "Authorization"},
	})

	srv := &http.Server{
		Addr:         cfg.Server.Address,
		ErrorLog:     errorLog,
		Handler:      c.Handler(app.routes()),
		IdleTimeout:  time.Minute,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
	}

	go func() {
		infoLog.Printf("Starting server on %s", cfg.Server.Address)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errorLog.Fatal(err)
		}
	}()

	<-ctx.Done()
	infoLog.Print("Shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		errorLog.Printf("shutdown: %v", err)
	}
}

func openDB(cfg config.Config) (*sql.DB, error) {
	dsn, err := cfg.DSN()
	if err != nil {
		return nil, err
	}
	db, err := sql.Open(cfg.Database.Driver, dsn)
	if err != nil {
		return nil, err
	}
	db.SetMaxIdleConns(cfg.Database.MaxIdleConns)
	db.SetMaxOpenConns(cfg.Database.MaxOpenConns)
	db.SetConnMaxLifetime(5 * time.Minute)

	ctx, cancel := context.WithTimeout(context.Background(), dbPingTimeout)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	return db, nil
}

// openIntegrations connects the optional outside services that are configured.
func openIntegrations(ctx context.Context, cfg config.Config, logger *slog.Logger, infoLog *log.Logger) (integrations, error) {
	var ext integrations

	if cfg.Redis.URL != "" {
		opts, err := redis.ParseURL(cfg.Redis.URL)
		if err != nil {
			return ext, fmt.Errorf("parse REDIS_URL: %w", err)
		}
		client := redis.NewClient(opts)
		pingCtx, cancel := context.WithTimeout(ctx, dbPingTimeout)
		defer cancel()
		if err := client.Ping(pingCtx).Err(); err != nil {
			client.Close()
			return ext, fmt.Errorf("ping redis: %w", err)
		}
		ext.redis = client
	} else {
		infoLog.Print("Redis not configured: presence falls back to SQL, registrations are not rate-limited")
	}

	if cfg.Stripe.SecretKey != "" {
		provider, err := payments.NewStripeProvider(payments.StripeConfig{
			SecretKey:     cfg.Stripe.SecretKey,
			WebhookSecret: cfg.Stripe.WebhookSecret,
			Logger:        logger.With("component", "stripe"),
		})
		if err != nil {
			return ext, err
		}
		ext.provider = provider
	} else {
		infoLog.Print("Stripe not configured: purchases are disabled")
	}

	if cfg.Firebase.CredentialsFile != "" {
		fcm, err := notify.NewFCM(ctx, cfg.Firebase.CredentialsFile, logger.With("component", "fcm"))
		if err != nil {
			return ext, err
		}
		ext.notifier = fcm
	}

	if cfg.S3.Enabled() {
		uploader, err := storage.NewS3Uploader(cfg.S3)
		if err != nil {
			return ext, err
		}
		ext.uploader = uploader
	}
	return ext, nil
}
