package main

import (
	"context"
	"database/sql"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"

	"stellartourism.org/internal/auth"
	"stellartourism.org/internal/auth/firebase"
	"stellartourism.org/internal/httpapi"
	"stellartourism.org/internal/obs"
)

var (
	version = "1.0.0"
	commit  = "dev"
)

func main() {
	obs.Init()
	obs.InitBuildInfo(version, commit)

	secret := os.Getenv("STELLAR_AUTH_SECRET")
	if secret == "" {
		log.Fatal("STELLAR_AUTH_SECRET is required")
	}

	var db *sql.DB
	if dsn := os.Getenv("STELLAR_PG_DSN"); dsn != "" {
		var err error
		db, err = sql.Open("pgx", dsn)
		if err != nil {
			log.Fatalf("open db: %v", err)
		}
		db.SetMaxOpenConns(10)
		db.SetMaxIdleConns(10)
		db.SetConnMaxLifetime(30 * time.Minute)
	}

	blacklistPath := envOr("STELLAR_BLACKLIST_FILE", "data/token_blacklist.json")
	opts := []auth.ServiceOption{
		auth.WithDefaultTokenTTL(envDuration("STELLAR_TOKEN_TTL", time.Hour)),
		auth.WithCompactionCooldown(envDuration("STELLAR_BLACKLIST_COOLDOWN", auth.DefaultCompactionCooldown)),
		auth.WithBcryptCost(envInt("STELLAR_BCRYPT_COST", auth.DefaultBcryptCost)),
	}
	if db != nil {
		store := auth.NewSQLStore(db)
		opts = append(opts, auth.WithOwnershipStore(store), auth.WithRoleDirectory(store))
	}

	if projectID := os.Getenv("STELLAR_FIREBASE_PROJECT_ID"); projectID != "" {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		var credentials []byte
		if path := os.Getenv("STELLAR_FIREBASE_CREDENTIALS_FILE"); path != "" {
			var err error
			credentials, err = os.ReadFile(path)
			if err != nil {
				log.Fatalf("read firebase credentials: %v", err)
			}
		}
		verifier, err := firebase.NewVerifier(ctx, projectID, credentials)
		cancel()
		if err != nil {
			log.Fatalf("firebase verifier: %v", err)
		}
		opts = append(opts, auth.WithProvider(verifier, projectID))
	}

	svc, err := auth.NewService([]byte(secret), auth.NewFileBlacklistStore(blacklistPath), opts...)
	if err != nil {
		log.Fatalf("auth service: %v", err)
	}

	api := httpapi.New(httpapi.ReadyProbe{DB: db}, svc, version)

	srv := &http.Server{
		Addr:              envOr("STELLAR_HTTP_ADDR", ":8080"),
		Handler:           api.Handler(),
		ReadTimeout:       15 * time.Second,
		ReadHeaderTimeout: 15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	log.Printf("Starting stellar-tourism-api %s on %s", version, srv.Addr)

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("listen: %v", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	<-stop
	log.Println("Shutting down...")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	_ = srv.Shutdown(ctx)
	if db != nil {
		_ = db.Close()
	}
	log.Println("Stopped")
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envDuration(key string, fallback time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		log.Fatalf("%s: invalid duration %q", key, v)
	}
	return d
}

func envInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		log.Fatalf("%s: invalid integer %q", key, v)
	}
	return n
}
