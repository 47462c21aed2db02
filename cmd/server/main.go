package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/balejosg/openpath/internal/auth"
	"github.com/balejosg/openpath/internal/config"
	"github.com/balejosg/openpath/internal/crypto"
	"github.com/balejosg/openpath/internal/db"
	internalhttp "github.com/balejosg/openpath/internal/http"
	"github.com/balejosg/openpath/internal/jobs"
	"github.com/balejosg/openpath/internal/model"
	"github.com/balejosg/openpath/internal/policy"
	"github.com/balejosg/openpath/internal/repository"
	"github.com/balejosg/openpath/internal/revocation"
	"github.com/balejosg/openpath/internal/schedule"
)

func main() {
	cfg := config.Load()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if cfg.DatabaseURL == "" {
		log.Fatalf("DATABASE_URL is required")
	}
	pool, err := db.NewPool(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("db connection failed: %v", err)
	}
	defer pool.Close()

	revoked := newRevocationStore(ctx, cfg, pool)
	defer func() {
		if err := revoked.Close(); err != nil {
			log.Printf("revocation store close error: %v", err)
		}
	}()

	issuer := auth.NewIssuer(cfg.JWTSecret, cfg.JWTIssuer, cfg.AccessTokenTTL, cfg.RefreshTokenTTL, cfg.RevocationDefaultTTL, revoked)
	store := repository.NewStore(pool)
	scheduleStore := schedule.NewPostgresStore(pool)

	if err := bootstrapAdmin(ctx, cfg, store); err != nil {
		log.Fatalf("admin bootstrap failed: %v", err)
	}

	server := internalhttp.NewServer(cfg, store, issuer, schedule.NewService(scheduleStore), policy.NewResolver(store, scheduleStore))
	httpServer := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           server.Router(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	jobs.StartRevocationSweepJob(ctx, cfg.RevocationSweepInterval, revoked)

	go func() {
		log.Printf("openpath http listening on %s", cfg.HTTPAddr)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("http server error: %v", err)
		}
	}()

	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Printf("shutdown error: %v", err)
	}
}

// newRevocationStore picks the backend by configuration: redis when an
// address is set, otherwise postgres on the main pool. The in-memory
// store is a test and single-node fallback, never selected here.
func newRevocationStore(ctx context.Context, cfg config.Config, pool *pgxpool.Pool) revocation.Store {
	if cfg.RedisAddr != "" {
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
		})
		pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()
		if err := client.Ping(pingCtx).Err(); err != nil {
			log.Fatalf("redis ping failed: %v", err)
		}
		log.Printf("revocation store: redis at %s", cfg.RedisAddr)
		return revocation.NewRedisStore(client)
	}
	log.Printf("revocation store: postgres")
	return revocation.NewPostgresStore(pool)
}

// bootstrapAdmin creates the initial admin account when the instance
// starts against an empty user table. Safe to run on every start: an
// existing account with the configured email is left untouched.
func bootstrapAdmin(ctx context.Context, cfg config.Config, store *repository.Store) error {
	if cfg.BootstrapAdminEmail == "" || cfg.BootstrapAdminPassword == "" {
		return nil
	}
	_, err := store.GetUserByEmail(ctx, cfg.BootstrapAdminEmail)
	if err == nil {
		return nil
	}
	if !errors.Is(err, repository.ErrNotFound) {
		return err
	}

	hash, err := crypto.HashPassword(cfg.BootstrapAdminPassword)
	if err != nil {
		return err
	}
	now := time.Now().UTC()
	user := model.User{
		ID:           uuid.NewString(),
		Email:        cfg.BootstrapAdminEmail,
		PasswordHash: hash,
		FirstName:    "Admin",
		LastName:     "Bootstrap",
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := store.CreateUser(ctx, user); err != nil {
		return err
	}
	err = store.CreateRoleAssignment(ctx, model.RoleAssignment{
		ID:        uuid.NewString(),
		UserID:    user.ID,
		Role:      auth.RoleAdmin,
		CreatedBy: user.ID,
		CreatedAt: now,
		UpdatedAt: now,
	})
	if err != nil {
		return err
	}
	log.Printf("bootstrapped admin account %s", cfg.BootstrapAdminEmail)
	return nil
}
