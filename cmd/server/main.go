package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"go.uber.org/zap"

	"aracitakip/backend/internal/config"
	"aracitakip/backend/internal/httpapi"
	"aracitakip/backend/internal/ledger"
	"aracitakip/backend/internal/logger"
	"aracitakip/backend/internal/store"
	"aracitakip/backend/internal/store/memory"
	pgstore "aracitakip/backend/internal/store/postgres"
	"aracitakip/backend/internal/store/redisstore"
)

func main() {
	cfg := config.Load()

	zl, err := logger.New(logger.Config{Level: cfg.LogLevel, Encoding: cfg.LogEncoding})
	if err != nil {
		log.Fatalf("logger: %v", err)
	}
	defer func() { _ = zl.Sync() }()

	if err := validateSecurityConfig(cfg); err != nil {
		zl.Fatal("invalid security configuration", zap.Error(err))
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	persister, closers, err := openPersister(ctx, cfg, zl)
	if err != nil {
		zl.Fatal("persistence unavailable", zap.Error(err))
	}

	engine, err := ledger.Open(ctx, persister, ledger.WithLogger(zl))
	if err != nil {
		zl.Fatal("ledger load failed", zap.Error(err))
	}

	auth, err := httpapi.NewAuthManager(
		cfg.AuthSecret,
		time.Duration(cfg.AccessTokenTTLMinutes)*time.Minute,
		httpapi.Account{Username: cfg.AdminUsername, Password: cfg.AdminPassword, Role: httpapi.RoleAdmin},
		httpapi.Account{Username: cfg.ViewerUsername, Password: cfg.ViewerPassword, Role: httpapi.RoleViewer},
	)
	if err != nil {
		zl.Fatal("auth setup failed", zap.Error(err))
	}
	api := httpapi.New(engine, auth, cfg.AllowedOrigin, cfg.LoginRatePerMinute, zl)

	server := &http.Server{
		Addr:              cfg.Address(),
		Handler:           api.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      10 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		zl.Info("ledger backend listening", zap.String("addr", cfg.Address()))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			zl.Fatal("server error", zap.Error(err))
		}
	}()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 8*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		zl.Warn("shutdown error", zap.Error(err))
	}

	for _, closeFn := range closers {
		if err := closeFn(); err != nil {
			zl.Warn("close error", zap.Error(err))
		}
	}

	zl.Info("server stopped")
}

// openPersister picks postgres, then redis, then the in-process store.
// A configured backend that cannot be reached is fatal; falling back to
// memory would silently drop the ledger on restart.
func openPersister(ctx context.Context, cfg config.Config, zl *zap.Logger) (store.Persister, []func() error, error) {
	if cfg.DatabaseURL != "" {
		pg, err := pgstore.New(ctx, cfg.DatabaseURL, cfg.StateNamespace)
		if err != nil {
			return nil, nil, fmt.Errorf("postgres: %w", err)
		}
		zl.Info("persistence: postgres", zap.String("namespace", cfg.StateNamespace))
		return pg, []func() error{pg.Close}, nil
	}

	if cfg.RedisAddr != "" {
		rs := redisstore.New(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB, cfg.StateNamespace)
		if err := rs.Ping(ctx); err != nil {
			_ = rs.Close()
			return nil, nil, fmt.Errorf("redis: %w", err)
		}
		zl.Info("persistence: redis", zap.String("key", redisstore.StateKey(cfg.StateNamespace)))
		return rs, []func() error{rs.Close}, nil
	}

	if cfg.SeedDemo {
		zl.Info("persistence: in-memory (demo data)")
		return memory.NewSeeded(), nil, nil
	}
	zl.Info("persistence: in-memory")
	return memory.New(), nil, nil
}

func validateSecurityConfig(cfg config.Config) error {
	if len(cfg.AuthSecret) < 32 {
		return fmt.Errorf("AUTH_SECRET must be set and at least 32 characters")
	}
	if cfg.AdminPassword == "" {
		return fmt.Errorf("ADMIN_PASSWORD must be set")
	}
	if err := validatePasswordStrength(cfg.AdminPassword); err != nil {
		return fmt.Errorf("ADMIN_PASSWORD is too weak: %w", err)
	}
	if cfg.ViewerUsername != "" {
		if err := validatePasswordStrength(cfg.ViewerPassword); err != nil {
			return fmt.Errorf("VIEWER_PASSWORD is too weak: %w", err)
		}
	}
	return nil
}

// validatePasswordStrength rejects short passwords, passwords made of a
// single repeated character, and a handful of well-known ones.
func validatePasswordStrength(password string) error {
	if len(password) < 10 {
		return fmt.Errorf("at least 10 characters required")
	}

	known := map[string]bool{
		"password123": true, "1234567890": true, "qwertyuiop": true,
		"admin12345": true, "sifre12345": true, "0987654321": true,
	}
	if known[strings.ToLower(password)] {
		return fmt.Errorf("common password not allowed")
	}

	allSame := true
	for i := 1; i < len(password); i++ {
		if password[i] != password[0] {
			allSame = false
			break
		}
	}
	if allSame {
		return fmt.Errorf("repeated-character password not allowed")
	}

	return nil
}
