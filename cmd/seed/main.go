// Package main implements a one-shot seed command that registers a tenant
// site directly in the gateway database and optionally grants editor access.
// It lives inside the main module so it can access internal/* packages.
//
// Usage:
//
//	go run ./cmd/seed \
//	  --domain blog.example.com \
//	  --name "Company Blog" \
//	  --editor 248289761001 --editor 248289761002
//
// Environment variables:
//
//	SITEGATE_DB_DRIVER  "sqlite" or "postgres" (default: sqlite)
//	SITEGATE_DB_DSN     SQLite file path or Postgres DSN (default: ./sitegate.db)
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"strings"

	"go.uber.org/zap"
	gormlogger "gorm.io/gorm/logger"

	"github.com/sitegate-io/sitegate/internal/db"
	"github.com/sitegate-io/sitegate/internal/repositories"
	"github.com/sitegate-io/sitegate/internal/repository"
)

type stringList []string

func (s *stringList) String() string { return strings.Join(*s, ",") }

func (s *stringList) Set(v string) error {
	*s = append(*s, v)
	return nil
}

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	// ─── Flags ────────────────────────────────────────────────────────────────

	domain := flag.String("domain", "", "Site domain, e.g. blog.example.com (required)")
	name := flag.String("name", "", "Site display name (defaults to the domain)")
	var editors stringList
	flag.Var(&editors, "editor", "Subject of a user to grant edit access (repeatable)")
	flag.Parse()

	if *domain == "" {
		return fmt.Errorf("--domain is required")
	}
	if *name == "" {
		*name = *domain
	}

	// ─── Config ───────────────────────────────────────────────────────────────

	driver := envOrDefault("SITEGATE_DB_DRIVER", "sqlite")
	dsn := envOrDefault("SITEGATE_DB_DSN", "./sitegate.db")

	// ─── Database ─────────────────────────────────────────────────────────────

	logger, _ := zap.NewDevelopment()

	database, err := db.New(db.Config{
		Driver:   driver,
		DSN:      dsn,
		Logger:   logger,
		LogLevel: gormlogger.Silent, // suppress GORM query logs in seed output
	})
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}

	sqlDB, err := database.DB()
	if err != nil {
		return fmt.Errorf("get sql.DB: %w", err)
	}
	defer sqlDB.Close()

	// ─── Create site ──────────────────────────────────────────────────────────

	ctx := context.Background()
	siteRepo := repository.NewSiteRepository(database)

	site := &db.Site{
		Domain: *domain,
		Name:   *name,
	}

	if err := siteRepo.Create(ctx, site); err != nil {
		if !errors.Is(err, repositories.ErrConflict) {
			return fmt.Errorf("create site: %w", err)
		}
		// Already registered: reuse it so editor grants stay idempotent.
		existing, err := siteRepo.GetByDomain(ctx, *domain)
		if err != nil {
			return fmt.Errorf("load existing site %q: %w", *domain, err)
		}
		site = existing
		fmt.Printf("site %q already registered, adding editors only\n", *domain)
	}

	// ─── Grant editors ────────────────────────────────────────────────────────

	userRepo := repository.NewUserRepository(database)

	for _, sub := range editors {
		if _, err := userRepo.GetByID(ctx, sub); err != nil {
			if errors.Is(err, repositories.ErrNotFound) {
				return fmt.Errorf("user %q does not exist yet; they must log in once first", sub)
			}
			return fmt.Errorf("look up user %q: %w", sub, err)
		}
		if err := siteRepo.AddEditor(ctx, site.ID, sub); err != nil {
			return fmt.Errorf("grant editor %q: %w", sub, err)
		}
	}

	fmt.Printf("✓ Site ready\n")
	fmt.Printf("  ID:      %s\n", site.ID)
	fmt.Printf("  Domain:  %s\n", site.Domain)
	fmt.Printf("  Name:    %s\n", site.Name)
	fmt.Printf("  Editors: %d granted\n", len(editors))

	return nil
}

func envOrDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}
