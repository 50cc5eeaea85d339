// Command gymdesk-token issues signed bearer tokens for local development
// and scripts. Production tokens come from the identity provider.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/joho/godotenv"

	"github.com/meltforce/gymdesk/internal/auth"
	"github.com/meltforce/gymdesk/internal/config"
	"github.com/meltforce/gymdesk/internal/models"
	"github.com/meltforce/gymdesk/internal/storage"
)

func main() {
	configPath := flag.String("config", "config.yaml", "path to config file")
	user := flag.String("user", "", "user id (token subject, required)")
	tenant := flag.String("tenant", "", "tenant id (required)")
	tenantName := flag.String("tenant-name", "", "create the tenant with this name if it does not exist")
	role := flag.String("role", string(models.RoleAthlete), "admin, coach or athlete")
	ttl := flag.Duration("ttl", 24*time.Hour, "token lifetime")
	flag.Parse()

	if *user == "" || *tenant == "" {
		fmt.Fprintf(os.Stderr, "Usage: gymdesk-token -user <id> -tenant <id> [-role coach] [-ttl 24h] [-tenant-name Gym]\n")
		flag.PrintDefaults()
		os.Exit(1)
	}
	if !models.Role(*role).Valid() {
		fmt.Fprintf(os.Stderr, "unknown role %q\n", *role)
		os.Exit(1)
	}

	_ = godotenv.Load()
	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, "failed to load config:", err)
		os.Exit(1)
	}

	if *tenantName != "" {
		// Logs go to stderr; stdout carries only the token.
		log := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn}))

		ctx := context.Background()
		db, err := storage.Open(ctx, cfg.Database, log)
		if err != nil {
			fmt.Fprintln(os.Stderr, "failed to open database:", err)
			os.Exit(1)
		}
		err = db.EnsureTenant(ctx, *tenant, *tenantName)
		db.Close()
		if err != nil {
			fmt.Fprintln(os.Stderr, "creating tenant:", err)
			os.Exit(1)
		}
	}

	token, err := auth.NewVerifier(cfg.Auth.JWTSecret).Issue(auth.Identity{
		UserID:   *user,
		TenantID: *tenant,
		Role:     models.Role(*role),
	}, *ttl)
	if err != nil {
		fmt.Fprintln(os.Stderr, "issuing token:", err)
		os.Exit(1)
	}
	fmt.Println(token)
}
