// Command keygen mints an API key and stores its bcrypt hash.
//
// Usage:
//
//	go run cmd/keygen/main.go -name ci-bot -scopes jobs:write,admin
//
// Requires DATABASE_URL environment variable to be set. The raw key is
// printed exactly once; only the hash is persisted.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
	"github.com/pricehound/pricehound/internal/api/handler"
	"github.com/pricehound/pricehound/internal/archive"
	"github.com/pricehound/pricehound/pkg/models"
)

func main() {
	_ = godotenv.Load()

	name := flag.String("name", "", "key name (required)")
	scopes := flag.String("scopes", "jobs:write", "comma-separated scopes")
	flag.Parse()

	if *name == "" {
		fmt.Fprintln(os.Stderr, "ERROR: -name is required")
		flag.Usage()
		os.Exit(1)
	}

	dsn := os.Getenv("DATABASE_URL")
	if dsn == "" {
		fmt.Fprintln(os.Stderr, "ERROR: DATABASE_URL environment variable not set")
		os.Exit(1)
	}

	ctx := context.Background()

	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		fmt.Fprintf(os.Stderr, "ERROR: Failed to connect to database: %v\n", err)
		os.Exit(1)
	}
	defer pool.Close()

	raw, prefix, hash, err := handler.MintAPIKey()
	if err != nil {
		fmt.Fprintf(os.Stderr, "ERROR: Failed to mint key: %v\n", err)
		os.Exit(1)
	}

	now := time.Now().UTC()
	key := &models.APIKey{
		ID:        uuid.New(),
		Name:      *name,
		KeyHash:   hash,
		KeyPrefix: prefix,
		Scopes:    strings.Split(*scopes, ","),
		CreatedAt: now,
		UpdatedAt: now,
	}

	store := archive.NewPostgresStore(pool)
	if err := store.CreateAPIKey(ctx, key); err != nil {
		fmt.Fprintf(os.Stderr, "ERROR: Failed to store key: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("created API key %s (%s)\n", key.ID, key.Name)
	fmt.Printf("scopes: %s\n", strings.Join(key.Scopes, ", "))
	fmt.Println()
	fmt.Println("store this key now, it will not be shown again:")
	fmt.Println(raw)
}
