// Command tokengen issues staff tokens for the admin API.
package main

import (
	"flag"
	"fmt"
	"log"
	"time"

	"github.com/spec-kit/returnflow/internal/auth"
	"github.com/spec-kit/returnflow/internal/config"
)

func main() {
	staffID := flag.String("staff", "", "staff member id (token subject)")
	role := flag.String("role", string(auth.RoleAgent), "staff role: agent or supervisor")
	flag.Parse()

	if *staffID == "" {
		log.Fatal("-staff is required")
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	tokens := auth.NewTokenManager(cfg.Auth.JWTSecret, cfg.Auth.AccessTokenTTLMinutes)
	token, expiresAt, err := tokens.GenerateToken(*staffID, auth.Role(*role))
	if err != nil {
		log.Fatalf("failed to issue token: %v", err)
	}

	fmt.Println(token)
	log.Printf("expires at %s", expiresAt.Format(time.RFC3339))
}
