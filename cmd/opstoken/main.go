// Command opstoken prints a bearer token for the ops API.
package main

import (
	"fmt"
	"os"
	"time"

	"payment-webhook-gateway/config"
	"payment-webhook-gateway/internal/service"

	"github.com/joho/godotenv"
)

func main() {
	_ = godotenv.Load()

	if len(os.Args) < 2 {
		fmt.Fprintln(os.Stderr, "usage: opstoken <operator>")
		os.Exit(1)
	}

	cfg, err := config.Load(os.Getenv("MPW_CONFIG_FILE"))
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}
	if cfg.Ops.JWTSecret == "" {
		fmt.Fprintln(os.Stderr, "ops.jwt_secret is not configured")
		os.Exit(1)
	}

	token, expiresAt, err := service.NewJWTTokenService(cfg.Ops.JWTSecret, cfg.Ops.TokenTTL, cfg.Ops.JWTIssuer).Generate(os.Args[1])
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to sign token: %v\n", err)
		os.Exit(1)
	}

	fmt.Println(token)
	fmt.Fprintf(os.Stderr, "expires at %s\n", expiresAt.UTC().Format(time.RFC3339))
}
