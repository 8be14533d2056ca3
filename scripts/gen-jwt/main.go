// gen-jwt prints a bearer token for a user id, signed with JWT_SECRET.
// Run from project root: go run ./scripts/gen-jwt -user <id>
package main

import (
	"flag"
	"fmt"
	"os"

	"taskhub/internal/config"
	"taskhub/internal/identity"
)

func main() {
	userID := flag.String("user", "test-user", "user id to put in the token subject")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, "Config failed:", err)
		os.Exit(1)
	}
	signed, err := identity.NewTokens(cfg.JWTSecret, cfg.JWTExpiresIn).Issue(*userID)
	if err != nil {
		fmt.Fprintln(os.Stderr, "Issue failed:", err)
		os.Exit(1)
	}
	fmt.Println(signed)
}
