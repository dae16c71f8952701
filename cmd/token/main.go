// Command token prints a bearer token for a user id. Sessions are issued
// elsewhere; this is for local testing against the API.
package main

import (
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/geocoder89/bookinghub/internal/auth"
	"github.com/geocoder89/bookinghub/internal/config"
)

func main() {
	userID := flag.Int64("user", 0, "user id to put in the subject claim")
	ttl := flag.Duration("ttl", 0, "token lifetime (defaults to JWT_ACCESS_TTL_MINUTES)")
	flag.Parse()

	if *userID <= 0 {
		fmt.Fprintln(os.Stderr, "usage: token -user <id> [-ttl 1h]")
		os.Exit(2)
	}

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, "config:", err)
		os.Exit(1)
	}

	lifetime := *ttl
	if lifetime <= 0 {
		lifetime = time.Duration(cfg.JWTAccessTTLMinutes) * time.Minute
	}

	tok, err := auth.NewManager(cfg.JWTSecret, lifetime).GenerateAccessToken(*userID)
	if err != nil {
		fmt.Fprintln(os.Stderr, "sign:", err)
		os.Exit(1)
	}
	fmt.Println(tok)
}
