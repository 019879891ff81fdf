package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"loyalty/pkg/config"
)

// Prints a bearer token signed with JWT_SECRET. Administrators reach /admin;
// store_staff tokens only redeem and mark rewards used.
func main() {
	ttl := flag.Duration("ttl", 12*time.Hour, "token lifetime")
	role := flag.String("role", "administrator", "administrator or store_staff")
	flag.Parse()
	if flag.NArg() < 1 {
		fmt.Println("usage: go run ./cmd/issue_admin_token [-ttl 12h] [-role store_staff] <username>")
		os.Exit(2)
	}
	username := strings.TrimSpace(flag.Arg(0))
	if *role != "administrator" && *role != "store_staff" {
		log.Fatalf("unknown role %q", *role)
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	if cfg.JWTSecret == "" {
		log.Fatal("JWT_SECRET not set in environment")
	}
	now := time.Now()
	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"username": username,
		"role":     *role,
		"iat":      now.Unix(),
		"exp":      now.Add(*ttl).Unix(),
	})
	s, err := tok.SignedString([]byte(cfg.JWTSecret))
	if err != nil {
		log.Fatalf("sign token: %v", err)
	}
	fmt.Println(s)
}
