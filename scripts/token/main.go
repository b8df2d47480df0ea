package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/joho/godotenv"

	"github.com/odyssey-erp/odyssey-inventory/internal/auth"
)

// Mints a development bearer token signed with JWT_SECRET.
func main() {
	subject := flag.String("sub", "dev", "token subject, recorded as the audit actor")
	name := flag.String("name", "Developer", "display name")
	ttl := flag.Duration("ttl", 24*time.Hour, "token lifetime")
	flag.Parse()

	_ = godotenv.Load(getenv("ENV_PATH", ".env"))

	authority, err := auth.NewAuthority(auth.Config{
		Secret: os.Getenv("JWT_SECRET"),
		Issuer: getenv("JWT_ISSUER", "odyssey-inventory"),
	})
	if err != nil {
		log.Fatalf("token authority: %v", err)
	}
	token, err := authority.Issue(*subject, *name, *ttl)
	if err != nil {
		log.Fatalf("issue token: %v", err)
	}
	fmt.Println(token)
}

func getenv(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}
