// Command hashsecret prints the bcrypt hash of an admin password so it can
// be placed in ADMIN_PASSWORD_HASH. The cost comes from BCRYPT_COST.
//
//	hashsecret <password>
package main

import (
	"fmt"
	"log"
	"os"

	"github.com/joho/godotenv"

	"credbroker/internal/config"
	"credbroker/internal/secret"
)

func main() {
	_ = godotenv.Load()

	if len(os.Args) != 2 || os.Args[1] == "" {
		log.Fatal("usage: hashsecret <password>")
	}

	hash, err := secret.HashSecret(os.Args[1], config.LoadBcryptCost())
	if err != nil {
		log.Fatalf("hashing failed: %v", err)
	}
	fmt.Println(hash)
}
