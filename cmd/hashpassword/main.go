package main

import (
	"bufio"
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"

	"github.com/bobbybaxter/poke-api-extension/internal/auth"
)

// hashpassword prints a password hash in the format the server stores, for
// seeding users by hand. The password is read from stdin.
func main() {
	_ = godotenv.Load()

	algorithm := flag.String("algorithm", envOr("PASSWORD_HASHER", auth.AlgorithmBcrypt), "bcrypt or argon2id")
	cost := flag.Int("cost", 0, "bcrypt cost (0 for the library default)")
	flag.Parse()

	hasher, err := auth.NewPasswordHasher(*algorithm, *cost)
	if err != nil {
		logrus.Fatalf("Error creating hasher: %v", err)
	}

	fmt.Fprint(os.Stderr, "Password: ")
	line, err := bufio.NewReader(os.Stdin).ReadString('\n')
	if err != nil && line == "" {
		logrus.Fatalf("Error reading password: %v", err)
	}
	password := strings.TrimRight(line, "\r\n")
	if password == "" {
		logrus.Fatal("Password must not be empty")
	}

	hashed, err := hasher.Hash(password)
	if err != nil {
		logrus.Fatalf("Error hashing password: %v", err)
	}
	if !hasher.Verify(password, hashed) {
		logrus.Fatal("Hash verification failed")
	}
	fmt.Println(hashed)
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
