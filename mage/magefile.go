//go:build mage

package main

import (
	"fmt"
	"os"

	"github.com/magefile/mage/mg"
	"github.com/magefile/mage/sh"
)

const (
	DOCKER_FILE = "../docker-compose.yml"
	BINARY_NAME = "../bin/poke-api-extension"
	MAIN_PATH   = "../cmd/server"
)

// Build compiles the server binary.
func Build() error {
	fmt.Println("Building server binary...")
	return sh.RunV("go", "build", "-o", BINARY_NAME, MAIN_PATH)
}

// Test runs the unit tests.
func Test() error {
	return sh.RunV("go", "test", "-race", "../...")
}

// IntegrationTest runs the tests including the PostgreSQL suites.
func IntegrationTest() error {
	mg.Deps(DockerUp)
	return sh.RunWithV(map[string]string{"INTEGRATION_DB": "1"}, "go", "test", "../internal/repositories/...")
}

// Lint runs go vet.
func Lint() error {
	return sh.RunV("go", "vet", "../...")
}

// Run starts the server with the in-memory store.
func Run() error {
	return sh.RunWithV(map[string]string{"STORAGE_DRIVER": "memory", "APP_ENV": "development"}, "go", "run", MAIN_PATH)
}

func DockerUp() error {
	fmt.Println("Starting Postgres and Redis containers...")
	return sh.RunV("docker-compose", "-f", DOCKER_FILE, "up", "-d")
}

func DockerDown() error {
	fmt.Println("Stopping containers...")
	return sh.RunV("docker-compose", "-f", DOCKER_FILE, "down")
}

func Clean() {
	fmt.Println("Cleaning up...")
	os.Remove(BINARY_NAME)
	mg.Deps(DockerDown)
}
