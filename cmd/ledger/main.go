package main

import (
	"os"

	"github.com/joho/godotenv"

	"github.com/eshaffer321/utility-ledger/internal/cli"
)

func main() {
	// Load .env if present (ignore error if missing)
	_ = godotenv.Load()

	os.Exit(cli.Main(os.Args[1:], os.Stdout, os.Stderr))
}
