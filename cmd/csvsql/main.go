package main

import (
	"context"
	"fmt"
	"os"

	"github.com/JonMunkholm/csvsql/internal/cli"
	"github.com/JonMunkholm/csvsql/internal/config"
	"github.com/joho/godotenv"
)

func main() {
	// Load .env file if it exists (Overload overwrites existing env vars)
	_ = godotenv.Overload()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(cli.ExitFailure)
	}

	os.Exit(cli.Execute(context.Background(), cfg, os.Args[1:]))
}
