package main

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"

	"github.com/notevault/notevault-cli/internal/adapters/driving/cli"
)

func main() {
	// A .env file in the working directory is a convenience, not a
	// requirement.
	_ = godotenv.Load()

	if err := cli.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
