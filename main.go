package main

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"

	"lsd-bridge/cmd"
)

func main() {
	// A missing .env file is fine; settings come from the environment
	// or the config file instead.
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		fmt.Fprintf(os.Stderr, "Warning: failed to load .env file: %v\n", err)
	}

	if err := cmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
