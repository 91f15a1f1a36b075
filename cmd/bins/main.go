package main

import (
	"context"
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"go.uber.org/automaxprocs/maxprocs"

	"github.com/adiazny/bin-calendar/cmd/bins/commands"
)

func main() {
	// A missing .env is normal outside development.
	_ = godotenv.Load()

	if _, err := maxprocs.Set(); err != nil {
		fmt.Fprintf(os.Stderr, "error setting GOMAXPROCS %v\n", err)
		os.Exit(1)
	}

	commands.ExecuteContext(context.Background())
}
