// Package main runs database migrations via the goose CLI.
//
// Usage:
//
//	DATABASE_URL=postgres://... migrate [up|down|status]
package main

import (
	"fmt"
	"os"
	"os/exec"
)

func main() {
	dsn := os.Getenv("DATABASE_URL")
	if dsn == "" {
		fmt.Println("DATABASE_URL environment variable is required")
		os.Exit(1)
	}

	command := "up"
	if len(os.Args) > 1 {
		command = os.Args[1]
	}
	switch command {
	case "up", "down", "status", "version":
	default:
		fmt.Printf("unknown command %q (want up, down, status or version)\n", command)
		os.Exit(1)
	}

	cmd := exec.Command("goose", "-dir", "db/migrations", "postgres", dsn, command)
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	if err := cmd.Run(); err != nil {
		fmt.Printf("migration failed: %v\n", err)
		os.Exit(1)
	}
}
