package main

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"golang.org/x/term"

	"media-catalog/internal/database"
)

const (
	// Default timeout for database operations
	defaultTimeout = 30 * time.Second
	// Default database directory path
	defaultDatabaseDir = "/database"
)

func main() {
	if len(os.Args) < 3 && (len(os.Args) < 2 || os.Args[1] != "status") {
		printUsage()
		os.Exit(1)
	}

	command := os.Args[1]

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigChan
		fmt.Fprintln(os.Stderr, "\nInterrupted, shutting down...")
		cancel()
	}()

	databaseDir := os.Getenv("DATABASE_DIR")
	if databaseDir == "" {
		databaseDir = defaultDatabaseDir
	}
	dbPath := filepath.Join(databaseDir, "catalog.db")

	db, err := database.New(ctx, dbPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: Failed to connect to database: %v\n", err)
		fmt.Fprintf(os.Stderr, "Make sure DATABASE_DIR is set correctly (current: %s)\n", databaseDir)
		os.Exit(1)
	}
	defer func() {
		if err := db.Close(); err != nil {
			fmt.Fprintf(os.Stderr, "Warning: failed to close database: %v\n", err)
		}
	}()

	switch command {
	case "reset":
		if !resetPassword(ctx, db, os.Args[2]) {
			os.Exit(1)
		}
	case "create":
		if len(os.Args) < 4 {
			printUsage()
			os.Exit(1)
		}
		if !createUser(ctx, db, os.Args[2], os.Args[3]) {
			os.Exit(1)
		}
	case "status":
		showStatus(ctx, db)
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n", sanitizeCommand(command))
		printUsage()
		os.Exit(1)
	}
}

// sanitizeCommand returns a safe representation of a command string for
// display, replacing anything outside [a-zA-Z0-9_-] with '_'.
func sanitizeCommand(cmd string) string {
	var b strings.Builder
	b.Grow(len(cmd))
	for _, r := range cmd {
		if (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') || r == '-' || r == '_' {
			b.WriteRune(r)
		} else {
			b.WriteRune('_')
		}
	}
	return b.String()
}

func printUsage() {
	fmt.Println("Media Catalog Account Management")
	fmt.Println("")
	fmt.Println("Usage: resetpw <command>")
	fmt.Println("")
	fmt.Println("Commands:")
	fmt.Println("  reset <username>          - Reset a user's password")
	fmt.Println("  create <username> <role>  - Create a user (admin, reviewer or uploader)")
	fmt.Println("  status                    - Show whether any accounts exist")
	fmt.Println("")
	fmt.Println("Environment:")
	fmt.Printf("  DATABASE_DIR - Path to database directory (default: %s)\n", defaultDatabaseDir)
}

func promptPassword() ([]byte, bool) {
	fmt.Print("New Password: ")
	password, err := term.ReadPassword(syscall.Stdin)
	fmt.Println()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error reading password: %v\n", err)
		return nil, false
	}

	fmt.Print("Confirm Password: ")
	confirm, err := term.ReadPassword(syscall.Stdin)
	fmt.Println()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error reading password: %v\n", err)
		return nil, false
	}

	if !bytes.Equal(password, confirm) {
		fmt.Fprintln(os.Stderr, "Error: Passwords do not match")
		return nil, false
	}
	if len(password) < 6 {
		fmt.Fprintln(os.Stderr, "Error: Password must be at least 6 characters")
		return nil, false
	}
	return password, true
}

func resetPassword(ctx context.Context, db *database.Database, username string) bool {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	password, ok := promptPassword()
	if !ok {
		return false
	}

	if err := db.SetPassword(ctx, username, string(password)); err != nil {
		if errors.Is(err, database.ErrNotFound) {
			fmt.Fprintf(os.Stderr, "Error: No such user %q\n", username)
		} else {
			fmt.Fprintf(os.Stderr, "Error: Failed to update password: %v\n", err)
		}
		return false
	}

	fmt.Println("Password updated successfully.")
	return true
}

func createUser(ctx context.Context, db *database.Database, username, role string) bool {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	switch role {
	case database.RoleAdmin, database.RoleReviewer, database.RoleUploader:
	default:
		fmt.Fprintf(os.Stderr, "Error: role must be admin, reviewer or uploader\n")
		return false
	}

	password, ok := promptPassword()
	if !ok {
		return false
	}

	if _, err := db.CreateUser(ctx, username, string(password), role); err != nil {
		fmt.Fprintf(os.Stderr, "Error: Failed to create user: %v\n", err)
		return false
	}

	fmt.Printf("User %q created with role %s.\n", username, role)
	return true
}

func showStatus(ctx context.Context, db *database.Database) {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	if db.HasUsers(ctx) {
		fmt.Println("Status: Accounts are configured")
	} else {
		fmt.Println("Status: No accounts configured yet")
	}
}
