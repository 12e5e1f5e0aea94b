package main

import (
	"os"

	"github.com/joho/godotenv"

	"github.com/bintoss/backend/internal/admin"
	"github.com/bintoss/backend/internal/config"
	"github.com/bintoss/backend/internal/database"
	"github.com/bintoss/backend/internal/logging"
)

func main() {
	// Load environment variables
	if err := godotenv.Load(); err != nil {
		logging.S.Info("No .env file found, using environment variables")
	}

	// Initialize configuration
	cfg := config.Load()
	logging.Init(cfg.Environment)
	defer logging.Sync()

	// Initialize database
	db, err := database.Connect(cfg.DatabaseURL)
	if err != nil {
		logging.S.Fatalf("Failed to connect to database: %v", err)
	}
	defer db.Close()

	// Seed admin account
	username := os.Getenv("ADMIN_USERNAME")
	if username == "" {
		username = "admin"
		logging.S.Infof("Using default admin username: %s", username)
	}

	password := os.Getenv("ADMIN_PASSWORD")
	if password == "" {
		password = "change-me-in-production"
		logging.S.Warn("WARNING: Using default admin password. Set ADMIN_PASSWORD env var in production!")
	}

	displayName := "Admin"
	roles := []string{"super_admin"}
	allowedIPs := []string{} // Empty = allow from any IP

	err = admin.CreateAdminAccount(db, username, displayName, password, roles, allowedIPs)
	if err != nil {
		logging.S.Fatalf("Failed to create admin account: %v", err)
	}

	logging.S.Info("✓ Admin account created/updated successfully")
	logging.S.Infof("  Username: %s", username)
	logging.S.Infof("  Display Name: %s", displayName)
	logging.S.Infof("  Roles: %v", roles)
	logging.S.Info("You can now login at /api/v1/admin/login with these credentials")
}
