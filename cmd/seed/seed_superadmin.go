package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/wize-works/helpNINJA-sub004/internal/config"
	"github.com/wize-works/helpNINJA-sub004/models"
	"github.com/wize-works/helpNINJA-sub004/utils"

	"github.com/joho/godotenv"
	"go.mongodb.org/mongo-driver/bson"
)

// Seeds the initial superadmin account. Safe to run repeatedly: exits
// without writing if a superadmin already exists.
func main() {
	_ = godotenv.Load()

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	client, err := config.ConnectMongoDB(cfg)
	if err != nil {
		log.Fatalf("Failed to connect to MongoDB: %v", err)
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		client.Disconnect(ctx)
	}()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	users := client.Database(cfg.DBName).Collection("users")

	var existing models.User
	if err := users.FindOne(ctx, bson.M{"role": "superadmin"}).Decode(&existing); err == nil {
		fmt.Printf("Superadmin already exists: %s\n", existing.Username)
		return
	}

	username := os.Getenv("SUPERADMIN_USERNAME")
	if username == "" {
		username = "superadmin"
	}
	password := os.Getenv("SUPERADMIN_PASSWORD")
	if password == "" {
		log.Fatal("SUPERADMIN_PASSWORD must be set")
	}
	email := os.Getenv("SUPERADMIN_EMAIL")

	hashed, err := utils.HashPassword(password, cfg.BcryptCost)
	if err != nil {
		log.Fatalf("Failed to hash password: %v", err)
	}

	now := time.Now()
	user := models.User{
		Username:     username,
		Name:         "Super Administrator",
		Email:        email,
		PasswordHash: hashed,
		Role:         "superadmin",
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	if _, err := users.InsertOne(ctx, user); err != nil {
		log.Fatalf("Failed to insert superadmin: %v", err)
	}
	fmt.Printf("Superadmin %q created\n", username)
}
