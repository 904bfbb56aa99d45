package main

import (
	"context"
	"flag"
	"fmt"
	"log"

	"github.com/sirupsen/logrus"
	"github.com/mindstash/mindstash-backend/internal/auth"
	"github.com/mindstash/mindstash-backend/internal/config"
	"github.com/mindstash/mindstash-backend/internal/database"
	"github.com/mindstash/mindstash-backend/internal/repository/postgres"
)

// createuser bootstraps an account from the command line, mostly for local
// development and first-run setup.
func main() {
	var (
		email    = flag.String("email", "", "User email")
		password = flag.String("password", "", "User password")
	)
	flag.Parse()

	if *email == "" || *password == "" {
		log.Fatal("both -email and -password are required")
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatal("Failed to load configuration: ", err)
	}

	// Only database warnings reach the CLI output
	dbLog := logrus.New()
	dbLog.SetLevel(logrus.WarnLevel)

	db, err := database.NewConnection(cfg.Database, dbLog)
	if err != nil {
		log.Fatal("Failed to connect to database: ", err)
	}
	defer db.Close()

	if err := database.RunMigrations(cfg.Database, dbLog); err != nil {
		log.Fatal("Failed to run migrations: ", err)
	}

	userRepo := postgres.NewUserRepository(db.DB)
	authService := auth.NewService(userRepo, cfg.JWTSecret)

	user, tokens, err := authService.Register(context.Background(), *email, *password)
	if err != nil {
		log.Fatal("Failed to create user: ", err)
	}

	fmt.Printf("Created user %s (%s)\n", user.Email, user.ID)
	fmt.Printf("Access token: %s\n", tokens.AccessToken)
}
