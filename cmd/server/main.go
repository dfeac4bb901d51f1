package main

import (
	"log"

	"github.com/joho/godotenv"

	"github.com/autolinkhq/autolink/internal/app"
)

func main() {
	// Local dev convenience; absence of a .env file is fine.
	_ = godotenv.Load()

	cfg := app.LoadConfig()

	application, err := app.New(cfg)
	if err != nil {
		log.Fatalf("failed to initialize application: %v", err)
	}

	if err := application.Run(); err != nil {
		log.Fatalf("application error: %v", err)
	}
}
