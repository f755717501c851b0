package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/joho/godotenv"

	"github.com/intermernet/afterlife/internal/api"
	"github.com/intermernet/afterlife/internal/config"
	"github.com/intermernet/afterlife/internal/database"
	"github.com/intermernet/afterlife/internal/email"
	"github.com/intermernet/afterlife/internal/realtime"
)

// main is the entry point for the events server.
func main() {
	// --- 1. Load Configuration ---
	// A .env file is optional; in production the variables come from the environment.
	if err := godotenv.Load(); err != nil {
		log.Println("INFO: No .env file found, using environment variables from the system.")
	}

	cfg, err := config.New()
	if err != nil {
		log.Fatalf("FATAL: Failed to load application configuration: %v", err)
	}

	// --- 2. Ensure Required Directories Exist ---
	if err := os.MkdirAll(cfg.DbPath, 0755); err != nil {
		log.Fatalf("FATAL: Failed to create database directory at %s: %v", cfg.DbPath, err)
	}

	// --- 3. Initialize Database Service ---
	dbService, err := database.NewService(cfg.DbFile)
	if err != nil {
		log.Fatalf("FATAL: Failed to initialize database service: %v", err)
	}
	defer dbService.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := dbService.InitSchema(ctx); err != nil {
		log.Fatalf("FATAL: Failed to initialize database schema: %v", err)
	}
	log.Printf("INFO: Database ready at %s", cfg.DbFile)

	// --- 4. Realtime Broker and Mailer ---
	broker := realtime.NewBroker()

	emailService := email.NewEmailService(email.SMTPServerConfig{
		Host:     cfg.SmtpHost,
		Port:     cfg.SmtpPort,
		Username: cfg.SmtpUser,
		Password: cfg.SmtpPass,
		Sender:   cfg.SmtpSender,
	})
	if !emailService.Configured() {
		log.Println("WARN: SMTP_HOST is not set, invitation and cancellation emails will fail.")
	}

	// --- 5. Set Up API Server and Routes ---
	serverAPI := api.NewServer(cfg, dbService, broker, emailService)
	router := chi.NewRouter()
	serverAPI.RegisterRoutes(router)

	// --- 6. Start the HTTP Server ---
	srv := &http.Server{
		Addr:              cfg.ServerAddr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		log.Println("INFO: Shutting down server...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Printf("ERROR: Graceful shutdown failed: %v", err)
		}
	}()

	log.Printf("INFO: Events server starting on %s", cfg.ServerAddr)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Fatalf("FATAL: Failed to start server: %v", err)
	}
}
