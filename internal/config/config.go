package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
)

// Config holds all configuration for the events server. Values come from the
// environment, optionally seeded from a .env file by the caller.
type Config struct {
	// --- Server & Paths ---
	ServerAddr string
	DataPath   string
	DbPath     string
	DbFile     string
	AppURL     string

	// --- Security ---
	JwtSecret string

	// --- Email (SMTP) ---
	SmtpHost   string
	SmtpPort   int
	SmtpUser   string
	SmtpPass   string
	SmtpSender string

	// --- Google OAuth 2.0 (optional) ---
	GoogleOauthClientID     string
	GoogleOauthClientSecret string
	GoogleOauthRedirectURL  string

	// ParsedAppURL is APP_URL parsed once, used for CORS and the SSE origin header.
	ParsedAppURL *url.URL
}

// New creates a Config from environment variables. It fails fast when a value
// the server cannot run without is missing or malformed.
func New() (*Config, error) {
	port := 0
	if raw := os.Getenv("SMTP_PORT"); raw != "" {
		p, err := strconv.Atoi(raw)
		if err != nil {
			return nil, fmt.Errorf("invalid SMTP_PORT %q: %w", raw, err)
		}
		port = p
	}

	cfg := &Config{
		ServerAddr:              os.Getenv("SERVER_ADDR"),
		DataPath:                os.Getenv("DATA_PATH"),
		JwtSecret:               os.Getenv("JWT_SECRET"),
		AppURL:                  os.Getenv("APP_URL"),
		SmtpHost:                os.Getenv("SMTP_HOST"),
		SmtpPort:                port,
		SmtpUser:                os.Getenv("SMTP_USER"),
		SmtpPass:                os.Getenv("SMTP_PASS"),
		SmtpSender:              os.Getenv("SMTP_SENDER"),
		GoogleOauthClientID:     os.Getenv("GOOGLE_OAUTH_CLIENT_ID"),
		GoogleOauthClientSecret: os.Getenv("GOOGLE_OAUTH_CLIENT_SECRET"),
		GoogleOauthRedirectURL:  os.Getenv("GOOGLE_OAUTH_REDIRECT_URL"),
	}

	// --- Defaults for non-critical values ---
	if cfg.DataPath == "" {
		cfg.DataPath = "./data"
	}
	if cfg.ServerAddr == "" {
		cfg.ServerAddr = ":8080"
	}
	if cfg.SmtpPort == 0 {
		cfg.SmtpPort = 587
	}

	// --- Required values ---
	if cfg.JwtSecret == "" {
		return nil, errors.New("JWT_SECRET environment variable is not set")
	}
	if cfg.AppURL == "" {
		return nil, errors.New("APP_URL environment variable is not set")
	}

	parsedURL, err := url.Parse(cfg.AppURL)
	if err != nil || parsedURL.Scheme == "" || parsedURL.Host == "" {
		return nil, fmt.Errorf("invalid APP_URL %q", cfg.AppURL)
	}
	cfg.ParsedAppURL = parsedURL

	cfg.DbPath = filepath.Join(cfg.DataPath, "databases")
	cfg.DbFile = filepath.Join(cfg.DbPath, "afterlife.db")

	return cfg, nil
}

// GoogleLoginEnabled reports whether both Google OAuth credentials are present.
func (c *Config) GoogleLoginEnabled() bool {
	return c.GoogleOauthClientID != "" && c.GoogleOauthClientSecret != ""
}

// EventURL builds the public link to an event page on the web app.
func (c *Config) EventURL(eventID string) string {
	return c.ParsedAppURL.JoinPath("events", eventID).String()
}
