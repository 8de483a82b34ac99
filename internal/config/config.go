package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/onnwee/reddit-broker/internal/utils"
)

// Config holds application configuration derived from environment variables.
type Config struct {
	AppName string
	// AMQP connection settings
	AMQPHost     string
	AMQPPort     int
	AMQPVHost    string
	AMQPUsername string
	AMQPPassword string
	AMQPQueue    string
	// Reddit bot account credentials
	RedditUsername     string
	RedditPassword     string
	RedditClientID     string
	RedditClientSecret string
	UserAgent          string
	// Minimum spacing between quota-consuming Reddit calls
	MinTimeBetweenRequests time.Duration
	HTTPTimeout            time.Duration
	// Observability settings
	LogLevel          string  // log level: trace, debug, info, warn, error
	MetricsAddr       string  // listen address for /metrics and /health, empty disables
	OTELEnabled       bool    // enable OpenTelemetry tracing
	OTELEndpoint      string  // OpenTelemetry collector endpoint
	OTELSampleRate    float64 // trace sampling rate (0.0 to 1.0)
	SentryDSN         string  // Sentry DSN for error reporting
	SentryEnvironment string  // Sentry environment (dev, staging, production)
	SentryRelease     string  // Sentry release version
}

var cached *Config

// Load reads env vars once and caches them.
func Load() *Config {
	if cached != nil {
		return cached
	}
	cached = &Config{
		AppName:                utils.GetEnv("APPNAME", "reddit-broker"),
		AMQPHost:               utils.GetEnv("AMQP_HOST", "localhost"),
		AMQPPort:               utils.GetEnvAsInt("AMQP_PORT", 5672),
		AMQPVHost:              utils.GetEnv("AMQP_VHOST", "/"),
		AMQPUsername:           utils.GetEnv("AMQP_USERNAME", "guest"),
		AMQPPassword:           utils.GetEnv("AMQP_PASSWORD", "guest"),
		AMQPQueue:              utils.GetEnv("AMQP_QUEUE", "rproxy"),
		RedditUsername:         strings.TrimSpace(os.Getenv("REDDIT_USERNAME")),
		RedditPassword:         strings.TrimSpace(os.Getenv("REDDIT_PASSWORD")),
		RedditClientID:         strings.TrimSpace(os.Getenv("REDDIT_CLIENT_ID")),
		RedditClientSecret:     strings.TrimSpace(os.Getenv("REDDIT_CLIENT_SECRET")),
		UserAgent:              strings.TrimSpace(os.Getenv("USER_AGENT")),
		MinTimeBetweenRequests: secondsToDuration(utils.GetEnvAsFloat("MIN_TIME_BETWEEN_REQUESTS_S", 1.0)),
		HTTPTimeout:            time.Duration(utils.GetEnvAsInt("HTTP_TIMEOUT_MS", 30000)) * time.Millisecond,
		LogLevel:               strings.ToLower(utils.GetEnv("LOG_LEVEL", "info")),
		MetricsAddr:            strings.TrimSpace(os.Getenv("METRICS_ADDR")),
		OTELEnabled:            utils.GetEnvAsBool("OTEL_ENABLED", false),
		OTELEndpoint:           strings.TrimSpace(os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT")),
		OTELSampleRate:         utils.GetEnvAsFloat("OTEL_TRACE_SAMPLE_RATE", 0.1),
		SentryDSN:              strings.TrimSpace(os.Getenv("SENTRY_DSN")),
		SentryEnvironment:      strings.TrimSpace(os.Getenv("SENTRY_ENVIRONMENT")),
		SentryRelease:          strings.TrimSpace(os.Getenv("SENTRY_RELEASE")),
	}
	if cached.SentryEnvironment == "" {
		if env := os.Getenv("ENV"); env != "" {
			cached.SentryEnvironment = env
		} else {
			cached.SentryEnvironment = "development"
		}
	}
	// Reddit caps client timeouts at 30s of useful work; anything longer
	// just delays failure detection.
	if cached.HTTPTimeout > 30*time.Second {
		cached.HTTPTimeout = 30 * time.Second
	}
	return cached
}

// Validate checks that the settings required to talk to Reddit are present.
func (c *Config) Validate() error {
	missing := []string{}
	if c.RedditUsername == "" {
		missing = append(missing, "REDDIT_USERNAME")
	}
	if c.RedditPassword == "" {
		missing = append(missing, "REDDIT_PASSWORD")
	}
	if c.RedditClientID == "" {
		missing = append(missing, "REDDIT_CLIENT_ID")
	}
	if c.RedditClientSecret == "" {
		missing = append(missing, "REDDIT_CLIENT_SECRET")
	}
	if c.UserAgent == "" {
		missing = append(missing, "USER_AGENT")
	}
	if len(missing) > 0 {
		return fmt.Errorf("missing required environment variables: %s", strings.Join(missing, ", "))
	}
	if c.MinTimeBetweenRequests < 0 {
		return fmt.Errorf("MIN_TIME_BETWEEN_REQUESTS_S must not be negative")
	}
	return nil
}

// AMQPURL builds the amqp:// URL for the configured server.
func (c *Config) AMQPURL() string {
	vhost := c.AMQPVHost
	if vhost == "/" {
		vhost = ""
	}
	return fmt.Sprintf("amqp://%s:%s@%s:%d/%s", c.AMQPUsername, c.AMQPPassword, c.AMQPHost, c.AMQPPort, vhost)
}

func secondsToDuration(s float64) time.Duration {
	return time.Duration(s * float64(time.Second))
}

// ResetForTest clears cached config; for use in tests only.
func ResetForTest() { cached = nil }
