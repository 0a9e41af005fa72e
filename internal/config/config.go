package config

import (
	"fmt"
	"os"
)

// StoreBackend selects the idempotency cache implementation.
type StoreBackend string

const (
	BackendPostgres StoreBackend = "postgres"
	BackendDynamoDB StoreBackend = "dynamodb"
	BackendMemory   StoreBackend = "memory"
)

type Config struct {
	Port string
	Env  string

	StoreBackend StoreBackend
	// DBSource is required when StoreBackend is postgres.
	DBSource string
	// DynamoTable and AWSRegion are required when StoreBackend is dynamodb.
	DynamoTable    string
	AWSRegion      string
	DynamoEndpoint string

	LedgerURL       string
	IdentityURL     string
	ProcessorURL    string
	ProcessorAPIKey string
	WebhookSecret   string
}

func Load() (*Config, error) {
	cfg := &Config{
		Port:           getEnv("SERVER_PORT", "8080"),
		Env:            getEnv("ENVIRONMENT", "development"),
		StoreBackend:   StoreBackend(getEnv("IDEMPOTENCY_BACKEND", string(BackendPostgres))),
		DBSource:       os.Getenv("DB_SOURCE"),
		DynamoTable:    getEnv("DYNAMO_TABLE", "idempotency_keys"),
		AWSRegion:      getEnv("AWS_REGION", "eu-north-1"),
		DynamoEndpoint: os.Getenv("DYNAMO_ENDPOINT"),
		LedgerURL:      os.Getenv("LEDGER_URL"),
		IdentityURL:    os.Getenv("IDENTITY_URL"),
		ProcessorURL:   os.Getenv("PROCESSOR_URL"),

		ProcessorAPIKey: os.Getenv("PROCESSOR_API_KEY"),
		WebhookSecret:   os.Getenv("WEBHOOK_SECRET"),
	}

	switch cfg.StoreBackend {
	case BackendPostgres:
		if cfg.DBSource == "" {
			return nil, fmt.Errorf("DB_SOURCE environment variable is required for the postgres backend")
		}
	case BackendDynamoDB, BackendMemory:
	default:
		return nil, fmt.Errorf("unknown IDEMPOTENCY_BACKEND %q", cfg.StoreBackend)
	}

	if cfg.LedgerURL == "" {
		return nil, fmt.Errorf("LEDGER_URL environment variable is required")
	}
	if cfg.IdentityURL == "" {
		return nil, fmt.Errorf("IDENTITY_URL environment variable is required")
	}
	if cfg.ProcessorURL == "" {
		return nil, fmt.Errorf("PROCESSOR_URL environment variable is required")
	}
	if cfg.WebhookSecret == "" {
		return nil, fmt.Errorf("WEBHOOK_SECRET environment variable is required")
	}

	return cfg, nil
}

func getEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}
