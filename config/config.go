package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/Ramsey-B/thistle/pkg/database"
	"github.com/Ramsey-B/thistle/pkg/datastore/graph"
	"github.com/Ramsey-B/thistle/pkg/tracing/exporters"
	"github.com/ilyakaznacheev/cleanenv"
	"github.com/joho/godotenv"
)

const (
	DataStorePostgres = "postgres"
	DataStoreGraph    = "graph"
	DataStoreMemory   = "memory"
)

type Config struct {
	AppName                       string   `env:"APP_NAME" env-default:"thistle-api"`
	Version                       string   `env:"APP_VERSION" env-default:"dev"`
	Port                          int      `env:"PORT" env-default:"3004"`
	LogLevel                      string   `env:"LOG_LEVEL" env-default:"info"`
	PrettyLogs                    bool     `env:"PRETTY_LOGS" env-default:"false"`
	HttpServerWriteTimeoutSeconds int      `env:"HTTP_SERVER_WRITE_TIMEOUT_SECONDS" env-default:"10"`
	HttpServerReadTimeoutSeconds  int      `env:"HTTP_SERVER_READ_TIMEOUT_SECONDS" env-default:"10"`
	HttpServerIdleTimeoutSeconds  int      `env:"HTTP_SERVER_IDLE_TIMEOUT_SECONDS" env-default:"10"`
	MaxHeaderBytes                int      `env:"HTTP_SERVER_MAX_HEADER_BYTES" env-default:"64000"` // 64KB
	ReadHeaderTimeoutSeconds      int      `env:"HTTP_SERVER_READ_HEADER_TIMEOUT_SECONDS" env-default:"10"`
	ShutdownTimeoutSeconds        int      `env:"HTTP_SERVER_SHUTDOWN_TIMEOUT_SECONDS" env-default:"15"`
	AllowOrigins                  []string `env:"HTTP_SERVER_ALLOW_ORIGINS" env-default:"*"`
	StartupMaxAttempts            int      `env:"STARTUP_MAX_ATTEMPTS" env-default:"5"`

	// Which data store read operations execute against
	DataStore string `env:"DATA_STORE" env-default:"postgres"`
	// JSON rows loaded into the memory data store at startup
	MemorySeedPath string `env:"MEMORY_SEED_PATH" env-default:""`

	// PostgreSQL (entity metadata and postgres data store)
	DatabaseDriver          string        `env:"DB_DRIVER" env-default:"postgres"`
	DatabaseHost            string        `env:"DB_HOST" env-default:""`
	DatabasePort            string        `env:"DB_PORT" env-default:"5432"`
	DatabaseUserName        string        `env:"DB_USER_NAME" env-default:""`
	DatabasePassword        string        `env:"DB_PASSWORD" env-default:""`
	DatabaseName            string        `env:"DB_NAME" env-default:"thistle"`
	DatabaseSSLMode         string        `env:"DB_SQL_MODE" env-default:"disable"`
	DatabaseMaxOpenConns    int           `env:"DB_MAX_OPEN_CONNS" env-default:"25"`
	DatabaseMaxIdleConns    int           `env:"DB_MAX_IDLE_CONNS" env-default:"10"`
	DatabaseConnMaxLifetime time.Duration `env:"DB_CONN_MAX_LIFETIME" env-default:"10s"`

	// Migrations; an empty folder path uses the migrations embedded in the binary
	DatabaseMigrateOnStart      bool   `env:"DB_MIGRATE_ON_START" env-default:"true"`
	DatabaseMigrationFolderPath string `env:"DB_MIGRATION_FOLDER_PATH" env-default:""`
	DatabaseMigrationVersion    uint   `env:"DB_MIGRATION_VERSION" env-default:"0"`
	DatabaseMigrationForce      int    `env:"DB_MIGRATION_FORCE" env-default:"0"`

	// Graph Database (Memgraph)
	GraphDBHost     string `env:"GRAPH_DB_HOST" env-default:"localhost"`
	GraphDBPort     int    `env:"GRAPH_DB_PORT" env-default:"7687"`
	GraphDBUser     string `env:"GRAPH_DB_USER" env-default:""`
	GraphDBPassword string `env:"GRAPH_DB_PASSWORD" env-default:""`
	GraphDBName     string `env:"GRAPH_DB_NAME" env-default:""`
	GraphDBPoolSize int    `env:"GRAPH_DB_MAX_POOL_SIZE" env-default:"50"`

	// Auth
	AuthEnabled   bool   `env:"AUTH_ENABLED" env-default:"false"`
	AuthIssuerURL string `env:"AUTH_ISSUER_URL" env-default:""`
	AuthClientID  string `env:"AUTH_CLIENT_ID" env-default:""`

	// Capabilities
	DefaultMaximumLimit int `env:"DEFAULT_MAXIMUM_LIMIT" env-default:"100"`
	DefaultPageLimit    int `env:"DEFAULT_PAGE_LIMIT" env-default:"25"`
	MaxRelationDepth    int `env:"MAX_RELATION_DEPTH" env-default:"3"`

	// Tracing
	OTLPEndpoint string            `env:"OTEL_EXPORTER_OTLP_ENDPOINT" env-default:"localhost:4317"`
	OTLPProtocol string            `env:"OTEL_EXPORTER_OTLP_PROTOCOL" env-default:"none"`
	OTLPInsecure bool              `env:"OTEL_EXPORTER_OTLP_INSECURE" env-default:"true"`
	OTLPHeaders  map[string]string `env:"OTEL_EXPORTER_OTLP_HEADERS"`
	OTLPTimeout  time.Duration     `env:"OTEL_EXPORTER_OTLP_TIMEOUT" env-default:"10s"`
}

// Load reads an optional .env file, then the environment.
func Load(files ...string) (*Config, error) {
	// a missing .env is fine, the environment may already be populated
	_ = godotenv.Load(files...)

	var cfg Config
	if err := cleanenv.ReadEnv(&cfg); err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) Validate() error {
	c.DataStore = strings.ToLower(c.DataStore)
	switch c.DataStore {
	case DataStorePostgres, DataStoreGraph, DataStoreMemory:
	default:
		return fmt.Errorf("unknown data store '%s'", c.DataStore)
	}
	if c.DefaultMaximumLimit < 0 || c.DefaultPageLimit < 0 {
		return fmt.Errorf("page limits must not be negative")
	}
	if c.DefaultMaximumLimit > 0 && c.DefaultPageLimit > c.DefaultMaximumLimit {
		return fmt.Errorf("DEFAULT_PAGE_LIMIT %d exceeds DEFAULT_MAXIMUM_LIMIT %d", c.DefaultPageLimit, c.DefaultMaximumLimit)
	}
	if c.AuthEnabled && (c.AuthIssuerURL == "" || c.AuthClientID == "") {
		return fmt.Errorf("AUTH_ISSUER_URL and AUTH_CLIENT_ID are required when AUTH_ENABLED is set")
	}
	if c.MaxRelationDepth < 1 {
		return fmt.Errorf("MAX_RELATION_DEPTH must be at least 1")
	}
	return nil
}

func (c *Config) Database() database.Config {
	return database.Config{
		Driver:          c.DatabaseDriver,
		Host:            c.DatabaseHost,
		Port:            c.DatabasePort,
		UserName:        c.DatabaseUserName,
		Password:        c.DatabasePassword,
		Name:            c.DatabaseName,
		SSLMode:         c.DatabaseSSLMode,
		MaxOpenConns:    c.DatabaseMaxOpenConns,
		MaxIdleConns:    c.DatabaseMaxIdleConns,
		ConnMaxLifetime: c.DatabaseConnMaxLifetime,
	}
}

func (c *Config) Migration() database.MigrationConfig {
	return database.MigrationConfig{
		FolderPath: c.DatabaseMigrationFolderPath,
		Version:    c.DatabaseMigrationVersion,
		Force:      c.DatabaseMigrationForce,
	}
}

func (c *Config) Graph() graph.Config {
	return graph.Config{
		Host:        c.GraphDBHost,
		Port:        c.GraphDBPort,
		Username:    c.GraphDBUser,
		Password:    c.GraphDBPassword,
		Database:    c.GraphDBName,
		MaxPoolSize: c.GraphDBPoolSize,
	}
}

func (c *Config) OTLP() exporters.OTLPConfig {
	return exporters.OTLPConfig{
		Endpoint: c.OTLPEndpoint,
		Protocol: c.OTLPProtocol,
		Insecure: c.OTLPInsecure,
		Headers:  c.OTLPHeaders,
		Timeout:  c.OTLPTimeout,
	}
}
