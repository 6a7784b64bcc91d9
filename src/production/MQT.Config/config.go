package config

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Storage backends
const (
	StorageMongo  = "mongo"
	StorageMemory = "memory"
)

// Config holds all API service configuration
type Config struct {
	// Server configuration
	Server ServerConfig `json:"server"`

	// Storage configuration
	Storage StorageConfig `json:"storage"`

	// Mongo configuration
	Mongo MongoConfig `json:"mongo"`

	// Redis configuration (optional)
	Redis RedisConfig `json:"redis"`

	// Aggregation configuration
	Aggregation AggregationConfig `json:"aggregation"`

	// Dashboard configuration
	Dashboard DashboardConfig `json:"dashboard"`

	// Drafts configuration
	Drafts DraftConfig `json:"drafts"`

	// Logging configuration
	Logging LoggingConfig `json:"logging"`

	// CORS configuration
	CORS CORSConfig `json:"cors"`
}

// ServerConfig holds server-related configuration
type ServerConfig struct {
	Port         string        `json:"port"`
	ReadTimeout  time.Duration `json:"read_timeout"`
	WriteTimeout time.Duration `json:"write_timeout"`
	IdleTimeout  time.Duration `json:"idle_timeout"`
}

// StorageConfig selects the persistence backend
type StorageConfig struct {
	Backend string `json:"backend"` // mongo or memory
}

// MongoConfig holds document store configuration
type MongoConfig struct {
	URI              string        `json:"uri"`
	Database         string        `json:"database"`
	EventsCollection string        `json:"events_collection"`
	SitesCollection  string        `json:"sites_collection"`
	ConnectTimeout   time.Duration `json:"connect_timeout"`
	OpTimeout        time.Duration `json:"op_timeout"`
}

// RedisConfig holds Redis configuration. An empty Addr disables Redis.
type RedisConfig struct {
	Addr        string        `json:"addr"`
	Password    string        `json:"password"`
	DB          int           `json:"db"`
	SiteLockTTL time.Duration `json:"site_lock_ttl"`
}

// AggregationConfig controls the latest-event fan-out
type AggregationConfig struct {
	Concurrency   int           `json:"concurrency"`
	LookupTimeout time.Duration `json:"lookup_timeout"`
}

// DashboardConfig controls the machine-status board
type DashboardConfig struct {
	PollInterval     time.Duration `json:"poll_interval"`
	MachineCount     int           `json:"machine_count"`
	LabelCatalogFile string        `json:"label_catalog_file"`
}

// DraftConfig controls registration drafts
type DraftConfig struct {
	TTL time.Duration `json:"ttl"`
}

// MQTTConfig holds MQTT-related configuration
type MQTTConfig struct {
	BrokerHost  string        `json:"broker_host"`
	BrokerPort  int           `json:"broker_port"`
	BrokerUser  string        `json:"broker_user"`
	BrokerPass  string        `json:"broker_pass"`
	UseTLS      bool          `json:"use_tls"`
	CACertPath  string        `json:"ca_cert_path"`
	Topic       string        `json:"topic"`
	ErrorTopic  string        `json:"error_topic"`
	ClientID    string        `json:"client_id"`
	SharedGroup string        `json:"shared_group"`
	KeepAlive   time.Duration `json:"keep_alive"`
	PingTimeout time.Duration `json:"ping_timeout"`
}

// LoggingConfig holds logging-related configuration
type LoggingConfig struct {
	Level        string `json:"level"`
	Format       string `json:"format"` // json or text
	Output       string `json:"output"` // stdout or stderr
	EnableCaller bool   `json:"enable_caller"`
}

// CORSConfig holds CORS-related configuration
type CORSConfig struct {
	AllowedOrigins   []string `json:"allowed_origins"`
	AllowedMethods   []string `json:"allowed_methods"`
	AllowedHeaders   []string `json:"allowed_headers"`
	ExposedHeaders   []string `json:"exposed_headers"`
	AllowCredentials bool     `json:"allow_credentials"`
	MaxAge           int      `json:"max_age"`
}

// BatchConfig holds batch processing configuration
type BatchConfig struct {
	Size   int           `json:"size"`
	Window time.Duration `json:"window"`
}

// IngestorConfig holds configuration for the MQTT Ingestor service
type IngestorConfig struct {
	Server  ServerConfig  `json:"server"`
	Storage StorageConfig `json:"storage"`
	Mongo   MongoConfig   `json:"mongo"`
	MQTT    MQTTConfig    `json:"mqtt"`
	Batch   BatchConfig   `json:"batch"`
	Logging LoggingConfig `json:"logging"`
}

// LoadIngestorConfig loads configuration for the MQTT Ingestor service
func LoadIngestorConfig() (*IngestorConfig, error) {
	// Try to load .env file, but don't fail if it doesn't exist
	_ = godotenv.Load()

	cfg := &IngestorConfig{
		Server: ServerConfig{
			Port:         getEnv("INGESTOR_PORT", "9003"),
			ReadTimeout:  getDuration("READ_TIMEOUT", 30*time.Second),
			WriteTimeout: getDuration("WRITE_TIMEOUT", 30*time.Second),
			IdleTimeout:  getDuration("IDLE_TIMEOUT", 120*time.Second),
		},
		Storage: loadStorage(),
		Mongo:   loadMongo(),
		MQTT: MQTTConfig{
			BrokerHost:  getEnv("BROKER_HOST", "localhost"),
			BrokerPort:  getInt("BROKER_PORT", 1883),
			BrokerUser:  getEnv("BROKER_USER", ""),
			BrokerPass:  getEnv("BROKER_PASS", ""),
			UseTLS:      getBool("BROKER_TLS", false),
			CACertPath:  getEnv("BROKER_CA_FILE", ""),
			Topic:       getEnv("MQTT_TOPIC", "devices/+/+/+"),
			ErrorTopic:  getEnv("MQTT_ERROR_TOPIC", "ingestor/errors"),
			ClientID:    getEnv("MQTT_CLIENT_ID", "event-ingestor"),
			SharedGroup: getEnv("MQTT_SHARED_GROUP", ""),
			KeepAlive:   getDuration("MQTT_KEEP_ALIVE", 30*time.Second),
			PingTimeout: getDuration("MQTT_PING_TIMEOUT", 10*time.Second),
		},
		Batch: BatchConfig{
			Size:   getInt("BATCH_SIZE", 200),
			Window: getDuration("BATCH_WINDOW", 1*time.Second),
		},
		Logging: loadLogging(),
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

// Validate validates the ingestor configuration
func (c *IngestorConfig) Validate() error {
	if err := validateStorage(c.Storage, c.Mongo); err != nil {
		return err
	}
	if c.MQTT.BrokerHost == "" {
		return fmt.Errorf("BROKER_HOST is required")
	}
	if c.Batch.Size <= 0 {
		return fmt.Errorf("BATCH_SIZE must be positive")
	}
	if c.Batch.Window <= 0 {
		return fmt.Errorf("BATCH_WINDOW must be positive")
	}
	return nil
}

// BrokerURL returns the MQTT broker URL
func (c *IngestorConfig) BrokerURL() string {
	scheme := "tcp"
	if c.MQTT.UseTLS {
		scheme = "tcps"
	}
	return fmt.Sprintf("%s://%s:%d", scheme, c.MQTT.BrokerHost, c.MQTT.BrokerPort)
}

// LoadApiConfig loads configuration for the API service
func LoadApiConfig() (*Config, error) {
	// Try to load .env file, but don't fail if it doesn't exist
	_ = godotenv.Load()

	cfg := &Config{
		Server: ServerConfig{
			Port:         getEnv("PORT", "3000"),
			ReadTimeout:  getDuration("READ_TIMEOUT", 30*time.Second),
			WriteTimeout: getDuration("WRITE_TIMEOUT", 30*time.Second),
			IdleTimeout:  getDuration("IDLE_TIMEOUT", 120*time.Second),
		},
		Storage: loadStorage(),
		Mongo:   loadMongo(),
		Redis: RedisConfig{
			Addr:        getEnv("REDIS_ADDR", ""),
			Password:    getEnv("REDIS_PASSWORD", ""),
			DB:          getInt("REDIS_DB", 0),
			SiteLockTTL: getDuration("SITE_LOCK_TTL", 10*time.Second),
		},
		Aggregation: AggregationConfig{
			Concurrency:   getInt("AGGREGATION_CONCURRENCY", 8),
			LookupTimeout: getDuration("AGGREGATION_LOOKUP_TIMEOUT", 3*time.Second),
		},
		Dashboard: DashboardConfig{
			PollInterval:     getDuration("DASHBOARD_POLL_INTERVAL", 5*time.Second),
			MachineCount:     getInt("DASHBOARD_MACHINE_COUNT", 16),
			LabelCatalogFile: getEnv("LABEL_CATALOG_FILE", ""),
		},
		Drafts: DraftConfig{
			TTL: getDuration("DRAFT_TTL", 24*time.Hour),
		},
		Logging: loadLogging(),
		CORS: CORSConfig{
			AllowedOrigins:   getStringSlice("CORS_ALLOWED_ORIGINS", []string{"http://localhost:3001"}),
			AllowedMethods:   getStringSlice("CORS_ALLOWED_METHODS", []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"}),
			AllowedHeaders:   getStringSlice("CORS_ALLOWED_HEADERS", []string{"Origin", "Content-Type", "Accept"}),
			ExposedHeaders:   getStringSlice("CORS_EXPOSED_HEADERS", []string{"Content-Length", "Content-Disposition"}),
			AllowCredentials: getBool("CORS_ALLOW_CREDENTIALS", false),
			MaxAge:           getInt("CORS_MAX_AGE", 43200), // 12 hours
		},
	}

	// Validate configuration
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if err := validateStorage(c.Storage, c.Mongo); err != nil {
		return err
	}
	if c.Aggregation.Concurrency <= 0 {
		return fmt.Errorf("AGGREGATION_CONCURRENCY must be positive")
	}
	if c.Aggregation.LookupTimeout <= 0 {
		return fmt.Errorf("AGGREGATION_LOOKUP_TIMEOUT must be positive")
	}
	if c.Dashboard.PollInterval < time.Second {
		return fmt.Errorf("DASHBOARD_POLL_INTERVAL must be at least 1s")
	}
	if c.Dashboard.MachineCount <= 0 {
		return fmt.Errorf("DASHBOARD_MACHINE_COUNT must be positive")
	}
	if c.Redis.Addr != "" && c.Redis.SiteLockTTL <= 0 {
		return fmt.Errorf("SITE_LOCK_TTL must be positive")
	}
	if c.Drafts.TTL <= 0 {
		return fmt.Errorf("DRAFT_TTL must be positive")
	}
	return nil
}

// RedisEnabled reports whether a Redis address is configured
func (c *Config) RedisEnabled() bool {
	return c.Redis.Addr != ""
}

func loadStorage() StorageConfig {
	return StorageConfig{
		Backend: strings.ToLower(getEnv("STORAGE_BACKEND", StorageMongo)),
	}
}

func loadMongo() MongoConfig {
	return MongoConfig{
		URI:              getEnv("MONGODB_URI", ""),
		Database:         getEnv("DB_NAME", "isa_qa"),
		EventsCollection: getEnv("EVENTS_COLLECTION", "device_events"),
		SitesCollection:  getEnv("SITES_COLLECTION", "device_motherson"),
		ConnectTimeout:   getDuration("MONGO_CONNECT_TIMEOUT", 20*time.Second),
		OpTimeout:        getDuration("MONGO_TIMEOUT", 5*time.Second),
	}
}

func loadLogging() LoggingConfig {
	return LoggingConfig{
		Level:        getEnv("LOG_LEVEL", "info"),
		Format:       getEnv("LOG_FORMAT", "text"),
		Output:       getEnv("LOG_OUTPUT", "stdout"),
		EnableCaller: getBool("LOG_ENABLE_CALLER", false),
	}
}

func validateStorage(s StorageConfig, m MongoConfig) error {
	switch s.Backend {
	case StorageMongo:
		if m.URI == "" {
			return fmt.Errorf("MONGODB_URI is required when STORAGE_BACKEND=mongo")
		}
		if m.Database == "" {
			return fmt.Errorf("DB_NAME is required")
		}
		if m.OpTimeout <= 0 {
			return fmt.Errorf("MONGO_TIMEOUT must be positive")
		}
	case StorageMemory:
	default:
		return fmt.Errorf("unknown STORAGE_BACKEND %q (expected mongo or memory)", s.Backend)
	}
	return nil
}

// Helper functions for environment variable parsing

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getInt(key string, defaultValue int) int {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	intValue, err := strconv.Atoi(value)
	if err != nil {
		log.Fatalf("invalid %s: %v", key, err)
	}
	return intValue
}

func getBool(key string, defaultValue bool) bool {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	if value == "1" || value == "true" || value == "TRUE" {
		return true
	}
	if value == "0" || value == "false" || value == "FALSE" {
		return false
	}
	log.Fatalf("invalid %s: %q (expected true/false or 1/0)", key, value)
	return defaultValue
}

func getDuration(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	duration, err := time.ParseDuration(value)
	if err != nil {
		log.Fatalf("invalid %s: %v", key, err)
	}
	return duration
}

func getStringSlice(key string, defaultValue []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	parts := make([]string, 0)
	for _, part := range strings.Split(value, ",") {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			parts = append(parts, trimmed)
		}
	}
	return parts
}
