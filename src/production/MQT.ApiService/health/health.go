package health

import (
	"context"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"

	config "gitlab.com/maplesense1/mpt.site_dashboard/src/production/MQT.Config"
)

// Check status values
const (
	StatusOK       = "ok"
	StatusError    = "error"
	StatusDegraded = "degraded"
)

// Pinger is a dependency the readiness probe can check
type Pinger interface {
	Ping(ctx context.Context) error
}

// PingerFunc adapts a function to Pinger
type PingerFunc func(ctx context.Context) error

func (f PingerFunc) Ping(ctx context.Context) error { return f(ctx) }

// HealthChecker provides health check functionality
type HealthChecker struct {
	checks  map[string]Pinger
	order   []string
	timeout time.Duration
}

// NewHealthChecker creates a new health checker
func NewHealthChecker(timeout time.Duration) *HealthChecker {
	if timeout <= 0 {
		timeout = 2 * time.Second
	}
	return &HealthChecker{checks: make(map[string]Pinger), timeout: timeout}
}

// Register adds a named dependency check
func (h *HealthChecker) Register(name string, p Pinger) {
	if _, exists := h.checks[name]; !exists {
		h.order = append(h.order, name)
	}
	h.checks[name] = p
}

// MongoPinger checks the primary of a Mongo deployment
func MongoPinger(client *mongo.Client) Pinger {
	return PingerFunc(func(ctx context.Context) error {
		if client == nil {
			return fmt.Errorf("mongo client is nil")
		}
		return client.Ping(ctx, readpref.Primary())
	})
}

// RedisPinger checks a Redis server
func RedisPinger(client *redis.Client) Pinger {
	return PingerFunc(func(ctx context.Context) error {
		if client == nil {
			return fmt.Errorf("redis client is nil")
		}
		return client.Ping(ctx).Err()
	})
}

// GetHealthStatus returns the current health status. ready is false when any
// registered check fails.
func (h *HealthChecker) GetHealthStatus(ctx context.Context) (map[string]interface{}, bool) {
	checks := make(map[string]interface{}, len(h.order))
	status := map[string]interface{}{
		"timestamp": time.Now().UTC().Format(time.RFC3339),
		"checks":    checks,
	}

	ready := true
	for _, name := range h.order {
		checkCtx, cancel := context.WithTimeout(ctx, h.timeout)
		err := h.checks[name].Ping(checkCtx)
		cancel()

		if err != nil {
			ready = false
			checks[name] = map[string]interface{}{
				"status": StatusError,
				"error":  err.Error(),
			}
			continue
		}
		checks[name] = map[string]interface{}{"status": StatusOK}
	}

	status["status"] = StatusOK
	if !ready {
		status["status"] = StatusDegraded
	}
	return status, ready
}

// ConnectMongoWithTimeout creates a Mongo client and pings it within the timeout
func ConnectMongoWithTimeout(cfg *config.MongoConfig, timeout time.Duration) (*mongo.Client, error) {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	clientOptions := options.Client().ApplyURI(cfg.URI)
	clientOptions.SetServerSelectionTimeout(timeout)
	clientOptions.SetConnectTimeout(timeout)

	client, err := mongo.Connect(ctx, clientOptions)
	if err != nil {
		return nil, fmt.Errorf("unable to connect to MongoDB: %w", err)
	}

	if err := client.Ping(ctx, readpref.Primary()); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("unable to ping MongoDB: %w", err)
	}

	return client, nil
}

// ConnectRedisWithTimeout creates a Redis client and pings it within the timeout
func ConnectRedisWithTimeout(cfg *config.RedisConfig, timeout time.Duration) (*redis.Client, error) {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("unable to ping Redis: %w", err)
	}

	return client, nil
}

// Indexer is a repository that can bootstrap its indexes
type Indexer interface {
	EnsureIndexes(ctx context.Context) error
}

// DatabaseManager handles database bootstrap
type DatabaseManager struct {
	indexers []Indexer
}

// NewDatabaseManager creates a new database manager
func NewDatabaseManager(indexers ...Indexer) *DatabaseManager {
	return &DatabaseManager{indexers: indexers}
}

// CreateIndexes creates the required indexes if they don't exist
func (dm *DatabaseManager) CreateIndexes(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	for _, idx := range dm.indexers {
		if err := idx.EnsureIndexes(ctx); err != nil {
			return fmt.Errorf("failed to create indexes: %w", err)
		}
	}
	return nil
}
