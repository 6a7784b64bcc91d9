package container

import (
	"context"
	"fmt"

	"go.mongodb.org/mongo-driver/mongo"

	"gitlab.com/maplesense1/mpt.site_dashboard/src/production/MQT.ApiService/health"
	config "gitlab.com/maplesense1/mpt.site_dashboard/src/production/MQT.Config"
	logger "gitlab.com/maplesense1/mpt.site_dashboard/src/production/MQT.Logger"
	implementation "gitlab.com/maplesense1/mpt.site_dashboard/src/production/MQT.Repository/Implementation"
	interfaces "gitlab.com/maplesense1/mpt.site_dashboard/src/production/MQT.Repository/Interfaces"
)

// IngestorContainer manages dependencies for the MQTT Ingestor service
type IngestorContainer struct {
	config      *config.IngestorConfig
	logger      *logger.Logger
	mongoClient *mongo.Client
	events      interfaces.EventRepository
}

// NewIngestorContainer creates a new container for the MQTT Ingestor service
func NewIngestorContainer() (*IngestorContainer, error) {
	// Load ingestor-specific configuration
	cfg, err := config.LoadIngestorConfig()
	if err != nil {
		return nil, fmt.Errorf("failed to load ingestor configuration: %w", err)
	}

	// Initialize logger
	log := logger.NewLogger(&cfg.Logging)
	logger.SetGlobalLogger(log)

	return &IngestorContainer{
		config: cfg,
		logger: log,
	}, nil
}

// GetConfig returns the ingestor configuration
func (c *IngestorContainer) GetConfig() *config.IngestorConfig {
	return c.config
}

// GetLogger returns the logger
func (c *IngestorContainer) GetLogger() *logger.Logger {
	return c.logger
}

// GetMongoClient returns the Mongo client, or nil before GetEventRepository
// connected one or with the memory backend
func (c *IngestorContainer) GetMongoClient() *mongo.Client {
	return c.mongoClient
}

// GetEventRepository returns the event repository the ingestor writes to
func (c *IngestorContainer) GetEventRepository(ctx context.Context) (interfaces.EventRepository, error) {
	if c.events != nil {
		return c.events, nil
	}

	if c.config.Storage.Backend != config.StorageMongo {
		c.logger.Warn("ingestor running with in-memory event storage")
		c.events = implementation.NewMemoryEventRepository()
		return c.events, nil
	}

	client, err := health.ConnectMongoWithTimeout(&c.config.Mongo, connectTimeout(c.config.Mongo))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	c.mongoClient = client

	repo := implementation.NewMongoEventRepository(
		client.Database(c.config.Mongo.Database).Collection(c.config.Mongo.EventsCollection),
		c.config.Mongo.OpTimeout,
	)
	if err := repo.EnsureIndexes(ctx); err != nil {
		return nil, fmt.Errorf("failed to create event indexes: %w", err)
	}
	c.events = repo
	return c.events, nil
}

// Shutdown gracefully shuts down the ingestor container
func (c *IngestorContainer) Shutdown(ctx context.Context) error {
	c.logger.Info("Shutting down ingestor container...")
	if c.mongoClient != nil {
		if err := c.mongoClient.Disconnect(ctx); err != nil {
			c.logger.ErrorWithError(err, "Error closing database connection")
		}
	}
	c.logger.Info("Ingestor container shutdown complete")
	return nil
}
