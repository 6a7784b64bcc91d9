package container

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/go-redis/redis/v8"
	"go.mongodb.org/mongo-driver/mongo"

	"gitlab.com/maplesense1/mpt.site_dashboard/src/production/MQT.ApiService/health"
	aggregation "gitlab.com/maplesense1/mpt.site_dashboard/src/production/MQT.ApiService/implementation/aggregation"
	dashboard "gitlab.com/maplesense1/mpt.site_dashboard/src/production/MQT.ApiService/implementation/dashboard"
	drafts "gitlab.com/maplesense1/mpt.site_dashboard/src/production/MQT.ApiService/implementation/drafts"
	events "gitlab.com/maplesense1/mpt.site_dashboard/src/production/MQT.ApiService/implementation/events"
	labels "gitlab.com/maplesense1/mpt.site_dashboard/src/production/MQT.ApiService/implementation/labels"
	registry "gitlab.com/maplesense1/mpt.site_dashboard/src/production/MQT.ApiService/implementation/registry"
	config "gitlab.com/maplesense1/mpt.site_dashboard/src/production/MQT.Config"
	logger "gitlab.com/maplesense1/mpt.site_dashboard/src/production/MQT.Logger"
	implementation "gitlab.com/maplesense1/mpt.site_dashboard/src/production/MQT.Repository/Implementation"
	interfaces "gitlab.com/maplesense1/mpt.site_dashboard/src/production/MQT.Repository/Interfaces"
)

// Repositories groups the storage dependencies of the API service
type Repositories struct {
	Events interfaces.EventRepository
	Sites  interfaces.SiteRepository
	Locker interfaces.SiteLocker
	Drafts interfaces.DraftStore

	indexers []health.Indexer
}

// Services groups the API services wired over the repositories
type Services struct {
	Events      *events.Service
	Registry    *registry.Service
	Aggregation *aggregation.Service
	Labels      *labels.Catalog
	Drafts      *drafts.Service
	Dashboard   *dashboard.Service
}

// Container manages dependencies and their lifecycle
type Container struct {
	config *config.Config
	logger *logger.Logger

	mongoClient *mongo.Client
	redisClient *redis.Client

	repositories *Repositories
	services     *Services

	// Health components
	healthChecker   *health.HealthChecker
	databaseManager *health.DatabaseManager

	// Mutex for thread-safe access
	mu sync.Mutex

	// Cleanup functions
	cleanupFuncs []func() error
}

// ApiContainer manages dependencies for the API service
type ApiContainer struct {
	*Container
}

// NewApiContainer creates a new container for the API service
func NewApiContainer() (*ApiContainer, error) {
	// Load API-specific configuration
	cfg, err := config.LoadApiConfig()
	if err != nil {
		return nil, fmt.Errorf("failed to load API configuration: %w", err)
	}

	// Initialize logger
	log := logger.NewLogger(&cfg.Logging)
	logger.SetGlobalLogger(log)

	return NewApiContainerWithConfig(cfg, log), nil
}

// NewApiContainerWithConfig creates an API container from an already loaded configuration
func NewApiContainerWithConfig(cfg *config.Config, log *logger.Logger) *ApiContainer {
	return &ApiContainer{Container: &Container{
		config: cfg,
		logger: log,
	}}
}

// GetConfig returns the configuration
func (c *Container) GetConfig() *config.Config {
	return c.config
}

// GetLogger returns the logger
func (c *Container) GetLogger() *logger.Logger {
	return c.logger
}

// GetMongoClient returns the Mongo client, connecting on first use
func (c *Container) GetMongoClient() (*mongo.Client, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.mongoClientLocked()
}

func (c *Container) mongoClientLocked() (*mongo.Client, error) {
	if c.mongoClient == nil {
		client, err := health.ConnectMongoWithTimeout(&c.config.Mongo, connectTimeout(c.config.Mongo))
		if err != nil {
			return nil, fmt.Errorf("failed to connect to database: %w", err)
		}
		c.mongoClient = client
		c.cleanupFuncs = append(c.cleanupFuncs, func() error {
			return client.Disconnect(context.Background())
		})
	}
	return c.mongoClient, nil
}

// GetRedisClient returns the Redis client, or nil when Redis is not configured
func (c *Container) GetRedisClient() (*redis.Client, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.redisClientLocked()
}

func (c *Container) redisClientLocked() (*redis.Client, error) {
	if !c.config.RedisEnabled() {
		return nil, nil
	}
	if c.redisClient == nil {
		client, err := health.ConnectRedisWithTimeout(&c.config.Redis, connectTimeout(c.config.Mongo))
		if err != nil {
			return nil, fmt.Errorf("failed to connect to redis: %w", err)
		}
		c.redisClient = client
		c.cleanupFuncs = append(c.cleanupFuncs, client.Close)
	}
	return c.redisClient, nil
}

// GetRepositories builds the repositories for the configured backends
func (c *Container) GetRepositories() (*Repositories, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.repositories != nil {
		return c.repositories, nil
	}

	repos := &Repositories{}
	switch c.config.Storage.Backend {
	case config.StorageMongo:
		client, err := c.mongoClientLocked()
		if err != nil {
			return nil, err
		}
		db := client.Database(c.config.Mongo.Database)
		eventRepo := implementation.NewMongoEventRepository(db.Collection(c.config.Mongo.EventsCollection), c.config.Mongo.OpTimeout)
		siteRepo := implementation.NewMongoSiteRepository(db.Collection(c.config.Mongo.SitesCollection), c.config.Mongo.OpTimeout)
		repos.Events = eventRepo
		repos.Sites = siteRepo
		repos.indexers = []health.Indexer{eventRepo, siteRepo}
	default:
		repos.Events = implementation.NewMemoryEventRepository()
		repos.Sites = implementation.NewMemorySiteRepository()
	}

	redisClient, err := c.redisClientLocked()
	if err != nil {
		return nil, err
	}
	if redisClient != nil {
		repos.Locker = implementation.NewRedisSiteLocker(redisClient, c.config.Redis.SiteLockTTL)
		repos.Drafts = implementation.NewRedisDraftStore(redisClient, c.config.Drafts.TTL)
	} else {
		repos.Locker = implementation.NewMemorySiteLocker()
		repos.Drafts = implementation.NewMemoryDraftStore(c.config.Drafts.TTL)
	}

	c.logger.Logger.Info().
		Str("storage", c.config.Storage.Backend).
		Bool("redis", redisClient != nil).
		Msg("Repositories initialized")

	c.repositories = repos
	return repos, nil
}

// GetServices wires the API services over the repositories
func (c *Container) GetServices() (*Services, error) {
	repos, err := c.GetRepositories()
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.services != nil {
		return c.services, nil
	}

	catalogLabels, err := config.LoadLabelCatalog(c.config.Dashboard.LabelCatalogFile)
	if err != nil {
		return nil, fmt.Errorf("failed to load label catalog: %w", err)
	}

	eventService := events.NewService(repos.Events, c.logger)
	registryService := registry.NewService(repos.Sites, repos.Locker, c.logger)
	aggregationService := aggregation.NewService(repos.Sites, eventService, aggregation.Options{
		Concurrency:   c.config.Aggregation.Concurrency,
		LookupTimeout: c.config.Aggregation.LookupTimeout,
	}, c.logger)
	catalog := labels.NewCatalog(catalogLabels)

	c.services = &Services{
		Events:      eventService,
		Registry:    registryService,
		Aggregation: aggregationService,
		Labels:      catalog,
		Drafts:      drafts.NewService(repos.Drafts, registryService, catalog, c.logger),
		Dashboard: dashboard.NewService(aggregationService, dashboard.Options{
			MachineCount:   c.config.Dashboard.MachineCount,
			PollInterval:   c.config.Dashboard.PollInterval,
			AllowedOrigins: c.config.CORS.AllowedOrigins,
		}, c.logger),
	}
	return c.services, nil
}

// GetHealthChecker returns the health checker for the configured dependencies
func (c *Container) GetHealthChecker() *health.HealthChecker {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.healthChecker == nil {
		checker := health.NewHealthChecker(c.config.Mongo.OpTimeout)
		if c.mongoClient != nil {
			checker.Register("mongo", health.MongoPinger(c.mongoClient))
		}
		if c.redisClient != nil {
			checker.Register("redis", health.RedisPinger(c.redisClient))
		}
		c.healthChecker = checker
	}
	return c.healthChecker
}

// GetDatabaseManager returns the database manager
func (c *Container) GetDatabaseManager() (*health.DatabaseManager, error) {
	repos, err := c.GetRepositories()
	if err != nil {
		return nil, fmt.Errorf("failed to get repositories for database manager: %w", err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.databaseManager == nil {
		c.databaseManager = health.NewDatabaseManager(repos.indexers...)
	}
	return c.databaseManager, nil
}

// InitializeDatabase connects the storage backends and creates indexes
func (c *Container) InitializeDatabase(ctx context.Context) error {
	dbManager, err := c.GetDatabaseManager()
	if err != nil {
		return fmt.Errorf("failed to get database manager: %w", err)
	}

	if err := dbManager.CreateIndexes(ctx); err != nil {
		return fmt.Errorf("failed to create indexes: %w", err)
	}

	c.logger.Info("Database initialized successfully")
	return nil
}

// Shutdown gracefully shuts down the container and all its dependencies
func (c *Container) Shutdown(ctx context.Context) error {
	c.logger.Info("Shutting down container...")

	c.mu.Lock()
	funcs := c.cleanupFuncs
	c.cleanupFuncs = nil
	c.mu.Unlock()

	// Execute cleanup functions in reverse order
	for i := len(funcs) - 1; i >= 0; i-- {
		if err := funcs[i](); err != nil {
			c.logger.ErrorWithError(err, "Error during cleanup")
		}
	}

	c.logger.Info("Container shutdown complete")
	return nil
}

func connectTimeout(cfg config.MongoConfig) time.Duration {
	if cfg.ConnectTimeout <= 0 {
		return 20 * time.Second
	}
	return cfg.ConnectTimeout
}
