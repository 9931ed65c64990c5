// Package config assembles a fully wired content service from
// declarative configuration.
package config

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	vc "github.com/structcms/versioned-content/pkg/versionedcontent"
	"github.com/structcms/versioned-content/pkg/versionedcontent/cache"
	repomemory "github.com/structcms/versioned-content/pkg/versionedcontent/repo/memory"
	repopg "github.com/structcms/versioned-content/pkg/versionedcontent/repo/postgres"
	"github.com/structcms/versioned-content/pkg/versionedcontent/schema"
	fsstorage "github.com/structcms/versioned-content/pkg/versionedcontent/storage/fs"
	memorystorage "github.com/structcms/versioned-content/pkg/versionedcontent/storage/memory"
	s3storage "github.com/structcms/versioned-content/pkg/versionedcontent/storage/s3"
)

// Option applies configuration to a ServerConfig instance.
type Option func(*ServerConfig) error

// Load constructs a ServerConfig by applying the supplied options on top
// of library defaults.
func Load(opts ...Option) (*ServerConfig, error) {
	cfg := defaults()

	for _, opt := range opts {
		if opt == nil {
			continue
		}
		if err := opt(&cfg); err != nil {
			return nil, err
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func defaults() ServerConfig {
	return ServerConfig{
		Port:                  "8080",
		Environment:           "development",
		DatabaseType:          "memory",
		DefaultStorageBackend: "memory",
		StorageBackends: []StorageBackendConfig{
			{
				Name:   "memory",
				Type:   "memory",
				Config: map[string]interface{}{},
			},
		},
		Languages: []LanguageConfig{
			{ID: 2, Code: "eng-GB"},
		},
		EnableTypeCache:   true,
		TypeCacheTTL:      5 * time.Minute,
		ArchivedRetention: 30 * 24 * time.Hour,
		ArchivedKeepMin:   1,
		PruneSchedule:     "@hourly",
		AutoMigrate:       true,
	}
}

// ServerConfig represents server configuration for the content service
type ServerConfig struct {
	Port        string
	Environment string // development, production, testing

	// Database configuration
	DatabaseURL  string
	DatabaseType string // "memory", "postgres"
	AutoMigrate  bool

	// External field storage configuration
	DefaultStorageBackend string
	StorageBackends       []StorageBackendConfig
	// FieldTypeBindings maps field types onto storage backend names.
	// Unbound field types keep their payloads in the field rows.
	FieldTypeBindings map[string]string
	// FieldTypeAliases maps legacy field type identifiers onto canonical
	// ones for storage dispatch.
	FieldTypeAliases map[string]string

	// Languages available for translations. IDs must be distinct powers
	// of two starting at 2.
	Languages []LanguageConfig

	// Schema cache
	EnableTypeCache bool
	TypeCacheTTL    time.Duration

	// Archived version pruning
	ArchivedRetention time.Duration
	// ArchivedKeepMin archived versions are retained per content
	// regardless of age.
	ArchivedKeepMin int
	PruneSchedule   string // cron spec
}

// StorageBackendConfig represents configuration for a storage backend
type StorageBackendConfig struct {
	Name   string
	Type   string // "memory", "fs", "s3"
	Config map[string]interface{}
}

// LanguageConfig declares one registered language.
type LanguageConfig struct {
	ID   int64
	Code string
}

// Validate validates the server configuration
func (c *ServerConfig) Validate() error {
	if c.Port == "" {
		return errors.New("port is required")
	}

	if c.DatabaseType != "memory" && c.DatabaseType != "postgres" {
		return errors.New("database_type must be 'memory' or 'postgres'")
	}

	if c.DatabaseType == "postgres" && c.DatabaseURL == "" {
		return errors.New("database_url is required when using postgres")
	}

	if len(c.Languages) == 0 {
		return errors.New("at least one language is required")
	}

	backendNames := make(map[string]bool, len(c.StorageBackends))
	for _, backend := range c.StorageBackends {
		backendNames[backend.Name] = true
	}
	if !backendNames[c.DefaultStorageBackend] {
		return fmt.Errorf("default storage backend '%s' not found in configured backends", c.DefaultStorageBackend)
	}
	for fieldType, name := range c.FieldTypeBindings {
		if !backendNames[name] {
			return fmt.Errorf("field type '%s' bound to unknown storage backend '%s'", fieldType, name)
		}
	}

	return nil
}

// App bundles the wired components of a running content service.
type App struct {
	Service vc.Service
	Schema  schema.Service
	Gateway vc.Gateway
	Cache   *cache.MemoryCache
	Pool    *pgxpool.Pool
}

// Close releases the app's resources.
func (a *App) Close() {
	if a.Cache != nil {
		a.Cache.Stop()
	}
	if a.Pool != nil {
		a.Pool.Close()
	}
}

// typeSourceRef lets the content service and the schema engine reference
// each other: the service is built first against the empty ref, the
// schema engine is bound afterwards.
type typeSourceRef struct {
	schema schema.Service
}

func (r *typeSourceRef) LoadTypeByID(ctx context.Context, id int64) (*vc.ContentType, error) {
	if r.schema == nil {
		return nil, vc.ErrTypeNotFound
	}
	return r.schema.LoadTypeByID(ctx, id)
}

// Build creates a fully wired App from the server configuration.
func (c *ServerConfig) Build(ctx context.Context, logger *slog.Logger) (*App, error) {
	if logger == nil {
		logger = slog.Default()
	}

	app := &App{}

	gateway, store, err := c.buildGateway(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to build gateway: %w", err)
	}
	app.Gateway = gateway.gw
	app.Pool = gateway.pool

	languages := make([]vc.Language, 0, len(c.Languages))
	for _, lang := range c.Languages {
		languages = append(languages, vc.Language{ID: lang.ID, Code: lang.Code})
	}
	registry, err := vc.NewLanguageRegistry(languages...)
	if err != nil {
		return nil, fmt.Errorf("failed to build language registry: %w", err)
	}

	backends := make(map[string]vc.FieldStorage, len(c.StorageBackends))
	for _, backendConfig := range c.StorageBackends {
		backend, err := c.buildStorageBackend(backendConfig)
		if err != nil {
			return nil, fmt.Errorf("failed to build storage backend %s: %w", backendConfig.Name, err)
		}
		backends[backendConfig.Name] = backend
	}

	types := &typeSourceRef{}

	options := []vc.Option{
		vc.WithGateway(app.Gateway),
		vc.WithLanguages(registry),
		vc.WithTypeSource(types),
		vc.WithLogger(logger),
	}
	for fieldType, backendName := range c.FieldTypeBindings {
		options = append(options, vc.WithFieldStorage(fieldType, backends[backendName]))
	}
	for alias, canonical := range c.FieldTypeAliases {
		options = append(options, vc.WithFieldTypeAlias(alias, canonical))
	}

	svc, err := vc.New(options...)
	if err != nil {
		return nil, fmt.Errorf("failed to build service: %w", err)
	}
	app.Service = svc

	updater := schema.NewUpdater(svc, app.Gateway, logger)
	schemaSvc := schema.NewService(store, updater)
	if c.EnableTypeCache {
		app.Cache = cache.New(c.TypeCacheTTL)
		app.Cache.StartCleanup(c.TypeCacheTTL)
		schemaSvc = schema.NewCached(schemaSvc, app.Cache)
	}
	types.schema = schemaSvc
	app.Schema = schemaSvc

	return app, nil
}

type builtGateway struct {
	gw   vc.Gateway
	pool *pgxpool.Pool
}

func (c *ServerConfig) buildGateway(ctx context.Context) (builtGateway, schema.Store, error) {
	switch c.DatabaseType {
	case "memory":
		repo := repomemory.New()
		return builtGateway{gw: repo}, repo, nil

	case "postgres":
		pool, err := pgxpool.New(ctx, c.DatabaseURL)
		if err != nil {
			return builtGateway{}, nil, fmt.Errorf("failed to create connection pool: %w", err)
		}
		if err := pool.Ping(ctx); err != nil {
			pool.Close()
			return builtGateway{}, nil, fmt.Errorf("failed to ping database: %w", err)
		}
		if c.AutoMigrate {
			if err := repopg.Migrate(pool); err != nil {
				pool.Close()
				return builtGateway{}, nil, err
			}
		}
		repo := repopg.NewWithPool(pool)
		return builtGateway{gw: repo, pool: pool}, repo, nil

	default:
		return builtGateway{}, nil, fmt.Errorf("unsupported database type: %s", c.DatabaseType)
	}
}

func (c *ServerConfig) buildStorageBackend(backendConfig StorageBackendConfig) (vc.FieldStorage, error) {
	switch backendConfig.Type {
	case "memory":
		return memorystorage.New(), nil

	case "fs":
		baseDir, _ := backendConfig.Config["base_dir"].(string)
		return fsstorage.New(fsstorage.Config{BaseDir: baseDir})

	case "s3":
		cfg := s3storage.Config{
			Bucket:          stringValue(backendConfig.Config, "bucket"),
			Region:          stringValue(backendConfig.Config, "region"),
			AccessKeyID:     stringValue(backendConfig.Config, "access_key_id"),
			SecretAccessKey: stringValue(backendConfig.Config, "secret_access_key"),
			Endpoint:        stringValue(backendConfig.Config, "endpoint"),
			KeyPrefix:       stringValue(backendConfig.Config, "key_prefix"),
			SSEAlgorithm:    stringValue(backendConfig.Config, "sse_algorithm"),
			SSEKMSKeyID:     stringValue(backendConfig.Config, "sse_kms_key_id"),
		}
		cfg.UsePathStyle, _ = backendConfig.Config["use_path_style"].(bool)
		cfg.EnableSSE, _ = backendConfig.Config["enable_sse"].(bool)
		cfg.CreateBucketIfNotExist, _ = backendConfig.Config["create_bucket_if_not_exist"].(bool)
		return s3storage.New(cfg)

	default:
		return nil, fmt.Errorf("unsupported storage backend type: %s", backendConfig.Type)
	}
}

func stringValue(m map[string]interface{}, key string) string {
	v, _ := m[key].(string)
	return v
}
