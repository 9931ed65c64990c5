package config

import (
	"fmt"
	"time"
)

// WithPort sets the server port
func WithPort(port string) Option {
	return func(c *ServerConfig) error {
		if port == "" {
			return fmt.Errorf("port cannot be empty")
		}
		c.Port = port
		return nil
	}
}

// WithEnvironment sets the environment (development, production, testing)
func WithEnvironment(env string) Option {
	return func(c *ServerConfig) error {
		if env == "" {
			return fmt.Errorf("environment cannot be empty")
		}
		c.Environment = env
		return nil
	}
}

// WithDatabase configures the database backend
func WithDatabase(dbType, url string) Option {
	return func(c *ServerConfig) error {
		if dbType != "memory" && dbType != "postgres" {
			return fmt.Errorf("database type must be 'memory' or 'postgres', got: %s", dbType)
		}
		if dbType == "postgres" && url == "" {
			return fmt.Errorf("database URL is required for postgres")
		}
		c.DatabaseType = dbType
		c.DatabaseURL = url
		return nil
	}
}

// WithLanguages declares the registered languages. IDs must be distinct
// powers of two starting at 2.
func WithLanguages(languages ...LanguageConfig) Option {
	return func(c *ServerConfig) error {
		if len(languages) == 0 {
			return fmt.Errorf("at least one language is required")
		}
		c.Languages = languages
		return nil
	}
}

// WithDefaultStorage sets the default storage backend name
func WithDefaultStorage(name string) Option {
	return func(c *ServerConfig) error {
		if name == "" {
			return fmt.Errorf("default storage backend name cannot be empty")
		}
		c.DefaultStorageBackend = name
		return nil
	}
}

// WithFilesystemStorage adds a filesystem storage backend.
// If name is empty, defaults to "fs".
func WithFilesystemStorage(name, baseDir string) Option {
	return func(c *ServerConfig) error {
		if name == "" {
			name = "fs"
		}
		if baseDir == "" {
			return fmt.Errorf("filesystem base directory cannot be empty")
		}
		backend := StorageBackendConfig{
			Name: name,
			Type: "fs",
			Config: map[string]interface{}{
				"base_dir": baseDir,
			},
		}
		c.StorageBackends = upsertStorageBackend(c.StorageBackends, backend)
		return nil
	}
}

// WithS3Storage adds an S3-compatible storage backend.
// If name is empty, defaults to "s3".
func WithS3Storage(name string, cfg map[string]interface{}) Option {
	return func(c *ServerConfig) error {
		if name == "" {
			name = "s3"
		}
		if cfg == nil || stringValue(cfg, "bucket") == "" {
			return fmt.Errorf("s3 bucket is required")
		}
		backend := StorageBackendConfig{
			Name:   name,
			Type:   "s3",
			Config: cfg,
		}
		c.StorageBackends = upsertStorageBackend(c.StorageBackends, backend)
		return nil
	}
}

// WithFieldTypeBinding routes a field type's payloads to a named storage
// backend.
func WithFieldTypeBinding(fieldType, backendName string) Option {
	return func(c *ServerConfig) error {
		if fieldType == "" || backendName == "" {
			return fmt.Errorf("field type and backend name are required")
		}
		if c.FieldTypeBindings == nil {
			c.FieldTypeBindings = make(map[string]string)
		}
		c.FieldTypeBindings[fieldType] = backendName
		return nil
	}
}

// WithFieldTypeAlias maps a legacy field type identifier onto its
// canonical name.
func WithFieldTypeAlias(alias, canonical string) Option {
	return func(c *ServerConfig) error {
		if alias == "" || canonical == "" {
			return fmt.Errorf("alias and canonical field type are required")
		}
		if c.FieldTypeAliases == nil {
			c.FieldTypeAliases = make(map[string]string)
		}
		c.FieldTypeAliases[alias] = canonical
		return nil
	}
}

// WithTypeCache enables or disables the schema cache and sets its TTL.
func WithTypeCache(enabled bool, ttl time.Duration) Option {
	return func(c *ServerConfig) error {
		c.EnableTypeCache = enabled
		if ttl > 0 {
			c.TypeCacheTTL = ttl
		}
		return nil
	}
}

// WithArchivedRetention sets how long archived versions are kept before
// the pruner removes them, and the cron schedule the pruner runs on.
func WithArchivedRetention(retention time.Duration, schedule string) Option {
	return func(c *ServerConfig) error {
		if retention <= 0 {
			return fmt.Errorf("retention must be positive")
		}
		c.ArchivedRetention = retention
		if schedule != "" {
			c.PruneSchedule = schedule
		}
		return nil
	}
}

// WithArchivedKeepMin sets how many archived versions the pruner retains
// per content regardless of age.
func WithArchivedKeepMin(n int) Option {
	return func(c *ServerConfig) error {
		if n < 0 {
			return fmt.Errorf("archived keep minimum cannot be negative")
		}
		c.ArchivedKeepMin = n
		return nil
	}
}

// WithAutoMigrate enables or disables schema migration on startup.
func WithAutoMigrate(enabled bool) Option {
	return func(c *ServerConfig) error {
		c.AutoMigrate = enabled
		return nil
	}
}

func upsertStorageBackend(backends []StorageBackendConfig, backend StorageBackendConfig) []StorageBackendConfig {
	if backend.Config == nil {
		backend.Config = map[string]interface{}{}
	}
	for i := range backends {
		if backends[i].Name == backend.Name {
			backends[i] = backend
			return backends
		}
	}
	return append(backends, backend)
}
