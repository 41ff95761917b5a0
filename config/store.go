package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// StoreBackend selects the durable storage used for the credential.
type StoreBackend string

const (
	// StoreBackendFile persists to a JSON file on local disk.
	StoreBackendFile StoreBackend = "file"
	// StoreBackendRedis persists to Redis.
	StoreBackendRedis StoreBackend = "redis"
	// StoreBackendMemory keeps values for the life of the process only.
	StoreBackendMemory StoreBackend = "memory"
)

// UnmarshalText implements encoding.TextUnmarshaler for StoreBackend.
func (b *StoreBackend) UnmarshalText(text []byte) error {
	v := strings.ToLower(strings.TrimSpace(string(text)))
	switch v {
	case "file", "redis", "memory":
		*b = StoreBackend(v)
		return nil
	default:
		return fmt.Errorf("invalid StoreBackend: %q (valid options: file, redis, memory)", v)
	}
}

// StoreConfig contains durable credential storage configuration.
type StoreConfig struct {
	Backend StoreBackend `env:"STORE_BACKEND" envDefault:"file"`

	// Path is the storage file used by the file backend.
	// Defaults to $XDG_CONFIG_HOME/glhm/storage.json (or the OS equivalent).
	Path string `env:"STORE_PATH"`

	// EncryptionKey encrypts values at rest when set (base64 or raw 32 bytes).
	EncryptionKey string `env:"STORE_ENCRYPTION_KEY"`

	// RedisPrefix namespaces keys written by the redis backend.
	RedisPrefix string `env:"STORE_REDIS_PREFIX" envDefault:"glhm:storage:"`
}

// Sanitize applies guardrails to storage configuration values.
func (c *StoreConfig) Sanitize() {
	if c.Backend == "" {
		c.Backend = StoreBackendFile
	}
	c.Path = strings.TrimSpace(c.Path)
	if c.Path == "" {
		c.Path = defaultStorePath()
	}
	c.EncryptionKey = strings.TrimSpace(c.EncryptionKey)
	if c.RedisPrefix = strings.TrimSpace(c.RedisPrefix); c.RedisPrefix == "" {
		c.RedisPrefix = "glhm:storage:"
	}
}

func defaultStorePath() string {
	dir, err := os.UserConfigDir()
	if err != nil || dir == "" {
		dir = os.TempDir()
	}
	return filepath.Join(dir, "glhm", "storage.json")
}

// RedisConfig contains Redis configuration.
type RedisConfig struct {
	URI                string   `env:"URI"                  envDefault:"localhost:6379"`
	Password           string   `env:"PASSWORD"             envDefault:""`
	DB                 int      `env:"DB"                   envDefault:"0"`
	SentinelPort       string   `env:"SENTINEL_PORT"        envDefault:"26379"`
	SentinelNodes      []string `env:"SENTINEL_NODES"       envDefault:"localhost:26379"`
	SentinelMasterName string   `env:"SENTINEL_MASTER_NAME" envDefault:"mymaster"`
	SentinelPassword   string   `env:"SENTINEL_PASSWORD"    envDefault:""`
	UseSentinel        bool     `env:"USE_SENTINEL"         envDefault:"false"`
	ClusterNodes       []string `env:"CLUSTER_NODES"        envDefault:""`
	UseCluster         bool     `env:"USE_CLUSTER"          envDefault:"false"`
}
