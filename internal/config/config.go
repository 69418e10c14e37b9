package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// BaseConfig holds base configuration
type BaseConfig struct {
	Debug     bool   `mapstructure:"debug"`
	SentryDSN string `mapstructure:"sentry_dsn"`
}

// DatabaseConfig holds database configuration
type DatabaseConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	User            string        `mapstructure:"user"`
	Password        string        `mapstructure:"password"`
	DBName          string        `mapstructure:"dbname"`
	SSLMode         string        `mapstructure:"sslmode"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	ConnMaxIdleTime time.Duration `mapstructure:"conn_max_idle_time"`
}

// RedisConfig holds the coordination store configuration.
// All cross-instance markers (relay idempotency, anchor scheduling) live here.
type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// NATSConfig holds NATS JetStream configuration for domain event fan-out
type NATSConfig struct {
	URL            string        `mapstructure:"url"`
	StreamName     string        `mapstructure:"stream_name"`
	MaxReconnects  int           `mapstructure:"max_reconnects"`
	ReconnectWait  time.Duration `mapstructure:"reconnect_wait"`
	ConnectionName string        `mapstructure:"connection_name"`
}

// ChainConfig holds registry/forwarder contract access configuration
type ChainConfig struct {
	RPCURL            string        `mapstructure:"rpc_url"`
	ChainID           int64         `mapstructure:"chain_id"`
	RegistryAddress   string        `mapstructure:"registry_address"`
	ForwarderAddress  string        `mapstructure:"forwarder_address"`
	ContractVersion   string        `mapstructure:"contract_version"`
	RelayerPrivateKey string        `mapstructure:"relayer_private_key"`
	CallTimeout       time.Duration `mapstructure:"call_timeout"`
}

// RelayConfig holds meta-transaction relay configuration
type RelayConfig struct {
	WorkerPoolSize  int           `mapstructure:"worker_pool_size"`
	WorkerQueueSize int           `mapstructure:"worker_queue_size"`
	MaxAttempts     int           `mapstructure:"max_attempts"`
	InitialBackoff  time.Duration `mapstructure:"initial_backoff"`
	MaxBackoff      time.Duration `mapstructure:"max_backoff"`
	SweepInterval   time.Duration `mapstructure:"sweep_interval"`
	StaleAfter      time.Duration `mapstructure:"stale_after"`
	Preflight       bool          `mapstructure:"preflight"`
}

// AnchoringConfig holds event anchoring configuration
type AnchoringConfig struct {
	Period        time.Duration `mapstructure:"period"`
	ScheduleTTL   time.Duration `mapstructure:"schedule_ttl"`
	SubmitOnchain bool          `mapstructure:"submit_onchain"`
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Host         string `mapstructure:"host"`
	Port         int    `mapstructure:"port"`
	ReadTimeout  int    `mapstructure:"read_timeout"`  // in seconds
	WriteTimeout int    `mapstructure:"write_timeout"` // in seconds
	IdleTimeout  int    `mapstructure:"idle_timeout"`  // in seconds
}

// AuthConfig holds authentication configuration
type AuthConfig struct {
	JWTPublicKey string   `mapstructure:"jwt_public_key"`
	APIKeys      []string `mapstructure:"api_keys"`
}

// APIConfig holds configuration for the API server
type APIConfig struct {
	BaseConfig `mapstructure:",squash"`
	Server     ServerConfig    `mapstructure:"server"`
	Database   DatabaseConfig  `mapstructure:"database"`
	Redis      RedisConfig     `mapstructure:"redis"`
	NATS       NATSConfig      `mapstructure:"nats"`
	Chain      ChainConfig     `mapstructure:"chain"`
	Relay      RelayConfig     `mapstructure:"relay"`
	Anchoring  AnchoringConfig `mapstructure:"anchoring"`
	Auth       AuthConfig      `mapstructure:"auth"`
}

// RelayWorkerConfig holds configuration for the relay worker
type RelayWorkerConfig struct {
	BaseConfig `mapstructure:",squash"`
	Database   DatabaseConfig  `mapstructure:"database"`
	Redis      RedisConfig     `mapstructure:"redis"`
	NATS       NATSConfig      `mapstructure:"nats"`
	Chain      ChainConfig     `mapstructure:"chain"`
	Relay      RelayConfig     `mapstructure:"relay"`
	Anchoring  AnchoringConfig `mapstructure:"anchoring"`
}

// AnchorSchedulerConfig holds configuration for the anchor scheduler
type AnchorSchedulerConfig struct {
	BaseConfig `mapstructure:",squash"`
	Database   DatabaseConfig  `mapstructure:"database"`
	Redis      RedisConfig     `mapstructure:"redis"`
	Chain      ChainConfig     `mapstructure:"chain"`
	Anchoring  AnchoringConfig `mapstructure:"anchoring"`
}

// LoadAPIConfig loads configuration for the API server
func LoadAPIConfig(configFile string, envPath string) (*APIConfig, error) {
	v := configureViper("api", configFile, envPath)

	// Set defaults
	v.SetDefault("debug", false)
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.read_timeout", 10)
	v.SetDefault("server.write_timeout", 10)
	v.SetDefault("server.idle_timeout", 120)
	setDatabaseDefaults(v)
	setRedisDefaults(v)
	setNATSDefaults(v)
	setChainDefaults(v)
	setRelayDefaults(v)
	setAnchoringDefaults(v)

	if err := readConfig(v); err != nil {
		return nil, err
	}

	var config APIConfig
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	return &config, nil
}

// LoadRelayWorkerConfig loads configuration for the relay worker
func LoadRelayWorkerConfig(configFile string, envPath string) (*RelayWorkerConfig, error) {
	v := configureViper("relay-worker", configFile, envPath)

	setDatabaseDefaults(v)
	setRedisDefaults(v)
	setNATSDefaults(v)
	setChainDefaults(v)
	setRelayDefaults(v)
	setAnchoringDefaults(v)

	if err := readConfig(v); err != nil {
		return nil, err
	}

	var config RelayWorkerConfig
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if config.Chain.RelayerPrivateKey == "" {
		return nil, errors.New("chain.relayer_private_key is required")
	}

	return &config, nil
}

// LoadAnchorSchedulerConfig loads configuration for the anchor scheduler
func LoadAnchorSchedulerConfig(configFile string, envPath string) (*AnchorSchedulerConfig, error) {
	v := configureViper("anchor-scheduler", configFile, envPath)

	setDatabaseDefaults(v)
	setRedisDefaults(v)
	setChainDefaults(v)
	setAnchoringDefaults(v)

	if err := readConfig(v); err != nil {
		return nil, err
	}

	var config AnchorSchedulerConfig
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	return &config, nil
}

func setDatabaseDefaults(v *viper.Viper) {
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.sslmode", "disable")
	v.SetDefault("database.max_open_conns", 20)
	v.SetDefault("database.max_idle_conns", 5)
	v.SetDefault("database.conn_max_lifetime", "5m")
	v.SetDefault("database.conn_max_idle_time", "10m")
}

func setRedisDefaults(v *viper.Viper) {
	v.SetDefault("redis.addr", "localhost:6379")
	v.SetDefault("redis.db", 0)
}

func setNATSDefaults(v *viper.Viper) {
	v.SetDefault("nats.max_reconnects", 10)
	v.SetDefault("nats.reconnect_wait", "2s")
	v.SetDefault("nats.stream_name", "REGISTRY_EVENTS")
}

func setChainDefaults(v *viper.Viper) {
	v.SetDefault("chain.chain_id", 1)
	v.SetDefault("chain.contract_version", "v1")
	v.SetDefault("chain.call_timeout", "5s")
}

func setRelayDefaults(v *viper.Viper) {
	v.SetDefault("relay.worker_pool_size", 20)
	v.SetDefault("relay.worker_queue_size", 2048)
	v.SetDefault("relay.max_attempts", 5)
	v.SetDefault("relay.initial_backoff", "2s")
	v.SetDefault("relay.max_backoff", "30s")
	v.SetDefault("relay.sweep_interval", "1m")
	v.SetDefault("relay.stale_after", "10m")
	v.SetDefault("relay.preflight", true)
}

func setAnchoringDefaults(v *viper.Viper) {
	v.SetDefault("anchoring.period", "1h")
	v.SetDefault("anchoring.schedule_ttl", "10m")
	v.SetDefault("anchoring.submit_onchain", true)
}

// readConfig reads the config file, tolerating a missing file so that
// environment variables alone can configure a deployment
func readConfig(v *viper.Viper) error {
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if errors.As(err, &notFound) {
			// Config file not found, use environment variables
			return nil
		}
		return fmt.Errorf("failed to read config: %w", err)
	}
	return nil
}

// configureViper returns a viper instance with the config file and environment variables set
func configureViper(service string, configFile string, envPath string) *viper.Viper {
	v := viper.New()

	// Load environment variables
	loadEnv(envPath, service)

	// Set config file
	if configFile != "" {
		v.SetConfigFile(configFile)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		// Search for config.yaml in multiple locations:
		// 1. Current directory
		v.AddConfigPath(".")
		// 2. Service-specific directory (e.g., cmd/api/, cmd/relay-worker/)
		v.AddConfigPath(fmt.Sprintf("cmd/%s/", service))
		// 3. Config directory
		v.AddConfigPath("config/")
	}

	// Set environment variables
	v.SetEnvPrefix("FV_REGISTRY")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Explicitly bind all environment variables
	bindAllEnvVars(v)
	return v
}

// bindAllEnvVars explicitly binds all possible environment variables
// This is required for viper to map env vars to config struct fields when no config file exists
func bindAllEnvVars(v *viper.Viper) {
	commonKeys := []string{
		"debug",
		"sentry_dsn",
		// Database
		"database.host",
		"database.port",
		"database.user",
		"database.password",
		"database.dbname",
		"database.sslmode",
		"database.max_open_conns",
		"database.max_idle_conns",
		"database.conn_max_lifetime",
		"database.conn_max_idle_time",
		// Redis
		"redis.addr",
		"redis.password",
		"redis.db",
		// NATS
		"nats.url",
		"nats.stream_name",
		"nats.max_reconnects",
		"nats.reconnect_wait",
		"nats.connection_name",
		// Chain
		"chain.rpc_url",
		"chain.chain_id",
		"chain.registry_address",
		"chain.forwarder_address",
		"chain.contract_version",
		"chain.relayer_private_key",
		"chain.call_timeout",
		// Relay
		"relay.worker_pool_size",
		"relay.worker_queue_size",
		"relay.max_attempts",
		"relay.initial_backoff",
		"relay.max_backoff",
		"relay.sweep_interval",
		"relay.stale_after",
		"relay.preflight",
		// Anchoring
		"anchoring.period",
		"anchoring.schedule_ttl",
		"anchoring.submit_onchain",
		// Server
		"server.host",
		"server.port",
		"server.read_timeout",
		"server.write_timeout",
		"server.idle_timeout",
		// Auth
		"auth.jwt_public_key",
		"auth.api_keys",
	}

	for _, key := range commonKeys {
		_ = v.BindEnv(key)
	}
}

// loadEnv loads environment variables from the config directory
func loadEnv(envPath string, service string) {
	// Always try shared base first, then local, then optional per-service local.
	envFiles := []string{".env", ".env.local"}
	if service != "" {
		envFiles = append(envFiles, ".env."+service+".local")
	}

	// Default to config directory
	if envPath == "" {
		envPath = "config/"
	}

	for _, envFile := range envFiles {
		candidate := filepath.Join(envPath, envFile)
		_ = godotenv.Overload(candidate) // Overload lets later files override earlier ones
	}
}

// ChdirRepoRoot changes the current working directory to the repository root
func ChdirRepoRoot() {
	cwd, _ := os.Getwd()
	for range 5 {
		if _, err := os.Stat(filepath.Join(cwd, "config")); err == nil {
			_ = os.Chdir(cwd)
			return
		}
		cwd = filepath.Dir(cwd)
	}
}

// DSN returns the database connection string
func (c *DatabaseConfig) DSN() string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.DBName, c.SSLMode)
}
