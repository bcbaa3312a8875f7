package config

import (
	"fmt"
	"os"
	"runtime"
	"strconv"
	"time"

	"gopkg.in/yaml.v2"
)

type Config struct {
	Server struct {
		Address         string        `yaml:"address"`
		ReadTimeout     time.Duration `yaml:"read_timeout"`
		WriteTimeout    time.Duration `yaml:"write_timeout"`
		ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
	} `yaml:"server"`

	Signal struct {
		PingInterval time.Duration `yaml:"ping_interval"`
		PongTimeout  time.Duration `yaml:"pong_timeout"`
		WriteTimeout time.Duration `yaml:"write_timeout"`
		// MessagesPerSecond limits signaling requests per connection.
		MessagesPerSecond float64 `yaml:"messages_per_second"`
		Burst             int     `yaml:"burst"`
	} `yaml:"signal"`

	HTTP struct {
		RateLimitEnabled  bool    `yaml:"rate_limit_enabled"`
		RequestsPerSecond float64 `yaml:"requests_per_second"`
		Burst             int     `yaml:"burst"`
		MaxConcurrent     int     `yaml:"max_concurrent"`
	} `yaml:"http"`

	Media struct {
		// WorkerCount of 0 means one worker per CPU core, capped by WorkerCap.
		WorkerCount    int    `yaml:"worker_count"`
		WorkerCap      int    `yaml:"worker_cap"`
		RTCPortBase    uint16 `yaml:"rtc_port_base"`
		PortsPerWorker uint16 `yaml:"ports_per_worker"`
		ICEServers     []struct {
			URLs       []string `yaml:"urls"`
			Username   string   `yaml:"username,omitempty"`
			Credential string   `yaml:"credential,omitempty"`
		} `yaml:"ice_servers"`
	} `yaml:"media"`

	Room struct {
		MaxParticipants int           `yaml:"max_participants"`
		EndGraceWindow  time.Duration `yaml:"end_grace_window"`
		ReconcileEvery  time.Duration `yaml:"reconcile_interval"`
		ChatHistorySize int           `yaml:"chat_history_size"`
	} `yaml:"room"`

	Redis struct {
		Enabled  bool   `yaml:"enabled"`
		Address  string `yaml:"address"`
		Password string `yaml:"password"`
		DB       int    `yaml:"db"`
		PoolSize int    `yaml:"pool_size"`
	} `yaml:"redis"`

	Postgres struct {
		Enabled bool   `yaml:"enabled"`
		DSN     string `yaml:"dsn"`
	} `yaml:"postgres"`

	Backup struct {
		Enabled        bool          `yaml:"enabled"`
		Dir            string        `yaml:"dir"`
		Interval       time.Duration `yaml:"interval"`
		RetentionDays  int           `yaml:"retention_days"`
		RestoreOnStart bool          `yaml:"restore_on_start"`
	} `yaml:"backup"`

	Auth struct {
		JWTSecret      string        `yaml:"jwt_secret"`
		AccessTokenTTL time.Duration `yaml:"access_token_ttl"`
	} `yaml:"auth"`

	Monitoring struct {
		PrometheusEnabled bool   `yaml:"prometheus_enabled"`
		TracingEnabled    bool   `yaml:"tracing_enabled"`
		JaegerEndpoint    string `yaml:"jaeger_endpoint"`
	} `yaml:"monitoring"`

	Logging struct {
		Level  string `yaml:"level"`
		Format string `yaml:"format"`
	} `yaml:"logging"`
}

// Validate checks that configuration values are within acceptable ranges.
func (c *Config) Validate() error {
	if c.Server.Address == "" {
		return fmt.Errorf("server.address must not be empty")
	}
	if c.Server.ReadTimeout <= 0 {
		return fmt.Errorf("server.read_timeout must be > 0")
	}
	if c.Server.WriteTimeout <= 0 {
		return fmt.Errorf("server.write_timeout must be > 0")
	}
	if c.Server.ShutdownTimeout <= 0 {
		return fmt.Errorf("server.shutdown_timeout must be > 0")
	}

	if c.Signal.PingInterval <= 0 {
		return fmt.Errorf("signal.ping_interval must be > 0")
	}
	if c.Signal.PongTimeout <= c.Signal.PingInterval {
		return fmt.Errorf("signal.pong_timeout must be > signal.ping_interval")
	}
	if c.Signal.MessagesPerSecond <= 0 {
		return fmt.Errorf("signal.messages_per_second must be > 0")
	}
	if c.Signal.Burst <= 0 {
		return fmt.Errorf("signal.burst must be > 0")
	}

	if c.HTTP.RateLimitEnabled {
		if c.HTTP.RequestsPerSecond <= 0 {
			return fmt.Errorf("http.requests_per_second must be > 0 when rate limiting is enabled")
		}
		if c.HTTP.Burst <= 0 {
			return fmt.Errorf("http.burst must be > 0 when rate limiting is enabled")
		}
	}

	if c.Media.WorkerCount < 0 {
		return fmt.Errorf("media.worker_count must be >= 0")
	}
	if c.Media.WorkerCap <= 0 {
		return fmt.Errorf("media.worker_cap must be > 0")
	}
	if c.Media.RTCPortBase == 0 {
		return fmt.Errorf("media.rtc_port_base must be set")
	}
	if c.Media.PortsPerWorker == 0 {
		return fmt.Errorf("media.ports_per_worker must be set")
	}
	workers := c.WorkerCount()
	if int(c.Media.RTCPortBase)+workers*int(c.Media.PortsPerWorker) > 65535 {
		return fmt.Errorf("media port ranges exceed 65535 for %d workers", workers)
	}

	if c.Room.MaxParticipants <= 0 {
		return fmt.Errorf("room.max_participants must be > 0")
	}
	if c.Room.EndGraceWindow <= 0 {
		return fmt.Errorf("room.end_grace_window must be > 0")
	}
	if c.Room.ReconcileEvery <= 0 {
		return fmt.Errorf("room.reconcile_interval must be > 0")
	}
	if c.Room.ChatHistorySize <= 0 {
		return fmt.Errorf("room.chat_history_size must be > 0")
	}

	if c.Redis.Enabled {
		if c.Redis.Address == "" {
			return fmt.Errorf("redis.address must not be empty when redis.enabled=true")
		}
		if c.Redis.PoolSize <= 0 {
			return fmt.Errorf("redis.pool_size must be > 0 when redis.enabled=true")
		}
	}

	if c.Postgres.Enabled && c.Postgres.DSN == "" {
		return fmt.Errorf("postgres.dsn must not be empty when postgres.enabled=true")
	}

	if c.Backup.Enabled {
		if c.Backup.Dir == "" {
			return fmt.Errorf("backup.dir must not be empty when backup.enabled=true")
		}
		if c.Backup.Interval <= 0 {
			return fmt.Errorf("backup.interval must be > 0 when backup.enabled=true")
		}
		if c.Backup.RetentionDays <= 0 {
			return fmt.Errorf("backup.retention_days must be > 0 when backup.enabled=true")
		}
	}

	if c.Auth.JWTSecret == "" {
		return fmt.Errorf("auth.jwt_secret must not be empty")
	}
	if c.Auth.AccessTokenTTL <= 0 {
		return fmt.Errorf("auth.access_token_ttl must be > 0")
	}

	if c.Logging.Level == "" {
		return fmt.Errorf("logging.level must not be empty")
	}

	return nil
}

// WorkerCount resolves the effective media worker pool size.
func (c *Config) WorkerCount() int {
	n := c.Media.WorkerCount
	if n == 0 {
		n = runtime.NumCPU()
	}
	if n > c.Media.WorkerCap {
		n = c.Media.WorkerCap
	}
	if n < 1 {
		n = 1
	}
	return n
}

// Load reads configuration from a YAML file, applies defaults and env
// overrides. A missing file falls back to defaults.
func Load(configPath string) (*Config, error) {
	cfg := DefaultConfig()

	if _, err := os.Stat(configPath); err == nil {
		data, err := os.ReadFile(configPath)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", configPath, err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to unmarshal config yaml: %w", err)
		}
	}

	cfg.applyEnvOverrides()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// DefaultConfig returns configuration with sane defaults.
func DefaultConfig() *Config {
	cfg := &Config{}

	cfg.Server.Address = ":8080"
	cfg.Server.ReadTimeout = 30 * time.Second
	cfg.Server.WriteTimeout = 30 * time.Second
	cfg.Server.ShutdownTimeout = 30 * time.Second

	cfg.Signal.PingInterval = 30 * time.Second
	cfg.Signal.PongTimeout = 60 * time.Second
	cfg.Signal.WriteTimeout = 10 * time.Second
	cfg.Signal.MessagesPerSecond = 50
	cfg.Signal.Burst = 100

	cfg.HTTP.RateLimitEnabled = true
	cfg.HTTP.RequestsPerSecond = 20
	cfg.HTTP.Burst = 40
	cfg.HTTP.MaxConcurrent = 256

	cfg.Media.WorkerCount = 0
	cfg.Media.WorkerCap = 8
	cfg.Media.RTCPortBase = 40000
	cfg.Media.PortsPerWorker = 1000

	cfg.Room.MaxParticipants = 500
	cfg.Room.EndGraceWindow = 30 * time.Second
	cfg.Room.ReconcileEvery = 15 * time.Second
	cfg.Room.ChatHistorySize = 100

	cfg.Redis.Enabled = false
	cfg.Redis.Address = "localhost:6379"
	cfg.Redis.DB = 0
	cfg.Redis.PoolSize = 10

	cfg.Postgres.Enabled = false

	cfg.Backup.Enabled = false
	cfg.Backup.Dir = "backups"
	cfg.Backup.Interval = 10 * time.Minute
	cfg.Backup.RetentionDays = 7
	cfg.Backup.RestoreOnStart = true

	cfg.Auth.JWTSecret = "change-me-in-production"
	cfg.Auth.AccessTokenTTL = 15 * time.Minute

	cfg.Monitoring.PrometheusEnabled = true
	cfg.Monitoring.TracingEnabled = false
	cfg.Monitoring.JaegerEndpoint = "http://localhost:14268/api/traces"

	cfg.Logging.Level = "info"
	cfg.Logging.Format = "json"

	return cfg
}

func (c *Config) applyEnvOverrides() {
	if addr := os.Getenv("STREAMCAST_SERVER_ADDRESS"); addr != "" {
		c.Server.Address = addr
	}
	if level := os.Getenv("STREAMCAST_LOG_LEVEL"); level != "" {
		c.Logging.Level = level
	}
	if secret := os.Getenv("STREAMCAST_JWT_SECRET"); secret != "" {
		c.Auth.JWTSecret = secret
	}
	if addr := os.Getenv("STREAMCAST_REDIS_ADDRESS"); addr != "" {
		c.Redis.Address = addr
		c.Redis.Enabled = true
	}
	if dsn := os.Getenv("STREAMCAST_POSTGRES_DSN"); dsn != "" {
		c.Postgres.DSN = dsn
		c.Postgres.Enabled = true
	}
	if n := os.Getenv("STREAMCAST_WORKER_COUNT"); n != "" {
		if v, err := strconv.Atoi(n); err == nil {
			c.Media.WorkerCount = v
		}
	}
}
