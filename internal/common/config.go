package common

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
)

// Config represents the application configuration. Layering order:
// defaults -> config file(s) -> environment variables -> CLI flags.
type Config struct {
	Environment string          `toml:"environment"` // "development" or "production"
	Server      ServerConfig    `toml:"server"`
	Cloud       CloudConfig     `toml:"cloud"`
	Redis       RedisConfig     `toml:"redis"`
	Tasks       TasksConfig     `toml:"tasks"`
	Artifacts   ArtifactsConfig `toml:"artifacts"`
	Crawler     CrawlerConfig   `toml:"crawler"`
	Batch       BatchConfig     `toml:"batch"`
	Webhook     WebhookConfig   `toml:"webhook"`
	OCR         OCRConfig       `toml:"ocr"`
	Cleanup     CleanupConfig   `toml:"cleanup"`
	Logging     LoggingConfig   `toml:"logging"`
}

type ServerConfig struct {
	Port int    `toml:"port"`
	Host string `toml:"host"`
}

// CloudConfig addresses the managed backends. Only consulted when
// RunningInCloud is set (RUNNING_IN_CLOUD=true).
type CloudConfig struct {
	RunningInCloud bool   `toml:"running_in_cloud"`
	Project        string `toml:"project"`
	Location       string `toml:"location"`
	QueueName      string `toml:"queue_name"`
	Bucket         string `toml:"bucket"`
	ServiceURL     string `toml:"service_url"`     // base URL the cloud queue targets for handler delivery
	ServiceAccount string `toml:"service_account"` // OIDC identity for queue-issued requests
}

type RedisConfig struct {
	Host string `toml:"host"`
	Port int    `toml:"port"`
}

// Addr returns host:port for the Redis client.
func (r RedisConfig) Addr() string {
	return fmt.Sprintf("%s:%d", r.Host, r.Port)
}

type TasksConfig struct {
	MaxRetries       int           `toml:"max_retries"`
	DispatchInterval time.Duration `toml:"dispatch_interval"` // idle sleep between dispatcher iterations
	ErrorInterval    time.Duration `toml:"error_interval"`    // sleep after a dispatcher iteration error
	DequeueBatch     int           `toml:"dequeue_batch"`     // max tasks dequeued per type per iteration
	AuthToken        string        `toml:"auth_token"`        // bearer token handler endpoints require in cloud mode
}

type ArtifactsConfig struct {
	Root string `toml:"root"` // local artifact directory
}

type CrawlerConfig struct {
	UserAgent          string        `toml:"user_agent"`
	RequestDelay       time.Duration `toml:"request_delay"` // per-domain politeness delay
	RequestTimeout     time.Duration `toml:"request_timeout"`
	JavaScriptWaitTime time.Duration `toml:"javascript_wait_time"`
	EnableJavaScript   bool          `toml:"enable_javascript"`
}

type BatchConfig struct {
	Workers int `toml:"workers"` // worker pool bound per batch (W = min(n, workers))
}

type WebhookConfig struct {
	Secret  string        `toml:"secret"` // HMAC signing secret; empty disables signatures
	Timeout time.Duration `toml:"timeout"`
}

type OCRConfig struct {
	Endpoint string `toml:"endpoint"` // remote OCR engine; empty disables image processing
}

type CleanupConfig struct {
	Schedule   string `toml:"schedule"` // cron spec; empty disables scheduled cleanup
	DaysToKeep int    `toml:"days_to_keep"`
}

type LoggingConfig struct {
	Level      string   `toml:"level"`  // "debug", "info", "warn", "error"
	Output     []string `toml:"output"` // "stdout", "file"
	TimeFormat string   `toml:"time_format"`
}

// DefaultConfig returns the baseline configuration before file and
// environment layering.
func DefaultConfig() *Config {
	return &Config{
		Environment: "development",
		Server: ServerConfig{
			Port: 5678,
			Host: "localhost",
		},
		Cloud: CloudConfig{
			Location:  "us-central1",
			QueueName: "wraith-tasks",
		},
		Redis: RedisConfig{
			Host: "localhost",
			Port: 6379,
		},
		Tasks: TasksConfig{
			MaxRetries:       3,
			DispatchInterval: 1 * time.Second,
			ErrorInterval:    5 * time.Second,
			DequeueBatch:     5,
		},
		Artifacts: ArtifactsConfig{
			Root: "./storage",
		},
		Crawler: CrawlerConfig{
			UserAgent:          "Mozilla/5.0 (compatible; Wraith/1.0)",
			RequestDelay:       500 * time.Millisecond,
			RequestTimeout:     30 * time.Second,
			JavaScriptWaitTime: 3 * time.Second,
			EnableJavaScript:   true,
		},
		Batch: BatchConfig{
			Workers: 5,
		},
		Webhook: WebhookConfig{
			Timeout: 10 * time.Second,
		},
		Cleanup: CleanupConfig{
			DaysToKeep: 30,
		},
		Logging: LoggingConfig{
			Level:      "info",
			Output:     []string{"stdout"},
			TimeFormat: "15:04:05.000",
		},
	}
}

// LoadFromFiles loads configuration from the given TOML files in order;
// later files override earlier ones, then environment variables override
// everything from files. Missing files are an error, an empty list is not.
func LoadFromFiles(paths ...string) (*Config, error) {
	config := DefaultConfig()

	for _, path := range paths {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
		}
		if err := toml.Unmarshal(data, config); err != nil {
			return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
		}
	}

	applyEnvOverrides(config)
	return config, nil
}

// applyEnvOverrides maps recognized environment variables onto the config.
// RUNNING_IN_CLOUD is read here once at startup; components consult the
// resulting Environment value and never re-read the variable.
func applyEnvOverrides(config *Config) {
	if v := os.Getenv("RUNNING_IN_CLOUD"); v != "" {
		config.Cloud.RunningInCloud = strings.EqualFold(v, "true")
	}
	if v := os.Getenv("SERVICE_URL"); v != "" {
		config.Cloud.ServiceURL = v
	}
	if v := os.Getenv("GCP_PROJECT"); v != "" {
		config.Cloud.Project = v
	}
	if v := os.Getenv("GCP_LOCATION"); v != "" {
		config.Cloud.Location = v
	}
	if v := os.Getenv("TASK_QUEUE_NAME"); v != "" {
		config.Cloud.QueueName = v
	}
	if v := os.Getenv("ARTIFACT_BUCKET"); v != "" {
		config.Cloud.Bucket = v
	}
	if v := os.Getenv("REDIS_HOST"); v != "" {
		config.Redis.Host = v
	}
	if v := os.Getenv("REDIS_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			config.Redis.Port = port
		}
	}
	if v := os.Getenv("MAX_RETRIES"); v != "" {
		if retries, err := strconv.Atoi(v); err == nil && retries >= 0 {
			config.Tasks.MaxRetries = retries
		}
	}
	if v := os.Getenv("WEBHOOK_SECRET"); v != "" {
		config.Webhook.Secret = v
	}
	if v := os.Getenv("TASK_AUTH_TOKEN"); v != "" {
		config.Tasks.AuthToken = v
	}
}

// ApplyFlagOverrides applies command-line flag overrides (highest priority).
func ApplyFlagOverrides(config *Config, port int, host string) {
	if port != 0 {
		config.Server.Port = port
	}
	if host != "" {
		config.Server.Host = host
	}
}

// ServiceURL returns the base URL handlers are reachable at. In cloud mode
// this is the configured service URL; locally it is the loopback address.
func (c *Config) ServiceURL() string {
	if c.Cloud.RunningInCloud && c.Cloud.ServiceURL != "" {
		return strings.TrimRight(c.Cloud.ServiceURL, "/")
	}
	return fmt.Sprintf("http://localhost:%d", c.Server.Port)
}
