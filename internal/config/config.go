// Package config loads and validates service configuration via Viper.
package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

// Config captures all service configuration knobs loaded via Viper.
type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Search    SearchConfig    `mapstructure:"search"`
	Retrieval RetrievalConfig `mapstructure:"retrieval"`
	Browser   BrowserConfig   `mapstructure:"browser"`
	Hits      HitsConfig      `mapstructure:"hits"`
	Output    OutputConfig    `mapstructure:"output"`
	Archive   ArchiveConfig   `mapstructure:"archive"`
	DB        DBConfig        `mapstructure:"db"`
	PubSub    PubSubConfig    `mapstructure:"pubsub"`
	Logging   LoggingConfig   `mapstructure:"logging"`
}

// ServerConfig controls the status HTTP server.
type ServerConfig struct {
	Enabled bool `mapstructure:"enabled"`
	Port    int  `mapstructure:"port"`
}

// SearchConfig names the remote endpoints.
type SearchConfig struct {
	SearchURL string `mapstructure:"search_url"`
	HitsURL   string `mapstructure:"hits_url"`
	UserAgent string `mapstructure:"user_agent"`
}

// RetrievalConfig governs the pagination pipeline.
type RetrievalConfig struct {
	ResultsPerPage    int `mapstructure:"results_per_page"`
	ConcurrentPages   int `mapstructure:"concurrent_pages"`
	ConcurrentHits    int `mapstructure:"concurrent_hits"`
	BatchDelaySeconds int `mapstructure:"batch_delay_seconds"`
}

// BrowserConfig configures the headless rendering pool.
type BrowserConfig struct {
	PoolSize      int  `mapstructure:"pool_size"`
	NavTimeoutSec int  `mapstructure:"nav_timeout_seconds"`
	Headless      bool `mapstructure:"headless"`
}

// HitsConfig configures the hit-count lookup client.
type HitsConfig struct {
	TimeoutSeconds int     `mapstructure:"timeout_seconds"`
	QPS            float64 `mapstructure:"qps"`
}

// OutputConfig sets export file destinations. Empty paths disable the
// corresponding exporter.
type OutputConfig struct {
	CSVPath  string `mapstructure:"csv_path"`
	JSONPath string `mapstructure:"json_path"`
}

// ArchiveConfig selects the raw payload archive backend. Backend is one of
// "none", "local", or "gcs".
type ArchiveConfig struct {
	Backend   string `mapstructure:"backend"`
	LocalDir  string `mapstructure:"local_dir"`
	GCSBucket string `mapstructure:"gcs_bucket"`
	Prefix    string `mapstructure:"prefix"`
}

// DBConfig controls article persistence. Empty DSN disables it.
type DBConfig struct {
	DSN           string `mapstructure:"dsn"`
	ArticlesTable string `mapstructure:"articles_table"`
	RunsTable     string `mapstructure:"runs_table"`
	MaxConns      int    `mapstructure:"max_conns"`
}

// PubSubConfig holds metadata for completion notifications. Empty project
// disables publishing.
type PubSubConfig struct {
	ProjectID string `mapstructure:"project_id"`
	TopicName string `mapstructure:"topic_name"`
}

// LoggingConfig toggles zap development features.
type LoggingConfig struct {
	Development bool   `mapstructure:"development"`
	Level       string `mapstructure:"level"`
}

// Load builds a Config from disk/environment.
func Load(path string) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("PAPERCHASE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.enabled", false)
	v.SetDefault("server.port", 8080)
	v.SetDefault("search.search_url", "https://www.newspapers.com/api/search/query")
	v.SetDefault("search.hits_url", "https://www.newspapers.com/api/search/hits")
	v.SetDefault("search.user_agent",
		"Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0 Safari/537.36")
	v.SetDefault("retrieval.results_per_page", 50)
	v.SetDefault("retrieval.concurrent_pages", 5)
	v.SetDefault("retrieval.concurrent_hits", 5)
	v.SetDefault("retrieval.batch_delay_seconds", 2)
	v.SetDefault("browser.pool_size", 5)
	v.SetDefault("browser.nav_timeout_seconds", 45)
	v.SetDefault("browser.headless", true)
	v.SetDefault("hits.timeout_seconds", 10)
	v.SetDefault("hits.qps", 10.0)
	v.SetDefault("output.csv_path", "articles.csv")
	v.SetDefault("archive.backend", "none")
	v.SetDefault("archive.prefix", "runs")
	v.SetDefault("db.articles_table", "articles")
	v.SetDefault("db.runs_table", "runs")
	v.SetDefault("logging.development", true)
	v.SetDefault("logging.level", "")
}

// Validate enforces required values and reasonable limits.
func (c Config) Validate() error {
	if c.Server.Enabled && c.Server.Port <= 0 {
		return fmt.Errorf("server.port must be > 0")
	}
	if c.Search.SearchURL == "" {
		return fmt.Errorf("search.search_url is required")
	}
	if c.Search.HitsURL == "" {
		return fmt.Errorf("search.hits_url is required")
	}
	if c.Retrieval.ResultsPerPage <= 0 {
		return fmt.Errorf("retrieval.results_per_page must be > 0")
	}
	if c.Retrieval.ConcurrentPages <= 0 {
		return fmt.Errorf("retrieval.concurrent_pages must be > 0")
	}
	if c.Retrieval.ConcurrentHits <= 0 {
		return fmt.Errorf("retrieval.concurrent_hits must be > 0")
	}
	if c.Browser.PoolSize <= 0 {
		return fmt.Errorf("browser.pool_size must be > 0")
	}
	switch c.Archive.Backend {
	case "", "none":
	case "local":
		if c.Archive.LocalDir == "" {
			return fmt.Errorf("archive.local_dir is required for the local backend")
		}
	case "gcs":
		if c.Archive.GCSBucket == "" {
			return fmt.Errorf("archive.gcs_bucket is required for the gcs backend")
		}
	default:
		return fmt.Errorf("archive.backend must be one of none, local, gcs")
	}
	if c.PubSub.ProjectID != "" && c.PubSub.TopicName == "" {
		return fmt.Errorf("pubsub.topic_name is required when pubsub.project_id is set")
	}
	return nil
}
