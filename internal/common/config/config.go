// internal/common/config/config.go
package config

import "fmt"

// Config is the main application configuration struct.
type Config struct {
	App           AppConfig               `mapstructure:"app"`
	Camunda       CamundaConfig           `mapstructure:"camunda"`
	Database      DatabaseConfig          `mapstructure:"database"`
	Workers       map[string]WorkerConfig `mapstructure:"workers"`
	Integrations  IntegrationConfig       `mapstructure:"integrations"`
	APIs          APIsConfig              `mapstructure:"apis"`
	Notifications NotificationConfig      `mapstructure:"notifications"`
	Search        SearchConfig            `mapstructure:"search"`
	Directory     DirectoryConfig         `mapstructure:"directory"`
	Logging       LoggingConfig           `mapstructure:"logging"`
	Metrics       MetricsConfig           `mapstructure:"metrics"`
}

// --- Core App/Infrastructure Config ---
type AppConfig struct {
	Name        string `mapstructure:"name"`
	Version     string `mapstructure:"version"`
	Environment string `mapstructure:"environment"`
	// Store selects the request store backend: "postgres" or "memory".
	Store string `mapstructure:"store"`
}

type CamundaConfig struct {
	Enabled        bool   `mapstructure:"enabled"`
	BrokerAddress  string `mapstructure:"broker_address"`
	MaxJobsActive  int    `mapstructure:"max_jobs_active"`
	Timeout        int    `mapstructure:"timeout"`         // milliseconds
	RequestTimeout int    `mapstructure:"request_timeout"` // milliseconds
}

type DatabaseConfig struct {
	Postgres      PostgresConfig      `mapstructure:"postgres"`
	Elasticsearch ElasticsearchConfig `mapstructure:"elasticsearch"`
	Redis         RedisConfig         `mapstructure:"redis"`
}

type PostgresConfig struct {
	Host           string `mapstructure:"host"`
	Port           int    `mapstructure:"port"`
	Database       string `mapstructure:"database"`
	User           string `mapstructure:"user"`
	Password       string `mapstructure:"password"`
	MaxConnections int    `mapstructure:"max_connections"`
	MaxIdle        int    `mapstructure:"max_idle"`
	SSLMode        string `mapstructure:"sslmode"`
}

// GetDSN returns the PostgreSQL connection string
func (p PostgresConfig) GetDSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		p.Host, p.Port, p.User, p.Password, p.Database, p.SSLMode,
	)
}

type ElasticsearchConfig struct {
	Enabled   bool     `mapstructure:"enabled"`
	Addresses []string `mapstructure:"addresses"`
	Username  string   `mapstructure:"username"`
	Password  string   `mapstructure:"password"`
	URL       string   `mapstructure:"url"`
}

// GetURL returns the first address or the URL field
func (e ElasticsearchConfig) GetURL() string {
	if e.URL != "" {
		return e.URL
	}
	if len(e.Addresses) > 0 {
		return e.Addresses[0]
	}
	return ""
}

type RedisConfig struct {
	Address  string `mapstructure:"address"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
	CacheTTL int    `mapstructure:"cache_ttl"` // milliseconds
}

// WorkerConfig holds the core settings applicable to every job worker.
type WorkerConfig struct {
	Enabled       bool `mapstructure:"enabled"`
	MaxJobsActive int  `mapstructure:"max_jobs_active"`
	Timeout       int  `mapstructure:"timeout"`     // milliseconds
	MaxRetries    int  `mapstructure:"max_retries"` // For error handling
}

// IntegrationConfig holds settings for the outbound delivery providers.
type IntegrationConfig struct {
	AWS struct {
		Region string `mapstructure:"region"`
		SES    struct {
			Enabled   bool   `mapstructure:"enabled"`
			FromEmail string `mapstructure:"from_email"`
		} `mapstructure:"ses"`
		SNS struct {
			Enabled            bool   `mapstructure:"enabled"`
			DefaultSMSSenderID string `mapstructure:"default_sms_sender_id"`
		} `mapstructure:"sns"`
	} `mapstructure:"aws"`
}

// APIsConfig holds settings for external API integrations.
type APIsConfig struct {
	GenAI struct {
		Enabled bool   `mapstructure:"enabled"`
		BaseURL string `mapstructure:"base_url"`
		APIKey  string `mapstructure:"api_key"`
		Timeout int    `mapstructure:"timeout"` // milliseconds
	} `mapstructure:"genai"`
}

// NotificationConfig tunes the lifecycle notification dispatcher.
type NotificationConfig struct {
	TextGenTimeout  int    `mapstructure:"text_gen_timeout"` // milliseconds
	AsyncWorkers    int    `mapstructure:"async_workers"`
	QueueSize       int    `mapstructure:"queue_size"`
	InboxSize       int    `mapstructure:"inbox_size"`
	DefaultTimezone string `mapstructure:"default_timezone"`
}

// SearchConfig controls the request snapshot index.
type SearchConfig struct {
	Index string `mapstructure:"index"`
}

// DirectoryConfig seeds the in-memory directory used when app.store is
// "memory". The postgres store reads the directory tables instead.
type DirectoryConfig struct {
	Workers    []SeedWorker  `mapstructure:"workers"`
	Tenants    []SeedName    `mapstructure:"tenants"`
	Properties []SeedName    `mapstructure:"properties"`
	Contacts   []SeedContact `mapstructure:"contacts"`
}

type SeedWorker struct {
	ID       string `mapstructure:"id"`
	Name     string `mapstructure:"name"`
	Role     string `mapstructure:"role"`
	Active   bool   `mapstructure:"active"`
	External bool   `mapstructure:"external"`
}

type SeedName struct {
	ID   string `mapstructure:"id"`
	Name string `mapstructure:"name"`
}

type SeedContact struct {
	RecipientID string `mapstructure:"recipient_id"`
	Name        string `mapstructure:"name"`
	Email       string `mapstructure:"email"`
	Phone       string `mapstructure:"phone"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
	Output string `mapstructure:"output"`
}

type MetricsConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Address string `mapstructure:"address"`
}
