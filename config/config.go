package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all configuration for the askgraph service and CLI
type Config struct {
	General   GeneralConfig   `mapstructure:"general"`
	Server    ServerConfig    `mapstructure:"server"`
	LLM       LLMConfig       `mapstructure:"llm"`
	Compiler  CompilerConfig  `mapstructure:"compiler"`
	Tools     ToolsConfig     `mapstructure:"tools"`
	Storage   StorageConfig   `mapstructure:"storage"`
	Telemetry TelemetryConfig `mapstructure:"telemetry"`
}

// GeneralConfig contains general application settings
type GeneralConfig struct {
	LogLevel       string        `mapstructure:"log_level"`
	Verbose        bool          `mapstructure:"verbose"`
	DefaultTimeout time.Duration `mapstructure:"default_timeout"`
}

// ServerConfig contains HTTP server and auth settings
type ServerConfig struct {
	Address        string `mapstructure:"address"`
	JWTSecret      string `mapstructure:"jwt_secret"`
	MetricsEnabled bool   `mapstructure:"metrics_enabled"`
}

// LLMConfig contains LLM provider configurations
type LLMConfig struct {
	Providers map[string]LLMProvider `mapstructure:"providers"`
	Routing   LLMRoutingConfig       `mapstructure:"routing"`
}

// LLMProvider represents a single LLM provider configuration
type LLMProvider struct {
	Type        string        `mapstructure:"type"` // openai, anthropic
	APIKey      string        `mapstructure:"api_key"`
	BaseURL     string        `mapstructure:"base_url"`
	Model       string        `mapstructure:"model"`
	Temperature float64       `mapstructure:"temperature"`
	MaxTokens   int           `mapstructure:"max_tokens"`
	Timeout     time.Duration `mapstructure:"timeout"`
}

// LLMRoutingConfig names the provider used for each model role.
type LLMRoutingConfig struct {
	Planner   string `mapstructure:"planner"`
	Joiner    string `mapstructure:"joiner"`    // defaults to planner
	Formatter string `mapstructure:"formatter"` // optional
}

func (l LLMConfig) Validate() error {
	if len(l.Providers) == 0 {
		return fmt.Errorf("llm.providers must contain at least one provider")
	}
	for name, p := range l.Providers {
		switch strings.ToLower(strings.TrimSpace(p.Type)) {
		case "openai", "anthropic":
		default:
			return fmt.Errorf("llm.providers.%s.type %q is not supported", name, p.Type)
		}
		if p.MaxTokens < 0 {
			return fmt.Errorf("llm.providers.%s.max_tokens cannot be negative", name)
		}
	}
	for role, name := range map[string]string{
		"planner":   l.Routing.Planner,
		"joiner":    l.Routing.Joiner,
		"formatter": l.Routing.Formatter,
	} {
		if name == "" {
			if role == "planner" {
				return fmt.Errorf("llm.routing.planner is required")
			}
			continue
		}
		if _, ok := l.Providers[name]; !ok {
			return fmt.Errorf("llm.routing.%s references unknown provider %q", role, name)
		}
	}
	return nil
}

// CompilerConfig controls the plan/execute/join loop.
type CompilerConfig struct {
	MaxReplan      int           `mapstructure:"max_replan"`
	FallbackAnswer string        `mapstructure:"fallback_answer"`
	CallTimeout    time.Duration `mapstructure:"call_timeout"`
	TaskTimeout    time.Duration `mapstructure:"task_timeout"`
	FormatAnswers  bool          `mapstructure:"format_answers"`
}

func (c CompilerConfig) Validate() error {
	if c.MaxReplan < 0 {
		return fmt.Errorf("compiler.max_replan cannot be negative")
	}
	if c.CallTimeout < 0 || c.TaskTimeout < 0 {
		return fmt.Errorf("compiler timeouts cannot be negative")
	}
	return nil
}

// ToolsConfig configures the tools offered to the planner.
type ToolsConfig struct {
	Search    SearchConfig    `mapstructure:"search"`
	Fetch     FetchConfig     `mapstructure:"fetch"`
	Documents DocumentsConfig `mapstructure:"documents"`
}

// SearchConfig contains web search settings
type SearchConfig struct {
	Provider   string        `mapstructure:"provider"` // serper, brave
	APIKey     string        `mapstructure:"api_key"`
	MaxResults int           `mapstructure:"max_results"`
	Timeout    time.Duration `mapstructure:"timeout"`
	Sites      []string      `mapstructure:"sites"`
}

// Enabled reports whether a search provider is configured.
func (s SearchConfig) Enabled() bool {
	return strings.TrimSpace(s.Provider) != ""
}

// Normalize fills in env secrets and cleans the site filter.
func (s SearchConfig) Normalize() SearchConfig {
	s.Provider = strings.ToLower(strings.TrimSpace(s.Provider))
	if s.APIKey == "" {
		switch s.Provider {
		case "serper":
			s.APIKey = os.Getenv("SERPER_API_KEY")
		case "brave":
			s.APIKey = os.Getenv("BRAVE_API_KEY")
		}
	}
	if s.MaxResults <= 0 {
		s.MaxResults = 5
	}
	s.Sites = sanitizeDomainList(s.Sites)
	return s
}

func (s SearchConfig) Validate() error {
	if !s.Enabled() {
		return nil
	}
	if s.Provider != "serper" && s.Provider != "brave" {
		return fmt.Errorf("tools.search.provider %q is not supported", s.Provider)
	}
	if strings.TrimSpace(s.APIKey) == "" {
		return fmt.Errorf("tools.search.api_key required for provider %s", s.Provider)
	}
	return nil
}

// FetchConfig contains page fetch settings
type FetchConfig struct {
	Enabled   bool          `mapstructure:"enabled"`
	Headless  bool          `mapstructure:"headless"`
	Timeout   time.Duration `mapstructure:"timeout"`
	MaxChars  int           `mapstructure:"max_chars"`
	UserAgent string        `mapstructure:"user_agent"`
}

// DocumentsConfig lists local files indexed for document search.
type DocumentsConfig struct {
	Paths      []string `mapstructure:"paths"`
	MaxResults int      `mapstructure:"max_results"`
}

// StorageConfig contains storage and persistence settings
type StorageConfig struct {
	Redis    RedisConfig    `mapstructure:"redis"`
	Postgres PostgresConfig `mapstructure:"postgres"`
	Audit    AuditConfig    `mapstructure:"audit"`
}

// RedisConfig contains Redis connection settings
type RedisConfig struct {
	Host            string        `mapstructure:"host"`
	Port            string        `mapstructure:"port"`
	Password        string        `mapstructure:"password"`
	DB              int           `mapstructure:"db"`
	Timeout         time.Duration `mapstructure:"timeout"`
	ProgressChannel string        `mapstructure:"progress_channel"`
}

// Enabled reports whether Redis progress publishing is configured.
func (r RedisConfig) Enabled() bool {
	return strings.TrimSpace(r.Host) != ""
}

// Addr returns host:port.
func (r RedisConfig) Addr() string {
	return r.Host + ":" + r.Port
}

func (r RedisConfig) Validate() error {
	if !r.Enabled() {
		return nil
	}
	if strings.TrimSpace(r.Port) == "" {
		return fmt.Errorf("storage.redis.port required")
	}
	return nil
}

// PostgresConfig contains Postgres connection settings
type PostgresConfig struct {
	URL      string        `mapstructure:"url"`
	Host     string        `mapstructure:"host"`
	Port     string        `mapstructure:"port"`
	User     string        `mapstructure:"user"`
	Password string        `mapstructure:"password"`
	DBName   string        `mapstructure:"dbname"`
	SSLMode  string        `mapstructure:"sslmode"`
	Timeout  time.Duration `mapstructure:"timeout"`
}

// Configured reports whether any connection details are present.
func (p PostgresConfig) Configured() bool {
	return strings.TrimSpace(p.URL) != "" || strings.TrimSpace(p.Host) != ""
}

// DSN builds a lib/pq connection string.
func (p PostgresConfig) DSN() string {
	if strings.TrimSpace(p.URL) != "" {
		return p.URL
	}
	sslmode := p.SSLMode
	if sslmode == "" {
		sslmode = "disable"
	}
	return fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=%s", p.User, p.Password, p.Host, p.Port, p.DBName, sslmode)
}

func (p PostgresConfig) Validate() error {
	if !p.Configured() || strings.TrimSpace(p.URL) != "" {
		return nil
	}
	if strings.TrimSpace(p.Port) == "" {
		return fmt.Errorf("storage.postgres.port required when url is not provided")
	}
	if strings.TrimSpace(p.DBName) == "" {
		return fmt.Errorf("storage.postgres.dbname required when url is not provided")
	}
	return nil
}

// AuditConfig selects where run audits are written.
type AuditConfig struct {
	Dir      string `mapstructure:"dir"`
	Postgres bool   `mapstructure:"postgres"`
}

// TelemetryConfig contains tracing settings
type TelemetryConfig struct {
	Enabled      bool   `mapstructure:"enabled"`
	OTLPEndpoint string `mapstructure:"otlp_endpoint"`
	ServiceName  string `mapstructure:"service_name"`
}

func (t TelemetryConfig) Validate() error {
	if t.Enabled && strings.TrimSpace(t.OTLPEndpoint) == "" {
		return fmt.Errorf("telemetry.otlp_endpoint required when telemetry is enabled")
	}
	return nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("general.log_level", "info")
	v.SetDefault("general.default_timeout", 5*time.Minute)
	v.SetDefault("server.address", ":8080")
	v.SetDefault("server.metrics_enabled", true)
	v.SetDefault("compiler.max_replan", 3)
	v.SetDefault("compiler.call_timeout", 2*time.Minute)
	v.SetDefault("tools.search.max_results", 5)
	v.SetDefault("tools.search.timeout", 15*time.Second)
	v.SetDefault("tools.fetch.enabled", true)
	v.SetDefault("tools.fetch.timeout", 20*time.Second)
	v.SetDefault("tools.fetch.max_chars", 8000)
	v.SetDefault("tools.documents.max_results", 5)
	v.SetDefault("storage.redis.port", "6379")
	v.SetDefault("storage.redis.timeout", 5*time.Second)
	v.SetDefault("storage.redis.progress_channel", "askgraph:progress")
	v.SetDefault("storage.postgres.sslmode", "disable")
	v.SetDefault("telemetry.service_name", "askgraph")
}

// Validate checks every section.
func (c *Config) Validate() error {
	if err := c.LLM.Validate(); err != nil {
		return err
	}
	if err := c.Compiler.Validate(); err != nil {
		return err
	}
	if err := c.Tools.Search.Validate(); err != nil {
		return err
	}
	if err := c.Storage.Redis.Validate(); err != nil {
		return err
	}
	if err := c.Storage.Postgres.Validate(); err != nil {
		return err
	}
	if c.Storage.Audit.Postgres && !c.Storage.Postgres.Configured() {
		return fmt.Errorf("storage.audit.postgres requires storage.postgres settings")
	}
	return c.Telemetry.Validate()
}

// LoadConfig loads config from file and ASKGRAPH_* environment variables.
func LoadConfig(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("json")
	setDefaults(v)

	if path == "" {
		v.AddConfigPath("./config")
		v.AddConfigPath(".")
		if exe, err := os.Executable(); err == nil {
			exeDir := filepath.Dir(exe)
			v.AddConfigPath(exeDir)
			v.AddConfigPath(filepath.Join(exeDir, "..", "config"))
		}
	} else {
		v.SetConfigFile(path)
	}

	v.SetEnvPrefix("ASKGRAPH")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	cfg.Tools.Search = cfg.Tools.Search.Normalize()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}
