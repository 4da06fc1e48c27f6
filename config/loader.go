// Loader usage:
//
//	cfg, err := config.NewLoader().
//	    WithConfigPath("config.yaml").
//	    WithDotEnv(".env").
//	    Load()
//
// Priority: defaults → YAML file → environment.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config is the complete agentswarm configuration.
type Config struct {
	LLM        LLMConfig        `yaml:"llm" env:"LLM"`
	Agent      AgentConfig      `yaml:"agent" env:"AGENT"`
	Swarm      SwarmConfig      `yaml:"swarm" env:"SWARM"`
	GuardRails GuardRailsConfig `yaml:"guardrails" env:"GUARDRAILS"`
	Orders     OrdersConfig     `yaml:"orders" env:"ORDERS"`
	Session    SessionConfig    `yaml:"session" env:"SESSION"`
	Redis      RedisConfig      `yaml:"redis" env:"REDIS"`
	Mongo      MongoConfig      `yaml:"mongo" env:"MONGO"`
	Database   DatabaseConfig   `yaml:"database" env:"DATABASE"`
	MCP        MCPConfig        `yaml:"mcp" env:"MCP"`
	Log        LogConfig        `yaml:"log" env:"LOG"`
	Telemetry  TelemetryConfig  `yaml:"telemetry" env:"TELEMETRY"`
	Metrics    MetricsConfig    `yaml:"metrics" env:"METRICS"`
}

// LLMConfig configures the model provider.
type LLMConfig struct {
	// Provider name; only "gemini" is built in.
	Provider    string        `yaml:"provider" env:"PROVIDER"`
	APIKey      string        `yaml:"api_key" env:"API_KEY"`
	Model       string        `yaml:"model" env:"MODEL"`
	Temperature float64       `yaml:"temperature" env:"TEMPERATURE"`
	MaxTokens   int           `yaml:"max_tokens" env:"MAX_TOKENS"`
	Timeout     time.Duration `yaml:"timeout" env:"TIMEOUT"`
	// MaxRetries is how often a retryable model error is retried.
	MaxRetries int `yaml:"max_retries" env:"MAX_RETRIES"`
}

// AgentConfig holds per-agent defaults.
type AgentConfig struct {
	// MaxCycles bounds model calls in one invocation.
	MaxCycles   int           `yaml:"max_cycles" env:"MAX_CYCLES"`
	ToolTimeout time.Duration `yaml:"tool_timeout" env:"TOOL_TIMEOUT"`
	// WindowSize is the sliding conversation window in messages.
	WindowSize int `yaml:"window_size" env:"WINDOW_SIZE"`
	// MaxContextTokens additionally trims the window by token count; 0 disables.
	MaxContextTokens int `yaml:"max_context_tokens" env:"MAX_CONTEXT_TOKENS"`
}

// SwarmConfig holds swarm limits.
type SwarmConfig struct {
	MaxHandoffs      int           `yaml:"max_handoffs" env:"MAX_HANDOFFS"`
	MaxIterations    int           `yaml:"max_iterations" env:"MAX_ITERATIONS"`
	ExecutionTimeout time.Duration `yaml:"execution_timeout" env:"EXECUTION_TIMEOUT"`
	NodeTimeout      time.Duration `yaml:"node_timeout" env:"NODE_TIMEOUT"`
	// RepetitiveHandoffWindow is how many recent nodes are inspected for
	// ping-pong handoffs; 0 disables detection.
	RepetitiveHandoffWindow          int `yaml:"repetitive_handoff_window" env:"REPETITIVE_HANDOFF_WINDOW"`
	RepetitiveHandoffMinUniqueAgents int `yaml:"repetitive_handoff_min_unique_agents" env:"REPETITIVE_HANDOFF_MIN_UNIQUE_AGENTS"`
}

// GuardRailsConfig configures input validation and rate limiting.
type GuardRailsConfig struct {
	Enabled           bool `yaml:"enabled" env:"ENABLED"`
	MinQueryLength    int  `yaml:"min_query_length" env:"MIN_QUERY_LENGTH"`
	MaxQueryLength    int  `yaml:"max_query_length" env:"MAX_QUERY_LENGTH"`
	RequestsPerMinute int  `yaml:"requests_per_minute" env:"REQUESTS_PER_MINUTE"`
	RequestsPerHour   int  `yaml:"requests_per_hour" env:"REQUESTS_PER_HOUR"`
}

// OrdersConfig selects the order data source.
type OrdersConfig struct {
	// Source is "csv" or "sql".
	Source  string `yaml:"source" env:"SOURCE"`
	CSVPath string `yaml:"csv_path" env:"CSV_PATH"`
	// ImportCSV seeds the SQL store from CSVPath on startup.
	ImportCSV bool `yaml:"import_csv" env:"IMPORT_CSV"`
}

// SessionConfig selects the conversation persistence backend.
type SessionConfig struct {
	// Backend is "file", "redis", "mongo" or "none".
	Backend   string        `yaml:"backend" env:"BACKEND"`
	Dir       string        `yaml:"dir" env:"DIR"`
	KeyPrefix string        `yaml:"key_prefix" env:"KEY_PREFIX"`
	TTL       time.Duration `yaml:"ttl" env:"TTL"`
}

// RedisConfig configures the Redis client.
type RedisConfig struct {
	Addr         string `yaml:"addr" env:"ADDR"`
	Password     string `yaml:"password" env:"PASSWORD"`
	DB           int    `yaml:"db" env:"DB"`
	PoolSize     int    `yaml:"pool_size" env:"POOL_SIZE"`
	MinIdleConns int    `yaml:"min_idle_conns" env:"MIN_IDLE_CONNS"`
}

// MongoConfig configures the MongoDB client.
type MongoConfig struct {
	URI        string        `yaml:"uri" env:"URI"`
	Database   string        `yaml:"database" env:"DATABASE"`
	Collection string        `yaml:"collection" env:"COLLECTION"`
	Timeout    time.Duration `yaml:"timeout" env:"TIMEOUT"`
}

// DatabaseConfig configures the SQL database.
type DatabaseConfig struct {
	// Driver is postgres, mysql or sqlite.
	Driver          string        `yaml:"driver" env:"DRIVER"`
	Host            string        `yaml:"host" env:"HOST"`
	Port            int           `yaml:"port" env:"PORT"`
	User            string        `yaml:"user" env:"USER"`
	Password        string        `yaml:"password" env:"PASSWORD"`
	Name            string        `yaml:"name" env:"NAME"`
	SSLMode         string        `yaml:"ssl_mode" env:"SSL_MODE"`
	MaxOpenConns    int           `yaml:"max_open_conns" env:"MAX_OPEN_CONNS"`
	MaxIdleConns    int           `yaml:"max_idle_conns" env:"MAX_IDLE_CONNS"`
	ConnMaxLifetime time.Duration `yaml:"conn_max_lifetime" env:"CONN_MAX_LIFETIME"`
}

// MCPConfig names the MCP server commands started over stdio.
type MCPConfig struct {
	CalculatorCommand string        `yaml:"calculator_command" env:"CALCULATOR_COMMAND"`
	OrdersCommand     string        `yaml:"orders_command" env:"ORDERS_COMMAND"`
	StartTimeout      time.Duration `yaml:"start_timeout" env:"START_TIMEOUT"`
}

// LogConfig configures zap.
type LogConfig struct {
	// Level: debug, info, warn, error
	Level string `yaml:"level" env:"LEVEL"`
	// Format: json, console
	Format           string   `yaml:"format" env:"FORMAT"`
	OutputPaths      []string `yaml:"output_paths" env:"OUTPUT_PATHS"`
	EnableCaller     bool     `yaml:"enable_caller" env:"ENABLE_CALLER"`
	EnableStacktrace bool     `yaml:"enable_stacktrace" env:"ENABLE_STACKTRACE"`
}

// TelemetryConfig configures OpenTelemetry export.
type TelemetryConfig struct {
	Enabled      bool    `yaml:"enabled" env:"ENABLED"`
	OTLPEndpoint string  `yaml:"otlp_endpoint" env:"OTLP_ENDPOINT"`
	ServiceName  string  `yaml:"service_name" env:"SERVICE_NAME"`
	SampleRate   float64 `yaml:"sample_rate" env:"SAMPLE_RATE"`
}

// MetricsConfig configures the Prometheus endpoint.
type MetricsConfig struct {
	Enabled   bool   `yaml:"enabled" env:"ENABLED"`
	Addr      string `yaml:"addr" env:"ADDR"`
	Namespace string `yaml:"namespace" env:"NAMESPACE"`
}

// GeminiAPIKeyEnv is read when no API key is configured otherwise.
const GeminiAPIKeyEnv = "GEMINI_API_KEY"

// Loader builds a Config.
type Loader struct {
	configPath string
	envPrefix  string
	dotEnv     []string
	validators []func(*Config) error
}

// NewLoader creates a loader with the AGENTSWARM prefix.
func NewLoader() *Loader {
	return &Loader{
		envPrefix:  "AGENTSWARM",
		validators: make([]func(*Config) error, 0),
	}
}

// WithConfigPath sets the YAML file path. A missing file is not an error.
func (l *Loader) WithConfigPath(path string) *Loader {
	l.configPath = path
	return l
}

// WithEnvPrefix sets the environment variable prefix.
func (l *Loader) WithEnvPrefix(prefix string) *Loader {
	l.envPrefix = prefix
	return l
}

// WithDotEnv loads the given .env files before reading the environment.
// Existing variables are never overridden and missing files are skipped.
func (l *Loader) WithDotEnv(paths ...string) *Loader {
	l.dotEnv = append(l.dotEnv, paths...)
	return l
}

// WithValidator adds a validator run after loading.
func (l *Loader) WithValidator(v func(*Config) error) *Loader {
	l.validators = append(l.validators, v)
	return l
}

// Load builds the configuration.
func (l *Loader) Load() (*Config, error) {
	cfg := DefaultConfig()

	if l.configPath != "" {
		if err := l.loadFromFile(cfg); err != nil {
			return nil, fmt.Errorf("failed to load config from file: %w", err)
		}
	}

	for _, path := range l.dotEnv {
		if err := godotenv.Load(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("failed to load %s: %w", path, err)
		}
	}

	if err := l.loadFromEnv(cfg); err != nil {
		return nil, fmt.Errorf("failed to load config from env: %w", err)
	}
	if cfg.LLM.APIKey == "" {
		cfg.LLM.APIKey = os.Getenv(GeminiAPIKeyEnv)
	}

	for _, v := range l.validators {
		if err := v(cfg); err != nil {
			return nil, fmt.Errorf("config validation failed: %w", err)
		}
	}

	return cfg, nil
}

func (l *Loader) loadFromFile(cfg *Config) error {
	data, err := os.ReadFile(l.configPath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("failed to read config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("failed to parse config file: %w", err)
	}
	return nil
}

func (l *Loader) loadFromEnv(cfg *Config) error {
	return setFieldsFromEnv(reflect.ValueOf(cfg).Elem(), l.envPrefix)
}

// setFieldsFromEnv walks struct fields recursively; nested structs extend
// the key with their own env tag.
func setFieldsFromEnv(v reflect.Value, prefix string) error {
	t := v.Type()

	for i := 0; i < v.NumField(); i++ {
		field := v.Field(i)
		fieldType := t.Field(i)

		envTag := fieldType.Tag.Get("env")
		if envTag == "" || envTag == "-" {
			continue
		}
		envKey := prefix + "_" + envTag

		if field.Kind() == reflect.Struct {
			if err := setFieldsFromEnv(field, envKey); err != nil {
				return err
			}
			continue
		}

		envValue, ok := os.LookupEnv(envKey)
		if !ok || envValue == "" {
			continue
		}
		if err := setFieldValue(field, envValue); err != nil {
			return fmt.Errorf("failed to set %s: %w", envKey, err)
		}
	}
	return nil
}

func setFieldValue(field reflect.Value, value string) error {
	if !field.CanSet() {
		return nil
	}

	switch field.Kind() {
	case reflect.String:
		field.SetString(value)

	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		if field.Type() == reflect.TypeOf(time.Duration(0)) {
			d, err := time.ParseDuration(value)
			if err != nil {
				return err
			}
			field.SetInt(int64(d))
			return nil
		}
		i, err := strconv.ParseInt(value, 10, 64)
		if err != nil {
			return err
		}
		field.SetInt(i)

	case reflect.Float32, reflect.Float64:
		f, err := strconv.ParseFloat(value, 64)
		if err != nil {
			return err
		}
		field.SetFloat(f)

	case reflect.Bool:
		b, err := strconv.ParseBool(value)
		if err != nil {
			return err
		}
		field.SetBool(b)

	case reflect.Slice:
		if field.Type().Elem().Kind() == reflect.String {
			parts := strings.Split(value, ",")
			for i := range parts {
				parts[i] = strings.TrimSpace(parts[i])
			}
			field.Set(reflect.ValueOf(parts))
		}
	}
	return nil
}

// MustLoad loads path or panics.
func MustLoad(path string) *Config {
	cfg, err := NewLoader().WithConfigPath(path).Load()
	if err != nil {
		panic(fmt.Sprintf("failed to load config: %v", err))
	}
	return cfg
}

// Validate reports every invalid setting at once.
func (c *Config) Validate() error {
	var errs []string

	if c.LLM.Temperature < 0 || c.LLM.Temperature > 2 {
		errs = append(errs, "llm.temperature must be between 0 and 2")
	}
	if c.LLM.Timeout <= 0 {
		errs = append(errs, "llm.timeout must be positive")
	}
	if c.LLM.MaxRetries < 0 {
		errs = append(errs, "llm.max_retries must not be negative")
	}
	if c.Agent.MaxCycles <= 0 {
		errs = append(errs, "agent.max_cycles must be positive")
	}
	if c.Agent.WindowSize < 0 {
		errs = append(errs, "agent.window_size must not be negative")
	}
	if c.Swarm.MaxHandoffs <= 0 {
		errs = append(errs, "swarm.max_handoffs must be positive")
	}
	if c.Swarm.MaxIterations <= 0 {
		errs = append(errs, "swarm.max_iterations must be positive")
	}
	if c.Swarm.NodeTimeout > c.Swarm.ExecutionTimeout {
		errs = append(errs, "swarm.node_timeout must not exceed swarm.execution_timeout")
	}
	if c.GuardRails.MinQueryLength < 0 || c.GuardRails.MaxQueryLength < c.GuardRails.MinQueryLength {
		errs = append(errs, "guardrails query length bounds are inconsistent")
	}
	if c.GuardRails.RequestsPerMinute <= 0 || c.GuardRails.RequestsPerHour <= 0 {
		errs = append(errs, "guardrails rate limits must be positive")
	}
	switch c.Orders.Source {
	case "csv", "sql":
	default:
		errs = append(errs, fmt.Sprintf("orders.source %q must be csv or sql", c.Orders.Source))
	}
	switch c.Session.Backend {
	case "file", "redis", "mongo", "none":
	default:
		errs = append(errs, fmt.Sprintf("session.backend %q must be file, redis, mongo or none", c.Session.Backend))
	}
	switch c.Database.Driver {
	case "postgres", "mysql", "sqlite":
	default:
		errs = append(errs, fmt.Sprintf("database.driver %q is not supported", c.Database.Driver))
	}
	if c.Telemetry.SampleRate < 0 || c.Telemetry.SampleRate > 1 {
		errs = append(errs, "telemetry.sample_rate must be between 0 and 1")
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation errors: %s", strings.Join(errs, "; "))
	}
	return nil
}

// DSN returns the driver-specific connection string.
func (d *DatabaseConfig) DSN() string {
	switch d.Driver {
	case "postgres":
		return fmt.Sprintf(
			"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
			d.Host, d.Port, d.User, d.Password, d.Name, d.SSLMode,
		)
	case "mysql":
		return fmt.Sprintf(
			"%s:%s@tcp(%s:%d)/%s?parseTime=true",
			d.User, d.Password, d.Host, d.Port, d.Name,
		)
	case "sqlite":
		return d.Name
	default:
		return ""
	}
}
