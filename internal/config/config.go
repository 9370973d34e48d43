package config

import (
	"fmt"
	"log"
	"os"
	"slices"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds all application configuration.
// Secret precedence order:
// 1. Vault (if configured) - Highest priority
// 2. Config File values
// 3. Environment Variables (APPLYSHARP_AI_APIKEY, etc.)
// 4. Default values - Lowest priority
type Config struct {
	App           AppConfig           `mapstructure:"app"`
	Server        ServerConfig        `mapstructure:"server"`
	AI            AIConfig            `mapstructure:"ai"`
	Search        SearchConfig        `mapstructure:"search"`
	Intel         IntelConfig         `mapstructure:"intel"`
	Detect        DetectConfig        `mapstructure:"detect"`
	Session       SessionConfig       `mapstructure:"session"`
	Vault         VaultConfig         `mapstructure:"vault"`
	Observability ObservabilityConfig `mapstructure:"observability"`
	Prompts       PromptConfig        `mapstructure:"prompts"`
}

// AppConfig holds general application configuration
type AppConfig struct {
	LogLevel          string   `mapstructure:"logLevel"`
	DefaultFormat     string   `mapstructure:"defaultFormat"`
	SupportedFormats  []string `mapstructure:"supportedFormats"`
	MaxFileSize       int64    `mapstructure:"maxFileSize"`
	MaxFieldLength    int      `mapstructure:"maxFieldLength"`
	MaxJobDescription int      `mapstructure:"maxJobDescription"`
	MinExtractedChars int      `mapstructure:"minExtractedChars"`
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Host           string        `mapstructure:"host"`
	Port           string        `mapstructure:"port"`
	ReadTimeout    time.Duration `mapstructure:"readTimeout"`
	WriteTimeout   time.Duration `mapstructure:"writeTimeout"`
	IdleTimeout    time.Duration `mapstructure:"idleTimeout"`
	MaxRequestSize int64         `mapstructure:"maxRequestSize"`

	// Password is the shared secret of the password gate.
	Password string `mapstructure:"password"`

	TLS           TLSConfig           `mapstructure:"tls"`
	CORS          CORSConfig          `mapstructure:"cors"`
	RateLimit     RateLimitConfig     `mapstructure:"rateLimit"`
	AnalysisLimit AnalysisLimitConfig `mapstructure:"analysisLimit"`
}

// TLSConfig enables HTTPS with a certificate/key pair on disk
type TLSConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	CertFile string `mapstructure:"certFile"`
	KeyFile  string `mapstructure:"keyFile"`
}

// CORSConfig restricts which browser origin may call the API
type CORSConfig struct {
	AllowedOrigin string `mapstructure:"allowedOrigin"`
}

// RateLimitConfig holds the general per-IP token bucket configuration
type RateLimitConfig struct {
	Enabled        bool          `mapstructure:"enabled"`        // Enable/disable rate limiting
	RequestsPerMin int           `mapstructure:"requestsPerMin"` // Requests allowed per minute
	BurstCapacity  int           `mapstructure:"burstCapacity"`  // Burst capacity for token bucket
	Window         time.Duration `mapstructure:"window"`         // Idle time before a limiter is dropped
}

// AnalysisLimitConfig bounds how many analyses one client may start
type AnalysisLimitConfig struct {
	Enabled bool `mapstructure:"enabled"`
	PerHour int  `mapstructure:"perHour"`
	PerDay  int  `mapstructure:"perDay"`
}

// AIConfig holds text-generation configuration
type AIConfig struct {
	Provider         string               `mapstructure:"provider"` // "gemini" or "anthropic"
	Model            string               `mapstructure:"model"`
	APIKey           string               `mapstructure:"apiKey"`
	Timeout          time.Duration        `mapstructure:"timeout"`
	MaxRetries       int                  `mapstructure:"maxRetries"`
	GenerationBudget time.Duration        `mapstructure:"generationBudget"` // deadline for the whole artifact bundle
	Temperature      float32              `mapstructure:"temperature"`
	MaxTokens        int                  `mapstructure:"maxTokens"`
	UseSystemPrompts bool                 `mapstructure:"useSystemPrompts"`
	CircuitBreaker   CircuitBreakerConfig `mapstructure:"circuitBreaker"`
	Anthropic        AnthropicConfig      `mapstructure:"anthropic"`

	// Operation-specific overrides
	CV          OperationAIConfig `mapstructure:"cv"`
	CoverLetter OperationAIConfig `mapstructure:"coverLetter"`
	Outreach    OperationAIConfig `mapstructure:"outreach"`
}

// AnthropicConfig holds settings used when the provider is "anthropic"
type AnthropicConfig struct {
	APIKey  string `mapstructure:"apiKey"`
	Model   string `mapstructure:"model"`
	BaseURL string `mapstructure:"baseURL"`
}

// CircuitBreakerConfig represents circuit breaker configuration
type CircuitBreakerConfig struct {
	Enabled          bool          `mapstructure:"enabled"`          // Whether circuit breaker is enabled
	MaxRequests      uint32        `mapstructure:"maxRequests"`      // Max requests allowed when half-open
	Interval         time.Duration `mapstructure:"interval"`         // Interval to clear counts
	Timeout          time.Duration `mapstructure:"timeout"`          // Timeout for half-open to open
	MinRequests      uint32        `mapstructure:"minRequests"`      // Minimum requests before tripping
	FailureThreshold float64       `mapstructure:"failureThreshold"` // Failure ratio threshold (0.0-1.0)
}

// OperationAIConfig holds AI overrides for one generation call
type OperationAIConfig struct {
	Model       string         `mapstructure:"model"`
	Timeout     *time.Duration `mapstructure:"timeout"`
	MaxRetries  *int           `mapstructure:"maxRetries"`
	Temperature *float32       `mapstructure:"temperature"`
	MaxTokens   *int           `mapstructure:"maxTokens"`
}

// SearchConfig holds web-search configuration
type SearchConfig struct {
	Endpoint       string        `mapstructure:"endpoint"`
	APIKey         string        `mapstructure:"apiKey"`
	MaxResults     int           `mapstructure:"maxResults"`
	SearchDepth    string        `mapstructure:"searchDepth"`
	TrustedDomains []string      `mapstructure:"trustedDomains"`
	Timeout        time.Duration `mapstructure:"timeout"`
	MaxRetries     int           `mapstructure:"maxRetries"`
	Cache          CacheConfig   `mapstructure:"cache"`
}

// CacheConfig holds search-result cache configuration
type CacheConfig struct {
	Enabled         bool          `mapstructure:"enabled"`
	TTL             time.Duration `mapstructure:"ttl"`
	RedisURL        string        `mapstructure:"redisURL"`
	MaxEntries      int           `mapstructure:"maxEntries"`
	CleanupInterval time.Duration `mapstructure:"cleanupInterval"`
}

// IntelConfig holds intelligence gathering and intersection configuration
type IntelConfig struct {
	ContainerTimeout time.Duration `mapstructure:"containerTimeout"`
	CompanyTips      bool          `mapstructure:"companyTips"`
	SnippetLength    int           `mapstructure:"snippetLength"`
	TopN             int           `mapstructure:"topN"`
	Threshold        float64       `mapstructure:"threshold"`
	MinShared        int           `mapstructure:"minShared"`
}

// DetectConfig holds gap and pattern detection configuration
type DetectConfig struct {
	MaxGaps             int    `mapstructure:"maxGaps"`
	MaxQuestions        int    `mapstructure:"maxQuestions"`
	EmploymentGapMonths int    `mapstructure:"employmentGapMonths"`
	LexiconFile         string `mapstructure:"lexiconFile"`
	WatchLexicon        bool   `mapstructure:"watchLexicon"`
}

// SessionConfig holds session store configuration
type SessionConfig struct {
	TTL           time.Duration `mapstructure:"ttl"`
	SweepInterval time.Duration `mapstructure:"sweepInterval"`
}

// ObservabilityConfig holds observability configuration
type ObservabilityConfig struct {
	Enabled         bool          `mapstructure:"enabled"`
	ServiceName     string        `mapstructure:"serviceName"`
	ServiceVersion  string        `mapstructure:"serviceVersion"`
	ServiceInstance string        `mapstructure:"serviceInstance"`
	ConsoleOutput   bool          `mapstructure:"consoleOutput"`
	Tracing         TracingConfig `mapstructure:"tracing"`
	Metrics         MetricsConfig `mapstructure:"metrics"`
	Prometheus      PromConfig    `mapstructure:"prometheus"`
	OTLP            OTLPConfig    `mapstructure:"otlp"`
}

// TracingConfig holds tracing configuration
type TracingConfig struct {
	Enabled    bool    `mapstructure:"enabled"`
	SampleRate float64 `mapstructure:"sampleRate"`
}

// MetricsConfig holds metrics configuration
type MetricsConfig struct {
	Enabled            bool          `mapstructure:"enabled"`
	CollectionInterval time.Duration `mapstructure:"collectionInterval"`
}

// PromConfig holds Prometheus configuration
type PromConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	Endpoint string `mapstructure:"endpoint"`
	Port     string `mapstructure:"port"`
}

// OTLPConfig holds OTLP exporter configuration
type OTLPConfig struct {
	Enabled  bool              `mapstructure:"enabled"`
	Endpoint string            `mapstructure:"endpoint"`
	Insecure bool              `mapstructure:"insecure"`
	Headers  map[string]string `mapstructure:"headers"`
}

// LoadConfig loads configuration from .env, environment variables and a config file
func LoadConfig() (*Config, error) {
	log.Println("[CONFIG] Starting configuration loading process")

	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("failed to load .env file: %w", err)
	}

	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix("APPLYSHARP")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath("/etc/applysharp/")
	v.AddConfigPath("$HOME/.applysharp")
	v.AddConfigPath(".")
	log.Println("[CONFIG] Configured config file search paths: /etc/applysharp/, $HOME/.applysharp, .")

	configFileUsed := ""
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		log.Println("[CONFIG] No config file found, using defaults and environment variables")
	} else {
		configFileUsed = v.ConfigFileUsed()
		log.Printf("[CONFIG] Successfully loaded config file: %s", configFileUsed)
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	config.applyFallbacks()
	config.logConfigurationSources(configFileUsed)

	if err := config.validatePromptFiles(); err != nil {
		return nil, fmt.Errorf("prompt file validation failed: %w", err)
	}
	if err := config.loadPromptsFromFiles(); err != nil {
		return nil, fmt.Errorf("failed to load custom prompts from files: %w", err)
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	log.Println("[CONFIG] Configuration loading completed successfully")
	return &config, nil
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	switch c.AI.Provider {
	case "gemini":
		if c.AI.APIKey == "" && !c.fromVault(c.Vault.Secrets.GeminiKey) {
			return fmt.Errorf("AI API key is required (set APPLYSHARP_AI_APIKEY environment variable)")
		}
	case "anthropic":
		if c.AI.Anthropic.APIKey == "" && !c.fromVault(c.Vault.Secrets.AnthropicKey) {
			return fmt.Errorf("anthropic API key is required (set APPLYSHARP_AI_ANTHROPIC_APIKEY environment variable)")
		}
	default:
		return fmt.Errorf("unsupported AI provider: %s", c.AI.Provider)
	}

	for _, op := range []Operation{OperationCV, OperationCoverLetter, OperationOutreach} {
		resolved := c.GetOperationConfig(op)
		if resolved.Timeout <= 0 {
			return fmt.Errorf("AI timeout for %s must be positive", op)
		}
		if resolved.MaxRetries < 0 || resolved.MaxRetries > MaxAIRetries {
			return fmt.Errorf("AI maxRetries for %s must be between 0 and %d, got %d", op, MaxAIRetries, resolved.MaxRetries)
		}
	}

	if c.AI.GenerationBudget <= 0 {
		return fmt.Errorf("AI generation budget must be positive")
	}
	if c.Server.WriteTimeout > 0 && c.AI.GenerationBudget >= c.Server.WriteTimeout {
		return fmt.Errorf("AI generation budget (%s) must be shorter than the server write timeout (%s)",
			c.AI.GenerationBudget, c.Server.WriteTimeout)
	}

	if c.Search.APIKey == "" && !c.fromVault(c.Vault.Secrets.SearchKey) {
		return fmt.Errorf("search API key is required (set APPLYSHARP_SEARCH_APIKEY environment variable)")
	}

	if c.Server.Port == "" {
		return fmt.Errorf("server port is required")
	}

	if c.Session.TTL <= 0 {
		return fmt.Errorf("session TTL must be positive")
	}

	if c.Intel.ContainerTimeout <= 0 {
		return fmt.Errorf("intel container timeout must be positive")
	}

	if c.Intel.Threshold <= 0 || c.Intel.Threshold > 1 {
		return fmt.Errorf("intel threshold must be in (0, 1], got %v", c.Intel.Threshold)
	}

	if c.Server.AnalysisLimit.Enabled && (c.Server.AnalysisLimit.PerHour <= 0 || c.Server.AnalysisLimit.PerDay < c.Server.AnalysisLimit.PerHour) {
		return fmt.Errorf("analysis limit requires 0 < perHour <= perDay")
	}

	if !slices.Contains(c.App.SupportedFormats, c.App.DefaultFormat) {
		return fmt.Errorf("invalid default format: %s", c.App.DefaultFormat)
	}

	if c.Server.TLS.Enabled && (c.Server.TLS.CertFile == "" || c.Server.TLS.KeyFile == "") {
		return fmt.Errorf("TLS requires both certFile and keyFile")
	}

	return nil
}

// fromVault reports whether a secret will be loaded from Vault at startup
func (c *Config) fromVault(path string) bool {
	return c.Vault.Enabled && path != ""
}

// applyFallbacks fills values that depend on other settings
func (c *Config) applyFallbacks() {
	if c.AI.Anthropic.Model == "" {
		c.AI.Anthropic.Model = "claude-sonnet-4-5"
	}

	if c.Observability.ServiceInstance == "" {
		c.Observability.ServiceInstance = generateServiceInstanceID(c.Observability.ServiceName)
	}

	if c.App.LogLevel == "debug" && !c.Observability.ConsoleOutput {
		c.Observability.ConsoleOutput = true
	}
}

// generateServiceInstanceID generates a unique service instance ID
func generateServiceInstanceID(serviceName string) string {
	if hostname, err := os.Hostname(); err == nil {
		return fmt.Sprintf("%s-%s", serviceName, hostname)
	}
	return fmt.Sprintf("%s-1", serviceName)
}

// Operation names the three generation calls
type Operation string

const (
	OperationCV          Operation = "cv"
	OperationCoverLetter Operation = "coverLetter"
	OperationOutreach    Operation = "outreach"
)

// MaxAIRetries caps the retries of one provider call, so a call makes at most three attempts
const MaxAIRetries = 2

// ResolvedAIConfig is the effective configuration of one generation call
type ResolvedAIConfig struct {
	Provider         string
	Model            string
	Timeout          time.Duration
	MaxRetries       int
	Temperature      float32
	MaxTokens        int
	UseSystemPrompts bool
	CircuitBreaker   CircuitBreakerConfig
	Prompts          OperationPrompts
}

// GetOperationConfig returns the AI configuration for an operation with fallback to the global config
func (c *Config) GetOperationConfig(op Operation) ResolvedAIConfig {
	var opCfg OperationAIConfig
	var prompts OperationPrompts
	switch op {
	case OperationCV:
		opCfg, prompts = c.AI.CV, c.Prompts.CV
	case OperationCoverLetter:
		opCfg, prompts = c.AI.CoverLetter, c.Prompts.CoverLetter
	case OperationOutreach:
		opCfg, prompts = c.AI.Outreach, c.Prompts.Outreach
	}

	resolved := ResolvedAIConfig{
		Provider:         c.AI.Provider,
		Model:            c.AI.Model,
		Timeout:          c.AI.Timeout,
		MaxRetries:       c.AI.MaxRetries,
		Temperature:      c.AI.Temperature,
		MaxTokens:        c.AI.MaxTokens,
		UseSystemPrompts: c.AI.UseSystemPrompts,
		CircuitBreaker:   c.AI.CircuitBreaker,
		Prompts:          prompts,
	}
	if c.AI.Provider == "anthropic" {
		resolved.Model = c.AI.Anthropic.Model
	}
	if opCfg.Model != "" {
		resolved.Model = opCfg.Model
	}
	if opCfg.Timeout != nil {
		resolved.Timeout = *opCfg.Timeout
	}
	if opCfg.MaxRetries != nil {
		resolved.MaxRetries = *opCfg.MaxRetries
	}
	if opCfg.Temperature != nil {
		resolved.Temperature = *opCfg.Temperature
	}
	if opCfg.MaxTokens != nil {
		resolved.MaxTokens = *opCfg.MaxTokens
	}
	return resolved
}

// logConfigurationSources logs a summary of configuration sources being used
func (c *Config) logConfigurationSources(configFileUsed string) {
	log.Println("[CONFIG] === Configuration Sources Summary ===")

	if configFileUsed != "" {
		log.Printf("[CONFIG] Config file: %s", configFileUsed)
	} else {
		log.Println("[CONFIG] Config file: None (using defaults)")
	}

	envVars := []string{
		"APPLYSHARP_AI_APIKEY",
		"APPLYSHARP_AI_PROVIDER",
		"APPLYSHARP_AI_MODEL",
		"APPLYSHARP_AI_ANTHROPIC_APIKEY",
		"APPLYSHARP_SEARCH_APIKEY",
		"APPLYSHARP_SERVER_PASSWORD",
		"APPLYSHARP_SERVER_PORT",
		"APPLYSHARP_SERVER_CORS_ALLOWEDORIGIN",
		"APPLYSHARP_APP_LOGLEVEL",
		"APPLYSHARP_VAULT_ENABLED",
	}

	log.Println("[CONFIG] Environment variables:")
	hasEnvVars := false
	for _, envVar := range envVars {
		if value := os.Getenv(envVar); value != "" {
			if isSensitiveKey(envVar) {
				log.Printf("[CONFIG]   %s=***MASKED***", envVar)
			} else {
				log.Printf("[CONFIG]   %s=%s", envVar, value)
			}
			hasEnvVars = true
		}
	}
	if !hasEnvVars {
		log.Println("[CONFIG]   None set")
	}

	log.Println("[CONFIG] === Key Configuration Values ===")
	log.Printf("[CONFIG] AI Provider: %s", c.AI.Provider)
	log.Printf("[CONFIG] AI Model: %s", c.GetOperationConfig(OperationCV).Model)
	log.Printf("[CONFIG] AI API Key: %s", configuredLabel(c.AI.APIKey != "" || c.AI.Anthropic.APIKey != ""))
	log.Printf("[CONFIG] Search API Key: %s", configuredLabel(c.Search.APIKey != ""))
	log.Printf("[CONFIG] Search Cache: enabled=%t redis=%t", c.Search.Cache.Enabled, c.Search.Cache.RedisURL != "")
	log.Printf("[CONFIG] Server: %s:%s (tls=%t)", c.Server.Host, c.Server.Port, c.Server.TLS.Enabled)
	log.Printf("[CONFIG] Password Gate: %s", configuredLabel(c.Server.Password != ""))
	log.Printf("[CONFIG] CORS Origin: %s", c.Server.CORS.AllowedOrigin)
	log.Printf("[CONFIG] Session TTL: %s", c.Session.TTL)
	log.Printf("[CONFIG] Log Level: %s", c.App.LogLevel)
	log.Printf("[CONFIG] Vault Enabled: %t", c.Vault.Enabled)
	log.Printf("[CONFIG] Observability Enabled: %t", c.Observability.Enabled)
	log.Println("[CONFIG] =====================================")
}

func isSensitiveKey(name string) bool {
	lower := strings.ToLower(name)
	return strings.Contains(lower, "key") || strings.Contains(lower, "password") || strings.Contains(lower, "token")
}

func configuredLabel(ok bool) string {
	if ok {
		return "***CONFIGURED***"
	}
	return "***NOT SET***"
}
