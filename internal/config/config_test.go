package config

import (
	"strings"
	"testing"
	"time"
)

func validConfig() *Config {
	return &Config{
		App: AppConfig{
			LogLevel:         "info",
			DefaultFormat:    "json",
			SupportedFormats: []string{"json", "text", "markdown"},
		},
		Server: ServerConfig{
			Port:          "8080",
			WriteTimeout:  150 * time.Second,
			AnalysisLimit: AnalysisLimitConfig{Enabled: true, PerHour: 2, PerDay: 5},
		},
		AI: AIConfig{
			Provider:         "gemini",
			Model:            "gemini-2.0-flash",
			APIKey:           "test-key",
			Timeout:          60 * time.Second,
			MaxRetries:       2,
			GenerationBudget: 135 * time.Second,
			Temperature:      0.4,
			MaxTokens:        4500,
			Anthropic:        AnthropicConfig{Model: "claude-sonnet-4-5"},
		},
		Search:  SearchConfig{APIKey: "search-key"},
		Intel:   IntelConfig{ContainerTimeout: 20 * time.Second, Threshold: 0.3},
		Session: SessionConfig{TTL: time.Hour},
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name      string
		mutate    func(c *Config)
		wantError string
	}{
		{name: "valid", mutate: func(c *Config) {}},
		{name: "missing gemini key", mutate: func(c *Config) { c.AI.APIKey = "" }, wantError: "AI API key"},
		{
			name:      "anthropic without key",
			mutate:    func(c *Config) { c.AI.Provider = "anthropic" },
			wantError: "anthropic API key",
		},
		{
			name: "anthropic with key",
			mutate: func(c *Config) {
				c.AI.Provider = "anthropic"
				c.AI.APIKey = ""
				c.AI.Anthropic.APIKey = "sk-ant"
			},
		},
		{name: "unknown provider", mutate: func(c *Config) { c.AI.Provider = "other" }, wantError: "unsupported AI provider"},
		{name: "missing search key", mutate: func(c *Config) { c.Search.APIKey = "" }, wantError: "search API key"},
		{
			name: "keys pending from vault",
			mutate: func(c *Config) {
				c.AI.APIKey = ""
				c.Search.APIKey = ""
				c.Vault = VaultConfig{Enabled: true, Secrets: VaultSecrets{
					GeminiKey: "secret/data/applysharp/gemini",
					SearchKey: "secret/data/applysharp/tavily",
				}}
			},
		},
		{
			name: "vault disabled still needs keys",
			mutate: func(c *Config) {
				c.Search.APIKey = ""
				c.Vault.Secrets.SearchKey = "secret/data/applysharp/tavily"
			},
			wantError: "search API key",
		},
		{name: "negative retries", mutate: func(c *Config) { c.AI.MaxRetries = -1 }, wantError: "maxRetries"},
		{name: "too many retries", mutate: func(c *Config) { c.AI.MaxRetries = 5 }, wantError: "maxRetries"},
		{
			name: "operation retry override out of range",
			mutate: func(c *Config) {
				retries := 3
				c.AI.CoverLetter.MaxRetries = &retries
			},
			wantError: "maxRetries for coverLetter",
		},
		{
			name: "operation timeout override must be positive",
			mutate: func(c *Config) {
				timeout := time.Duration(0)
				c.AI.CV.Timeout = &timeout
			},
			wantError: "AI timeout for cv",
		},
		{name: "zero generation budget", mutate: func(c *Config) { c.AI.GenerationBudget = 0 }, wantError: "generation budget"},
		{
			name:      "generation budget outlives write timeout",
			mutate:    func(c *Config) { c.AI.GenerationBudget = 200 * time.Second },
			wantError: "server write timeout",
		},
		{name: "no write timeout leaves budget unchecked", mutate: func(c *Config) { c.Server.WriteTimeout = 0 }},
		{name: "zero session ttl", mutate: func(c *Config) { c.Session.TTL = 0 }, wantError: "session TTL"},
		{name: "threshold out of range", mutate: func(c *Config) { c.Intel.Threshold = 1.5 }, wantError: "threshold"},
		{
			name:      "daily limit below hourly",
			mutate:    func(c *Config) { c.Server.AnalysisLimit.PerDay = 1 },
			wantError: "analysis limit",
		},
		{name: "bad default format", mutate: func(c *Config) { c.App.DefaultFormat = "xml" }, wantError: "default format"},
		{
			name:      "tls without key",
			mutate:    func(c *Config) { c.Server.TLS = TLSConfig{Enabled: true, CertFile: "cert.pem"} },
			wantError: "TLS",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := validConfig()
			tt.mutate(c)
			err := c.Validate()
			if tt.wantError == "" {
				if err != nil {
					t.Errorf("Expected no error, got %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantError) {
				t.Errorf("Expected error containing %q, got %v", tt.wantError, err)
			}
		})
	}
}

func TestGetOperationConfig(t *testing.T) {
	c := validConfig()
	cvTemp := float32(0.2)
	timeout := 90 * time.Second
	c.AI.CV = OperationAIConfig{Temperature: &cvTemp, Timeout: &timeout}
	c.AI.Outreach = OperationAIConfig{Model: "gemini-2.5-pro"}
	c.Prompts.CV.System = "custom system"

	cv := c.GetOperationConfig(OperationCV)
	if cv.Temperature != 0.2 {
		t.Errorf("Expected CV temperature 0.2, got %v", cv.Temperature)
	}
	if cv.Timeout != 90*time.Second {
		t.Errorf("Expected CV timeout 90s, got %v", cv.Timeout)
	}
	if cv.Prompts.System != "custom system" {
		t.Errorf("Expected CV prompts to be resolved, got %q", cv.Prompts.System)
	}
	if cv.Model != "gemini-2.0-flash" {
		t.Errorf("Expected global model fallback, got %s", cv.Model)
	}

	cover := c.GetOperationConfig(OperationCoverLetter)
	if cover.Temperature != 0.4 || cover.Timeout != 60*time.Second {
		t.Errorf("Expected global fallbacks for cover letter, got temp=%v timeout=%v", cover.Temperature, cover.Timeout)
	}

	if got := c.GetOperationConfig(OperationOutreach).Model; got != "gemini-2.5-pro" {
		t.Errorf("Expected outreach model override, got %s", got)
	}

	c.AI.Provider = "anthropic"
	if got := c.GetOperationConfig(OperationCoverLetter).Model; got != "claude-sonnet-4-5" {
		t.Errorf("Expected anthropic model for anthropic provider, got %s", got)
	}
}
