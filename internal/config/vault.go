package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"applysharp/internal/errors"

	"github.com/hashicorp/vault/api"
)

// VaultConfig holds Vault connection configuration
type VaultConfig struct {
	Enabled   bool   `mapstructure:"enabled"`
	Address   string `mapstructure:"address"`
	Token     string `mapstructure:"token"`
	TokenFile string `mapstructure:"tokenFile"`
	Namespace string `mapstructure:"namespace"`

	// PasswordPollInterval controls how often the password secret is checked for a new version.
	PasswordPollInterval time.Duration `mapstructure:"passwordPollInterval"`

	Secrets VaultSecrets `mapstructure:"secrets"`
}

// VaultSecrets defines where to find secrets in Vault (KVv2 paths)
type VaultSecrets struct {
	Password     string `mapstructure:"password"`     // key "password"
	GeminiKey    string `mapstructure:"geminiKey"`    // key "api_key"
	AnthropicKey string `mapstructure:"anthropicKey"` // key "api_key"
	SearchKey    string `mapstructure:"searchKey"`    // key "api_key"
}

// Secret keys inside each KVv2 secret
const (
	PasswordSecretKey = "password"
	APIKeySecretKey   = "api_key"
)

// VaultClient wraps the Vault API client
type VaultClient struct {
	client *api.Client
	config VaultConfig
	logger *errors.Logger
}

// NewVaultClient creates a new Vault client from configuration.
// It returns nil, nil when Vault is disabled.
func NewVaultClient(config VaultConfig, logger *errors.Logger) (*VaultClient, error) {
	if !config.Enabled {
		return nil, nil
	}

	vaultConfig := api.DefaultConfig()
	if config.Address != "" {
		vaultConfig.Address = config.Address
	}

	client, err := api.NewClient(vaultConfig)
	if err != nil {
		return nil, errors.NewConfigError(errors.ErrCodeSecretUnavailable, "failed to create vault client", err)
	}
	if config.Namespace != "" {
		client.SetNamespace(config.Namespace)
	}

	token, err := resolveVaultToken(config)
	if err != nil {
		return nil, err
	}
	client.SetToken(token)

	health, err := client.Sys().Health()
	if err != nil {
		return nil, errors.NewConfigError(errors.ErrCodeSecretUnavailable, "failed to connect to vault", err).
			WithContext("address", vaultConfig.Address)
	}
	if logger != nil {
		logger.Info("Connected to Vault",
			"address", vaultConfig.Address,
			"version", health.Version,
			"sealed", health.Sealed)
	}

	return &VaultClient{client: client, config: config, logger: logger}, nil
}

// resolveVaultToken resolves the Vault token from config or file
func resolveVaultToken(config VaultConfig) (string, error) {
	token := config.Token
	if token == "" && config.TokenFile != "" {
		tokenBytes, err := os.ReadFile(config.TokenFile)
		if err != nil {
			return "", errors.NewConfigError(errors.ErrCodeSecretUnavailable, "failed to read vault token file", err).
				WithContext("file", config.TokenFile)
		}
		token = strings.TrimSpace(string(tokenBytes))
	}
	if token == "" {
		return "", errors.NewConfigError(errors.ErrCodeSecretUnavailable, "vault token is required when vault is enabled", nil)
	}
	return token, nil
}

// VaultSecret represents a secret read from Vault's KVv2 engine.
type VaultSecret struct {
	Data    map[string]any
	Version int64
}

// GetSecretV2 retrieves a secret from a Vault KVv2 store.
func (vc *VaultClient) GetSecretV2(path string) (*VaultSecret, error) {
	if vc == nil {
		return nil, fmt.Errorf("vault client not initialized")
	}

	secret, err := vc.client.Logical().Read(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read secret from %s: %w", path, err)
	}
	if secret == nil || secret.Data == nil {
		return nil, fmt.Errorf("secret not found at path: %s", path)
	}

	data, err := vc.extractSecretData(secret, path)
	if err != nil {
		return nil, err
	}
	version, err := vc.extractSecretVersion(secret, path)
	if err != nil {
		return nil, err
	}

	return &VaultSecret{Data: data, Version: version}, nil
}

// extractSecretData extracts the data field from a KVv2 secret
func (vc *VaultClient) extractSecretData(secret *api.Secret, path string) (map[string]any, error) {
	data, ok := secret.Data["data"].(map[string]any)
	if !ok {
		return nil, fmt.Errorf("secret at %s is not in KVv2 format (missing 'data' field)", path)
	}
	return data, nil
}

// extractSecretVersion extracts and parses the version from a KVv2 secret
func (vc *VaultClient) extractSecretVersion(secret *api.Secret, path string) (int64, error) {
	metadata, ok := secret.Data["metadata"].(map[string]any)
	if !ok {
		return 0, fmt.Errorf("secret at %s is not in KVv2 format (missing 'metadata' field)", path)
	}
	versionRaw, ok := metadata["version"]
	if !ok {
		return 0, fmt.Errorf("secret metadata at %s is missing 'version' field", path)
	}
	return parseVersionValue(versionRaw, path)
}

// parseVersionValue parses version value from the types the Vault API decodes into
func parseVersionValue(versionRaw any, path string) (int64, error) {
	switch v := versionRaw.(type) {
	case int64:
		return v, nil
	case float64:
		return int64(v), nil
	case string:
		version, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return 0, fmt.Errorf("could not parse secret version at %s: %w", path, err)
		}
		return version, nil
	default:
		return 0, fmt.Errorf("unexpected type for version at %s: %T", path, versionRaw)
	}
}

// StringValue returns a string field of the secret.
func (s *VaultSecret) StringValue(path, key string) (string, error) {
	value, ok := s.Data[key]
	if !ok {
		return "", fmt.Errorf("key '%s' not found in secret %s", key, path)
	}
	strValue, ok := value.(string)
	if !ok {
		return "", fmt.Errorf("value for key '%s' is not a string in secret %s", key, path)
	}
	return strValue, nil
}

// GetStringSecret retrieves a string value from a Vault secret
func (vc *VaultClient) GetStringSecret(path, key string) (string, error) {
	secret, err := vc.GetSecretV2(path)
	if err != nil {
		return "", err
	}
	value, err := secret.StringValue(path, key)
	if err != nil {
		return "", err
	}
	if vc.logger != nil {
		vc.logger.Debug("String secret retrieved from Vault", "path", path, "key", key, "masked_value", maskSecret(value))
	}
	return value, nil
}

func maskSecret(value string) string {
	switch {
	case len(value) > 8:
		return value[:4] + "****" + value[len(value)-4:]
	case value != "":
		return "****"
	default:
		return ""
	}
}

// secretBinding maps one Vault secret onto one config field
type secretBinding struct {
	name   string
	path   string
	key    string
	target *string
}

func (c *Config) secretBindings() []secretBinding {
	s := c.Vault.Secrets
	return []secretBinding{
		{name: "app password", path: s.Password, key: PasswordSecretKey, target: &c.Server.Password},
		{name: "Gemini API key", path: s.GeminiKey, key: APIKeySecretKey, target: &c.AI.APIKey},
		{name: "Anthropic API key", path: s.AnthropicKey, key: APIKeySecretKey, target: &c.AI.Anthropic.APIKey},
		{name: "search API key", path: s.SearchKey, key: APIKeySecretKey, target: &c.Search.APIKey},
	}
}

// SecretReader is the subset of the Vault client used to load secrets
type SecretReader interface {
	GetStringSecret(path, key string) (string, error)
}

// ApplyVaultSecrets loads secrets from Vault and applies them to the config.
// It returns the client so callers can keep watching secrets, or nil when Vault is disabled.
func ApplyVaultSecrets(config *Config, logger *errors.Logger) (*VaultClient, error) {
	if !config.Vault.Enabled {
		if logger != nil {
			logger.Debug("Vault integration disabled, skipping secret loading")
		}
		return nil, nil
	}

	client, err := NewVaultClient(config.Vault, logger)
	if err != nil {
		return nil, err
	}
	if err := applySecrets(client, config, logger); err != nil {
		return nil, err
	}
	return client, nil
}

// applySecrets overwrites each bound config field with its Vault value
func applySecrets(reader SecretReader, config *Config, logger *errors.Logger) error {
	loaded := 0
	for _, b := range config.secretBindings() {
		if b.path == "" {
			continue
		}
		value, err := reader.GetStringSecret(b.path, b.key)
		if err != nil {
			return errors.NewConfigError(errors.ErrCodeSecretUnavailable, "failed to load "+b.name+" from vault", err).
				WithContext("path", b.path)
		}
		if value == "" {
			if logger != nil {
				logger.Warn("Empty secret found in Vault", "secret", b.name, "path", b.path)
			}
			continue
		}
		*b.target = value
		loaded++
	}

	if logger != nil {
		logger.Info("Applied secrets from Vault", "count", loaded)
	}
	return nil
}
