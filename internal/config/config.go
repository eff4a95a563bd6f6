// Package config provides configuration management for the PDF translator.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"

	"pdf-translator/internal/logger"
	"pdf-translator/internal/types"
)

const (
	// DefaultConfigFileName is the default configuration file name
	DefaultConfigFileName = "pdf-translator-config.json"
	// EnvOpenAIAPIKey is the environment variable name for OpenAI API key
	EnvOpenAIAPIKey = "OPENAI_API_KEY"
	// EnvOpenAIBaseURL is the environment variable name for OpenAI base URL
	EnvOpenAIBaseURL = "OPENAI_BASE_URL"
	// EnvProvider selects the translation provider
	EnvProvider = "PDF_TRANSLATOR_PROVIDER"
	// EnvRegion is the AWS region used by the Bedrock backed collaborators
	EnvRegion = "AWS_REGION"

	// ProviderOpenAI translates through an OpenAI compatible chat model
	ProviderOpenAI = "openai"
	// ProviderBedrock translates through Claude on Amazon Bedrock
	ProviderBedrock = "bedrock"

	DefaultBaseURL      = "https://api.openai.com/v1"
	DefaultModel        = "gpt-4o"
	DefaultBedrockModel = "anthropic.claude-3-sonnet-20240229-v1:0"
	DefaultFilterModel  = "anthropic.claude-3-sonnet-20240229-v1:0"
	DefaultRegion       = "us-east-1"
	DefaultSourceLang   = "en"
	DefaultTargetLang   = "zh-TW"
	// DefaultMaxChunkLength is the provider request limit in runes
	DefaultMaxChunkLength = 4000
	// DefaultConcurrency is the number of pages translated in parallel
	DefaultConcurrency = 3
	// DefaultMaxInFlight bounds concurrent provider calls across all pages
	DefaultMaxInFlight       = 4
	DefaultRequestsPerSecond = 2.0
	DefaultMaxRetries        = 3
	DefaultLogLevel          = "info"
)

// ConfigManager manages application configuration
type ConfigManager struct {
	configPath string
	config     *types.Config
}

// NewConfigManager creates a new ConfigManager with the specified config path.
// If configPath is empty, it uses the default path in user's home directory.
func NewConfigManager(configPath string) (*ConfigManager, error) {
	if configPath == "" {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			logger.Error("failed to get user home directory", err)
			return nil, types.NewAppError(types.ErrConfig, "failed to get user home directory", err)
		}
		configPath = filepath.Join(homeDir, ".config", "pdf-translator", DefaultConfigFileName)
	}

	logger.Debug("ConfigManager initialized", logger.String("configPath", configPath))
	return &ConfigManager{
		configPath: configPath,
		config:     defaultConfig(),
	}, nil
}

// defaultConfig returns a Config with default values
func defaultConfig() *types.Config {
	return &types.Config{
		Provider:          ProviderOpenAI,
		OpenAIBaseURL:     DefaultBaseURL,
		OpenAIModel:       DefaultModel,
		BedrockModel:      DefaultBedrockModel,
		FilterModel:       DefaultFilterModel,
		EnableAIFilter:    true,
		Region:            DefaultRegion,
		SourceLang:        DefaultSourceLang,
		TargetLang:        DefaultTargetLang,
		MaxChunkLength:    DefaultMaxChunkLength,
		Concurrency:       DefaultConcurrency,
		MaxInFlight:       DefaultMaxInFlight,
		RequestsPerSecond: DefaultRequestsPerSecond,
		MaxRetries:        DefaultMaxRetries,
		LogLevel:          DefaultLogLevel,
	}
}

// LoadDotEnv loads KEY=VALUE pairs from the given .env files into the
// process environment. Variables that are already set win. Missing files
// are ignored.
func LoadDotEnv(paths ...string) {
	if len(paths) == 0 {
		paths = []string{".env"}
	}
	for _, p := range paths {
		if _, err := os.Stat(p); err != nil {
			continue
		}
		if err := godotenv.Load(p); err != nil {
			logger.Warn("failed to load env file", logger.String("path", p), logger.Err(err))
			continue
		}
		logger.Debug("env file loaded", logger.String("path", p))
	}
}

// Load loads configuration from the config file.
// If the file doesn't exist, it uses default values.
// Environment variables override the file for provider, credentials and region.
func (m *ConfigManager) Load() error {
	logger.Debug("loading configuration", logger.String("path", m.configPath))

	data, err := os.ReadFile(m.configPath)
	if err != nil {
		if os.IsNotExist(err) {
			logger.Info("config file not found, using defaults", logger.String("path", m.configPath))
			m.config = defaultConfig()
		} else {
			logger.Error("failed to read config file", err, logger.String("path", m.configPath))
			return types.NewAppError(types.ErrConfig, "failed to read config file", err)
		}
	} else {
		config := &types.Config{}
		if err := json.Unmarshal(data, config); err != nil {
			logger.Warn("invalid config file format, using defaults", logger.String("path", m.configPath), logger.Err(err))
			m.config = defaultConfig()
		} else {
			logger.Info("configuration loaded",
				logger.String("path", m.configPath),
				logger.String("provider", config.Provider),
				logger.String("region", config.Region))
			m.config = config
		}
	}

	m.applyEnv()
	applyDefaults(m.config)
	return nil
}

func (m *ConfigManager) applyEnv() {
	if v := os.Getenv(EnvOpenAIAPIKey); v != "" && m.config.OpenAIAPIKey == "" {
		m.config.OpenAIAPIKey = v
	}
	if v := os.Getenv(EnvOpenAIBaseURL); v != "" {
		m.config.OpenAIBaseURL = v
	}
	if v := os.Getenv(EnvProvider); v != "" {
		m.config.Provider = strings.ToLower(strings.TrimSpace(v))
	}
	if v := os.Getenv(EnvRegion); v != "" {
		m.config.Region = v
	}
}

// applyDefaults fills zero valued fields. EnableAIFilter is left alone so
// that an explicit false in the file survives.
func applyDefaults(c *types.Config) {
	if c.Provider == "" {
		c.Provider = ProviderOpenAI
	}
	if c.OpenAIBaseURL == "" {
		c.OpenAIBaseURL = DefaultBaseURL
	}
	if c.OpenAIModel == "" {
		c.OpenAIModel = DefaultModel
	}
	if c.BedrockModel == "" {
		c.BedrockModel = DefaultBedrockModel
	}
	if c.FilterModel == "" {
		c.FilterModel = DefaultFilterModel
	}
	if c.Region == "" {
		c.Region = DefaultRegion
	}
	if c.SourceLang == "" {
		c.SourceLang = DefaultSourceLang
	}
	if c.TargetLang == "" {
		c.TargetLang = DefaultTargetLang
	}
	if c.MaxChunkLength <= 0 {
		c.MaxChunkLength = DefaultMaxChunkLength
	}
	if c.Concurrency <= 0 {
		c.Concurrency = DefaultConcurrency
	}
	if c.MaxInFlight <= 0 {
		c.MaxInFlight = DefaultMaxInFlight
	}
	if c.RequestsPerSecond <= 0 {
		c.RequestsPerSecond = DefaultRequestsPerSecond
	}
	if c.MaxRetries <= 0 {
		c.MaxRetries = DefaultMaxRetries
	}
	if c.LogLevel == "" {
		c.LogLevel = DefaultLogLevel
	}
}

// Validate checks the loaded configuration and normalizes language codes.
func (m *ConfigManager) Validate() error {
	c := m.GetConfig()

	switch c.Provider {
	case ProviderOpenAI:
		if m.GetAPIKey() == "" {
			return types.NewAppErrorWithDetails(types.ErrConfig, "missing API key",
				fmt.Sprintf("set %s or openai_api_key", EnvOpenAIAPIKey), nil)
		}
	case ProviderBedrock:
	default:
		return types.NewAppErrorWithDetails(types.ErrConfig, "unknown provider", c.Provider, nil)
	}

	if err := types.ValidateRegion(c.Region); err != nil {
		return err
	}
	src, err := types.NormalizeLanguage(c.SourceLang)
	if err != nil {
		return err
	}
	tgt, err := types.NormalizeLanguage(c.TargetLang)
	if err != nil {
		return err
	}
	c.SourceLang, c.TargetLang = src, tgt
	return nil
}

// Save saves the current configuration to the config file.
func (m *ConfigManager) Save() error {
	logger.Debug("saving configuration", logger.String("path", m.configPath))

	dir := filepath.Dir(m.configPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		logger.Error("failed to create config directory", err, logger.String("dir", dir))
		return types.NewAppError(types.ErrConfig, "failed to create config directory", err)
	}

	data, err := json.MarshalIndent(m.config, "", "  ")
	if err != nil {
		logger.Error("failed to marshal config", err)
		return types.NewAppError(types.ErrConfig, "failed to marshal config", err)
	}

	if err := os.WriteFile(m.configPath, data, 0600); err != nil {
		logger.Error("failed to write config file", err, logger.String("path", m.configPath))
		return types.NewAppError(types.ErrConfig, "failed to write config file", err)
	}

	logger.Info("configuration saved", logger.String("path", m.configPath))
	return nil
}

// GetAPIKey returns the OpenAI API key.
// It first checks the config file value, then falls back to the environment variable.
func (m *ConfigManager) GetAPIKey() string {
	if m.config != nil && m.config.OpenAIAPIKey != "" {
		return m.config.OpenAIAPIKey
	}
	return os.Getenv(EnvOpenAIAPIKey)
}

// GetConfig returns the current configuration.
func (m *ConfigManager) GetConfig() *types.Config {
	if m.config == nil {
		m.config = defaultConfig()
	}
	return m.config
}

// SetConfig sets the entire configuration.
func (m *ConfigManager) SetConfig(config *types.Config) {
	m.config = config
}

// GetConfigPath returns the path to the config file.
func (m *ConfigManager) GetConfigPath() string {
	return m.configPath
}

// GetCachePath returns the translation cache path, defaulting to a file
// next to the config file.
func (m *ConfigManager) GetCachePath() string {
	if c := m.GetConfig(); c.CachePath != "" {
		return c.CachePath
	}
	return filepath.Join(filepath.Dir(m.configPath), "translation_cache.json")
}

// GetRunsDirectory returns the directory holding the run journal.
func (m *ConfigManager) GetRunsDirectory() string {
	if c := m.GetConfig(); c.WorkDirectory != "" {
		return filepath.Join(c.WorkDirectory, "runs")
	}
	return filepath.Join(filepath.Dir(m.configPath), "runs")
}
