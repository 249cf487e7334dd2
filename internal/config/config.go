package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/alekspetrov/dobby/internal/adapters/feishu"
	"github.com/alekspetrov/dobby/internal/dispatch"
	"github.com/alekspetrov/dobby/internal/gateway"
	"github.com/alekspetrov/dobby/internal/intent"
	"github.com/alekspetrov/dobby/internal/logging"
	"github.com/alekspetrov/dobby/internal/taskstore"
)

// Config represents the main configuration
type Config struct {
	Version  string                `yaml:"version"`
	Feishu   *feishu.Config        `yaml:"feishu"`
	Bitable  *feishu.BitableConfig `yaml:"bitable"`
	LLM      *intent.LLMConfig     `yaml:"llm"`
	Store    *taskstore.Config     `yaml:"store"`
	Gateway  *gateway.Config       `yaml:"gateway"`
	Dispatch *dispatch.Config      `yaml:"dispatch"`
	Logging  *logging.Config       `yaml:"logging"`
}

// DefaultConfig returns a configuration with sensible defaults
func DefaultConfig() *Config {
	homeDir, _ := os.UserHomeDir()
	return &Config{
		Version: "1.0",
		Feishu: &feishu.Config{
			BaseURL:    feishu.DefaultBaseURL,
			BotAliases: []string{"Dobby", "机器人", "Feishu Bot"},
		},
		Bitable: &feishu.BitableConfig{},
		LLM: &intent.LLMConfig{
			BaseURL: "https://api.deepseek.com",
			Model:   "deepseek-chat",
			Timeout: 30 * time.Second,
		},
		Store: &taskstore.Config{
			Backend:    taskstore.BackendBitable,
			SQLitePath: filepath.Join(homeDir, ".dobby", "tasks.db"),
		},
		Gateway: &gateway.Config{
			Host: "127.0.0.1",
			Port: 9090,
		},
		Dispatch: &dispatch.Config{
			DedupWindow: 1000,
			Timezone:    "Asia/Shanghai",
		},
		Logging: logging.DefaultConfig(),
	}
}

// Load loads configuration from a file. A missing file yields the defaults.
func Load(path string) (*Config, error) {
	config := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return config, nil
		}
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	expanded := os.ExpandEnv(string(data))

	if err := yaml.Unmarshal([]byte(expanded), config); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	if config.Store != nil {
		config.Store.SQLitePath = expandPath(config.Store.SQLitePath)
	}
	if config.Logging != nil && config.Logging.Output != "stdout" && config.Logging.Output != "stderr" {
		config.Logging.Output = expandPath(config.Logging.Output)
	}

	return config, nil
}

// Save saves configuration to a file
func Save(config *Config, path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(config)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}
	return nil
}

// DefaultConfigPath returns the default configuration path
func DefaultConfigPath() string {
	homeDir, _ := os.UserHomeDir()
	return filepath.Join(homeDir, ".dobby", "config.yaml")
}

func expandPath(path string) string {
	if strings.HasPrefix(path, "~") {
		homeDir, _ := os.UserHomeDir()
		return filepath.Join(homeDir, path[1:])
	}
	return path
}

// Validate checks the fields serve needs. The LLM section is optional:
// without an api_key every message takes the rule-based path.
func (c *Config) Validate() error {
	var errs []error

	if c.Gateway == nil {
		errs = append(errs, errors.New("gateway configuration is required"))
	} else if c.Gateway.Port < 1 || c.Gateway.Port > 65535 {
		errs = append(errs, fmt.Errorf("invalid gateway port: %d", c.Gateway.Port))
	}

	if c.Feishu == nil || c.Feishu.AppID == "" || c.Feishu.AppSecret == "" {
		errs = append(errs, errors.New("feishu.app_id and feishu.app_secret are required"))
	}

	if c.Store == nil {
		errs = append(errs, errors.New("store configuration is required"))
	} else {
		switch c.Store.Backend {
		case taskstore.BackendBitable:
			if c.Bitable == nil || c.Bitable.AppToken == "" || c.Bitable.TableID == "" {
				errs = append(errs, errors.New("bitable.app_token and bitable.table_id are required for the bitable backend"))
			}
		case taskstore.BackendSQLite:
			if c.Store.SQLitePath == "" {
				errs = append(errs, errors.New("store.sqlite_path is required for the sqlite backend"))
			}
		default:
			errs = append(errs, fmt.Errorf("unknown store backend %q", c.Store.Backend))
		}
	}

	if c.Dispatch != nil {
		if c.Dispatch.DedupWindow < 1 {
			errs = append(errs, fmt.Errorf("dispatch.dedup_window must be positive, got %d", c.Dispatch.DedupWindow))
		}
		if _, err := time.LoadLocation(c.Dispatch.Timezone); err != nil {
			errs = append(errs, fmt.Errorf("invalid dispatch.timezone: %w", err))
		}
	}

	return errors.Join(errs...)
}

// LLMEnabled reports whether an LLM endpoint is configured.
func (c *Config) LLMEnabled() bool {
	return c.LLM != nil && c.LLM.APIKey != ""
}
