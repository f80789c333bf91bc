package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/titanous/json5"
)

// Load reads config from a JSON5 file, then overlays env vars. A missing
// file yields the defaults, so a purely env-configured deployment needs no
// config file at all.
func Load(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			cfg.applyEnvOverrides()
			return cfg, nil
		}
		return nil, fmt.Errorf("read config: %w", err)
	}

	if err := json5.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	cfg.applyEnvOverrides()
	return cfg, nil
}

// applyEnvOverrides overlays env vars onto the config.
// Env vars take precedence over file values.
func (c *Config) applyEnvOverrides() {
	envStr := func(key string, dst *string) {
		if v := os.Getenv(key); v != "" {
			*dst = v
		}
	}

	envStr("BOBWIRE_DISCORD_TOKEN", &c.Discord.Token)
	envStr("BOBWIRE_OWNER_ID", &c.Discord.OwnerID)

	envStr("BOBWIRE_ANTHROPIC_API_KEY", &c.Agent.AnthropicAPIKey)
	envStr("BOBWIRE_OPENAI_API_KEY", &c.Agent.OpenAIAPIKey)
	envStr("BOBWIRE_PROVIDER", &c.Agent.Provider)
	envStr("BOBWIRE_MODEL", &c.Agent.Model)
	envStr("BOBWIRE_CALL_NAME", &c.Agent.CallName)

	envStr("BOBWIRE_DB_PATH", &c.Database.Path)

	envStr("BOBWIRE_CONTROL_HOST", &c.Control.Host)
	if v := os.Getenv("BOBWIRE_CONTROL_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil && port > 0 {
			c.Control.Port = port
		}
	}
	if v := os.Getenv("BOBWIRE_CONTROL_ENABLED"); v != "" {
		c.Control.Enabled = v == "true" || v == "1"
	}
}

// Save writes the config to disk. Secret fields carry `json:"-"` and are
// never persisted.
func Save(path string, cfg *Config) error {
	cfg.mu.RLock()
	defer cfg.mu.RUnlock()

	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}
	return os.WriteFile(path, data, 0600)
}

// Reload re-reads the file in place, keeping env overrides on top.
func (c *Config) Reload(path string) error {
	fresh, err := Load(path)
	if err != nil {
		return err
	}

	c.mu.Lock()
	c.Agent = fresh.Agent
	c.Discord = fresh.Discord
	c.Control = fresh.Control
	c.Database = fresh.Database
	c.mu.Unlock()
	return nil
}

// Snapshot returns a copy of the current values, safe to read while a
// reload is in flight.
func (c *Config) Snapshot() (AgentConfig, DiscordConfig, ControlConfig, DatabaseConfig) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.Agent, c.Discord, c.Control, c.Database
}
