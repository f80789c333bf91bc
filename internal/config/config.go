// Package config holds the bot's file-based configuration. Secrets (tokens,
// API keys) come from the environment only and are never written to disk.
package config

import (
	"os"
	"path/filepath"
	"sync"
)

// Config is the root configuration. The mutex guards hot reload.
type Config struct {
	mu sync.RWMutex

	Agent    AgentConfig    `json:"agent"`
	Discord  DiscordConfig  `json:"discord"`
	Control  ControlConfig  `json:"control"`
	Database DatabaseConfig `json:"database"`
}

// AgentConfig controls the generation backend and trigger identity.
type AgentConfig struct {
	// CallName is the name whose appearance in a message triggers a
	// response, matched case-insensitively as a substring.
	CallName string `json:"call_name"`

	// Provider selects the generation backend: "anthropic" or "openai".
	Provider string `json:"provider"`
	Model    string `json:"model,omitempty"`

	// HistoryLimit caps the channel history window fetched per response.
	HistoryLimit int `json:"history_limit"`

	AnthropicAPIKey string `json:"-"` // env: BOBWIRE_ANTHROPIC_API_KEY
	OpenAIAPIKey    string `json:"-"` // env: BOBWIRE_OPENAI_API_KEY
}

// DiscordConfig carries the platform connection settings.
type DiscordConfig struct {
	Token   string `json:"-"` // env: BOBWIRE_DISCORD_TOKEN
	OwnerID string `json:"owner_id,omitempty"`
}

// ControlConfig configures the operator HTTP/WebSocket surface.
type ControlConfig struct {
	Enabled bool   `json:"enabled"`
	Host    string `json:"host"`
	Port    int    `json:"port"`
}

// DatabaseConfig locates the SQLite file.
type DatabaseConfig struct {
	Path string `json:"path"`
}

// DefaultPath is where the config file lives unless overridden.
func DefaultPath() string {
	return ExpandHome("~/.bobwire/config.json")
}

// Default returns a Config with sensible defaults.
func Default() *Config {
	return &Config{
		Agent: AgentConfig{
			CallName:     "bob",
			Provider:     "anthropic",
			HistoryLimit: 50,
		},
		Control: ControlConfig{
			Host: "127.0.0.1",
			Port: 18920,
		},
		Database: DatabaseConfig{
			Path: "~/.bobwire/bobwire.db",
		},
	}
}

// DatabasePath returns the expanded SQLite file path.
func (c *Config) DatabasePath() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return ExpandHome(c.Database.Path)
}

// ExpandHome replaces a leading ~ with the user home directory.
func ExpandHome(path string) string {
	if path == "" || path[0] != '~' {
		return path
	}
	home, _ := os.UserHomeDir()
	if len(path) > 1 && path[1] == '/' {
		return filepath.Join(home, path[2:])
	}
	return home
}
