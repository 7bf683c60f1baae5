// Package config loads the arox configuration file: a single YAML
// document resolving to the workspace root, the agent definition, and
// the ambient services. Hierarchical lookup and merging live outside
// this engine; callers hand the loop an already-resolved Config.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Config holds all arox configuration.
type Config struct {
	// Workspace is the root all context file paths normalize against.
	Workspace string `yaml:"workspace"`

	// Agent definition
	Agent AgentConfig `yaml:"agent"`

	// LLM provider credentials
	LLM LLMConfig `yaml:"llm"`

	// Session history persistence
	History HistoryConfig `yaml:"history"`

	// Logging
	Logging LoggingConfig `yaml:"logging"`
}

// AgentConfig configures one agent.
type AgentConfig struct {
	Name         string         `yaml:"name"`
	SystemPrompt string         `yaml:"system_prompt"`
	ModelRef     string         `yaml:"model_ref"`
	ModelParams  map[string]any `yaml:"model_params"`

	// ModelPrompt pairs are evaluated in order; the first pattern that
	// matches the active model ref selects the model-specific prompt.
	ModelPrompt []ModelPromptConfig `yaml:"model_prompt"`

	// Coder enables repository-aware state (tracked-file listing and
	// path completion); RepoMap additionally injects the repository map.
	Coder   bool `yaml:"coder"`
	RepoMap bool `yaml:"repo_map"`

	// MaxRounds bounds completion rounds per user turn.
	MaxRounds int `yaml:"max_rounds"`
}

// ModelPromptConfig is one (prompt, pattern) pair.
type ModelPromptConfig struct {
	Pattern string `yaml:"pattern"`
	Prompt  string `yaml:"prompt"`
}

// LLMConfig configures the completion provider.
type LLMConfig struct {
	Provider string `yaml:"provider"`
	APIKey   string `yaml:"api_key"`
}

// HistoryConfig configures session snapshot persistence.
type HistoryConfig struct {
	Enabled bool   `yaml:"enabled"`
	Path    string `yaml:"path"`
}

// LoggingConfig configures logging.
type LoggingConfig struct {
	Verbose bool `yaml:"verbose"`
}

// DefaultConfig returns the baseline configuration.
func DefaultConfig() *Config {
	return &Config{
		Workspace: ".",
		Agent: AgentConfig{
			Name:      "arox",
			ModelRef:  "gemini-2.5-flash",
			Coder:     true,
			MaxRounds: 8,
		},
		LLM: LLMConfig{
			Provider: "gemini",
		},
		History: HistoryConfig{
			Enabled: true,
			Path:    ".arox/history.db",
		},
	}
}

// Load reads configuration from a YAML file, layering it over the
// defaults. A missing file yields the defaults; environment variables
// override credentials either way.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			cfg.applyEnvOverrides()
			return cfg, nil
		}
		return nil, fmt.Errorf("failed to read config: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	cfg.applyEnvOverrides()
	return cfg, nil
}

// applyEnvOverrides applies environment variable overrides.
func (c *Config) applyEnvOverrides() {
	if key := os.Getenv("AROX_API_KEY"); key != "" {
		c.LLM.APIKey = key
	}
	if key := os.Getenv("GEMINI_API_KEY"); key != "" && c.LLM.APIKey == "" {
		c.LLM.APIKey = key
	}
}

// ResolveWorkspace returns the workspace root as an absolute path.
func (c *Config) ResolveWorkspace() (string, error) {
	abs, err := filepath.Abs(c.Workspace)
	if err != nil {
		return "", fmt.Errorf("failed to resolve workspace %q: %w", c.Workspace, err)
	}
	return abs, nil
}

// HistoryPath returns the history database location resolved against
// the workspace root, or "" when history is disabled.
func (c *Config) HistoryPath(workspace string) string {
	if !c.History.Enabled {
		return ""
	}
	p := c.History.Path
	if p == "" {
		p = ".arox/history.db"
	}
	if !filepath.IsAbs(p) {
		p = filepath.Join(workspace, p)
	}
	return p
}
