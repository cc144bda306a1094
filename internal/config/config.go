// Package config is claodex's environment configuration (spec.md §6.8): a
// global ~/.claodex/config.json plus a per-workspace .claodex/config.json,
// loaded and merged with the same os.UserHomeDir/os.MkdirAll/json.Unmarshal
// idiom as internal/config/global.go, trimmed down to the handful of
// options claodex actually recognizes.
package config

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"

	"github.com/agusx1211/claodex/internal/agentid"
)

const (
	defaultPollIntervalSeconds = 0.5
	defaultTurnTimeoutSeconds  = 18000
	defaultClaudeDebugDirName  = ".claude/debug"
)

// AgentDefaults holds per-agent registration defaults (e.g. how to launch
// a fresh pane for that agent), mirroring the shape of GlobalAgentConfig
// (model/path overrides) but scoped to claodex's two agents.
type AgentDefaults struct {
	Command string   `json:"command,omitempty"`
	Args    []string `json:"args,omitempty"`
}

// Config is the merged view of the §6.8 environment options.
type Config struct {
	PollIntervalSeconds float64                         `json:"poll_interval_seconds,omitempty"`
	TurnTimeoutSeconds  float64                         `json:"turn_timeout_seconds,omitempty"`
	ClaudeDebugDir      string                          `json:"claude_debug_dir,omitempty"`
	Agents              map[agentid.Agent]AgentDefaults `json:"agents,omitempty"`
}

// Defaults returns the §6.8 default values with no overrides applied.
func Defaults() Config {
	home, err := os.UserHomeDir()
	if err != nil {
		home = os.TempDir()
	}
	return Config{
		PollIntervalSeconds: defaultPollIntervalSeconds,
		TurnTimeoutSeconds:  defaultTurnTimeoutSeconds,
		ClaudeDebugDir:      filepath.Join(home, defaultClaudeDebugDirName),
		Agents:              make(map[agentid.Agent]AgentDefaults),
	}
}

// GlobalDir returns ~/.claodex, creating it if needed.
func GlobalDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		home = os.TempDir()
	}
	dir := filepath.Join(home, ".claodex")
	_ = os.MkdirAll(dir, 0755)
	return dir
}

func globalPath() string {
	return filepath.Join(GlobalDir(), "config.json")
}

// workspacePath returns <workspaceRoot>/.claodex/config.json.
func workspacePath(workspaceRoot string) string {
	return filepath.Join(workspaceRoot, ".claodex", "config.json")
}

// Load reads the global config, then overlays the workspace config (if
// workspaceRoot is non-empty and its config file exists) on top, field by
// field: any zero-valued field in the workspace file leaves the global
// (or built-in default) value in place.
func Load(workspaceRoot string) (Config, error) {
	cfg := Defaults()

	if err := overlayFile(&cfg, globalPath()); err != nil {
		return Config{}, err
	}
	if workspaceRoot != "" {
		if err := overlayFile(&cfg, workspacePath(workspaceRoot)); err != nil {
			return Config{}, err
		}
	}
	return cfg, nil
}

func overlayFile(cfg *Config, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return err
	}
	var overlay Config
	if err := json.Unmarshal(data, &overlay); err != nil {
		return err
	}
	merge(cfg, overlay)
	return nil
}

func merge(dst *Config, src Config) {
	if src.PollIntervalSeconds != 0 {
		dst.PollIntervalSeconds = src.PollIntervalSeconds
	}
	if src.TurnTimeoutSeconds != 0 {
		dst.TurnTimeoutSeconds = src.TurnTimeoutSeconds
	}
	if src.ClaudeDebugDir != "" {
		dst.ClaudeDebugDir = src.ClaudeDebugDir
	}
	for agent, defaults := range src.Agents {
		if dst.Agents == nil {
			dst.Agents = make(map[agentid.Agent]AgentDefaults)
		}
		dst.Agents[agent] = defaults
	}
}

// SaveGlobal writes cfg to ~/.claodex/config.json.
func SaveGlobal(cfg Config) error {
	return save(globalPath(), cfg)
}

// SaveWorkspace writes cfg to <workspaceRoot>/.claodex/config.json.
func SaveWorkspace(workspaceRoot string, cfg Config) error {
	return save(workspacePath(workspaceRoot), cfg)
}

func save(path string, cfg Config) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}
	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}
