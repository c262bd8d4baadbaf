package config

import (
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/caarlos0/env/v11"
	"github.com/santhosh-tekuri/jsonschema/v5"
)

// DirName is the name of both the global (~/.blockcad) and repo (.blockcad) config directories.
const DirName = ".blockcad"

// Config holds application configuration.
type Config struct {
	// GridSize is the placement snap step for new blocks.
	GridSize float32 `json:"grid_size,omitempty" env:"BLOCKCAD_GRID_SIZE"`

	// HistoryCapacity is the number of undo snapshots kept.
	HistoryCapacity int `json:"history_capacity,omitempty" env:"BLOCKCAD_HISTORY_CAPACITY"`

	// Gravity is the downward acceleration applied by the physics step.
	Gravity float32 `json:"gravity,omitempty" env:"BLOCKCAD_GRAVITY"`

	// MaxStepSeconds caps the frame time integrated in one physics step.
	MaxStepSeconds float32 `json:"max_step_seconds,omitempty" env:"BLOCKCAD_MAX_STEP_SECONDS"`

	// ConsoleLines is how many console lines the session keeps.
	ConsoleLines int `json:"console_lines,omitempty" env:"BLOCKCAD_CONSOLE_LINES"`

	// PluginDir is watched for plugin modules by the web server. Empty disables watching.
	PluginDir string `json:"plugin_dir,omitempty" env:"BLOCKCAD_PLUGIN_DIR"`

	// AliasesPath points to a YAML file of command aliases.
	AliasesPath string `json:"aliases_path,omitempty" env:"BLOCKCAD_ALIASES_PATH"`

	// AllowedPaths is an allowlist of directories for export and scene files.
	// Paths outside ~/.blockcad/exports require either being in this list or AllowUnsafePaths=true.
	// Paths should be absolute (relative paths are ignored).
	AllowedPaths []string `json:"allowed_paths,omitempty" env:"BLOCKCAD_ALLOWED_PATHS" envSeparator:","`

	// AllowUnsafePaths disables directory restrictions for export and scene files.
	// Symlink and extension checks still apply.
	AllowUnsafePaths bool `json:"allow_unsafe_paths,omitempty" env:"BLOCKCAD_ALLOW_UNSAFE_PATHS"`

	// DBMaxOpenConns limits the maximum number of open journal connections.
	// 0 means use sql.DB default (unlimited).
	DBMaxOpenConns int `json:"db_max_open_conns,omitempty" env:"BLOCKCAD_DB_MAX_OPEN_CONNS"`

	// DBMaxIdleConns limits the maximum number of idle journal connections.
	DBMaxIdleConns int `json:"db_max_idle_conns,omitempty" env:"BLOCKCAD_DB_MAX_IDLE_CONNS"`

	// DisabledTools is a list of MCP tool names to exclude from registration.
	DisabledTools []string `json:"disabled_tools,omitempty" env:"BLOCKCAD_DISABLED_TOOLS" envSeparator:","`

	// DisabledTypes is a list of tool groups to disable entirely.
	// Known types: "scene", "history", "physics", "plugin".
	DisabledTypes []string `json:"disabled_types,omitempty" env:"BLOCKCAD_DISABLED_TYPES" envSeparator:","`
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		GridSize:        1.0,
		HistoryCapacity: 50,
		Gravity:         9.8,
		MaxStepSeconds:  1.0 / 60.0,
		ConsoleLines:    15,
	}
}

//go:embed schema.json
var schemaJSON string

var schema = jsonschema.MustCompileString("config.schema.json", schemaJSON)

// Load loads configuration from baseDir/config.json and applies environment overrides.
// Returns default config if the file doesn't exist.
func Load(baseDir string) (*Config, error) {
	cfg, err := loadFileRaw(filepath.Join(baseDir, "config.json"))
	if err != nil {
		return nil, err
	}
	return ApplyEnv(Merge(DefaultConfig(), cfg))
}

// LoadWithRepo loads configuration from both global (~/.blockcad) and repo (.blockcad) directories.
// Repo config is found by walking upward from startDir to find the nearest .blockcad/config.json.
// Repo config takes precedence for scalar values; arrays are merged (deduplicated).
// Environment variables are applied last.
func LoadWithRepo(globalDir, startDir string) (*Config, error) {
	global, err := loadFileRaw(filepath.Join(globalDir, "config.json"))
	if err != nil {
		return nil, err
	}

	repo, err := loadFileRaw(FindRepoConfig(startDir))
	if err != nil {
		return nil, err
	}

	return ApplyEnv(Merge(Merge(DefaultConfig(), global), repo))
}

// FindRepoConfig walks upward from startDir to find the nearest .blockcad/config.json.
// Returns the path if found, or empty string if not found.
func FindRepoConfig(startDir string) string {
	dir := startDir
	for {
		configPath := filepath.Join(dir, DirName, "config.json")
		if _, err := os.Stat(configPath); err == nil {
			return configPath
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			return ""
		}
		dir = parent
	}
}

// ApplyEnv overlays BLOCKCAD_* environment variables onto cfg.
func ApplyEnv(cfg *Config) (*Config, error) {
	overlay := &Config{}
	if err := env.Parse(overlay); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}
	return Merge(cfg, overlay), nil
}

// Validate checks raw config JSON against the embedded schema.
func Validate(data []byte) error {
	var doc any
	if err := json.Unmarshal(data, &doc); err != nil {
		return err
	}
	if err := schema.Validate(doc); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}

// loadFileRaw loads configuration from a specific file path.
// Returns zero-valued config if the path is empty or the file doesn't exist.
func loadFileRaw(configPath string) (*Config, error) {
	if configPath == "" {
		return &Config{}, nil
	}
	data, err := os.ReadFile(configPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return &Config{}, nil
		}
		return nil, err
	}

	if err := Validate(data); err != nil {
		return nil, fmt.Errorf("%s: %w", configPath, err)
	}

	cfg := &Config{}
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Merge combines base and overlay configs.
// Overlay values take precedence for scalars; arrays are merged and deduplicated.
func Merge(base, overlay *Config) *Config {
	result := &Config{}

	// Scalars: overlay wins if non-zero, else base
	result.GridSize = pick(overlay.GridSize, base.GridSize)
	result.HistoryCapacity = pick(overlay.HistoryCapacity, base.HistoryCapacity)
	result.Gravity = pick(overlay.Gravity, base.Gravity)
	result.MaxStepSeconds = pick(overlay.MaxStepSeconds, base.MaxStepSeconds)
	result.ConsoleLines = pick(overlay.ConsoleLines, base.ConsoleLines)
	result.PluginDir = pick(overlay.PluginDir, base.PluginDir)
	result.AliasesPath = pick(overlay.AliasesPath, base.AliasesPath)
	result.DBMaxOpenConns = pick(overlay.DBMaxOpenConns, base.DBMaxOpenConns)
	result.DBMaxIdleConns = pick(overlay.DBMaxIdleConns, base.DBMaxIdleConns)

	// Booleans: overlay wins if true, else base
	result.AllowUnsafePaths = base.AllowUnsafePaths || overlay.AllowUnsafePaths

	// Arrays: merge and deduplicate
	result.AllowedPaths = mergeStringSlice(base.AllowedPaths, overlay.AllowedPaths)
	result.DisabledTools = mergeStringSlice(base.DisabledTools, overlay.DisabledTools)
	result.DisabledTypes = mergeStringSlice(base.DisabledTypes, overlay.DisabledTypes)

	return result
}

func pick[T comparable](overlay, base T) T {
	var zero T
	if overlay != zero {
		return overlay
	}
	return base
}

// mergeStringSlice combines two slices, trims whitespace, and removes duplicates.
func mergeStringSlice(a, b []string) []string {
	seen := make(map[string]bool)
	result := make([]string, 0, len(a)+len(b))

	for _, s := range append(append([]string{}, a...), b...) {
		s = strings.TrimSpace(s)
		if s != "" && !seen[s] {
			seen[s] = true
			result = append(result, s)
		}
	}

	if len(result) == 0 {
		return nil
	}
	return result
}
