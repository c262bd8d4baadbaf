package config

import (
	"os"
	"path/filepath"
	"testing"
)

func writeConfig(t *testing.T, dir, body string) {
	t.Helper()
	if err := os.MkdirAll(dir, 0755); err != nil {
		t.Fatalf("MkdirAll() error = %v", err)
	}
	if err := os.WriteFile(filepath.Join(dir, "config.json"), []byte(body), 0600); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}
}

func TestLoad_DefaultWhenMissing(t *testing.T) {
	tmpDir := t.TempDir()

	cfg, err := Load(tmpDir)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	def := DefaultConfig()
	if cfg.GridSize != def.GridSize {
		t.Errorf("GridSize = %v, want %v", cfg.GridSize, def.GridSize)
	}
	if cfg.HistoryCapacity != 50 {
		t.Errorf("HistoryCapacity = %d, want 50", cfg.HistoryCapacity)
	}
	if cfg.ConsoleLines != 15 {
		t.Errorf("ConsoleLines = %d, want 15", cfg.ConsoleLines)
	}
	if cfg.Gravity != def.Gravity || cfg.MaxStepSeconds != def.MaxStepSeconds {
		t.Errorf("physics = (%v, %v), want (%v, %v)", cfg.Gravity, cfg.MaxStepSeconds, def.Gravity, def.MaxStepSeconds)
	}
}

func TestLoad_OverridesFromFile(t *testing.T) {
	tmpDir := t.TempDir()
	writeConfig(t, tmpDir, `{"grid_size": 0.5, "history_capacity": 20}`)

	cfg, err := Load(tmpDir)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.GridSize != 0.5 {
		t.Errorf("GridSize = %v, want 0.5", cfg.GridSize)
	}
	if cfg.HistoryCapacity != 20 {
		t.Errorf("HistoryCapacity = %d, want 20", cfg.HistoryCapacity)
	}
	if cfg.ConsoleLines != 15 {
		t.Errorf("ConsoleLines = %d, want 15 (default)", cfg.ConsoleLines)
	}
}

func TestLoad_InvalidJSON(t *testing.T) {
	tmpDir := t.TempDir()
	writeConfig(t, tmpDir, `{not json}`)

	if _, err := Load(tmpDir); err == nil {
		t.Fatalf("Load() expected error, got nil")
	}
}

func TestLoad_SchemaViolations(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"unknown key", `{"gird_size": 1}`},
		{"zero grid", `{"grid_size": 0}`},
		{"negative gravity", `{"gravity": -1}`},
		{"tiny history", `{"history_capacity": 1}`},
		{"fractional history", `{"history_capacity": 2.5}`},
		{"huge step", `{"max_step_seconds": 5}`},
		{"wrong type", `{"disabled_tools": "scene_list"}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tmpDir := t.TempDir()
			writeConfig(t, tmpDir, tt.body)

			if _, err := Load(tmpDir); err == nil {
				t.Fatalf("Load(%s) expected error, got nil", tt.body)
			}
		})
	}
}

func TestLoad_DisabledTools(t *testing.T) {
	tmpDir := t.TempDir()
	writeConfig(t, tmpDir, `{"disabled_tools": ["plugin_run", "scene_export"]}`)

	cfg, err := Load(tmpDir)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if len(cfg.DisabledTools) != 2 {
		t.Fatalf("DisabledTools length = %d, want 2", len(cfg.DisabledTools))
	}
	if cfg.DisabledTools[0] != "plugin_run" {
		t.Errorf("DisabledTools[0] = %q, want %q", cfg.DisabledTools[0], "plugin_run")
	}
	if cfg.DisabledTools[1] != "scene_export" {
		t.Errorf("DisabledTools[1] = %q, want %q", cfg.DisabledTools[1], "scene_export")
	}
}

func TestLoad_EnvOverrides(t *testing.T) {
	tmpDir := t.TempDir()
	writeConfig(t, tmpDir, `{"grid_size": 0.5, "disabled_tools": ["plugin_run"]}`)

	t.Setenv("BLOCKCAD_GRID_SIZE", "0.25")
	t.Setenv("BLOCKCAD_CONSOLE_LINES", "40")
	t.Setenv("BLOCKCAD_DISABLED_TOOLS", "scene_export, physics_step")

	cfg, err := Load(tmpDir)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.GridSize != 0.25 {
		t.Errorf("GridSize = %v, want 0.25 (env)", cfg.GridSize)
	}
	if cfg.ConsoleLines != 40 {
		t.Errorf("ConsoleLines = %d, want 40 (env)", cfg.ConsoleLines)
	}
	if len(cfg.DisabledTools) != 3 {
		t.Errorf("DisabledTools = %v, want 3 merged entries", cfg.DisabledTools)
	}
}

func TestLoad_EnvInvalid(t *testing.T) {
	t.Setenv("BLOCKCAD_HISTORY_CAPACITY", "lots")

	if _, err := Load(t.TempDir()); err == nil {
		t.Fatal("Load() expected error for non-numeric env value")
	}
}

func TestLoadWithRepo_BothPresent(t *testing.T) {
	globalDir := t.TempDir()
	repoRoot := t.TempDir()

	writeConfig(t, globalDir, `{"grid_size": 2, "disabled_tools": ["plugin_run"]}`)
	writeConfig(t, filepath.Join(repoRoot, DirName), `{"grid_size": 0.5, "disabled_tools": ["scene_export"]}`)

	cfg, err := LoadWithRepo(globalDir, repoRoot)
	if err != nil {
		t.Fatalf("LoadWithRepo() error = %v", err)
	}

	// Repo overrides scalar
	if cfg.GridSize != 0.5 {
		t.Errorf("GridSize = %v, want 0.5 (repo override)", cfg.GridSize)
	}

	// Arrays merged
	if len(cfg.DisabledTools) != 2 {
		t.Errorf("DisabledTools length = %d, want 2", len(cfg.DisabledTools))
	}
}

func TestLoadWithRepo_OnlyGlobal(t *testing.T) {
	globalDir := t.TempDir()
	repoDir := t.TempDir()

	writeConfig(t, globalDir, `{"console_lines": 30, "disabled_tools": ["plugin_run"]}`)

	cfg, err := LoadWithRepo(globalDir, repoDir)
	if err != nil {
		t.Fatalf("LoadWithRepo() error = %v", err)
	}

	if cfg.ConsoleLines != 30 {
		t.Errorf("ConsoleLines = %d, want 30", cfg.ConsoleLines)
	}
	if len(cfg.DisabledTools) != 1 || cfg.DisabledTools[0] != "plugin_run" {
		t.Errorf("DisabledTools = %v, want [plugin_run]", cfg.DisabledTools)
	}
}

func TestLoadWithRepo_OnlyRepo(t *testing.T) {
	globalDir := t.TempDir()
	repoRoot := t.TempDir()

	writeConfig(t, filepath.Join(repoRoot, DirName), `{"disabled_types": ["plugin"]}`)

	cfg, err := LoadWithRepo(globalDir, repoRoot)
	if err != nil {
		t.Fatalf("LoadWithRepo() error = %v", err)
	}

	if cfg.HistoryCapacity != 50 {
		t.Errorf("HistoryCapacity = %d, want 50 (default)", cfg.HistoryCapacity)
	}
	if len(cfg.DisabledTypes) != 1 {
		t.Errorf("DisabledTypes = %v, want [plugin]", cfg.DisabledTypes)
	}
}

func TestLoadWithRepo_NeitherPresent(t *testing.T) {
	cfg, err := LoadWithRepo(t.TempDir(), t.TempDir())
	if err != nil {
		t.Fatalf("LoadWithRepo() error = %v", err)
	}

	if cfg.GridSize != 1.0 {
		t.Errorf("GridSize = %v, want 1", cfg.GridSize)
	}
	if len(cfg.DisabledTools) != 0 {
		t.Errorf("DisabledTools = %v, want empty", cfg.DisabledTools)
	}
}

func TestMerge_ScalarOverride(t *testing.T) {
	base := &Config{HistoryCapacity: 40, DBMaxOpenConns: 5, PluginDir: "/a"}
	overlay := &Config{HistoryCapacity: 10}

	result := Merge(base, overlay)

	if result.HistoryCapacity != 10 {
		t.Errorf("HistoryCapacity = %d, want 10 (overlay)", result.HistoryCapacity)
	}
	if result.DBMaxOpenConns != 5 {
		t.Errorf("DBMaxOpenConns = %d, want 5 (base, overlay is zero)", result.DBMaxOpenConns)
	}
	if result.PluginDir != "/a" {
		t.Errorf("PluginDir = %q, want /a (base)", result.PluginDir)
	}
}

func TestMerge_BooleanOr(t *testing.T) {
	result := Merge(&Config{AllowUnsafePaths: true}, &Config{AllowUnsafePaths: false})

	if !result.AllowUnsafePaths {
		t.Error("AllowUnsafePaths should be true (base OR overlay)")
	}
}

func TestMerge_ArrayMergeDedup(t *testing.T) {
	base := &Config{DisabledTools: []string{"plugin_run", "scene_export"}}
	overlay := &Config{DisabledTools: []string{"scene_export", " physics_step "}}

	result := Merge(base, overlay)

	if len(result.DisabledTools) != 3 {
		t.Errorf("DisabledTools length = %d, want 3 (merged, deduped)", len(result.DisabledTools))
	}

	has := make(map[string]bool)
	for _, s := range result.DisabledTools {
		has[s] = true
	}
	for _, want := range []string{"plugin_run", "scene_export", "physics_step"} {
		if !has[want] {
			t.Errorf("DisabledTools missing %q", want)
		}
	}
}

func TestFindRepoConfig_InParentDir(t *testing.T) {
	tmpDir := t.TempDir()
	writeConfig(t, filepath.Join(tmpDir, DirName), `{}`)
	configPath := filepath.Join(tmpDir, DirName, "config.json")

	subdir := filepath.Join(tmpDir, "subdir", "deeper")
	if err := os.MkdirAll(subdir, 0755); err != nil {
		t.Fatalf("MkdirAll() error = %v", err)
	}

	if found := FindRepoConfig(tmpDir); found != configPath {
		t.Errorf("FindRepoConfig(root) = %q, want %q", found, configPath)
	}
	if found := FindRepoConfig(subdir); found != configPath {
		t.Errorf("FindRepoConfig(subdir) = %q, want %q", found, configPath)
	}
}

func TestFindRepoConfig_NotFound(t *testing.T) {
	if found := FindRepoConfig(t.TempDir()); found != "" {
		t.Errorf("FindRepoConfig() = %q, want empty string", found)
	}
}
