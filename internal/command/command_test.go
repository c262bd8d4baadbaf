package command

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hpungsan/blockcad/internal/config"
	"github.com/hpungsan/blockcad/internal/editor"
	"github.com/hpungsan/blockcad/internal/errors"
	"github.com/hpungsan/blockcad/internal/scene"
	"github.com/hpungsan/blockcad/sdk"
)

func run(t *testing.T, d *Dispatcher, s *editor.Session, line string) Result {
	t.Helper()
	res := d.Exec(context.Background(), s, line)
	require.Len(t, res, 1, "line %q", line)
	return res[0]
}

func TestExec_UnknownCommand(t *testing.T) {
	s := editor.New(nil)
	d := NewDispatcher(nil)
	before := s.Blocks()

	res := run(t, d, s, "explode now")

	assert.True(t, errors.Is(res.Err, errors.ErrUnknownCommand))
	assert.Equal(t, "Unknown Command: explode", res.Message)
	assert.Equal(t, before, s.Blocks())

	// The session keeps working afterwards.
	res = run(t, d, s, "count")
	assert.NoError(t, res.Err)
	assert.Equal(t, "Blocks: 1", res.Message)
}

func TestExec_BlankAndComment(t *testing.T) {
	s := editor.New(nil)
	d := NewDispatcher(nil)

	assert.Empty(t, d.Exec(context.Background(), s, "   "))
	assert.Empty(t, d.Exec(context.Background(), s, "# just a note"))
	assert.Empty(t, s.Console().Lines())
}

func TestExec_Commands(t *testing.T) {
	tests := []struct {
		line    string
		message string
	}{
		{"clear", "Scene Cleared"},
		{"baseplate", "Baseplate generated at origin."},
		{"stairs", "Stairs generated."},
		{"physics", "Physics Toggled"},
		{"undo", "Undo Executed"},
		{"CLEAR", "Scene Cleared"},
		{"count", "Blocks: 1"},
	}
	for _, tt := range tests {
		t.Run(tt.line, func(t *testing.T) {
			s := editor.New(nil)
			d := NewDispatcher(nil)
			if tt.line == "undo" {
				s.PlaceBlock(sdk.Vector3{})
			}
			res := run(t, d, s, tt.line)
			require.NoError(t, res.Err)
			assert.Equal(t, tt.message, res.Message)
		})
	}
}

func TestExec_PlaceUsesActiveAttributes(t *testing.T) {
	s := editor.New(nil)
	d := NewDispatcher(nil)

	for _, line := range []string{"color 10 20 30", "size 2 2 2", "shape sphere", "material wood", "grid 0.5"} {
		require.NoError(t, run(t, d, s, line).Err, line)
	}
	require.NoError(t, run(t, d, s, "place 1.2 0 0.7").Err)

	blocks := s.Blocks()
	require.Len(t, blocks, 2)
	b := blocks[1]
	assert.Equal(t, sdk.Color{R: 10, G: 20, B: 30, A: 255}, b.Color)
	assert.Equal(t, sdk.Vector3{X: 2, Y: 2, Z: 2}, b.Size)
	assert.Equal(t, sdk.ShapeSphere, b.Shape)
	assert.Equal(t, sdk.MaterialWood, b.Material)
	assert.InDelta(t, 1.0, b.Position.X, 1e-6)
	assert.InDelta(t, 1.0, b.Position.Y, 1e-6)
	assert.InDelta(t, 0.5, b.Position.Z, 1e-6)
}

func TestExec_InvalidArguments(t *testing.T) {
	lines := []string{
		"place 1 2",
		"place a b c",
		"delete",
		"delete x",
		"color 300 0 0",
		"color purple",
		"grid 0",
		"size 1 -1 1",
		"shape blob",
		"material cheese",
		"plugin",
		"load",
		"step 0",
		"export a.stl b.stl",
	}
	for _, line := range lines {
		t.Run(line, func(t *testing.T) {
			s := editor.New(nil)
			d := NewDispatcher(nil)
			before := s.Blocks()

			res := run(t, d, s, line)

			assert.True(t, errors.Is(res.Err, errors.ErrInvalidRequest), "err = %v", res.Err)
			assert.True(t, strings.HasPrefix(res.Message, "Usage: "), "message = %q", res.Message)
			assert.Equal(t, before, s.Blocks())
		})
	}
}

func TestExec_DeleteMissing(t *testing.T) {
	s := editor.New(nil)
	d := NewDispatcher(nil)

	before := s.Blocks()

	res := run(t, d, s, "delete 42")
	assert.NoError(t, res.Err)
	assert.Equal(t, "No block #42", res.Message)
	assert.Equal(t, before, s.Blocks())
	assert.False(t, s.State().CanUndo, "a missing id must not checkpoint")
}

func TestExec_PluginAndStep(t *testing.T) {
	s := editor.New(nil)
	d := NewDispatcher(nil)

	require.NoError(t, run(t, d, s, "plugin builtin:spiral").Err)
	assert.Len(t, s.Blocks(), 31)

	require.NoError(t, run(t, d, s, "queue builtin:tower").Err)
	res := run(t, d, s, "step 3")
	require.NoError(t, res.Err)
	assert.Equal(t, "Stepped 3 frames (frame 3)", res.Message)
	assert.Len(t, s.Blocks(), 39)
}

func TestExec_ExportSaveLoad(t *testing.T) {
	dir := t.TempDir()
	cfg := config.DefaultConfig()
	cfg.AllowedPaths = []string{dir}
	s := editor.New(cfg)
	d := NewDispatcher(nil)

	stl := filepath.Join(dir, "out.stl")
	res := run(t, d, s, "export "+stl)
	require.NoError(t, res.Err)
	assert.Equal(t, "STL Exported Successfully (12 triangles)", res.Message)

	sc := filepath.Join(dir, "out.scene.zst")
	require.NoError(t, run(t, d, s, "save "+sc).Err)
	require.NoError(t, run(t, d, s, "clear").Err)
	require.NoError(t, run(t, d, s, "load "+sc).Err)
	assert.Len(t, s.Blocks(), 1)
}

func TestExec_Aliases(t *testing.T) {
	aliases, err := ParseAliases([]byte(`
aliases:
  cls: clear
  Reset:
    - clear
    - baseplate
    - stairs
`))
	require.NoError(t, err)

	s := editor.New(nil)
	d := NewDispatcher(aliases)

	res := d.Exec(context.Background(), s, "reset")
	require.Len(t, res, 3)
	for _, r := range res {
		assert.NoError(t, r.Err)
	}
	assert.Len(t, s.Blocks(), 1+scene.StairSteps)

	res = d.Exec(context.Background(), s, "cls")
	require.Len(t, res, 1)
	assert.Equal(t, "clear", res[0].Command)
	assert.Empty(t, s.Blocks())
}

func TestParseAliases_Errors(t *testing.T) {
	tests := []struct {
		name string
		yaml string
	}{
		{"shadows builtin", "aliases:\n  undo: redo\n"},
		{"empty list", "aliases:\n  nothing: []\n"},
		{"mapping value", "aliases:\n  bad:\n    a: b\n"},
		{"name with space", "aliases:\n  \"two words\": clear\n"},
		{"not yaml", "aliases: [unclosed\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseAliases([]byte(tt.yaml))
			assert.Error(t, err)
		})
	}
}

func TestLoadAliases(t *testing.T) {
	got, err := LoadAliases(filepath.Join(t.TempDir(), "missing.yaml"))
	require.NoError(t, err)
	assert.Nil(t, got)

	path := filepath.Join(t.TempDir(), "aliases.yaml")
	require.NoError(t, os.WriteFile(path, []byte("aliases:\n  go: step 10\n"), 0600))
	got, err = LoadAliases(path)
	require.NoError(t, err)
	assert.Equal(t, Expansion{"step 10"}, got["go"])
}

func TestExecScript(t *testing.T) {
	s := editor.New(nil)
	d := NewDispatcher(nil)
	script := `# build something
clear
baseplate
place 0 0 0
bogus
place 0 1 0
`
	res, err := d.ExecScript(context.Background(), s, strings.NewReader(script))
	require.NoError(t, err)
	require.Len(t, res, 5)
	assert.True(t, errors.Is(res[3].Err, errors.ErrUnknownCommand))
	assert.Len(t, s.Blocks(), 3)
}

func TestExecScript_Cancelled(t *testing.T) {
	s := editor.New(nil)
	d := NewDispatcher(nil)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := d.ExecScript(ctx, s, strings.NewReader("clear\n"))
	assert.True(t, errors.Is(err, errors.ErrInternal))
	assert.Len(t, s.Blocks(), 1)
}

func TestNames(t *testing.T) {
	names := Names()
	assert.Contains(t, names, "place")
	assert.Contains(t, names, "undo")
	assert.IsIncreasing(t, names)
}
