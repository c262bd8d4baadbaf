// Package command implements the editor's textual command surface: one command
// per line, a lowercase token followed by space-separated arguments.
package command

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"slices"
	"strconv"
	"strings"

	"github.com/hpungsan/blockcad/internal/editor"
	"github.com/hpungsan/blockcad/internal/errors"
	"github.com/hpungsan/blockcad/sdk"
)

// Result is the outcome of one command line.
type Result struct {
	Input   string `json:"input"`
	Command string `json:"command,omitempty"`
	Message string `json:"message,omitempty"`
	Err     error  `json:"-"`
}

type command struct {
	usage string
	run   func(ctx context.Context, s *editor.Session, args []string) error
}

var builtins map[string]command

func init() {
	builtins = map[string]command{
		"clear":     {"clear", noArgs(func(s *editor.Session) { s.Clear() })},
		"baseplate": {"baseplate", noArgs(func(s *editor.Session) { s.GenerateBaseplate() })},
		"physics":   {"physics", noArgs(func(s *editor.Session) { s.TogglePhysics() })},
		"stairs":    {"stairs", noArgs(func(s *editor.Session) { s.GenerateStairs() })},
		"undo":      {"undo", undoCmd},
		"redo":      {"redo", redoCmd},
		"place":     {"place <x> <y> <z>", placeCmd},
		"delete":    {"delete <id>", deleteCmd},
		"color":     {"color <r> <g> <b> [a] | color <name>", colorCmd},
		"grid":      {"grid <step>", gridCmd},
		"size":      {"size <x> <y> <z>", sizeCmd},
		"shape":     {"shape <name>", shapeCmd},
		"material":  {"material <name>", materialCmd},
		"plugin":    {"plugin <path>", pluginCmd},
		"queue":     {"queue <path>", queueCmd},
		"export":    {"export [path.stl]", exportCmd},
		"save":      {"save [path.scene.zst]", saveCmd},
		"load":      {"load <path.scene.zst>", loadCmd},
		"step":      {"step [frames]", stepCmd},
		"count":     {"count", countCmd},
		"help":      {"help", helpCmd},
	}
}

// Names returns the built-in command names, sorted.
func Names() []string {
	names := make([]string, 0, len(builtins))
	for name := range builtins {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// Dispatcher runs command lines against a session.
type Dispatcher struct {
	aliases map[string]Expansion
}

// NewDispatcher returns a dispatcher that expands aliases before dispatch.
func NewDispatcher(aliases map[string]Expansion) *Dispatcher {
	return &Dispatcher{aliases: aliases}
}

// Exec runs one line. Blank lines and lines starting with '#' do nothing. An
// alias expands to its command lines, which run in order; aliases do not nest.
//
// Failures are recoverable: they are logged to the session console and returned,
// and the session stays usable.
func (d *Dispatcher) Exec(ctx context.Context, s *editor.Session, line string) []Result {
	fields := Split(line)
	if len(fields) == 0 {
		return nil
	}
	if exp, ok := d.aliases[strings.ToLower(fields[0])]; ok {
		out := make([]Result, 0, len(exp))
		for _, l := range exp {
			out = append(out, execOne(ctx, s, l))
		}
		return out
	}
	return []Result{execOne(ctx, s, line)}
}

// ExecScript runs every line of r and returns one result per executed command.
// It stops early only when ctx is cancelled or r fails.
func (d *Dispatcher) ExecScript(ctx context.Context, s *editor.Session, r io.Reader) ([]Result, error) {
	var out []Result
	sc := bufio.NewScanner(r)
	for sc.Scan() {
		if err := ctx.Err(); err != nil {
			return out, errors.NewInternal(err)
		}
		out = append(out, d.Exec(ctx, s, sc.Text())...)
	}
	if err := sc.Err(); err != nil {
		return out, errors.NewInternal(fmt.Errorf("failed to read script: %w", err))
	}
	return out, nil
}

// Split tokenizes a command line, dropping anything after '#'.
func Split(line string) []string {
	if i := strings.IndexByte(line, '#'); i >= 0 {
		line = line[:i]
	}
	return strings.Fields(line)
}

func execOne(ctx context.Context, s *editor.Session, line string) Result {
	res := Result{Input: line}
	fields := Split(line)
	if len(fields) == 0 {
		return res
	}
	token := strings.ToLower(fields[0])
	res.Command = token

	cmd, ok := builtins[token]
	if !ok {
		s.Logf("Unknown Command: %s", fields[0])
		res.Err = errors.NewUnknownCommand(fields[0])
		res.Message = s.Console().Last()
		return res
	}
	if err := cmd.run(ctx, s, fields[1:]); err != nil {
		if errors.Is(err, errors.ErrInvalidRequest) {
			s.Logf("Usage: %s (%v)", cmd.usage, err)
		}
		res.Err = err
	}
	res.Message = s.Console().Last()
	return res
}

func noArgs(fn func(*editor.Session)) func(context.Context, *editor.Session, []string) error {
	return func(_ context.Context, s *editor.Session, _ []string) error {
		fn(s)
		return nil
	}
}

func undoCmd(_ context.Context, s *editor.Session, _ []string) error { return s.Undo() }
func redoCmd(_ context.Context, s *editor.Session, _ []string) error { return s.Redo() }

func placeCmd(_ context.Context, s *editor.Session, args []string) error {
	v, err := parseVector(args)
	if err != nil {
		return err
	}
	s.PlaceBlock(v)
	return nil
}

func deleteCmd(_ context.Context, s *editor.Session, args []string) error {
	if len(args) != 1 {
		return errors.NewInvalidRequest("expected a block id")
	}
	id, err := strconv.Atoi(args[0])
	if err != nil {
		return errors.NewInvalidRequest(fmt.Sprintf("invalid id %q", args[0]))
	}
	return s.DeleteBlock(id)
}

var namedColors = map[string]sdk.Color{
	"red":      sdk.Red,
	"darkgray": sdk.DarkGray,
	"white":    sdk.White,
}

func colorCmd(_ context.Context, s *editor.Session, args []string) error {
	if len(args) == 1 {
		c, ok := namedColors[strings.ToLower(args[0])]
		if !ok {
			return errors.NewInvalidRequest(fmt.Sprintf("unknown color %q", args[0]))
		}
		s.SetActiveColor(c)
		return nil
	}
	if len(args) != 3 && len(args) != 4 {
		return errors.NewInvalidRequest("expected 3 or 4 channels")
	}
	ch := [4]uint8{255, 255, 255, 255}
	for i, a := range args {
		n, err := strconv.ParseUint(a, 10, 8)
		if err != nil {
			return errors.NewInvalidRequest(fmt.Sprintf("channel %q must be 0-255", a))
		}
		ch[i] = uint8(n)
	}
	s.SetActiveColor(sdk.Color{R: ch[0], G: ch[1], B: ch[2], A: ch[3]})
	return nil
}

func gridCmd(_ context.Context, s *editor.Session, args []string) error {
	if len(args) != 1 {
		return errors.NewInvalidRequest("expected a grid step")
	}
	f, err := parseFloat(args[0])
	if err != nil {
		return err
	}
	return s.SetGridSize(f)
}

func sizeCmd(_ context.Context, s *editor.Session, args []string) error {
	v, err := parseVector(args)
	if err != nil {
		return err
	}
	return s.SetActiveSize(v)
}

func shapeCmd(_ context.Context, s *editor.Session, args []string) error {
	if len(args) != 1 {
		return errors.NewInvalidRequest("expected a shape name")
	}
	sh, ok := sdk.ParseShape(strings.ToLower(args[0]))
	if !ok {
		return errors.NewInvalidRequest(fmt.Sprintf("unknown shape %q", args[0]))
	}
	s.SetActiveShape(sh)
	return nil
}

func materialCmd(_ context.Context, s *editor.Session, args []string) error {
	if len(args) != 1 {
		return errors.NewInvalidRequest("expected a material name")
	}
	m, ok := sdk.ParseMaterial(strings.ToLower(args[0]))
	if !ok {
		return errors.NewInvalidRequest(fmt.Sprintf("unknown material %q", args[0]))
	}
	s.SetActiveMaterial(m)
	return nil
}

func pluginCmd(ctx context.Context, s *editor.Session, args []string) error {
	if len(args) != 1 {
		return errors.NewInvalidRequest("expected a plugin path")
	}
	_, err := s.RunPlugin(ctx, args[0])
	return err
}

func queueCmd(_ context.Context, s *editor.Session, args []string) error {
	if len(args) != 1 {
		return errors.NewInvalidRequest("expected a plugin path")
	}
	s.QueuePlugin(args[0])
	s.Logf("Queued %s", args[0])
	return nil
}

func optionalPath(args []string) (string, error) {
	switch len(args) {
	case 0:
		return "", nil
	case 1:
		return args[0], nil
	default:
		return "", errors.NewInvalidRequest("expected at most one path")
	}
}

func exportCmd(ctx context.Context, s *editor.Session, args []string) error {
	path, err := optionalPath(args)
	if err != nil {
		return err
	}
	_, err = s.ExportSTL(ctx, path)
	return err
}

func saveCmd(ctx context.Context, s *editor.Session, args []string) error {
	path, err := optionalPath(args)
	if err != nil {
		return err
	}
	_, err = s.SaveScene(ctx, path)
	return err
}

func loadCmd(_ context.Context, s *editor.Session, args []string) error {
	if len(args) != 1 {
		return errors.NewInvalidRequest("expected a scene path")
	}
	return s.LoadScene(args[0])
}

// maxStepFrames bounds a single step command.
const maxStepFrames = 100000

func stepCmd(ctx context.Context, s *editor.Session, args []string) error {
	n := 1
	if len(args) > 1 {
		return errors.NewInvalidRequest("expected a frame count")
	}
	if len(args) == 1 {
		var err error
		n, err = strconv.Atoi(args[0])
		if err != nil || n < 1 || n > maxStepFrames {
			return errors.NewInvalidRequest(fmt.Sprintf("frame count must be 1-%d", maxStepFrames))
		}
	}
	info := s.Simulate(ctx, n)
	s.Logf("Stepped %d frames (frame %d)", n, info.Frame)
	return nil
}

func countCmd(_ context.Context, s *editor.Session, _ []string) error {
	s.Logf("Blocks: %d", s.Store().Len())
	return nil
}

func helpCmd(_ context.Context, s *editor.Session, _ []string) error {
	usages := make([]string, 0, len(builtins))
	for _, name := range Names() {
		usages = append(usages, builtins[name].usage)
	}
	s.Log("Commands: " + strings.Join(usages, ", "))
	return nil
}

func parseFloat(a string) (float32, error) {
	f, err := strconv.ParseFloat(a, 32)
	if err != nil {
		return 0, errors.NewInvalidRequest(fmt.Sprintf("invalid number %q", a))
	}
	return float32(f), nil
}

func parseVector(args []string) (sdk.Vector3, error) {
	if len(args) != 3 {
		return sdk.Vector3{}, errors.NewInvalidRequest("expected three numbers")
	}
	var xyz [3]float32
	for i, a := range args {
		f, err := parseFloat(a)
		if err != nil {
			return sdk.Vector3{}, err
		}
		xyz[i] = f
	}
	return sdk.Vector3{X: xyz[0], Y: xyz[1], Z: xyz[2]}, nil
}
