package main

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/urfave/cli/v2"

	"github.com/hpungsan/blockcad/internal/command"
	"github.com/hpungsan/blockcad/internal/config"
	"github.com/hpungsan/blockcad/internal/db"
	"github.com/hpungsan/blockcad/internal/editor"
	"github.com/hpungsan/blockcad/internal/errors"
	"github.com/hpungsan/blockcad/internal/export"
	"github.com/hpungsan/blockcad/internal/extension"
	"github.com/hpungsan/blockcad/internal/generators"
	"github.com/hpungsan/blockcad/internal/mcp"
	"github.com/hpungsan/blockcad/internal/web"
)

// env is what every subcommand needs. db may be nil for commands run before
// the journal is opened.
type env struct {
	db     *sql.DB
	cfg    *config.Config
	logger *slog.Logger
}

// newCLIApp creates the CLI application with all commands.
func newCLIApp(e *env) *cli.App {
	if e == nil {
		e = &env{}
	}
	if e.cfg == nil {
		e.cfg = config.DefaultConfig()
	}
	if e.logger == nil {
		e.logger = slog.New(slog.DiscardHandler)
	}
	app := &cli.App{
		Name:    "blockcad",
		Usage:   "Headless block modeling editor",
		Version: Version,
		Commands: []*cli.Command{
			runCmd(e),
			inspectCmd(),
			journalCmd(e),
			exportsCmd(e),
			pluginsCmd(e),
			mcpCmd(e),
			serveCmd(e),
		},
	}
	// Disable default exit error handler to allow proper error return in tests
	app.ExitErrHandler = func(_ *cli.Context, _ error) {}
	return app
}

// newSession starts a session journaled under a fresh session id when a
// database is available.
func (e *env) newSession() *editor.Session {
	opts := []editor.Option{editor.WithLogger(e.logger)}
	if e.db != nil {
		id := db.NewID()
		opts = append(opts, editor.WithID(id), editor.WithJournal(&db.Sink{DB: e.db, SessionID: id}))
	}
	return editor.New(e.cfg, opts...)
}

func (e *env) dispatcher() (*command.Dispatcher, error) {
	aliases, err := command.LoadAliases(e.cfg.AliasesPath)
	if err != nil {
		return nil, err
	}
	return command.NewDispatcher(aliases), nil
}

// RunOutput is the JSON summary printed by the run command.
type RunOutput struct {
	Session string           `json:"session"`
	Results []CommandResult  `json:"results"`
	Frames  int              `json:"frames,omitempty"`
	State   RunState         `json:"state"`
	STL     *export.Output   `json:"stl,omitempty"`
	Scene   *export.Output   `json:"scene,omitempty"`
	Failed  int              `json:"failed"`
	Frame   editor.FrameInfo `json:"last_frame"`
}

// RunState is the slice of editor.State worth printing.
type RunState struct {
	Blocks  int  `json:"blocks"`
	NextID  int  `json:"next_id"`
	Physics bool `json:"physics"`
	CanUndo bool `json:"can_undo"`
	CanRedo bool `json:"can_redo"`
}

// CommandResult is one executed command line.
type CommandResult struct {
	Input   string `json:"input"`
	Message string `json:"message,omitempty"`
	Error   string `json:"error,omitempty"`
}

// runCmd creates the run command.
func runCmd(e *env) *cli.Command {
	return &cli.Command{
		Name:      "run",
		Usage:     "Run editor commands against a fresh or loaded scene",
		ArgsUsage: "[command ...]",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "script", Aliases: []string{"s"}, Usage: "Command script file (- reads stdin)"},
			&cli.StringFlag{Name: "load", Aliases: []string{"l"}, Usage: "Raw scene file to start from"},
			&cli.IntFlag{Name: "frames", Aliases: []string{"f"}, Usage: "Frames to simulate after the commands"},
			&cli.BoolFlag{Name: "physics", Usage: "Enable physics before simulating"},
			&cli.StringFlag{Name: "stl", Usage: "Write visible cubes as binary STL to this path"},
			&cli.StringFlag{Name: "save", Usage: "Write the raw scene to this path"},
			&cli.BoolFlag{Name: "strict", Usage: "Exit non-zero if any command fails"},
		},
		Action: func(c *cli.Context) error {
			ctx := c.Context
			if c.Int("frames") < 0 {
				return outputError(errors.NewInvalidRequest("frames must be non-negative"))
			}
			commands, err := e.dispatcher()
			if err != nil {
				return outputError(errors.NewInvalidRequest(err.Error()))
			}
			s := e.newSession()
			out := RunOutput{Session: s.ID(), Results: []CommandResult{}}

			if path := c.String("load"); path != "" {
				if err := s.LoadScene(path); err != nil {
					return outputError(err)
				}
			}

			var results []command.Result
			if script := c.String("script"); script != "" {
				r, closeFn, err := openScript(script)
				if err != nil {
					return outputError(err)
				}
				res, err := commands.ExecScript(ctx, s, r)
				closeFn()
				if err != nil {
					return outputError(err)
				}
				results = append(results, res...)
			}
			for _, line := range c.Args().Slice() {
				results = append(results, commands.Exec(ctx, s, line)...)
			}
			for _, r := range results {
				cr := CommandResult{Input: r.Input, Message: r.Message}
				if r.Err != nil {
					cr.Error = r.Err.Error()
					out.Failed++
				}
				out.Results = append(out.Results, cr)
			}

			if c.Bool("physics") && !s.PhysicsEnabled() {
				s.TogglePhysics()
			}
			if n := c.Int("frames"); n > 0 {
				out.Frame = s.Simulate(ctx, n)
				out.Frames = n
			}

			if path := c.String("stl"); path != "" {
				if out.STL, err = s.ExportSTL(ctx, path); err != nil {
					return outputError(err)
				}
			}
			if path := c.String("save"); path != "" {
				if out.Scene, err = s.SaveScene(ctx, path); err != nil {
					return outputError(err)
				}
			}

			st := s.State()
			out.State = RunState{
				Blocks:  st.Blocks,
				NextID:  st.NextID,
				Physics: st.Physics,
				CanUndo: st.CanUndo,
				CanRedo: st.CanRedo,
			}
			if err := outputJSON(c.App.Writer, out); err != nil {
				return err
			}
			if c.Bool("strict") && out.Failed > 0 {
				return cli.Exit(fmt.Sprintf("%d command(s) failed", out.Failed), 1)
			}
			return nil
		},
	}
}

// openScript opens a script file, or stdin for "-".
func openScript(path string) (io.Reader, func(), error) {
	if path == "-" {
		return os.Stdin, func() {}, nil
	}
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil, errors.NewFileNotFound(path)
		}
		return nil, nil, errors.NewInternal(err)
	}
	return f, func() { f.Close() }, nil
}

// InspectOutput summarizes a scene or STL file.
type InspectOutput struct {
	Path      string              `json:"path"`
	Format    string              `json:"format"`
	Header    *export.SceneHeader `json:"header,omitempty"`
	Shapes    map[string]int      `json:"shapes,omitempty"`
	Visible   int                 `json:"visible,omitempty"`
	Triangles uint32              `json:"triangles,omitempty"`
	STLHeader string              `json:"stl_header,omitempty"`
}

// inspectCmd creates the inspect command.
func inspectCmd() *cli.Command {
	return &cli.Command{
		Name:      "inspect",
		Usage:     "Summarize a raw scene or binary STL file",
		ArgsUsage: "<path>",
		Flags: []cli.Flag{
			&cli.BoolFlag{Name: "header-only", Usage: "Only decode the scene header line"},
		},
		Action: func(c *cli.Context) error {
			if c.NArg() != 1 {
				return outputError(errors.NewInvalidRequest("inspect takes exactly one path"))
			}
			out, err := inspectFile(c.Args().First(), c.Bool("header-only"))
			if err != nil {
				return outputError(err)
			}
			return outputJSON(c.App.Writer, out)
		},
	}
}

func inspectFile(path string, headerOnly bool) (*InspectOutput, error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.NewFileNotFound(path)
		}
		return nil, errors.NewInternal(err)
	}
	defer f.Close()

	out := &InspectOutput{Path: path}
	if strings.EqualFold(filepath.Ext(path), export.STLExt) {
		info, err := export.ReadSTLInfo(f)
		if err != nil {
			return nil, errors.NewInvalidRequest(err.Error())
		}
		out.Format = "stl"
		out.Triangles = info.Triangles
		out.STLHeader = info.Header
		return out, nil
	}

	out.Format = "scene"
	if headerOnly {
		h, err := export.ReadSceneHeader(f)
		if err != nil {
			return nil, errors.NewInvalidRequest(err.Error())
		}
		out.Header = &h
		return out, nil
	}
	sc, err := export.ReadScene(f)
	if err != nil {
		return nil, errors.NewInvalidRequest(err.Error())
	}
	out.Header = &sc.Header
	out.Shapes = map[string]int{}
	for _, b := range sc.Blocks {
		out.Shapes[b.Shape.String()]++
		if b.Visible {
			out.Visible++
		}
	}
	return out, nil
}

// journalCmd creates the journal command.
func journalCmd(e *env) *cli.Command {
	return &cli.Command{
		Name:  "journal",
		Usage: "Show recent console lines from the journal",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "session", Usage: "Filter by session id"},
			&cli.IntFlag{Name: "limit", Aliases: []string{"l"}, Value: 50, Usage: "Maximum lines to return"},
		},
		Action: func(c *cli.Context) error {
			if e.db == nil {
				return outputError(errors.NewInvalidRequest("journal is not available"))
			}
			entries, err := db.RecentEntries(c.Context, e.db, c.String("session"), c.Int("limit"))
			if err != nil {
				return outputError(err)
			}
			return outputJSON(c.App.Writer, entries)
		},
	}
}

// exportsCmd creates the exports command.
func exportsCmd(e *env) *cli.Command {
	return &cli.Command{
		Name:  "exports",
		Usage: "List files written by previous sessions",
		Flags: []cli.Flag{
			&cli.IntFlag{Name: "limit", Aliases: []string{"l"}, Value: 20, Usage: "Maximum records to return"},
		},
		Action: func(c *cli.Context) error {
			if e.db == nil {
				return outputError(errors.NewInvalidRequest("journal is not available"))
			}
			records, err := db.ListExports(c.Context, e.db, c.Int("limit"))
			if err != nil {
				return outputError(err)
			}
			return outputJSON(c.App.Writer, records)
		},
	}
}

// PluginsOutput lists the plugins a session can run.
type PluginsOutput struct {
	Builtin   []string `json:"builtin"`
	Dir       string   `json:"dir,omitempty"`
	Modules   []string `json:"modules,omitempty"`
	Supported bool     `json:"native_supported"`
}

// pluginsCmd creates the plugins command.
func pluginsCmd(e *env) *cli.Command {
	return &cli.Command{
		Name:  "plugins",
		Usage: "List built-in generators and plugin modules in the plugin directory",
		Action: func(c *cli.Context) error {
			out := PluginsOutput{Dir: e.cfg.PluginDir, Supported: extension.NativeLoader{}.Supported()}
			for name := range generators.Registry() {
				out.Builtin = append(out.Builtin, name)
			}
			slices.Sort(out.Builtin)

			if out.Dir != "" {
				entries, err := os.ReadDir(out.Dir)
				if err != nil && !os.IsNotExist(err) {
					return outputError(errors.NewInternal(err))
				}
				for _, de := range entries {
					if !de.IsDir() && extension.IsModule(de.Name()) {
						out.Modules = append(out.Modules, filepath.Join(out.Dir, de.Name()))
					}
				}
			}
			return outputJSON(c.App.Writer, out)
		},
	}
}

// mcpCmd creates the mcp command.
func mcpCmd(e *env) *cli.Command {
	return &cli.Command{
		Name:  "mcp",
		Usage: "Serve a fresh session as MCP tools over stdio",
		Action: func(c *cli.Context) error {
			commands, err := e.dispatcher()
			if err != nil {
				return outputError(errors.NewInvalidRequest(err.Error()))
			}
			return mcp.Run(e.newSession(), commands, Version)
		},
	}
}

// serveCmd creates the serve command.
func serveCmd(e *env) *cli.Command {
	return &cli.Command{
		Name:  "serve",
		Usage: "Start the web inspector for a live session",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "bind", Value: "127.0.0.1", Usage: "Bind address"},
			&cli.IntFlag{Name: "port", Aliases: []string{"p"}, Value: 8314, Usage: "Listen port"},
			&cli.StringFlag{Name: "load", Aliases: []string{"l"}, Usage: "Raw scene file to start from"},
			&cli.StringFlag{Name: "plugin-dir", Usage: "Watch this directory for plugin modules"},
		},
		Action: func(c *cli.Context) error {
			if dir := c.String("plugin-dir"); dir != "" {
				e.cfg.PluginDir = dir
			}
			commands, err := e.dispatcher()
			if err != nil {
				return outputError(errors.NewInvalidRequest(err.Error()))
			}
			s := e.newSession()
			if path := c.String("load"); path != "" {
				if err := s.LoadScene(path); err != nil {
					return outputError(err)
				}
			}
			srv, err := web.NewServer(web.Options{
				Session:  s,
				Commands: commands,
				DB:       e.db,
				Logger:   e.logger,
				Version:  Version,
				Bind:     c.String("bind"),
				Port:     c.Int("port"),
			})
			if err != nil {
				return outputError(errors.NewInternal(err))
			}
			return srv.Run(c.Context)
		},
	}
}

// Helper functions

// outputJSON marshals result to w as indented JSON.
func outputJSON(w io.Writer, v any) error {
	if w == nil {
		w = os.Stdout
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// outputError formats error for CLI.
func outputError(err error) error {
	if cadErr, ok := err.(*errors.CADError); ok {
		return cli.Exit(fmt.Sprintf("[%s] %s", cadErr.Code, cadErr.Message), 1)
	}
	return cli.Exit(err.Error(), 1)
}
