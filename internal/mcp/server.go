package mcp

import (
	"slices"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/hpungsan/blockcad/internal/command"
	"github.com/hpungsan/blockcad/internal/config"
	"github.com/hpungsan/blockcad/internal/editor"
)

// KnownTypes lists all valid type names.
var KnownTypes = []string{"scene", "history", "physics", "plugin"}

// toolEntry pairs a tool definition with a handler factory.
type toolEntry struct {
	def     mcp.Tool
	handler func(*Handlers) server.ToolHandlerFunc
}

// toolRegistry maps tool names to their definitions and handler factories.
var toolRegistry = map[string]toolEntry{
	"scene_list": {
		def:     sceneListToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleList },
	},
	"scene_create_block": {
		def:     sceneCreateBlockToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleCreateBlock },
	},
	"scene_delete_block": {
		def:     sceneDeleteBlockToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleDeleteBlock },
	},
	"scene_command": {
		def:     sceneCommandToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleCommand },
	},
	"scene_export": {
		def:     sceneExportToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleExport },
	},
	"history_undo": {
		def:     historyUndoToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleUndo },
	},
	"history_redo": {
		def:     historyRedoToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleRedo },
	},
	"history_checkpoint": {
		def:     historyCheckpointToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleCheckpoint },
	},
	"physics_step": {
		def:     physicsStepToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleStep },
	},
	"physics_toggle": {
		def:     physicsToggleToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleToggle },
	},
	"plugin_run": {
		def:     pluginRunToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandlePlugin },
	},
}

// AllToolNames returns every registered tool name, sorted.
func AllToolNames() []string {
	names := make([]string, 0, len(toolRegistry))
	for name := range toolRegistry {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// ValidateDisabledTools returns a list of unknown tool names from the given list.
func ValidateDisabledTools(names []string) []string {
	unknown := make([]string, 0)
	for _, name := range names {
		if _, ok := toolRegistry[name]; !ok {
			unknown = append(unknown, name)
		}
	}
	return unknown
}

// ValidateDisabledTypes returns a list of unknown type names from the given list.
func ValidateDisabledTypes(names []string) []string {
	unknown := make([]string, 0)
	for _, name := range names {
		if !slices.Contains(KnownTypes, name) {
			unknown = append(unknown, name)
		}
	}
	return unknown
}

// GetTypeForTool extracts the type name from a tool name.
// Tool names follow the pattern "type_action" (e.g., "physics_step" → "physics").
func GetTypeForTool(toolName string) string {
	if idx := strings.Index(toolName, "_"); idx > 0 {
		return toolName[:idx]
	}
	return ""
}

// ExpandTypesToTools returns all tool names belonging to the given types.
func ExpandTypesToTools(types []string) []string {
	if len(types) == 0 {
		return nil
	}
	tools := make([]string, 0)
	for name := range toolRegistry {
		if slices.Contains(types, GetTypeForTool(name)) {
			tools = append(tools, name)
		}
	}
	return tools
}

// EnabledTools returns the sorted tool names that survive cfg's disabled lists.
func EnabledTools(cfg *config.Config) []string {
	disabled := make(map[string]bool)
	for _, tool := range ExpandTypesToTools(cfg.DisabledTypes) {
		disabled[tool] = true
	}
	for _, name := range cfg.DisabledTools {
		disabled[name] = true
	}
	var out []string
	for _, name := range AllToolNames() {
		if !disabled[name] {
			out = append(out, name)
		}
	}
	return out
}

// NewServer creates an MCP server exposing the session. Tools listed in
// cfg.DisabledTools or belonging to cfg.DisabledTypes are not registered.
func NewServer(session *editor.Session, commands *command.Dispatcher, version string) *server.MCPServer {
	s := server.NewMCPServer(
		"blockcad",
		version,
		server.WithToolCapabilities(true),
	)

	h := NewHandlers(session, commands)
	for _, name := range EnabledTools(session.Config()) {
		entry := toolRegistry[name]
		s.AddTool(entry.def, entry.handler(h))
	}
	return s
}

// Run serves the session over stdio.
func Run(session *editor.Session, commands *command.Dispatcher, version string) error {
	return server.ServeStdio(NewServer(session, commands, version))
}
