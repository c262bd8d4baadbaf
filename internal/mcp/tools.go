package mcp

import "github.com/mark3labs/mcp-go/mcp"

func vectorParam(name, desc string, opts ...mcp.PropertyOption) mcp.ToolOption {
	opts = append([]mcp.PropertyOption{
		mcp.Description(desc),
		mcp.Items(map[string]any{"type": "number"}),
	}, opts...)
	return mcp.WithArray(name, opts...)
}

var sceneListToolDef = mcp.NewTool("scene_list",
	mcp.WithDescription("List the blocks in the scene with the session state (active attributes, history position, console)."),
	mcp.WithBoolean("visible_only", mcp.Description("Only return visible blocks")),
)

var sceneCreateBlockToolDef = mcp.NewTool("scene_create_block",
	mcp.WithDescription("Create one block. Records an undo step. Omitted attributes use the session's active size, color, shape and material."),
	vectorParam("position", "Center [x, y, z]", mcp.Required()),
	vectorParam("size", "Extents [x, y, z]; all positive"),
	vectorParam("rotation", "Euler angles in degrees [x, y, z]"),
	mcp.WithArray("color",
		mcp.Description("RGBA [r, g, b, a], 0-255; alpha defaults to 255"),
		mcp.Items(map[string]any{"type": "integer", "minimum": 0, "maximum": 255}),
	),
	mcp.WithString("shape", mcp.Description("Shape name"), mcp.Enum("cube", "cylinder", "sphere", "wedge", "cone")),
	mcp.WithString("material", mcp.Description("Material name"), mcp.Enum("default", "steel", "wood", "glass", "glow", "concrete")),
	mcp.WithBoolean("hidden", mcp.Description("Create the block invisible")),
)

var sceneDeleteBlockToolDef = mcp.NewTool("scene_delete_block",
	mcp.WithDescription("Delete a block by id. Records an undo step; an absent id is a logged no-op."),
	mcp.WithNumber("id", mcp.Required(), mcp.Description("Block id")),
)

var sceneCommandToolDef = mcp.NewTool("scene_command",
	mcp.WithDescription("Run editor command lines (e.g. \"stairs\", \"place 1 0 2\", \"color 0 128 255\"). Unknown commands are reported, not fatal."),
	mcp.WithString("line", mcp.Description("One command line")),
	mcp.WithArray("lines", mcp.Description("Several command lines run in order"), mcp.Items(map[string]any{"type": "string"})),
)

var historyUndoToolDef = mcp.NewTool("history_undo",
	mcp.WithDescription("Restore the previous scene snapshot."),
)

var historyRedoToolDef = mcp.NewTool("history_redo",
	mcp.WithDescription("Re-apply the snapshot undone last."),
)

var historyCheckpointToolDef = mcp.NewTool("history_checkpoint",
	mcp.WithDescription("Record the current scene as an undo step. Discards redo history."),
)

var physicsStepToolDef = mcp.NewTool("physics_step",
	mcp.WithDescription("Advance the session by frames. Each frame integrates physics (when enabled) and runs queued plugins."),
	mcp.WithNumber("frames", mcp.Description("Number of frames (default 1)"), mcp.Min(1), mcp.Max(100000)),
	mcp.WithNumber("dt", mcp.Description("Seconds per frame; capped at the physics max step")),
)

var physicsToggleToolDef = mcp.NewTool("physics_toggle",
	mcp.WithDescription("Toggle physics and wake every block."),
)

var pluginRunToolDef = mcp.NewTool("plugin_run",
	mcp.WithDescription("Run a plugin once against the scene. Paths are plugin modules (.so) or built-in names such as builtin:spiral."),
	mcp.WithString("path", mcp.Required(), mcp.Description("Plugin path or builtin: name")),
	mcp.WithBoolean("queue", mcp.Description("Queue for the next frame instead of running now")),
)

var sceneExportToolDef = mcp.NewTool("scene_export",
	mcp.WithDescription("Write the scene to disk as binary STL (visible cubes) or as a raw scene file."),
	mcp.WithString("path", mcp.Description("Destination; defaults to ~/.blockcad/exports")),
	mcp.WithString("format", mcp.Description("stl (default) or scene"), mcp.Enum("stl", "scene")),
)
