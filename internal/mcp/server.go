package mcp

import (
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/hpungsan/sideclip/internal/ops"
)

// toolEntry pairs a tool definition with a handler factory.
type toolEntry struct {
	def     mcp.Tool
	handler func(*Handlers) server.ToolHandlerFunc
}

// toolRegistry maps tool names to their definitions and handler factories.
var toolRegistry = map[string]toolEntry{
	"history_list": {
		def:     listToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleList },
	},
	"history_get": {
		def:     getToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleGet },
	},
	"history_capture_text": {
		def:     captureTextToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleCaptureText },
	},
	"history_capture_image": {
		def:     captureImageToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleCaptureImage },
	},
	"history_capture_url": {
		def:     captureURLToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleCaptureURL },
	},
	"history_copy": {
		def:     copyToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleCopy },
	},
	"history_delete": {
		def:     deleteToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleDelete },
	},
	"history_clear": {
		def:     clearToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleClear },
	},
	"history_clear_images": {
		def:     clearImagesToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleClearImages },
	},
}

// AllToolNames returns a list of all valid tool names.
func AllToolNames() []string {
	names := make([]string, 0, len(toolRegistry))
	for name := range toolRegistry {
		names = append(names, name)
	}
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

// NewServer creates a new MCP server with SideClip tools registered.
// Tools listed in the history's DisabledTools config are excluded from registration.
func NewServer(history *ops.History, version string) *server.MCPServer {
	s := server.NewMCPServer(
		"sideclip",
		version,
		server.WithToolCapabilities(true),
	)

	h := NewHandlers(history)

	disabled := make(map[string]bool)
	for _, name := range history.Config().DisabledTools {
		disabled[name] = true
	}

	for name, entry := range toolRegistry {
		if disabled[name] {
			continue
		}
		s.AddTool(entry.def, entry.handler(h))
	}

	return s
}

// Run starts the MCP server using stdio transport.
func Run(history *ops.History, version string) error {
	s := NewServer(history, version)
	return server.ServeStdio(s)
}
