package mcp

import "github.com/mark3labs/mcp-go/mcp"

var listToolDef = mcp.NewTool("history_list",
	mcp.WithDescription("List clipboard history, newest first. Image entries whose payload is missing are returned with unavailable=true."),
	mcp.WithString("kind",
		mcp.Description("Only return entries of this kind"),
		mcp.Enum("text", "image"),
	),
	mcp.WithNumber("limit",
		mcp.Description("Maximum number of entries to return (default: all)"),
	),
	mcp.WithReadOnlyHintAnnotation(true),
)

var getToolDef = mcp.NewTool("history_get",
	mcp.WithDescription("Get one history entry with its full text. Set include_image to attach the image payload."),
	mcp.WithString("id",
		mcp.Required(),
		mcp.Description("Entry ID"),
	),
	mcp.WithBoolean("include_image",
		mcp.Description("Attach the image payload as image content (default: false)"),
	),
	mcp.WithReadOnlyHintAnnotation(true),
)

var captureTextToolDef = mcp.NewTool("history_capture_text",
	mcp.WithDescription("Record text in the clipboard history. Identical text already in the history moves to the top."),
	mcp.WithString("text",
		mcp.Required(),
		mcp.Description("Text to record"),
	),
)

var captureImageToolDef = mcp.NewTool("history_capture_image",
	mcp.WithDescription("Record an image file in the clipboard history. The file must sit directly in ~/.sideclip/inbox or a configured allowed path."),
	mcp.WithString("path",
		mcp.Required(),
		mcp.Description("Path to a .png, .jpg, .jpeg, .gif, .webp or .bmp file"),
	),
)

var captureURLToolDef = mcp.NewTool("history_capture_url",
	mcp.WithDescription("Download an image over http(s) and record it in the clipboard history. A failed download is still recorded as an entry with the URL and no payload."),
	mcp.WithString("url",
		mcp.Required(),
		mcp.Description("http or https URL of the image"),
	),
)

var copyToolDef = mcp.NewTool("history_copy",
	mcp.WithDescription("Put a text entry back on the system clipboard. Image entries are rejected."),
	mcp.WithString("id",
		mcp.Required(),
		mcp.Description("Entry ID"),
	),
)

var deleteToolDef = mcp.NewTool("history_delete",
	mcp.WithDescription("Delete one history entry and its image payload. Deleting an unknown id is not an error."),
	mcp.WithString("id",
		mcp.Required(),
		mcp.Description("Entry ID"),
	),
	mcp.WithDestructiveHintAnnotation(true),
	mcp.WithIdempotentHintAnnotation(true),
)

var clearToolDef = mcp.NewTool("history_clear",
	mcp.WithDescription("Delete the entire clipboard history, text and images."),
	mcp.WithDestructiveHintAnnotation(true),
)

var clearImagesToolDef = mcp.NewTool("history_clear_images",
	mcp.WithDescription("Delete every image entry and image payload. Text entries are kept."),
	mcp.WithDestructiveHintAnnotation(true),
)
