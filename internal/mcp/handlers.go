package mcp

import (
	"context"
	"encoding/base64"
	"encoding/json"
	stderrors "errors"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/hpungsan/sideclip/internal/errors"
	"github.com/hpungsan/sideclip/internal/ops"
)

// Handlers holds dependencies for MCP tool handlers.
type Handlers struct {
	history *ops.History
}

// NewHandlers creates a new Handlers instance.
func NewHandlers(history *ops.History) *Handlers {
	return &Handlers{history: history}
}

// ListRequest represents the arguments for history_list.
type ListRequest = ops.ListInput

// GetRequest represents the arguments for history_get.
type GetRequest struct {
	ID           string `json:"id"`
	IncludeImage bool   `json:"include_image,omitempty"`
}

// CaptureTextRequest represents the arguments for history_capture_text.
type CaptureTextRequest struct {
	Text string `json:"text"`
}

// CaptureImageRequest represents the arguments for history_capture_image.
type CaptureImageRequest struct {
	Path string `json:"path"`
}

// CaptureURLRequest represents the arguments for history_capture_url.
type CaptureURLRequest struct {
	URL string `json:"url"`
}

// CopyRequest represents the arguments for history_copy.
type CopyRequest struct {
	ID string `json:"id"`
}

// DeleteRequest represents the arguments for history_delete.
type DeleteRequest struct {
	ID string `json:"id"`
}

// HandleList handles the history_list tool call.
func (h *Handlers) HandleList(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[ListRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}
	result, err := h.history.List(ctx, input)
	if err != nil {
		return errorResult(err), nil
	}
	return successResult(result)
}

// HandleGet handles the history_get tool call.
func (h *Handlers) HandleGet(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[GetRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}

	entry, err := h.history.Entry(ctx, input.ID)
	if err != nil {
		return errorResult(err), nil
	}

	result, err := successResult(entry)
	if err != nil || !input.IncludeImage || !entry.Resolved {
		return result, err
	}
	result.Content = append(result.Content,
		mcp.NewImageContent(base64.StdEncoding.EncodeToString(entry.Bytes), entry.PayloadMime))
	return result, nil
}

// HandleCaptureText handles the history_capture_text tool call.
func (h *Handlers) HandleCaptureText(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[CaptureTextRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}

	result, err := h.history.CaptureText(ctx, input.Text)
	if err != nil {
		return errorResult(err), nil
	}
	return successResult(result)
}

// HandleCaptureImage handles the history_capture_image tool call.
func (h *Handlers) HandleCaptureImage(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[CaptureImageRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}

	result, err := h.history.CaptureImageFile(ctx, input.Path)
	if err != nil {
		return errorResult(err), nil
	}
	return successResult(result)
}

// HandleCaptureURL handles the history_capture_url tool call.
func (h *Handlers) HandleCaptureURL(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[CaptureURLRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}

	result, err := h.history.CaptureImageURL(ctx, input.URL)
	if err != nil {
		return errorResult(err), nil
	}
	return successResult(result)
}

// HandleCopy handles the history_copy tool call.
func (h *Handlers) HandleCopy(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[CopyRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}

	result, err := h.history.CopyToClipboard(ctx, input.ID)
	if err != nil {
		return errorResult(err), nil
	}
	return successResult(result)
}

// HandleDelete handles the history_delete tool call.
func (h *Handlers) HandleDelete(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[DeleteRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}

	result, err := h.history.DeleteEntry(ctx, input.ID)
	if err != nil {
		return errorResult(err), nil
	}
	return successResult(result)
}

// HandleClear handles the history_clear tool call.
func (h *Handlers) HandleClear(ctx context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	result, err := h.history.ClearAll(ctx)
	if err != nil {
		return errorResult(err), nil
	}
	return successResult(result)
}

// HandleClearImages handles the history_clear_images tool call.
func (h *Handlers) HandleClearImages(ctx context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	result, err := h.history.ClearImagesOnly(ctx)
	if err != nil {
		return errorResult(err), nil
	}
	return successResult(result)
}

// Result helpers

// errorResult creates an MCP error result from any error.
// Uses IsError: true so MCP clients recognize failures properly.
// Internal and storage error details are not exposed.
func errorResult(err error) *mcp.CallToolResult {
	var payload map[string]any

	var clipErr *errors.ClipError
	if stderrors.As(err, &clipErr) && clipErr.Code != errors.ErrInternal {
		message := clipErr.Message
		// Keep context added by fmt.Errorf wrappers, e.g. "capture: ".
		if prefix := strings.TrimSuffix(err.Error(), clipErr.Error()); prefix != err.Error() {
			message = prefix + message
		}
		if clipErr.Code == errors.ErrStorageUnavailable {
			message = "storage unavailable"
		}
		errorObj := map[string]any{
			"code":    clipErr.Code,
			"message": message,
			"status":  clipErr.Status,
		}
		if clipErr.Details != nil {
			errorObj["details"] = clipErr.Details
		}
		payload = map[string]any{"error": errorObj}
	} else {
		payload = map[string]any{
			"error": map[string]any{
				"code":    errors.ErrInternal,
				"message": "an internal error occurred",
				"status":  500,
			},
		}
	}

	content, _ := json.Marshal(payload)
	return &mcp.CallToolResult{
		Content: []mcp.Content{mcp.TextContent{Type: "text", Text: string(content)}},
		IsError: true,
	}
}

// successResult creates an MCP success result from any data.
func successResult(data any) (*mcp.CallToolResult, error) {
	return mcp.NewToolResultJSON(data)
}
