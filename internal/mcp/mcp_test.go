package mcp

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/sirupsen/logrus"

	"github.com/hpungsan/sideclip/internal/config"
	"github.com/hpungsan/sideclip/internal/db"
	"github.com/hpungsan/sideclip/internal/errors"
	"github.com/hpungsan/sideclip/internal/ops"
)

// pngBytes is a minimal PNG header, enough for content sniffing.
var pngBytes = []byte{0x89, 'P', 'N', 'G', '\r', '\n', 0x1a, '\n', 0, 0, 0, 0x0d, 'I', 'H', 'D', 'R'}

// testSetup creates a temporary database and history for testing.
func testSetup(t *testing.T, cfg *config.Config, mods ...func(*ops.Options)) (*sql.DB, *ops.History, func()) {
	t.Helper()

	tmpDir := t.TempDir()
	database, err := db.Init(tmpDir)
	if err != nil {
		t.Fatalf("failed to init db: %v", err)
	}

	if cfg == nil {
		cfg = config.DefaultConfig()
		cfg.AllowUnsafePaths = true // Allow temp dirs in tests
	}

	logger := logrus.New()
	logger.SetOutput(os.Stderr)
	logger.SetLevel(logrus.PanicLevel)

	opts := ops.Options{Config: cfg, Logger: logger}
	for _, mod := range mods {
		mod(&opts)
	}
	history := ops.Open(database, opts)

	cleanup := func() {
		history.Close()
		database.Close()
	}

	return database, history, cleanup
}

// makeRequest creates a CallToolRequest with the given arguments.
func makeRequest(args map[string]any) mcp.CallToolRequest {
	return mcp.CallToolRequest{
		Params: mcp.CallToolParams{
			Arguments: args,
		},
	}
}

// writeImage writes an image file into dir and returns its path.
func writeImage(t *testing.T, dir, name string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, pngBytes, 0600); err != nil {
		t.Fatalf("failed to write image: %v", err)
	}
	return path
}

func TestHandleCaptureText(t *testing.T) {
	_, history, cleanup := testSetup(t, nil)
	defer cleanup()

	h := NewHandlers(history)
	ctx := context.Background()

	tests := []struct {
		name      string
		args      map[string]any
		wantError bool
		errorCode string
	}{
		{
			name: "valid text",
			args: map[string]any{"text": "hello"},
		},
		{
			name:      "empty text",
			args:      map[string]any{"text": ""},
			wantError: true,
			errorCode: "EMPTY_INPUT",
		},
		{
			name:      "whitespace only",
			args:      map[string]any{"text": "  \n\t"},
			wantError: true,
			errorCode: "EMPTY_INPUT",
		},
		{
			name:      "missing text",
			args:      map[string]any{},
			wantError: true,
			errorCode: "EMPTY_INPUT",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := h.HandleCaptureText(ctx, makeRequest(tt.args))
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}

			if tt.wantError {
				if !result.IsError {
					t.Errorf("expected error result, got success")
				}
				assertErrorCode(t, result, tt.errorCode)
				return
			}

			output := parseOutput(t, result)
			entry, ok := output["entry"].(map[string]any)
			if !ok {
				t.Fatalf("expected entry in output, got %v", output)
			}
			if entry["kind"] != "text" {
				t.Errorf("kind = %v, want text", entry["kind"])
			}
			if entry["preview"] != "hello" {
				t.Errorf("preview = %v, want hello", entry["preview"])
			}
		})
	}
}

func TestHandleCaptureImage(t *testing.T) {
	_, history, cleanup := testSetup(t, nil)
	defer cleanup()

	h := NewHandlers(history)
	ctx := context.Background()
	dir := t.TempDir()

	t.Run("valid image", func(t *testing.T) {
		path := writeImage(t, dir, "shot.png")
		result, err := h.HandleCaptureImage(ctx, makeRequest(map[string]any{"path": path}))
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		output := parseOutput(t, result)
		if output["image_id"] == nil || output["image_id"] == "" {
			t.Errorf("expected image_id, got %v", output)
		}
		entry := output["entry"].(map[string]any)
		if entry["kind"] != "image" {
			t.Errorf("kind = %v, want image", entry["kind"])
		}
		if !strings.HasPrefix(entry["source_url"].(string), "file://") {
			t.Errorf("source_url = %v, want file:// URL", entry["source_url"])
		}
	})

	t.Run("missing file", func(t *testing.T) {
		result, _ := h.HandleCaptureImage(ctx, makeRequest(map[string]any{"path": filepath.Join(dir, "nope.png")}))
		if !result.IsError {
			t.Fatal("expected error result")
		}
		assertErrorCode(t, result, "FILE_NOT_FOUND")
	})

	t.Run("not an image extension", func(t *testing.T) {
		path := filepath.Join(dir, "notes.txt")
		if err := os.WriteFile(path, []byte("hi"), 0600); err != nil {
			t.Fatal(err)
		}
		result, _ := h.HandleCaptureImage(ctx, makeRequest(map[string]any{"path": path}))
		assertErrorCode(t, result, "INVALID_REQUEST")
	})
}

func TestHandleCaptureImage_OutsideAllowedDirs(t *testing.T) {
	cfg := config.DefaultConfig()
	_, history, cleanup := testSetup(t, cfg)
	defer cleanup()

	h := NewHandlers(history)
	path := writeImage(t, t.TempDir(), "shot.png")

	result, err := h.HandleCaptureImage(context.Background(), makeRequest(map[string]any{"path": path}))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	assertErrorCode(t, result, "INVALID_REQUEST")
}

func TestHandleList(t *testing.T) {
	_, history, cleanup := testSetup(t, nil)
	defer cleanup()

	h := NewHandlers(history)
	ctx := context.Background()

	for _, s := range []string{"one", "two", "three"} {
		if _, err := history.CaptureText(ctx, s); err != nil {
			t.Fatalf("CaptureText failed: %v", err)
		}
	}
	if _, err := history.CaptureImage(ctx, pngBytes, "", ""); err != nil {
		t.Fatalf("CaptureImage failed: %v", err)
	}

	tests := []struct {
		name      string
		args      map[string]any
		wantCount int
		wantTotal int
		wantFirst string
		errorCode string
	}{
		{name: "all", args: map[string]any{}, wantCount: 4, wantTotal: 4, wantFirst: "image"},
		{name: "text only", args: map[string]any{"kind": "text"}, wantCount: 3, wantTotal: 3, wantFirst: "text"},
		{name: "image only", args: map[string]any{"kind": "image"}, wantCount: 1, wantTotal: 1, wantFirst: "image"},
		{name: "limit", args: map[string]any{"limit": 2}, wantCount: 2, wantTotal: 4, wantFirst: "image"},
		{name: "bad kind", args: map[string]any{"kind": "video"}, errorCode: "INVALID_REQUEST"},
		{name: "negative limit", args: map[string]any{"limit": -1}, errorCode: "INVALID_REQUEST"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := h.HandleList(ctx, makeRequest(tt.args))
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}

			if tt.errorCode != "" {
				assertErrorCode(t, result, tt.errorCode)
				return
			}

			output := parseOutput(t, result)
			items := output["items"].([]any)
			if len(items) != tt.wantCount {
				t.Errorf("items count = %d, want %d", len(items), tt.wantCount)
			}
			if int(output["total"].(float64)) != tt.wantTotal {
				t.Errorf("total = %v, want %d", output["total"], tt.wantTotal)
			}
			first := items[0].(map[string]any)
			if first["kind"] != tt.wantFirst {
				t.Errorf("first kind = %v, want %s", first["kind"], tt.wantFirst)
			}
		})
	}
}

func TestHandleList_NewestFirst(t *testing.T) {
	_, history, cleanup := testSetup(t, nil)
	defer cleanup()

	h := NewHandlers(history)
	ctx := context.Background()

	for _, s := range []string{"a", "b", "a"} {
		if _, err := history.CaptureText(ctx, s); err != nil {
			t.Fatalf("CaptureText failed: %v", err)
		}
	}

	result, _ := h.HandleList(ctx, makeRequest(nil))
	items := parseOutput(t, result)["items"].([]any)
	if len(items) != 2 {
		t.Fatalf("items count = %d, want 2 (duplicate moved to front)", len(items))
	}
	if got := items[0].(map[string]any)["preview"]; got != "a" {
		t.Errorf("items[0].preview = %v, want a", got)
	}
}

func TestHandleGet(t *testing.T) {
	_, history, cleanup := testSetup(t, nil)
	defer cleanup()

	h := NewHandlers(history)
	ctx := context.Background()

	text, err := history.CaptureText(ctx, "full text body")
	if err != nil {
		t.Fatalf("CaptureText failed: %v", err)
	}
	img, err := history.CaptureImage(ctx, pngBytes, "", "")
	if err != nil {
		t.Fatalf("CaptureImage failed: %v", err)
	}

	t.Run("text entry", func(t *testing.T) {
		result, _ := h.HandleGet(ctx, makeRequest(map[string]any{"id": text.Entry.ID}))
		output := parseOutput(t, result)
		if output["text"] != "full text body" {
			t.Errorf("text = %v, want full text body", output["text"])
		}
		if len(result.Content) != 1 {
			t.Errorf("content count = %d, want 1", len(result.Content))
		}
	})

	t.Run("image without payload", func(t *testing.T) {
		result, _ := h.HandleGet(ctx, makeRequest(map[string]any{"id": img.Entry.ID}))
		output := parseOutput(t, result)
		if output["resolved"] != true {
			t.Errorf("resolved = %v, want true", output["resolved"])
		}
		if len(result.Content) != 1 {
			t.Errorf("content count = %d, want 1", len(result.Content))
		}
	})

	t.Run("image with payload", func(t *testing.T) {
		result, _ := h.HandleGet(ctx, makeRequest(map[string]any{"id": img.Entry.ID, "include_image": true}))
		if result.IsError {
			t.Fatalf("unexpected error: %s", extractErrorMessage(result))
		}
		if len(result.Content) != 2 {
			t.Fatalf("content count = %d, want 2", len(result.Content))
		}
		image, ok := result.Content[1].(mcp.ImageContent)
		if !ok {
			t.Fatalf("content[1] is %T, want ImageContent", result.Content[1])
		}
		if image.MIMEType != "image/png" {
			t.Errorf("MIMEType = %q, want image/png", image.MIMEType)
		}
		if image.Data == "" {
			t.Error("expected base64 image data")
		}
	})

	t.Run("not found", func(t *testing.T) {
		result, _ := h.HandleGet(ctx, makeRequest(map[string]any{"id": "01NOPE"}))
		assertErrorCode(t, result, "NOT_FOUND")
	})
}

func TestHandleCaptureURL(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/shot.png":
			w.Header().Set("Content-Type", "image/png")
			_, _ = w.Write(pngBytes)
		case "/page.html":
			w.Header().Set("Content-Type", "text/html")
			_, _ = w.Write([]byte("<html></html>"))
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	_, history, cleanup := testSetup(t, nil)
	defer cleanup()

	h := NewHandlers(history)
	ctx := context.Background()

	result, _ := h.HandleCaptureURL(ctx, makeRequest(map[string]any{"url": srv.URL + "/shot.png"}))
	output := parseOutput(t, result)
	entry := output["entry"].(map[string]any)
	if entry["source_url"] != srv.URL+"/shot.png" {
		t.Errorf("source_url = %v, want %s", entry["source_url"], srv.URL+"/shot.png")
	}
	if output["ghost"] != nil {
		t.Errorf("ghost = %v, want omitted", output["ghost"])
	}

	result, _ = h.HandleCaptureURL(ctx, makeRequest(map[string]any{"url": srv.URL + "/gone.png"}))
	output = parseOutput(t, result)
	if output["ghost"] != true {
		t.Errorf("ghost = %v, want true for failed download", output["ghost"])
	}

	result, _ = h.HandleCaptureURL(ctx, makeRequest(map[string]any{"url": srv.URL + "/page.html"}))
	assertErrorCode(t, result, "INVALID_PAYLOAD")

	result, _ = h.HandleCaptureURL(ctx, makeRequest(map[string]any{"url": "file:///etc/passwd"}))
	assertErrorCode(t, result, "INVALID_REQUEST")

	list, err := history.List(ctx, ops.ListInput{})
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if list.Total != 2 {
		t.Errorf("history has %d entries, want 2", list.Total)
	}
}

func TestHandleCopy(t *testing.T) {
	var copied []string
	_, history, cleanup := testSetup(t, nil, func(o *ops.Options) {
		o.ClipboardWriter = func(text string) error {
			copied = append(copied, text)
			return nil
		}
	})
	defer cleanup()

	h := NewHandlers(history)
	ctx := context.Background()

	text, err := history.CaptureText(ctx, "line one\nline two")
	if err != nil {
		t.Fatalf("CaptureText failed: %v", err)
	}
	img, err := history.CaptureImage(ctx, pngBytes, "", "")
	if err != nil {
		t.Fatalf("CaptureImage failed: %v", err)
	}

	result, _ := h.HandleCopy(ctx, makeRequest(map[string]any{"id": text.Entry.ID}))
	output := parseOutput(t, result)
	if output["id"] != text.Entry.ID {
		t.Errorf("id = %v, want %s", output["id"], text.Entry.ID)
	}
	if len(copied) != 1 || copied[0] != "line one\nline two" {
		t.Errorf("clipboard = %q, want the entry text", copied)
	}

	result, _ = h.HandleCopy(ctx, makeRequest(map[string]any{"id": img.Entry.ID}))
	assertErrorCode(t, result, "INVALID_REQUEST")

	result, _ = h.HandleCopy(ctx, makeRequest(map[string]any{"id": "01NONEXISTENT"}))
	assertErrorCode(t, result, "NOT_FOUND")

	if len(copied) != 1 {
		t.Errorf("clipboard written %d times, want 1", len(copied))
	}
}

func TestHandleDelete(t *testing.T) {
	_, history, cleanup := testSetup(t, nil)
	defer cleanup()

	h := NewHandlers(history)
	ctx := context.Background()

	img, err := history.CaptureImage(ctx, pngBytes, "", "")
	if err != nil {
		t.Fatalf("CaptureImage failed: %v", err)
	}

	result, _ := h.HandleDelete(ctx, makeRequest(map[string]any{"id": img.Entry.ID}))
	output := parseOutput(t, result)
	if output["deleted"] != true {
		t.Errorf("deleted = %v, want true", output["deleted"])
	}
	if output["image_deleted"] != true {
		t.Errorf("image_deleted = %v, want true", output["image_deleted"])
	}

	// Second delete is a no-op, not an error
	result, _ = h.HandleDelete(ctx, makeRequest(map[string]any{"id": img.Entry.ID}))
	output = parseOutput(t, result)
	if output["deleted"] != false {
		t.Errorf("deleted = %v, want false on repeat", output["deleted"])
	}

	result, _ = h.HandleDelete(ctx, makeRequest(map[string]any{"id": ""}))
	assertErrorCode(t, result, "INVALID_REQUEST")
}

func TestHandleClear(t *testing.T) {
	_, history, cleanup := testSetup(t, nil)
	defer cleanup()

	h := NewHandlers(history)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		if _, err := history.CaptureText(ctx, fmt.Sprintf("text %d", i)); err != nil {
			t.Fatalf("CaptureText failed: %v", err)
		}
	}
	if _, err := history.CaptureImage(ctx, pngBytes, "", ""); err != nil {
		t.Fatalf("CaptureImage failed: %v", err)
	}

	result, _ := h.HandleClear(ctx, makeRequest(nil))
	output := parseOutput(t, result)
	if int(output["entries"].(float64)) != 4 {
		t.Errorf("entries = %v, want 4", output["entries"])
	}
	if int(output["images"].(float64)) != 1 {
		t.Errorf("images = %v, want 1", output["images"])
	}

	list, _ := h.HandleList(ctx, makeRequest(nil))
	if total := parseOutput(t, list)["total"]; total != float64(0) {
		t.Errorf("total after clear = %v, want 0", total)
	}
}

func TestHandleClearImages(t *testing.T) {
	_, history, cleanup := testSetup(t, nil)
	defer cleanup()

	h := NewHandlers(history)
	ctx := context.Background()

	if _, err := history.CaptureText(ctx, "keep me"); err != nil {
		t.Fatalf("CaptureText failed: %v", err)
	}
	for i := 0; i < 2; i++ {
		if _, err := history.CaptureImage(ctx, pngBytes, "", ""); err != nil {
			t.Fatalf("CaptureImage failed: %v", err)
		}
	}

	result, _ := h.HandleClearImages(ctx, makeRequest(nil))
	output := parseOutput(t, result)
	if int(output["entries"].(float64)) != 2 {
		t.Errorf("entries = %v, want 2", output["entries"])
	}

	list, _ := h.HandleList(ctx, makeRequest(nil))
	items := parseOutput(t, list)["items"].([]any)
	if len(items) != 1 {
		t.Fatalf("items after clear images = %d, want 1", len(items))
	}
	if items[0].(map[string]any)["preview"] != "keep me" {
		t.Errorf("remaining preview = %v, want keep me", items[0].(map[string]any)["preview"])
	}
}

func TestServerRegistration(t *testing.T) {
	_, history, cleanup := testSetup(t, nil)
	defer cleanup()

	s := NewServer(history, "test")
	if s == nil {
		t.Fatal("NewServer returned nil")
	}

	tools := s.ListTools()
	if len(tools) != 9 {
		t.Errorf("registered %d tools, want 9", len(tools))
	}
	for _, name := range AllToolNames() {
		if _, ok := tools[name]; !ok {
			t.Errorf("tool %q not registered", name)
		}
	}
}

func TestServerRegistration_WithDisabledTools(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.DisabledTools = []string{"history_clear", "history_clear_images", "history_delete"}
	_, history, cleanup := testSetup(t, cfg)
	defer cleanup()

	tools := NewServer(history, "test").ListTools()
	if len(tools) != 6 {
		t.Errorf("registered %d tools, want 6", len(tools))
	}
	for _, name := range cfg.DisabledTools {
		if _, ok := tools[name]; ok {
			t.Errorf("disabled tool %q was registered", name)
		}
	}
	if _, ok := tools["history_list"]; !ok {
		t.Error("history_list should still be registered")
	}
}

func TestServerRegistration_AllToolsDisabled(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.DisabledTools = AllToolNames()
	_, history, cleanup := testSetup(t, cfg)
	defer cleanup()

	if tools := NewServer(history, "test").ListTools(); len(tools) != 0 {
		t.Errorf("registered %d tools, want 0", len(tools))
	}
}

func TestValidateDisabledTools(t *testing.T) {
	tests := []struct {
		name  string
		input []string
		want  []string
	}{
		{"all valid", []string{"history_list", "history_clear"}, []string{}},
		{"one unknown", []string{"history_list", "capsule_store"}, []string{"capsule_store"}},
		{"empty", nil, []string{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ValidateDisabledTools(tt.input)
			if len(got) != len(tt.want) {
				t.Fatalf("ValidateDisabledTools() = %v, want %v", got, tt.want)
			}
			for i := range tt.want {
				if got[i] != tt.want[i] {
					t.Errorf("got[%d] = %q, want %q", i, got[i], tt.want[i])
				}
			}
		})
	}
}

func TestAllToolNames(t *testing.T) {
	names := AllToolNames()

	if len(names) != 9 {
		t.Errorf("AllToolNames() returned %d names, want 9", len(names))
	}

	unknown := ValidateDisabledTools(names)
	if len(unknown) != 0 {
		t.Errorf("AllToolNames() returned invalid names: %v", unknown)
	}
}

func TestErrorResult_InternalDoesNotExposeDetails(t *testing.T) {
	r := errorResult(errors.NewInternal(fmt.Errorf("sql error: open /tmp/secret.db: permission denied")))
	if !r.IsError {
		t.Fatal("expected IsError=true")
	}

	errObj := errorObject(t, r)
	if errObj["code"] != string(errors.ErrInternal) {
		t.Fatalf("code=%v, want %v", errObj["code"], errors.ErrInternal)
	}
	if _, ok := errObj["details"]; ok {
		t.Fatal("expected INTERNAL errors to omit details")
	}
	if strings.Contains(errObj["message"].(string), "secret.db") {
		t.Errorf("message leaks internals: %v", errObj["message"])
	}
}

func TestErrorResult_StorageUnavailableHidesCause(t *testing.T) {
	r := errorResult(errors.NewStorageUnavailable(fmt.Errorf("open /tmp/secret.db: disk full")))

	errObj := errorObject(t, r)
	if errObj["code"] != string(errors.ErrStorageUnavailable) {
		t.Fatalf("code=%v, want %v", errObj["code"], errors.ErrStorageUnavailable)
	}
	if errObj["message"] != "storage unavailable" {
		t.Errorf("message = %v, want storage unavailable", errObj["message"])
	}
}

func TestErrorResult_WrappedErrorPreservesContext(t *testing.T) {
	wrappedErr := fmt.Errorf("capture: %w", errors.NewInvalidPayload("image bytes are empty"))

	errObj := errorObject(t, errorResult(wrappedErr))
	if errObj["code"] != string(errors.ErrInvalidPayload) {
		t.Errorf("code=%v, want %v", errObj["code"], errors.ErrInvalidPayload)
	}

	msg := errObj["message"].(string)
	if msg != "capture: image bytes are empty" {
		t.Errorf("message = %q, want wrapper context kept", msg)
	}
}

func TestErrorResult_NonInternalIncludesDetails(t *testing.T) {
	errObj := errorObject(t, errorResult(errors.NewNotFound("abc")))

	if errObj["code"] != string(errors.ErrNotFound) {
		t.Fatalf("code=%v, want %v", errObj["code"], errors.ErrNotFound)
	}
	if _, ok := errObj["details"]; !ok {
		t.Fatal("expected non-INTERNAL errors to include details when present")
	}
}

func TestErrorResult_PlainError(t *testing.T) {
	errObj := errorObject(t, errorResult(fmt.Errorf("boom")))
	if errObj["code"] != string(errors.ErrInternal) {
		t.Errorf("code=%v, want %v", errObj["code"], errors.ErrInternal)
	}
}

// Helper functions

// parseOutput extracts and unmarshals the JSON output from an MCP result.
func parseOutput(t *testing.T, result *mcp.CallToolResult) map[string]any {
	t.Helper()
	if result.IsError {
		t.Fatalf("expected success, got error: %v", extractErrorMessage(result))
	}
	var output map[string]any
	if err := json.Unmarshal([]byte(result.Content[0].(mcp.TextContent).Text), &output); err != nil {
		t.Fatalf("failed to unmarshal response: %v", err)
	}
	return output
}

func errorObject(t *testing.T, result *mcp.CallToolResult) map[string]any {
	t.Helper()
	var payload map[string]any
	if err := json.Unmarshal([]byte(result.Content[0].(mcp.TextContent).Text), &payload); err != nil {
		t.Fatalf("failed to unmarshal error payload: %v", err)
	}
	return payload["error"].(map[string]any)
}

func assertErrorCode(t *testing.T, result *mcp.CallToolResult, expectedCode string) {
	t.Helper()

	if len(result.Content) == 0 {
		t.Errorf("no content in error result")
		return
	}

	text, ok := result.Content[0].(mcp.TextContent)
	if !ok {
		t.Errorf("content is not TextContent")
		return
	}

	var payload map[string]any
	if err := json.Unmarshal([]byte(text.Text), &payload); err != nil {
		t.Errorf("failed to unmarshal error payload: %v", err)
		return
	}

	errorObj, ok := payload["error"].(map[string]any)
	if !ok {
		t.Errorf("no error object in payload")
		return
	}

	code, ok := errorObj["code"].(string)
	if !ok {
		t.Errorf("no code in error object")
		return
	}

	if code != expectedCode {
		t.Errorf("got error code %q, want %q", code, expectedCode)
	}
}

func extractErrorMessage(result *mcp.CallToolResult) string {
	if len(result.Content) == 0 {
		return "<no content>"
	}

	text, ok := result.Content[0].(mcp.TextContent)
	if !ok {
		return "<not text content>"
	}

	return text.Text
}
