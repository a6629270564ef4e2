package main

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/atotto/clipboard"
	"github.com/urfave/cli/v2"

	"github.com/hpungsan/sideclip/internal/capture"
	"github.com/hpungsan/sideclip/internal/clip"
	"github.com/hpungsan/sideclip/internal/config"
	"github.com/hpungsan/sideclip/internal/db"
	"github.com/hpungsan/sideclip/internal/logging"
	"github.com/hpungsan/sideclip/internal/metrics"
	"github.com/hpungsan/sideclip/internal/ops"
)

var pngBytes = []byte{0x89, 'P', 'N', 'G', '\r', '\n', 0x1a, '\n', 0, 0, 0, 0x0d, 'I', 'H', 'D', 'R'}

// setupTestEnv creates a temporary database and history for testing.
func setupTestEnv(t *testing.T, mods ...func(*ops.Options)) *appEnv {
	t.Helper()
	tmpDir := t.TempDir()
	database, err := db.Init(tmpDir)
	if err != nil {
		t.Fatalf("failed to init test db: %v", err)
	}
	t.Cleanup(func() { database.Close() })

	cfg := config.DefaultConfig()
	cfg.AllowUnsafePaths = true // Allow temp dirs in tests

	logger := logging.Discard()
	m := metrics.New()
	opts := ops.Options{Config: cfg, Logger: logger, Metrics: m}
	for _, mod := range mods {
		mod(&opts)
	}
	history := ops.Open(database, opts)
	t.Cleanup(history.Close)

	return &appEnv{
		history:  history,
		metrics:  m,
		log:      logger,
		inboxDir: filepath.Join(tmpDir, db.InboxDir),
	}
}

// runCLI runs the app with args and returns what it wrote to stdout.
func runCLI(t *testing.T, app *cli.App, args ...string) (string, error) {
	t.Helper()

	oldStdout := os.Stdout
	r, w, err := os.Pipe()
	if err != nil {
		t.Fatalf("failed to create pipe: %v", err)
	}
	os.Stdout = w

	runErr := app.Run(append([]string{"sideclip"}, args...))

	w.Close()
	var buf bytes.Buffer
	_, _ = buf.ReadFrom(r)
	os.Stdout = oldStdout

	return buf.String(), runErr
}

// withStdin replaces stdin with a pipe carrying content for the duration of fn.
func withStdin(t *testing.T, content string, fn func()) {
	t.Helper()
	r, w, err := os.Pipe()
	if err != nil {
		t.Fatalf("failed to create pipe: %v", err)
	}
	go func() {
		_, _ = w.WriteString(content)
		w.Close()
	}()

	oldStdin := os.Stdin
	os.Stdin = r
	defer func() { os.Stdin = oldStdin }()
	fn()
}

func decodeOutput(t *testing.T, out string) map[string]any {
	t.Helper()
	var v map[string]any
	if err := json.Unmarshal([]byte(out), &v); err != nil {
		t.Fatalf("failed to parse output: %v\nOutput: %s", err, out)
	}
	return v
}

// TestCLICopy tests the copy command with arguments.
func TestCLICopy(t *testing.T) {
	env := setupTestEnv(t)
	app := newCLIApp(env)

	out, err := runCLI(t, app, "copy", "hello", "world")
	if err != nil {
		t.Fatalf("copy command failed: %v", err)
	}

	entry := decodeOutput(t, out)["entry"].(map[string]any)
	if entry["preview"] != "hello world" {
		t.Errorf("expected preview=hello world, got %v", entry["preview"])
	}
	if entry["kind"] != "text" {
		t.Errorf("expected kind=text, got %v", entry["kind"])
	}
}

// TestCLICopy_Stdin tests the copy command reading piped text.
func TestCLICopy_Stdin(t *testing.T) {
	env := setupTestEnv(t)
	app := newCLIApp(env)

	var out string
	var err error
	withStdin(t, "from stdin", func() {
		out, err = runCLI(t, app, "copy")
	})
	if err != nil {
		t.Fatalf("copy command failed: %v", err)
	}

	entry := decodeOutput(t, out)["entry"].(map[string]any)
	if entry["text"] != "from stdin" {
		t.Errorf("expected text=from stdin, got %v", entry["text"])
	}
}

// TestCLICopy_Blank tests that blank text is rejected without recording anything.
func TestCLICopy_Blank(t *testing.T) {
	env := setupTestEnv(t)
	app := newCLIApp(env)

	_, err := runCLI(t, app, "copy", "   ")
	if err == nil {
		t.Fatal("expected error, got nil")
	}
	if !strings.Contains(err.Error(), "EMPTY_INPUT") {
		t.Errorf("expected EMPTY_INPUT, got %v", err)
	}

	list, _ := env.history.List(context.Background(), ops.ListInput{})
	if list.Total != 0 {
		t.Errorf("expected empty history, got %d entries", list.Total)
	}
}

// TestCLIImage tests the image command.
func TestCLIImage(t *testing.T) {
	env := setupTestEnv(t)
	app := newCLIApp(env)

	path := filepath.Join(t.TempDir(), "shot.png")
	if err := os.WriteFile(path, pngBytes, 0600); err != nil {
		t.Fatalf("failed to write image: %v", err)
	}

	out, err := runCLI(t, app, "image", path)
	if err != nil {
		t.Fatalf("image command failed: %v", err)
	}

	output := decodeOutput(t, out)
	if output["image_id"] == nil {
		t.Error("expected image_id in output")
	}
	entry := output["entry"].(map[string]any)
	if entry["mime_type"] != "image/png" {
		t.Errorf("expected mime_type=image/png, got %v", entry["mime_type"])
	}
}

// TestCLIImage_URL tests downloading an image with --url.
func TestCLIImage_URL(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/shot.png" {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "image/png")
		_, _ = w.Write(pngBytes)
	}))
	t.Cleanup(srv.Close)

	env := setupTestEnv(t)
	app := newCLIApp(env)

	out, err := runCLI(t, app, "image", "--url", srv.URL+"/shot.png")
	if err != nil {
		t.Fatalf("image --url failed: %v", err)
	}
	entry := decodeOutput(t, out)["entry"].(map[string]any)
	if entry["source_url"] != srv.URL+"/shot.png" {
		t.Errorf("expected source_url=%s, got %v", srv.URL+"/shot.png", entry["source_url"])
	}
	if entry["mime_type"] != "image/png" {
		t.Errorf("expected mime_type=image/png, got %v", entry["mime_type"])
	}

	// A failed download still lands in the history as a ghost.
	out, err = runCLI(t, app, "image", "--url", srv.URL+"/missing.png")
	if err != nil {
		t.Fatalf("image --url for missing image failed: %v", err)
	}
	if decodeOutput(t, out)["ghost"] != true {
		t.Errorf("expected ghost=true, got %s", out)
	}

	if _, err := runCLI(t, app, "image", "--url", srv.URL+"/shot.png", "extra.png"); err == nil ||
		!strings.Contains(err.Error(), "[INVALID_REQUEST]") {
		t.Errorf("expected INVALID_REQUEST for path plus --url, got %v", err)
	}
}

// TestCLIPaste tests copying an entry back to the clipboard.
func TestCLIPaste(t *testing.T) {
	var pasted []string
	env := setupTestEnv(t, func(o *ops.Options) {
		o.ClipboardWriter = func(text string) error {
			pasted = append(pasted, text)
			return nil
		}
	})
	app := newCLIApp(env)

	out, err := runCLI(t, app, "copy", "hello again")
	if err != nil {
		t.Fatalf("copy failed: %v", err)
	}
	id := decodeOutput(t, out)["entry"].(map[string]any)["id"].(string)

	out, err = runCLI(t, app, "paste", id)
	if err != nil {
		t.Fatalf("paste failed: %v", err)
	}
	if decodeOutput(t, out)["id"] != id {
		t.Errorf("expected id=%s in output, got %s", id, out)
	}
	if len(pasted) != 1 || pasted[0] != "hello again" {
		t.Errorf("expected clipboard to receive the entry, got %v", pasted)
	}

	if _, err := runCLI(t, app, "paste"); err == nil || !strings.Contains(err.Error(), "[INVALID_REQUEST]") {
		t.Errorf("expected INVALID_REQUEST without id, got %v", err)
	}
}

// TestBuildSources_UnsupportedClipboard tests that an unusable clipboard is skipped.
func TestBuildSources_UnsupportedClipboard(t *testing.T) {
	old := clipboard.Unsupported
	clipboard.Unsupported = true
	t.Cleanup(func() { clipboard.Unsupported = old })

	env := setupTestEnv(t)
	var sources []capture.Source
	app := &cli.App{
		Flags: watchFlags(),
		Action: func(c *cli.Context) error {
			var err error
			sources, err = buildSources(c, env)
			return err
		},
	}

	if err := app.Run([]string{"sideclip"}); err != nil {
		t.Fatalf("buildSources failed: %v", err)
	}
	if len(sources) != 1 {
		t.Fatalf("expected only the inbox watcher, got %d sources", len(sources))
	}
	w, ok := sources[0].(*capture.DirWatcher)
	if !ok {
		t.Fatalf("expected *capture.DirWatcher, got %T", sources[0])
	}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_ = w.Run(ctx, make(chan clip.Event))

	if err := app.Run([]string{"sideclip", "--no-inbox"}); err != nil {
		t.Fatalf("buildSources failed: %v", err)
	}
	if len(sources) != 0 {
		t.Errorf("expected no sources, got %d", len(sources))
	}
}

// TestCLIList tests the list command and its filters.
func TestCLIList(t *testing.T) {
	env := setupTestEnv(t)
	app := newCLIApp(env)
	ctx := context.Background()

	for _, s := range []string{"first", "second", "third"} {
		if _, err := env.history.CaptureText(ctx, s); err != nil {
			t.Fatalf("CaptureText failed: %v", err)
		}
	}
	if _, err := env.history.CaptureImage(ctx, pngBytes, "", ""); err != nil {
		t.Fatalf("CaptureImage failed: %v", err)
	}

	out, err := runCLI(t, app, "list", "--kind=text", "--limit=2")
	if err != nil {
		t.Fatalf("list command failed: %v", err)
	}

	var output ops.ListOutput
	if err := json.Unmarshal([]byte(out), &output); err != nil {
		t.Fatalf("failed to parse output: %v\nOutput: %s", err, out)
	}
	if output.Total != 3 {
		t.Errorf("expected total=3, got %d", output.Total)
	}
	if len(output.Items) != 2 {
		t.Fatalf("expected 2 items, got %d", len(output.Items))
	}
	if output.Items[0].Preview != "third" {
		t.Errorf("expected newest first, got %q", output.Items[0].Preview)
	}
}

// TestCLIShow tests the show command, including writing the image payload out.
func TestCLIShow(t *testing.T) {
	env := setupTestEnv(t)
	app := newCLIApp(env)

	img, err := env.history.CaptureImage(context.Background(), pngBytes, "", "")
	if err != nil {
		t.Fatalf("CaptureImage failed: %v", err)
	}

	dest := filepath.Join(t.TempDir(), "out.png")
	out, err := runCLI(t, app, "show", "--out", dest, img.Entry.ID)
	if err != nil {
		t.Fatalf("show command failed: %v", err)
	}

	if decodeOutput(t, out)["resolved"] != true {
		t.Error("expected resolved=true")
	}
	data, err := os.ReadFile(dest)
	if err != nil {
		t.Fatalf("failed to read written payload: %v", err)
	}
	if !bytes.Equal(data, pngBytes) {
		t.Error("written payload does not match captured image")
	}
}

// TestCLIDelete tests the delete command.
func TestCLIDelete(t *testing.T) {
	env := setupTestEnv(t)
	app := newCLIApp(env)

	text, err := env.history.CaptureText(context.Background(), "doomed")
	if err != nil {
		t.Fatalf("CaptureText failed: %v", err)
	}

	out, err := runCLI(t, app, "delete", text.Entry.ID)
	if err != nil {
		t.Fatalf("delete command failed: %v", err)
	}
	if decodeOutput(t, out)["deleted"] != true {
		t.Error("expected deleted=true")
	}

	// Repeat delete is a no-op
	out, err = runCLI(t, app, "delete", text.Entry.ID)
	if err != nil {
		t.Fatalf("repeat delete failed: %v", err)
	}
	if decodeOutput(t, out)["deleted"] != false {
		t.Error("expected deleted=false on repeat")
	}
}

// TestCLIClear tests clear and clear-images.
func TestCLIClear(t *testing.T) {
	env := setupTestEnv(t)
	app := newCLIApp(env)
	ctx := context.Background()

	if _, err := env.history.CaptureText(ctx, "text"); err != nil {
		t.Fatalf("CaptureText failed: %v", err)
	}
	if _, err := env.history.CaptureImage(ctx, pngBytes, "", ""); err != nil {
		t.Fatalf("CaptureImage failed: %v", err)
	}

	t.Run("requires --yes", func(t *testing.T) {
		if _, err := runCLI(t, app, "clear"); err == nil {
			t.Error("expected error without --yes")
		}
	})

	t.Run("clear-images keeps text", func(t *testing.T) {
		out, err := runCLI(t, app, "clear-images", "--yes")
		if err != nil {
			t.Fatalf("clear-images failed: %v", err)
		}
		if decodeOutput(t, out)["entries"] != float64(1) {
			t.Errorf("expected 1 entry removed, got %s", out)
		}
		list, _ := env.history.List(ctx, ops.ListInput{})
		if list.Total != 1 {
			t.Errorf("expected 1 remaining entry, got %d", list.Total)
		}
	})

	t.Run("clear removes everything", func(t *testing.T) {
		if _, err := runCLI(t, app, "clear", "-y"); err != nil {
			t.Fatalf("clear failed: %v", err)
		}
		list, _ := env.history.List(ctx, ops.ListInput{})
		if list.Total != 0 {
			t.Errorf("expected empty history, got %d", list.Total)
		}
	})
}

// TestCLISweep tests the sweep command.
func TestCLISweep(t *testing.T) {
	env := setupTestEnv(t)
	app := newCLIApp(env)

	out, err := runCLI(t, app, "sweep")
	if err != nil {
		t.Fatalf("sweep command failed: %v", err)
	}
	output := decodeOutput(t, out)
	for _, key := range []string{"trimmed", "orphans", "evicted"} {
		if output[key] != float64(0) {
			t.Errorf("expected %s=0, got %v", key, output[key])
		}
	}
}

// TestCLIErrorHandling tests error handling in CLI commands.
func TestCLIErrorHandling(t *testing.T) {
	env := setupTestEnv(t)
	app := newCLIApp(env)

	tests := []struct {
		name     string
		args     []string
		wantCode string
	}{
		{"show not found", []string{"show", "01NONEXISTENT"}, "NOT_FOUND"},
		{"show missing id", []string{"show"}, "INVALID_REQUEST"},
		{"list bad kind", []string{"list", "--kind=video"}, "INVALID_REQUEST"},
		{"image missing file", []string{"image", "/nonexistent/shot.png"}, "FILE_NOT_FOUND"},
		{"image wrong extension", []string{"image", "/tmp/notes.txt"}, "INVALID_REQUEST"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			// cli.Exit writes to stderr, so just verify the error is returned
			_, err := runCLI(t, app, tt.args...)
			if err == nil {
				t.Fatal("expected error, got nil")
			}
			if !strings.Contains(err.Error(), "["+tt.wantCode+"]") {
				t.Errorf("expected code %s, got %v", tt.wantCode, err)
			}
		})
	}
}

// TestIsCLIMode tests the isCLIMode function.
func TestIsCLIMode(t *testing.T) {
	tests := []struct {
		name     string
		args     []string
		expected bool
	}{
		{"no args", []string{"sideclip"}, false},
		{"copy command", []string{"sideclip", "copy"}, true},
		{"clear-images command", []string{"sideclip", "clear-images"}, true},
		{"serve command", []string{"sideclip", "serve"}, true},
		{"help flag", []string{"sideclip", "--help"}, true},
		{"version flag", []string{"sideclip", "--version"}, true},
		{"short help flag", []string{"sideclip", "-h"}, true},
		{"short version flag", []string{"sideclip", "-v"}, true},
		{"unknown arg defaults to MCP", []string{"sideclip", "--unknown"}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			// Save and restore os.Args
			oldArgs := os.Args
			defer func() { os.Args = oldArgs }()

			os.Args = tt.args
			if result := isCLIMode(); result != tt.expected {
				t.Errorf("expected %v, got %v", tt.expected, result)
			}
		})
	}
}

// TestIsHelpOrVersion tests the isHelpOrVersion function.
func TestIsHelpOrVersion(t *testing.T) {
	tests := []struct {
		name     string
		args     []string
		expected bool
	}{
		{"no args", []string{"sideclip"}, false},
		{"help flag", []string{"sideclip", "--help"}, true},
		{"short help flag", []string{"sideclip", "-h"}, true},
		{"version flag", []string{"sideclip", "--version"}, true},
		{"short version flag", []string{"sideclip", "-v"}, true},
		{"help subcommand", []string{"sideclip", "help"}, true},
		{"copy command is not help", []string{"sideclip", "copy"}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			oldArgs := os.Args
			defer func() { os.Args = oldArgs }()

			os.Args = tt.args
			if result := isHelpOrVersion(); result != tt.expected {
				t.Errorf("expected %v, got %v", tt.expected, result)
			}
		})
	}
}

// TestReadStdinWithLimit tests the readStdin function respects size limits.
func TestReadStdinWithLimit(t *testing.T) {
	t.Run("within limit", func(t *testing.T) {
		withStdin(t, "small content\n", func() {
			result, err := readStdin(1000)
			if err != nil {
				t.Errorf("unexpected error: %v", err)
			}
			// Content is kept byte for byte
			if result != "small content\n" {
				t.Errorf("expected %q, got %q", "small content\n", result)
			}
		})
	})

	t.Run("exceeds limit", func(t *testing.T) {
		withStdin(t, strings.Repeat("x", 100), func() {
			if _, err := readStdin(50); err == nil {
				t.Error("expected error for content exceeding limit, got nil")
			}
		})
	})
}
