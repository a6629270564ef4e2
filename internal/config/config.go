package config

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// Config holds application configuration.
type Config struct {
	// MaxItems caps both the history ledger and the image blob store
	MaxItems int `json:"max_items"`

	// PreviewChars is the rune length after which text previews are truncated
	PreviewChars int `json:"preview_chars"`

	// MaxImageBytes rejects larger image captures as INVALID_PAYLOAD
	MaxImageBytes int64 `json:"max_image_bytes"`

	// OrphanGraceSeconds is how old an unreferenced image must be before reconcile prunes it.
	// Protects a capture in flight between the blob write and the ledger write.
	OrphanGraceSeconds int `json:"orphan_grace_seconds"`

	// SweepIntervalSeconds is the period of the background reconcile job in watch/serve mode.
	SweepIntervalSeconds int `json:"sweep_interval_seconds"`

	// PollIntervalMS is how often the clipboard poller reads the system clipboard.
	PollIntervalMS int `json:"poll_interval_ms"`

	// DownloadTimeoutSeconds bounds an image download by URL, including redirects and body.
	DownloadTimeoutSeconds int `json:"download_timeout_seconds"`

	// LogLevel is a logrus level name (debug, info, warn, error).
	LogLevel string `json:"log_level,omitempty"`

	// LogFormat is "text" (default) or "json".
	LogFormat string `json:"log_format,omitempty"`

	// AllowedPaths is an allowlist of directories image captures may be read from.
	// Paths outside ~/.sideclip/inbox require either being in this list or AllowUnsafePaths=true.
	// Paths should be absolute (relative paths are ignored).
	AllowedPaths []string `json:"allowed_paths,omitempty"`

	// AllowUnsafePaths disables directory restrictions for image file captures.
	// Symlink and extension checks still apply.
	AllowUnsafePaths bool `json:"allow_unsafe_paths,omitempty"`

	// DBMaxOpenConns limits the maximum number of open database connections.
	// If set to 1, all database access is serialized (reduces "database is locked" errors).
	// 0 means use sql.DB default (unlimited). Only set if you experience contention.
	DBMaxOpenConns int `json:"db_max_open_conns,omitempty"`

	// DBMaxIdleConns limits the maximum number of idle database connections.
	// 0 means use sql.DB default. Typically set equal to DBMaxOpenConns.
	DBMaxIdleConns int `json:"db_max_idle_conns,omitempty"`

	// DisabledTools is a list of MCP tool names to exclude from registration.
	// Unknown tool names are logged as warnings.
	DisabledTools []string `json:"disabled_tools,omitempty"`
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		MaxItems:               50,
		PreviewChars:           100,
		MaxImageBytes:          5 * 1024 * 1024,
		OrphanGraceSeconds:     60,
		SweepIntervalSeconds:   300,
		PollIntervalMS:         500,
		DownloadTimeoutSeconds: 30,
		LogLevel:               "info",
		LogFormat:              "text",
	}
}

// OrphanGrace returns OrphanGraceSeconds as a duration.
func (c *Config) OrphanGrace() time.Duration {
	return time.Duration(c.OrphanGraceSeconds) * time.Second
}

// SweepInterval returns SweepIntervalSeconds as a duration.
func (c *Config) SweepInterval() time.Duration {
	return time.Duration(c.SweepIntervalSeconds) * time.Second
}

// PollInterval returns PollIntervalMS as a duration.
func (c *Config) PollInterval() time.Duration {
	return time.Duration(c.PollIntervalMS) * time.Millisecond
}

// DownloadTimeout returns DownloadTimeoutSeconds as a duration.
func (c *Config) DownloadTimeout() time.Duration {
	return time.Duration(c.DownloadTimeoutSeconds) * time.Second
}

// LoadWithRepo loads configuration from both global (~/.sideclip) and repo (.sideclip) directories.
// Repo config is found by walking upward from startDir to find the nearest .sideclip/config.json.
// Repo config takes precedence for scalar values; arrays are merged (deduplicated).
// Either or both configs may be missing.
func LoadWithRepo(globalDir, startDir string) (*Config, error) {
	global, err := loadFileRaw(filepath.Join(globalDir, "config.json"))
	if err != nil {
		return nil, err
	}

	repo, err := loadFileRaw(FindRepoConfig(startDir))
	if err != nil {
		return nil, err
	}

	// Apply defaults, then global, then repo
	return Merge(Merge(DefaultConfig(), global), repo), nil
}

// FindRepoConfig walks upward from startDir to find the nearest .sideclip/config.json.
// Returns the path if found, or empty string if not found.
func FindRepoConfig(startDir string) string {
	dir := startDir
	for {
		configPath := filepath.Join(dir, ".sideclip", "config.json")
		if _, err := os.Stat(configPath); err == nil {
			return configPath
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			return ""
		}
		dir = parent
	}
}

// loadFileRaw loads configuration from a specific file path.
// Returns zero-valued config if the file doesn't exist (not defaults).
func loadFileRaw(configPath string) (*Config, error) {
	if configPath == "" {
		return &Config{}, nil
	}
	data, err := os.ReadFile(configPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return &Config{}, nil
		}
		return nil, err
	}

	cfg := &Config{}
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Merge combines base and overlay configs.
// Overlay values take precedence for scalars; arrays are merged and deduplicated.
func Merge(base, overlay *Config) *Config {
	result := &Config{
		MaxItems:               firstNonZero(overlay.MaxItems, base.MaxItems),
		PreviewChars:           firstNonZero(overlay.PreviewChars, base.PreviewChars),
		MaxImageBytes:          firstNonZero(overlay.MaxImageBytes, base.MaxImageBytes),
		OrphanGraceSeconds:     firstNonZero(overlay.OrphanGraceSeconds, base.OrphanGraceSeconds),
		SweepIntervalSeconds:   firstNonZero(overlay.SweepIntervalSeconds, base.SweepIntervalSeconds),
		PollIntervalMS:         firstNonZero(overlay.PollIntervalMS, base.PollIntervalMS),
		DownloadTimeoutSeconds: firstNonZero(overlay.DownloadTimeoutSeconds, base.DownloadTimeoutSeconds),
		LogLevel:               firstNonZero(overlay.LogLevel, base.LogLevel),
		LogFormat:              firstNonZero(overlay.LogFormat, base.LogFormat),
		DBMaxOpenConns:         firstNonZero(overlay.DBMaxOpenConns, base.DBMaxOpenConns),
		DBMaxIdleConns:         firstNonZero(overlay.DBMaxIdleConns, base.DBMaxIdleConns),
	}

	// Booleans: overlay wins if true, else base
	result.AllowUnsafePaths = base.AllowUnsafePaths || overlay.AllowUnsafePaths

	// Arrays: merge and deduplicate
	result.AllowedPaths = mergeStringSlice(base.AllowedPaths, overlay.AllowedPaths)
	result.DisabledTools = mergeStringSlice(base.DisabledTools, overlay.DisabledTools)

	return result
}

// firstNonZero returns overlay unless it is the zero value.
func firstNonZero[T comparable](overlay, base T) T {
	var zero T
	if overlay != zero {
		return overlay
	}
	return base
}

// mergeStringSlice combines two slices, trims whitespace, and removes duplicates.
func mergeStringSlice(a, b []string) []string {
	seen := make(map[string]bool)
	result := make([]string, 0, len(a)+len(b))

	for _, s := range append(append([]string{}, a...), b...) {
		s = strings.TrimSpace(s)
		if s != "" && !seen[s] {
			seen[s] = true
			result = append(result, s)
		}
	}

	if len(result) == 0 {
		return nil
	}
	return result
}
