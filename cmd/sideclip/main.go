package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/hpungsan/sideclip/internal/config"
	"github.com/hpungsan/sideclip/internal/db"
	"github.com/hpungsan/sideclip/internal/logging"
	"github.com/hpungsan/sideclip/internal/mcp"
	"github.com/hpungsan/sideclip/internal/metrics"
	"github.com/hpungsan/sideclip/internal/ops"
)

// Version is set via -ldflags at build time.
var Version = "dev"

// cliCommands contains known CLI subcommands.
var cliCommands = map[string]bool{
	"copy": true, "image": true, "list": true, "show": true,
	"delete": true, "clear": true, "clear-images": true,
	"sweep": true, "watch": true, "serve": true,
	"help": true,
}

// isCLIMode determines if we should run CLI vs MCP server.
func isCLIMode() bool {
	if len(os.Args) < 2 {
		return false // No args → MCP server
	}
	arg := os.Args[1]
	// Known subcommand → CLI
	if cliCommands[arg] {
		return true
	}
	// --help or --version → CLI
	if arg == "--help" || arg == "-h" || arg == "--version" || arg == "-v" {
		return true
	}
	return false // Default → MCP server
}

// isHelpOrVersion returns true if the user is requesting help or version info.
func isHelpOrVersion() bool {
	if len(os.Args) < 2 {
		return false
	}
	arg := os.Args[1]
	return arg == "--help" || arg == "-h" || arg == "--version" || arg == "-v" || arg == "help"
}

// isTerminal returns true if stdin is a terminal (not piped).
func isTerminal() bool {
	stat, _ := os.Stdin.Stat()
	return (stat.Mode() & os.ModeCharDevice) != 0
}

// printBanner displays a friendly banner when run interactively without args.
func printBanner() {
	fmt.Println(`
       _     _           _ _
   ___(_) __| | ___  ___| (_)_ __
  / __| |/ _' |/ _ \/ __| | | '_ \
  \__ \ | (_| |  __/ (__| | | |_) |
  |___/_|\__,_|\___|\___|_|_| .__/
                            |_|

  Local clipboard history store

  Usage: sideclip <command> [options]
         sideclip --help

  MCP server mode requires piped input.`)
}

func fatal(format string, args ...any) {
	fmt.Fprintf(os.Stderr, "error: "+format+"\n", args...)
	os.Exit(1)
}

func main() {
	// No args + interactive terminal → show banner and exit
	if len(os.Args) < 2 && isTerminal() {
		printBanner()
		return
	}

	// Handle --help/--version before DB init (no DB needed)
	if isHelpOrVersion() {
		if err := newCLIApp(&appEnv{}).Run(os.Args); err != nil {
			fatal("%v", err)
		}
		return
	}

	// Unknown argument + terminal → show error (don't start MCP server)
	if !isCLIMode() && len(os.Args) >= 2 && isTerminal() {
		fmt.Fprintf(os.Stderr, "error: unknown command %q\n", os.Args[1])
		fmt.Fprintf(os.Stderr, "Run 'sideclip --help' for usage.\n")
		os.Exit(1)
	}

	homeDir, err := os.UserHomeDir()
	if err != nil {
		fatal("could not determine home directory: %v", err)
	}
	baseDir := filepath.Join(homeDir, ".sideclip")

	cwd, err := os.Getwd()
	if err != nil {
		cwd = homeDir
	}
	cfg, err := config.LoadWithRepo(baseDir, cwd)
	if err != nil {
		fatal("failed to load config: %v", err)
	}

	// Logs go to stderr so MCP stdio stays clean
	logger := logging.New(cfg)

	database, err := db.Init(baseDir)
	if err != nil {
		fatal("failed to initialize database: %v", err)
	}
	defer database.Close()
	db.ConfigurePool(database, cfg)

	if unknown := mcp.ValidateDisabledTools(cfg.DisabledTools); len(unknown) > 0 {
		logger.Warnf("unknown tools in disabled_tools: %s", strings.Join(unknown, ", "))
	}

	m := metrics.New()
	history := ops.Open(database, ops.Options{Config: cfg, Logger: logger, Metrics: m})
	defer history.Close()

	// CLI mode: known subcommand
	if isCLIMode() {
		env := &appEnv{
			history:  history,
			metrics:  m,
			log:      logger,
			inboxDir: filepath.Join(baseDir, db.InboxDir),
		}
		if err := newCLIApp(env).Run(os.Args); err != nil {
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
			history.Close()
			database.Close()
			os.Exit(1)
		}
		return
	}

	// MCP server mode (default)
	if err := mcp.Run(history, Version); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		history.Close()
		database.Close()
		os.Exit(1)
	}
}
