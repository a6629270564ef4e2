package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/sirupsen/logrus"
	"github.com/urfave/cli/v2"

	"github.com/hpungsan/sideclip/internal/capture"
	"github.com/hpungsan/sideclip/internal/errors"
	"github.com/hpungsan/sideclip/internal/metrics"
	"github.com/hpungsan/sideclip/internal/ops"
	"github.com/hpungsan/sideclip/internal/sweep"
	"github.com/hpungsan/sideclip/internal/web"
)

// maxStdinBytes bounds text read by the copy command.
const maxStdinBytes = 4 * 1024 * 1024

// appEnv carries the long-lived collaborators shared by every command.
type appEnv struct {
	history  *ops.History
	metrics  *metrics.Metrics
	log      *logrus.Logger
	inboxDir string
}

// newCLIApp creates the CLI application with all commands.
func newCLIApp(env *appEnv) *cli.App {
	app := &cli.App{
		Name:    "sideclip",
		Usage:   "Local clipboard history store",
		Version: Version,
		Commands: []*cli.Command{
			copyCmd(env),
			imageCmd(env),
			pasteCmd(env),
			listCmd(env),
			showCmd(env),
			deleteCmd(env),
			clearCmd(env),
			clearImagesCmd(env),
			sweepCmd(env),
			watchCmd(env),
			serveCmd(env),
		},
	}
	// Disable default exit error handler to allow proper error return in tests
	app.ExitErrHandler = func(_ *cli.Context, _ error) {}
	return app
}

// copyCmd creates the copy command.
func copyCmd(env *appEnv) *cli.Command {
	return &cli.Command{
		Name:      "copy",
		Usage:     "Record text in the history (from arguments, or stdin when piped)",
		ArgsUsage: "[text...]",
		Action: func(c *cli.Context) error {
			var text string
			switch {
			case c.NArg() > 0:
				text = strings.Join(c.Args().Slice(), " ")
			case stdinHasData():
				var err error
				text, err = readStdin(maxStdinBytes)
				if err != nil {
					return outputError(errors.NewInvalidRequest(err.Error()))
				}
			default:
				return outputError(errors.NewInvalidRequest("text must be passed as arguments or piped via stdin"))
			}

			output, err := env.history.CaptureText(c.Context, text)
			if err != nil {
				return outputError(err)
			}
			return outputJSON(output)
		},
	}
}

// imageCmd creates the image command.
func imageCmd(env *appEnv) *cli.Command {
	return &cli.Command{
		Name:      "image",
		Usage:     "Record an image file, or an image downloaded with --url, in the history",
		ArgsUsage: "<path>",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "url", Aliases: []string{"u"}, Usage: "Download the image from this http(s) URL"},
		},
		Action: func(c *cli.Context) error {
			var (
				output *ops.CaptureOutput
				err    error
			)
			switch u := c.String("url"); {
			case u != "" && c.NArg() > 0:
				return outputError(errors.NewInvalidRequest("pass either a path or --url, not both"))
			case u != "":
				output, err = env.history.CaptureImageURL(c.Context, u)
			case c.NArg() == 1:
				output, err = env.history.CaptureImageFile(c.Context, c.Args().First())
			default:
				return outputError(errors.NewInvalidRequest("exactly one image path is required"))
			}
			if err != nil {
				return outputError(err)
			}
			return outputJSON(output)
		},
	}
}

// pasteCmd creates the paste command.
func pasteCmd(env *appEnv) *cli.Command {
	return &cli.Command{
		Name:      "paste",
		Usage:     "Put a text entry back on the system clipboard",
		ArgsUsage: "<id>",
		Action: func(c *cli.Context) error {
			if c.NArg() != 1 {
				return outputError(errors.NewInvalidRequest("exactly one entry ID is required"))
			}

			output, err := env.history.CopyToClipboard(c.Context, c.Args().First())
			if err != nil {
				return outputError(err)
			}
			return outputJSON(output)
		},
	}
}

// listCmd creates the list command.
func listCmd(env *appEnv) *cli.Command {
	return &cli.Command{
		Name:  "list",
		Usage: "List history entries, newest first",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "kind", Aliases: []string{"k"}, Usage: "Only show entries of this kind: text|image"},
			&cli.IntFlag{Name: "limit", Aliases: []string{"l"}, Usage: "Maximum entries to show (0 = all)"},
		},
		Action: func(c *cli.Context) error {
			output, err := env.history.List(c.Context, ops.ListInput{
				Kind:  c.String("kind"),
				Limit: c.Int("limit"),
			})
			if err != nil {
				return outputError(err)
			}
			return outputJSON(output)
		},
	}
}

// showCmd creates the show command.
func showCmd(env *appEnv) *cli.Command {
	return &cli.Command{
		Name:      "show",
		Usage:     "Show one entry",
		ArgsUsage: "<id>",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "out", Aliases: []string{"o"}, Usage: "Write the image payload to this file"},
		},
		Action: func(c *cli.Context) error {
			if c.NArg() != 1 {
				return outputError(errors.NewInvalidRequest("exactly one entry ID is required"))
			}

			entry, err := env.history.Entry(c.Context, c.Args().First())
			if err != nil {
				return outputError(err)
			}

			if out := c.String("out"); out != "" {
				if !entry.Resolved {
					return outputError(errors.NewNotFound(entry.ID))
				}
				if err := os.WriteFile(out, entry.Bytes, 0600); err != nil {
					return outputError(errors.NewInternal(err))
				}
			}
			return outputJSON(entry)
		},
	}
}

// deleteCmd creates the delete command.
func deleteCmd(env *appEnv) *cli.Command {
	return &cli.Command{
		Name:      "delete",
		Usage:     "Delete one entry and its image payload",
		ArgsUsage: "<id>",
		Action: func(c *cli.Context) error {
			if c.NArg() != 1 {
				return outputError(errors.NewInvalidRequest("exactly one entry ID is required"))
			}

			output, err := env.history.DeleteEntry(c.Context, c.Args().First())
			if err != nil {
				return outputError(err)
			}
			return outputJSON(output)
		},
	}
}

// clearCmd creates the clear command.
func clearCmd(env *appEnv) *cli.Command {
	return &cli.Command{
		Name:  "clear",
		Usage: "Remove every entry and every image payload",
		Flags: []cli.Flag{
			&cli.BoolFlag{Name: "yes", Aliases: []string{"y"}, Usage: "Confirm the clear"},
		},
		Action: func(c *cli.Context) error {
			if !c.Bool("yes") {
				return outputError(errors.NewInvalidRequest("refusing to clear without --yes"))
			}

			output, err := env.history.ClearAll(c.Context)
			if err != nil {
				return outputError(err)
			}
			return outputJSON(output)
		},
	}
}

// clearImagesCmd creates the clear-images command.
func clearImagesCmd(env *appEnv) *cli.Command {
	return &cli.Command{
		Name:  "clear-images",
		Usage: "Remove every image entry and payload, keeping text",
		Flags: []cli.Flag{
			&cli.BoolFlag{Name: "yes", Aliases: []string{"y"}, Usage: "Confirm the clear"},
		},
		Action: func(c *cli.Context) error {
			if !c.Bool("yes") {
				return outputError(errors.NewInvalidRequest("refusing to clear images without --yes"))
			}

			output, err := env.history.ClearImagesOnly(c.Context)
			if err != nil {
				return outputError(err)
			}
			return outputJSON(output)
		},
	}
}

// sweepCmd creates the sweep command.
func sweepCmd(env *appEnv) *cli.Command {
	return &cli.Command{
		Name:  "sweep",
		Usage: "Trim the history, prune orphaned images and enforce the image cap",
		Action: func(c *cli.Context) error {
			output, err := env.history.Reconcile(c.Context)
			if err != nil {
				return outputError(err)
			}
			return outputJSON(output)
		},
	}
}

// watchFlags are shared by watch and serve.
func watchFlags() []cli.Flag {
	return []cli.Flag{
		&cli.BoolFlag{Name: "no-clipboard", Usage: "Do not poll the system clipboard"},
		&cli.BoolFlag{Name: "no-inbox", Usage: "Do not watch the image inbox directory"},
	}
}

// watchCmd creates the watch command.
func watchCmd(env *appEnv) *cli.Command {
	return &cli.Command{
		Name:  "watch",
		Usage: "Capture clipboard text and inbox images until interrupted",
		Flags: watchFlags(),
		Action: func(c *cli.Context) error {
			ctx, stop := signal.NotifyContext(c.Context, syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			sweeper, err := startSweeper(env)
			if err != nil {
				return outputError(errors.NewInternal(err))
			}
			defer stopSweeper(env, sweeper)

			sources, err := buildSources(c, env)
			if err != nil {
				return outputError(err)
			}
			if len(sources) == 0 {
				return outputError(errors.NewInvalidRequest("nothing to watch: no capture source is available"))
			}

			env.log.WithField("sources", len(sources)).Info("watching for clipboard activity")
			if err := capture.RunSources(ctx, capture.NewPipeline(env.history, env.log), sources...); err != nil {
				return outputError(errors.NewInternal(err))
			}
			return nil
		},
	}
}

// serveCmd creates the serve command.
func serveCmd(env *appEnv) *cli.Command {
	flags := []cli.Flag{
		&cli.StringFlag{Name: "bind", Value: "127.0.0.1", Usage: "Address to bind"},
		&cli.IntFlag{Name: "port", Aliases: []string{"p"}, Value: 8787, Usage: "Port to listen on"},
		&cli.BoolFlag{Name: "watch", Usage: "Also capture clipboard text and inbox images"},
	}
	return &cli.Command{
		Name:  "serve",
		Usage: "Serve the history web UI",
		Flags: append(flags, watchFlags()...),
		Action: func(c *cli.Context) error {
			ctx, stop := signal.NotifyContext(c.Context, syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			sweeper, err := startSweeper(env)
			if err != nil {
				return outputError(errors.NewInternal(err))
			}
			defer stopSweeper(env, sweeper)

			if c.Bool("watch") {
				sources, err := buildSources(c, env)
				if err != nil {
					return outputError(err)
				}
				go func() {
					p := capture.NewPipeline(env.history, env.log)
					if err := capture.RunSources(ctx, p, sources...); err != nil {
						env.log.WithError(err).Error("capture sources stopped")
					}
				}()
			}

			go env.history.WatchExternal(ctx, ops.DefaultExternalSyncInterval)

			srv := web.NewServer(env.history, env.metrics, env.log, Version, c.String("bind"), c.Int("port"))
			if err := web.Run(ctx, srv, env.log); err != nil {
				return outputError(errors.NewInternal(err))
			}
			return nil
		},
	}
}

// buildSources creates the capture sources enabled by the watch flags.
func buildSources(c *cli.Context, env *appEnv) ([]capture.Source, error) {
	cfg := env.history.Config()
	var sources []capture.Source
	if !c.Bool("no-clipboard") {
		poller := capture.NewClipboardPoller(cfg.PollInterval(), env.log)
		if poller.Available() {
			sources = append(sources, poller)
		} else {
			env.log.Warn("system clipboard is not supported on this platform, skipping clipboard capture")
		}
	}
	if !c.Bool("no-inbox") {
		w, err := capture.NewDirWatcher(env.inboxDir, cfg, env.log)
		if err != nil {
			return nil, errors.NewInvalidRequest(fmt.Sprintf("cannot watch %s: %v", env.inboxDir, err))
		}
		env.log.WithField("dir", w.Dir()).Info("watching image inbox")
		sources = append(sources, w)
	}
	return sources, nil
}

// startSweeper schedules the periodic reconcile job.
func startSweeper(env *appEnv) (*sweep.Sweeper, error) {
	s, err := sweep.New(env.history, env.history.Config().SweepInterval(), env.log)
	if err != nil {
		return nil, err
	}
	if err := s.Start(); err != nil {
		return nil, err
	}
	return s, nil
}

func stopSweeper(env *appEnv, s *sweep.Sweeper) {
	if err := s.Stop(); err != nil {
		env.log.WithError(err).Warn("sweeper did not stop cleanly")
	}
}

// Helper functions

// outputJSON marshals result to stdout as JSON.
func outputJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// outputError formats error for CLI.
func outputError(err error) error {
	cErr := errors.As(err)
	return cli.Exit(fmt.Sprintf("[%s] %s", cErr.Code, cErr.Message), 1)
}

// stdinHasData returns true if stdin has piped data (not a terminal).
func stdinHasData() bool {
	stat, err := os.Stdin.Stat()
	if err != nil {
		return false
	}
	return (stat.Mode() & os.ModeCharDevice) == 0
}

// readStdin reads at most limit bytes from stdin.
func readStdin(limit int64) (string, error) {
	data, err := io.ReadAll(io.LimitReader(os.Stdin, limit+1))
	if err != nil {
		return "", err
	}
	if int64(len(data)) > limit {
		return "", fmt.Errorf("input exceeds %d bytes", limit)
	}
	return string(data), nil
}
