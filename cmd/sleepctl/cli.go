package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/goccy/go-json"
	"github.com/urfave/cli/v2"

	"github.com/JonMunkholm/sleepimport/internal/admin"
	"github.com/JonMunkholm/sleepimport/internal/analysis"
	"github.com/JonMunkholm/sleepimport/internal/archive"
	"github.com/JonMunkholm/sleepimport/internal/config"
	"github.com/JonMunkholm/sleepimport/internal/core"
	"github.com/JonMunkholm/sleepimport/internal/notify"
	"github.com/JonMunkholm/sleepimport/internal/store"
)

var errConfirmRequired = errors.New("drop is destructive; pass --yes to confirm")

// reportNow is the end of every report window.
var reportNow = time.Now

// newCLIApp creates the CLI application with all commands.
func newCLIApp(cfg *config.Config, out io.Writer) *cli.App {
	app := &cli.App{
		Name:      "sleepctl",
		Usage:     "Import sleep exports and report sleep quantity",
		Version:   Version,
		Writer:    out,
		ErrWriter: out,
		Commands: []*cli.Command{
			importCmd(cfg, out),
			reportCmd(cfg, out),
			schemaCmd(cfg, out),
			dropCmd(cfg, out),
		},
	}
	// Disable default exit error handler to allow proper error return in tests
	app.ExitErrHandler = func(_ *cli.Context, _ error) {}
	return app
}

// openStore prepares the schema and connects.
func openStore(ctx context.Context, cfg *config.Config) (*store.Store, error) {
	storeCfg := cfg.Database.StoreConfig()
	if _, err := store.EnsureSchema(ctx, storeCfg); err != nil {
		return nil, err
	}
	return store.Open(ctx, storeCfg)
}

// importCmd creates the import command.
func importCmd(cfg *config.Config, out io.Writer) *cli.Command {
	return &cli.Command{
		Name:      "import",
		Usage:     "Import one or more export archives",
		ArgsUsage: "<archive>...",
		Flags: []cli.Flag{
			&cli.BoolFlag{Name: "notify", Usage: "Post the outcome to the configured webhook"},
			&cli.BoolFlag{Name: "json", Usage: "Print results as JSON"},
		},
		Action: func(c *cli.Context) error {
			if c.NArg() == 0 {
				return cli.Exit("import: at least one archive path is required", 2)
			}

			st, err := openStore(c.Context, cfg)
			if err != nil {
				return err
			}
			defer st.Close()

			svc := core.NewService(st, core.Options{Timeout: cfg.Upload.Timeout})
			var notifier *notify.Notifier
			if c.Bool("notify") {
				notifier = notify.New(cfg.Notify.NotifierConfig())
			}

			var failed int
			for _, path := range c.Args().Slice() {
				result, err := svc.RunImport(c.Context, archive.FromPath(path))
				if err != nil {
					failed++
					fmt.Fprintf(out, "%s: %s\n", path, core.FormatUserError(err))
					deliver(c.Context, notifier, notify.FailureMessage(err))
					continue
				}
				if c.Bool("json") {
					if err := json.NewEncoder(out).Encode(result); err != nil {
						return err
					}
				} else {
					fmt.Fprintf(out, "%s: %s\n", path, notify.ImportMessage(result))
				}
				deliver(c.Context, notifier, notify.ImportMessage(result))
			}

			if failed > 0 {
				return cli.Exit(fmt.Sprintf("import: %d of %d archives failed", failed, c.NArg()), 1)
			}
			return nil
		},
	}
}

// deliver posts content when notifications were requested. Failures are
// reported but do not fail the command.
func deliver(ctx context.Context, n *notify.Notifier, content string) {
	if n == nil {
		return
	}
	if err := n.Send(ctx, content); err != nil {
		fmt.Fprintf(cli.ErrWriter, "notification failed: %v\n", err)
	}
}

// reportCmd creates the report command.
func reportCmd(cfg *config.Config, out io.Writer) *cli.Command {
	return &cli.Command{
		Name:  "report",
		Usage: "Print the sleep quantity report",
		Flags: []cli.Flag{
			&cli.StringSliceFlag{Name: "period", Aliases: []string{"p"}, Usage: "Window in days (repeatable, default from ANALYSIS_PERIODS)"},
			&cli.StringFlag{Name: "format", Aliases: []string{"f"}, Value: "text", Usage: "Output format: text|markdown|json"},
			&cli.BoolFlag{Name: "send", Usage: "Also post the text report to the webhook"},
		},
		Action: func(c *cli.Context) error {
			periods, err := cfg.Analysis.ReportPeriods()
			if err != nil {
				return err
			}
			if days := c.StringSlice("period"); len(days) > 0 {
				if periods, err = analysis.ParsePeriods(days); err != nil {
					return cli.Exit(fmt.Sprintf("report: %v", err), 2)
				}
			}

			st, err := store.Open(c.Context, cfg.Database.StoreConfig())
			if err != nil {
				return err
			}
			defer st.Close()

			a, err := analysis.Run(c.Context, st, reportNow(), periods)
			if err != nil {
				return err
			}

			switch c.String("format") {
			case "json":
				err = json.NewEncoder(out).Encode(a)
			case "markdown", "md":
				_, err = io.WriteString(out, analysis.Markdown(a))
			case "text":
				_, err = io.WriteString(out, analysis.Report(a))
			default:
				return cli.Exit(fmt.Sprintf("report: unknown format %q", c.String("format")), 2)
			}
			if err != nil {
				return err
			}

			if c.Bool("send") {
				n := notify.New(cfg.Notify.NotifierConfig())
				if !n.Enabled() {
					return cli.Exit("report: --send needs DISCORD_WEBHOOK", 2)
				}
				return n.Send(c.Context, analysis.Report(a))
			}
			return nil
		},
	}
}

// schemaCmd creates the schema command.
func schemaCmd(cfg *config.Config, out io.Writer) *cli.Command {
	return &cli.Command{
		Name:  "schema",
		Usage: "Create the database and table if missing",
		Action: func(c *cli.Context) error {
			report, err := store.EnsureSchema(c.Context, cfg.Database.StoreConfig())
			if err != nil {
				return err
			}
			fmt.Fprintf(out, "database %s: created=%t, table created=%t\n",
				report.Database, report.DatabaseCreated, report.TableCreated)
			return nil
		},
	}
}

// dropCmd creates the drop command.
func dropCmd(cfg *config.Config, out io.Writer) *cli.Command {
	return &cli.Command{
		Name:  "drop",
		Usage: "Drop the sleep database",
		Flags: []cli.Flag{
			&cli.BoolFlag{Name: "yes", Aliases: []string{"y"}, Usage: "Confirm the destructive operation"},
			&cli.BoolFlag{Name: "recreate", Usage: "Create an empty database and table afterwards"},
		},
		Action: func(c *cli.Context) error {
			if !c.Bool("yes") {
				return cli.Exit(errConfirmRequired.Error(), 2)
			}

			res, err := admin.NewReset(cfg.Database.StoreConfig(), cfg.Database.DropTimeout, c.Bool("recreate")).Run(c.Context)
			if err != nil {
				return err
			}

			if res.Dropped {
				fmt.Fprintln(out, "database dropped")
			} else {
				fmt.Fprintln(out, "database did not exist")
			}
			if res.Recreated {
				fmt.Fprintln(out, "empty database created")
			}
			return nil
		},
	}
}
