package cli

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/chhz0/tasklist/core"
	"github.com/chhz0/tasklist/export"
	"github.com/chhz0/tasklist/server"
	"github.com/chhz0/tasklist/tui"
	"github.com/chhz0/tasklist/types"
)

func (a *app) remindersCmd() *cobra.Command {
	var at string
	cmd := &cobra.Command{
		Use:   "reminders",
		Short: "Show incomplete tasks due within the next 24 hours",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			now := time.Now()
			if at != "" {
				t, err := time.Parse(time.RFC3339, at)
				if err != nil {
					return fmt.Errorf("invalid --at %q: want RFC3339", at)
				}
				now = t
			}
			scanner := core.NewReminderScanner(a.store, nil,
				core.WithClock(func() time.Time { return now }),
				core.WithReminderLogger(a.logger),
			)
			reminders, err := scanner.Scan(cmd.Context())
			if err != nil {
				return err
			}
			if len(reminders) == 0 {
				fmt.Fprintln(a.stdout, "Nothing due soon.")
				return nil
			}
			for _, r := range reminders {
				fmt.Fprintln(a.stdout, r.String())
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&at, "at", "", "evaluate reminders at this instant (RFC3339) instead of now")
	return cmd
}

func (a *app) exportCmd() *cobra.Command {
	var format, output string
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export the task list as json, csv or pdf",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if output == "" || output == "-" {
				return export.NewExporter(a.store).Export(cmd.Context(), format, a.stdout)
			}
			if err := a.exportFile(cmd.Context(), format, output); err != nil {
				return err
			}
			fmt.Fprintf(a.stderr, "Exported %s to %s.\n", format, output)
			return nil
		},
	}
	cmd.Flags().StringVarP(&format, "format", "f", "json", fmt.Sprintf("output format %v", export.Formats))
	cmd.Flags().StringVarP(&output, "output", "o", "", "output file (default stdout)")
	return cmd
}

// exportFile 写入文件，关闭失败同样返回错误
func (a *app) exportFile(ctx context.Context, format, path string) (err error) {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := f.Close(); err == nil {
			err = cerr
		}
	}()
	return export.NewExporter(a.store).Export(ctx, format, f)
}

func (a *app) serveCmd() *cobra.Command {
	var addr string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the HTTP API and log due-soon reminders",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if addr == "" {
				addr = a.cfg.Server.Addr
			}
			ctx := cmd.Context()
			scanner := core.NewReminderScanner(a.store, a.logReminders,
				core.WithInterval(a.cfg.Reminders.Interval),
				core.WithChanges(a.subscribe(ctx)),
				core.WithReminderLogger(a.logger),
			)
			srv, err := server.NewServer(server.Config{
				HTTPAddr: addr,
				Store:    a.store,
				Scanner:  scanner,
				Stats:    a.stats,
				Logger:   a.logger,
			})
			if err != nil {
				return err
			}
			return srv.Start(ctx)
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "listen address (default from config)")
	return cmd
}

func (a *app) logReminders(_ context.Context, reminders []types.Reminder) {
	for _, r := range reminders {
		a.logger.Info(r.String(), "id", r.ID, "due", r.DueDate)
	}
}

func (a *app) tuiCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "tui",
		Short: "Open the interactive task view",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			m := tui.New(a.store,
				tui.WithReminderInterval(a.cfg.Reminders.Interval),
				tui.WithChanges(a.subscribe(ctx)),
			)
			return tui.Run(ctx, m)
		},
	}
}

func (a *app) configCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "config",
		Short: "Print the effective configuration as TOML",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := a.loadConfig()
			if err != nil {
				return err
			}
			if cfg.File != "" {
				fmt.Fprintf(a.stdout, "# loaded from %s\n", cfg.File)
			}
			return cfg.Write(a.stdout)
		},
	}
}

func (a *app) versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(a.stdout, "tasklist %s\n", Version)
		},
	}
}
