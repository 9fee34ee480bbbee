package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/seniorcare/opscentre/internal/config"
	"github.com/seniorcare/opscentre/internal/daemon"
	"github.com/seniorcare/opscentre/internal/dashboard"
	"github.com/seniorcare/opscentre/internal/sync"
	"github.com/seniorcare/opscentre/internal/ui"
)

func newDaemonCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "daemon",
		GroupID: "sync",
		Short:   "Run background sync with a local status server (foreground)",
		Long: `Run the sync scheduler in the foreground.

The daemon pulls newer remote data at startup and on every poll interval.
It never uploads on its own; use POST /sync/push or 'opsctl sync push'.
Editing config.yaml changes the poll interval without a restart.

Status server endpoints:
  GET  /health      liveness
  GET  /status      statistics and the last sync result
  POST /sync/push   manual upload ({"force": true} to upload on a tie)
  POST /sync/pull   manual download
  GET  /ws          WebSocket feed of sync_complete and stats messages`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			f := cmd.Flags()
			port, _ := f.GetInt("port")
			host, _ := f.GetString("host")
			noServer, _ := f.GetBool("no-server")

			ctx := cmd.Context()
			st, err := a.openStore(ctx)
			if err != nil {
				return err
			}

			var (
				server  *dashboard.Server
				handler *dashboard.Handler
			)
			schedCfg := daemon.DefaultConfig()
			schedCfg.PollInterval = a.cfg.PollInterval
			schedCfg.Logger = a.logger
			schedCfg.ConfigFile = a.cfg.ConfigPath()
			schedCfg.Reload = func() (time.Duration, error) {
				cfg, err := config.Load(a.v)
				if err != nil {
					return 0, err
				}
				return cfg.PollInterval, nil
			}
			schedCfg.OnResult = func(res sync.Result) {
				if handler != nil {
					handler.OnResult(res)
				}
			}

			sched, err := daemon.New(a.reconciler(st), schedCfg)
			if err != nil {
				return err
			}

			if !noServer {
				server = dashboard.NewServer(&dashboard.Config{
					Host:   host,
					Port:   port,
					Syncer: sched,
					Stats:  st,
					Logger: a.logger,
				})
				handler = dashboard.NewHandler(server, a.logger)
				if err := server.Start(); err != nil {
					return err
				}
				defer server.Stop()
			}

			w := cmd.OutOrStdout()
			fmt.Fprintf(w, "%s Starting sync daemon...\n", ui.RenderAccent("⇅"))
			fmt.Fprintf(w, "   Store: %s\n", a.cfg.DatabasePath())
			fmt.Fprintf(w, "   Poll:  every %s\n", a.cfg.PollInterval)
			if server != nil {
				fmt.Fprintf(w, "   Status: http://%s/status\n", server.GetAddr())
				fmt.Fprintf(w, "   WebSocket: ws://%s/ws\n", server.GetAddr())
			}
			fmt.Fprintf(w, "\nPress Ctrl+C to stop\n\n")

			// Blocks until the signal context is cancelled.
			if err := sched.Start(ctx); err != nil {
				return fmt.Errorf("daemon stopped with error: %w", err)
			}
			fmt.Fprintln(w, "Daemon stopped")
			return nil
		},
	}
	f := cmd.Flags()
	f.IntP("port", "p", 8080, "status server port")
	f.String("host", "127.0.0.1", "status server bind address")
	f.Bool("no-server", false, "run without the status server")
	return cmd
}
