package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/seniorcare/opscentre/internal/config"
	"github.com/seniorcare/opscentre/internal/logging"
	"github.com/seniorcare/opscentre/internal/remote"
	"github.com/seniorcare/opscentre/internal/schema"
	"github.com/seniorcare/opscentre/internal/store"
	"github.com/seniorcare/opscentre/internal/sync"
	"github.com/seniorcare/opscentre/internal/ui"
)

// app carries the state shared by every command of one invocation.
type app struct {
	v      *viper.Viper
	cfg    *config.Config
	logger *slog.Logger
	logs   io.Closer
	store  *store.Store

	stdin       io.Reader
	interactive bool
	now         func() time.Time
}

func newApp(stdin io.Reader) *app {
	f, isFile := stdin.(*os.File)
	return &app{
		v:           config.NewViper(),
		logger:      logging.Discard(),
		stdin:       stdin,
		interactive: isFile && ui.IsTerminal(f) && ui.IsTerminal(os.Stdout),
		now:         time.Now,
	}
}

func newRootCmd(a *app) *cobra.Command {
	root := &cobra.Command{
		Use:   "opsctl",
		Short: "SeniorCare OpsCentre from the terminal",
		Long: `opsctl manages the OpsCentre task board, notes and document library.

Data lives in a local SQLite store (~/.opscentre/opscentre.db) and syncs
with the same secret GitHub Gist the web app uses, so edits made here show
up in the browser and the other way round.

Configuration sources (highest precedence first):
  1. Command line flags
  2. OPSCENTRE_* environment variables (and .env files)
  3. ~/.opscentre/config.yaml
  4. Built-in defaults`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.setup(cmd)
		},
	}

	flags := root.PersistentFlags()
	flags.String("config", "", "config file (default <data-dir>/config.yaml)")
	flags.String("data-dir", "", "data directory (default ~/.opscentre)")
	flags.String("log-level", "", "log level: debug, info, warn or error")
	flags.String("user", "", "name recorded in task history")
	_ = a.v.BindPFlag(config.KeyConfig, flags.Lookup("config"))
	_ = a.v.BindPFlag(config.KeyDataDir, flags.Lookup("data-dir"))
	_ = a.v.BindPFlag(config.KeyLogLevel, flags.Lookup("log-level"))
	_ = a.v.BindPFlag(config.KeyUser, flags.Lookup("user"))

	root.AddGroup(
		&cobra.Group{ID: "data", Title: "Data:"},
		&cobra.Group{ID: "sync", Title: "Sync:"},
		&cobra.Group{ID: "setup", Title: "Setup:"},
	)
	root.AddCommand(
		newTaskCmd(a),
		newNoteCmd(a),
		newDocCmd(a),
		newExportCmd(a),
		newImportCmd(a),
		newSyncCmd(a),
		newDaemonCmd(a),
		newConfigCmd(a),
	)
	return root
}

// setup loads configuration and builds the logger.
func (a *app) setup(cmd *cobra.Command) error {
	cfg, err := config.Load(a.v)
	if err != nil {
		return err
	}
	a.cfg = cfg

	// Only the daemon reports routine activity on stderr.
	stderrLevel := "warn"
	if cmd.Name() == "daemon" || cfg.Log.Level == "debug" {
		stderrLevel = ""
	}
	logger, closer, err := logging.New(logging.Options{
		Level:       cfg.Log.Level,
		File:        cfg.Log.File,
		MaxSizeMB:   cfg.Log.MaxSizeMB,
		Stderr:      cmd.ErrOrStderr(),
		StderrLevel: stderrLevel,
	})
	if err != nil {
		return err
	}
	a.logger = logger
	a.logs = closer
	slog.SetDefault(logger)
	return nil
}

// openStore opens the local store on first use.
func (a *app) openStore(ctx context.Context) (*store.Store, error) {
	if a.store != nil {
		return a.store, nil
	}
	st, err := store.Open(ctx, a.cfg.DatabasePath(), store.Options{
		Logger: a.logger,
		User:   a.cfg.User,
		Now:    a.now,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open local store: %w", err)
	}
	a.store = st
	return st, nil
}

// reconciler wires the remote clients to st.
func (a *app) reconciler(st *store.Store) *sync.Reconciler {
	timeout := a.cfg.RequestTimeout
	gist := remote.NewGistStore(remote.GistConfig{
		APIURL:      a.cfg.Remote.APIURL,
		Filename:    a.cfg.Remote.Filename,
		Description: a.cfg.Remote.Description,
		Timeout:     timeout,
		Logger:      a.logger,
	})
	script := remote.NewScriptStore(nil, timeout, a.logger)

	return sync.New(sync.Config{
		Store: st,
		Remotes: map[schema.Provider]remote.Store{
			schema.ProviderGitHub: gist,
			schema.ProviderScript: script,
		},
		Credential: a.cfg.Remote.Token,
		LockDir:    a.cfg.DataDir,
		Logger:     a.logger,
		Now:        a.now,
	})
}

func (a *app) close() error {
	var errs []error
	if a.store != nil {
		errs = append(errs, a.store.Close())
		a.store = nil
	}
	if a.logs != nil {
		errs = append(errs, a.logs.Close())
		a.logs = nil
	}
	return errors.Join(errs...)
}

// shortID abbreviates an id for display. Any unique prefix is accepted
// back on input.
func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
