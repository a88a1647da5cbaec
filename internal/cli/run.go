package cli

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/orchestratord/oj/internal/app"
	"github.com/orchestratord/oj/internal/clock"
	"github.com/orchestratord/oj/internal/core"
	"github.com/orchestratord/oj/internal/effect"
	"github.com/orchestratord/oj/internal/ipc"
	"github.com/orchestratord/oj/internal/loop"
	"github.com/orchestratord/oj/internal/reconcile"
	"github.com/orchestratord/oj/internal/scheduler"
	"github.com/orchestratord/oj/internal/wal"
	"github.com/orchestratord/oj/internal/watcher"
)

func newRunCmd(version string) *cobra.Command {
	var dryRun bool
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Start the daemon in the foreground",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDaemon(version, dryRun)
		},
	}
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "back sessions with local PTYs instead of tmux (for the demo harness)")
	return cmd
}

// runDaemon performs the startup handshake: resolve config, acquire the
// pid lock, replay the WAL, bind the IPC socket, start reconciliation in
// the background, then print READY and hand control to the event loop.
func runDaemon(version string, dryRun bool) error {
	cfg, err := app.LoadConfig()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	if err := app.EnsureStateDir(cfg.StateDir); err != nil {
		return fmt.Errorf("creating state dir: %w", err)
	}
	if err := app.EnsureDefaultConfigFile(cfg.StateDir); err != nil {
		return fmt.Errorf("writing default config: %w", err)
	}

	if err := app.AppendLogLine(cfg.LogPath(), app.StartMarker("oj", os.Getpid())); err != nil {
		return fmt.Errorf("writing start marker: %w", err)
	}
	logFile, err := os.OpenFile(cfg.LogPath(), os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("opening daemon log: %w", err)
	}
	defer logFile.Close()
	log := slog.New(slog.NewTextHandler(logFile, nil))

	pidLock, err := wal.AcquirePidLock(cfg.PidPath())
	if err != nil {
		return fmt.Errorf("acquiring pid lock: %w", err)
	}
	defer pidLock.Release()

	if err := app.WriteVersionFile(cfg.VersionPath(), version); err != nil {
		return fmt.Errorf("writing version file: %w", err)
	}

	log.Info("loading snapshot and replaying wal")
	initial, err := wal.Replay(cfg.StateDir)
	if err != nil {
		return fmt.Errorf("replaying wal: %w", err)
	}

	w, err := wal.Open(cfg.StateDir)
	if err != nil {
		return fmt.Errorf("opening wal: %w", err)
	}
	defer w.Close()

	clk := clock.System{}
	ids := clock.UUIDGen{}
	sched := scheduler.New(clk)
	watchers := watcher.NewSupervisor()

	var sessionAdapter effect.SessionAdapter = effect.TmuxSessionAdapter{}
	if dryRun {
		sessionAdapter = effect.NewPtySessionAdapter()
	}
	sessionAdapter = effect.NewCachingSessionAdapter(sessionAdapter)

	sockPath := filepath.Join(cfg.StateDir, ipc.SocketName)
	adapters := effect.Trace(effect.Adapters{
		Session: sessionAdapter,
		Agent: &effect.CLIAgentAdapter{
			Session:  sessionAdapter,
			StateDir: cfg.StateDir,
			SockPath: sockPath,
		},
		Notify:    &effect.DesktopNotifyAdapter{},
		Shell:     &effect.BashShellAdapter{LogDir: filepath.Join(cfg.StateDir, "logs")},
		Queue:     &effect.ShellQueueAdapter{},
		Workspace: &effect.GitWorkspaceAdapter{Root: filepath.Join(cfg.StateDir, "workspaces")},
	}, log)

	l := loop.New(cfg.StateDir, initial, w, sched, adapters, core.Deps{IDs: ids, Clock: clk}, watchers, log)

	listener := ipc.New(cfg.StateDir, version, log)
	app.RegisterHandlers(listener, l, ids, clk)
	app.RegisterOpsHandlers(listener, l, version)
	app.RegisterSessionHandlers(listener, sessionAdapter)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go func() {
		if err := listener.Serve(ctx); err != nil {
			log.Error("ipc listener stopped", "error", err)
		}
	}()

	// Reconciliation runs in the background once the listener is already
	// accepting, so clients never block behind it.
	go reconcile.Run(ctx, reconcile.Deps{
		Engine:    l,
		Session:   sessionAdapter,
		Watchers:  watchers,
		Scheduler: sched,
		Clock:     clk,
		StateDir:  cfg.StateDir,
		Log:       log,
	})

	fmt.Println("READY")
	log.Info("daemon ready", "version", version, "state_dir", cfg.StateDir)

	return l.Run(ctx)
}
