// Package cli implements the daemon's own bootstrap command tree: run,
// version, doctor, status. This is distinct from the declarative
// runbook client described separately; it only ever talks to the local
// daemon process, never to a runbook.
package cli

import (
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/orchestratord/oj/internal/app"
)

// Execute runs the daemon's bootstrap CLI.
func Execute(version string) error {
	slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: logLevel()})))

	root := &cobra.Command{
		Use:           "ojd",
		Short:         "Background orchestrator daemon for declarative runbooks",
		SilenceUsage:  true,
		SilenceErrors: true,
		CompletionOptions: cobra.CompletionOptions{
			DisableDefaultCmd: true,
		},
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if stateDir, err := cmd.Flags().GetString("state-dir"); err == nil && stateDir != "" {
				app.SetStateDirOverride(stateDir)
			}
			return nil
		},
	}
	root.PersistentFlags().String("state-dir", "", "override the daemon's state directory (defaults to OJ_STATE_DIR / XDG_STATE_HOME)")

	root.AddCommand(newRunCmd(version))
	root.AddCommand(newVersionCmd(version))
	root.AddCommand(newDoctorCmd(version))
	root.AddCommand(newStatusCmd(version))
	root.AddCommand(newHookCmd(version))

	return root.Execute()
}

// logLevel maps OJ_LOG_LEVEL to a slog level, defaulting to info.
func logLevel() slog.Level {
	switch strings.ToLower(os.Getenv("OJ_LOG_LEVEL")) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
