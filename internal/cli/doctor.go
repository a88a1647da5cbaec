package cli

import (
	"context"
	"time"

	"github.com/spf13/cobra"

	"github.com/orchestratord/oj/internal/app"
	"github.com/orchestratord/oj/internal/ipc"
	"github.com/orchestratord/oj/internal/output"
	"github.com/orchestratord/oj/internal/wal"
)

type doctorReport struct {
	StateDir     string   `json:"state_dir"`
	WALReadable  bool     `json:"wal_readable"`
	WALError     string   `json:"wal_error,omitempty"`
	DaemonUp     bool     `json:"daemon_up"`
	DaemonError  string   `json:"daemon_error,omitempty"`
	StartupErrs  []string `json:"recent_startup_errors,omitempty"`
}

func newDoctorCmd(version string) *cobra.Command {
	return &cobra.Command{
		Use:   "doctor",
		Short: "Check state directory, WAL integrity, and daemon reachability",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := app.LoadConfig()
			if err != nil {
				return output.PrintError(err)
			}

			report := doctorReport{StateDir: cfg.StateDir}

			if _, err := wal.Replay(cfg.StateDir); err != nil {
				report.WALError = err.Error()
			} else {
				report.WALReadable = true
			}

			if errs, err := app.StartupErrors(cfg.LogPath()); err == nil {
				report.StartupErrs = errs
			}

			ctx, cancel := context.WithTimeout(cmd.Context(), 2*time.Second)
			defer cancel()
			client, dialErr := ipc.Dial(ctx, cfg.StateDir, version)
			if dialErr != nil {
				report.DaemonError = dialErr.Error()
			} else {
				defer client.Close()
				var pong map[string]string
				if callErr := client.Call(ctx, "ping", nil, &pong); callErr != nil {
					report.DaemonError = callErr.Error()
				} else {
					report.DaemonUp = true
				}
			}

			return output.PrintSuccess(report)
		},
	}
}
