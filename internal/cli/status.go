package cli

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/orchestratord/oj/internal/app"
	"github.com/orchestratord/oj/internal/ipc"
	"github.com/orchestratord/oj/internal/output"
)

func newStatusCmd(version string) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Query the running daemon's per-namespace status",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := app.LoadConfig()
			if err != nil {
				return output.PrintError(err)
			}
			client, err := ipc.Dial(cmd.Context(), cfg.StateDir, version)
			if err != nil {
				return output.PrintError(err)
			}
			defer client.Close()

			var result any
			ctx, cancel := context.WithTimeout(cmd.Context(), cfg.IPCTimeout)
			defer cancel()
			if err := client.Call(ctx, "status", nil, &result); err != nil {
				return output.PrintError(err)
			}
			return output.PrintSuccess(result)
		},
	}
}
