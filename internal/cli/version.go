package cli

import (
	"github.com/spf13/cobra"

	"github.com/orchestratord/oj/internal/output"
)

func newVersionCmd(version string) *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the daemon version",
		RunE: func(cmd *cobra.Command, args []string) error {
			return output.PrintSuccess(map[string]string{"version": version})
		},
	}
}
