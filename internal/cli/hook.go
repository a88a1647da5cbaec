package cli

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/orchestratord/oj/internal/event"
	"github.com/orchestratord/oj/internal/ipc"
)

// newHookCmd is the back-channel entrypoint the agent CLI's hook scripts
// invoke (see the settings.json installed per agent): it dials the
// daemon socket it was handed and injects the matching agent event, so
// idle/prompt detection lands instantly instead of waiting for the
// watcher's log-tail fallback.
func newHookCmd(version string) *cobra.Command {
	hook := &cobra.Command{
		Use:    "hook",
		Short:  "Back-channel commands invoked by agent CLI hooks",
		Hidden: true,
	}
	hook.AddCommand(newHookNotifyCmd(version))
	return hook
}

func newHookNotifyCmd(version string) *cobra.Command {
	var sockPath, agentID, eventName string
	cmd := &cobra.Command{
		Use:   "notify",
		Short: "Deliver an instant agent lifecycle notification to the daemon",
		RunE: func(cmd *cobra.Command, args []string) error {
			var kind event.Kind
			switch eventName {
			case "idle":
				kind = event.KindAgentIdle
			case "prompt":
				kind = event.KindAgentPrompt
			default:
				return fmt.Errorf("unknown hook event %q (want idle or prompt)", eventName)
			}

			ctx, cancel := context.WithTimeout(cmd.Context(), 2*time.Second)
			defer cancel()
			client, err := ipc.DialPath(ctx, sockPath, version)
			if err != nil {
				return err
			}
			defer client.Close()

			return client.Call(ctx, "event.emit", map[string]any{
				"kind": string(kind),
				"data": map[string]string{"agent_id": agentID},
			}, nil)
		},
	}
	cmd.Flags().StringVar(&sockPath, "socket", "", "path to the daemon socket")
	cmd.Flags().StringVar(&agentID, "agent", "", "agent id the hook fired for")
	cmd.Flags().StringVar(&eventName, "event", "", "hook event: idle or prompt")
	_ = cmd.MarkFlagRequired("socket")
	_ = cmd.MarkFlagRequired("agent")
	_ = cmd.MarkFlagRequired("event")
	return cmd
}
