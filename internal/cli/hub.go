package cli

import (
	"github.com/spf13/cobra"
)

var hubCmd = &cobra.Command{
	Use:   "hub",
	Short: "Run the rate store, snapshot API, and WebSocket fanout",
	RunE: func(cmd *cobra.Command, args []string) error {
		return getApp().RunHub(cmd.Context())
	},
}
