package cli

import (
	"github.com/spf13/cobra"
)

var producerCmd = &cobra.Command{
	Use:   "producer",
	Short: "Run the ingest API and outbox dispatcher",
	RunE: func(cmd *cobra.Command, args []string) error {
		return getApp().RunProducer(cmd.Context())
	},
}
