package main

import (
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var sweepCmd = &cobra.Command{
	Use:   "sweep",
	Short: "Run one stuck-job refund pass",
	Long:  "Scans for jobs stuck in processing past the staleness threshold, refunds their payments and marks them refunded. The serve command runs this continuously; this command is for one-off operator runs.",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		env, err := initApp(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		refunded, err := env.Sweeper.Run(ctx)
		if err != nil {
			return err
		}
		zap.L().Info("sweep pass complete", zap.Int("refunded", refunded))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(sweepCmd)
}
