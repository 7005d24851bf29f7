package main

import (
	"encoding/json"
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var runJobID string

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Fulfill a single paid job",
	Long:  "Runs the fulfillment pipeline synchronously for one job, for operators resolving a lost payment webhook or replaying a failed job.",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		env, err := initApp(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		report, err := env.Orchestrator.Fulfill(ctx, runJobID)
		if err != nil {
			return eris.Wrapf(err, "fulfill job %s", runJobID)
		}

		zap.L().Info("fulfillment complete",
			zap.String("job_id", runJobID),
			zap.String("report_id", report.ID),
			zap.Int("court_records", len(report.Payload.CourtRecords)),
			zap.Int("web_mentions", len(report.Payload.WebMentions)),
		)

		// Print report JSON to stdout
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(report)
	},
}

func init() {
	runCmd.Flags().StringVar(&runJobID, "job", "", "job id (required)")
	_ = runCmd.MarkFlagRequired("job")
	rootCmd.AddCommand(runCmd)
}
