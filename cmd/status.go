package main

import (
	"encoding/json"

	"github.com/spf13/cobra"

	"github.com/xavierjflanagan/Guardian-sub001/internal/model"
	"github.com/xavierjflanagan/Guardian-sub001/internal/store"
)

var statusPatientID string

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Summarize sessions, pending enrichment, and queue depths",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		env, err := initPipeline(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		summary, err := env.Store.Status(ctx)
		if err != nil {
			return err
		}

		out := struct {
			*store.StatusSummary
			RecentFailures []model.ProcessingSession `json:"recent_failures,omitempty"`
		}{StatusSummary: summary}

		failures, err := env.Store.ListSessions(ctx, store.SessionFilter{
			Status:    model.SessionFailed,
			PatientID: statusPatientID,
			Limit:     10,
		})
		if err == nil {
			out.RecentFailures = failures
		}

		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(out)
	},
}

func init() {
	statusCmd.Flags().StringVar(&statusPatientID, "patient", "", "only list failures for this patient")
	rootCmd.AddCommand(statusCmd)
}
