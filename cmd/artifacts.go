package main

import (
	"encoding/json"
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/xavierjflanagan/Guardian-sub001/internal/model"
)

var artifactsCmd = &cobra.Command{
	Use:   "artifacts",
	Short: "Inspect stored OCR artifacts",
}

var artifactsShowCmd = &cobra.Command{
	Use:   "show <document-id>",
	Short: "Load an artifact, verify its checksum, and print a summary",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		env, err := initPipeline(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		result, err := env.Artifacts.Load(ctx, args[0])
		if err != nil {
			return err
		}

		type pageSummary struct {
			PageNumber int `json:"page_number"`
			TextLen    int `json:"text_len"`
			Words      int `json:"words"`
		}
		summary := struct {
			DocumentID        string        `json:"document_id"`
			Provider          string        `json:"provider"`
			OverallConfidence float64       `json:"overall_confidence"`
			Pages             []pageSummary `json:"pages"`
		}{
			DocumentID:        args[0],
			Provider:          result.Provider,
			OverallConfidence: result.OverallConfidence,
		}
		for _, p := range result.Pages {
			summary.Pages = append(summary.Pages, pageSummary{
				PageNumber: p.PageNumber,
				TextLen:    len(p.Text),
				Words:      len(p.Words),
			})
		}

		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(summary)
	},
}

var artifactsRawCmd = &cobra.Command{
	Use:   "raw <document-id>",
	Short: "Print the archived raw OCR provider response",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		env, err := initPipeline(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		raw, err := env.Artifacts.LoadRawArchive(ctx, artifactsPatientID, args[0])
		if err != nil {
			return err
		}
		_, err = cmd.OutOrStdout().Write(raw)
		return err
	},
}

var artifactsImportCmd = &cobra.Command{
	Use:   "import <document-id> <ocr-json-file>",
	Short: "Persist a provider OCR output as a document's artifact",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		env, err := initPipeline(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		data, err := os.ReadFile(args[1])
		if err != nil {
			return eris.Wrap(err, "read ocr file")
		}
		var result model.OCRResult
		if err := json.Unmarshal(data, &result); err != nil {
			return eris.Wrap(err, "parse ocr file")
		}

		manifest, err := env.Artifacts.Persist(ctx, artifactsPatientID, args[0], &result)
		if err != nil {
			return err
		}

		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(manifest)
	},
}

var artifactsPatientID string

func init() {
	artifactsImportCmd.Flags().StringVar(&artifactsPatientID, "patient", "", "patient id owning the document (required)")
	_ = artifactsImportCmd.MarkFlagRequired("patient")
	artifactsRawCmd.Flags().StringVar(&artifactsPatientID, "patient", "", "patient id owning the document (required)")
	_ = artifactsRawCmd.MarkFlagRequired("patient")
	artifactsCmd.AddCommand(artifactsShowCmd)
	artifactsCmd.AddCommand(artifactsImportCmd)
	artifactsCmd.AddCommand(artifactsRawCmd)
	rootCmd.AddCommand(artifactsCmd)
}
