package main

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/xavierjflanagan/Guardian-sub001/internal/pipeline"
)

var (
	processPatientID string
	processFilePath  string
	processMimeType  string
)

var processCmd = &cobra.Command{
	Use:   "process <shell-file-id> [shell-file-id...]",
	Short: "Run entity detection over uploaded documents",
	Long:  "Runs Pass 1 over each document: loads its OCR artifact, calls the vision model, translates detected entities into audit records, and persists the results. With --file the rendered image is sent alongside the OCR text; without it the document is processed OCR-only.",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		env, err := initPipeline(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		var fileData []byte
		mime := processMimeType
		if processFilePath != "" {
			if len(args) > 1 {
				return eris.New("--file applies to a single document")
			}
			fileData, err = os.ReadFile(processFilePath)
			if err != nil {
				return eris.Wrap(err, "read document file")
			}
			if mime == "" {
				mime = mimeFromPath(processFilePath)
			}
		}

		docs := make([]pipeline.Document, 0, len(args))
		for _, id := range args {
			docs = append(docs, pipeline.Document{
				ShellFileID: id,
				PatientID:   processPatientID,
				FileData:    fileData,
				MimeType:    mime,
			})
		}

		outcomes := env.Pass1.ProcessBatch(ctx, docs)

		type docSummary struct {
			ShellFileID string  `json:"shell_file_id"`
			SessionID   string  `json:"session_id,omitempty"`
			Success     bool    `json:"success"`
			Entities    int     `json:"entities,omitempty"`
			CostUSD     float64 `json:"cost_usd,omitempty"`
			Error       string  `json:"error,omitempty"`
		}
		summaries := make([]docSummary, 0, len(outcomes))
		failed := 0
		for _, o := range outcomes {
			s := docSummary{
				ShellFileID: o.Document.ShellFileID,
				SessionID:   o.SessionID,
				Success:     !o.Failed(),
			}
			if o.Result != nil {
				s.Entities = len(o.Result.Records)
				s.CostUSD = o.Result.CostEstimateUSD
				s.Error = o.Result.Error
			}
			if o.Err != nil {
				s.Error = o.Err.Error()
			}
			if o.Failed() {
				failed++
			}
			summaries = append(summaries, s)
		}

		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		if err := enc.Encode(summaries); err != nil {
			return eris.Wrap(err, "encode summary")
		}
		if failed > 0 {
			return eris.Errorf("%d of %d documents failed", failed, len(outcomes))
		}
		return nil
	},
}

func mimeFromPath(path string) string {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".jpg", ".jpeg":
		return "image/jpeg"
	case ".png":
		return "image/png"
	case ".gif":
		return "image/gif"
	case ".webp":
		return "image/webp"
	case ".pdf":
		return "application/pdf"
	default:
		return ""
	}
}

func init() {
	processCmd.Flags().StringVar(&processPatientID, "patient", "", "patient id owning the documents (required)")
	processCmd.Flags().StringVar(&processFilePath, "file", "", "rendered document image for dual-input mode")
	processCmd.Flags().StringVar(&processMimeType, "mime", "", "image mime type (inferred from --file extension if empty)")
	_ = processCmd.MarkFlagRequired("patient")
	rootCmd.AddCommand(processCmd)
}
