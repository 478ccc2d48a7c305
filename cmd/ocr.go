package main

import (
	"encoding/json"
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/xavierjflanagan/Guardian-sub001/internal/ocr"
)

var (
	ocrPatientID string
	ocrMimeType  string
)

var ocrCmd = &cobra.Command{
	Use:   "ocr <document-id> <file>",
	Short: "Run OCR on a document and persist the result as its artifact",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		extractor, err := ocr.NewExtractor(cfg.OCR)
		if err != nil {
			return err
		}

		env, err := initPipeline(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		data, err := os.ReadFile(args[1])
		if err != nil {
			return eris.Wrap(err, "read document file")
		}

		mime := ocrMimeType
		if mime == "" {
			mime = mimeFromPath(args[1])
		}

		result, raw, err := extractor.Extract(ctx, data, mime)
		if err != nil {
			return err
		}
		zap.L().Info("ocr extraction complete",
			zap.String("document_id", args[0]),
			zap.String("provider", result.Provider),
			zap.Int("pages", len(result.Pages)),
		)

		manifest, err := env.Artifacts.Persist(ctx, ocrPatientID, args[0], result)
		if err != nil {
			return err
		}

		// The raw provider response is an audit aid; losing it must not
		// fail a run whose artifact already persisted.
		if len(raw) > 0 {
			if err := env.Artifacts.PersistRawArchive(ctx, ocrPatientID, args[0], raw); err != nil {
				zap.L().Warn("raw archive upload failed",
					zap.String("document_id", args[0]),
					zap.Error(err),
				)
			}
		}

		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(manifest)
	},
}

func init() {
	ocrCmd.Flags().StringVar(&ocrPatientID, "patient", "", "patient id owning the document (required)")
	ocrCmd.Flags().StringVar(&ocrMimeType, "mime", "", "document mime type (default inferred from extension)")
	_ = ocrCmd.MarkFlagRequired("patient")
	rootCmd.AddCommand(ocrCmd)
}
