package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/xavierjflanagan/Guardian-sub001/internal/config"
	"github.com/xavierjflanagan/Guardian-sub001/internal/schema"
)

var cfg *config.Config

var rootCmd = &cobra.Command{
	Use:   "guardian",
	Short: "Medical document processing pipeline",
	Long:  "Detects clinical entities in uploaded medical documents via vision completion calls, translates them into audit records, and resolves medical code candidates against vector catalogs.",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		c, err := config.Load()
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		cfg = c

		if err := config.InitLogger(cfg.Log); err != nil {
			return fmt.Errorf("init logger: %w", err)
		}

		// A wrong classification table is a data corruption hazard, so it
		// aborts startup rather than surfacing per document.
		schema.MustSelfCheck()
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		_ = zap.L().Sync()
	},
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
