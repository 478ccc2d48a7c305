package main

import (
	"bufio"
	"bytes"
	"encoding/json"
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/xavierjflanagan/Guardian-sub001/internal/model"
)

var codesCmd = &cobra.Command{
	Use:   "codes",
	Short: "Medical code resolution",
}

var codesResolveCmd = &cobra.Command{
	Use:   "resolve <session-id> [session-id...]",
	Short: "Resolve code candidates for a session's pending entities",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		env, err := initPipeline(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")

		var firstErr error
		for _, sessionID := range args {
			summary, err := env.Pass15.ProcessSession(ctx, sessionID)
			if err != nil && firstErr == nil {
				firstErr = err
			}
			if summary != nil {
				if encErr := enc.Encode(summary); encErr != nil {
					return eris.Wrap(encErr, "encode summary")
				}
			}
		}
		return firstErr
	},
}

var codesSelfTestCmd = &cobra.Command{
	Use:   "selftest",
	Short: "Verify both code catalogs answer similarity queries",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		env, err := initPipeline(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		if err := env.Searcher.SelfTest(ctx, cfg.Embedding.Dimensions); err != nil {
			return err
		}
		cmd.Println("both catalogs ok")
		return nil
	},
}

var codesSearchCmd = &cobra.Command{
	Use:   "search <text>",
	Short: "Ad-hoc candidate search for a text fragment",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		env, err := initPipeline(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		rec := model.EntityAuditRecord{
			EntityID:     "adhoc",
			OriginalText: args[0],
			Category:     model.CategoryClinicalEvent,
			Subtype:      model.EntitySubtype(codesSearchSubtype),
		}
		results := env.Pass15.ResolveAdHoc(ctx, rec)

		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(results)
	},
}

var codesImportCmd = &cobra.Command{
	Use:   "import <catalog-jsonl-file>",
	Short: "Bulk-load exported catalog rows into a code catalog",
	Long: `Reads one catalog entry per line (JSON) and upserts them into the
universal catalog, or the regional catalog with --regional. Entries must
carry embeddings computed with the configured embedding model.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		env, err := initPipeline(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		f, err := os.Open(args[0])
		if err != nil {
			return eris.Wrap(err, "open catalog file")
		}
		defer f.Close()

		var entries []model.CatalogEntry
		scanner := bufio.NewScanner(f)
		scanner.Buffer(make([]byte, 0, 1024*1024), 16*1024*1024)
		line := 0
		for scanner.Scan() {
			line++
			raw := bytes.TrimSpace(scanner.Bytes())
			if len(raw) == 0 {
				continue
			}
			var entry model.CatalogEntry
			if err := json.Unmarshal(raw, &entry); err != nil {
				return eris.Wrapf(err, "parse catalog line %d", line)
			}
			entries = append(entries, entry)
		}
		if err := scanner.Err(); err != nil {
			return eris.Wrap(err, "read catalog file")
		}

		n, err := env.Store.ImportCatalog(ctx, codesImportRegional, entries)
		if err != nil {
			return err
		}
		catalog := "universal"
		if codesImportRegional {
			catalog = "regional"
		}
		cmd.Printf("imported %d entries into the %s catalog\n", n, catalog)
		return nil
	},
}

var (
	codesSearchSubtype  string
	codesImportRegional bool
)

func init() {
	codesSearchCmd.Flags().StringVar(&codesSearchSubtype, "subtype", "medication", "entity subtype steering text selection and code-system preferences")
	codesCmd.AddCommand(codesResolveCmd)
	codesCmd.AddCommand(codesSelfTestCmd)
	codesImportCmd.Flags().BoolVar(&codesImportRegional, "regional", false, "load into the regional catalog")
	codesCmd.AddCommand(codesSearchCmd)
	codesCmd.AddCommand(codesImportCmd)
	rootCmd.AddCommand(codesCmd)
}
