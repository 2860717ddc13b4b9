package main

import (
	"fmt"
	"os"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/wichananm65/paint-sync/internal/paint"
)

func newImportCmd() *cobra.Command {
	var dryRun bool
	cmd := &cobra.Command{
		Use:   "import <file.csv>",
		Short: "Append products from a CSV file to the catalog",
		Long: `Append products from a CSV file. The header row uses the JSON field
names (brand, paint, interior, exterior, finishes, primer, primerNote,
residentialPrice, commercialPrice, coverage). Ids are assigned locally.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := os.Open(args[0])
			if err != nil {
				return err
			}
			defer f.Close()

			products, err := paint.ImportCSV(f)
			if err != nil {
				return fmt.Errorf("failed to parse CSV: %w", err)
			}
			if dryRun {
				fmt.Fprintf(cmd.OutOrStdout(), "parsed %d products from %s\n", len(products), args[0])
				return nil
			}

			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			s, cleanup, err := openServer(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			defer cleanup()

			created, err := s.Service().Import(cmd.Context(), products)
			log.WithFields(log.Fields{"file": args[0], "imported": len(created), "parsed": len(products)}).Info("csv import finished")
			if err != nil {
				return fmt.Errorf("import stopped after %d products: %w", len(created), err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "imported %d products\n", len(created))
			return nil
		},
	}
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "parse the file without storing anything")
	return cmd
}
