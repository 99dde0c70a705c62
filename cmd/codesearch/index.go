package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/dopemux/codesearch/internal/mcp"
)

func indexCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "index",
		Short: "Index the configured workspace once and exit",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := loadConfig()
			if err != nil {
				return err
			}

			app, err := mcp.NewServer(cfg, logger)
			if err != nil {
				return err
			}

			progress, err := app.Pipeline().IndexWorkspace(cmd.Context())
			if err != nil {
				return err
			}

			fmt.Printf("indexed %d/%d files, %d chunks, %d errors, $%.4f\n",
				progress.ProcessedFiles, progress.TotalFiles,
				progress.IndexedChunks, progress.Errors, progress.TotalCostUSD)
			return nil
		},
	}
}
