package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/dopemux/codesearch/internal/hybrid"
	"github.com/dopemux/codesearch/internal/mcp"
	"github.com/dopemux/codesearch/pkg/types"
)

func searchCmd() *cobra.Command {
	var (
		limit       int
		profileName string
		language    string
		reindex     bool
	)

	cmd := &cobra.Command{
		Use:   "search <query>",
		Short: "Search the workspace and print ranked results",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := loadConfig()
			if err != nil {
				return err
			}

			app, err := mcp.NewServer(cfg, logger)
			if err != nil {
				return err
			}

			// The sparse index lives in memory, so keyword retrieval
			// needs a fresh indexing pass in the same process.
			if reindex {
				if _, err := app.Pipeline().IndexWorkspace(cmd.Context()); err != nil {
					return err
				}
			}

			var filter map[string]string
			if language != "" {
				filter = map[string]string{"language": language}
			}

			resp, err := app.Searcher().Search(cmd.Context(), hybrid.Query{
				Text:         strings.Join(args, " "),
				TopK:         limit,
				Profile:      types.ProfileByName(profileName),
				Filter:       filter,
				DenseWeight:  cfg.Search.DenseWeight,
				SparseWeight: cfg.Search.SparseWeight,
				RRFK:         cfg.Search.RRFK,
			})
			if err != nil {
				return err
			}

			if len(resp.Results) == 0 {
				fmt.Println("no results")
				return nil
			}
			for i, r := range resp.Results {
				name := r.Document.FunctionName
				if name == "" {
					name = "(module)"
				}
				fmt.Printf("%2d. %.4f  %s:%d-%d  %s  [%s]\n",
					i+1, r.Score, r.Document.FilePath,
					r.Document.StartLine, r.Document.EndLine, name, r.Source)
			}
			return nil
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "n", 10, "maximum number of results")
	cmd.Flags().StringVarP(&profileName, "profile", "p", "implementation", "search profile (implementation, debugging, exploration)")
	cmd.Flags().StringVarP(&language, "language", "l", "", "restrict results to one language")
	cmd.Flags().BoolVar(&reindex, "reindex", false, "re-index the workspace before searching")

	return cmd
}
