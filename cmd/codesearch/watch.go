package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/dopemux/codesearch/internal/mcp"
	"github.com/dopemux/codesearch/internal/watcher"
)

func watchCmd() *cobra.Command {
	var skipInitial bool

	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Index the workspace, then re-index files as they change",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := loadConfig()
			if err != nil {
				return err
			}

			app, err := mcp.NewServer(cfg, logger)
			if err != nil {
				return err
			}

			ctx, cancel := context.WithCancel(cmd.Context())
			defer cancel()

			sigChan := make(chan os.Signal, 1)
			signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
			go func() {
				<-sigChan
				cancel()
			}()

			if !skipInitial {
				if _, err := app.Pipeline().IndexWorkspace(ctx); err != nil {
					return err
				}
			}

			w := watcher.New(cfg.Workspace.Path, cfg.Workspace.IncludePatterns, app.Pipeline(), logger)
			if err := w.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
				return err
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&skipInitial, "skip-initial", false, "skip the initial full indexing pass")

	return cmd
}
