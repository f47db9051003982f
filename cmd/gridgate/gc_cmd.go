package main

import (
	"context"
	"fmt"

	"github.com/sdu-escience/gridgate/internal/logger"
	"github.com/sdu-escience/gridgate/pkg/config"
	"github.com/sdu-escience/gridgate/pkg/gc"
	"github.com/sdu-escience/gridgate/pkg/metrics"
	"github.com/spf13/cobra"
)

func newGCCommand(g *globals) *cobra.Command {
	var (
		dryRun    bool
		batchSize int
	)
	cmd := &cobra.Command{
		Use:   "gc",
		Short: "Delete content no data object refers to",
		Long: `gc compares the catalog with the content store and deletes blobs that no
data object refers to. It opens the stores directly, so run it while no other
gridgate process uses them.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			if ctx == nil {
				ctx = context.Background()
			}

			cfg, err := g.loadConfig()
			if err != nil {
				return err
			}
			m := config.InitializeMetrics(g.metricsPath != "")

			catalog, err := config.CreateMetadataStore(ctx, cfg)
			if err != nil {
				return err
			}
			defer func() {
				if cerr := catalog.Close(); cerr != nil {
					logger.Warn("Failed to close catalog: %v", cerr)
				}
			}()

			blobs, err := config.CreateContentStore(ctx, cfg, m.S3)
			if err != nil {
				return err
			}

			collector, err := gc.NewCollector(catalog, blobs, gc.Config{BatchSize: batchSize, DryRun: dryRun})
			if err != nil {
				return err
			}
			stats, err := collector.Collect(ctx)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if dryRun {
				for _, id := range stats.Orphans {
					fmt.Fprintln(out, id)
				}
			}
			fmt.Fprintln(out, stats.Summary())

			if g.metricsPath != "" {
				return metrics.WriteTextfile(g.metricsPath)
			}
			return nil
		},
	}
	cmd.Flags().BoolVarP(&dryRun, "dry-run", "n", false, "list orphaned content without deleting it")
	cmd.Flags().IntVar(&batchSize, "batch-size", gc.DefaultBatchSize, "orphans deleted per request")
	return cmd
}
