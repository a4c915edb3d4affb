package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var reprocessLimit int

var reprocessCmd = &cobra.Command{
	Use:   "reprocess",
	Short: "Re-drive failed and unprocessed events through the pipeline",
	RunE: func(cmd *cobra.Command, args []string) error {
		env, err := initPipeline(cmd.Context())
		if err != nil {
			return err
		}
		defer env.Close()

		limit := reprocessLimit
		if limit <= 0 {
			limit = cfg.Reprocess.DefaultBatch
		}
		if limit > cfg.Reprocess.MaxBatch {
			limit = cfg.Reprocess.MaxBatch
		}

		res, err := env.reprocessor.Run(cmd.Context(), limit)
		if err != nil {
			return err
		}
		fmt.Printf("checked=%d processed=%d failed=%d\n", res.Checked, res.Processed, res.Failed)
		return nil
	},
}

func init() {
	reprocessCmd.Flags().IntVar(&reprocessLimit, "limit", 0, "max events per batch (defaults to config)")
	rootCmd.AddCommand(reprocessCmd)
}
