package main

import (
	"encoding/json"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var reanalyzeCmd = &cobra.Command{
	Use:   "reanalyze <lead-id>",
	Short: "Re-enrich and re-score a stored lead",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		env, err := initEnv(ctx, cfg, "run")
		if err != nil {
			return err
		}
		defer env.Close()

		lead, err := env.Service.Reanalyze(ctx, args[0])
		if err != nil {
			return err
		}

		zap.L().Info("lead reanalyzed",
			zap.String("id", lead.ID),
			zap.Int("score", lead.Score),
			zap.String("temperature", string(lead.Temperature)),
		)

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(lead)
	},
}

func init() {
	rootCmd.AddCommand(reanalyzeCmd)
}
