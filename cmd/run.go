package main

import (
	"encoding/json"
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/lead-pipeline/internal/pipeline"
)

var (
	runCountries    []string
	runMaxPerSource int
	runExamples     bool
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the lead pipeline once and print the result",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		if runExamples {
			cfg.Sources.IncludeExamples = true
		}
		if len(runCountries) > 0 {
			cfg.Sources.Countries = runCountries
		}

		env, err := initEnv(ctx, cfg, "run")
		if err != nil {
			return err
		}
		defer env.Close()

		result, err := env.Runner.RunSync(ctx, pipeline.Request{
			Countries:    runCountries,
			MaxPerSource: runMaxPerSource,
		})
		if err != nil {
			return eris.Wrap(err, "pipeline run")
		}

		zap.L().Info("run complete",
			zap.Int("found", result.TotalFound),
			zap.Int("created", result.Created),
			zap.Int("updated", result.Updated),
			zap.Int("errors", result.Errors),
			zap.Int("sources_consulted", len(result.Report.SourcesConsulted)),
		)

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(result)
	},
}

func init() {
	runCmd.Flags().StringSliceVar(&runCountries, "country", nil, "countries to collect from (default from config)")
	runCmd.Flags().IntVar(&runMaxPerSource, "max-per-source", 0, "cap on records per source (default from config)")
	runCmd.Flags().BoolVar(&runExamples, "examples", false, "include the offline examples source")
	rootCmd.AddCommand(runCmd)
}
