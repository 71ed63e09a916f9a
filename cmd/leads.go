package main

import (
	"encoding/json"
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/sells-group/lead-pipeline/internal/model"
	"github.com/sells-group/lead-pipeline/internal/store"
)

var (
	leadsTemperature string
	leadsCountry     string
	leadsProjectType string
	leadsMinScore    int
	leadsLimit       int
	leadsOffset      int
)

var leadsCmd = &cobra.Command{
	Use:   "leads",
	Short: "List catalogued leads, best first",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		filter, err := leadFilterFromFlags()
		if err != nil {
			return err
		}

		st, err := initStore(ctx, cfg.Store)
		if err != nil {
			return err
		}
		defer st.Close()

		if err := st.Migrate(ctx); err != nil {
			return eris.Wrap(err, "migrate store")
		}

		leads, err := st.List(ctx, filter)
		if err != nil {
			return eris.Wrap(err, "list leads")
		}
		if leads == nil {
			leads = []model.Lead{}
		}

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(leads)
	},
}

func leadFilterFromFlags() (store.LeadFilter, error) {
	f := store.LeadFilter{
		Temperature: model.Temperature(leadsTemperature),
		Country:     leadsCountry,
		ProjectType: model.ProjectType(leadsProjectType),
		MinScore:    leadsMinScore,
		Limit:       leadsLimit,
		Offset:      leadsOffset,
	}
	if f.Temperature != "" && !f.Temperature.Valid() {
		return f, eris.Errorf("invalid temperature %q (valid: hot, warm, cold)", leadsTemperature)
	}
	if f.MinScore < 0 || f.Limit < 0 || f.Offset < 0 {
		return f, eris.New("min-score, limit and offset must be non-negative")
	}
	return f, nil
}

func init() {
	leadsCmd.Flags().StringVar(&leadsTemperature, "temperature", "", "filter by temperature (hot, warm, cold)")
	leadsCmd.Flags().StringVar(&leadsCountry, "country", "", "filter by country")
	leadsCmd.Flags().StringVar(&leadsProjectType, "project-type", "", "filter by project type (GTB, GTEB, hvac, supervision, electrical, automation, mixed)")
	leadsCmd.Flags().IntVar(&leadsMinScore, "min-score", 0, "minimum score")
	leadsCmd.Flags().IntVar(&leadsLimit, "limit", store.DefaultListLimit, "maximum leads to print")
	leadsCmd.Flags().IntVar(&leadsOffset, "offset", 0, "leads to skip")
	rootCmd.AddCommand(leadsCmd)
}
