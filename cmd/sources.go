package main

import (
	"encoding/json"
	"os"

	"github.com/spf13/cobra"

	"github.com/sells-group/lead-pipeline/internal/source"
)

// sourceInfo is the listing view of a connector.
type sourceInfo struct {
	Name     string `json:"name"`
	Category string `json:"category"`
	Country  string `json:"country,omitempty"`
	URL      string `json:"url"`
}

func describeSources(cs []source.Connector) []sourceInfo {
	out := make([]sourceInfo, 0, len(cs))
	for _, c := range cs {
		out = append(out, sourceInfo{
			Name:     c.Name(),
			Category: c.Category().String(),
			Country:  c.Country(),
			URL:      c.URL(),
		})
	}
	return out
}

var sourcesCmd = &cobra.Command{
	Use:   "sources",
	Short: "List the registered lead sources",
	RunE: func(cmd *cobra.Command, args []string) error {
		reg, err := buildSources(cfg, newFetcher(cfg.Fetch))
		if err != nil {
			return err
		}

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(describeSources(reg.All()))
	},
}

func init() {
	rootCmd.AddCommand(sourcesCmd)
}
