package main

import (
	"fmt"
	"sort"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

var modelsFilter string

var modelsCmd = &cobra.Command{
	Use:   "models",
	Short: "List models available through OpenRouter",
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := cfg.Validate("models"); err != nil {
			return err
		}
		models, err := newOpenRouterClient(cfg).ListModels(cmd.Context())
		if err != nil {
			return err
		}
		sort.Slice(models, func(i, j int) bool { return models[i].ID < models[j].ID })

		filter := strings.ToLower(modelsFilter)
		tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
		fmt.Fprintln(tw, "ID\tNAME\tCONTEXT") //nolint:errcheck
		for _, m := range models {
			if filter != "" && !strings.Contains(strings.ToLower(m.ID), filter) {
				continue
			}
			fmt.Fprintf(tw, "%s\t%s\t%d\n", m.ID, m.Name, m.ContextLength) //nolint:errcheck
		}
		return tw.Flush()
	},
}

func init() {
	modelsCmd.Flags().StringVar(&modelsFilter, "filter", "", "only show model ids containing this text")
	rootCmd.AddCommand(modelsCmd)
}
