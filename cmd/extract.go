package main

import (
	"io"
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/sells-group/brand-research/internal/model"
)

var (
	extractMode   string
	extractLabels string
)

var extractCmd = &cobra.Command{
	Use:   "extract [file]",
	Short: "Extract a brand profile from a research report",
	Long:  "Reads a research report from a file or stdin and prints the extracted profile as JSON.",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if extractMode != "" {
			cfg.Extract.Mode = extractMode
		}
		if extractLabels != "" {
			cfg.Extract.LabelsFile = extractLabels
		}
		if err := cfg.Validate("extract"); err != nil {
			return err
		}
		mode, _ := model.ParseExtractionMode(cfg.Extract.Mode)

		text, err := readInput(cmd.InOrStdin(), args)
		if err != nil {
			return err
		}

		svc, err := newResearchService(cfg, newResilienceBreakers(cfg.Resilience), nil)
		if err != nil {
			return err
		}
		profile, err := svc.ExtractText(cmd.Context(), text, mode)
		if err != nil {
			return err
		}
		return printJSON(cmd.OutOrStdout(), profile)
	},
}

// readInput returns the contents of args[0], or of stdin when no file or "-"
// is given.
func readInput(stdin io.Reader, args []string) (string, error) {
	if len(args) == 0 || args[0] == "-" {
		data, err := io.ReadAll(stdin)
		if err != nil {
			return "", eris.Wrap(err, "read stdin")
		}
		return string(data), nil
	}
	data, err := os.ReadFile(args[0])
	if err != nil {
		return "", eris.Wrapf(err, "read %s", args[0])
	}
	return string(data), nil
}

func init() {
	extractCmd.Flags().StringVar(&extractMode, "mode", "", "extraction mode: regex, ai or auto (default from config)")
	extractCmd.Flags().StringVar(&extractLabels, "labels", "", "YAML file overriding field labels")
	rootCmd.AddCommand(extractCmd)
}
