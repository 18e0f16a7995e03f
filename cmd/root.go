package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/brand-research/internal/config"
)

var cfg *config.Config

var rootCmd = &cobra.Command{
	Use:   "brand-research",
	Short: "Brand research, profile extraction and social content pipeline",
	Long:  "Researches companies with web-grounded LLM queries, normalizes the report into a brand profile, drafts platform-specific posts and publishes scheduled posts.",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		c, err := config.Load()
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		cfg = c

		if err := config.InitLogger(cfg.Log); err != nil {
			return fmt.Errorf("init logger: %w", err)
		}

		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		_ = zap.L().Sync()
	},
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
