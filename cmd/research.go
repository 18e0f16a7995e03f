package main

import (
	"regexp"
	"strings"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/sells-group/brand-research/internal/model"
	"github.com/sells-group/brand-research/internal/research"
)

var (
	researchCompany string
	researchWebsite string
	researchID      string
	researchMode    string
)

var researchCmd = &cobra.Command{
	Use:   "research",
	Short: "Research a company and save its brand profile",
	RunE: func(cmd *cobra.Command, args []string) error {
		if researchMode != "" {
			cfg.Extract.Mode = researchMode
		}
		env, err := initApp(cmd.Context(), "research")
		if err != nil {
			return err
		}
		defer env.Close()

		id := researchID
		if id == "" {
			id = profileSlug(researchCompany)
		}
		mode, _ := model.ParseExtractionMode(cfg.Extract.Mode)

		rec, err := env.Research.Run(cmd.Context(), research.Request{
			ProfileID:   id,
			CompanyName: researchCompany,
			Website:     researchWebsite,
			Mode:        mode,
		})
		if err != nil {
			return err
		}
		return printJSON(cmd.OutOrStdout(), rec)
	},
}

var nonSlugRe = regexp.MustCompile(`[^a-z0-9]+`)

// profileSlug derives a stable profile id from a company name, falling back
// to a random id when the name has no usable characters.
func profileSlug(name string) string {
	slug := strings.Trim(nonSlugRe.ReplaceAllString(strings.ToLower(name), "-"), "-")
	if slug == "" {
		return uuid.NewString()
	}
	return slug
}

func init() {
	researchCmd.Flags().StringVar(&researchCompany, "company", "", "company name")
	researchCmd.Flags().StringVar(&researchWebsite, "website", "", "company website URL")
	researchCmd.Flags().StringVar(&researchID, "id", "", "profile id (default derived from the company name)")
	researchCmd.Flags().StringVar(&researchMode, "mode", "", "extraction mode: regex, ai or auto (default from config)")
	_ = researchCmd.MarkFlagRequired("company")
	rootCmd.AddCommand(researchCmd)
}
