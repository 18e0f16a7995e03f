package main

import (
	"github.com/spf13/cobra"

	"github.com/sells-group/brand-research/internal/content"
	"github.com/sells-group/brand-research/internal/model"
)

var (
	generateProfile  string
	generatePlatform string
	generateTopic    string
	generateCount    int
	generateTone     string
)

var generateCmd = &cobra.Command{
	Use:   "generate",
	Short: "Draft social posts for a researched profile",
	RunE: func(cmd *cobra.Command, args []string) error {
		env, err := initApp(cmd.Context(), "generate")
		if err != nil {
			return err
		}
		defer env.Close()

		rec, err := env.Store.GetProfile(cmd.Context(), generateProfile)
		if err != nil {
			return err
		}
		posts, err := env.Content.Generate(cmd.Context(), rec, content.Request{
			Platform: model.Platform(generatePlatform),
			Topic:    generateTopic,
			Count:    generateCount,
			Tone:     generateTone,
		})
		if err != nil {
			return err
		}
		if err := env.Store.CreatePosts(cmd.Context(), posts); err != nil {
			return err
		}
		return printJSON(cmd.OutOrStdout(), posts)
	},
}

func init() {
	generateCmd.Flags().StringVar(&generateProfile, "profile", "", "profile id")
	generateCmd.Flags().StringVar(&generatePlatform, "platform", string(model.PlatformLinkedIn), "linkedin, twitter, facebook, instagram or blog")
	generateCmd.Flags().StringVar(&generateTopic, "topic", "", "optional topic or campaign")
	generateCmd.Flags().IntVar(&generateCount, "count", 3, "number of drafts (max 10)")
	generateCmd.Flags().StringVar(&generateTone, "tone", "", "override the profile's brand tone")
	_ = generateCmd.MarkFlagRequired("profile")
	rootCmd.AddCommand(generateCmd)
}
