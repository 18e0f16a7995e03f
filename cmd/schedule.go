package main

import (
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
)

var (
	schedulePost string
	scheduleAt   string
	scheduleIn   time.Duration
)

var scheduleCmd = &cobra.Command{
	Use:   "schedule",
	Short: "Schedule a draft post for publishing",
	RunE: func(cmd *cobra.Command, args []string) error {
		at, err := scheduleTime(scheduleAt, scheduleIn, time.Now())
		if err != nil {
			return err
		}

		if err := cfg.Validate("schedule"); err != nil {
			return err
		}
		st, err := initStore(cmd.Context())
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		post, err := st.SchedulePost(cmd.Context(), schedulePost, at)
		if err != nil {
			return err
		}
		return printJSON(cmd.OutOrStdout(), post)
	},
}

// scheduleTime resolves --at (RFC 3339) or --in relative to now. With
// neither set the post is due immediately.
func scheduleTime(at string, in time.Duration, now time.Time) (time.Time, error) {
	switch {
	case at != "" && in != 0:
		return time.Time{}, eris.New("use either --at or --in, not both")
	case at != "":
		t, err := time.Parse(time.RFC3339, at)
		if err != nil {
			return time.Time{}, eris.Wrap(err, "parse --at")
		}
		return t.UTC(), nil
	default:
		return now.Add(in).UTC(), nil
	}
}

func init() {
	scheduleCmd.Flags().StringVar(&schedulePost, "post", "", "post id")
	scheduleCmd.Flags().StringVar(&scheduleAt, "at", "", "publish time (RFC 3339)")
	scheduleCmd.Flags().DurationVar(&scheduleIn, "in", 0, "publish after this delay, e.g. 2h")
	_ = scheduleCmd.MarkFlagRequired("post")
	rootCmd.AddCommand(scheduleCmd)
}
