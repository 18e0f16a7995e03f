package main

import (
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/sells-group/brand-research/internal/config"
	"github.com/sells-group/brand-research/internal/monitoring"
	"github.com/sells-group/brand-research/internal/store"
)

var (
	statusLookback int
	statusAlert    bool
)

// statusReport is the output of the status command.
type statusReport struct {
	Metrics *monitoring.MetricsSnapshot `json:"metrics"`
	Alerts  []monitoring.Alert          `json:"alerts"`
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Report publishing and research activity",
	Long:  "Collects publish and research metrics over the lookback window and evaluates the monitoring thresholds. With --alert, triggered alerts are sent to monitoring.webhook_url.",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		if err := cfg.Validate("status"); err != nil {
			return err
		}
		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		mc := cfg.Monitoring
		if statusLookback > 0 {
			mc.LookbackWindowHours = statusLookback
		}

		snap, err := monitoring.NewCollector(st).Collect(ctx, mc.LookbackWindowHours)
		if err != nil {
			return eris.Wrap(err, "collect metrics")
		}
		alerter := monitoring.NewAlerter(mc)
		alerts := alerter.Evaluate(snap)
		if statusAlert {
			alerter.SendAlerts(ctx, alerts)
		}
		if alerts == nil {
			alerts = []monitoring.Alert{}
		}
		return printJSON(cmd.OutOrStdout(), statusReport{Metrics: snap, Alerts: alerts})
	},
}

// newChecker returns nil when no alert webhook is configured.
func newChecker(st store.Store, mc config.MonitoringConfig) *monitoring.Checker {
	if mc.WebhookURL == "" {
		return nil
	}
	return monitoring.NewChecker(monitoring.NewCollector(st), monitoring.NewAlerter(mc), mc)
}

func init() {
	statusCmd.Flags().IntVar(&statusLookback, "lookback", 0, "lookback window in hours (default from config)")
	statusCmd.Flags().BoolVar(&statusAlert, "alert", false, "send triggered alerts to the monitoring webhook")
	rootCmd.AddCommand(statusCmd)
}
