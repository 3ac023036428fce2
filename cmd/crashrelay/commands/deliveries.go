package commands

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/crashfeed/relay/internal/model"
	"github.com/crashfeed/relay/internal/store"
)

var (
	deliveriesHookID string
	deliveriesEvent  string
	deliveriesFailed bool
	deliveriesLimit  int
)

var deliveriesCmd = &cobra.Command{
	Use:   "deliveries",
	Short: "List recorded delivery attempts",
	RunE:  runDeliveries,
}

func init() {
	deliveriesCmd.Flags().StringVar(&deliveriesHookID, "hook", "", "filter by hook id")
	deliveriesCmd.Flags().StringVar(&deliveriesEvent, "event", "", "filter by event name")
	deliveriesCmd.Flags().BoolVar(&deliveriesFailed, "failed", false, "show only failed deliveries")
	deliveriesCmd.Flags().IntVar(&deliveriesLimit, "limit", 0, "maximum rows to show")
	rootCmd.AddCommand(deliveriesCmd)
}

func runDeliveries(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	s, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer s.Close()

	filter := store.DeliveryFilter{Limit: deliveriesLimit}
	if filter.Limit <= 0 {
		filter.Limit = cfg.Display.DeliveryPageSize
	}
	if deliveriesHookID != "" {
		filter.HookID = &deliveriesHookID
	}
	if deliveriesEvent != "" {
		filter.Event = &deliveriesEvent
	}
	if deliveriesFailed {
		failed := false
		filter.OK = &failed
	}

	deliveries, err := s.GetDeliveries(cmd.Context(), filter)
	if err != nil {
		return err
	}
	if len(deliveries) == 0 {
		fmt.Println("No deliveries recorded.")
		return nil
	}

	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "WHEN\tHOOK\tTYPE\tEVENT\tOK\tDETAIL")
	for _, d := range deliveries {
		detail := d.Resource
		mark := "✓"
		if !d.OK {
			detail = d.Error
			mark = "✗"
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\n",
			d.CreatedAt.Local().Format("2006-01-02 15:04:05"),
			d.HookID, d.HookType, shortEvent(d.Event), mark, detail,
		)
	}
	return w.Flush()
}

// shortEvent trims the shared suffix off event names for display.
func shortEvent(event string) string {
	switch event {
	case model.EventIssueImpact:
		return "impact"
	case model.EventIssueResolution:
		return "resolution"
	case model.EventIssueIntegration:
		return "integration"
	default:
		return event
	}
}
