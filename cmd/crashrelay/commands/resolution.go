package commands

import (
	"fmt"

	"github.com/spf13/cobra"
)

var resolutionCmd = &cobra.Command{
	Use:   "resolution <event.json>",
	Short: "Reconcile remote issue state after a resolution change",
	Long: `resolution reads a crash payload from a JSON file ("-" for stdin)
and reconciles each tracker hook's remote record with the payload's
resolution status. A resolved payload closes the remote issue; an
unresolved one reopens it. Hooks whose remote state already agrees are
left untouched.`,
	Args: cobra.ExactArgs(1),
	RunE: runResolution,
}

func init() {
	rootCmd.AddCommand(resolutionCmd)
}

func runResolution(cmd *cobra.Command, args []string) error {
	payload, err := readPayload(args[0])
	if err != nil {
		return err
	}

	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	s, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer s.Close()

	d := buildDispatcher(cfg, s)
	results := d.ResolutionChange(cmd.Context(), payload)
	if len(results) == 0 {
		fmt.Println("No enabled tracker hooks configured.")
		return nil
	}

	failed := 0
	for _, r := range results {
		switch {
		case r.Err != nil:
			failed++
			fmt.Printf("✗ %s (%s): %v\n", r.HookID, r.HookType, r.Err)
		case r.Changed:
			fmt.Printf("✓ %s (%s): remote issue updated\n", r.HookID, r.HookType)
		default:
			fmt.Printf("✓ %s (%s): already in sync\n", r.HookID, r.HookType)
		}
	}
	if failed > 0 {
		return fmt.Errorf("%d of %d reconciliations failed", failed, len(results))
	}
	return nil
}
