package commands

import (
	"fmt"

	"github.com/spf13/cobra"
)

var verifyCmd = &cobra.Command{
	Use:   "verify [hook-id]",
	Short: "Probe hook settings against the remote product",
	Long: `verify checks that a hook's settings and credentials are usable by
making a harmless call against the remote product. Without an argument
every enabled hook is probed.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runVerify,
}

func init() {
	rootCmd.AddCommand(verifyCmd)
}

func runVerify(cmd *cobra.Command, args []string) error {
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
	ctx := cmd.Context()

	if len(args) == 1 {
		result, err := d.Verify(ctx, args[0])
		if err != nil {
			return err
		}
		fmt.Printf("%s %s: %s\n", verifyMark(result.OK), result.HookID, result.Message)
		if !result.OK {
			return fmt.Errorf("verification failed for hook %s", result.HookID)
		}
		return nil
	}

	results := d.VerifyAll(ctx)
	if len(results) == 0 {
		fmt.Println("No enabled hooks configured.")
		return nil
	}

	failed := 0
	for _, r := range results {
		fmt.Printf("%s %s (%s): %s\n", verifyMark(r.OK), r.HookID, r.HookType, r.Message)
		if !r.OK {
			failed++
		}
	}
	if failed > 0 {
		return fmt.Errorf("%d of %d hooks failed verification", failed, len(results))
	}
	return nil
}

func verifyMark(ok bool) string {
	if ok {
		return "✓"
	}
	return "✗"
}
