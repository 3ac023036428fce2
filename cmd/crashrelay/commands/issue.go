package commands

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var issueCmd = &cobra.Command{
	Use:   "issue <hook-id>",
	Short: "Fetch the remote record a tracker hook created",
	Long: `issue looks up the remote record a tracker hook created for the most
recent successful delivery and prints it as JSON.`,
	Args: cobra.ExactArgs(1),
	RunE: runIssue,
}

func init() {
	rootCmd.AddCommand(issueCmd)
}

func runIssue(cmd *cobra.Command, args []string) error {
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
	issue, ok := d.IntegrationRequest(cmd.Context(), args[0])
	if !ok {
		return fmt.Errorf("no remote issue available for hook %s", args[0])
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(issue)
}
