package commands

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/crashfeed/relay/internal/model"
)

var sendCmd = &cobra.Command{
	Use:   "send <event.json>",
	Short: "Deliver an impact-change event to every enabled hook",
	Long: `send reads a crash payload from a JSON file ("-" for stdin) and
delivers it as an impact-change event to every enabled hook. Issue
trackers create a remote record; chat rooms and webhooks post a
message. Each delivery attempt is recorded in the local log.`,
	Args: cobra.ExactArgs(1),
	RunE: runSend,
}

func init() {
	rootCmd.AddCommand(sendCmd)
}

// readPayload loads a crash payload from path, or stdin when path is "-".
func readPayload(path string) (*model.CrashPayload, error) {
	var data []byte
	var err error

	if path == "-" {
		data, err = io.ReadAll(os.Stdin)
	} else {
		data, err = os.ReadFile(path)
	}
	if err != nil {
		return nil, fmt.Errorf("reading payload: %w", err)
	}

	var payload model.CrashPayload
	if err := json.Unmarshal(data, &payload); err != nil {
		return nil, fmt.Errorf("parsing payload %s: %w", path, err)
	}
	if payload.Title == "" {
		return nil, fmt.Errorf("payload %s has no title", path)
	}
	return &payload, nil
}

func runSend(cmd *cobra.Command, args []string) error {
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
	results := d.ImpactChange(cmd.Context(), payload)
	if len(results) == 0 {
		fmt.Println("No enabled hooks configured.")
		return nil
	}

	failed := 0
	for _, r := range results {
		if r.Err != nil {
			failed++
			fmt.Printf("✗ %s (%s): %v\n", r.HookID, r.HookType, r.Err)
			continue
		}
		if len(r.Resource) > 0 {
			fmt.Printf("✓ %s (%s): created %s\n", r.HookID, r.HookType, formatResource(r.Resource))
		} else {
			fmt.Printf("✓ %s (%s): delivered\n", r.HookID, r.HookType)
		}
	}
	if failed > 0 {
		return fmt.Errorf("%d of %d deliveries failed", failed, len(results))
	}
	return nil
}

func formatResource(res map[string]string) string {
	data, err := json.Marshal(res)
	if err != nil {
		return fmt.Sprintf("%v", res)
	}
	return string(data)
}
