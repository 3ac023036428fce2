package commands

import (
	"fmt"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/crashfeed/relay/internal/tui"
)

var tuiCmd = &cobra.Command{
	Use:   "tui",
	Short: "Open the interactive status screen",
	Long: `tui opens an interactive screen showing the configured hooks and the
recent delivery log, with on-demand verification probes.`,
	RunE: runTUI,
}

func init() {
	rootCmd.AddCommand(tuiCmd)
}

func runTUI(cmd *cobra.Command, args []string) error {
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
	p := tea.NewProgram(tui.New(d, s), tea.WithAltScreen())
	if _, err := p.Run(); err != nil {
		return fmt.Errorf("running status screen: %w", err)
	}
	return nil
}
