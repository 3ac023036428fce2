// Package commands implements the crashrelay CLI.
package commands

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/crashfeed/relay/internal/adapter"
	"github.com/crashfeed/relay/internal/adapter/campfire"
	"github.com/crashfeed/relay/internal/adapter/fogbugz"
	"github.com/crashfeed/relay/internal/adapter/hall"
	"github.com/crashfeed/relay/internal/adapter/jira"
	"github.com/crashfeed/relay/internal/adapter/mail"
	"github.com/crashfeed/relay/internal/adapter/webhook"
	"github.com/crashfeed/relay/internal/credential"
	"github.com/crashfeed/relay/internal/dispatch"
	"github.com/crashfeed/relay/internal/model"
	"github.com/crashfeed/relay/internal/store"
)

var configPath string

var rootCmd = &cobra.Command{
	Use:   "crashrelay",
	Short: "Relay crash events to issue trackers, chat rooms, and webhooks",
	Long: `crashrelay takes crash/issue events from an upstream monitoring
system and delivers them to configured third-party hooks: Jira, FogBugz,
Campfire, Hall, generic webhooks, and email. Every delivery attempt is
recorded in a local log.`,
	SilenceUsage: true,
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVar(
		&configPath, "config", model.DefaultConfigPath(),
		"path to the configuration file",
	)
}

// newRegistry returns the adapter registry with every built-in hook
// type registered.
func newRegistry() *adapter.Registry {
	r := adapter.NewRegistry()
	r.Register(model.HookTypeJira, jira.Factory)
	r.Register(model.HookTypeFogBugz, fogbugz.Factory)
	r.Register(model.HookTypeWebHook, webhook.Factory)
	r.Register(model.HookTypeCampfire, campfire.Factory)
	r.Register(model.HookTypeHall, hall.Factory)
	r.Register(model.HookTypeMail, mail.Factory)
	return r
}

// loadConfig reads the configuration file.
func loadConfig() (*model.AppConfig, error) {
	return model.LoadConfig(configPath)
}

// openStore opens the delivery log database.
func openStore(cfg *model.AppConfig) (*store.SQLiteStore, error) {
	dbPath := cfg.DBPath
	if dbPath == "" {
		dbPath = model.DefaultDBPath()
	}
	return store.NewSQLiteStore(dbPath)
}

// buildDispatcher builds adapters for all enabled hooks and registers
// them. A hook that fails to build (bad settings, missing credentials)
// is reported and skipped so the remaining hooks still work.
func buildDispatcher(cfg *model.AppConfig, s store.Store) *dispatch.Dispatcher {
	registry := newRegistry()
	d := dispatch.New(s)

	for _, hook := range cfg.Hooks {
		if !hook.Enabled {
			continue
		}
		adp, err := registry.Build(hook, credential.ForHook(hook.ID))
		if err != nil {
			fmt.Fprintf(os.Stderr, "skipping hook %s: %v\n", hook.ID, err)
			continue
		}
		d.RegisterHook(hook, adp)
	}

	return d
}
