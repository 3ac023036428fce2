package commands

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/huh"
	"github.com/spf13/cobra"

	"github.com/crashfeed/relay/internal/credential"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage hook configuration and credentials",
}

var setCredentialCmd = &cobra.Command{
	Use:   "set-credential <hook-id> <key>",
	Short: "Store a secret for a hook in the system keyring",
	Long: `set-credential prompts for a secret value and stores it in the
system keyring under the given hook and key. Adapters read secrets from
the keyring, never from the config file. Common keys: api_token,
password, group_token, smtp_password.`,
	Args: cobra.ExactArgs(2),
	RunE: runSetCredential,
}

var deleteCredentialCmd = &cobra.Command{
	Use:   "delete-credential <hook-id> <key>",
	Short: "Remove a secret for a hook from the system keyring",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		return credential.Delete(credential.HookKey(args[0], args[1]))
	},
}

func init() {
	configCmd.AddCommand(setCredentialCmd)
	configCmd.AddCommand(deleteCredentialCmd)
	rootCmd.AddCommand(configCmd)
}

func runSetCredential(cmd *cobra.Command, args []string) error {
	hookID, key := args[0], args[1]

	var value string
	form := huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Title(fmt.Sprintf("Credential %s for hook %s", key, hookID)).
				Description("Stored in the system keyring, never in the config file").
				EchoMode(huh.EchoModePassword).
				Value(&value).
				Validate(validateRequired("Value")),
		),
	)
	if err := form.Run(); err != nil {
		return fmt.Errorf("reading secret: %w", err)
	}

	if err := credential.Set(credential.HookKey(hookID, key), strings.TrimSpace(value)); err != nil {
		return err
	}
	fmt.Printf("Stored credential %s for hook %s.\n", key, hookID)
	return nil
}

func validateRequired(fieldName string) func(string) error {
	return func(s string) error {
		if strings.TrimSpace(s) == "" {
			return fmt.Errorf("%s is required", fieldName)
		}
		return nil
	}
}
