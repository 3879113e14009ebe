package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/TimurManjosov/triagem/internal/auth"
	"github.com/TimurManjosov/triagem/internal/webhook"
)

var keyRole string

var keysCmd = &cobra.Command{
	Use:   "keys",
	Short: "Generate API keys and webhook secrets",
}

var keysGenerateCmd = &cobra.Command{
	Use:   "generate",
	Short: "Generate an API key and its API_KEY_HASHES entry",
	Long: `Generate a random API key. The key is shown once; add the printed
role:hash entry to API_KEY_HASHES on the server.

Example:
  triagem keys generate --role admin`,
	RunE: func(cmd *cobra.Command, args []string) error {
		role, err := auth.ParseRole(keyRole)
		if err != nil {
			return err
		}
		key, entry, err := auth.NewKey(role)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "key:   %s\nentry: %s\n", key, entry)
		return nil
	},
}

var keysWebhookSecretCmd = &cobra.Command{
	Use:   "webhook-secret",
	Short: "Generate a webhook signing secret",
	RunE: func(cmd *cobra.Command, args []string) error {
		secret, err := webhook.GenerateSecret()
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), secret)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(keysCmd)
	keysCmd.AddCommand(keysGenerateCmd, keysWebhookSecretCmd)
	keysGenerateCmd.Flags().StringVar(&keyRole, "role", string(auth.RoleAdmin), "Role of the key")
}
