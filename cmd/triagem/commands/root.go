package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/TimurManjosov/triagem/internal/cli"
	"github.com/TimurManjosov/triagem/internal/client"
)

var (
	// Global flags
	baseURL string
	apiKey  string
	env     string
	format  string
	quiet   bool
	verbose bool
)

// rootCmd represents the base command
var rootCmd = &cobra.Command{
	Use:   "triagem",
	Short: "CLI for the Defensoria intake and means-test service",
	Long: `Triagem is a command-line tool for the public defender's office intake service.

It registers and searches demandas, runs the hipossuficiência means test
(remotely or locally), generates office documents and shows statistics.

Examples:
  triagem demandas list --nome maria
  triagem demandas create --servidor THAIS --defensor "Orientação" --nome "Ana Lima" --demanda "Alvará"
  triagem avaliar pedido.yaml --local
  triagem documento declaracao_comparecimento --demanda 12 --render
  triagem stats --from 01/03/2025 --to 31/03/2025`,
	SilenceUsage: true,
}

// Execute runs the root command
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	// Global flags available to all commands
	rootCmd.PersistentFlags().StringVar(&baseURL, "base-url", "", "Base URL of the triagem API")
	rootCmd.PersistentFlags().StringVar(&apiKey, "api-key", "", "API key for authentication")
	rootCmd.PersistentFlags().StringVar(&env, "env", "", "Environment from the config file (dev, prod, ...)")
	rootCmd.PersistentFlags().StringVar(&format, "format", "table", "Output format (table, json, yaml)")
	rootCmd.PersistentFlags().BoolVar(&quiet, "quiet", false, "Suppress output")
	rootCmd.PersistentFlags().BoolVar(&verbose, "verbose", false, "Verbose output")
}

// newClient builds an API client from flags, environment variables and
// the config file, in that order of precedence.
func newClient() (*client.Client, error) {
	envCfg, _, err := cli.GetEnvConfig(env, baseURL, apiKey)
	if err != nil {
		return nil, fmt.Errorf("configuration error: %w", err)
	}
	return client.NewClient(envCfg.BaseURL, envCfg.APIKey), nil
}

func outputFormat() (cli.OutputFormat, error) {
	return cli.ParseFormat(format)
}
