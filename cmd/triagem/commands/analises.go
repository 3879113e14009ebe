package commands

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/TimurManjosov/triagem/internal/cli"
)

var analisesCmd = &cobra.Command{
	Use:   "analises <cpf|cnpj>",
	Short: "List the means-test verdicts recorded for a document",
	Long: `List the verdicts recorded for a CPF or CNPJ, newest first.

Example:
  triagem analises 529.982.247-25`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		out, err := outputFormat()
		if err != nil {
			return err
		}
		c, err := newClient()
		if err != nil {
			return err
		}

		list, err := c.ListAnalises(context.Background(), args[0])
		if err != nil {
			return fmt.Errorf("failed to list analyses: %w", err)
		}
		if quiet {
			return nil
		}
		if len(list) == 0 && out == cli.FormatTable {
			fmt.Println("Nenhuma análise registrada")
			return nil
		}
		return cli.PrintAnalises(cmd.OutOrStdout(), list, out)
	},
}

func init() {
	rootCmd.AddCommand(analisesCmd)
}
