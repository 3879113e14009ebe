package commands

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/TimurManjosov/triagem/internal/cli"
)

var (
	statsDefensor string
	statsFrom     string
	statsTo       string
)

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show intake and means-test statistics",
	Long: `Show demandas per defender, status, staff member and day, plus the
means-test approval rate.

Examples:
  triagem stats
  triagem stats --defensor "Orientação" --from 01/03/2025 --to 31/03/2025 --format json`,
	RunE: func(cmd *cobra.Command, args []string) error {
		out, err := outputFormat()
		if err != nil {
			return err
		}
		c, err := newClient()
		if err != nil {
			return err
		}

		s, err := c.Stats(context.Background(), statsDefensor, statsFrom, statsTo)
		if err != nil {
			return fmt.Errorf("failed to load stats: %w", err)
		}
		if quiet {
			return nil
		}
		return cli.PrintStats(cmd.OutOrStdout(), s, out)
	},
}

func init() {
	rootCmd.AddCommand(statsCmd)

	statsCmd.Flags().StringVar(&statsDefensor, "defensor", "", "Only this defender")
	statsCmd.Flags().StringVar(&statsFrom, "from", "", "First day, dd/mm/aaaa")
	statsCmd.Flags().StringVar(&statsTo, "to", "", "Last day, dd/mm/aaaa")
}
