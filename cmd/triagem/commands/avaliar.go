package commands

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/TimurManjosov/triagem/internal/cli"
	"github.com/TimurManjosov/triagem/internal/eligibility"
	"github.com/TimurManjosov/triagem/internal/triage"
)

var (
	avaliarLocal       bool
	avaliarRegistrar   bool
	avaliarSalario     string
	avaliarDocumentoOv string
)

var avaliarCmd = &cobra.Command{
	Use:   "avaliar <file|->",
	Short: "Run the hipossuficiência means test",
	Long: `Run the means test on a YAML or JSON request file ("-" reads stdin).

Example request (pedido.yaml):
  documento: 529.982.247-25
  tipo_pessoa: pessoa_fisica
  pessoa_fisica:
    renda_individual: 1200
    renda_familiar: 2500
    possui_investimentos: false

Examples:
  triagem avaliar pedido.yaml
  triagem avaliar pedido.yaml --local --salario-minimo 1518
  triagem avaliar pedido.json --registrar`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		out, err := outputFormat()
		if err != nil {
			return err
		}
		in, err := readInput(args[0], cmd.InOrStdin())
		if err != nil {
			return err
		}
		if avaliarDocumentoOv != "" {
			in.Documento = avaliarDocumentoOv
		}

		if avaliarLocal {
			if avaliarRegistrar {
				return fmt.Errorf("--registrar needs the API, drop --local")
			}
			wage, err := decimal.NewFromString(avaliarSalario)
			if err != nil {
				return fmt.Errorf("invalid --salario-minimo: %w", err)
			}
			ev, err := eligibility.NewEvaluator(wage)
			if err != nil {
				return err
			}
			req, err := in.Request()
			if err != nil {
				return err
			}
			v, err := ev.Evaluate(req)
			if err != nil {
				return err
			}
			return printVerdict(cmd.OutOrStdout(), v, out)
		}

		c, err := newClient()
		if err != nil {
			return err
		}
		ctx := context.Background()
		if avaliarRegistrar {
			a, v, err := c.Analyze(ctx, in)
			if err != nil {
				return fmt.Errorf("failed to record analysis: %w", err)
			}
			if verbose {
				fmt.Fprintf(cmd.ErrOrStderr(), "Análise %d registrada para %s\n", a.ID, a.Documento)
			}
			return printVerdict(cmd.OutOrStdout(), v, out)
		}
		v, err := c.Evaluate(ctx, in)
		if err != nil {
			return fmt.Errorf("failed to evaluate: %w", err)
		}
		return printVerdict(cmd.OutOrStdout(), v, out)
	},
}

func printVerdict(w io.Writer, v eligibility.Verdict, out cli.OutputFormat) error {
	if quiet {
		return nil
	}
	return cli.PrintVerdict(w, v, out)
}

// readInput decodes a request file. JSON is chosen by extension; everything
// else, stdin included, is read as YAML, which also accepts JSON documents.
func readInput(path string, stdin io.Reader) (triage.Input, error) {
	var (
		in   triage.Input
		data []byte
		err  error
	)
	if path == "-" {
		data, err = io.ReadAll(stdin)
	} else {
		data, err = os.ReadFile(path)
	}
	if err != nil {
		return in, fmt.Errorf("failed to read request: %w", err)
	}

	if strings.EqualFold(filepath.Ext(path), ".json") {
		err = json.Unmarshal(data, &in)
	} else {
		err = yaml.Unmarshal(data, &in)
	}
	if err != nil {
		return in, fmt.Errorf("failed to parse request: %w", err)
	}
	return in, nil
}

func init() {
	rootCmd.AddCommand(avaliarCmd)

	avaliarCmd.Flags().BoolVar(&avaliarLocal, "local", false, "Evaluate locally without calling the API")
	avaliarCmd.Flags().BoolVar(&avaliarRegistrar, "registrar", false, "Record the verdict against the request's documento")
	avaliarCmd.Flags().StringVar(&avaliarSalario, "salario-minimo", "1518", "Minimum wage used with --local")
	avaliarCmd.Flags().StringVar(&avaliarDocumentoOv, "documento", "", "Override the documento of the request file")
}
