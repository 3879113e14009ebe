package commands

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strconv"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/TimurManjosov/triagem/internal/cli"
	"github.com/TimurManjosov/triagem/internal/store"
)

var (
	listNome     string
	listCPF      string
	listDefensor string
	listLimit    int

	demandaFields store.CreateDemandaParams

	exportOutput string
	importDryRun bool
	importForce  bool
)

// ExportFormat is the file layout of demandas export and import.
type ExportFormat struct {
	Demandas []store.Demanda `yaml:"demandas" json:"demandas"`
}

var demandasCmd = &cobra.Command{
	Use:     "demandas",
	Aliases: []string{"d"},
	Short:   "Register, search and edit demandas",
}

var demandasListCmd = &cobra.Command{
	Use:   "list",
	Short: "Search demandas",
	Long: `Search registered demandas by name, CPF or defender.

Examples:
  triagem demandas list --nome maria
  triagem demandas list --cpf 529982 --format json
  triagem demandas list --defensor "Dr. Caio Cesar 2DP" --limit 20`,
	RunE: func(cmd *cobra.Command, args []string) error {
		out, err := outputFormat()
		if err != nil {
			return err
		}
		c, err := newClient()
		if err != nil {
			return err
		}

		demandas, err := c.ListDemandas(context.Background(), store.DemandaFilter{
			Nome:     listNome,
			CPF:      listCPF,
			Defensor: listDefensor,
			Limit:    listLimit,
		})
		if err != nil {
			return fmt.Errorf("failed to list demandas: %w", err)
		}

		if quiet {
			return nil
		}
		if len(demandas) == 0 && out == cli.FormatTable {
			fmt.Println("Nenhuma demanda encontrada")
			return nil
		}
		return cli.PrintDemandas(cmd.OutOrStdout(), demandas, out)
	},
}

var demandasGetCmd = &cobra.Command{
	Use:   "get <id>",
	Short: "Show one demanda",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := parseID(args[0])
		if err != nil {
			return err
		}
		out, err := outputFormat()
		if err != nil {
			return err
		}
		c, err := newClient()
		if err != nil {
			return err
		}

		d, err := c.GetDemanda(context.Background(), id)
		if err != nil {
			return fmt.Errorf("failed to get demanda: %w", err)
		}
		if quiet {
			return nil
		}
		return cli.PrintDemanda(cmd.OutOrStdout(), d, out)
	},
}

var demandasCreateCmd = &cobra.Command{
	Use:   "create",
	Short: "Register a demanda",
	Long: `Register a demanda. Status defaults to Pendente and the date and time
to now.

Example:
  triagem demandas create --servidor THAIS --defensor "Dra. Ana Carolina 1DP" \
    --nome "Maria da Silva" --cpf 529.982.247-25 --codigo 2025-001 \
    --demanda "Revisão de pensão" --selecao Alimentos --processo 0001234-56.2024.8.05.0001`,
	RunE: func(cmd *cobra.Command, args []string) error {
		out, err := outputFormat()
		if err != nil {
			return err
		}
		c, err := newClient()
		if err != nil {
			return err
		}

		d, err := c.CreateDemanda(context.Background(), demandaFields)
		if err != nil {
			return fmt.Errorf("failed to create demanda: %w", err)
		}
		if quiet {
			return nil
		}
		if out == cli.FormatTable {
			fmt.Printf("Demanda %d registrada\n", d.ID)
			return nil
		}
		return cli.PrintDemanda(cmd.OutOrStdout(), d, out)
	},
}

var demandasUpdateCmd = &cobra.Command{
	Use:   "update <id>",
	Short: "Edit a demanda",
	Long: `Change the fields given as flags; the others are left untouched.

Examples:
  triagem demandas update 12 --status "Concluída"
  triagem demandas update 12 --processo 0001-00.2025.8.05.0001 --processo 0002-00.2025.8.05.0001`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := parseID(args[0])
		if err != nil {
			return err
		}
		patch := patchFromFlags(cmd)
		if patch.IsEmpty() {
			return fmt.Errorf("nothing to update, pass at least one field flag")
		}
		c, err := newClient()
		if err != nil {
			return err
		}

		_, changed, err := c.UpdateDemanda(context.Background(), id, patch)
		if err != nil {
			return fmt.Errorf("failed to update demanda: %w", err)
		}
		if !quiet {
			if changed {
				fmt.Printf("Demanda %d atualizada\n", id)
			} else {
				fmt.Printf("Demanda %d sem alterações\n", id)
			}
		}
		return nil
	},
}

var demandasExportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export demandas to a file",
	Long: `Export the demandas matching the list filters to a YAML or JSON file.

Examples:
  triagem demandas export --output demandas.yaml
  triagem demandas export --defensor "Orientação" --output orientacao.json --format json`,
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := newClient()
		if err != nil {
			return err
		}

		demandas, err := c.ListDemandas(context.Background(), store.DemandaFilter{
			Nome:     listNome,
			CPF:      listCPF,
			Defensor: listDefensor,
			Limit:    listLimit,
		})
		if err != nil {
			return fmt.Errorf("failed to list demandas: %w", err)
		}
		exportData := ExportFormat{Demandas: demandas}

		output := os.Stdout
		if exportOutput != "" && exportOutput != "-" {
			output, err = os.Create(exportOutput)
			if err != nil {
				return fmt.Errorf("failed to create output file: %w", err)
			}
			defer output.Close()
		}

		switch format {
		case "json":
			encoder := json.NewEncoder(output)
			encoder.SetIndent("", "  ")
			if err := encoder.Encode(exportData); err != nil {
				return fmt.Errorf("failed to encode JSON: %w", err)
			}
		case "yaml", "table":
			// Default to YAML for export
			encoder := yaml.NewEncoder(output)
			defer encoder.Close()
			encoder.SetIndent(2)
			if err := encoder.Encode(exportData); err != nil {
				return fmt.Errorf("failed to encode YAML: %w", err)
			}
		default:
			return fmt.Errorf("unsupported export format: %s", format)
		}

		if exportOutput != "" && exportOutput != "-" && !quiet {
			fmt.Fprintf(os.Stderr, "Successfully exported %d demanda(s) to %s\n", len(demandas), exportOutput)
		}
		return nil
	},
}

var demandasImportCmd = &cobra.Command{
	Use:   "import <file>",
	Short: "Register demandas from a file",
	Long: `Register every demanda of a YAML or JSON export file as a new demanda.
IDs in the file are ignored.

Examples:
  triagem demandas import demandas.yaml --dry-run
  triagem demandas import demandas.yaml --force`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		data, err := os.ReadFile(args[0])
		if err != nil {
			return fmt.Errorf("failed to read file: %w", err)
		}
		var importData ExportFormat
		if err := yaml.Unmarshal(data, &importData); err != nil {
			return fmt.Errorf("failed to parse file: %w", err)
		}
		if len(importData.Demandas) == 0 {
			return fmt.Errorf("no demandas found in file")
		}
		if verbose {
			fmt.Printf("Found %d demanda(s) to import\n", len(importData.Demandas))
		}

		if importDryRun {
			fmt.Println("Dry run mode - the following demandas would be registered:")
			for _, d := range importData.Demandas {
				fmt.Printf("  - %s (%s, %s)\n", d.NomeAssistido, d.Defensor, d.Status)
			}
			return nil
		}

		c, err := newClient()
		if err != nil {
			return err
		}
		ctx := context.Background()

		successCount, errorCount := 0, 0
		for _, d := range importData.Demandas {
			_, err := c.CreateDemanda(ctx, paramsFromDemanda(d))
			if err != nil {
				errorCount++
				fmt.Fprintf(os.Stderr, "Failed to import demanda of '%s': %v\n", d.NomeAssistido, err)
				if !importForce {
					return fmt.Errorf("import failed, use --force to continue on errors")
				}
				continue
			}
			successCount++
		}

		if !quiet {
			fmt.Printf("Import complete: %d succeeded, %d failed\n", successCount, errorCount)
		}
		if errorCount > 0 && !importForce {
			return fmt.Errorf("import completed with errors")
		}
		return nil
	},
}

func parseID(s string) (int64, error) {
	id, err := strconv.ParseInt(s, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid id %q", s)
	}
	return id, nil
}

// patchFromFlags includes only the flags the user actually set.
func patchFromFlags(cmd *cobra.Command) store.DemandaPatch {
	var p store.DemandaPatch
	str := func(name string, dst **string, v string) {
		if cmd.Flags().Changed(name) {
			*dst = &v
		}
	}
	list := func(name string, dst **[]string, v []string) {
		if cmd.Flags().Changed(name) {
			*dst = &v
		}
	}
	str("servidor", &p.Servidor, demandaFields.Servidor)
	str("defensor", &p.Defensor, demandaFields.Defensor)
	str("nome", &p.NomeAssistido, demandaFields.NomeAssistido)
	str("cpf", &p.CPF, demandaFields.CPF)
	str("codigo", &p.Codigo, demandaFields.Codigo)
	str("demanda", &p.Descricao, demandaFields.Descricao)
	list("selecao", &p.SelecaoDemanda, demandaFields.SelecaoDemanda)
	str("status", &p.Status, demandaFields.Status)
	str("data", &p.Data, demandaFields.Data)
	str("horario", &p.Horario, demandaFields.Horario)
	list("processo", &p.NumeroProcesso, demandaFields.NumeroProcesso)
	return p
}

func paramsFromDemanda(d store.Demanda) store.CreateDemandaParams {
	return store.CreateDemandaParams{
		Servidor:       d.Servidor,
		Defensor:       d.Defensor,
		NomeAssistido:  d.NomeAssistido,
		CPF:            d.CPF,
		Codigo:         d.Codigo,
		Descricao:      d.Descricao,
		SelecaoDemanda: d.SelecaoDemanda,
		Status:         d.Status,
		Data:           d.Data,
		Horario:        d.Horario,
		NumeroProcesso: d.NumeroProcesso,
	}
}

func addDemandaFieldFlags(cmd *cobra.Command) {
	f := cmd.Flags()
	f.StringVar(&demandaFields.Servidor, "servidor", "", "Staff member registering the demanda")
	f.StringVar(&demandaFields.Defensor, "defensor", "", "Defender responsible")
	f.StringVar(&demandaFields.NomeAssistido, "nome", "", "Name of the assisted person")
	f.StringVar(&demandaFields.CPF, "cpf", "", "CPF of the assisted person")
	f.StringVar(&demandaFields.Codigo, "codigo", "", "Internal code")
	f.StringVar(&demandaFields.Descricao, "demanda", "", "Free-text description")
	f.StringSliceVar(&demandaFields.SelecaoDemanda, "selecao", nil, "Quick demand selection (repeatable)")
	f.StringVar(&demandaFields.Status, "status", "", "Status")
	f.StringVar(&demandaFields.Data, "data", "", "Date (dd/mm/aaaa)")
	f.StringVar(&demandaFields.Horario, "horario", "", "Time (hh:mm:ss)")
	f.StringArrayVar(&demandaFields.NumeroProcesso, "processo", nil, "Court case number (repeatable)")
}

func addFilterFlags(cmd *cobra.Command) {
	cmd.Flags().StringVar(&listNome, "nome", "", "Filter by part of the assisted person's name")
	cmd.Flags().StringVar(&listCPF, "cpf", "", "Filter by part of the CPF")
	cmd.Flags().StringVar(&listDefensor, "defensor", "", "Filter by defender")
	cmd.Flags().IntVar(&listLimit, "limit", 0, "Maximum number of results")
}

func init() {
	rootCmd.AddCommand(demandasCmd)
	demandasCmd.AddCommand(demandasListCmd, demandasGetCmd, demandasCreateCmd, demandasUpdateCmd,
		demandasExportCmd, demandasImportCmd)

	addFilterFlags(demandasListCmd)
	addFilterFlags(demandasExportCmd)
	addDemandaFieldFlags(demandasCreateCmd)
	addDemandaFieldFlags(demandasUpdateCmd)

	demandasExportCmd.Flags().StringVarP(&exportOutput, "output", "o", "", "Output file (default: stdout)")
	demandasImportCmd.Flags().BoolVar(&importDryRun, "dry-run", false, "Validate without importing")
	demandasImportCmd.Flags().BoolVar(&importForce, "force", false, "Continue on errors")
}
