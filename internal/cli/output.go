package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"

	"github.com/charmbracelet/glamour"
	"github.com/olekukonko/tablewriter"
	"gopkg.in/yaml.v3"

	"github.com/TimurManjosov/triagem/internal/eligibility"
	"github.com/TimurManjosov/triagem/internal/report"
	"github.com/TimurManjosov/triagem/internal/store"
)

// OutputFormat specifies the output format for CLI commands
type OutputFormat string

const (
	FormatTable OutputFormat = "table"
	FormatJSON  OutputFormat = "json"
	FormatYAML  OutputFormat = "yaml"
)

// ParseFormat validates a --output flag value.
func ParseFormat(s string) (OutputFormat, error) {
	switch f := OutputFormat(strings.ToLower(s)); f {
	case FormatTable, FormatJSON, FormatYAML:
		return f, nil
	}
	return "", fmt.Errorf("unsupported format: %s (use table, json or yaml)", s)
}

// PrintDemandas outputs demandas in the specified format
func PrintDemandas(w io.Writer, demandas []store.Demanda, format OutputFormat) error {
	switch format {
	case FormatJSON:
		return printJSON(w, map[string][]store.Demanda{"demandas": demandas})
	case FormatYAML:
		return printYAML(w, demandas)
	case FormatTable:
		return printDemandaTable(w, demandas)
	default:
		return fmt.Errorf("unsupported format: %s", format)
	}
}

// PrintDemanda outputs a single demanda in the specified format
func PrintDemanda(w io.Writer, d *store.Demanda, format OutputFormat) error {
	switch format {
	case FormatJSON:
		return printJSON(w, d)
	case FormatYAML:
		return printYAML(w, d)
	case FormatTable:
		return printDemandaTable(w, []store.Demanda{*d})
	default:
		return fmt.Errorf("unsupported format: %s", format)
	}
}

// PrintAnalises outputs recorded verdicts.
func PrintAnalises(w io.Writer, analises []store.Analise, format OutputFormat) error {
	switch format {
	case FormatJSON:
		return printJSON(w, map[string][]store.Analise{"analises": analises})
	case FormatYAML:
		return printYAML(w, analises)
	case FormatTable:
		table := tablewriter.NewWriter(w)
		table.Header("ID", "Documento", "Tipo", "Resultado", "Motivo", "Data")
		for _, a := range analises {
			if err := table.Append(
				strconv.FormatInt(a.ID, 10),
				a.Documento,
				a.TipoPessoa,
				resultado(a.Resultado),
				a.Motivo,
				a.DataAnalise.Local().Format("02/01/2006 15:04"),
			); err != nil {
				return err
			}
		}
		return table.Render()
	default:
		return fmt.Errorf("unsupported format: %s", format)
	}
}

// PrintVerdict outputs a means-test verdict. The table form is the plain
// explanation shown to the attendant.
func PrintVerdict(w io.Writer, v eligibility.Verdict, format OutputFormat) error {
	switch format {
	case FormatJSON:
		return printJSON(w, v)
	case FormatYAML:
		return printYAML(w, v)
	case FormatTable:
		_, err := fmt.Fprintf(w, "%s (%s)\n\n%s\n", strings.ToUpper(resultado(v.Approved)), v.Reason, v.Explanation)
		return err
	default:
		return fmt.Errorf("unsupported format: %s", format)
	}
}

// PrintStats outputs the dashboard numbers.
func PrintStats(w io.Writer, s *report.Stats, format OutputFormat) error {
	switch format {
	case FormatJSON:
		return printJSON(w, s)
	case FormatYAML:
		return printYAML(w, s)
	case FormatTable:
	default:
		return fmt.Errorf("unsupported format: %s", format)
	}

	fmt.Fprintf(w, "Demandas: %d\n", s.TotalDemandas)
	fmt.Fprintf(w, "Análises: %d (%d aprovadas, %.0f%%)\n\n", s.Analises.Total, s.Analises.Aprovadas, s.Analises.TaxaAprovacao*100)

	table := tablewriter.NewWriter(w)
	table.Header("Agrupamento", "Valor", "Total")
	groups := []struct {
		name   string
		counts map[string]int
	}{
		{"Defensor", s.PorDefensor},
		{"Status", s.PorStatus},
		{"Servidor", s.PorServidor},
		{"Motivo", s.Analises.PorMotivo},
	}
	for _, g := range groups {
		keys := make([]string, 0, len(g.counts))
		for k := range g.counts {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			if err := table.Append(g.name, k, strconv.Itoa(g.counts[k])); err != nil {
				return err
			}
		}
	}
	return table.Render()
}

// RenderMarkdown pretty-prints a generated document for the terminal.
func RenderMarkdown(w io.Writer, body string, width int) error {
	r, err := glamour.NewTermRenderer(
		glamour.WithAutoStyle(),
		glamour.WithWordWrap(width),
	)
	if err != nil {
		return fmt.Errorf("create renderer: %w", err)
	}
	out, err := r.Render(body)
	if err != nil {
		return fmt.Errorf("render document: %w", err)
	}
	_, err = io.WriteString(w, out)
	return err
}

func printJSON(w io.Writer, data any) error {
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	return encoder.Encode(data)
}

func printYAML(w io.Writer, data any) error {
	encoder := yaml.NewEncoder(w)
	defer encoder.Close()
	encoder.SetIndent(2)
	return encoder.Encode(data)
}

func printDemandaTable(w io.Writer, demandas []store.Demanda) error {
	table := tablewriter.NewWriter(w)
	table.Header("ID", "Data", "Assistido", "CPF", "Defensor", "Servidor", "Status", "Demanda")

	for _, d := range demandas {
		descricao := d.Descricao
		if r := []rune(descricao); len(r) > 40 {
			descricao = string(r[:37]) + "..."
		}
		if err := table.Append(
			strconv.FormatInt(d.ID, 10),
			d.Data+" "+d.Horario,
			d.NomeAssistido,
			d.CPF,
			d.Defensor,
			d.Servidor,
			d.Status,
			descricao,
		); err != nil {
			return err
		}
	}

	return table.Render()
}

func resultado(approved bool) string {
	if approved {
		return "aprovado"
	}
	return "reprovado"
}
