package commands

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/TimurManjosov/triagem/internal/cli"
	"github.com/TimurManjosov/triagem/internal/document"
	"github.com/TimurManjosov/triagem/internal/validation"
)

var (
	docDemandaID    int64
	docData         document.Data
	docDataAgendada string
	docRender       bool
	docOutput       string
	docWidth        int
)

var documentoCmd = &cobra.Command{
	Use:   "documento <kind>",
	Short: "Generate an office document",
	Long: `Generate a document from a template. Fields can come from a registered
demanda (--demanda), from flags, or both; flags win.

Kinds: ` + kindList() + `

Examples:
  triagem documento declaracao_comparecimento --demanda 12 --render
  triagem documento declaracao_residencia --nome "Ana Lima" --cpf 52998224725 --endereco "Rua A, 10" -o residencia.md
  triagem documento carta_convite --nome "Ana Lima" --destinatario "João Souza" --data-agendada "20/05/2025 14:00"`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if docDataAgendada != "" {
			t, err := time.ParseInLocation(validation.DateLayout+" 15:04", docDataAgendada, time.Local)
			if err != nil {
				return fmt.Errorf("invalid --data-agendada, use \"dd/mm/aaaa hh:mm\": %w", err)
			}
			docData.DataAgendada = t
		}
		c, err := newClient()
		if err != nil {
			return err
		}

		doc, err := c.GenerateDocument(context.Background(), document.Kind(args[0]), docDemandaID, docData)
		if err != nil {
			return fmt.Errorf("failed to generate document: %w", err)
		}

		if docOutput != "" && docOutput != "-" {
			if err := os.WriteFile(docOutput, []byte(doc.Body), 0o644); err != nil {
				return fmt.Errorf("failed to write document: %w", err)
			}
			if !quiet {
				fmt.Fprintf(os.Stderr, "%s salvo em %s (código %s)\n", doc.Title, docOutput, doc.VerificationCode)
			}
			return nil
		}
		if quiet {
			return nil
		}
		if docRender {
			return cli.RenderMarkdown(cmd.OutOrStdout(), doc.Body, docWidth)
		}
		_, err = fmt.Fprint(cmd.OutOrStdout(), doc.Body)
		return err
	},
}

func kindList() string {
	kinds := document.Kinds()
	names := make([]string, len(kinds))
	for i, k := range kinds {
		names[i] = string(k)
	}
	return strings.Join(names, ", ")
}

func init() {
	rootCmd.AddCommand(documentoCmd)

	f := documentoCmd.Flags()
	f.Int64Var(&docDemandaID, "demanda", 0, "Prefill from this demanda ID")
	f.StringVar(&docData.NomeAssistido, "nome", "", "Name of the assisted person")
	f.StringVar(&docData.CPF, "cpf", "", "CPF of the assisted person")
	f.StringVar(&docData.Defensor, "defensor", "", "Defender")
	f.StringVar(&docData.Servidor, "servidor", "", "Staff member signing")
	f.StringVar(&docData.Horario, "horario", "", "Attendance time")
	f.StringVar(&docData.Endereco, "endereco", "", "Address (declaracao_residencia)")
	f.StringVar(&docData.Destinatario, "destinatario", "", "Invitee (carta_convite)")
	f.StringVar(&docDataAgendada, "data-agendada", "", "Meeting date and time, dd/mm/aaaa hh:mm (carta_convite)")
	f.StringVar(&docData.Local, "local", "", "Meeting place (carta_convite)")
	f.StringVar(&docData.Assunto, "assunto", "", "Subject (carta_convite)")
	f.StringVar(&docData.Certidao, "certidao", "", "nascimento, casamento or obito (requisicao_crc)")
	f.StringVar(&docData.NomeRegistrado, "registrado", "", "Name on the certificate (requisicao_crc)")
	f.StringVar(&docData.Cartorio, "cartorio", "", "Registry office (requisicao_crc)")
	f.BoolVar(&docRender, "render", false, "Render the markdown for the terminal")
	f.StringVarP(&docOutput, "output", "o", "", "Write the markdown to a file")
	f.IntVar(&docWidth, "width", 80, "Word wrap width with --render")
}
