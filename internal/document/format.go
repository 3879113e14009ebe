package document

import (
	"fmt"
	"time"
)

var meses = [...]string{
	"janeiro", "fevereiro", "março", "abril", "maio", "junho",
	"julho", "agosto", "setembro", "outubro", "novembro", "dezembro",
}

// DataPorExtenso writes t as "2 de maio de 2025"; the first of the month
// is written "1º".
func DataPorExtenso(t time.Time) string {
	day := fmt.Sprint(t.Day())
	if t.Day() == 1 {
		day = "1º"
	}
	return fmt.Sprintf("%s de %s de %d", day, meses[t.Month()-1], t.Year())
}

// FormatCPF punctuates an 11-digit CPF; other input is returned as is.
func FormatCPF(cpf string) string {
	if len(cpf) != 11 {
		return cpf
	}
	return cpf[0:3] + "." + cpf[3:6] + "." + cpf[6:9] + "-" + cpf[9:11]
}
