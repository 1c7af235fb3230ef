package report

import (
	"fmt"
	"io"
	"time"

	"github.com/caixa-pos/api/internal/money"
	"github.com/go-pdf/fpdf"
)

// WritePDF renders the closing report as a single A4 page (more if the
// timeline is long).
func WritePDF(w io.Writer, sum Summary) error {
	loc := sum.Location
	if loc == nil {
		loc = time.UTC
	}

	pdf := fpdf.New("P", "mm", "A4", "")
	pdf.SetMargins(15, 15, 15)
	pdf.SetAutoPageBreak(true, 15)
	pdf.AddPage()
	tr := pdf.UnicodeTranslatorFromDescriptor("")

	pageW, _ := pdf.GetPageSize()
	contentW := pageW - 30

	// Header
	pdf.SetFont("Helvetica", "B", 16)
	pdf.CellFormat(contentW, 9, tr("Fechamento de Caixa"), "", 1, "C", false, 0, "")
	pdf.SetFont("Helvetica", "", 9)
	pdf.CellFormat(contentW, 5, sum.SessionID.String(), "", 1, "C", false, 0, "")
	pdf.Ln(3)

	pdf.SetFont("Helvetica", "", 10)
	line := func(label, value string) {
		pdf.CellFormat(contentW*0.6, 6, tr(label), "", 0, "L", false, 0, "")
		pdf.CellFormat(contentW*0.4, 6, tr(value), "", 1, "R", false, 0, "")
	}
	line("Aberto em", sum.OpenedAt.In(loc).Format("02/01/2006 15:04")+" por "+sum.OpenedBy)
	if sum.ClosedAt != nil {
		line("Fechado em", sum.ClosedAt.In(loc).Format("02/01/2006 15:04")+" por "+sum.ClosedBy)
	} else {
		line("Status", string(sum.Status))
	}
	separator(pdf, pageW)

	// Totals
	line("Base", brl(sum.Base))
	line("Vendas", brl(sum.Vendas))
	line("Entradas", brl(sum.Entradas))
	line("Saídas", "-"+brl(sum.Saidas))
	pdf.SetFont("Helvetica", "B", 12)
	line("Saldo", brl(sum.Balance))
	pdf.SetFont("Helvetica", "", 10)
	line("Pedidos pagos", fmt.Sprintf("%d", sum.VendasCount))
	line("Ticket médio", brl(sum.TicketMedio))
	separator(pdf, pageW)

	// Payment mix
	section(pdf, contentW, tr("Formas de pagamento"))
	for _, m := range sum.Mix {
		line(string(m.Method), fmt.Sprintf("%s  (%d,%02d%%)", brl(m.Total), m.Bps/100, m.Bps%100))
	}
	separator(pdf, pageW)

	// Items
	if len(sum.TopItems) > 0 {
		section(pdf, contentW, tr("Mais vendidos"))
		for _, it := range sum.TopItems {
			line(it.Name, fmt.Sprintf("x%d", it.Quantity))
		}
		separator(pdf, pageW)
	}

	// Timeline
	if len(sum.Timeline) > 0 {
		section(pdf, contentW, tr("Movimentos"))
		col := []float64{contentW * 0.15, contentW * 0.15, contentW * 0.40, contentW * 0.15, contentW * 0.15}
		pdf.SetFont("Helvetica", "B", 8)
		for i, h := range []string{"Hora", "Tipo", "Detalhe", "Valor", "Saldo"} {
			align := "L"
			if i >= 3 {
				align = "R"
			}
			pdf.CellFormat(col[i], 5, h, "B", 0, align, false, 0, "")
		}
		pdf.Ln(-1)
		pdf.SetFont("Helvetica", "", 8)
		for _, e := range sum.Timeline {
			desc := e.Desc
			if len(desc) > 40 {
				desc = desc[:39] + "..."
			}
			value := brl(e.Value)
			if e.Kind == EntrySaida {
				value = "-" + value
			}
			pdf.CellFormat(col[0], 5, e.At.In(loc).Format("15:04"), "", 0, "L", false, 0, "")
			pdf.CellFormat(col[1], 5, e.Kind, "", 0, "L", false, 0, "")
			pdf.CellFormat(col[2], 5, tr(desc), "", 0, "L", false, 0, "")
			pdf.CellFormat(col[3], 5, value, "", 0, "R", false, 0, "")
			pdf.CellFormat(col[4], 5, brl(e.Balance), "", 1, "R", false, 0, "")
		}
	}

	pdf.Ln(4)
	pdf.SetFont("Helvetica", "I", 7)
	pdf.CellFormat(contentW, 4, "Gerado em "+sum.GeneratedAt.In(loc).Format("02/01/2006 15:04:05"), "", 1, "R", false, 0, "")

	if err := pdf.Output(w); err != nil {
		return fmt.Errorf("report: write pdf: %w", err)
	}
	return nil
}

func section(pdf *fpdf.Fpdf, width float64, title string) {
	pdf.SetFont("Helvetica", "B", 11)
	pdf.CellFormat(width, 7, title, "", 1, "L", false, 0, "")
	pdf.SetFont("Helvetica", "", 10)
}

func separator(pdf *fpdf.Fpdf, pageW float64) {
	pdf.Ln(2)
	pdf.Line(15, pdf.GetY(), pageW-15, pdf.GetY())
	pdf.Ln(2)
}

// brl formats cents as "R$ 1234,56".
func brl(c money.Cents) string {
	s := money.ToDecimalString(c)
	for i := len(s) - 1; i >= 0; i-- {
		if s[i] == '.' {
			return "R$ " + s[:i] + "," + s[i+1:]
		}
	}
	return "R$ " + s
}
