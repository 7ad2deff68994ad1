package export

import (
	"fmt"
	"io"

	"github.com/go-pdf/fpdf"
)

type pdfColumn struct {
	title string
	width float64
	value func(r *Report, i int) string
}

var pdfColumns = []pdfColumn{
	{"Title", 92, func(r *Report, i int) string { return r.Tasks[i].Title }},
	{"Client", 45, func(r *Report, i int) string { return r.Tasks[i].Client }},
	{"Category", 38, func(r *Report, i int) string { return categoryLabel(r.Tasks[i].Category) }},
	{"Priority", 24, func(r *Report, i int) string { return titleCase(string(r.Tasks[i].Priority)) }},
	{"Status", 28, func(r *Report, i int) string { return titleCase(string(r.Tasks[i].Status)) }},
	{"Due", 40, func(r *Report, i int) string { return dueLabel(r.Tasks[i]) }},
}

const (
	pdfFont      = "Helvetica"
	pdfRowHeight = 7.0
)

// PDF writes r as a landscape A4 table with a summary header.
func PDF(w io.Writer, r *Report) error {
	pdf := fpdf.New("L", "mm", "A4", "")
	tr := pdf.UnicodeTranslatorFromDescriptor("")

	pdf.SetTitle(r.Title, true)
	pdf.SetCreator("InsuraTask", true)
	pdf.SetCreationDate(r.GeneratedAt)
	pdf.SetMargins(15, 15, 15)
	pdf.SetAutoPageBreak(false, 15)
	pdf.AliasNbPages("")
	pdf.SetFooterFunc(func() {
		pdf.SetY(-12)
		pdf.SetFont(pdfFont, "I", 8)
		pdf.SetTextColor(120, 120, 120)
		pdf.CellFormat(0, 6, fmt.Sprintf("Page %d/{nb}", pdf.PageNo()), "", 0, "C", false, 0, "")
	})

	pdf.AddPage()

	pdf.SetFont(pdfFont, "B", 16)
	pdf.CellFormat(0, 10, tr(r.Title), "", 1, "L", false, 0, "")

	pdf.SetFont(pdfFont, "", 9)
	pdf.SetTextColor(90, 90, 90)
	pdf.CellFormat(0, 6, "Generated "+r.GeneratedAt.Format("2006-01-02 15:04 MST"), "", 1, "L", false, 0, "")

	st := r.Stats
	pdf.SetTextColor(0, 0, 0)
	pdf.SetFont(pdfFont, "", 10)
	pdf.CellFormat(0, 7, fmt.Sprintf("Total: %d    Completed: %d    Pending: %d    Overdue: %d    Completion: %.0f%%",
		st.Total, st.Completed, st.Pending, st.Overdue, st.CompletionRate*100), "", 1, "L", false, 0, "")
	pdf.Ln(3)

	header := func() {
		pdf.SetFont(pdfFont, "B", 9)
		pdf.SetFillColor(31, 78, 120)
		pdf.SetTextColor(255, 255, 255)
		for _, c := range pdfColumns {
			pdf.CellFormat(c.width, pdfRowHeight, c.title, "1", 0, "L", true, 0, "")
		}
		pdf.Ln(-1)
		pdf.SetFont(pdfFont, "", 9)
		pdf.SetTextColor(0, 0, 0)
	}
	header()

	if len(r.Tasks) == 0 {
		pdf.SetFont(pdfFont, "I", 9)
		pdf.CellFormat(0, pdfRowHeight, "No tasks match the selected filters.", "", 1, "L", false, 0, "")
	}

	_, pageHeight := pdf.GetPageSize()
	_, _, _, bottom := pdf.GetMargins()
	for i := range r.Tasks {
		if pdf.GetY()+pdfRowHeight > pageHeight-bottom {
			pdf.AddPage()
			header()
		}
		fill := i%2 == 1
		pdf.SetFillColor(240, 244, 248)
		for _, c := range pdfColumns {
			text := fitText(pdf, tr, c.value(r, i), c.width-2)
			pdf.CellFormat(c.width, pdfRowHeight, text, "1", 0, "L", fill, 0, "")
		}
		pdf.Ln(-1)
	}

	if err := pdf.Output(w); err != nil {
		return fmt.Errorf("failed to write pdf: %w", err)
	}
	return nil
}

// fitText shortens the UTF-8 string s with an ellipsis until it fits width
// and returns it translated for the core font.
func fitText(pdf *fpdf.Fpdf, tr func(string) string, s string, width float64) string {
	if out := tr(s); pdf.GetStringWidth(out) <= width {
		return out
	}
	runes := []rune(s)
	for len(runes) > 0 {
		runes = runes[:len(runes)-1]
		candidate := tr(string(runes) + "...")
		if pdf.GetStringWidth(candidate) <= width {
			return candidate
		}
	}
	return ""
}
