package export

import (
	"fmt"
	"io"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/insuratask/insuratask/internal/store"
)

const (
	sheetTasks   = "Tasks"
	sheetSummary = "Summary"
)

var excelHeaders = []string{
	"ID", "Title", "Description", "Client", "Category", "Priority",
	"Status", "Due Date", "Due Time", "Completed", "Completed At", "Created At",
}

var excelWidths = map[string]float64{
	"A": 8, "B": 40, "C": 50, "D": 24, "E": 18, "F": 12,
	"G": 12, "H": 12, "I": 10, "J": 11, "K": 20, "L": 20,
}

// Excel writes r as a workbook with a Tasks sheet and a Summary sheet.
func Excel(w io.Writer, r *Report) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", sheetTasks); err != nil {
		return err
	}
	if err := writeTaskSheet(f, r); err != nil {
		return fmt.Errorf("failed to write %s sheet: %w", sheetTasks, err)
	}
	if err := writeSummarySheet(f, r); err != nil {
		return fmt.Errorf("failed to write %s sheet: %w", sheetSummary, err)
	}
	f.SetActiveSheet(0)

	if err := f.Write(w); err != nil {
		return fmt.Errorf("failed to write workbook: %w", err)
	}
	return nil
}

func headerStyle(f *excelize.File) (int, error) {
	return f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true, Color: "FFFFFF"},
		Fill: excelize.Fill{Type: "pattern", Color: []string{"1F4E78"}, Pattern: 1},
		Alignment: &excelize.Alignment{
			Vertical: "center",
		},
	})
}

func writeTaskSheet(f *excelize.File, r *Report) error {
	header := make([]interface{}, len(excelHeaders))
	for i, h := range excelHeaders {
		header[i] = h
	}
	if err := f.SetSheetRow(sheetTasks, "A1", &header); err != nil {
		return err
	}

	style, err := headerStyle(f)
	if err != nil {
		return err
	}
	last, err := excelize.CoordinatesToCellName(len(excelHeaders), 1)
	if err != nil {
		return err
	}
	if err := f.SetCellStyle(sheetTasks, "A1", last, style); err != nil {
		return err
	}

	for i, t := range r.Tasks {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		row := []interface{}{
			t.ID, t.Title, t.Description, t.Client, categoryLabel(t.Category),
			titleCase(string(t.Priority)), titleCase(string(t.Status)),
			t.DueDate, t.DueTime, yesNo(t.Completed), formatTime(t.CompletedAt, r),
			t.CreatedAt.In(r.Location).Format("2006-01-02 15:04"),
		}
		if err := f.SetSheetRow(sheetTasks, cell, &row); err != nil {
			return err
		}
	}

	for col, width := range excelWidths {
		if err := f.SetColWidth(sheetTasks, col, col, width); err != nil {
			return err
		}
	}

	if err := f.SetPanes(sheetTasks, &excelize.Panes{
		Freeze:      true,
		YSplit:      1,
		TopLeftCell: "A2",
		ActivePane:  "bottomLeft",
	}); err != nil {
		return err
	}

	lastRow, err := excelize.CoordinatesToCellName(len(excelHeaders), len(r.Tasks)+1)
	if err != nil {
		return err
	}
	return f.AutoFilter(sheetTasks, "A1:"+lastRow, nil)
}

func writeSummarySheet(f *excelize.File, r *Report) error {
	if _, err := f.NewSheet(sheetSummary); err != nil {
		return err
	}

	st := r.Stats
	rows := [][]interface{}{
		{"Report", r.Title},
		{"Generated", r.GeneratedAt.Format("2006-01-02 15:04")},
		{},
		{"Metric", "Value"},
		{"Total", st.Total},
		{"Completed", st.Completed},
		{"Pending", st.Pending},
		{"Overdue", st.Overdue},
		{"Due Today", st.DueToday},
		{"Completion Rate", fmt.Sprintf("%.1f%%", st.CompletionRate*100)},
		{},
		{"Category", "Tasks"},
	}
	for _, c := range store.Categories {
		rows = append(rows, []interface{}{categoryLabel(c), st.ByCategory[c]})
	}
	rows = append(rows, []interface{}{}, []interface{}{"Priority", "Tasks"})
	for _, p := range store.Priorities {
		rows = append(rows, []interface{}{titleCase(string(p)), st.ByPriority[p]})
	}

	style, err := headerStyle(f)
	if err != nil {
		return err
	}
	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		if err != nil {
			return err
		}
		if len(row) == 0 {
			continue
		}
		if err := f.SetSheetRow(sheetSummary, cell, &row); err != nil {
			return err
		}
		if row[0] == "Metric" || row[0] == "Category" || row[0] == "Priority" {
			end, _ := excelize.CoordinatesToCellName(2, i+1)
			if err := f.SetCellStyle(sheetSummary, cell, end, style); err != nil {
				return err
			}
		}
	}
	return f.SetColWidth(sheetSummary, "A", "B", 22)
}

func yesNo(b bool) string {
	if b {
		return "Yes"
	}
	return "No"
}

func formatTime(t *time.Time, r *Report) string {
	if t == nil {
		return ""
	}
	return t.In(r.Location).Format("2006-01-02 15:04")
}
