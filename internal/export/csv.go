package export

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
)

var csvHeader = []string{
	"id", "title", "description", "client", "category", "priority",
	"status", "due_date", "due_time", "completed", "completed_at", "created_at",
}

// CSV writes one row per task using the stored field values.
func CSV(w io.Writer, r *Report) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(csvHeader); err != nil {
		return err
	}
	for _, t := range r.Tasks {
		completedAt := ""
		if t.CompletedAt != nil {
			completedAt = t.CompletedAt.In(r.Location).Format("2006-01-02T15:04:05Z07:00")
		}
		row := []string{
			strconv.FormatInt(t.ID, 10),
			t.Title,
			t.Description,
			t.Client,
			string(t.Category),
			string(t.Priority),
			string(t.Status),
			t.DueDate,
			t.DueTime,
			strconv.FormatBool(t.Completed),
			completedAt,
			t.CreatedAt.In(r.Location).Format("2006-01-02T15:04:05Z07:00"),
		}
		if err := cw.Write(row); err != nil {
			return err
		}
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		return fmt.Errorf("failed to write csv: %w", err)
	}
	return nil
}
