package sheet

import (
	"encoding/csv"
	"fmt"
	"io"

	"github.com/xuri/excelize/v2"

	"github.com/JonMunkholm/ExamSeat/internal/core"
)

const templateSheet = "Exams"

// exampleRow fills the template's second line.
var exampleRow = map[string]string{
	core.ColStudentID:       "20240001",
	core.ColFullName:        "Jane Doe",
	core.ColSubjectCode:     "MATH101",
	core.ColSubjectName:     "Mathematics",
	core.ColRoomNumber:      "A101",
	core.ColRoomCapacity:    "40",
	core.ColExamDate:        "2025-06-16",
	core.ColStartTime:       "09:00",
	core.ColDurationMinutes: "120",
}

// ContentType returns the MIME type for format.
func ContentType(format Format) string {
	if format == FormatXLSX {
		return "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	}
	return "text/csv; charset=utf-8"
}

// WriteTemplate writes the import header plus one example row.
func WriteTemplate(w io.Writer, format Format) error {
	example := make([]string, len(core.ImportColumns))
	for i, col := range core.ImportColumns {
		example[i] = exampleRow[col]
	}

	switch format {
	case FormatCSV:
		cw := csv.NewWriter(w)
		if err := cw.WriteAll([][]string{core.ImportColumns, example}); err != nil {
			return fmt.Errorf("write csv template: %w", err)
		}
		return nil
	case FormatXLSX:
		return writeXLSXTemplate(w, example)
	}
	return fmt.Errorf("%w %q", ErrUnsupported, format)
}

func writeXLSXTemplate(w io.Writer, example []string) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", templateSheet); err != nil {
		return fmt.Errorf("write xlsx template: %w", err)
	}
	for i, values := range [][]string{core.ImportColumns, example} {
		cells := make([]any, len(values))
		for j, v := range values {
			cells[j] = v
		}
		axis, err := excelize.CoordinatesToCellName(1, i+1)
		if err != nil {
			return err
		}
		if err := f.SetSheetRow(templateSheet, axis, &cells); err != nil {
			return fmt.Errorf("write xlsx template: %w", err)
		}
	}
	if err := f.SetColWidth(templateSheet, "A", "I", 16); err != nil {
		return fmt.Errorf("write xlsx template: %w", err)
	}
	if _, err := f.WriteTo(w); err != nil {
		return fmt.Errorf("write xlsx template: %w", err)
	}
	return nil
}
