// Package exportsvc renders school data into downloadable spreadsheets.
package exportsvc

import (
	"bytes"
	"fmt"

	"github.com/pkg/errors"
	"github.com/xuri/excelize/v2"

	"github.com/trezcool/taarifa/core/school"
)

const (
	ExamsSheet      = "Exams"
	XLSXContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
)

var examsHeader = []interface{}{"Subject", "Date", "Start", "End", "Duration (min)", "Room", "Class", "Notes"}

// ExamSchedule writes `exams`, in the given order, to a single-sheet workbook.
func ExamSchedule(schoolName string, exams []school.Exam) (*bytes.Buffer, error) {
	f := excelize.NewFile()
	defer func() { _ = f.Close() }()

	if err := f.SetSheetName("Sheet1", ExamsSheet); err != nil {
		return nil, errors.Wrap(err, "naming sheet")
	}
	_ = f.SetDocProps(&excelize.DocProperties{Title: schoolName + " - exam schedule", Creator: schoolName})

	headerStyle, err := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true},
		Fill: excelize.Fill{Type: "pattern", Pattern: 1, Color: []string{"#E5E7EB"}},
	})
	if err != nil {
		return nil, errors.Wrap(err, "creating header style")
	}

	if err = f.SetSheetRow(ExamsSheet, "A1", &examsHeader); err != nil {
		return nil, errors.Wrap(err, "writing header")
	}
	if err = f.SetCellStyle(ExamsSheet, "A1", "H1", headerStyle); err != nil {
		return nil, errors.Wrap(err, "styling header")
	}

	for i, ex := range exams {
		class := "All"
		if ex.TargetClass != nil {
			class = *ex.TargetClass
		}
		var notes string
		if ex.Notes != nil {
			notes = *ex.Notes
		}
		row := []interface{}{
			ex.Subject,
			ex.Date.Format("2006-01-02"),
			ex.StartTime,
			ex.EndsAt().Format("15:04"),
			ex.DurationMinutes,
			ex.Room,
			class,
			notes,
		}
		if err = f.SetSheetRow(ExamsSheet, fmt.Sprintf("A%d", i+2), &row); err != nil {
			return nil, errors.Wrapf(err, "writing exam %s", ex.ID)
		}
	}

	_ = f.SetColWidth(ExamsSheet, "A", "A", 24)
	_ = f.SetColWidth(ExamsSheet, "H", "H", 40)
	_ = f.SetPanes(ExamsSheet, &excelize.Panes{Freeze: true, YSplit: 1, TopLeftCell: "A2", ActivePane: "bottomLeft"})

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, errors.Wrap(err, "writing workbook")
	}
	return buf, nil
}
