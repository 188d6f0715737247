package exportsvc

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/trezcool/taarifa/core/school"
)

func strPtr(s string) *string { return &s }

func TestExamSchedule(t *testing.T) {
	exams := []school.Exam{
		{
			ID:              "e1",
			Subject:         "Maths",
			Date:            time.Date(2024, 3, 6, 0, 0, 0, 0, time.UTC),
			StartTime:       "08:30",
			DurationMinutes: 90,
			Room:            "B12",
			TargetClass:     strPtr("10A"),
		},
		{
			ID:              "e2",
			Subject:         "History",
			Date:            time.Date(2024, 3, 7, 0, 0, 0, 0, time.UTC),
			StartTime:       "13:00",
			DurationMinutes: 60,
			Room:            "Hall",
			Notes:           strPtr("bring an atlas"),
		},
	}

	buf, err := ExamSchedule("Lycée Umoja", exams)
	require.NoError(t, err)

	f, err := excelize.OpenReader(buf)
	require.NoError(t, err)
	defer func() { _ = f.Close() }()

	assert.Equal(t, []string{ExamsSheet}, f.GetSheetList())

	rows, err := f.GetRows(ExamsSheet)
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, []string{"Subject", "Date", "Start", "End", "Duration (min)", "Room", "Class", "Notes"}, rows[0])
	require.GreaterOrEqual(t, len(rows[1]), 7)
	assert.Equal(t, []string{"Maths", "2024-03-06", "08:30", "10:00", "90", "B12", "10A"}, rows[1][:7])
	assert.Equal(t, []string{"History", "2024-03-07", "13:00", "14:00", "60", "Hall", "All", "bring an atlas"}, rows[2])
}

func TestExamSchedule_Empty(t *testing.T) {
	buf, err := ExamSchedule("My School", nil)
	require.NoError(t, err)

	f, err := excelize.OpenReader(buf)
	require.NoError(t, err)
	defer func() { _ = f.Close() }()

	rows, err := f.GetRows(ExamsSheet)
	require.NoError(t, err)
	assert.Len(t, rows, 1)
}
