package export

import (
	"bytes"
	"encoding/csv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"expense-tracker/internal/models"
)

func sampleExpenses() []models.Expense {
	return []models.Expense{
		{ID: 2, UserID: 1, Amount: 12.5, Description: "Lunch, with team", Date: "2024-05-02T12:00:00+00:00", Category: "Food"},
		{ID: 1, UserID: 1, Amount: 40, Description: "Gym", Date: "2024-05-01T00:00:00+00:00", Category: "Health", RecurrenceFlag: models.RecurrenceMonthly},
	}
}

func TestParseFormat(t *testing.T) {
	tests := []struct {
		in      string
		want    Format
		wantErr bool
	}{
		{"", CSV, false},
		{"csv", CSV, false},
		{"CSV", CSV, false},
		{"xlsx", XLSX, false},
		{" XLSX ", XLSX, false},
		{"pdf", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseFormat(tt.in)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrUnknownFormat)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestFormat_Metadata(t *testing.T) {
	day := time.Date(2024, 5, 1, 15, 0, 0, 0, time.UTC)
	assert.Equal(t, "expenses_20240501.csv", CSV.Filename(day))
	assert.Equal(t, "expenses_20240501.xlsx", XLSX.Filename(day))
	assert.Contains(t, CSV.ContentType(), "text/csv")
	assert.Contains(t, XLSX.ContentType(), "spreadsheetml")
}

func TestWriteCSV(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteCSV(&buf, sampleExpenses()))

	records, err := csv.NewReader(&buf).ReadAll()
	require.NoError(t, err)
	require.Len(t, records, 3)
	assert.Equal(t, header, records[0])
	assert.Equal(t, []string{"2", "2024-05-02T12:00:00+00:00", "Food", "Lunch, with team", "12.5", ""}, records[1])
	assert.Equal(t, []string{"1", "2024-05-01T00:00:00+00:00", "Health", "Gym", "40", "monthly"}, records[2])
}

func TestWriteCSV_Empty(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteCSV(&buf, nil))
	assert.Equal(t, "id,date,category,description,amount,recurrence_flag\n", buf.String())
}

func TestWriteXLSX(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteXLSX(&buf, sampleExpenses()))

	f, err := excelize.OpenReader(&buf)
	require.NoError(t, err)
	defer f.Close()

	rows, err := f.GetRows(SheetName)
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, header, rows[0])
	assert.Equal(t, "Lunch, with team", rows[1][3])
	assert.Equal(t, "12.5", rows[1][4])
	assert.Equal(t, "monthly", rows[2][5])

	assert.Equal(t, SheetName, f.GetSheetName(f.GetActiveSheetIndex()))
}

func TestRender(t *testing.T) {
	data, err := Render(CSV, sampleExpenses())
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(data, []byte("id,date")))

	data, err = Render(XLSX, sampleExpenses())
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(data, []byte("PK")), "xlsx is a zip archive")

	_, err = Render(Format("pdf"), nil)
	assert.ErrorIs(t, err, ErrUnknownFormat)
}
