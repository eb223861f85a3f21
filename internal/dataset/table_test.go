package dataset

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

func TestNewTable(t *testing.T) {
	tests := []struct {
		name    string
		columns []string
		rows    [][]any
		wantErr string
	}{
		{
			name:    "valid table",
			columns: []string{"a", "b"},
			rows:    [][]any{{"1", "2"}, {"3", "4"}},
		},
		{
			name:    "no columns",
			columns: nil,
			wantErr: "no columns",
		},
		{
			name:    "duplicate column",
			columns: []string{"a", "a"},
			wantErr: "duplicate column",
		},
		{
			name:    "empty column name",
			columns: []string{"a", "  "},
			wantErr: "empty column name",
		},
		{
			name:    "ragged row",
			columns: []string{"a", "b"},
			rows:    [][]any{{"1"}},
			wantErr: "expected 2",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tbl, err := NewTable(tt.columns, tt.rows)
			if tt.wantErr != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, len(tt.rows), tbl.Len())
		})
	}
}

func TestTable_Column(t *testing.T) {
	tbl, err := NewTable([]string{"city", "salary"}, [][]any{
		{"Seattle", "100"},
		{"Austin", "90"},
	})
	require.NoError(t, err)

	cities, err := tbl.Column("city")
	require.NoError(t, err)
	assert.Equal(t, []any{"Seattle", "Austin"}, cities)

	_, err = tbl.Column("missing")
	assert.Error(t, err)
}

func TestTable_Floats(t *testing.T) {
	tbl, err := NewTable([]string{"salary", "level"}, [][]any{
		{"120,000", "E3"},
		{"95000.5", "E4"},
	})
	require.NoError(t, err)

	got, err := tbl.Floats("salary")
	require.NoError(t, err)
	assert.Equal(t, []float64{120000, 95000.5}, got)

	_, err = tbl.Floats("level")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not a number")
}

func TestTable_Select(t *testing.T) {
	tbl, err := NewTable([]string{"x"}, [][]any{{"1"}, {"2"}, {"3"}})
	require.NoError(t, err)

	kept, err := tbl.Select([]bool{true, false, true})
	require.NoError(t, err)
	assert.Equal(t, 2, kept.Len())

	col, err := kept.Column("x")
	require.NoError(t, err)
	assert.Equal(t, []any{"1", "3"}, col)

	_, err = tbl.Select([]bool{true})
	assert.Error(t, err)
}

func TestLoadCSV(t *testing.T) {
	path := filepath.Join(t.TempDir(), "data.csv")
	content := "level,salary\nE3,100000\nE4,130000\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	tbl, err := LoadCSV(path)
	require.NoError(t, err)
	assert.Equal(t, 2, tbl.Len())
	assert.Equal(t, []string{"level", "salary"}, tbl.Columns())

	salaries, err := tbl.Floats("salary")
	require.NoError(t, err)
	assert.Equal(t, []float64{100000, 130000}, salaries)
}

func TestLoadCSV_Missing(t *testing.T) {
	_, err := LoadCSV(filepath.Join(t.TempDir(), "nope.csv"))
	assert.Error(t, err)
}

func TestLoadXLSX(t *testing.T) {
	path := filepath.Join(t.TempDir(), "data.xlsx")

	f := excelize.NewFile()
	require.NoError(t, f.SetSheetRow("Sheet1", "A1", &[]any{"level", "salary"}))
	require.NoError(t, f.SetSheetRow("Sheet1", "A2", &[]any{"E3", 100000}))
	require.NoError(t, f.SetSheetRow("Sheet1", "A3", &[]any{"E4", 130000}))
	require.NoError(t, f.SaveAs(path))

	tbl, err := LoadXLSX(path)
	require.NoError(t, err)
	assert.Equal(t, 2, tbl.Len())

	salaries, err := tbl.Floats("salary")
	require.NoError(t, err)
	assert.Equal(t, []float64{100000, 130000}, salaries)
}

func TestLoad_UnsupportedExtension(t *testing.T) {
	_, err := Load("data.parquet")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported dataset format")
}
