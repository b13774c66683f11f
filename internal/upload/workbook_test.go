package upload

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/cleared-dev/parsemoney/internal/config"
	"github.com/cleared-dev/parsemoney/internal/model"
	"github.com/cleared-dev/parsemoney/internal/table"
)

func workbookConfig(t *testing.T) config.UploadConfig {
	t.Helper()
	cfg := config.Default().Upload
	cfg.Target = TargetXLSX
	cfg.Workbook = filepath.Join(t.TempDir(), "money.xlsx")
	return cfg
}

func column(t *testing.T, path, sheet string, col, n int) []string {
	t.Helper()
	f, err := excelize.OpenFile(path)
	require.NoError(t, err)
	defer f.Close()

	var out []string
	for i := 1; i <= n; i++ {
		cell, err := excelize.CoordinatesToCellName(col, i)
		require.NoError(t, err)
		v, err := f.GetCellValue(sheet, cell)
		require.NoError(t, err)
		out = append(out, v)
	}
	return out
}

func TestWorkbook_CreatesFile(t *testing.T) {
	cfg := workbookConfig(t)
	w, err := NewWorkbook(cfg, nil)
	require.NoError(t, err)
	require.NoError(t, w.Upload(context.Background(), testTable()))

	f, err := excelize.OpenFile(cfg.Workbook)
	require.NoError(t, err)
	defer f.Close()

	assert.Equal(t, []string{"upload"}, f.GetSheetList())
	rows, err := f.GetRows("upload")
	require.NoError(t, err)
	require.Len(t, rows, 4)
	assert.Equal(t, []string{"Date", "Money", "Description"}, rows[0])
	assert.Equal(t, "GITHUB", rows[1][2])
	assert.Equal(t, "ACME", rows[3][2])

	date, err := f.GetCellValue("upload", "A2")
	require.NoError(t, err)
	assert.Equal(t, "2025-01-03", date)

	raw, err := f.GetCellValue("upload", "B3", excelize.Options{RawCellValue: true})
	require.NoError(t, err)
	assert.Equal(t, "-12.75", raw)
}

func TestWorkbook_DailyFormulas(t *testing.T) {
	cfg := workbookConfig(t)
	cfg.Layout = "daily"
	w, err := NewWorkbook(cfg, nil)
	require.NoError(t, err)
	require.NoError(t, w.Upload(context.Background(), testTable()))

	f, err := excelize.OpenFile(cfg.Workbook)
	require.NoError(t, err)
	defer f.Close()

	formula, err := f.GetCellFormula("upload", "B2")
	require.NoError(t, err)
	assert.Equal(t, "-4.00+-12.75", formula)

	empty, err := f.GetCellFormula("upload", "B3")
	require.NoError(t, err)
	assert.Empty(t, empty)

	assert.Equal(t, []string{"Description", "GITHUB; USPS", "", "ACME"}, column(t, cfg.Workbook, "upload", 3, 4))
}

func TestWorkbook_ReplacesSheetKeepsOthers(t *testing.T) {
	cfg := workbookConfig(t)

	f := excelize.NewFile()
	require.NoError(t, f.SetCellStr("Sheet1", "A1", "keep me"))
	_, err := f.NewSheet("upload")
	require.NoError(t, err)
	for i := 1; i <= 10; i++ {
		cell, _ := excelize.CoordinatesToCellName(3, i)
		require.NoError(t, f.SetCellStr("upload", cell, "stale"))
	}
	require.NoError(t, f.SaveAs(cfg.Workbook))
	require.NoError(t, f.Close())

	w, err := NewWorkbook(cfg, nil)
	require.NoError(t, err)
	small := table.Merge([]model.Record{rec(3, "-4", "GITHUB")})
	require.NoError(t, w.Upload(context.Background(), small))

	f, err = excelize.OpenFile(cfg.Workbook)
	require.NoError(t, err)
	defer f.Close()

	kept, err := f.GetCellValue("Sheet1", "A1")
	require.NoError(t, err)
	assert.Equal(t, "keep me", kept)

	rows, err := f.GetRows("upload")
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, "GITHUB", rows[1][2])
}

func TestWorkbook_AddsMissingSheet(t *testing.T) {
	cfg := workbookConfig(t)
	f := excelize.NewFile()
	require.NoError(t, f.SaveAs(cfg.Workbook))
	require.NoError(t, f.Close())

	w, err := NewWorkbook(cfg, nil)
	require.NoError(t, err)
	require.NoError(t, w.Upload(context.Background(), testTable()))

	f, err = excelize.OpenFile(cfg.Workbook)
	require.NoError(t, err)
	defer f.Close()
	assert.Equal(t, []string{"Sheet1", "upload"}, f.GetSheetList())
}

func TestWorkbook_CancelledContext(t *testing.T) {
	w, err := NewWorkbook(workbookConfig(t), nil)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, w.Upload(ctx, testTable()), context.Canceled)
}

func TestNewWorkbook_Validation(t *testing.T) {
	cfg := workbookConfig(t)
	cfg.Workbook = ""
	_, err := NewWorkbook(cfg, nil)
	assert.ErrorContains(t, err, "workbook path is required")
}
