package pipeline

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/charmbracelet/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cleared-dev/parsemoney/internal/backup"
	"github.com/cleared-dev/parsemoney/internal/config"
	"github.com/cleared-dev/parsemoney/internal/importer"
	"github.com/cleared-dev/parsemoney/internal/table"
)

var testTime = time.Date(2025, 2, 14, 9, 0, 0, 0, time.UTC)

func clock() time.Time { return testTime }

type fakeUploader struct {
	calls int
	rows  int
	err   error
}

func (f *fakeUploader) Upload(_ context.Context, t *table.Table) error {
	f.calls++
	f.rows = t.Len()
	return f.err
}

func copyFixtures(t *testing.T, dir string, names ...string) {
	t.Helper()
	for _, name := range names {
		data, err := os.ReadFile(filepath.Join("..", "..", "testdata", name))
		require.NoError(t, err)
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), data, 0o644))
	}
}

func testConfig(dir string) *config.Config {
	cfg := config.Default()
	cfg.Input.Dir = dir
	cfg.Output.Table = filepath.Join(dir, "statement.csv")
	cfg.Backup.Dir = dir
	cfg.Backup.Enabled = false
	cfg.Upload.Enabled = false
	return cfg
}

func readTable(t *testing.T, path string) []string {
	t.Helper()
	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()
	recs, err := table.ReadTable(f)
	require.NoError(t, err)
	var out []string
	for _, r := range recs {
		out = append(out, r.Description)
	}
	return out
}

func TestRun_OverlappingFilesMergeOnce(t *testing.T) {
	dir := t.TempDir()
	copyFixtures(t, dir, "chase_checking.csv", "chase_checking_feb.csv")

	rep, err := Run(context.Background(), Options{Config: testConfig(dir), Now: clock}, nil)
	require.NoError(t, err)
	require.NoError(t, rep.Err())

	require.Len(t, rep.Files, 2)
	assert.Equal(t, 6, rep.Files[0].Records)
	assert.Equal(t, 2, rep.Files[1].Records, "the overlapping GOOGLE line is dropped")
	assert.Equal(t, 1, rep.Files[1].Skipped)
	assert.Equal(t, 8, rep.Table.Len())
	assert.Equal(t, 1, rep.Table.Duplicates())

	descs := readTable(t, filepath.Join(dir, "statement.csv"))
	count := 0
	for _, d := range descs {
		if d == "GOOGLE *WORKSPACE" {
			count++
		}
	}
	assert.Equal(t, 1, count)
	assert.Equal(t, "GITHUB *PRO SUBSCRIPTION", descs[0])
	assert.Equal(t, "CITY PARKING", descs[len(descs)-1])
}

func TestRun_TableFileExcludedFromDiscovery(t *testing.T) {
	dir := t.TempDir()
	copyFixtures(t, dir, "chase_checking.csv")
	cfg := testConfig(dir)

	_, err := Run(context.Background(), Options{Config: cfg, Now: clock}, nil)
	require.NoError(t, err)
	rep, err := Run(context.Background(), Options{Config: cfg, Now: clock}, nil)
	require.NoError(t, err)

	require.Len(t, rep.Files, 1)
	assert.Equal(t, filepath.Join(dir, "chase_checking.csv"), rep.Files[0].Path)
}

func TestRun_Idempotent(t *testing.T) {
	dir := t.TempDir()
	copyFixtures(t, dir, "capital_one.csv", "discover.csv", "bank_of_america.csv")
	cfg := testConfig(dir)

	first, err := Run(context.Background(), Options{Config: cfg, Now: clock}, nil)
	require.NoError(t, err)
	second, err := Run(context.Background(), Options{Config: cfg, Now: clock}, nil)
	require.NoError(t, err)

	assert.Equal(t, first.Table.Records(), second.Table.Records())
}

func TestRun_UnrecognizedFileReported(t *testing.T) {
	dir := t.TempDir()
	copyFixtures(t, dir, "chase_checking.csv", "unknown.csv")
	var logs bytes.Buffer

	rep, err := Run(context.Background(), Options{Config: testConfig(dir), Now: clock}, log.New(&logs))
	require.NoError(t, err)

	failures := rep.Failures()
	require.Len(t, failures, 1)
	assert.Equal(t, filepath.Join(dir, "unknown.csv"), failures[0].Path)
	assert.ErrorIs(t, failures[0].Err, importer.ErrUnrecognizedFormat)
	assert.Equal(t, 0, failures[0].Records)

	assert.Equal(t, 6, rep.Table.Len())
	assert.ErrorIs(t, rep.Err(), importer.ErrUnrecognizedFormat)
	assert.Contains(t, logs.String(), "skipping file")
	assert.FileExists(t, filepath.Join(dir, "statement.csv"))
}

func TestRun_NamedFiles(t *testing.T) {
	dir := t.TempDir()
	copyFixtures(t, dir, "chase_checking.csv", "discover.csv")
	cfg := testConfig(dir)

	rep, err := Run(context.Background(), Options{
		Files:  []string{filepath.Join(dir, "discover.csv")},
		Config: cfg,
		Now:    clock,
	}, nil)
	require.NoError(t, err)
	require.Len(t, rep.Files, 1)
	assert.Equal(t, "discover", rep.Files[0].Format)
	assert.Equal(t, 1, rep.Files[0].Filtered)
}

func TestRun_MissingNamedFileFailsFirst(t *testing.T) {
	dir := t.TempDir()
	copyFixtures(t, dir, "chase_checking.csv")

	_, err := Run(context.Background(), Options{
		Files:  []string{filepath.Join(dir, "chase_checking.csv"), filepath.Join(dir, "missing.csv")},
		Config: testConfig(dir),
	}, nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, os.ErrNotExist)
	assert.NoFileExists(t, filepath.Join(dir, "statement.csv"))
}

func TestRun_SnapshotAndBackup(t *testing.T) {
	dir := t.TempDir()
	archive := filepath.Join(dir, "archive")
	copyFixtures(t, dir, "chase_checking.csv")
	cfg := testConfig(dir)
	cfg.Backup.Enabled = true
	cfg.Backup.Dir = archive

	rep, err := Run(context.Background(), Options{Config: cfg, Now: clock}, nil)
	require.NoError(t, err)
	require.NoError(t, rep.BackupErr)

	snapshot, err := os.ReadFile(filepath.Join(dir, SnapshotFile))
	require.NoError(t, err)
	assert.Contains(t, string(snapshot), "2025-01-03  : -4.00; GITHUB *PRO SUBSCRIPTION\n")
	assert.Contains(t, string(snapshot), "2025-01-04  : ; \n")

	backupDir := filepath.Join(archive, "backup_2025.02.14")
	original, err := os.ReadFile(filepath.Join(dir, "chase_checking.csv"))
	require.NoError(t, err)
	copied, err := os.ReadFile(filepath.Join(backupDir, "chase_checking.csv"))
	require.NoError(t, err)
	assert.Equal(t, original, copied)
	assert.FileExists(t, filepath.Join(backupDir, SnapshotFile))

	entries, err := backup.ReadManifest(backupDir)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Len(t, rep.Backups, 2)
}

func TestRun_NoSnapshot(t *testing.T) {
	dir := t.TempDir()
	copyFixtures(t, dir, "chase_checking.csv")
	cfg := testConfig(dir)
	cfg.Output.Snapshot = false

	rep, err := Run(context.Background(), Options{Config: cfg, Now: clock}, nil)
	require.NoError(t, err)
	assert.Empty(t, rep.SnapshotPath)
	assert.NoFileExists(t, filepath.Join(dir, SnapshotFile))
}

func TestRun_BackupFailureKeepsTable(t *testing.T) {
	dir := t.TempDir()
	copyFixtures(t, dir, "chase_checking.csv")
	blocker := filepath.Join(dir, "blocker")
	require.NoError(t, os.WriteFile(blocker, []byte("x"), 0o644))

	cfg := testConfig(dir)
	cfg.Backup.Enabled = true
	cfg.Backup.Dir = blocker

	rep, err := Run(context.Background(), Options{Config: cfg, Now: clock}, nil)
	require.NoError(t, err)
	assert.Error(t, rep.BackupErr)
	assert.ErrorContains(t, rep.Err(), "backup")
	assert.Len(t, readTable(t, filepath.Join(dir, "statement.csv")), 6)
}

func TestRun_Upload(t *testing.T) {
	dir := t.TempDir()
	copyFixtures(t, dir, "chase_checking.csv")
	cfg := testConfig(dir)
	cfg.Upload.Enabled = true
	up := &fakeUploader{}

	rep, err := Run(context.Background(), Options{Config: cfg, Uploader: up, Now: clock}, nil)
	require.NoError(t, err)
	assert.True(t, rep.Uploaded)
	assert.Equal(t, 1, up.calls)
	assert.Equal(t, 6, up.rows)
}

func TestRun_UploadFailureKeepsTable(t *testing.T) {
	dir := t.TempDir()
	copyFixtures(t, dir, "chase_checking.csv")
	cfg := testConfig(dir)
	cfg.Upload.Enabled = true
	up := &fakeUploader{err: errors.New("permission denied")}

	rep, err := Run(context.Background(), Options{Config: cfg, Uploader: up, Now: clock}, nil)
	require.NoError(t, err)
	assert.False(t, rep.Uploaded)
	assert.ErrorContains(t, rep.UploadErr, "permission denied")
	assert.ErrorContains(t, rep.Err(), "upload: permission denied")
	assert.Len(t, readTable(t, filepath.Join(dir, "statement.csv")), 6)
}

func TestRun_EmptyTableSkipsUpload(t *testing.T) {
	dir := t.TempDir()
	copyFixtures(t, dir, "unknown.csv")
	cfg := testConfig(dir)
	cfg.Upload.Enabled = true
	up := &fakeUploader{}

	rep, err := Run(context.Background(), Options{Config: cfg, Uploader: up, Now: clock}, nil)
	require.NoError(t, err)
	assert.Equal(t, 0, up.calls)
	assert.False(t, rep.Uploaded)
	assert.Equal(t, 0, rep.Table.Len())
}

func TestRun_UploadToWorkbook(t *testing.T) {
	dir := t.TempDir()
	copyFixtures(t, dir, "capital_one.csv")
	cfg := testConfig(dir)
	cfg.Upload.Enabled = true
	cfg.Upload.Target = "xlsx"
	cfg.Upload.Workbook = filepath.Join(dir, "money.xlsx")

	rep, err := Run(context.Background(), Options{Config: cfg, Now: clock}, nil)
	require.NoError(t, err)
	require.NoError(t, rep.UploadErr)
	assert.True(t, rep.Uploaded)
	assert.FileExists(t, cfg.Upload.Workbook)
}

func TestRun_CustomFormat(t *testing.T) {
	dir := t.TempDir()
	content := "Bokføringsdato;Tekst;Beløb\n03-01-2025;Netto;-1.234,50\n"
	require.NoError(t, os.WriteFile(filepath.Join(dir, "nordea.csv"), []byte(content), 0o644))

	cfg := testConfig(dir)
	cfg.Formats = []config.FormatConfig{{
		Name:         "nordea",
		Header:       []string{"Bokføringsdato", "Tekst", "Beløb"},
		Delimiter:    ";",
		DateLayouts:  []string{"02-01-2006"},
		Date:         "Bokføringsdato",
		Description:  "Tekst",
		Amount:       "Beløb",
		DecimalComma: true,
	}}

	rep, err := Run(context.Background(), Options{Config: cfg, Now: clock}, nil)
	require.NoError(t, err)
	require.Len(t, rep.Files, 1)
	assert.Equal(t, "nordea", rep.Files[0].Format)
	assert.Equal(t, "-1234.50", rep.Table.Records()[0].Amount.StringFixed(2))
}

func TestRun_ConfigErrors(t *testing.T) {
	dir := t.TempDir()

	cfg := testConfig(dir)
	cfg.Input.GenericSign = "sideways"
	_, err := Run(context.Background(), Options{Config: cfg}, nil)
	assert.ErrorContains(t, err, "input.generic_sign")

	cfg = testConfig(dir)
	cfg.Input.GenericSign = "split"
	_, err = Run(context.Background(), Options{Config: cfg}, nil)
	assert.ErrorContains(t, err, "not a sign rule")

	cfg = testConfig(dir)
	cfg.Formats = []config.FormatConfig{{Name: "broken"}}
	_, err = Run(context.Background(), Options{Config: cfg}, nil)
	assert.ErrorContains(t, err, "header is required")
}

func TestRun_MissingInputDir(t *testing.T) {
	cfg := testConfig(filepath.Join(t.TempDir(), "nope"))
	_, err := Run(context.Background(), Options{Config: cfg}, nil)
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestRun_Cancelled(t *testing.T) {
	dir := t.TempDir()
	copyFixtures(t, dir, "chase_checking.csv")
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := Run(ctx, Options{Config: testConfig(dir)}, nil)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestRun_HeaderOnlyExportIsNotAFailure(t *testing.T) {
	dir := t.TempDir()
	copyFixtures(t, dir, "chase_checking.csv")
	header := "Details,Posting Date,Description,Amount,Type,Balance,Check or Slip #\n"
	require.NoError(t, os.WriteFile(filepath.Join(dir, "chase_march.csv"), []byte(header), 0o644))

	rep, err := Run(context.Background(), Options{Config: testConfig(dir), Now: clock}, nil)
	require.NoError(t, err)
	require.Len(t, rep.Files, 2)
	assert.Empty(t, rep.Failures())
	assert.NoError(t, rep.Err())
	assert.Equal(t, 6, rep.Table.Len())
}

func TestRun_MistypedYearWarns(t *testing.T) {
	dir := t.TempDir()
	content := "Date,Description,Amount\n2025-01-03,Coffee,-3.50\n0025-01-04,Typo,-1.00\n"
	require.NoError(t, os.WriteFile(filepath.Join(dir, "bank.csv"), []byte(content), 0o644))
	var logs bytes.Buffer

	rep, err := Run(context.Background(), Options{Config: testConfig(dir), Now: clock}, log.New(&logs))
	require.NoError(t, err)
	assert.Equal(t, 2, rep.Table.Len())
	assert.Contains(t, logs.String(), "dates span too many days")

	snapshot, err := os.ReadFile(rep.SnapshotPath)
	require.NoError(t, err)
	assert.Equal(t, 2, bytes.Count(snapshot, []byte("\n")))
}
