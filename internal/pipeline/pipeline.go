// Package pipeline runs one import: discover, parse, merge, write, back up
// and upload.
package pipeline

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/charmbracelet/log"

	"github.com/cleared-dev/parsemoney/internal/backup"
	"github.com/cleared-dev/parsemoney/internal/config"
	"github.com/cleared-dev/parsemoney/internal/importer"
	"github.com/cleared-dev/parsemoney/internal/model"
	"github.com/cleared-dev/parsemoney/internal/table"
	"github.com/cleared-dev/parsemoney/internal/upload"
)

// SnapshotFile is written next to the table when snapshots are enabled.
const SnapshotFile = "snapshot.txt"

// Options configures a Run.
type Options struct {
	Files    []string // explicit inputs; when empty, *.csv in Config.Input.Dir
	Config   *config.Config
	Uploader upload.Uploader // nil builds one from Config.Upload
	Now      func() time.Time
}

// FileReport is the outcome for one input file.
type FileReport struct {
	Path     string
	Format   string
	Records  int // records added to the table
	Skipped  int
	Filtered int
	Err      error
}

// Report summarizes a Run.
type Report struct {
	Files        []FileReport
	Table        *table.Table
	TablePath    string
	SnapshotPath string
	Backups      []backup.Entry
	BackupErr    error
	UploadErr    error
	Uploaded     bool
}

// Failures returns the files that contributed nothing because they failed.
func (r *Report) Failures() []FileReport {
	var out []FileReport
	for _, f := range r.Files {
		if f.Err != nil {
			out = append(out, f)
		}
	}
	return out
}

// Err joins file, backup and upload failures. The local table was written
// regardless.
func (r *Report) Err() error {
	var errs []error
	for _, f := range r.Failures() {
		errs = append(errs, fmt.Errorf("%s: %w", f.Path, f.Err))
	}
	if r.BackupErr != nil {
		errs = append(errs, fmt.Errorf("backup: %w", r.BackupErr))
	}
	if r.UploadErr != nil {
		errs = append(errs, fmt.Errorf("upload: %w", r.UploadErr))
	}
	return errors.Join(errs...)
}

// Run executes one import. The returned error is set only when nothing
// useful could be produced: bad configuration, a missing named input, or an
// unwritable table. Per-file, backup and upload failures land in the Report.
func Run(ctx context.Context, opts Options, logger *log.Logger) (*Report, error) {
	if logger == nil {
		logger = log.New(io.Discard)
	}
	cfg := opts.Config
	if cfg == nil {
		cfg = config.Default()
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}

	reg := importer.DefaultRegistry()
	if err := importer.RegisterFormats(reg, cfg.Formats); err != nil {
		return nil, err
	}
	sign, err := importer.ParseAmountStyle(cfg.Input.GenericSign)
	if err != nil {
		return nil, fmt.Errorf("input.generic_sign: %w", err)
	}
	if sign == importer.AmountSplit {
		return nil, fmt.Errorf("input.generic_sign: split is not a sign rule")
	}

	sources, err := loadSources(opts.Files, cfg, logger)
	if err != nil {
		return nil, err
	}

	parser := importer.NewParser(logger,
		importer.WithFilters(cfg.Filters),
		importer.WithEncoding(cfg.Input.Encoding),
		importer.WithGenericSign(sign),
	)
	det := importer.NewDetector(reg)

	rep := &Report{Table: table.New(), TablePath: cfg.Output.Table}
	for _, src := range sources {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		fr := FileReport{Path: src.Path}
		res, err := parser.ParseFile(src, det)
		if err != nil {
			logger.Error("skipping file", "file", src.Path, "err", err)
			fr.Err = err
			rep.Files = append(rep.Files, fr)
			continue
		}
		fr.Format = res.Format
		fr.Records = rep.Table.Add(res.Records...)
		fr.Skipped = len(res.Skipped)
		fr.Filtered = res.Filtered
		rep.Files = append(rep.Files, fr)
		logger.Info("parsed", "file", src.Path, "format", res.Format,
			"records", len(res.Records), "added", fr.Records, "skipped", fr.Skipped, "filtered", fr.Filtered)
	}

	if cfg.Output.Sort {
		rep.Table.SortByDate()
	}
	if span := rep.Table.Span(); span > table.MaxFilledDays {
		logger.Warn("dates span too many days, listing only days with records", "days", span)
	}
	if err := table.SaveFile(cfg.Output.Table, rep.Table); err != nil {
		return nil, err
	}
	logger.Info("wrote table", "file", cfg.Output.Table, "rows", rep.Table.Len(), "duplicates", rep.Table.Duplicates())

	var snapshot *model.SourceFile
	if cfg.Output.Snapshot {
		s, err := writeSnapshot(filepath.Dir(cfg.Output.Table), rep.Table)
		if err != nil {
			return nil, err
		}
		snapshot = &s
		rep.SnapshotPath = s.Path
	}

	if cfg.Backup.Enabled {
		rep.Backups, rep.BackupErr = runBackup(cfg.Backup.Dir, sources, snapshot, now, logger)
	}

	if cfg.Upload.Enabled {
		rep.Uploaded, rep.UploadErr = runUpload(ctx, opts.Uploader, cfg.Upload, rep.Table, logger)
	}

	return rep, nil
}

func loadSources(files []string, cfg *config.Config, logger *log.Logger) ([]model.SourceFile, error) {
	if len(files) > 0 {
		sources := make([]model.SourceFile, 0, len(files))
		for _, path := range files {
			src, err := importer.ReadSource(path)
			if err != nil {
				return nil, err
			}
			sources = append(sources, src)
		}
		return sources, nil
	}

	found, err := importer.Discover(cfg.Input.Dir)
	if err != nil {
		return nil, err
	}
	var sources []model.SourceFile
	for _, path := range found {
		if samePath(path, cfg.Output.Table) {
			continue
		}
		src, err := importer.ReadSource(path)
		if err != nil {
			return nil, err
		}
		sources = append(sources, src)
	}
	if len(sources) == 0 {
		logger.Warn("no statement files found", "dir", cfg.Input.Dir)
	}
	return sources, nil
}

func samePath(a, b string) bool {
	absA, errA := filepath.Abs(a)
	absB, errB := filepath.Abs(b)
	if errA != nil || errB != nil {
		return filepath.Clean(a) == filepath.Clean(b)
	}
	return absA == absB
}

func writeSnapshot(dir string, t *table.Table) (model.SourceFile, error) {
	var buf bytes.Buffer
	if err := table.WriteSnapshot(&buf, t.Days()); err != nil {
		return model.SourceFile{}, err
	}
	path := filepath.Join(dir, SnapshotFile)
	if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil {
		return model.SourceFile{}, fmt.Errorf("writing snapshot: %w", err)
	}
	return model.SourceFile{Path: path, Content: buf.Bytes()}, nil
}

func runBackup(root string, sources []model.SourceFile, snapshot *model.SourceFile, now func() time.Time, logger *log.Logger) ([]backup.Entry, error) {
	w := backup.NewWriter(root, logger, backup.WithClock(now))
	all := sources
	if snapshot != nil {
		all = append(append([]model.SourceFile(nil), sources...), *snapshot)
	}

	var entries []backup.Entry
	var errs []error
	for _, src := range all {
		e, err := w.Backup(src)
		if err != nil {
			logger.Error("backup failed", "file", src.Path, "err", err)
			errs = append(errs, err)
			continue
		}
		entries = append(entries, e)
	}
	return entries, errors.Join(errs...)
}

func runUpload(ctx context.Context, u upload.Uploader, cfg config.UploadConfig, t *table.Table, logger *log.Logger) (bool, error) {
	if t.Len() == 0 {
		logger.Warn("nothing to upload, leaving the sheet unchanged")
		return false, nil
	}
	if u == nil {
		var err error
		if u, err = upload.New(ctx, cfg, logger); err != nil {
			logger.Error("upload failed", "err", err)
			return false, err
		}
	}
	if err := u.Upload(ctx, t); err != nil {
		logger.Error("upload failed", "err", err)
		return false, err
	}
	return true, nil
}
