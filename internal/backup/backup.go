// Package backup archives statement files into dated local directories.
package backup

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/cespare/xxhash/v2"
	"github.com/charmbracelet/log"
	"github.com/google/uuid"

	"github.com/cleared-dev/parsemoney/internal/model"
)

// dirLayout names the per-day backup directory, e.g. backup_2025.01.31.
const dirLayout = "backup_2006.01.02"

// Writer copies source files into <root>/backup_YYYY.MM.DD and records each
// copy in the directory's manifest.
type Writer struct {
	root   string
	now    func() time.Time
	logger *log.Logger
	runID  string
}

// Option configures a Writer.
type Option func(*Writer)

// WithClock overrides the time source used for directory names and
// manifest timestamps.
func WithClock(now func() time.Time) Option {
	return func(w *Writer) { w.now = now }
}

// NewWriter creates a Writer rooted at root. A nil logger discards output.
func NewWriter(root string, logger *log.Logger, opts ...Option) *Writer {
	if logger == nil {
		logger = log.New(io.Discard)
	}
	w := &Writer{
		root:   root,
		now:    time.Now,
		logger: logger,
		runID:  uuid.NewString(),
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// RunID identifies this writer's entries in the manifest.
func (w *Writer) RunID() string { return w.runID }

// Dir returns today's backup directory.
func (w *Writer) Dir() string {
	return filepath.Join(w.root, w.now().Format(dirLayout))
}

// Checksum returns the hex xxhash64 of content.
func Checksum(content []byte) string {
	return fmt.Sprintf("%016x", xxhash.Sum64(content))
}

// Backup writes the exact bytes of src into the backup directory under its
// base name. A copy with the same checksum already there is left alone.
func (w *Writer) Backup(src model.SourceFile) (Entry, error) {
	dir := w.Dir()
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return Entry{}, fmt.Errorf("creating backup dir: %w", err)
	}

	name := filepath.Base(src.Path)
	dst := filepath.Join(dir, name)
	e := Entry{
		Timestamp: w.now().UTC().Truncate(time.Second),
		RunID:     w.runID,
		File:      name,
		Checksum:  Checksum(src.Content),
		Size:      int64(len(src.Content)),
		Action:    ActionCopied,
	}

	if existing, err := os.ReadFile(dst); err == nil && Checksum(existing) == e.Checksum {
		e.Action = ActionUnchanged
	} else if err := os.WriteFile(dst, src.Content, 0o644); err != nil {
		return Entry{}, fmt.Errorf("copying %s: %w", src.Path, err)
	}

	if err := AppendManifest(dir, []Entry{e}); err != nil {
		return Entry{}, fmt.Errorf("updating manifest: %w", err)
	}
	w.logger.Info("backed up", "file", src.Path, "dest", dst, "action", e.Action)
	return e, nil
}
