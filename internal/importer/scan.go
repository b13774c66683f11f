package importer

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/cleared-dev/parsemoney/internal/model"
)

// Discover returns the paths of the statement files directly inside dir,
// sorted by name. The .csv extension matches in any case; subdirectories,
// such as earlier backups, are not entered.
func Discover(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("reading input dir: %w", err)
	}

	var paths []string
	for _, e := range entries {
		if e.IsDir() || !strings.EqualFold(filepath.Ext(e.Name()), ".csv") {
			continue
		}
		paths = append(paths, filepath.Join(dir, e.Name()))
	}
	return paths, nil
}

// ReadSource loads a statement file.
func ReadSource(path string) (model.SourceFile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return model.SourceFile{}, fmt.Errorf("reading %s: %w", path, err)
	}
	return model.SourceFile{Path: path, Content: data}, nil
}
