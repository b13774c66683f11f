package commands

import (
	"fmt"
	"io"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/cleared-dev/parsemoney/internal/pipeline"
)

func runImport(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	flags := cmd.Flags()
	if flags.Changed("sort") {
		cfg.Output.Sort, _ = flags.GetBool("sort")
	}
	if skip, _ := flags.GetBool("no-backup"); skip {
		cfg.Backup.Enabled = false
	}
	if skip, _ := flags.GetBool("no-upload"); skip {
		cfg.Upload.Enabled = false
	}

	logger, err := newLogger(cmd, cfg.Log.Level)
	if err != nil {
		return err
	}

	rep, err := pipeline.Run(cmd.Context(), pipeline.Options{Files: args, Config: cfg}, logger)
	if err != nil {
		return err
	}

	printReport(cmd.OutOrStdout(), rep)
	return rep.Err()
}

func printReport(w io.Writer, rep *pipeline.Report) {
	for _, f := range rep.Files {
		name := filepath.Base(f.Path)
		if f.Err != nil {
			fmt.Fprintf(w, "%-28s FAILED: %v\n", name, f.Err)
			continue
		}
		fmt.Fprintf(w, "%-28s %-16s %d records", name, f.Format, f.Records)
		if f.Skipped > 0 {
			fmt.Fprintf(w, ", %d skipped", f.Skipped)
		}
		if f.Filtered > 0 {
			fmt.Fprintf(w, ", %d filtered", f.Filtered)
		}
		fmt.Fprintln(w)
	}

	fmt.Fprintf(w, "Wrote %d rows to %s", rep.Table.Len(), rep.TablePath)
	if n := rep.Table.Duplicates(); n > 0 {
		fmt.Fprintf(w, " (%d duplicates dropped)", n)
	}
	fmt.Fprintln(w)

	if len(rep.Backups) > 0 {
		fmt.Fprintf(w, "Backed up %d files\n", len(rep.Backups))
	}
	if rep.Uploaded {
		fmt.Fprintln(w, "Uploaded table")
	}
}
