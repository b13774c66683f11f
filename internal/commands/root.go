package commands

import (
	"fmt"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"

	"github.com/cleared-dev/parsemoney/internal/buildinfo"
	"github.com/cleared-dev/parsemoney/internal/config"
	"github.com/cleared-dev/parsemoney/internal/importer"
)

// NewRootCommand creates the root CLI command with all subcommands registered.
// Run without a subcommand it imports statements.
func NewRootCommand() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "parsemoney [files...]",
		Short: "Normalize bank statement CSVs into one table",
		Long: `parsemoney reads bank statement CSV exports, detects each bank's layout,
merges the transactions into one deduplicated date/amount/description table,
archives the inputs and uploads the table to a spreadsheet.

With no files, every *.csv in --dir is imported.`,
		Version: fmt.Sprintf("%s (commit: %s, built: %s)", buildinfo.Version, buildinfo.Commit, buildinfo.Date),
		CompletionOptions: cobra.CompletionOptions{
			DisableDefaultCmd: true,
		},
		SilenceUsage: true,
		RunE:         runImport,
	}

	pf := rootCmd.PersistentFlags()
	pf.String("config", config.FileName, "config file")
	pf.String("log-level", "", "log level: debug, info, warn, error (default from config)")

	f := rootCmd.Flags()
	f.String("dir", "", "directory scanned for *.csv when no files are given")
	f.StringP("output", "o", "", "table CSV to write")
	f.Bool("sort", true, "sort the table by date")
	f.Bool("no-backup", false, "skip the local backup")
	f.Bool("no-upload", false, "skip the spreadsheet upload")
	f.String("backup-dir", "", "directory holding backup_YYYY.MM.DD folders")

	// Upload settings are shared with the upload subcommand.
	pf.String("target", "", "upload target: gsheets or xlsx")
	pf.String("spreadsheet-name", "", "Google spreadsheet name")
	pf.String("spreadsheet-id", "", "Google spreadsheet ID (skips the lookup by name)")
	pf.String("sheet-name", "", "sheet to overwrite")
	pf.String("credentials", "", "service account key JSON")
	pf.String("workbook", "", "xlsx workbook path")
	pf.String("layout", "", "upload layout: rows or daily")

	rootCmd.AddCommand(newInitCommand())
	rootCmd.AddCommand(newFormatsCommand())
	rootCmd.AddCommand(newDetectCommand())
	rootCmd.AddCommand(newUploadCommand())

	return rootCmd
}

// loadConfig reads .env, the config file and the environment, then applies
// flags the user set. A missing config file is only an error when --config
// was given explicitly.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	if err := config.LoadEnv(); err != nil {
		return nil, err
	}

	path, _ := cmd.Flags().GetString("config")
	var cfg *config.Config
	var err error
	if cmd.Flags().Changed("config") {
		cfg, err = config.Load(path)
	} else {
		cfg, err = config.LoadOrDefault(path)
	}
	if err != nil {
		return nil, err
	}
	cfg.ApplyEnv()

	overrides := []struct {
		flag string
		dst  *string
	}{
		{"log-level", &cfg.Log.Level},
		{"dir", &cfg.Input.Dir},
		{"output", &cfg.Output.Table},
		{"backup-dir", &cfg.Backup.Dir},
		{"target", &cfg.Upload.Target},
		{"spreadsheet-name", &cfg.Upload.SpreadsheetName},
		{"spreadsheet-id", &cfg.Upload.SpreadsheetID},
		{"sheet-name", &cfg.Upload.SheetName},
		{"credentials", &cfg.Upload.Credentials},
		{"workbook", &cfg.Upload.Workbook},
		{"layout", &cfg.Upload.Layout},
	}
	flags := cmd.Flags()
	for _, o := range overrides {
		if flags.Lookup(o.flag) != nil && flags.Changed(o.flag) {
			*o.dst, _ = flags.GetString(o.flag)
		}
	}
	return cfg, nil
}

func newLogger(cmd *cobra.Command, level string) (*log.Logger, error) {
	if level == "" {
		level = "info"
	}
	lvl, err := log.ParseLevel(level)
	if err != nil {
		return nil, fmt.Errorf("log level: %w", err)
	}
	return log.NewWithOptions(cmd.ErrOrStderr(), log.Options{Level: lvl}), nil
}

func newRegistry(cfg *config.Config) (*importer.Registry, error) {
	reg := importer.DefaultRegistry()
	if err := importer.RegisterFormats(reg, cfg.Formats); err != nil {
		return nil, err
	}
	return reg, nil
}
