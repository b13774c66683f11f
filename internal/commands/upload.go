package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/cleared-dev/parsemoney/internal/table"
	"github.com/cleared-dev/parsemoney/internal/upload"
)

func newUploadCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "upload [table.csv]",
		Short: "Upload an existing table without re-importing statements",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			logger, err := newLogger(cmd, cfg.Log.Level)
			if err != nil {
				return err
			}

			path := cfg.Output.Table
			if len(args) > 0 {
				path = args[0]
			}
			tbl, err := table.LoadFile(path)
			if err != nil {
				return err
			}
			if tbl.Len() == 0 {
				return fmt.Errorf("%s has no records", path)
			}

			up, err := upload.New(cmd.Context(), cfg.Upload, logger)
			if err != nil {
				return fmt.Errorf("upload: %w", err)
			}
			if err := up.Upload(cmd.Context(), tbl); err != nil {
				return fmt.Errorf("upload: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Uploaded %d rows from %s\n", tbl.Len(), path)
			return nil
		},
	}
}
