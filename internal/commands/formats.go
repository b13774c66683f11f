package commands

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/cleared-dev/parsemoney/internal/importer"
)

func newFormatsCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "formats [name]",
		Short: "List the statement formats that can be detected",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			reg, err := newRegistry(cfg)
			if err != nil {
				return err
			}

			formats := reg.Formats()
			if len(args) > 0 {
				f, ok := reg.Get(args[0])
				if !ok {
					return fmt.Errorf("unknown format %q", args[0])
				}
				formats = []importer.Format{f}
			}

			w := cmd.OutOrStdout()
			for _, f := range formats {
				fmt.Fprintf(w, "%-16s %s\n", f.Name, strings.Join(f.Signature, ","))
				fmt.Fprintf(w, "%-16s %s\n", "", f.Describe())
			}
			if len(args) == 0 {
				fmt.Fprintf(w, "%-16s inferred from header names or, without a header, from the data\n", importer.GenericName)
			}
			return nil
		},
	}
}
