package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/cleared-dev/parsemoney/internal/importer"
)

func newDetectCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "detect <file>...",
		Short: "Show the detected format and column mapping of statement files",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			reg, err := newRegistry(cfg)
			if err != nil {
				return err
			}

			parser := importer.NewParser(nil, importer.WithEncoding(cfg.Input.Encoding))
			det := importer.NewDetector(reg)
			w := cmd.OutOrStdout()

			failed := 0
			for _, path := range args {
				d, err := detectFile(parser, det, path)
				if err != nil {
					fmt.Fprintf(w, "%s: %v\n", path, err)
					failed++
					continue
				}
				header := "none"
				if d.HeaderLine >= 0 {
					header = fmt.Sprintf("line %d", d.HeaderLine+1)
				}
				fmt.Fprintf(w, "%s: %s (header: %s)\n  %s\n", path, d.Format.Name, header, d.Format.Describe())
			}
			if failed > 0 {
				return fmt.Errorf("%d of %d files not recognized", failed, len(args))
			}
			return nil
		},
	}
}

func detectFile(p *importer.Parser, d *importer.Detector, path string) (importer.Detection, error) {
	src, err := importer.ReadSource(path)
	if err != nil {
		return importer.Detection{}, err
	}
	text, err := p.Decode(src.Content)
	if err != nil {
		return importer.Detection{}, err
	}
	return d.Detect(text)
}
