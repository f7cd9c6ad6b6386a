package cli

import (
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/JonMunkholm/psm/internal/core"
)

// previewSlot labels read and parse errors from psm preview.
const previewSlot core.Slot = "preview"

func newPreviewCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "preview FILE.csv",
		Short: "Show the header and first 20 rows of a cohort file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.runPreview(args[0])
		},
	}
}

func (a *app) runPreview(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return &core.ReadError{Slot: previewSlot, File: path, Err: err}
	}
	defer f.Close()

	table, _, err := core.ReadTable(f, previewSlot, filepath.Base(path), a.cfg.Upload.MaxFileSize)
	if err != nil {
		return err
	}
	pv := core.PreviewTable(table)

	switch a.format {
	case FormatTable:
		return a.printer.Preview(pv)
	case FormatCSV:
		if pv.Empty {
			return nil
		}
		return a.printer.CSV(append([][]string{pv.Header}, pv.Rows...))
	default:
		return a.printer.Structured(pv)
	}
}
