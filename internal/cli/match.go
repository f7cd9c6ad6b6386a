package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/JonMunkholm/psm/internal/core"
)

type matchOptions struct {
	experiment string
	control    string
	columns    []string
	out        string
}

func newMatchCmd(a *app) *cobra.Command {
	opts := &matchOptions{}

	cmd := &cobra.Command{
		Use:   "match --experiment FILE --control FILE",
		Short: "Match a control pool against an experiment cohort",
		Long: `Load both cohort files, check that their headers agree, and send them to
the matching service. The matched control rows are printed (a 20 row preview
in table output, the full result otherwise) and written to --out as CSV.`,
		Example: `  psm match --experiment treated.csv --control pool.csv
  psm match --experiment treated.csv --control pool.csv --columns age,sex --out matched_control.csv
  psm match --experiment treated.csv --control pool.csv -o json -q '.data | length'`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.runMatch(cmd, opts)
		},
	}

	cmd.Flags().StringVarP(&opts.experiment, "experiment", "e", "", "experiment cohort CSV")
	cmd.Flags().StringVarP(&opts.control, "control", "c", "", "control pool CSV")
	cmd.Flags().StringSliceVar(&opts.columns, "columns", nil, "covariate columns to match on (default all)")
	cmd.Flags().StringVar(&opts.out, "out", "", "write the matched rows to this CSV file")
	_ = cmd.MarkFlagRequired("experiment")
	_ = cmd.MarkFlagRequired("control")

	return cmd
}

func (a *app) runMatch(cmd *cobra.Command, opts *matchOptions) error {
	ctx := cmd.Context()
	o := a.newOrchestrator()

	if err := loadCohorts(ctx, o, opts.experiment, opts.control); err != nil {
		return err
	}
	if v := o.Snapshot(); v.Warning != "" {
		fmt.Fprintln(cmd.ErrOrStderr(), "Warning:", v.Warning)
	}

	result, err := o.SubmitColumns(ctx, opts.columns)
	if err != nil {
		return err
	}

	if opts.out != "" {
		text, err := o.Export()
		if err != nil {
			return err
		}
		if err := os.WriteFile(opts.out, []byte(text), 0o644); err != nil {
			return fmt.Errorf("write %s: %w", opts.out, err)
		}
		fmt.Fprintf(cmd.ErrOrStderr(), "Wrote %d rows to %s\n", len(result.Data), opts.out)
	}

	switch a.format {
	case FormatTable:
		return a.printer.Preview(core.PreviewResult(result))
	case FormatCSV:
		return a.printer.Text(core.ToCSVText(result))
	default:
		return a.printer.Structured(result)
	}
}
