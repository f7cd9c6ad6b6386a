package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/JonMunkholm/psm/internal/core"
)

// CheckReport is the structured result of psm check.
type CheckReport struct {
	Match      bool     `json:"match"`
	Experiment []string `json:"experiment"`
	Control    []string `json:"control"`
	Problem    string   `json:"problem,omitempty"`
}

func newCheckCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "check EXPERIMENT.csv CONTROL.csv",
		Short: "Check that two cohort files can be matched",
		Long: `Parse both files and compare their headers. The command fails when either
file is not valid CSV or the headers differ in names or order.`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.runCheck(cmd, args[0], args[1])
		},
	}
}

func (a *app) runCheck(cmd *cobra.Command, experiment, control string) error {
	o := a.newOrchestrator()
	if err := loadCohorts(cmd.Context(), o, experiment, control); err != nil {
		return err
	}

	wf := o.Workflow()
	exp, ctrl := wf.Slot(core.SlotExperiment).Table, wf.Slot(core.SlotControl).Table

	report := CheckReport{
		Match:      true,
		Experiment: exp.Header(),
		Control:    ctrl.Header(),
	}
	mismatch := core.CompareHeaders(exp, ctrl)
	if mismatch != nil {
		report.Match = false
		report.Problem = mismatch.Error()
	}

	var err error
	switch {
	case a.format.Structured():
		err = a.printer.Structured(report)
	case report.Match:
		err = a.printer.Text(fmt.Sprintf("Headers match (%d columns)", len(report.Experiment)))
	default:
		err = a.printer.Text("Headers differ: " + report.Problem)
	}
	if err != nil {
		return err
	}

	if mismatch != nil {
		return mismatch
	}
	return nil
}
