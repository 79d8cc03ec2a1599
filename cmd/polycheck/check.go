package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/polycheck/polycheck/pkg/history"
	"github.com/polycheck/polycheck/pkg/verifier"
)

var errViolations = errors.New("some histories violate the checked models")

type checkOptions struct {
	out             string
	failOnViolation bool
}

func newCheckCmd(o *options) *cobra.Command {
	co := &checkOptions{}
	cmd := &cobra.Command{
		Use:   "check PATH...",
		Short: "Checks history files, or directories of them, against every configured model",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := o.setup(cmd.Flags())
			if err != nil {
				return err
			}
			histories, err := loadHistories(args)
			if err != nil {
				return err
			}
			e.logger.Infof("checking %d histories against %d models", len(histories), len(e.models))

			return o.run(e, func(ctx context.Context) error {
				rep, err := verifier.VerifyAll(ctx, verifier.Checks(histories, e.models), o.verifierOptions(e)...)
				printReport(cmd.OutOrStdout(), rep)
				if co.out != "" {
					if serr := writeSnapshot(co.out, verifier.NewSnapshot(histories, e.models, rep)); serr != nil {
						return serr
					}
					e.logger.Infof("wrote snapshot to %s", co.out)
				}
				if err != nil {
					return err
				}
				if co.failOnViolation && violated(rep) {
					return errViolations
				}
				return nil
			})
		},
	}
	cmd.Flags().StringVarP(&co.out, "out", "o", "", "write a snapshot of the run to this file")
	cmd.Flags().BoolVar(&co.failOnViolation, "fail-on-violation", false, "exit with an error when any check is violated")
	return cmd
}

func loadHistories(paths []string) ([]*history.History, error) {
	var histories []*history.History
	for _, path := range paths {
		info, err := os.Stat(path)
		if err != nil {
			return nil, err
		}
		if info.IsDir() {
			hs, err := history.LoadDir(path)
			if err != nil {
				return nil, err
			}
			histories = append(histories, hs...)
			continue
		}
		h, err := history.LoadFile(path)
		if err != nil {
			return nil, err
		}
		histories = append(histories, h)
	}
	return histories, nil
}

func writeSnapshot(path string, s *verifier.Snapshot) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := verifier.SaveSnapshot(f, s); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

func violated(rep *verifier.Report) bool {
	for _, m := range rep.Models {
		if m.Violated > 0 {
			return true
		}
	}
	return false
}

func printReport(out io.Writer, rep *verifier.Report) {
	w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "MODEL\tSATISFIED\tVIOLATED\tTIMEOUT\tERROR")
	for _, m := range rep.Models {
		fmt.Fprintf(w, "%s\t%d\t%d\t%d\t%d\n", m.Model, m.Satisfied, m.Violated, m.Timeout, m.Error)
	}
	w.Flush()

	for _, m := range rep.Models {
		for _, cx := range m.Counterexamples {
			fmt.Fprintf(out, "\n%s violates %s:\n", cx.History, cx.Model)
			for _, a := range cx.Anomalies {
				fmt.Fprintf(out, "  %s\n", a)
			}
			if len(cx.Cycle) > 0 {
				edges := make([]string, len(cx.Cycle))
				for i, e := range cx.Cycle {
					edges[i] = e.String()
				}
				fmt.Fprintf(out, "  %s\n", strings.Join(edges, ", "))
			}
		}
	}
	for _, r := range rep.Results {
		if !r.Conclusive() {
			fmt.Fprintf(out, "\n%s under %s: %s (%s) %s\n", r.HistoryID, r.Model, r.Verdict, r.Reason, r.Error)
		}
	}
}
