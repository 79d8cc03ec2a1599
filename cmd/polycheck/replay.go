package main

import (
	"context"
	"fmt"
	"os"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/polycheck/polycheck/pkg/verifier"
)

func newReplayCmd(o *options) *cobra.Command {
	return &cobra.Command{
		Use:   "replay SNAPSHOT",
		Short: "Re-checks a snapshot and reports every verdict that changed",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := o.setup(cmd.Flags())
			if err != nil {
				return err
			}
			f, err := os.Open(args[0])
			if err != nil {
				return err
			}
			defer f.Close()
			snapshot, err := verifier.LoadSnapshot(f)
			if err != nil {
				return err
			}
			e.logger.Infof("replaying %d checks recorded by snapshot version %s", len(snapshot.Results), snapshot.Version)

			return o.run(e, func(ctx context.Context) error {
				rep, err := verifier.VerifyAll(ctx, snapshot.Checks(), o.verifierOptions(e)...)
				if err != nil {
					return err
				}
				drifts := verifier.Compare(snapshot.Results, rep)
				out := cmd.OutOrStdout()
				for _, d := range drifts {
					fmt.Fprintf(out, "%s under %s: %s -> %s\n", d.HistoryID, d.Model, d.Before, d.After)
				}
				if len(drifts) > 0 {
					return errors.Errorf("%d verdicts changed", len(drifts))
				}
				fmt.Fprintf(out, "all %d verdicts reproduced\n", len(snapshot.Results))
				return nil
			})
		},
	}
}
