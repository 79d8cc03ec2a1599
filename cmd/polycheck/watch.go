package main

import (
	"context"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/polycheck/polycheck/pkg/history"
	"github.com/polycheck/polycheck/pkg/lib/filemonitor"
	"github.com/polycheck/polycheck/pkg/metrics"
	"github.com/polycheck/polycheck/pkg/verifier"
)

func newWatchCmd(o *options) *cobra.Command {
	return &cobra.Command{
		Use:   "watch DIR...",
		Short: "Checks every history file written to the given directories until interrupted",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := o.setup(cmd.Flags())
			if err != nil {
				return err
			}
			return o.run(e, func(ctx context.Context) error {
				return watch(ctx, e, o, args)
			})
		},
	}
}

func watch(ctx context.Context, e *env, o *options, dirs []string) error {
	opts := o.verifierOptions(e)
	var v verifier.Verifier = verifier.NewPipeline(opts...)
	if o.metricsAddr != "" {
		v = verifier.NewInstrumentedVerifier(v, metrics.RegisterCheckSuccess, metrics.RegisterCheckFailure)
	}
	orch := verifier.NewOrchestrator(v, opts...)

	submit := func(h *history.History) {
		for _, m := range e.models {
			if err := orch.Submit(ctx, verifier.Check{History: h, Model: m}); err != nil {
				e.logger.WithError(err).WithField("history", h.Name()).Warn("check not queued")
				return
			}
		}
	}

	w, err := filemonitor.NewWatch(e.logger, dirs, history.IsHistoryFile, func(path string) {
		h, err := history.LoadFile(path)
		if err != nil {
			e.logger.WithError(err).Warnf("skipping %s", path)
			return
		}
		submit(h)
	})
	if err != nil {
		return err
	}

	var eg errgroup.Group
	eg.Go(func() error {
		return orch.Run(ctx)
	})
	eg.Go(func() error {
		for r := range orch.Results() {
			logResult(e.logger, r)
		}
		return nil
	})

	w.Run(ctx)
	histories, err := loadHistories(dirs)
	if err != nil {
		e.logger.WithError(err).Warn("loading existing histories")
	}
	for _, h := range histories {
		submit(h)
	}
	e.logger.Infof("watching %v", dirs)

	if err := eg.Wait(); err != nil && ctx.Err() == nil {
		return err
	}
	return nil
}

func logResult(logger logrus.FieldLogger, r verifier.Result) {
	entry := logger.WithFields(logrus.Fields{
		"history": r.HistoryID,
		"model":   r.Model.String(),
		"verdict": r.Verdict,
		"elapsed": r.Elapsed,
	})
	switch {
	case r.Verdict == verifier.Violated:
		cycle := make([]string, len(r.Counterexample.Cycle))
		for i, edge := range r.Counterexample.Cycle {
			cycle[i] = edge.String()
		}
		entry.WithField("reason", r.Reason).Warnf("violation: %v", cycle)
	case !r.Conclusive():
		entry.WithField("reason", r.Reason).Error(r.Error)
	default:
		entry.Info("satisfied")
	}
}
