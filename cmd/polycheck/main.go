package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/polycheck/polycheck/config"
	"github.com/polycheck/polycheck/pkg/consistency"
	"github.com/polycheck/polycheck/pkg/lib/profile"
	"github.com/polycheck/polycheck/pkg/lib/signals"
	"github.com/polycheck/polycheck/pkg/metrics"
	"github.com/polycheck/polycheck/pkg/verifier"
	"github.com/polycheck/polycheck/pkg/version"
)

type options struct {
	configPath  string
	metricsAddr string
	debug       bool
	profiling   bool
	version     bool

	models     []string
	workers    int
	queueSize  int
	timeout    time.Duration
	maxClauses int
	coreBound  int
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	o := &options{}

	cmd := &cobra.Command{
		Use:          "polycheck",
		Short:        "Checks transactional histories against consistency models",
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			if o.version {
				fmt.Print(version.String())
				return nil
			}
			return cmd.Help()
		},
	}

	flags := cmd.PersistentFlags()
	flags.StringVar(&o.configPath, "config", "", "path to a polycheck configuration file")
	flags.StringVar(&o.metricsAddr, "metrics-addr", "", "address to serve Prometheus metrics on, disabled when empty")
	flags.BoolVar(&o.debug, "debug", false, "use debug log level")
	flags.BoolVar(&o.profiling, "profiling", false, "serve pprof handlers next to the metrics, requires --metrics-addr")
	flags.StringSliceVar(&o.models, "models", nil, "consistency models to check, all by default")
	flags.IntVar(&o.workers, "workers", verifier.DefaultWorkers, "number of concurrent checks")
	flags.IntVar(&o.queueSize, "queue-size", verifier.DefaultQueueSize, "number of checks waiting for a worker")
	flags.DurationVar(&o.timeout, "timeout", verifier.DefaultTimeout, "deadline of a single check, 0 disables it")
	flags.IntVar(&o.maxClauses, "max-clauses", 0, "report encodings larger than this as inconclusive, 0 disables the limit")
	flags.IntVar(&o.coreBound, "core-bound", 0, "extra solves spent minimizing a counterexample, 0 keeps the default")
	cmd.Flags().BoolVar(&o.version, "version", false, "displays the polycheck version")

	cmd.AddCommand(newCheckCmd(o), newWatchCmd(o), newReplayCmd(o))
	return cmd
}

// env is what every subcommand starts from.
type env struct {
	logger *logrus.Logger
	config *config.Config
	models []consistency.Model
}

func (o *options) setup(flags *pflag.FlagSet) (*env, error) {
	logger := logrus.New()
	if o.debug {
		logger.SetLevel(logrus.DebugLevel)
	}
	logger.Debugf("log level %s", logger.Level)

	cfg := config.Default()
	if o.configPath != "" {
		var err error
		if cfg, err = config.LoadConfig(o.configPath); err != nil {
			return nil, err
		}
	}
	if flags.Changed("models") {
		cfg.Models = o.models
	}
	if flags.Changed("workers") {
		cfg.Workers = o.workers
	}
	if flags.Changed("queue-size") {
		cfg.QueueSize = o.queueSize
	}
	if flags.Changed("timeout") {
		cfg.Timeout = o.timeout
	}
	if flags.Changed("max-clauses") {
		cfg.MaxClauses = o.maxClauses
	}
	if flags.Changed("core-bound") {
		cfg.CoreBound = o.coreBound
	}

	models, err := cfg.ParsedModels()
	if err != nil {
		return nil, err
	}
	return &env{logger: logger, config: cfg, models: models}, nil
}

// verifierOptions returns the options of a run, with metrics recorded
// when they are served.
func (o *options) verifierOptions(e *env) []verifier.Option {
	opts := append(e.config.Options(), verifier.WithLogger(e.logger))
	if o.metricsAddr != "" {
		opts = append(opts, verifier.WithMetrics())
	}
	return opts
}

// run executes fn under a context cancelled by SIGINT and SIGTERM,
// serving metrics alongside when requested.
func (o *options) run(e *env, fn func(ctx context.Context) error) error {
	ctx, cancel := signals.Context(context.Background(), e.logger)
	defer cancel()

	if o.metricsAddr == "" {
		return fn(ctx)
	}

	metrics.Register()
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	if o.profiling {
		profile.RegisterHandlers(mux)
	}
	srv := &http.Server{Addr: o.metricsAddr, Handler: mux}
	go func() {
		e.logger.Infof("serving metrics on %s", o.metricsAddr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			e.logger.WithError(err).Error("metrics server stopped")
		}
	}()
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			e.logger.WithError(err).Warn("shutting down metrics server")
		}
	}()
	return fn(ctx)
}
