package config

import (
	"io"
	"os"
	"time"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v2"

	"github.com/polycheck/polycheck/pkg/consistency"
	"github.com/polycheck/polycheck/pkg/verifier"
)

type File struct {
	Polycheck Config `yaml:"polycheck"`
}

// Config holds the settings of a verification run. Zero values fall
// back to the verifier defaults.
type Config struct {
	Models          []string      `yaml:"models"`
	Workers         int           `yaml:"workers"`
	QueueSize       int           `yaml:"queueSize"`
	Timeout         time.Duration `yaml:"timeout"`
	CoreBound       int           `yaml:"coreBound"`
	MaxClauses      int           `yaml:"maxClauses"`
	Counterexamples int           `yaml:"counterexamples"`
	// Validate re-checks every conclusive result. Defaults to true.
	Validate *bool `yaml:"validate"`
}

// Default returns the configuration used when no file is given.
func Default() *Config {
	c := &Config{}
	c.setDefaults()
	return c
}

func LoadConfig(cfgPath string) (*Config, error) {
	f, err := os.Open(os.ExpandEnv(cfgPath))
	if err != nil {
		return nil, err
	}
	defer f.Close()

	d, err := io.ReadAll(f)
	if err != nil {
		return nil, err
	}

	var cfgFile File
	if err := yaml.UnmarshalStrict(d, &cfgFile); err != nil {
		return nil, errors.Wrapf(err, "parsing %s", cfgPath)
	}

	config := &cfgFile.Polycheck
	config.setDefaults()
	if _, err := config.ParsedModels(); err != nil {
		return nil, errors.Wrapf(err, "parsing %s", cfgPath)
	}
	return config, nil
}

func (c *Config) setDefaults() {
	if len(c.Models) == 0 {
		for _, m := range consistency.Models {
			c.Models = append(c.Models, m.String())
		}
	}
	if c.Workers <= 0 {
		c.Workers = verifier.DefaultWorkers
	}
	if c.QueueSize <= 0 {
		c.QueueSize = verifier.DefaultQueueSize
	}
	if c.Timeout < 0 {
		c.Timeout = verifier.DefaultTimeout
	}
	if c.CoreBound < 0 {
		c.CoreBound = 0
	}
	if c.Counterexamples <= 0 {
		c.Counterexamples = verifier.DefaultMaxCounterexamples
	}
	if c.Validate == nil {
		validate := true
		c.Validate = &validate
	}
}

func (c *Config) ParsedModels() ([]consistency.Model, error) {
	return consistency.ParseModels(c.Models)
}

// Options translates the configuration into verifier options.
func (c *Config) Options() []verifier.Option {
	opts := []verifier.Option{
		verifier.WithWorkers(c.Workers),
		verifier.WithQueueSize(c.QueueSize),
		verifier.WithMaxClauses(c.MaxClauses),
		verifier.WithMaxCounterexamples(c.Counterexamples),
		verifier.WithValidation(c.Validate == nil || *c.Validate),
	}
	if c.Timeout > 0 {
		opts = append(opts, verifier.WithTimeout(c.Timeout))
	}
	if c.CoreBound > 0 {
		opts = append(opts, verifier.WithCoreBound(c.CoreBound))
	}
	return opts
}
