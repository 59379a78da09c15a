package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/MikeSquared-Agency/Kredit/internal/config"
	"github.com/MikeSquared-Agency/Kredit/internal/decision"
)

var version = "dev"

type rootOptions struct {
	configPath string
}

func newRootCommand() *cobra.Command {
	opts := &rootOptions{}
	cmd := &cobra.Command{
		Use:   "spkctl",
		Short: "Rank loan applicants with SAW or AHP",
		Long: `spkctl scores loan applicants against weighted criteria using Simple
Additive Weighting or full AHP, and reports the consistency of pairwise
comparison matrices.`,
		Version:      version,
		SilenceUsage: true,
	}
	cmd.PersistentFlags().StringVar(&opts.configPath, "config", "", "path to config file")

	cmd.AddCommand(newRankCommand(opts))
	cmd.AddCommand(newConsistencyCommand(opts))
	cmd.AddCommand(newAggregateCommand(opts))
	return cmd
}

func (o *rootOptions) load() (*config.Config, error) {
	cfg, err := config.Load(o.configPath)
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (o *rootOptions) scorer(cmd *cobra.Command, cfg *config.Config) *decision.Scorer {
	return decision.NewScorer(cfg.EngineOptions(), cfg.Logging.NewLogger(cmd.ErrOrStderr()))
}

func readYAML(path string, v interface{}) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, v); err != nil {
		return fmt.Errorf("parse %s: %w", path, err)
	}
	return nil
}
