package main

import (
	"github.com/spf13/cobra"

	"github.com/MikeSquared-Agency/Kredit/internal/decision"
)

// aggregateFile holds one pairwise matrix per judge.
type aggregateFile struct {
	Criteria []string          `yaml:"criteria"`
	Matrices []decision.Matrix `yaml:"matrices"`
}

func newAggregateCommand(root *rootOptions) *cobra.Command {
	var file string
	cmd := &cobra.Command{
		Use:   "aggregate -f matrices.yaml",
		Short: "Combine several judges' pairwise matrices by geometric mean",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := root.load()
			if err != nil {
				return err
			}
			var af aggregateFile
			if err := readYAML(file, &af); err != nil {
				return err
			}
			agg, err := decision.AggregateGeometric(af.Matrices)
			if err != nil {
				return err
			}
			cm, err := decision.Analyze(agg)
			if err != nil {
				return err
			}
			printMetrics(cmd.OutOrStdout(), af.Criteria, agg, cm, cfg.Engine.ConsistencyThreshold)
			return nil
		},
	}
	cmd.Flags().StringVarP(&file, "file", "f", "", "YAML file with a matrices list")
	_ = cmd.MarkFlagRequired("file")
	return cmd
}
