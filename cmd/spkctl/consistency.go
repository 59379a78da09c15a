package main

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/MikeSquared-Agency/Kredit/internal/decision"
)

type consistencyOptions struct {
	file    string
	weights string
}

// matrixFile is the YAML shape read by consistency.
type matrixFile struct {
	Criteria []string        `yaml:"criteria"`
	Matrix   decision.Matrix `yaml:"matrix"`
}

func newConsistencyCommand(root *rootOptions) *cobra.Command {
	opts := &consistencyOptions{}
	cmd := &cobra.Command{
		Use:   "consistency (-f matrix.yaml | --weights w1,w2,...)",
		Short: "Report lambda_max, CI and CR of a pairwise matrix",
		Long: `Consistency analyzes a criteria pairwise comparison matrix read from a
YAML file, or the matrix reconstructed from a weight vector.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runConsistency(cmd, root, opts)
		},
	}
	cmd.Flags().StringVarP(&opts.file, "file", "f", "", "YAML file with a matrix")
	cmd.Flags().StringVar(&opts.weights, "weights", "", "comma-separated weights")
	cmd.MarkFlagsMutuallyExclusive("file", "weights")
	cmd.MarkFlagsOneRequired("file", "weights")
	return cmd
}

func parseWeights(s string) ([]float64, error) {
	parts := strings.Split(s, ",")
	out := make([]float64, 0, len(parts))
	for _, p := range parts {
		v, err := strconv.ParseFloat(strings.TrimSpace(p), 64)
		if err != nil {
			return nil, fmt.Errorf("invalid weight %q: %w", p, err)
		}
		out = append(out, v)
	}
	return out, nil
}

func runConsistency(cmd *cobra.Command, root *rootOptions, opts *consistencyOptions) error {
	cfg, err := root.load()
	if err != nil {
		return err
	}

	var (
		names []string
		m     decision.Matrix
		cm    *decision.ConsistencyMetrics
	)
	if opts.weights != "" {
		w, err := parseWeights(opts.weights)
		if err != nil {
			return err
		}
		if cm, m, err = decision.FromWeights(w); err != nil {
			return err
		}
	} else {
		var mf matrixFile
		if err := readYAML(opts.file, &mf); err != nil {
			return err
		}
		names = mf.Criteria
		m = mf.Matrix
		if cm, err = decision.Analyze(m); err != nil {
			return err
		}
	}

	printMetrics(cmd.OutOrStdout(), names, m, cm, cfg.Engine.ConsistencyThreshold)
	return nil
}

func printMetrics(w io.Writer, names []string, m decision.Matrix, cm *decision.ConsistencyMetrics, threshold float64) {
	for _, row := range m {
		cells := make([]string, len(row))
		for j, v := range row {
			cells[j] = strconv.FormatFloat(v, 'f', 4, 64)
		}
		fmt.Fprintln(w, strings.Join(cells, "  "))
	}
	fmt.Fprintln(w)
	for i, wt := range cm.Weights {
		name := fmt.Sprintf("C%d", i+1)
		if i < len(names) {
			name = names[i]
		}
		fmt.Fprintf(w, "weight %s: %.4f\n", name, wt)
	}
	fmt.Fprintf(w, "lambda_max: %.4f\nCI: %.4f\nCR: %.4f\n", cm.LambdaMax, cm.CI, cm.CR)
	if cm.Acceptable(threshold) {
		fmt.Fprintf(w, "consistent (CR <= %.2f)\n", threshold)
	} else {
		fmt.Fprintf(w, "inconsistent (CR > %.2f), revise the judgments\n", threshold)
	}
}
