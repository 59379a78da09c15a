package main

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/MikeSquared-Agency/Kredit/internal/decision"
	"github.com/MikeSquared-Agency/Kredit/internal/report"
)

type rankOptions struct {
	file   string
	method string
	out    string
}

func newRankCommand(root *rootOptions) *cobra.Command {
	opts := &rankOptions{}
	cmd := &cobra.Command{
		Use:   "rank -f input.yaml",
		Short: "Rank the applicants in a YAML file",
		Long: `Rank reads criteria, an optional criteria pairwise matrix and applicants
from a YAML file, prints the ranking and optionally writes it to a CSV or
XLSX report.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runRank(cmd, root, opts)
		},
	}
	cmd.Flags().StringVarP(&opts.file, "file", "f", "", "input YAML file")
	cmd.Flags().StringVarP(&opts.method, "method", "m", "", "scoring method: saw or ahp (default from file, else saw)")
	cmd.Flags().StringVarP(&opts.out, "out", "o", "", "write the ranking to a .csv or .xlsx file")
	_ = cmd.MarkFlagRequired("file")
	return cmd
}

func parseMethod(s string) (decision.Method, error) {
	switch strings.ToLower(s) {
	case "saw":
		return decision.MethodSAW, nil
	case "ahp", "ahp_full":
		return decision.MethodAHPFull, nil
	}
	return "", fmt.Errorf("unsupported method %q: must be saw or ahp", s)
}

func runRank(cmd *cobra.Command, root *rootOptions, opts *rankOptions) error {
	cfg, err := root.load()
	if err != nil {
		return err
	}

	var req decision.Request
	if err := readYAML(opts.file, &req); err != nil {
		return err
	}
	switch {
	case opts.method != "":
		if req.Method, err = parseMethod(opts.method); err != nil {
			return err
		}
	case req.Method == "":
		req.Method = decision.MethodSAW
	default:
		if req.Method, err = parseMethod(string(req.Method)); err != nil {
			return err
		}
	}

	eval, err := root.scorer(cmd, cfg).Evaluate(req)
	if err != nil {
		return err
	}
	printEvaluation(cmd.OutOrStdout(), eval, cfg.Engine.ConsistencyThreshold)

	if opts.out != "" {
		if err := report.NewWriter(cfg.Report.Labels).WriteFile(opts.out, eval); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "\nreport written to %s\n", opts.out)
	}
	return nil
}

func printEvaluation(w io.Writer, eval *decision.Evaluation, threshold float64) {
	cc := eval.CriteriaConsistency
	fmt.Fprintf(w, "method: %s\n", eval.Method)
	fmt.Fprintf(w, "criteria CR: %.4f (lambda_max %.4f, CI %.4f)", cc.CR, cc.LambdaMax, cc.CI)
	if eval.ConsistencyWarning {
		fmt.Fprintf(w, "  WARNING: above %.2f", threshold)
	}
	fmt.Fprintln(w)
	if len(eval.AlternativeConsistency) > 0 {
		fmt.Fprintf(w, "mean alternative CR: %.4f\n", eval.MeanAlternativeCR)
	}

	if eval.NoEligible {
		fmt.Fprintln(w, "\nno eligible applicants")
	} else {
		fmt.Fprintln(w)
		tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
		fmt.Fprintln(tw, "RANK\tID\tNAME\tSCORE")
		for _, r := range eval.Results {
			fmt.Fprintf(tw, "%d\t%s\t%s\t%.6f\n", r.Rank, r.ID, r.Name, r.Score)
		}
		tw.Flush()
		fmt.Fprintf(w, "\npareto frontier: %s\n", strings.Join(eval.ParetoFrontier, ", "))
	}

	for _, in := range eval.Ineligible {
		fmt.Fprintf(w, "ineligible %s (%s): %s\n", in.ID, in.Name, in.Reason)
	}
}
