package main

import (
	"errors"
	"time"

	"github.com/ilindan-dev/windowed-notifier/internal/domain/model"
	"github.com/spf13/cobra"
)

// now is swapped in tests.
var now = time.Now

// ValidateResult lists the normalized periods of a valid file.
type ValidateResult struct {
	Valid   bool                 `json:"valid" yaml:"valid"`
	Periods []model.PeriodConfig `json:"periods" yaml:"periods"`
}

// CheckResult is the outcome of evaluating every period at one instant.
type CheckResult struct {
	At       time.Time      `json:"at" yaml:"at"`
	Eligible bool           `json:"eligible" yaml:"eligible"`
	Periods  []PeriodResult `json:"periods" yaml:"periods"`
}

// PeriodResult is one period's verdict.
type PeriodResult struct {
	Index    int    `json:"index" yaml:"index"`
	Period   string `json:"period" yaml:"period"`
	Included bool   `json:"included" yaml:"included"`
}

// NextResult is the first eligible instant found by a scan.
type NextResult struct {
	From  time.Time  `json:"from" yaml:"from"`
	Next  *time.Time `json:"next,omitempty" yaml:"next,omitempty"`
	Found bool       `json:"found" yaml:"found"`
}

func validateCmd(opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "validate",
		Short: "Validate a periods file",
		Long: `Validate every period and print it with defaults applied.

Examples:
  periodctl validate -f periods.yaml
  cat periods.json | periodctl validate -f - -o json`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			_, periods, err := loadPeriods(opts, cmd.InOrStdin())
			if err != nil {
				return err
			}
			result := ValidateResult{Valid: true, Periods: make([]model.PeriodConfig, 0, len(periods))}
			for _, p := range periods {
				result.Periods = append(result.Periods, p.Config())
			}
			return writeResult(cmd.OutOrStdout(), opts.output, result)
		},
	}
}

func checkCmd(opts *globalOptions) *cobra.Command {
	var at string

	cmd := &cobra.Command{
		Use:   "check",
		Short: "Check whether an instant falls inside the periods",
		Long: `Evaluate each period at an instant. A notification with these periods is
eligible when any period includes the instant, or when there are no periods.

Examples:
  periodctl check -f periods.yaml
  periodctl check -f periods.yaml --at 2024-03-04T12:00:00+01:00 -o json`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			_, periods, err := loadPeriods(opts, cmd.InOrStdin())
			if err != nil {
				return err
			}
			instant, err := parseInstant(at, now())
			if err != nil {
				return err
			}
			return writeResult(cmd.OutOrStdout(), opts.output, evaluate(periods, instant))
		},
	}
	cmd.Flags().StringVar(&at, "at", "", "Instant to evaluate, RFC 3339 (default now)")

	return cmd
}

func nextCmd(opts *globalOptions) *cobra.Command {
	var (
		from   string
		within time.Duration
		step   time.Duration
	)

	cmd := &cobra.Command{
		Use:   "next",
		Short: "Find the next instant the periods allow",
		Long: `Scan forward from an instant in fixed steps and report the first one
a notification with these periods could fire at.

Examples:
  periodctl next -f periods.yaml
  periodctl next -f periods.yaml --from 2024-03-09T00:00:00Z --within 72h --step 30s`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if step <= 0 || within <= 0 {
				return errors.New("--step and --within must be positive")
			}
			_, periods, err := loadPeriods(opts, cmd.InOrStdin())
			if err != nil {
				return err
			}
			start, err := parseInstant(from, now())
			if err != nil {
				return err
			}
			return writeResult(cmd.OutOrStdout(), opts.output, findNext(periods, start, within, step))
		},
	}
	cmd.Flags().StringVar(&from, "from", "", "Instant to start from, RFC 3339 (default now)")
	cmd.Flags().DurationVar(&within, "within", 7*24*time.Hour, "How far ahead to look")
	cmd.Flags().DurationVar(&step, "step", time.Minute, "Scan resolution")

	return cmd
}

func evaluate(periods []model.Period, at time.Time) CheckResult {
	result := CheckResult{At: at, Eligible: model.CanNotify(periods, at), Periods: make([]PeriodResult, 0, len(periods))}
	for i, p := range periods {
		result.Periods = append(result.Periods, PeriodResult{Index: i, Period: p.String(), Included: p.IsIncluded(at)})
	}
	return result
}

func findNext(periods []model.Period, from time.Time, within, step time.Duration) NextResult {
	result := NextResult{From: from}
	for t := from; !t.After(from.Add(within)); t = t.Add(step) {
		if model.CanNotify(periods, t) {
			found := t
			result.Next = &found
			result.Found = true
			break
		}
	}
	return result
}

func describeEligibility(eligible bool) string {
	if eligible {
		return "eligible"
	}
	return "not eligible"
}
