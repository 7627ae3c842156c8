package cmd

import (
	"fmt"
	"io"
	"time"

	"github.com/spf13/afero"
	"github.com/spf13/cobra"

	"github.com/tec-more/odoo-plugins/internal/sprint"
	"github.com/tec-more/odoo-plugins/internal/style"
)

type burndownOpts struct {
	AsOf   string
	Output string
}

func newBurndownCmd(a *app) *cobra.Command {
	var opts burndownOpts
	cmd := &cobra.Command{
		Use:   "burndown PLAN",
		Short: "Print the burndown of a sprint plan",
		Long: `Compute daily burndown data for a sprint plan document (YAML or JSON).

A plan names its project, team, iteration, start and end dates, and lists
sprint backlogs with their story points and tasks:

  project: Shop
  team: Core
  iteration: 3
  start: 2025-01-01
  end: 2025-01-10
  backlogs:
    - name: Checkout
      story: checkout
      story_points: 8
      tasks:
        - name: Payment form
          stage: Done
          estimated_hours: 4
          done_at: 2025-01-03

--as-of limits the summary to days up to the given date.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.runBurndown(cmd.OutOrStdout(), args[0], opts)
		},
	}
	cmd.Flags().StringVar(&opts.AsOf, "as-of", "", "summarize up to this date (YYYY-MM-DD)")
	cmd.Flags().StringVarP(&opts.Output, "output", "o", outputAuto, "output format (auto, tree, json)")
	return cmd
}

type burndownView struct {
	Plan    string          `json:"plan"`
	Points  []sprint.Point  `json:"points"`
	Series  sprint.Series   `json:"series"`
	Summary *sprint.Summary `json:"summary,omitempty"`
}

func (a *app) runBurndown(out io.Writer, path string, opts burndownOpts) error {
	data, err := afero.ReadFile(a.fs, path)
	if err != nil {
		return fmt.Errorf("reading %s: %w", path, err)
	}
	plan, err := sprint.ParsePlan(data)
	if err != nil {
		return err
	}

	points, err := sprint.GenerateBurndown(plan, nil)
	if err != nil {
		return err
	}

	if opts.AsOf != "" {
		asOf, err := time.Parse("2006-01-02", opts.AsOf)
		if err != nil {
			return fmt.Errorf("invalid --as-of %q: want YYYY-MM-DD", opts.AsOf)
		}
		if err := sprint.ValidateDate(plan, asOf); err != nil {
			return err
		}
		points = pointsUntil(points, asOf)
	}

	view := burndownView{
		Plan:   plan.Name(),
		Points: points,
		Series: sprint.ChartSeries(points),
	}
	if summary, ok := sprint.Summarize(plan, points); ok {
		view.Summary = &summary
	}

	if resolveOutput(out, opts.Output) == outputJSON {
		return writeJSON(out, view)
	}

	fmt.Fprintln(out, style.Header.Render(plan.Name()))
	if plan.Goal != "" {
		fmt.Fprintln(out, style.Dim.Render(plan.Goal))
	}
	fmt.Fprintln(out)

	fmt.Fprintln(out, style.Bold.Render(fmt.Sprintf("%-10s  %9s  %9s  %9s  %7s  %9s",
		"Date", "Remaining", "Ideal", "Variance", "Tasks", "Hours")))
	for _, pt := range points {
		variance := fmt.Sprintf("%+9.1f", pt.Variance)
		switch {
		case pt.Variance > 0:
			variance = style.Warning.Render(variance)
		case pt.Variance < 0:
			variance = style.Success.Render(variance)
		}
		fmt.Fprintf(out, "%-10s  %9.1f  %9.1f  %s  %3d/%-3d  %9.1f\n",
			pt.Date.Format("2006-01-02"),
			pt.RemainingStoryPoints,
			pt.IdealRemaining,
			variance,
			pt.CompletedTasks, pt.TotalTasks,
			pt.RemainingHours)
	}

	if view.Summary != nil {
		fmt.Fprintln(out)
		fmt.Fprint(out, view.Summary.String())
		trend := string(view.Summary.Trend)
		fmt.Fprintf(out, "%s %s\n", style.Dim.Render("Trend:"), style.ForTrend(trend).Render(trend))
	}

	prog := plan.Progress()
	fmt.Fprintf(out, "\n%s %d/%d backlogs completed (%.1f%%)\n",
		style.Dim.Render("Progress:"), prog.CompletedBacklogs, prog.TotalBacklogs, prog.CompletionPercentage)
	for _, kind := range []sprint.MeetingKind{sprint.MeetingDaily, sprint.MeetingReview, sprint.MeetingRetrospective} {
		if n := prog.CompletedMeetings[kind]; n > 0 {
			fmt.Fprintf(out, "  %s %d %s meetings completed\n", style.SuccessPrefix, n, kind)
		}
	}
	return nil
}

// pointsUntil keeps the points dated on or before day.
func pointsUntil(points []sprint.Point, day time.Time) []sprint.Point {
	var kept []sprint.Point
	for _, pt := range points {
		if !pt.Date.After(day) {
			kept = append(kept, pt)
		}
	}
	return kept
}
