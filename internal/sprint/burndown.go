package sprint

import (
	"fmt"
	"math"
	"sort"
	"strings"
	"time"
)

// dateLayout formats burndown dates.
const dateLayout = "2006-01-02"

// onTrackRatio is the share of total work within which a sprint is on track.
const onTrackRatio = 0.1

// Point is one day of burndown data.
type Point struct {
	Date time.Time `json:"date"`

	TotalStoryPoints     float64 `json:"total_story_points"`
	RemainingStoryPoints float64 `json:"remaining_story_points"`
	CompletedStoryPoints float64 `json:"completed_story_points"`

	TotalTasks     int `json:"total_tasks"`
	RemainingTasks int `json:"remaining_tasks"`
	CompletedTasks int `json:"completed_tasks"`

	TotalHours     float64 `json:"total_hours"`
	RemainingHours float64 `json:"remaining_hours"`
	CompletedHours float64 `json:"completed_hours"`

	IdealRemaining float64 `json:"ideal_remaining"`
	Variance       float64 `json:"variance"` // remaining minus ideal
}

// Label returns "<plan name> - <date>".
func (pt Point) Label(plan *Plan) string {
	name := plan.Name()
	if name == "" {
		return "Burndown Data"
	}
	return fmt.Sprintf("%s - %s", name, pt.Date.Format(dateLayout))
}

// day truncates t to midnight in its location.
func day(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}

func daysBetween(from, to time.Time) int {
	return int(math.Round(day(to).Sub(day(from)).Hours() / 24))
}

// ValidateDate checks that date falls within the plan's start and end.
func ValidateDate(plan *Plan, date time.Time) error {
	d := day(date)
	if !plan.Start.IsZero() && d.Before(day(plan.Start)) {
		return fmt.Errorf("%w: %s is before sprint start", ErrDateOutOfRange, d.Format(dateLayout))
	}
	if !plan.End.IsZero() && d.After(day(plan.End)) {
		return fmt.Errorf("%w: %s is after sprint end", ErrDateOutOfRange, d.Format(dateLayout))
	}
	return nil
}

// IdealRemaining returns the remaining work on date if the plan burned
// total down linearly across its days, inclusive of both ends.
func IdealRemaining(plan *Plan, date time.Time, total float64) float64 {
	if plan.Start.IsZero() || plan.End.IsZero() {
		return total
	}
	totalDays := daysBetween(plan.Start, plan.End) + 1
	elapsed := daysBetween(plan.Start, date) + 1

	switch {
	case elapsed <= 0:
		return total
	case elapsed >= totalDays:
		return 0
	default:
		perDay := total / float64(totalDays)
		return total - perDay*float64(elapsed)
	}
}

// GenerateBurndown builds one point per day from start to end with the
// plan's totals, then fills progress via UpdateBurndown. It refuses to run
// when existing data is present.
func GenerateBurndown(plan *Plan, existing []Point) ([]Point, error) {
	if len(existing) > 0 {
		return nil, ErrDataExists
	}
	if plan.Start.IsZero() || plan.End.IsZero() {
		return nil, ErrMissingDates
	}

	var totalPoints, totalHours float64
	totalTasks := 0
	for _, b := range plan.Backlogs {
		if b.StoryID != "" {
			totalPoints += b.StoryPoints
		}
		totalTasks += len(b.Tasks)
		for _, t := range b.Tasks {
			totalHours += t.EstimatedHours
		}
	}

	var points []Point
	for d := day(plan.Start); !d.After(day(plan.End)); d = d.AddDate(0, 0, 1) {
		points = append(points, Point{
			Date:                 d,
			TotalStoryPoints:     totalPoints,
			RemainingStoryPoints: totalPoints,
			TotalTasks:           totalTasks,
			RemainingTasks:       totalTasks,
			TotalHours:           totalHours,
			RemainingHours:       totalHours,
		})
	}
	return UpdateBurndown(points, plan), nil
}

// UpdateBurndown recomputes the progress of each point from the tasks'
// completion times. A task counts as done on a date when it is in the Done
// stage and entered it on or before that date. Each done task contributes
// its worked hours and an even share of its backlog's story points.
func UpdateBurndown(points []Point, plan *Plan) []Point {
	out := make([]Point, len(points))
	for i, pt := range points {
		pt.CompletedTasks = 0
		pt.CompletedHours = 0
		pt.CompletedStoryPoints = 0

		for _, b := range plan.Backlogs {
			for _, t := range b.Tasks {
				if !t.Done() || t.DoneAt == nil || day(*t.DoneAt).After(day(pt.Date)) {
					continue
				}
				pt.CompletedTasks++
				pt.CompletedHours += t.WorkedHours()
				if b.StoryID != "" && len(b.Tasks) > 0 {
					pt.CompletedStoryPoints += b.StoryPoints / float64(len(b.Tasks))
				}
			}
		}

		pt.RemainingTasks = pt.TotalTasks - pt.CompletedTasks
		pt.RemainingHours = pt.TotalHours - pt.CompletedHours
		pt.RemainingStoryPoints = pt.TotalStoryPoints - pt.CompletedStoryPoints
		pt.IdealRemaining = IdealRemaining(plan, pt.Date, pt.TotalStoryPoints)
		pt.Variance = pt.RemainingStoryPoints - pt.IdealRemaining
		out[i] = pt
	}
	return out
}

// Trend classifies a sprint against its ideal line.
type Trend string

const (
	TrendOnTrack Trend = "On Track"
	TrendBehind  Trend = "Behind"
	TrendAhead   Trend = "Ahead"
)

// Summary describes the latest state of a burndown.
type Summary struct {
	PlanName             string  `json:"plan"`
	Total                float64 `json:"total"`
	Completed            float64 `json:"completed"`
	Remaining            float64 `json:"remaining"`
	CompletionPercentage float64 `json:"completion_percentage"`
	IdealRemaining       float64 `json:"ideal_remaining"`
	Variance             float64 `json:"variance"`
	Trend                Trend   `json:"trend"`
}

// Summarize compares the last point with the first. A sprint is on track
// while |variance| stays under 10% of total work. It returns false for no data.
func Summarize(plan *Plan, points []Point) (Summary, bool) {
	if len(points) == 0 {
		return Summary{}, false
	}
	sorted := sortedByDate(points)
	first, last := sorted[0], sorted[len(sorted)-1]

	s := Summary{
		PlanName:       plan.Name(),
		Total:          first.TotalStoryPoints,
		Remaining:      last.RemainingStoryPoints,
		IdealRemaining: last.IdealRemaining,
		Variance:       last.Variance,
	}
	s.Completed = s.Total - s.Remaining
	if s.Total > 0 {
		s.CompletionPercentage = s.Completed / s.Total * 100
	}

	switch {
	case math.Abs(s.Variance) < s.Total*onTrackRatio:
		s.Trend = TrendOnTrack
	case s.Variance > 0:
		s.Trend = TrendBehind
	default:
		s.Trend = TrendAhead
	}
	return s, true
}

// String renders the summary as plain text.
func (s Summary) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "Sprint Burndown Summary for %s:\n\n", s.PlanName)
	fmt.Fprintf(&b, "Total Work: %.1f story points\n", s.Total)
	fmt.Fprintf(&b, "Completed: %.1f story points (%.1f%%)\n", s.Completed, s.CompletionPercentage)
	fmt.Fprintf(&b, "Remaining: %.1f story points\n\n", s.Remaining)
	fmt.Fprintf(&b, "Ideal Remaining: %.1f story points\n", s.IdealRemaining)
	fmt.Fprintf(&b, "Variance: %+.1f story points\n", s.Variance)
	fmt.Fprintf(&b, "Status: %s\n", s.Trend)
	return b.String()
}

// Series is burndown data shaped for plotting.
type Series struct {
	Dates  []string  `json:"dates"`
	Actual []float64 `json:"actual_remaining"`
	Ideal  []float64 `json:"ideal_remaining"`
	Total  float64   `json:"total"`
}

// ChartSeries returns remaining and ideal story points per date in order.
func ChartSeries(points []Point) Series {
	sorted := sortedByDate(points)
	s := Series{
		Dates:  make([]string, len(sorted)),
		Actual: make([]float64, len(sorted)),
		Ideal:  make([]float64, len(sorted)),
	}
	for i, pt := range sorted {
		s.Dates[i] = pt.Date.Format(dateLayout)
		s.Actual[i] = pt.RemainingStoryPoints
		s.Ideal[i] = pt.IdealRemaining
	}
	if len(sorted) > 0 {
		s.Total = sorted[0].TotalStoryPoints
	}
	return s
}

func sortedByDate(points []Point) []Point {
	sorted := make([]Point, len(points))
	copy(sorted, points)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Date.Before(sorted[j].Date)
	})
	return sorted
}
