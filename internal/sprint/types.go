// Package sprint holds sprint plans, sprint backlogs, tasks, meetings and
// the rollups computed over them.
package sprint

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// Common errors
var (
	ErrNoBacklogs        = errors.New("cannot start sprint plan without any sprint backlogs")
	ErrNothingCompleted  = errors.New("cannot complete sprint plan: at least one sprint backlog must be completed")
	ErrDataExists        = errors.New("burndown data already exists for this sprint")
	ErrDateOutOfRange    = errors.New("date is outside the sprint")
	ErrMissingDates      = errors.New("sprint must have start and end dates")
	ErrInvalidTransition = errors.New("invalid status transition")
)

// Status is the state of a sprint plan or sprint backlog.
type Status string

const (
	StatusPlanning   Status = "planning"
	StatusInProgress Status = "in_progress"
	StatusCompleted  Status = "completed"
	StatusCancelled  Status = "cancelled"
)

// Plan is one iteration of a team on a project.
type Plan struct {
	ID        string
	Project   string
	Team      string
	Iteration int
	Start     time.Time
	End       time.Time
	Status    Status
	Goal      string
	Backlogs  []*SprintBacklog
	Meetings  []*Meeting
	Members   []*TeamMember
}

// Name returns "<project>-<team>-Sprint <n>", or "" while any part is unset.
func (p *Plan) Name() string {
	if p.Project == "" || p.Team == "" || p.Iteration == 0 {
		return ""
	}
	return fmt.Sprintf("%s-%s-Sprint %d", p.Project, p.Team, p.Iteration)
}

// NextIteration returns one more than the highest iteration among plans of
// the same project and team, or 1 for the first plan.
func NextIteration(plans []*Plan, project, team string) int {
	highest := 0
	for _, p := range plans {
		if p.Project == project && p.Team == team && p.Iteration > highest {
			highest = p.Iteration
		}
	}
	return highest + 1
}

// Progress summarizes a plan's backlogs and meetings.
type Progress struct {
	CompletedBacklogs    int
	TotalBacklogs        int
	CompletionPercentage float64
	CompletedMeetings    map[MeetingKind]int
}

// Progress computes completion over sprint backlogs and counts completed
// meetings per kind. A plan without backlogs reports all zeros.
func (p *Plan) Progress() Progress {
	prog := Progress{CompletedMeetings: make(map[MeetingKind]int)}
	prog.TotalBacklogs = len(p.Backlogs)
	if prog.TotalBacklogs == 0 {
		return prog
	}

	for _, b := range p.Backlogs {
		if b.Status == StatusCompleted {
			prog.CompletedBacklogs++
		}
	}
	prog.CompletionPercentage = percent(prog.CompletedBacklogs, prog.TotalBacklogs)

	for _, m := range p.Meetings {
		if m.Status == MeetingCompleted {
			prog.CompletedMeetings[m.Kind]++
		}
	}
	return prog
}

// Start moves the plan to in progress. The plan needs at least one backlog.
func (p *Plan) Start() error {
	if len(p.Backlogs) == 0 {
		return ErrNoBacklogs
	}
	p.Status = StatusInProgress
	return nil
}

// Complete closes the plan. At least one backlog must be completed.
func (p *Plan) Complete() error {
	for _, b := range p.Backlogs {
		if b.Status == StatusCompleted {
			p.Status = StatusCompleted
			return nil
		}
	}
	return ErrNothingCompleted
}

// Tasks returns every task of every backlog in order.
func (p *Plan) Tasks() []*Task {
	var tasks []*Task
	for _, b := range p.Backlogs {
		tasks = append(tasks, b.Tasks...)
	}
	return tasks
}

// SprintBacklog is the slice of a user story taken into a sprint.
type SprintBacklog struct {
	ID          string
	Name        string
	Status      Status
	StoryID     string
	StoryPoints float64 // estimate of the linked story
	Tasks       []*Task
}

// Completion returns done tasks, total tasks and their percentage
// (0 when there are no tasks).
func (b *SprintBacklog) Completion() (done, total int, pct float64) {
	total = len(b.Tasks)
	for _, t := range b.Tasks {
		if t.Done() {
			done++
		}
	}
	return done, total, percent(done, total)
}

// Stage is a kanban column for sprint tasks. Matching is case-insensitive.
type Stage string

// Default stages in board order.
const (
	StageToDo       Stage = "To Do"
	StageInProgress Stage = "In Progress"
	StageReview     Stage = "Review"
	StageDone       Stage = "Done"
)

// DefaultStages lists the board columns in order.
var DefaultStages = []Stage{StageToDo, StageInProgress, StageReview, StageDone}

// IsDone reports whether s is the Done stage.
func (s Stage) IsDone() bool {
	return strings.EqualFold(strings.TrimSpace(string(s)), string(StageDone))
}

// Task is a unit of sprint work.
type Task struct {
	ID             string
	Name           string
	Description    string
	Priority       int
	Stage          Stage
	AssignedTo     string
	EstimatedHours float64
	ActualHours    float64

	// DoneAt is when the task last entered the Done stage.
	DoneAt *time.Time
}

// Done reports whether the task sits in the Done stage.
func (t *Task) Done() bool {
	return t.Stage.IsDone()
}

// MoveToStage moves the task at the given time. Entering Done records the
// time and, when no actual hours were logged, copies the estimate.
// Leaving Done clears the completion time.
func (t *Task) MoveToStage(stage Stage, at time.Time) {
	if stage == t.Stage {
		return
	}
	t.Stage = stage
	if !stage.IsDone() {
		t.DoneAt = nil
		return
	}
	if t.ActualHours == 0 {
		t.ActualHours = t.EstimatedHours
	}
	done := at
	t.DoneAt = &done
}

// WorkedHours returns actual hours, or the estimate when none were logged.
func (t *Task) WorkedHours() float64 {
	if t.ActualHours != 0 {
		return t.ActualHours
	}
	return t.EstimatedHours
}

// MeetingKind distinguishes the sprint ceremonies.
type MeetingKind string

const (
	MeetingDaily         MeetingKind = "daily"
	MeetingReview        MeetingKind = "review"
	MeetingRetrospective MeetingKind = "retrospective"
)

// MeetingStatus is the state of a meeting.
type MeetingStatus string

const (
	MeetingPlanned    MeetingStatus = "planned"
	MeetingInProgress MeetingStatus = "in_progress"
	MeetingCompleted  MeetingStatus = "completed"
	MeetingCancelled  MeetingStatus = "cancelled"
)

// Meeting is a sprint ceremony.
type Meeting struct {
	Name       string
	Kind       MeetingKind
	Date       time.Time
	Status     MeetingStatus
	Attendance int
	Notes      string
}

// Start marks the meeting in progress.
func (m *Meeting) Start() error {
	if m.Status != "" && m.Status != MeetingPlanned {
		return fmt.Errorf("%w: meeting %s -> %s", ErrInvalidTransition, m.Status, MeetingInProgress)
	}
	m.Status = MeetingInProgress
	return nil
}

// Complete marks the meeting completed. Cancelled meetings stay cancelled.
func (m *Meeting) Complete() error {
	if m.Status == MeetingCancelled || m.Status == MeetingCompleted {
		return fmt.Errorf("%w: meeting %s -> %s", ErrInvalidTransition, m.Status, MeetingCompleted)
	}
	m.Status = MeetingCompleted
	return nil
}

// MemberRole is a team member's Scrum role.
type MemberRole string

const (
	RoleProductManager MemberRole = "product_manager"
	RoleAgileCoach     MemberRole = "agile_coach"
	RoleTeamMember     MemberRole = "team_member"
	RoleStakeholder    MemberRole = "stakeholder"
)

var roleLabels = map[MemberRole]string{
	RoleProductManager: "Product Manager",
	RoleAgileCoach:     "Agile Coach",
	RoleTeamMember:     "Team Member",
	RoleStakeholder:    "Stakeholder",
}

// Label returns the human-readable role name.
func (r MemberRole) Label() string {
	if label, ok := roleLabels[r]; ok {
		return label
	}
	return string(r)
}

// TeamMember is a user's membership in a team.
type TeamMember struct {
	User     string
	Email    string
	Role     MemberRole
	Active   bool
	Director bool
}

// DisplayName returns "<user> (<role>)", or "" when no user is set.
func (m *TeamMember) DisplayName() string {
	if m.User == "" {
		return ""
	}
	return fmt.Sprintf("%s (%s)", m.User, m.Role.Label())
}

func percent(part, total int) float64 {
	if total == 0 {
		return 0
	}
	return float64(part) / float64(total) * 100
}
