package sprint

import (
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

var validate = validator.New()

// planFile is the on-disk shape of a sprint plan. JSON documents decode
// through the same YAML path.
type planFile struct {
	Project   string        `yaml:"project" validate:"required"`
	Team      string        `yaml:"team" validate:"required"`
	Iteration int           `yaml:"iteration" validate:"min=0"`
	Start     string        `yaml:"start"`
	End       string        `yaml:"end"`
	Status    string        `yaml:"status" validate:"omitempty,oneof=planning in_progress completed cancelled"`
	Goal      string        `yaml:"goal"`
	Backlogs  []backlogFile `yaml:"backlogs" validate:"dive"`
	Meetings  []meetingFile `yaml:"meetings" validate:"dive"`
	Members   []memberFile  `yaml:"members" validate:"dive"`
}

type backlogFile struct {
	Name        string     `yaml:"name" validate:"required"`
	Story       string     `yaml:"story"`
	StoryPoints float64    `yaml:"story_points" validate:"min=0"`
	Status      string     `yaml:"status" validate:"omitempty,oneof=planning in_progress completed cancelled"`
	Tasks       []taskFile `yaml:"tasks" validate:"dive"`
}

type taskFile struct {
	Name           string  `yaml:"name" validate:"required"`
	Description    string  `yaml:"description"`
	Priority       int     `yaml:"priority"`
	Stage          string  `yaml:"stage"`
	AssignedTo     string  `yaml:"assigned_to"`
	EstimatedHours float64 `yaml:"estimated_hours" validate:"min=0"`
	ActualHours    float64 `yaml:"actual_hours" validate:"min=0"`
	DoneAt         string  `yaml:"done_at"`
}

type meetingFile struct {
	Name       string `yaml:"name"`
	Kind       string `yaml:"kind" validate:"required,oneof=daily review retrospective"`
	Date       string `yaml:"date"`
	Status     string `yaml:"status" validate:"omitempty,oneof=planned in_progress completed cancelled"`
	Attendance int    `yaml:"attendance" validate:"min=0"`
	Notes      string `yaml:"notes"`
}

type memberFile struct {
	User     string `yaml:"user" validate:"required"`
	Email    string `yaml:"email" validate:"omitempty,email"`
	Role     string `yaml:"role" validate:"omitempty,oneof=product_manager agile_coach team_member stakeholder"`
	Active   *bool  `yaml:"active"`
	Director bool   `yaml:"director"`
}

// ParsePlan decodes a YAML or JSON sprint plan document. Dates use
// YYYY-MM-DD; done_at also accepts RFC 3339. Tasks without a stage start
// in To Do, and a task in the Done stage without done_at counts as done on
// the sprint's first day.
func ParsePlan(data []byte) (*Plan, error) {
	var f planFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parsing sprint plan: %w", err)
	}
	if err := validate.Struct(f); err != nil {
		return nil, fmt.Errorf("invalid sprint plan: %w", err)
	}

	p := &Plan{
		Project:   f.Project,
		Team:      f.Team,
		Iteration: f.Iteration,
		Status:    Status(f.Status),
		Goal:      f.Goal,
	}
	if p.Status == "" {
		p.Status = StatusPlanning
	}
	if p.Iteration == 0 {
		p.Iteration = 1
	}

	var err error
	if p.Start, err = parseDate("start", f.Start); err != nil {
		return nil, err
	}
	if p.End, err = parseDate("end", f.End); err != nil {
		return nil, err
	}
	if !p.Start.IsZero() && !p.End.IsZero() && p.End.Before(p.Start) {
		return nil, fmt.Errorf("invalid sprint plan: end %s is before start %s", f.End, f.Start)
	}

	for _, bf := range f.Backlogs {
		b := &SprintBacklog{
			Name:        bf.Name,
			Status:      Status(bf.Status),
			StoryID:     bf.Story,
			StoryPoints: bf.StoryPoints,
		}
		if b.Status == "" {
			b.Status = StatusPlanning
		}
		for _, tf := range bf.Tasks {
			t, err := tf.task(p.Start)
			if err != nil {
				return nil, fmt.Errorf("backlog %s: %w", bf.Name, err)
			}
			b.Tasks = append(b.Tasks, t)
		}
		p.Backlogs = append(p.Backlogs, b)
	}

	for _, mf := range f.Meetings {
		date, err := parseDate("meeting date", mf.Date)
		if err != nil {
			return nil, err
		}
		m := &Meeting{
			Name:       mf.Name,
			Kind:       MeetingKind(mf.Kind),
			Date:       date,
			Status:     MeetingStatus(mf.Status),
			Attendance: mf.Attendance,
			Notes:      mf.Notes,
		}
		if m.Status == "" {
			m.Status = MeetingPlanned
		}
		p.Meetings = append(p.Meetings, m)
	}

	for _, mf := range f.Members {
		active := mf.Active == nil || *mf.Active
		role := MemberRole(mf.Role)
		if role == "" {
			role = RoleTeamMember
		}
		p.Members = append(p.Members, &TeamMember{
			User:     mf.User,
			Email:    mf.Email,
			Role:     role,
			Active:   active,
			Director: mf.Director,
		})
	}
	return p, nil
}

func (tf taskFile) task(sprintStart time.Time) (*Task, error) {
	t := &Task{
		Name:           tf.Name,
		Description:    tf.Description,
		Priority:       tf.Priority,
		Stage:          Stage(strings.TrimSpace(tf.Stage)),
		AssignedTo:     tf.AssignedTo,
		EstimatedHours: tf.EstimatedHours,
		ActualHours:    tf.ActualHours,
	}
	if t.Stage == "" {
		t.Stage = StageToDo
	}
	if !t.Done() {
		return t, nil
	}

	done := sprintStart
	if tf.DoneAt != "" {
		var err error
		if done, err = parseTime(tf.DoneAt); err != nil {
			return nil, fmt.Errorf("task %s: done_at: %w", tf.Name, err)
		}
	}
	if t.ActualHours == 0 {
		t.ActualHours = t.EstimatedHours
	}
	if !done.IsZero() {
		t.DoneAt = &done
	}
	return t, nil
}

func parseDate(field, s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}
	d, err := time.Parse(dateLayout, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid sprint plan: %s %q: want YYYY-MM-DD", field, s)
	}
	return d, nil
}

func parseTime(s string) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t, nil
	}
	return time.Parse(dateLayout, s)
}
