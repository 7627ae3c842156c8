// Package analysis scores backlog items and sprints with a chat model and
// tracks the review of those scores.
package analysis

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"
)

// Common errors
var (
	ErrNotCompleted    = errors.New("can only approve completed analyses")
	ErrNoModel         = errors.New("no chat model configured")
	ErrUnknownKind     = errors.New("unknown analysis kind")
	ErrInvalidResponse = errors.New("invalid analysis response")
)

// Kind selects the prompt and the scoring dimensions.
type Kind string

const (
	KindQuality      Kind = "quality"
	KindRequirement  Kind = "requirement"
	KindCodeReview   Kind = "code_review"
	KindSprintReview Kind = "sprint_review"
)

// AllKinds lists every analysis kind.
var AllKinds = []Kind{KindQuality, KindRequirement, KindCodeReview, KindSprintReview}

var kindLabels = map[Kind]string{
	KindQuality:      "Quality Assessment",
	KindRequirement:  "Requirement Compliance",
	KindCodeReview:   "Code Review",
	KindSprintReview: "Sprint Review",
}

// Label returns the human-readable kind name, or "" for unknown kinds.
func (k Kind) Label() string {
	return kindLabels[k]
}

// Valid reports whether k is a known kind.
func (k Kind) Valid() bool {
	_, ok := kindLabels[k]
	return ok
}

// ParseKind accepts a kind name such as "code_review" or "code-review".
func ParseKind(s string) (Kind, error) {
	k := Kind(s)
	if !k.Valid() {
		k = Kind(strings.ReplaceAll(s, "-", "_"))
	}
	if !k.Valid() {
		return "", fmt.Errorf("%w: %q", ErrUnknownKind, s)
	}
	return k, nil
}

// Status is where an analysis is in its run.
type Status string

const (
	StatusPending   Status = "pending"
	StatusAnalyzing Status = "analyzing"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
)

// Approval is the review state of a completed analysis.
type Approval string

const (
	ApprovalPending  Approval = "pending"
	ApprovalApproved Approval = "approved"
	ApprovalRejected Approval = "rejected"
)

// Grade buckets a 0-100 score.
type Grade string

const (
	GradeA Grade = "A"
	GradeB Grade = "B"
	GradeC Grade = "C"
	GradeD Grade = "D"
	GradeE Grade = "E"
)

// GradeFor maps a score to A (>= 90), B (>= 80), C (>= 70), D (>= 60) or E.
func GradeFor(score float64) Grade {
	switch {
	case score >= 90:
		return GradeA
	case score >= 80:
		return GradeB
	case score >= 70:
		return GradeC
	case score >= 60:
		return GradeD
	default:
		return GradeE
	}
}

// Context is what a prompt knows about the analyzed item. Only the fields
// of the item kind at hand are set; prompts branch on TaskName, UserStory
// and SprintName.
type Context struct {
	Kind               Kind
	ProjectName        string
	ProjectDescription string

	TaskName        string
	TaskDescription string
	TaskStatus      string
	EstimatedHours  float64
	ActualHours     float64

	UserStory            string
	UserStoryDescription string
	AcceptanceCriteria   string
	StoryStatus          string
	EstimatedStoryPoints float64
	TotalTasks           int
	CompletedTasks       int
	TaskCompletion       float64

	SprintBacklogName string
	SprintName        string
	SprintGoal        string
	SprintStatus      string
	Iteration         int
	Start, End        time.Time
	TotalBacklogs     int
	CompletedBacklogs int
	Completion        float64 // sprint or sprint backlog completion percentage
}

// target names the most specific item the context describes.
func (c *Context) target() string {
	switch {
	case c.TaskName != "":
		return c.TaskName
	case c.UserStory != "":
		return c.UserStory
	case c.SprintBacklogName != "":
		return c.SprintBacklogName
	case c.SprintName != "":
		return c.SprintName
	default:
		return c.ProjectName
	}
}

// Analysis is one scoring run and its review.
type Analysis struct {
	ID      string
	Kind    Kind
	Context Context
	Status  Status
	Model   string

	Score       float64
	Grade       Grade
	Feedback    string
	Suggestions string
	Issues      string
	Details     map[string]any
	AnalyzedAt  time.Time

	Approval      Approval
	ReviewedBy    string
	ReviewedAt    time.Time
	ApprovalNotes string
}

// New returns a pending analysis of kind for c.
func New(id string, kind Kind, c Context) *Analysis {
	return &Analysis{
		ID:       id,
		Kind:     kind,
		Context:  c,
		Status:   StatusPending,
		Approval: ApprovalPending,
	}
}

// Name returns "<kind label> - <item>", where item is the task, story,
// sprint backlog, sprint or project, whichever is most specific.
func (a *Analysis) Name() string {
	return fmt.Sprintf("%s - %s", a.Kind.Label(), a.Context.target())
}

// DetailsJSON returns Details as indented JSON, or "" when there are none.
func (a *Analysis) DetailsJSON() string {
	if len(a.Details) == 0 {
		return ""
	}
	data, err := json.MarshalIndent(a.Details, "", "  ")
	if err != nil {
		return ""
	}
	return string(data)
}

// Approve accepts a completed analysis.
func (a *Analysis) Approve(by, notes string, at time.Time) error {
	if a.Status != StatusCompleted {
		return ErrNotCompleted
	}
	a.review(ApprovalApproved, by, notes, at)
	return nil
}

// Reject turns the analysis down regardless of its status.
func (a *Analysis) Reject(by, notes string, at time.Time) {
	a.review(ApprovalRejected, by, notes, at)
}

func (a *Analysis) review(approval Approval, by, notes string, at time.Time) {
	a.Approval = approval
	a.ReviewedBy = by
	a.ReviewedAt = at
	if notes != "" {
		a.ApprovalNotes = notes
	}
}

// Resend clears results and review so the analysis can run again.
func (a *Analysis) Resend() {
	a.Status = StatusPending
	a.Approval = ApprovalPending
	a.Score = 0
	a.Grade = ""
	a.Feedback = ""
	a.Suggestions = ""
	a.Issues = ""
	a.Details = map[string]any{}
}
