// Package backlog materializes parsed outlines into product backlog, user
// story and task records.
package backlog

import (
	"context"
	"errors"
)

// Common errors
var (
	ErrContainerRequired = errors.New("destination backlog is required")
	ErrNotFound          = errors.New("record not found")
)

// Status is the workflow state shared by backlogs and stories.
type Status string

const (
	StatusToDo       Status = "to_do"
	StatusInProgress Status = "in_progress"
	StatusDone       Status = "done"
)

// Backlog is a product backlog item. Backlogs nest through ParentID.
type Backlog struct {
	ID                   string  `json:"id"`
	ProjectID            string  `json:"project_id"`
	ParentID             string  `json:"parent_id,omitempty"`
	Name                 string  `json:"name"`
	Description          string  `json:"description,omitempty"`
	Priority             int     `json:"priority"`
	Level                int     `json:"level"` // 1 for top-level backlogs
	Status               Status  `json:"status"`
	EstimatedStoryPoints float64 `json:"estimated_story_points"`
}

// Story is a user story belonging to a product backlog.
type Story struct {
	ID                   string  `json:"id"`
	BacklogID            string  `json:"backlog_id"`
	Name                 string  `json:"name"`
	Description          string  `json:"description,omitempty"`
	AcceptanceCriteria   string  `json:"acceptance_criteria,omitempty"`
	Priority             int     `json:"priority"`
	Status               Status  `json:"status"`
	EstimatedStoryPoints float64 `json:"estimated_story_points"`
}

// Task is an actionable unit of work. Tasks attached to a story carry its
// StoryID; tasks attached directly to a grouping node only carry BacklogID.
type Task struct {
	ID             string  `json:"id"`
	BacklogID      string  `json:"backlog_id"`
	StoryID        string  `json:"story_id,omitempty"`
	Name           string  `json:"name"`
	Description    string  `json:"description,omitempty"`
	Priority       int     `json:"priority"`
	EstimatedHours float64 `json:"estimated_hours"`
}

// Store creates backlog records. Implementations assign IDs.
type Store interface {
	GetBacklog(ctx context.Context, id string) (*Backlog, error)
	CreateBacklog(ctx context.Context, b *Backlog) (string, error)
	CreateStory(ctx context.Context, s *Story) (string, error)
	CreateTask(ctx context.Context, t *Task) (string, error)
}

// TxStore is a Store that can run a group of writes atomically.
type TxStore interface {
	Store
	WithinTx(ctx context.Context, fn func(Store) error) error
}
