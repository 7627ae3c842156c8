package backlog

import (
	"context"
	"fmt"

	"github.com/tec-more/odoo-plugins/internal/outline"
)

// Result lists the records created by Materialize, in creation order.
type Result struct {
	Backlogs []*Backlog `json:"backlogs"`
	Stories  []*Story   `json:"stories"`
	Tasks    []*Task    `json:"tasks"`
}

// Total returns the number of records created.
func (r *Result) Total() int {
	return len(r.Backlogs) + len(r.Stories) + len(r.Tasks)
}

// Materialize creates records for an outline tree under the backlog
// containerID.
//
// Every node with children becomes a Backlog nested under the previous one
// (the container for roots). Every node without children becomes a Story in
// the nearest enclosing backlog. Task leaves become Tasks of their node.
// Sibling order, names, text fields, priorities and estimates are copied
// verbatim. When store is a TxStore all writes happen in one transaction.
func Materialize(ctx context.Context, store Store, containerID string, nodes []*outline.Node) (*Result, error) {
	if containerID == "" {
		return nil, ErrContainerRequired
	}

	var result *Result
	run := func(s Store) error {
		container, err := s.GetBacklog(ctx, containerID)
		if err != nil {
			return fmt.Errorf("loading container %s: %w", containerID, err)
		}
		m := &materializer{store: s, result: &Result{}}
		for _, n := range nodes {
			if err := m.node(ctx, container, n); err != nil {
				return err
			}
		}
		result = m.result
		return nil
	}

	if tx, ok := store.(TxStore); ok {
		if err := tx.WithinTx(ctx, run); err != nil {
			return nil, err
		}
		return result, nil
	}
	if err := run(store); err != nil {
		return nil, err
	}
	return result, nil
}

type materializer struct {
	store  Store
	result *Result
}

func (m *materializer) node(ctx context.Context, parent *Backlog, n *outline.Node) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	if n.IsLeaf() {
		story := &Story{
			BacklogID:            parent.ID,
			Name:                 n.Name,
			Description:          n.Description,
			AcceptanceCriteria:   n.AcceptanceCriteria,
			Priority:             n.Priority,
			Status:               StatusToDo,
			EstimatedStoryPoints: n.EstimatedStoryPoints,
		}
		id, err := m.store.CreateStory(ctx, story)
		if err != nil {
			return fmt.Errorf("creating story %q: %w", n.Name, err)
		}
		story.ID = id
		m.result.Stories = append(m.result.Stories, story)
		return m.tasks(ctx, parent.ID, id, n.Tasks)
	}

	b := &Backlog{
		ProjectID:            parent.ProjectID,
		ParentID:             parent.ID,
		Name:                 n.Name,
		Description:          n.Description,
		Priority:             n.Priority,
		Level:                parent.Level + 1,
		Status:               StatusToDo,
		EstimatedStoryPoints: n.EstimatedStoryPoints,
	}
	id, err := m.store.CreateBacklog(ctx, b)
	if err != nil {
		return fmt.Errorf("creating backlog %q: %w", n.Name, err)
	}
	b.ID = id
	m.result.Backlogs = append(m.result.Backlogs, b)

	for _, child := range n.Children {
		if err := m.node(ctx, b, child); err != nil {
			return err
		}
	}
	return m.tasks(ctx, id, "", n.Tasks)
}

func (m *materializer) tasks(ctx context.Context, backlogID, storyID string, tasks []*outline.Node) error {
	for _, t := range tasks {
		task := &Task{
			BacklogID:      backlogID,
			StoryID:        storyID,
			Name:           t.Name,
			Description:    t.Description,
			Priority:       t.Priority,
			EstimatedHours: t.EstimatedHours,
		}
		id, err := m.store.CreateTask(ctx, task)
		if err != nil {
			return fmt.Errorf("creating task %q: %w", t.Name, err)
		}
		task.ID = id
		m.result.Tasks = append(m.result.Tasks, task)
	}
	return nil
}
