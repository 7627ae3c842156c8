package analysis

import (
	"github.com/tec-more/odoo-plugins/internal/outline"
	"github.com/tec-more/odoo-plugins/internal/sprint"
)

// ContextFromNode describes a parsed story node. Its tasks count toward
// the story's task totals; none are complete yet.
func ContextFromNode(project string, n *outline.Node) Context {
	return Context{
		ProjectName:          project,
		UserStory:            n.Name,
		UserStoryDescription: n.Description,
		AcceptanceCriteria:   n.AcceptanceCriteria,
		StoryStatus:          "draft",
		EstimatedStoryPoints: n.EstimatedStoryPoints,
		TotalTasks:           len(n.Tasks),
	}
}

// ContextFromTask describes a sprint task. story, when non-nil, supplies
// the user story the task implements.
func ContextFromTask(project string, t *sprint.Task, story *outline.Node) Context {
	c := Context{
		ProjectName:     project,
		TaskName:        t.Name,
		TaskDescription: t.Description,
		TaskStatus:      string(t.Stage),
		EstimatedHours:  t.EstimatedHours,
		ActualHours:     t.ActualHours,
	}
	if story != nil {
		c.UserStory = story.Name
		c.UserStoryDescription = story.Description
		c.AcceptanceCriteria = story.AcceptanceCriteria
	}
	return c
}

// ContextFromBacklog describes a sprint backlog and its task completion.
func ContextFromBacklog(project string, b *sprint.SprintBacklog) Context {
	done, total, pct := b.Completion()
	return Context{
		ProjectName:       project,
		SprintBacklogName: b.Name,
		TotalTasks:        total,
		CompletedTasks:    done,
		Completion:        pct,
	}
}

// ContextFromPlan describes a sprint plan and its backlog completion.
func ContextFromPlan(project string, p *sprint.Plan) Context {
	prog := p.Progress()
	return Context{
		ProjectName:       project,
		SprintName:        p.Name(),
		SprintGoal:        p.Goal,
		SprintStatus:      string(p.Status),
		Iteration:         p.Iteration,
		Start:             p.Start,
		End:               p.End,
		TotalBacklogs:     prog.TotalBacklogs,
		CompletedBacklogs: prog.CompletedBacklogs,
		Completion:        prog.CompletionPercentage,
	}
}
