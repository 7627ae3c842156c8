package cmd

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/lipgloss/tree"
	"golang.org/x/term"

	"github.com/tec-more/odoo-plugins/internal/backlog"
	"github.com/tec-more/odoo-plugins/internal/style"
)

// renderBacklog draws the records created under root.
func renderBacklog(store *backlog.MemoryStore, root *backlog.Backlog) string {
	t := tree.Root(style.Bold.Render(root.Name)).
		Enumerator(tree.RoundedEnumerator).
		EnumeratorStyle(style.Subtle)
	addBacklogChildren(t, store, root.ID)
	return t.String()
}

func addBacklogChildren(t *tree.Tree, store *backlog.MemoryStore, backlogID string) {
	for _, b := range store.Backlogs(backlogID) {
		child := tree.Root(style.Bold.Render(b.Name) + style.Dim.Render(fmt.Sprintf(" L%d", b.Level)))
		addBacklogChildren(child, store, b.ID)
		t.Child(child)
	}
	for _, s := range store.Stories(backlogID) {
		label := s.Name
		if s.EstimatedStoryPoints > 0 {
			label += style.Dim.Render(fmt.Sprintf(" %g pts", s.EstimatedStoryPoints))
		}
		tasks := store.Tasks(backlogID, s.ID)
		if len(tasks) == 0 {
			t.Child(label)
			continue
		}
		story := tree.Root(label)
		for _, task := range tasks {
			story.Child(taskLabel(task))
		}
		t.Child(story)
	}
	for _, task := range store.Tasks(backlogID, "") {
		t.Child(taskLabel(task))
	}
}

func taskLabel(task *backlog.Task) string {
	label := style.Task.Render("[task] " + task.Name)
	if task.EstimatedHours > 0 {
		label += style.Dim.Render(fmt.Sprintf(" %gh", task.EstimatedHours))
	}
	return label
}

// renderMarkdown renders md for a terminal. Non-terminal output gets the
// plain markdown back.
func renderMarkdown(out io.Writer, md string, noColor bool) string {
	f, ok := out.(*os.File)
	if !ok || noColor || !term.IsTerminal(int(f.Fd())) {
		return md
	}
	width := 80
	if w, _, err := term.GetSize(int(f.Fd())); err == nil && w > 20 {
		width = w - 4
	}
	renderer, err := glamour.NewTermRenderer(
		glamour.WithAutoStyle(),
		glamour.WithWordWrap(width),
	)
	if err != nil {
		return md
	}
	rendered, err := renderer.Render(md)
	if err != nil {
		return md
	}
	return strings.TrimRight(rendered, "\n")
}
