package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/google/uuid"
	"github.com/spf13/afero"
	"github.com/spf13/cobra"

	"github.com/tec-more/odoo-plugins/internal/analysis"
	"github.com/tec-more/odoo-plugins/internal/outline"
	"github.com/tec-more/odoo-plugins/internal/sprint"
	"github.com/tec-more/odoo-plugins/internal/style"
	"github.com/tec-more/odoo-plugins/internal/templates"
)

type analyzeOpts struct {
	Kind    string
	Project string
	Story   string
	Hint    string
	Output  string
}

func newAnalyzeCmd(a *app) *cobra.Command {
	var opts analyzeOpts
	cmd := &cobra.Command{
		Use:   "analyze FILE",
		Short: "Score stories, tasks or a sprint with the AI analyst",
		Long: `Send backlog items to the configured chat model and print its score,
grade (A-E) and feedback.

For quality and requirement analyses FILE is an outline and every user
story is scored. For code_review every task is scored. For sprint_review
FILE is a sprint plan document (see "scrum burndown --help").

The model is configured in the [ai] section of scrum.toml or with
SCRUM_AI_MODEL, SCRUM_AI_BASE_URL and SCRUM_AI_API_KEY.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.runAnalyze(cmd.Context(), cmd.OutOrStdout(), args[0], opts)
		},
	}
	cmd.Flags().StringVarP(&opts.Kind, "kind", "k", string(analysis.KindQuality), "analysis kind (quality, requirement, code_review, sprint_review)")
	cmd.Flags().StringVarP(&opts.Project, "project", "p", "Product Backlog", "project name given to the analyst")
	cmd.Flags().StringVarP(&opts.Story, "story", "s", "", "only analyze the story (or task) with this name")
	cmd.Flags().StringVar(&opts.Hint, "hint", "", "format hint overriding the extension (txt, md, json, yaml)")
	cmd.Flags().StringVarP(&opts.Output, "output", "o", outputAuto, "output format (auto, tree, json)")
	cmd.Flags().String("model", "", "chat model name")
	_ = a.v.BindPFlag("ai.model", cmd.Flags().Lookup("model"))
	return cmd
}

// analysisView is the JSON shape of one analysis.
type analysisView struct {
	ID          string          `json:"id"`
	Name        string          `json:"name"`
	Kind        analysis.Kind   `json:"kind"`
	Status      analysis.Status `json:"status"`
	Model       string          `json:"model,omitempty"`
	Score       float64         `json:"score"`
	Grade       analysis.Grade  `json:"grade,omitempty"`
	Feedback    string          `json:"feedback,omitempty"`
	Suggestions string          `json:"suggestions,omitempty"`
	Issues      string          `json:"issues,omitempty"`
	Details     map[string]any  `json:"details,omitempty"`
}

func viewOf(an *analysis.Analysis) analysisView {
	return analysisView{
		ID:          an.ID,
		Name:        an.Name(),
		Kind:        an.Kind,
		Status:      an.Status,
		Model:       an.Model,
		Score:       an.Score,
		Grade:       an.Grade,
		Feedback:    an.Feedback,
		Suggestions: an.Suggestions,
		Issues:      an.Issues,
		Details:     an.Details,
	}
}

func (a *app) runAnalyze(ctx context.Context, out io.Writer, path string, opts analyzeOpts) error {
	kind, err := analysis.ParseKind(opts.Kind)
	if err != nil {
		return err
	}

	contexts, err := a.analysisContexts(path, kind, opts)
	if err != nil {
		return err
	}
	if len(contexts) == 0 {
		if opts.Story != "" {
			return fmt.Errorf("nothing named %q to analyze in %s", opts.Story, path)
		}
		return fmt.Errorf("nothing to analyze in %s", path)
	}

	analyzer, err := a.analyzer(ctx)
	if err != nil {
		return err
	}

	var (
		views []analysisView
		errs  []error
	)
	for _, c := range contexts {
		an := analysis.New(uuid.NewString(), kind, c)
		if err := analyzer.Run(ctx, an); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", an.Name(), err))
		}
		views = append(views, viewOf(an))
	}

	if resolveOutput(out, opts.Output) == outputJSON {
		if err := writeJSON(out, views); err != nil {
			return err
		}
		return errors.Join(errs...)
	}

	for i, v := range views {
		if i > 0 {
			fmt.Fprintln(out)
		}
		a.printAnalysis(out, v)
	}
	return errors.Join(errs...)
}

func (a *app) analyzer(ctx context.Context) (*analysis.Analyzer, error) {
	chatModel, err := a.newChatModel(ctx, &a.cfg.AI)
	if err != nil {
		return nil, err
	}
	prompts := templates.Default()
	if a.cfg.AI.Prompts != "" {
		if prompts, err = templates.LoadPromptSet(a.cfg.AI.Prompts); err != nil {
			return nil, err
		}
	}
	runner, err := a.hookRunner()
	if err != nil {
		return nil, err
	}
	return analysis.NewAnalyzer(chatModel, analysis.Options{
		Prompts:   prompts,
		Hooks:     runner,
		Logger:    a.logger,
		ModelName: a.cfg.AI.GetModel(),
		Now:       a.now,
	}), nil
}

// analysisContexts builds one context per item of path that kind scores.
func (a *app) analysisContexts(path string, kind analysis.Kind, opts analyzeOpts) ([]analysis.Context, error) {
	if kind == analysis.KindSprintReview {
		data, err := afero.ReadFile(a.fs, path)
		if err != nil {
			return nil, fmt.Errorf("reading %s: %w", path, err)
		}
		plan, err := sprint.ParsePlan(data)
		if err != nil {
			return nil, err
		}
		return []analysis.Context{analysis.ContextFromPlan(opts.Project, plan)}, nil
	}

	nodes, err := a.parseFile(path, opts.Hint)
	if err != nil {
		return nil, err
	}

	var contexts []analysis.Context
	for _, root := range nodes {
		root.Walk(func(n, parent *outline.Node) {
			if opts.Story != "" && !strings.EqualFold(n.Name, opts.Story) {
				return
			}
			switch {
			case kind == analysis.KindCodeReview && n.IsTask():
				task := &sprint.Task{
					Name:           n.Name,
					Description:    n.Description,
					Priority:       n.Priority,
					Stage:          sprint.StageToDo,
					EstimatedHours: n.EstimatedHours,
				}
				var story *outline.Node
				if parent != nil && parent.IsLeaf() {
					story = parent
				}
				contexts = append(contexts, analysis.ContextFromTask(opts.Project, task, story))
			case kind != analysis.KindCodeReview && n.IsLeaf() && !n.IsTask():
				contexts = append(contexts, analysis.ContextFromNode(opts.Project, n))
			}
		})
	}
	return contexts, nil
}

func (a *app) printAnalysis(out io.Writer, v analysisView) {
	fmt.Fprintln(out, style.Header.Render(v.Name))
	if v.Status != analysis.StatusCompleted {
		fmt.Fprintf(out, "%s %s\n", style.ErrorPrefix, v.Feedback)
		return
	}
	grade := style.ForGrade(string(v.Grade)).Render(string(v.Grade))
	fmt.Fprintf(out, "Score: %g (%s)\n\n", v.Score, grade)

	var md strings.Builder
	section := func(title, body string) {
		if strings.TrimSpace(body) == "" {
			return
		}
		fmt.Fprintf(&md, "**%s**\n\n%s\n\n", title, strings.TrimSpace(body))
	}
	section("Feedback", v.Feedback)
	section("Suggestions", v.Suggestions)
	section("Issues", v.Issues)
	fmt.Fprintln(out, renderMarkdown(out, strings.TrimSpace(md.String()), a.noColor))
}
