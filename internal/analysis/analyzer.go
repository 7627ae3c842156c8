package analysis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
	"go.uber.org/zap"

	"github.com/tec-more/odoo-plugins/internal/hooks"
	"github.com/tec-more/odoo-plugins/internal/templates"
)

// Options configures an Analyzer.
type Options struct {
	Prompts   *templates.PromptSet // nil = built-in prompts
	Hooks     *hooks.HookRunner    // fired with analysis-completed
	Logger    *zap.Logger
	ModelName string // recorded on each analysis
	Now       func() time.Time
}

// Analyzer runs analyses against a chat model.
type Analyzer struct {
	model     model.BaseChatModel
	prompts   *templates.PromptSet
	hooks     *hooks.HookRunner
	logger    *zap.Logger
	modelName string
	now       func() time.Time
}

// NewAnalyzer returns an Analyzer backed by m. m may be nil, in which case
// every run fails with ErrNoModel.
func NewAnalyzer(m model.BaseChatModel, opts Options) *Analyzer {
	a := &Analyzer{
		model:     m,
		prompts:   opts.Prompts,
		hooks:     opts.Hooks,
		logger:    opts.Logger,
		modelName: opts.ModelName,
		now:       opts.Now,
	}
	if a.prompts == nil {
		a.prompts = templates.Default()
	}
	if a.logger == nil {
		a.logger = zap.NewNop()
	}
	if a.now == nil {
		a.now = time.Now
	}
	return a
}

// BuildPrompt renders the built-in prompt for kind.
func BuildPrompt(kind Kind, c Context) (string, error) {
	return buildPrompt(templates.Default(), kind, c)
}

func buildPrompt(set *templates.PromptSet, kind Kind, c Context) (string, error) {
	if !kind.Valid() {
		return "", fmt.Errorf("%w: %q", ErrUnknownKind, kind)
	}
	c.Kind = kind
	return set.Render(string(kind), c)
}

// Run scores an. On success the analysis is completed with the parsed
// score, grade and feedback. On failure it is marked failed with
// "Analysis failed: <err>" as feedback and the error is returned.
func (a *Analyzer) Run(ctx context.Context, an *Analysis) error {
	an.Status = StatusAnalyzing
	an.AnalyzedAt = a.now()
	an.Model = a.modelName

	resp, err := a.score(ctx, an)
	if err != nil {
		an.Status = StatusFailed
		an.Feedback = fmt.Sprintf("Analysis failed: %v", err)
		a.logger.Error("analysis failed",
			zap.String("analysis", an.ID),
			zap.String("kind", string(an.Kind)),
			zap.Error(err))
		a.fire(ctx, an, err)
		return err
	}

	an.Status = StatusCompleted
	an.Score = resp.Score
	an.Grade = GradeFor(resp.Score)
	an.Feedback = resp.Feedback
	an.Suggestions = resp.Suggestions
	an.Issues = resp.Issues
	an.Details = resp.Details

	a.logger.Info("analysis completed",
		zap.String("analysis", an.ID),
		zap.String("kind", string(an.Kind)),
		zap.Float64("score", an.Score),
		zap.String("grade", string(an.Grade)))
	a.fire(ctx, an, nil)
	return nil
}

func (a *Analyzer) score(ctx context.Context, an *Analysis) (Response, error) {
	if a.model == nil {
		return Response{}, ErrNoModel
	}
	prompt, err := buildPrompt(a.prompts, an.Kind, an.Context)
	if err != nil {
		return Response{}, err
	}

	msg, err := a.model.Generate(ctx, []*schema.Message{
		schema.SystemMessage(a.prompts.System),
		schema.UserMessage(prompt),
	})
	if err != nil {
		return Response{}, fmt.Errorf("calling model: %w", err)
	}
	if msg == nil {
		return Response{}, errors.New("calling model: empty reply")
	}
	return ParseResponse(msg.Content)
}

func (a *Analyzer) fire(ctx context.Context, an *Analysis, err error) {
	if a.hooks == nil {
		return
	}
	a.hooks.Fire(hooks.HookContext{
		EventType: hooks.EventAnalysisCompleted,
		ImportID:  an.ID,
		Source:    an.Name(),
		Err:       err,
		Metadata: map[string]any{
			"kind":   string(an.Kind),
			"status": string(an.Status),
			"score":  an.Score,
			"grade":  string(an.Grade),
		},
		Ctx: ctx,
	})
}
