package analysis

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/tec-more/odoo-plugins/internal/hooks"
	"github.com/tec-more/odoo-plugins/internal/outline"
	"github.com/tec-more/odoo-plugins/internal/sprint"
	"github.com/tec-more/odoo-plugins/internal/templates"
)

// fakeChatModel implements model.BaseChatModel with a canned reply.
type fakeChatModel struct {
	reply string
	err   error

	mu    sync.Mutex
	calls [][]*schema.Message
}

func (m *fakeChatModel) Generate(ctx context.Context, input []*schema.Message, opts ...model.Option) (*schema.Message, error) {
	m.mu.Lock()
	m.calls = append(m.calls, input)
	m.mu.Unlock()
	if m.err != nil {
		return nil, m.err
	}
	return schema.AssistantMessage(m.reply, nil), nil
}

func (m *fakeChatModel) Stream(ctx context.Context, input []*schema.Message, opts ...model.Option) (*schema.StreamReader[*schema.Message], error) {
	return nil, errors.New("not implemented")
}

var fixedNow = time.Date(2026, 5, 4, 9, 30, 0, 0, time.UTC)

func storyAnalysis(kind Kind) *Analysis {
	return New("an-1", kind, Context{
		ProjectName:        "Shop",
		UserStory:          "Login",
		AcceptanceCriteria: "user can sign in",
	})
}

func TestGradeFor(t *testing.T) {
	tests := []struct {
		score float64
		want  Grade
	}{
		{100, GradeA}, {90, GradeA}, {89.99, GradeB}, {80, GradeB},
		{79.5, GradeC}, {70, GradeC}, {60, GradeD}, {59.9, GradeE}, {0, GradeE},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, GradeFor(tt.score), "score %v", tt.score)
	}
}

func TestParseKind(t *testing.T) {
	k, err := ParseKind("code-review")
	require.NoError(t, err)
	assert.Equal(t, KindCodeReview, k)

	k, err = ParseKind("sprint_review")
	require.NoError(t, err)
	assert.Equal(t, KindSprintReview, k)

	_, err = ParseKind("security")
	assert.ErrorIs(t, err, ErrUnknownKind)
}

func TestParseResponse(t *testing.T) {
	tests := []struct {
		name    string
		content string
		want    Response
	}{
		{
			name:    "plain",
			content: `{"score": 82, "feedback": "solid", "suggestions": "split it", "issues": "", "details": {"clarity": 8}}`,
			want: Response{Score: 82, Feedback: "solid", Suggestions: "split it",
				Details: map[string]any{"clarity": 8.0}},
		},
		{
			name:    "fenced",
			content: "```json\n{\"score\": 71.5, \"feedback\": \"ok\"}\n```",
			want:    Response{Score: 71.5, Feedback: "ok", Details: map[string]any{}},
		},
		{
			name:    "prose around",
			content: "Here is my review:\n{\"score\": 40, \"issues\": \"vague\"}\nThanks!",
			want:    Response{Score: 40, Issues: "vague", Details: map[string]any{}},
		},
		{
			name:    "lists",
			content: `{"score": 65, "suggestions": ["add criteria", "estimate"], "issues": ["no owner"]}`,
			want: Response{Score: 65, Suggestions: "add criteria\nestimate", Issues: "no owner",
				Details: map[string]any{}},
		},
		{
			name:    "not json",
			content: "I think this story is fine.",
			want: Response{Score: FallbackScore, Feedback: FallbackFeedback, Issues: FallbackIssues,
				Details: map[string]any{}},
		},
		{
			name:    "truncated",
			content: `{"score": 80, "feedback": "cut off`,
			want: Response{Score: FallbackScore, Feedback: FallbackFeedback, Issues: FallbackIssues,
				Details: map[string]any{}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseResponse(tt.content)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParseResponse_ScoreOutOfRange(t *testing.T) {
	for _, content := range []string{`{"score": 120}`, `{"score": -1}`} {
		_, err := ParseResponse(content)
		assert.ErrorIs(t, err, ErrInvalidResponse, content)
	}
}

func TestBuildPrompt(t *testing.T) {
	prompt, err := BuildPrompt(KindRequirement, Context{ProjectName: "Shop", UserStory: "Login", AcceptanceCriteria: "works"})
	require.NoError(t, err)
	assert.Contains(t, prompt, "As an AI requirement analyst")
	assert.Contains(t, prompt, "User Story: Login")
	assert.Contains(t, prompt, "Acceptance Criteria: works")

	prompt, err = BuildPrompt(KindQuality, Context{ProjectName: "Shop"})
	require.NoError(t, err)
	assert.Contains(t, prompt, "Type: quality", "kind is filled in from the argument")

	_, err = BuildPrompt("security", Context{})
	assert.ErrorIs(t, err, ErrUnknownKind)
}

func TestAnalyzer_Run(t *testing.T) {
	fake := &fakeChatModel{reply: `{"score": 84, "feedback": "clear", "suggestions": "add edge cases", "issues": "none", "details": {"clarity": 9}}`}
	a := NewAnalyzer(fake, Options{ModelName: "gpt-4", Logger: zaptest.NewLogger(t), Now: func() time.Time { return fixedNow }})

	an := storyAnalysis(KindQuality)
	require.NoError(t, a.Run(context.Background(), an))

	assert.Equal(t, StatusCompleted, an.Status)
	assert.Equal(t, 84.0, an.Score)
	assert.Equal(t, GradeB, an.Grade)
	assert.Equal(t, "clear", an.Feedback)
	assert.Equal(t, "add edge cases", an.Suggestions)
	assert.Equal(t, "none", an.Issues)
	assert.Equal(t, map[string]any{"clarity": 9.0}, an.Details)
	assert.Equal(t, "gpt-4", an.Model)
	assert.Equal(t, fixedNow, an.AnalyzedAt)
	assert.Equal(t, ApprovalPending, an.Approval)

	require.Len(t, fake.calls, 1)
	msgs := fake.calls[0]
	require.Len(t, msgs, 2)
	assert.Equal(t, schema.System, msgs[0].Role)
	assert.Equal(t, templates.Default().System, msgs[0].Content)
	assert.Equal(t, schema.User, msgs[1].Role)
	assert.Contains(t, msgs[1].Content, "User Story: Login")
}

func TestAnalyzer_RunFallbackReply(t *testing.T) {
	a := NewAnalyzer(&fakeChatModel{reply: "looks fine to me"}, Options{})

	an := storyAnalysis(KindCodeReview)
	require.NoError(t, a.Run(context.Background(), an))
	assert.Equal(t, StatusCompleted, an.Status)
	assert.Equal(t, FallbackScore, an.Score)
	assert.Equal(t, GradeE, an.Grade)
	assert.Equal(t, FallbackFeedback, an.Feedback)
	assert.Equal(t, FallbackIssues, an.Issues)
}

func TestAnalyzer_RunFailures(t *testing.T) {
	boom := errors.New("boom")
	tests := []struct {
		name     string
		model    model.BaseChatModel
		kind     Kind
		wantErr  error
		feedback string
	}{
		{"no model", nil, KindQuality, ErrNoModel, "Analysis failed: " + ErrNoModel.Error()},
		{"model error", &fakeChatModel{err: boom}, KindQuality, boom, "Analysis failed: calling model: boom"},
		{"bad score", &fakeChatModel{reply: `{"score": 250}`}, KindQuality, ErrInvalidResponse, ""},
		{"unknown kind", &fakeChatModel{reply: `{}`}, "security", ErrUnknownKind, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a := NewAnalyzer(tt.model, Options{Logger: zaptest.NewLogger(t)})
			an := storyAnalysis(tt.kind)

			err := a.Run(context.Background(), an)
			require.ErrorIs(t, err, tt.wantErr)
			assert.Equal(t, StatusFailed, an.Status)
			assert.Equal(t, "Analysis failed: "+err.Error(), an.Feedback)
			if tt.feedback != "" {
				assert.Equal(t, tt.feedback, an.Feedback)
			}
			assert.Zero(t, an.Score)
		})
	}
}

func TestAnalyzer_CustomPrompts(t *testing.T) {
	set, err := templates.ParsePromptSet([]byte("name: mini\nsystem: Be brief.\nprompts:\n  - kind: quality\n    template: 'Score {{.UserStory}}'\n"))
	require.NoError(t, err)

	fake := &fakeChatModel{reply: `{"score": 91}`}
	a := NewAnalyzer(fake, Options{Prompts: set})
	an := storyAnalysis(KindQuality)
	require.NoError(t, a.Run(context.Background(), an))

	assert.Equal(t, GradeA, an.Grade)
	assert.Equal(t, "Be brief.", fake.calls[0][0].Content)
	assert.Equal(t, "Score Login", fake.calls[0][1].Content)
}

func TestAnalyzer_FiresCompletedHook(t *testing.T) {
	var (
		mu  sync.Mutex
		got []hooks.HookContext
	)
	hooks.RegisterBuiltin("test-capture-analysis", func(ctx hooks.HookContext) hooks.HookResult {
		mu.Lock()
		got = append(got, ctx)
		mu.Unlock()
		return hooks.Success("captured", 0)
	})

	dir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, ".scrum"), 0755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".scrum", hooks.ConfigFile),
		[]byte(`{"hooks":{"analysis-completed":[{"type":"builtin","builtin":"test-capture-analysis"}]}}`), 0644))
	runner, err := hooks.NewHookRunner(dir, ".scrum", zaptest.NewLogger(t))
	require.NoError(t, err)

	a := NewAnalyzer(&fakeChatModel{reply: `{"score": 77}`}, Options{Hooks: runner})
	require.NoError(t, a.Run(context.Background(), storyAnalysis(KindRequirement)))

	failing := NewAnalyzer(nil, Options{Hooks: runner})
	require.Error(t, failing.Run(context.Background(), storyAnalysis(KindRequirement)))

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, got, 2)
	assert.Equal(t, hooks.EventAnalysisCompleted, got[0].EventType)
	assert.Equal(t, "an-1", got[0].ImportID)
	assert.Equal(t, "Requirement Compliance - Login", got[0].Source)
	assert.Equal(t, "C", got[0].Metadata["grade"])
	assert.Equal(t, 77.0, got[0].Metadata["score"])
	assert.NoError(t, got[0].Err)

	assert.ErrorIs(t, got[1].Err, ErrNoModel)
	assert.Equal(t, "failed", got[1].Metadata["status"])
}

func TestAnalysis_Review(t *testing.T) {
	an := storyAnalysis(KindQuality)
	require.ErrorIs(t, an.Approve("pm", "", fixedNow), ErrNotCompleted)
	assert.Equal(t, ApprovalPending, an.Approval)

	an.Status = StatusCompleted
	require.NoError(t, an.Approve("pm", "good enough", fixedNow))
	assert.Equal(t, ApprovalApproved, an.Approval)
	assert.Equal(t, "pm", an.ReviewedBy)
	assert.Equal(t, fixedNow, an.ReviewedAt)
	assert.Equal(t, "good enough", an.ApprovalNotes)

	failed := storyAnalysis(KindQuality)
	failed.Status = StatusFailed
	failed.Reject("coach", "", fixedNow)
	assert.Equal(t, ApprovalRejected, failed.Approval)
	assert.Equal(t, "coach", failed.ReviewedBy)
}

func TestAnalysis_Resend(t *testing.T) {
	an := storyAnalysis(KindQuality)
	an.Status = StatusCompleted
	an.Score = 88
	an.Grade = GradeB
	an.Feedback = "fine"
	an.Suggestions = "more"
	an.Issues = "few"
	an.Details = map[string]any{"clarity": 7.0}
	require.NoError(t, an.Approve("pm", "", fixedNow))

	an.Resend()
	assert.Equal(t, StatusPending, an.Status)
	assert.Equal(t, ApprovalPending, an.Approval)
	assert.Zero(t, an.Score)
	assert.Empty(t, an.Grade)
	assert.Empty(t, an.Feedback)
	assert.Empty(t, an.Suggestions)
	assert.Empty(t, an.Issues)
	assert.Empty(t, an.Details)
	assert.Empty(t, an.DetailsJSON())
}

func TestAnalysis_Name(t *testing.T) {
	tests := []struct {
		kind Kind
		ctx  Context
		want string
	}{
		{KindCodeReview, Context{ProjectName: "Shop", UserStory: "Login", TaskName: "Form"}, "Code Review - Form"},
		{KindQuality, Context{ProjectName: "Shop", UserStory: "Login"}, "Quality Assessment - Login"},
		{KindSprintReview, Context{ProjectName: "Shop", SprintBacklogName: "SB-1", SprintName: "S"}, "Sprint Review - SB-1"},
		{KindSprintReview, Context{ProjectName: "Shop", SprintName: "Shop-Core-Sprint 1"}, "Sprint Review - Shop-Core-Sprint 1"},
		{KindRequirement, Context{ProjectName: "Shop"}, "Requirement Compliance - Shop"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, New("x", tt.kind, tt.ctx).Name())
	}
}

func TestAnalysis_DetailsJSON(t *testing.T) {
	an := &Analysis{Details: map[string]any{"clarity": 8, "factors": []string{"scope"}}}
	assert.Equal(t, "{\n  \"clarity\": 8,\n  \"factors\": [\n    \"scope\"\n  ]\n}", an.DetailsJSON())
}

func TestContextFrom(t *testing.T) {
	story := &outline.Node{
		Name:                 "Login",
		Description:          "sign in",
		AcceptanceCriteria:   "works",
		EstimatedStoryPoints: 5,
		Tasks:                []*outline.Node{{Name: "Form"}, {Name: "Session"}},
	}
	c := ContextFromNode("Shop", story)
	assert.Equal(t, "Login", c.UserStory)
	assert.Equal(t, "works", c.AcceptanceCriteria)
	assert.Equal(t, 5.0, c.EstimatedStoryPoints)
	assert.Equal(t, 2, c.TotalTasks)

	task := &sprint.Task{Name: "Form", Stage: sprint.StageReview, EstimatedHours: 3, ActualHours: 4}
	c = ContextFromTask("Shop", task, story)
	assert.Equal(t, "Form", c.TaskName)
	assert.Equal(t, "Review", c.TaskStatus)
	assert.Equal(t, "Login", c.UserStory)
	assert.Equal(t, 4.0, c.ActualHours)

	backlog := &sprint.SprintBacklog{Name: "SB-1", Tasks: []*sprint.Task{{Stage: sprint.StageDone}, {Stage: sprint.StageToDo}}}
	c = ContextFromBacklog("Shop", backlog)
	assert.Equal(t, "SB-1", c.SprintBacklogName)
	assert.Equal(t, 1, c.CompletedTasks)
	assert.Equal(t, 50.0, c.Completion)

	plan := &sprint.Plan{Project: "Shop", Team: "Core", Iteration: 2, Goal: "ship login",
		Status: sprint.StatusInProgress, Backlogs: []*sprint.SprintBacklog{{Status: sprint.StatusCompleted}, backlog}}
	c = ContextFromPlan("Shop", plan)
	assert.Equal(t, "Shop-Core-Sprint 2", c.SprintName)
	assert.Equal(t, "in_progress", c.SprintStatus)
	assert.Equal(t, 2, c.TotalBacklogs)
	assert.Equal(t, 1, c.CompletedBacklogs)
	assert.Equal(t, 50.0, c.Completion)

	prompt, err := BuildPrompt(KindSprintReview, c)
	require.NoError(t, err)
	assert.Contains(t, prompt, "Sprint: Shop-Core-Sprint 2\nGoal: ship login\nStatus: in_progress\nCompletion: 50%")
}
