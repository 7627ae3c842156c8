package analysis

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
)

// Fallback values used when the model's reply is not JSON.
const (
	FallbackScore    = 50.0
	FallbackFeedback = "Unable to parse AI response"
	FallbackIssues   = "JSON parsing error"
)

var validate = validator.New()

// Response is the structured reply a prompt asks the model for.
type Response struct {
	Score       float64        `json:"score" validate:"min=0,max=100"`
	Feedback    string         `json:"feedback"`
	Suggestions string         `json:"suggestions"`
	Issues      string         `json:"issues"`
	Details     map[string]any `json:"details"`
}

// text accepts a JSON string or a list of strings, joined one per line.
// Models often answer "suggestions" and "issues" with lists.
type text string

func (t *text) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		*t = text(s)
		return nil
	}
	var list []string
	if err := json.Unmarshal(data, &list); err == nil {
		*t = text(strings.Join(list, "\n"))
		return nil
	}
	*t = text(strings.TrimSpace(string(data)))
	return nil
}

type wireResponse struct {
	Score       float64        `json:"score"`
	Feedback    text           `json:"feedback"`
	Suggestions text           `json:"suggestions"`
	Issues      text           `json:"issues"`
	Details     map[string]any `json:"details"`
}

// ParseResponse decodes the model's reply. Markdown code fences and prose
// around the JSON object are tolerated. A reply that holds no decodable JSON
// yields the fallback response rather than an error; a score outside 0..100
// is an error.
func ParseResponse(content string) (Response, error) {
	var w wireResponse
	if err := json.Unmarshal([]byte(extractJSON(content)), &w); err != nil {
		return Response{
			Score:    FallbackScore,
			Feedback: FallbackFeedback,
			Issues:   FallbackIssues,
			Details:  map[string]any{},
		}, nil
	}

	resp := Response{
		Score:       w.Score,
		Feedback:    string(w.Feedback),
		Suggestions: string(w.Suggestions),
		Issues:      string(w.Issues),
		Details:     w.Details,
	}
	if resp.Details == nil {
		resp.Details = map[string]any{}
	}
	if err := validate.Struct(resp); err != nil {
		return Response{}, fmt.Errorf("%w: score %v is outside 0-100", ErrInvalidResponse, resp.Score)
	}
	return resp, nil
}

// extractJSON strips code fences and returns the outermost {...} span.
func extractJSON(content string) string {
	s := strings.TrimSpace(content)
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(s, "```")
	s = strings.TrimSpace(s)

	start := strings.Index(s, "{")
	end := strings.LastIndex(s, "}")
	if start >= 0 && end > start {
		return s[start : end+1]
	}
	return s
}
