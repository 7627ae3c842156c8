// Package hooks runs user-configured commands and built-in functions at
// points of the import and analysis lifecycle.
package hooks

import (
	"context"
	"time"

	"github.com/tec-more/odoo-plugins/internal/outline"
)

// EventType represents a lifecycle event that can trigger hooks.
type EventType string

// Event type constants.
const (
	EventPreImport         EventType = "pre-import"
	EventPostImport        EventType = "post-import"
	EventImportFailed      EventType = "import-failed"
	EventAnalysisCompleted EventType = "analysis-completed"
)

// AllEventTypes returns all supported event types.
var AllEventTypes = []EventType{
	EventPreImport,
	EventPostImport,
	EventImportFailed,
	EventAnalysisCompleted,
}

// Valid reports whether e is a known event.
func (e EventType) Valid() bool {
	for _, known := range AllEventTypes {
		if e == known {
			return true
		}
	}
	return false
}

// HookType represents the type of hook to execute.
type HookType string

const (
	// HookTypeCommand executes a shell command.
	HookTypeCommand HookType = "command"

	// HookTypeBuiltin executes a built-in Go function.
	HookTypeBuiltin HookType = "builtin"
)

// HookConfig represents a single hook configuration.
type HookConfig struct {
	Type    HookType `json:"type"`              // "command" or "builtin"
	Cmd     string   `json:"cmd,omitempty"`     // Shell command (command hooks)
	Builtin string   `json:"builtin,omitempty"` // Built-in function name (builtin hooks)
	Timeout int      `json:"timeout,omitempty"` // Seconds, 0 = no timeout
}

// HookResult represents the result of executing a hook.
type HookResult struct {
	Block    bool          // Whether to block the operation (pre-* hooks only)
	Message  string        // Message to display/log
	Err      error         // Error if the hook failed
	Duration time.Duration // How long the hook took to execute
}

// HookContext provides context to hook execution.
type HookContext struct {
	EventType EventType
	WorkDir   string          // Directory commands run in
	AuditDir  string          // Where write-import-audit puts snapshots
	ImportID  string          // Import the event belongs to, if any
	Source    string          // Path of the imported file
	Format    outline.Format  // Format hint used for parsing
	Text      string          // Decoded source text (pre-import)
	Nodes     []*outline.Node // Parsed tree (post-import)
	Err       error           // Failure cause (import-failed)
	Metadata  map[string]any  // Event-specific extras, e.g. analysis score
	Ctx       context.Context // Context for cancellation/timeout
}

// HooksConfig represents the hooks.json configuration.
type HooksConfig struct {
	Hooks map[EventType][]HookConfig `json:"hooks"`
}

// Success creates a successful HookResult.
func Success(message string, duration time.Duration) HookResult {
	return HookResult{
		Block:    false,
		Message:  message,
		Duration: duration,
	}
}

// Failure creates a failed HookResult.
func Failure(err error, duration time.Duration) HookResult {
	return HookResult{
		Block:    false,
		Err:      err,
		Message:  err.Error(),
		Duration: duration,
	}
}

// BlockOperation creates a HookResult that blocks the operation.
func BlockOperation(message string, duration time.Duration) HookResult {
	return HookResult{
		Block:    true,
		Message:  message,
		Duration: duration,
	}
}

// Blocked returns the first blocking result, if any.
func Blocked(results []HookResult) (HookResult, bool) {
	for _, r := range results {
		if r.Block {
			return r, true
		}
	}
	return HookResult{}, false
}
