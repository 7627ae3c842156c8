package hooks

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"time"

	"go.uber.org/zap"
)

// ConfigFile is the name of the hooks configuration inside the hooks dir.
const ConfigFile = "hooks.json"

// HookRunner loads hook configurations and executes hooks for events.
type HookRunner struct {
	workDir string
	config  *HooksConfig
	logger  *zap.Logger
}

// NewHookRunner creates a HookRunner for workDir. It loads
// <hooksDir>/hooks.json if it exists; a relative hooksDir is resolved
// against workDir. A nil logger disables logging.
func NewHookRunner(workDir, hooksDir string, logger *zap.Logger) (*HookRunner, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	runner := &HookRunner{
		workDir: workDir,
		config:  &HooksConfig{Hooks: make(map[EventType][]HookConfig)},
		logger:  logger,
	}

	if !filepath.IsAbs(hooksDir) {
		hooksDir = filepath.Join(workDir, hooksDir)
	}
	if err := runner.loadConfig(filepath.Join(hooksDir, ConfigFile)); err != nil {
		if !os.IsNotExist(err) {
			return nil, fmt.Errorf("loading hooks config: %w", err)
		}
		// Config file doesn't exist - use empty config
	}

	return runner, nil
}

func (r *HookRunner) loadConfig(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}

	if err := json.Unmarshal(data, r.config); err != nil {
		return err
	}
	if r.config.Hooks == nil {
		r.config.Hooks = make(map[EventType][]HookConfig)
	}
	for event := range r.config.Hooks {
		if !event.Valid() {
			return fmt.Errorf("unknown event %q in %s", event, path)
		}
	}
	return nil
}

// Fire executes all hooks registered for the given event type.
// Returns a slice of HookResults, one for each hook executed.
// For pre-* events, if any hook returns Block=true, later hooks are skipped.
func (r *HookRunner) Fire(ctx HookContext) []HookResult {
	if r == nil {
		return nil
	}
	hooks, exists := r.config.Hooks[ctx.EventType]
	if !exists || len(hooks) == 0 {
		return nil
	}
	if ctx.Ctx == nil {
		ctx.Ctx = context.Background()
	}
	if ctx.WorkDir == "" {
		ctx.WorkDir = r.workDir
	}

	results := make([]HookResult, 0, len(hooks))
	isPre := isPreEvent(ctx.EventType)

	for _, hook := range hooks {
		result := r.executeHook(hook, ctx)
		results = append(results, result)
		r.log(hook, ctx, result)

		if isPre && result.Block {
			break
		}
	}

	return results
}

func (r *HookRunner) log(hook HookConfig, ctx HookContext, result HookResult) {
	fields := []zap.Field{
		zap.String("event", string(ctx.EventType)),
		zap.String("hook_type", string(hook.Type)),
		zap.String("import_id", ctx.ImportID),
		zap.Duration("duration", result.Duration),
	}
	switch {
	case result.Err != nil:
		r.logger.Warn("hook failed", append(fields, zap.Error(result.Err))...)
	case result.Block:
		r.logger.Info("hook blocked operation", append(fields, zap.String("message", result.Message))...)
	default:
		r.logger.Debug("hook ran", append(fields, zap.String("message", result.Message))...)
	}
}

// executeHook executes a single hook and returns the result.
func (r *HookRunner) executeHook(hook HookConfig, ctx HookContext) HookResult {
	start := time.Now()

	execCtx := ctx.Ctx
	if hook.Timeout > 0 {
		var cancel context.CancelFunc
		execCtx, cancel = context.WithTimeout(ctx.Ctx, time.Duration(hook.Timeout)*time.Second)
		defer cancel()
	}

	switch hook.Type {
	case HookTypeCommand:
		return r.executeCommand(hook, ctx, execCtx, start)
	case HookTypeBuiltin:
		return r.executeBuiltin(hook, ctx, execCtx, start)
	default:
		return Failure(fmt.Errorf("unknown hook type: %s", hook.Type), time.Since(start))
	}
}

// executeCommand executes a shell command hook. A non-zero exit of a
// pre-* command blocks the operation with the command output as message.
func (r *HookRunner) executeCommand(hook HookConfig, ctx HookContext, execCtx context.Context, start time.Time) HookResult {
	if hook.Cmd == "" {
		return Failure(fmt.Errorf("command hook missing cmd field"), time.Since(start))
	}

	cmd := exec.CommandContext(execCtx, "sh", "-c", hook.Cmd)
	cmd.Dir = ctx.WorkDir
	cmd.WaitDelay = time.Second

	cmd.Env = append(os.Environ(),
		fmt.Sprintf("SCRUM_EVENT=%s", ctx.EventType),
		fmt.Sprintf("SCRUM_IMPORT_ID=%s", ctx.ImportID),
		fmt.Sprintf("SCRUM_SOURCE=%s", ctx.Source),
		fmt.Sprintf("SCRUM_FORMAT=%s", ctx.Format),
	)
	if ctx.Err != nil {
		cmd.Env = append(cmd.Env, fmt.Sprintf("SCRUM_ERROR=%s", ctx.Err))
	}

	output, err := cmd.CombinedOutput()
	duration := time.Since(start)

	if err != nil {
		var exitErr *exec.ExitError
		if isPreEvent(ctx.EventType) && execCtx.Err() == nil && errors.As(err, &exitErr) {
			return BlockOperation(fmt.Sprintf("command exited %d: %s", exitErr.ExitCode(), output), duration)
		}
		return Failure(fmt.Errorf("command failed: %w: %s", err, string(output)), duration)
	}

	return Success(string(output), duration)
}

// executeBuiltin executes a built-in hook function.
func (r *HookRunner) executeBuiltin(hook HookConfig, ctx HookContext, execCtx context.Context, start time.Time) HookResult {
	if hook.Builtin == "" {
		return Failure(fmt.Errorf("builtin hook missing builtin field"), time.Since(start))
	}

	fn, exists := lookupBuiltin(hook.Builtin)
	if !exists {
		return Failure(fmt.Errorf("unknown builtin hook: %s", hook.Builtin), time.Since(start))
	}

	ctx.Ctx = execCtx

	return fn(ctx)
}

// isPreEvent returns true if the event type is a pre-* event.
func isPreEvent(eventType EventType) bool {
	return eventType == EventPreImport
}

// HasHooks returns true if there are hooks registered for the given event type.
func (r *HookRunner) HasHooks(eventType EventType) bool {
	if r == nil {
		return false
	}
	hooks, exists := r.config.Hooks[eventType]
	return exists && len(hooks) > 0
}

// GetHooks returns the hooks registered for the given event type.
func (r *HookRunner) GetHooks(eventType EventType) []HookConfig {
	if r == nil {
		return nil
	}
	return r.config.Hooks[eventType]
}
