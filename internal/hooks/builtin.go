package hooks

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/gofrs/flock"

	"github.com/tec-more/odoo-plugins/internal/outline"
)

// BuiltinHookFunc is a function that executes a built-in hook.
type BuiltinHookFunc func(ctx HookContext) HookResult

// Builtin hook names.
const (
	BuiltinRejectEmptySource = "reject-empty-source"
	BuiltinWriteImportAudit  = "write-import-audit"
	BuiltinLogImport         = "log-import"
)

// auditLockFile serializes audit writers across processes.
const auditLockFile = ".audit.lock"

var (
	builtinMu    sync.RWMutex
	builtinHooks = map[string]BuiltinHookFunc{
		BuiltinRejectEmptySource: rejectEmptySource,
		BuiltinWriteImportAudit:  writeImportAudit,
		BuiltinLogImport:         logImport,
	}
)

func lookupBuiltin(name string) (BuiltinHookFunc, bool) {
	builtinMu.RLock()
	defer builtinMu.RUnlock()
	fn, ok := builtinHooks[name]
	return fn, ok
}

// rejectEmptySource blocks an import whose decoded source is blank.
func rejectEmptySource(ctx HookContext) HookResult {
	start := time.Now()

	if strings.TrimSpace(ctx.Text) == "" {
		return BlockOperation(fmt.Sprintf("source %s is empty", displaySource(ctx.Source)), time.Since(start))
	}
	return Success("source has content", time.Since(start))
}

// AuditRecord is the document written by write-import-audit.
type AuditRecord struct {
	ImportID  string          `json:"import_id"`
	Source    string          `json:"source"`
	Format    outline.Format  `json:"format"`
	NodeCount int             `json:"node_count"`
	Nodes     []*outline.Node `json:"nodes"`
	WrittenAt time.Time       `json:"written_at"`
}

// writeImportAudit stores the parsed tree as <audit dir>/<import id>.json.
// Writers hold an exclusive file lock on the audit dir.
func writeImportAudit(ctx HookContext) HookResult {
	start := time.Now()

	if ctx.AuditDir == "" {
		return Failure(fmt.Errorf("audit dir not configured"), time.Since(start))
	}
	if ctx.ImportID == "" {
		return Failure(fmt.Errorf("audit requires an import id"), time.Since(start))
	}

	dir := ctx.AuditDir
	if !filepath.IsAbs(dir) && ctx.WorkDir != "" {
		dir = filepath.Join(ctx.WorkDir, dir)
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return Failure(fmt.Errorf("creating audit dir: %w", err), time.Since(start))
	}

	lock := flock.New(filepath.Join(dir, auditLockFile))
	locked, err := lock.TryLockContext(ctx.Ctx, 20*time.Millisecond)
	if err != nil {
		return Failure(fmt.Errorf("locking audit dir: %w", err), time.Since(start))
	}
	if !locked {
		return Failure(fmt.Errorf("audit dir is locked"), time.Since(start))
	}
	defer func() { _ = lock.Unlock() }()

	nodes := ctx.Nodes
	if nodes == nil {
		nodes = []*outline.Node{}
	}
	record := AuditRecord{
		ImportID:  ctx.ImportID,
		Source:    ctx.Source,
		Format:    ctx.Format,
		NodeCount: outline.Count(nodes),
		Nodes:     nodes,
		WrittenAt: time.Now().UTC(),
	}
	data, err := json.MarshalIndent(record, "", "  ")
	if err != nil {
		return Failure(fmt.Errorf("encoding audit record: %w", err), time.Since(start))
	}

	path := filepath.Join(dir, ctx.ImportID+".json")
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return Failure(fmt.Errorf("writing audit record: %w", err), time.Since(start))
	}
	if err := os.Rename(tmp, path); err != nil {
		_ = os.Remove(tmp)
		return Failure(fmt.Errorf("writing audit record: %w", err), time.Since(start))
	}

	return Success(fmt.Sprintf("audit written to %s", path), time.Since(start))
}

// logImport produces a one-line summary of the event. Never blocks.
func logImport(ctx HookContext) HookResult {
	start := time.Now()

	source := displaySource(ctx.Source)
	switch ctx.EventType {
	case EventPostImport:
		return Success(fmt.Sprintf("imported %s: %d nodes", source, outline.Count(ctx.Nodes)), time.Since(start))
	case EventImportFailed:
		return Success(fmt.Sprintf("import of %s failed: %v", source, ctx.Err), time.Since(start))
	default:
		return Success(fmt.Sprintf("%s %s", ctx.EventType, source), time.Since(start))
	}
}

func displaySource(source string) string {
	if source == "" {
		return "<inline>"
	}
	return source
}

// RegisterBuiltin registers a new built-in hook function.
// This allows external packages to extend the built-in hooks.
func RegisterBuiltin(name string, fn BuiltinHookFunc) {
	builtinMu.Lock()
	defer builtinMu.Unlock()
	builtinHooks[name] = fn
}

// GetBuiltinNames returns the names of all registered built-in hooks, sorted.
func GetBuiltinNames() []string {
	builtinMu.RLock()
	defer builtinMu.RUnlock()
	names := make([]string, 0, len(builtinHooks))
	for name := range builtinHooks {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
