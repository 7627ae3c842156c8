package hooks

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/gofrs/flock"

	"github.com/tec-more/odoo-plugins/internal/outline"
)

func TestRejectEmptySource(t *testing.T) {
	ctx := HookContext{
		EventType: EventPreImport,
		Source:    "plan.md",
		Ctx:       context.Background(),
	}

	result := rejectEmptySource(ctx)
	if !result.Block {
		t.Error("expected empty text to block")
	}
	if result.Message != "source plan.md is empty" {
		t.Errorf("unexpected message %q", result.Message)
	}

	ctx.Text = "# Epic"
	result = rejectEmptySource(ctx)
	if result.Block || result.Err != nil {
		t.Errorf("expected non-empty text to pass, got %+v", result)
	}
}

func TestWriteImportAudit(t *testing.T) {
	workDir := t.TempDir()
	nodes, err := outline.Parse("# Epic\n## Story\n### [Task] Build\n", outline.FormatMarkdown)
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}

	ctx := HookContext{
		EventType: EventPostImport,
		WorkDir:   workDir,
		AuditDir:  "audit",
		ImportID:  "imp-42",
		Source:    "plan.md",
		Format:    outline.FormatMarkdown,
		Nodes:     nodes,
		Ctx:       context.Background(),
	}

	result := writeImportAudit(ctx)
	if result.Err != nil {
		t.Fatalf("writeImportAudit failed: %v", result.Err)
	}

	data, err := os.ReadFile(filepath.Join(workDir, "audit", "imp-42.json"))
	if err != nil {
		t.Fatalf("audit file not written: %v", err)
	}

	var record struct {
		ImportID  string           `json:"import_id"`
		Source    string           `json:"source"`
		Format    string           `json:"format"`
		NodeCount int              `json:"node_count"`
		Nodes     []map[string]any `json:"nodes"`
	}
	if err := json.Unmarshal(data, &record); err != nil {
		t.Fatalf("audit file is not JSON: %v", err)
	}
	if record.ImportID != "imp-42" || record.Source != "plan.md" || record.Format != "md" {
		t.Errorf("unexpected record header: %+v", record)
	}
	if record.NodeCount != 3 {
		t.Errorf("expected 3 nodes, got %d", record.NodeCount)
	}
	if len(record.Nodes) != 1 || record.Nodes[0]["name"] != "Epic" {
		t.Errorf("unexpected nodes: %v", record.Nodes)
	}

	if _, err := os.Stat(filepath.Join(workDir, "audit", "imp-42.json.tmp")); !os.IsNotExist(err) {
		t.Error("temporary file left behind")
	}
}

func TestWriteImportAudit_RequiresConfig(t *testing.T) {
	result := writeImportAudit(HookContext{ImportID: "x", Ctx: context.Background()})
	if result.Err == nil {
		t.Error("expected error without audit dir")
	}

	result = writeImportAudit(HookContext{AuditDir: t.TempDir(), Ctx: context.Background()})
	if result.Err == nil {
		t.Error("expected error without import id")
	}
}

func TestWriteImportAudit_WaitsForLock(t *testing.T) {
	auditDir := t.TempDir()

	held := flock.New(filepath.Join(auditDir, auditLockFile))
	if err := held.Lock(); err != nil {
		t.Fatalf("failed to take lock: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	result := writeImportAudit(HookContext{
		AuditDir: auditDir,
		ImportID: "blocked",
		Ctx:      ctx,
	})
	if result.Err == nil {
		t.Error("expected failure while lock is held and context is done")
	}
	if !errors.Is(result.Err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", result.Err)
	}

	if err := held.Unlock(); err != nil {
		t.Fatalf("failed to release lock: %v", err)
	}

	result = writeImportAudit(HookContext{
		AuditDir: auditDir,
		ImportID: "free",
		Ctx:      context.Background(),
	})
	if result.Err != nil {
		t.Errorf("expected success after unlock, got %v", result.Err)
	}
}

func TestWriteImportAudit_ConcurrentWriters(t *testing.T) {
	auditDir := t.TempDir()

	var wg sync.WaitGroup
	errs := make(chan error, 8)
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(id string) {
			defer wg.Done()
			result := writeImportAudit(HookContext{
				AuditDir: auditDir,
				ImportID: id,
				Ctx:      context.Background(),
			})
			if result.Err != nil {
				errs <- result.Err
			}
		}(string(rune('a' + i)))
	}
	wg.Wait()
	close(errs)

	for err := range errs {
		t.Errorf("concurrent audit write failed: %v", err)
	}

	entries, err := filepath.Glob(filepath.Join(auditDir, "*.json"))
	if err != nil {
		t.Fatalf("Glob failed: %v", err)
	}
	if len(entries) != 8 {
		t.Errorf("expected 8 audit files, got %d", len(entries))
	}
}

func TestLogImport(t *testing.T) {
	tests := []struct {
		name string
		ctx  HookContext
		want string
	}{
		{
			name: "post import",
			ctx: HookContext{
				EventType: EventPostImport,
				Source:    "a.md",
				Nodes:     []*outline.Node{{Name: "x"}, {Name: "y"}},
			},
			want: "imported a.md: 2 nodes",
		},
		{
			name: "failure",
			ctx: HookContext{
				EventType: EventImportFailed,
				Source:    "b.json",
				Err:       errors.New("boom"),
			},
			want: "import of b.json failed: boom",
		},
		{
			name: "inline source",
			ctx:  HookContext{EventType: EventPreImport},
			want: "pre-import <inline>",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := logImport(tt.ctx)
			if result.Block || result.Err != nil {
				t.Errorf("log-import should never block or fail: %+v", result)
			}
			if result.Message != tt.want {
				t.Errorf("message = %q, want %q", result.Message, tt.want)
			}
		})
	}
}

func TestRegisterBuiltin(t *testing.T) {
	called := false
	RegisterBuiltin("test-custom-hook", func(ctx HookContext) HookResult {
		called = true
		return Success("custom hook executed", 0)
	})

	found := false
	for _, name := range GetBuiltinNames() {
		if name == "test-custom-hook" {
			found = true
			break
		}
	}
	if !found {
		t.Error("custom hook not found in builtin names")
	}

	fn, exists := lookupBuiltin("test-custom-hook")
	if !exists {
		t.Fatal("custom hook not registered")
	}

	result := fn(HookContext{EventType: EventPostImport, Ctx: context.Background()})
	if !called {
		t.Error("custom hook was not called")
	}
	if result.Message != "custom hook executed" {
		t.Errorf("unexpected message: %q", result.Message)
	}
}

func TestGetBuiltinNames(t *testing.T) {
	nameMap := make(map[string]bool)
	for _, name := range GetBuiltinNames() {
		nameMap[name] = true
	}

	for _, expected := range []string{BuiltinRejectEmptySource, BuiltinWriteImportAudit, BuiltinLogImport} {
		if !nameMap[expected] {
			t.Errorf("expected builtin %q not found", expected)
		}
	}
}
