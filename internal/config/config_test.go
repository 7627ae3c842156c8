package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/spf13/viper"
)

func TestLoad_MissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), FileName))
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if got := cfg.Import.GetMaxConcurrent(); got != DefaultMaxConcurrent {
		t.Errorf("GetMaxConcurrent() = %d, want %d", got, DefaultMaxConcurrent)
	}
	if got := cfg.AI.GetModel(); got != "gpt-4" {
		t.Errorf("GetModel() = %q", got)
	}
	if got := cfg.AI.GetTimeout(); got != 30*time.Second {
		t.Errorf("GetTimeout() = %v", got)
	}
	if got := cfg.AI.GetTemperature(); got != 0.3 {
		t.Errorf("GetTemperature() = %v", got)
	}
}

func TestLoad_File(t *testing.T) {
	path := filepath.Join(t.TempDir(), FileName)
	content := `
[outline]
task_markers = ["[todo]"]
default_name = "Unnamed"

[import]
max_concurrent = 0
audit_dir = "audit"

[ai]
model = "gpt-4o-mini"
timeout = "5s"
temperature = 0

[log]
level = "debug"
format = "json"
`
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("WriteFile failed: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if len(cfg.Outline.TaskMarkers) != 1 || cfg.Outline.TaskMarkers[0] != "[todo]" {
		t.Errorf("TaskMarkers = %v", cfg.Outline.TaskMarkers)
	}
	if cfg.Outline.DefaultName != "Unnamed" {
		t.Errorf("DefaultName = %q", cfg.Outline.DefaultName)
	}
	if got := cfg.Import.GetMaxConcurrent(); got != 0 {
		t.Errorf("Expected explicit 0 to be kept, got %d", got)
	}
	if got := cfg.Import.GetAuditDir(); got != "audit" {
		t.Errorf("GetAuditDir() = %q", got)
	}
	if got := cfg.Import.GetHooksDir(); got != DefaultHooksDir {
		t.Errorf("Expected default hooks dir, got %q", got)
	}
	if got := cfg.AI.GetTimeout(); got != 5*time.Second {
		t.Errorf("GetTimeout() = %v", got)
	}
	if got := cfg.AI.GetTemperature(); got != 0 {
		t.Errorf("Expected explicit 0 temperature, got %v", got)
	}
	if got := cfg.AI.GetBaseURL(); got != DefaultBaseURL {
		t.Errorf("GetBaseURL() = %q", got)
	}
	if cfg.Log.Level != "debug" || cfg.Log.Format != "json" {
		t.Errorf("Log = %+v", cfg.Log)
	}
}

func TestParse_Invalid(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		wantErr string
	}{
		{"syntax", "[ai\nmodel = 1", "parsing config"},
		{"unknown key", "[ai]\nmodle = \"x\"", "unknown keys ai.modle"},
		{"bad level", "[log]\nlevel = \"loud\"", "invalid config"},
		{"negative concurrency", "[import]\nmax_concurrent = -1", "invalid config"},
		{"bad url", "[ai]\nbase_url = \"not a url\"", "invalid config"},
		{"bad timeout", "[ai]\ntimeout = \"soon\"", "ai.timeout"},
		{"temperature out of range", "[ai]\ntemperature = 3.5", "invalid config"},
		{"empty marker", "[outline]\ntask_markers = [\"\"]", "invalid config"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse(tt.input)
			if err == nil {
				t.Fatal("Expected error")
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("error %q does not contain %q", err, tt.wantErr)
			}
		})
	}
}

func TestOverride(t *testing.T) {
	cfg := Default()
	v := viper.New()
	v.Set("ai.model", "local-model")
	v.Set("import.max_concurrent", 2)
	v.Set("ai.temperature", 0.9)
	v.Set("outline.task_markers", []string{"[t]"})

	if err := cfg.Override(v); err != nil {
		t.Fatalf("Override failed: %v", err)
	}
	if cfg.AI.Model != "local-model" {
		t.Errorf("Model = %q", cfg.AI.Model)
	}
	if cfg.Import.GetMaxConcurrent() != 2 {
		t.Errorf("MaxConcurrent = %d", cfg.Import.GetMaxConcurrent())
	}
	if cfg.AI.GetTemperature() != 0.9 {
		t.Errorf("Temperature = %v", cfg.AI.GetTemperature())
	}
	if len(cfg.Outline.TaskMarkers) != 1 || cfg.Outline.TaskMarkers[0] != "[t]" {
		t.Errorf("TaskMarkers = %v", cfg.Outline.TaskMarkers)
	}
	if cfg.AI.BaseURL != DefaultBaseURL {
		t.Errorf("Expected untouched BaseURL, got %q", cfg.AI.BaseURL)
	}

	v.Set("log.level", "chatty")
	if err := cfg.Override(v); err == nil {
		t.Error("Expected validation error for bad log level")
	}
}

func TestGetters_NilReceiver(t *testing.T) {
	var ic *ImportConfig
	var ac *AIConfig
	if ic.GetMaxConcurrent() != DefaultMaxConcurrent || ic.GetAuditDir() != DefaultAuditDir {
		t.Error("nil ImportConfig should return defaults")
	}
	if ac.GetModel() != DefaultModel || ac.GetTimeout() != DefaultTimeout {
		t.Error("nil AIConfig should return defaults")
	}
}

func TestParseDurationOrDefault(t *testing.T) {
	if got := ParseDurationOrDefault("", time.Second); got != time.Second {
		t.Errorf("empty = %v", got)
	}
	if got := ParseDurationOrDefault("bad", time.Second); got != time.Second {
		t.Errorf("bad = %v", got)
	}
	if got := ParseDurationOrDefault("90s", time.Second); got != 90*time.Second {
		t.Errorf("90s = %v", got)
	}
}
