package mcp

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"
)

func TestAuditLogger_NilSafety(t *testing.T) {
	t.Run("nil logger Log is no-op", func(t *testing.T) {
		var logger *AuditLogger
		logger.Log(AuditEntry{Tool: "test"})
	})

	t.Run("nil logger Close is no-op", func(t *testing.T) {
		var logger *AuditLogger
		if err := logger.Close(); err != nil {
			t.Errorf("Close() on nil logger returned error: %v", err)
		}
	})
}

func TestAuditLogger_WritesJSONL(t *testing.T) {
	root := t.TempDir()
	logger := NewAuditLogger(root)
	if logger == nil {
		t.Fatal("expected non-nil logger")
	}

	now := time.Now()
	logger.Log(AuditEntry{Timestamp: now, Tool: "projsim_simulate", DurationMs: 12, Status: "success"})
	logger.Log(AuditEntry{Timestamp: now, Tool: "projsim_generate", Status: "error", Error: "boom"})
	if err := logger.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}
	logger.Log(AuditEntry{Tool: "after-close"})

	data, err := os.ReadFile(filepath.Join(root, AuditDir, "audit.jsonl"))
	if err != nil {
		t.Fatalf("reading audit log: %v", err)
	}
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	if len(lines) != 2 {
		t.Fatalf("got %d lines, want 2", len(lines))
	}

	var second AuditEntry
	if err := json.Unmarshal([]byte(lines[1]), &second); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if second.Tool != "projsim_generate" || second.Error != "boom" {
		t.Errorf("second entry = %+v", second)
	}
}

func TestAuditLogger_Concurrent(t *testing.T) {
	root := t.TempDir()
	logger := NewAuditLogger(root)
	if logger == nil {
		t.Fatal("expected non-nil logger")
	}

	var wg sync.WaitGroup
	for i := range 20 {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			logger.Log(AuditEntry{Tool: "projsim_stats", DurationMs: int64(i)})
		}(i)
	}
	wg.Wait()
	logger.Close()

	data, err := os.ReadFile(filepath.Join(root, AuditDir, "audit.jsonl"))
	if err != nil {
		t.Fatal(err)
	}
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	if len(lines) != 20 {
		t.Fatalf("got %d lines, want 20", len(lines))
	}
	for _, line := range lines {
		var e AuditEntry
		if err := json.Unmarshal([]byte(line), &e); err != nil {
			t.Errorf("interleaved line %q: %v", line, err)
		}
	}
}

func TestSanitizeToolParams(t *testing.T) {
	tests := []struct {
		name   string
		params map[string]any
		want   map[string]string
	}{
		{
			name:   "nil",
			params: nil,
			want:   nil,
		},
		{
			name:   "safe values kept",
			params: map[string]any{"split": "train", "count": 10, "arrow": true},
			want:   map[string]string{"split": "train", "count": "10", "arrow": "true", "_param_count": "3"},
		},
		{
			name:   "paths redacted",
			params: map[string]any{"dir": "/home/user/data", "params": struct{}{}},
			want:   map[string]string{"dir": "(set)", "params": "(set)", "_param_count": "2"},
		},
		{
			name:   "unknown dropped",
			params: map[string]any{"token": "abc"},
			want:   map[string]string{"_param_count": "1"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := sanitizeToolParams(tt.params)
			if len(got) != len(tt.want) {
				t.Fatalf("got %v, want %v", got, tt.want)
			}
			for k, v := range tt.want {
				if got[k] != v {
					t.Errorf("%s = %q, want %q", k, got[k], v)
				}
			}
		})
	}
}
