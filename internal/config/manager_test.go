package config

import (
	"os"
	"path/filepath"
	"testing"

	"stockdaily/pkg/logx"
)

func writeTemp(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write temp config: %v", err)
	}
	return path
}

func TestLoadYAML(t *testing.T) {
	t.Parallel()
	path := writeTemp(t, "config.yaml", `
logging:
  level: DEBUG
  console: true
schedule:
  enabled: true
  spec: "1-5@09:30,13:30;6-7@10:00"
  run_immediately: true
analysis:
  codes: ["600519", "000001"]
stock_names:
  refresh_spec: "09:00"
`)
	cfg, err := NewManager(path, logx.Nop()).Load()
	if err != nil {
		t.Fatalf("Load error: %v", err)
	}
	if cfg.Logging.Level != "DEBUG" || !cfg.Schedule.Enabled || !cfg.Schedule.RunImmediately {
		t.Fatalf("unexpected config: %+v", cfg)
	}
	tbl, err := cfg.Schedule.Spec.Table()
	if err != nil {
		t.Fatalf("spec table: %v", err)
	}
	if tbl.Len() != 12 {
		t.Fatalf("trigger count = %d, want 12", tbl.Len())
	}
}

func TestLoadJSONSpecShapes(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name string
		spec string
	}{
		{"string", `"18:00"`},
		{"list", `["09:30", "13:30"]`},
		{"mapping", `{"1": ["09:30"], "every": ["18:00"]}`},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			path := writeTemp(t, "config.json",
				`{"logging":{"console":true},"schedule":{"enabled":true,"spec":`+tt.spec+`},"analysis":{"codes":[]},"stock_names":{}}`)
			cfg, err := NewManager(path, logx.Nop()).Load()
			if err != nil {
				t.Fatalf("Load error: %v", err)
			}
			if _, err := cfg.Schedule.Spec.Table(); err != nil {
				t.Fatalf("spec table: %v", err)
			}
		})
	}
}

func TestLoadRejectsUnknownFields(t *testing.T) {
	t.Parallel()
	path := writeTemp(t, "config.json", `{"loging":{"console":true}}`)
	if _, err := NewManager(path, logx.Nop()).Load(); err == nil {
		t.Fatal("expected error for unknown field")
	}
}

func TestLoadRejectsInvalidSchedule(t *testing.T) {
	t.Parallel()
	path := writeTemp(t, "config.json",
		`{"schedule":{"enabled":true,"spec":{"9":["09:30"]}},"analysis":{},"stock_names":{},"logging":{}}`)
	if _, err := NewManager(path, logx.Nop()).Load(); err == nil {
		t.Fatal("expected error for day key out of range")
	}
}

func TestValidateNotify(t *testing.T) {
	t.Parallel()
	cfg := &Config{Notify: &NotifyConfig{Enabled: true}}
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error for notify without token")
	}
}
