package engine

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadConfig(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "engine.yaml")
	content := `command: /opt/engine/engine
mapping: /data/mappings.obda
template: /data/template.obda
ontology: /data/ontology.ttl
properties: /data/engine.properties
endpoint: http://127.0.0.1:8085/sparql
start_deadline: 90s
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("load config: %v", err)
	}
	if cfg.Command != "/opt/engine/engine" {
		t.Fatalf("unexpected command %q", cfg.Command)
	}
	if cfg.TemplatePath != "/data/template.obda" {
		t.Fatalf("unexpected template path %q", cfg.TemplatePath)
	}
	if cfg.Endpoint != "http://127.0.0.1:8085/sparql" {
		t.Fatalf("unexpected endpoint %q", cfg.Endpoint)
	}
	if cfg.StartDeadline != 90*time.Second {
		t.Fatalf("unexpected start deadline %v", cfg.StartDeadline)
	}
	if cfg.WorkDir != "/opt/engine" {
		t.Fatalf("expected workdir derived from command, got %q", cfg.WorkDir)
	}
	if cfg.LogPath != "/opt/engine/engine.log" {
		t.Fatalf("expected default log path, got %q", cfg.LogPath)
	}
	if cfg.PIDPath != "/opt/engine/engine.pid" {
		t.Fatalf("expected default pid path, got %q", cfg.PIDPath)
	}
}

func TestLoadConfigValidation(t *testing.T) {
	dir := t.TempDir()

	tests := []struct {
		name    string
		content string
	}{
		{name: "missing command", content: "mapping: /a\nontology: /b\nproperties: /c\n"},
		{name: "missing inputs", content: "command: /opt/engine/engine\n"},
		{name: "bad deadline", content: "command: /x\nmapping: /a\nontology: /b\nproperties: /c\nstart_deadline: soon\n"},
		{name: "not yaml", content: "{{{"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(dir, tt.name+".yaml")
			if err := os.WriteFile(path, []byte(tt.content), 0o644); err != nil {
				t.Fatalf("write config: %v", err)
			}
			if _, err := LoadConfig(path); err == nil {
				t.Fatal("expected error")
			}
		})
	}
}

func TestLoadConfigMissingFile(t *testing.T) {
	if _, err := LoadConfig(filepath.Join(t.TempDir(), "absent.yaml")); err == nil {
		t.Fatal("expected error for missing config file")
	}
}
