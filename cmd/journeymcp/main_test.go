package main

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestValidateSafePath(t *testing.T) {
	tests := []struct {
		path    string
		wantErr bool
	}{
		{"config.json", false},
		{"sub/dir/config.json", false},
		{"../config.json", true},
		{"sub/../../config.json", true},
		{"/etc/config.json", true},
	}
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			err := validateSafePath(filepath.Clean(tt.path))
			if (err != nil) != tt.wantErr {
				t.Errorf("validateSafePath(%q) error = %v, wantErr %v", tt.path, err, tt.wantErr)
			}
		})
	}
}

func TestGenerateClientConfig(t *testing.T) {
	t.Chdir(t.TempDir())

	if err := generateClientConfig("config.txt", false); err == nil {
		t.Error("non-JSON path should be rejected")
	}

	existing := `{"mcpServers": {"other": {"command": "other-mcp"}}, "theme": "dark"}`
	if err := os.WriteFile("client.json", []byte(existing), 0600); err != nil {
		t.Fatal(err)
	}
	if err := generateClientConfig("client.json", true); err != nil {
		t.Fatalf("generateClientConfig() error = %v", err)
	}

	data, err := os.ReadFile("client.json")
	if err != nil {
		t.Fatal(err)
	}
	var config struct {
		MCPServers map[string]struct {
			Command string   `json:"command"`
			Args    []string `json:"args"`
		} `json:"mcpServers"`
		Theme string `json:"theme"`
	}
	if err := json.Unmarshal(data, &config); err != nil {
		t.Fatalf("generated config is not JSON: %v", err)
	}
	if config.Theme != "dark" {
		t.Error("merge dropped an existing top-level key")
	}
	if config.MCPServers["other"].Command != "other-mcp" {
		t.Error("merge dropped an existing server")
	}
	if cmd := config.MCPServers["journeymcp"].Command; cmd == "" {
		t.Error("journeymcp server entry missing")
	}
}

func TestLoadTables(t *testing.T) {
	set, err := loadTables("")
	if err != nil {
		t.Fatalf("loadTables(\"\") error = %v", err)
	}
	if set.Name != "london-2024" {
		t.Errorf("default tables = %q", set.Name)
	}

	path := filepath.Join(t.TempDir(), "tables.json")
	if err := os.WriteFile(path, []byte(`{"name": "custom", "bogus": 1}`), 0600); err != nil {
		t.Fatal(err)
	}
	if _, err := loadTables(path); err == nil || !strings.Contains(err.Error(), path) {
		t.Errorf("loadTables(bad file) error = %v, want one naming the file", err)
	}
}
