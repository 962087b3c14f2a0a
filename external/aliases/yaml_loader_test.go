package aliases

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoad_EmptyPathYieldsEmptyTable(t *testing.T) {
	table, err := Load("")
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if len(table) != 0 {
		t.Fatalf("expected empty table, got %v", table)
	}
}

func TestLoad_ParsesMappings(t *testing.T) {
	path := filepath.Join(t.TempDir(), "aliases.yaml")
	content := "임아리: 이유\n김성아: SAK\n장민지: 민둥\n"
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write failed: %v", err)
	}

	table, err := Load(path)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if got := table.Resolve("김성아"); got != "SAK" {
		t.Fatalf("unexpected resolution: %q", got)
	}
}

func TestLoad_InvalidYAMLFails(t *testing.T) {
	path := filepath.Join(t.TempDir(), "aliases.yaml")
	if err := os.WriteFile(path, []byte(":\n\t- broken"), 0o644); err != nil {
		t.Fatalf("write failed: %v", err)
	}
	if _, err := Load(path); err == nil {
		t.Fatal("expected error for invalid yaml")
	}
}
