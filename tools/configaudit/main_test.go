package main

import (
	"os"
	"path/filepath"
	"testing"
)

func writeFixture(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("Failed to write fixture: %v", err)
	}
	return path
}

func TestCollectStructKeys(t *testing.T) {
	src := "package config\n\n" +
		"type Config struct {\n" +
		"\tServer ServerConfig `mapstructure:\"server\"`\n" +
		"\tDebug  bool         `mapstructure:\"debug\"`\n" +
		"\tSkipMe string\n" +
		"}\n\n" +
		"type ServerConfig struct {\n" +
		"\tHost string `mapstructure:\"host\"`\n" +
		"\tPort int    `mapstructure:\"port\"`\n" +
		"}\n"
	path := writeFixture(t, t.TempDir(), "config.go", src)

	keys, err := collectStructKeys(path, "Config")
	if err != nil {
		t.Fatalf("collectStructKeys() error = %v", err)
	}

	want := []string{"debug", "server.host", "server.port"}
	if len(keys) != len(want) {
		t.Fatalf("got %d keys, want %d: %v", len(keys), len(want), keys)
	}
	for _, key := range want {
		if !keys[key] {
			t.Errorf("missing key %q", key)
		}
	}
}

func TestCollectStructKeysMissingRoot(t *testing.T) {
	path := writeFixture(t, t.TempDir(), "config.go", "package config\n")

	if _, err := collectStructKeys(path, "Config"); err == nil {
		t.Fatal("expected an error for a file without the root struct")
	}
}

func TestCollectDefaultKeys(t *testing.T) {
	src := "package config\n\n" +
		"import \"github.com/spf13/viper\"\n\n" +
		"func setDefaults(v *viper.Viper) {\n" +
		"\tv.SetDefault(\"server.host\", \"0.0.0.0\")\n" +
		"\tv.SetDefault(\"server.port\", 8000)\n" +
		"\tv.SetDefault(\"debug\", false)\n" +
		"}\n"
	path := writeFixture(t, t.TempDir(), "load.go", src)

	keys, err := collectDefaultKeys(path)
	if err != nil {
		t.Fatalf("collectDefaultKeys() error = %v", err)
	}

	for _, key := range []string{"server.host", "server.port", "debug"} {
		if !keys[key] {
			t.Errorf("missing key %q", key)
		}
	}
	if len(keys) != 3 {
		t.Errorf("got %d keys, want 3: %v", len(keys), keys)
	}
}

func TestDiffKeysFindsDrift(t *testing.T) {
	left := map[string]bool{"a": true, "b": true, "c": true}
	right := map[string]bool{"b": true}

	drift := diffKeys(left, right)
	if len(drift) != 2 || drift[0] != "a" || drift[1] != "c" {
		t.Fatalf("diffKeys() = %v, want [a c]", drift)
	}
	if got := diffKeys(right, left); len(got) != 0 {
		t.Fatalf("diffKeys() = %v, want empty", got)
	}
}

// TestAuditActualConfigPackage runs the audit against the real config
// package, so key drift fails the normal test suite, not just the tool.
func TestAuditActualConfigPackage(t *testing.T) {
	structKeys, err := collectStructKeys(filepath.Join("..", "..", "internal", "config", "config.go"), "Config")
	if err != nil {
		t.Fatalf("collectStructKeys() error = %v", err)
	}
	defaultKeys, err := collectDefaultKeys(filepath.Join("..", "..", "internal", "config", "load.go"))
	if err != nil {
		t.Fatalf("collectDefaultKeys() error = %v", err)
	}

	if drift := diffKeys(structKeys, defaultKeys); len(drift) != 0 {
		t.Errorf("struct keys with no registered default: %v", drift)
	}
	if drift := diffKeys(defaultKeys, structKeys); len(drift) != 0 {
		t.Errorf("registered defaults with no struct key: %v", drift)
	}
}
