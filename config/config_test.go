package config

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

// missingConfigPath points the loader at a file that does not exist so the
// code defaults apply. It also clears TRADING_BOARD_CONFIG so an operator
// environment cannot leak a real config file into the test.
func missingConfigPath(t *testing.T) string {
	t.Helper()
	t.Setenv("TRADING_BOARD_CONFIG", "")
	return filepath.Join(t.TempDir(), "absent.yaml")
}

func writeConfigFile(t *testing.T, contents string) string {
	t.Helper()
	t.Setenv("TRADING_BOARD_CONFIG", "")
	path := filepath.Join(t.TempDir(), "app.yaml")
	if err := os.WriteFile(path, []byte(contents), 0o600); err != nil {
		t.Fatalf("write config file: %v", err)
	}
	return path
}

func TestExplicitPathBeatsEnvPath(t *testing.T) {
	explicit := writeConfigFile(t, "trading:\n  httpAddr: \":7001\"\n")
	fallback := filepath.Join(t.TempDir(), "env.yaml")
	if err := os.WriteFile(fallback, []byte("trading:\n  httpAddr: \":7002\"\n"), 0o600); err != nil {
		t.Fatalf("write fallback file: %v", err)
	}
	t.Setenv("TRADING_BOARD_CONFIG", fallback)

	cfg, err := LoadTrading(context.Background(), explicit)
	if err != nil {
		t.Fatalf("load trading config: %v", err)
	}
	if cfg.HTTPAddr != ":7001" {
		t.Fatalf("expected explicit path to win, got addr %q", cfg.HTTPAddr)
	}
}

func TestEnvPathUsedWithoutExplicitPath(t *testing.T) {
	fallback := filepath.Join(t.TempDir(), "env.yaml")
	if err := os.WriteFile(fallback, []byte("trading:\n  httpAddr: \":7002\"\n"), 0o600); err != nil {
		t.Fatalf("write fallback file: %v", err)
	}
	t.Setenv("TRADING_BOARD_CONFIG", fallback)

	cfg, err := LoadTrading(context.Background(), "")
	if err != nil {
		t.Fatalf("load trading config: %v", err)
	}
	if cfg.HTTPAddr != ":7002" {
		t.Fatalf("expected TRADING_BOARD_CONFIG path to apply, got addr %q", cfg.HTTPAddr)
	}
}

func TestUnreadableExplicitPathFails(t *testing.T) {
	dir := t.TempDir()

	// Passing a directory makes os.Open succeed but io.ReadAll fail on some
	// platforms; a permission-denied file is the portable hard failure.
	denied := filepath.Join(dir, "denied.yaml")
	if err := os.WriteFile(denied, []byte("trading: {}\n"), 0o000); err != nil {
		t.Fatalf("write denied file: %v", err)
	}
	if _, err := os.Open(denied); err == nil {
		t.Skip("running as a user that ignores file modes")
	}

	if _, err := LoadTrading(context.Background(), denied); err == nil {
		t.Fatal("expected error for unreadable config file")
	} else if !strings.Contains(err.Error(), "open app config") {
		t.Fatalf("expected open error, got %v", err)
	}
}

func TestParseOrigins(t *testing.T) {
	got := parseOrigins(" https://a.example.com , ,https://b.example.com ", DefaultCORSOrigins())
	if len(got) != 2 || got[0] != "https://a.example.com" || got[1] != "https://b.example.com" {
		t.Fatalf("unexpected origins: %v", got)
	}

	got = parseOrigins(" , ", DefaultCORSOrigins())
	if len(got) != 1 || got[0] != DefaultCORSOrigins()[0] {
		t.Fatalf("expected fallback origins, got %v", got)
	}
}

func TestEnvBool(t *testing.T) {
	cases := []struct {
		raw     string
		want    bool
		present bool
	}{
		{"1", true, true},
		{"true", true, true},
		{"YES", true, true},
		{"false", false, true},
		{"0", false, true},
		{"", false, false},
	}
	for _, tc := range cases {
		t.Setenv("TRADING_BOARD_TEST_BOOL", tc.raw)
		got, present := envBool("TRADING_BOARD_TEST_BOOL")
		if got != tc.want || present != tc.present {
			t.Errorf("envBool(%q) = (%v, %v), expected (%v, %v)", tc.raw, got, present, tc.want, tc.present)
		}
	}
}
