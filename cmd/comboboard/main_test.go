package main

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

// execute runs the CLI in a sandbox and returns its combined output.
func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func sandbox(t *testing.T) []string {
	t.Helper()
	dir := t.TempDir()
	t.Setenv("COMBOBOARD_DATA_DIR", filepath.Join(dir, "data"))
	cfg := filepath.Join(dir, "config.toml")
	return []string{"--config", cfg, "--env-file", filepath.Join(dir, "missing.env")}
}

func TestConfigInit(t *testing.T) {
	flags := sandbox(t)

	out, err := execute(t, append([]string{"config", "init"}, flags...)...)
	if err != nil {
		t.Fatalf("config init failed: %v", err)
	}
	if !strings.Contains(out, "wrote ") {
		t.Errorf("unexpected output: %s", out)
	}
	if _, err := os.Stat(flags[1]); err != nil {
		t.Fatalf("config not written: %v", err)
	}

	if _, err := execute(t, append([]string{"config", "init"}, flags...)...); err == nil {
		t.Error("second init should refuse to overwrite")
	}
	if _, err := execute(t, append([]string{"config", "init", "--force"}, flags...)...); err != nil {
		t.Errorf("init --force failed: %v", err)
	}

	out, err = execute(t, append([]string{"config", "validate"}, flags...)...)
	if err != nil {
		t.Fatalf("config validate failed: %v", err)
	}
	if !strings.Contains(out, "ok, 7 combos") {
		t.Errorf("unexpected output: %s", out)
	}
}

func TestConfigShow(t *testing.T) {
	flags := sandbox(t)
	for _, format := range []string{"toml", "json", "yaml"} {
		out, err := execute(t, append([]string{"config", "show", "--format", format}, flags...)...)
		if err != nil {
			t.Fatalf("config show %s failed: %v", format, err)
		}
		if !strings.Contains(out, "toggle_mute") {
			t.Errorf("%s output lacks the combo table:\n%s", format, out)
		}
	}
	if _, err := execute(t, append([]string{"config", "show", "--format", "ini"}, flags...)...); err == nil {
		t.Error("unknown format should fail")
	}
}

func TestCombosCommand(t *testing.T) {
	flags := sandbox(t)
	out, err := execute(t, append([]string{"combos"}, flags...)...)
	if err != nil {
		t.Fatalf("combos failed: %v", err)
	}
	for _, want := range []string{"KEYS", "toggle_mute", "raise_volume 0.5", "/^>vvv"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}

	out, err = execute(t, append([]string{"combos", "--json"}, flags...)...)
	if err != nil {
		t.Fatalf("combos --json failed: %v", err)
	}
	if !strings.Contains(out, `"keys": "mark up right down down down"`) {
		t.Errorf("unexpected JSON:\n%s", out)
	}
}

func TestCheckCommand(t *testing.T) {
	flags := sandbox(t)

	out, err := execute(t, append([]string{"check", "/ v"}, flags...)...)
	if err != nil {
		t.Fatalf("check failed: %v", err)
	}
	if !strings.Contains(out, "/v -> lower_volume 0.25") {
		t.Errorf("unexpected output: %s", out)
	}

	out, err = execute(t, append([]string{"check", "mark", "up", "right"}, flags...)...)
	if !errors.Is(err, errUnbound) {
		t.Errorf("expected errUnbound, got %v", err)
	}
	if !strings.Contains(out, "start of a longer combo") {
		t.Errorf("unexpected output: %s", out)
	}

	if _, err := execute(t, append([]string{"check", "<", ">"}, flags...)...); !errors.Is(err, errUnbound) {
		t.Errorf("sound combos need a sample dir, got %v", err)
	}
	if _, err := execute(t, append([]string{"check", "sideways"}, flags...)...); err == nil {
		t.Error("bad input should fail")
	}
}

func TestHistoryCommand(t *testing.T) {
	flags := sandbox(t)

	out, err := execute(t, append([]string{"history", "--stats"}, flags...)...)
	if err != nil {
		t.Fatalf("history --stats failed: %v", err)
	}
	if !strings.Contains(out, "runs: 0  triggers: 0") {
		t.Errorf("unexpected output: %s", out)
	}

	out, err = execute(t, append([]string{"history"}, flags...)...)
	if err != nil {
		t.Fatalf("history failed: %v", err)
	}
	if !strings.HasPrefix(out, "TIME") {
		t.Errorf("unexpected output: %s", out)
	}

	out, err = execute(t, append([]string{"history", "--prune-days", "30"}, flags...)...)
	if err != nil {
		t.Fatalf("history --prune-days failed: %v", err)
	}
	if !strings.Contains(out, "pruned 0 triggers") {
		t.Errorf("unexpected output: %s", out)
	}

	out, err = execute(t, append([]string{"history", "--schema"}, flags...)...)
	if err != nil {
		t.Fatalf("history --schema failed: %v", err)
	}
	if !strings.Contains(out, "schema version 3 of 3") || !strings.Contains(out, "Add runs table") {
		t.Errorf("unexpected output: %s", out)
	}

	out, err = execute(t, append([]string{"history", "--run", "no-such-run", "--json"}, flags...)...)
	if err != nil {
		t.Fatalf("history --run failed: %v", err)
	}
	if strings.TrimSpace(out) != "null" {
		t.Errorf("unexpected output: %s", out)
	}
}

func TestVersion(t *testing.T) {
	out, err := execute(t, "--version")
	if err != nil {
		t.Fatalf("--version failed: %v", err)
	}
	if !strings.HasPrefix(out, "comboboard dev") {
		t.Errorf("unexpected output: %s", out)
	}
}
