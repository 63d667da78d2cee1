package cli

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/danieljhkim/watchguard/internal/stores"
)

func decode(t *testing.T, output string, v any) {
	t.Helper()
	if err := json.Unmarshal([]byte(output), v); err != nil {
		t.Fatalf("expected valid JSON output, got error: %v, output: %q", err, output)
	}
}

func TestLabelCommands(t *testing.T) {
	setupTestEnv(t)

	output, err := execute(t, "label", "add", " Prod ")
	if err != nil {
		t.Fatalf("label add error = %v", err)
	}
	if !strings.Contains(output, "Label 'Prod' added successfully") {
		t.Errorf("unexpected output %q", output)
	}

	if _, err := execute(t, "label", "add", "Prod"); !errors.Is(err, stores.ErrAlreadyExists) {
		t.Errorf("expected ErrAlreadyExists, got %v", err)
	}
	if _, err := execute(t, "label", "add", "a/b"); !errors.Is(err, stores.ErrInvalidInput) {
		t.Errorf("expected ErrInvalidInput, got %v", err)
	}

	output, err = execute(t, "label", "list", "--json")
	if err != nil {
		t.Fatalf("label list error = %v", err)
	}
	var list struct {
		Labels []string `json:"labels"`
	}
	decode(t, output, &list)
	if len(list.Labels) != 1 || list.Labels[0] != "Prod" {
		t.Errorf("labels = %v, want [Prod]", list.Labels)
	}

	if _, err := execute(t, "label", "check", "Staging"); err != nil {
		t.Errorf("label check error = %v", err)
	}
	output, _ = execute(t, "label", "list", "--json")
	decode(t, output, &list)
	if len(list.Labels) != 1 {
		t.Errorf("label check must not register, got %v", list.Labels)
	}
}

func TestEntityCommands(t *testing.T) {
	root := setupTestEnv(t)

	if _, err := execute(t, "server", "add", "web-1", "--label", "Prod"); !errors.Is(err, stores.ErrInvalidInput) {
		t.Fatalf("expected unregistered label to be rejected, got %v", err)
	}

	if _, err := execute(t, "label", "add", "Prod"); err != nil {
		t.Fatal(err)
	}
	output, err := execute(t, "server", "add", "web-1", "--label", "Prod", "--date", "2030-01-01", "--set", "datacenter=fra1")
	if err != nil {
		t.Fatalf("server add error = %v", err)
	}
	if !strings.Contains(output, "Server 'web-1' added successfully") {
		t.Errorf("unexpected output %q", output)
	}

	if _, err := execute(t, "server", "update", "web-1", "--price", "12", "--rename", "web-01"); err != nil {
		t.Fatalf("server update error = %v", err)
	}

	output, err = execute(t, "server", "list", "--json")
	if err != nil {
		t.Fatalf("server list error = %v", err)
	}
	var servers map[string]map[string]any
	decode(t, output, &servers)
	rec, ok := servers["web-01"]
	if !ok || len(servers) != 1 {
		t.Fatalf("expected only web-01, got %v", servers)
	}
	for key, want := range map[string]any{"label": "Prod", "date": "2030-01-01", "price": "12", "datacenter": "fra1"} {
		if rec[key] != want {
			t.Errorf("%s = %v, want %v", key, rec[key], want)
		}
	}

	output, err = execute(t, "label", "rm", "Prod")
	if err != nil {
		t.Fatalf("label rm error = %v", err)
	}
	if !strings.Contains(output, "(cleared from 1 records)") {
		t.Errorf("unexpected output %q", output)
	}

	var onDisk map[string]map[string]any
	data, err := os.ReadFile(filepath.Join(root, "data", "servers.json"))
	if err != nil {
		t.Fatal(err)
	}
	decode(t, string(data), &onDisk)
	if onDisk["web-01"]["label"] != "" {
		t.Errorf("label not cleared on disk: %v", onDisk["web-01"])
	}

	if _, err := execute(t, "domain", "rm", "missing.com"); !errors.Is(err, stores.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
	if _, err := execute(t, "domain", "add", "example.com", "--set", "novalue"); !errors.Is(err, stores.ErrInvalidInput) {
		t.Errorf("expected malformed --set to be rejected, got %v", err)
	}
}

func TestSyncCommand_AdoptsHandEditedLabels(t *testing.T) {
	root := setupTestEnv(t)
	dataDir := filepath.Join(root, "data")
	if err := os.MkdirAll(dataDir, 0755); err != nil {
		t.Fatal(err)
	}
	content := `{"web-1": {"label": "Alpha"}, "web-2": {"label": "Gamma"}}`
	if err := os.WriteFile(filepath.Join(dataDir, "servers.json"), []byte(content), 0644); err != nil {
		t.Fatal(err)
	}

	output, err := execute(t, "sync", "--json")
	if err != nil {
		t.Fatalf("sync error = %v", err)
	}
	var result struct {
		Labels  []string `json:"labels"`
		Message string   `json:"message"`
	}
	decode(t, output, &result)
	if strings.Join(result.Labels, ",") != "Alpha,Gamma" {
		t.Errorf("labels = %v", result.Labels)
	}
	if result.Message != "Synced 2 labels, cleaned 0 orphaned" {
		t.Errorf("message = %q", result.Message)
	}
}

func TestStatusCommand_JSONOutput(t *testing.T) {
	setupTestEnv(t)

	output, err := execute(t, "status", "--json")
	if err != nil {
		t.Fatalf("status error = %v", err)
	}
	var status map[string]any
	decode(t, output, &status)
	if status["watched_file_count"] != float64(4) {
		t.Errorf("watched_file_count = %v, want 4", status["watched_file_count"])
	}
	if status["running"] != false {
		t.Errorf("running = %v, want false", status["running"])
	}
	if status["interval"] != float64(30) {
		t.Errorf("interval = %v, want 30 seconds", status["interval"])
	}
}

func TestDashboardCommand(t *testing.T) {
	setupTestEnv(t)

	if _, err := execute(t, "domain", "add", "old.com", "--date", "2001-01-01"); err != nil {
		t.Fatal(err)
	}
	output, err := execute(t, "dashboard", "--json")
	if err != nil {
		t.Fatalf("dashboard error = %v", err)
	}
	var ov struct {
		Expiring []struct {
			Name   string `json:"name"`
			Status string `json:"status"`
		} `json:"expiring"`
	}
	decode(t, output, &ov)
	if len(ov.Expiring) != 1 || ov.Expiring[0].Name != "old.com" || ov.Expiring[0].Status != "expired" {
		t.Errorf("expiring = %+v", ov.Expiring)
	}
}

func TestConfigInitCommand(t *testing.T) {
	root := setupTestEnv(t)
	path := filepath.Join(root, "config.yaml")

	if _, err := execute(t, "config", "init"); err != nil {
		t.Fatalf("config init error = %v", err)
	}
	if _, err := os.Stat(path); err != nil {
		t.Fatalf("config file not written: %v", err)
	}

	if _, err := execute(t, "config", "init"); err == nil {
		t.Error("expected refusal to overwrite existing config")
	}
	if _, err := execute(t, "config", "init", "--force"); err != nil {
		t.Errorf("config init --force error = %v", err)
	}

	custom := filepath.Join(root, "other", "watchguard.yaml")
	if _, err := execute(t, "config", "init", "--config", custom); err != nil {
		t.Fatalf("config init --config error = %v", err)
	}
	if _, err := os.Stat(custom); err != nil {
		t.Errorf("custom config not written: %v", err)
	}
}

func TestVersionCommand(t *testing.T) {
	setupTestEnv(t)
	SetVersion("1.2.3")

	output, err := execute(t, "version")
	if err != nil {
		t.Fatalf("version error = %v", err)
	}
	if strings.TrimSpace(output) != "1.2.3" {
		t.Errorf("version = %q, want 1.2.3", output)
	}

	t.Setenv("WATCHGUARD_VERSION", "v9.0.0")
	output, _ = execute(t, "version", "--json")
	var v struct {
		Version string `json:"version"`
		Build   string `json:"build"`
	}
	decode(t, output, &v)
	if v.Version != "v9.0.0" || v.Build != "1.2.3" {
		t.Errorf("version = %+v", v)
	}
}

func TestRunServe_StopsOnCancel(t *testing.T) {
	setupTestEnv(t)
	t.Setenv("WATCHGUARD_SYNC_WATCH", "notify")
	t.Setenv("WATCHGUARD_LOG_LEVEL", "error")
	resetFlags(rootCmd)
	captureStdout(t)

	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()

	done := make(chan error, 1)
	go func() { done <- runServe(ctx) }()

	select {
	case err := <-done:
		if err != nil {
			t.Errorf("runServe() error = %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("runServe did not return after cancel")
	}
}
