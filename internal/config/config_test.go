package config_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/pelletier/go-toml/v2"

	"github.com/Lllllllleong/checklistrenamer/internal/config"
)

func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{"PROJECT_ID", "OUTPUT_BUCKET", "FIRESTORE_COLLECTION", "WORKFLOW_ID", "WORKFLOW_LOCATION", "RENAMER_WORKERS", "RENAMER_DOCUMENT_TIMEOUT"} {
		t.Setenv(key, "")
		os.Unsetenv(key)
	}
}

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.toml")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoadDefaultsWhenFileMissing(t *testing.T) {
	clearEnv(t)
	tempHome := t.TempDir()
	t.Setenv("HOME", tempHome)

	cfg, resolved, exists, err := config.Load(filepath.Join(tempHome, "absent.toml"))
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if exists {
		t.Fatal("expected config file to be reported absent")
	}
	if resolved != filepath.Join(tempHome, "absent.toml") {
		t.Fatalf("unexpected resolved path %q", resolved)
	}
	if cfg.Processing.Workers != 4 {
		t.Fatalf("unexpected workers: %d", cfg.Processing.Workers)
	}
	if cfg.DocumentTimeout() != time.Minute {
		t.Fatalf("unexpected document timeout: %s", cfg.DocumentTimeout())
	}
	if cfg.Output.ReportFormat != "csv" {
		t.Fatalf("unexpected report format: %q", cfg.Output.ReportFormat)
	}
	wantHistory := filepath.Join(tempHome, ".local", "share", "checklist-renamer", "history.db")
	if cfg.History.Path != wantHistory {
		t.Fatalf("unexpected history path: got %q want %q", cfg.History.Path, wantHistory)
	}
	if !filepath.IsAbs(cfg.Output.Dir) {
		t.Fatalf("expected absolute output dir, got %q", cfg.Output.Dir)
	}
	if cfg.WorkflowEnabled() {
		t.Fatal("expected workflow hand-off disabled by default")
	}
}

func TestLoadParsesFileAndNormalizes(t *testing.T) {
	clearEnv(t)
	path := writeConfig(t, `
[processing]
workers = 8
document_timeout_seconds = 0
max_pages = 3
labels = ["  Serial  ", "serial", "Nº de Série", ""]

[output]
report_format = "XLSX"

[gcp]
output_bucket = "gs://checklists-out"

[logging]
level = "WARNING"
format = "console"
`)

	cfg, _, exists, err := config.Load(path)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if !exists {
		t.Fatal("expected config file to exist")
	}
	if cfg.Processing.Workers != 8 || cfg.Processing.MaxPages != 3 {
		t.Fatalf("unexpected processing section: %+v", cfg.Processing)
	}
	if cfg.DocumentTimeout() != 0 {
		t.Fatalf("expected disabled timeout, got %s", cfg.DocumentTimeout())
	}
	if got := strings.Join(cfg.Processing.Labels, "|"); got != "Serial|Nº de Série" {
		t.Fatalf("unexpected labels: %q", got)
	}
	if cfg.Output.ReportFormat != "xlsx" {
		t.Fatalf("unexpected report format: %q", cfg.Output.ReportFormat)
	}
	if cfg.GCP.OutputBucket != "checklists-out" {
		t.Fatalf("unexpected bucket: %q", cfg.GCP.OutputBucket)
	}
	if cfg.Logging.Level != "warn" || cfg.Logging.Format != "text" {
		t.Fatalf("unexpected logging section: %+v", cfg.Logging)
	}
}

func TestEnvOverridesFile(t *testing.T) {
	clearEnv(t)
	path := writeConfig(t, "[processing]\nworkers = 2\n")
	t.Setenv("RENAMER_WORKERS", "12")
	t.Setenv("RENAMER_DOCUMENT_TIMEOUT", "90s")
	t.Setenv("PROJECT_ID", "acme-prod")
	t.Setenv("WORKFLOW_ID", "checklist-handoff")

	cfg, _, _, err := config.Load(path)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if cfg.Processing.Workers != 12 {
		t.Fatalf("expected env workers, got %d", cfg.Processing.Workers)
	}
	if cfg.DocumentTimeout() != 90*time.Second {
		t.Fatalf("expected env timeout, got %s", cfg.DocumentTimeout())
	}
	if cfg.GCP.ProjectID != "acme-prod" || !cfg.WorkflowEnabled() {
		t.Fatalf("unexpected gcp section: %+v", cfg.GCP)
	}
	if cfg.GCP.WorkflowLocation != "us-central1" {
		t.Fatalf("unexpected workflow location: %q", cfg.GCP.WorkflowLocation)
	}
}

func TestLoadRejectsInvalidValues(t *testing.T) {
	cases := []struct {
		name string
		body string
		env  map[string]string
		want string
	}{
		{name: "zero workers", body: "[processing]\nworkers = 0\n", want: "processing.workers"},
		{name: "negative timeout", body: "[processing]\ndocument_timeout_seconds = -1\n", want: "document_timeout_seconds"},
		{name: "report format", body: "[output]\nreport_format = \"pdf\"\n", want: "output.report_format"},
		{name: "log format", body: "[logging]\nformat = \"xml\"\n", want: "logging.format"},
		{name: "unknown key", body: "[processing]\nthreads = 3\n", want: "parse config"},
		{name: "workflow without project", body: "[gcp]\nworkflow_id = \"wf\"\n", want: "gcp.project_id"},
		{name: "bad env workers", body: "", env: map[string]string{"RENAMER_WORKERS": "many"}, want: "RENAMER_WORKERS"},
		{name: "bad env timeout", body: "", env: map[string]string{"RENAMER_DOCUMENT_TIMEOUT": "soon"}, want: "RENAMER_DOCUMENT_TIMEOUT"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			clearEnv(t)
			for k, v := range tc.env {
				t.Setenv(k, v)
			}
			_, _, _, err := config.Load(writeConfig(t, tc.body))
			if err == nil {
				t.Fatal("expected error")
			}
			if !strings.Contains(err.Error(), tc.want) {
				t.Fatalf("expected error mentioning %q, got %v", tc.want, err)
			}
		})
	}
}

func TestFromEnvRequiresCloudSettings(t *testing.T) {
	clearEnv(t)
	if _, err := config.FromEnv(); err == nil || !strings.Contains(err.Error(), "PROJECT_ID") {
		t.Fatalf("expected PROJECT_ID error, got %v", err)
	}

	t.Setenv("PROJECT_ID", "acme")
	t.Setenv("OUTPUT_BUCKET", "out")
	cfg, err := config.FromEnv()
	if err != nil {
		t.Fatalf("FromEnv returned error: %v", err)
	}
	if cfg.History.Enabled {
		t.Fatal("expected history disabled for env-only config")
	}
	if cfg.GCP.Collection != "checklist_runs" {
		t.Fatalf("unexpected collection: %q", cfg.GCP.Collection)
	}
}

func TestSampleConfigParses(t *testing.T) {
	clearEnv(t)
	path := filepath.Join(t.TempDir(), "nested", "config.toml")
	if err := config.CreateSample(path); err != nil {
		t.Fatalf("CreateSample returned error: %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read sample: %v", err)
	}
	var raw map[string]any
	if err := toml.Unmarshal(data, &raw); err != nil {
		t.Fatalf("sample is not valid toml: %v", err)
	}
	if _, _, _, err := config.Load(path); err != nil {
		t.Fatalf("sample config does not load: %v", err)
	}
}
