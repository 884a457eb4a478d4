package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

func (c *Config) applyEnv() error {
	overrides := []struct {
		key    string
		target *string
	}{
		{"PROJECT_ID", &c.GCP.ProjectID},
		{"OUTPUT_BUCKET", &c.GCP.OutputBucket},
		{"FIRESTORE_COLLECTION", &c.GCP.Collection},
		{"WORKFLOW_ID", &c.GCP.WorkflowID},
		{"WORKFLOW_LOCATION", &c.GCP.WorkflowLocation},
	}
	for _, o := range overrides {
		if value, ok := os.LookupEnv(o.key); ok {
			*o.target = value
		}
	}

	if value, ok := os.LookupEnv("RENAMER_WORKERS"); ok {
		n, err := strconv.Atoi(strings.TrimSpace(value))
		if err != nil {
			return fmt.Errorf("RENAMER_WORKERS: %w", err)
		}
		c.Processing.Workers = n
	}
	if value, ok := os.LookupEnv("RENAMER_DOCUMENT_TIMEOUT"); ok {
		seconds, err := parseSeconds(value)
		if err != nil {
			return fmt.Errorf("RENAMER_DOCUMENT_TIMEOUT: %w", err)
		}
		c.Processing.DocumentTimeoutSeconds = seconds
	}
	return nil
}

// parseSeconds accepts a plain number of seconds or a Go duration such as "90s".
func parseSeconds(value string) (int, error) {
	value = strings.TrimSpace(value)
	if n, err := strconv.Atoi(value); err == nil {
		return n, nil
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return 0, fmt.Errorf("invalid duration %q", value)
	}
	return int(d / time.Second), nil
}

func (c *Config) normalize() error {
	if err := c.normalizePaths(); err != nil {
		return err
	}
	c.normalizeProcessing()
	c.normalizeGCP()
	c.normalizeLogging()
	c.Output.ReportFormat = strings.ToLower(strings.TrimSpace(c.Output.ReportFormat))
	if c.Output.ReportFormat == "" {
		c.Output.ReportFormat = defaultReportFormat
	}
	return nil
}

func (c *Config) normalizePaths() error {
	var err error
	if strings.TrimSpace(c.Output.Dir) == "" {
		c.Output.Dir = defaultOutputDir
	}
	if c.Output.Dir, err = expandPath(c.Output.Dir); err != nil {
		return fmt.Errorf("output.dir: %w", err)
	}
	if strings.TrimSpace(c.History.Path) == "" {
		c.History.Path = defaultHistoryPath
	}
	if c.History.Path, err = expandPath(c.History.Path); err != nil {
		return fmt.Errorf("history.path: %w", err)
	}
	return nil
}

func (c *Config) normalizeProcessing() {
	labels := c.Processing.Labels[:0]
	seen := make(map[string]bool, len(c.Processing.Labels))
	for _, l := range c.Processing.Labels {
		l = strings.TrimSpace(l)
		if l == "" || seen[strings.ToLower(l)] {
			continue
		}
		seen[strings.ToLower(l)] = true
		labels = append(labels, l)
	}
	c.Processing.Labels = labels
}

func (c *Config) normalizeGCP() {
	c.GCP.ProjectID = strings.TrimSpace(c.GCP.ProjectID)
	c.GCP.OutputBucket = strings.TrimPrefix(strings.TrimSpace(c.GCP.OutputBucket), "gs://")
	c.GCP.WorkflowID = strings.TrimSpace(c.GCP.WorkflowID)
	if strings.TrimSpace(c.GCP.Collection) == "" {
		c.GCP.Collection = defaultCollection
	}
	if strings.TrimSpace(c.GCP.WorkflowLocation) == "" {
		c.GCP.WorkflowLocation = defaultWorkflowLocation
	}
}

func (c *Config) normalizeLogging() {
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
	if c.Logging.Level == "warning" {
		c.Logging.Level = "warn"
	}
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	if c.Logging.Format == "" || c.Logging.Format == "console" {
		c.Logging.Format = defaultLogFormat
	}
}
