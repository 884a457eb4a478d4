package config

import (
	"errors"
	"fmt"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validateProcessing(); err != nil {
		return err
	}
	switch c.Output.ReportFormat {
	case "csv", "xlsx":
	default:
		return fmt.Errorf("output.report_format must be csv or xlsx, got %q", c.Output.ReportFormat)
	}
	if err := c.validateLogging(); err != nil {
		return err
	}
	if c.WorkflowEnabled() && c.GCP.ProjectID == "" {
		return errors.New("gcp.project_id is required when gcp.workflow_id is set")
	}
	return nil
}

func (c *Config) validateProcessing() error {
	if c.Processing.Workers < 1 || c.Processing.Workers > maxWorkers {
		return fmt.Errorf("processing.workers must be between 1 and %d", maxWorkers)
	}
	if c.Processing.DocumentTimeoutSeconds < 0 {
		return errors.New("processing.document_timeout_seconds must not be negative")
	}
	if c.Processing.MaxPages < 0 {
		return errors.New("processing.max_pages must not be negative")
	}
	return nil
}

func (c *Config) validateLogging() error {
	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("logging.level %q is not one of debug, info, warn, error", c.Logging.Level)
	}
	switch c.Logging.Format {
	case "text", "json":
	default:
		return fmt.Errorf("logging.format %q is not one of text, json", c.Logging.Format)
	}
	return nil
}

// ValidateCloud checks the settings the cloud function cannot run without.
func (c *Config) ValidateCloud() error {
	if c.GCP.ProjectID == "" {
		return errors.New("PROJECT_ID environment variable must be set")
	}
	if c.GCP.OutputBucket == "" {
		return errors.New("OUTPUT_BUCKET environment variable must be set")
	}
	return nil
}
