package config

const (
	defaultWorkers                = 4
	defaultDocumentTimeoutSeconds = 60
	defaultOutputDir              = "."
	defaultReportFormat           = "csv"
	defaultCollection             = "checklist_runs"
	defaultWorkflowLocation       = "us-central1"
	defaultHistoryPath            = "~/.local/share/checklist-renamer/history.db"
	defaultLogLevel               = "info"
	defaultLogFormat              = "text"

	maxWorkers = 256
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Processing: Processing{
			Workers:                defaultWorkers,
			DocumentTimeoutSeconds: defaultDocumentTimeoutSeconds,
		},
		Output: Output{
			Dir:          defaultOutputDir,
			ReportFormat: defaultReportFormat,
		},
		GCP: GCP{
			Collection:       defaultCollection,
			WorkflowLocation: defaultWorkflowLocation,
		},
		History: History{
			Enabled: true,
			Path:    defaultHistoryPath,
		},
		Logging: Logging{
			Level:  defaultLogLevel,
			Format: defaultLogFormat,
		},
	}
}
