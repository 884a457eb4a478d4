// Package config loads, normalizes, and validates checklist renamer settings.
//
// Settings come from repository defaults, an optional TOML file and a small
// set of environment overrides shared with the cloud function deployment
// (PROJECT_ID, OUTPUT_BUCKET, FIRESTORE_COLLECTION, WORKFLOW_ID,
// WORKFLOW_LOCATION, RENAMER_WORKERS, RENAMER_DOCUMENT_TIMEOUT).
package config
