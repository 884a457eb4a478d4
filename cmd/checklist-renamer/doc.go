// Command checklist-renamer renames checklist PDFs by the serial number
// printed inside them.
//
// The run command ingests files, directories and zip bundles, writes a zip of
// the renamed documents and an audit report into the output directory, and
// records the run in a local history database.
package main
