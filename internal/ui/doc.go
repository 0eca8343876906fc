// Package ui renders meshsd command output in the terminal.
//
// One-shot commands (discover, scan, config show) print a Header, a listing
// and a Result box through a Printer. The monitor command runs a Bubble Tea
// program (MonitorModel) fed by a node's diagnostics stream.
//
// Lipgloss drops colors automatically when stdout is not a terminal, so the
// same rendering serves pipes and log files.
//
// # Logging Integration
//
// zap logging stays silent unless MESHSD_LOG_LEVEL or --log-level is set, so
// the curated output is not interleaved with log lines.
package ui
