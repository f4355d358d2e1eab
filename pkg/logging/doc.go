// Package logging provides the shared structured logger for mcpdiscover.
//
// All subsystems log through the package-level Debug/Info/Warn/Error
// functions, tagging each entry with a subsystem name. The logger is backed
// by log/slog and is initialized once at startup by the CLI.
package logging
