// Package logging configures structured logging for the engine.
//
// All components log through log/slog with a "component" attribute
// (e.g. "sla.sweeper", "compliance.storage.sqlite"). This package turns the
// logging section of the configuration into a slog handler (text or JSON, at
// the configured level) and installs it as the process default.
package logging
