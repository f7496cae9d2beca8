// Package logger provides structured logging for the application.
//
// It builds on log/slog with a configurable level and format, and wraps
// every handler in a redaction layer so derived API keys and credentials
// never reach log output.
package logger
